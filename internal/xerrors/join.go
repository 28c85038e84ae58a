package xerrors

import (
	"fmt"
	"strings"
)

func Join(errs ...error) joinErrors {
	return errs
}

type joinErrors []error

func (errs joinErrors) Error() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, err := range errs {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%q", err.Error())
	}
	b.WriteByte(']')

	return b.String()
}

func (errs joinErrors) As(target interface{}) bool {
	for _, err := range errs {
		if As(err, target) {
			return true
		}
	}

	return false
}

func (errs joinErrors) Is(target error) bool {
	for _, err := range errs {
		if Is(err, target) {
			return true
		}
	}

	return false
}

func (errs joinErrors) Unwrap() []error {
	return errs
}
