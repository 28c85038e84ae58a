package xerrors

import (
	"errors"
)

// New is a proxy to errors.New
// This need to single import errors
func New(text string) error {
	return errors.New(text)
}

// Is is a proxy to errors.Is
// This need to single import errors
func Is(err error, targets ...error) bool {
	if len(targets) == 0 {
		panic("empty targets")
	}
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

// As is a proxy to errors.As
// This need to single import errors
func As(err error, targets ...interface{}) bool {
	if len(targets) == 0 {
		panic("empty targets")
	}
	for _, target := range targets {
		if errors.As(err, target) {
			return true
		}
	}

	return false
}
