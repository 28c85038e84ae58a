package xerrors

import (
	"bytes"
	"errors"
	"strings"

	grpcCodes "google.golang.org/grpc/codes"
	grpcStatus "google.golang.org/grpc/status"

	"github.com/keyspandb/keyspan-go-sdk/internal/backoff"
)

// sessionNotFoundPrefix is the message the server puts into a NotFound
// status when the session handle no longer exists.
const sessionNotFoundPrefix = "Session not found:"

type transportError struct {
	code    grpcCodes.Code
	message string
	err     error
	address string
}

func (e *transportError) Code() grpcCodes.Code {
	return e.code
}

func (e *transportError) Name() string {
	return "transport/" + e.code.String()
}

type teOpt func(te *transportError)

func WithCode(code grpcCodes.Code) teOpt {
	return func(te *transportError) {
		te.code = code
	}
}

func WithMessage(message string) teOpt {
	return func(te *transportError) {
		te.message = message
	}
}

func WithAddress(address string) teOpt {
	return func(te *transportError) {
		te.address = address
	}
}

// Transport returns a new transport error with given options
func Transport(opts ...teOpt) error {
	te := &transportError{}
	for _, f := range opts {
		if f != nil {
			f(te)
		}
	}
	te.err = grpcStatus.Error(te.code, te.message)

	return WithStackTrace(te, WithSkipDepth(1))
}

func (e *transportError) Error() string {
	var b bytes.Buffer
	b.WriteString("transport error: ")
	b.WriteString(e.code.String())
	if e.message != "" {
		b.WriteString(", message: ")
		b.WriteString(e.message)
	}
	if len(e.address) > 0 {
		b.WriteString(", address: ")
		b.WriteString(e.address)
	}

	return b.String()
}

func (e *transportError) Unwrap() error {
	return e.err
}

func (e *transportError) GRPCStatus() *grpcStatus.Status {
	return grpcStatus.New(e.code, e.message)
}

func (e *transportError) BackoffType() backoff.Type {
	switch e.code {
	case grpcCodes.Aborted,
		grpcCodes.Internal,
		grpcCodes.Canceled,
		grpcCodes.Unavailable:
		return backoff.TypeFastBackoff
	case grpcCodes.ResourceExhausted:
		return backoff.TypeSlowBackoff
	default:
		return backoff.TypeNoBackoff
	}
}

// IsTransportError reports whether err is transportError with given grpc codes
func IsTransportError(err error, codes ...grpcCodes.Code) bool {
	if err == nil {
		return false
	}
	var t *transportError
	if !errors.As(err, &t) {
		return false
	}
	if len(codes) == 0 {
		return true
	}
	for _, code := range codes {
		if t.code == code {
			return true
		}
	}

	return false
}

// FromGRPCError converts grpc status errors into transportError.
// Returns err unchanged if it is not a status error.
func FromGRPCError(err error, opts ...teOpt) error {
	if err == nil {
		return nil
	}
	var t *transportError
	if errors.As(err, &t) {
		return err
	}

	if s, ok := grpcStatus.FromError(err); ok {
		te := &transportError{
			code:    s.Code(),
			message: s.Message(),
			err:     s.Err(),
		}
		for _, o := range opts {
			if o != nil {
				o(te)
			}
		}

		return te
	}

	return err
}

// IsAborted reports whether err is the server-side write-conflict signal.
// Aborted transactions must be retried from scratch.
func IsAborted(err error) bool {
	return IsTransportError(err, grpcCodes.Aborted)
}

// IsSessionNotFound reports whether the server no longer knows the
// session handle. Such a session must be discarded, never reused.
func IsSessionNotFound(err error) bool {
	if !IsTransportError(err, grpcCodes.NotFound) {
		return false
	}
	var t *transportError

	return errors.As(err, &t) && strings.Contains(t.message, sessionNotFoundPrefix)
}

// IsDeadlineExceeded covers both the transport code and plain context errors.
func IsDeadlineExceeded(err error) bool {
	return IsTransportError(err, grpcCodes.DeadlineExceeded) ||
		Is(err, errDeadlineExceededStd)
}

// MustDiscardSession reports whether the session the failed call was
// bound to became unusable and must be removed from the pool.
func MustDiscardSession(err error) bool {
	return IsSessionNotFound(err)
}

func BackoffTypeFromError(err error) backoff.Type {
	var t *transportError
	if errors.As(err, &t) {
		return t.BackoffType()
	}
	var re *retryableError
	if errors.As(err, &re) {
		return re.backoffType
	}

	return backoff.TypeNoBackoff
}

// MustRetry reports whether the failed operation can be re-run safely.
// Only abort signals and explicitly retryable errors qualify; everything
// else is surfaced to the caller.
func MustRetry(err error) bool {
	if IsAborted(err) || IsSessionNotFound(err) {
		return true
	}
	var re *retryableError

	return errors.As(err, &re)
}
