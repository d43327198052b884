package asterisk

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	ErrInvalidArgument      = errors.New("asterisk: invalid argument")
	ErrUnrecognizedProtocol = errors.New("asterisk: unrecognized protocol")
	ErrUnrecognizedBoolean  = errors.New("asterisk: unrecognized boolean")
)

// ValueError reports the input that could not be normalized.
// Kind is one of the Err* sentinels above.
type ValueError struct {
	Kind  error
	Field string
	Value string
}

func (e *ValueError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %q", e.Kind, e.Value)
	}
	return fmt.Sprintf("%v: %s=%q", e.Kind, e.Field, e.Value)
}

func (e *ValueError) Unwrap() error {
	return e.Kind
}

// ErrorKind returns a short machine readable name for errors produced by
// this package, or "unknown" for anything else.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrUnrecognizedProtocol):
		return "unrecognized_protocol"
	case errors.Is(err, ErrUnrecognizedBoolean):
		return "unrecognized_boolean"
	default:
		return "unknown"
	}
}
