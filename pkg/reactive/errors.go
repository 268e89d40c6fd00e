package reactive

import (
	"errors"

	"golang.org/x/xerrors"
)

// ErrorKind classifies the errors this module's publishers and operators
// can produce.
type ErrorKind int

const (
	// IllegalArgument marks invalid operator construction parameters.
	IllegalArgument ErrorKind = iota
	// NullArgument marks a required argument that was nil/zero.
	NullArgument
	// IllegalDemand marks a Request(n) with n <= 0.
	IllegalDemand
	// UpstreamError wraps an error forwarded unchanged from a source.
	UpstreamError
	// OperatorError wraps a panic/error raised by a user-supplied callback
	// or factory.
	OperatorError
	// InnerError wraps an error raised by a flat-map inner publisher.
	InnerError
)

func (k ErrorKind) String() string {
	switch k {
	case IllegalArgument:
		return "IllegalArgument"
	case NullArgument:
		return "NullArgument"
	case IllegalDemand:
		return "IllegalDemand"
	case UpstreamError:
		return "UpstreamError"
	case OperatorError:
		return "OperatorError"
	case InnerError:
		return "InnerError"
	default:
		return "Unknown"
	}
}

// StreamError is a thin forwarding layer over x/xerrors: it exists so every
// error raised by this module carries a stack trace and an ErrorKind,
// without requiring the rest of the module to know about xerrors directly.
type StreamError struct {
	Kind ErrorKind
	err  error
}

func (e *StreamError) Error() string {
	return e.Kind.String() + ": " + e.err.Error()
}

func (e *StreamError) Unwrap() error {
	return e.err
}

// Wrap builds a StreamError of the given kind around err, attaching a
// stack trace via xerrors.
func Wrap(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &StreamError{Kind: kind, err: xerrors.Errorf("%w", err)}
}

// Newf builds a StreamError of the given kind from a format string,
// attaching a stack trace via xerrors.
func Newf(kind ErrorKind, format string, args ...interface{}) error {
	return &StreamError{Kind: kind, err: xerrors.Errorf(format, args...)}
}

// KindOf extracts the ErrorKind from err, if err (or something it wraps)
// is a *StreamError.
func KindOf(err error) (ErrorKind, bool) {
	var se *StreamError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}

// ErrIllegalDemand is the sentinel delivered to a downstream consumer when
// it calls Request(n) with n <= 0.
var ErrIllegalDemand = Newf(IllegalDemand, "illegal demand: request(n) requires n > 0")
