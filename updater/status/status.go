// Package status defines the exit-code contract shared by the privileged and
// the session side, and the error taxonomy that maps onto it.
package status

import (
	"errors"
	"fmt"
)

// Code is a process exit code. The values are stable: callers of the
// privileged side match on them.
type Code int

const (
	Success            Code = 0
	AccessDenied       Code = 1
	RuntimeError       Code = 2
	InvalidArgument    Code = 3
	NotFound           Code = 4
	IOError            Code = 5
	Timeout            Code = 6
	NetworkError       Code = 7
	DatabaseError      Code = 8
	ConfigError        Code = 9
	OutOfMemory        Code = 10
	UnhandledException Code = 11
	DependencyMissing  Code = 12
	VersionMismatch    Code = 13
	UserCancelled      Code = 20
	ValidationFailed   Code = 21
	ServiceUnavailable Code = 22
)

var codeNames = map[Code]string{
	Success:            "success",
	AccessDenied:       "access denied",
	RuntimeError:       "runtime error",
	InvalidArgument:    "invalid argument",
	NotFound:           "not found",
	IOError:            "i/o error",
	Timeout:            "timeout",
	NetworkError:       "network error",
	DatabaseError:      "database error",
	ConfigError:        "config error",
	OutOfMemory:        "out of memory",
	UnhandledException: "unhandled exception",
	DependencyMissing:  "dependency missing",
	VersionMismatch:    "version mismatch",
	UserCancelled:      "user cancelled",
	ValidationFailed:   "validation failed",
	ServiceUnavailable: "service unavailable",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("exit code %d", int(c))
}

// Kind classifies a failure. Every kind maps onto exactly one Code.
type Kind int

const (
	KindUnexpected Kind = iota
	KindAccessDenied
	KindConfiguration
	KindNotFound
	KindLocked
	KindBusy
	KindIntegrity
	KindTimeout
	KindIO
	KindInvalidArgument
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindAccessDenied:
		return "access denied"
	case KindConfiguration:
		return "configuration"
	case KindNotFound:
		return "not found"
	case KindLocked:
		return "locked"
	case KindBusy:
		return "busy"
	case KindIntegrity:
		return "integrity"
	case KindTimeout:
		return "timeout"
	case KindIO:
		return "io"
	case KindInvalidArgument:
		return "invalid argument"
	case KindCancelled:
		return "cancelled"
	default:
		return "unexpected"
	}
}

// Code returns the exit code reported for failures of this kind.
func (k Kind) Code() Code {
	switch k {
	case KindAccessDenied:
		return AccessDenied
	case KindConfiguration:
		return ConfigError
	case KindNotFound:
		return NotFound
	case KindLocked:
		return RuntimeError
	case KindBusy:
		return ServiceUnavailable
	case KindIntegrity:
		return ValidationFailed
	case KindTimeout:
		return Timeout
	case KindIO:
		return IOError
	case KindInvalidArgument:
		return InvalidArgument
	case KindCancelled:
		return UserCancelled
	default:
		return RuntimeError
	}
}

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return e.Kind.String()
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Op == "":
		return e.Err.Error()
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New classifies err. A nil err still produces an error carrying the kind.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf classifies a formatted error. %w verbs are honored.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost classified error in err's chain.
// Unclassified errors are KindUnexpected.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnexpected
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// CodeOf maps err onto the exit-code contract. A nil error is Success.
func CodeOf(err error) Code {
	if err == nil {
		return Success
	}
	return KindOf(err).Code()
}
