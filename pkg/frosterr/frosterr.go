// Package frosterr defines the error taxonomy shared by every layer of the
// core runtime: transport, timeout, protocol, dispatch, lifecycle, and
// configuration errors. Each kind is a distinct value so callers can use
// errors.Is against a stable sentinel instead of matching strings.
package frosterr

import "fmt"

// Kind identifies one of the error categories from the propagation policy.
type Kind int

const (
	// Transport errors originate from the underlying connection/socket.
	KindConnectFailed Kind = iota
	KindConnectionLost
	KindConnectionRefused
	KindSocketError
	KindDNSError
	KindFileError

	// Timeout errors.
	KindConnectTimeout
	KindCloseTimeout
	KindInvocationTimeout
	KindConnectionIdle

	// Protocol errors.
	KindMarshalError
	KindProtocolError
	KindCloseConnection
	KindDatagramLimit

	// Dispatch errors — also surface over the wire as reply status bytes.
	KindObjectNotExist
	KindFacetNotExist
	KindOperationNotExist
	KindUnknownLocalException
	KindUnknownUserException
	KindUnknownException

	// Lifecycle errors.
	KindCommunicatorDestroyed
	KindObjectAdapterDeactivated
	KindInvocationCanceled

	// Config errors.
	KindInitializationError
	KindAlreadyRegistered
	KindNotRegistered
	KindParseError
	KindFeatureNotSupported
)

var kindNames = map[Kind]string{
	KindConnectFailed:            "ConnectFailed",
	KindConnectionLost:           "ConnectionLost",
	KindConnectionRefused:        "ConnectionRefused",
	KindSocketError:              "SocketError",
	KindDNSError:                 "DNSError",
	KindFileError:                "FileError",
	KindConnectTimeout:           "ConnectTimeout",
	KindCloseTimeout:             "CloseTimeout",
	KindInvocationTimeout:        "InvocationTimeout",
	KindConnectionIdle:           "ConnectionIdle",
	KindMarshalError:             "MarshalError",
	KindProtocolError:            "ProtocolError",
	KindCloseConnection:          "CloseConnection",
	KindDatagramLimit:            "DatagramLimit",
	KindObjectNotExist:           "ObjectNotExist",
	KindFacetNotExist:            "FacetNotExist",
	KindOperationNotExist:        "OperationNotExist",
	KindUnknownLocalException:    "UnknownLocalException",
	KindUnknownUserException:    "UnknownUserException",
	KindUnknownException:         "UnknownException",
	KindCommunicatorDestroyed:    "CommunicatorDestroyed",
	KindObjectAdapterDeactivated: "ObjectAdapterDeactivated",
	KindInvocationCanceled:       "InvocationCanceled",
	KindInitializationError:      "InitializationError",
	KindAlreadyRegistered:        "AlreadyRegistered",
	KindNotRegistered:            "NotRegistered",
	KindParseError:               "ParseError",
	KindFeatureNotSupported:      "FeatureNotSupported",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Error is the core runtime's error value. It always carries a Kind and,
// crossing the wire, a reply status via Status (see KindToStatus for the
// mapping). Unwrap exposes the wrapped cause so errors.Is/As still work
// through it.
type Error struct {
	Kind    Kind
	Msg     string
	TypeID  string // original server-side type-id, for Unknown* kinds
	cause   error
}

// New creates an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind wrapping cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), cause: cause}
}

// WithTypeID attaches the original server-side type-id, carried on the
// Unknown* kinds as a message field.
func (e *Error) WithTypeID(typeID string) *Error {
	e.TypeID = typeID
	return e
}

func (e *Error) Error() string {
	if e.TypeID != "" {
		return fmt.Sprintf("%s: %s (type-id=%s)", e.Kind, e.Msg, e.TypeID)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is an *Error with the same Kind. This lets
// callers write errors.Is(err, frosterr.New(frosterr.KindConnectionLost, ""))
// but more commonly they compare against the Kind directly via Is(err, kind).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Of reports whether err is a *frosterr.Error of the given kind.
func Of(err error, kind Kind) bool {
	var e *Error
	if !asError(err, &e) {
		return false
	}
	return e.Kind == kind
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Retryable reports whether this Kind is ever eligible for the communicator's
// retry policy, independent of idempotency (InvocationTimeout and
// CommunicatorDestroyed are never retried).
func Retryable(kind Kind) bool {
	switch kind {
	case KindInvocationTimeout, KindCommunicatorDestroyed:
		return false
	default:
		return true
	}
}
