package hashindex

import "fmt"

// Kind classifies a Hash Index error. Fatal kinds terminate the index;
// the rest are surfaced as ordinary reply values (see handle in
// operations.go).
type Kind int

const (
	// KindMalformedRequest marks a programmer error: an empty digest, a
	// Commit of an unknown digest, or a Reserve accepted twice. Fatal.
	KindMalformedRequest Kind = iota
	// KindStorageError marks a database open/exec failure or schema
	// corruption. Fatal: the index cannot guarantee its invariants.
	KindStorageError
	// KindNotKnown marks a lookup miss or a callback registered against
	// an unknown digest. Surfaced to the caller, never fatal.
	KindNotKnown
	// KindNotReady marks a persistent_ref requested before Commit.
	// Surfaced to the caller as Retry.
	KindNotReady
	// KindDuplicate marks a Reserve of an already-known digest.
	// Surfaced to the caller as HashKnown.
	KindDuplicate
)

func (k Kind) String() string {
	switch k {
	case KindMalformedRequest:
		return "malformed_request"
	case KindStorageError:
		return "storage_error"
	case KindNotKnown:
		return "not_known"
	case KindNotReady:
		return "not_ready"
	case KindDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Fatal reports whether an error of this kind must terminate the index.
func (k Kind) Fatal() bool {
	return k == KindMalformedRequest || k == KindStorageError
}

// Error is the Hash Index's typed error value. Wrap lower-level causes
// with %w so callers can still unwrap down to e.g. a *sqlite3.Error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func malformed(format string, args ...any) *Error {
	return newError(KindMalformedRequest, fmt.Sprintf(format, args...), nil)
}

func storageErr(msg string, err error) *Error {
	return newError(KindStorageError, msg, err)
}
