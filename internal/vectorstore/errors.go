package vectorstore

import "errors"

// Kind is the abstract failure category a vector-store operation can fail
// with. Callers inspect it with errors.As, mirroring core.Kind's pattern so
// the catalog executor can translate both the same way.
type Kind string

const (
	KindNotConnected    Kind = "not-connected"
	KindEmbeddingFailed Kind = "embedding-failed"
	KindSearchFailed    Kind = "search-failed"
)

// Error wraps an underlying vector-store error with its abstract Kind.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, msg string, cause error) error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// KindOf extracts the Kind of err, defaulting to KindSearchFailed for
// anything not produced by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindSearchFailed
}
