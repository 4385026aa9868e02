package core

import "errors"

// Kind is the abstract failure category a store operation can fail with.
// Callers inspect it with errors.As, not string matching.
type Kind string

const (
	KindInvalidArguments Kind = "invalid-arguments"
	KindNotFound         Kind = "not-found"
	KindOutOfStock       Kind = "out-of-stock"
	KindUpstream         Kind = "upstream-unavailable"
)

// Error wraps an underlying store error with its abstract Kind so the
// catalog executor can translate it into a tool-result envelope without
// string-matching messages.
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

// KindOf extracts the Kind of err, defaulting to KindUpstream for anything
// not produced by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstream
}
