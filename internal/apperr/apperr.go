// Package apperr classifies failures so callers can decide what each one means
// (flag an item, fail a source, fall back to an empty candidate list).
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindFetch     Kind = "fetch"
	KindParse     Kind = "parse"
	KindNormalize Kind = "normalize"
	KindLookup    Kind = "lookup"
	KindWrite     Kind = "write"
	KindOracle    Kind = "oracle"
	KindStore     Kind = "store"
	KindNotify    Kind = "notify"
)

// Error carries the failing operation and its kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap returns nil when err is nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the outermost kind in the chain, or "" when unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
