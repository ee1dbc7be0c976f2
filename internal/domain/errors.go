package domain

import (
	"errors"
	"fmt"
)

// Kind classifies failures surfaced by the core.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindUnsupportedFormat
	KindParseFailure
	KindIndexBuildFailure
	KindSummarizationFailure
	KindHighlightFailure
	KindGenerationFailure
	KindNotIngested
	KindEmptyIndex
)

func (k Kind) String() string {
	switch k {
	case KindUnsupportedFormat:
		return "unsupported format"
	case KindParseFailure:
		return "parse failure"
	case KindIndexBuildFailure:
		return "index build failure"
	case KindSummarizationFailure:
		return "summarization failure"
	case KindHighlightFailure:
		return "highlight failure"
	case KindGenerationFailure:
		return "generation failure"
	case KindNotIngested:
		return "document not ingested"
	case KindEmptyIndex:
		return "index is empty"
	default:
		return "unknown failure"
	}
}

// Error wraps an underlying cause with a Kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Sentinels for errors.Is. They compare by Kind only.
var (
	ErrUnsupportedFormat    = &Error{Kind: KindUnsupportedFormat}
	ErrParseFailure         = &Error{Kind: KindParseFailure}
	ErrIndexBuildFailure    = &Error{Kind: KindIndexBuildFailure}
	ErrSummarizationFailure = &Error{Kind: KindSummarizationFailure}
	ErrHighlightFailure     = &Error{Kind: KindHighlightFailure}
	ErrGenerationFailure    = &Error{Kind: KindGenerationFailure}
	ErrNotIngested          = &Error{Kind: KindNotIngested}
	ErrEmptyIndex           = &Error{Kind: KindEmptyIndex}
)

// E builds an *Error. A nil cause is allowed.
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
