package vm

import "errors"

var (
	// ErrHost wraps a failure reported by a native callable. The task error
	// flag is set and the script unwinds through its destructors.
	ErrHost = errors.New("host function failed")

	// ErrUnboundEntry is reported when a script function is invoked before
	// the producer bound its entry cursor.
	ErrUnboundEntry = errors.New("script function has no entry point")

	// ErrCursorOutOfRange is reported when the instruction cursor leaves the
	// program image, which indicates a malformed instruction stream.
	ErrCursorOutOfRange = errors.New("instruction cursor outside program")

	// ErrStackCorrupted is reported when scope or call stack operations are
	// unbalanced.
	ErrStackCorrupted = errors.New("scope or call stack corrupted")
)
