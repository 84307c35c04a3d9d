package memory

import "errors"

var (
	// ErrOutOfMemory is reported when a scope allocation would grow past the
	// end of the activation buffer.
	ErrOutOfMemory = errors.New("activation memory exhausted")

	// ErrInvalidAddress is reported when a resolved byte range leaves its
	// memory region.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrNullDereference is reported when the null address is followed.
	ErrNullDereference = errors.New("null dereference")

	// ErrUnknownCapture is reported when a capture id does not name a live
	// capture buffer.
	ErrUnknownCapture = errors.New("unknown capture buffer")
)
