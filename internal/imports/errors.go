package imports

import (
	"fmt"
)

// ResolveError occurs when a guest import cannot be bound to a shim.
type ResolveError struct {
	Import string
	Reason string
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("cannot resolve import '%s': %s", e.Import, e.Reason)
}

// ArgumentError occurs when a shim argument has the wrong host type.
type ArgumentError struct {
	Shim  string
	Index int
	Want  string
	Got   any
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: argument %d is %T, want %s", e.Shim, e.Index, e.Got, e.Want)
}
