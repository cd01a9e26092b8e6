// Package kernel contains the types shared by every kernel subsystem.
package kernel

// Error describes a kernel error. Kernel errors are declared as package-level
// pointers to Error and compared by identity. Code running on the allocation
// path cannot call errors.New as that would recurse into the allocator that
// is reporting the failure.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// String returns the error message prefixed by the module that raised it.
func (e *Error) String() string {
	return "[" + e.Module + "] " + e.Message
}
