package kernel

// Error describes a kernel error. Kernel errors are declared once as
// package-level pointers and returned by reference: interrupt handlers and
// early boot code run before (or outside of) the Go allocator, so building
// errors on demand with errors.New is not an option.
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
