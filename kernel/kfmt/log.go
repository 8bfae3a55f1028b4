package kfmt

// Logf writes a single line tagged with the module name, e.g.
// "[timer] ticks: 10". A line feed is appended to the output.
func Logf(module, format string, args ...interface{}) {
	Printf("[%s] ", module)
	Printf(format, args...)
	Printf("\n")
}

// Warnf is like Logf but marks the line as a warning. Interrupt handlers use
// it to report dropped input.
func Warnf(module, format string, args ...interface{}) {
	Printf("[%s] WARNING: ", module)
	Printf(format, args...)
	Printf("\n")
}
