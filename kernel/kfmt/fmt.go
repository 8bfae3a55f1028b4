// Package kfmt implements the kernel's logging primitives. Everything in
// this package is safe to call from interrupt handlers: formatting never
// allocates and never blocks.
package kfmt

import (
	"io"
	"unsafe"
)

// numBufSize is the size of the scratch buffer used for formatting numbers.
// It fits a 64-bit value in base 8 plus a sign.
const numBufSize = 32

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")

	numBuf [numBufSize]byte

	// oneByte is a shared single byte buffer. Slicing a string and passing
	// it to an io.Writer would allocate so strings are written one byte at
	// a time through this buffer.
	oneByte = []byte(" ")

	// bootBuffer captures Printf output produced before an output sink
	// has been attached.
	bootBuffer ringBuffer

	// outputSink receives the output of Printf. While nil, output is
	// captured by bootBuffer.
	outputSink io.Writer
)

// SetOutputSink sets the default target for calls to Printf to w and replays
// any output that was captured before a sink became available.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		io.Copy(w, &bootBuffer)
	}
}

// GetOutputSink returns the currently active output sink.
func GetOutputSink() io.Writer {
	return outputSink
}

// Printf provides a minimal Printf implementation that does not allocate
// memory. It can be used before the Go allocator is initialized and from
// inside interrupt handlers.
//
// The following subset of the fmt verbs is supported:
//
//	%s  string or []byte
//	%c  a single byte or rune (runes outside ASCII print as '?')
//	%d  base 10 integer, left-padded with spaces
//	%x  base 16 integer with lower-case letters, left-padded with zeroes
//	%o  base 8 integer, left-padded with zeroes
//	%t  "true" or "false"
//	%%  a literal percent sign
//
// An optional decimal width may precede the verb. Arguments are never
// checked for io.Stringer or error implementations since that would require
// working itables.
func Printf(format string, args ...interface{}) {
	Fprintf(outputSink, format, args...)
}

// Fprintf behaves exactly like Printf but it writes the formatted output to
// the specified io.Writer.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		argIndex int
		width    int
		fmtLen   = len(format)
	)

	for i := 0; i < fmtLen; i++ {
		if format[i] != '%' {
			writeByte(w, format[i])
			continue
		}

		// Parse optional width followed by a verb
		width = 0
		for i++; i < fmtLen && format[i] >= '0' && format[i] <= '9'; i++ {
			width = width*10 + int(format[i]-'0')
		}

		if i == fmtLen {
			doWrite(w, errNoVerb)
			break
		}

		verb := format[i]
		switch verb {
		case '%':
			writeByte(w, '%')
			continue
		case 'd', 'x', 'o', 's', 't', 'c':
		default:
			doWrite(w, errNoVerb)
			continue
		}

		if argIndex >= len(args) {
			doWrite(w, errMissingArg)
			continue
		}

		arg := args[argIndex]
		argIndex++

		switch verb {
		case 'd':
			fmtInt(w, arg, 10, width)
		case 'x':
			fmtInt(w, arg, 16, width)
		case 'o':
			fmtInt(w, arg, 8, width)
		case 's':
			fmtString(w, arg, width)
		case 't':
			fmtBool(w, arg)
		case 'c':
			fmtChar(w, arg)
		}
	}

	for ; argIndex < len(args); argIndex++ {
		doWrite(w, errExtraArg)
	}
}

func fmtBool(w io.Writer, v interface{}) {
	b, ok := v.(bool)
	switch {
	case !ok:
		doWrite(w, errWrongArgType)
	case b:
		doWrite(w, trueValue)
	default:
		doWrite(w, falseValue)
	}
}

func fmtChar(w io.Writer, v interface{}) {
	switch ch := v.(type) {
	case byte:
		writeByte(w, ch)
	case rune:
		if ch < 0 || ch > 0x7f {
			ch = '?'
		}
		writeByte(w, byte(ch))
	default:
		doWrite(w, errWrongArgType)
	}
}

func fmtString(w io.Writer, v interface{}, width int) {
	switch str := v.(type) {
	case string:
		writeRepeat(w, ' ', width-len(str))
		for i := 0; i < len(str); i++ {
			writeByte(w, str[i])
		}
	case []byte:
		writeRepeat(w, ' ', width-len(str))
		doWrite(w, str)
	default:
		doWrite(w, errWrongArgType)
	}
}

// fmtInt writes v in the requested base, left-padding it to width. All
// built-in integer types are supported.
func fmtInt(w io.Writer, v interface{}, base uint64, width int) {
	var (
		uval uint64
		neg  bool
		pad  byte = '0'
	)

	if base == 10 {
		pad = ' '
	}

	if width >= numBufSize {
		width = numBufSize - 1
	}

	switch n := v.(type) {
	case uint8:
		uval = uint64(n)
	case uint16:
		uval = uint64(n)
	case uint32:
		uval = uint64(n)
	case uint64:
		uval = n
	case uint:
		uval = uint64(n)
	case uintptr:
		uval = uint64(n)
	case int8:
		uval, neg = absInt(int64(n))
	case int16:
		uval, neg = absInt(int64(n))
	case int32:
		uval, neg = absInt(int64(n))
	case int64:
		uval, neg = absInt(n)
	case int:
		uval, neg = absInt(int64(n))
	default:
		doWrite(w, errWrongArgType)
		return
	}

	// Digits are generated right to left starting at the end of numBuf.
	pos := numBufSize
	for {
		pos--
		digit := uval % base
		if digit < 10 {
			numBuf[pos] = byte(digit) + '0'
		} else {
			numBuf[pos] = byte(digit-10) + 'a'
		}

		uval /= base
		if uval == 0 {
			break
		}
	}

	// With space padding the sign sits right before the digits; with zero
	// padding it goes in front of the padding.
	if neg && pad == ' ' {
		pos--
		numBuf[pos] = '-'
	}

	minPos := numBufSize - width
	if neg && pad == '0' {
		minPos++
	}
	for ; pos > minPos; pos-- {
		numBuf[pos-1] = pad
	}

	if neg && pad == '0' {
		pos--
		numBuf[pos] = '-'
	}

	doWrite(w, numBuf[pos:])
}

func absInt(v int64) (uint64, bool) {
	if v < 0 {
		return uint64(-v), true
	}
	return uint64(v), false
}

func writeRepeat(w io.Writer, ch byte, count int) {
	for ; count > 0; count-- {
		writeByte(w, ch)
	}
}

func writeByte(w io.Writer, ch byte) {
	oneByte[0] = ch
	doWrite(w, oneByte)
}

// doWrite hides p from escape analysis. The compiler cannot tell that p does
// not escape through the unknown io.Writer and would otherwise heap-allocate
// the slice header on every call, which crashes the kernel when Printf runs
// before the allocator is up or inside an interrupt handler.
func doWrite(w io.Writer, p []byte) {
	doRealWrite(w, noEscape(unsafe.Pointer(&p)))
}

func doRealWrite(w io.Writer, bufPtr unsafe.Pointer) {
	p := *(*[]byte)(bufPtr)
	if w != nil {
		w.Write(p)
	} else {
		bootBuffer.Write(p)
	}
}

// noEscape hides a pointer from escape analysis. This function is copied over
// from runtime/stubs.go
//
//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
