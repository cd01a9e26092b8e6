// Package kfmt implements the kernel's formatted output facilities.
package kfmt

import "io"

// maxBufSize defines the buffer size for formatting numbers.
const maxBufSize = 32

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")

	digits = []byte("0123456789abcdef")

	// earlyPrintBuffer is a ring buffer that stores Printf output before
	// an output sink is attached.
	earlyPrintBuffer ringBuffer

	// outputSink is a io.Writer where Printf will send its output. If set
	// to nil, then the output will be redirected to the earlyPrintBuffer.
	outputSink io.Writer
)

// SetOutputSink sets the default target for calls to Printf to w and copies
// any data accumulated in the earlyPrintBuffer to it.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		_, _ = io.Copy(w, &earlyPrintBuffer)
	}
}

// Sink returns the writer that Printf currently sends its output to. Before a
// sink is attached via SetOutputSink, the returned writer appends to the
// early print ring buffer.
func Sink() io.Writer {
	if outputSink != nil {
		return outputSink
	}
	return &earlyPrintBuffer
}

// Printf provides a minimal Printf implementation that does not depend on
// package fmt and therefore on reflection or the heap allocator.
//
// The following subset of formatting verbs is supported:
//
// Strings:
//
//	%s the uninterpreted bytes of a string or byte slice, or the message
//	   of an error value
//
// Integers:
//
//	%o base 8
//	%d base 10
//	%x base 16, with lower-case letters for a-f
//
// Booleans:
//
//	%t "true" or "false"
//
// Width is specified by an optional decimal number immediately preceding the
// verb. Values shorter than the width are left-padded with spaces; base-8 and
// base-16 integers are left-padded with zeroes instead. A '-' flag before the
// width pads on the right with spaces.
//
// The output of Printf is written to the active output sink. If no sink is
// attached, the output is buffered into a ring-buffer which gets flushed by
// the next call to SetOutputSink.
func Printf(format string, args ...interface{}) {
	Fprintf(outputSink, format, args...)
}

// Fprintf behaves exactly like Printf but it writes the formatted output to
// the specified io.Writer. A nil writer selects the early print buffer.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	if w == nil {
		w = &earlyPrintBuffer
	}

	p := printer{w: w}
	p.printf(format, args)
}

// printer holds the per-call formatting state so that concurrent callers do
// not share scratch buffers.
type printer struct {
	w       io.Writer
	one     [1]byte
	scratch [maxBufSize]byte
}

func (p *printer) printf(format string, args []interface{}) {
	var (
		argIndex  int
		start     int
		width     int
		leftAlign bool
		verbFound bool
	)

	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}

		p.writeString(format[start:i])

		width, leftAlign, verbFound = 0, false, false
	parseVerb:
		for i++; i < len(format); i++ {
			ch := format[i]
			switch {
			case ch == '%':
				p.writeByte('%')
				verbFound = true
				break parseVerb
			case ch == '-':
				leftAlign = true
			case ch >= '0' && ch <= '9':
				width = (width * 10) + int(ch-'0')
			case ch == 'd' || ch == 'x' || ch == 'o' || ch == 's' || ch == 't':
				verbFound = true
				if argIndex >= len(args) {
					p.write(errMissingArg)
					break parseVerb
				}

				p.fmtArg(ch, args[argIndex], width, leftAlign)
				argIndex++
				break parseVerb
			default:
				verbFound = true
				p.write(errNoVerb)
				break parseVerb
			}
		}

		if !verbFound {
			p.write(errNoVerb)
		}
		start = i + 1
	}

	if start < len(format) {
		p.writeString(format[start:])
	}

	for ; argIndex < len(args); argIndex++ {
		p.write(errExtraArg)
	}
}

func (p *printer) fmtArg(verb byte, arg interface{}, width int, leftAlign bool) {
	switch verb {
	case 'o':
		p.fmtInt(arg, 8, width, leftAlign)
	case 'd':
		p.fmtInt(arg, 10, width, leftAlign)
	case 'x':
		p.fmtInt(arg, 16, width, leftAlign)
	case 's':
		p.fmtString(arg, width, leftAlign)
	case 't':
		p.fmtBool(arg, width, leftAlign)
	}
}

// fmtBool prints a formatted version of boolean value v.
func (p *printer) fmtBool(v interface{}, width int, leftAlign bool) {
	bVal, ok := v.(bool)
	if !ok {
		p.write(errWrongArgType)
		return
	}

	out := falseValue
	if bVal {
		out = trueValue
	}

	p.padded(len(out), width, leftAlign, func() { p.write(out) })
}

// fmtString prints a formatted version of a string, []byte or error value v,
// applying the padding specified by width.
func (p *printer) fmtString(v interface{}, width int, leftAlign bool) {
	switch castedVal := v.(type) {
	case string:
		p.padded(len(castedVal), width, leftAlign, func() { p.writeString(castedVal) })
	case []byte:
		p.padded(len(castedVal), width, leftAlign, func() { p.write(castedVal) })
	case error:
		msg := castedVal.Error()
		p.padded(len(msg), width, leftAlign, func() { p.writeString(msg) })
	default:
		p.write(errWrongArgType)
	}
}

// padded emits the output produced by emit surrounded by enough spaces to
// fill width.
func (p *printer) padded(n, width int, leftAlign bool, emit func()) {
	if !leftAlign {
		p.repeat(' ', width-n)
	}
	emit()
	if leftAlign {
		p.repeat(' ', width-n)
	}
}

// fmtInt prints out a formatted version of v in the requested base, applying
// the padding specified by width. This function supports all built-in signed
// and unsigned integer types.
func (p *printer) fmtInt(v interface{}, base uint64, width int, leftAlign bool) {
	var (
		uval     uint64
		negative bool
	)

	switch t := v.(type) {
	case uint8:
		uval = uint64(t)
	case uint16:
		uval = uint64(t)
	case uint32:
		uval = uint64(t)
	case uint64:
		uval = t
	case uint:
		uval = uint64(t)
	case uintptr:
		uval = uint64(t)
	case int8:
		uval, negative = abs(int64(t))
	case int16:
		uval, negative = abs(int64(t))
	case int32:
		uval, negative = abs(int64(t))
	case int64:
		uval, negative = abs(t)
	case int:
		uval, negative = abs(int64(t))
	default:
		p.write(errWrongArgType)
		return
	}

	if width >= maxBufSize {
		width = maxBufSize - 1
	}

	// Digits are generated right to left into the tail of the scratch buffer.
	pos := len(p.scratch)
	for {
		pos--
		p.scratch[pos] = digits[uval%base]
		uval /= base
		if uval == 0 {
			break
		}
	}

	n := len(p.scratch) - pos
	if negative {
		n++
	}

	switch {
	case leftAlign:
		p.sign(negative)
		p.write(p.scratch[pos:])
		p.repeat(' ', width-n)
	case base == 10:
		p.repeat(' ', width-n)
		p.sign(negative)
		p.write(p.scratch[pos:])
	default:
		p.sign(negative)
		p.repeat('0', width-n)
		p.write(p.scratch[pos:])
	}
}

func abs(v int64) (uint64, bool) {
	if v < 0 {
		return uint64(-v), true
	}
	return uint64(v), false
}

func (p *printer) sign(negative bool) {
	if negative {
		p.writeByte('-')
	}
}

// repeat writes count bytes with value ch.
func (p *printer) repeat(ch byte, count int) {
	for i := 0; i < count; i++ {
		p.writeByte(ch)
	}
}

func (p *printer) writeString(s string) {
	for i := 0; i < len(s); i++ {
		p.writeByte(s[i])
	}
}

func (p *printer) writeByte(b byte) {
	p.one[0] = b
	p.write(p.one[:])
}

func (p *printer) write(b []byte) {
	if len(b) == 0 {
		return
	}
	_, _ = p.w.Write(b)
}
