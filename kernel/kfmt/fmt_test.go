package kfmt

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/sync/errgroup"
)

type fmtSpec struct {
	format string
	args   []interface{}
	exp    string
}

func runFmtSpecs(t *testing.T, specs []fmtSpec) {
	t.Helper()

	var buf bytes.Buffer
	for specIndex, spec := range specs {
		buf.Reset()
		Fprintf(&buf, spec.format, spec.args...)

		if got := buf.String(); got != spec.exp {
			t.Errorf("[spec %d] Fprintf(%q): expected %q; got %q", specIndex, spec.format, spec.exp, got)
		}
	}
}

func args(v ...interface{}) []interface{} { return v }

func TestFprintfBools(t *testing.T) {
	runFmtSpecs(t, []fmtSpec{
		{"%t", args(true), "true"},
		{"[%7t]", args(false), "[  false]"},
		{"[%-6t]", args(true), "[true  ]"},
		{"%t", args(1), "%!(WRONGTYPE)"},
	})
}

func TestFprintfStrings(t *testing.T) {
	var nilErr error

	runFmtSpecs(t, []fmtSpec{
		{"zone %s:", args("DMA"), "zone DMA:"},
		{"%s", args([]byte{'o', 'k'}), "ok"},
		{"[%6s]", args("abc"), "[   abc]"},
		{"[%-6s]", args("abc"), "[abc   ]"},
		{"[%2s]", args("abcdef"), "[abcdef]"},
		// errors print their message
		{"failed: %s", args(errors.New("out of memory")), "failed: out of memory"},
		{"[%8s]", args(errors.New("oops")), "[    oops]"},
		{"[%-8s]", args(errors.New("oops")), "[oops    ]"},
		{"%s", args(nilErr), "%!(WRONGTYPE)"},
		{"%s", args(42), "%!(WRONGTYPE)"},
	})
}

func TestFprintfIntegers(t *testing.T) {
	type frame uint64

	runFmtSpecs(t, []fmtSpec{
		{"%d", args(uint8(255)), "255"},
		{"%d", args(^uint64(0)), "18446744073709551615"},
		{"%d", args(int64(-9223372036854775808)), "-9223372036854775808"},
		{"%x", args(uintptr(0xdeadbeef)), "deadbeef"},
		{"%o", args(uint16(8)), "10"},
		{"%x", args(int32(-0x1f)), "-1f"},
		// named types are not unwrapped
		{"%d", args(frame(3)), "%!(WRONGTYPE)"},
	})
}

func TestFprintfWidth(t *testing.T) {
	runFmtSpecs(t, []fmtSpec{
		// decimals pad with spaces, hex and octal with zeroes
		{"[%5d]", args(uint32(42)), "[   42]"},
		{"[%5d]", args(-42), "[  -42]"},
		{"[0x%10x]", args(uint64(0x9fc00)), "[0x000009fc00]"},
		{"[%4x]", args(-0xa), "[-00a]"},
		{"[%4o]", args(uint8(7)), "[0007]"},
		{"order %2d:", args(uint8(3)), "order  3:"},
		// the '-' flag pads on the right for every base
		{"[%-5d]", args(uint32(42)), "[42   ]"},
		{"[%-6d]", args(int64(-42)), "[-42   ]"},
		{"[%-4x]", args(uint8(0xa)), "[a   ]"},
		{"[%-3o]", args(8), "[10 ]"},
		// values wider than the requested width are not truncated
		{"[%2x]", args(uint32(0xbadf00d)), "[badf00d]"},
		// widths are clamped to the scratch buffer
		{"[%40d]", args(1), "[" + strings.Repeat(" ", maxBufSize-2) + "1]"},
	})
}

func TestFprintfMalformed(t *testing.T) {
	runFmtSpecs(t, []fmtSpec{
		{"100%%", nil, "100%"},
		{"%d %d", args(1), "1 (MISSING)"},
		{"%d", args(1, 2), "1%!(EXTRA)"},
		{"%Q", args("x"), "%!(NOVERB)%!(EXTRA)"},
		{"dangling %", nil, "dangling %!(NOVERB)"},
		{"dangling %-", nil, "dangling %!(NOVERB)"},
		{"dangling %12", nil, "dangling %!(NOVERB)"},
	})
}

func TestFprintfNilWriter(t *testing.T) {
	defer earlyPrintBuffer.Reset()
	earlyPrintBuffer.Reset()

	Fprintf(nil, "early %d", 1)

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(&earlyPrintBuffer); err != nil {
		t.Fatal(err)
	}

	if exp, got := "early 1", buf.String(); got != exp {
		t.Fatalf("expected a nil writer to select the early print buffer; got %q", got)
	}
}

func TestPrintfOutputSink(t *testing.T) {
	defer func() {
		outputSink = nil
		earlyPrintBuffer.Reset()
	}()

	outputSink = nil
	earlyPrintBuffer.Reset()

	Printf("boot %s\n", "msg")
	if Sink() != &earlyPrintBuffer {
		t.Fatal("expected Sink() to return the early print buffer while no sink is attached")
	}

	// Attaching a sink drains everything printed so far.
	var buf bytes.Buffer
	SetOutputSink(&buf)
	Printf("after %d\n", 2)

	if exp, got := "boot msg\nafter 2\n", buf.String(); got != exp {
		t.Fatalf("expected sink to receive %q; got %q", exp, got)
	}

	if Sink() != &buf {
		t.Fatal("expected Sink() to return the attached output sink")
	}

	if earlyPrintBuffer.Len() != 0 {
		t.Fatalf("expected the early print buffer to be drained; %d bytes remain", earlyPrintBuffer.Len())
	}
}

func TestFprintfThroughPrefixWriter(t *testing.T) {
	var (
		buf bytes.Buffer
		w   = &PrefixWriter{Sink: &buf, Prefix: []byte("[mod] ")}
	)

	Fprintf(w, "first %d\nsecond %s\n", 1, "line")

	if exp, got := "[mod] first 1\n[mod] second line\n", buf.String(); got != exp {
		t.Fatalf("expected %q; got %q", exp, got)
	}
}

func TestFprintfConcurrentCallers(t *testing.T) {
	const workers = 8

	bufs := make([]bytes.Buffer, workers)

	g, _ := errgroup.WithContext(context.Background())
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			for i := 0; i < 1000; i++ {
				Fprintf(&bufs[w], "%d:0x%8x;", w, uint64(i))
			}
			return nil
		})
	}
	_ = g.Wait()

	for w := range bufs {
		var exp bytes.Buffer
		for i := 0; i < 1000; i++ {
			Fprintf(&exp, "%d:0x%8x;", w, uint64(i))
		}

		if bufs[w].String() != exp.String() {
			t.Errorf("[worker %d] output was corrupted by a concurrent caller", w)
		}
	}
}
