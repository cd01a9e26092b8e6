package kfmt

import (
	"bytes"
	"errors"
	"testing"
)

func TestPrefixWriterWriteSequences(t *testing.T) {
	specs := []struct {
		prefix string
		writes []string
		exp    string
	}{
		{"> ", nil, ""},
		{"> ", []string{""}, ""},
		{"> ", []string{"one line\n"}, "> one line\n"},
		{"> ", []string{"a\nb\nc"}, "> a\n> b\n> c"},
		{"> ", []string{"\n\n"}, "> \n> \n"},
		// the line state carries across writes
		{"> ", []string{"par", "tial\nnext", " line\n", "last"}, "> partial\n> next line\n> last"},
		{"> ", []string{"a", "", "b\n"}, "> ab\n"},
		{"> ", []string{"", "x"}, "> x"},
		{"", []string{"no\nprefix"}, "no\nprefix"},
	}

	for specIndex, spec := range specs {
		var (
			buf bytes.Buffer
			w   = PrefixWriter{Sink: &buf, Prefix: []byte(spec.prefix)}
		)

		for _, chunk := range spec.writes {
			n, err := w.Write([]byte(chunk))
			if err != nil {
				t.Fatalf("[spec %d] unexpected error: %v", specIndex, err)
			}

			if n != len(chunk) {
				t.Errorf("[spec %d] expected Write to report %d bytes; got %d", specIndex, len(chunk), n)
			}
		}

		if got := buf.String(); got != spec.exp {
			t.Errorf("[spec %d] expected output %q; got %q", specIndex, spec.exp, got)
		}
	}
}

func TestPrefixWriterSinkErrors(t *testing.T) {
	// "ab\ncd" reaches the sink as: prefix, "ab\n", prefix, "cd".
	specs := []struct {
		failAt     int
		expWritten int
		expErr     bool
	}{
		{1, 0, true},
		{2, 0, true},
		{3, 3, true},
		{4, 3, true},
		{5, 5, false},
	}

	for specIndex, spec := range specs {
		var (
			sink = &failingWriter{failAt: spec.failAt}
			w    = PrefixWriter{Sink: sink, Prefix: []byte("> ")}
		)

		n, err := w.Write([]byte("ab\ncd"))
		if n != spec.expWritten {
			t.Errorf("[spec %d] expected Write to report %d bytes; got %d", specIndex, spec.expWritten, n)
		}

		if gotErr := err != nil; gotErr != spec.expErr {
			t.Errorf("[spec %d] expected error: %t; got %v", specIndex, spec.expErr, err)
		} else if gotErr && err != errSinkFailed {
			t.Errorf("[spec %d] expected the sink error to be returned; got %v", specIndex, err)
		}
	}
}

var errSinkFailed = errors.New("sink failed")

// failingWriter accepts writes until the failAt-th call, which fails.
type failingWriter struct {
	failAt int
	calls  int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.calls++
	if w.calls == w.failAt {
		return 0, errSinkFailed
	}
	return len(p), nil
}
