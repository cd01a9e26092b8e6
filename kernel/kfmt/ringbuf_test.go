package kfmt

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestRingBuffer(t *testing.T) {
	var (
		buf    bytes.Buffer
		expStr = "the big brown fox jumped over the lazy dog"
		rb     ringBuffer
	)

	t.Run("read/write", func(t *testing.T) {
		rb.Reset()
		n, err := rb.Write([]byte(expStr))
		if err != nil {
			t.Fatal(err)
		}

		if n != len(expStr) {
			t.Fatalf("expected to write %d bytes; wrote %d", len(expStr), n)
		}

		if got := readByteByByte(&buf, &rb); got != expStr {
			t.Fatalf("expected to read %q; got %q", expStr, got)
		}

		if rb.Len() != 0 {
			t.Fatalf("expected buffer to be drained; %d bytes left", rb.Len())
		}
	})

	t.Run("write wraps around the end of the buffer", func(t *testing.T) {
		rb.Reset()
		rb.wIndex = ringBufferSize - 2
		rb.rIndex = ringBufferSize - 2
		if _, err := rb.Write([]byte(expStr)); err != nil {
			t.Fatal(err)
		}

		if got := readByteByByte(&buf, &rb); got != expStr {
			t.Fatalf("expected to read %q; got %q", expStr, got)
		}
	})

	t.Run("overflow keeps the most recent bytes", func(t *testing.T) {
		rb.Reset()
		prefix := strings.Repeat("x", ringBufferSize)
		if _, err := rb.Write([]byte(prefix + expStr)); err != nil {
			t.Fatal(err)
		}

		if rb.Len() != ringBufferSize {
			t.Fatalf("expected buffer to hold %d bytes; got %d", ringBufferSize, rb.Len())
		}

		buf.Reset()
		io.Copy(&buf, &rb)

		got := buf.String()
		if !strings.HasSuffix(got, expStr) || len(got) != ringBufferSize {
			t.Fatalf("expected the last %d written bytes; got %d bytes ending in %q", ringBufferSize, len(got), got[len(got)-len(expStr):])
		}
	})

	t.Run("with io.Copy", func(t *testing.T) {
		rb.Reset()
		rb.wIndex = ringBufferSize - 2
		rb.rIndex = ringBufferSize - 2
		if _, err := rb.Write([]byte(expStr)); err != nil {
			t.Fatal(err)
		}

		var buf bytes.Buffer
		io.Copy(&buf, &rb)

		if got := buf.String(); got != expStr {
			t.Fatalf("expected to read %q; got %q", expStr, got)
		}
	})
}

func readByteByByte(buf *bytes.Buffer, r io.Reader) string {
	buf.Reset()
	var b = make([]byte, 1)
	for {
		_, err := r.Read(b)
		if err == io.EOF {
			break
		}

		buf.Write(b)
	}
	return buf.String()
}
