package kfmt

import "io"

// PrefixWriter is an io.Writer that wraps another io.Writer and injects a
// prefix at the beginning of each line.
type PrefixWriter struct {
	// A writer where all writes get sent to.
	Sink io.Writer

	// The prefix injected at the beginning of each line.
	Prefix []byte

	midLine bool
}

// Write writes len(p) bytes from p to the underlying writer. The injected
// prefix is not included in the number of written bytes returned by this
// method.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	var (
		written int
		start   int
	)

	for start < len(p) {
		if !w.midLine {
			if _, err := w.Sink.Write(w.Prefix); err != nil {
				return written, err
			}
			w.midLine = true
		}

		end := len(p)
		for i := start; i < len(p); i++ {
			if p[i] == '\n' {
				end = i + 1
				w.midLine = false
				break
			}
		}

		n, err := w.Sink.Write(p[start:end])
		written += n
		if err != nil {
			return written, err
		}
		start = end
	}

	return written, nil
}
