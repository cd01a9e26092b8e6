package kfmt

import "io"

// ringBufferSize defines the size of the ring buffer that captures early
// Printf output. It must always be a power of 2.
const ringBufferSize = 2048

// ringBuffer captures the output of Printf before an output sink is attached.
// Once the buffer fills up, new writes overwrite the oldest unread bytes.
type ringBuffer struct {
	buffer         [ringBufferSize]byte
	rIndex, wIndex int
	used           int
}

// Write writes len(p) bytes from p to the ringBuffer.
func (rb *ringBuffer) Write(p []byte) (int, error) {
	for _, b := range p {
		rb.buffer[rb.wIndex] = b
		rb.wIndex = (rb.wIndex + 1) & (ringBufferSize - 1)
		if rb.used == ringBufferSize {
			rb.rIndex = rb.wIndex
			continue
		}
		rb.used++
	}

	return len(p), nil
}

// Read reads up to len(p) bytes into p. It returns io.EOF once all buffered
// bytes have been consumed.
func (rb *ringBuffer) Read(p []byte) (int, error) {
	if rb.used == 0 {
		return 0, io.EOF
	}

	n := 0
	for n < len(p) && rb.used > 0 {
		// Copy the contiguous run that starts at rIndex.
		run := ringBufferSize - rb.rIndex
		if run > rb.used {
			run = rb.used
		}
		c := copy(p[n:], rb.buffer[rb.rIndex:rb.rIndex+run])
		n += c
		rb.used -= c
		rb.rIndex = (rb.rIndex + c) & (ringBufferSize - 1)
	}

	return n, nil
}

// Len returns the number of unread bytes in the buffer.
func (rb *ringBuffer) Len() int {
	return rb.used
}

// Reset discards any buffered data.
func (rb *ringBuffer) Reset() {
	rb.rIndex, rb.wIndex, rb.used = 0, 0, 0
}
