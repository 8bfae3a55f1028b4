package kfmt

import "io"

// ringBufferSize is large enough to hold a full 80x25 screen worth of boot
// messages. It must be a power of 2.
const ringBufferSize = 2048

// ringBuffer is a fixed-size byte FIFO that keeps the most recent
// ringBufferSize bytes written to it. Printf uses it to capture output that is
// produced before the serial port is initialized.
type ringBuffer struct {
	buffer [ringBufferSize]byte

	// head is the index of the oldest byte; count is the number of
	// buffered bytes.
	head, count int
}

// Write appends p to the buffer, overwriting the oldest bytes when the
// buffer is full. It never fails.
func (rb *ringBuffer) Write(p []byte) (int, error) {
	for _, b := range p {
		tail := (rb.head + rb.count) & (ringBufferSize - 1)
		rb.buffer[tail] = b

		if rb.count == ringBufferSize {
			rb.head = (rb.head + 1) & (ringBufferSize - 1)
		} else {
			rb.count++
		}
	}

	return len(p), nil
}

// Read drains up to len(p) bytes into p. It returns io.EOF once the buffer
// is empty.
func (rb *ringBuffer) Read(p []byte) (int, error) {
	if rb.count == 0 {
		return 0, io.EOF
	}

	// Copy the contiguous chunk that starts at head
	n := ringBufferSize - rb.head
	if n > rb.count {
		n = rb.count
	}
	if n > len(p) {
		n = len(p)
	}

	copy(p, rb.buffer[rb.head:rb.head+n])
	rb.head = (rb.head + n) & (ringBufferSize - 1)
	rb.count -= n

	return n, nil
}

// Len returns the number of buffered bytes.
func (rb *ringBuffer) Len() int {
	return rb.count
}
