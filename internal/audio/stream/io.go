package stream

import (
	"errors"
	"io"
	"syscall"
)

// transient reports whether err only means "no progress yet".
func transient(err error) bool {
	return errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.EWOULDBLOCK) ||
		errors.Is(err, syscall.EINTR)
}

// ReadFull reads until p is full or the input ends and returns the number
// of bytes read. End of input is not an error; a short count reports it.
// Would-block conditions are retried, any other error is returned at once.
func ReadFull(r io.Reader, p []byte) (int, error) {
	m := 0
	for m < len(p) {
		n, err := r.Read(p[m:])
		m += n
		if err != nil {
			if transient(err) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return m, nil
			}
			return m, err
		}
		if n == 0 {
			return m, nil
		}
	}
	return m, nil
}

// WriteFull writes all of p, retrying would-block conditions.
func WriteFull(w io.Writer, p []byte) (int, error) {
	m := 0
	for m < len(p) {
		n, err := w.Write(p[m:])
		m += n
		if err != nil {
			if transient(err) {
				continue
			}
			return m, err
		}
		if n == 0 {
			return m, io.ErrShortWrite
		}
	}
	return m, nil
}

// ReadInto fills the free part of buf from r and returns the new length.
func ReadInto(r io.Reader, buf *Buffer) (int, error) {
	n, err := ReadFull(r, buf.Free())
	buf.Grow(n)
	return buf.Len(), err
}
