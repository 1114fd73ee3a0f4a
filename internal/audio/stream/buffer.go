package stream

import "fmt"

// Buffer is a byte region with a valid length. A buffer either owns its
// storage or borrows it from another buffer; only the owner releases it.
type Buffer struct {
	data   []byte
	length int
	owned  bool
}

// NewBuffer allocates an owned buffer of the given capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{data: make([]byte, capacity), owned: true}
}

// Alias returns a buffer that shares b's storage without owning it.
func Alias(b *Buffer) *Buffer {
	return &Buffer{data: b.data, owned: false}
}

func (b *Buffer) Cap() int    { return len(b.data) }
func (b *Buffer) Len() int    { return b.length }
func (b *Buffer) Owned() bool { return b.owned }

// Bytes returns the valid part of the buffer.
func (b *Buffer) Bytes() []byte { return b.data[:b.length] }

// Free returns the unused tail of the buffer.
func (b *Buffer) Free() []byte { return b.data[b.length:] }

// Storage returns the whole backing region regardless of length.
func (b *Buffer) Storage() []byte { return b.data }

// SetLen sets the valid length; it panics if n is outside [0, Cap()].
func (b *Buffer) SetLen(n int) {
	if n < 0 || n > len(b.data) {
		panic(fmt.Sprintf("stream: length %d out of range [0, %d]", n, len(b.data)))
	}
	b.length = n
}

// Grow extends the valid length by n.
func (b *Buffer) Grow(n int) { b.SetLen(b.length + n) }

func (b *Buffer) Reset() { b.length = 0 }

// Shares reports whether a and b are backed by the same storage.
func (b *Buffer) Shares(o *Buffer) bool {
	return len(b.data) > 0 && len(o.data) > 0 && &b.data[0] == &o.data[0]
}

// Release drops the storage if b owns it. A borrowed buffer only forgets
// its view.
func (b *Buffer) Release() {
	b.data = nil
	b.length = 0
}

// FillTail pads the buffer to its capacity by repeating the last whole
// stride-sized unit. A trailing partial unit is discarded first. If no whole
// unit exists the padding is zero bytes.
func (b *Buffer) FillTail(stride int) {
	if stride <= 0 {
		panic(fmt.Sprintf("stream: invalid stride %d", stride))
	}
	n := b.length - b.length%stride
	if n == 0 {
		clear(b.data)
		b.length = len(b.data)
		return
	}
	unit := b.data[n-stride : n]
	for i := n; i+stride <= len(b.data); i += stride {
		copy(b.data[i:], unit)
	}
	// a capacity that is not a multiple of the stride ends in zero bytes
	if r := len(b.data) % stride; r != 0 {
		clear(b.data[len(b.data)-r:])
	}
	b.length = len(b.data)
}
