// Package stream defines the two ends of an audio transfer and the buffers
// that move between them.
//
// A Source fills a Buffer with samples in its Descriptor's encoding; a Sink
// consumes one Buffer per call. Every container format, the XP device and
// the host audio devices implement one of the two interfaces, and each is
// created by exactly one constructor and released by its own Close.
package stream

import (
	"lunaplay/internal/audio/config"
)

// Descriptor is the public state of one end of a stream.
type Descriptor struct {
	Format     config.Format
	Encoding   config.Encoding
	SampleRate int
}

// Source produces samples.
type Source interface {
	Descriptor() Descriptor

	// ReadMore appends samples to buf until it is full or the input ends,
	// and returns buf.Len(). A return of 0 with a nil error is end of
	// stream.
	ReadMore(buf *Buffer) (int, error)

	Close() error
}

// Sink consumes samples.
type Sink interface {
	Descriptor() Descriptor

	// WriteBlock writes the valid part of buf, resets its length and
	// returns the number of bytes written.
	WriteBlock(buf *Buffer) (int, error)

	Close() error
}

// BlockSink is implemented by sinks that only accept whole blocks of a fixed
// size. Callers pad short final blocks before writing to them.
type BlockSink interface {
	Sink
	BlockSize() int
}
