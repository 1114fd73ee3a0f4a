// Package container reads and writes the file formats a stream can come from
// or go to. Each format is one variant behind stream.Source or stream.Sink.
package container

import (
	"errors"
	"fmt"
	"io"

	"lunaplay/internal/audio/config"
	"lunaplay/internal/audio/stream"
)

var (
	ErrBadHeader        = errors.New("bad header")
	ErrUnsupportedInput = errors.New("unsupported input")
	ErrReadOnlyFormat   = errors.New("format can only be read")
)

// OpenSource wraps r in the reader for format. The returned source owns r
// and closes it if it is an io.Closer.
func OpenSource(format config.Format, r io.Reader) (stream.Source, error) {
	switch format {
	case config.FormatPSGPCM:
		return NewPSGPCMReader(r)
	case config.FormatWAV:
		return NewWAVReader(r)
	case config.FormatMP3:
		return NewMP3Reader(r)
	case config.FormatFLAC:
		return NewFLACReader(r)
	}
	return nil, fmt.Errorf("open source %s: %w", format, config.ErrInvalidFormat)
}

// OpenSink wraps w in the writer for desc.Format.
func OpenSink(w io.Writer, desc stream.Descriptor) (stream.Sink, error) {
	switch desc.Format {
	case config.FormatPSGPCM:
		return NewPSGPCMWriter(w, desc)
	case config.FormatWAV:
		return NewWAVWriter(w, desc)
	case config.FormatMP3, config.FormatFLAC:
		return nil, fmt.Errorf("open sink %s: %w", desc.Format, ErrReadOnlyFormat)
	}
	return nil, fmt.Errorf("open sink %s: %w", desc.Format, config.ErrInvalidFormat)
}

func closeHandle(h any) error {
	if c, ok := h.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// retryWriter makes io.Copy go through WriteFull.
type retryWriter struct{ w io.Writer }

func (rw retryWriter) Write(p []byte) (int, error) {
	return stream.WriteFull(rw.w, p)
}
