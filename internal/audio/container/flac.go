package container

import (
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
	"github.com/rs/zerolog/log"

	"lunaplay/internal/audio/config"
	"lunaplay/internal/audio/convert"
	"lunaplay/internal/audio/stream"
)

// FLACReader decodes FLAC of any channel count and bit depth into unsigned
// 8-bit mono.
type FLACReader struct {
	r      io.Reader
	stream *flac.Stream
	desc   stream.Descriptor

	channels int
	depth    int

	// samples of the last parsed frame not yet handed out
	pending []byte
	eof     bool
}

func NewFLACReader(r io.Reader) (*FLACReader, error) {
	s, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("flac: %w", err)
	}

	info := s.Info
	log.Debug().
		Uint32("freq", info.SampleRate).
		Uint8("channels", info.NChannels).
		Uint8("bits", info.BitsPerSample).
		Uint64("samples", info.NSamples).
		Msg("FLAC stream")

	return &FLACReader{
		r:        r,
		stream:   s,
		channels: int(info.NChannels),
		depth:    int(info.BitsPerSample),
		desc: stream.Descriptor{
			Format:     config.FormatFLAC,
			Encoding:   config.EncodingU8,
			SampleRate: int(info.SampleRate),
		},
	}, nil
}

func (f *FLACReader) Descriptor() stream.Descriptor { return f.desc }

func (f *FLACReader) ReadMore(buf *stream.Buffer) (int, error) {
	for buf.Len() < buf.Cap() {
		if len(f.pending) == 0 {
			if f.eof {
				break
			}
			if err := f.parseFrame(); err != nil {
				return buf.Len(), err
			}
			continue
		}
		n := copy(buf.Free(), f.pending)
		f.pending = f.pending[n:]
		buf.Grow(n)
	}
	return buf.Len(), nil
}

func (f *FLACReader) parseFrame() error {
	frame, err := f.stream.ParseNext()
	if errors.Is(err, io.EOF) {
		f.eof = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("flac frame: %w", err)
	}

	n := int(frame.BlockSize)
	if cap(f.pending) < n {
		f.pending = make([]byte, n)
	}
	f.pending = f.pending[:n]
	for i := 0; i < n; i++ {
		sum := 0
		for ch := 0; ch < f.channels; ch++ {
			sum += int(frame.Subframes[ch].Samples[i])
		}
		f.pending[i] = convert.SignedToU8(sum/f.channels, f.depth)
	}
	return nil
}

func (f *FLACReader) Close() error { return closeHandle(f.r) }
