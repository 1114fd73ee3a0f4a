package container

import (
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
	"github.com/rs/zerolog/log"

	"lunaplay/internal/audio/config"
	"lunaplay/internal/audio/convert"
	"lunaplay/internal/audio/stream"
)

// go-mp3 always produces 16-bit little-endian stereo.
const (
	mp3Channels  = 2
	mp3FrameSize = 2 * mp3Channels
)

// MP3Reader decodes MP3 into unsigned 8-bit mono.
type MP3Reader struct {
	r       io.Reader
	dec     *mp3.Decoder
	desc    stream.Descriptor
	scratch []byte
}

func NewMP3Reader(r io.Reader) (*MP3Reader, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	log.Debug().Int("freq", dec.SampleRate()).Int64("length", dec.Length()).Msg("MP3 stream")

	return &MP3Reader{
		r:   r,
		dec: dec,
		desc: stream.Descriptor{
			Format:     config.FormatMP3,
			Encoding:   config.EncodingU8,
			SampleRate: dec.SampleRate(),
		},
	}, nil
}

func (m *MP3Reader) Descriptor() stream.Descriptor { return m.desc }

func (m *MP3Reader) ReadMore(buf *stream.Buffer) (int, error) {
	want := (buf.Cap() - buf.Len()) * mp3FrameSize
	if cap(m.scratch) < want {
		m.scratch = make([]byte, want)
	}
	n, err := stream.ReadFull(m.dec, m.scratch[:want])
	if err != nil {
		return buf.Len(), fmt.Errorf("mp3 read: %w", err)
	}
	buf.Grow(convert.S16LEToU8(buf.Free(), m.scratch[:n], mp3Channels))
	return buf.Len(), nil
}

func (m *MP3Reader) Close() error { return closeHandle(m.r) }
