package container

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"lunaplay/internal/audio/config"
	"lunaplay/internal/audio/stream"
)

// PSGPCM layout: tag, little-endian encoding and sample rate, then raw codes
// to the end of the file.
const (
	psgpcmTag        = "PSGP"
	psgpcmHeaderSize = 4 + 2 + 4
)

type PSGPCMReader struct {
	r    io.Reader
	desc stream.Descriptor
}

func NewPSGPCMReader(r io.Reader) (*PSGPCMReader, error) {
	var hdr [psgpcmHeaderSize]byte
	n, err := stream.ReadFull(r, hdr[:])
	if err != nil {
		return nil, fmt.Errorf("psgpcm header: %w", err)
	}
	if n < len(hdr) || string(hdr[:4]) != psgpcmTag {
		return nil, fmt.Errorf("psgpcm: %w", ErrBadHeader)
	}

	enc := config.Encoding(binary.LittleEndian.Uint16(hdr[4:]))
	rate := binary.LittleEndian.Uint32(hdr[6:])
	if !enc.IsPSG() {
		return nil, fmt.Errorf("psgpcm encoding %d: %w", uint16(enc), config.ErrInvalidEncoding)
	}

	log.Debug().
		Str("encoding", enc.String()).
		Uint32("freq", rate).
		Msg("PSGPCM header")

	return &PSGPCMReader{
		r: r,
		desc: stream.Descriptor{
			Format:     config.FormatPSGPCM,
			Encoding:   enc,
			SampleRate: int(rate),
		},
	}, nil
}

func (p *PSGPCMReader) Descriptor() stream.Descriptor { return p.desc }

func (p *PSGPCMReader) ReadMore(buf *stream.Buffer) (int, error) {
	return stream.ReadInto(p.r, buf)
}

func (p *PSGPCMReader) Close() error { return closeHandle(p.r) }

type PSGPCMWriter struct {
	w    io.Writer
	desc stream.Descriptor
}

// NewPSGPCMWriter writes the header for desc immediately.
func NewPSGPCMWriter(w io.Writer, desc stream.Descriptor) (*PSGPCMWriter, error) {
	if !desc.Encoding.IsPSG() {
		return nil, fmt.Errorf("psgpcm writer %s: %w", desc.Encoding, config.ErrInvalidEncoding)
	}
	desc.Format = config.FormatPSGPCM

	var hdr [psgpcmHeaderSize]byte
	copy(hdr[:], psgpcmTag)
	binary.LittleEndian.PutUint16(hdr[4:], uint16(desc.Encoding))
	binary.LittleEndian.PutUint32(hdr[6:], uint32(desc.SampleRate))
	if _, err := stream.WriteFull(w, hdr[:]); err != nil {
		return nil, fmt.Errorf("psgpcm header: %w", err)
	}
	return &PSGPCMWriter{w: w, desc: desc}, nil
}

func (p *PSGPCMWriter) Descriptor() stream.Descriptor { return p.desc }

func (p *PSGPCMWriter) WriteBlock(buf *stream.Buffer) (int, error) {
	n, err := stream.WriteFull(p.w, buf.Bytes())
	buf.Reset()
	return n, err
}

func (p *PSGPCMWriter) Close() error { return closeHandle(p.w) }
