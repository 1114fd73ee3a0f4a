package container

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog/log"

	"lunaplay/internal/audio/config"
	"lunaplay/internal/audio/convert"
	"lunaplay/internal/audio/stream"
)

const wavFormatPCM = 1

// WAVReader decodes PCM WAV into unsigned 8-bit mono.
type WAVReader struct {
	r     io.Reader
	spool *os.File
	dec   *wav.Decoder
	desc  stream.Descriptor

	channels int
	depth    int
	pcm      *audio.IntBuffer
}

// NewWAVReader parses the WAV header from r. The decoder needs to seek, so
// input that cannot (a pipe or a terminal) is copied to a temporary file
// first.
func NewWAVReader(r io.Reader) (*WAVReader, error) {
	wr := &WAVReader{r: r}

	rs, ok := seekable(r)
	if !ok {
		spool, err := spoolToTemp(r)
		if err != nil {
			return nil, err
		}
		wr.spool = spool
		rs = spool
	}

	wr.dec = wav.NewDecoder(rs)
	if !wr.dec.IsValidFile() {
		wr.removeSpool()
		return nil, fmt.Errorf("wav: %w", ErrBadHeader)
	}

	d := wr.dec
	log.Debug().
		Uint16("format", d.WavAudioFormat).
		Uint16("channels", d.NumChans).
		Uint32("freq", d.SampleRate).
		Uint16("bits", d.BitDepth).
		Msg("WAV header")

	if d.WavAudioFormat != wavFormatPCM {
		wr.removeSpool()
		return nil, fmt.Errorf("wav format %d: %w", d.WavAudioFormat, ErrUnsupportedInput)
	}
	if d.NumChans != 1 && d.NumChans != 2 {
		wr.removeSpool()
		return nil, fmt.Errorf("wav with %d channels: %w", d.NumChans, ErrUnsupportedInput)
	}
	switch d.BitDepth {
	case 8, 16, 24, 32:
	default:
		wr.removeSpool()
		return nil, fmt.Errorf("wav with %d bits: %w", d.BitDepth, ErrUnsupportedInput)
	}

	wr.channels = int(d.NumChans)
	wr.depth = int(d.BitDepth)
	wr.desc = stream.Descriptor{
		Format:     config.FormatWAV,
		Encoding:   config.EncodingU8,
		SampleRate: int(d.SampleRate),
	}
	return wr, nil
}

func (w *WAVReader) Descriptor() stream.Descriptor { return w.desc }

func (w *WAVReader) ReadMore(buf *stream.Buffer) (int, error) {
	for buf.Len() < buf.Cap() {
		want := (buf.Cap() - buf.Len()) * w.channels
		if w.pcm == nil || cap(w.pcm.Data) < want {
			w.pcm = &audio.IntBuffer{Data: make([]int, want)}
		}
		w.pcm.Data = w.pcm.Data[:want]

		n, err := w.dec.PCMBuffer(w.pcm)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return buf.Len(), fmt.Errorf("wav read: %w", err)
		}
		frames := n / w.channels
		if w.depth == 8 {
			// 8-bit WAV is unsigned
			for j := range w.pcm.Data[:n] {
				w.pcm.Data[j] -= 0x80
			}
		}
		out := buf.Free()
		for i := 0; i < frames; i++ {
			out[i] = convert.MixToU8(w.pcm.Data[i*w.channels:(i+1)*w.channels], w.depth)
		}
		buf.Grow(frames)
		if frames == 0 || err != nil {
			break
		}
	}
	return buf.Len(), nil
}

func (w *WAVReader) Close() error {
	w.removeSpool()
	return closeHandle(w.r)
}

func (w *WAVReader) removeSpool() {
	if w.spool == nil {
		return
	}
	w.spool.Close()
	os.Remove(w.spool.Name())
	w.spool = nil
}

// seekable reports whether r can really seek; a pipe is an *os.File but
// fails on Seek.
func seekable(r io.Reader) (io.ReadSeeker, bool) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		return nil, false
	}
	if _, err := rs.Seek(0, io.SeekCurrent); err != nil {
		return nil, false
	}
	return rs, true
}

func spoolToTemp(r io.Reader) (*os.File, error) {
	f, err := os.CreateTemp("", "lunaplay-in-*.wav")
	if err != nil {
		return nil, fmt.Errorf("wav spool: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("wav spool: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("wav spool: %w", err)
	}
	return f, nil
}

// WAVWriter writes unsigned 8-bit mono WAV. The header sizes are only known
// at the end, so samples go to a private temporary file and Close copies the
// finished file into the real handle.
type WAVWriter struct {
	w    io.Writer
	tmp  *os.File
	enc  *wav.Encoder
	desc stream.Descriptor

	pcm     *audio.IntBuffer
	written int
}

func NewWAVWriter(w io.Writer, desc stream.Descriptor) (*WAVWriter, error) {
	if desc.Encoding != config.EncodingU8 {
		return nil, fmt.Errorf("wav writer %s: %w", desc.Encoding, config.ErrInvalidEncoding)
	}
	desc.Format = config.FormatWAV

	tmp, err := os.CreateTemp("", "lunaplay-out-*.wav")
	if err != nil {
		return nil, fmt.Errorf("wav temp file: %w", err)
	}

	return &WAVWriter{
		w:    w,
		tmp:  tmp,
		enc:  wav.NewEncoder(tmp, desc.SampleRate, 8, 1, wavFormatPCM),
		desc: desc,
		pcm: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: desc.SampleRate},
			SourceBitDepth: 8,
		},
	}, nil
}

func (w *WAVWriter) Descriptor() stream.Descriptor { return w.desc }

func (w *WAVWriter) WriteBlock(buf *stream.Buffer) (int, error) {
	src := buf.Bytes()
	w.pcm.Data = w.pcm.Data[:0]
	for _, s := range src {
		w.pcm.Data = append(w.pcm.Data, int(s))
	}
	buf.Reset()
	if err := w.enc.Write(w.pcm); err != nil {
		return 0, fmt.Errorf("wav write: %w", err)
	}
	w.written += len(src)
	return len(src), nil
}

// Close finalises the header, splices the temporary file into the output
// handle and removes it.
func (w *WAVWriter) Close() error {
	if w.tmp == nil {
		return nil
	}
	defer func() {
		w.tmp.Close()
		os.Remove(w.tmp.Name())
		w.tmp = nil
	}()

	if w.written == 0 {
		// forces the header out for an empty stream
		w.pcm.Data = w.pcm.Data[:0]
		if err := w.enc.Write(w.pcm); err != nil {
			return errors.Join(fmt.Errorf("wav header: %w", err), closeHandle(w.w))
		}
	}
	if err := w.enc.Close(); err != nil {
		return errors.Join(fmt.Errorf("wav finalise: %w", err), closeHandle(w.w))
	}
	if w.written%2 == 1 {
		if err := w.padData(); err != nil {
			return errors.Join(fmt.Errorf("wav pad: %w", err), closeHandle(w.w))
		}
	}
	if _, err := w.tmp.Seek(0, io.SeekStart); err != nil {
		return errors.Join(fmt.Errorf("wav splice: %w", err), closeHandle(w.w))
	}
	n, err := io.Copy(retryWriter{w.w}, w.tmp)
	if err != nil {
		return errors.Join(fmt.Errorf("wav splice: %w", err), closeHandle(w.w))
	}
	log.Debug().Int64("bytes", n).Int("samples", w.written).Msg("WAV written")
	return closeHandle(w.w)
}

// padData appends the RIFF pad byte after an odd-sized data chunk and counts
// it in the RIFF size. The data chunk size stays odd.
func (w *WAVWriter) padData() error {
	if _, err := w.tmp.Write([]byte{0}); err != nil {
		return err
	}
	size, err := w.tmp.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	var riffSize [4]byte
	binary.LittleEndian.PutUint32(riffSize[:], uint32(size-8))
	_, err = w.tmp.WriteAt(riffSize[:], 4)
	return err
}
