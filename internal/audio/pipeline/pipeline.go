package pipeline

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"lunaplay/internal/audio/codec"
	"lunaplay/internal/audio/convert"
	"lunaplay/internal/audio/stream"
	"lunaplay/internal/xp"
)

var ErrBlockSize = errors.New("block size is not a multiple of the output stride")

// Options tune a pipeline. The zero value moves device-sized blocks with the
// default table parameters.
type Options struct {
	// BlockSize is the size in bytes of one output block. A block sink
	// overrides it with its own size.
	BlockSize int
	// Params replaces codec.DefaultParams when set.
	Params *codec.Params
}

type Stats struct {
	Blocks   int
	BytesIn  int64
	BytesOut int64
	Padded   bool
}

// AudioPipeline moves one source into one sink:
// read -> pad (block sinks only) -> convert -> write
type AudioPipeline struct {
	src stream.Source
	dst stream.Sink

	srcBuf *stream.Buffer
	dstBuf *stream.Buffer
	conv   convert.Converter

	inStride int
	pad      bool
	closed   bool
	stats    Stats
}

// New sizes the buffers and picks the converter. It does not take ownership
// of src and dst until it succeeds; from then on Run or Close release them.
func New(src stream.Source, dst stream.Sink, opts Options) (*AudioPipeline, error) {
	params := codec.DefaultParams
	if opts.Params != nil {
		params = *opts.Params
	}
	if opts.BlockSize <= 0 {
		opts.BlockSize = xp.BlockSize
	}
	bs, pad := dst.(stream.BlockSink)
	if pad {
		opts.BlockSize = bs.BlockSize()
	}

	in, out := src.Descriptor().Encoding, dst.Descriptor().Encoding
	conv, err := convert.For(in, out, params)
	if err != nil {
		return nil, err
	}
	if opts.BlockSize%out.Stride() != 0 {
		return nil, fmt.Errorf("%w: %d / %d", ErrBlockSize, opts.BlockSize, out.Stride())
	}

	p := &AudioPipeline{
		src:      src,
		dst:      dst,
		dstBuf:   stream.NewBuffer(opts.BlockSize),
		conv:     conv,
		inStride: in.Stride(),
		pad:      pad,
	}
	if in == out {
		p.srcBuf = stream.Alias(p.dstBuf)
	} else {
		p.srcBuf = stream.NewBuffer(opts.BlockSize / out.Stride() * in.Stride())
	}

	log.Debug().
		Str("in", in.String()).
		Str("out", out.String()).
		Int("src_buf", p.srcBuf.Cap()).
		Int("dst_buf", p.dstBuf.Cap()).
		Bool("aliased", !p.srcBuf.Owned()).
		Bool("pad", pad).
		Msg("Pipeline ready")
	return p, nil
}

// Run pumps blocks until the source ends or an error occurs, then closes both
// ends. It returns the first error seen, including one from closing.
func (p *AudioPipeline) Run() (err error) {
	defer func() {
		if cerr := p.Close(); err == nil {
			err = cerr
		}
		log.Debug().
			Int("blocks", p.stats.Blocks).
			Int64("bytes_in", p.stats.BytesIn).
			Int64("bytes_out", p.stats.BytesOut).
			Msg("Pipeline finished")
	}()

	for {
		p.srcBuf.Reset()
		p.dstBuf.Reset()

		n, err := p.src.ReadMore(p.srcBuf)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if n == 0 {
			return nil
		}
		p.stats.BytesIn += int64(n)

		if p.pad && n < p.srcBuf.Cap() {
			log.Debug().Int("have", n).Int("want", p.srcBuf.Cap()).Msg("Padding final block")
			p.srcBuf.FillTail(p.inStride)
			p.stats.Padded = true
		}

		p.conv(p.dstBuf, p.srcBuf)

		w, err := p.dst.WriteBlock(p.dstBuf)
		if err != nil {
			return fmt.Errorf("write: %w", err)
		}
		p.stats.Blocks++
		p.stats.BytesOut += int64(w)
	}
}

// Close closes the source and the sink once each and drops the buffers.
func (p *AudioPipeline) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	srcErr := p.src.Close()
	dstErr := p.dst.Close()
	p.srcBuf.Release()
	p.dstBuf.Release()

	if srcErr != nil {
		return fmt.Errorf("close source: %w", srcErr)
	}
	if dstErr != nil {
		return fmt.Errorf("close sink: %w", dstErr)
	}
	return nil
}

func (p *AudioPipeline) Stats() Stats { return p.stats }
