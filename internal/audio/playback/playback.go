package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog/log"

	"lunaplay/internal/audio/config"
	"lunaplay/internal/audio/stream"
)

const (
	queueDepth   = 8
	drainTimeout = 5 * time.Second
	silenceU8    = 0x80
)

// MalgoPlayback plays unsigned 8-bit mono blocks on the default host output.
// It lets a stream be previewed without the XP.
type MalgoPlayback struct {
	device *malgo.Device
	ctx    *malgo.AllocatedContext
	desc   stream.Descriptor

	feed *feeder
}

// feeder hands queued blocks to the audio callback.
type feeder struct {
	queue   chan []byte
	pending []byte

	done     chan struct{}
	doneOnce sync.Once
}

func newFeeder(depth int) *feeder {
	return &feeder{
		queue: make(chan []byte, depth),
		done:  make(chan struct{}),
	}
}

// fill copies queued samples into out and pads the rest with silence.
func (f *feeder) fill(out []byte) {
	n := 0
	for n < len(out) {
		if len(f.pending) == 0 {
			var ok bool
			select {
			case f.pending, ok = <-f.queue:
				if !ok {
					f.doneOnce.Do(func() { close(f.done) })
				}
			default:
			}
			if len(f.pending) == 0 {
				break
			}
		}
		c := copy(out[n:], f.pending)
		f.pending = f.pending[c:]
		n += c
	}
	for i := n; i < len(out); i++ {
		out[i] = silenceU8
	}
}

func New(desc stream.Descriptor) (*MalgoPlayback, error) {
	if desc.Encoding != config.EncodingU8 {
		return nil, fmt.Errorf("playback %s: %w", desc.Encoding, config.ErrInvalidEncoding)
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		log.Debug().Str("msg", msg).Msg("Malgo context message")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init malgo context: %w", err)
	}

	mp := &MalgoPlayback{
		ctx:  ctx,
		desc: stream.Descriptor{Encoding: config.EncodingU8, SampleRate: desc.SampleRate},
		feed: newFeeder(queueDepth),
	}

	playCfg := malgo.DefaultDeviceConfig(malgo.Playback)
	playCfg.Playback.Format = malgo.FormatU8
	playCfg.Playback.Channels = 1
	playCfg.SampleRate = uint32(desc.SampleRate)

	onPlay := func(pOutputSamples, _ []byte, _ uint32) {
		mp.feed.fill(pOutputSamples)
	}

	playDev, err := malgo.InitDevice(ctx.Context, playCfg, malgo.DeviceCallbacks{Data: onPlay})
	if err != nil {
		mp.freeContext()
		return nil, fmt.Errorf("failed to open playback device: %w", err)
	}
	mp.device = playDev

	if err := mp.device.Start(); err != nil {
		mp.device.Uninit()
		mp.freeContext()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}

	log.Info().Int("freq", desc.SampleRate).Msg("Playback device started")
	return mp, nil
}

func (mp *MalgoPlayback) Descriptor() stream.Descriptor { return mp.desc }

// WriteBlock queues a copy of the block; it blocks while the queue is full.
func (mp *MalgoPlayback) WriteBlock(buf *stream.Buffer) (int, error) {
	blk := make([]byte, buf.Len())
	copy(blk, buf.Bytes())
	buf.Reset()
	mp.feed.queue <- blk
	return len(blk), nil
}

// Close lets the queue play out and releases the device.
func (mp *MalgoPlayback) Close() error {
	if mp.device == nil {
		return nil
	}
	close(mp.feed.queue)
	select {
	case <-mp.feed.done:
	case <-time.After(drainTimeout):
		log.Warn().Msg("Playback did not drain, stopping")
	}
	mp.device.Uninit()
	mp.device = nil
	mp.freeContext()
	return nil
}

func (mp *MalgoPlayback) freeContext() {
	if mp.ctx != nil {
		_ = mp.ctx.Uninit()
		mp.ctx.Free()
		mp.ctx = nil
	}
}
