package capture

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog/log"

	"lunaplay/internal/audio/config"
	"lunaplay/internal/audio/convert"
	"lunaplay/internal/audio/stream"
)

const (
	chanDepth  = 64
	stallAfter = 2 * time.Second
)

var (
	ErrStalled   = errors.New("capture device stopped delivering samples")
	ErrBadParams = errors.New("capture needs a positive rate and duration")
)

// MalgoCapture records unsigned 8-bit mono from the default host input for a
// fixed duration.
type MalgoCapture struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	desc   stream.Descriptor

	PcmChan   chan []byte
	pending   []byte
	remaining int
}

func New(rate int, duration time.Duration) (*MalgoCapture, error) {
	if rate <= 0 || duration <= 0 {
		return nil, fmt.Errorf("%w: %d Hz for %s", ErrBadParams, rate, duration)
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		log.Debug().Str("msg", msg).Msg("Malgo context message")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init malgo context: %w", err)
	}

	mc := newMalgoCapture(rate, duration)
	mc.ctx = ctx

	capCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	capCfg.Capture.Format = malgo.FormatS16
	capCfg.Capture.Channels = 1
	capCfg.SampleRate = uint32(rate)

	// alsa specific settings for linux
	if runtime.GOOS == "linux" {
		capCfg.Alsa.NoMMap = 1
	}

	onCapture := func(_, input []byte, frameCount uint32) {
		samples := make([]byte, frameCount)
		n := convert.S16LEToU8(samples, input, 1)
		select {
		case mc.PcmChan <- samples[:n]:
		default:
			log.Debug().Uint32("frames", frameCount).Msg("Capture channel full, dropping frames")
		}
	}

	device, err := malgo.InitDevice(ctx.Context, capCfg, malgo.DeviceCallbacks{Data: onCapture})
	if err != nil {
		mc.Close()
		return nil, fmt.Errorf("failed to open capture device: %w", err)
	}
	mc.device = device

	if err := mc.device.Start(); err != nil {
		mc.Close()
		return nil, fmt.Errorf("failed to start capture device: %w", err)
	}

	log.Info().Int("freq", rate).Dur("duration", duration).Msg("Capture device started")
	return mc, nil
}

func newMalgoCapture(rate int, duration time.Duration) *MalgoCapture {
	return &MalgoCapture{
		desc: stream.Descriptor{
			Format:     config.FormatCapture,
			Encoding:   config.EncodingU8,
			SampleRate: rate,
		},
		PcmChan:   make(chan []byte, chanDepth),
		remaining: int(time.Duration(rate) * duration / time.Second),
	}
}

func (mc *MalgoCapture) Descriptor() stream.Descriptor { return mc.desc }

// ReadMore blocks until buf is full or the recording time is used up.
func (mc *MalgoCapture) ReadMore(buf *stream.Buffer) (int, error) {
	for buf.Len() < buf.Cap() && mc.remaining > 0 {
		if len(mc.pending) == 0 {
			select {
			case mc.pending = <-mc.PcmChan:
			case <-time.After(stallAfter):
				return buf.Len(), ErrStalled
			}
			continue
		}
		n := min(len(buf.Free()), len(mc.pending), mc.remaining)
		copy(buf.Free(), mc.pending[:n])
		mc.pending = mc.pending[n:]
		mc.remaining -= n
		buf.Grow(n)
	}
	return buf.Len(), nil
}

func (mc *MalgoCapture) Close() error {
	if mc.device != nil {
		mc.device.Uninit()
		mc.device = nil
	}
	if mc.ctx != nil {
		_ = mc.ctx.Uninit()
		mc.ctx.Free()
		mc.ctx = nil
	}
	return nil
}
