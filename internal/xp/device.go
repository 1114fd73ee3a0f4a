// Package xp streams PSG codes to the XP sub-processor of a LUNA through its
// shared memory window.
//
// The firmware plays two pages in turn. While it plays one page the host
// fills the other; the high byte of the page-end register tells which page
// is busy. The first block starts playback once the firmware reports ready.
package xp

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"

	"lunaplay/internal/audio/config"
	"lunaplay/internal/audio/stream"
)

const DefaultPath = "/dev/xp"

// Offsets in the shared window.
const (
	VarBase     = 0x0100
	RegMagic    = VarBase + 0
	RegStart    = VarBase + 8
	RegTimer    = VarBase + 9
	RegEncoding = VarBase + 10
	RegReady    = VarBase + 11
	RegError    = VarBase + 12
	RegPageEndL = VarBase + 13
	RegPageEndH = VarBase + 14

	WindowSize = 0xfe00
	BlockSize  = 0x4000
)

var (
	pageBase    = [2]int{0x4000, 0x8000}
	pageEndHigh = [2]uint8{0x80, 0xc0}
)

// Timer limits. The timer counts XP clock/20 ticks; the register holds the
// divisor minus one.
const (
	CPUFreq       = 6144000
	TimerDiv      = 20
	TimerBaseFreq = CPUFreq / TimerDiv

	MinDivisor  = 6   // 51.2kHz
	WarnDivisor = 77  // 3989Hz
	MaxDivisor  = 256 // register width
)

var (
	ErrFrequencyTooHigh = errors.New("frequency too high")
	ErrFrequencyTooLow  = errors.New("frequency too low")
	ErrShortBlock       = errors.New("block is not a full page")
	ErrPollTimeout      = errors.New("timed out waiting for the XP")
	ErrClosed           = errors.New("device closed")
)

// Options describe how to open and program the device.
type Options struct {
	// Path defaults to DefaultPath.
	Path       string
	Firmware   Firmware
	Encoding   config.Encoding
	SampleRate int

	// PollTimeout bounds every wait on the firmware. Zero waits forever.
	PollTimeout time.Duration
}

// Status is a snapshot of the firmware status registers.
type Status struct {
	Ready   uint8
	Error   uint8
	PageEnd uint16
}

// Device is an open, programmed XP. It accepts exactly BlockSize bytes per
// write.
type Device struct {
	win     Window
	release func() error

	desc        stream.Descriptor
	pollTimeout time.Duration

	page    int
	started bool
	closed  bool
}

// newDevice programs a mapped window. release undoes the mapping and is
// called by Close.
func newDevice(win Window, release func() error, opts Options) (*Device, error) {
	d := &Device{
		win:         win,
		release:     release,
		pollTimeout: opts.PollTimeout,
	}
	if err := d.Configure(opts.SampleRate, opts.Encoding); err != nil {
		return nil, err
	}
	return d, nil
}

// Divisor returns the timer divisor for a sample rate.
func Divisor(freq int) (int, error) {
	if freq <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrFrequencyTooLow, freq)
	}
	div := TimerBaseFreq / freq
	if div < MinDivisor {
		return 0, fmt.Errorf("%w: %d", ErrFrequencyTooHigh, freq)
	}
	if div > MaxDivisor {
		return 0, fmt.Errorf("%w: %d", ErrFrequencyTooLow, freq)
	}
	return div, nil
}

// Configure sets the playback rate and encoding. It must be called before
// the first block is written.
func (d *Device) Configure(freq int, enc config.Encoding) error {
	if !enc.IsPSG() {
		return fmt.Errorf("xp encoding %s: %w", enc, config.ErrInvalidEncoding)
	}
	div, err := Divisor(freq)
	if err != nil {
		return err
	}
	if div > WarnDivisor {
		log.Warn().Int("freq", freq).Msg("Frequency very low")
	}

	d.win.Store8(RegTimer, uint8(div-1))
	d.win.Store8(RegEncoding, uint8(enc))
	d.page = 0
	d.started = false
	d.desc = stream.Descriptor{Encoding: enc, SampleRate: freq}

	log.Info().
		Int("freq", TimerBaseFreq/div).
		Int("divisor", div).
		Str("encoding", enc.String()).
		Msg("XP configured")
	return nil
}

func (d *Device) Descriptor() stream.Descriptor { return d.desc }
func (d *Device) BlockSize() int                { return BlockSize }

// WriteBlock copies one full block into the free page, starting playback on
// the first call.
func (d *Device) WriteBlock(buf *stream.Buffer) (int, error) {
	if d.closed {
		return 0, ErrClosed
	}
	if buf.Len() != BlockSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrShortBlock, buf.Len())
	}

	if d.started {
		busy := pageEndHigh[d.page]
		if err := d.wait("page free", func() bool { return d.win.Load8(RegPageEndH) == busy }); err != nil {
			return 0, err
		}
	}

	d.win.CopyIn(pageBase[d.page], buf.Bytes())

	if !d.started {
		if err := d.wait("ready", func() bool { return d.win.Load8(RegReady) != 1 }); err != nil {
			return 0, err
		}
		d.win.Store8(RegStart, 1)
		d.started = true
		log.Debug().Msg("XP playback started")
	}

	d.page ^= 1
	n := buf.Len()
	buf.Reset()
	return n, nil
}

// wait spins while busy reports true.
func (d *Device) wait(what string, busy func() bool) error {
	var deadline time.Time
	if d.pollTimeout > 0 {
		deadline = time.Now().Add(d.pollTimeout)
	}
	for busy() {
		if !deadline.IsZero() && time.Now().After(deadline) {
			st := d.Status()
			log.Error().
				Str("waiting_for", what).
				Uint8("ready", st.Ready).
				Uint8("error", st.Error).
				Uint16("page_end", st.PageEnd).
				Msg("XP not responding")
			return fmt.Errorf("%w: %s", ErrPollTimeout, what)
		}
		runtime.Gosched()
	}
	return nil
}

func (d *Device) Status() Status {
	return Status{
		Ready:   d.win.Load8(RegReady),
		Error:   d.win.Load8(RegError),
		PageEnd: uint16(d.win.Load8(RegPageEndH))<<8 | uint16(d.win.Load8(RegPageEndL)),
	}
}

// Close unmaps the window and closes the device. Further calls do nothing.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if d.release == nil {
		return nil
	}
	return d.release()
}
