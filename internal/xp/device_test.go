package xp

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"lunaplay/internal/audio/config"
	"lunaplay/internal/audio/stream"
)

// simXP stands in for the firmware. It reports ready after a few polls and
// moves to the other page after a few page-end polls.
type simXP struct {
	mem [WindowSize]byte

	readyAfter int
	flipAfter  int
	stuck      bool

	readyPolls int
	endPolls   int
	playing    int

	startWrites   int
	readyAtStart  bool
	pageOfWrite   []int
	startedBefore []bool
}

func (s *simXP) Load8(off int) uint8 {
	switch off {
	case RegReady:
		s.readyPolls++
		if s.readyPolls > s.readyAfter {
			return 1
		}
		return 0
	case RegPageEndH:
		if s.stuck {
			return pageEndHigh[s.playing]
		}
		s.endPolls++
		if s.endPolls > s.flipAfter {
			s.endPolls = 0
			s.playing ^= 1
		}
		return pageEndHigh[s.playing]
	}
	return s.mem[off]
}

func (s *simXP) Store8(off int, v uint8) {
	if off == RegStart && v == 1 {
		s.startWrites++
		s.readyAtStart = s.readyPolls > s.readyAfter
	}
	s.mem[off] = v
}

func (s *simXP) CopyIn(off int, p []byte) {
	page := -1
	for i, base := range pageBase {
		if off == base {
			page = i
		}
	}
	s.pageOfWrite = append(s.pageOfWrite, page)
	s.startedBefore = append(s.startedBefore, s.startWrites > 0)
	copy(s.mem[off:], p)
}

func newSimDevice(t *testing.T, sim *simXP, opts Options) *Device {
	t.Helper()
	if opts.SampleRate == 0 {
		opts.SampleRate = 16000
	}
	if opts.Encoding == config.EncodingUnknown {
		opts.Encoding = config.EncodingPAM3
	}
	d, err := newDevice(sim, nil, opts)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func fullBlock(fill byte) *stream.Buffer {
	b := stream.NewBuffer(BlockSize)
	for i := range b.Storage() {
		b.Storage()[i] = fill
	}
	b.SetLen(BlockSize)
	return b
}

func TestWriteBlockDoubleBuffer(t *testing.T) {
	sim := &simXP{readyAfter: 3, flipAfter: 2}
	d := newSimDevice(t, sim, Options{})

	for i := 0; i < 5; i++ {
		buf := fullBlock(byte(i + 1))
		n, err := d.WriteBlock(buf)
		if err != nil {
			t.Fatalf("block %d: %v", i, err)
		}
		if n != BlockSize || buf.Len() != 0 {
			t.Fatalf("block %d: expected %d written and reset buffer, got %d/%d", i, BlockSize, n, buf.Len())
		}
	}

	want := []int{0, 1, 0, 1, 0}
	for i, p := range sim.pageOfWrite {
		if p != want[i] {
			t.Errorf("write %d went to page %d, want %d", i, p, want[i])
		}
	}
	if sim.startWrites != 1 {
		t.Errorf("expected one start command, got %d", sim.startWrites)
	}
	if !sim.readyAtStart {
		t.Error("start command written before the firmware was ready")
	}
	if sim.startedBefore[0] {
		t.Error("first page must be filled before starting")
	}
	if sim.mem[0x4000] != 5 || sim.mem[0x8000] != 4 {
		t.Errorf("unexpected page contents %d/%d", sim.mem[0x4000], sim.mem[0x8000])
	}
}

func TestWriteBlockShort(t *testing.T) {
	sim := &simXP{}
	d := newSimDevice(t, sim, Options{})
	buf := stream.NewBuffer(BlockSize)
	buf.SetLen(BlockSize - 1)
	if _, err := d.WriteBlock(buf); !errors.Is(err, ErrShortBlock) {
		t.Errorf("expected ErrShortBlock, got %v", err)
	}
	if len(sim.pageOfWrite) != 0 {
		t.Error("short block must not reach the device")
	}
}

func TestWriteBlockPollTimeout(t *testing.T) {
	sim := &simXP{stuck: true}
	d := newSimDevice(t, sim, Options{PollTimeout: 20 * time.Millisecond})

	if _, err := d.WriteBlock(fullBlock(1)); err != nil {
		t.Fatal(err)
	}
	// page 1 is free; the page-end register never leaves page 0 so the third
	// block cannot be placed
	if _, err := d.WriteBlock(fullBlock(2)); err != nil {
		t.Fatal(err)
	}
	if _, err := d.WriteBlock(fullBlock(3)); !errors.Is(err, ErrPollTimeout) {
		t.Errorf("expected ErrPollTimeout, got %v", err)
	}
}

func TestConfigure(t *testing.T) {
	tests := []struct {
		name    string
		freq    int
		enc     config.Encoding
		timer   uint8
		wantErr error
	}{
		{"16k", 16000, config.EncodingPAM3, 18, nil},
		{"max", 51200, config.EncodingPCM1, 5, nil},
		{"too high", 60000, config.EncodingPCM1, 0, ErrFrequencyTooHigh},
		{"low warns", 2000, config.EncodingPCM2, 152, nil},
		{"too low", 1000, config.EncodingPCM2, 0, ErrFrequencyTooLow},
		{"zero", 0, config.EncodingPCM2, 0, ErrFrequencyTooLow},
		{"linear", 16000, config.EncodingU8, 0, config.ErrInvalidEncoding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := &simXP{}
			_, err := newDevice(sim, nil, Options{SampleRate: tt.freq, Encoding: tt.enc})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got := sim.mem[RegTimer]; got != tt.timer {
				t.Errorf("expected timer %d, got %d", tt.timer, got)
			}
			if got := sim.mem[RegEncoding]; got != uint8(tt.enc) {
				t.Errorf("expected encoding %d, got %d", tt.enc, got)
			}
		})
	}
}

func TestCloseOnce(t *testing.T) {
	calls := 0
	d, err := newDevice(&simXP{}, func() error { calls++; return nil },
		Options{SampleRate: 8000, Encoding: config.EncodingPCM1})
	if err != nil {
		t.Fatal(err)
	}
	d.Close()
	d.Close()
	if calls != 1 {
		t.Errorf("expected one release, got %d", calls)
	}
	if _, err := d.WriteBlock(fullBlock(0)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestStatus(t *testing.T) {
	mem := make([]byte, WindowSize)
	mem[RegReady] = 1
	mem[RegError] = 7
	mem[RegPageEndH] = 0xc0
	mem[RegPageEndL] = 0x12
	d, err := newDevice(newMemWindow(mem), nil, Options{SampleRate: 8000, Encoding: config.EncodingPCM3})
	if err != nil {
		t.Fatal(err)
	}
	st := d.Status()
	if st.Ready != 1 || st.Error != 7 || st.PageEnd != 0xc012 {
		t.Errorf("unexpected status %+v", st)
	}
	if mem[RegTimer] != 37 {
		t.Errorf("expected timer written through the window, got %d", mem[RegTimer])
	}
}

func firmwareImage(size int) []byte {
	img := make([]byte, size)
	if size >= RegMagic+8 {
		copy(img[RegMagic:], "LUNAPSG\x00")
	}
	return img
}

func TestParseFirmware(t *testing.T) {
	bad := firmwareImage(0x400)
	bad[RegMagic+7] = '!'

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"min", firmwareImage(FirmwareMinSize), nil},
		{"max", firmwareImage(FirmwareMaxSize), nil},
		{"small", firmwareImage(FirmwareMinSize - 1), ErrFirmwareSize},
		{"large", firmwareImage(FirmwareMaxSize + 1), ErrFirmwareSize},
		{"magic", bad, ErrFirmwareMagic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fw, err := ParseFirmware(tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if err == nil && !bytes.Equal(fw, tt.data) {
				t.Error("firmware bytes changed")
			}
		})
	}
}

func TestLoadFirmware(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xppsg.bin")
	if err := os.WriteFile(path, firmwareImage(0x800), 0o644); err != nil {
		t.Fatal(err)
	}
	fw, err := LoadFirmware(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(fw) != 0x800 {
		t.Errorf("expected 0x800 bytes, got %#x", len(fw))
	}
	if _, err := LoadFirmware(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}
