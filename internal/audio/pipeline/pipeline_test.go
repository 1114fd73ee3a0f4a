package pipeline

import (
	"bytes"
	"errors"
	"testing"

	"lunaplay/internal/audio/codec"
	"lunaplay/internal/audio/config"
	"lunaplay/internal/audio/convert"
	"lunaplay/internal/audio/stream"
)

type fakeSource struct {
	desc    stream.Descriptor
	data    []byte
	readErr error
	closeN  int
}

func (s *fakeSource) Descriptor() stream.Descriptor { return s.desc }

func (s *fakeSource) ReadMore(buf *stream.Buffer) (int, error) {
	if s.readErr != nil {
		return buf.Len(), s.readErr
	}
	n := copy(buf.Free(), s.data)
	s.data = s.data[n:]
	buf.Grow(n)
	return buf.Len(), nil
}

func (s *fakeSource) Close() error {
	s.closeN++
	return nil
}

type fakeSink struct {
	desc     stream.Descriptor
	blocks   [][]byte
	writeErr error
	closeErr error
	closeN   int
}

func (s *fakeSink) Descriptor() stream.Descriptor { return s.desc }

func (s *fakeSink) WriteBlock(buf *stream.Buffer) (int, error) {
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	s.blocks = append(s.blocks, bytes.Clone(buf.Bytes()))
	n := buf.Len()
	buf.Reset()
	return n, nil
}

func (s *fakeSink) Close() error {
	s.closeN++
	return s.closeErr
}

// fakeDevice only accepts whole blocks, like the XP device.
type fakeDevice struct {
	fakeSink
	size int
}

func (d *fakeDevice) BlockSize() int { return d.size }

func (d *fakeDevice) WriteBlock(buf *stream.Buffer) (int, error) {
	if buf.Len() != d.size {
		return 0, errors.New("short block")
	}
	return d.fakeSink.WriteBlock(buf)
}

func u8Source(data []byte) *fakeSource {
	return &fakeSource{
		desc: stream.Descriptor{Format: config.FormatWAV, Encoding: config.EncodingU8, SampleRate: 8000},
		data: data,
	}
}

func encodeAll(t *testing.T, enc config.Encoding, samples []byte) []byte {
	t.Helper()
	c, err := codec.New(enc, codec.DefaultParams)
	if err != nil {
		t.Fatal(err)
	}
	out := make([]byte, len(samples)*c.Stride())
	c.EncodeBlock(out, samples)
	return out
}

func TestRunFileSinkWritesShortFinalBlock(t *testing.T) {
	src := u8Source([]byte{10, 20, 30, 40, 50, 60})
	dst := &fakeSink{desc: stream.Descriptor{Format: config.FormatPSGPCM, Encoding: config.EncodingPCM1}}

	p, err := New(src, dst, Options{BlockSize: 4})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Run(); err != nil {
		t.Fatal(err)
	}

	if len(dst.blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(dst.blocks))
	}
	if len(dst.blocks[1]) != 2 {
		t.Errorf("expected unpadded 2-byte final block, got %d bytes", len(dst.blocks[1]))
	}
	want := encodeAll(t, config.EncodingPCM1, []byte{10, 20, 30, 40, 50, 60})
	if got := append(dst.blocks[0], dst.blocks[1]...); !bytes.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if p.Stats().Padded {
		t.Error("file sink must not be padded")
	}
}

func TestRunBlockSinkPadsWithLastSample(t *testing.T) {
	src := u8Source([]byte{0, 50, 100, 150, 200, 250})
	dst := &fakeDevice{
		fakeSink: fakeSink{desc: stream.Descriptor{Encoding: config.EncodingPCM2}},
		size:     8,
	}

	p, err := New(src, dst, Options{BlockSize: 1024})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Run(); err != nil {
		t.Fatal(err)
	}

	if len(dst.blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(dst.blocks))
	}
	for i, b := range dst.blocks {
		if len(b) != 8 {
			t.Errorf("block %d: expected 8 bytes, got %d", i, len(b))
		}
	}
	want := encodeAll(t, config.EncodingPCM2, []byte{200, 250, 250, 250})
	if !bytes.Equal(dst.blocks[1], want) {
		t.Errorf("expected padded tail %v, got %v", want, dst.blocks[1])
	}
	if st := p.Stats(); !st.Padded || st.Blocks != 2 || st.BytesIn != 6 || st.BytesOut != 16 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestRunBlockSinkPadsPSGInputByStride(t *testing.T) {
	// three whole PCM2 codes and a stray byte
	src := &fakeSource{
		desc: stream.Descriptor{Encoding: config.EncodingPCM2},
		data: []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x0f},
	}
	dst := &fakeDevice{fakeSink: fakeSink{desc: stream.Descriptor{Encoding: config.EncodingPCM2}}, size: 12}

	p, err := New(src, dst, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Run(); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x05, 0x06, 0x05, 0x06, 0x05, 0x06}
	if len(dst.blocks) != 1 || !bytes.Equal(dst.blocks[0], want) {
		t.Errorf("expected %v, got %v", want, dst.blocks)
	}
}

func TestNewAliasesEqualEncodings(t *testing.T) {
	src := u8Source(nil)
	dst := &fakeSink{desc: stream.Descriptor{Encoding: config.EncodingU8}}

	p, err := New(src, dst, Options{BlockSize: 16})
	if err != nil {
		t.Fatal(err)
	}
	if p.srcBuf.Owned() || !p.dstBuf.Owned() || !p.srcBuf.Shares(p.dstBuf) {
		t.Error("expected the source buffer to borrow the destination's storage")
	}
	if p.conv == nil {
		t.Fatal("expected a converter")
	}
}

func TestNewSizesSourceBuffer(t *testing.T) {
	tests := []struct {
		in, out config.Encoding
		srcCap  int
	}{
		{config.EncodingU8, config.EncodingPAM3, 4},
		{config.EncodingU8, config.EncodingPCM2, 8},
		{config.EncodingPCM3, config.EncodingU8, 64},
	}
	for _, tt := range tests {
		src := &fakeSource{desc: stream.Descriptor{Encoding: tt.in}}
		dst := &fakeSink{desc: stream.Descriptor{Encoding: tt.out}}
		p, err := New(src, dst, Options{BlockSize: 16})
		if err != nil {
			t.Fatalf("%s -> %s: %v", tt.in, tt.out, err)
		}
		if p.srcBuf.Cap() != tt.srcCap || p.dstBuf.Cap() != 16 {
			t.Errorf("%s -> %s: expected buffers %d/16, got %d/%d",
				tt.in, tt.out, tt.srcCap, p.srcBuf.Cap(), p.dstBuf.Cap())
		}
	}
}

func TestNewRejects(t *testing.T) {
	src := &fakeSource{desc: stream.Descriptor{Encoding: config.EncodingPCM1}}
	dst := &fakeSink{desc: stream.Descriptor{Encoding: config.EncodingPAM3}}
	if _, err := New(src, dst, Options{}); !errors.Is(err, convert.ErrUnsupportedPair) {
		t.Errorf("expected ErrUnsupportedPair, got %v", err)
	}

	dst = &fakeSink{desc: stream.Descriptor{Encoding: config.EncodingPAM3}}
	if _, err := New(u8Source(nil), dst, Options{BlockSize: 6}); !errors.Is(err, ErrBlockSize) {
		t.Errorf("expected ErrBlockSize, got %v", err)
	}
}

func TestNewParams(t *testing.T) {
	dst := &fakeSink{desc: stream.Descriptor{Encoding: config.EncodingPCM1}}
	if _, err := New(u8Source(nil), dst, Options{Params: &codec.Params{}}); !errors.Is(err, codec.ErrInvalidParams) {
		t.Errorf("expected ErrInvalidParams for an explicit zero gain, got %v", err)
	}

	p, err := New(u8Source([]byte{0, 255}), dst, Options{BlockSize: 2, Params: &codec.Params{Gain: -1, Offset: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Run(); err != nil {
		t.Fatal(err)
	}
	// an inverted table swaps silence and full scale
	want := encodeAll(t, config.EncodingPCM1, []byte{255, 0})
	if len(dst.blocks) != 1 || !bytes.Equal(dst.blocks[0], want) {
		t.Errorf("expected %v, got %v", want, dst.blocks)
	}
}

func TestRunErrorsCloseBothEnds(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		src  *fakeSource
		dst  *fakeSink
	}{
		{"read", &fakeSource{desc: stream.Descriptor{Encoding: config.EncodingU8}, readErr: boom},
			&fakeSink{desc: stream.Descriptor{Encoding: config.EncodingU8}}},
		{"write", u8Source([]byte{1, 2, 3}),
			&fakeSink{desc: stream.Descriptor{Encoding: config.EncodingU8}, writeErr: boom}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.src, tt.dst, Options{BlockSize: 4})
			if err != nil {
				t.Fatal(err)
			}
			if err := p.Run(); !errors.Is(err, boom) {
				t.Errorf("expected boom, got %v", err)
			}
			if tt.src.closeN != 1 || tt.dst.closeN != 1 {
				t.Errorf("expected each end closed once, got %d/%d", tt.src.closeN, tt.dst.closeN)
			}
			if err := p.Close(); err != nil || tt.src.closeN != 1 {
				t.Errorf("second close must be a no-op, got %v (%d)", err, tt.src.closeN)
			}
		})
	}
}

func TestRunReportsCloseError(t *testing.T) {
	boom := errors.New("flush failed")
	src := u8Source([]byte{1})
	dst := &fakeSink{desc: stream.Descriptor{Encoding: config.EncodingU8}, closeErr: boom}
	p, err := New(src, dst, Options{BlockSize: 4})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Run(); !errors.Is(err, boom) {
		t.Errorf("expected close error, got %v", err)
	}
}
