package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"lunaplay/internal/audio/config"
)

var (
	ErrNotPSG        = errors.New("encoding is not a PSG encoding")
	ErrInvalidParams = errors.New("invalid table parameters")
)

// Params is the affine transform applied to a normalised linear sample
// before the table search: target = v*Gain + Offset.
type Params struct {
	Gain   float64
	Offset float64
}

var DefaultParams = Params{Gain: 1, Offset: 0}

// Validate reports whether p maps the linear range onto something a table
// search can use: a finite, non-zero gain and a finite offset.
func (p Params) Validate() error {
	if p.Gain == 0 || math.IsNaN(p.Gain) || math.IsInf(p.Gain, 0) {
		return fmt.Errorf("%w: gain %g", ErrInvalidParams, p.Gain)
	}
	if math.IsNaN(p.Offset) || math.IsInf(p.Offset, 0) {
		return fmt.Errorf("%w: offset %g", ErrInvalidParams, p.Offset)
	}
	return nil
}

// Codec converts between unsigned 8-bit linear samples and the packed
// hardware codes of one PSG encoding. A Codec is immutable.
type Codec struct {
	enc    config.Encoding
	table  *Table
	params Params
	lut    [256]uint32
}

type codecKey struct {
	enc    config.Encoding
	params Params
}

var (
	tablesMu sync.Mutex
	tables   = map[int]*Table{}
	codecs   = map[codecKey]*Codec{}
)

func tableFor(channels int) (*Table, error) {
	if t, ok := tables[channels]; ok {
		return t, nil
	}
	t, err := NewTable(channels)
	if err != nil {
		return nil, err
	}
	tables[channels] = t
	return t, nil
}

// New returns the codec for enc built with params. Codecs are cached, so
// repeated calls are cheap.
func New(enc config.Encoding, params Params) (*Codec, error) {
	if !enc.IsPSG() {
		return nil, fmt.Errorf("%w: %s", ErrNotPSG, enc)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	tablesMu.Lock()
	defer tablesMu.Unlock()

	key := codecKey{enc, params}
	if c, ok := codecs[key]; ok {
		return c, nil
	}

	t, err := tableFor(enc.Channels())
	if err != nil {
		return nil, err
	}

	c := &Codec{enc: enc, table: t, params: params}
	for s := range c.lut {
		v := float64(s)/255*params.Gain + params.Offset
		c.lut[s] = c.pack(t.At(t.Search(v)))
	}
	codecs[key] = c
	return c, nil
}

func (c *Codec) Encoding() config.Encoding { return c.enc }
func (c *Codec) Table() *Table             { return c.table }

// Stride is the size in bytes of one packed code.
func (c *Codec) Stride() int { return c.enc.Stride() }

// pack places one voice level per byte, first voice in the most significant
// used byte.
func (c *Codec) pack(e Entry) uint32 {
	var code uint32
	for ch := 0; ch < c.table.channels; ch++ {
		code = code<<8 | uint32(e.Levels[ch]&0x0f)
	}
	return code
}

// Encode returns the packed code for a linear sample.
func (c *Codec) Encode(sample uint8) uint32 {
	return c.lut[sample]
}

// Levels unpacks a code into per-voice levels.
func (c *Codec) Levels(code uint32) [MaxChannels]uint8 {
	var lv [MaxChannels]uint8
	for ch := c.table.channels - 1; ch >= 0; ch-- {
		lv[ch] = uint8(code) & 0x0f
		code >>= 8
	}
	return lv
}

// Decode converts a packed code back to a linear sample. Codes whose level
// lies outside the range reachable through Params are clamped.
func (c *Codec) Decode(code uint32) uint8 {
	lv := c.Levels(code)
	var v float64
	for ch := 0; ch < c.table.channels; ch++ {
		v += Curve[lv[ch]]
	}
	v /= float64(c.table.channels)
	v = (v - c.params.Offset) / c.params.Gain * 255
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// EncodeBlock encodes every sample of src into dst and returns the number
// of bytes written. dst must hold len(src)*Stride() bytes.
func (c *Codec) EncodeBlock(dst, src []byte) int {
	switch c.Stride() {
	case 1:
		for i, s := range src {
			dst[i] = byte(c.lut[s])
		}
	case 2:
		for i, s := range src {
			binary.BigEndian.PutUint16(dst[i*2:], uint16(c.lut[s]))
		}
	case 4:
		for i, s := range src {
			binary.BigEndian.PutUint32(dst[i*4:], c.lut[s])
		}
	}
	return len(src) * c.Stride()
}

// DecodeBlock decodes the whole codes in src into dst and returns the number
// of samples written. A trailing partial code is ignored.
func (c *Codec) DecodeBlock(dst, src []byte) int {
	stride := c.Stride()
	n := len(src) / stride
	for i := 0; i < n; i++ {
		var code uint32
		switch stride {
		case 1:
			code = uint32(src[i])
		case 2:
			code = uint32(binary.BigEndian.Uint16(src[i*2:]))
		case 4:
			code = binary.BigEndian.Uint32(src[i*4:]) & 0x00ffffff
		}
		dst[i] = c.Decode(code)
	}
	return n
}
