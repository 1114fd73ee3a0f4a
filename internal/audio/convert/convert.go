// Package convert turns a buffer of one sample encoding into a buffer of
// another.
package convert

import (
	"fmt"

	"lunaplay/internal/audio/codec"
	"lunaplay/internal/audio/config"
	"lunaplay/internal/audio/stream"
)

// Converter fills dst from the valid part of src and sets dst's length.
// dst must be large enough for every sample of src.
type Converter func(dst, src *stream.Buffer)

// Pass is the converter for identical encodings. The two buffers share
// storage, so only the length is carried over.
func Pass(dst, src *stream.Buffer) {
	dst.SetLen(src.Len())
}

// Encoder returns a converter from unsigned 8-bit samples to c's codes.
func Encoder(c *codec.Codec) Converter {
	return func(dst, src *stream.Buffer) {
		n := c.EncodeBlock(dst.Storage(), src.Bytes())
		dst.SetLen(n)
	}
}

// Decoder returns a converter from c's codes to unsigned 8-bit samples.
func Decoder(c *codec.Codec) Converter {
	return func(dst, src *stream.Buffer) {
		n := c.DecodeBlock(dst.Storage(), src.Bytes())
		dst.SetLen(n)
	}
}

// For selects the converter from src to dst encoding.
func For(src, dst config.Encoding, params codec.Params) (Converter, error) {
	if err := Supported(src, dst); err != nil {
		return nil, err
	}
	if src == dst {
		return Pass, nil
	}

	psg := dst
	if src.IsPSG() {
		psg = src
	}
	c, err := codec.New(psg, params)
	if err != nil {
		return nil, fmt.Errorf("converter %s -> %s: %w", src, dst, err)
	}
	if src == config.EncodingU8 {
		return Encoder(c), nil
	}
	return Decoder(c), nil
}
