package convert

import (
	"errors"
	"fmt"

	"lunaplay/internal/audio/config"
)

var ErrUnsupportedPair = errors.New("unsupported encoding pair")

// Supported reports whether a conversion from src to dst exists. Identical
// encodings always pass; otherwise exactly one side must be U8 and the other
// a PSG encoding.
func Supported(src, dst config.Encoding) error {
	if src == config.EncodingUnknown || dst == config.EncodingUnknown {
		return fmt.Errorf("%w: %s -> %s", ErrUnsupportedPair, src, dst)
	}
	if src == dst {
		return nil
	}
	switch {
	case src == config.EncodingU8 && dst.IsPSG():
		return nil
	case src.IsPSG() && dst == config.EncodingU8:
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrUnsupportedPair, src, dst)
}
