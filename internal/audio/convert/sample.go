package convert

import "encoding/binary"

// SignedToU8 maps a signed sample of the given bit depth to an unsigned
// 8-bit sample by keeping its top byte and flipping the sign bit.
func SignedToU8(v int, bitDepth int) uint8 {
	switch {
	case bitDepth > 8:
		v >>= bitDepth - 8
	case bitDepth < 8:
		v <<= 8 - bitDepth
	}
	return uint8(v) ^ 0x80
}

// MixToU8 averages the channels of one interleaved frame and converts the
// result to unsigned 8 bits.
func MixToU8(frame []int, bitDepth int) uint8 {
	if len(frame) == 1 {
		return SignedToU8(frame[0], bitDepth)
	}
	sum := 0
	for _, v := range frame {
		sum += v
	}
	return SignedToU8(sum/len(frame), bitDepth)
}

// S16LEToU8 downmixes interleaved little-endian 16-bit frames in src into
// unsigned 8-bit mono samples in dst. It converts as many whole frames as fit
// and returns the number of samples written.
func S16LEToU8(dst, src []byte, channels int) int {
	frameSize := 2 * channels
	n := min(len(dst), len(src)/frameSize)
	for i := 0; i < n; i++ {
		frame := src[i*frameSize : (i+1)*frameSize]
		sum := 0
		for ch := 0; ch < channels; ch++ {
			sum += int(int16(binary.LittleEndian.Uint16(frame[ch*2:])))
		}
		dst[i] = SignedToU8(sum/channels, 16)
	}
	return n
}
