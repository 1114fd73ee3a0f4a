package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Encoding selects how one sample is laid out in a stream. The numeric value
// is written to PSGPCM headers and to the device encoding register.
type Encoding uint16

const (
	EncodingUnknown Encoding = iota
	EncodingU8
	EncodingPCM1
	EncodingPCM2
	EncodingPCM3
	EncodingPAM2
	EncodingPAM3
)

var encodingNames = map[Encoding]string{
	EncodingU8:   "U8",
	EncodingPCM1: "PCM1",
	EncodingPCM2: "PCM2",
	EncodingPCM3: "PCM3",
	EncodingPAM2: "PAM2",
	EncodingPAM3: "PAM3",
}

func (e Encoding) String() string {
	if s, ok := encodingNames[e]; ok {
		return s
	}
	return "?"
}

// Stride returns the number of bytes one sample occupies, or 0 for an
// unknown encoding.
func (e Encoding) Stride() int {
	switch e {
	case EncodingU8, EncodingPCM1:
		return 1
	case EncodingPCM2, EncodingPAM2:
		return 2
	case EncodingPCM3, EncodingPAM3:
		return 4
	}
	return 0
}

// Channels returns the number of PSG voices an encoding drives. Linear
// encodings return 0.
func (e Encoding) Channels() int {
	switch e {
	case EncodingPCM1:
		return 1
	case EncodingPCM2, EncodingPAM2:
		return 2
	case EncodingPCM3, EncodingPAM3:
		return 3
	}
	return 0
}

// IsPSG reports whether e is one of the hardware code encodings.
func (e Encoding) IsPSG() bool {
	return e.Channels() > 0
}

// ParseEncoding parses an encoding name, ignoring case.
func ParseEncoding(s string) (Encoding, error) {
	for e, name := range encodingNames {
		if strings.EqualFold(s, name) {
			return e, nil
		}
	}
	return EncodingUnknown, fmt.Errorf("%w: %q", ErrInvalidEncoding, s)
}

// Format is a container format.
type Format int

const (
	FormatUnknown Format = iota
	FormatWAV
	FormatPSGPCM
	FormatMP3
	FormatFLAC
	// FormatCapture marks a live host recording; it has no container.
	FormatCapture
)

func (f Format) String() string {
	switch f {
	case FormatWAV:
		return "WAV"
	case FormatPSGPCM:
		return "PSGPCM"
	case FormatMP3:
		return "MP3"
	case FormatFLAC:
		return "FLAC"
	case FormatCapture:
		return "capture"
	}
	return "?"
}

var (
	ErrInvalidFormat      = errors.New("invalid format")
	ErrInvalidEncoding    = errors.New("invalid encoding")
	ErrFormatUndetermined = errors.New("format undeterminate")
	ErrNotImplemented     = errors.New("not implemented")
)

type formatArg struct {
	name     string
	format   Format
	encoding Encoding
}

// command line format arguments, each naming a container and its encoding
var formatArgs = []formatArg{
	{"WAV", FormatWAV, EncodingU8},
	{"PCM1", FormatPSGPCM, EncodingPCM1},
	{"PCM2", FormatPSGPCM, EncodingPCM2},
	{"PCM3", FormatPSGPCM, EncodingPCM3},
	{"PAM2", FormatPSGPCM, EncodingPAM2},
	{"PAM3", FormatPSGPCM, EncodingPAM3},
	{"MP3", FormatMP3, EncodingU8},
	{"FLAC", FormatFLAC, EncodingU8},
}

// ParseFormatArg resolves a -i/-o argument such as "wav" or "PAM3" into a
// container format and the encoding it implies.
func ParseFormatArg(arg string) (Format, Encoding, error) {
	if strings.EqualFold(arg, "AU") {
		return FormatUnknown, EncodingUnknown, fmt.Errorf("AU: %w", ErrNotImplemented)
	}
	for _, fa := range formatArgs {
		if strings.EqualFold(arg, fa.name) {
			return fa.format, fa.encoding, nil
		}
	}
	return FormatUnknown, EncodingUnknown, fmt.Errorf("%w: %s", ErrInvalidFormat, arg)
}

// FormatFromPath determines a container format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return FormatWAV, nil
	case ".psgpcm":
		return FormatPSGPCM, nil
	case ".mp3":
		return FormatMP3, nil
	case ".flac":
		return FormatFLAC, nil
	}
	return FormatUnknown, fmt.Errorf("%w: %s", ErrFormatUndetermined, path)
}

// DefaultEncoding is the encoding written to a container when the user did
// not name one.
func (f Format) DefaultEncoding() Encoding {
	switch f {
	case FormatWAV:
		return EncodingU8
	case FormatPSGPCM:
		return EncodingPAM3
	}
	return EncodingUnknown
}

// Target is where a converted stream goes.
type Target int

const (
	TargetDevice Target = iota
	TargetFile
	TargetPreview
)

func (t Target) String() string {
	switch t {
	case TargetDevice:
		return "XP device"
	case TargetFile:
		return "file"
	case TargetPreview:
		return "host audio"
	}
	return "?"
}

// AudioConfig is the resolved description of one conversion run. It is
// built once by the command line and threaded through construction; no
// package keeps it in a global.
type AudioConfig struct {
	InFile   string
	InFormat Format
	InEnc    Encoding

	OutFile   string
	OutFormat Format
	OutEnc    Encoding
	Target    Target

	// Frequency overrides the output sample rate when non-zero.
	Frequency int

	// Capture records from host audio for this long instead of reading InFile.
	Capture time.Duration

	Verbose      int
	Firmware     string
	Device       string
	PollTimeout  time.Duration
	Gain, Offset float64
}

// ResolveOutputEncoding picks the output encoding for a run once the input
// encoding is known.
func (ac *AudioConfig) ResolveOutputEncoding(in Encoding) Encoding {
	if ac.OutEnc != EncodingUnknown {
		return ac.OutEnc
	}
	switch ac.Target {
	case TargetPreview:
		return EncodingU8
	case TargetDevice:
		if in.IsPSG() {
			return in
		}
		return EncodingPAM3
	}
	if d := ac.OutFormat.DefaultEncoding(); d != EncodingUnknown {
		return d
	}
	return in
}
