package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"lunaplay/internal/audio/codec"
	"lunaplay/internal/audio/config"
	"lunaplay/internal/xp"
	settings "lunaplay/pkg/config"
)

var (
	ErrMissingInput     = errors.New("missing input file")
	ErrInvalidFrequency = errors.New("invalid frequency")
)

const defaultCaptureRate = 16000

// countFlag counts how often a boolean flag is given, for -v -v.
type countFlag int

func (c *countFlag) String() string   { return strconv.Itoa(int(*c)) }
func (c *countFlag) Set(string) error { *c++; return nil }
func (c *countFlag) IsBoolFlag() bool { return true }

// parseFrequency accepts a plain or fractional rate, with a k suffix
// meaning thousands ("22.05k").
func parseFrequency(s string) (int, error) {
	mult := 1.0
	if rest, ok := strings.CutSuffix(s, "k"); ok {
		s, mult = rest, 1000
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
	}
	return int(f * mult), nil
}

func usage(fs *flag.FlagSet) func() {
	return func() {
		out := fs.Output()
		fmt.Fprintf(out, "Play PCM on LUNA-I\n%s [options] <file|->\n\noptions\n", fs.Name())
		fs.PrintDefaults()
		fmt.Fprintln(out, "\nformats: WAV PCM1 PCM2 PCM3 PAM2 PAM3 (input also MP3 FLAC)")
	}
}

// parseArgs resolves the command line against the environment settings into
// one AudioConfig.
func parseArgs(args []string, env settings.Settings, errOut io.Writer) (config.AudioConfig, error) {
	var (
		cfg         config.AudioConfig
		in, out     string
		verbose     countFlag
		freq        string
		preview     bool
		pollTimeout time.Duration
	)

	fs := flag.NewFlagSet("lunaplay", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.Usage = usage(fs)
	fs.StringVar(&in, "i", "", "override input `format`")
	fs.StringVar(&out, "o", "", "output `format`")
	fs.StringVar(&cfg.OutFile, "O", "", "output `file` (- for stdout); default is the XP device")
	fs.StringVar(&freq, "f", "", "output `frequency` in Hz, k suffix for kHz; default is the input rate")
	fs.Var(&verbose, "v", "verbose, repeat for more")
	fs.StringVar(&cfg.Firmware, "F", env.Firmware, "XP firmware `file`")
	fs.StringVar(&cfg.Device, "device", env.Device, "XP device `path`")
	fs.BoolVar(&preview, "preview", false, "play through host audio instead of the XP")
	fs.DurationVar(&cfg.Capture, "capture", 0, "record from host audio for `duration` instead of reading a file")
	fs.Float64Var(&cfg.Gain, "gain", 1, "table gain")
	fs.Float64Var(&cfg.Offset, "offset", 0, "table offset")
	fs.DurationVar(&pollTimeout, "poll-timeout", env.PollTimeout, "give up on an unresponsive XP after `duration` (0 waits forever)")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if err := (codec.Params{Gain: cfg.Gain, Offset: cfg.Offset}).Validate(); err != nil {
		return cfg, err
	}

	cfg.Verbose = int(verbose)
	cfg.PollTimeout = pollTimeout
	if cfg.Device == "" {
		cfg.Device = xp.DefaultPath
	}

	if freq != "" {
		f, err := parseFrequency(freq)
		if err != nil {
			return cfg, err
		}
		cfg.Frequency = f
	}

	if cfg.Capture > 0 {
		cfg.InFile = "capture"
		cfg.InFormat = config.FormatCapture
		cfg.InEnc = config.EncodingU8
		if cfg.Frequency == 0 {
			cfg.Frequency = defaultCaptureRate
		}
	} else {
		if fs.NArg() < 1 {
			return cfg, ErrMissingInput
		}
		cfg.InFile = fs.Arg(0)
		if in != "" {
			f, enc, err := config.ParseFormatArg(in)
			if err != nil {
				return cfg, fmt.Errorf("input: %w", err)
			}
			cfg.InFormat, cfg.InEnc = f, enc
		} else {
			f, err := config.FormatFromPath(cfg.InFile)
			if err != nil {
				return cfg, fmt.Errorf("input: %w", err)
			}
			cfg.InFormat = f
		}
	}

	switch {
	case preview:
		cfg.Target = config.TargetPreview
	case cfg.OutFile != "":
		cfg.Target = config.TargetFile
	default:
		cfg.Target = config.TargetDevice
	}

	if out != "" {
		f, enc, err := config.ParseFormatArg(out)
		if err != nil {
			return cfg, fmt.Errorf("output: %w", err)
		}
		cfg.OutFormat, cfg.OutEnc = f, enc
	} else if cfg.Target == config.TargetFile {
		f, err := config.FormatFromPath(cfg.OutFile)
		if err != nil {
			return cfg, fmt.Errorf("output: %w", err)
		}
		cfg.OutFormat = f
	}
	if cfg.Target == config.TargetPreview && cfg.OutEnc != config.EncodingUnknown && cfg.OutEnc != config.EncodingU8 {
		return cfg, fmt.Errorf("preview plays %s only: %w", config.EncodingU8, config.ErrInvalidEncoding)
	}
	return cfg, nil
}
