package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"lunaplay/internal/audio/capture"
	"lunaplay/internal/audio/codec"
	"lunaplay/internal/audio/config"
	"lunaplay/internal/audio/container"
	"lunaplay/internal/audio/pipeline"
	"lunaplay/internal/audio/playback"
	"lunaplay/internal/audio/stream"
	"lunaplay/internal/xp"
	settings "lunaplay/pkg/config"
	"lunaplay/pkg/logger"
)

var ErrTerminalOutput = errors.New("refusing to write audio to a terminal")

func main() {
	env, envErr := settings.Load(".env")

	cfg, err := parseArgs(os.Args[1:], env, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	logger.Init(cfg.Verbose, env.LogLevel)
	if envErr != nil {
		log.Fatal().Err(envErr).Msg("Invalid environment")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid arguments")
	}

	log.Info().
		Int("verbose", cfg.Verbose).
		Str("in_file", cfg.InFile).
		Str("in_format", cfg.InFormat.String()).
		Str("in_encoding", cfg.InEnc.String()).
		Str("target", cfg.Target.String()).
		Str("out_file", cfg.OutFile).
		Str("out_format", cfg.OutFormat.String()).
		Str("out_encoding", cfg.OutEnc.String()).
		Int("freq", cfg.Frequency).
		Msg("Arguments")

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("lunaplay failed")
	}
}

func run(cfg config.AudioConfig) error {
	src, err := openSource(cfg)
	if err != nil {
		return err
	}

	in := src.Descriptor()
	desc := stream.Descriptor{
		Format:     cfg.OutFormat,
		Encoding:   cfg.ResolveOutputEncoding(in.Encoding),
		SampleRate: in.SampleRate,
	}
	if cfg.Frequency != 0 {
		desc.SampleRate = cfg.Frequency
	}

	dst, err := openSink(cfg, desc)
	if err != nil {
		src.Close()
		return err
	}

	log.Info().
		Str("in_encoding", in.Encoding.String()).
		Int("in_freq", in.SampleRate).
		Str("out_encoding", desc.Encoding.String()).
		Int("out_freq", desc.SampleRate).
		Msg("Running")

	p, err := pipeline.New(src, dst, pipeline.Options{
		Params: &codec.Params{Gain: cfg.Gain, Offset: cfg.Offset},
	})
	if err != nil {
		return errors.Join(err, src.Close(), dst.Close())
	}
	return p.Run()
}

func openSource(cfg config.AudioConfig) (stream.Source, error) {
	if cfg.Capture > 0 {
		return capture.New(cfg.Frequency, cfg.Capture)
	}

	var r io.Reader = os.Stdin
	if cfg.InFile == "-" && term.IsTerminal(int(os.Stdin.Fd())) {
		log.Warn().Msg("Reading audio from a terminal")
	}
	if cfg.InFile != "-" {
		f, err := os.Open(cfg.InFile)
		if err != nil {
			return nil, fmt.Errorf("open: %w", err)
		}
		r = f
	}
	log.Debug().Str("file", cfg.InFile).Str("format", cfg.InFormat.String()).Msg("Reading")

	src, err := container.OpenSource(cfg.InFormat, r)
	if err != nil {
		if r != os.Stdin {
			r.(io.Closer).Close()
		}
		return nil, err
	}
	if cfg.InEnc != config.EncodingUnknown && cfg.InEnc != src.Descriptor().Encoding {
		log.Warn().
			Str("requested", cfg.InEnc.String()).
			Str("found", src.Descriptor().Encoding.String()).
			Msg("Input encoding taken from the file header")
	}
	return src, nil
}

func openSink(cfg config.AudioConfig, desc stream.Descriptor) (stream.Sink, error) {
	switch cfg.Target {
	case config.TargetPreview:
		return playback.New(desc)

	case config.TargetDevice:
		if cfg.Firmware == "" {
			return nil, xp.ErrNoFirmware
		}
		fw, err := xp.LoadFirmware(cfg.Firmware)
		if err != nil {
			return nil, err
		}
		return xp.Open(xp.Options{
			Path:        cfg.Device,
			Firmware:    fw,
			Encoding:    desc.Encoding,
			SampleRate:  desc.SampleRate,
			PollTimeout: cfg.PollTimeout,
		})
	}

	var w io.Writer = os.Stdout
	if cfg.OutFile == "-" && term.IsTerminal(int(os.Stdout.Fd())) {
		return nil, ErrTerminalOutput
	}
	if cfg.OutFile != "-" {
		f, err := os.OpenFile(cfg.OutFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o666)
		if err != nil {
			return nil, fmt.Errorf("open: %w", err)
		}
		w = f
	}
	log.Debug().Str("file", cfg.OutFile).Str("format", desc.Format.String()).Msg("Writing")

	dst, err := container.OpenSink(w, desc)
	if err != nil {
		if w != os.Stdout {
			w.(io.Closer).Close()
		}
		return nil, err
	}
	return dst, nil
}
