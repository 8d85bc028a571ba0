package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/gocheetah/internal/config"
	"github.com/obiente/translate/gocheetah/internal/transcribe"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	input := flag.String("input_audio_path", "", "path to a mono 16-bit WAV file")
	flag.StringVar(&cfg.AccessKey, "access_key", cfg.AccessKey, "AccessKey obtained from Picovoice Console")
	flag.StringVar(&cfg.ModelPath, "model_path", cfg.ModelPath, "path to the model file")
	flag.StringVar(&cfg.LibraryPath, "library_path", cfg.LibraryPath, "path to the shared library")
	endpoint := flag.Float64("endpoint_duration", float64(cfg.EndpointDuration), "seconds of silence that end an utterance")
	flag.BoolVar(&cfg.EnableAutomaticPunctuation, "enable_automatic_punctuation", cfg.EnableAutomaticPunctuation, "insert punctuation")
	verbose := flag.Bool("verbose", false, "debug logging")
	flag.Parse()
	cfg.EndpointDuration = float32(*endpoint)

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel)
	if *verbose {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	}

	if *input == "" {
		flag.Usage()
		os.Exit(2)
	}

	c, err := cfg.Builder().Build()
	if err != nil {
		log.Fatal().Err(err).Msg("engine init failed")
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	text, err := transcribe.File(ctx, c, *input)
	if err != nil {
		c.Close()
		log.Fatal().Err(err).Msg("transcription failed")
	}
	fmt.Println(text)
}
