// Command transcriber captures PCM audio, segments it into phrases and keeps
// a live transcript on stdout.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"speech-to-data/internal/app"
	"speech-to-data/internal/audio"
	"speech-to-data/internal/capture"
	"speech-to-data/internal/config"
	"speech-to-data/internal/events"
	httpapi "speech-to-data/internal/http"
	"speech-to-data/internal/live"
	"speech-to-data/internal/observability/metrics"
	"speech-to-data/internal/server"
	"speech-to-data/internal/service/segment"
	"speech-to-data/internal/service/stt"
	"speech-to-data/internal/service/stt/google"
	"speech-to-data/internal/service/stt/mock"
	"speech-to-data/internal/service/stt/whisperhttp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "transcriber: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "Path to YAML config file")
	input := flag.String("input", "-", "Audio input: raw 16-bit mono PCM or WAV file, - for stdin")
	realtime := flag.Bool("realtime", false, "Pace input reads to real time")
	provider := flag.String("provider", "", "Transcription provider: mock, google, whisper-http")
	endpoint := flag.String("endpoint", "", "whisper-http inference endpoint")
	language := flag.String("language", "", "Transcription language")
	energy := flag.Int("energy_threshold", 0, "Energy level for voice detection, negative to calibrate")
	recordTimeout := flag.Duration("record_timeout", 0, "Longest phrase handed over in one piece")
	phraseTimeout := flag.Duration("phrase_timeout", 0, "Pause that starts a new transcript line")
	pipe := flag.Bool("pipe", false, "Print only new text, one update per line")
	timestamp := flag.Bool("timestamp", false, "Prefix pipe output with a timestamp")
	httpAddr := flag.String("http-addr", "", "HTTP listen address for metrics, status and /ws")
	grpcPort := flag.String("grpc-port", "", "gRPC control port")
	flag.Parse()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		return err
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "provider":
			cfg.STT.Provider = *provider
		case "endpoint":
			cfg.STT.Endpoint = *endpoint
		case "language":
			cfg.Audio.Language = *language
		case "energy_threshold":
			cfg.Audio.EnergyThreshold = *energy
		case "record_timeout":
			cfg.Audio.RecordTimeout = *recordTimeout
		case "phrase_timeout":
			cfg.Audio.PhraseTimeout = *phraseTimeout
		case "pipe":
			cfg.Audio.Pipe = *pipe
		case "timestamp":
			cfg.Audio.Timestamp = *timestamp
		case "http-addr":
			cfg.Service.HTTPAddr = *httpAddr
		case "grpc-port":
			cfg.Service.GRPCPort = *grpcPort
		}
	})
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a := app.New(cfg, "transcriber")
	m := metrics.DefaultMetrics

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t, err := newTranscriber(ctx, cfg)
	if err != nil {
		return err
	}
	if c, ok := t.(interface{ Close() error }); ok {
		defer c.Close()
	}
	transcriber := stt.Instrument(t, m)

	src, err := capture.Open(*input, capture.Config{
		SampleRateHz:    cfg.Audio.SampleRateHz,
		FrameDuration:   cfg.Audio.ChunkDuration,
		EnergyThreshold: cfg.Audio.EnergyThreshold,
		RecordTimeout:   cfg.Audio.RecordTimeout,
		PhraseTimeout:   cfg.Audio.PhraseTimeout,
		Realtime:        *realtime,
	}, m)
	if err != nil {
		return err
	}
	defer src.Close()

	publisher := events.New(&events.Config{
		Enabled:         cfg.Kafka.Enabled,
		Brokers:         cfg.Kafka.Brokers,
		TopicTranscript: cfg.Kafka.TopicTranscript,
		TopicAnalysis:   cfg.Kafka.TopicAnalysis,
		Principal:       cfg.Kafka.Principal,
		MaxRetries:      3,
	})
	defer publisher.Close()

	queue := audio.NewChunkQueue(m)
	engine := segment.NewEngine(segment.Config{
		SessionID:     a.RunID,
		SampleRateHz:  cfg.Audio.SampleRateHz,
		Language:      cfg.Audio.Language,
		PhraseTimeout: cfg.Audio.PhraseTimeout,
		PollInterval:  cfg.Audio.PollInterval,
		MinAudio:      cfg.Audio.MinAudio,
	}, queue, transcriber, m)
	printer := segment.NewPrinter(os.Stdout, cfg.Audio.Pipe, cfg.Audio.Timestamp)
	hub := live.NewHub(m)

	a.RegisterStatus("segment", func() map[string]any {
		return map[string]any{
			"provider":   transcriber.Name(),
			"lines":      len(engine.Transcript()),
			"queueDepth": queue.Len(),
		}
	})
	a.RegisterStatus("live", func() map[string]any {
		return map[string]any{"clients": hub.Clients()}
	})

	emit := func(u *segment.TranscriptUpdate) {
		if err := printer.Print(u); err != nil {
			log.Error().Err(err).Msg("Failed to print transcript")
		}
		ev := u.Event(a.RunID)
		hub.Broadcast(ev)
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		if err := publisher.PublishTranscript(pubCtx, ev); err != nil {
			log.Error().Err(err).Str("phraseId", u.PhraseID).Msg("Failed to publish transcript update")
		}
	}

	servers := server.New(a, httpapi.Options{Live: hub})
	if err := a.Start(); err != nil {
		return err
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	go hub.Run(hubCtx)

	g, gctx := errgroup.WithContext(ctx)
	pipelineDone := make(chan struct{})
	g.Go(func() error {
		defer close(pipelineDone)
		p, pctx := errgroup.WithContext(gctx)
		engineCtx, stopEngine := context.WithCancel(pctx)
		defer stopEngine()

		p.Go(func() error {
			// The engine flushes what is still queued once capture ends.
			defer stopEngine()
			err := src.Run(pctx, queue)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		p.Go(func() error {
			return engine.Run(engineCtx, emit)
		})
		return p.Wait()
	})
	servers.Go(g)
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-pipelineDone:
		}
		a.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
		defer cancel()
		servers.Shutdown(shutdownCtx)
		stopHub()
		return nil
	})

	err = g.Wait()
	if perr := printer.Final(engine.Transcript()); perr != nil {
		log.Error().Err(perr).Msg("Failed to print final transcript")
	}
	return err
}

func newTranscriber(ctx context.Context, cfg *config.Config) (stt.Transcriber, error) {
	switch cfg.STT.Provider {
	case "google":
		gc := google.DefaultConfig()
		gc.SampleRateHz = cfg.Audio.SampleRateHz
		return google.New(ctx, gc)
	case "whisper-http":
		return whisperhttp.NewClient(whisperhttp.Config{
			Endpoint:     cfg.STT.Endpoint,
			SampleRateHz: cfg.Audio.SampleRateHz,
			Timeout:      cfg.STT.Timeout,
			MaxRetries:   cfg.STT.MaxRetries,
		})
	case "mock":
		log.Warn().Msg("Using mock transcriber")
		return mock.New(), nil
	default:
		return nil, fmt.Errorf("unknown STT provider %q", cfg.STT.Provider)
	}
}
