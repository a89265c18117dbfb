// Command viewer consumes transcript and analysis events from Kafka and
// shows them in the browser over a websocket.
package main

import (
	"context"
	"embed"
	"encoding/json"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"speech-to-data/internal/app"
	"speech-to-data/internal/config"
	httpapi "speech-to-data/internal/http"
	"speech-to-data/internal/live"
	"speech-to-data/internal/observability/metrics"
	"speech-to-data/internal/server"
)

//go:embed static/*
var staticFiles embed.FS

type envelope struct {
	EventType string `json:"eventType"`
	PhraseID  string `json:"phraseId,omitempty"`
	Text      string `json:"text,omitempty"`
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "viewer: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "Path to YAML config file")
	addr := flag.String("http-addr", ":8081", "HTTP listen address")
	since := flag.Duration("since", time.Hour, "Replay events newer than this")
	flag.Parse()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		return err
	}
	cfg.Service.HTTPAddr = *addr
	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("no Kafka brokers configured (KAFKA_BROKERS)")
	}

	a := app.New(cfg, "viewer")
	hub := live.NewHub(metrics.DefaultMetrics)
	a.RegisterStatus("live", func() map[string]any {
		return map[string]any{"clients": hub.Clients()}
	})

	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return err
	}
	servers := server.New(a, httpapi.Options{
		Live:   hub,
		Static: http.FileServer(http.FS(staticFS)),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	for _, topic := range []string{cfg.Kafka.TopicTranscript, cfg.Kafka.TopicAnalysis} {
		g.Go(func() error {
			consume(gctx, hub, cfg.Kafka.Brokers, topic, *since)
			return nil
		})
	}
	servers.Go(g)
	g.Go(func() error {
		<-gctx.Done()
		a.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		servers.Shutdown(shutdownCtx)
		return nil
	})

	log.Info().
		Str("addr", *addr).
		Strs("brokers", cfg.Kafka.Brokers).
		Msg("Viewer started")
	return g.Wait()
}

func consume(ctx context.Context, hub *live.Hub, brokers []string, topic string, since time.Duration) {
	// Partition reader without a consumer group.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-since)); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("Failed to seek, reading from the current offset")
	}
	log.Info().Str("topic", topic).Msg("Consuming from Kafka")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Str("topic", topic).Msg("Kafka read error")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		var env envelope
		if err := json.Unmarshal(msg.Value, &env); err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("Skipping malformed event")
			continue
		}
		log.Debug().
			Str("eventType", env.EventType).
			Str("text", truncate(env.Text, 40)).
			Msg("Received event")
		hub.Broadcast(json.RawMessage(msg.Value))
	}
}
