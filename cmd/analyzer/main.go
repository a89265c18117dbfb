// Command analyzer reads transcript lines, collects the text between the
// start and stop phrases and sends it to the analysis backend.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"speech-to-data/internal/app"
	"speech-to-data/internal/config"
	"speech-to-data/internal/events"
	httpapi "speech-to-data/internal/http"
	"speech-to-data/internal/live"
	"speech-to-data/internal/models"
	"speech-to-data/internal/observability/metrics"
	"speech-to-data/internal/server"
	"speech-to-data/internal/service/analysis"
	"speech-to-data/internal/service/llm"
	llmmock "speech-to-data/internal/service/llm/mock"
	"speech-to-data/internal/service/llm/openai"
	"speech-to-data/internal/service/trigger"
	"speech-to-data/internal/sink"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "analyzer: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "Path to YAML config file")
	input := flag.String("input", "-", "Line input file, - for stdin")
	baseURL := flag.String("base-url", "", "Analysis backend base URL")
	model := flag.String("model", "", "Analysis model")
	resultsDir := flag.String("results-dir", "", "Directory for result records")
	busyPolicy := flag.String("busy-policy", "", "What a stop phrase does while busy: retain or discard")
	tempCheck := flag.String("temp-check", "", "Phrase that requests a temporary analysis")
	summarize := flag.Bool("summarize", false, "Request a short summary of every final analysis")
	offline := flag.Bool("offline", false, "Use a canned analyzer instead of the backend")
	httpAddr := flag.String("http-addr", "", "HTTP listen address for metrics, status and /ws")
	grpcPort := flag.String("grpc-port", "", "gRPC control port")
	flag.Parse()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		return err
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "base-url":
			cfg.Analysis.BaseURL = *baseURL
		case "model":
			cfg.Analysis.Model = *model
		case "results-dir":
			cfg.Analysis.ResultsDir = *resultsDir
		case "busy-policy":
			cfg.Analysis.BusyPolicy = *busyPolicy
		case "temp-check":
			cfg.Triggers.TempCheck = *tempCheck
		case "summarize":
			cfg.Analysis.Summarize = *summarize
		case "http-addr":
			cfg.Service.HTTPAddr = *httpAddr
		case "grpc-port":
			cfg.Service.GRPCPort = *grpcPort
		}
	})
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a := app.New(cfg, "analyzer")
	m := metrics.DefaultMetrics

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in, err := openInput(*input)
	if err != nil {
		return err
	}
	defer in.Close()

	results, err := sink.NewFileSink(cfg.Analysis.ResultsDir, a.RunID)
	if err != nil {
		return err
	}

	publisher := events.New(&events.Config{
		Enabled:         cfg.Kafka.Enabled,
		Brokers:         cfg.Kafka.Brokers,
		TopicTranscript: cfg.Kafka.TopicTranscript,
		TopicAnalysis:   cfg.Kafka.TopicAnalysis,
		Principal:       cfg.Kafka.Principal,
		MaxRetries:      3,
	})
	defer publisher.Close()

	hub := live.NewHub(m)
	console := &console{w: os.Stdout}

	var backend llm.Analyzer
	if *offline {
		log.Warn().Msg("Using canned analyzer")
		backend = llmmock.New()
	} else {
		backend = openai.New(openai.Config{
			BaseURL: cfg.Analysis.BaseURL,
			APIKey:  cfg.Analysis.APIKey,
			Model:   cfg.Analysis.Model,
		}, nil)
	}

	gate := analysis.NewGate()
	dispatcher := analysis.NewDispatcher(analysis.Config{
		RunID:            a.RunID,
		Model:            cfg.Analysis.Model,
		Endpoint:         cfg.Analysis.BaseURL,
		KnowledgeBaseIDs: cfg.Analysis.KnowledgeBaseIDs,
		Prompts: analysis.Prompts{
			Collection: cfg.Analysis.Collection,
			Final:      cfg.Analysis.Prompt,
			Temporary:  cfg.Analysis.TempPrompt,
			Summary:    cfg.Analysis.SummaryPrompt,
		},
		Summarize: cfg.Analysis.Summarize,
		Timeout:   cfg.Analysis.Timeout,
	}, gate, backend, results, analysis.Options{
		Metrics: m,
		Notify:  console.println,
		OnResult: func(ev models.AnalysisResult) {
			hub.Broadcast(ev)
			pubCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := publisher.PublishAnalysis(pubCtx, ev); err != nil {
				log.Error().Err(err).Uint64("analysisId", ev.AnalysisID).Msg("Failed to publish analysis result")
			}
		},
	})

	collector := trigger.NewCollector(trigger.Triggers{
		Start:     cfg.Triggers.Start,
		Stop:      cfg.Triggers.Stop,
		TempCheck: cfg.Triggers.TempCheck,
	}, cfg.Analysis.BusyPolicy, dispatcher, m)

	a.RegisterStatus("collector", func() map[string]any {
		return map[string]any{
			"state":        collector.State().String(),
			"pendingBytes": len(collector.Pending()),
		}
	})
	a.RegisterStatus("analysis", func() map[string]any {
		st := dispatcher.Status()
		return map[string]any{
			"inFlight":  st.InFlight,
			"lastId":    st.LastID,
			"completed": st.Completed,
			"failed":    st.Failed,
		}
	})

	servers := server.New(a, httpapi.Options{Live: hub})
	if err := a.Start(); err != nil {
		return err
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	go hub.Run(hubCtx)

	g, gctx := errgroup.WithContext(ctx)
	linesDone := make(chan struct{})
	g.Go(func() error {
		defer close(linesDone)
		return readLines(gctx, in, func(line string) {
			console.println(strings.TrimSpace(line))
			for _, ev := range collector.OnLine(line) {
				console.println(ev.Message())
				log.Info().
					Str("notice", string(ev.Kind)).
					Uint64("analysisId", ev.AnalysisID).
					Str("state", collector.State().String()).
					Msg("Collector notice")
			}
		})
	})
	servers.Go(g)
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-linesDone:
		}
		dispatcher.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
		defer cancel()
		if gate.Busy() {
			log.Info().Uint64("analysisId", gate.LastID()).Msg("Waiting for in-flight analysis")
		}
		if err := dispatcher.Wait(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("In-flight analysis did not finish before shutdown timeout")
		}

		a.Shutdown()
		servers.Shutdown(shutdownCtx)
		stopHub()
		return nil
	})

	return g.Wait()
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open line input: %w", err)
	}
	return f, nil
}

// readLines calls fn for every line of r, without its line terminator,
// until EOF or ctx is done. Lines have no length limit.
func readLines(ctx context.Context, r io.Reader, fn func(string)) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		br := bufio.NewReader(r)
		for {
			line, err := br.ReadString('\n')
			if line != "" {
				select {
				case lines <- strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r"):
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr <- err
				}
				return
			}
		}
	}()

	log.Info().Msg("Listening for input")
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return fmt.Errorf("read line input: %w", err)
				default:
					return nil
				}
			}
			fn(line)
		}
	}
}

// console serialises operator output from the line loop and task goroutines.
type console struct {
	mu sync.Mutex
	w  io.Writer
}

func (c *console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, s)
}
