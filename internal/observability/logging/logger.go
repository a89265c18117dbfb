// Package logging provides structured logging with zerolog.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	Output     string // stderr, stdout
	TimeFormat string
}

// DefaultConfig keeps stdout free for pipeline data.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "json",
		Output:     "stderr",
		TimeFormat: time.RFC3339,
	}
}

// Init initializes the global zerolog logger.
func Init(cfg Config) {
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Logger = New(cfg, writerFor(cfg.Output))
}

// New builds a logger without touching global state.
func New(cfg Config, w io.Writer) zerolog.Logger {
	var output = w
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.Kitchen,
		}
	}
	return zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}

func writerFor(name string) io.Writer {
	if name == "stdout" {
		return os.Stdout
	}
	return os.Stderr
}

// Logger returns the global logger.
func Logger() zerolog.Logger {
	return log.Logger
}

// WithComponent returns a logger with a component tag.
func WithComponent(component string) zerolog.Logger {
	return log.With().
		Str("component", component).
		Logger()
}

// WithPhrase returns a logger with phrase context.
func WithPhrase(sessionId, phraseId string) zerolog.Logger {
	return log.With().
		Str("sessionId", sessionId).
		Str("phraseId", phraseId).
		Logger()
}

// WithAnalysis returns a logger with analysis task context.
func WithAnalysis(runId string, analysisId uint64, kind string) zerolog.Logger {
	return log.With().
		Str("runId", runId).
		Uint64("analysisId", analysisId).
		Str("kind", kind).
		Logger()
}
