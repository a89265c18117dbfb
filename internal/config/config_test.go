package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var configEnvVars = []string{
	"SERVICE_PRINCIPAL", "GRPC_PORT", "HTTP_ADDR", "LOG_LEVEL",
	"AUDIO_SAMPLE_RATE_HZ", "AUDIO_PHRASE_TIMEOUT", "AUDIO_RECORD_TIMEOUT",
	"AUDIO_ENERGY_THRESHOLD", "AUDIO_PIPE",
	"STT_PROVIDER", "STT_MAX_RETRIES",
	"ANALYSIS_MODEL", "ANALYSIS_BUSY_POLICY", "ANALYSIS_KNOWLEDGE_BASE_IDS",
	"TRIGGER_START", "TRIGGER_STOP", "TRIGGER_TEMP_CHECK",
	"KAFKA_ENABLED", "KAFKA_BROKERS", "KAFKA_PRINCIPAL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range configEnvVars {
		os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.Service.Principal != "svc-speech-to-data" {
		t.Errorf("expected default principal 'svc-speech-to-data', got %s", cfg.Service.Principal)
	}
	if cfg.Audio.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate 16000, got %d", cfg.Audio.SampleRateHz)
	}
	if cfg.Audio.PhraseTimeout != 3*time.Second {
		t.Errorf("expected default phrase timeout 3s, got %v", cfg.Audio.PhraseTimeout)
	}
	if cfg.Audio.RecordTimeout != 2*time.Second {
		t.Errorf("expected default record timeout 2s, got %v", cfg.Audio.RecordTimeout)
	}
	if cfg.Audio.PollInterval != 250*time.Millisecond {
		t.Errorf("expected default poll interval 250ms, got %v", cfg.Audio.PollInterval)
	}
	if cfg.Audio.EnergyThreshold != 1000 {
		t.Errorf("expected default energy threshold 1000, got %d", cfg.Audio.EnergyThreshold)
	}
	if cfg.STT.Provider != "mock" {
		t.Errorf("expected default STT provider 'mock', got %s", cfg.STT.Provider)
	}
	if cfg.Analysis.BusyPolicy != BusyPolicyRetain {
		t.Errorf("expected default busy policy 'retain', got %s", cfg.Analysis.BusyPolicy)
	}
	if cfg.Triggers.Start != "Start analysis" || cfg.Triggers.Stop != "Stop analysis" {
		t.Errorf("unexpected default triggers %q / %q", cfg.Triggers.Start, cfg.Triggers.Stop)
	}
	if cfg.Triggers.TempCheck != "" {
		t.Errorf("expected temp-check trigger disabled by default, got %q", cfg.Triggers.TempCheck)
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	os.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	os.Setenv("GRPC_PORT", "9999")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("AUDIO_SAMPLE_RATE_HZ", "8000")
	os.Setenv("AUDIO_PHRASE_TIMEOUT", "5s")
	os.Setenv("AUDIO_PIPE", "true")
	os.Setenv("STT_PROVIDER", "google")
	os.Setenv("ANALYSIS_BUSY_POLICY", "discard")
	os.Setenv("ANALYSIS_KNOWLEDGE_BASE_IDS", "kb-1, kb-2")
	os.Setenv("KAFKA_BROKERS", "b1:9092,b2:9092")
	defer clearEnv(t)

	cfg := Load()

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.Service.GRPCPort != "9999" {
		t.Errorf("expected port '9999', got %s", cfg.Service.GRPCPort)
	}
	if cfg.Audio.SampleRateHz != 8000 {
		t.Errorf("expected sample rate 8000, got %d", cfg.Audio.SampleRateHz)
	}
	if cfg.Audio.PhraseTimeout != 5*time.Second {
		t.Errorf("expected phrase timeout 5s, got %v", cfg.Audio.PhraseTimeout)
	}
	if !cfg.Audio.Pipe {
		t.Error("expected pipe mode enabled")
	}
	if cfg.STT.Provider != "google" {
		t.Errorf("expected STT provider 'google', got %s", cfg.STT.Provider)
	}
	if cfg.Analysis.BusyPolicy != BusyPolicyDiscard {
		t.Errorf("expected busy policy 'discard', got %s", cfg.Analysis.BusyPolicy)
	}
	if len(cfg.Analysis.KnowledgeBaseIDs) != 2 || cfg.Analysis.KnowledgeBaseIDs[1] != "kb-2" {
		t.Errorf("expected knowledge base ids [kb-1 kb-2], got %v", cfg.Analysis.KnowledgeBaseIDs)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("expected 2 brokers, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	clearEnv(t)
	os.Setenv("AUDIO_SAMPLE_RATE_HZ", "not-a-number")
	os.Setenv("AUDIO_PHRASE_TIMEOUT", "invalid")
	os.Setenv("AUDIO_PIPE", "invalid")
	os.Setenv("STT_MAX_RETRIES", "invalid")
	defer clearEnv(t)

	cfg := Load()

	if cfg.Audio.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate on invalid input, got %d", cfg.Audio.SampleRateHz)
	}
	if cfg.Audio.PhraseTimeout != 3*time.Second {
		t.Errorf("expected default phrase timeout on invalid input, got %v", cfg.Audio.PhraseTimeout)
	}
	if cfg.Audio.Pipe {
		t.Error("expected default pipe mode on invalid input")
	}
	if cfg.STT.MaxRetries != 3 {
		t.Errorf("expected default max retries on invalid input, got %d", cfg.STT.MaxRetries)
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	clearEnv(t)
	os.Setenv("SERVICE_PRINCIPAL", "my-service")
	defer clearEnv(t)

	cfg := Load()

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	os.Setenv("TRIGGER_STOP", "end report")
	defer clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
audio:
  phrase_timeout: 4s
  energy_threshold: -1
analysis:
  model: llama3
  busy_policy: discard
triggers:
  start: begin report
  stop: stop report
  temp_check: status check
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Audio.PhraseTimeout != 4*time.Second {
		t.Errorf("expected phrase timeout 4s, got %v", cfg.Audio.PhraseTimeout)
	}
	if cfg.Audio.EnergyThreshold != -1 {
		t.Errorf("expected energy threshold -1, got %d", cfg.Audio.EnergyThreshold)
	}
	// Values absent from the file keep their defaults.
	if cfg.Audio.RecordTimeout != 2*time.Second {
		t.Errorf("expected default record timeout, got %v", cfg.Audio.RecordTimeout)
	}
	if cfg.Analysis.Model != "llama3" {
		t.Errorf("expected model 'llama3', got %s", cfg.Analysis.Model)
	}
	if cfg.Triggers.Start != "begin report" {
		t.Errorf("expected start trigger from file, got %q", cfg.Triggers.Start)
	}
	// Environment wins over the file.
	if cfg.Triggers.Stop != "end report" {
		t.Errorf("expected stop trigger from env, got %q", cfg.Triggers.Stop)
	}
	if cfg.Triggers.TempCheck != "status check" {
		t.Errorf("expected temp-check trigger from file, got %q", cfg.Triggers.TempCheck)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero sample rate", func(c *Config) { c.Audio.SampleRateHz = 0 }, "sample_rate_hz"},
		{"zero phrase timeout", func(c *Config) { c.Audio.PhraseTimeout = 0 }, "phrase_timeout"},
		{"unknown provider", func(c *Config) { c.STT.Provider = "vosk" }, "stt.provider"},
		{"unknown busy policy", func(c *Config) { c.Analysis.BusyPolicy = "queue" }, "busy_policy"},
		{"kafka without brokers", func(c *Config) { c.Kafka.Enabled = true }, "kafka.brokers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestWarnings_EmptyTriggers(t *testing.T) {
	cfg := Default()
	cfg.Analysis.APIKey = "key"
	if w := cfg.Warnings(); len(w) != 0 {
		t.Errorf("expected no warnings, got %v", w)
	}

	cfg.Triggers.Start = ""
	cfg.Triggers.Stop = ""
	cfg.Analysis.KnowledgeBaseIDs = nil
	if w := cfg.Warnings(); len(w) != 3 {
		t.Errorf("expected 3 warnings, got %d: %v", len(w), w)
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			if tt.envValue != "" {
				os.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}
			defer os.Unsetenv(key)

			got := envOrDefaultBool(key, tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}

func TestEnvOrDefaultList(t *testing.T) {
	os.Setenv("TEST_LIST_VAR", " a ,b,, c ")
	defer os.Unsetenv("TEST_LIST_VAR")

	got := envOrDefaultList("TEST_LIST_VAR", nil)
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("expected [a b c], got %v", got)
	}
	if def := envOrDefaultList("TEST_LIST_UNSET", []string{"x"}); len(def) != 1 || def[0] != "x" {
		t.Errorf("expected default list, got %v", def)
	}
}
