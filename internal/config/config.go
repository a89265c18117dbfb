package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Busy policies for a stop trigger that arrives while an analysis is in flight.
const (
	BusyPolicyRetain  = "retain"
	BusyPolicyDiscard = "discard"
)

// Config is the process-wide, read-only configuration shared by the transcriber
// and the analyzer commands.
type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	Audio         AudioConfig         `yaml:"audio"`
	STT           STTConfig           `yaml:"stt"`
	Analysis      AnalysisConfig      `yaml:"analysis"`
	Triggers      TriggerConfig       `yaml:"triggers"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServiceConfig struct {
	Principal       string        `yaml:"principal"`
	GRPCPort        string        `yaml:"grpc_port"`
	HTTPAddr        string        `yaml:"http_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AudioConfig drives capture and segmentation.
type AudioConfig struct {
	SampleRateHz    int           `yaml:"sample_rate_hz"`
	Language        string        `yaml:"language"`
	PhraseTimeout   time.Duration `yaml:"phrase_timeout"`
	RecordTimeout   time.Duration `yaml:"record_timeout"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	MinAudio        time.Duration `yaml:"min_audio"`
	EnergyThreshold int           `yaml:"energy_threshold"` // negative: calibrate from ambient noise
	ChunkDuration   time.Duration `yaml:"chunk_duration"`
	Pipe            bool          `yaml:"pipe"`
	Timestamp       bool          `yaml:"timestamp"`
}

type STTConfig struct {
	Provider   string        `yaml:"provider"` // mock, google, whisper-http
	Endpoint   string        `yaml:"endpoint"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// AnalysisConfig describes the analysis backend and the prompts sent to it.
type AnalysisConfig struct {
	BaseURL          string        `yaml:"base_url"`
	APIKey           string        `yaml:"api_key"`
	Model            string        `yaml:"model"`
	KnowledgeBaseIDs []string      `yaml:"knowledge_base_ids"`
	Collection       string        `yaml:"collection"`
	Prompt           string        `yaml:"prompt"`
	TempPrompt       string        `yaml:"temp_prompt"`
	SummaryPrompt    string        `yaml:"summary_prompt"`
	Summarize        bool          `yaml:"summarize"`
	ResultsDir       string        `yaml:"results_dir"`
	BusyPolicy       string        `yaml:"busy_policy"`
	Timeout          time.Duration `yaml:"timeout"`
}

type TriggerConfig struct {
	Start     string `yaml:"start"`
	Stop      string `yaml:"stop"`
	TempCheck string `yaml:"temp_check"`
}

type KafkaConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Brokers         []string `yaml:"brokers"`
	TopicTranscript string   `yaml:"topic_transcript"`
	TopicAnalysis   string   `yaml:"topic_analysis"`
	Principal       string   `yaml:"principal"`
}

type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	LogOutput string `yaml:"log_output"`
}

const defaultPrompt = "Please, begin by extracting the medical data from the following text and converting it into FHIR compliant JSON resource bundle.\n" +
	"After that, verify whether the operators have adhered to any of the attached protocols.\n\n"

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Principal:       "svc-speech-to-data",
			ShutdownTimeout: 2 * time.Minute,
		},
		Audio: AudioConfig{
			SampleRateHz:    16000,
			Language:        "en",
			PhraseTimeout:   3 * time.Second,
			RecordTimeout:   2 * time.Second,
			PollInterval:    250 * time.Millisecond,
			MinAudio:        100 * time.Millisecond,
			EnergyThreshold: 1000,
			ChunkDuration:   100 * time.Millisecond,
		},
		STT: STTConfig{
			Provider:   "mock",
			Endpoint:   "http://localhost:8080/inference",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
		},
		Analysis: AnalysisConfig{
			BaseURL:          "http://localhost:8080/api",
			Model:            "deepseek-r1:32b",
			KnowledgeBaseIDs: []string{"#Treatment_Protocols"},
			Collection:       "#Treatment_Protocols\n",
			Prompt:           defaultPrompt,
			TempPrompt:       "Summarize the medical data collected so far in the following text.\n\n",
			SummaryPrompt:    "Provide a concise summary of the following text, Keep it short and informative.\n",
			ResultsDir:       ".",
			BusyPolicy:       BusyPolicyRetain,
			Timeout:          10 * time.Minute,
		},
		Triggers: TriggerConfig{
			Start: "Start analysis",
			Stop:  "Stop analysis",
		},
		Kafka: KafkaConfig{
			TopicTranscript: "speech.transcript.update",
			TopicAnalysis:   "speech.analysis.result",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
			LogOutput: "stderr",
		},
	}
}

// Load returns the defaults overridden by environment variables.
func Load() *Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

// LoadFile applies a YAML file on top of the defaults, then environment
// overrides. An empty path behaves like Load.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Service.Principal = envOrDefault("SERVICE_PRINCIPAL", c.Service.Principal)
	c.Service.GRPCPort = envOrDefault("GRPC_PORT", c.Service.GRPCPort)
	c.Service.HTTPAddr = envOrDefault("HTTP_ADDR", c.Service.HTTPAddr)
	c.Service.ShutdownTimeout = envOrDefaultDuration("SHUTDOWN_TIMEOUT", c.Service.ShutdownTimeout)

	c.Audio.SampleRateHz = envOrDefaultInt("AUDIO_SAMPLE_RATE_HZ", c.Audio.SampleRateHz)
	c.Audio.Language = envOrDefault("AUDIO_LANGUAGE", c.Audio.Language)
	c.Audio.PhraseTimeout = envOrDefaultDuration("AUDIO_PHRASE_TIMEOUT", c.Audio.PhraseTimeout)
	c.Audio.RecordTimeout = envOrDefaultDuration("AUDIO_RECORD_TIMEOUT", c.Audio.RecordTimeout)
	c.Audio.PollInterval = envOrDefaultDuration("AUDIO_POLL_INTERVAL", c.Audio.PollInterval)
	c.Audio.EnergyThreshold = envOrDefaultInt("AUDIO_ENERGY_THRESHOLD", c.Audio.EnergyThreshold)
	c.Audio.Pipe = envOrDefaultBool("AUDIO_PIPE", c.Audio.Pipe)
	c.Audio.Timestamp = envOrDefaultBool("AUDIO_TIMESTAMP", c.Audio.Timestamp)

	c.STT.Provider = envOrDefault("STT_PROVIDER", c.STT.Provider)
	c.STT.Endpoint = envOrDefault("STT_ENDPOINT", c.STT.Endpoint)
	c.STT.Timeout = envOrDefaultDuration("STT_TIMEOUT", c.STT.Timeout)
	c.STT.MaxRetries = envOrDefaultInt("STT_MAX_RETRIES", c.STT.MaxRetries)

	c.Analysis.BaseURL = envOrDefault("ANALYSIS_BASE_URL", c.Analysis.BaseURL)
	c.Analysis.APIKey = envOrDefault("ANALYSIS_API_KEY", c.Analysis.APIKey)
	c.Analysis.Model = envOrDefault("ANALYSIS_MODEL", c.Analysis.Model)
	c.Analysis.KnowledgeBaseIDs = envOrDefaultList("ANALYSIS_KNOWLEDGE_BASE_IDS", c.Analysis.KnowledgeBaseIDs)
	c.Analysis.ResultsDir = envOrDefault("ANALYSIS_RESULTS_DIR", c.Analysis.ResultsDir)
	c.Analysis.BusyPolicy = envOrDefault("ANALYSIS_BUSY_POLICY", c.Analysis.BusyPolicy)
	c.Analysis.Summarize = envOrDefaultBool("ANALYSIS_SUMMARIZE", c.Analysis.Summarize)
	c.Analysis.Timeout = envOrDefaultDuration("ANALYSIS_TIMEOUT", c.Analysis.Timeout)

	c.Triggers.Start = envOrDefault("TRIGGER_START", c.Triggers.Start)
	c.Triggers.Stop = envOrDefault("TRIGGER_STOP", c.Triggers.Stop)
	c.Triggers.TempCheck = envOrDefault("TRIGGER_TEMP_CHECK", c.Triggers.TempCheck)

	c.Kafka.Enabled = envOrDefaultBool("KAFKA_ENABLED", c.Kafka.Enabled)
	c.Kafka.Brokers = envOrDefaultList("KAFKA_BROKERS", c.Kafka.Brokers)
	c.Kafka.TopicTranscript = envOrDefault("KAFKA_TOPIC_TRANSCRIPT", c.Kafka.TopicTranscript)
	c.Kafka.TopicAnalysis = envOrDefault("KAFKA_TOPIC_ANALYSIS", c.Kafka.TopicAnalysis)
	// Kafka principal falls back to the service principal.
	c.Kafka.Principal = envOrDefault("KAFKA_PRINCIPAL", c.Service.Principal)

	c.Observability.LogLevel = envOrDefault("LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.LogFormat = envOrDefault("LOG_FORMAT", c.Observability.LogFormat)
	c.Observability.LogOutput = envOrDefault("LOG_OUTPUT", c.Observability.LogOutput)
}

// Validate reports configuration values the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Audio.SampleRateHz <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate_hz must be positive, got %d", c.Audio.SampleRateHz))
	}
	if c.Audio.PhraseTimeout <= 0 {
		errs = append(errs, fmt.Errorf("audio.phrase_timeout must be positive, got %v", c.Audio.PhraseTimeout))
	}
	if c.Audio.RecordTimeout <= 0 {
		errs = append(errs, fmt.Errorf("audio.record_timeout must be positive, got %v", c.Audio.RecordTimeout))
	}
	if c.Audio.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("audio.poll_interval must be positive, got %v", c.Audio.PollInterval))
	}
	switch c.STT.Provider {
	case "mock", "google", "whisper-http":
	default:
		errs = append(errs, fmt.Errorf("stt.provider must be one of [mock, google, whisper-http], got '%s'", c.STT.Provider))
	}
	switch c.Analysis.BusyPolicy {
	case BusyPolicyRetain, BusyPolicyDiscard:
	default:
		errs = append(errs, fmt.Errorf("analysis.busy_policy must be '%s' or '%s', got '%s'",
			BusyPolicyRetain, BusyPolicyDiscard, c.Analysis.BusyPolicy))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers cannot be empty when kafka is enabled"))
	}
	return errors.Join(errs...)
}

// Warnings reports values that are legal but probably a mistake.
func (c *Config) Warnings() []string {
	var w []string
	if c.Triggers.Start == "" {
		w = append(w, "triggers.start is empty and will match every line")
	}
	if c.Triggers.Stop == "" {
		w = append(w, "triggers.stop is empty and will match every line")
	}
	if len(c.Analysis.KnowledgeBaseIDs) == 0 {
		w = append(w, "analysis.knowledge_base_ids is not set; knowledge base lookups will be skipped")
	}
	if c.Analysis.APIKey == "" {
		w = append(w, "analysis.api_key is empty")
	}
	return w
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
