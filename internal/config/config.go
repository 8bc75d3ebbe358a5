// Package config loads service configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"voice-translation-bridge/internal/service/transcribe"
)

// Config is the full service configuration.
type Config struct {
	HTTPPort    string `yaml:"httpPort"`
	MetricsPort string `yaml:"metricsPort"`

	Logging LoggingConfig `yaml:"logging"`

	Transcribe TranscribeConfig `yaml:"transcribe"`
	Translate  AdapterConfig    `yaml:"translate"`
	Synthesize AdapterConfig    `yaml:"synthesize"`

	Kafka KafkaConfig `yaml:"kafka"`

	Agent    ChannelConfig `yaml:"agent"`
	Customer ChannelConfig `yaml:"customer"`
}

// LoggingConfig controls log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TranscribeConfig holds the streaming transcription endpoint and the
// credentials endpoint used to authorize sessions against it. Provider "mock"
// swaps the websocket transport for the simulated one.
type TranscribeConfig struct {
	Provider            string `yaml:"provider"`
	Endpoint            string `yaml:"endpoint"`
	CredentialsEndpoint string `yaml:"credentialsEndpoint"`
	SampleRate          int    `yaml:"sampleRate"`
}

// AdapterConfig holds an HTTP adapter endpoint and its bearer token.
type AdapterConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AuthToken string `yaml:"authToken"`
}

// KafkaConfig holds event publishing configuration.
type KafkaConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Brokers          []string `yaml:"brokers"`
	TopicPartial     string   `yaml:"topicPartial"`
	TopicFinal       string   `yaml:"topicFinal"`
	TopicTranslation string   `yaml:"topicTranslation"`
	Principal        string   `yaml:"principal"`
}

// ChannelConfig holds per-channel language and synthesis defaults.
type ChannelConfig struct {
	SourceLanguage    string `yaml:"sourceLanguage"`
	TargetLanguage    string `yaml:"targetLanguage"`
	StabilityMode     string `yaml:"stabilityMode"`
	SynthesisLanguage string `yaml:"synthesisLanguage"`
	SynthesisEngine   string `yaml:"synthesisEngine"`
	SynthesisVoice    string `yaml:"synthesisVoice"`
}

// Load reads the config file at path, if any, then applies environment
// overrides. An empty path yields defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		HTTPPort:    "8080",
		MetricsPort: "9090",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Transcribe: TranscribeConfig{
			Provider:   "ws",
			SampleRate: 16000,
		},
		Kafka: KafkaConfig{
			TopicPartial:     "call.transcript.partial",
			TopicFinal:       "call.transcript.final",
			TopicTranslation: "call.translation.result",
			Principal:        "voice-translation-bridge",
		},
		Agent: ChannelConfig{
			SourceLanguage:  "en-US",
			TargetLanguage:  "es",
			StabilityMode:   transcribe.StabilityHigh,
			SynthesisEngine: "neural",
		},
		Customer: ChannelConfig{
			SourceLanguage:  "es-US",
			TargetLanguage:  "en",
			StabilityMode:   transcribe.StabilityHigh,
			SynthesisEngine: "neural",
		},
	}
}

func applyEnv(cfg *Config) {
	cfg.HTTPPort = envOrDefault("HTTP_PORT", cfg.HTTPPort)
	cfg.MetricsPort = envOrDefault("METRICS_PORT", cfg.MetricsPort)
	cfg.Logging.Level = envOrDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = envOrDefault("LOG_FORMAT", cfg.Logging.Format)

	cfg.Transcribe.Provider = envOrDefault("TRANSCRIBE_PROVIDER", cfg.Transcribe.Provider)
	cfg.Transcribe.Endpoint = envOrDefault("TRANSCRIBE_ENDPOINT", cfg.Transcribe.Endpoint)
	cfg.Transcribe.CredentialsEndpoint = envOrDefault("CREDENTIALS_ENDPOINT", cfg.Transcribe.CredentialsEndpoint)

	cfg.Translate.Endpoint = envOrDefault("TRANSLATE_ENDPOINT", cfg.Translate.Endpoint)
	cfg.Translate.AuthToken = envOrDefault("TRANSLATE_AUTH_TOKEN", cfg.Translate.AuthToken)
	cfg.Synthesize.Endpoint = envOrDefault("SYNTHESIZE_ENDPOINT", cfg.Synthesize.Endpoint)
	cfg.Synthesize.AuthToken = envOrDefault("SYNTHESIZE_AUTH_TOKEN", cfg.Synthesize.AuthToken)

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
		cfg.Kafka.Enabled = true
	}
}

// Validate checks that required fields are present and well-formed.
func (c *Config) Validate() error {
	switch c.Transcribe.Provider {
	case "ws":
		if c.Transcribe.Endpoint == "" {
			return fmt.Errorf("transcribe.endpoint is required for the ws provider")
		}
	case "mock":
	default:
		return fmt.Errorf("transcribe.provider %q is not one of ws, mock", c.Transcribe.Provider)
	}
	if c.Transcribe.SampleRate <= 0 {
		return fmt.Errorf("transcribe.sampleRate must be positive, got %d", c.Transcribe.SampleRate)
	}
	for name, ch := range map[string]ChannelConfig{"agent": c.Agent, "customer": c.Customer} {
		if ch.SourceLanguage == "" {
			return fmt.Errorf("%s.sourceLanguage is required", name)
		}
		if ch.TargetLanguage == "" {
			return fmt.Errorf("%s.targetLanguage is required", name)
		}
		if !validStabilityMode(ch.StabilityMode) {
			return fmt.Errorf("%s.stabilityMode %q is not one of none, %s",
				name, ch.StabilityMode, strings.Join(transcribe.StabilityModes, ", "))
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	return nil
}

func validStabilityMode(mode string) bool {
	if mode == transcribe.StabilityNone {
		return true
	}
	for _, m := range transcribe.StabilityModes {
		if m == mode {
			return true
		}
	}
	return false
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
