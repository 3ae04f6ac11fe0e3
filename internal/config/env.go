package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom log forwarding configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// ProviderConfig defines connectivity for a single LLM provider.
type ProviderConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
}

// ProvidersConfig defines the available LLM providers and the default one.
type ProvidersConfig struct {
	Default     string // "claude"|"grok"
	Temperature float64
	MaxTokens   int
	Claude      ProviderConfig
	Grok        ProviderConfig
}

// ExtractionConfig defines text extraction behavior.
type ExtractionConfig struct {
	MinTextLen      int // normalized text below this fails the request
	NativeThreshold int // native PDF text above this skips OCR
	OCRDPI          int
	OCRPSM          int
	OCRLanguages    string
	OCRWorkers      int
	TesseractBin    string
}

// RetryConfig defines the provider retry policy.
type RetryConfig struct {
	MaxRetries    int
	BaseDelay     time.Duration
	BackoffFactor float64
}

// SinkConfig defines where processed artifacts are stored.
type SinkConfig struct {
	Backend    string // "local"|"s3"
	LocalDir   string
	S3Bucket   string
	S3Password string
	RedisURL   string
}

// ServerConfig defines the HTTP surface.
type ServerConfig struct {
	Port        string
	MaxUploadMB int64
	UploadDir   string
}

// Config is the top-level configuration.
type Config struct {
	Logging    LoggingConfig
	Axiom      AxiomConfig
	Providers  ProvidersConfig
	Extraction ExtractionConfig
	Retry      RetryConfig
	Sink       SinkConfig
	Server     ServerConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/medextract.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_medextract",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Providers = ProvidersConfig{
		Default:     strings.ToLower(getEnv("LLM_DEFAULT_PROVIDER", "claude")),
		Temperature: parseFloat(getEnv("LLM_TEMPERATURE", "0.1"), 0.1),
		MaxTokens:   parseInt(getEnv("LLM_MAX_TOKENS", "4000"), 4000),
		Claude: ProviderConfig{
			APIKey:       getEnv("ANTHROPIC_API_KEY", ""),
			BaseURL:      getEnv("ANTHROPIC_API_URL", "https://api.anthropic.com/v1/messages"),
			DefaultModel: getEnv("ANTHROPIC_MODEL", "claude-3-sonnet-20240229"),
			Timeout:      parseDuration(getEnv("ANTHROPIC_TIMEOUT", "90s"), 90*time.Second),
		},
		Grok: ProviderConfig{
			APIKey:       getEnv("GROK_API_KEY", ""),
			BaseURL:      getEnv("GROK_API_URL", "https://api.x.ai/v1"),
			DefaultModel: getEnv("GROK_MODEL", "grok-3"),
			Timeout:      parseDuration(getEnv("GROK_TIMEOUT", "90s"), 90*time.Second),
		},
	}

	cfg.Extraction = ExtractionConfig{
		MinTextLen:      parseInt(getEnv("MIN_TEXT_LENGTH", "50"), 50),
		NativeThreshold: parseInt(getEnv("NATIVE_TEXT_THRESHOLD", "100"), 100),
		OCRDPI:          parseInt(getEnv("OCR_DPI", "300"), 300),
		OCRPSM:          parseInt(getEnv("OCR_PSM", "6"), 6),
		OCRLanguages:    getEnv("OCR_LANGUAGES", "eng+osd"),
		OCRWorkers:      parseInt(getEnv("OCR_WORKERS", "4"), 4),
		TesseractBin:    getEnv("TESSERACT_BIN", "tesseract"),
	}

	cfg.Retry = RetryConfig{
		MaxRetries:    parseInt(getEnv("LLM_MAX_RETRIES", "2"), 2),
		BaseDelay:     parseDuration(getEnv("LLM_RETRY_BASE_DELAY", "2s"), 2*time.Second),
		BackoffFactor: parseFloat(getEnv("LLM_RETRY_BACKOFF_FACTOR", "2.0"), 2.0),
	}

	cfg.Sink = SinkConfig{
		Backend:    strings.ToLower(getEnv("SINK_BACKEND", "local")),
		LocalDir:   getEnv("SINK_DIR", "uploads"),
		S3Bucket:   getEnv("AWS_S3_BUCKET", ""),
		S3Password: getEnv("S3_FILE_PASSWORD", ""),
		RedisURL:   getEnv("REDIS_URL", "redis://localhost:6379"),
	}

	cfg.Server = ServerConfig{
		Port:        getEnv("PORT", "8080"),
		MaxUploadMB: int64(parseInt(getEnv("MAX_UPLOAD_MB", "64"), 64)),
		UploadDir:   getEnv("UPLOAD_DIR", "uploads"),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" { return def }
	if n, err := strconv.Atoi(s); err == nil { return n }
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" { return def }
	if f, err := strconv.ParseFloat(s, 64); err == nil { return f }
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" { return def }
	if d, err := time.ParseDuration(s); err == nil { return d }
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" { return "true" }
	return "false"
}
