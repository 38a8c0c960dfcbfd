package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported OCR engines.
const (
	OCREngineTesseract   = "tesseract"
	OCREngineRekognition = "rekognition"
)

type Config struct {
	Host              string
	Port              string
	RequestTimeout    time.Duration
	ImageFetchTimeout time.Duration
	OCRTimeout        time.Duration
	MaxUploadSize     int64
	LogLevel          string
	LogFormat         string

	OCR     OCRConfig
	AI      AIConfig
	Storage StorageConfig
	Queue   QueueConfig
	Scanner ScannerConfig
}

type OCRConfig struct {
	Engine         string
	Language       string
	TessdataPrefix string
	Whitelist      string
	AWSRegion      string
	MinConfidence  float64
}

type AIConfig struct {
	Provider  string
	Model     string
	APIKey    string
	BaseURL   string
	MaxTokens int
}

type StorageConfig struct {
	DatabaseURL       string
	AzureAccountName  string
	AzureAccountKey   string
	AllowedImageHosts []string
}

type QueueConfig struct {
	RedisURL    string
	Concurrency int
	StatusTTL   time.Duration
	TaskTimeout time.Duration
	MaxRetry    int
}

type ScannerConfig struct {
	UseBufferPool    bool
	MeasureSharpness bool
	BlurThreshold    float64
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()
	return LoadFromEnv()
}

func LoadFromEnv() (*Config, error) {
	provider := strings.ToLower(getEnvOrDefault("AI_PROVIDER", "openai"))

	cfg := &Config{
		Host:              getEnvOrDefault("HOST", "0.0.0.0"),
		Port:              getEnvOrDefault("PORT", "8080"),
		RequestTimeout:    parseDurationOrDefault("REQUEST_TIMEOUT", 60*time.Second),
		ImageFetchTimeout: parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", 15*time.Second),
		OCRTimeout:        parseDurationOrDefault("OCR_TIMEOUT", 30*time.Second),
		MaxUploadSize:     parseIntOrDefault("MAX_UPLOAD_SIZE", 5*1024*1024), // 5MB
		LogLevel:          getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:         getEnvOrDefault("LOG_FORMAT", "json"),
		OCR: OCRConfig{
			Engine:         strings.ToLower(getEnvOrDefault("OCR_ENGINE", OCREngineTesseract)),
			Language:       getEnvOrDefault("OCR_LANGUAGE", "eng"),
			TessdataPrefix: os.Getenv("TESSDATA_PREFIX"),
			Whitelist:      os.Getenv("OCR_CHAR_WHITELIST"),
			AWSRegion:      getEnvOrDefault("AWS_REGION", "us-east-1"),
			MinConfidence:  parseFloatOrDefault("OCR_MIN_CONFIDENCE", 0),
		},
		AI: AIConfig{
			Provider:  provider,
			MaxTokens: int(parseIntOrDefault("AI_MAX_TOKENS", 0)),
		},
		Storage: StorageConfig{
			DatabaseURL:       os.Getenv("DATABASE_URL"),
			AzureAccountName:  os.Getenv("AZURE_STORAGE_ACCOUNT"),
			AzureAccountKey:   os.Getenv("AZURE_STORAGE_KEY"),
			AllowedImageHosts: splitList(os.Getenv("ALLOWED_IMAGE_HOSTS")),
		},
		Queue: QueueConfig{
			RedisURL:    os.Getenv("REDIS_URL"),
			Concurrency: int(parseIntOrDefault("WORKER_CONCURRENCY", 4)),
			StatusTTL:   parseDurationOrDefault("SCAN_STATUS_TTL", 24*time.Hour),
			TaskTimeout: parseDurationOrDefault("SCAN_TASK_TIMEOUT", 2*time.Minute),
			MaxRetry:    int(parseIntOrDefault("SCAN_TASK_MAX_RETRY", 3)),
		},
		Scanner: ScannerConfig{
			UseBufferPool:    parseBoolOrDefault("USE_BUFFER_POOL", true),
			MeasureSharpness: parseBoolOrDefault("MEASURE_SHARPNESS", true),
			BlurThreshold:    parseFloatOrDefault("BLUR_THRESHOLD", 100),
		},
	}

	switch provider {
	case "gemini":
		cfg.AI.APIKey = os.Getenv("GEMINI_API_KEY")
		cfg.AI.Model = os.Getenv("GEMINI_MODEL")
	case "anthropic":
		cfg.AI.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		cfg.AI.Model = os.Getenv("ANTHROPIC_MODEL")
	case "ollama":
		cfg.AI.BaseURL = os.Getenv("OLLAMA_HOST")
		cfg.AI.Model = os.Getenv("OLLAMA_MODEL")
	case "mistral":
		cfg.AI.APIKey = os.Getenv("MISTRAL_API_KEY")
		cfg.AI.Model = os.Getenv("MISTRAL_MODEL")
	default:
		cfg.AI.APIKey = os.Getenv("OPENAI_API_KEY")
		cfg.AI.Model = os.Getenv("OPENAI_MODEL")
		cfg.AI.BaseURL = os.Getenv("OPENAI_BASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be > 0 (got %d)", c.MaxUploadSize)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 || c.OCRTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, ocr=%s)",
			c.RequestTimeout, c.ImageFetchTimeout, c.OCRTimeout)
	}
	switch c.OCR.Engine {
	case OCREngineTesseract, OCREngineRekognition:
	default:
		return fmt.Errorf("unsupported OCR_ENGINE: %q", c.OCR.Engine)
	}
	if c.OCR.MinConfidence < 0 || c.OCR.MinConfidence > 100 {
		return fmt.Errorf("OCR_MIN_CONFIDENCE must be within 0..100 (got %g)", c.OCR.MinConfidence)
	}
	if c.Queue.Concurrency <= 0 {
		return fmt.Errorf("WORKER_CONCURRENCY must be > 0 (got %d)", c.Queue.Concurrency)
	}
	if (c.Storage.AzureAccountName == "") != (c.Storage.AzureAccountKey == "") {
		return fmt.Errorf("AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY must be set together")
	}
	return nil
}

// AzureEnabled reports whether blob sources are configured.
func (c *Config) AzureEnabled() bool {
	return c.Storage.AzureAccountName != "" && c.Storage.AzureAccountKey != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
