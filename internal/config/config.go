package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Server
	Port string

	// Secrets
	InternalSharedSecret string

	// Storage
	UploadDir    string
	DatabasePath string

	// Limits
	MaxUploadBytes  int64
	MaxHeaderBytes  int
	MaxMultipartMem int64

	// Concurrency
	MaxConcurrentRequests int64

	// Server timeouts
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration

	// Request timeouts
	IngestTimeout time.Duration

	// Poppler timeouts
	PDFInfoTimeout   time.Duration
	PDFToTextTimeout time.Duration

	// rate limiting (per IP)
	RateLimitEvery time.Duration
	RateLimitBurst int

	// housekeeping
	CleanupInterval time.Duration

	// health
	HealthDegradeRatio float64
}

// Load reads configuration from the environment, then applies the optional
// YAML overlay named by CONFIG_FILE on top.
func Load() (Config, error) {
	cfg := Config{
		Port: envStr("PORT", "8080"),

		InternalSharedSecret: envStr("INTERNAL_SHARED_SECRET", ""),

		UploadDir:    envStr("UPLOAD_DIR", "./uploads"),
		DatabasePath: envStr("DATABASE_PATH", "./pdf.db"),

		MaxUploadBytes:  int64(envInt("MAX_UPLOAD_BYTES", int(50<<20))),
		MaxHeaderBytes:  envInt("MAX_HEADER_BYTES", 1<<20),
		MaxMultipartMem: int64(envInt("MAX_MULTIPART_MEM", int(8<<20))),

		MaxConcurrentRequests: int64(envInt("MAX_CONCURRENT_REQUESTS", 4)),

		ReadHeaderTimeout: envDur("READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:       envDur("READ_TIMEOUT", 60*time.Second),
		WriteTimeout:      envDur("WRITE_TIMEOUT", 120*time.Second),
		IdleTimeout:       envDur("IDLE_TIMEOUT", 60*time.Second),

		IngestTimeout: envDur("INGEST_TIMEOUT", 120*time.Second),

		PDFInfoTimeout:   envDur("PDFINFO_TIMEOUT", 5*time.Second),
		PDFToTextTimeout: envDur("PDFTOTEXT_TIMEOUT", 30*time.Second),

		RateLimitEvery: envDur("RATE_LIMIT_EVERY", 600*time.Millisecond),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 20),

		CleanupInterval: envDur("CLEANUP_INTERVAL", 5*time.Minute),

		HealthDegradeRatio: envFloat("HEALTH_DEGRADE_RATIO", 0.9),
	}

	if path := envStr("CONFIG_FILE", ""); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.UploadDir) == "" {
		return fmt.Errorf("upload directory must not be empty")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("upload size limit must be positive")
	}
	return nil
}

// fileOverlay is the YAML-settable subset of Config. Absent keys leave the
// environment-derived value in place.
type fileOverlay struct {
	Port          string  `yaml:"port"`
	UploadDir     string  `yaml:"upload_dir"`
	DatabasePath  string  `yaml:"database_path"`
	MaxUploadMB   int     `yaml:"max_upload_mb"`
	MaxConcurrent int     `yaml:"max_concurrent_requests"`
	IngestTimeout string  `yaml:"ingest_timeout"`
	DegradeRatio  float64 `yaml:"health_degrade_ratio"`
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}

	var o fileOverlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}

	if o.Port != "" {
		c.Port = o.Port
	}
	if o.UploadDir != "" {
		c.UploadDir = o.UploadDir
	}
	if o.DatabasePath != "" {
		c.DatabasePath = o.DatabasePath
	}
	if o.MaxUploadMB > 0 {
		c.MaxUploadBytes = int64(o.MaxUploadMB) << 20
	}
	if o.MaxConcurrent > 0 {
		c.MaxConcurrentRequests = int64(o.MaxConcurrent)
	}
	if o.IngestTimeout != "" {
		d, err := time.ParseDuration(o.IngestTimeout)
		if err != nil || d <= 0 {
			return fmt.Errorf("config file %s: invalid ingest_timeout %q", path, o.IngestTimeout)
		}
		c.IngestTimeout = d
	}
	if o.DegradeRatio > 0 {
		c.HealthDegradeRatio = o.DegradeRatio
	}
	return nil
}

func envStr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

func envDur(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
