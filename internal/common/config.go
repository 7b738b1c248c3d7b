package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Chunker     ChunkerConfig   `toml:"chunker"`
	OCR         OCRConfig       `toml:"ocr"`
	Claude      ClaudeConfig    `toml:"claude"` // provider A: tax documents
	Gemini      GeminiConfig    `toml:"gemini"` // provider B: bank statements
	WebSocket   WebSocketConfig `toml:"websocket"`
	Audit       AuditConfig     `toml:"audit"`
	Logging     LoggingConfig   `toml:"logging"`
	// RateLimits maps route names to "requests/interval" caps, e.g. "submit" = "10/1m".
	RateLimits map[string]string `toml:"rate_limits"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger  BadgerConfig `toml:"badger"`
	Uploads string       `toml:"uploads"` // Directory holding uploaded files
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// SchedulerConfig controls batch admission and worker concurrency
type SchedulerConfig struct {
	WorkerPoolSize      int      `toml:"worker_pool_size"`      // Max concurrent files (default 10)
	ChunkConcurrency    int      `toml:"chunk_concurrency"`     // Max concurrent chunks within a file (default 4)
	MaxFilesPerBatch    int      `toml:"max_files_per_batch"`   // Upload admission cap (default 50)
	MaxArchiveFiles     int      `toml:"max_archive_files"`     // Archive-expanded cap (default 100)
	ArchiveAllowedTypes []string `toml:"archive_allowed_types"` // Document types accepted via archive
	MaxFileBytes        int64    `toml:"max_file_bytes"`        // Per-file size cap (default 50 MB)
	StaleSweepSchedule  string   `toml:"stale_sweep_schedule"`  // Cron schedule for re-queueing stuck files
	StaleAfter          string   `toml:"stale_after"`           // Heartbeat age before a processing file is considered orphaned
	StorageTimeout      string   `toml:"storage_timeout"`       // Per-write deadline (default 30s)
}

// ChunkerConfig controls PDF page windowing
type ChunkerConfig struct {
	ChunkSize     int    `toml:"chunk_size"`     // PDF pages per chunk (default 8)
	ChunkOverlap  int    `toml:"chunk_overlap"`  // Page overlap between chunks (default 1)
	PageThreshold int    `toml:"page_threshold"` // Documents at or below this page count skip chunking (default 10)
	TempDir       string `toml:"temp_dir"`       // Scratch directory for chunk files
}

// OCRConfig contains the OCR routing and cloud engine settings
type OCRConfig struct {
	Mode            string `toml:"mode"` // cloud_primary | cloud_only | local_primary | local_only
	Endpoint        string `toml:"endpoint"`
	Project         string `toml:"project"`
	ProcessorID     string `toml:"processor_id"`
	CredentialsPath string `toml:"credentials_path"`
	Timeout         string `toml:"timeout"` // default "10m" for large PDFs
}

// ClaudeConfig contains Anthropic API configuration (extractor for tax document types)
type ClaudeConfig struct {
	Endpoint    string  `toml:"endpoint"` // Optional base URL override
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Timeout     string  `toml:"timeout"` // default "2m"
	Temperature float32 `toml:"temperature"`
}

// GeminiConfig contains Google Gemini API configuration (extractor for bank statements)
type GeminiConfig struct {
	Endpoint    string  `toml:"endpoint"` // Optional base URL override
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout"` // default "2m"
	Temperature float32 `toml:"temperature"`
}

// WebSocketConfig contains configuration for the progress notification fabric
type WebSocketConfig struct {
	PingIntervalSeconds int    `toml:"session_ping_interval_s"` // Heartbeat interval (default 30)
	IdleTimeoutSeconds  int    `toml:"session_idle_timeout_s"`  // Reap sessions idle beyond ping timeout + grace
	AuthDeadline        string `toml:"auth_deadline"`           // Deadline for the first (auth) message
	SendQueueSize       int    `toml:"send_queue_size"`         // Per-session bounded send queue
	SendTimeout         string `toml:"send_timeout"`            // Write deadline before a session is dropped (default 5s)
	SharedSecret        string `toml:"shared_secret"`           // HMAC secret for session tokens; empty trusts the fronting proxy
}

// AuditConfig contains the append-only audit log settings
type AuditConfig struct {
	Path string `toml:"audit_log_path"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
			Uploads: "./data/uploads",
		},
		Scheduler: SchedulerConfig{
			WorkerPoolSize:      10,
			ChunkConcurrency:    4,
			MaxFilesPerBatch:    50,
			MaxArchiveFiles:     100,
			ArchiveAllowedTypes: []string{"faktur_pajak", "pph21", "pph23", "invoice"},
			MaxFileBytes:        50 * 1024 * 1024,
			StaleSweepSchedule:  "*/5 * * * *",
			StaleAfter:          "10m",
			StorageTimeout:      "30s",
		},
		Chunker: ChunkerConfig{
			ChunkSize:     8,
			ChunkOverlap:  1,
			PageThreshold: 10,
			TempDir:       "", // os.TempDir() when empty
		},
		OCR: OCRConfig{
			Mode:    "cloud_primary",
			Timeout: "10m",
		},
		Claude: ClaudeConfig{
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   8192,
			Timeout:     "2m",
			Temperature: 0.1,
		},
		Gemini: GeminiConfig{
			Model:       "gemini-3-flash-preview",
			Timeout:     "2m",
			Temperature: 0.1,
		},
		WebSocket: WebSocketConfig{
			PingIntervalSeconds: 30,
			IdleTimeoutSeconds:  90,
			AuthDeadline:        "10s",
			SendQueueSize:       64,
			SendTimeout:         "5s",
		},
		Audit: AuditConfig{
			Path: "./data/audit.log",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		RateLimits: map[string]string{},
	}
}

// LoadFromFile loads configuration with priority: defaults -> file -> env
func LoadFromFile(path string) (*Config, error) {
	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("BERKAS_ENV"); env != "" {
		config.Environment = env
	}
	if port := os.Getenv("BERKAS_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("BERKAS_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if badgerPath := os.Getenv("BERKAS_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if uploads := os.Getenv("BERKAS_UPLOADS_DIR"); uploads != "" {
		config.Storage.Uploads = uploads
	}
	if pool := os.Getenv("BERKAS_WORKER_POOL_SIZE"); pool != "" {
		if p, err := strconv.Atoi(pool); err == nil {
			config.Scheduler.WorkerPoolSize = p
		}
	}
	if cc := os.Getenv("BERKAS_CHUNK_CONCURRENCY"); cc != "" {
		if c, err := strconv.Atoi(cc); err == nil {
			config.Scheduler.ChunkConcurrency = c
		}
	}
	if maxFiles := os.Getenv("BERKAS_MAX_FILES_PER_BATCH"); maxFiles != "" {
		if m, err := strconv.Atoi(maxFiles); err == nil {
			config.Scheduler.MaxFilesPerBatch = m
		}
	}
	if maxArchive := os.Getenv("BERKAS_MAX_ARCHIVE_FILES"); maxArchive != "" {
		if m, err := strconv.Atoi(maxArchive); err == nil {
			config.Scheduler.MaxArchiveFiles = m
		}
	}
	if maxBytes := os.Getenv("BERKAS_MAX_FILE_BYTES"); maxBytes != "" {
		if m, err := strconv.ParseInt(maxBytes, 10, 64); err == nil {
			config.Scheduler.MaxFileBytes = m
		}
	}
	if chunkSize := os.Getenv("BERKAS_CHUNK_SIZE"); chunkSize != "" {
		if c, err := strconv.Atoi(chunkSize); err == nil {
			config.Chunker.ChunkSize = c
		}
	}
	if overlap := os.Getenv("BERKAS_CHUNK_OVERLAP"); overlap != "" {
		if o, err := strconv.Atoi(overlap); err == nil {
			config.Chunker.ChunkOverlap = o
		}
	}
	if mode := os.Getenv("BERKAS_OCR_MODE"); mode != "" {
		config.OCR.Mode = mode
	}
	if endpoint := os.Getenv("BERKAS_OCR_ENDPOINT"); endpoint != "" {
		config.OCR.Endpoint = endpoint
	}
	if project := os.Getenv("BERKAS_OCR_PROJECT"); project != "" {
		config.OCR.Project = project
	}
	if processor := os.Getenv("BERKAS_OCR_PROCESSOR_ID"); processor != "" {
		config.OCR.ProcessorID = processor
	}
	if creds := os.Getenv("BERKAS_OCR_CREDENTIALS_PATH"); creds != "" {
		config.OCR.CredentialsPath = creds
	}
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("BERKAS_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey // BERKAS_ prefix takes priority
	}
	if model := os.Getenv("BERKAS_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if endpoint := os.Getenv("BERKAS_CLAUDE_ENDPOINT"); endpoint != "" {
		config.Claude.Endpoint = endpoint
	}
	if apiKey := os.Getenv("BERKAS_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("BERKAS_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if endpoint := os.Getenv("BERKAS_GEMINI_ENDPOINT"); endpoint != "" {
		config.Gemini.Endpoint = endpoint
	}
	if level := os.Getenv("BERKAS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if auditPath := os.Getenv("BERKAS_AUDIT_LOG_PATH"); auditPath != "" {
		config.Audit.Path = auditPath
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	switch c.OCR.Mode {
	case "cloud_primary", "cloud_only", "local_primary", "local_only":
	default:
		return fmt.Errorf("invalid ocr mode %q: must be cloud_primary, cloud_only, local_primary or local_only", c.OCR.Mode)
	}
	if c.Scheduler.WorkerPoolSize <= 0 {
		return fmt.Errorf("worker_pool_size must be positive, got %d", c.Scheduler.WorkerPoolSize)
	}
	if c.Scheduler.ChunkConcurrency <= 0 {
		return fmt.Errorf("chunk_concurrency must be positive, got %d", c.Scheduler.ChunkConcurrency)
	}
	if c.Chunker.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.Chunker.ChunkSize)
	}
	if c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, chunk_size), got %d", c.Chunker.ChunkOverlap)
	}
	if c.Scheduler.MaxFilesPerBatch <= 0 || c.Scheduler.MaxArchiveFiles <= 0 {
		return fmt.Errorf("admission caps must be positive")
	}
	return nil
}

// Duration parses a duration config field, falling back when empty or invalid.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}
