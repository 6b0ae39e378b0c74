package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	once   sync.Once
	config *Config
)

// Config is the whole service configuration. Values come from config.yaml
// and are then overridden by environment variables.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logger     LoggerConfig     `yaml:"logger"`
	Storage    StorageConfig    `yaml:"storage"`
	Processing ProcessingConfig `yaml:"processing"`
	Gemini     GeminiConfig     `yaml:"gemini"`
	Textract   TextractConfig   `yaml:"textract"`
	Tesseract  TesseractConfig  `yaml:"tesseract"`
	Redis      RedisConfig      `yaml:"redis"`
	Queue      QueueConfig      `yaml:"queue"`
	Archive    ArchiveConfig    `yaml:"archive"`
	S3         S3Config         `yaml:"s3"`
	Minio      MinioConfig      `yaml:"minio"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	Mode            string        `yaml:"mode"`
	MaxBodyMB       int           `yaml:"maxBodyMB"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	AllowOrigins    []string      `yaml:"allowOrigins"`
}

type LoggerConfig struct {
	Level       string   `yaml:"level"`
	Encoding    string   `yaml:"encoding"`
	OutputPaths []string `yaml:"outputPaths"`
	ErrorPaths  []string `yaml:"errorPaths"`
	MaxSizeMB   int      `yaml:"maxSizeMB"`
	MaxBackups  int      `yaml:"maxBackups"`
	MaxAgeDays  int      `yaml:"maxAgeDays"`
}

// StorageConfig 本地文档存储
type StorageConfig struct {
	DataDir string `yaml:"dataDir"`
	// MaxPageBytes limits a single decoded page image.
	MaxPageBytes int `yaml:"maxPageBytes"`
	MaxPages     int `yaml:"maxPages"`
}

// ProcessingConfig tunes the background engine.
type ProcessingConfig struct {
	StartDelay       time.Duration `yaml:"startDelay"`
	MetadataAttempts int           `yaml:"metadataAttempts"`
	MetadataBackoff  time.Duration `yaml:"metadataBackoff"`
	PoolSize         int           `yaml:"poolSize"`
	// Dispatcher is "local" (in-process pool) or "queue" (asynq + cmd/worker).
	Dispatcher string        `yaml:"dispatcher"`
	LockTTL    time.Duration `yaml:"lockTTL"`
}

type GeminiConfig struct {
	APIKey       string `yaml:"apiKey"`
	DefaultModel string `yaml:"defaultModel"`
	LogoModel    string `yaml:"logoModel"`
	LogoPrompt   string `yaml:"logoPrompt"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type QueueConfig struct {
	Name        string        `yaml:"name"`
	Concurrency int           `yaml:"concurrency"`
	MaxRetry    int           `yaml:"maxRetry"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ArchiveConfig controls copying finished documents to object storage.
type ArchiveConfig struct {
	// Backend is "", "s3" or "minio". Empty disables archiving.
	Backend   string        `yaml:"backend"`
	Prefix    string        `yaml:"prefix"`
	Retention time.Duration `yaml:"retention"`
}

const (
	DispatcherLocal = "local"
	DispatcherQueue = "queue"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":3001",
			Mode:            "release",
			MaxBodyMB:       50,
			ShutdownTimeout: 10 * time.Second,
			AllowOrigins:    []string{"*"},
		},
		Logger: LoggerConfig{
			Level:       "info",
			Encoding:    "json",
			OutputPaths: []string{"stdout", "logs/app.log"},
			ErrorPaths:  []string{"stderr"},
			MaxSizeMB:   100,
			MaxBackups:  3,
			MaxAgeDays:  7,
		},
		Storage: StorageConfig{
			DataDir:      "data",
			MaxPageBytes: 20 << 20,
			MaxPages:     500,
		},
		Processing: ProcessingConfig{
			StartDelay:       time.Second,
			MetadataAttempts: 3,
			MetadataBackoff:  500 * time.Millisecond,
			PoolSize:         4,
			Dispatcher:       DispatcherLocal,
			LockTTL:          2 * time.Hour,
		},
		Gemini: GeminiConfig{
			DefaultModel: "gemini-2.5-flash",
			LogoModel:    "gemini-2.5-flash-image",
			LogoPrompt:   "A minimal flat logo for a document digitization app: a scanned page turning into clean lines of text. Simple shapes, two colors, white background, no words.",
		},
		Textract: TextractConfig{
			Region: "us-east-1",
		},
		Tesseract: TesseractConfig{
			Languages: []string{"eng"},
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Queue: QueueConfig{
			Name:        "default",
			Concurrency: 4,
			MaxRetry:    3,
			Timeout:     2 * time.Hour,
		},
		Archive: ArchiveConfig{
			Prefix:    "documents",
			Retention: 30 * 24 * time.Hour,
		},
		S3: S3Config{
			Region: "us-east-1",
		},
		Minio: MinioConfig{
			Endpoint:   "localhost:9000",
			BucketName: "documents",
		},
	}
}

// Get returns the process wide configuration, loading it on first use.
func Get() *Config {
	once.Do(func() {
		// 获取当前文件的目录, .env 位于项目根目录
		_, filename, _, _ := runtime.Caller(0)
		rootDir := filepath.Dir(filepath.Dir(filename))
		envPath := filepath.Join(rootDir, ".env")

		if err := godotenv.Load(envPath); err != nil {
			log.Printf("Warning: .env file not found at %s, falling back to environment variables", envPath)
		}

		path := os.Getenv("CONFIG_FILE")
		if path == "" {
			path = "config.yaml"
		}
		cfg, err := Load(path)
		if err != nil {
			log.Printf("Warning: %v, using defaults", err)
			cfg = Default()
			cfg.applyEnv()
		}
		config = cfg
	})
	return config
}

// Load reads the YAML file at path on top of the defaults and applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	var problems []string
	if c.Storage.DataDir == "" {
		problems = append(problems, "storage.dataDir is empty")
	}
	switch c.Processing.Dispatcher {
	case DispatcherLocal, DispatcherQueue:
	default:
		problems = append(problems, fmt.Sprintf("processing.dispatcher %q is not local or queue", c.Processing.Dispatcher))
	}
	if c.Processing.PoolSize < 1 {
		problems = append(problems, "processing.poolSize must be at least 1")
	}
	if c.Processing.MetadataAttempts < 1 {
		problems = append(problems, "processing.metadataAttempts must be at least 1")
	}
	switch c.Archive.Backend {
	case "", "s3", "minio":
	default:
		problems = append(problems, fmt.Sprintf("archive.backend %q is not s3 or minio", c.Archive.Backend))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) applyEnv() {
	envString("SERVER_ADDR", &c.Server.Addr)
	envString("GIN_MODE", &c.Server.Mode)
	envInt("SERVER_MAX_BODY_MB", &c.Server.MaxBodyMB)

	envString("LOG_LEVEL", &c.Logger.Level)
	envString("LOG_ENCODING", &c.Logger.Encoding)

	envString("DATA_DIR", &c.Storage.DataDir)

	envDuration("PROCESSING_START_DELAY", &c.Processing.StartDelay)
	envInt("PROCESSING_METADATA_ATTEMPTS", &c.Processing.MetadataAttempts)
	envDuration("PROCESSING_METADATA_BACKOFF", &c.Processing.MetadataBackoff)
	envInt("PROCESSING_POOL_SIZE", &c.Processing.PoolSize)
	envString("PROCESSING_DISPATCHER", &c.Processing.Dispatcher)

	envString("GEMINI_API_KEY", &c.Gemini.APIKey)
	envString("GEMINI_MODEL", &c.Gemini.DefaultModel)
	envString("GEMINI_LOGO_MODEL", &c.Gemini.LogoModel)

	envString("REDIS_ADDR", &c.Redis.Addr)
	envString("REDIS_PASSWORD", &c.Redis.Password)
	envInt("REDIS_DB", &c.Redis.DB)

	envString("ARCHIVE_BACKEND", &c.Archive.Backend)

	c.Textract.applyEnv()
	c.Tesseract.applyEnv()
	c.S3.applyEnv()
	c.Minio.applyEnv()
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("Warning: ignoring %s=%q: %v", key, v, err)
			return
		}
		*dst = n
	}
}

func envBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			log.Printf("Warning: ignoring %s=%q: %v", key, v, err)
			return
		}
		*dst = b
	}
}

func envDuration(key string, dst *time.Duration) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Printf("Warning: ignoring %s=%q: %v", key, v, err)
			return
		}
		*dst = d
	}
}
