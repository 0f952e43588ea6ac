package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

const defaultReaderConfigPath = "config/reader.yaml"

var (
	readerOnce   sync.Once
	readerConfig *ReaderConfig
)

// ReaderConfig 阅读服务配置
type ReaderConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Redis   RedisConfig   `yaml:"redis"`
	Worker  WorkerConfig  `yaml:"worker"`
	Cover   CoverConfig   `yaml:"cover"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	MaxUploadMB int64    `yaml:"maxUploadMB"`
	CORSOrigins []string `yaml:"corsOrigins"`
}

type StorageConfig struct {
	// Backend is one of minio, s3 or local.
	Backend   string `yaml:"backend"`
	LocalRoot string `yaml:"localRoot"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type WorkerConfig struct {
	Concurrency int    `yaml:"concurrency"`
	Queue       string `yaml:"queue"`
}

type CoverConfig struct {
	DPI         float64 `yaml:"dpi"`
	ThumbWidth  int     `yaml:"thumbWidth"`
	ThumbHeight int     `yaml:"thumbHeight"`
	PDFWorkers  int     `yaml:"pdfWorkers"`
}

type LogConfig struct {
	Level       string   `yaml:"level"`
	Encoding    string   `yaml:"encoding"`
	OutputPaths []string `yaml:"outputPaths"`
}

// MaxUploadBytes converts the configured limit to bytes.
func (c *ReaderConfig) MaxUploadBytes() int64 {
	return c.Server.MaxUploadMB << 20
}

func defaultReaderConfig() *ReaderConfig {
	return &ReaderConfig{
		Server: ServerConfig{
			Addr:        ":8080",
			MaxUploadMB: 200,
			CORSOrigins: []string{"*"},
		},
		Storage: StorageConfig{
			Backend:   "minio",
			LocalRoot: "data/books",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Worker: WorkerConfig{
			Concurrency: 4,
			Queue:       "covers",
		},
		Cover: CoverConfig{
			DPI:         150,
			ThumbWidth:  200,
			ThumbHeight: 300,
			PDFWorkers:  4,
		},
		Log: LogConfig{
			Level:       "info",
			Encoding:    "json",
			OutputPaths: []string{"stdout", "logs/app.log"},
		},
	}
}

// GetReaderConfig loads the YAML file named by READER_CONFIG (default
// config/reader.yaml) once and applies environment overrides.
func GetReaderConfig() *ReaderConfig {
	readerOnce.Do(func() {
		loadEnv()

		path := os.Getenv("READER_CONFIG")
		if path == "" {
			path = defaultReaderConfigPath
		}
		cfg, err := LoadReaderConfig(path)
		if err != nil {
			log.Printf("Warning: %v, using defaults", err)
			cfg = defaultReaderConfig()
			applyReaderEnv(cfg)
		}
		readerConfig = cfg
	})
	return readerConfig
}

// LoadReaderConfig reads path on top of the defaults. A missing file is not
// an error.
func LoadReaderConfig(path string) (*ReaderConfig, error) {
	cfg := defaultReaderConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read reader config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse reader config %s: %w", path, err)
		}
	}

	applyReaderEnv(cfg)
	return cfg, nil
}

func applyReaderEnv(cfg *ReaderConfig) {
	envString("READER_HTTP_ADDR", &cfg.Server.Addr)
	envInt64("READER_MAX_UPLOAD_MB", &cfg.Server.MaxUploadMB)
	envList("READER_CORS_ORIGINS", &cfg.Server.CORSOrigins)

	envString("STORAGE_BACKEND", &cfg.Storage.Backend)
	envString("STORAGE_LOCAL_ROOT", &cfg.Storage.LocalRoot)

	envString("REDIS_ADDR", &cfg.Redis.Addr)
	envString("REDIS_PASSWORD", &cfg.Redis.Password)
	envInt("REDIS_DB", &cfg.Redis.DB)

	envInt("WORKER_CONCURRENCY", &cfg.Worker.Concurrency)
	envString("WORKER_QUEUE", &cfg.Worker.Queue)

	envFloat("COVER_DPI", &cfg.Cover.DPI)
	envInt("COVER_THUMB_WIDTH", &cfg.Cover.ThumbWidth)
	envInt("COVER_THUMB_HEIGHT", &cfg.Cover.ThumbHeight)
	envInt("PDF_WORKERS", &cfg.Cover.PDFWorkers)

	envString("LOG_LEVEL", &cfg.Log.Level)
	envString("LOG_ENCODING", &cfg.Log.Encoding)
	envList("LOG_OUTPUT_PATHS", &cfg.Log.OutputPaths)
}
