package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Detector DetectorConfig `yaml:"detector"`
	Batch    BatchConfig    `yaml:"batch"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// DetectorConfig configures the remote AI detection service client.
type DetectorConfig struct {
	BaseURL             string        `yaml:"base_url"`
	Timeout             time.Duration `yaml:"timeout"`
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`
	IncludeGPS          bool          `yaml:"include_gps"`
	ModelsCacheTTL      time.Duration `yaml:"models_cache_ttl"`
}

// BatchConfig bounds the batch detection pipeline.
type BatchConfig struct {
	// Ceiling is the maximum number of images processed concurrently.
	Ceiling int `yaml:"ceiling"`
	// MaxBatchSize caps files accepted per enqueue request.
	MaxBatchSize int `yaml:"max_batch_size"`
	// MaxFileSizeMB caps a single image upload.
	MaxFileSizeMB int `yaml:"max_file_size_mb"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Detector.Timeout == 0 {
		cfg.Detector.Timeout = 60 * time.Second
	}
	if cfg.Detector.ModelsCacheTTL == 0 {
		cfg.Detector.ModelsCacheTTL = time.Minute
	}
	if cfg.Batch.Ceiling == 0 {
		cfg.Batch.Ceiling = 3
	}
	if cfg.Batch.MaxBatchSize == 0 {
		cfg.Batch.MaxBatchSize = 20
	}
	if cfg.Batch.MaxFileSizeMB == 0 {
		cfg.Batch.MaxFileSizeMB = 25
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AEDES_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("AEDES_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("AEDES_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("AEDES_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("AEDES_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("AEDES_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("AEDES_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("AEDES_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("AEDES_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("AEDES_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("AEDES_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("AEDES_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("AEDES_DETECTOR_URL"); v != "" {
		cfg.Detector.BaseURL = v
	}
	if v := os.Getenv("AEDES_DETECTOR_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Detector.Timeout = d
		}
	}
	if v := os.Getenv("AEDES_BATCH_CEILING"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Batch.Ceiling = n
		}
	}
}
