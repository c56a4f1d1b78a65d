package config

import (
	"errors"
	"time"
)

// StorageBackend selects the result archive adapter.
type StorageBackend string

const (
	StorageNone  StorageBackend = ""
	StorageLocal StorageBackend = "local"
	StorageS3    StorageBackend = "s3"
)

// Config is the top-level configuration struct. Default() returns a working
// development configuration; override only what you need.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Engine    EngineConfig    `mapstructure:"engine"`
	AccessLog AccessLogConfig `mapstructure:"access_log"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`

	// Logging: "debug", "info", "warn", "error".
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Mode            string        `mapstructure:"mode"` // gin mode: debug, release, test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// AuthConfig controls token issuance and verification.
type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	Issuer     string        `mapstructure:"issuer"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
	// Revocation selects the logout store: "memory" or "redis".
	Revocation string `mapstructure:"revocation"`
}

// DatabaseConfig points at the SQLite user database.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig is used when Auth.Revocation is "redis".
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// UploadConfig guards the multipart image upload.
type UploadConfig struct {
	MaxBytes     int64    `mapstructure:"max_bytes"`
	AllowedTypes []string `mapstructure:"allowed_types"`
	ChunkSize    int      `mapstructure:"chunk_size"` // streaming chunk size in bytes
}

// LimitsConfig bounds operation parameters.
type LimitsConfig struct {
	MaxDimension int `mapstructure:"max_dimension"`
}

// EngineConfig selects and tunes the transformation engine.
type EngineConfig struct {
	Backend        string `mapstructure:"backend"` // "native" or "vips"
	DefaultQuality int    `mapstructure:"default_quality"`
	VipsCacheSize  int    `mapstructure:"vips_cache_size"`
	VipsWorkers    int    `mapstructure:"vips_workers"`
}

// AccessLogConfig configures the request log sink. An empty Path routes
// entries to the application logger instead of a file.
type AccessLogConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// StorageConfig enables archiving of pipeline results.
type StorageConfig struct {
	Backend StorageBackend `mapstructure:"backend"`
	Local   LocalConfig    `mapstructure:"local"`
	S3      S3Config       `mapstructure:"s3"`
}

// LocalConfig configures the local filesystem storage adapter.
type LocalConfig struct {
	RootDir     string `mapstructure:"root_dir"`
	Permissions uint32 `mapstructure:"permissions"` // default 0644
}

// S3Config configures the AWS S3 storage adapter.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"` // optional custom endpoint (MinIO, etc.)
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// Default returns a Config populated with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":3000",
			Mode:            "release",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Auth: AuthConfig{
			TokenTTL:   time.Hour,
			Issuer:     "image-api",
			BcryptCost: 10,
			Revocation: "memory",
		},
		Database: DatabaseConfig{DSN: "data/users.db"},
		Redis:    RedisConfig{Addr: "localhost:6379", Prefix: "image-api:"},
		Upload: UploadConfig{
			MaxBytes:     10 << 20,
			AllowedTypes: []string{"image/jpeg", "image/png", "image/webp"},
			ChunkSize:    32 * 1024,
		},
		Limits: LimitsConfig{MaxDimension: 10000},
		Engine: EngineConfig{Backend: "native", DefaultQuality: 85},
		AccessLog: AccessLogConfig{
			Path:       "logs/app.log",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Storage:  StorageConfig{Local: LocalConfig{RootDir: "data/results"}},
		Metrics:  MetricsConfig{Enabled: true, Namespace: "image_api"},
		LogLevel: "info",
	}
}

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	if c.Auth.JWTSecret == "" {
		return errors.New("config: Auth.JWTSecret must be set")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("config: Auth.TokenTTL must be positive")
	}
	if c.Auth.Revocation != "memory" && c.Auth.Revocation != "redis" {
		return errors.New("config: Auth.Revocation must be memory or redis")
	}
	if c.Engine.DefaultQuality < 1 || c.Engine.DefaultQuality > 100 {
		return errors.New("config: Engine.DefaultQuality must be between 1 and 100")
	}
	if c.Engine.Backend != "native" && c.Engine.Backend != "vips" {
		return errors.New("config: Engine.Backend must be native or vips")
	}
	if c.Upload.MaxBytes <= 0 {
		return errors.New("config: Upload.MaxBytes must be positive")
	}
	if c.Upload.ChunkSize <= 0 {
		return errors.New("config: Upload.ChunkSize must be positive")
	}
	if len(c.Upload.AllowedTypes) == 0 {
		return errors.New("config: Upload.AllowedTypes must not be empty")
	}
	if c.Limits.MaxDimension <= 0 {
		return errors.New("config: Limits.MaxDimension must be positive")
	}
	switch c.Storage.Backend {
	case StorageNone:
	case StorageLocal:
		if c.Storage.Local.RootDir == "" {
			return errors.New("config: Storage.Local.RootDir must be set")
		}
	case StorageS3:
		if c.Storage.S3.Bucket == "" {
			return errors.New("config: Storage.S3.Bucket must be set")
		}
	default:
		return errors.New("config: Storage.Backend must be empty, local or s3")
	}
	return nil
}
