package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// IMAGE_API_SERVER_ADDR overrides server.addr.
const EnvPrefix = "IMAGE_API"

// Load builds a Config from defaults, an optional YAML file and the
// environment, in increasing priority. A .env file in the working directory
// is loaded first when present. path may be empty, in which case ./config.yaml
// is used if it exists.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())

	// Variable names used by earlier deployments.
	_ = v.BindEnv("auth.jwt_secret", EnvPrefix+"_AUTH_JWT_SECRET", "JWT_SECRET")
	_ = v.BindEnv("auth.token_ttl", EnvPrefix+"_AUTH_TOKEN_TTL", "JWT_EXPIRES_IN")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("config: read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so environment overrides apply even when
// the key is absent from the config file.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("log_level", d.LogLevel)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)

	v.SetDefault("auth.jwt_secret", d.Auth.JWTSecret)
	v.SetDefault("auth.token_ttl", d.Auth.TokenTTL)
	v.SetDefault("auth.issuer", d.Auth.Issuer)
	v.SetDefault("auth.bcrypt_cost", d.Auth.BcryptCost)
	v.SetDefault("auth.revocation", d.Auth.Revocation)

	v.SetDefault("database.dsn", d.Database.DSN)

	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.username", d.Redis.Username)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.prefix", d.Redis.Prefix)

	v.SetDefault("upload.max_bytes", d.Upload.MaxBytes)
	v.SetDefault("upload.allowed_types", d.Upload.AllowedTypes)
	v.SetDefault("upload.chunk_size", d.Upload.ChunkSize)

	v.SetDefault("limits.max_dimension", d.Limits.MaxDimension)

	v.SetDefault("engine.backend", d.Engine.Backend)
	v.SetDefault("engine.default_quality", d.Engine.DefaultQuality)
	v.SetDefault("engine.vips_cache_size", d.Engine.VipsCacheSize)
	v.SetDefault("engine.vips_workers", d.Engine.VipsWorkers)

	v.SetDefault("access_log.path", d.AccessLog.Path)
	v.SetDefault("access_log.max_size_mb", d.AccessLog.MaxSizeMB)
	v.SetDefault("access_log.max_backups", d.AccessLog.MaxBackups)
	v.SetDefault("access_log.max_age_days", d.AccessLog.MaxAgeDays)
	v.SetDefault("access_log.compress", d.AccessLog.Compress)

	v.SetDefault("storage.backend", string(d.Storage.Backend))
	v.SetDefault("storage.local.root_dir", d.Storage.Local.RootDir)
	v.SetDefault("storage.local.permissions", d.Storage.Local.Permissions)
	v.SetDefault("storage.s3.bucket", d.Storage.S3.Bucket)
	v.SetDefault("storage.s3.region", d.Storage.S3.Region)
	v.SetDefault("storage.s3.endpoint", d.Storage.S3.Endpoint)
	v.SetDefault("storage.s3.access_key_id", d.Storage.S3.AccessKeyID)
	v.SetDefault("storage.s3.secret_access_key", d.Storage.S3.SecretAccessKey)
	v.SetDefault("storage.s3.use_path_style", d.Storage.S3.UsePathStyle)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
}
