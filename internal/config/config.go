package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"snapify/pkg/logger"
	"snapify/pkg/utils"
)

func (c *Config) GetBaseUrl() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return fmt.Sprintf("http://localhost:%d", c.Server.Port)
}

// Load reads configuration from path (or ./config.yaml when path is empty),
// then the environment. A missing file is not an error.
func Load(path string) (*Config, error) {
	// .env is optional; real environment variables always win.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SNAPIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Names used by the existing deployment manifests.
	v.BindEnv("server.port", "SNAPIFY_SERVER_PORT", "PORT")
	v.BindEnv("storage.endpoint", "SNAPIFY_STORAGE_ENDPOINT", "S3_ENDPOINT")
	v.BindEnv("storage.bucket", "SNAPIFY_STORAGE_BUCKET", "S3_BUCKET_NAME")
	v.BindEnv("storage.access_key", "SNAPIFY_STORAGE_ACCESS_KEY", "S3_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "SNAPIFY_STORAGE_SECRET_KEY", "S3_SECRET_KEY")
	v.BindEnv("storage.region", "SNAPIFY_STORAGE_REGION", "S3_REGION")
	v.BindEnv("caption.api_key", "SNAPIFY_CAPTION_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("realtime.redis_url", "SNAPIFY_REALTIME_REDIS_URL", "REDIS_URL")
	v.BindEnv("cors_origin_override", "CORS_ORIGIN")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			logger.LogInfo("Config file not found. Using Environment Variables and Defaults.")
		} else {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// CORS_ORIGIN is a single comma-separated string in the old deployments.
	if raw := v.GetString("cors_origin_override"); raw != "" {
		cfg.Security.CorsOrigins = splitList(raw)
	}

	cfg.BaseURL = cfg.GetBaseUrl()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "Snapify")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.start_message", true)
	v.SetDefault("app.quiet", false)

	// Server
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.env", "development")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database
	v.SetDefault("database.path", "./data/snapify.db")

	// Storage
	v.SetDefault("storage.driver", "minio")
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.bucket", "snapify-media")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.force_path_style", true)
	v.SetDefault("storage.presign_ttl", "1h")
	v.SetDefault("storage.timeout", "60s")

	// Transcode
	v.SetDefault("transcode.workers", 1)
	v.SetDefault("transcode.ffmpeg_path", "ffmpeg")
	v.SetDefault("transcode.height", 720)
	v.SetDefault("transcode.crf", 23)
	v.SetDefault("transcode.preset", "fast")
	v.SetDefault("transcode.audio_bitrate", "128k")
	v.SetDefault("transcode.timeout", "30m")

	// Upload
	v.SetDefault("upload.max_size", "500MB")
	v.SetDefault("upload.staging_dir", "./data/staging")
	v.SetDefault("upload.stale_after", "6h")
	v.SetDefault("upload.sweep_interval", "30m")

	// Realtime
	v.SetDefault("realtime.subscriber_buffer", 64)
	v.SetDefault("realtime.redis_prefix", "snapify")

	// Caption
	v.SetDefault("caption.enabled", true)
	v.SetDefault("caption.model", "gpt-4o-mini")
	v.SetDefault("caption.timeout", "15s")
	v.SetDefault("caption.max_side", 768)

	// Caching
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.max_entries", 10000)

	// Security & Limits
	v.SetDefault("security.cors_origins", []string{"*"})
	v.SetDefault("security.rate_limit.enabled", true)
	v.SetDefault("security.rate_limit.requests", 20)
	v.SetDefault("security.rate_limit.window", "1s")
	v.SetDefault("security.rate_limit.burst", 50)
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}

	switch c.Storage.Driver {
	case "minio", "s3":
	default:
		return fmt.Errorf("storage.driver must be 'minio' or 's3', got '%s'", c.Storage.Driver)
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required")
	}
	if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
		if c.Server.Env == "production" {
			return fmt.Errorf("storage credentials cannot be empty in production environment")
		}
		logger.LogWarn("Storage credentials are empty. Uploads will fail until S3_ACCESS_KEY / S3_SECRET_KEY are set.")
	}

	if c.Transcode.Workers < 1 {
		return fmt.Errorf("transcode.workers must be at least 1, got %d", c.Transcode.Workers)
	}
	if c.Upload.StagingDir == "" {
		return fmt.Errorf("upload.staging_dir is required")
	}

	durations := map[string]string{
		"server.shutdown_timeout":    c.Server.ShutdownTimeout,
		"storage.presign_ttl":        c.Storage.PresignTTL,
		"storage.timeout":            c.Storage.Timeout,
		"transcode.timeout":          c.Transcode.Timeout,
		"upload.stale_after":         c.Upload.StaleAfter,
		"upload.sweep_interval":      c.Upload.SweepInterval,
		"caption.timeout":            c.Caption.Timeout,
		"security.rate_limit.window": c.Security.RateLimit.Window,
	}
	for key, raw := range durations {
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("invalid %s format '%s': %v", key, raw, err)
		}
	}

	if utils.SizeToBytes(c.Upload.MaxSize, -1) <= 0 {
		return fmt.Errorf("invalid upload.max_size '%s'", c.Upload.MaxSize)
	}
	return nil
}

// Duration helpers. Validate has already rejected malformed values.

func (c *Config) PresignTTL() time.Duration {
	return utils.DurationOr(c.Storage.PresignTTL, time.Hour)
}

func (c *Config) StorageTimeout() time.Duration {
	return utils.DurationOr(c.Storage.Timeout, time.Minute)
}

func (c *Config) ShutdownTimeout() time.Duration {
	return utils.DurationOr(c.Server.ShutdownTimeout, 30*time.Second)
}

// TranscodeTimeout returns 0 when the limit is disabled.
func (c *Config) TranscodeTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Transcode.Timeout)
	if d < 0 {
		return 0
	}
	return d
}

func (c *Config) StaleAfter() time.Duration {
	return utils.DurationOr(c.Upload.StaleAfter, 6*time.Hour)
}

func (c *Config) SweepInterval() time.Duration {
	return utils.DurationOr(c.Upload.SweepInterval, 30*time.Minute)
}

func (c *Config) CaptionTimeout() time.Duration {
	return utils.DurationOr(c.Caption.Timeout, 15*time.Second)
}

func (c *Config) RateLimitWindow() time.Duration {
	return utils.DurationOr(c.Security.RateLimit.Window, time.Second)
}

func (c *Config) MaxUploadBytes() int64 {
	return utils.SizeToBytes(c.Upload.MaxSize, 500<<20)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
