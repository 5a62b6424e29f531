package config

type Config struct {
	// App: Service identity printed in the banner and health payload
	App AppConfig `mapstructure:"app"`

	// Server: Network configuration and execution environment
	Server ServerConfig `mapstructure:"server"`

	// Database: SQLite location for events, media rows and guestbook entries
	Database DatabaseConfig `mapstructure:"database"`

	// Storage: S3-compatible object store holding originals and previews
	Storage StorageConfig `mapstructure:"storage"`

	// Transcode: Video preview generation and worker pool size
	Transcode TranscodeConfig `mapstructure:"transcode"`

	// Upload: Multipart limits and the local staging area
	Upload UploadConfig `mapstructure:"upload"`

	// Realtime: Websocket fan-out and the optional Redis relay
	Realtime RealtimeConfig `mapstructure:"realtime"`

	// Caption: AI caption collaborator
	Caption CaptionConfig `mapstructure:"caption"`

	// Cache: Signed URL cache
	Cache CacheConfig `mapstructure:"cache"`

	// Security: CORS whitelist and rate limiting
	Security SecurityConfig `mapstructure:"security"`

	// BaseURL: The public-facing root URL printed at startup
	BaseURL string `mapstructure:"base_url"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`

	// StartMessage: Print the startup banner
	StartMessage bool `mapstructure:"start_message"`

	// Quiet: Only warnings and errors reach the console
	Quiet bool `mapstructure:"quiet"`
}

type ServerConfig struct {
	// Port: The TCP port the HTTP server will bind to (default: 3001)
	Port int `mapstructure:"port"`

	// Env: Execution context (development, staging, production)
	Env string `mapstructure:"env"`

	// ShutdownTimeout: Grace period for in-flight requests and transcodes (e.g., "30s")
	ShutdownTimeout string `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// Path: SQLite database file; ":memory:" is accepted for tests
	Path string `mapstructure:"path"`
}

type StorageConfig struct {
	// Driver: "minio" (minio-go) or "s3" (aws-sdk-go-v2)
	Driver string `mapstructure:"driver"`

	// Endpoint: host[:port] or full URL of the object store; empty means AWS
	Endpoint string `mapstructure:"endpoint"`

	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`

	// UseSSL: Only consulted when Endpoint has no scheme
	UseSSL bool `mapstructure:"use_ssl"`

	// ForcePathStyle: Required by MinIO and most self-hosted stores
	ForcePathStyle bool `mapstructure:"force_path_style"`

	// PresignTTL: Lifetime of signed GET URLs (e.g., "1h")
	PresignTTL string `mapstructure:"presign_ttl"`

	// Timeout: Per-operation deadline for uploads, deletes and pings
	Timeout string `mapstructure:"timeout"`
}

type TranscodeConfig struct {
	// Workers: Maximum concurrent transcodes (default 1)
	Workers int `mapstructure:"workers"`

	// FFmpegPath: Binary used for previews
	FFmpegPath string `mapstructure:"ffmpeg_path"`

	Height       int    `mapstructure:"height"`
	CRF          int    `mapstructure:"crf"`
	Preset       string `mapstructure:"preset"`
	AudioBitrate string `mapstructure:"audio_bitrate"`

	// Timeout: Upper bound for a single ffmpeg run; "0" disables it
	Timeout string `mapstructure:"timeout"`
}

type UploadConfig struct {
	// MaxSize: Maximum payload for POST /api/media (e.g., "500MB")
	MaxSize string `mapstructure:"max_size"`

	// StagingDir: Local directory for files awaiting upload or transcode
	StagingDir string `mapstructure:"staging_dir"`

	// StaleAfter: Staged files older than this are considered leaked (e.g., "6h")
	StaleAfter string `mapstructure:"stale_after"`

	// SweepInterval: How often the stale sweep runs (e.g., "30m")
	SweepInterval string `mapstructure:"sweep_interval"`
}

type RealtimeConfig struct {
	// SubscriberBuffer: Messages buffered per connection before drops
	SubscriberBuffer int `mapstructure:"subscriber_buffer"`

	// RedisURL: Enables the cross-instance relay when set (redis://host:6379/0)
	RedisURL string `mapstructure:"redis_url"`

	// RedisPrefix: Channel prefix for relayed envelopes
	RedisPrefix string `mapstructure:"redis_prefix"`
}

type CaptionConfig struct {
	// Enabled: Without an API key captions always fall back to the default
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`

	// Timeout: Deadline for one caption request (e.g., "15s")
	Timeout string `mapstructure:"timeout"`

	// MaxSide: Longest edge of the image sent to the model
	MaxSide int `mapstructure:"max_side"`
}

type CacheConfig struct {
	// Enabled: Toggles the signed URL cache
	Enabled bool `mapstructure:"enabled"`

	// MaxEntries: Upper bound before the soonest-expiring URLs are evicted
	MaxEntries int `mapstructure:"max_entries"`
}

type SecurityConfig struct {
	// CorsOrigins: List of allowed domains for browser-based cross-origin requests
	CorsOrigins []string `mapstructure:"cors_origins"`

	// RateLimit: Per-IP token bucket
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Requests: Number of allowed requests per time window
	Requests int `mapstructure:"requests"`

	// Window: The timeframe for the request limit (e.g., "1s", "1m")
	Window string `mapstructure:"window"`

	// Burst: Temporary allowed spike capacity above the steady-rate limit
	Burst int `mapstructure:"burst"`
}
