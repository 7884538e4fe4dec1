package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	R2        R2Config
	Separator SeparatorConfig
	Tools     ToolsConfig
	Storage   StorageConfig
	Worker    WorkerConfig
	Client    ClientConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string
	PublicURL string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	ProcessPerHour int
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

// SeparatorConfig points at the MDX-Net separation microservice
type SeparatorConfig struct {
	ServiceURL string
	Model      string
	Timeout    int // seconds
}

type ToolsConfig struct {
	YtDlpPath  string
	FFmpegPath string
}

type StorageConfig struct {
	SongsDir string
	TmpDir   string
}

type WorkerConfig struct {
	Concurrency int
	MaxRetry    int
}

// ClientConfig configures the karaoke CLI
type ClientConfig struct {
	APIURL         string
	PollInterval   time.Duration
	DriftInterval  time.Duration
	DriftTolerance float64
	WaveformHeight int
	HistoryPath    string
	MetricsAddr    string
}

func Load() (*Config, error) {
	// A missing .env is fine; system env and defaults still apply.
	_ = godotenv.Load()

	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables
	v.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("server.log_format", "LOG_FORMAT")
	_ = v.BindEnv("server.public_url", "PUBLIC_URL")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("ratelimit.process_per_hour", "RATELIMIT_PROCESS_PER_HOUR")
	_ = v.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = v.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = v.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = v.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = v.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = v.BindEnv("separator.service_url", "SEPARATOR_SERVICE_URL")
	_ = v.BindEnv("separator.model", "SEPARATOR_MODEL")
	_ = v.BindEnv("separator.timeout", "SEPARATOR_TIMEOUT")
	_ = v.BindEnv("tools.ytdlp_path", "YTDLP_PATH")
	_ = v.BindEnv("tools.ffmpeg_path", "FFMPEG_PATH")
	_ = v.BindEnv("storage.songs_dir", "STORAGE_SONGS_DIR")
	_ = v.BindEnv("storage.tmp_dir", "STORAGE_TMP_DIR")
	_ = v.BindEnv("worker.concurrency", "WORKER_CONCURRENCY")
	_ = v.BindEnv("worker.max_retry", "WORKER_MAX_RETRY")
	_ = v.BindEnv("client.api_url", "KARAOKE_API_URL")
	_ = v.BindEnv("client.poll_interval", "KARAOKE_POLL_INTERVAL")
	_ = v.BindEnv("client.drift_interval", "KARAOKE_DRIFT_INTERVAL")
	_ = v.BindEnv("client.drift_tolerance", "KARAOKE_DRIFT_TOLERANCE")
	_ = v.BindEnv("client.waveform_height", "KARAOKE_WAVEFORM_HEIGHT")
	_ = v.BindEnv("client.history_path", "KARAOKE_HISTORY_PATH")
	_ = v.BindEnv("client.metrics_addr", "KARAOKE_METRICS_ADDR")

	// Defaults
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.public_url", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("ratelimit.process_per_hour", 10)

	// Separator defaults
	v.SetDefault("separator.service_url", "")
	v.SetDefault("separator.model", "UVR-MDX-NET-Inst_HQ_3.onnx")
	v.SetDefault("separator.timeout", 900)

	// Tool and storage defaults
	v.SetDefault("tools.ytdlp_path", "yt-dlp")
	v.SetDefault("tools.ffmpeg_path", "ffmpeg")
	v.SetDefault("storage.songs_dir", "songs")
	v.SetDefault("storage.tmp_dir", "tmp")

	// Worker defaults. Jobs are not retried: a failure is terminal.
	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.max_retry", 0)

	// Client defaults
	v.SetDefault("client.api_url", "http://localhost:5000")
	v.SetDefault("client.poll_interval", "1000ms")
	v.SetDefault("client.drift_interval", "500ms")
	v.SetDefault("client.drift_tolerance", 0.1)
	v.SetDefault("client.waveform_height", 80)
	v.SetDefault("client.history_path", "./data/karaoke.db")
	v.SetDefault("client.metrics_addr", "")

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      v.GetString("server.port"),
			Env:       v.GetString("server.env"),
			LogLevel:  v.GetString("server.log_level"),
			LogFormat: v.GetString("server.log_format"),
			PublicURL: strings.TrimRight(v.GetString("server.public_url"), "/"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		RateLimit: RateLimitConfig{
			ProcessPerHour: v.GetInt("ratelimit.process_per_hour"),
		},
		R2: R2Config{
			AccountID:       v.GetString("r2.account_id"),
			AccessKeyID:     v.GetString("r2.access_key_id"),
			SecretAccessKey: v.GetString("r2.secret_access_key"),
			BucketName:      v.GetString("r2.bucket_name"),
			PublicURL:       v.GetString("r2.public_url"),
		},
		Separator: SeparatorConfig{
			ServiceURL: v.GetString("separator.service_url"),
			Model:      v.GetString("separator.model"),
			Timeout:    v.GetInt("separator.timeout"),
		},
		Tools: ToolsConfig{
			YtDlpPath:  v.GetString("tools.ytdlp_path"),
			FFmpegPath: v.GetString("tools.ffmpeg_path"),
		},
		Storage: StorageConfig{
			SongsDir: v.GetString("storage.songs_dir"),
			TmpDir:   v.GetString("storage.tmp_dir"),
		},
		Worker: WorkerConfig{
			Concurrency: v.GetInt("worker.concurrency"),
			MaxRetry:    v.GetInt("worker.max_retry"),
		},
		Client: ClientConfig{
			APIURL:         strings.TrimRight(v.GetString("client.api_url"), "/"),
			PollInterval:   v.GetDuration("client.poll_interval"),
			DriftInterval:  v.GetDuration("client.drift_interval"),
			DriftTolerance: v.GetFloat64("client.drift_tolerance"),
			WaveformHeight: v.GetInt("client.waveform_height"),
			HistoryPath:    v.GetString("client.history_path"),
			MetricsAddr:    v.GetString("client.metrics_addr"),
		},
	}

	return cfg, nil
}
