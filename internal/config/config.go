package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Vibbo   VibboConfig
	Poll    PollConfig
	Auth    AuthAPIConfig
	Limits  LimitsConfig
	Webhook WebhookConfig
}

type ServerConfig struct {
	Port string
}

type StorageConfig struct {
	DatabaseURL string // Postgres DSN; empty disables pgx store
	StateFile   string // JSON fallback when no database configured
	RedisURL    string // optional, enables feed pub/sub
}

type VibboConfig struct {
	PortalBaseURL string
	AuthBaseURL   string
	ClientID      string
	APIVersion    string
	PhonePrefix   string
	HTTPTimeout   time.Duration
}

type PollConfig struct {
	Interval       time.Duration
	FeedLimit      int
	RefreshMargin  time.Duration
	MaxAttempts    int
	BackoffBase    time.Duration
}

type AuthAPIConfig struct {
	APISecret   string // shared secret exchanged for bearer tokens; empty disables API auth
	TokenExpiry int64  // seconds
	Issuer      string
}

type LimitsConfig struct {
	RatePerIP      string // ulule/limiter formatted rate, e.g. "30-M"
	SMSMaxRequests int
	SMSCooldown    time.Duration
}

type WebhookConfig struct {
	SnapshotURL string
}

func Load() (*Config, error) {
	viper.AutomaticEnv()
	if p := os.Getenv("CONFIG_FILE"); p != "" {
		viper.SetConfigFile(p)
		_ = viper.ReadInConfig()
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvOrDefault("PORT", "8080"),
		},
		Storage: StorageConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			StateFile:   getEnvOrDefault("STATE_FILE", "vibbo_session.json"),
			RedisURL:    os.Getenv("REDIS_URL"),
		},
		Vibbo: VibboConfig{
			PortalBaseURL: os.Getenv("VIBBO_BASE_URL"),
			AuthBaseURL:   os.Getenv("AUTH_BASE_URL"),
			ClientID:      os.Getenv("VIBBO_CLIENT_ID"),
			APIVersion:    os.Getenv("API_VERSION"),
			PhonePrefix:   getEnvOrDefault("DEFAULT_PHONE_PREFIX", "+47"),
			HTTPTimeout:   time.Duration(viper.GetInt("HTTP_TIMEOUT_SECS")) * time.Second,
		},
		Poll: PollConfig{
			Interval:      time.Duration(viper.GetInt("POLL_INTERVAL_MIN")) * time.Minute,
			FeedLimit:     viper.GetInt("FEED_LIMIT"),
			RefreshMargin: time.Duration(viper.GetInt("SESSION_REFRESH_MARGIN_SECS")) * time.Second,
			MaxAttempts:   viper.GetInt("FETCH_MAX_ATTEMPTS"),
			BackoffBase:   time.Duration(viper.GetInt("FETCH_BACKOFF_BASE_SECS")) * time.Second,
		},
		Auth: AuthAPIConfig{
			APISecret:   os.Getenv("API_SECRET"),
			TokenExpiry: viper.GetInt64("TOKEN_EXPIRY_SECS"),
			Issuer:      getEnvOrDefault("TOKEN_ISSUER", "vibbobridge"),
		},
		Limits: LimitsConfig{
			RatePerIP:      getEnvOrDefault("RATE_PER_IP", "60-M"),
			SMSMaxRequests: viper.GetInt("SMS_MAX_REQUESTS"),
			SMSCooldown:    time.Duration(viper.GetInt("SMS_COOLDOWN_SECS")) * time.Second,
		},
		Webhook: WebhookConfig{
			SnapshotURL: os.Getenv("SNAPSHOT_WEBHOOK_URL"),
		},
	}

	if cfg.Vibbo.HTTPTimeout <= 0 {
		cfg.Vibbo.HTTPTimeout = 10 * time.Second
	}
	if cfg.Poll.Interval <= 0 {
		cfg.Poll.Interval = 30 * time.Minute
	}
	if cfg.Poll.FeedLimit <= 0 {
		cfg.Poll.FeedLimit = 10
	}
	if cfg.Poll.RefreshMargin <= 0 {
		cfg.Poll.RefreshMargin = 60 * time.Second
	}
	if cfg.Poll.MaxAttempts <= 0 {
		cfg.Poll.MaxAttempts = 3
	}
	if cfg.Poll.BackoffBase <= 0 {
		cfg.Poll.BackoffBase = 2 * time.Second
	}
	if cfg.Auth.TokenExpiry <= 0 {
		cfg.Auth.TokenExpiry = 3600
	}
	if cfg.Limits.SMSMaxRequests <= 0 {
		cfg.Limits.SMSMaxRequests = 5
	}
	if cfg.Limits.SMSCooldown <= 0 {
		cfg.Limits.SMSCooldown = 15 * time.Minute
	}
	return cfg, nil
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
