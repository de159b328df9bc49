package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	DatabaseURL string
	Port        string
	Environment string
	LogLevel    string
	OTPSalt     string
	OTPDevMode  bool

	// Location is the server-local zone whose midnight resets the daily interest quota
	Location           *time.Location
	DailyInterestLimit int
	OTPTTL             time.Duration
	BridgeSessionTTL   time.Duration
	SessionTTL         time.Duration
	SweepInterval      time.Duration
	CookieSecure       bool
	CORSOrigins        []string
	// AuthRateLimit caps /auth requests per client IP per minute; 0 disables it
	AuthRateLimit int

	RedisURL      string
	FacetCacheTTL time.Duration

	S3Bucket        string
	S3PublicBaseURL string
	AWSRegion       string

	NewsAPIURL       string
	NewsAPIKey       string
	NewsSyncInterval time.Duration

	SMSWebhookURL  string
	AdminJWTSecret string
}

// Defaults returns a configuration with every optional setting at its default
func Defaults() *Config {
	return &Config{
		Port:               "8080",
		Environment:        "development",
		LogLevel:           "info",
		Location:           time.Local,
		DailyInterestLimit: 10,
		AuthRateLimit:      30,
		OTPTTL:             10 * time.Minute,
		BridgeSessionTTL:   time.Hour,
		SessionTTL:         30 * 24 * time.Hour,
		SweepInterval:      60 * time.Second,
		FacetCacheTTL:      5 * time.Minute,
		NewsSyncInterval:   30 * time.Minute,
	}
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := Defaults()

	// Load DATABASE_URL (required)
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	// Load OTP_SALT (required)
	cfg.OTPSalt = os.Getenv("OTP_SALT")
	if cfg.OTPSalt == "" {
		return nil, fmt.Errorf("OTP_SALT environment variable is required")
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		cfg.Environment = env
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = strings.ToLower(level)
	}
	cfg.OTPDevMode = os.Getenv("OTP_DEV_MODE") == "true"
	cfg.CookieSecure = os.Getenv("COOKIE_SECURE") == "true"

	if tz := os.Getenv("TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
		}
		cfg.Location = loc
	}

	if v := os.Getenv("DAILY_INTEREST_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid DAILY_INTEREST_LIMIT %q", v)
		}
		cfg.DailyInterestLimit = n
	}

	if v := os.Getenv("AUTH_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid AUTH_RATE_LIMIT %q", v)
		}
		cfg.AuthRateLimit = n
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{"OTP_TTL", &cfg.OTPTTL},
		{"BRIDGE_SESSION_TTL", &cfg.BridgeSessionTTL},
		{"SESSION_TTL", &cfg.SessionTTL},
		{"SWEEP_INTERVAL", &cfg.SweepInterval},
		{"FACET_CACHE_TTL", &cfg.FacetCacheTTL},
		{"NEWS_SYNC_INTERVAL", &cfg.NewsSyncInterval},
	}
	for _, d := range durations {
		v, err := durationEnv(d.env, *d.dst)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.S3Bucket = os.Getenv("S3_BUCKET")
	cfg.S3PublicBaseURL = os.Getenv("S3_PUBLIC_BASE_URL")
	cfg.AWSRegion = os.Getenv("AWS_REGION")
	cfg.NewsAPIURL = os.Getenv("NEWS_API_URL")
	cfg.NewsAPIKey = os.Getenv("NEWS_API_KEY")
	cfg.SMSWebhookURL = os.Getenv("SMS_WEBHOOK_URL")
	cfg.AdminJWTSecret = os.Getenv("ADMIN_JWT_SECRET")

	return cfg, nil
}

func durationEnv(name string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return d, nil
}
