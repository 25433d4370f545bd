package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string        `mapstructure:"PORT"`
	Env         string        `mapstructure:"ENV"`
	AppName     string        `mapstructure:"APP_NAME"`
	FrontendURL string        `mapstructure:"FRONTEND_URL"`
	DatabaseURL string        `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL    string        `mapstructure:"REDIS_URL"`
	CORSOrigins []string      `mapstructure:"CORS_ORIGINS"`
	BodyLimit   string        `mapstructure:"BODY_LIMIT"`
	ReqTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	JWTAccessSecret  string        `mapstructure:"JWT_ACCESS_SECRET"`
	JWTRefreshSecret string        `mapstructure:"JWT_REFRESH_SECRET"`
	JWTAccessTTL     time.Duration `mapstructure:"JWT_ACCESS_TTL"`
	JWTRefreshTTL    time.Duration `mapstructure:"JWT_REFRESH_TTL"`

	RateLimitWindow time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`
	RateLimitMax    int           `mapstructure:"RATE_LIMIT_MAX"`

	SMTPEnabled  bool   `mapstructure:"SMTP_ENABLED"`
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`
	SMTPUseTLS   bool   `mapstructure:"SMTP_USE_TLS"`

	SMSProvider      string `mapstructure:"SMS_PROVIDER"`
	SMSDefaultRegion string `mapstructure:"SMS_DEFAULT_REGION"`
	TwilioAccountSID string `mapstructure:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `mapstructure:"TWILIO_AUTH_TOKEN"`
	TwilioFrom       string `mapstructure:"TWILIO_FROM"`
	SMSIRAPIKey      string `mapstructure:"SMSIR_API_KEY"`
	SMSIRSecretKey   string `mapstructure:"SMSIR_SECRET_KEY"`
	SMSIRTemplateID  string `mapstructure:"SMSIR_TEMPLATE_ID"`

	StorageDriver     string `mapstructure:"STORAGE_DRIVER"`
	S3Endpoint        string `mapstructure:"S3_ENDPOINT"`
	S3Region          string `mapstructure:"S3_REGION"`
	S3Bucket          string `mapstructure:"S3_BUCKET"`
	S3AccessKeyID     string `mapstructure:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `mapstructure:"S3_SECRET_ACCESS_KEY"`
	S3PublicBaseURL   string `mapstructure:"S3_PUBLIC_BASE_URL"`
	S3UsePathStyle    bool   `mapstructure:"S3_USE_PATH_STYLE"`

	LogLevel      string `mapstructure:"LOG_LEVEL"`
	LogFile       string `mapstructure:"LOG_FILE"`
	LogMaxSizeMB  int    `mapstructure:"LOG_MAX_SIZE_MB"`
	LogMaxBackups int    `mapstructure:"LOG_MAX_BACKUPS"`
	LogMaxAgeDays int    `mapstructure:"LOG_MAX_AGE_DAYS"`

	ShareSweepInterval time.Duration `mapstructure:"SHARE_SWEEP_INTERVAL"`
}

var envKeys = []string{
	"PORT", "ENV", "APP_NAME", "FRONTEND_URL", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"REDIS_URL", "CORS_ORIGINS", "BODY_LIMIT", "REQUEST_TIMEOUT",
	"JWT_ACCESS_SECRET", "JWT_REFRESH_SECRET", "JWT_ACCESS_TTL", "JWT_REFRESH_TTL",
	"RATE_LIMIT_WINDOW", "RATE_LIMIT_MAX",
	"SMTP_ENABLED", "SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "SMTP_FROM", "SMTP_USE_TLS",
	"SMS_PROVIDER", "SMS_DEFAULT_REGION", "TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_FROM",
	"SMSIR_API_KEY", "SMSIR_SECRET_KEY", "SMSIR_TEMPLATE_ID",
	"STORAGE_DRIVER", "S3_ENDPOINT", "S3_REGION", "S3_BUCKET", "S3_ACCESS_KEY_ID",
	"S3_SECRET_ACCESS_KEY", "S3_PUBLIC_BASE_URL", "S3_USE_PATH_STYLE",
	"LOG_LEVEL", "LOG_FILE", "LOG_MAX_SIZE_MB", "LOG_MAX_BACKUPS", "LOG_MAX_AGE_DAYS",
	"SHARE_SWEEP_INTERVAL",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "5000")
	v.SetDefault("ENV", "development")
	v.SetDefault("APP_NAME", "MediLocker")
	v.SetDefault("FRONTEND_URL", "http://localhost:5173")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("BODY_LIMIT", "12M")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h")
	v.SetDefault("RATE_LIMIT_WINDOW", "15m")
	v.SetDefault("RATE_LIMIT_MAX", 100)
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USE_TLS", false)
	v.SetDefault("SMS_DEFAULT_REGION", "US")
	v.SetDefault("STORAGE_DRIVER", "memory")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_MAX_SIZE_MB", 100)
	v.SetDefault("LOG_MAX_BACKUPS", 5)
	v.SetDefault("LOG_MAX_AGE_DAYS", 28)
	v.SetDefault("SHARE_SWEEP_INTERVAL", "10m")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() && (cfg.JWTAccessSecret == "" || cfg.JWTRefreshSecret == "") {
		log.Println("WARNING: JWT secrets not set; using insecure development secrets.")
		if cfg.JWTAccessSecret == "" {
			cfg.JWTAccessSecret = "dev-access-secret-change-me-0123456789"
		}
		if cfg.JWTRefreshSecret == "" {
			cfg.JWTRefreshSecret = "dev-refresh-secret-change-me-0123456789"
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// both JWT secrets must be set, distinct and at least 32 bytes long.
func (c *Config) Validate() error {
	if c.JWTAccessSecret == "" || c.JWTRefreshSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required")
	}
	if !c.IsDev() {
		if len(c.JWTAccessSecret) < 32 || len(c.JWTRefreshSecret) < 32 {
			return fmt.Errorf("JWT secrets must be at least 32 characters outside development")
		}
		if c.JWTAccessSecret == c.JWTRefreshSecret {
			return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
		}
	}
	if c.JWTAccessTTL <= 0 || c.JWTRefreshTTL <= 0 {
		return fmt.Errorf("JWT TTLs must be positive")
	}

	switch c.SMSProvider {
	case "":
	case "twilio":
		if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" || c.TwilioFrom == "" {
			return fmt.Errorf("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM are required when SMS_PROVIDER is \"twilio\"")
		}
	case "smsir":
		if c.SMSIRAPIKey == "" || c.SMSIRTemplateID == "" {
			return fmt.Errorf("SMSIR_API_KEY and SMSIR_TEMPLATE_ID are required when SMS_PROVIDER is \"smsir\"")
		}
	default:
		return fmt.Errorf("SMS_PROVIDER must be \"twilio\", \"smsir\" or empty, got %q", c.SMSProvider)
	}

	switch c.StorageDriver {
	case "memory":
		if c.IsProduction() {
			return fmt.Errorf("STORAGE_DRIVER=memory is not allowed in production")
		}
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_DRIVER is \"s3\"")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be \"s3\" or \"memory\", got %q", c.StorageDriver)
	}

	if c.RateLimitMax <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}

	return nil
}
