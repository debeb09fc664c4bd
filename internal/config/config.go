package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	PublicURL   string

	AccessTokenSecret  string
	AccessTokenTTL     time.Duration
	RefreshTokenSecret string
	RefreshTokenTTL    time.Duration

	RedisURL     string
	RoleCacheTTL time.Duration

	Storage StorageConfig
	Mail    MailConfig

	ForgotPasswordRedirectURL string
	TokenSweepInterval        time.Duration
}

type StorageConfig struct {
	Driver                string
	UploadDir             string
	AzureConnectionString string
	AzureContainer        string
}

type MailConfig struct {
	Driver       string
	From         string
	ResendAPIKey string
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPass     string
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return d, nil
}

func Load() (Config, error) {
	cfg := Config{
		Port:        getEnv("PORT", "8000"),
		Env:         getEnv("APP_ENV", "development"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		AccessTokenSecret:  os.Getenv("ACCESS_TOKEN_SECRET"),
		RefreshTokenSecret: os.Getenv("REFRESH_TOKEN_SECRET"),

		RedisURL: os.Getenv("REDIS_URL"),

		Storage: StorageConfig{
			Driver:                getEnv("STORAGE_DRIVER", "local"),
			UploadDir:             getEnv("UPLOAD_DIR", "./uploads"),
			AzureConnectionString: os.Getenv("AZURE_STORAGE_CONNECTION_STRING"),
			AzureContainer:        getEnv("AZURE_STORAGE_CONTAINER", "attachments"),
		},
		Mail: MailConfig{
			Driver:       getEnv("MAIL_DRIVER", "log"),
			From:         getEnv("MAIL_FROM", "Taskhub <mail.projectmgmt@example.com>"),
			ResendAPIKey: os.Getenv("RESEND_API_KEY"),
			SMTPHost:     os.Getenv("SMTP_HOST"),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUser:     os.Getenv("SMTP_USER"),
			SMTPPass:     os.Getenv("SMTP_PASS"),
		},
	}
	cfg.PublicURL = strings.TrimSuffix(getEnv("PUBLIC_BASE_URL", "http://localhost:"+cfg.Port), "/")
	cfg.ForgotPasswordRedirectURL = strings.TrimSuffix(getEnv("FORGOT_PASSWORD_REDIRECT_URL", cfg.PublicURL+"/reset-password"), "/")

	var err error
	if cfg.AccessTokenTTL, err = getDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTokenTTL, err = getDuration("REFRESH_TOKEN_EXPIRY", 240*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.RoleCacheTTL, err = getDuration("ROLE_CACHE_TTL", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.TokenSweepInterval, err = getDuration("TOKEN_SWEEP_INTERVAL", 10*time.Minute); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.AccessTokenSecret == "" {
		missing = append(missing, "ACCESS_TOKEN_SECRET")
	}
	if c.RefreshTokenSecret == "" {
		missing = append(missing, "REFRESH_TOKEN_SECRET")
	}
	if c.Storage.Driver == "azure" && c.Storage.AzureConnectionString == "" {
		missing = append(missing, "AZURE_STORAGE_CONNECTION_STRING")
	}
	if c.Mail.Driver == "resend" && c.Mail.ResendAPIKey == "" {
		missing = append(missing, "RESEND_API_KEY")
	}
	if c.Mail.Driver == "smtp" && c.Mail.SMTPHost == "" {
		missing = append(missing, "SMTP_HOST")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}
