package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Supported mail providers.
const (
	ProviderSMTP      = "smtp"
	ProviderSES       = "ses"
	ProviderSendGrid  = "sendgrid"
	ProviderSparkPost = "sparkpost"
	ProviderLog       = "log"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Mail      MailConfig      `yaml:"mail"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	SES       SESConfig       `yaml:"ses"`
	SendGrid  SendGridConfig  `yaml:"sendgrid"`
	SparkPost SparkPostConfig `yaml:"sparkpost"`
	Notify    NotifyConfig    `yaml:"notify"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Upload    UploadConfig    `yaml:"upload"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port" env:"PORT"`
	Host           string   `yaml:"host" env:"SERVER_HOST"`
	Environment    string   `yaml:"environment" env:"ENVIRONMENT"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	// TrustProxy takes the client address from X-Forwarded-For/X-Real-IP.
	// Leave off unless a reverse proxy sets those headers.
	TrustProxy bool `yaml:"trust_proxy" env:"TRUST_PROXY"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MailConfig selects the outbound transport and the addresses used on every
// message. FromEmail and AdminEmail are read once at startup.
type MailConfig struct {
	Provider       string `yaml:"provider" env:"MAIL_PROVIDER"`
	FromEmail      string `yaml:"from_email" env:"FROM_EMAIL"`
	AdminEmail     string `yaml:"admin_email" env:"ADMIN_EMAIL"`
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"MAIL_TIMEOUT_SECONDS"`
}

// Timeout returns the configured timeout as a duration
func (c MailConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SMTPConfig holds SMTP relay credentials. The EMAIL_USER / EMAIL_PASS names
// are kept from the original deployment.
type SMTPConfig struct {
	Host               string `yaml:"host" env:"SMTP_HOST"`
	Port               int    `yaml:"port" env:"SMTP_PORT"`
	Username           string `yaml:"username" env:"EMAIL_USER"`
	Password           string `yaml:"password" env:"EMAIL_PASS"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" env:"SMTP_INSECURE_SKIP_VERIFY"`
}

// SESConfig holds AWS SES API configuration
type SESConfig struct {
	Region           string `yaml:"region" env:"AWS_SES_REGION"`
	AccessKey        string `yaml:"access_key" env:"AWS_SES_ACCESS_KEY"`
	SecretKey        string `yaml:"secret_key" env:"AWS_SES_SECRET_KEY"`
	ConfigurationSet string `yaml:"configuration_set" env:"AWS_SES_CONFIGURATION_SET"`
}

// SendGridConfig holds SendGrid v3 API configuration
type SendGridConfig struct {
	APIKey  string `yaml:"api_key" env:"SENDGRID_API_KEY"`
	BaseURL string `yaml:"base_url" env:"SENDGRID_BASE_URL"`
}

// SparkPostConfig holds SparkPost API configuration
type SparkPostConfig struct {
	APIKey  string `yaml:"api_key" env:"SPARKPOST_API_KEY"`
	BaseURL string `yaml:"base_url" env:"SPARKPOST_BASE_URL"`
}

// NotifyConfig controls branding and the gift-card policy of the
// notification emails.
type NotifyConfig struct {
	BrandName          string `yaml:"brand_name" env:"NOTIFY_BRAND_NAME"`
	ServiceName        string `yaml:"service_name" env:"NOTIFY_SERVICE_NAME"`
	PortalURL          string `yaml:"portal_url" env:"NOTIFY_PORTAL_URL"`
	Timezone           string `yaml:"timezone" env:"NOTIFY_TIMEZONE"`
	MaskGiftCardPIN    bool   `yaml:"mask_gift_card_pin" env:"NOTIFY_MASK_GIFT_CARD_PIN"`
	RequireGiftCardPIN bool   `yaml:"require_gift_card_pin" env:"NOTIFY_REQUIRE_GIFT_CARD_PIN"`
}

// Location resolves Timezone, falling back to UTC.
func (c NotifyConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RateLimitConfig holds the fixed-window limit placed in front of the
// membership endpoint.
type RateLimitConfig struct {
	Disabled      bool   `yaml:"disabled" env:"RATE_LIMIT_DISABLED"`
	WindowSeconds int    `yaml:"window_seconds" env:"RATE_LIMIT_WINDOW_SECONDS"`
	MaxRequests   int    `yaml:"max_requests" env:"RATE_LIMIT_MAX"`
	RedisURL      string `yaml:"redis_url" env:"REDIS_URL"`
}

// Window returns the configured window as a duration
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// UploadConfig holds proof-of-purchase upload limits
type UploadConfig struct {
	MaxFileBytes int64    `yaml:"max_file_bytes" env:"UPLOAD_MAX_FILE_BYTES"`
	AllowedTypes []string `yaml:"allowed_types" env:"UPLOAD_ALLOWED_TYPES" envSeparator:","`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level   string `yaml:"level" env:"LOG_LEVEL"`
	ShowPII bool   `yaml:"show_pii" env:"LOG_SHOW_PII"`
}

// Defaults returns the values applied to every field left empty by the
// config file and the environment.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:           3001,
			Host:           "0.0.0.0",
			Environment:    "development",
			AllowedOrigins: []string{"*"},
		},
		Mail: MailConfig{
			Provider:       ProviderSMTP,
			TimeoutSeconds: 30,
		},
		SMTP: SMTPConfig{
			Host: "smtp.gmail.com",
			Port: 587,
		},
		SES: SESConfig{
			Region: "us-west-2",
		},
		SendGrid: SendGridConfig{
			BaseURL: "https://api.sendgrid.com",
		},
		SparkPost: SparkPostConfig{
			BaseURL: "https://api.sparkpost.com/api/v1",
		},
		Notify: NotifyConfig{
			BrandName:   "Simone Susinna Fan Club",
			ServiceName: "Simone Susinna Membership API",
			PortalURL:   "https://fanclub.simonesusinna.com/portal",
			Timezone:    "UTC",
		},
		RateLimit: RateLimitConfig{
			WindowSeconds: 15 * 60,
			MaxRequests:   100,
		},
		Upload: UploadConfig{
			MaxFileBytes: 5 << 20,
			AllowedTypes: []string{"image/jpeg", "image/png", "image/gif"},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars, so secrets can
// live in .env locally and in real env vars in production. A missing config
// file is not an error: the service can run from the environment alone.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) error {
	// The original deployment sent from the SMTP login address.
	if cfg.Mail.FromEmail == "" {
		cfg.Mail.FromEmail = cfg.SMTP.Username
	}
	cfg.Mail.Provider = strings.ToLower(strings.TrimSpace(cfg.Mail.Provider))

	if err := mergo.Merge(cfg, Defaults()); err != nil {
		return fmt.Errorf("applying defaults: %w", err)
	}
	return nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Mail.FromEmail == "" {
		result = multierror.Append(result, errors.New("mail.from_email (FROM_EMAIL or EMAIL_USER) is required"))
	}
	if c.Mail.AdminEmail == "" {
		result = multierror.Append(result, errors.New("mail.admin_email (ADMIN_EMAIL) is required"))
	}

	switch c.Mail.Provider {
	case ProviderSMTP:
		if c.SMTP.Host == "" || c.SMTP.Port == 0 {
			result = multierror.Append(result, errors.New("smtp.host and smtp.port are required"))
		}
		if c.SMTP.Username == "" || c.SMTP.Password == "" {
			result = multierror.Append(result, errors.New("smtp credentials (EMAIL_USER, EMAIL_PASS) are required"))
		}
	case ProviderSES:
		if c.SES.Region == "" {
			result = multierror.Append(result, errors.New("ses.region is required"))
		}
		if (c.SES.AccessKey == "") != (c.SES.SecretKey == "") {
			result = multierror.Append(result, errors.New("ses.access_key and ses.secret_key must be set together"))
		}
	case ProviderSendGrid:
		if c.SendGrid.APIKey == "" {
			result = multierror.Append(result, errors.New("sendgrid.api_key (SENDGRID_API_KEY) is required"))
		}
	case ProviderSparkPost:
		if c.SparkPost.APIKey == "" {
			result = multierror.Append(result, errors.New("sparkpost.api_key (SPARKPOST_API_KEY) is required"))
		}
	case ProviderLog:
	default:
		result = multierror.Append(result, fmt.Errorf("unknown mail.provider %q", c.Mail.Provider))
	}

	if c.Notify.Timezone != "" {
		if _, err := time.LoadLocation(c.Notify.Timezone); err != nil {
			result = multierror.Append(result, fmt.Errorf("notify.timezone: %w", err))
		}
	}
	if !c.RateLimit.Disabled && (c.RateLimit.WindowSeconds <= 0 || c.RateLimit.MaxRequests <= 0) {
		result = multierror.Append(result, errors.New("rate_limit.window_seconds and rate_limit.max_requests must be positive"))
	}
	if c.Upload.MaxFileBytes <= 0 {
		result = multierror.Append(result, errors.New("upload.max_file_bytes must be positive"))
	}

	return result.ErrorOrNil()
}
