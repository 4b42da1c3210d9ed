package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Supabase  SupabaseConfig  `yaml:"supabase"`
	Email     EmailConfig     `yaml:"email"`
	Cron      CronConfig      `yaml:"cron"`
	Reminders ReminderConfig  `yaml:"reminders"`
	Log       LogConfig       `yaml:"log"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Trigger   TriggerConfig   `yaml:"trigger"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig contains PostgreSQL connection settings.
// URL takes precedence over the individual fields when set.
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// SupabaseConfig contains the hosted project settings
type SupabaseConfig struct {
	URL            string `yaml:"url"`
	ServiceRoleKey string `yaml:"service_role_key"`
	JWTSecret      string `yaml:"jwt_secret"`
}

// EmailConfig contains outbound email settings
type EmailConfig struct {
	Provider       string `yaml:"provider"` // "resend" or "sendgrid"
	ResendAPIKey   string `yaml:"resend_api_key"`
	ResendBaseURL  string `yaml:"resend_base_url"`
	SendGridAPIKey string `yaml:"sendgrid_api_key"`
	From           string `yaml:"from"`
	FromName       string `yaml:"from_name"`
	AppBaseURL     string `yaml:"app_base_url"`
	MaxAttempts    int    `yaml:"max_attempts"`
}

// CronConfig contains the scheduled-job authentication settings
type CronConfig struct {
	SecretCurrent   string `yaml:"secret_current"`
	SecretPrevious  string `yaml:"secret_previous"`
	MaxDriftSeconds int    `yaml:"max_drift_seconds"`
}

// ReminderConfig tunes reminder spacing and negotiation staleness
type ReminderConfig struct {
	CooldownHours        int `yaml:"cooldown_hours"`
	FinalCooldownHours   int `yaml:"final_cooldown_hours"`
	NegotiationStaleDays int `yaml:"negotiation_stale_days"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	ExpireInvites      string `yaml:"expire_invites"`
	SendRFPReminders   string `yaml:"send_rfp_reminders"`
	ExpireNegotiations string `yaml:"expire_negotiations"`
	RetryFailedEmails  string `yaml:"retry_failed_emails"`
}

// TriggerConfig tells the cronjob runner where the job endpoints live
type TriggerConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DATABASE_URL"); val != "" {
		c.Database.URL = val
	}
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}

	// Supabase
	if val := os.Getenv("SUPABASE_URL"); val != "" {
		c.Supabase.URL = val
	}
	if val := os.Getenv("SUPABASE_SERVICE_ROLE_KEY"); val != "" {
		c.Supabase.ServiceRoleKey = val
	}
	if val := os.Getenv("SUPABASE_JWT_SECRET"); val != "" {
		c.Supabase.JWTSecret = val
	}

	// Email
	if val := os.Getenv("EMAIL_PROVIDER"); val != "" {
		c.Email.Provider = val
	}
	if val := os.Getenv("RESEND_API_KEY"); val != "" {
		c.Email.ResendAPIKey = val
	}
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.Email.SendGridAPIKey = val
	}
	if val := os.Getenv("EMAIL_FROM"); val != "" {
		c.Email.From = val
	}
	if val := os.Getenv("APP_BASE_URL"); val != "" {
		c.Email.AppBaseURL = val
	}

	// Cron
	if val := os.Getenv("CRON_SECRET_CURRENT"); val != "" {
		c.Cron.SecretCurrent = val
	}
	if val := os.Getenv("CRON_SECRET_PREVIOUS"); val != "" {
		c.Cron.SecretPrevious = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// Validate checks if the configuration is valid and fills defaults
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.URL == "" {
		if c.Database.Host == "" {
			return fmt.Errorf("database url or host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if c.Supabase.JWTSecret == "" {
		return fmt.Errorf("supabase JWT secret is required")
	}

	// Only the current secret is mandatory; previous is set during rotation.
	if c.Cron.SecretCurrent == "" {
		return fmt.Errorf("CRON_SECRET_CURRENT is required")
	}
	if c.Cron.SecretPrevious != "" && c.Cron.SecretPrevious == c.Cron.SecretCurrent {
		return fmt.Errorf("CRON_SECRET_PREVIOUS must differ from CRON_SECRET_CURRENT")
	}
	if c.Cron.MaxDriftSeconds <= 0 {
		c.Cron.MaxDriftSeconds = 60
	}

	c.Email.Provider = strings.ToLower(c.Email.Provider)
	if c.Email.Provider == "" {
		c.Email.Provider = "resend"
	}
	switch c.Email.Provider {
	case "resend":
		if c.Email.ResendAPIKey == "" {
			return fmt.Errorf("RESEND_API_KEY is required for the resend provider")
		}
	case "sendgrid":
		if c.Email.SendGridAPIKey == "" {
			return fmt.Errorf("SENDGRID_API_KEY is required for the sendgrid provider")
		}
	default:
		return fmt.Errorf("unsupported email provider: %s", c.Email.Provider)
	}
	if c.Email.From == "" {
		return fmt.Errorf("email sender address is required")
	}
	if c.Email.ResendBaseURL == "" {
		c.Email.ResendBaseURL = "https://api.resend.com"
	}
	if c.Email.MaxAttempts <= 0 {
		c.Email.MaxAttempts = 3
	}

	if c.Reminders.CooldownHours <= 0 {
		c.Reminders.CooldownHours = 24
	}
	if c.Reminders.FinalCooldownHours <= 0 {
		c.Reminders.FinalCooldownHours = 12
	}
	if c.Reminders.NegotiationStaleDays <= 0 {
		c.Reminders.NegotiationStaleDays = 30
	}

	// Scheduler defaults
	if c.Scheduler.ExpireInvites == "" {
		c.Scheduler.ExpireInvites = "0 5 * * * *" // hourly at :05
	}
	if c.Scheduler.SendRFPReminders == "" {
		c.Scheduler.SendRFPReminders = "0 0 7 * * *" // 7 AM UTC, 9-10 AM Israel
	}
	if c.Scheduler.ExpireNegotiations == "" {
		c.Scheduler.ExpireNegotiations = "0 30 2 * * *"
	}
	if c.Scheduler.RetryFailedEmails == "" {
		c.Scheduler.RetryFailedEmails = "0 */15 * * * *"
	}

	if c.Trigger.BaseURL == "" && c.Supabase.URL != "" {
		c.Trigger.BaseURL = strings.TrimRight(c.Supabase.URL, "/") + "/functions/v1"
	}
	if c.Trigger.TimeoutSeconds <= 0 {
		c.Trigger.TimeoutSeconds = 120
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		sslMode,
	)
}

// GetServerAddress returns the HTTP listen address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) CronMaxDrift() time.Duration {
	return time.Duration(c.Cron.MaxDriftSeconds) * time.Second
}

func (c *Config) ReminderCooldown() time.Duration {
	return time.Duration(c.Reminders.CooldownHours) * time.Hour
}

func (c *Config) FinalReminderCooldown() time.Duration {
	return time.Duration(c.Reminders.FinalCooldownHours) * time.Hour
}

func (c *Config) NegotiationStaleAfter() time.Duration {
	return time.Duration(c.Reminders.NegotiationStaleDays) * 24 * time.Hour
}
