package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	IMAP       IMAPConfig       `mapstructure:"imap" yaml:"imap"`
	SMTP       SMTPConfig       `mapstructure:"smtp" yaml:"smtp"`
	Auth       AuthConfig       `mapstructure:"auth" yaml:"auth"`
	Schedule   ScheduleConfig   `mapstructure:"schedule" yaml:"schedule"`
	Summarizer SummarizerConfig `mapstructure:"summarizer" yaml:"summarizer"`
	Extract    ExtractConfig    `mapstructure:"extract" yaml:"extract"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`

	KeyringBackend string `mapstructure:"keyring_backend" yaml:"keyring_backend,omitempty"`
}

type IMAPConfig struct {
	Host               string `mapstructure:"host" yaml:"host"`
	Port               int    `mapstructure:"port" yaml:"port"`
	TLS                bool   `mapstructure:"tls" yaml:"tls"`
	StartTLS           bool   `mapstructure:"starttls" yaml:"starttls"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	Mailbox            string `mapstructure:"mailbox" yaml:"mailbox"`
}

type SMTPConfig struct {
	Host               string `mapstructure:"host" yaml:"host"`
	Port               int    `mapstructure:"port" yaml:"port"`
	TLS                bool   `mapstructure:"tls" yaml:"tls"`
	StartTLS           bool   `mapstructure:"starttls" yaml:"starttls"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

// AuthConfig is shared by IMAP and SMTP; the username is also the digest
// recipient.
type AuthConfig struct {
	Username       string `mapstructure:"username" yaml:"username"`
	Password       string `mapstructure:"password" yaml:"password,omitempty"`
	PasswordSource string `mapstructure:"-" yaml:"-"`
}

type ScheduleConfig struct {
	Timezone string `mapstructure:"timezone" yaml:"timezone"`
	Hour     int    `mapstructure:"hour" yaml:"hour"`
	Minute   int    `mapstructure:"minute" yaml:"minute"`
}

type SummarizerConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Model   string        `mapstructure:"model" yaml:"model"`
	APIKey  string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type ExtractConfig struct {
	HTMLFallback bool `mapstructure:"html_fallback" yaml:"html_fallback"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

func DefaultConfig() Config {
	return Config{
		IMAP: IMAPConfig{
			Port:     993,
			TLS:      true,
			StartTLS: false,
			Mailbox:  "INBOX",
		},
		SMTP: SMTPConfig{
			Port:     465,
			TLS:      true,
			StartTLS: false,
		},
		Schedule: ScheduleConfig{
			Timezone: "Asia/Kolkata",
			Hour:     20,
			Minute:   0,
		},
		Summarizer: SummarizerConfig{
			BaseURL: "http://localhost:11434/v1",
			Model:   "llama3.2",
			Timeout: 60 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func ConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("MAILDIGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func Save(cfg Config) (string, error) {
	path, err := ConfigPath()
	if err != nil {
		return "", err
	}

	if _, err := EnsureDir(); err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}

	return path, nil
}

func Redact(cfg Config) Config {
	masked := cfg
	if masked.Auth.Password != "" {
		masked.Auth.Password = "****"
	}
	if masked.Summarizer.APIKey != "" {
		masked.Summarizer.APIKey = "****"
	}
	return masked
}

// Location resolves the configured schedule time zone.
func (c Config) Location() (*time.Location, error) {
	name := c.Schedule.Timezone
	if name == "" {
		name = "Local"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("schedule.timezone %q: %w", name, err)
	}
	return loc, nil
}

// setDefaults registers every key with viper so that AutomaticEnv can
// override values that are absent from the file.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("imap.host", cfg.IMAP.Host)
	v.SetDefault("imap.port", cfg.IMAP.Port)
	v.SetDefault("imap.tls", cfg.IMAP.TLS)
	v.SetDefault("imap.starttls", cfg.IMAP.StartTLS)
	v.SetDefault("imap.insecure_skip_verify", cfg.IMAP.InsecureSkipVerify)
	v.SetDefault("imap.mailbox", cfg.IMAP.Mailbox)

	v.SetDefault("smtp.host", cfg.SMTP.Host)
	v.SetDefault("smtp.port", cfg.SMTP.Port)
	v.SetDefault("smtp.tls", cfg.SMTP.TLS)
	v.SetDefault("smtp.starttls", cfg.SMTP.StartTLS)
	v.SetDefault("smtp.insecure_skip_verify", cfg.SMTP.InsecureSkipVerify)

	v.SetDefault("auth.username", cfg.Auth.Username)
	v.SetDefault("auth.password", cfg.Auth.Password)

	v.SetDefault("schedule.timezone", cfg.Schedule.Timezone)
	v.SetDefault("schedule.hour", cfg.Schedule.Hour)
	v.SetDefault("schedule.minute", cfg.Schedule.Minute)

	v.SetDefault("summarizer.base_url", cfg.Summarizer.BaseURL)
	v.SetDefault("summarizer.model", cfg.Summarizer.Model)
	v.SetDefault("summarizer.api_key", cfg.Summarizer.APIKey)
	v.SetDefault("summarizer.timeout", cfg.Summarizer.Timeout)

	v.SetDefault("extract.html_fallback", cfg.Extract.HTMLFallback)

	v.SetDefault("log.level", cfg.Log.Level)
}

func Validate(cfg Config) error {
	if err := ValidateIMAP(cfg); err != nil {
		return err
	}
	if err := ValidateSMTP(cfg); err != nil {
		return err
	}
	if err := ValidateSchedule(cfg); err != nil {
		return err
	}
	return ValidateSummarizer(cfg)
}

func ValidateIMAP(cfg Config) error {
	if cfg.IMAP.Host == "" {
		return fmt.Errorf("imap.host is required")
	}
	if cfg.IMAP.Mailbox == "" {
		return fmt.Errorf("imap.mailbox is required")
	}
	return validateAuth(cfg)
}

func ValidateSMTP(cfg Config) error {
	if cfg.SMTP.Host == "" {
		return fmt.Errorf("smtp.host is required")
	}
	if !cfg.SMTP.TLS && !cfg.SMTP.StartTLS {
		return fmt.Errorf("smtp requires tls or starttls")
	}
	return validateAuth(cfg)
}

func ValidateSchedule(cfg Config) error {
	if cfg.Schedule.Hour < 0 || cfg.Schedule.Hour > 23 {
		return fmt.Errorf("schedule.hour must be between 0 and 23")
	}
	if cfg.Schedule.Minute < 0 || cfg.Schedule.Minute > 59 {
		return fmt.Errorf("schedule.minute must be between 0 and 59")
	}
	if _, err := cfg.Location(); err != nil {
		return err
	}
	return nil
}

func ValidateSummarizer(cfg Config) error {
	if cfg.Summarizer.BaseURL == "" {
		return fmt.Errorf("summarizer.base_url is required")
	}
	if cfg.Summarizer.Model == "" {
		return fmt.Errorf("summarizer.model is required")
	}
	return nil
}

func validateAuth(cfg Config) error {
	if cfg.Auth.Username == "" {
		return fmt.Errorf("auth.username is required")
	}
	if cfg.Auth.Password == "" {
		return fmt.Errorf("auth.password is required")
	}
	return nil
}
