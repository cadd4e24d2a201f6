package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath = "INBOXSWEEP_CONFIG"
	envEmail      = "INBOXSWEEP_EMAIL"
	envPassword   = "INBOXSWEEP_PASSWORD"

	DefaultPath = "inboxsweep.yaml"

	defaultDaysBeforeDelete = 3
	defaultTimeoutSeconds   = 30

	placeholderEmail    = "your_email@qq.com"
	placeholderPassword = "your_app_password"
	placeholderSender   = "sender1@example.com"
)

var (
	ErrConfigMissing = errors.New("configuration file not found")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config mirrors the keys of the configuration file.
type Config struct {
	Email    string   `yaml:"email"`
	Password string   `yaml:"password"`
	Provider Provider `yaml:"email_type"`

	TargetSenders SenderList `yaml:"target_senders"`

	// DeletePermanently is accepted for compatibility. Real deletions always
	// purge, so it has no effect beyond dry_run: false.
	DeletePermanently bool `yaml:"delete_permanently"`

	DryRun                bool   `yaml:"dry_run"`
	DaysBeforeDelete      int    `yaml:"days_before_delete"`
	CleanReadNoAttachment bool   `yaml:"clean_read_no_attachment"`
	SendNotification      bool   `yaml:"send_notification"`
	NotificationEmail     string `yaml:"notification_email"`

	IMAPHost       string       `yaml:"imap_host,omitempty"`
	IMAPPort       int          `yaml:"imap_port,omitempty"`
	SMTPHost       string       `yaml:"smtp_host,omitempty"`
	SMTPPort       int          `yaml:"smtp_port,omitempty"`
	SMTPSecurity   SMTPSecurity `yaml:"smtp_security,omitempty"`
	TimeoutSeconds int          `yaml:"timeout_seconds,omitempty"`
}

// SenderList accepts either a YAML sequence or a comma-separated string.
type SenderList []string

func (s *SenderList) UnmarshalYAML(node *yaml.Node) error {
	var raw []string
	switch node.Kind {
	case yaml.ScalarNode:
		var value string
		if err := node.Decode(&value); err != nil {
			return err
		}
		raw = strings.Split(value, ",")
	case yaml.SequenceNode:
		if err := node.Decode(&raw); err != nil {
			return err
		}
	default:
		return fmt.Errorf("target_senders must be a string or a list")
	}

	senders := make([]string, 0, len(raw))
	for _, sender := range raw {
		sender = strings.TrimSpace(sender)
		if sender == "" {
			continue
		}
		senders = append(senders, sender)
	}
	*s = senders
	return nil
}

// Defaults returns the values used for keys absent from the file.
func Defaults() Config {
	return Config{
		Provider:         ProviderQQ,
		DryRun:           true,
		DaysBeforeDelete: defaultDaysBeforeDelete,
		SendNotification: true,
		TimeoutSeconds:   defaultTimeoutSeconds,
	}
}

// Template returns the configuration written for first-time users.
func Template() Config {
	cfg := Defaults()
	cfg.Email = placeholderEmail
	cfg.Password = placeholderPassword
	cfg.TargetSenders = SenderList{placeholderSender, "sender2@example.com"}
	cfg.NotificationEmail = placeholderEmail
	return cfg
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigMissing, path)
		}
		return Config{}, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}

	if email := strings.TrimSpace(os.Getenv(envEmail)); email != "" {
		cfg.Email = email
	}
	if pass := strings.TrimSpace(os.Getenv(envPassword)); pass != "" {
		cfg.Password = pass
	}

	return cfg, nil
}

// WriteTemplate creates path with the template configuration. An existing
// file is left untouched.
func WriteTemplate(path string) error {
	data, err := yaml.Marshal(Template())
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Validate performs validation of a loaded configuration.
func Validate(cfg Config) error {
	missing := []string{}
	if strings.TrimSpace(cfg.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(cfg.Password) == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required keys: %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}
	if strings.TrimSpace(cfg.Email) == placeholderEmail || strings.TrimSpace(cfg.Password) == placeholderPassword {
		return fmt.Errorf("%w: email and password still hold the template placeholders", ErrInvalidConfig)
	}

	if _, err := cfg.Provider.Profile(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.DaysBeforeDelete < 0 {
		return fmt.Errorf("%w: days_before_delete must be >= 0, got %d", ErrInvalidConfig, cfg.DaysBeforeDelete)
	}
	if cfg.IMAPPort < 0 || cfg.SMTPPort < 0 {
		return fmt.Errorf("%w: ports must be positive", ErrInvalidConfig)
	}
	if cfg.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: timeout_seconds must be >= 0", ErrInvalidConfig)
	}
	if cfg.SMTPSecurity != "" {
		if err := cfg.SMTPSecurity.validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

// Senders returns the configured sender list, or nil when it still holds the
// template placeholder.
func (c Config) Senders() []string {
	if len(c.TargetSenders) == 0 || c.TargetSenders[0] == placeholderSender {
		return nil
	}
	return c.TargetSenders
}

// Server resolves the provider profile with any explicit overrides applied.
func (c Config) Server() (Profile, error) {
	profile, err := c.Provider.Profile()
	if err != nil {
		return Profile{}, err
	}
	if strings.TrimSpace(c.IMAPHost) != "" {
		profile.IMAPHost = strings.TrimSpace(c.IMAPHost)
	}
	if c.IMAPPort > 0 {
		profile.IMAPPort = c.IMAPPort
	}
	if strings.TrimSpace(c.SMTPHost) != "" {
		profile.SMTPHost = strings.TrimSpace(c.SMTPHost)
	}
	if c.SMTPPort > 0 {
		profile.SMTPPort = c.SMTPPort
	}
	if c.SMTPSecurity != "" {
		profile.SMTPSecurity = c.SMTPSecurity
	}
	return profile, nil
}

// Timeout returns the dial timeout for IMAP and SMTP connections.
func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return defaultTimeoutSeconds * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// NotificationsEnabled reports whether a summary should be sent after a run.
func (c Config) NotificationsEnabled() bool {
	return c.SendNotification && strings.TrimSpace(c.NotificationEmail) != ""
}

// Summary returns a concise config summary. Credentials are never included.
func Summary(cfg Config) string {
	notification := "disabled"
	if cfg.NotificationsEnabled() {
		notification = cfg.NotificationEmail
	}
	senders := "(not set)"
	if list := cfg.Senders(); len(list) > 0 {
		senders = strings.Join(list, ", ")
	}
	return fmt.Sprintf(
		"Config summary\n"+
			"- mailbox: %s (%s)\n"+
			"- target senders: %s\n"+
			"- days before delete: %d\n"+
			"- clean read without attachment: %t\n"+
			"- dry run: %t\n"+
			"- notification: %s",
		defaultIfEmpty(cfg.Email, "(not set)"),
		cfg.Provider,
		senders,
		cfg.DaysBeforeDelete,
		cfg.CleanReadNoAttachment,
		cfg.DryRun,
		notification,
	)
}

func defaultIfEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
