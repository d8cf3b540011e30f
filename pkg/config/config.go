package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tagfinder/pkg/storage"
)

// DefaultThemes is searched when neither flags nor the config file name any themes.
var DefaultThemes = []string{
	"photography",
	"film photography",
	"illustration",
	"art",
	"music",
	"poetry",
	"writing",
	"cosplay",
	"plants",
	"cooking",
	"hiking",
	"skateboarding",
	"vintage",
	"zine",
}

// Config holds all configuration options for tagfinder
type Config struct {
	Tumblr        TumblrConfig       `yaml:"tumblr" json:"tumblr"`
	Search        SearchConfig       `yaml:"search" json:"search"`
	RateLimit     RateLimitConfig    `yaml:"rate_limit" json:"rate_limit"`
	Location      LocationConfig     `yaml:"location" json:"location"`
	Output        OutputConfig       `yaml:"output" json:"output"`
	Progress      ProgressConfig     `yaml:"progress" json:"progress"`
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`
	Logging       LoggingConfig      `yaml:"logging" json:"logging"`
}

// TumblrConfig holds API credentials and transport settings
type TumblrConfig struct {
	ConsumerKey    string        `yaml:"consumer_key" json:"consumer_key"`
	ConsumerSecret string        `yaml:"consumer_secret" json:"consumer_secret"`
	OAuthToken     string        `yaml:"oauth_token" json:"oauth_token"`
	OAuthSecret    string        `yaml:"oauth_secret" json:"oauth_secret"`
	BaseURL        string        `yaml:"base_url" json:"base_url"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`
}

// SearchConfig controls the crawl and the qualification thresholds
type SearchConfig struct {
	Themes           []string      `yaml:"themes" json:"themes"`
	MaxPostsPerTheme int           `yaml:"max_posts_per_theme" json:"max_posts_per_theme"`
	MinFollowers     int           `yaml:"min_followers" json:"min_followers"`
	MaxDaysInactive  int           `yaml:"max_days_inactive" json:"max_days_inactive"`
	PageSize         int           `yaml:"page_size" json:"page_size"`
	PageDelay        time.Duration `yaml:"page_delay" json:"page_delay"`
	CandidateDelay   time.Duration `yaml:"candidate_delay" json:"candidate_delay"`
	SaveEvery        int           `yaml:"save_every" json:"save_every"`
}

// RateLimitConfig holds the two-tier call budget
type RateLimitConfig struct {
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	HourlyLimit    int           `yaml:"hourly_limit" json:"hourly_limit"`
	DailyLimit     int           `yaml:"daily_limit" json:"daily_limit"`
	SafetyMargin   int           `yaml:"safety_margin" json:"safety_margin"`
	WaitBuffer     time.Duration `yaml:"wait_buffer" json:"wait_buffer"`
	BurstPerMinute int           `yaml:"burst_per_minute" json:"burst_per_minute"`
}

// LocationConfig overrides the gazetteer. An empty list keeps the built-in terms.
type LocationConfig struct {
	Terms []string `yaml:"terms" json:"terms"`
}

// OutputConfig selects export sinks
type OutputConfig struct {
	BaseName    string   `yaml:"base_name" json:"base_name"`
	Formats     []string `yaml:"formats" json:"formats"`
	SQLitePath  string   `yaml:"sqlite_path" json:"sqlite_path"`
	PostgresDSN string   `yaml:"postgres_dsn" json:"postgres_dsn"`
}

// ProgressConfig locates the resumable progress file
type ProgressConfig struct {
	File   string `yaml:"file" json:"file"`
	Resume bool   `yaml:"resume" json:"resume"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled     bool `yaml:"enabled" json:"enabled"`
	OnComplete  bool `yaml:"on_complete" json:"on_complete"`
	OnRateLimit bool `yaml:"on_rate_limit" json:"on_rate_limit"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	Format  string `yaml:"format" json:"format"`
	File    string `yaml:"file" json:"file"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// DefaultConfig returns a Config instance with the stock search settings
func DefaultConfig() *Config {
	return &Config{
		Tumblr: TumblrConfig{
			BaseURL:   "https://api.tumblr.com",
			UserAgent: "tagfinder/1.0",
			Timeout:   30 * time.Second,
		},
		Search: SearchConfig{
			Themes:           append([]string(nil), DefaultThemes...),
			MaxPostsPerTheme: 500,
			MinFollowers:     10,
			MaxDaysInactive:  90,
			PageSize:         20,
			PageDelay:        2 * time.Second,
			CandidateDelay:   2 * time.Second,
			SaveEvery:        10,
		},
		RateLimit: RateLimitConfig{
			Enabled:      true,
			HourlyLimit:  1000,
			DailyLimit:   5000,
			SafetyMargin: 10,
			WaitBuffer:   10 * time.Second,
		},
		Output: OutputConfig{
			BaseName: "results",
			Formats:  []string{"json", "csv"},
		},
		Progress: ProgressConfig{
			File: "search_progress.json",
		},
		Notifications: NotificationConfig{
			Enabled:     false,
			OnComplete:  true,
			OnRateLimit: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("TUMBLR_CONSUMER_KEY"); v != "" {
		c.Tumblr.ConsumerKey = v
	}
	if v := os.Getenv("TUMBLR_CONSUMER_SECRET"); v != "" {
		c.Tumblr.ConsumerSecret = v
	}
	if v := os.Getenv("TUMBLR_OAUTH_TOKEN"); v != "" {
		c.Tumblr.OAuthToken = v
	}
	if v := os.Getenv("TUMBLR_OAUTH_SECRET"); v != "" {
		c.Tumblr.OAuthSecret = v
	}
	if v := os.Getenv("TAGFINDER_BASE_URL"); v != "" {
		c.Tumblr.BaseURL = v
	}

	if v := os.Getenv("TAGFINDER_THEMES"); v != "" {
		c.Search.Themes = SplitThemes(v)
	}

	ints := map[string]*int{
		"TAGFINDER_MAX_POSTS_PER_THEME": &c.Search.MaxPostsPerTheme,
		"TAGFINDER_MIN_FOLLOWERS":       &c.Search.MinFollowers,
		"TAGFINDER_MAX_DAYS_INACTIVE":   &c.Search.MaxDaysInactive,
		"TAGFINDER_HOURLY_LIMIT":        &c.RateLimit.HourlyLimit,
		"TAGFINDER_DAILY_LIMIT":         &c.RateLimit.DailyLimit,
	}
	var errs []error
	for name, dst := range ints {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		*dst = n
	}

	if v := os.Getenv("TAGFINDER_OUTPUT"); v != "" {
		c.Output.BaseName = v
	}
	if v := os.Getenv("TAGFINDER_POSTGRES_DSN"); v != "" {
		c.Output.PostgresDSN = v
	}
	if v := os.Getenv("TAGFINDER_PROGRESS_FILE"); v != "" {
		c.Progress.File = v
	}
	if v := os.Getenv("TAGFINDER_NOTIFICATIONS_ENABLED"); v != "" {
		c.Notifications.Enabled = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("TAGFINDER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// FindConfigFile searches the standard locations and returns the first hit, or "".
func FindConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"tagfinder.yaml",
		".tagfinder.yaml",
		".tagfinder.yml",
		filepath.Join(home, ".config", "tagfinder", "config.yaml"),
		filepath.Join(home, ".config", "tagfinder", "config.yml"),
		filepath.Join(home, ".tagfinder.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks everything except credentials
func (c *Config) Validate() error {
	var errs []error

	if len(c.Search.Themes) == 0 {
		errs = append(errs, errors.New("at least one theme is required"))
	}
	if c.Search.MaxPostsPerTheme <= 0 {
		errs = append(errs, errors.New("max posts per theme must be positive"))
	}
	if c.Search.MinFollowers < 0 {
		errs = append(errs, errors.New("min followers cannot be negative"))
	}
	if c.Search.MaxDaysInactive < 0 {
		errs = append(errs, errors.New("max days inactive cannot be negative"))
	}
	if c.Search.PageSize <= 0 || c.Search.PageSize > 20 {
		errs = append(errs, errors.New("page size must be between 1 and 20"))
	}
	if c.Search.PageDelay < 0 || c.Search.CandidateDelay < 0 {
		errs = append(errs, errors.New("delays cannot be negative"))
	}
	if c.Search.SaveEvery <= 0 {
		errs = append(errs, errors.New("save_every must be positive"))
	}

	if c.RateLimit.SafetyMargin < 0 {
		errs = append(errs, errors.New("safety margin cannot be negative"))
	}
	if c.RateLimit.HourlyLimit <= c.RateLimit.SafetyMargin {
		errs = append(errs, errors.New("hourly limit must exceed the safety margin"))
	}
	if c.RateLimit.DailyLimit <= c.RateLimit.SafetyMargin {
		errs = append(errs, errors.New("daily limit must exceed the safety margin"))
	}
	if c.RateLimit.BurstPerMinute < 0 {
		errs = append(errs, errors.New("burst per minute cannot be negative"))
	}

	if c.Tumblr.BaseURL == "" {
		errs = append(errs, errors.New("tumblr base URL is required"))
	}
	if c.Tumblr.Timeout < 0 {
		errs = append(errs, errors.New("tumblr timeout cannot be negative"))
	}

	if c.Output.BaseName == "" {
		errs = append(errs, errors.New("output base name is required"))
	}
	validFormats := map[string]bool{"json": true, "csv": true, "sqlite": true, "postgres": true}
	for _, f := range c.Output.Formats {
		if !validFormats[strings.ToLower(f)] {
			errs = append(errs, fmt.Errorf("unknown output format %q", f))
		}
		if strings.EqualFold(f, "postgres") && c.Output.PostgresDSN == "" {
			errs = append(errs, errors.New("postgres output requires output.postgres_dsn"))
		}
	}

	if c.Progress.File == "" {
		errs = append(errs, errors.New("progress file path is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	if f := strings.ToLower(c.Logging.Format); f != "text" && f != "json" {
		errs = append(errs, errors.New("log format must be text or json"))
	}

	return errors.Join(errs...)
}

// ValidateCredentials reports every missing Tumblr credential at once.
func (c *Config) ValidateCredentials() error {
	var errs []error
	if c.Tumblr.ConsumerKey == "" {
		errs = append(errs, errors.New("TUMBLR_CONSUMER_KEY is required"))
	}
	if c.Tumblr.ConsumerSecret == "" {
		errs = append(errs, errors.New("TUMBLR_CONSUMER_SECRET is required"))
	}
	if c.Tumblr.OAuthToken == "" {
		errs = append(errs, errors.New("TUMBLR_OAUTH_TOKEN is required"))
	}
	if c.Tumblr.OAuthSecret == "" {
		errs = append(errs, errors.New("TUMBLR_OAUTH_SECRET is required"))
	}
	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	err = storage.WriteFilePerm(path, 0600, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeCommandLineFlags applies flag values. Only flags the user actually set
// should be present in the map, so zero values are honoured.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["themes"].(string); ok && v != "" {
		c.Search.Themes = SplitThemes(v)
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.BaseName = v
	}
	if v, ok := flags["max-posts-per-theme"].(int); ok {
		c.Search.MaxPostsPerTheme = v
	}
	if v, ok := flags["min-followers"].(int); ok {
		c.Search.MinFollowers = v
	}
	if v, ok := flags["max-days-inactive"].(int); ok {
		c.Search.MaxDaysInactive = v
	}
	if v, ok := flags["hourly-limit"].(int); ok {
		c.RateLimit.HourlyLimit = v
	}
	if v, ok := flags["daily-limit"].(int); ok {
		c.RateLimit.DailyLimit = v
	}
	if v, ok := flags["no-rate-limit"].(bool); ok && v {
		c.RateLimit.Enabled = false
	}
	if v, ok := flags["resume"].(bool); ok {
		c.Progress.Resume = v
	}
	if v, ok := flags["progress-file"].(string); ok && v != "" {
		c.Progress.File = v
	}
	if v, ok := flags["format"].(string); ok && v != "" {
		c.Output.Formats = strings.Split(v, ",")
		for i := range c.Output.Formats {
			c.Output.Formats[i] = strings.TrimSpace(c.Output.Formats[i])
		}
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["notifications"].(bool); ok {
		c.Notifications.Enabled = v
	}
}

// SplitThemes parses a comma-separated theme list, dropping blanks.
func SplitThemes(s string) []string {
	var themes []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			themes = append(themes, t)
		}
	}
	return themes
}

// Load loads configuration from all sources with proper precedence:
// flags, environment (including .env files), config file, defaults.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".tagfinder.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
