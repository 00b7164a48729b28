// Package config loads nichescout settings. Flags win over environment
// variables, which win over a .env file, which wins over defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config keys. They double as environment variable names.
const (
	KeyPort              = "PORT"
	KeyDatabaseURL       = "DATABASE_URL"
	KeyStoreDriver       = "STORE_DRIVER"
	KeySQLitePath        = "SQLITE_PATH"
	KeyRenderer          = "RENDERER"
	KeyBrowserControlURL = "BROWSER_CONTROL_URL"
	KeyBrowserBin        = "BROWSER_BIN"
	KeyBrowserHeadless   = "BROWSER_HEADLESS"
	KeySearchURL         = "SEARCH_URL"
	KeyTrendsURL         = "TRENDS_URL"
	KeyTrendsHL          = "TRENDS_HL"
	KeyTrendsTZ          = "TRENDS_TZ"
	KeyDomainsURL        = "DOMAINS_URL"
	KeyRelatedLimit      = "RELATED_LIMIT"
	KeyHTTPTimeout       = "HTTP_TIMEOUT"
	KeyScrapeTimeout     = "SCRAPE_TIMEOUT"
	KeyFingerprint       = "FINGERPRINT"
	KeyProxiesFile       = "PROXIES_FILE"
	KeyMetricsPort       = "METRICS_PORT"
	KeyLogLevel          = "LOG_LEVEL"
	KeyLogFormat         = "LOG_FORMAT"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	RendererBrowser = "browser"
	RendererHTTP    = "http"
)

type Config struct {
	Port        int
	DatabaseURL string
	StoreDriver string
	SQLitePath  string

	Renderer          string
	BrowserControlURL string
	BrowserBin        string
	BrowserHeadless   bool

	SearchURL  string
	TrendsURL  string
	TrendsHL   string
	TrendsTZ   int
	DomainsURL string

	RelatedLimit  int
	HTTPTimeout   time.Duration
	ScrapeTimeout time.Duration
	Fingerprint   string
	ProxiesFile   string

	// MetricsPort starts a standalone metrics listener when non-zero.
	MetricsPort int

	LogLevel  string
	LogFormat string
}

// New returns a viper instance with defaults set and environment lookup on.
func New() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault(KeyPort, 3111)
	v.SetDefault(KeyStoreDriver, DriverPostgres)
	v.SetDefault(KeySQLitePath, "nichescout.db")
	v.SetDefault(KeyRenderer, RendererBrowser)
	v.SetDefault(KeyBrowserHeadless, true)
	v.SetDefault(KeySearchURL, "https://www.google.com/search")
	v.SetDefault(KeyTrendsURL, "https://trends.google.com")
	v.SetDefault(KeyTrendsHL, "en-US")
	v.SetDefault(KeyTrendsTZ, 360)
	v.SetDefault(KeyDomainsURL, "https://api.domainsdb.info")
	v.SetDefault(KeyRelatedLimit, 5)
	v.SetDefault(KeyHTTPTimeout, 30*time.Second)
	v.SetDefault(KeyScrapeTimeout, 45*time.Second)
	v.SetDefault(KeyFingerprint, "chrome")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	return v
}

// ReadDotEnv merges KEY=value pairs from path. A missing file is not an error.
func ReadDotEnv(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	return nil
}

// Load reads every key from v and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	c := &Config{
		Port:              v.GetInt(KeyPort),
		DatabaseURL:       v.GetString(KeyDatabaseURL),
		StoreDriver:       strings.ToLower(v.GetString(KeyStoreDriver)),
		SQLitePath:        v.GetString(KeySQLitePath),
		Renderer:          strings.ToLower(v.GetString(KeyRenderer)),
		BrowserControlURL: v.GetString(KeyBrowserControlURL),
		BrowserBin:        v.GetString(KeyBrowserBin),
		BrowserHeadless:   v.GetBool(KeyBrowserHeadless),
		SearchURL:         v.GetString(KeySearchURL),
		TrendsURL:         v.GetString(KeyTrendsURL),
		TrendsHL:          v.GetString(KeyTrendsHL),
		TrendsTZ:          v.GetInt(KeyTrendsTZ),
		DomainsURL:        v.GetString(KeyDomainsURL),
		RelatedLimit:      v.GetInt(KeyRelatedLimit),
		HTTPTimeout:       v.GetDuration(KeyHTTPTimeout),
		ScrapeTimeout:     v.GetDuration(KeyScrapeTimeout),
		Fingerprint:       v.GetString(KeyFingerprint),
		ProxiesFile:       v.GetString(KeyProxiesFile),
		MetricsPort:       v.GetInt(KeyMetricsPort),
		LogLevel:          v.GetString(KeyLogLevel),
		LogFormat:         strings.ToLower(v.GetString(KeyLogFormat)),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: %s %d out of range", KeyPort, c.Port)
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		return fmt.Errorf("config: %s %d out of range", KeyMetricsPort, c.MetricsPort)
	}
	switch c.StoreDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("config: unknown %s %q", KeyStoreDriver, c.StoreDriver)
	}
	switch c.Renderer {
	case RendererBrowser, RendererHTTP:
	default:
		return fmt.Errorf("config: unknown %s %q", KeyRenderer, c.Renderer)
	}
	if c.RelatedLimit <= 0 {
		return fmt.Errorf("config: %s must be positive", KeyRelatedLimit)
	}
	if c.HTTPTimeout <= 0 || c.ScrapeTimeout <= 0 {
		return fmt.Errorf("config: timeouts must be positive")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("config: unknown %s %q", KeyLogFormat, c.LogFormat)
	}
	return nil
}

// ValidateStore checks that the selected store has somewhere to connect.
// Only commands that persist need it.
func (c *Config) ValidateStore() error {
	switch {
	case c.StoreDriver == DriverPostgres && c.DatabaseURL == "":
		return fmt.Errorf("config: %s is required for the postgres store", KeyDatabaseURL)
	case c.StoreDriver == DriverSQLite && c.SQLitePath == "":
		return fmt.Errorf("config: %s is required for the sqlite store", KeySQLitePath)
	}
	return nil
}

// NewLogger builds the root logger described by c.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: unknown %s %q", KeyLogLevel, s)
	}
	return l, nil
}
