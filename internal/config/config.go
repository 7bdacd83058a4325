package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	"kinorium-scraper/adapters"
	"kinorium-scraper/internal/types"
)

// Load reads .env if present, then overrides the defaults from the environment
func Load() (*types.Config, error) {
	_ = godotenv.Load()

	cfg := types.DefaultConfig()
	if err := applyEnvironment(cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func applyEnvironment(cfg *types.Config) error {
	envString("APP_NAME", &cfg.AppName)
	envString("HOST", &cfg.Host)
	envString("PORT", &cfg.Port)
	envString("DATABASE_PATH", &cfg.DatabasePath)
	envString("BASE_URL", &cfg.BaseURL)
	envString("GENRE_LISTING_PATH", &cfg.GenreListingPath)
	envString("GENRES_FILE", &cfg.GenresFile)
	envString("USER_AGENT", &cfg.UserAgent)
	envString("ACCEPT_LANGUAGE", &cfg.AcceptLanguage)
	envString("CHROME_PATH", &cfg.ChromePath)
	envString("SEARCH_READY_SELECTOR", &cfg.SearchReadySelector)
	envString("DETAIL_READY_SELECTOR", &cfg.DetailReadySelector)

	if debug, ok := os.LookupEnv("DEBUG"); ok {
		if on, err := strconv.ParseBool(debug); err == nil && on {
			cfg.LogLevel = "debug"
		}
	}
	envString("LOG_LEVEL", &cfg.LogLevel)

	parsers := []func() error{
		func() error { return envDuration("REQUEST_TIMEOUT", time.Second, &cfg.RequestTimeout) },
		func() error { return envDuration("BROWSER_TIMEOUT", time.Millisecond, &cfg.BrowserTimeout) },
		func() error { return envDuration("REQUEST_DEADLINE", time.Second, &cfg.RequestDeadline) },
		func() error { return envDuration("STORE_TIMEOUT", time.Second, &cfg.StoreTimeout) },
		func() error { return envDuration("INTERACTIVE_LINGER", time.Second, &cfg.InteractiveLinger) },
		func() error { return envInt("CONNECT_RETRIES", &cfg.ConnectRetries) },
		func() error { return envInt("BROWSER_POOL_SIZE", &cfg.BrowserPoolSize) },
		func() error { return envInt("LISTING_LIMIT", &cfg.ListingLimit) },
		func() error { return envBool("HEADLESS_MODE", &cfg.UseHeadlessBrowser) },
	}
	for _, parse := range parsers {
		if err := parse(); err != nil {
			return err
		}
	}
	return nil
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func envInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	*dst = b
	return nil
}

// envDuration reads a plain number in unit, or a Go duration string like "45s"
func envDuration(key string, unit time.Duration, dst *time.Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	v = strings.TrimSpace(v)
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = time.Duration(n * float64(unit))
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s must be a number or a duration, got %q", key, v)
	}
	*dst = d
	return nil
}

func validate(cfg *types.Config) error {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return fmt.Errorf("BASE_URL must be an absolute URL, got %q", cfg.BaseURL)
	}
	if !strings.Contains(cfg.GenreListingPath, "%s") {
		return fmt.Errorf("GENRE_LISTING_PATH must contain %%s, got %q", cfg.GenreListingPath)
	}
	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a TCP port, got %q", cfg.Port)
	}

	positive := map[string]time.Duration{
		"REQUEST_TIMEOUT":  cfg.RequestTimeout,
		"BROWSER_TIMEOUT":  cfg.BrowserTimeout,
		"REQUEST_DEADLINE": cfg.RequestDeadline,
		"STORE_TIMEOUT":    cfg.StoreTimeout,
	}
	for key, d := range positive {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", key, d)
		}
	}
	if cfg.InteractiveLinger < 0 {
		return fmt.Errorf("INTERACTIVE_LINGER must not be negative, got %v", cfg.InteractiveLinger)
	}
	if cfg.ConnectRetries < 0 {
		return fmt.Errorf("CONNECT_RETRIES must not be negative, got %d", cfg.ConnectRetries)
	}
	if cfg.BrowserPoolSize < 1 {
		return fmt.Errorf("BROWSER_POOL_SIZE must be at least 1, got %d", cfg.BrowserPoolSize)
	}
	if cfg.ListingLimit < 0 {
		return fmt.Errorf("LISTING_LIMIT must not be negative, got %d", cfg.ListingLimit)
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}

type genresFile struct {
	Genres map[string]string `yaml:"genres"`
}

// LoadGenres builds the genre resolver from a YAML file, or from the built-in
// table when path is empty.
func LoadGenres(path string) (*adapters.GenreResolver, error) {
	if path == "" {
		return adapters.NewGenreResolver(adapters.DefaultGenres)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genres file: %w", err)
	}
	var file genresFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse genres yaml: %w", err)
	}
	resolver, err := adapters.NewGenreResolver(file.Genres)
	if err != nil {
		return nil, fmt.Errorf("genres file %s: %w", path, err)
	}
	return resolver, nil
}

// NewLogger creates the process logger at level, falling back to info
func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()

	// Set timestamp format with milliseconds
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	return logger
}
