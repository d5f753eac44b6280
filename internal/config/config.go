package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/openweather-collector/internal/common"
	"github.com/i474232898/openweather-collector/internal/weather"
)

// valuePrefix marks env vars that supply arbitrary placeholder values,
// e.g. PROVIDER_VALUE_LANG=en fills {lang}.
const valuePrefix = "PROVIDER_VALUE_"

var validate = validator.New()

type AppConfig struct {
	Provider string `validate:"required"`

	// Overrides of the provider's default setting; zero values keep the default.
	ProviderHost string
	ProviderPort int           `validate:"gte=0,lte=65535"`
	ReadTimeout  time.Duration `validate:"gte=0"`
	Values       map[string]string

	// Overrides of the provider's default activity.
	ActivityStart    string
	ActivityEnd      string
	ActivityInterval time.Duration `validate:"gte=0"`
	ActivityTimezone *time.Location

	// PropertiesFile replaces the provider's built-in property definitions.
	PropertiesFile string

	StoreBackend    string `validate:"oneof=memory redis"`
	RedisAddr       string `validate:"required_if=StoreBackend redis"`
	RedisPassword   string
	RedisDB         int           `validate:"gte=0"`
	StoreMaxHistory int           // max number of snapshots per provider (0 = unlimited)
	StoreMaxAge     time.Duration // max age of snapshots (0 = unlimited)

	FetchMaxRetries    int           `validate:"gte=0,lte=10"`
	FetchRetryInterval time.Duration `validate:"gt=0"`
	RunTimeout         time.Duration `validate:"gt=0"`

	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=console json"`

	Port string `validate:"required,numeric"`
}

// Load reads configuration from the environment, after loading a .env file
// when one exists.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds and validates the configuration from environment variables.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{
		Provider:       strings.ToLower(getenvDefault("PROVIDER", "openweather")),
		ProviderHost:   os.Getenv("PROVIDER_HOST"),
		PropertiesFile: os.Getenv("PROPERTIES_FILE"),
		ActivityStart:  os.Getenv("ACTIVITY_START"),
		ActivityEnd:    os.Getenv("ACTIVITY_END"),
		StoreBackend:   getenvDefault("STORE_BACKEND", "memory"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        getenvInt("REDIS_DB", 0),
		LogLevel:       getenvDefault("LOG_LEVEL", "info"),
		LogFormat:      getenvDefault("LOG_FORMAT", "console"),
		Port:           getenvDefault("PORT", "8080"),

		StoreMaxHistory: getenvInt("STORE_MAX_HISTORY", 96),
		FetchMaxRetries: getenvInt("FETCH_MAX_RETRIES", 3),
	}

	var err error
	if cfg.ProviderPort, err = getenvStrictInt("PROVIDER_PORT", 0); err != nil {
		return nil, err
	}
	ms, err := getenvStrictInt("READ_TIMEOUT_MS", 0)
	if err != nil {
		return nil, err
	}
	cfg.ReadTimeout = time.Duration(ms) * time.Millisecond

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"ACTIVITY_INTERVAL", "0", &cfg.ActivityInterval},
		{"STORE_MAX_AGE", "24h", &cfg.StoreMaxAge},
		{"FETCH_RETRY_INTERVAL", "2s", &cfg.FetchRetryInterval},
		{"RUN_TIMEOUT", "2m", &cfg.RunTimeout},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getenvDefault(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid %s: %v", common.ErrConfiguration, d.key, err)
		}
		*d.dst = v
	}

	cfg.ActivityTimezone = time.Local
	if tz := os.Getenv("ACTIVITY_TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid ACTIVITY_TIMEZONE: %v", common.ErrConfiguration, err)
		}
		cfg.ActivityTimezone = loc
	}

	cfg.Values = loadValues()

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfiguration, err)
	}
	return cfg, nil
}

func loadValues() map[string]string {
	values := map[string]string{}
	set := func(key, v string) {
		if strings.TrimSpace(v) != "" {
			values[key] = strings.TrimSpace(v)
		}
	}

	set("appid", common.FirstNonEmpty(os.Getenv("PROVIDER_APPID"), os.Getenv("OPENWEATHER_API_KEY")))
	set("location", os.Getenv("PROVIDER_LOCATION"))
	set("latitude", os.Getenv("PROVIDER_LATITUDE"))
	set("longitude", os.Getenv("PROVIDER_LONGITUDE"))

	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, valuePrefix) || len(k) == len(valuePrefix) {
			continue
		}
		set(strings.ToLower(strings.TrimPrefix(k, valuePrefix)), v)
	}
	return values
}

// Setting applies the configured overrides to the provider's default setting.
func (c *AppConfig) Setting(def weather.Setting) weather.Setting {
	override := weather.Setting{
		ProviderHost:      c.ProviderHost,
		ProviderPort:      c.ProviderPort,
		ReadTimeoutMillis: int(c.ReadTimeout / time.Millisecond),
		Values:            c.Values,
	}
	return override.WithDefaults(def)
}

// Activity applies the configured overrides to the provider's default activity.
func (c *AppConfig) Activity(def weather.Activity) (weather.Activity, error) {
	a := def
	if c.ActivityStart != "" {
		d, err := weather.ParseClock(c.ActivityStart)
		if err != nil {
			return weather.Activity{}, fmt.Errorf("%w: ACTIVITY_START: %v", common.ErrConfiguration, err)
		}
		a.Start = d
	}
	if c.ActivityEnd != "" {
		d, err := weather.ParseClock(c.ActivityEnd)
		if err != nil {
			return weather.Activity{}, fmt.Errorf("%w: ACTIVITY_END: %v", common.ErrConfiguration, err)
		}
		a.End = d
	}
	if c.ActivityInterval > 0 {
		a.Interval = c.ActivityInterval
	}
	return a, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

// getenvStrictInt is getenvInt for values where a typo must not fall back silently.
func getenvStrictInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s: %v", common.ErrConfiguration, key, err)
	}
	return n, nil
}
