package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/solar-yield-forecast/internal/common"
	"github.com/i474232898/solar-yield-forecast/internal/solar"
)

// Cache backends.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type RedisConfig struct {
	Addr     string `validate:"required_if=Enabled true"`
	DB       int    `validate:"gte=0"`
	Password string
	Key      string
	Enabled  bool
}

type AppConfig struct {
	APIKey  string
	BaseURL string   `validate:"required,url"`
	Sites   []string `validate:"dive,required"`

	// Snapshot cache.
	CacheBackend string `validate:"oneof=file redis memory"`
	CacheFile    string `validate:"required_if=CacheBackend file"`
	Redis        RedisConfig

	Calibration float64          `validate:"gt=0"`
	Reload      solar.ReloadMode `validate:"oneof=never force if-stale"`
	Verbosity   int              `validate:"gte=0,lte=2"`
	Days        int              `validate:"gte=1,lte=7"`

	// Outbound Solcast calls.
	HTTPTimeout      time.Duration `validate:"gt=0"`
	MaxRetries       int           `validate:"gte=0"`
	FetchConcurrency int           `validate:"gte=1"`

	// RefreshAt is the local HH:MM of the daily refresh in serve mode.
	RefreshAt string `validate:"required"`
	Port      string `validate:"required,numeric"`
}

var validate = validator.New()

// Load reads the dotenv files (".env" when none are given) into the
// environment, then builds the configuration with sensible defaults.
// Variables already set in the environment win over the files.
func Load(files ...string) (*AppConfig, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("INFO: error loading env file: %v", err)
	}
	return FromEnv()
}

// FromEnv builds and validates the configuration from the current environment.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}

	cfg.APIKey = os.Getenv("SOLCAST_API_KEY")
	cfg.BaseURL = getenvDefault("SOLCAST_URL", "https://api.solcast.com.au/")
	cfg.Sites = common.SplitList(os.Getenv("SOLCAST_RIDS"))

	cfg.CacheBackend = getenvDefault("SOLCAST_CACHE_BACKEND", BackendFile)
	cfg.CacheFile = getenvDefault("SOLCAST_CACHE_FILE", "solcast.json")
	cfg.Redis = RedisConfig{
		Addr:     getenvDefault("REDIS_ADDR", "localhost:6379"),
		DB:       getenvInt("REDIS_DB", 0),
		Password: os.Getenv("REDIS_PASSWORD"),
		Key:      getenvDefault("REDIS_KEY", "solcast:snapshot"),
		Enabled:  cfg.CacheBackend == BackendRedis,
	}

	cal, err := strconv.ParseFloat(getenvDefault("SOLCAST_CALIBRATION", "1.0"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SOLCAST_CALIBRATION: %w", err)
	}
	cfg.Calibration = cal

	reload, err := solar.ParseReloadMode(os.Getenv("SOLCAST_RELOAD"))
	if err != nil {
		return nil, fmt.Errorf("invalid SOLCAST_RELOAD: %w", err)
	}
	cfg.Reload = reload

	cfg.Verbosity = getenvInt("SOLCAST_VERBOSITY", 0)
	cfg.Days = getenvInt("SOLCAST_DAYS", 7)

	timeout, err := time.ParseDuration(getenvDefault("HTTP_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout
	cfg.MaxRetries = getenvInt("SOLCAST_MAX_RETRIES", 2)
	cfg.FetchConcurrency = getenvInt("SOLCAST_FETCH_CONCURRENCY", 1)

	cfg.RefreshAt = getenvDefault("REFRESH_AT", "00:05")
	cfg.Port = getenvDefault("PORT", "8080")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints. Call it again after applying flag
// overrides.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := time.Parse("15:04", c.RefreshAt); err != nil {
		return fmt.Errorf("invalid REFRESH_AT %q: want HH:MM", c.RefreshAt)
	}
	return nil
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
