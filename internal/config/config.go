package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"itinerary-planner/internal/database"
	"itinerary-planner/internal/geocoding"
	"itinerary-planner/internal/routing"
	"itinerary-planner/internal/schedule"
)

// Storage backends selectable through STORE_BACKEND
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendJSON     = "json"
)

// Config is the resolved runtime configuration
type Config struct {
	ServerAddr       string
	OSRMBaseURL      string
	OSRMProfile      string
	NominatimBaseURL string
	UserAgent        string

	StoreBackend string
	DBPath       string
	DataFile     string
	DatabaseURL  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	RequestTimeout   time.Duration
	NoticeTTL        time.Duration
	DefaultStartTime int // minutes since midnight
}

// Get returns the environment value for key, or fallback when unset or blank
func Get(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// LoadDotEnv reads a .env file from the working directory if there is one
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}
}

// Load resolves the configuration from the environment
func Load() (*Config, error) {
	cfg := &Config{
		ServerAddr:       Get("SERVER_ADDR", "127.0.0.1:8080"),
		OSRMBaseURL:      Get("OSRM_BASE_URL", routing.DefaultBaseURL),
		OSRMProfile:      Get("OSRM_PROFILE", routing.DefaultProfile),
		NominatimBaseURL: Get("NOMINATIM_BASE_URL", geocoding.DefaultBaseURL),
		UserAgent:        Get("USER_AGENT", geocoding.DefaultUserAgent),
		StoreBackend:     strings.ToLower(Get("STORE_BACKEND", BackendSQLite)),
		DatabaseURL:      Get("DATABASE_URL", ""),
		RedisAddr:        Get("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:    Get("REDIS_PASSWORD", ""),
	}

	settings := loadSettings()

	var err error
	if cfg.DBPath, err = pathOrDefault("DB_PATH", func() (string, error) {
		if settings != nil && settings.DatabasePath != "" {
			return settings.DatabasePath, nil
		}
		return database.GetDefaultDBPath()
	}); err != nil {
		return nil, err
	}
	if cfg.DataFile, err = pathOrDefault("DATA_FILE", database.GetDataFilePath); err != nil {
		return nil, err
	}

	if cfg.RedisDB, err = strconv.Atoi(Get("REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("config: REDIS_DB: %w", err)
	}
	if cfg.RedisTTL, err = duration("REDIS_TTL", "720h"); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = duration("REQUEST_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.NoticeTTL, err = duration("NOTICE_TTL", "4s"); err != nil {
		return nil, err
	}

	defaultStart := "08:00"
	if settings != nil && settings.DefaultStartTime != "" {
		defaultStart = settings.DefaultStartTime
	}
	if cfg.DefaultStartTime, err = schedule.ParseClock(Get("DEFAULT_START_TIME", defaultStart)); err != nil {
		return nil, fmt.Errorf("config: DEFAULT_START_TIME: %w", err)
	}

	switch cfg.StoreBackend {
	case BackendSQLite, BackendJSON, BackendRedis:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("config: DATABASE_URL is required for the %s backend", BackendPostgres)
		}
	default:
		return nil, fmt.Errorf("config: unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	return cfg, nil
}

func duration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(Get(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %s must be positive", key)
	}
	return d, nil
}

// pathOrDefault skips creating the app dir when the env var overrides it
func pathOrDefault(key string, def func() (string, error)) (string, error) {
	if v := Get(key, ""); v != "" {
		return v, nil
	}
	p, err := def()
	if err != nil {
		return "", fmt.Errorf("config: %s: %w", key, err)
	}
	return p, nil
}

// loadSettings reads the settings file from the app directory, writing the
// defaults on first run so there is something to edit. Failures are logged
// and the environment defaults apply.
func loadSettings() *database.AppConfig {
	dir, err := database.GetAppDir()
	if err != nil {
		log.Printf("[CONFIG] No app directory, skipping settings file: err=%v", err)
		return nil
	}

	settings, err := database.LoadConfig(dir)
	if err != nil {
		log.Printf("[CONFIG] Ignoring unreadable settings file: err=%v", err)
		return nil
	}

	if _, err := os.Stat(filepath.Join(dir, database.ConfigFileName)); os.IsNotExist(err) {
		if err := database.SaveConfig(dir, settings); err != nil {
			log.Printf("[CONFIG] Could not write default settings: err=%v", err)
		}
	}
	return settings
}
