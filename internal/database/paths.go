package database

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

const (
	AppDirName        = ".itinerary-planner"
	DataFileName      = "itineraries.json"
	DistanceCacheFile = "distances.json"
	SQLiteDBFileName  = "data.db"
	ConfigFileName    = "config.json"
)

// GetAppDir returns ~/.itinerary-planner, creating it if needed
func GetAppDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	appDir := filepath.Join(homeDir, AppDirName)
	if err := os.MkdirAll(appDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create app directory: %w", err)
	}

	return appDir, nil
}

// GetDataFilePath returns ~/.itinerary-planner/itineraries.json
func GetDataFilePath() (string, error) {
	appDir, err := GetAppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(appDir, DataFileName), nil
}

// GetDefaultDBPath returns the default SQLite database path: ~/.itinerary-planner/data.db
func GetDefaultDBPath() (string, error) {
	appDir, err := GetAppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(appDir, SQLiteDBFileName), nil
}

// AppConfig is the user-editable settings file in the app directory.
// Environment variables take precedence over it.
type AppConfig struct {
	DatabasePath     string `json:"database_path"`
	DefaultStartTime string `json:"default_start_time,omitempty"`
}

// LoadConfig loads the app config from dir, returning defaults if not found
func LoadConfig(dir string) (*AppConfig, error) {
	configPath := filepath.Join(dir, ConfigFileName)

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return &AppConfig{DatabasePath: filepath.Join(dir, SQLiteDBFileName)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config AppConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.DatabasePath == "" {
		config.DatabasePath = filepath.Join(dir, SQLiteDBFileName)
	}

	return &config, nil
}

// SaveConfig writes the app config into dir
func SaveConfig(dir string, config *AppConfig) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := writeFileAtomic(filepath.Join(dir, ConfigFileName), data); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	log.Printf("Config saved: database_path=%s", config.DatabasePath)
	return nil
}

// writeFileAtomic writes to a temp file and renames it over path
func writeFileAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmpPath, err)
	}
	return nil
}
