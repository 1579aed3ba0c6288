package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// ClientConfig - настройки storyctl.
type ClientConfig struct {
	API   APIConfig        `yaml:"api"`
	Store LocalStoreConfig `yaml:"store"`
	Log   ClientLogConfig  `yaml:"log"`
}

type APIConfig struct {
	BaseURL string        `yaml:"base_url" env:"STORYCTL_API_URL" env-default:"http://localhost:8080"`
	Timeout time.Duration `yaml:"timeout" env:"STORYCTL_API_TIMEOUT" env-default:"15s"`
}

type LocalStoreConfig struct {
	// Пустые пути заменяются на файлы в каталоге данных пользователя.
	DatabasePath string `yaml:"database_path" env:"STORYCTL_DB_PATH"`
	TokenPath    string `yaml:"token_path" env:"STORYCTL_TOKEN_PATH"`
}

type ClientLogConfig struct {
	Level string `yaml:"level" env:"STORYCTL_LOG_LEVEL" env-default:"warn"`
}

// DefaultClientConfigPath returns ~/.config/storyctl/config.yaml.
func DefaultClientConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "storyctl.yaml"
	}
	return filepath.Join(dir, "storyctl", "config.yaml")
}

// LoadClientConfig reads the YAML file at path (if it exists) and applies
// environment overrides. A missing file is not an error.
func LoadClientConfig(path string) (*ClientConfig, error) {
	var cfg ClientConfig

	if path == "" {
		path = DefaultClientConfigPath()
	}
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read config from env: %w", err)
		}
	}

	if cfg.Store.DatabasePath == "" || cfg.Store.TokenPath == "" {
		dataDir, err := clientDataDir()
		if err != nil {
			return nil, err
		}
		if cfg.Store.DatabasePath == "" {
			cfg.Store.DatabasePath = filepath.Join(dataDir, "stories.db")
		}
		if cfg.Store.TokenPath == "" {
			cfg.Store.TokenPath = filepath.Join(dataDir, "tokens.json")
		}
	}
	return &cfg, nil
}

func clientDataDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user config dir: %w", err)
	}
	dir := filepath.Join(base, "storyctl")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return dir, nil
}
