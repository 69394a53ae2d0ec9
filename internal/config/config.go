package config

import (
	"os"
	"path/filepath"
)

const (
	DefaultConfigDir  = ".opencode-monitor"
	DefaultConfigFile = "config.yaml"
	DefaultLogFile    = "audit.jsonl"
	DefaultPacksDir   = "packs"
)

type Config struct {
	ConfigPath string
	LogPath    string
	PacksDir   string
	ConfigDir  string
	Engine     EngineConfig
}

// Load resolves file locations under ~/.opencode-monitor and reads the
// engine configuration. Empty arguments select the defaults; a missing
// config file yields the default engine configuration.
func Load(configPath, logPath string) (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	configDir := filepath.Join(homeDir, DefaultConfigDir)

	if err := ensureDir(configDir); err != nil {
		return nil, err
	}

	cfg := &Config{
		ConfigDir: configDir,
		PacksDir:  filepath.Join(configDir, DefaultPacksDir),
	}

	if configPath != "" {
		cfg.ConfigPath = configPath
	} else {
		cfg.ConfigPath = filepath.Join(configDir, DefaultConfigFile)
	}

	if logPath != "" {
		cfg.LogPath = logPath
	} else {
		cfg.LogPath = filepath.Join(configDir, DefaultLogFile)
	}

	engine, err := LoadEngineConfig(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.Engine = engine

	return cfg, nil
}

func ensureDir(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, 0700)
	}
	return nil
}
