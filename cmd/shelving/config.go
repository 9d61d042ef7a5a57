package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the optional YAML config file. Flags override file values,
// file values override defaults.
type Config struct {
	DataDir      string            `yaml:"data_dir"`
	LogLevel     string            `yaml:"log_level"`
	NoColor      bool              `yaml:"no_color"`
	DefaultLimit int               `yaml:"default_limit"`
	Schemas      map[string]string `yaml:"schemas"`
}

func defaultConfig() Config {
	return Config{
		DataDir:      "./data",
		LogLevel:     "info",
		DefaultLimit: 50,
	}
}

// loadConfig reads the config file when path is set or the default file
// exists; a missing default file is not an error.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	explicit := path != ""
	if path == "" {
		path = "shelving.yaml"
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}
