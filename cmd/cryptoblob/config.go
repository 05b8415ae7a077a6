package main

import (
	"os"

	"gopkg.in/yaml.v2"
)

// fileConfig holds defaults read from --config, overridden by any
// flag the user actually passes on the command line.
type fileConfig struct {
	LogFile       string `yaml:"log_file"`
	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`
	MasterKeyFile string `yaml:"master_key_file"`
	KeyringDir    string `yaml:"keyring_dir"`
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
