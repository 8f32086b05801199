package register

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML shape of the optional FSR_CONFIG file.
//
// Example:
//
//	base_url: https://register.fca.org.uk/services/V0.1
//	api_email: someone@example.com
//	api_key_file: /run/secrets/fsr_api_key
type fileConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIEmail   string `yaml:"api_email"`
	APIKey     string `yaml:"api_key"`
	APIKeyFile string `yaml:"api_key_file"`
	CAPath     string `yaml:"ca_path"`
}

func loadConfigFile(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read %s file: %w", EnvConfigFile, err)
	}
	var raw fileConfig
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return Config{}, fmt.Errorf("parse %s YAML: %w", EnvConfigFile, err)
	}

	cfg := Config{
		BaseURL:   strings.TrimSpace(raw.BaseURL),
		AuthEmail: strings.TrimSpace(raw.APIEmail),
		AuthKey:   strings.TrimSpace(raw.APIKey),
		CAPath:    strings.TrimSpace(raw.CAPath),
	}
	if cfg.AuthKey == "" && strings.TrimSpace(raw.APIKeyFile) != "" {
		kb, err := os.ReadFile(strings.TrimSpace(raw.APIKeyFile))
		if err != nil {
			return Config{}, fmt.Errorf("read api_key_file: %w", err)
		}
		cfg.AuthKey = strings.TrimSpace(string(kb))
	}
	return cfg, nil
}
