package register

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables understood by LoadEnv.
const (
	EnvConfigFile  = "FSR_CONFIG"
	EnvBaseURL     = "FSR_BASE_URL"
	EnvAuthEmail   = "FSR_API_EMAIL"
	EnvAuthKey     = "FSR_API_KEY"
	EnvAuthKeyFile = "FSR_API_KEY_FILE"
	EnvCAPath      = "FSR_CA_PATH"
)

// LoadEnv assembles a Config from the environment, layered over the optional
// YAML config file named by FSR_CONFIG. Environment values win over file
// values. The API key may be given directly (FSR_API_KEY) or as a file path
// (FSR_API_KEY_FILE), which suits secrets mounted as files.
func LoadEnv() (Config, error) {
	var cfg Config
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		fileCfg, err := loadConfigFile(p)
		if err != nil {
			return Config{}, err
		}
		cfg = fileCfg
	}

	if v := strings.TrimSpace(os.Getenv(EnvBaseURL)); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAuthEmail)); v != "" {
		cfg.AuthEmail = v
	}
	key, err := readValueOrFile(EnvAuthKey, EnvAuthKeyFile)
	if err != nil {
		return Config{}, err
	}
	if key != "" {
		cfg.AuthKey = key
	}
	if v := strings.TrimSpace(os.Getenv(EnvCAPath)); v != "" {
		cfg.CAPath = v
	}

	if strings.TrimSpace(cfg.AuthEmail) == "" {
		return Config{}, fmt.Errorf("%s is required", EnvAuthEmail)
	}
	if strings.TrimSpace(cfg.AuthKey) == "" {
		return Config{}, fmt.Errorf("%s or %s is required", EnvAuthKey, EnvAuthKeyFile)
	}
	return cfg, nil
}

// readValueOrFile returns the literal env value when set, else the trimmed
// contents of the file named by fileVar, else "".
func readValueOrFile(valueVar, fileVar string) (string, error) {
	if v := strings.TrimSpace(os.Getenv(valueVar)); v != "" {
		return v, nil
	}
	p := strings.TrimSpace(os.Getenv(fileVar))
	if p == "" {
		return "", nil
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("read %s file: %w", fileVar, err)
	}
	return strings.TrimSpace(string(b)), nil
}
