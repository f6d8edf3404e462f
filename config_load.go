package authcore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AUTHCORE_"

// LoadConfig returns DefaultConfig overlaid with the YAML file at path and the
// AUTHCORE_* environment. A .env file in the working directory is loaded first
// when present. An empty path skips the file. The result is not validated.
func LoadConfig(path string) (Config, error) {
	if err := LoadDotEnv(); err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("%w: read %s: %v", ErrConfiguration, path, err)
		}
		if err := DecodeConfig(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads ./.env without overriding variables already set.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: load %s: %v", ErrConfiguration, f, err)
		}
	}
	return nil
}

// DecodeConfig unmarshals YAML into cfg, keeping values the document omits.
func DecodeConfig(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: decode yaml: %v", ErrConfiguration, err)
	}
	return nil
}

// ApplyEnv overrides secrets and switches from the environment:
//
//	AUTHCORE_ENVIRONMENT
//	AUTHCORE_JWT_SECRET
//	AUTHCORE_JWT_KEY_ID
//	AUTHCORE_PASSWORD_PEPPER
//	AUTHCORE_SESSION_ENFORCE_SINGLE
//	AUTHCORE_RESET_LINK_URL
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	str("ENVIRONMENT", &cfg.Environment)
	str("JWT_SECRET", &cfg.JWT.Secret)
	str("JWT_KEY_ID", &cfg.JWT.KeyID)
	str("PASSWORD_PEPPER", &cfg.Password.Pepper)
	str("RESET_LINK_URL", &cfg.Reset.LinkURL)

	if v, ok := lookup(EnvPrefix + "SESSION_ENFORCE_SINGLE"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %sSESSION_ENFORCE_SINGLE: %v", ErrConfiguration, EnvPrefix, err)
		}
		cfg.Session.EnforceSingleSession = b
	}
	return nil
}
