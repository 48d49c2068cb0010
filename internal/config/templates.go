package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Template renders the default client configuration in format.
func Template(format string) (string, error) {
	cfg := DefaultClientConfig()
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "toml":
		raw, err := toml.Marshal(cfg)
		if err != nil {
			return "", err
		}
		return "# votectl client configuration\n" + string(raw), nil
	case "yaml", "yml":
		raw, err := yaml.Marshal(cfg)
		if err != nil {
			return "", err
		}
		return "# votectl client configuration\n" + string(raw), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

func WriteTemplate(path, format string, overwrite bool) error {
	template, err := Template(format)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}
