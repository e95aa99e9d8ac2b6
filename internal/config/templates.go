package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	gotoml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const templateHeader = "# aerctl capture config; generated from built-in defaults\n"

// Template renders the default capture config as "toml" or "yaml".
func Template(format string) (string, error) {
	cfg := DefaultCaptureConfig()
	var buf bytes.Buffer
	buf.WriteString(templateHeader)
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "toml":
		enc := gotoml.NewEncoder(&buf)
		enc.SetIndentTables(true)
		if err := enc.Encode(cfg); err != nil {
			return "", fmt.Errorf("render toml template: %w", err)
		}
	case "yaml", "yml":
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return "", fmt.Errorf("render yaml template: %w", err)
		}
		if err := enc.Close(); err != nil {
			return "", fmt.Errorf("render yaml template: %w", err)
		}
	default:
		return "", fmt.Errorf("unknown config format: %s", format)
	}
	return buf.String(), nil
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

// FormatForPath picks the template format from a file extension.
func FormatForPath(path string) string {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		return "yaml"
	}
	return "toml"
}
