package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration reads "10ms" style strings. A bare integer is microseconds.
type Duration struct {
	time.Duration
}

func Micros(n int64) Duration { return Duration{time.Duration(n) * time.Microsecond} }

func Millis(n int64) Duration { return Duration{time.Duration(n) * time.Millisecond} }

func ParseDuration(raw string) (Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Duration{}, nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return Micros(n), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return Duration{}, fmt.Errorf("%w: duration %q", ErrInvalidConfig, raw)
	}
	return Duration{d}, nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: duration at line %d must be a scalar", ErrInvalidConfig, node.Line)
	}
	return d.UnmarshalText([]byte(node.Value))
}
