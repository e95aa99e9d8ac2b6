package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/danmuck/aerctl/internal/config"
	"github.com/goburrow/serial"
)

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// openOutput resolves stream.output to a byte sink for AERS packets.
func openOutput(cfg config.StreamConfig) (io.WriteCloser, error) {
	out := strings.TrimSpace(cfg.Output)
	switch {
	case out == "stdout" || out == "-":
		return nopCloser{os.Stdout}, nil
	case out == "discard":
		return nopCloser{io.Discard}, nil
	case strings.HasPrefix(out, "serial:"):
		port, err := serial.Open(&serial.Config{
			Address:  strings.TrimPrefix(out, "serial:"),
			BaudRate: cfg.Baud,
			DataBits: 8,
			StopBits: 1,
			Parity:   "N",
			Timeout:  time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("open serial output %s: %w", out, err)
		}
		return port, nil
	default:
		f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open output file: %w", err)
		}
		return f, nil
	}
}
