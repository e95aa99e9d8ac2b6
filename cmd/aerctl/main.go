package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/aerctl/internal/config"
)

func main() {
	configPath := flag.String("config", "", "capture config (.toml, .yaml or .yml); empty uses built-in defaults")
	id := flag.String("id", "aerctl", "node id for logs, metrics and the status block")
	flag.Parse()

	cfg := config.DefaultCaptureConfig()
	if *configPath != "" {
		loaded, err := config.LoadCaptureConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "aerctl: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newService(*id, cfg).Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "aerctl: %v\n", err)
		os.Exit(1)
	}
}
