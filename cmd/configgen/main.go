package main

import (
	"flag"
	"log"

	"github.com/danmuck/aerctl/internal/config"
)

const defaultPath = "cmd/aerctl/config.toml"

func main() {
	output := flag.String("output", "", "output path for config template")
	format := flag.String("format", "", "template format: toml|yaml (defaults from the output extension)")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", defaultPath, "config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		cfg, err := config.LoadCaptureConfig(*input)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated config at %s (%dx%d, source=%s, output=%s)",
			*input, cfg.Geometry.Rows, cfg.Geometry.Cols, cfg.Bus.Source, cfg.Stream.Output)
		return
	}

	target := *output
	if target == "" {
		target = defaultPath
	}
	kind := *format
	if kind == "" {
		kind = config.FormatForPath(target)
	}
	if err := config.WriteTemplate(target, kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", kind, target)
}
