package main

import (
	"flag"
	"log"
	"path/filepath"
	"strings"

	"github.com/danmuck/votectl/internal/config"
)

func main() {
	format := flag.String("format", "toml", "config format: toml|yaml")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to votectl.<format>)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		path := *input
		if path == "" {
			path = defaultPath(*format)
		}
		cfg, err := config.LoadClientConfig(path)
		if err != nil {
			log.Fatal(err)
		}
		resolved, err := cfg.Resolve()
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated config at %s (program %s, schema %s, derivation %s)",
			path, resolved.ProgramID, resolved.Schema, resolved.Mode)
		return
	}

	target := *output
	if target == "" {
		target = defaultPath(*format)
	}
	if err := config.WriteTemplate(target, *format, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *format, target)
}

func defaultPath(format string) string {
	ext := strings.ToLower(strings.TrimSpace(format))
	if ext == "yml" {
		ext = "yaml"
	}
	return filepath.Clean("votectl." + ext)
}
