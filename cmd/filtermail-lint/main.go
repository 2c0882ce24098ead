package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/filtermail/filtermail/internal/filter"
	"github.com/filtermail/filtermail/internal/runtime"
)

type lintConfig struct {
	settings string
}

func main() {
	cfg := parseLintFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("filtermail-lint failed", "error", err)
		os.Exit(1)
	}
}

func parseLintFlags() lintConfig {
	settings := flag.String("settings", "settings.json", "settings file to check")
	flag.Parse()
	return lintConfig{settings: *settings}
}

func run(cfg lintConfig) error {
	data, err := os.ReadFile(cfg.settings)
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}
	rep, err := filter.Lint(data)
	if err != nil {
		return fmt.Errorf("lint %s: %w", cfg.settings, err)
	}
	if _, writeErr := os.Stdout.WriteString(rep.HumanSummary()); writeErr != nil {
		return fmt.Errorf("write summary: %w", writeErr)
	}
	if rep.ShouldFail() {
		return fmt.Errorf("%d finding(s) in %s", len(rep.Findings), cfg.settings)
	}
	return nil
}
