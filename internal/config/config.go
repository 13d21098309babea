// Package config builds a custodia.Config for command-line tools by
// applying defaults, then an optional JSON file, then command-line flags.
package config

import (
	custodia "github.com/docforensics/custodia"
)

// Load builds the configuration in overlay order: defaults, JSON file
// (-c/-config), flags.
func Load() *custodia.Config {
	cfg := &custodia.Config{}
	cfg.LoadDefaults()
	parseJSON(cfg)
	parseFlags(cfg)
	return cfg
}
