package main

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	flag "github.com/spf13/pflag"

	"github.com/Alp4ka/flowpager"
)

const _envPrefix = "PAGERDEMO_"

const (
	sourceMemory   = "memory"
	sourceSQLite   = "sqlite"
	sourceMySQL    = "mysql"
	sourcePostgres = "postgres"

	pagingOffset = "offset"
	pagingKeyset = "keyset"
)

var (
	_sourceKinds = []string{sourceMemory, sourceSQLite, sourceMySQL, sourcePostgres}
	_pagingKinds = []string{pagingOffset, pagingKeyset}
	_logLevels   = []string{"debug", "info", "warn", "error"}
)

// Config is the demo configuration.
type Config struct {
	Source        SourceConfig        `koanf:"source"`
	Pager         flowpager.Config    `koanf:"pager"`
	Server        ServerConfig        `koanf:"server"`
	Scroll        ScrollConfig        `koanf:"scroll"`
	Observability ObservabilityConfig `koanf:"observability"`
}

type SourceConfig struct {
	// Kind where users come from: memory, sqlite, mysql or postgres.
	Kind string `koanf:"kind"`
	// Paging offset or keyset. SQL sources only.
	Paging string `koanf:"paging"`
	DSN    string `koanf:"dsn"`
	// Sort ordering of SQL sources, "<column> <asc|desc>" items.
	Sort []string `koanf:"sort"`
	// InitialKey page number the first refresh starts at. Offset paging only.
	InitialKey int `koanf:"initial_key"`
	// Seed number of users inserted into an empty SQL table.
	Seed    int           `koanf:"seed"`
	Latency time.Duration `koanf:"latency"`
}

type ServerConfig struct {
	// HTTPAddr enables the HTTP API when set; otherwise the demo scrolls on
	// its own and exits.
	HTTPAddr string `koanf:"http_addr"`
}

type ScrollConfig struct {
	Steps    int           `koanf:"steps"`
	Stride   int           `koanf:"stride"`
	Interval time.Duration `koanf:"interval"`
}

type ObservabilityConfig struct {
	LogLevel       string `koanf:"log_level"`
	MetricsEnabled bool   `koanf:"metrics_enabled"`
}

type LoadOptions struct {
	ConfigFile string
	Flags      *flag.FlagSet
}

// Load merges defaults, the optional config file, PAGERDEMO_ environment
// variables and command line flags, in that order.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if opts.ConfigFile != "" {
		var parser koanf.Parser = yaml.Parser()
		if strings.HasSuffix(opts.ConfigFile, ".json") {
			parser = json.Parser()
		}
		if err := k.Load(file.Provider(opts.ConfigFile), parser); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.ProviderWithValue(_envPrefix, ".", func(s string, v string) (string, interface{}) {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, _envPrefix)), "__", ".")
		return key, v
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if opts.Flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *flag.Flag) (string, interface{}) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			return key, posflag.FlagVal(opts.Flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func loadDefaults(k *koanf.Koanf) error {
	pager := flowpager.DefaultConfig()

	defaults := map[string]interface{}{
		"source.kind":        sourceMemory,
		"source.paging":      pagingOffset,
		"source.dsn":         "file::memory:?cache=shared",
		"source.sort":        []string{"id asc"},
		"source.initial_key": 20,
		"source.seed":        1000,
		"source.latency":     50 * time.Millisecond,

		"pager.page_size":           pager.PageSize,
		"pager.enable_placeholders": pager.EnablePlaceholders,
		"pager.max_retained_items":  pager.MaxRetainedItems,
		"pager.prefetch_distance":   pager.PrefetchDistance,

		"server.http_addr": "",

		"scroll.steps":    12,
		"scroll.stride":   15,
		"scroll.interval": 100 * time.Millisecond,

		"observability.log_level":       "info",
		"observability.metrics_enabled": true,
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}

func (c *Config) Validate() error {
	if !slices.Contains(_sourceKinds, c.Source.Kind) {
		return fmt.Errorf("source.kind must be one of: %s", strings.Join(_sourceKinds, ", "))
	}
	if c.Source.Kind != sourceMemory {
		if !slices.Contains(_pagingKinds, c.Source.Paging) {
			return fmt.Errorf("source.paging must be one of: %s", strings.Join(_pagingKinds, ", "))
		}
		if c.Source.DSN == "" {
			return fmt.Errorf("source.dsn is required for %s source", c.Source.Kind)
		}
		if len(c.Source.Sort) == 0 {
			return fmt.Errorf("source.sort must not be empty")
		}
		if c.Source.Seed < 0 {
			return fmt.Errorf("source.seed must be non-negative")
		}
	}
	if c.Source.InitialKey < 1 {
		return fmt.Errorf("source.initial_key must be positive")
	}
	if c.Source.Latency < 0 {
		return fmt.Errorf("source.latency must be non-negative")
	}

	if err := c.Pager.Validate(); err != nil {
		return fmt.Errorf("pager: %w", err)
	}

	if c.Server.HTTPAddr == "" {
		if c.Scroll.Steps <= 0 {
			return fmt.Errorf("scroll.steps must be positive when the HTTP server is disabled")
		}
		if c.Scroll.Interval < 0 {
			return fmt.Errorf("scroll.interval must be non-negative")
		}
	}

	if !slices.Contains(_logLevels, c.Observability.LogLevel) {
		return fmt.Errorf("observability.log_level must be one of: %s", strings.Join(_logLevels, ", "))
	}

	return nil
}

// RegisterFlags declares one flag per config key. Hyphens map onto the
// underscores of koanf keys.
func RegisterFlags(fs *flag.FlagSet) {
	pager := flowpager.DefaultConfig()

	fs.String("source.kind", sourceMemory, "Users source (memory, sqlite, mysql, postgres)")
	fs.String("source.paging", pagingOffset, "Paging of SQL sources (offset, keyset)")
	fs.String("source.dsn", "file::memory:?cache=shared", "Database DSN of SQL sources")
	fs.StringSlice("source.sort", []string{"id asc"}, "Ordering of SQL sources")
	fs.Int("source.initial-key", 20, "Page number of the first load (offset paging)")
	fs.Int("source.seed", 1000, "Users inserted into an empty SQL table")
	fs.Duration("source.latency", 50*time.Millisecond, "Artificial latency of the memory source")

	fs.Int("pager.page-size", pager.PageSize, "Items requested per load")
	fs.Bool("pager.enable-placeholders", pager.EnablePlaceholders, "Render unloaded boundaries as placeholders")
	fs.Int("pager.max-retained-items", pager.MaxRetainedItems, "Window size bound (-1 = no limit)")
	fs.Int("pager.prefetch-distance", pager.PrefetchDistance, "Distance to an edge that triggers a load")

	fs.String("server.http-addr", "", "HTTP API address (empty runs the scroll simulation)")

	fs.Int("scroll.steps", 12, "Anchor reports of the scroll simulation")
	fs.Int("scroll.stride", 15, "Entries moved per scroll step")
	fs.Duration("scroll.interval", 100*time.Millisecond, "Pause between scroll steps")

	fs.String("observability.log-level", "info", "Log level (debug, info, warn, error)")
	fs.Bool("observability.metrics-enabled", true, "Register Prometheus metrics")
}
