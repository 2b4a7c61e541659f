// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hopper-foundation/hopper/lib/anvil"
	"github.com/hopper-foundation/hopper/lib/chunk"
)

// EnvironmentVariable names the config file when no --config flag is
// given.
const EnvironmentVariable = "HOPPER_CONFIG"

// Environment is the deployment type.
type Environment string

const (
	// Development enables strict chunk format checks: a packing
	// invariant violation panics instead of degrading.
	Development Environment = "development"

	// Production degrades invariant violations to a logged fallback.
	Production Environment = "production"
)

// Config is the complete hopper configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	Sections `yaml:",inline"`

	// Development and Production hold partial Sections applied over the
	// base when Environment matches. Only keys present in the block
	// change.
	Development yaml.Node `yaml:"development"`
	Production  yaml.Node `yaml:"production"`
}

// Sections is the part of the configuration that environment blocks
// may override.
type Sections struct {
	Mount   MountConfig   `yaml:"mount"`
	Region  RegionConfig  `yaml:"region"`
	World   WorldConfig   `yaml:"world"`
	Cache   CacheConfig   `yaml:"cache"`
	Store   StoreConfig   `yaml:"store"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// MountConfig controls the FUSE mount.
type MountConfig struct {
	// Mountpoint is the directory the server reads region files from,
	// typically <world>/region.
	Mountpoint string `yaml:"mountpoint"`

	// AllowOther lets users other than the mounting user read the
	// mount. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool `yaml:"allow_other"`

	// ListRegions makes the root directory list regions that have
	// persisted chunks. Off by default: the directory appears empty and
	// every valid region name resolves on lookup.
	ListRegions bool `yaml:"list_regions"`

	// WriteBack routes whole-chunk writes from the server to the
	// store. Off by default: writes are acknowledged and discarded.
	WriteBack bool `yaml:"write_back"`
}

// RegionConfig fixes the virtual region file layout.
type RegionConfig struct {
	// SectorsPerChunk is the slot size in 4 KiB sectors.
	SectorsPerChunk int `yaml:"sectors_per_chunk"`

	// SlotOffsets points each location entry at the sector where its
	// slot starts instead of the sequential sector 2+i.
	SlotOffsets bool `yaml:"slot_offsets"`

	// Extensions lists the file extensions served, without the dot.
	Extensions []string `yaml:"extensions"`
}

// WorldConfig selects the generator and the chunk format.
type WorldConfig struct {
	Generator    string `yaml:"generator"`
	Seed         int64  `yaml:"seed"`
	DataVersion  int32  `yaml:"data_version"`
	Status       string `yaml:"status"`
	MinSection   int8   `yaml:"min_section"`
	SectionCount int    `yaml:"section_count"`
	Biome        string `yaml:"biome"`

	// Compression is gzip, zlib, or none.
	Compression string `yaml:"compression"`
}

// CacheConfig sizes the in-memory chunk cache and prefetcher.
type CacheConfig struct {
	MaxChunks        int           `yaml:"max_chunks"`
	PrefetchRadius   int           `yaml:"prefetch_radius"`
	PrefetchWorkers  int           `yaml:"prefetch_workers"`
	PersistGenerated bool          `yaml:"persist_generated"`
	LoadTimeout      time.Duration `yaml:"load_timeout"`
}

// StoreConfig selects the persistent chunk store.
type StoreConfig struct {
	// Backend is memory or sqlite.
	Backend string `yaml:"backend"`

	// Path is the SQLite database file.
	Path string `yaml:"path"`

	PoolSize        int           `yaml:"pool_size"`
	ConnectAttempts int           `yaml:"connect_attempts"`
	ConnectBackoff  time.Duration `yaml:"connect_backoff"`

	// AllowManifestChange accepts a database written under a different
	// world configuration and records the new one.
	AllowManifestChange bool `yaml:"allow_manifest_change"`
}

// MetricsConfig controls the periodic counter report.
type MetricsConfig struct {
	// ReportInterval logs a counter summary this often. Zero disables
	// the periodic report; a final one is logged at shutdown.
	ReportInterval time.Duration `yaml:"report_interval"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Default returns the values a config file is merged onto.
func Default() *Config {
	return &Config{
		Environment: Development,
		Sections: Sections{
			Region: RegionConfig{
				SectorsPerChunk: anvil.DefaultSectorsPerChunk,
				Extensions:      []string{"mca"},
			},
			World: WorldConfig{
				Generator:    "flat",
				DataVersion:  chunk.DefaultFormat.DataVersion,
				Status:       chunk.DefaultFormat.Status,
				MinSection:   chunk.DefaultFormat.MinSection,
				SectionCount: chunk.DefaultFormat.SectionCount,
				Biome:        chunk.DefaultFormat.Biome,
				Compression:  anvil.CompressionZlib.String(),
			},
			Cache: CacheConfig{
				MaxChunks:       4096,
				PrefetchWorkers: 4,
				LoadTimeout:     5 * time.Second,
			},
			Store: StoreConfig{
				Backend:         BackendMemory,
				ConnectAttempts: 30,
				ConnectBackoff:  2 * time.Second,
			},
			Log: LogConfig{
				Level:  "info",
				Format: "json",
			},
		},
	}
}

// Load reads the file named by HOPPER_CONFIG. There is no search path:
// if the variable is unset, Load fails.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your hopper.yaml or pass --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile reads path over the defaults, applies the block for the
// configured environment, and expands ${VAR} references in paths.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse is LoadFile for in-memory YAML.
func Parse(data []byte) (*Config, error) {
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := config.applyEnvironmentOverrides(); err != nil {
		return nil, err
	}
	config.expandVariables()
	return config, nil
}

func (c *Config) applyEnvironmentOverrides() error {
	var block *yaml.Node
	switch c.Environment {
	case Development:
		block = &c.Development
	case Production:
		block = &c.Production
	default:
		return nil
	}
	if block.Kind == 0 {
		return nil
	}
	if err := block.Decode(&c.Sections); err != nil {
		return fmt.Errorf("parsing %s overrides: %w", c.Environment, err)
	}
	return nil
}

func (c *Config) expandVariables() {
	c.Mount.Mountpoint = expandVars(c.Mount.Mountpoint)
	c.Store.Path = expandVars(c.Store.Path)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate reports every invalid value at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Environment != Development && c.Environment != Production {
		add("environment must be %q or %q, got %q", Development, Production, c.Environment)
	}

	if err := c.Geometry().Validate(); err != nil {
		add("region.sectors_per_chunk: %w", err)
	}
	if len(c.Region.Extensions) == 0 {
		add("region.extensions must not be empty")
	}
	for _, extension := range c.Region.Extensions {
		if extension == "" || strings.Contains(extension, ".") || strings.Contains(extension, "/") {
			add("region.extensions: invalid extension %q", extension)
		}
	}

	switch c.World.Generator {
	case "flat", "terrain":
	default:
		add("world.generator must be flat or terrain, got %q", c.World.Generator)
	}
	if err := c.ChunkFormat().Validate(); err != nil {
		add("world: %w", err)
	}
	if _, err := anvil.ParseCompressionTag(c.World.Compression); err != nil {
		add("world.compression: %w", err)
	}

	if c.Cache.MaxChunks < 1 {
		add("cache.max_chunks must be positive, got %d", c.Cache.MaxChunks)
	}
	if c.Cache.PrefetchRadius < 0 {
		add("cache.prefetch_radius must not be negative, got %d", c.Cache.PrefetchRadius)
	}
	if c.Cache.PrefetchRadius > 0 && c.Cache.PrefetchWorkers < 1 {
		add("cache.prefetch_workers must be positive when prefetching, got %d", c.Cache.PrefetchWorkers)
	}
	if c.Cache.LoadTimeout <= 0 {
		add("cache.load_timeout must be positive, got %v", c.Cache.LoadTimeout)
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Store.Path == "" {
			add("store.path is required for the sqlite backend")
		}
	default:
		add("store.backend must be memory or sqlite, got %q", c.Store.Backend)
	}
	if c.Store.ConnectAttempts < 1 {
		add("store.connect_attempts must be at least 1, got %d", c.Store.ConnectAttempts)
	}
	if c.Store.ConnectBackoff < 0 {
		add("store.connect_backoff must not be negative, got %v", c.Store.ConnectBackoff)
	}

	if c.Metrics.ReportInterval < 0 {
		add("metrics.report_interval must not be negative, got %v", c.Metrics.ReportInterval)
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		add("log.level: unknown level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "text":
	default:
		add("log.format: unknown format %q", c.Log.Format)
	}

	return errors.Join(errs...)
}

// Geometry returns the region layout.
func (c *Config) Geometry() anvil.Geometry {
	return anvil.Geometry{
		SectorsPerChunk: c.Region.SectorsPerChunk,
		SlotOffsets:     c.Region.SlotOffsets,
	}
}

// ChunkFormat returns the chunk format. Strict checks follow the
// environment.
func (c *Config) ChunkFormat() chunk.Format {
	return chunk.Format{
		DataVersion:  c.World.DataVersion,
		Status:       c.World.Status,
		MinSection:   c.World.MinSection,
		SectionCount: c.World.SectionCount,
		Biome:        c.World.Biome,
		Strict:       c.Environment == Development,
	}
}

// CompressionTag returns the configured envelope compression. Call
// after Validate.
func (c *Config) CompressionTag() anvil.CompressionTag {
	tag, err := anvil.ParseCompressionTag(c.World.Compression)
	if err != nil {
		return anvil.CompressionZlib
	}
	return tag
}
