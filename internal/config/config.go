package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/danieljhkim/modsync/internal/fsops"
	"github.com/danieljhkim/modsync/internal/loadout"
	"github.com/danieljhkim/modsync/internal/overlay"
)

// Config represents the complete modsync configuration.
type Config struct {
	Installations []InstallationConfig `yaml:"installations"`
	Sync          SyncConfig           `yaml:"sync"`
	Cache         CacheConfig          `yaml:"cache"`
	Indexer       IndexerConfig        `yaml:"indexer"`
	Archive       ArchiveConfig        `yaml:"archive"`
	Log           LogConfig            `yaml:"log"`
}

// InstallationConfig declares one game installation and its location roots.
type InstallationConfig struct {
	Name      string            `yaml:"name"`
	Game      string            `yaml:"game"`
	Locations map[string]string `yaml:"locations"`
}

// SyncConfig configures apply and ingest behavior.
type SyncConfig struct {
	OverrideBehavior string `yaml:"override_behavior"`
}

// CacheConfig sizes the fingerprint caches.
type CacheConfig struct {
	SortRules int `yaml:"sort_rules"`
	Generated int `yaml:"generated"`
}

// IndexerConfig configures disk indexing.
type IndexerConfig struct {
	Workers int `yaml:"workers"`
}

// ArchiveConfig configures the backup archive.
type ArchiveConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// LogConfig configures logging. Environment variables override it, see
// observability.LogConfigFromEnv.
type LogConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	NoColor   bool   `yaml:"no_color"`
	Timestamp bool   `yaml:"timestamp"`
}

// Default returns a configuration with no installations and all defaults
// applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// LoadOrDefault is Load, returning Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse parses YAML configuration, expands environment variables, applies
// defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// expandEnv expands environment variables in all path fields
func (c *Config) expandEnv() {
	for i := range c.Installations {
		for loc, root := range c.Installations[i].Locations {
			c.Installations[i].Locations[loc] = os.ExpandEnv(root)
		}
	}
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Sync.OverrideBehavior == "" {
		c.Sync.OverrideBehavior = overlay.GreaterIndexWins.String()
	}
	if c.Cache.SortRules <= 0 {
		c.Cache.SortRules = 1024
	}
	if c.Cache.Generated <= 0 {
		c.Cache.Generated = 1024
	}
	if c.Indexer.Workers <= 0 {
		c.Indexer.Workers = 8
	}
	if c.Archive.Concurrency <= 0 {
		c.Archive.Concurrency = 4
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for _, inst := range c.Installations {
		if err := fsops.ValidateIdentifier(inst.Name); err != nil {
			return fmt.Errorf("installation name %q: %w", inst.Name, err)
		}
		if seen[inst.Name] {
			return fmt.Errorf("duplicate installation %q", inst.Name)
		}
		seen[inst.Name] = true

		if _, ok := inst.Locations[string(loadout.LocationGame)]; !ok {
			return fmt.Errorf("installation %q: locations.%s is required", inst.Name, loadout.LocationGame)
		}
		for loc, root := range inst.Locations {
			if !loadout.LocationID(loc).Valid() {
				return fmt.Errorf("installation %q: unknown location %q", inst.Name, loc)
			}
			if !filepath.IsAbs(root) {
				return fmt.Errorf("installation %q: locations.%s must be an absolute path: %s", inst.Name, loc, root)
			}
		}
	}

	if _, err := overlay.ParseOverrideBehavior(c.Sync.OverrideBehavior); err != nil {
		return fmt.Errorf("invalid sync.override_behavior: %w", err)
	}

	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
		// valid
	default:
		return fmt.Errorf("invalid log.format: %s (must be console or json)", c.Log.Format)
	}

	return nil
}

// OverrideBehavior returns the parsed sync.override_behavior.
func (c *Config) OverrideBehavior() overlay.IndexOverrideBehavior {
	b, _ := overlay.ParseOverrideBehavior(c.Sync.OverrideBehavior)
	return b
}

// Installation returns the named installation.
func (c *Config) Installation(name string) (*Installation, error) {
	for _, inst := range c.Installations {
		if inst.Name != name {
			continue
		}
		out := &Installation{
			Name:  inst.Name,
			Game:  inst.Game,
			Roots: make(map[loadout.LocationID]string, len(inst.Locations)),
		}
		for loc, root := range inst.Locations {
			out.Roots[loadout.LocationID(loc)] = filepath.Clean(root)
		}
		return out, nil
	}
	return nil, fmt.Errorf("installation %q is not configured", name)
}

// InstallationNames returns the configured installation names in order.
func (c *Config) InstallationNames() []string {
	names := make([]string, 0, len(c.Installations))
	for _, inst := range c.Installations {
		names = append(names, inst.Name)
	}
	return names
}

// Installation maps the locations of one game installation to directories.
type Installation struct {
	Name  string
	Game  string
	Roots map[loadout.LocationID]string
}

// LocationIDs returns the configured locations in sorted order.
func (i *Installation) LocationIDs() []loadout.LocationID {
	ids := make([]loadout.LocationID, 0, len(i.Roots))
	for id := range i.Roots {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	return ids
}

// Resolve returns the absolute path of gp. Paths in unconfigured locations
// resolve to "".
func (i *Installation) Resolve(gp loadout.GamePath) string {
	root, ok := i.Roots[gp.Location]
	if !ok {
		return ""
	}
	if gp.Path == "" {
		return root
	}
	return filepath.Join(root, filepath.FromSlash(gp.Path))
}

// ToGamePath converts an absolute path to a GamePath using the most
// specific location root that contains it.
func (i *Installation) ToGamePath(abs string) (loadout.GamePath, bool) {
	abs = filepath.Clean(abs)

	var (
		best    loadout.LocationID
		bestLen = -1
	)
	for id, root := range i.Roots {
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if len(root) > bestLen {
			best, bestLen = id, len(root)
		}
	}
	if bestLen < 0 {
		return loadout.GamePath{}, false
	}

	rel, _ := filepath.Rel(i.Roots[best], abs)
	gp, err := loadout.NewGamePath(best, filepath.ToSlash(rel))
	if err != nil {
		return loadout.GamePath{}, false
	}
	return gp, true
}
