// Package manifest reads TOML files declaring mods to install into a
// loadout and imports their content into the archive.
//
// Example:
//
//	[[mod]]
//	name = "Skin Pack"
//	source = "mods/skin-pack"
//	sort = ["after:Base Textures", "generated:alphabetical"]
//
//	[[mod]]
//	name = "Load Order"
//	category = "Mod"
//	sort = ["generated:after-all"]
//
//	  [[mod.generated]]
//	  to = "{Game}/plugins.txt"
//	  generator = "load-order"
//
// Relative sources are resolved against the manifest's directory.
package manifest

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/danieljhkim/modsync/internal/fsops"
	"github.com/danieljhkim/modsync/internal/loadout"
)

var (
	// ErrNoContent is returned when a declared mod has no files to install.
	ErrNoContent = errors.New("mod has no installable files")

	// ErrInvalidManifest is returned for malformed declarations.
	ErrInvalidManifest = errors.New("invalid manifest")
)

// Manifest is a parsed manifest file.
type Manifest struct {
	Mods []ModSpec `toml:"mod"`
}

// ModSpec declares one mod.
type ModSpec struct {
	Name     string `toml:"name"`
	Category string `toml:"category"`

	// Enabled defaults to true.
	Enabled *bool `toml:"enabled"`

	// Source is a directory whose files are installed under Location.
	Source   string `toml:"source"`
	Location string `toml:"location"`

	// Sort holds rules: "first", "before:<mod>", "after:<mod>" or
	// "generated:<generator>".
	Sort []string `toml:"sort"`

	Generated []GeneratedSpec `toml:"generated"`
}

// GeneratedSpec declares a generated file.
type GeneratedSpec struct {
	To        string `toml:"to"`
	Generator string `toml:"generator"`
}

// IsEnabled reports the effective enabled flag.
func (s ModSpec) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Load reads and parses the manifest at path on fs.
func Load(fs fsops.FS, path string) (*Manifest, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest %s: %w", path, err)
	}
	base := filepath.Dir(path)
	for i := range m.Mods {
		if src := m.Mods[i].Source; src != "" && !filepath.IsAbs(src) {
			m.Mods[i].Source = filepath.Join(base, src)
		}
	}
	return m, nil
}

// Parse decodes and validates manifest content.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	meta, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("%w: unknown keys %s", ErrInvalidManifest, strings.Join(keys, ", "))
	}

	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) applyDefaults() {
	for i := range m.Mods {
		spec := &m.Mods[i]
		spec.Name = strings.TrimSpace(spec.Name)
		if spec.Category == "" {
			spec.Category = string(loadout.CategoryMod)
		}
		if spec.Location == "" {
			spec.Location = string(loadout.LocationGame)
		}
	}
}

// Validate checks names, locations, rules and generated file targets.
func (m *Manifest) Validate() error {
	seen := make(map[string]bool, len(m.Mods))
	for i, spec := range m.Mods {
		if spec.Name == "" {
			return fmt.Errorf("%w: mod %d has no name", ErrInvalidManifest, i)
		}
		if seen[spec.Name] {
			return fmt.Errorf("%w: duplicate mod %q", ErrInvalidManifest, spec.Name)
		}
		seen[spec.Name] = true

		if !loadout.LocationID(spec.Location).Valid() {
			return fmt.Errorf("%w: mod %q: unknown location %q", ErrInvalidManifest, spec.Name, spec.Location)
		}
		for _, raw := range spec.Sort {
			if _, _, err := parseRule(raw); err != nil {
				return fmt.Errorf("mod %q: %w", spec.Name, err)
			}
		}
		for _, g := range spec.Generated {
			if g.Generator == "" {
				return fmt.Errorf("%w: mod %q: generated file %q has no generator", ErrInvalidManifest, spec.Name, g.To)
			}
			if _, err := loadout.ParseGamePath(g.To); err != nil {
				return fmt.Errorf("%w: mod %q: %v", ErrInvalidManifest, spec.Name, err)
			}
		}
	}
	return nil
}

type ruleKind string

const (
	ruleFirst     ruleKind = "first"
	ruleBefore    ruleKind = "before"
	ruleAfter     ruleKind = "after"
	ruleGenerated ruleKind = "generated"
)

// parseRule splits "kind:arg".
func parseRule(raw string) (ruleKind, string, error) {
	kind, arg, _ := strings.Cut(strings.TrimSpace(raw), ":")
	kind = strings.ToLower(strings.TrimSpace(kind))
	arg = strings.TrimSpace(arg)

	switch ruleKind(kind) {
	case ruleFirst:
		if arg != "" {
			return "", "", fmt.Errorf("%w: rule %q takes no argument", ErrInvalidManifest, raw)
		}
		return ruleFirst, "", nil
	case ruleBefore, ruleAfter, ruleGenerated:
		if arg == "" {
			return "", "", fmt.Errorf("%w: rule %q needs an argument", ErrInvalidManifest, raw)
		}
		return ruleKind(kind), arg, nil
	default:
		return "", "", fmt.Errorf("%w: unknown rule %q", ErrInvalidManifest, raw)
	}
}
