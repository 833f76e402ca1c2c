package loadout

import (
	"encoding/json"
	"fmt"

	"github.com/danieljhkim/modsync/internal/hash"
)

// ModFile is a file contributed by a mod. The set of variants is closed:
// FromArchive and GeneratedFile.
type ModFile interface {
	// FileID returns the file's identity within its mod.
	FileID() FileID

	// Target returns where the file lands in the game folder. A zero path
	// means the file has no target and is skipped by flattening.
	Target() GamePath

	isModFile()
}

// FromArchive is a file whose bytes live in the archive under Hash.
type FromArchive struct {
	ID   FileID
	To   GamePath
	Hash hash.Hash
	Size int64
}

// GeneratedFile is a file synthesized on demand by the named generator.
type GeneratedFile struct {
	ID        FileID
	To        GamePath
	Generator string
}

func (f FromArchive) FileID() FileID     { return f.ID }
func (f FromArchive) Target() GamePath   { return f.To }
func (FromArchive) isModFile()           {}
func (f GeneratedFile) FileID() FileID   { return f.ID }
func (f GeneratedFile) Target() GamePath { return f.To }
func (GeneratedFile) isModFile()         {}

// WithTarget returns a copy of f pointing at to.
func WithTarget(f ModFile, to GamePath) ModFile {
	switch v := f.(type) {
	case FromArchive:
		v.To = to
		return v
	case GeneratedFile:
		v.To = to
		return v
	default:
		return f
	}
}

// SortRule constrains where a mod is placed in the sort order. The set of
// variants is closed: Before, After, First and Generated.
type SortRule interface {
	isSortRule()
}

// Before places the owning mod before Other.
type Before struct{ Other ModID }

// After places the owning mod after Other.
type After struct{ Other ModID }

// First places the owning mod ahead of every mod that is not itself First.
type First struct{}

// Generated is resolved at sort time by the named rule generator into
// concrete Before/After rules.
type Generated struct{ Generator string }

func (Before) isSortRule()    {}
func (After) isSortRule()     {}
func (First) isSortRule()     {}
func (Generated) isSortRule() {}

const (
	kindFromArchive = "fromArchive"
	kindGenerated   = "generated"
	kindBefore      = "before"
	kindAfter       = "after"
	kindFirst       = "first"
)

type fileEnvelope struct {
	Kind      string    `json:"kind"`
	ID        FileID    `json:"id"`
	To        GamePath  `json:"to"`
	Hash      hash.Hash `json:"hash,omitempty"`
	Size      int64     `json:"size,omitempty"`
	Generator string    `json:"generator,omitempty"`
}

func encodeFile(f ModFile) (fileEnvelope, error) {
	switch v := f.(type) {
	case FromArchive:
		return fileEnvelope{Kind: kindFromArchive, ID: v.ID, To: v.To, Hash: v.Hash, Size: v.Size}, nil
	case GeneratedFile:
		return fileEnvelope{Kind: kindGenerated, ID: v.ID, To: v.To, Generator: v.Generator}, nil
	default:
		return fileEnvelope{}, fmt.Errorf("%w: %T", ErrUnknownVariant, f)
	}
}

func decodeFile(e fileEnvelope) (ModFile, error) {
	switch e.Kind {
	case kindFromArchive:
		return FromArchive{ID: e.ID, To: e.To, Hash: e.Hash, Size: e.Size}, nil
	case kindGenerated:
		return GeneratedFile{ID: e.ID, To: e.To, Generator: e.Generator}, nil
	default:
		return nil, fmt.Errorf("%w: file kind %q", ErrUnknownVariant, e.Kind)
	}
}

type ruleEnvelope struct {
	Kind      string `json:"kind"`
	Other     *ModID `json:"other,omitempty"`
	Generator string `json:"generator,omitempty"`
}

func encodeRule(r SortRule) (ruleEnvelope, error) {
	switch v := r.(type) {
	case Before:
		other := v.Other
		return ruleEnvelope{Kind: kindBefore, Other: &other}, nil
	case After:
		other := v.Other
		return ruleEnvelope{Kind: kindAfter, Other: &other}, nil
	case First:
		return ruleEnvelope{Kind: kindFirst}, nil
	case Generated:
		return ruleEnvelope{Kind: kindGenerated, Generator: v.Generator}, nil
	default:
		return ruleEnvelope{}, fmt.Errorf("%w: %T", ErrUnknownVariant, r)
	}
}

func decodeRule(e ruleEnvelope) (SortRule, error) {
	switch e.Kind {
	case kindBefore, kindAfter:
		if e.Other == nil {
			return nil, fmt.Errorf("sort rule %q is missing its target mod", e.Kind)
		}
		if e.Kind == kindBefore {
			return Before{Other: *e.Other}, nil
		}
		return After{Other: *e.Other}, nil
	case kindFirst:
		return First{}, nil
	case kindGenerated:
		return Generated{Generator: e.Generator}, nil
	default:
		return nil, fmt.Errorf("%w: rule kind %q", ErrUnknownVariant, e.Kind)
	}
}

type modJSON struct {
	ID        ModID          `json:"id"`
	Name      string         `json:"name"`
	Category  Category       `json:"category"`
	Enabled   bool           `json:"enabled"`
	Files     []fileEnvelope `json:"files"`
	SortRules []ruleEnvelope `json:"sortRules,omitempty"`
}

// MarshalJSON encodes the mod with its files sorted by FileID and each
// variant tagged by "kind".
func (m Mod) MarshalJSON() ([]byte, error) {
	out := modJSON{
		ID:       m.ID,
		Name:     m.Name,
		Category: m.Category,
		Enabled:  m.Enabled,
		Files:    make([]fileEnvelope, 0, len(m.Files)),
	}
	for _, f := range m.SortedFiles() {
		e, err := encodeFile(f)
		if err != nil {
			return nil, err
		}
		out.Files = append(out.Files, e)
	}
	for _, r := range m.SortRules {
		e, err := encodeRule(r)
		if err != nil {
			return nil, err
		}
		out.SortRules = append(out.SortRules, e)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the tagged form written by MarshalJSON.
func (m *Mod) UnmarshalJSON(data []byte) error {
	var in modJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	mod := Mod{
		ID:       in.ID,
		Name:     in.Name,
		Category: in.Category,
		Enabled:  in.Enabled,
		Files:    make(map[FileID]ModFile, len(in.Files)),
	}
	for _, e := range in.Files {
		f, err := decodeFile(e)
		if err != nil {
			return fmt.Errorf("mod %s: %w", in.Name, err)
		}
		mod.Files[f.FileID()] = f
	}
	for _, e := range in.SortRules {
		r, err := decodeRule(e)
		if err != nil {
			return fmt.Errorf("mod %s: %w", in.Name, err)
		}
		mod.SortRules = append(mod.SortRules, r)
	}
	*m = mod
	return nil
}
