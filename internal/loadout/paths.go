package loadout

import (
	"fmt"
	"path"
	"strings"

	"github.com/danieljhkim/modsync/internal/fsops"
)

// LocationID names a root folder of a game installation.
type LocationID string

const (
	LocationGame        LocationID = "Game"
	LocationSaves       LocationID = "Saves"
	LocationPreferences LocationID = "Preferences"
	LocationAppData     LocationID = "AppData"
)

// Locations lists every known location in display order.
var Locations = []LocationID{LocationGame, LocationSaves, LocationPreferences, LocationAppData}

// Valid reports whether l is a known location.
func (l LocationID) Valid() bool {
	for _, known := range Locations {
		if l == known {
			return true
		}
	}
	return false
}

// GamePath is a slash-separated path relative to a location root.
// The zero value means "no target".
type GamePath struct {
	Location LocationID
	Path     string
}

// NewGamePath validates and normalizes a path under loc.
func NewGamePath(loc LocationID, p string) (GamePath, error) {
	if !loc.Valid() {
		return GamePath{}, fmt.Errorf("unknown location %q", loc)
	}
	p = strings.ReplaceAll(p, `\`, "/")
	if err := fsops.ValidateRelPath(p); err != nil {
		return GamePath{}, err
	}
	return GamePath{Location: loc, Path: path.Clean(p)}, nil
}

// MustGamePath is NewGamePath for literals; it panics on invalid input.
func MustGamePath(loc LocationID, p string) GamePath {
	gp, err := NewGamePath(loc, p)
	if err != nil {
		panic(err)
	}
	return gp
}

// ParseGamePath parses the "{Location}/path" form produced by String.
func ParseGamePath(s string) (GamePath, error) {
	if !strings.HasPrefix(s, "{") {
		return GamePath{}, fmt.Errorf("invalid game path %q: missing location", s)
	}
	end := strings.Index(s, "}/")
	if end < 0 {
		return GamePath{}, fmt.Errorf("invalid game path %q: missing location", s)
	}
	return NewGamePath(LocationID(s[1:end]), s[end+2:])
}

// IsZero reports whether gp has no target.
func (gp GamePath) IsZero() bool {
	return gp.Location == "" && gp.Path == ""
}

func (gp GamePath) String() string {
	return "{" + string(gp.Location) + "}/" + gp.Path
}

// Less orders paths by location, then path.
func (gp GamePath) Less(other GamePath) bool {
	if gp.Location != other.Location {
		return gp.Location < other.Location
	}
	return gp.Path < other.Path
}

// Name returns the final path element.
func (gp GamePath) Name() string {
	return path.Base(gp.Path)
}

// Segments splits the path into its elements.
func (gp GamePath) Segments() []string {
	return strings.Split(gp.Path, "/")
}

// Parent returns the containing directory, or the zero value at a location
// root.
func (gp GamePath) Parent() (GamePath, bool) {
	dir := path.Dir(gp.Path)
	if dir == "." {
		return GamePath{}, false
	}
	return GamePath{Location: gp.Location, Path: dir}, true
}

func (gp GamePath) MarshalText() ([]byte, error) {
	if gp.IsZero() {
		return []byte{}, nil
	}
	return []byte(gp.String()), nil
}

func (gp *GamePath) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*gp = GamePath{}
		return nil
	}
	parsed, err := ParseGamePath(string(b))
	if err != nil {
		return err
	}
	*gp = parsed
	return nil
}
