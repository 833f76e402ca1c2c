package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/danieljhkim/modsync/internal/config"
	"github.com/danieljhkim/modsync/internal/loadout"
)

func TestResolvePath(t *testing.T) {
	inst := &config.Installation{
		Name:  "skyrim",
		Roots: map[loadout.LocationID]string{loadout.LocationGame: "/games/skyrim"},
	}

	tests := []struct {
		name    string
		path    loadout.GamePath
		want    string
		wantErr bool
	}{
		{
			name: "file under game root",
			path: loadout.MustGamePath(loadout.LocationGame, "Data/a.esp"),
			want: filepath.Join("/games/skyrim", "Data", "a.esp"),
		},
		{
			name: "location root",
			path: loadout.GamePath{Location: loadout.LocationGame},
			want: "/games/skyrim",
		},
		{
			name:    "unconfigured location",
			path:    loadout.MustGamePath(loadout.LocationSaves, "save1.ess"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolvePath(inst, tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("resolvePath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("resolvePath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFileMode(t *testing.T) {
	tests := []struct {
		path string
		want os.FileMode
	}{
		{path: "Data/a.esp", want: 0644},
		{path: "run.sh", want: 0755},
		{path: "tools/bin/launcher", want: 0755},
		{path: "binaries/readme.txt", want: 0644},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := fileMode(loadout.MustGamePath(loadout.LocationGame, tt.path))
			if got != tt.want {
				t.Errorf("fileMode(%s) = %o, want %o", tt.path, got, tt.want)
			}
		})
	}
}
