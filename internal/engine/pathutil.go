package engine

import (
	"fmt"
	"os"
	"strings"

	"github.com/danieljhkim/modsync/internal/config"
	"github.com/danieljhkim/modsync/internal/loadout"
)

// resolvePath maps a GamePath to an absolute path inside the installation.
// It rejects locations the installation does not configure.
func resolvePath(inst *config.Installation, gp loadout.GamePath) (string, error) {
	abs := inst.Resolve(gp)
	if abs == "" {
		return "", fmt.Errorf("location %s is not configured for installation %s", gp.Location, inst.Name)
	}
	return abs, nil
}

// fileMode returns the mode an extracted or generated file gets. Shell
// scripts and anything under a bin directory are executable.
func fileMode(gp loadout.GamePath) os.FileMode {
	if strings.HasSuffix(gp.Name(), ".sh") {
		return 0755
	}
	for _, seg := range gp.Segments() {
		if seg == "bin" {
			return 0755
		}
	}
	return 0644
}
