package engine

import (
	"context"
	"errors"
	"os"
)

// ListInstallations returns a summary of every configured installation.
// Algorithm steps:
// 1. Walk the configured installations in config order
// 2. Load the latest snapshot of each (missing means unmanaged)
// 3. Load the loadout head of managed installations
// 4. Skip installations whose state cannot be read
func (e *Engine) ListInstallations(ctx context.Context) (*ListResult, error) {
	result := &ListResult{Installations: []InstallationInfo{}}
	for _, name := range e.cfg.InstallationNames() {
		inst, err := e.installation(name)
		if err != nil {
			return nil, err
		}
		info := InstallationInfo{Name: inst.Name, Game: inst.Game}

		snap, err := e.states.LoadLatest(inst.Name)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				e.log.Warn().Err(err).Str("installation", inst.Name).Msg("failed to load snapshot")
				continue
			}
			result.Installations = append(result.Installations, info)
			continue
		}

		head, err := e.head(snap)
		if err != nil {
			e.log.Warn().Err(err).Str("installation", inst.Name).Msg("failed to load loadout")
			continue
		}
		info.Managed = true
		info.LoadoutName = head.Name
		info.Mods = len(head.Mods)
		info.TxID = snap.TxID
		result.Installations = append(result.Installations, info)
	}
	return result, nil
}
