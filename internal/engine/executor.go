package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/danieljhkim/modsync/internal/archive"
	"github.com/danieljhkim/modsync/internal/config"
	"github.com/danieljhkim/modsync/internal/fingerprint"
	"github.com/danieljhkim/modsync/internal/generators"
	"github.com/danieljhkim/modsync/internal/hash"
	"github.com/danieljhkim/modsync/internal/loadout"
	"github.com/danieljhkim/modsync/internal/planner"
	"github.com/danieljhkim/modsync/internal/state"
)

// executor runs the steps of one plan against one installation.
//
// Steps run phase by phase: backups, deletes, directory pruning, extracts,
// then generated files. All backups finish before anything is deleted or
// overwritten. Cancellation is checked between steps; a step that started
// always runs to completion.
type executor struct {
	e        *Engine
	inst     *config.Installation
	op       string
	executed []planner.Step
}

func (e *Engine) newExecutor(inst *config.Installation, op string) *executor {
	return &executor{e: e, inst: inst, op: op}
}

func (x *executor) done(s planner.Step) {
	x.executed = append(x.executed, s)
	x.e.metrics.RecordStep(x.op, string(s.Kind()))
	x.e.log.Debug().Str("installation", x.inst.Name).Msg(planner.Describe(s))
}

// mutated reports whether any executed step changed the game folder.
func (x *executor) mutated() bool {
	for _, s := range x.executed {
		if s.Kind() != planner.KindBackupFile {
			return true
		}
	}
	return false
}

func (x *executor) cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w after %d steps: %v", ErrCancelled, len(x.executed), err)
	}
	return nil
}

// timed runs one phase and records its duration.
func (x *executor) timed(phase string, fn func() error) error {
	start := x.e.clock.Now()
	err := fn()
	x.e.metrics.ObservePhase(x.op, phase, x.e.clock.Now().Sub(start))
	return err
}

// runApply executes an apply plan. Generated outputs are registered in
// cache as they are written.
func (x *executor) runApply(ctx context.Context, plan *planner.ApplyPlan, cache *fingerprint.Cache[state.GeneratedRecord]) error {
	if err := x.timed("backup", func() error {
		return x.backup(ctx, planner.StepsOf[planner.BackupFile](plan.Steps))
	}); err != nil {
		return err
	}

	deletes := planner.StepsOf[planner.DeleteFile](plan.Steps)
	if err := x.timed("delete", func() error { return x.delete(ctx, deletes) }); err != nil {
		return err
	}

	if len(deletes) > 0 {
		deleted := make([]loadout.GamePath, len(deletes))
		for i, s := range deletes {
			deleted[i] = s.Path
		}
		if err := x.timed("prune", func() error {
			return pruneEmptyDirs(x.e.fs, x.inst, plan.Tree, deleted)
		}); err != nil {
			return err
		}
	}

	if err := x.timed("extract", func() error {
		return x.extract(ctx, planner.StepsOf[planner.ExtractFile](plan.Steps))
	}); err != nil {
		return err
	}

	gctx := generators.Context{Loadout: plan.Loadout, Sorted: plan.Sorted, Flattened: plan.Flattened}
	return x.timed("generate", func() error {
		return x.generate(ctx, planner.StepsOf[planner.GenerateFile](plan.Steps), gctx, cache)
	})
}

// backup archives disk content. The whole batch must succeed before any
// later phase runs.
func (x *executor) backup(ctx context.Context, steps []planner.BackupFile) error {
	if len(steps) == 0 {
		return nil
	}
	if err := x.cancelled(ctx); err != nil {
		return err
	}

	reqs := make([]archive.BackupRequest, 0, len(steps))
	for _, s := range steps {
		abs, err := resolvePath(x.inst, s.Path)
		if err != nil {
			return err
		}
		reqs = append(reqs, archive.BackupRequest{Hash: s.Hash, Size: s.Size, Source: archive.FileSource(x.e.fs, abs)})
	}

	if err := x.e.archive.BackupFiles(ctx, reqs); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w during backup: %v", ErrCancelled, err)
		}
		return fmt.Errorf("failed to back up files: %w", err)
	}
	for _, s := range steps {
		x.done(s)
	}
	return nil
}

func (x *executor) delete(ctx context.Context, steps []planner.DeleteFile) error {
	for _, s := range steps {
		if err := x.cancelled(ctx); err != nil {
			return err
		}
		abs, err := resolvePath(x.inst, s.Path)
		if err != nil {
			return err
		}
		if err := x.e.fs.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to delete %s: %w", s.Path, err)
		}
		x.done(s)
	}
	return nil
}

func (x *executor) extract(ctx context.Context, steps []planner.ExtractFile) error {
	for _, s := range steps {
		if err := x.cancelled(ctx); err != nil {
			return err
		}
		abs, err := resolvePath(x.inst, s.Path)
		if err != nil {
			return err
		}
		req := archive.ExtractRequest{Hash: s.Hash, Dest: abs, Perm: fileMode(s.Path)}
		if err := x.e.archive.ExtractFiles(context.WithoutCancel(ctx), []archive.ExtractRequest{req}); err != nil {
			return fmt.Errorf("failed to extract %s: %w", s.Path, err)
		}
		x.done(s)
	}
	return nil
}

// generate writes generator output to disk, archives it and records the
// content under the step's fingerprint, so an unchanged generator can be
// replayed by extraction next time.
func (x *executor) generate(ctx context.Context, steps []planner.GenerateFile, gctx generators.Context, cache *fingerprint.Cache[state.GeneratedRecord]) error {
	for _, s := range steps {
		if err := x.cancelled(ctx); err != nil {
			return err
		}
		g, err := x.e.generators.Get(s.Generator)
		if err != nil {
			return fmt.Errorf("failed to generate %s: %w", s.Path, err)
		}
		abs, err := resolvePath(x.inst, s.Path)
		if err != nil {
			return err
		}

		stepCtx := context.WithoutCancel(ctx)
		hw := hash.NewWriter()
		err = x.e.fs.AtomicWriteStream(abs, fileMode(s.Path), func(w io.Writer) error {
			return g.Generate(stepCtx, io.MultiWriter(w, hw), gctx)
		})
		if err != nil {
			return fmt.Errorf("failed to generate %s: %w", s.Path, err)
		}

		record := state.GeneratedRecord{Hash: hw.Sum(), Size: hw.Size()}
		req := archive.BackupRequest{Hash: record.Hash, Size: record.Size, Source: archive.FileSource(x.e.fs, abs)}
		if err := x.e.archive.BackupFiles(stepCtx, []archive.BackupRequest{req}); err != nil {
			return fmt.Errorf("failed to archive generated %s: %w", s.Path, err)
		}
		cache.Set(s.Fingerprint, record)
		x.done(s)
	}
	return nil
}
