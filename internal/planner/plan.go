package planner

import (
	"errors"
	"fmt"

	"github.com/danieljhkim/modsync/internal/hash"
	"github.com/danieljhkim/modsync/internal/loadout"
	"github.com/danieljhkim/modsync/internal/overlay"
	"github.com/danieljhkim/modsync/internal/state"
)

var (
	// ErrUnknownFileType is returned when a tree entry holds a ModFile
	// variant the planner does not know.
	ErrUnknownFileType = errors.New("unknown mod file type")

	// ErrUnknownStep is returned when an executor meets a step it cannot
	// run.
	ErrUnknownStep = errors.New("unknown plan step")
)

// StepKind names a step type.
type StepKind string

const (
	KindBackupFile        StepKind = "BackupFile"
	KindDeleteFile        StepKind = "DeleteFile"
	KindExtractFile       StepKind = "ExtractFile"
	KindGenerateFile      StepKind = "GenerateFile"
	KindCreateInLoadout   StepKind = "CreateInLoadout"
	KindReplaceInLoadout  StepKind = "ReplaceInLoadout"
	KindRemoveFromLoadout StepKind = "RemoveFromLoadout"
)

// Step is one operation of a plan.
type Step interface {
	Kind() StepKind
	Target() loadout.GamePath
	isStep()
}

// BackupFile copies the current disk content at Path into the archive.
type BackupFile struct {
	Path loadout.GamePath
	Hash hash.Hash
	Size int64
}

// DeleteFile removes Path from disk.
type DeleteFile struct {
	Path loadout.GamePath
	Hash hash.Hash
	Size int64
}

// ExtractFile writes archived content to Path.
type ExtractFile struct {
	Path loadout.GamePath
	Hash hash.Hash
	Size int64
}

// GenerateFile runs a generator and writes its output to Path. The output
// is registered under Fingerprint once written.
type GenerateFile struct {
	Path        loadout.GamePath
	Generator   string
	Fingerprint hash.Hash
}

// OverrideTarget is the mod that absorbs a file new to the loadout. The mod
// is created when the loadout does not have it yet.
type OverrideTarget struct {
	Mod      loadout.ModID
	Name     string
	Category loadout.Category
}

// CreateInLoadout adds a new FromArchive file to Owner.
type CreateInLoadout struct {
	Path  loadout.GamePath
	Hash  hash.Hash
	Size  int64
	File  loadout.FileID
	Owner OverrideTarget
}

// ReplaceInLoadout replaces an existing file with new archived content,
// keeping its identity.
type ReplaceInLoadout struct {
	Path loadout.GamePath
	Hash hash.Hash
	Size int64
	Mod  loadout.ModID
	File loadout.FileID
}

// RemoveFromLoadout drops a file the disk no longer has.
type RemoveFromLoadout struct {
	Path loadout.GamePath
	Mod  loadout.ModID
	File loadout.FileID
}

func (BackupFile) Kind() StepKind        { return KindBackupFile }
func (DeleteFile) Kind() StepKind        { return KindDeleteFile }
func (ExtractFile) Kind() StepKind       { return KindExtractFile }
func (GenerateFile) Kind() StepKind      { return KindGenerateFile }
func (CreateInLoadout) Kind() StepKind   { return KindCreateInLoadout }
func (ReplaceInLoadout) Kind() StepKind  { return KindReplaceInLoadout }
func (RemoveFromLoadout) Kind() StepKind { return KindRemoveFromLoadout }

func (s BackupFile) Target() loadout.GamePath        { return s.Path }
func (s DeleteFile) Target() loadout.GamePath        { return s.Path }
func (s ExtractFile) Target() loadout.GamePath       { return s.Path }
func (s GenerateFile) Target() loadout.GamePath      { return s.Path }
func (s CreateInLoadout) Target() loadout.GamePath   { return s.Path }
func (s ReplaceInLoadout) Target() loadout.GamePath  { return s.Path }
func (s RemoveFromLoadout) Target() loadout.GamePath { return s.Path }

func (BackupFile) isStep()        {}
func (DeleteFile) isStep()        {}
func (ExtractFile) isStep()       {}
func (GenerateFile) isStep()      {}
func (CreateInLoadout) isStep()   {}
func (ReplaceInLoadout) isStep()  {}
func (RemoveFromLoadout) isStep() {}

// Describe renders a step for logs and plan output.
func Describe(s Step) string {
	switch s := s.(type) {
	case BackupFile:
		return fmt.Sprintf("backup   %s (%s)", s.Path, s.Hash)
	case DeleteFile:
		return fmt.Sprintf("delete   %s", s.Path)
	case ExtractFile:
		return fmt.Sprintf("extract  %s (%s)", s.Path, s.Hash)
	case GenerateFile:
		return fmt.Sprintf("generate %s (%s)", s.Path, s.Generator)
	case CreateInLoadout:
		return fmt.Sprintf("create   %s -> %s", s.Path, s.Owner.Name)
	case ReplaceInLoadout:
		return fmt.Sprintf("replace  %s (%s)", s.Path, s.Hash)
	case RemoveFromLoadout:
		return fmt.Sprintf("remove   %s", s.Path)
	default:
		return fmt.Sprintf("%T", s)
	}
}

// StepsOf returns the steps of type T in plan order.
func StepsOf[T Step](steps []Step) []T {
	var out []T
	for _, s := range steps {
		if t, ok := s.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

// CountByKind tallies steps by kind.
func CountByKind(steps []Step) map[StepKind]int {
	out := make(map[StepKind]int)
	for _, s := range steps {
		out[s.Kind()]++
	}
	return out
}

// ApplyPlan makes the disk match a loadout.
type ApplyPlan struct {
	Loadout   *loadout.Loadout
	Sorted    []loadout.Mod
	Flattened *overlay.Flattened
	Tree      *overlay.Tree
	Disk      state.DiskState

	// Steps is the ordered list of steps to execute.
	Steps []Step

	// Conflicts lists external changes since the previous snapshot.
	Conflicts []Conflict
}

// IsEmpty reports whether the plan has no steps.
func (p *ApplyPlan) IsEmpty() bool {
	return len(p.Steps) == 0
}

// HasConflicts returns true if the plan detected drift.
func (p *ApplyPlan) HasConflicts() bool {
	return len(p.Conflicts) > 0
}

// IngestPlan makes a loadout match the disk.
type IngestPlan struct {
	Loadout *loadout.Loadout

	// Tree is the loadout tree with every step of the plan applied.
	Tree *overlay.Tree

	Disk state.DiskState

	Steps []Step
}

// IsEmpty reports whether the plan has no steps.
func (p *IngestPlan) IsEmpty() bool {
	return len(p.Steps) == 0
}

// backupSet emits each hash at most once per plan.
type backupSet struct {
	archive HaveFiler
	seen    map[hash.Hash]bool
}

func newBackupSet(archive HaveFiler) *backupSet {
	return &backupSet{archive: archive, seen: make(map[hash.Hash]bool)}
}

// step returns the BackupFile step for e, or nil when the content is
// already archived or already scheduled.
func (b *backupSet) step(e state.Entry) Step {
	if !e.Hash.IsZero() && (b.seen[e.Hash] || (b.archive != nil && b.archive.HaveFile(e.Hash))) {
		return nil
	}
	b.seen[e.Hash] = true
	return BackupFile{Path: e.Path, Hash: e.Hash, Size: e.Size}
}
