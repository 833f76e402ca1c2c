// Package planner handles the planning phase of apply and ingest.
//
// The planner diffs the flattened loadout tree against an index of the real
// game folder and produces deterministic, ordered step lists. Plans are
// pure data; nothing here touches the disk, the archive or the loadout
// registry.
//
// Key responsibilities:
//   - Generate ApplyPlan: backup, delete, extract and generate steps that
//     make the disk match the tree
//   - Generate IngestPlan: backup and loadout edit steps that make the
//     loadout match the disk
//   - Guarantee every destructive step is preceded by a backup of the same
//     content unless the archive already holds it
//   - Detect drift between the disk and the last recorded snapshot
package planner
