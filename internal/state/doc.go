// Package state manages disk-state snapshots of game installations.
//
// A snapshot records every file modsync saw in an installation right after
// an apply or ingest transaction: path, content hash, size and modification
// time. It is both the baseline that ingest diffs against and the reference
// the apply drift guard compares with. Snapshots are persisted as JSON files
// under the state directory, one per transaction.
//
// Key concepts:
//   - Entry: One indexed file
//   - DiskState: Path -> Entry map for a whole installation
//   - Snapshot: DiskState plus the loadout version and transaction ID
//   - GeneratedRecord: Cached (hash, size) of a generated file
//   - StateStore: Interface for persisting and loading snapshots
package state
