package app

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// opIDFormat is the layout of operation ids. It sorts chronologically.
const opIDFormat = "20060102T150405Z"

// keepSnapshots is how many post-operation database snapshots are retained.
const keepSnapshots = 10

// Operation tracks the CLI command being run. Operations start read-only;
// commands that change the library mark them mutating, and a mutating
// operation leaves a database snapshot behind when it closes.
type Operation struct {
	ID        string
	Name      string
	StartedAt time.Time
	Status    string // "success" or "error"
	mutating  bool
}

// NewOperation creates an in-memory operation started at now.
func NewOperation(name string, now time.Time) *Operation {
	now = now.UTC()
	return &Operation{
		ID:        now.Format(opIDFormat),
		Name:      name,
		StartedAt: now,
		Status:    "success",
	}
}

// MarkMutating records that the operation changes the library.
func (op *Operation) MarkMutating() { op.mutating = true }

// Mutating reports whether the operation changed the library.
func (op *Operation) Mutating() bool { return op.mutating }

// Finish records the outcome of err and returns it unchanged.
func (op *Operation) Finish(err error) error {
	if err != nil {
		op.Status = "error"
	}
	return err
}

// SnapshotName is the file name of the database snapshot this operation
// leaves behind for deviceID.
func (op *Operation) SnapshotName(deviceID string) string {
	return fmt.Sprintf("%s-%s.db", deviceID, op.ID)
}

// pruneSnapshots removes all but the newest keep snapshots of deviceID in dir.
func pruneSnapshots(dir, deviceID string, keep int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	prefix := deviceID + "-"
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), ".db") {
			names = append(names, e.Name())
		}
	}
	if len(names) <= keep {
		return nil, nil
	}

	// Ids are timestamps, so name order is age order.
	sort.Strings(names)
	var removed []string
	for _, name := range names[:len(names)-keep] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return removed, fmt.Errorf("removing snapshot %s: %w", name, err)
		}
		removed = append(removed, name)
	}
	return removed, nil
}
