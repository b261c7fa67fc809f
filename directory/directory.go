// Package directory implements the attribute directory: one
// attribute's on-disk home, a sequence of immutable
// snapshot-<serial> directories plus a meta-info file recording which
// snapshot is current, and a writer guard that keeps two processes from
// ever touching the same attribute directory concurrently.
package directory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/vespa-engine/vespa-sub013/types"
)

const metaInfoFile = "meta-info.txt"
const lockFile = ".lock"
const snapshotPrefix = "snapshot-"

// Directory owns one attribute's on-disk state under root.
type Directory struct {
	root string
	lock *flock.Flock
}

// New returns a Directory rooted at root, creating the directory if it
// does not exist yet.
func New(root string) (*Directory, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("directory: mkdir %s: %w", root, err)
	}
	return &Directory{root: root, lock: flock.New(filepath.Join(root, lockFile))}, nil
}

func (d *Directory) Root() string { return d.root }

// AcquireWriterGuard takes the exclusive cross-process lock that makes
// this directory's writer role unique. Call ReleaseWriterGuard when done.
func (d *Directory) AcquireWriterGuard(ctx context.Context) error {
	ok, err := d.lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("directory: lock %s: %w", d.root, err)
	}
	if !ok {
		return fmt.Errorf("directory: %s is already locked by another writer", d.root)
	}
	return nil
}

func (d *Directory) ReleaseWriterGuard() error {
	return d.lock.Unlock()
}

// SnapshotPath returns the directory a flush at serial should write to.
func (d *Directory) SnapshotPath(serial types.Serial) string {
	return filepath.Join(d.root, fmt.Sprintf("%s%d", snapshotPrefix, serial))
}

// SnapshotDataFile returns the single codec-owned file inside a
// snapshot directory, named after the attribute (`<attr_name>.dat`).
func (d *Directory) SnapshotDataFile(serial types.Serial, attrName string) string {
	return filepath.Join(d.SnapshotPath(serial), attrName+".dat")
}

// CommitSnapshot records serial as the current snapshot in meta-info,
// after its directory/file has already been durably written. The
// meta-info update itself goes through the same write-temp-then-rename
// sequence so a crash never leaves a torn pointer.
func (d *Directory) CommitSnapshot(serial types.Serial) error {
	path := filepath.Join(d.root, metaInfoFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.FormatUint(uint64(serial), 10)+"\n"), 0o644); err != nil {
		return fmt.Errorf("directory: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("directory: rename %s: %w", path, err)
	}
	return nil
}

// CurrentSnapshot reads the serial meta-info points to, or
// (0, false) if this attribute has never been flushed.
func (d *Directory) CurrentSnapshot() (types.Serial, bool, error) {
	path := filepath.Join(d.root, metaInfoFile)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("directory: open %s: %w", path, err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return 0, false, fmt.Errorf("directory: %s is empty", path)
	}
	n, err := strconv.ParseUint(strings.TrimSpace(scanner.Text()), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("directory: malformed meta-info %s: %w", path, err)
	}
	return types.Serial(n), true, nil
}

// ListSnapshots returns every snapshot-<serial> entry found on disk, in
// ascending serial order, regardless of whether meta-info currently
// points at it (a crash can leave a newer snapshot half-written).
func (d *Directory) ListSnapshots() ([]types.Serial, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("directory: readdir %s: %w", d.root, err)
	}
	var serials []types.Serial
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, snapshotPrefix) {
			continue
		}
		n, err := strconv.ParseUint(name[len(snapshotPrefix):], 10, 64)
		if err != nil {
			continue
		}
		serials = append(serials, types.Serial(n))
	}
	sort.Slice(serials, func(i, j int) bool { return serials[i] < serials[j] })
	return serials, nil
}

// PruneOrphanedSnapshots removes every on-disk snapshot that isn't the
// one meta-info currently points to: a snapshot not yet committed to
// meta-info (or superseded by a later one) is garbage, not a candidate
// to load.
func (d *Directory) PruneOrphanedSnapshots() error {
	current, ok, err := d.CurrentSnapshot()
	if err != nil {
		return err
	}
	serials, err := d.ListSnapshots()
	if err != nil {
		return err
	}
	for _, s := range serials {
		if ok && s == current {
			continue
		}
		if err := os.RemoveAll(filepath.Join(d.root, fmt.Sprintf("%s%d", snapshotPrefix, s))); err != nil {
			return fmt.Errorf("directory: prune snapshot %d: %w", s, err)
		}
	}
	return nil
}

// MarkRemoved renames the directory's content to a .removed sibling,
// the first half of two-phase attribute removal: the field leaves the
// live schema immediately but its storage is only deleted later, by the
// disk layout's prune step. Nothing renames a .removed directory back;
// a field that is added again starts from a fresh directory.
func (d *Directory) MarkRemoved() (string, error) {
	removed := d.root + ".removed"
	if err := os.Rename(d.root, removed); err != nil {
		return "", fmt.Errorf("directory: mark removed %s: %w", d.root, err)
	}
	return removed, nil
}

// DiskUsage sums the apparent size of every file under the directory,
// current snapshot included.
func (d *Directory) DiskUsage() (int64, error) {
	return dirSize(d.root)
}

// TransientDiskUsage sums the apparent size of every on-disk snapshot
// that is not the current one: space a flush or a crash-recovery prune
// will reclaim, but that isn't backing the attribute's live content.
// Mirrors the original attribute directory's transient resource usage,
// which excludes the snapshot whose serial equals the current sync
// token.
func (d *Directory) TransientDiskUsage() (int64, error) {
	current, hasCurrent, err := d.CurrentSnapshot()
	if err != nil {
		return 0, err
	}
	serials, err := d.ListSnapshots()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, s := range serials {
		if hasCurrent && s == current {
			continue
		}
		size, err := dirSize(filepath.Join(d.root, fmt.Sprintf("%s%d", snapshotPrefix, s)))
		if err != nil {
			return 0, err
		}
		total += size
	}
	return total, nil
}

func dirSize(path string) (int64, error) {
	var total int64
	err := filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("directory: walk %s: %w", path, err)
	}
	return total, nil
}
