// Package disklayout implements the node-level view of attribute
// storage: one base directory owning a directory.Directory per live
// attribute, and
// the prune step that finalizes a field's removal once a reconfigure
// has dropped it.
package disklayout

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vespa-engine/vespa-sub013/directory"
)

// Layout owns every attribute directory under one base path (normally
// one per document sub-database).
type Layout struct {
	base string

	mu   sync.Mutex
	dirs map[string]*directory.Directory
}

func New(base string) *Layout {
	return &Layout{base: base, dirs: make(map[string]*directory.Directory)}
}

// Directory returns (creating if necessary) the on-disk directory for
// attribute name.
func (l *Layout) Directory(name string) (*directory.Directory, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d, ok := l.dirs[name]; ok {
		return d, nil
	}
	d, err := directory.New(filepath.Join(l.base, name))
	if err != nil {
		return nil, err
	}
	l.dirs[name] = d
	return d, nil
}

// PruneRemoved finalizes every attribute directory marked .removed
// (via directory.Directory.MarkRemoved) whose name is not in keep,
// deleting its storage permanently. This is the second phase of a
// two-step field removal: MarkRemoved hides the field immediately,
// PruneRemoved reclaims its disk space once no generation can reach it.
func (l *Layout) PruneRemoved(keep map[string]bool) error {
	entries, err := os.ReadDir(l.base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("disklayout: readdir %s: %w", l.base, err)
	}
	for _, e := range entries {
		name := e.Name()
		const suffix = ".removed"
		if len(name) <= len(suffix) || name[len(name)-len(suffix):] != suffix {
			continue
		}
		base := name[:len(name)-len(suffix)]
		if keep[base] {
			continue
		}
		if err := os.RemoveAll(filepath.Join(l.base, name)); err != nil {
			return fmt.Errorf("disklayout: prune %s: %w", name, err)
		}
	}
	return nil
}

// Remove marks name's directory removed, evicting it from the live set
// so a later PruneRemoved can delete it for good.
func (l *Layout) Remove(name string) error {
	l.mu.Lock()
	d, ok := l.dirs[name]
	delete(l.dirs, name)
	l.mu.Unlock()
	if !ok {
		var err error
		d, err = directory.New(filepath.Join(l.base, name))
		if err != nil {
			return err
		}
	}
	_, err := d.MarkRemoved()
	return err
}

// Names lists every attribute directory currently tracked.
func (l *Layout) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.dirs))
	for name := range l.dirs {
		names = append(names, name)
	}
	return names
}
