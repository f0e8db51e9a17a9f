// Package mirror manages the local copy of the pack archives and the
// checksum records that track what has been verified on disk.
package mirror

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"

	"github.com/openlang/packsync/internal/utils"
)

const (
	lockFileName = ".packsync.lock"
	checksumsDir = ".checksums"
)

var ErrMirrorLocked = errors.New("mirror locked by another process")

// Mirror is a flat directory of archive files keyed by their catalog name.
type Mirror struct {
	Root string

	fs    afero.Fs
	flock *flock.Flock
}

// New opens a mirror rooted at dir on the real filesystem, guarded by a
// lock file so overlapping runs from two processes can be detected.
func New(dir string) (*Mirror, error) {
	root, err := utils.ResolvePath(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve mirror dir %s: %w", dir, err)
	}

	return &Mirror{
		Root:  root,
		fs:    afero.NewOsFs(),
		flock: flock.New(filepath.Join(root, lockFileName)),
	}, nil
}

// NewWithFs opens a mirror on the given filesystem without cross-process
// locking. Tests use this with an in-memory filesystem.
func NewWithFs(fsys afero.Fs, root string) *Mirror {
	return &Mirror{Root: root, fs: fsys}
}

// Setup creates the mirror directory tree.
func (m *Mirror) Setup() error {
	return m.fs.MkdirAll(filepath.Join(m.Root, checksumsDir), 0o755)
}

// TryLock acquires the mirror lock, returning ErrMirrorLocked when another
// process holds it. The caller is expected to skip the run in that case.
func (m *Mirror) TryLock() error {
	if m.flock == nil {
		return nil
	}

	locked, err := m.flock.TryLock()
	if err != nil {
		return fmt.Errorf("lock mirror: %w", err)
	}
	if !locked {
		return ErrMirrorLocked
	}
	return nil
}

func (m *Mirror) Unlock() error {
	if m.flock == nil || !m.flock.Locked() {
		return nil
	}
	return m.flock.Unlock()
}

// List returns the names of the archives currently on disk. Called once per
// run; the result is the authoritative mirror listing for that run.
func (m *Mirror) List() (map[string]struct{}, error) {
	infos, err := afero.ReadDir(m.fs, m.Root)
	if err != nil {
		return nil, fmt.Errorf("list mirror %s: %w", m.Root, err)
	}

	names := make(map[string]struct{}, len(infos))
	for _, info := range infos {
		if info.IsDir() || strings.HasPrefix(info.Name(), ".") {
			continue
		}
		names[info.Name()] = struct{}{}
	}
	return names, nil
}

// Write stores an archive under name, staging to a temp file and renaming so
// a crash never leaves a half-written archive under its final name.
func (m *Mirror) Write(name string, data []byte) error {
	final := m.Path(name)
	tmp := filepath.Join(m.Root, "."+name+".tmp")

	if err := afero.WriteFile(m.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := renameOver(m.fs, tmp, final); err != nil {
		m.fs.Remove(tmp)
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// renameOver replaces dst with src. Some filesystems (Windows, in-memory)
// refuse to clobber on rename, so retry once after removing the target.
func renameOver(fsys afero.Fs, src, dst string) error {
	err := fsys.Rename(src, dst)
	if err == nil {
		return nil
	}
	fsys.Remove(dst)
	return fsys.Rename(src, dst)
}

// Remove deletes an archive. Missing files are not an error.
func (m *Mirror) Remove(name string) error {
	err := m.fs.Remove(m.Path(name))
	if err != nil && !errors.Is(err, afero.ErrFileNotFound) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

// Digest returns the MD5 of the archive's current bytes.
func (m *Mirror) Digest(name string) (string, error) {
	f, err := m.fs.Open(m.Path(name))
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", name, err)
	}
	defer f.Close()

	return utils.MD5Reader(f)
}

// Path returns the absolute path of an archive inside the mirror.
func (m *Mirror) Path(name string) string {
	return filepath.Join(m.Root, name)
}

// Checksums returns the checksum store co-located with this mirror.
func (m *Mirror) Checksums() *ChecksumStore {
	return &ChecksumStore{fs: m.fs, dir: filepath.Join(m.Root, checksumsDir)}
}
