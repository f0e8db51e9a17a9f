package mirror

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/openlang/packsync/internal/catalog"
)

const recordExt = ".md5"

// ErrStoreCorrupt means one or more persisted records could not be parsed.
// The caller should treat the store as empty and re-fetch, never crash.
var ErrStoreCorrupt = errors.New("checksum store corrupt")

// Record is the persisted digest of one mirrored archive. A record only
// exists for a file whose bytes were confirmed on disk and hashed.
type Record struct {
	Name       string
	Hash       string
	VerifiedAt time.Time
}

// ChecksumStore keeps one bare-hex digest file per archive name. The format
// is deliberately human-diffable so successive publishes show minimal,
// reviewable changes.
type ChecksumStore struct {
	fs  afero.Fs
	dir string
}

func NewChecksumStore(fsys afero.Fs, dir string) *ChecksumStore {
	return &ChecksumStore{fs: fsys, dir: dir}
}

// Load reads all records. On unparseable records it still returns the valid
// subset alongside ErrStoreCorrupt.
func (s *ChecksumStore) Load() (map[string]Record, error) {
	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		if errors.Is(err, afero.ErrFileNotFound) {
			return map[string]Record{}, nil
		}
		return nil, fmt.Errorf("load checksum store %s: %w", s.dir, err)
	}

	records := make(map[string]Record, len(infos))
	corrupt := false
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(info.Name(), recordExt) {
			continue
		}
		name := strings.TrimSuffix(info.Name(), recordExt)

		data, err := afero.ReadFile(s.fs, filepath.Join(s.dir, info.Name()))
		if err != nil {
			return nil, fmt.Errorf("load record %s: %w", name, err)
		}

		hash := strings.ToLower(strings.TrimSpace(string(data)))
		if !catalog.ValidDigest(hash) {
			corrupt = true
			continue
		}

		records[name] = Record{
			Name:       name,
			Hash:       hash,
			VerifiedAt: info.ModTime(),
		}
	}

	if corrupt {
		return records, ErrStoreCorrupt
	}
	return records, nil
}

// Record creates or overwrites the digest record for name. The record is
// staged and renamed so it either exists fully written or not at all.
func (s *ChecksumStore) Record(name, hash string) error {
	if !catalog.ValidDigest(hash) {
		return fmt.Errorf("record %s: invalid digest %q", name, hash)
	}

	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("record %s: %w", name, err)
	}

	final := filepath.Join(s.dir, name+recordExt)
	tmp := final + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, []byte(hash+"\n"), 0o644); err != nil {
		return fmt.Errorf("record %s: %w", name, err)
	}
	if err := renameOver(s.fs, tmp, final); err != nil {
		s.fs.Remove(tmp)
		return fmt.Errorf("record %s: %w", name, err)
	}
	return nil
}

// Remove deletes the record for name. Missing records are not an error.
func (s *ChecksumStore) Remove(name string) error {
	err := s.fs.Remove(filepath.Join(s.dir, name+recordExt))
	if err != nil && !errors.Is(err, afero.ErrFileNotFound) {
		return fmt.Errorf("remove record %s: %w", name, err)
	}
	return nil
}
