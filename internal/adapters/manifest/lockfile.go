package manifest

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"

	"github.com/AqwozTheDeveloper/crabby/internal/core/domain"
)

// LockFilename is the reproducibility record, kept next to package.json.
const LockFilename = "crabby.lock.yaml"

// LoadLock reads the lockfile in dir. A missing lockfile returns (nil, nil):
// absence is not an error, it just forces full resolution.
func (s *Store) LoadLock(dir string) (*domain.Lockfile, error) {
	path := filepath.Join(dir, LockFilename)
	data, err := os.ReadFile(path) //nolint:gosec // path is rooted at the project dir
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to read lockfile"), "path", path)
	}

	var lock domain.Lockfile
	if err := yaml.Unmarshal(data, &lock); err != nil {
		// A mangled lockfile is recoverable: resolution simply starts over.
		s.logger.Warn("lockfile is unreadable, re-resolving from the registry")
		return nil, nil
	}
	if lock.Version != domain.LockfileVersion {
		s.logger.Warn("lockfile schema version mismatch, re-resolving from the registry")
		return nil, nil
	}
	return &lock, nil
}

// SaveLock writes the lockfile atomically. Serialization is deterministic:
// entries arrive pre-sorted from domain.BuildLockfile and yaml.v3 keeps
// struct field order.
func (s *Store) SaveLock(dir string, lock *domain.Lockfile) error {
	data, err := yaml.Marshal(lock)
	if err != nil {
		return zerr.Wrap(err, "failed to marshal lockfile")
	}
	return writeFileAtomic(filepath.Join(dir, LockFilename), data)
}
