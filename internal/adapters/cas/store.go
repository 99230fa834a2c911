package cas

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/zerr"

	"github.com/AqwozTheDeveloper/crabby/internal/adapters/config"
	"github.com/AqwozTheDeveloper/crabby/internal/core/domain"
	"github.com/AqwozTheDeveloper/crabby/internal/core/ports"
)

// Store is a content-addressed package cache on the local filesystem. Each
// cached package is a fully extracted directory tree under
//
//	<root>/<name>/<version>-<digest8>/
//
// where digest8 disambiguates same-version republications. Entries are
// committed atomically: the tarball is extracted into a staging directory and
// renamed into place, so a crash mid-extraction never leaves a half-populated
// entry behind.
type Store struct {
	root   string
	algo   string
	logger ports.Logger
}

var _ ports.PackageCache = (*Store)(nil)

func NewStore(cfg config.Config, logger ports.Logger) (*Store, error) {
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrFileSystem, "create cache root"), "path", cfg.CacheDir)
	}
	return &Store{root: cfg.CacheDir, algo: cfg.IntegrityAlgorithm, logger: logger}, nil
}

func (s *Store) Lookup(key domain.CacheKey) (string, bool) {
	path := s.entryPath(key)
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return path, true
}

// Store verifies the tarball against the key's recorded integrity, extracts
// it, and commits the entry. If a concurrent install of the same package wins
// the rename race the existing entry is kept and returned.
func (s *Store) Store(key domain.CacheKey, tarball []byte) (string, error) {
	integrity := key.Integrity
	if integrity == "" {
		// Nothing recorded to check against; address the entry by the
		// digest of what we actually received.
		computed, err := DigestFor(s.algo, tarball)
		if err != nil {
			return "", err
		}
		integrity = computed
		key.Integrity = computed
	} else if err := verifyIntegrity(integrity, tarball); err != nil {
		return "", zerr.With(zerr.With(err, "package", key.Name), "version", key.Version)
	}

	dst := s.entryPath(key)
	if info, err := os.Stat(dst); err == nil && info.IsDir() {
		return dst, nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", zerr.With(zerr.Wrap(domain.ErrFileSystem, "create cache entry parent"), "path", dst)
	}

	staging, err := os.MkdirTemp(filepath.Dir(dst), ".staging-")
	if err != nil {
		return "", zerr.Wrap(domain.ErrFileSystem, "create staging dir")
	}
	defer os.RemoveAll(staging)

	if err := extractTarball(tarball, staging); err != nil {
		return "", zerr.With(zerr.With(err, "package", key.Name), "version", key.Version)
	}

	if err := os.Rename(staging, dst); err != nil {
		// Another process committed the same entry first.
		if info, statErr := os.Stat(dst); statErr == nil && info.IsDir() {
			return dst, nil
		}
		return "", zerr.With(zerr.Wrap(domain.ErrFileSystem, "commit cache entry"), "path", dst)
	}
	s.logger.Debug("cached " + key.Name + "@" + key.Version)
	return dst, nil
}

func (s *Store) Stats() (int, int64, error) {
	entries := 0
	var size int64

	packages, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, zerr.With(zerr.Wrap(domain.ErrFileSystem, "read cache root"), "path", s.root)
	}

	for _, pkg := range packages {
		if !pkg.IsDir() {
			continue
		}
		versions, err := os.ReadDir(filepath.Join(s.root, pkg.Name()))
		if err != nil {
			continue
		}
		for _, v := range versions {
			if !v.IsDir() || strings.HasPrefix(v.Name(), ".staging-") {
				continue
			}
			entries++
			_ = filepath.WalkDir(filepath.Join(s.root, pkg.Name(), v.Name()), func(_ string, d fs.DirEntry, err error) error {
				if err != nil || d.IsDir() {
					return nil //nolint:nilerr // stats are best effort
				}
				if info, err := d.Info(); err == nil {
					size += info.Size()
				}
				return nil
			})
		}
	}
	return entries, size, nil
}

func (s *Store) Clear() error {
	if err := os.RemoveAll(s.root); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrFileSystem, "clear cache"), "path", s.root)
	}
	return os.MkdirAll(s.root, 0o755)
}

func (s *Store) entryPath(key domain.CacheKey) string {
	// Scoped names contain a slash; flatten so each package is one directory.
	name := strings.ReplaceAll(key.Name, "/", "+")
	return filepath.Join(s.root, name, key.Version+"-"+digest8(key.Integrity))
}

func digest8(integrity string) string {
	if integrity == "" {
		return "00000000"
	}
	sum := xxhash.Sum64String(integrity)
	const hexdigits = "0123456789abcdef"
	var b [8]byte
	for i := range b {
		b[i] = hexdigits[(sum>>(60-4*uint(i)))&0xf]
	}
	return string(b[:])
}

// extractTarball unpacks a gzipped registry tarball into dir. Registry
// tarballs nest everything under a single top level directory (almost always
// "package/"); that component is stripped so the entry root is the package
// root. Entries escaping the destination are rejected outright.
func extractTarball(tarball []byte, dir string) error {
	gz, err := gzip.NewReader(bytes.NewReader(tarball))
	if err != nil {
		return zerr.Wrap(domain.ErrCacheCorrupt, "tarball is not gzip")
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return zerr.Wrap(domain.ErrCacheCorrupt, "read tar header")
		}

		rel, ok := stripRoot(hdr.Name)
		if !ok {
			continue
		}
		if !filepath.IsLocal(rel) {
			return zerr.With(zerr.Wrap(domain.ErrTarballTraversal, "entry path not local"), "entry", hdr.Name)
		}
		target := filepath.Join(dir, filepath.FromSlash(rel))

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return zerr.With(zerr.Wrap(domain.ErrFileSystem, "create dir"), "path", target)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return zerr.With(zerr.Wrap(domain.ErrFileSystem, "create dir"), "path", target)
			}
			if err := writeEntry(target, tr, hdr.FileInfo().Mode()); err != nil {
				return err
			}
		default:
			// Symlinks and device nodes have no business in a registry
			// tarball; skip them rather than fail the whole package.
		}
	}
}

func writeEntry(target string, r io.Reader, mode fs.FileMode) error {
	perm := fs.FileMode(0o644)
	if mode&0o111 != 0 {
		perm = 0o755
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return zerr.With(zerr.Wrap(domain.ErrFileSystem, "create file"), "path", target)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return zerr.With(zerr.Wrap(domain.ErrFileSystem, "write file"), "path", target)
	}
	return f.Close()
}

// stripRoot drops the first path component of a tar entry name. The root
// directory entry itself yields ok=false.
func stripRoot(name string) (string, bool) {
	name = strings.TrimPrefix(name, "./")
	_, rest, found := strings.Cut(name, "/")
	rest = strings.TrimSuffix(rest, "/")
	if !found || rest == "" {
		return "", false
	}
	return rest, true
}
