// Package fs performs the filesystem side of installation.
package fs

import (
	"errors"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/zerr"

	"github.com/AqwozTheDeveloper/crabby/internal/core/domain"
	"github.com/AqwozTheDeveloper/crabby/internal/core/ports"
)

// Materializer copies cached package trees into node_modules layouts and
// links executables. It only ever writes inside the target module tree; the
// cache stays read-only from its point of view.
type Materializer struct {
	logger ports.Logger
}

var _ ports.Materializer = (*Materializer)(nil)

func NewMaterializer(logger ports.Logger) *Materializer {
	return &Materializer{logger: logger}
}

// PlaceTree copies the tree at src into dst, replacing any previous install
// at that path. Copying rather than linking keeps installed packages
// writable without corrupting the cache.
func (m *Materializer) PlaceTree(src, dst string) error {
	if err := os.RemoveAll(dst); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrFileSystem, "clear install target"), "path", dst)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrFileSystem, "create install parent"), "path", dst)
	}
	return copyTree(src, dst)
}

// LinkBin writes an executable shim for name into binDir that runs target
// with node. Shims rather than symlinks: the script file itself rarely has
// its executable bit set inside registry tarballs.
func (m *Materializer) LinkBin(name, target, binDir string) error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrFileSystem, "create bin dir"), "path", binDir)
	}
	shim := "#!/bin/sh\nexec node \"" + target + "\" \"$@\"\n"
	path := filepath.Join(binDir, name)
	if err := os.WriteFile(path, []byte(shim), 0o755); err != nil { //nolint:gosec // shims must be executable
		return zerr.With(zerr.Wrap(domain.ErrFileSystem, "write bin shim"), "path", path)
	}
	return nil
}

func (m *Materializer) Symlink(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrFileSystem, "create link parent"), "path", dst)
	}
	if err := os.RemoveAll(dst); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrFileSystem, "clear link target"), "path", dst)
	}
	if err := os.Symlink(src, dst); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrFileSystem, "symlink workspace member"), "path", dst)
	}
	return nil
}

func (m *Materializer) RemoveTree(path string) error {
	if err := os.RemoveAll(path); err != nil && !errors.Is(err, iofs.ErrNotExist) {
		return zerr.With(zerr.Wrap(domain.ErrFileSystem, "remove tree"), "path", path)
	}
	return nil
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return zerr.With(zerr.Wrap(domain.ErrFileSystem, "walk source tree"), "path", path)
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return zerr.Wrap(domain.ErrFileSystem, "relativize path")
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return zerr.With(zerr.Wrap(domain.ErrFileSystem, "create dir"), "path", target)
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return zerr.With(zerr.Wrap(domain.ErrFileSystem, "stat source file"), "path", path)
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dst string, mode iofs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return zerr.With(zerr.Wrap(domain.ErrFileSystem, "open source file"), "path", src)
	}
	defer in.Close()

	perm := iofs.FileMode(0o644)
	if mode&0o111 != 0 {
		perm = 0o755
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return zerr.With(zerr.Wrap(domain.ErrFileSystem, "create file"), "path", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return zerr.With(zerr.Wrap(domain.ErrFileSystem, "copy file"), "path", dst)
	}
	return out.Close()
}
