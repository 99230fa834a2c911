package ports

// Materializer performs the filesystem side of installation: placing cached
// trees into the module layout, linking executables and workspace members.
//
//go:generate mockgen -source=materializer.go -destination=mocks/mock_materializer.go -package=mocks
type Materializer interface {
	// PlaceTree copies (or hard-links) the cached tree at src into dst,
	// replacing whatever is there.
	PlaceTree(src, dst string) error

	// LinkBin exposes a package executable under binDir. target is the entry
	// point path inside the installed package.
	LinkBin(name, target, binDir string) error

	// Symlink links a workspace member directory into the module tree.
	Symlink(src, dst string) error

	// RemoveTree deletes a partially written install location. Used for
	// cancellation cleanup; missing paths are not an error.
	RemoveTree(path string) error
}
