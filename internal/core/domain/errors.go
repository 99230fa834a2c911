package domain

import "go.trai.ch/zerr"

var (
	// ErrMalformedManifest is returned when the project manifest cannot be parsed
	// or is structurally invalid (e.g. missing name).
	ErrMalformedManifest = zerr.New("malformed manifest")

	// ErrUnsatisfiableRange is returned when no published version of a package
	// satisfies the union of constraints reaching it.
	ErrUnsatisfiableRange = zerr.New("no version satisfies the requested range")

	// ErrRegistryUnavailable is returned when registry metadata cannot be
	// retrieved after the retry budget is exhausted.
	ErrRegistryUnavailable = zerr.New("registry unavailable")

	// ErrNetwork is returned when a tarball download fails after the retry budget.
	ErrNetwork = zerr.New("network error")

	// ErrPackageNotFound is returned when the registry has no package under
	// the requested name.
	ErrPackageNotFound = zerr.New("package not found in registry")

	// ErrIntegrityMismatch is returned when a fetched tarball's digest does not
	// match the expected integrity value. No cache entry is created.
	ErrIntegrityMismatch = zerr.New("integrity mismatch")

	// ErrFileSystem is returned for unrecoverable filesystem failures during
	// extraction or linking (permissions, disk space).
	ErrFileSystem = zerr.New("filesystem error")

	// ErrScriptFailed marks a lifecycle script that exited non-zero. It is
	// recorded in the install report and never aborts the remaining plan.
	ErrScriptFailed = zerr.New("lifecycle script failed")

	// ErrInvalidRange is returned when a version range expression cannot be parsed.
	ErrInvalidRange = zerr.New("invalid version range")

	// ErrDuplicatePackage is returned when a package is registered twice in the
	// same resolution scope.
	ErrDuplicatePackage = zerr.New("package already resolved in scope")

	// ErrUnknownScope is returned when a scope handle does not exist in the graph.
	ErrUnknownScope = zerr.New("unknown resolution scope")

	// ErrUnknownNode is returned when a node handle does not exist in the arena.
	ErrUnknownNode = zerr.New("unknown graph node")

	// ErrUnknownScript is returned when a requested manifest script is not declared.
	ErrUnknownScript = zerr.New("script not declared in manifest")

	// ErrDependencyNotDeclared is returned when removing a dependency the
	// manifest does not declare.
	ErrDependencyNotDeclared = zerr.New("dependency not declared in manifest")

	// ErrCacheCorrupt is returned when a cache entry exists on disk but cannot
	// be read back.
	ErrCacheCorrupt = zerr.New("cache entry corrupt")

	// ErrTarballTraversal is returned when a tarball entry would escape the
	// extraction root.
	ErrTarballTraversal = zerr.New("tarball entry escapes extraction root")

	// ErrUnsupportedAlgorithm is returned when an integrity string names a
	// digest algorithm the cache does not implement.
	ErrUnsupportedAlgorithm = zerr.New("unsupported integrity algorithm")
)
