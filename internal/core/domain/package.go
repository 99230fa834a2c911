package domain

// PackageSource identifies where a resolved package's content comes from.
type PackageSource uint8

const (
	// SourceRegistry means the package is fetched as a tarball from the registry.
	SourceRegistry PackageSource = iota
	// SourceWorkspace means the package is a local workspace member, linked in place.
	SourceWorkspace
	// SourceLockfile means the package was pinned by a consistent lockfile and
	// resolved without a registry metadata query.
	SourceLockfile
)

// String returns the serialized source name.
func (s PackageSource) String() string {
	switch s {
	case SourceWorkspace:
		return "workspace"
	case SourceLockfile:
		return "lockfile"
	default:
		return "registry"
	}
}

// ResolvedPackage is one node of the dependency graph: a concrete version of a
// named package together with everything needed to fetch and verify it.
// Immutable once created; the graph addresses it by NodeID.
type ResolvedPackage struct {
	Name      InternedString
	Version   InternedString
	Integrity string
	Source    PackageSource

	// Tarball is the registry download URL. Empty for workspace packages.
	Tarball string

	// LocalPath is the workspace member directory for SourceWorkspace.
	LocalPath string

	// Deps are the package's own declared dependencies in declaration order.
	Deps []DependencySpec

	// Depth is the nesting depth of the scope the package resolved into.
	// Zero for hoisted (root scope) packages.
	Depth int

	// Scripts holds the package's own lifecycle commands (postinstall et al).
	Scripts map[string]string

	// Bin maps executable names to entry point paths inside the package.
	Bin map[string]string
}

// RegistryVersion is one published version from registry metadata, already
// validated into the typed shape at the HTTP boundary.
type RegistryVersion struct {
	Version   string
	Integrity string
	Tarball   string
	Deps      []DependencySpec
	Scripts   map[string]string
	Bin       map[string]string
}

// CacheKey addresses one extracted package tree in the content-addressed cache.
type CacheKey struct {
	Name      string
	Version   string
	Integrity string
}
