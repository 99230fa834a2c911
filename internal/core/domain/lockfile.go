package domain

import (
	"sort"

	"github.com/Masterminds/semver/v3"
)

// LockfileVersion is the current lockfile schema version.
const LockfileVersion = 1

// LockRequirement is one (name, exact version) pair a locked package requires.
type LockRequirement struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// LockEntry is the persisted record of one materialized package.
type LockEntry struct {
	Name      string            `yaml:"name"`
	Version   string            `yaml:"version"`
	Integrity string            `yaml:"integrity"`
	Resolved  string            `yaml:"resolved"`
	Requires  []LockRequirement `yaml:"requires,omitempty"`
}

// Lockfile is the reproducibility record of a prior resolution: the ordered
// set of lock entries plus a content hash of the manifest's dependency section
// used to detect drift.
type Lockfile struct {
	Version      int         `yaml:"lockfileVersion"`
	ManifestHash string      `yaml:"manifestHash"`
	Packages     []LockEntry `yaml:"packages"`
}

// BuildLockfile rebuilds the lockfile from a resolved graph. Entries are
// deduplicated by (name, version) and sorted so that the serialized form is
// byte-identical across runs against the same registry state. Workspace
// packages are not locked: their content is whatever is on disk.
func BuildLockfile(g *Graph, manifestHash string) *Lockfile {
	seen := make(map[string]bool)
	entries := make([]LockEntry, 0, g.Len())

	for id := NodeID(0); int(id) < g.Len(); id++ {
		pkg := g.Package(id)
		if pkg.Source == SourceWorkspace {
			continue
		}
		key := pkg.Name.String() + "@" + pkg.Version.String()
		if seen[key] {
			continue
		}
		seen[key] = true

		entry := LockEntry{
			Name:      pkg.Name.String(),
			Version:   pkg.Version.String(),
			Integrity: pkg.Integrity,
			Resolved:  pkg.Tarball,
		}
		for _, child := range g.Children(id) {
			dep := g.Package(child)
			if dep.Source == SourceWorkspace {
				continue
			}
			entry.Requires = append(entry.Requires, LockRequirement{
				Name:    dep.Name.String(),
				Version: dep.Version.String(),
			})
		}
		sort.Slice(entry.Requires, func(i, j int) bool {
			if entry.Requires[i].Name != entry.Requires[j].Name {
				return entry.Requires[i].Name < entry.Requires[j].Name
			}
			return entry.Requires[i].Version < entry.Requires[j].Version
		})
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].Version < entries[j].Version
	})

	return &Lockfile{
		Version:      LockfileVersion,
		ManifestHash: manifestHash,
		Packages:     entries,
	}
}

// Entry returns the lock entry with the highest version satisfying the
// spec's range. A lockfile can hold several versions of one name (hoisted
// plus nested copies); the highest one is what a fresh resolution would have
// picked for this spec.
func (l *Lockfile) Entry(spec DependencySpec) (*LockEntry, bool) {
	name := spec.Name.String()
	var best *LockEntry
	var bestVersion *semver.Version
	for i := range l.Packages {
		if l.Packages[i].Name != name {
			continue
		}
		if !spec.Range.SatisfiesVersion(l.Packages[i].Version) {
			continue
		}
		v, err := semver.NewVersion(l.Packages[i].Version)
		if err != nil {
			continue
		}
		if best == nil || v.GreaterThan(bestVersion) {
			best = &l.Packages[i]
			bestVersion = v
		}
	}
	return best, best != nil
}

// Exact returns the lock entry pinning name to exactly version.
func (l *Lockfile) Exact(name, version string) (*LockEntry, bool) {
	for i := range l.Packages {
		if l.Packages[i].Name == name && l.Packages[i].Version == version {
			return &l.Packages[i], true
		}
	}
	return nil, false
}

// ConsistentWith reports whether the lockfile can reproduce a resolution of
// the manifest without consulting the registry: the stored manifest hash
// matches and every declared spec is satisfied by some entry. Workspace specs
// are excluded; they never hit the registry.
func (l *Lockfile) ConsistentWith(m *Manifest, manifestHash string) bool {
	if l == nil || l.ManifestHash != manifestHash {
		return false
	}
	for _, spec := range m.Dependencies {
		if spec.Range.Kind() == RangeWorkspace {
			continue
		}
		if _, ok := l.Entry(spec); !ok {
			return false
		}
	}
	return true
}
