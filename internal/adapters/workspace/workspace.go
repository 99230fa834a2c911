// Package workspace discovers locally developed packages from the root
// manifest's workspace globs.
package workspace

import (
	"path/filepath"
	"sort"

	"go.trai.ch/zerr"

	"github.com/AqwozTheDeveloper/crabby/internal/adapters/manifest"
	"github.com/AqwozTheDeveloper/crabby/internal/core/domain"
	"github.com/AqwozTheDeveloper/crabby/internal/core/ports"
)

// Resolver maps workspace member names to their local directories. Discovery
// happens once, at construction; a member added on disk afterwards is not
// seen until the next run.
type Resolver struct {
	members map[string]ports.WorkspaceMember
	order   []string
}

var _ ports.WorkspaceResolver = (*Resolver)(nil)

// Discover expands the root manifest's workspace globs relative to root and
// loads each matching directory's manifest to learn the member's name. A glob
// match without a readable manifest is skipped with a warning; two members
// claiming the same name is an error.
func Discover(root string, patterns []string, store *manifest.Store, logger ports.Logger) (*Resolver, error) {
	r := &Resolver{members: make(map[string]ports.WorkspaceMember)}

	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(root, pattern))
		if err != nil {
			return nil, zerr.With(zerr.Wrap(domain.ErrMalformedManifest, "bad workspace glob"), "pattern", pattern)
		}
		for _, dir := range matches {
			m, err := store.Load(dir)
			if err != nil {
				logger.Warn("skipping workspace candidate " + dir + ": " + err.Error())
				continue
			}
			name := m.Name.String()
			if existing, ok := r.members[name]; ok {
				err := zerr.With(zerr.Wrap(domain.ErrDuplicatePackage, "two workspace members share a name"), "name", name)
				err = zerr.With(err, "first", existing.Path)
				return nil, zerr.With(err, "second", dir)
			}
			r.members[name] = ports.WorkspaceMember{Name: name, Version: m.Version.String(), Path: dir}
			r.order = append(r.order, name)
		}
	}
	sort.Strings(r.order)
	return r, nil
}

func (r *Resolver) Resolve(name string) (string, bool) {
	member, ok := r.members[name]
	if !ok {
		return "", false
	}
	return member.Path, true
}

func (r *Resolver) Members() []ports.WorkspaceMember {
	out := make([]ports.WorkspaceMember, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.members[name])
	}
	return out
}
