// Package resolver turns a manifest plus an optional lockfile into a concrete
// dependency graph.
package resolver

import (
	"context"
	"errors"
	"time"

	"go.trai.ch/zerr"

	"github.com/AqwozTheDeveloper/crabby/internal/core/domain"
	"github.com/AqwozTheDeveloper/crabby/internal/core/ports"
)

// Resolver builds dependency graphs. It is safe for reuse across invocations;
// all mutable resolution state lives in a per-call context struct.
type Resolver struct {
	registry   ports.RegistryClient
	workspaces ports.WorkspaceResolver
	logger     ports.Logger
	attempts   int
}

func New(registry ports.RegistryClient, workspaces ports.WorkspaceResolver, logger ports.Logger, attempts int) *Resolver {
	if attempts < 1 {
		attempts = 1
	}
	return &Resolver{
		registry:   registry,
		workspaces: workspaces,
		logger:     logger,
		attempts:   attempts,
	}
}

// workItem is one pending dependency spec: which scope it resolves against
// and which node requested it (NoNode for root manifest specs).
type workItem struct {
	spec   domain.DependencySpec
	scope  domain.ScopeID
	parent domain.NodeID
}

// resolution is the per-invocation mutable state. Single-threaded by
// contract: hoisting decisions depend on processing order.
type resolution struct {
	r       *Resolver
	graph   *domain.Graph
	lock    *domain.Lockfile
	members map[string]ports.WorkspaceMember
	meta    map[domain.InternedString][]domain.RegistryVersion
	nested  map[domain.NodeID]domain.ScopeID
	queue   []workItem
}

// Resolve builds the graph for the manifest. When the lockfile is consistent
// with the manifest, entries are reused directly and no registry metadata is
// queried. The returned lockfile is rebuilt from the final graph either way.
func (r *Resolver) Resolve(ctx context.Context, m *domain.Manifest, lock *domain.Lockfile) (*domain.Graph, *domain.Lockfile, error) {
	hash := domain.DependencyHash(m)

	st := &resolution{
		r:       r,
		graph:   domain.NewGraph(),
		members: make(map[string]ports.WorkspaceMember),
		meta:    make(map[domain.InternedString][]domain.RegistryVersion),
		nested:  make(map[domain.NodeID]domain.ScopeID),
	}
	for _, member := range r.workspaces.Members() {
		st.members[member.Name] = member
	}

	if lock != nil {
		if lock.ConsistentWith(m, hash) {
			st.lock = lock
			r.logger.Debug("lockfile consistent, resolving without registry metadata")
		} else {
			// Inconsistency is a signal, not an error: resolve fresh.
			r.logger.Info("lockfile out of date, re-resolving")
		}
	}

	for _, spec := range m.Dependencies {
		st.queue = append(st.queue, workItem{spec: spec, scope: domain.RootScope, parent: domain.NoNode})
	}
	for len(st.queue) > 0 {
		item := st.queue[0]
		st.queue = st.queue[1:]
		if err := st.process(ctx, item); err != nil {
			return nil, nil, err
		}
	}

	return st.graph, domain.BuildLockfile(st.graph, hash), nil
}

func (st *resolution) process(ctx context.Context, item workItem) error {
	spec := item.spec
	name := spec.Name.String()

	// Workspace members take precedence over the registry, whatever the
	// requested range says.
	if member, ok := st.members[name]; ok {
		return st.bindWorkspace(item, member)
	}
	if spec.Range.Kind() == domain.RangeWorkspace {
		return zerr.With(zerr.Wrap(domain.ErrPackageNotFound, "no such workspace member"), "package", name)
	}

	// Already resolved in this scope or an ancestor. Reuse when the version
	// fits; a conflict in the local scope opens the requester's private scope.
	if id, ok := st.graph.LookupChain(item.scope, spec.Name); ok {
		pkg := st.graph.Package(id)
		if spec.Range.SatisfiesVersion(pkg.Version.String()) {
			st.edge(item.parent, id)
			return nil
		}
		if _, local := st.graph.LookupLocal(item.scope, spec.Name); !local {
			// The conflicting version is hoisted above us; shadow it here.
			return st.place(ctx, item, item.scope)
		}
		return st.nest(ctx, item)
	}

	return st.place(ctx, item, item.scope)
}

func (st *resolution) bindWorkspace(item workItem, member ports.WorkspaceMember) error {
	name := domain.NewInternedString(member.Name)
	if id, ok := st.graph.LookupLocal(domain.RootScope, name); ok {
		st.edge(item.parent, id)
		return nil
	}
	id, err := st.graph.AddPackage(domain.RootScope, domain.ResolvedPackage{
		Name:      name,
		Version:   domain.NewInternedString(member.Version),
		Source:    domain.SourceWorkspace,
		LocalPath: member.Path,
	})
	if err != nil {
		return err
	}
	st.edge(item.parent, id)
	return nil
}

// nest resolves a conflicting dependency in the requesting package's private
// scope. One scope per requester; a second conflict under the same package
// lands in the same scope.
func (st *resolution) nest(ctx context.Context, item workItem) error {
	if item.parent == domain.NoNode {
		// Root manifest names are unique after parsing; a conflict here
		// means the graph was corrupted by the caller.
		return zerr.With(zerr.Wrap(domain.ErrDuplicatePackage, "root scope conflict"), "package", item.spec.Name.String())
	}

	sid, ok := st.nested[item.parent]
	if !ok {
		var err error
		sid, err = st.graph.OpenScope(st.graph.ScopeOf(item.parent), item.parent)
		if err != nil {
			return err
		}
		st.nested[item.parent] = sid
	}

	if id, ok := st.graph.LookupLocal(sid, item.spec.Name); ok {
		// Same requester asked again (cycle through the private scope).
		st.edge(item.parent, id)
		return nil
	}
	return st.place(ctx, item, sid)
}

// place selects a concrete version for the spec and registers it in the given
// scope, queueing its own dependencies against that scope.
func (st *resolution) place(ctx context.Context, item workItem, sid domain.ScopeID) error {
	spec := item.spec

	if st.lock != nil {
		if entry, ok := st.lock.Entry(spec); ok {
			placed, err := st.placeLocked(item, sid, entry)
			if err != nil || placed {
				return err
			}
		} else {
			// The lockfile was consistent when checked, so this is a
			// corrupted requires chain. Fall through to the registry for
			// this spec only.
			st.r.logger.Warn("lockfile missing entry for " + spec.Name.String() + ", consulting registry")
		}
	}

	versions, err := st.metadata(ctx, spec.Name)
	if err != nil {
		return err
	}

	chosen, ok := st.pick(versions, item, sid)
	if !ok {
		err := zerr.With(zerr.Wrap(domain.ErrUnsatisfiableRange, "no published version fits"), "package", spec.Name.String())
		return zerr.With(err, "range", spec.Range.String())
	}

	id, err := st.graph.AddPackage(sid, domain.ResolvedPackage{
		Name:      spec.Name,
		Version:   domain.NewInternedString(chosen.Version),
		Integrity: chosen.Integrity,
		Source:    domain.SourceRegistry,
		Tarball:   chosen.Tarball,
		Deps:      chosen.Deps,
		Scripts:   chosen.Scripts,
		Bin:       chosen.Bin,
	})
	if err != nil {
		return err
	}
	st.edge(item.parent, id)

	for _, dep := range chosen.Deps {
		st.queue = append(st.queue, workItem{spec: dep, scope: sid, parent: id})
	}
	return nil
}

// placeLocked registers a lockfile-pinned package. It reports false, nil when
// the entry's requires chain is unusable; the caller resolves that spec
// against the registry instead of failing the run.
func (st *resolution) placeLocked(item workItem, sid domain.ScopeID, entry *domain.LockEntry) (bool, error) {
	deps := make([]domain.DependencySpec, 0, len(entry.Requires))
	for _, req := range entry.Requires {
		rng, err := domain.ParseRange(req.Version)
		if err != nil {
			st.r.logger.Warn("lockfile entry for " + entry.Name + " has an unusable requires version, consulting registry")
			return false, nil
		}
		deps = append(deps, domain.DependencySpec{
			Name:        domain.NewInternedString(req.Name),
			Range:       rng,
			RequestedBy: domain.NewInternedString(entry.Name),
		})
	}

	id, err := st.graph.AddPackage(sid, domain.ResolvedPackage{
		Name:      item.spec.Name,
		Version:   domain.NewInternedString(entry.Version),
		Integrity: entry.Integrity,
		Source:    domain.SourceLockfile,
		Tarball:   entry.Resolved,
		Deps:      deps,
	})
	if err != nil {
		return false, err
	}
	st.edge(item.parent, id)

	for _, dep := range deps {
		st.queue = append(st.queue, workItem{spec: dep, scope: sid, parent: id})
	}
	return true, nil
}

// pick chooses the highest version satisfying the spec's range together with
// every still-pending sibling range for the same name and scope. When no
// version satisfies the union, the earliest declaration wins with its own
// range alone and the later requesters nest.
func (st *resolution) pick(versions []domain.RegistryVersion, item workItem, sid domain.ScopeID) (domain.RegistryVersion, bool) {
	ranges := []domain.Range{item.spec.Range}
	for _, pending := range st.queue {
		if pending.spec.Name == item.spec.Name && pending.scope == sid {
			ranges = append(ranges, pending.spec.Range)
		}
	}

	if chosen, ok := highestSatisfying(versions, ranges); ok {
		return chosen, true
	}
	return highestSatisfying(versions, ranges[:1])
}

// highestSatisfying scans the ascending version list from the top for the
// first version satisfying every range.
func highestSatisfying(versions []domain.RegistryVersion, ranges []domain.Range) (domain.RegistryVersion, bool) {
	for i := len(versions) - 1; i >= 0; i-- {
		ok := true
		for _, rng := range ranges {
			if !rng.SatisfiesVersion(versions[i].Version) {
				ok = false
				break
			}
		}
		if ok {
			return versions[i], true
		}
	}
	return domain.RegistryVersion{}, false
}

// metadata fetches the version list for a package, memoized per invocation,
// retrying transient failures with capped exponential backoff.
func (st *resolution) metadata(ctx context.Context, name domain.InternedString) ([]domain.RegistryVersion, error) {
	if versions, ok := st.meta[name]; ok {
		return versions, nil
	}

	var lastErr error
	for attempt := 0; attempt < st.r.attempts; attempt++ {
		if attempt > 0 {
			st.r.logger.Debug("retrying metadata for " + name.String())
			if err := backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}
		versions, err := st.r.registry.GetVersions(ctx, name.String())
		if err == nil {
			st.meta[name] = versions
			return versions, nil
		}
		if errors.Is(err, domain.ErrPackageNotFound) {
			return nil, err
		}
		lastErr = err
	}
	wrapped := zerr.With(zerr.Wrap(domain.ErrRegistryUnavailable, lastErr.Error()), "package", name.String())
	return nil, zerr.With(wrapped, "attempts", st.r.attempts)
}

func (st *resolution) edge(parent, child domain.NodeID) {
	if parent != domain.NoNode {
		st.graph.AddEdge(parent, child)
	}
}

// backoff sleeps 100ms doubled per attempt, capped at 2s, or returns early on
// cancellation.
func backoff(ctx context.Context, attempt int) error {
	delay := 100 * time.Millisecond << uint(attempt-1)
	if delay > 2*time.Second {
		delay = 2 * time.Second
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
