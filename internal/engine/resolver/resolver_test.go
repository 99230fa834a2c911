package resolver_test

import (
	"context"
	"os"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"gopkg.in/yaml.v3"

	"github.com/AqwozTheDeveloper/crabby/internal/adapters/logger"
	"github.com/AqwozTheDeveloper/crabby/internal/core/domain"
	"github.com/AqwozTheDeveloper/crabby/internal/core/ports"
	"github.com/AqwozTheDeveloper/crabby/internal/core/ports/mocks"
	"github.com/AqwozTheDeveloper/crabby/internal/engine/resolver"
)

func spec(name, rng string) domain.DependencySpec {
	return domain.DependencySpec{
		Name:  domain.NewInternedString(name),
		Range: domain.MustParseRange(rng),
	}
}

func rv(version string, deps ...domain.DependencySpec) domain.RegistryVersion {
	return domain.RegistryVersion{
		Version:   version,
		Integrity: "sha1:" + version + "00000000000000000000000000000000",
		Tarball:   "https://registry.test/tarballs/" + version + ".tgz",
		Deps:      deps,
	}
}

func manifest(specs ...domain.DependencySpec) *domain.Manifest {
	return &domain.Manifest{
		Name:         domain.NewInternedString("test-project"),
		Version:      domain.NewInternedString("1.0.0"),
		Dependencies: specs,
	}
}

func testLogger() ports.Logger {
	return logger.NewWithOptions(os.Stderr, log.ErrorLevel)
}

func noWorkspaces(ctrl *gomock.Controller) *mocks.MockWorkspaceResolver {
	ws := mocks.NewMockWorkspaceResolver(ctrl)
	ws.EXPECT().Members().Return(nil).AnyTimes()
	return ws
}

func mustFind(t *testing.T, g *domain.Graph, sid domain.ScopeID, name string) *domain.ResolvedPackage {
	t.Helper()
	id, ok := g.LookupLocal(sid, domain.NewInternedString(name))
	require.True(t, ok, "package %s not in scope %d", name, sid)
	return g.Package(id)
}

func TestResolveHighestSatisfying(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := mocks.NewMockRegistryClient(ctrl)
	reg.EXPECT().GetVersions(gomock.Any(), "left-pad").Return([]domain.RegistryVersion{
		rv("1.1.0"), rv("1.2.0"), rv("1.3.0"), rv("1.3.1"), rv("2.0.0"),
	}, nil)

	r := resolver.New(reg, noWorkspaces(ctrl), testLogger(), 3)
	graph, lock, err := r.Resolve(context.Background(), manifest(spec("left-pad", "^1.3.0")), nil)
	require.NoError(t, err)

	pkg := mustFind(t, graph, domain.RootScope, "left-pad")
	require.Equal(t, "1.3.1", pkg.Version.String())

	require.Len(t, lock.Packages, 1)
	require.Equal(t, "left-pad", lock.Packages[0].Name)
	require.Equal(t, "1.3.1", lock.Packages[0].Version)
}

func TestResolveHoistAndNestOnConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := mocks.NewMockRegistryClient(ctrl)
	reg.EXPECT().GetVersions(gomock.Any(), "a").Return([]domain.RegistryVersion{
		rv("1.0.0", spec("c", "^1.0.0")),
	}, nil)
	reg.EXPECT().GetVersions(gomock.Any(), "b").Return([]domain.RegistryVersion{
		rv("1.0.0", spec("c", "^2.0.0")),
	}, nil)
	reg.EXPECT().GetVersions(gomock.Any(), "c").Return([]domain.RegistryVersion{
		rv("1.4.0"), rv("2.1.0"),
	}, nil)

	r := resolver.New(reg, noWorkspaces(ctrl), testLogger(), 3)
	graph, lock, err := r.Resolve(context.Background(),
		manifest(spec("a", "^1.0.0"), spec("b", "^1.0.0")), nil)
	require.NoError(t, err)

	// Declaration order: a wins the hoist for c at 1.x; b gets a private 2.x.
	hoisted := mustFind(t, graph, domain.RootScope, "c")
	require.Equal(t, "1.4.0", hoisted.Version.String())
	require.Equal(t, 0, hoisted.Depth)

	bID, ok := graph.LookupLocal(domain.RootScope, domain.NewInternedString("b"))
	require.True(t, ok)
	children := graph.Children(bID)
	require.Len(t, children, 1)
	nested := graph.Package(children[0])
	require.Equal(t, "c", nested.Name.String())
	require.Equal(t, "2.1.0", nested.Version.String())
	require.Equal(t, 1, nested.Depth)
	require.Equal(t, []string{"b"}, graph.OwnerPath(children[0]))

	// Both copies of c are locked.
	versions := map[string]bool{}
	for _, entry := range lock.Packages {
		if entry.Name == "c" {
			versions[entry.Version] = true
		}
	}
	require.Equal(t, map[string]bool{"1.4.0": true, "2.1.0": true}, versions)
}

func TestResolveSiblingRangeUnion(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := mocks.NewMockRegistryClient(ctrl)
	reg.EXPECT().GetVersions(gomock.Any(), "a").Return([]domain.RegistryVersion{
		rv("1.0.0", spec("x", "^1.0.0")),
	}, nil)
	reg.EXPECT().GetVersions(gomock.Any(), "b").Return([]domain.RegistryVersion{
		rv("1.0.0", spec("x", "~1.2.0")),
	}, nil)
	reg.EXPECT().GetVersions(gomock.Any(), "x").Return([]domain.RegistryVersion{
		rv("1.1.0"), rv("1.2.0"), rv("1.5.0"),
	}, nil)

	r := resolver.New(reg, noWorkspaces(ctrl), testLogger(), 3)
	graph, _, err := r.Resolve(context.Background(),
		manifest(spec("a", "^1.0.0"), spec("b", "^1.0.0")), nil)
	require.NoError(t, err)

	// Both pending sibling ranges for x are visible when the first one
	// resolves, so the hoisted version satisfies the union and no nested
	// copy is needed.
	pkg := mustFind(t, graph, domain.RootScope, "x")
	require.Equal(t, "1.2.0", pkg.Version.String())
	require.Equal(t, 3, graph.Len())
}

func TestResolveCycleTerminates(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := mocks.NewMockRegistryClient(ctrl)
	reg.EXPECT().GetVersions(gomock.Any(), "a").Return([]domain.RegistryVersion{
		rv("1.0.0", spec("b", "^1.0.0")),
	}, nil)
	reg.EXPECT().GetVersions(gomock.Any(), "b").Return([]domain.RegistryVersion{
		rv("1.0.0", spec("a", "^1.0.0")),
	}, nil)

	r := resolver.New(reg, noWorkspaces(ctrl), testLogger(), 3)
	graph, _, err := r.Resolve(context.Background(), manifest(spec("a", "^1.0.0")), nil)
	require.NoError(t, err)

	// Exactly one node per name; the back edge reuses the existing node.
	require.Equal(t, 2, graph.Len())
	aID, _ := graph.LookupLocal(domain.RootScope, domain.NewInternedString("a"))
	bID, _ := graph.LookupLocal(domain.RootScope, domain.NewInternedString("b"))
	require.Equal(t, []domain.NodeID{bID}, graph.Children(aID))
	require.Equal(t, []domain.NodeID{aID}, graph.Children(bID))
}

func TestResolveLockfileFirstSkipsRegistry(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := mocks.NewMockRegistryClient(ctrl)
	// No GetVersions expectation: any metadata query fails the test.

	m := manifest(spec("left-pad", "^1.3.0"))
	lock := &domain.Lockfile{
		Version:      domain.LockfileVersion,
		ManifestHash: domain.DependencyHash(m),
		Packages: []domain.LockEntry{
			{Name: "left-pad", Version: "1.3.1", Integrity: "sha1:abc", Resolved: "https://registry.test/left-pad.tgz"},
		},
	}

	r := resolver.New(reg, noWorkspaces(ctrl), testLogger(), 3)
	graph, rebuilt, err := r.Resolve(context.Background(), m, lock)
	require.NoError(t, err)

	pkg := mustFind(t, graph, domain.RootScope, "left-pad")
	require.Equal(t, "1.3.1", pkg.Version.String())
	require.Equal(t, domain.SourceLockfile, pkg.Source)
	require.Equal(t, lock.Packages, rebuilt.Packages)
}

func TestResolveLockfileTransitivePins(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := mocks.NewMockRegistryClient(ctrl)

	m := manifest(spec("a", "^1.0.0"))
	lock := &domain.Lockfile{
		Version:      domain.LockfileVersion,
		ManifestHash: domain.DependencyHash(m),
		Packages: []domain.LockEntry{
			{Name: "a", Version: "1.2.0", Integrity: "sha1:a", Resolved: "https://r/a.tgz",
				Requires: []domain.LockRequirement{{Name: "b", Version: "3.0.0"}}},
			{Name: "b", Version: "3.0.0", Integrity: "sha1:b", Resolved: "https://r/b.tgz"},
		},
	}

	r := resolver.New(reg, noWorkspaces(ctrl), testLogger(), 3)
	graph, _, err := r.Resolve(context.Background(), m, lock)
	require.NoError(t, err)

	require.Equal(t, 2, graph.Len())
	b := mustFind(t, graph, domain.RootScope, "b")
	require.Equal(t, "3.0.0", b.Version.String())
}

func TestResolveInconsistentLockfileReResolves(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := mocks.NewMockRegistryClient(ctrl)
	reg.EXPECT().GetVersions(gomock.Any(), "left-pad").Return([]domain.RegistryVersion{
		rv("1.3.1"),
	}, nil)

	m := manifest(spec("left-pad", "^1.3.0"))
	stale := &domain.Lockfile{
		Version:      domain.LockfileVersion,
		ManifestHash: "0000000000000000",
		Packages:     []domain.LockEntry{{Name: "left-pad", Version: "1.3.1"}},
	}

	r := resolver.New(reg, noWorkspaces(ctrl), testLogger(), 3)
	graph, _, err := r.Resolve(context.Background(), m, stale)
	require.NoError(t, err)

	pkg := mustFind(t, graph, domain.RootScope, "left-pad")
	require.Equal(t, domain.SourceRegistry, pkg.Source)
}

func TestResolveDeterministicLockfile(t *testing.T) {
	versionsFor := map[string][]domain.RegistryVersion{
		"a": {rv("1.0.0", spec("c", "^1.0.0"))},
		"b": {rv("1.0.0", spec("c", "^2.0.0"))},
		"c": {rv("1.4.0"), rv("2.1.0")},
	}

	resolveOnce := func() []byte {
		ctrl := gomock.NewController(t)
		reg := mocks.NewMockRegistryClient(ctrl)
		reg.EXPECT().GetVersions(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, name string) ([]domain.RegistryVersion, error) {
				return versionsFor[name], nil
			}).AnyTimes()

		r := resolver.New(reg, noWorkspaces(ctrl), testLogger(), 3)
		_, lock, err := r.Resolve(context.Background(),
			manifest(spec("a", "^1.0.0"), spec("b", "^1.0.0")), nil)
		require.NoError(t, err)

		data, err := yaml.Marshal(lock)
		require.NoError(t, err)
		return data
	}

	require.Equal(t, resolveOnce(), resolveOnce())
}

func TestResolveWorkspacePrecedence(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := mocks.NewMockRegistryClient(ctrl)
	// The registry is never consulted for a workspace member name.

	ws := mocks.NewMockWorkspaceResolver(ctrl)
	ws.EXPECT().Members().Return([]ports.WorkspaceMember{
		{Name: "ui", Version: "0.1.0", Path: "/repo/packages/ui"},
	}).AnyTimes()

	r := resolver.New(reg, ws, testLogger(), 3)
	graph, lock, err := r.Resolve(context.Background(), manifest(spec("ui", "^1.0.0")), nil)
	require.NoError(t, err)

	pkg := mustFind(t, graph, domain.RootScope, "ui")
	require.Equal(t, domain.SourceWorkspace, pkg.Source)
	require.Equal(t, "/repo/packages/ui", pkg.LocalPath)

	// Workspace members are never locked.
	require.Empty(t, lock.Packages)
}

func TestResolveUnsatisfiableRange(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := mocks.NewMockRegistryClient(ctrl)
	reg.EXPECT().GetVersions(gomock.Any(), "left-pad").Return([]domain.RegistryVersion{
		rv("1.0.0"),
	}, nil)

	r := resolver.New(reg, noWorkspaces(ctrl), testLogger(), 3)
	_, _, err := r.Resolve(context.Background(), manifest(spec("left-pad", "^9.0.0")), nil)
	require.ErrorIs(t, err, domain.ErrUnsatisfiableRange)
}

func TestResolveMetadataRetries(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := mocks.NewMockRegistryClient(ctrl)
	gomock.InOrder(
		reg.EXPECT().GetVersions(gomock.Any(), "a").Return(nil, domain.ErrNetwork),
		reg.EXPECT().GetVersions(gomock.Any(), "a").Return(nil, domain.ErrNetwork),
		reg.EXPECT().GetVersions(gomock.Any(), "a").Return([]domain.RegistryVersion{rv("1.0.0")}, nil),
	)

	r := resolver.New(reg, noWorkspaces(ctrl), testLogger(), 3)
	graph, _, err := r.Resolve(context.Background(), manifest(spec("a", "^1.0.0")), nil)
	require.NoError(t, err)
	require.Equal(t, 1, graph.Len())
}

func TestResolveRegistryUnavailableAfterBudget(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := mocks.NewMockRegistryClient(ctrl)
	reg.EXPECT().GetVersions(gomock.Any(), "a").Return(nil, domain.ErrNetwork).Times(3)

	r := resolver.New(reg, noWorkspaces(ctrl), testLogger(), 3)
	_, _, err := r.Resolve(context.Background(), manifest(spec("a", "^1.0.0")), nil)
	require.ErrorIs(t, err, domain.ErrRegistryUnavailable)
}

func TestResolvePackageNotFoundNoRetry(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := mocks.NewMockRegistryClient(ctrl)
	reg.EXPECT().GetVersions(gomock.Any(), "no-such-pkg").Return(nil, domain.ErrPackageNotFound).Times(1)

	r := resolver.New(reg, noWorkspaces(ctrl), testLogger(), 3)
	_, _, err := r.Resolve(context.Background(), manifest(spec("no-such-pkg", "^1.0.0")), nil)
	require.ErrorIs(t, err, domain.ErrPackageNotFound)
}

func TestResolveMetadataMemoized(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := mocks.NewMockRegistryClient(ctrl)
	reg.EXPECT().GetVersions(gomock.Any(), "a").Return([]domain.RegistryVersion{
		rv("1.0.0", spec("shared", "^1.0.0")),
	}, nil)
	reg.EXPECT().GetVersions(gomock.Any(), "b").Return([]domain.RegistryVersion{
		rv("1.0.0", spec("shared", "^1.0.0")),
	}, nil)
	// One metadata query for shared even though two packages require it.
	reg.EXPECT().GetVersions(gomock.Any(), "shared").Return([]domain.RegistryVersion{
		rv("1.9.0"),
	}, nil).Times(1)

	r := resolver.New(reg, noWorkspaces(ctrl), testLogger(), 3)
	graph, _, err := r.Resolve(context.Background(),
		manifest(spec("a", "^1.0.0"), spec("b", "^1.0.0")), nil)
	require.NoError(t, err)
	require.Equal(t, 3, graph.Len())
}

func TestResolveMangledLockfileRequiresFallsBackToRegistry(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := mocks.NewMockRegistryClient(ctrl)

	m := manifest(spec("a", "^1.0.0"))
	lock := &domain.Lockfile{
		Version:      domain.LockfileVersion,
		ManifestHash: domain.DependencyHash(m),
		Packages: []domain.LockEntry{
			{Name: "a", Version: "1.2.0", Integrity: "sha1:a", Resolved: "https://r/a.tgz",
				Requires: []domain.LockRequirement{{Name: "b", Version: ">= not-a-version <"}}},
			{Name: "b", Version: "3.0.0", Integrity: "sha1:b", Resolved: "https://r/b.tgz"},
		},
	}

	// Only the entry with the unusable requires chain goes back to the
	// registry; b stays pinned by its own lock entry.
	reg.EXPECT().GetVersions(gomock.Any(), "a").
		Return([]domain.RegistryVersion{rv("1.2.0", spec("b", "^3.0.0"))}, nil)

	r := resolver.New(reg, noWorkspaces(ctrl), testLogger(), 3)
	graph, _, err := r.Resolve(context.Background(), m, lock)
	require.NoError(t, err)

	require.Equal(t, 2, graph.Len())
	a := mustFind(t, graph, domain.RootScope, "a")
	require.Equal(t, domain.SourceRegistry, a.Source)
	b := mustFind(t, graph, domain.RootScope, "b")
	require.Equal(t, domain.SourceLockfile, b.Source)
	require.Equal(t, "3.0.0", b.Version.String())
}
