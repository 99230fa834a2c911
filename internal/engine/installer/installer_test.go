package installer_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/AqwozTheDeveloper/crabby/internal/adapters/logger"
	"github.com/AqwozTheDeveloper/crabby/internal/adapters/telemetry"
	"github.com/AqwozTheDeveloper/crabby/internal/core/domain"
	"github.com/AqwozTheDeveloper/crabby/internal/core/ports"
	"github.com/AqwozTheDeveloper/crabby/internal/core/ports/mocks"
	"github.com/AqwozTheDeveloper/crabby/internal/engine/installer"
)

type fixture struct {
	registry  *mocks.MockRegistryClient
	cache     *mocks.MockPackageCache
	files     *mocks.MockMaterializer
	runner    *mocks.MockScriptRunner
	manifests *mocks.MockManifestLoader
}

func newFixture(ctrl *gomock.Controller) *fixture {
	return &fixture{
		registry:  mocks.NewMockRegistryClient(ctrl),
		cache:     mocks.NewMockPackageCache(ctrl),
		files:     mocks.NewMockMaterializer(ctrl),
		runner:    mocks.NewMockScriptRunner(ctrl),
		manifests: mocks.NewMockManifestLoader(ctrl),
	}
}

func (f *fixture) installer(parallelism, attempts int) *installer.Installer {
	return installer.New(
		f.registry, f.cache, f.files, f.runner, f.manifests,
		telemetry.NewNoOpTracer(),
		logger.NewWithOptions(os.Stderr, log.ErrorLevel),
		parallelism, attempts,
	)
}

func registryPkg(name, version string, extra ...func(*domain.ResolvedPackage)) domain.ResolvedPackage {
	pkg := domain.ResolvedPackage{
		Name:      domain.NewInternedString(name),
		Version:   domain.NewInternedString(version),
		Integrity: "sha1:" + name,
		Source:    domain.SourceRegistry,
		Tarball:   "https://registry.test/" + name + "-" + version + ".tgz",
	}
	for _, fn := range extra {
		fn(&pkg)
	}
	return pkg
}

func withScript(name, command string) func(*domain.ResolvedPackage) {
	return func(pkg *domain.ResolvedPackage) {
		if pkg.Scripts == nil {
			pkg.Scripts = make(map[string]string)
		}
		pkg.Scripts[name] = command
	}
}

func withBin(name, entry string) func(*domain.ResolvedPackage) {
	return func(pkg *domain.ResolvedPackage) {
		if pkg.Bin == nil {
			pkg.Bin = make(map[string]string)
		}
		pkg.Bin[name] = entry
	}
}

func key(pkg domain.ResolvedPackage) domain.CacheKey {
	return domain.CacheKey{
		Name:      pkg.Name.String(),
		Version:   pkg.Version.String(),
		Integrity: pkg.Integrity,
	}
}

func TestInstallFetchPlaceLinkScript(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(ctrl)
	root := "/project"

	pkg := registryPkg("typescript", "5.0.0",
		withScript("postinstall", "node scripts/setup.js"),
		withBin("tsc", "bin/tsc"),
	)
	g := domain.NewGraph()
	_, err := g.AddPackage(domain.RootScope, pkg)
	require.NoError(t, err)

	target := filepath.Join(root, "node_modules", "typescript")
	binDir := filepath.Join(root, "node_modules", ".bin")
	tarball := []byte("tarball-bytes")

	f.cache.EXPECT().Lookup(key(pkg)).Return("", false)
	f.registry.EXPECT().FetchTarball(gomock.Any(), pkg.Tarball).Return(tarball, nil)
	f.cache.EXPECT().Store(key(pkg), tarball).Return("/cache/typescript/5.0.0-aa", nil)
	f.files.EXPECT().PlaceTree("/cache/typescript/5.0.0-aa", target).Return(nil)
	f.files.EXPECT().LinkBin("tsc", filepath.Join(target, "bin", "tsc"), binDir).Return(nil)
	f.runner.EXPECT().
		Run(gomock.Any(), "node scripts/setup.js", target, []string{binDir}).
		Return(ports.ScriptResult{}, nil)

	report, err := f.installer(4, 3).Install(context.Background(), g, root)
	require.NoError(t, err)
	require.True(t, report.OK())
	require.Equal(t, 1, report.Installed)
	require.Zero(t, report.CacheHits)
	require.Empty(t, report.FailedScripts)
}

func TestInstallCacheHitSkipsNetwork(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(ctrl)

	pkg := registryPkg("left-pad", "1.3.1")
	g := domain.NewGraph()
	_, err := g.AddPackage(domain.RootScope, pkg)
	require.NoError(t, err)

	f.cache.EXPECT().Lookup(key(pkg)).Return("/cache/left-pad/1.3.1-aa", true)
	f.files.EXPECT().PlaceTree("/cache/left-pad/1.3.1-aa", gomock.Any()).Return(nil)

	report, err := f.installer(4, 3).Install(context.Background(), g, "/project")
	require.NoError(t, err)
	require.Equal(t, 1, report.Installed)
	require.Equal(t, 1, report.CacheHits)
}

func TestInstallRetriesTransientNetworkFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(ctrl)

	pkg := registryPkg("left-pad", "1.3.1")
	g := domain.NewGraph()
	_, err := g.AddPackage(domain.RootScope, pkg)
	require.NoError(t, err)

	f.cache.EXPECT().Lookup(key(pkg)).Return("", false)
	gomock.InOrder(
		f.registry.EXPECT().FetchTarball(gomock.Any(), pkg.Tarball).Return(nil, domain.ErrNetwork),
		f.registry.EXPECT().FetchTarball(gomock.Any(), pkg.Tarball).Return([]byte("ok"), nil),
	)
	f.cache.EXPECT().Store(key(pkg), []byte("ok")).Return("/cache/tree", nil)
	f.files.EXPECT().PlaceTree("/cache/tree", gomock.Any()).Return(nil)

	report, err := f.installer(4, 3).Install(context.Background(), g, "/project")
	require.NoError(t, err)
	require.Equal(t, 1, report.Installed)
}

func TestInstallNetworkFailureAfterBudget(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(ctrl)

	pkg := registryPkg("left-pad", "1.3.1")
	g := domain.NewGraph()
	_, err := g.AddPackage(domain.RootScope, pkg)
	require.NoError(t, err)

	f.cache.EXPECT().Lookup(key(pkg)).Return("", false)
	f.registry.EXPECT().FetchTarball(gomock.Any(), pkg.Tarball).Return(nil, domain.ErrNetwork).Times(3)

	report, err := f.installer(4, 3).Install(context.Background(), g, "/project")
	require.ErrorIs(t, err, domain.ErrNetwork)
	require.False(t, report.OK())
}

func TestInstallIntegrityMismatchIsFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(ctrl)

	pkg := registryPkg("left-pad", "1.3.1")
	g := domain.NewGraph()
	_, err := g.AddPackage(domain.RootScope, pkg)
	require.NoError(t, err)

	// Every download "succeeds" but fails verification; the budget is spent
	// on re-downloads and no cache entry is ever committed.
	f.cache.EXPECT().Lookup(key(pkg)).Return("", false)
	f.registry.EXPECT().FetchTarball(gomock.Any(), pkg.Tarball).Return([]byte("tampered"), nil).Times(3)
	f.cache.EXPECT().Store(key(pkg), []byte("tampered")).Return("", domain.ErrIntegrityMismatch).Times(3)

	report, err := f.installer(4, 3).Install(context.Background(), g, "/project")
	require.ErrorIs(t, err, domain.ErrIntegrityMismatch)
	require.False(t, report.OK())
	require.Zero(t, report.Installed)
}

func TestInstallScriptFailureIsNonFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(ctrl)

	pkg := registryPkg("broken", "1.0.0", withScript("postinstall", "exit 1"))
	g := domain.NewGraph()
	_, err := g.AddPackage(domain.RootScope, pkg)
	require.NoError(t, err)

	f.cache.EXPECT().Lookup(key(pkg)).Return("/cache/tree", true)
	f.files.EXPECT().PlaceTree("/cache/tree", gomock.Any()).Return(nil)
	f.runner.EXPECT().
		Run(gomock.Any(), "exit 1", gomock.Any(), gomock.Any()).
		Return(ports.ScriptResult{Output: []byte("boom"), ExitCode: 1}, domain.ErrScriptFailed)

	report, err := f.installer(4, 3).Install(context.Background(), g, "/project")
	require.NoError(t, err)
	require.True(t, report.OK())
	require.Equal(t, 1, report.Installed)
	require.Len(t, report.FailedScripts, 1)
	require.Equal(t, "broken", report.FailedScripts[0].Package)
	require.Equal(t, "boom", report.FailedScripts[0].Output)
}

func TestInstallScriptsRunDependenciesFirst(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(ctrl)

	dep := registryPkg("dep", "1.0.0", withScript("postinstall", "dep-setup"))
	app := registryPkg("app", "1.0.0", withScript("postinstall", "app-setup"))
	g := domain.NewGraph()
	appID, err := g.AddPackage(domain.RootScope, app)
	require.NoError(t, err)
	depID, err := g.AddPackage(domain.RootScope, dep)
	require.NoError(t, err)
	g.AddEdge(appID, depID)

	f.cache.EXPECT().Lookup(gomock.Any()).Return("/cache/tree", true).Times(2)
	f.files.EXPECT().PlaceTree(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	var mu sync.Mutex
	var order []string
	f.runner.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, command, _ string, _ []string) (ports.ScriptResult, error) {
			mu.Lock()
			order = append(order, command)
			mu.Unlock()
			return ports.ScriptResult{}, nil
		}).Times(2)

	_, err = f.installer(4, 3).Install(context.Background(), g, "/project")
	require.NoError(t, err)
	require.Equal(t, []string{"dep-setup", "app-setup"}, order)
}

func TestInstallWorkspaceSymlinkedNotFetched(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(ctrl)
	root := "/project"

	g := domain.NewGraph()
	_, err := g.AddPackage(domain.RootScope, domain.ResolvedPackage{
		Name:      domain.NewInternedString("@acme/ui"),
		Version:   domain.NewInternedString("0.1.0"),
		Source:    domain.SourceWorkspace,
		LocalPath: "/project/packages/ui",
	})
	require.NoError(t, err)

	f.files.EXPECT().
		Symlink("/project/packages/ui", filepath.Join(root, "node_modules", "@acme", "ui")).
		Return(nil)

	report, err := f.installer(4, 3).Install(context.Background(), g, root)
	require.NoError(t, err)
	require.Equal(t, 1, report.Installed)
}

func TestInstallNestedScopeLayout(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(ctrl)
	root := "/project"

	b := registryPkg("b", "1.0.0")
	nested := registryPkg("c", "2.1.0")
	g := domain.NewGraph()
	bID, err := g.AddPackage(domain.RootScope, b)
	require.NoError(t, err)
	sid, err := g.OpenScope(domain.RootScope, bID)
	require.NoError(t, err)
	cID, err := g.AddPackage(sid, nested)
	require.NoError(t, err)
	g.AddEdge(bID, cID)

	nestedTarget := filepath.Join(root, "node_modules", "b", "node_modules", "c")

	f.cache.EXPECT().Lookup(gomock.Any()).Return("/cache/tree", true).Times(2)
	f.files.EXPECT().PlaceTree("/cache/tree", filepath.Join(root, "node_modules", "b")).Return(nil)
	f.files.EXPECT().PlaceTree("/cache/tree", nestedTarget).Return(nil)

	report, err := f.installer(4, 3).Install(context.Background(), g, root)
	require.NoError(t, err)
	require.Equal(t, 2, report.Installed)
}

func TestInstallLockfilePinnedScriptsFromPlacedTree(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(ctrl)

	pkg := domain.ResolvedPackage{
		Name:      domain.NewInternedString("esbuild"),
		Version:   domain.NewInternedString("0.19.0"),
		Integrity: "sha1:es",
		Source:    domain.SourceLockfile,
		Tarball:   "https://registry.test/esbuild.tgz",
	}
	g := domain.NewGraph()
	_, err := g.AddPackage(domain.RootScope, pkg)
	require.NoError(t, err)

	target := filepath.Join("/project", "node_modules", "esbuild")

	f.cache.EXPECT().Lookup(gomock.Any()).Return("/cache/tree", true)
	f.files.EXPECT().PlaceTree("/cache/tree", target).Return(nil)
	f.manifests.EXPECT().Load(target).Return(&domain.Manifest{
		Name:    domain.NewInternedString("esbuild"),
		Scripts: map[string]string{"postinstall": "node install.js"},
		Bin:     map[string]string{"esbuild": "bin/esbuild"},
	}, nil)
	f.files.EXPECT().LinkBin("esbuild", filepath.Join(target, "bin", "esbuild"), gomock.Any()).Return(nil)
	f.runner.EXPECT().
		Run(gomock.Any(), "node install.js", target, gomock.Any()).
		Return(ports.ScriptResult{}, nil)

	report, err := f.installer(4, 3).Install(context.Background(), g, "/project")
	require.NoError(t, err)
	require.Equal(t, 1, report.Installed)
}

func TestInstallPlacementFailureCleansPartialArtifacts(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(ctrl)

	pkg := registryPkg("left-pad", "1.3.1")
	g := domain.NewGraph()
	_, err := g.AddPackage(domain.RootScope, pkg)
	require.NoError(t, err)

	target := filepath.Join("/project", "node_modules", "left-pad")

	f.cache.EXPECT().Lookup(key(pkg)).Return("/cache/tree", true)
	f.files.EXPECT().PlaceTree("/cache/tree", target).Return(domain.ErrFileSystem)
	f.files.EXPECT().RemoveTree(target).Return(nil)

	report, err := f.installer(4, 3).Install(context.Background(), g, "/project")
	require.ErrorIs(t, err, domain.ErrFileSystem)
	require.False(t, report.OK())
}

func TestInstallScriptsRunAfterFetchStageDrains(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(ctrl)
	root := "/project"

	a := registryPkg("a", "1.0.0", withScript("postinstall", "node a.js"))
	b := registryPkg("b", "1.0.0", withScript("postinstall", "node b.js"))
	g := domain.NewGraph()
	_, err := g.AddPackage(domain.RootScope, a)
	require.NoError(t, err)
	_, err = g.AddPackage(domain.RootScope, b)
	require.NoError(t, err)

	f.cache.EXPECT().Lookup(key(a)).Return("/cache/a", true)
	f.cache.EXPECT().Lookup(key(b)).Return("/cache/b", true)
	f.files.EXPECT().PlaceTree("/cache/a", filepath.Join(root, "node_modules", "a")).Return(nil)
	f.files.EXPECT().PlaceTree("/cache/b", filepath.Join(root, "node_modules", "b")).Return(nil)

	// Cache hits place instantly, so the fetch workers are all gone by the
	// time the scripts start. A runner that honors its context must still
	// see a live one for every script.
	run := func(ctx context.Context, _, _ string, _ []string) (ports.ScriptResult, error) {
		if err := ctx.Err(); err != nil {
			return ports.ScriptResult{ExitCode: -1}, err
		}
		return ports.ScriptResult{}, nil
	}
	f.runner.EXPECT().Run(gomock.Any(), "node a.js", gomock.Any(), gomock.Any()).DoAndReturn(run)
	f.runner.EXPECT().Run(gomock.Any(), "node b.js", gomock.Any(), gomock.Any()).DoAndReturn(run)

	report, err := f.installer(4, 3).Install(context.Background(), g, root)
	require.NoError(t, err)
	require.Empty(t, report.FailedScripts)
	require.Equal(t, 2, report.Installed)
}
