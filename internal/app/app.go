// Package app implements the application layer: the operations the CLI
// surface drives.
package app

import (
	"context"
	"path/filepath"

	"go.trai.ch/zerr"

	"github.com/AqwozTheDeveloper/crabby/internal/adapters/manifest"
	"github.com/AqwozTheDeveloper/crabby/internal/core/domain"
	"github.com/AqwozTheDeveloper/crabby/internal/core/ports"
	"github.com/AqwozTheDeveloper/crabby/internal/engine/installer"
	"github.com/AqwozTheDeveloper/crabby/internal/engine/resolver"
)

// App coordinates resolution and installation for one project directory.
type App struct {
	store     *manifest.Store
	resolver  *resolver.Resolver
	installer *installer.Installer
	registry  ports.RegistryClient
	cache     ports.PackageCache
	runner    ports.ScriptRunner
	files     ports.Materializer
	logger    ports.Logger
	root      string
}

func New(
	store *manifest.Store,
	res *resolver.Resolver,
	ins *installer.Installer,
	registry ports.RegistryClient,
	cache ports.PackageCache,
	runner ports.ScriptRunner,
	files ports.Materializer,
	logger ports.Logger,
	root string,
) *App {
	return &App{
		store:     store,
		resolver:  res,
		installer: ins,
		registry:  registry,
		cache:     cache,
		runner:    runner,
		files:     files,
		logger:    logger,
		root:      root,
	}
}

// Install resolves the project manifest and materializes the dependency tree.
// The lockfile is rewritten only after the install fully succeeds; a fatal
// pipeline error leaves the previous lockfile untouched.
func (a *App) Install(ctx context.Context) (*domain.InstallReport, error) {
	m, err := a.store.Load(a.root)
	if err != nil {
		return nil, err
	}
	lock, err := a.store.LoadLock(a.root)
	if err != nil {
		return nil, err
	}

	graph, newLock, err := a.resolver.Resolve(ctx, m, lock)
	if err != nil {
		return nil, err
	}

	report, err := a.installer.Install(ctx, graph, a.root)
	if err != nil {
		return report, err
	}

	if err := a.store.SaveLock(a.root, newLock); err != nil {
		return report, err
	}
	return report, nil
}

// Add declares a new dependency, installs it and writes the manifest back.
// With no range given the latest published version is pinned with a caret.
func (a *App) Add(ctx context.Context, name, rangeExpr string, dev bool) (*domain.InstallReport, error) {
	m, err := a.store.Load(a.root)
	if err != nil {
		return nil, err
	}

	if rangeExpr == "" {
		versions, err := a.registry.GetVersions(ctx, name)
		if err != nil {
			return nil, err
		}
		if len(versions) == 0 {
			return nil, zerr.With(zerr.Wrap(domain.ErrPackageNotFound, "no published versions"), "package", name)
		}
		rangeExpr = "^" + versions[len(versions)-1].Version
	}

	rng, err := domain.ParseRange(rangeExpr)
	if err != nil {
		return nil, zerr.With(err, "package", name)
	}
	m.SetSpec(domain.DependencySpec{
		Name:  domain.NewInternedString(name),
		Range: rng,
		IsDev: dev,
	})

	lock, err := a.store.LoadLock(a.root)
	if err != nil {
		return nil, err
	}
	graph, newLock, err := a.resolver.Resolve(ctx, m, lock)
	if err != nil {
		return nil, err
	}

	report, err := a.installer.Install(ctx, graph, a.root)
	if err != nil {
		return report, err
	}

	if err := a.store.Save(a.root, m); err != nil {
		return report, err
	}
	if err := a.store.SaveLock(a.root, newLock); err != nil {
		return report, err
	}
	a.logger.Info("added " + name + " " + rangeExpr)
	return report, nil
}

// Remove drops a dependency from the manifest, deletes its installed tree
// and re-resolves the remaining graph so the lockfile stays in step.
func (a *App) Remove(ctx context.Context, name string) error {
	m, err := a.store.Load(a.root)
	if err != nil {
		return err
	}
	if !m.RemoveSpec(name) {
		return zerr.With(zerr.Wrap(domain.ErrDependencyNotDeclared, "nothing to remove"), "package", name)
	}

	if err := a.files.RemoveTree(filepath.Join(a.root, "node_modules", filepath.FromSlash(name))); err != nil {
		return err
	}

	graph, newLock, err := a.resolver.Resolve(ctx, m, nil)
	if err != nil {
		return err
	}
	if _, err := a.installer.Install(ctx, graph, a.root); err != nil {
		return err
	}

	if err := a.store.Save(a.root, m); err != nil {
		return err
	}
	if err := a.store.SaveLock(a.root, newLock); err != nil {
		return err
	}
	a.logger.Info("removed " + name)
	return nil
}

// RunScript executes a manifest script with the project's .bin on PATH.
func (a *App) RunScript(ctx context.Context, name string) (ports.ScriptResult, error) {
	m, err := a.store.Load(a.root)
	if err != nil {
		return ports.ScriptResult{}, err
	}
	command, ok := m.Script(name)
	if !ok {
		return ports.ScriptResult{}, zerr.With(zerr.Wrap(domain.ErrUnknownScript, "not in manifest"), "script", name)
	}

	binDir := filepath.Join(a.root, "node_modules", ".bin")
	return a.runner.Run(ctx, command, a.root, []string{binDir})
}

// CacheStats returns the shared cache's entry count and total size.
func (a *App) CacheStats() (int, int64, error) {
	return a.cache.Stats()
}

// CacheClear removes every entry from the shared cache.
func (a *App) CacheClear() error {
	return a.cache.Clear()
}
