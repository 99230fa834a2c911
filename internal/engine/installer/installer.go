// Package installer drives the fetch, extract, link and lifecycle-script
// pipeline over a resolved dependency graph.
package installer

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"

	"github.com/AqwozTheDeveloper/crabby/internal/core/domain"
	"github.com/AqwozTheDeveloper/crabby/internal/core/ports"
)

const postinstallScript = "postinstall"

type Installer struct {
	registry    ports.RegistryClient
	cache       ports.PackageCache
	files       ports.Materializer
	runner      ports.ScriptRunner
	manifests   ports.ManifestLoader
	tracer      ports.Tracer
	logger      ports.Logger
	parallelism int
	attempts    int
}

func New(
	registry ports.RegistryClient,
	cache ports.PackageCache,
	files ports.Materializer,
	runner ports.ScriptRunner,
	manifests ports.ManifestLoader,
	tracer ports.Tracer,
	logger ports.Logger,
	parallelism, attempts int,
) *Installer {
	if parallelism < 1 {
		parallelism = 1
	}
	if attempts < 1 {
		attempts = 1
	}
	return &Installer{
		registry:    registry,
		cache:       cache,
		files:       files,
		runner:      runner,
		manifests:   manifests,
		tracer:      tracer,
		logger:      logger,
		parallelism: parallelism,
		attempts:    attempts,
	}
}

// nodeState tracks one graph node through the pipeline. done is closed once
// the node is fully placed and linked; scripts is only read after done.
type nodeState struct {
	target  string
	binDirs []string // nearest ancestor .bin first
	scripts map[string]string
	done    chan struct{}
}

// Install materializes the graph into root's node_modules tree. Fetches run
// bounded-parallel; lifecycle scripts run sequentially in postorder, each
// strictly after its package's subtree finished placing. A fetch or
// filesystem failure cancels the pipeline; completed siblings stay on disk
// and the returned report carries the fatal error.
func (ins *Installer) Install(ctx context.Context, g *domain.Graph, root string) (*domain.InstallReport, error) {
	plan := domain.NewInstallPlan(g)
	report := &domain.InstallReport{}
	var mu sync.Mutex

	states := make([]*nodeState, g.Len())
	for _, id := range plan.Order {
		target, binDirs := layout(root, g, id)
		states[id] = &nodeState{target: target, binDirs: binDirs, done: make(chan struct{})}
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(ins.parallelism)

	// Workers launch owners before the packages nested inside them, so a
	// nested package never waits on a goroutine the pool has yet to admit.
	for i := len(plan.Order) - 1; i >= 0; i-- {
		id := plan.Order[i]
		group.Go(func() error {
			return ins.installNode(gctx, g, states, id, report, &mu)
		})
	}

	// Scripts get their own cancellation: gctx dies the moment the last
	// worker returns, which would race scripts started after the fetches
	// finish. Only a fatal worker error or the caller cancels scriptCtx.
	scriptCtx, cancelScripts := context.WithCancel(ctx)
	defer cancelScripts()

	scriptsDone := make(chan struct{})
	go func() {
		defer close(scriptsDone)
		ins.runScripts(scriptCtx, g, plan, states, report, &mu)
	}()

	err := group.Wait()
	if err != nil {
		cancelScripts()
	}
	<-scriptsDone

	if err != nil {
		report.Fatal = err
		return report, err
	}
	return report, nil
}

func (ins *Installer) installNode(
	ctx context.Context,
	g *domain.Graph,
	states []*nodeState,
	id domain.NodeID,
	report *domain.InstallReport,
	mu *sync.Mutex,
) error {
	pkg := g.Package(id)
	st := states[id]

	if pkg.Source == domain.SourceWorkspace {
		if err := ins.files.Symlink(pkg.LocalPath, st.target); err != nil {
			return err
		}
		mu.Lock()
		report.Installed++
		mu.Unlock()
		close(st.done)
		return nil
	}

	_, span := ins.tracer.Start(ctx, "install "+pkg.Name.String()+"@"+pkg.Version.String())
	defer span.End()

	tree, cacheHit, err := ins.fetch(ctx, pkg, span)
	if err != nil {
		span.RecordError(err)
		return err
	}

	// A nested package lives inside its scope owner's tree; placing the
	// owner wipes that directory, so wait until the owner is in place.
	if owner := g.ScopeOwner(g.ScopeOf(id)); owner != domain.NoNode {
		select {
		case <-states[owner].done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := ins.files.PlaceTree(tree, st.target); err != nil {
		span.RecordError(err)
		_ = ins.files.RemoveTree(st.target)
		return err
	}

	scripts, bin := pkg.Scripts, pkg.Bin
	if pkg.Source == domain.SourceLockfile && scripts == nil && bin == nil {
		// Lock entries carry neither; the placed tree's own manifest does.
		if m, err := ins.manifests.Load(st.target); err == nil {
			scripts, bin = m.Scripts, m.Bin
		}
	}

	names := make([]string, 0, len(bin))
	for name := range bin {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		entry := filepath.Join(st.target, filepath.FromSlash(bin[name]))
		if err := ins.files.LinkBin(name, entry, st.binDirs[0]); err != nil {
			span.RecordError(err)
			_ = ins.files.RemoveTree(st.target)
			return err
		}
	}

	st.scripts = scripts

	mu.Lock()
	report.Installed++
	if cacheHit {
		report.CacheHits++
	}
	mu.Unlock()

	close(st.done)
	return nil
}

// fetch returns the extracted cache tree for a package, downloading and
// committing it on a miss. Transient network failures and integrity
// mismatches both consume the retry budget; a mismatch on the final attempt
// surfaces as ErrIntegrityMismatch with no cache entry committed.
func (ins *Installer) fetch(ctx context.Context, pkg *domain.ResolvedPackage, span ports.Span) (string, bool, error) {
	key := domain.CacheKey{
		Name:      pkg.Name.String(),
		Version:   pkg.Version.String(),
		Integrity: pkg.Integrity,
	}

	if tree, ok := ins.cache.Lookup(key); ok {
		span.Cached()
		return tree, true, nil
	}

	var lastErr error
	for attempt := 0; attempt < ins.attempts; attempt++ {
		if attempt > 0 {
			ins.logger.Debug("retrying fetch of " + key.Name + "@" + key.Version)
			if err := backoff(ctx, attempt); err != nil {
				return "", false, err
			}
		}

		tarball, err := ins.registry.FetchTarball(ctx, pkg.Tarball)
		if err != nil {
			lastErr = err
			continue
		}

		tree, err := ins.cache.Store(key, tarball)
		if err == nil {
			return tree, false, nil
		}
		if !errors.Is(err, domain.ErrIntegrityMismatch) {
			return "", false, err
		}
		// Corrupted download; try again from the network.
		lastErr = err
	}

	if errors.Is(lastErr, domain.ErrIntegrityMismatch) {
		return "", false, lastErr
	}
	wrapped := zerr.With(zerr.Wrap(domain.ErrNetwork, lastErr.Error()), "package", key.Name)
	wrapped = zerr.With(wrapped, "version", key.Version)
	return "", false, zerr.With(wrapped, "attempts", ins.attempts)
}

// runScripts executes postinstall scripts sequentially in postorder. Each
// script waits for its package to finish placing; postorder guarantees the
// package's subtree placed earlier in the walk. Failures are recorded, never
// propagated.
func (ins *Installer) runScripts(
	ctx context.Context,
	g *domain.Graph,
	plan *domain.InstallPlan,
	states []*nodeState,
	report *domain.InstallReport,
	mu *sync.Mutex,
) {
	for _, id := range plan.Order {
		st := states[id]
		select {
		case <-st.done:
		case <-ctx.Done():
			return
		}

		pkg := g.Package(id)
		if pkg.Source == domain.SourceWorkspace {
			continue
		}
		command, ok := st.scripts[postinstallScript]
		if !ok {
			continue
		}

		_, span := ins.tracer.Start(ctx, postinstallScript+" "+pkg.Name.String()+"@"+pkg.Version.String())
		result, err := ins.runner.Run(ctx, command, st.target, st.binDirs)
		_, _ = span.Write(result.Output)
		if err != nil {
			if ctx.Err() != nil {
				span.End()
				return
			}
			span.RecordError(err)
			ins.logger.Warn(postinstallScript + " failed for " + pkg.Name.String() + "@" + pkg.Version.String())
			mu.Lock()
			report.FailedScripts = append(report.FailedScripts, domain.ScriptFailure{
				Package: pkg.Name.String(),
				Version: pkg.Version.String(),
				Script:  postinstallScript,
				Output:  string(result.Output),
				Err:     err,
			})
			mu.Unlock()
		}
		span.End()
	}
}

// layout computes where a node installs and which .bin directories its
// scripts see, nearest first.
func layout(root string, g *domain.Graph, id domain.NodeID) (string, []string) {
	nm := filepath.Join(root, "node_modules")
	binDirs := []string{filepath.Join(nm, ".bin")}
	for _, owner := range g.OwnerPath(id) {
		nm = filepath.Join(nm, filepath.FromSlash(owner), "node_modules")
		binDirs = append([]string{filepath.Join(nm, ".bin")}, binDirs...)
	}
	return filepath.Join(nm, filepath.FromSlash(g.Package(id).Name.String())), binDirs
}

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
