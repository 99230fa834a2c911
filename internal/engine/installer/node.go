package installer

import (
	"context"

	"github.com/grindlemire/graft"

	"github.com/AqwozTheDeveloper/crabby/internal/adapters/cas"
	"github.com/AqwozTheDeveloper/crabby/internal/adapters/config"
	"github.com/AqwozTheDeveloper/crabby/internal/adapters/fs"
	"github.com/AqwozTheDeveloper/crabby/internal/adapters/logger"
	"github.com/AqwozTheDeveloper/crabby/internal/adapters/manifest"
	"github.com/AqwozTheDeveloper/crabby/internal/adapters/registry"
	"github.com/AqwozTheDeveloper/crabby/internal/adapters/shell"
	"github.com/AqwozTheDeveloper/crabby/internal/adapters/telemetry/progrock"
	"github.com/AqwozTheDeveloper/crabby/internal/core/ports"
)

const NodeID graft.ID = "engine.installer"

func init() {
	graft.Register(graft.Node[*Installer]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			registry.NodeID,
			cas.NodeID,
			fs.NodeID,
			shell.NodeID,
			manifest.NodeID,
			progrock.NodeID,
			config.NodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Installer, error) {
			client, err := graft.Dep[ports.RegistryClient](ctx)
			if err != nil {
				return nil, err
			}
			cache, err := graft.Dep[ports.PackageCache](ctx)
			if err != nil {
				return nil, err
			}
			files, err := graft.Dep[ports.Materializer](ctx)
			if err != nil {
				return nil, err
			}
			runner, err := graft.Dep[ports.ScriptRunner](ctx)
			if err != nil {
				return nil, err
			}
			store, err := graft.Dep[*manifest.Store](ctx)
			if err != nil {
				return nil, err
			}
			tracer, err := graft.Dep[ports.Tracer](ctx)
			if err != nil {
				return nil, err
			}
			cfg, err := graft.Dep[config.Config](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return New(client, cache, files, runner, store, tracer, log, cfg.Parallelism, cfg.RetryAttempts), nil
		},
	})
}
