package app

import (
	"context"

	"github.com/grindlemire/graft"

	"github.com/AqwozTheDeveloper/crabby/internal/adapters/cas"
	"github.com/AqwozTheDeveloper/crabby/internal/adapters/fs"
	"github.com/AqwozTheDeveloper/crabby/internal/adapters/logger"
	"github.com/AqwozTheDeveloper/crabby/internal/adapters/manifest"
	"github.com/AqwozTheDeveloper/crabby/internal/adapters/registry"
	"github.com/AqwozTheDeveloper/crabby/internal/adapters/shell"
	"github.com/AqwozTheDeveloper/crabby/internal/core/ports"
	"github.com/AqwozTheDeveloper/crabby/internal/engine/installer"
	"github.com/AqwozTheDeveloper/crabby/internal/engine/resolver"
)

// NodeID is the unique identifier for the main App graft node.
const NodeID graft.ID = "app.main"

func init() {
	graft.Register(graft.Node[*App]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			manifest.NodeID,
			resolver.NodeID,
			installer.NodeID,
			registry.NodeID,
			cas.NodeID,
			shell.NodeID,
			fs.NodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*App, error) {
			store, err := graft.Dep[*manifest.Store](ctx)
			if err != nil {
				return nil, err
			}
			res, err := graft.Dep[*resolver.Resolver](ctx)
			if err != nil {
				return nil, err
			}
			ins, err := graft.Dep[*installer.Installer](ctx)
			if err != nil {
				return nil, err
			}
			client, err := graft.Dep[ports.RegistryClient](ctx)
			if err != nil {
				return nil, err
			}
			cache, err := graft.Dep[ports.PackageCache](ctx)
			if err != nil {
				return nil, err
			}
			runner, err := graft.Dep[ports.ScriptRunner](ctx)
			if err != nil {
				return nil, err
			}
			files, err := graft.Dep[ports.Materializer](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return New(store, res, ins, client, cache, runner, files, log, "."), nil
		},
	})
}
