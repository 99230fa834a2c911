package cas

import (
	"context"

	"github.com/grindlemire/graft"

	"github.com/AqwozTheDeveloper/crabby/internal/adapters/config"
	"github.com/AqwozTheDeveloper/crabby/internal/adapters/logger"
	"github.com/AqwozTheDeveloper/crabby/internal/core/ports"
)

const NodeID graft.ID = "adapter.package_cache"

func init() {
	graft.Register(graft.Node[ports.PackageCache]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID, logger.NodeID},
		Run: func(ctx context.Context) (ports.PackageCache, error) {
			cfg, err := graft.Dep[config.Config](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewStore(cfg, log)
		},
	})
}
