package registry

import (
	"context"

	"github.com/grindlemire/graft"

	"github.com/AqwozTheDeveloper/crabby/internal/adapters/config"
	"github.com/AqwozTheDeveloper/crabby/internal/adapters/logger"
	"github.com/AqwozTheDeveloper/crabby/internal/core/ports"
)

const NodeID graft.ID = "adapter.registry_client"

func init() {
	graft.Register(graft.Node[ports.RegistryClient]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID, logger.NodeID},
		Run: func(ctx context.Context) (ports.RegistryClient, error) {
			cfg, err := graft.Dep[config.Config](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewClient(cfg.Registry, cfg.FetchTimeout(), log), nil
		},
	})
}
