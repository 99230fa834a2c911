package workspace

import (
	"context"

	"github.com/grindlemire/graft"

	"github.com/AqwozTheDeveloper/crabby/internal/adapters/logger"
	"github.com/AqwozTheDeveloper/crabby/internal/adapters/manifest"
	"github.com/AqwozTheDeveloper/crabby/internal/core/ports"
)

const NodeID graft.ID = "adapter.workspace_resolver"

func init() {
	graft.Register(graft.Node[ports.WorkspaceResolver]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{manifest.NodeID, logger.NodeID},
		Run: func(ctx context.Context) (ports.WorkspaceResolver, error) {
			store, err := graft.Dep[*manifest.Store](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			m, err := store.Load(".")
			if err != nil {
				return nil, err
			}
			return Discover(".", m.Workspaces, store, log)
		},
	})
}
