package manifest

import (
	"context"

	"github.com/grindlemire/graft"

	"github.com/AqwozTheDeveloper/crabby/internal/adapters/logger"
	"github.com/AqwozTheDeveloper/crabby/internal/core/ports"
)

const NodeID graft.ID = "adapter.manifest_store"

func init() {
	graft.Register(graft.Node[*Store]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (*Store, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewStore(log), nil
		},
	})
}
