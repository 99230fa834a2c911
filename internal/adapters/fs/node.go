package fs

import (
	"context"

	"github.com/grindlemire/graft"

	"github.com/AqwozTheDeveloper/crabby/internal/adapters/logger"
	"github.com/AqwozTheDeveloper/crabby/internal/core/ports"
)

const NodeID graft.ID = "adapter.materializer"

func init() {
	graft.Register(graft.Node[ports.Materializer]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (ports.Materializer, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewMaterializer(log), nil
		},
	})
}
