package cache

import (
	"context"
	"fmt"

	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/entity"
	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/repository"
	"github.com/SistemaEduas/AtendimentoMedico/pkg/messaging"
)

// AccessChangedChannel is where the clinic application listens to drop cached access decisions.
const AccessChangedChannel = "assinaturas.access_changed"

// RedisAccessNotifier publishes access changes over Redis pub/sub.
type RedisAccessNotifier struct {
	bus messaging.RedisClient
}

var _ repository.AccessNotifier = (*RedisAccessNotifier)(nil)

func NewRedisAccessNotifier(bus messaging.RedisClient) *RedisAccessNotifier {
	return &RedisAccessNotifier{bus: bus}
}

func (n *RedisAccessNotifier) AccessChanged(ctx context.Context, change entity.AccessChange) error {
	if err := n.bus.Publish(ctx, AccessChangedChannel, change); err != nil {
		return fmt.Errorf("failed to publish access change for %s: %w", change.Actor, err)
	}
	return nil
}
