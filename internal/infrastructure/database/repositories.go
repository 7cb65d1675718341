package database

import (
	"github.com/SistemaEduas/AtendimentoMedico/internal/adapter/repository"
	domainRepo "github.com/SistemaEduas/AtendimentoMedico/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Repositories holds all repository instances
type Repositories struct {
	Subscription    domainRepo.SubscriptionRepository
	AccessOverride  domainRepo.AccessOverrideRepository
	Actor           domainRepo.ActorRepository
	CustomerMapping domainRepo.CustomerMappingRepository
	Webhook         domainRepo.WebhookEventRepository
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		Subscription:    repository.NewSubscriptionRepository(db, logger),
		AccessOverride:  repository.NewAccessOverrideRepository(db, logger),
		Actor:           repository.NewActorRepository(db),
		CustomerMapping: repository.NewCustomerMappingRepository(db),
		Webhook:         repository.NewWebhookRepository(db, logger),
	}
}
