package http

import (
	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/entity"
	domainErrors "github.com/SistemaEduas/AtendimentoMedico/internal/domain/errors"
	"github.com/SistemaEduas/AtendimentoMedico/internal/middleware/auth"
	apperrors "github.com/SistemaEduas/AtendimentoMedico/pkg/errors"
	"github.com/labstack/echo/v4"
)

// actorRef is an optional actor named by the client, in a body or query string.
type actorRef struct {
	ActorID   string `json:"actor_id" query:"actor_id" validate:"omitempty,uuid"`
	ActorKind string `json:"actor_kind" query:"actor_kind" validate:"omitempty,oneof=doctor tenant"`
}

// requestActor resolves the actor a request acts on against the session.
func requestActor(c echo.Context, ref actorRef) (entity.Actor, error) {
	user, err := auth.GetUserFromContext(c)
	if err != nil {
		return entity.Actor{}, apperrors.NewAppError(apperrors.ErrUnauthenticated, "authentication required", nil)
	}

	var requested *entity.Actor
	if ref.ActorID != "" || ref.ActorKind != "" {
		actor, err := entity.ParseActor(ref.ActorKind, ref.ActorID)
		if err != nil {
			return entity.Actor{}, toAppError(domainErrors.ErrInvalidActor)
		}
		requested = &actor
	}

	actor, err := auth.ResolveActor(user, requested)
	if err != nil {
		return entity.Actor{}, toAppError(err)
	}
	return actor, nil
}
