package http

import (
	"net/http"

	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/entity"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type AccessHandler struct {
	logger *zap.Logger
	access AccessEvaluator
}

func NewAccessHandler(logger *zap.Logger, access AccessEvaluator) *AccessHandler {
	return &AccessHandler{
		logger: logger,
		access: access,
	}
}

type accessQuery struct {
	ActorID   string `query:"actor_id" validate:"omitempty,uuid"`
	ActorKind string `query:"actor_kind" validate:"omitempty,oneof=doctor tenant"`
	Resource  string `query:"resource" validate:"omitempty,max=512"`
}

// CheckAccess answers whether the actor may open the requested resource.
// It never fails because of the store; degraded decisions are granted.
func (h *AccessHandler) CheckAccess(c echo.Context) error {
	var req accessQuery
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	actor, err := requestActor(c, actorRef{ActorID: req.ActorID, ActorKind: req.ActorKind})
	if err != nil {
		return err
	}

	decision := h.access.Evaluate(c.Request().Context(), entity.AccessRequest{
		Actor:    actor,
		Resource: req.Resource,
	})
	return c.JSON(http.StatusOK, decision)
}
