package http

import (
	"errors"
	"net/http"

	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/entity"
	domainErrors "github.com/SistemaEduas/AtendimentoMedico/internal/domain/errors"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type SubscriptionHandler struct {
	logger       *zap.Logger
	access       AccessEvaluator
	cancellation SubscriptionCanceler
}

func NewSubscriptionHandler(logger *zap.Logger, access AccessEvaluator, cancellation SubscriptionCanceler) *SubscriptionHandler {
	return &SubscriptionHandler{
		logger:       logger,
		access:       access,
		cancellation: cancellation,
	}
}

type CancelSubscriptionRequest struct {
	SubscriptionID string `json:"subscription_id" validate:"required"`
}

type CancelSubscriptionResponse struct {
	Success         bool                       `json:"success"`
	Message         string                     `json:"message"`
	AlreadyCanceled bool                       `json:"already_canceled"`
	Subscription    *entity.SubscriptionRecord `json:"subscription,omitempty"`
}

type SubscriptionListResponse struct {
	Actor         entity.Actor                 `json:"actor"`
	Access        *entity.AccessDecision       `json:"access"`
	Subscriptions []*entity.SubscriptionRecord `json:"subscriptions"`
}

// CancelSubscription stops renewal; access continues until the paid period ends.
func (h *SubscriptionHandler) CancelSubscription(c echo.Context) error {
	var req CancelSubscriptionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	actor, err := requestActor(c, actorRef{})
	if err != nil {
		return err
	}

	record, err := h.cancellation.Cancel(c.Request().Context(), actor, req.SubscriptionID)
	switch {
	case errors.Is(err, domainErrors.ErrAlreadyCanceled):
		return c.JSON(http.StatusOK, CancelSubscriptionResponse{
			Success:         true,
			Message:         "Subscription was already canceled",
			AlreadyCanceled: true,
			Subscription:    record,
		})
	case err != nil:
		h.logger.Warn("Subscription cancellation failed",
			zap.String("actor", actor.String()),
			zap.String("subscription_id", req.SubscriptionID),
			zap.Error(err))
		return toAppError(err)
	}

	return c.JSON(http.StatusOK, CancelSubscriptionResponse{
		Success:      true,
		Message:      "Subscription canceled. Access remains until the end of the current period",
		Subscription: record,
	})
}

// ListSubscriptions returns the actor's record history with its current decision.
func (h *SubscriptionHandler) ListSubscriptions(c echo.Context) error {
	var req actorRef
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	actor, err := requestActor(c, req)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	records, err := h.access.ListSubscriptions(ctx, actor)
	if err != nil {
		return toAppError(err)
	}
	if records == nil {
		records = []*entity.SubscriptionRecord{}
	}

	return c.JSON(http.StatusOK, SubscriptionListResponse{
		Actor:         actor,
		Access:        h.access.Evaluate(ctx, entity.AccessRequest{Actor: actor}),
		Subscriptions: records,
	})
}
