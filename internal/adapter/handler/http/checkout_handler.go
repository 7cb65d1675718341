package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type CheckoutHandler struct {
	logger   *zap.Logger
	checkout CheckoutStarter
}

func NewCheckoutHandler(logger *zap.Logger, checkout CheckoutStarter) *CheckoutHandler {
	return &CheckoutHandler{
		logger:   logger,
		checkout: checkout,
	}
}

type CheckoutResponse struct {
	RedirectURL string `json:"redirect_url"`
	SessionID   string `json:"session_id"`
}

// CreateCheckoutSession opens a hosted checkout for the session's actor.
func (h *CheckoutHandler) CreateCheckoutSession(c echo.Context) error {
	var req actorRef
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	actor, err := requestActor(c, req)
	if err != nil {
		return err
	}

	session, err := h.checkout.StartCheckout(c.Request().Context(), actor)
	if err != nil {
		h.logger.Warn("Checkout not started",
			zap.String("actor", actor.String()),
			zap.Error(err))
		return toAppError(err)
	}

	h.logger.Info("Checkout session created",
		zap.String("actor", actor.String()),
		zap.String("session_id", session.ID))

	return c.JSON(http.StatusOK, CheckoutResponse{
		RedirectURL: session.URL,
		SessionID:   session.ID,
	})
}

// VerifyCheckout is polled by the success page until the webhook has landed.
func (h *CheckoutHandler) VerifyCheckout(c echo.Context) error {
	var req actorRef
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	actor, err := requestActor(c, req)
	if err != nil {
		return err
	}

	ok, err := h.checkout.VerifyCheckout(c.Request().Context(), actor)
	if err != nil {
		return toAppError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": ok})
}
