package http

import (
	"io"
	"net/http"

	domainErrors "github.com/SistemaEduas/AtendimentoMedico/internal/domain/errors"
	apperrors "github.com/SistemaEduas/AtendimentoMedico/pkg/errors"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// SignatureHeader carries the provider's HMAC over the raw body.
const SignatureHeader = "Stripe-Signature"

// Stripe payloads stay well below this
const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	logger   *zap.Logger
	ingestor EventIngestor
}

func NewWebhookHandler(logger *zap.Logger, ingestor EventIngestor) *WebhookHandler {
	return &WebhookHandler{
		logger:   logger,
		ingestor: ingestor,
	}
}

// HandleWebhook verifies and applies one billing provider event. Any non-2xx
// response makes the provider redeliver.
func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("Error reading request body", zap.Error(err))
		return badRequest("error reading request body", nil)
	}

	sig := c.Request().Header.Get(SignatureHeader)
	if sig == "" {
		h.logger.Warn("Webhook without signature header", zap.String("ip", c.RealIP()))
		return toAppError(domainErrors.ErrInvalidSignature)
	}

	if err := h.ingestor.HandleEvent(c.Request().Context(), body, sig); err != nil {
		appErr := toAppError(err)
		apperrors.LogError(h.logger, appErr, "Webhook processing failed")
		return appErr
	}

	return c.JSON(http.StatusOK, echo.Map{"received": true})
}
