package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AdminHandler serves the back-office manual access screens.
type AdminHandler struct {
	logger    *zap.Logger
	overrides OverrideAdministrator
}

func NewAdminHandler(logger *zap.Logger, overrides OverrideAdministrator) *AdminHandler {
	return &AdminHandler{
		logger:    logger,
		overrides: overrides,
	}
}

type SetDoctorAccessRequest struct {
	AccessGranted *bool `json:"acesso_liberado" validate:"required"`
}

type DoctorAccessResponse struct {
	DoctorID      string `json:"doctor_id"`
	AccessGranted bool   `json:"acesso_liberado"`
}

func (h *AdminHandler) SetDoctorAccess(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest("doctor id must be a UUID", nil)
	}

	var req SetDoctorAccessRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.overrides.SetOverride(c.Request().Context(), doctorID.String(), *req.AccessGranted); err != nil {
		h.logger.Warn("Manual access change rejected",
			zap.String("doctor_id", doctorID.String()),
			zap.Bool("acesso_liberado", *req.AccessGranted),
			zap.Error(err))
		return toAppError(err)
	}

	h.logger.Info("Manual access changed",
		zap.String("doctor_id", doctorID.String()),
		zap.Bool("acesso_liberado", *req.AccessGranted))

	return c.JSON(http.StatusOK, DoctorAccessResponse{
		DoctorID:      doctorID.String(),
		AccessGranted: *req.AccessGranted,
	})
}

func (h *AdminHandler) GetTenantAccess(c echo.Context) error {
	tenantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest("tenant id must be a UUID", nil)
	}

	decision, err := h.overrides.TenantOverview(c.Request().Context(), tenantID.String())
	if err != nil {
		return toAppError(err)
	}
	return c.JSON(http.StatusOK, decision)
}
