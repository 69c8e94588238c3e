package patient

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger.With().Str("component", "patient").Logger()}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients", h.ListPatients)
	api.GET("/patients/:id", h.GetPatient)
	api.GET("/patients/:id/wearable-data", h.GetWearableData)
	api.GET("/patients/:id/risk-prediction", h.GetRiskPrediction)
	api.GET("/patients/:id/conversation-log", h.GetConversationLog)
	api.GET("/patients/:id/available-dates", h.GetAvailableDates)

	api.GET("/selection", h.GetSelection)
	api.PUT("/selection", h.SelectPatient)
}

func (h *Handler) ListPatients(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.ListSummaries())
}

func (h *Handler) GetPatient(c echo.Context) error {
	p, err := h.svc.GetPatient(c.Param("id"))
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetWearableData(c echo.Context) error {
	raw, err := h.svc.WearableData(c.Param("id"))
	if err != nil {
		return h.httpError(err)
	}
	return c.JSONBlob(http.StatusOK, raw)
}

func (h *Handler) GetRiskPrediction(c echo.Context) error {
	raw, err := h.svc.RiskPrediction(c.Param("id"))
	if err != nil {
		return h.httpError(err)
	}
	return c.JSONBlob(http.StatusOK, raw)
}

func (h *Handler) GetConversationLog(c echo.Context) error {
	raw, err := h.svc.ConversationLog(c.Param("id"), c.QueryParam("date"))
	if err != nil {
		return h.httpError(err)
	}
	return c.JSONBlob(http.StatusOK, raw)
}

func (h *Handler) GetAvailableDates(c echo.Context) error {
	dates, err := h.svc.AvailableDates(c.Param("id"))
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, map[string][]string{"dates": dates})
}

func (h *Handler) GetSelection(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Selection())
}

type selectRequest struct {
	ID *string `json:"id"`
}

// SelectPatient sets the selection. An id that matches no patient clears the
// selection and still answers 200.
func (h *Handler) SelectPatient(c echo.Context) error {
	var req selectRequest
	if err := c.Bind(&req); err != nil {
		// Errors raised while reading the body, such as the size limit,
		// keep their status.
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code != http.StatusBadRequest {
			return err
		}
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ID == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is required")
	}
	sel := h.svc.Select(*req.ID)
	if sel.Patient == nil {
		h.logger.Debug().Str("patient_id", *req.ID).Msg("selection cleared, no matching patient")
	}
	return c.JSON(http.StatusOK, sel)
}

func (h *Handler) httpError(err error) error {
	switch {
	case errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, ErrSectionNotFound), errors.Is(err, ErrNoLogForDate):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		h.logger.Error().Err(err).Msg("patient read failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
