package severity

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/severity", h.GetTable)
}

func (h *Handler) GetTable(c echo.Context) error {
	return c.JSON(http.StatusOK, Table())
}
