package dispatch

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handler exposes the endpoint admin API.
type Handler struct {
	dispatcher *Dispatcher
}

func NewHandler(d *Dispatcher) *Handler {
	return &Handler{dispatcher: d}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/alert-endpoints", h.CreateEndpoint)
	g.GET("/alert-endpoints", h.ListEndpoints)
	g.GET("/alert-endpoints/:id", h.GetEndpoint)
	g.DELETE("/alert-endpoints/:id", h.DeleteEndpoint)
	g.GET("/alert-endpoints/:id/deliveries", h.ListDeliveries)
}

type createEndpointRequest struct {
	Name   string   `json:"name"`
	URL    string   `json:"url"`
	Secret string   `json:"secret"`
	Events []string `json:"events"`
}

// CreateEndpoint registers an alert destination. The generated secret is
// returned once, in this response only.
func (h *Handler) CreateEndpoint(c echo.Context) error {
	var req createEndpointRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ep, err := h.dispatcher.RegisterEndpoint(c.Request().Context(), req.Name, req.URL, req.Secret, req.Events)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, ep)
}

func (h *Handler) ListEndpoints(c echo.Context) error {
	endpoints, err := h.dispatcher.store.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list endpoints")
	}
	// Secrets are write-once; never echo them back on reads.
	out := make([]*Endpoint, 0, len(endpoints))
	for _, ep := range endpoints {
		clone := *ep
		clone.Secret = ""
		out = append(out, &clone)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"endpoints": out,
		"total":     len(out),
	})
}

func (h *Handler) GetEndpoint(c echo.Context) error {
	ep, err := h.dispatcher.store.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "endpoint not found")
	}
	clone := *ep
	clone.Secret = ""
	return c.JSON(http.StatusOK, &clone)
}

func (h *Handler) DeleteEndpoint(c echo.Context) error {
	if err := h.dispatcher.store.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "endpoint not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// ListDeliveries returns recent delivery attempts for an endpoint, newest
// first. Only deliveries still in the in-memory ring are available.
func (h *Handler) ListDeliveries(c echo.Context) error {
	id := c.Param("id")
	if _, err := h.dispatcher.store.Get(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "endpoint not found")
	}

	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}

	deliveries := h.dispatcher.Deliveries(id, limit)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"deliveries": deliveries,
		"total":      len(deliveries),
	})
}
