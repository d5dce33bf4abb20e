package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/nickloopdsp/MC-Instagram-sub000/internal/events"
)

const (
	defaultEventsLimit = 50
	maxEventsLimit     = 500
)

// EventsHandler exposes the logged webhook events for the dashboard.
type EventsHandler struct {
	store  events.Store
	logger *slog.Logger
}

func NewEventsHandler(log *slog.Logger, store events.Store) *EventsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &EventsHandler{
		store:  store,
		logger: log.With(slog.String("handler", "events")),
	}
}

func (h *EventsHandler) Register(e *echo.Echo) {
	group := e.Group("/api/events")
	group.GET("", h.List)
	group.POST("/:id/deep-link-click", h.MarkDeepLinkClicked)
}

type listEventsResponse struct {
	Items []events.WebhookEvent `json:"items"`
}

func (h *EventsHandler) List(c echo.Context) error {
	limit := defaultEventsLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		if parsed > maxEventsLimit {
			parsed = maxEventsLimit
		}
		limit = parsed
	}

	items, err := h.store.ListRecentEvents(c.Request().Context(), c.QueryParam("sender_id"), limit)
	if err != nil {
		h.logger.Error("list events failed", slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "list events failed")
	}
	if items == nil {
		items = []events.WebhookEvent{}
	}
	return c.JSON(http.StatusOK, listEventsResponse{Items: items})
}

// MarkDeepLinkClicked records that the user followed the dashboard link
// attached to a reply. Used for engagement attribution.
func (h *EventsHandler) MarkDeepLinkClicked(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "event id is required")
	}
	if err := h.store.MarkDeepLinkClicked(c.Request().Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "event not found")
		}
		h.logger.Error("mark deep link clicked failed",
			slog.String("event_id", id),
			slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "update failed")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
