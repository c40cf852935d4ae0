// README: Hub handlers for availability, display hours, nearby search and admin edits.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	httpmiddleware "knx/internal/http/middleware"
	"knx/internal/modules/availability"
	"knx/internal/modules/hours"
	"knx/internal/modules/hub"
	"knx/internal/modules/locator"
	"knx/internal/types"
)

type HubStore interface {
	Hub(ctx context.Context, id int64) (*hub.Hub, error)
	ListByCity(ctx context.Context, cityID int64) ([]*hub.Hub, error)
	UpdateHours(ctx context.Context, id int64, week hub.WeekHours) error
	SetClosure(ctx context.Context, id int64, until, reason string) error
}

type AvailabilityDecider interface {
	Decide(ctx context.Context, hubID int64) availability.Decision
}

type HubLocator interface {
	Near(ctx context.Context, p types.Point, radiusKm float64, limit int) ([]locator.Nearby, error)
	Sync(ctx context.Context, hubID int64) error
}

type HubHandler struct {
	hubs         HubStore
	availability AvailabilityDecider
	locator      HubLocator
	now          func() time.Time
	log          *zap.Logger
}

func NewHubHandler(hubs HubStore, avail AvailabilityDecider, loc HubLocator, log *zap.Logger) *HubHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &HubHandler{hubs: hubs, availability: avail, locator: loc, now: time.Now, log: log}
}

func (h *HubHandler) Availability(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, h.availability.Decide(c.Request.Context(), id))
}

func displayStyle(c *gin.Context) (hours.Style, bool) {
	switch s := hours.Style(c.DefaultQuery("style", string(hours.Style12h))); s {
	case hours.Style12h, hours.Style24h, hours.StyleMixed:
		return s, true
	default:
		writeError(c, http.StatusBadRequest, "style must be 12h, 24h or mixed")
		return "", false
	}
}

func (h *HubHandler) Status(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	style, ok := displayStyle(c)
	if !ok {
		return
	}
	hb, err := h.hubs.Hub(c.Request.Context(), id)
	if err != nil {
		writeHubError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, hours.Enrich(hb, h.now(), style))
}

func (h *HubHandler) ListByCity(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	style, ok := displayStyle(c)
	if !ok {
		return
	}
	hubs, err := h.hubs.ListByCity(c.Request.Context(), id)
	if err != nil {
		writeHubError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"hubs": hours.EnrichAll(hubs, h.now(), style)})
}

func (h *HubHandler) Nearby(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	p := types.Point{Lat: lat, Lng: lng}
	if errLat != nil || errLng != nil || !p.InRange() || p.Missing() {
		writeError(c, http.StatusBadRequest, "lat and lng are required")
		return
	}
	radius := locator.DefaultRadiusKm
	if raw := c.Query("radius_km"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			writeError(c, http.StatusBadRequest, "invalid radius_km")
			return
		}
		radius = v
	}
	limit := locator.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeError(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = v
	}
	found, err := h.locator.Near(c.Request.Context(), p, radius, limit)
	if err != nil {
		_ = c.Error(err)
		writeError(c, http.StatusServiceUnavailable, "locator unavailable")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"hubs": found})
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// UpdateHours replaces the whole week. Days missing from the body are stored
// as having no hours.
func (h *HubHandler) UpdateHours(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body map[string][]hours.Interval
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	week := make(map[time.Weekday][]hours.Interval, len(body))
	for name, ivs := range body {
		day, known := weekdayNames[strings.ToLower(name)]
		if !known {
			writeError(c, http.StatusBadRequest, fmt.Sprintf("unknown day %q", name))
			return
		}
		week[day] = ivs
	}
	if err := hours.Validate(week); err != nil {
		writeHubError(c, err)
		return
	}
	var encoded hub.WeekHours
	for day := range encoded {
		encoded[day] = hours.Encode(week[time.Weekday(day)])
	}
	if err := h.hubs.UpdateHours(c.Request.Context(), id, encoded); err != nil {
		writeHubError(c, err)
		return
	}
	h.log.Info("hub hours updated", zap.Int64("hub_id", id), zap.String("by", httpmiddleware.CallerUID(c)))
	c.Status(http.StatusNoContent)
}

type closureReq struct {
	Until  string `json:"until"`
	Reason string `json:"reason" binding:"max=255"`
}

// SetClosure records a temporary closure; an empty body clears it.
func (h *HubHandler) SetClosure(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req closureReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	req.Until = strings.TrimSpace(req.Until)
	if req.Until != "" {
		if _, ok := hours.ParseClosureUntil(req.Until, time.UTC); !ok {
			writeError(c, http.StatusUnprocessableEntity, "until must be an RFC 3339 or YYYY-MM-DD HH:MM timestamp")
			return
		}
	}
	if err := h.hubs.SetClosure(c.Request.Context(), id, req.Until, req.Reason); err != nil {
		writeHubError(c, err)
		return
	}
	h.log.Info("hub closure set", zap.Int64("hub_id", id), zap.String("until", req.Until))
	c.Status(http.StatusNoContent)
}

// Reindex pushes the hub's current location into the nearby index.
func (h *HubHandler) Reindex(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.locator.Sync(c.Request.Context(), id); err != nil {
		writeHubError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
