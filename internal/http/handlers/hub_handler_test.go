package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knx/internal/http/handlers"
	"knx/internal/modules/availability"
	"knx/internal/modules/hub"
	"knx/internal/modules/locator"
	"knx/internal/types"
)

type memHubs struct {
	hubs     map[int64]*hub.Hub
	week     *hub.WeekHours
	closures []string
}

func (m *memHubs) Hub(_ context.Context, id int64) (*hub.Hub, error) {
	if h, ok := m.hubs[id]; ok {
		return h, nil
	}
	return nil, hub.ErrNotFound
}

func (m *memHubs) ListByCity(_ context.Context, cityID int64) ([]*hub.Hub, error) {
	var out []*hub.Hub
	for _, h := range m.hubs {
		if h.CityID == cityID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *memHubs) UpdateHours(_ context.Context, id int64, week hub.WeekHours) error {
	if _, ok := m.hubs[id]; !ok {
		return hub.ErrNotFound
	}
	m.week = &week
	return nil
}

func (m *memHubs) SetClosure(_ context.Context, _ int64, until, reason string) error {
	m.closures = append(m.closures, until+"|"+reason)
	return nil
}

type fixedDecider struct{ d availability.Decision }

func (f fixedDecider) Decide(context.Context, int64) availability.Decision { return f.d }

type stubLocator struct {
	radius float64
	limit  int
	err    error
}

func (s *stubLocator) Near(_ context.Context, _ types.Point, radiusKm float64, limit int) ([]locator.Nearby, error) {
	s.radius, s.limit = radiusKm, limit
	if s.err != nil {
		return nil, s.err
	}
	return []locator.Nearby{{HubID: 1, Name: "Midtown", DistanceKm: 1.2, DistanceMi: 0.75}}, nil
}

func (s *stubLocator) Sync(context.Context, int64) error { return s.err }

func hubRouter(hubs *memHubs, loc *stubLocator) *gin.Engine {
	r := newEngine()
	h := handlers.NewHubHandler(hubs, fixedDecider{d: availability.Decision{CanOrder: true, Reason: availability.ReasonAvailable}}, loc, nil)
	r.GET("/api/hubs/nearby", h.Nearby)
	r.GET("/api/hubs/:id/availability", h.Availability)
	r.GET("/api/hubs/:id/status", h.Status)
	r.PUT("/api/hubs/:id/hours", h.UpdateHours)
	r.PUT("/api/hubs/:id/closure", h.SetClosure)
	return r
}

func testHubStore() *memHubs {
	return &memHubs{hubs: map[int64]*hub.Hub{
		1: {ID: 1, CityID: 1, Name: "Midtown", Status: hub.StatusActive, Timezone: "America/New_York"},
	}}
}

func TestAvailability_ReturnsDecisionVerbatim(t *testing.T) {
	r := hubRouter(testHubStore(), &stubLocator{})
	w := do(r, http.MethodGet, "/api/hubs/1/availability", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["can_order"])
	assert.Equal(t, "AVAILABLE", body["reason"])
	assert.Len(t, body, 6)
}

func TestStatus_UnknownHubIs404(t *testing.T) {
	r := hubRouter(testHubStore(), &stubLocator{})
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/hubs/99/status", nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/hubs/1/status?style=iso", nil, "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/hubs/1/status?style=24h", nil, "").Code)
}

func TestUpdateHours_EncodesWholeWeek(t *testing.T) {
	hubs := testHubStore()
	r := hubRouter(hubs, &stubLocator{})

	w := do(r, http.MethodPut, "/api/hubs/1/hours", map[string]any{
		"Monday": []map[string]string{{"open": "09:00", "close": "14:00"}, {"open": "17:00", "close": "02:00"}},
	}, "")
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	require.NotNil(t, hubs.week)
	assert.Equal(t, `[{"open":"09:00","close":"14:00"},{"open":"17:00","close":"02:00"}]`, hubs.week.Day(time.Monday))
	assert.Equal(t, "[]", hubs.week.Day(time.Sunday))
}

func TestUpdateHours_Rejects(t *testing.T) {
	r := hubRouter(testHubStore(), &stubLocator{})

	w := do(r, http.MethodPut, "/api/hubs/1/hours", map[string]any{
		"monday": []map[string]string{{"open": "09:00", "close": "14:00"}, {"open": "13:00", "close": "15:00"}},
	}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, decode(t, w)["error"], "overlaps")

	w = do(r, http.MethodPut, "/api/hubs/1/hours", map[string]any{"funday": []any{}}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPut, "/api/hubs/1/hours", map[string]any{
		"friday": []map[string]string{{"open": "25:00", "close": "14:00"}},
	}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(r, http.MethodPut, "/api/hubs/7/hours", map[string]any{}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSetClosure_ValidatesUntil(t *testing.T) {
	hubs := testHubStore()
	r := hubRouter(hubs, &stubLocator{})

	w := do(r, http.MethodPut, "/api/hubs/1/closure", map[string]any{"until": "next tuesday", "reason": "Inventory"}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(r, http.MethodPut, "/api/hubs/1/closure", map[string]any{"until": "2026-10-20 09:00", "reason": "Inventory"}, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(r, http.MethodPut, "/api/hubs/1/closure", map[string]any{}, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"2026-10-20 09:00|Inventory", "|"}, hubs.closures)
}

func TestNearby_DefaultsAndValidation(t *testing.T) {
	loc := &stubLocator{}
	r := hubRouter(testHubStore(), loc)

	w := do(r, http.MethodGet, "/api/hubs/nearby?lat=40.75&lng=-73.98", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, locator.DefaultRadiusKm, loc.radius)
	assert.Equal(t, locator.DefaultLimit, loc.limit)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/hubs/nearby?lat=0&lng=0", nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/hubs/nearby?lat=40&lng=-73&radius_km=-1", nil, "").Code)

	loc.err = errors.New("redis: connection refused")
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/api/hubs/nearby?lat=40&lng=-73", nil, "").Code)
}
