package availability

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knx/internal/modules/hub"
)

type fakeHubs struct {
	hubs   map[int64]*hub.Hub
	cities map[int64]*hub.City
	err    error
	panic  bool
}

func (f *fakeHubs) Hub(_ context.Context, id int64) (*hub.Hub, error) {
	if f.panic {
		panic("boom")
	}
	if f.err != nil {
		return nil, f.err
	}
	h, ok := f.hubs[id]
	if !ok {
		return nil, hub.ErrNotFound
	}
	return h, nil
}

func (f *fakeHubs) City(_ context.Context, id int64) (*hub.City, error) {
	c, ok := f.cities[id]
	if !ok {
		return nil, hub.ErrNotFound
	}
	return c, nil
}

func activeCity() *hub.City {
	return &hub.City{ID: 10, Status: hub.StatusActive, IsOperational: true}
}

func mondayHub() *hub.Hub {
	h := &hub.Hub{ID: 1, CityID: 10, Status: hub.StatusActive, Timezone: "America/Chicago"}
	h.Hours[time.Monday] = `[{"open":"09:00","close":"17:00"}]`
	return h
}

// monday returns 2026-03-02 (a Monday) at hh:mm in Chicago.
func monday(t *testing.T, hh, mm int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	return time.Date(2026, 3, 2, hh, mm, 0, 0, loc)
}

func TestEvaluate_AvailableScenario(t *testing.T) {
	d := Evaluate(activeCity(), mondayHub(), monday(t, 12, 0), DefaultClosingSoonCutoff)
	assert.True(t, d.CanOrder)
	assert.Equal(t, ReasonAvailable, d.Reason)
	assert.Equal(t, SourceHours, d.Source)
	assert.Equal(t, SeverityHard, d.Severity)
	assert.Nil(t, d.ReopenAt)
}

func TestEvaluate_ClosingSoonBoundary(t *testing.T) {
	tests := []struct {
		hh, mm int
		want   Reason
	}{
		{16, 44, ReasonAvailable},
		{16, 45, ReasonHubClosingSoon},
		{16, 59, ReasonHubClosingSoon},
		{17, 0, ReasonHubOutsideHours},
		{8, 59, ReasonHubOutsideHours},
		{9, 0, ReasonAvailable},
	}
	for _, tt := range tests {
		d := Evaluate(activeCity(), mondayHub(), monday(t, tt.hh, tt.mm), DefaultClosingSoonCutoff)
		assert.Equal(t, tt.want, d.Reason, "%02d:%02d", tt.hh, tt.mm)
		assert.Equal(t, tt.want == ReasonAvailable, d.CanOrder)
	}
}

func TestEvaluate_CascadeOrder(t *testing.T) {
	now := monday(t, 12, 0)

	city := activeCity()
	city.IsOperational = false
	city.Status = hub.StatusInactive
	h := mondayHub()
	h.Status = hub.StatusInactive
	assert.Equal(t, ReasonCityNotOperational, Evaluate(city, h, now, DefaultClosingSoonCutoff).Reason)

	city.IsOperational = true
	assert.Equal(t, ReasonCityInactive, Evaluate(city, h, now, DefaultClosingSoonCutoff).Reason)

	assert.Equal(t, ReasonCityInactive, Evaluate(nil, mondayHub(), now, DefaultClosingSoonCutoff).Reason)

	assert.Equal(t, ReasonHubInactive, Evaluate(activeCity(), h, now, DefaultClosingSoonCutoff).Reason)

	h = mondayHub()
	h.ClosureReason = "kitchen fire"
	d := Evaluate(activeCity(), h, now, DefaultClosingSoonCutoff)
	assert.Equal(t, ReasonHubClosedIndefinitely, d.Reason)
	assert.Equal(t, SourceHub, d.Source)
}

func TestEvaluate_TempClosure(t *testing.T) {
	now := monday(t, 12, 0)

	h := mondayHub()
	h.ClosureUntil = "2026-03-02 14:30:00"
	d := Evaluate(activeCity(), h, now, DefaultClosingSoonCutoff)
	assert.Equal(t, ReasonHubTempClosed, d.Reason)
	require.NotNil(t, d.ReopenAt)
	assert.Equal(t, "2026-03-02T14:30:00-06:00", *d.ReopenAt)

	h.ClosureUntil = "2026-03-02 12:00:00"
	assert.Equal(t, ReasonHubTempClosed, Evaluate(activeCity(), h, now, DefaultClosingSoonCutoff).Reason, "now equal to closure_until is still closed")

	h.ClosureUntil = "2026-03-02 11:00:00"
	assert.Equal(t, ReasonAvailable, Evaluate(activeCity(), h, now, DefaultClosingSoonCutoff).Reason)

	h.ClosureUntil = "garbage"
	assert.Equal(t, ReasonHubClosedIndefinitely, Evaluate(activeCity(), h, now, DefaultClosingSoonCutoff).Reason)
}

func TestEvaluate_Hours(t *testing.T) {
	now := monday(t, 12, 0)

	h := mondayHub()
	h.Hours[time.Monday] = `not json`
	assert.Equal(t, ReasonHubNoHoursSet, Evaluate(activeCity(), h, now, DefaultClosingSoonCutoff).Reason)

	h.Hours[time.Monday] = `[{"open":"20:00","close":"02:00"}]`
	assert.Equal(t, ReasonHubNoHoursSet, Evaluate(activeCity(), h, now, DefaultClosingSoonCutoff).Reason, "overnight rejected here")

	h.Hours[time.Monday] = `[{"open":"08:00","close":"11:00"},{"open":"13:00","close":"20:00"}]`
	d := Evaluate(activeCity(), h, now, DefaultClosingSoonCutoff)
	assert.Equal(t, ReasonHubOutsideHours, d.Reason)
	require.NotNil(t, d.ReopenAt)
	assert.Equal(t, "2026-03-02T13:00:00-06:00", *d.ReopenAt)
}

func TestEvaluate_BadTimezone(t *testing.T) {
	h := mondayHub()
	h.Timezone = ""
	assert.Equal(t, ReasonHubConfigurationError, Evaluate(activeCity(), h, monday(t, 12, 0), DefaultClosingSoonCutoff).Reason)
}

func TestEvaluate_UsesHubTimezone(t *testing.T) {
	// 18:00 UTC is 12:00 in Chicago on this date.
	now := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, ReasonAvailable, Evaluate(activeCity(), mondayHub(), now, DefaultClosingSoonCutoff).Reason)
}

func TestService_Decide(t *testing.T) {
	store := &fakeHubs{
		hubs:   map[int64]*hub.Hub{1: mondayHub()},
		cities: map[int64]*hub.City{10: activeCity()},
	}
	clock := func() time.Time { return monday(t, 12, 0) }
	svc := NewService(store, WithClock(clock))

	assert.Equal(t, ReasonAvailable, svc.Decide(context.Background(), 1).Reason)
	assert.Equal(t, ReasonHubInactive, svc.Decide(context.Background(), 0).Reason)
	assert.Equal(t, ReasonHubInactive, svc.Decide(context.Background(), 99).Reason)

	orphan := mondayHub()
	orphan.ID, orphan.CityID = 2, 77
	store.hubs[2] = orphan
	assert.Equal(t, ReasonCityInactive, svc.Decide(context.Background(), 2).Reason)

	store.err = errors.New("connection refused")
	assert.Equal(t, ReasonHubConfigurationError, svc.Decide(context.Background(), 1).Reason)

	store.err = nil
	store.panic = true
	d := svc.Decide(context.Background(), 1)
	assert.False(t, d.CanOrder)
	assert.Equal(t, ReasonHubConfigurationError, d.Reason)
}

func TestService_CustomCutoff(t *testing.T) {
	store := &fakeHubs{
		hubs:   map[int64]*hub.Hub{1: mondayHub()},
		cities: map[int64]*hub.City{10: activeCity()},
	}
	svc := NewService(store, WithCutoff(30*time.Minute), WithClock(func() time.Time { return monday(t, 16, 40) }))
	assert.Equal(t, ReasonHubClosingSoon, svc.Decide(context.Background(), 1).Reason)
}

func TestDecision_JSONKeys(t *testing.T) {
	raw, err := json.Marshal(Evaluate(activeCity(), mondayHub(), monday(t, 12, 0), DefaultClosingSoonCutoff))
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Len(t, m, 6)
	for _, k := range []string{"can_order", "reason", "message", "reopen_at", "source", "severity"} {
		assert.Contains(t, m, k)
	}
}

func TestBuildBlockResponse(t *testing.T) {
	d := Evaluate(activeCity(), mondayHub(), monday(t, 16, 50), DefaultClosingSoonCutoff)
	resp := BuildBlockResponse(d)
	assert.False(t, resp.Success)
	assert.False(t, resp.CanOrder)
	assert.False(t, resp.CanPlaceOrder)
	assert.Equal(t, "availability_block", resp.Error)
	assert.Equal(t, ReasonHubClosingSoon, resp.Reason)
	assert.Equal(t, d, resp.Availability)
}
