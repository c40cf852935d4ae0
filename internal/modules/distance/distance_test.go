package distance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"knx/internal/modules/hub"
	"knx/internal/types"
)

func f(v float64) *float64 { return &v }

type fakeHubs map[int64]*hub.Hub

func (f fakeHubs) Hub(_ context.Context, id int64) (*hub.Hub, error) {
	if h, ok := f[id]; ok {
		return h, nil
	}
	return nil, hub.ErrNotFound
}

func TestEstimateETA(t *testing.T) {
	tests := []struct {
		km      float64
		traffic float64
		want    int
	}{
		{0, 1.2, 15},
		// 15 + 1/30*60*1.2 = 17.4 -> 20
		{1, 1.2, 20},
		// 15 + 10/30*60*1.2 = 39 -> 40
		{10, 1.2, 40},
		// 15 + 6/30*60*1.0 = 27 -> 30
		{6, 1.0, 30},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EstimateETA(tt.km, tt.traffic), "km=%v traffic=%v", tt.km, tt.traffic)
	}
}

func TestETAPolicy_Overrides(t *testing.T) {
	p := ETAPolicy{PrepMinutes: 10, SpeedKmh: 60, TrafficFactor: 1, RoundTo: 10}
	// 10 + 30/60*60 = 40
	assert.Equal(t, 40, p.Estimate(30))
	// 10 + 31/60*60 = 41 -> 50
	assert.Equal(t, 50, p.Estimate(31))
}

func TestService_Calculate(t *testing.T) {
	hubs := fakeHubs{
		1: {ID: 1, Lat: f(41.1179), Lng: f(-87.8656)},
		2: {ID: 2},
	}
	svc := NewService(hubs, DefaultETAPolicy(), nil)
	ctx := context.Background()

	res := svc.Calculate(ctx, 1, types.Point{Lat: 41.1179, Lng: -87.8656})
	assert.True(t, res.OK)
	assert.Equal(t, 0.0, res.DistanceKm)
	assert.Equal(t, 0.0, res.DistanceMi)
	assert.Equal(t, 15, res.ETAMinutes)

	res = svc.Calculate(ctx, 1, types.Point{Lat: 41.8781, Lng: -87.6298})
	assert.True(t, res.OK)
	assert.InDelta(t, 86.5, res.DistanceKm, 1.0)
	assert.InDelta(t, res.DistanceKm/1.609, res.DistanceMi, 0.5)

	assert.Equal(t, ReasonInvalidHubID, svc.Calculate(ctx, -1, types.Point{Lat: 1, Lng: 1}).Reason)
	assert.Equal(t, ReasonMissingCustomerCoords, svc.Calculate(ctx, 1, types.Point{}).Reason)
	assert.Equal(t, ReasonHubNotFound, svc.Calculate(ctx, 3, types.Point{Lat: 1, Lng: 1}).Reason)
	assert.Equal(t, ReasonMissingHubCoords, svc.Calculate(ctx, 2, types.Point{Lat: 1, Lng: 1}).Reason)
}

type panickingHubs struct{}

func (panickingHubs) Hub(context.Context, int64) (*hub.Hub, error) { panic("corrupt hub row") }

func TestCalculate_PanicFailsClosed(t *testing.T) {
	s := NewService(panickingHubs{}, DefaultETAPolicy(), nil)
	res := s.Calculate(context.Background(), 1, types.Point{Lat: 41.1, Lng: -87.8})
	assert.False(t, res.OK)
	assert.Equal(t, ReasonInternalError, res.Reason)
}
