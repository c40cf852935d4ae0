package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"knx/internal/http/handlers"
	"knx/internal/maps"
	"knx/internal/maps/mocks"
	"knx/internal/modules/coverage"
	"knx/internal/modules/distance"
	"knx/internal/modules/geo"
	"knx/internal/modules/pricing"
	"knx/internal/modules/totals"
	"knx/internal/types"
)

type recordingCoverage struct {
	got  types.Point
	zone *int64
}

func (r *recordingCoverage) Check(_ context.Context, _ int64, p types.Point) coverage.Result {
	r.got = p
	return coverage.Result{OK: true, ZoneID: r.zone, Reason: coverage.ReasonDeliverable}
}

type fixedDistance struct{ res distance.Result }

func (f fixedDistance) Calculate(context.Context, int64, types.Point) distance.Result { return f.res }

type recordingFees struct {
	calls int
	req   pricing.FeeRequest
}

func (r *recordingFees) Calculate(_ context.Context, req pricing.FeeRequest) pricing.FeeResult {
	r.calls++
	r.req = req
	return pricing.FeeResult{OK: true, Reason: pricing.ReasonFeeCalculated}
}

type recordingQuotes struct{ got totals.QuoteParams }

func (r *recordingQuotes) Quote(_ context.Context, p totals.QuoteParams) totals.QuoteResult {
	r.got = p
	return totals.QuoteResult{Success: true}
}

type failingQuotes struct{}

func (failingQuotes) Quote(context.Context, totals.QuoteParams) totals.QuoteResult {
	return totals.QuoteResult{Error: totals.ErrMinOrderNotMet}
}

type zoneEditorFunc func(ctx context.Context, id int64, raw []byte) error

func (f zoneEditorFunc) UpdatePolygon(ctx context.Context, id int64, raw []byte) error {
	return f(ctx, id, raw)
}

func deliveryRouter(deps handlers.DeliveryDeps) *gin.Engine {
	r := newEngine()
	h := handlers.NewDeliveryHandler(deps, nil)
	r.POST("/api/coverage/check", h.CheckCoverage)
	r.GET("/api/distance", h.Distance)
	r.POST("/api/delivery-fee", h.DeliveryFee)
	r.POST("/api/quote", h.Quote)
	r.PUT("/api/zones/:id/polygon", h.UpdateZonePolygon)
	return r
}

func TestCoverage_GeocodesAddressWhenNoCoordinates(t *testing.T) {
	ctrl := gomock.NewController(t)
	geocoder := mocks.NewMockGeocoder(ctrl)
	geocoder.EXPECT().
		Geocode(gomock.Any(), "350 5th Ave, New York").
		Return(types.Point{Lat: 40.7484, Lng: -73.9857}, nil)

	cov := &recordingCoverage{}
	r := deliveryRouter(handlers.DeliveryDeps{Coverage: cov, Geocoder: geocoder})

	w := do(r, http.MethodPost, "/api/coverage/check", map[string]any{
		"hub_id":  7,
		"address": "350 5th Ave, New York",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, types.Point{Lat: 40.7484, Lng: -73.9857}, cov.got)
	assert.Equal(t, "DELIVERABLE", decode(t, w)["reason"])
}

func TestCoverage_CoordinatesSkipGeocoding(t *testing.T) {
	ctrl := gomock.NewController(t)
	geocoder := mocks.NewMockGeocoder(ctrl) // no calls expected

	cov := &recordingCoverage{}
	r := deliveryRouter(handlers.DeliveryDeps{Coverage: cov, Geocoder: geocoder})

	w := do(r, http.MethodPost, "/api/coverage/check", map[string]any{
		"hub_id":  7,
		"lat":     40.7,
		"lng":     -74.0,
		"address": "ignored",
	}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, types.Point{Lat: 40.7, Lng: -74.0}, cov.got)
}

func TestCoverage_GeocoderErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"no match", maps.ErrNoResult, http.StatusUnprocessableEntity},
		{"upstream down", errors.New("maps api error: timeout"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			geocoder := mocks.NewMockGeocoder(ctrl)
			geocoder.EXPECT().Geocode(gomock.Any(), gomock.Any()).Return(types.Point{}, tc.err)

			r := deliveryRouter(handlers.DeliveryDeps{Coverage: &recordingCoverage{}, Geocoder: geocoder})
			w := do(r, http.MethodPost, "/api/coverage/check", map[string]any{"hub_id": 1, "address": "nowhere"}, "")
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestCoverage_RequiresLocation(t *testing.T) {
	r := deliveryRouter(handlers.DeliveryDeps{Coverage: &recordingCoverage{}})
	w := do(r, http.MethodPost, "/api/coverage/check", map[string]any{"hub_id": 1}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/coverage/check", map[string]any{"hub_id": 1, "lat": 95.0, "lng": 0.0}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDistance_ReadsQuery(t *testing.T) {
	r := deliveryRouter(handlers.DeliveryDeps{
		Distance: fixedDistance{res: distance.Result{OK: true, DistanceKm: 3.2, DistanceMi: 1.99, ETAMinutes: 25, Reason: distance.ReasonOK}},
	})
	w := do(r, http.MethodGet, "/api/distance?hub_id=3&lat=40.7&lng=-74", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, 3.2, body["distance_km"])
	assert.Equal(t, float64(25), body["eta_minutes"])

	w = do(r, http.MethodGet, "/api/distance?lat=40.7&lng=-74", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeliveryFee_SkipsPricingWhenDistanceFails(t *testing.T) {
	fees := &recordingFees{}
	r := deliveryRouter(handlers.DeliveryDeps{
		Distance: fixedDistance{res: distance.Result{Reason: distance.ReasonMissingHubCoords}},
		Fees:     fees,
	})
	w := do(r, http.MethodPost, "/api/delivery-fee", map[string]any{"hub_id": 2, "lat": 40.0, "lng": -74.0, "subtotal": "20.00"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, fees.calls)
	dist := decode(t, w)["distance"].(map[string]any)
	assert.Equal(t, "MISSING_HUB_COORDS", dist["reason"])
}

func TestDeliveryFee_PricesMatchedZoneNotRequested(t *testing.T) {
	matched := int64(9)
	fees := &recordingFees{}
	r := deliveryRouter(handlers.DeliveryDeps{
		Coverage: &recordingCoverage{zone: &matched},
		Distance: fixedDistance{res: distance.Result{OK: true, DistanceKm: 4.5, Reason: distance.ReasonOK}},
		Fees:     fees,
	})
	w := do(r, http.MethodPost, "/api/delivery-fee", map[string]any{"hub_id": 2, "zone_id": 20, "lat": 40.0, "lng": -74.0, "subtotal": "20.00"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, fees.calls)
	assert.Equal(t, 4.5, fees.req.DistanceKm)
	assert.Equal(t, matched, fees.req.ZoneID)
	assert.Equal(t, "20", fees.req.Subtotal.String())
}

func TestQuote_ZoneComesFromCoverage(t *testing.T) {
	matched := int64(10)
	quotes := &recordingQuotes{}
	r := deliveryRouter(handlers.DeliveryDeps{Coverage: &recordingCoverage{zone: &matched}, Quotes: quotes})

	w := do(r, http.MethodPost, "/api/quote", map[string]any{
		"hub_id": 1, "subtotal": "30.00", "fulfillment_type": "delivery", "zone_id": 20,
		"customer": map[string]float64{"lat": 40.7, "lng": -74.0},
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, matched, quotes.got.ZoneID)

	w = do(r, http.MethodPost, "/api/quote", map[string]any{
		"hub_id": 1, "subtotal": "30.00", "fulfillment_type": "pickup", "zone_id": 20,
	}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, quotes.got.ZoneID)
}

func TestQuote_FailureIs422(t *testing.T) {
	r := deliveryRouter(handlers.DeliveryDeps{Quotes: failingQuotes{}})
	w := do(r, http.MethodPost, "/api/quote", map[string]any{
		"hub_id": 1, "subtotal": "5.00", "fulfillment_type": "pickup",
	}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, totals.ErrMinOrderNotMet, decode(t, w)["error"])
}

func TestUpdateZonePolygon_MapsErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusNoContent},
		{"unknown zone", coverage.ErrZoneNotFound, http.StatusNotFound},
		{"bad polygon", &geo.ParseError{Reason: geo.ReasonTooFewPoints}, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var gotRaw string
			r := deliveryRouter(handlers.DeliveryDeps{Zones: zoneEditorFunc(func(_ context.Context, _ int64, raw []byte) error {
				gotRaw = string(raw)
				return tc.err
			})})
			w := do(r, http.MethodPut, "/api/zones/5/polygon", `{"type":"Polygon","coordinates":[]}`, "")
			assert.Equal(t, tc.want, w.Code)
			assert.Equal(t, `{"type":"Polygon","coordinates":[]}`, gotRaw)
		})
	}
}
