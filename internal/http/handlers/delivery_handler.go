// README: Delivery handlers: coverage, distance, fee and quote previews, plus zone geometry edits.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"knx/internal/maps"
	"knx/internal/modules/coverage"
	"knx/internal/modules/distance"
	"knx/internal/modules/pricing"
	"knx/internal/modules/totals"
	"knx/internal/types"
)

type CoverageChecker interface {
	Check(ctx context.Context, hubID int64, p types.Point) coverage.Result
}

type DistanceCalculator interface {
	Calculate(ctx context.Context, hubID int64, customer types.Point) distance.Result
}

type FeeCalculator interface {
	Calculate(ctx context.Context, req pricing.FeeRequest) pricing.FeeResult
}

type Quoter interface {
	Quote(ctx context.Context, p totals.QuoteParams) totals.QuoteResult
}

type ZoneEditor interface {
	UpdatePolygon(ctx context.Context, zoneID int64, raw []byte) error
}

type DeliveryDeps struct {
	Coverage CoverageChecker
	Distance DistanceCalculator
	Fees     FeeCalculator
	Quotes   Quoter
	Zones    ZoneEditor
	Geocoder maps.Geocoder
}

type DeliveryHandler struct {
	deps DeliveryDeps
	log  *zap.Logger
}

func NewDeliveryHandler(deps DeliveryDeps, log *zap.Logger) *DeliveryHandler {
	if deps.Geocoder == nil {
		deps.Geocoder = maps.Disabled{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DeliveryHandler{deps: deps, log: log}
}

// locationReq is a customer location given either as coordinates or as a
// free-form address to geocode.
type locationReq struct {
	HubID   int64    `json:"hub_id" form:"hub_id" binding:"required,gt=0"`
	Lat     *float64 `json:"lat" form:"lat"`
	Lng     *float64 `json:"lng" form:"lng"`
	Address string   `json:"address" form:"address" binding:"max=512"`
}

// resolvePoint prefers explicit coordinates and falls back to geocoding.
// It writes the error response itself and returns ok=false on failure.
func (h *DeliveryHandler) resolvePoint(c *gin.Context, lat, lng *float64, address string) (types.Point, bool) {
	if lat != nil && lng != nil {
		p := types.Point{Lat: *lat, Lng: *lng}
		if !p.InRange() {
			writeError(c, http.StatusBadRequest, "coordinates out of range")
			return types.Point{}, false
		}
		return p, true
	}
	address = strings.TrimSpace(address)
	if address == "" {
		writeError(c, http.StatusBadRequest, "lat/lng or address required")
		return types.Point{}, false
	}
	p, err := h.deps.Geocoder.Geocode(c.Request.Context(), address)
	switch {
	case errors.Is(err, maps.ErrNoResult):
		writeError(c, http.StatusUnprocessableEntity, "address not found")
		return types.Point{}, false
	case err != nil:
		_ = c.Error(err)
		h.log.Warn("geocode", zap.Error(err))
		writeError(c, http.StatusBadGateway, "geocoding unavailable")
		return types.Point{}, false
	}
	return p, true
}

func (h *DeliveryHandler) CheckCoverage(c *gin.Context) {
	var req locationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	p, ok := h.resolvePoint(c, req.Lat, req.Lng, req.Address)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, h.deps.Coverage.Check(c.Request.Context(), req.HubID, p))
}

func (h *DeliveryHandler) Distance(c *gin.Context) {
	var req locationReq
	if err := c.ShouldBindQuery(&req); err != nil {
		writeError(c, http.StatusBadRequest, "hub_id is required")
		return
	}
	p, ok := h.resolvePoint(c, req.Lat, req.Lng, req.Address)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, h.deps.Distance.Calculate(c.Request.Context(), req.HubID, p))
}

type feeReq struct {
	locationReq
	Subtotal decimal.Decimal `json:"subtotal"`
}

type feeResp struct {
	Distance distance.Result   `json:"distance"`
	Fee      pricing.FeeResult `json:"fee"`
}

// DeliveryFee previews the fee for a location. The fee is only computed
// when the distance could be measured, and zone rules only apply to the
// zone coverage matched for the point.
func (h *DeliveryHandler) DeliveryFee(c *gin.Context) {
	var req feeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	p, ok := h.resolvePoint(c, req.Lat, req.Lng, req.Address)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	dist := h.deps.Distance.Calculate(ctx, req.HubID, p)
	if !dist.OK {
		writeJSON(c, http.StatusOK, feeResp{Distance: dist, Fee: pricing.FeeResult{Reason: pricing.ReasonInvalidInput}})
		return
	}
	fee := h.deps.Fees.Calculate(ctx, pricing.FeeRequest{
		HubID:      req.HubID,
		ZoneID:     h.pricedZone(ctx, req.HubID, p),
		DistanceKm: dist.DistanceKm,
		Subtotal:   req.Subtotal,
	})
	writeJSON(c, http.StatusOK, feeResp{Distance: dist, Fee: fee})
}

func (h *DeliveryHandler) pricedZone(ctx context.Context, hubID int64, p types.Point) int64 {
	if h.deps.Coverage == nil {
		return 0
	}
	return h.deps.Coverage.Check(ctx, hubID, p).PricedZone()
}

type quoteReq struct {
	totals.QuoteParams
	Address string `json:"address" binding:"max=512"`
}

func (h *DeliveryHandler) Quote(c *gin.Context) {
	var req quoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	params := req.QuoteParams
	if params.FulfillmentType == totals.FulfillmentDelivery && params.Customer.Missing() && req.Address != "" {
		p, ok := h.resolvePoint(c, nil, nil, req.Address)
		if !ok {
			return
		}
		params.Customer = p
	}
	params.ZoneID = 0
	if params.FulfillmentType == totals.FulfillmentDelivery && !params.Customer.Missing() {
		params.ZoneID = h.pricedZone(c.Request.Context(), params.HubID, params.Customer)
	}
	res := h.deps.Quotes.Quote(c.Request.Context(), params)
	if !res.Success {
		writeJSON(c, http.StatusUnprocessableEntity, res)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

// UpdateZonePolygon stores a new polygon after parsing it with the same
// parser coverage uses at read time.
func (h *DeliveryHandler) UpdateZonePolygon(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		writeError(c, http.StatusBadRequest, "unreadable body")
		return
	}
	if err := h.deps.Zones.UpdatePolygon(c.Request.Context(), id, raw); err != nil {
		writeHubError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
