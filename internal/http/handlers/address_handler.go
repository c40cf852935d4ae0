package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	httpmiddleware "knx/internal/http/middleware"
	"knx/internal/maps"
	"knx/internal/modules/address"
	"knx/internal/types"
)

type AddressService interface {
	Create(ctx context.Context, a *address.Address) error
	List(ctx context.Context, customerID string) ([]address.Address, error)
	SetDefault(ctx context.Context, customerID string, addressID int64) error
}

type AddressHandler struct {
	addresses AddressService
	geocoder  maps.Geocoder
}

func NewAddressHandler(addresses AddressService, geocoder maps.Geocoder) *AddressHandler {
	if geocoder == nil {
		geocoder = maps.Disabled{}
	}
	return &AddressHandler{addresses: addresses, geocoder: geocoder}
}

// customer resolves the :id path segment; "me" is the caller. Only admins may
// act for another customer.
func customer(c *gin.Context) (string, bool) {
	id := c.Param("id")
	uid := httpmiddleware.CallerUID(c)
	if id == "me" {
		id = uid
	}
	if id == "" || (id != uid && !httpmiddleware.IsAdmin(c)) {
		writeError(c, http.StatusForbidden, "forbidden")
		return "", false
	}
	return id, true
}

func (h *AddressHandler) List(c *gin.Context) {
	id, ok := customer(c)
	if !ok {
		return
	}
	out, err := h.addresses.List(c.Request.Context(), id)
	if err != nil {
		writeAddressError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"addresses": out})
}

type addressReq struct {
	Label string   `json:"label"`
	Line1 string   `json:"line1" binding:"required"`
	Lat   *float64 `json:"lat"`
	Lng   *float64 `json:"lng"`
}

// Create stores an address. Without coordinates the line is geocoded; a
// failed lookup still saves the address without a location.
func (h *AddressHandler) Create(c *gin.Context) {
	id, ok := customer(c)
	if !ok {
		return
	}
	var req addressReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	a := &address.Address{CustomerID: id, Label: req.Label, Line1: req.Line1}
	if req.Lat != nil && req.Lng != nil {
		a.Location = types.Point{Lat: *req.Lat, Lng: *req.Lng}
	} else if p, err := h.geocoder.Geocode(c.Request.Context(), req.Line1); err == nil {
		a.Location = p
	} else {
		_ = c.Error(err)
	}
	if err := h.addresses.Create(c.Request.Context(), a); err != nil {
		writeAddressError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, a)
}

func (h *AddressHandler) SetDefault(c *gin.Context) {
	id, ok := customer(c)
	if !ok {
		return
	}
	aid, ok := pathID(c, "aid")
	if !ok {
		return
	}
	if err := h.addresses.SetDefault(c.Request.Context(), id, aid); err != nil {
		writeAddressError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
