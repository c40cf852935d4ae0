// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"knx/internal/modules/address"
	"knx/internal/modules/cart"
	"knx/internal/modules/coverage"
	"knx/internal/modules/geo"
	"knx/internal/modules/hours"
	"knx/internal/modules/hub"
	"knx/internal/modules/order"
	"knx/internal/modules/payment"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// pathID parses a positive integer path parameter.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func writeOrderError(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, order.ErrBadRequest), errors.Is(err, cart.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrNotFound), errors.Is(err, cart.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrInvalidState), errors.Is(err, order.ErrConflict), errors.Is(err, cart.ErrConverted):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writePaymentError(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, payment.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, payment.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, payment.ErrTerminal), errors.Is(err, payment.ErrInvalidState):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeHubError(c *gin.Context, err error) {
	_ = c.Error(err)
	var (
		hoursErr *hours.ValidationError
		polyErr  *geo.ParseError
	)
	switch {
	case errors.Is(err, hub.ErrNotFound), errors.Is(err, coverage.ErrZoneNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, hub.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.As(err, &hoursErr), errors.As(err, &polyErr):
		writeError(c, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeAddressError(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, address.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, address.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
