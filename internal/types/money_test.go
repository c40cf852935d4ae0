package types

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestToCentsRoundsHalfUp(t *testing.T) {
	assert.Equal(t, int64(1235), ToCents(decimal.RequireFromString("12.345")))
	assert.Equal(t, int64(0), ToCents(decimal.Zero))
	assert.True(t, FromCents(1999).Equal(decimal.RequireFromString("19.99")))
}

func TestClampAndFloor(t *testing.T) {
	lo := decimal.NewFromInt(5)
	hi := decimal.NewFromInt(20)
	assert.True(t, Clamp(decimal.NewFromInt(2), lo, hi).Equal(lo))
	assert.True(t, Clamp(decimal.NewFromInt(50), lo, hi).Equal(hi))
	assert.True(t, FloorZero(decimal.NewFromInt(-3)).IsZero())
}

func TestDecimalMarshalsAsNumber(t *testing.T) {
	b, err := json.Marshal(map[string]decimal.Decimal{"fee": decimal.RequireFromString("5.25")})
	assert.NoError(t, err)
	assert.JSONEq(t, `{"fee":5.25}`, string(b))
}

func TestPointMissing(t *testing.T) {
	assert.True(t, Point{}.Missing())
	assert.True(t, Point{Lat: 41.1, Lng: 0}.Missing())
	assert.False(t, Point{Lat: 41.1, Lng: -87.8}.Missing())
	assert.False(t, Point{Lat: 91, Lng: 0}.InRange())
}
