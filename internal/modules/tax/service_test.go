package tax

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"knx/internal/modules/hub"
)

type fakeHubs struct {
	hubs map[int64]*hub.Hub
	err  error
}

func (f fakeHubs) Hub(_ context.Context, id int64) (*hub.Hub, error) {
	if f.err != nil {
		return nil, f.err
	}
	if h, ok := f.hubs[id]; ok {
		return h, nil
	}
	return nil, hub.ErrNotFound
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCompute(t *testing.T) {
	h := &hub.Hub{ID: 3, Status: hub.StatusActive, TaxRate: dec("8.25")}

	r := Compute(dec("40.00"), h)
	assert.True(t, r.Applied)
	assert.True(t, r.Amount.Equal(dec("3.30")), r.Amount.String())
	assert.True(t, r.Rate.Equal(dec("8.25")))
	assert.Equal(t, SourceHubSetting, r.Source)
	assert.Equal(t, int64(3), r.HubID)

	// 10.01 * 8.25% = 0.825825 -> 0.83
	assert.True(t, Compute(dec("10.01"), h).Amount.Equal(dec("0.83")))

	assert.False(t, Compute(dec("0"), h).Applied)
	assert.False(t, Compute(dec("-5"), h).Applied)

	inactive := &hub.Hub{ID: 4, Status: hub.StatusInactive, TaxRate: dec("8.25")}
	assert.False(t, Compute(dec("40"), inactive).Applied)

	zeroRate := &hub.Hub{ID: 5, Status: hub.StatusActive}
	assert.False(t, Compute(dec("40"), zeroRate).Applied)
}

func TestService_Resolve(t *testing.T) {
	hubs := fakeHubs{hubs: map[int64]*hub.Hub{1: {ID: 1, Status: hub.StatusActive, TaxRate: dec("10")}}}
	s := NewService(hubs, nil)
	ctx := context.Background()

	assert.True(t, s.Resolve(ctx, dec("12.34"), 1).Amount.Equal(dec("1.23")))

	missing := s.Resolve(ctx, dec("12.34"), 2)
	assert.False(t, missing.Applied)
	assert.True(t, missing.Amount.IsZero())
	assert.Equal(t, int64(2), missing.HubID)

	hubs.err = errors.New("db down")
	s = NewService(hubs, nil)
	assert.False(t, s.Resolve(ctx, dec("12.34"), 1).Applied)
}

type panickingHubs struct{}

func (panickingHubs) Hub(context.Context, int64) (*hub.Hub, error) { panic("corrupt hub row") }

func TestResolve_PanicIsNotApplied(t *testing.T) {
	r := NewService(panickingHubs{}, nil).Resolve(context.Background(), dec("40"), 3)
	assert.False(t, r.Applied)
	assert.True(t, r.Amount.IsZero())
	assert.Equal(t, int64(3), r.HubID)
}
