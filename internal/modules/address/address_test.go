package address

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knx/internal/infra/testdb"
	"knx/internal/types"
)

func TestSetDefault_SingleDefaultUnderConcurrency(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	svc := NewService(db)

	var ids []int64
	for _, line := range []string{"1 Main St", "2 Oak Ave", "3 Elm Rd", "4 Pine Ln"} {
		a := &Address{CustomerID: "cust-1", Line1: line, Location: types.Point{Lat: 41.12, Lng: -87.86}}
		require.NoError(t, svc.Create(ctx, a))
		ids = append(ids, a.ID)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, svc.SetDefault(ctx, "cust-1", ids[i%len(ids)]))
		}(i)
	}
	wg.Wait()

	var defaults int
	require.NoError(t, db.QueryRow(ctx,
		`SELECT COUNT(*) FROM customer_addresses WHERE customer_id = 'cust-1' AND is_default`).Scan(&defaults))
	assert.Equal(t, 1, defaults)

	require.NoError(t, svc.SetDefault(ctx, "cust-1", ids[2]))
	d, err := svc.Default(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, ids[2], d.ID)

	list, err := svc.List(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, ids[2], list[0].ID)
}

func TestSetDefault_RejectsForeignAddress(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	svc := NewService(db)

	a := &Address{CustomerID: "cust-a", Line1: "1 Main St"}
	require.NoError(t, svc.Create(ctx, a))

	assert.ErrorIs(t, svc.SetDefault(ctx, "cust-b", a.ID), ErrNotFound)
	assert.ErrorIs(t, svc.SetDefault(ctx, "", a.ID), ErrBadRequest)
	_, err := svc.Default(ctx, "cust-a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Create(ctx, &Address{CustomerID: "cust-a", Line1: "x", Location: types.Point{Lat: 95, Lng: 10}}), ErrBadRequest)
}
