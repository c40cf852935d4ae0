package payment

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knx/internal/infra/testdb"
	"knx/internal/modules/order"
	"knx/internal/modules/totals"
)

func snapshotJSON(t *testing.T, total string, locked bool) *string {
	t.Helper()
	snap := totals.Snapshot{Version: totals.SnapshotVersion, Total: decimal.RequireFromString(total), Currency: "usd"}
	if locked {
		snap = snap.Freeze()
	}
	b, err := json.Marshal(snap)
	require.NoError(t, err)
	s := string(b)
	return &s
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, CanTransition(StatusIntentCreated, StatusAuthorized))
	assert.True(t, CanTransition(StatusAuthorized, StatusPaid))
	for _, to := range []Status{StatusIntentCreated, StatusAuthorized, StatusPaid, StatusCancelled} {
		assert.False(t, CanTransition(StatusFailed, to), "failed -> %s", to)
	}
	assert.False(t, CanTransition(StatusPaid, StatusCancelled))
	assert.False(t, CanTransition(StatusCancelled, StatusPaid))
	assert.False(t, CanTransition(StatusAuthorized, StatusIntentCreated))

	assert.True(t, StatusPaid.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusFailed.Terminal())
	assert.True(t, StatusPaid.Active())
	assert.False(t, StatusFailed.Active())
	assert.False(t, Status("refunded").Valid())
}

func TestEvaluateCreate(t *testing.T) {
	placed := func(snap *string) *order.Order {
		return &order.Order{ID: 1, Status: order.StatusPlaced, TotalsSnapshot: snap}
	}
	tests := []struct {
		name      string
		order     *order.Order
		hasActive bool
		want      GuardReason
	}{
		{"missing order", nil, false, GuardOrderNotFound},
		{"confirmed order", &order.Order{Status: order.StatusConfirmed, TotalsSnapshot: snapshotJSON(t, "10", true)}, false, GuardOrderNotPlaced},
		{"unlocked snapshot", placed(snapshotJSON(t, "10", false)), false, GuardSnapshotNotLocked},
		{"no snapshot", placed(nil), false, GuardSnapshotNotLocked},
		{"active payment", placed(snapshotJSON(t, "10", true)), true, GuardActivePaymentExists},
		{"zero total", placed(snapshotJSON(t, "0", true)), false, GuardInvalidTotal},
		{"allowed", placed(snapshotJSON(t, "12.34", true)), false, GuardAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := EvaluateCreate(tt.order, tt.hasActive)
			assert.Equal(t, tt.want, g.Reason)
			assert.Equal(t, tt.want == GuardAllowed, g.Allowed)
			if g.Allowed {
				assert.Equal(t, int64(1234), g.Amount)
				assert.Equal(t, "usd", g.Currency)
			}
		})
	}
}

func seedOrder(t *testing.T, db *pgxpool.Pool, total string) int64 {
	t.Helper()
	var id int64
	require.NoError(t, db.QueryRow(context.Background(), `
		INSERT INTO orders (hub_id, session_token, status, totals_snapshot, cart_snapshot, total)
		VALUES (1, 'tok', 'placed', $1, '{"items":[]}', $2)
		RETURNING id`, *snapshotJSON(t, total, true), total,
	).Scan(&id))
	return id
}

func TestCreate_OneActivePaymentUnderConcurrency(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	svc := NewService(db, nil, nil)
	orderID := seedOrder(t, db, "25.90")

	const n = 5
	var wg sync.WaitGroup
	created := make(chan *Payment, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, g, err := svc.Create(ctx, CreateCommand{OrderID: orderID, Provider: "stripe"})
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			if p == nil {
				assert.Equal(t, GuardActivePaymentExists, g.Reason)
				return
			}
			created <- p
		}()
	}
	wg.Wait()
	close(created)

	var got []*Payment
	for p := range created {
		got = append(got, p)
	}
	require.Len(t, got, 1)
	assert.Equal(t, int64(2590), got[0].Amount)
	assert.Equal(t, StatusIntentCreated, got[0].Status)
	assert.NotEmpty(t, got[0].IdempotencyKey)

	// A failed payment frees the order for a retry.
	_, err := svc.UpdateStatus(ctx, got[0].ID, StatusFailed)
	require.NoError(t, err)
	assert.True(t, svc.CanCreatePaymentForOrder(ctx, orderID).Allowed)
}

func TestUpdateStatus_TerminalIsFinal(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	svc := NewService(db, nil, nil)
	p, _, err := svc.Create(ctx, CreateCommand{OrderID: seedOrder(t, db, "10"), Provider: "stripe"})
	require.NoError(t, err)
	require.NotNil(t, p)

	_, err = svc.UpdateStatus(ctx, p.ID, StatusPaid)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, p.ID, StatusPaid)
	assert.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, p.ID, StatusCancelled)
	assert.ErrorIs(t, err, ErrTerminal)
	_, err = svc.UpdateStatus(ctx, p.ID, "refunded")
	assert.ErrorIs(t, err, ErrBadRequest)
	_, err = svc.UpdateStatus(ctx, 999999, StatusPaid)
	assert.ErrorIs(t, err, ErrNotFound)

	retry, _, err := svc.Create(ctx, CreateCommand{OrderID: seedOrder(t, db, "12"), Provider: "stripe"})
	require.NoError(t, err)
	require.NotNil(t, retry)
	_, err = svc.UpdateStatus(ctx, retry.ID, StatusFailed)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, retry.ID, StatusPaid)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = svc.UpdateStatus(ctx, retry.ID, StatusAuthorized)
	assert.ErrorIs(t, err, ErrInvalidState)
	got, err := svc.Get(ctx, retry.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
}

func TestWebhook_LateSuccessLeavesFailedRow(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	svc := NewService(db, nil, nil)
	orderID := seedOrder(t, db, "18")

	first, _, err := svc.Create(ctx, CreateCommand{OrderID: orderID, Provider: "stripe", ProviderIntentID: "pi_old"})
	require.NoError(t, err)
	require.NotNil(t, first)
	_, err = svc.UpdateStatus(ctx, first.ID, StatusFailed)
	require.NoError(t, err)

	second, _, err := svc.Create(ctx, CreateCommand{OrderID: orderID, Provider: "stripe", ProviderIntentID: "pi_new"})
	require.NoError(t, err)
	require.NotNil(t, second)

	out, err := svc.RecordWebhook(ctx, WebhookEvent{Provider: "stripe", EventID: "evt_late", ProviderIntentID: "pi_old", Status: StatusPaid})
	require.NoError(t, err)
	assert.Equal(t, WebhookApplied, out)

	got, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)

	all, err := svc.ListByOrder(ctx, orderID)
	require.NoError(t, err)
	active := 0
	for _, p := range all {
		if p.Status.Active() {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestWebhook_DeferredThenReconciled(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	svc := NewService(db, nil, nil)

	ev := WebhookEvent{Provider: "stripe", EventID: "evt_1", ProviderIntentID: "pi_1", Status: StatusAuthorized}
	out, err := svc.RecordWebhook(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, WebhookDeferred, out)

	out, err = svc.RecordWebhook(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, WebhookDuplicate, out)

	out, err = svc.RecordWebhook(ctx, WebhookEvent{Provider: "stripe", EventID: "evt_2", ProviderIntentID: "pi_1", Status: StatusPaid})
	require.NoError(t, err)
	assert.Equal(t, WebhookDeferred, out)

	p, _, err := svc.Create(ctx, CreateCommand{OrderID: seedOrder(t, db, "10"), Provider: "stripe", ProviderIntentID: "pi_1"})
	require.NoError(t, err)
	require.NotNil(t, p)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, got.Status)

	n, err := svc.ReconcileDeferredWebhookForIntent(ctx, "pi_1")
	require.NoError(t, err)
	assert.Zero(t, n)

	out, err = svc.RecordWebhook(ctx, WebhookEvent{Provider: "stripe", EventID: "evt_3", ProviderIntentID: "pi_1", Status: StatusFailed})
	require.NoError(t, err)
	assert.Equal(t, WebhookApplied, out)
	got, err = svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, got.Status)
}

func TestWebhook_AttachIntentReplays(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	svc := NewService(db, nil, nil)

	p, _, err := svc.Create(ctx, CreateCommand{OrderID: seedOrder(t, db, "10"), Provider: "stripe"})
	require.NoError(t, err)
	_, err = svc.RecordWebhook(ctx, WebhookEvent{Provider: "stripe", EventID: "evt_a", ProviderIntentID: "pi_a", Status: StatusCancelled})
	require.NoError(t, err)

	require.NoError(t, svc.AttachIntent(ctx, p.ID, "pi_a"))
	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.ErrorIs(t, svc.AttachIntent(ctx, p.ID, "pi_other"), ErrInvalidState)
}
