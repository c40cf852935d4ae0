// README: Read-only guards over placed orders; snapshots are the only source of truth after creation.
package order

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"knx/internal/modules/cart"
	"knx/internal/modules/totals"
)

type CanonicalReason string

const (
	ReasonCanonical             CanonicalReason = "CANONICAL"
	ReasonOrderNotFound         CanonicalReason = "ORDER_NOT_FOUND"
	ReasonOrderLookupFailed     CanonicalReason = "ORDER_LOOKUP_FAILED"
	ReasonTotalsSnapshotMissing CanonicalReason = "TOTALS_SNAPSHOT_MISSING"
	ReasonTotalsSnapshotInvalid CanonicalReason = "TOTALS_SNAPSHOT_INVALID"
	ReasonCartSnapshotMissing   CanonicalReason = "CART_SNAPSHOT_MISSING"
	ReasonCartSnapshotInvalid   CanonicalReason = "CART_SNAPSHOT_INVALID"
	ReasonSnapshotNotLocked     CanonicalReason = "SNAPSHOT_NOT_LOCKED"
	ReasonCartNotDetached       CanonicalReason = "CART_NOT_DETACHED"
	ReasonCartNotConverted      CanonicalReason = "CART_NOT_CONVERTED"
	ReasonCartLookupFailed      CanonicalReason = "CART_LOOKUP_FAILED"
	ReasonModifiable            CanonicalReason = "MODIFIABLE"
	ReasonOrderNotModifiable    CanonicalReason = "ORDER_NOT_MODIFIABLE"
)

type CanonicalState struct {
	Valid  bool            `json:"valid"`
	Reason CanonicalReason `json:"reason"`
}

type ModifyDecision struct {
	Allowed bool            `json:"allowed"`
	Reason  CanonicalReason `json:"reason"`
	Status  Status          `json:"status,omitempty"`
}

var (
	ErrSnapshotMissing = errors.New("order snapshot missing")
	ErrSnapshotInvalid = errors.New("order snapshot invalid")
)

func notCanonical(r CanonicalReason) CanonicalState { return CanonicalState{Reason: r} }

// EvaluateCanonicalState checks a loaded order against its cart. c is nil when
// the cart row no longer exists.
func EvaluateCanonicalState(o *Order, c *cart.Cart) CanonicalState {
	if o == nil {
		return notCanonical(ReasonOrderNotFound)
	}
	if blank(o.TotalsSnapshot) {
		return notCanonical(ReasonTotalsSnapshotMissing)
	}
	var markers map[string]json.RawMessage
	if err := json.Unmarshal([]byte(*o.TotalsSnapshot), &markers); err != nil || markers == nil {
		return notCanonical(ReasonTotalsSnapshotInvalid)
	}
	if blank(o.CartSnapshot) {
		return notCanonical(ReasonCartSnapshotMissing)
	}
	var cs CartSnapshot
	if err := json.Unmarshal([]byte(*o.CartSnapshot), &cs); err != nil {
		return notCanonical(ReasonCartSnapshotInvalid)
	}
	if !isTrue(markers["is_snapshot_locked"]) {
		return notCanonical(ReasonSnapshotNotLocked)
	}
	if !isTrue(markers["is_cart_detached"]) {
		return notCanonical(ReasonCartNotDetached)
	}
	if c != nil && c.Status != cart.StatusConverted {
		return notCanonical(ReasonCartNotConverted)
	}
	return CanonicalState{Valid: true, Reason: ReasonCanonical}
}

// isTrue accepts only a JSON boolean true.
func isTrue(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("true"))
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

// TotalsFromSnapshot decodes the frozen totals. It never consults live data.
func TotalsFromSnapshot(o *Order) (totals.Snapshot, error) {
	var snap totals.Snapshot
	if o == nil || blank(o.TotalsSnapshot) {
		return snap, ErrSnapshotMissing
	}
	if err := json.Unmarshal([]byte(*o.TotalsSnapshot), &snap); err != nil {
		return totals.Snapshot{}, errors.Join(ErrSnapshotInvalid, err)
	}
	return snap, nil
}

// ItemsFromSnapshot decodes the frozen cart items.
func ItemsFromSnapshot(o *Order) ([]cart.Item, error) {
	if o == nil || blank(o.CartSnapshot) {
		return nil, ErrSnapshotMissing
	}
	var cs CartSnapshot
	if err := json.Unmarshal([]byte(*o.CartSnapshot), &cs); err != nil {
		return nil, errors.Join(ErrSnapshotInvalid, err)
	}
	return cs.Items, nil
}

// CanModify allows edits only while the order is placed.
func CanModify(o *Order) ModifyDecision {
	if o == nil {
		return ModifyDecision{Reason: ReasonOrderNotFound}
	}
	if o.Status != StatusPlaced {
		return ModifyDecision{Reason: ReasonOrderNotModifiable, Status: o.Status}
	}
	return ModifyDecision{Allowed: true, Reason: ReasonModifiable, Status: o.Status}
}
