package pricing

import (
	"context"
	"testing"

	"knx/internal/infra/testdb"
)

func TestStore_ResolveRulePriority(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()

	var cityID, hubID, zoneID int64
	if err := db.QueryRow(ctx, `INSERT INTO cities (name) VALUES ('c') RETURNING id`).Scan(&cityID); err != nil {
		t.Fatalf("insert city: %v", err)
	}
	if err := db.QueryRow(ctx, `INSERT INTO hubs (city_id, name) VALUES ($1, 'h') RETURNING id`, cityID).Scan(&hubID); err != nil {
		t.Fatalf("insert hub: %v", err)
	}
	if err := db.QueryRow(ctx, `INSERT INTO delivery_zones (hub_id, zone_name) VALUES ($1, 'z') RETURNING id`, hubID).Scan(&zoneID); err != nil {
		t.Fatalf("insert zone: %v", err)
	}

	insert := func(name string, city, hubCol, zone any, priority int) {
		t.Helper()
		if _, err := db.Exec(ctx, `
			INSERT INTO delivery_fee_rules (rule_name, city_id, hub_id, zone_id, fee_type, flat_fee, priority)
			VALUES ($1, $2, $3, $4, 'flat', 1, $5)`, name, city, hubCol, zone, priority); err != nil {
			t.Fatalf("insert rule %s: %v", name, err)
		}
	}
	insert("city", cityID, nil, nil, 100)
	insert("hub-low", nil, hubID, nil, 1)
	insert("hub-high", nil, hubID, nil, 5)
	insert("hub-high-newer", nil, hubID, nil, 5)
	insert("zone", nil, hubID, zoneID, 0)

	var otherHubID, otherZoneID int64
	if err := db.QueryRow(ctx, `INSERT INTO hubs (city_id, name) VALUES ($1, 'other') RETURNING id`, cityID).Scan(&otherHubID); err != nil {
		t.Fatalf("insert other hub: %v", err)
	}
	if err := db.QueryRow(ctx, `INSERT INTO delivery_zones (hub_id, zone_name) VALUES ($1, 'elsewhere') RETURNING id`, otherHubID).Scan(&otherZoneID); err != nil {
		t.Fatalf("insert other zone: %v", err)
	}
	insert("foreign-zone", nil, otherHubID, otherZoneID, 50)
	insert("foreign-zone-unscoped", nil, nil, otherZoneID, 50)

	s := NewStore(db, nil)

	cases := []struct {
		name         string
		zone, city   int64
		wantRuleName string
	}{
		{"zone wins", zoneID, cityID, "zone"},
		{"hub wins without zone, priority then id", 0, cityID, "hub-high-newer"},
		{"zone of another hub never applies", otherZoneID, cityID, "hub-high-newer"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r, err := s.ResolveRule(ctx, hubID, c.zone, c.city)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if r == nil || r.Name != c.wantRuleName {
				t.Fatalf("got %+v, want %s", r, c.wantRuleName)
			}
		})
	}

	if _, err := db.Exec(ctx, `UPDATE delivery_fee_rules SET is_active = FALSE WHERE hub_id IS NOT NULL`); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	r, err := s.ResolveRule(ctx, hubID, zoneID, cityID)
	if err != nil || r == nil || r.Name != "city" {
		t.Fatalf("city fallback = %+v, %v", r, err)
	}

	r, err = s.ResolveRule(ctx, hubID, 0, 0)
	if err != nil || r != nil {
		t.Fatalf("no scope match = %+v, %v", r, err)
	}
}
