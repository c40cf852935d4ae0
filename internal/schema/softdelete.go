package schema

import (
	"context"
	"fmt"
)

// SoftDeleteStrategy renders the SQL predicate that keeps live rows.
type SoftDeleteStrategy interface {
	// LivePredicate returns a boolean SQL expression over alias, e.g. "h.deleted_at IS NULL".
	LivePredicate(alias string) string
	Name() string
}

type noSoftDelete struct{}

func (noSoftDelete) LivePredicate(string) string { return "TRUE" }
func (noSoftDelete) Name() string                { return "none" }

// NoSoftDelete is used for tables without any marker column.
var NoSoftDelete SoftDeleteStrategy = noSoftDelete{}

// NullTimestamp treats a non-null timestamp column as deleted.
type NullTimestamp struct{ Column string }

func (s NullTimestamp) LivePredicate(alias string) string {
	return fmt.Sprintf("%s IS NULL", qualify(alias, s.Column))
}
func (s NullTimestamp) Name() string { return "timestamp:" + s.Column }

// BoolFlag treats a true flag column as deleted.
type BoolFlag struct{ Column string }

func (s BoolFlag) LivePredicate(alias string) string {
	return fmt.Sprintf("COALESCE(%s, FALSE) = FALSE", qualify(alias, s.Column))
}
func (s BoolFlag) Name() string { return "flag:" + s.Column }

// StatusValue treats a specific status value as deleted.
type StatusValue struct {
	Column string
	Value  string
}

func (s StatusValue) LivePredicate(alias string) string {
	return fmt.Sprintf("COALESCE(%s, '') <> '%s'", qualify(alias, s.Column), s.Value)
}
func (s StatusValue) Name() string { return "status:" + s.Column + "=" + s.Value }

func qualify(alias, col string) string {
	if alias == "" {
		return col
	}
	return alias + "." + col
}

// candidates are probed in this order; the first column present wins.
var candidates = []SoftDeleteStrategy{
	NullTimestamp{Column: "deleted_at"},
	BoolFlag{Column: "is_deleted"},
	BoolFlag{Column: "deleted"},
	NullTimestamp{Column: "trashed_at"},
	StatusValue{Column: "status", Value: "deleted"},
}

func candidateColumn(s SoftDeleteStrategy) string {
	switch v := s.(type) {
	case NullTimestamp:
		return v.Column
	case BoolFlag:
		return v.Column
	case StatusValue:
		return v.Column
	}
	return ""
}

// Resolve picks the strategy for one table. Run it once at startup per table.
func Resolve(ctx context.Context, cache *ColumnCache, table string) (SoftDeleteStrategy, error) {
	for _, c := range candidates {
		ok, err := cache.HasColumn(ctx, table, candidateColumn(c))
		if err != nil {
			return nil, fmt.Errorf("introspect %s: %w", table, err)
		}
		if ok {
			return c, nil
		}
	}
	return NoSoftDelete, nil
}

// Strategies maps table name to its resolved strategy.
type Strategies map[string]SoftDeleteStrategy

// For returns the strategy for table, or NoSoftDelete if unknown.
func (s Strategies) For(table string) SoftDeleteStrategy {
	if st, ok := s[table]; ok && st != nil {
		return st
	}
	return NoSoftDelete
}

// ResolveAll resolves strategies for every listed table.
func ResolveAll(ctx context.Context, cache *ColumnCache, tables ...string) (Strategies, error) {
	out := make(Strategies, len(tables))
	for _, t := range tables {
		st, err := Resolve(ctx, cache, t)
		if err != nil {
			return nil, err
		}
		out[t] = st
	}
	return out, nil
}
