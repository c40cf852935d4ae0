// README: Availability engine; fail-closed priority cascade deciding whether a hub accepts orders now.
package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"knx/internal/metrics"
	"knx/internal/modules/hours"
	"knx/internal/modules/hub"
)

const engineName = "availability"

// HubReader loads the rows the cascade depends on.
type HubReader interface {
	Hub(ctx context.Context, id int64) (*hub.Hub, error)
	City(ctx context.Context, id int64) (*hub.City, error)
}

type Service struct {
	hubs   HubReader
	cutoff time.Duration
	now    func() time.Time
	log    *zap.Logger
}

type Option func(*Service)

func WithCutoff(d time.Duration) Option { return func(s *Service) { s.cutoff = d } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.log = l } }

func NewService(hubs HubReader, opts ...Option) *Service {
	s := &Service{hubs: hubs, cutoff: DefaultClosingSoonCutoff, now: time.Now, log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Decide never returns an error: lookups that fail or panic resolve to a
// negative decision.
func (s *Service) Decide(ctx context.Context, hubID int64) (d Decision) {
	defer func() {
		if r := recover(); r != nil {
			metrics.Panic(engineName)
			s.log.Error("availability panic", zap.Int64("hub_id", hubID), zap.Any("panic", r))
			d = deny(ReasonHubConfigurationError, SourceHub, "Hub configuration error.")
		}
		metrics.Decision(engineName, string(d.Reason))
	}()

	if hubID <= 0 {
		return deny(ReasonHubInactive, SourceHub, "This location is not accepting orders.")
	}
	h, err := s.hubs.Hub(ctx, hubID)
	if errors.Is(err, hub.ErrNotFound) {
		return deny(ReasonHubInactive, SourceHub, "This location is not accepting orders.")
	}
	if err != nil {
		s.log.Error("availability hub lookup", zap.Int64("hub_id", hubID), zap.Error(err))
		return deny(ReasonHubConfigurationError, SourceHub, "Hub configuration error.")
	}
	c, err := s.hubs.City(ctx, h.CityID)
	if err != nil && !errors.Is(err, hub.ErrNotFound) {
		s.log.Error("availability city lookup", zap.Int64("city_id", h.CityID), zap.Error(err))
		return deny(ReasonHubConfigurationError, SourceHub, "Hub configuration error.")
	}
	return Evaluate(c, h, s.now(), s.cutoff)
}

// Evaluate is the pure cascade. A nil city is treated as inactive.
func Evaluate(c *hub.City, h *hub.Hub, now time.Time, cutoff time.Duration) Decision {
	if c != nil && !c.IsOperational {
		return deny(ReasonCityNotOperational, SourceCity, "Ordering is paused in this city.")
	}
	if !c.Active() {
		return deny(ReasonCityInactive, SourceCity, "This city is not currently served.")
	}
	if !h.Active() {
		return deny(ReasonHubInactive, SourceHub, "This location is not accepting orders.")
	}
	if h.ClosureReason != "" && h.ClosureUntil == "" {
		return deny(ReasonHubClosedIndefinitely, SourceHub, closureMessage(h.ClosureReason, "This location is closed until further notice."))
	}

	loc, ok := hours.LoadLocation(h.Timezone)
	if !ok {
		return deny(ReasonHubConfigurationError, SourceHub, "Hub configuration error.")
	}
	local := now.In(loc)

	if h.ClosureUntil != "" {
		until, parsed := hours.ParseClosureUntil(h.ClosureUntil, loc)
		if !parsed {
			return deny(ReasonHubClosedIndefinitely, SourceHub, closureMessage(h.ClosureReason, "This location is closed until further notice."))
		}
		if !local.After(until) {
			d := deny(ReasonHubTempClosed, SourceHub, closureMessage(h.ClosureReason, "This location is temporarily closed."))
			d.ReopenAt = iso(until.In(loc))
			return d
		}
	}

	intervals := hours.SameDay(hours.Intervals(h, local.Weekday()))
	if len(intervals) == 0 {
		return deny(ReasonHubNoHoursSet, SourceHours, "This location has no opening hours today.")
	}

	nowMin := local.Hour()*60 + local.Minute()
	var nextOpen *time.Time
	for _, iv := range intervals {
		openMin, _ := hours.Minutes(iv.Open)
		closeMin, _ := hours.Minutes(iv.Close)
		if nowMin < openMin {
			t := clockOn(local, openMin)
			if nextOpen == nil || t.Before(*nextOpen) {
				nextOpen = &t
			}
			continue
		}
		if nowMin >= closeMin {
			continue
		}
		closeAt := clockOn(local, closeMin)
		if closeAt.Sub(local) <= cutoff {
			d := deny(ReasonHubClosingSoon, SourceHours,
				fmt.Sprintf("This location stops taking orders %d minutes before closing.", int(cutoff/time.Minute)))
			if reopen := nextAfter(intervals, local, closeMin); reopen != nil {
				d.ReopenAt = iso(*reopen)
			}
			return d
		}
		return Decision{
			CanOrder: true,
			Reason:   ReasonAvailable,
			Message:  "Open for orders.",
			Source:   SourceHours,
			Severity: SeverityHard,
		}
	}

	d := deny(ReasonHubOutsideHours, SourceHours, "This location is closed right now.")
	if nextOpen != nil {
		d.ReopenAt = iso(*nextOpen)
	}
	return d
}

// nextAfter returns the earliest interval opening at or after minute m today.
func nextAfter(intervals []hours.Interval, local time.Time, m int) *time.Time {
	var best *time.Time
	for _, iv := range intervals {
		openMin, _ := hours.Minutes(iv.Open)
		if openMin < m {
			continue
		}
		t := clockOn(local, openMin)
		if best == nil || t.Before(*best) {
			best = &t
		}
	}
	return best
}

func clockOn(local time.Time, minutes int) time.Time {
	return time.Date(local.Year(), local.Month(), local.Day(), minutes/60, minutes%60, 0, 0, local.Location())
}

func iso(t time.Time) *string {
	s := t.Format(time.RFC3339)
	return &s
}

func closureMessage(reason, fallback string) string {
	if reason != "" {
		return fallback + " " + reason
	}
	return fallback
}
