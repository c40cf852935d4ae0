// README: Informational open/closed status for a hub (overnight-aware), used by status views.
package hours

import (
	"strings"
	"time"

	"knx/internal/modules/hub"
)

const (
	TextOpen               = "Open"
	TextClosed             = "Closed"
	TextInactive           = "Inactive"
	TextTemporarilyClosed  = "Temporarily Closed"
	TextIndefinitelyClosed = "Closed Indefinitely"
	TextConfigurationIssue = "Unavailable"
)

// closureLayouts are tried in order; the first is interpreted in the hub's timezone.
var closureLayouts = []string{"2006-01-02 15:04:05", "2006-01-02 15:04", time.RFC3339}

// ParseClosureUntil parses a stored closure_until value. Naive timestamps are
// read in loc.
func ParseClosureUntil(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range closureLayouts {
		var t time.Time
		var err error
		if layout == time.RFC3339 {
			t, err = time.Parse(layout, raw)
		} else {
			t, err = time.ParseInLocation(layout, raw, loc)
		}
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// LoadLocation resolves an IANA timezone name. An empty name is an error,
// never UTC.
func LoadLocation(name string) (*time.Location, bool) {
	if strings.TrimSpace(name) == "" {
		return nil, false
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, false
	}
	return loc, true
}

// Intervals returns the valid intervals of a weekday for h.
func Intervals(h *hub.Hub, day time.Weekday) []Interval {
	return ParseIntervals(h.Hours.Day(day))
}

type Status struct {
	IsOpen        bool       `json:"is_open"`
	StatusText    string     `json:"status_text"`
	HoursToday    []string   `json:"hours_today"`
	NextChange    *time.Time `json:"next_change"`
	IsTempClosed  bool       `json:"is_temp_closed"`
	ClosureUntil  *time.Time `json:"closure_until"`
	ClosureReason string     `json:"closure_reason,omitempty"`
}

// GetStatus evaluates h at now: inactive, then closures, then today's
// intervals including yesterday's overnight spill.
func GetStatus(h *hub.Hub, now time.Time, style Style) Status {
	if h == nil || !h.Active() {
		return Status{StatusText: TextInactive, HoursToday: []string{}}
	}
	loc, ok := LoadLocation(h.Timezone)
	if !ok {
		return Status{StatusText: TextConfigurationIssue, HoursToday: []string{}}
	}
	local := now.In(loc)
	st := Status{
		HoursToday:    FormatDay(Intervals(h, local.Weekday()), style),
		ClosureReason: h.ClosureReason,
	}

	if h.ClosureUntil != "" {
		until, parsed := ParseClosureUntil(h.ClosureUntil, loc)
		if !parsed {
			st.StatusText = TextIndefinitelyClosed
			st.IsTempClosed = true
			return st
		}
		if !local.After(until) {
			u := until.In(loc)
			st.StatusText = TextTemporarilyClosed
			st.IsTempClosed = true
			st.ClosureUntil = &u
			st.NextChange = &u
			return st
		}
	} else if h.ClosureReason != "" {
		st.StatusText = TextIndefinitelyClosed
		st.IsTempClosed = true
		return st
	}

	if closeAt, open := openUntil(h, local); open {
		st.IsOpen = true
		st.StatusText = TextOpen
		st.NextChange = &closeAt
		return st
	}
	st.StatusText = TextClosed
	if next, found := nextOpening(h, local); found {
		st.NextChange = &next
	}
	return st
}

// openUntil reports whether local falls inside an interval that started today
// or an overnight interval that started yesterday, and when it closes.
func openUntil(h *hub.Hub, local time.Time) (time.Time, bool) {
	today := midnight(local)
	yesterday := today.AddDate(0, 0, -1)

	for _, iv := range Intervals(h, yesterday.Weekday()) {
		if !iv.Overnight() {
			continue
		}
		_, c, _ := iv.bounds()
		closeAt := at(today, c)
		if local.Before(closeAt) {
			return closeAt, true
		}
	}
	for _, iv := range Intervals(h, local.Weekday()) {
		o, c, _ := iv.bounds()
		openAt := at(today, o)
		closeAt := at(today, c)
		if c < o {
			closeAt = at(today.AddDate(0, 0, 1), c)
		}
		if !local.Before(openAt) && local.Before(closeAt) {
			return closeAt, true
		}
	}
	return time.Time{}, false
}

// nextOpening searches the coming week for the first opening after local.
func nextOpening(h *hub.Hub, local time.Time) (time.Time, bool) {
	today := midnight(local)
	for offset := 0; offset < 8; offset++ {
		day := today.AddDate(0, 0, offset)
		var best time.Time
		for _, iv := range Intervals(h, day.Weekday()) {
			o, _, _ := iv.bounds()
			openAt := at(day, o)
			if openAt.After(local) && (best.IsZero() || openAt.Before(best)) {
				best = openAt
			}
		}
		if !best.IsZero() {
			return best, true
		}
	}
	return time.Time{}, false
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func at(day time.Time, minutes int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, day.Location())
}

// View pairs a hub with its computed status for list endpoints.
type View struct {
	*hub.Hub
	Status Status `json:"hours_status"`
}

// Enrich computes the display status of one hub.
func Enrich(h *hub.Hub, now time.Time, style Style) View {
	return View{Hub: h, Status: GetStatus(h, now, style)}
}

// EnrichAll computes display status for each hub, preserving order.
func EnrichAll(hubs []*hub.Hub, now time.Time, style Style) []View {
	out := make([]View, 0, len(hubs))
	for _, h := range hubs {
		out = append(out, Enrich(h, now, style))
	}
	return out
}
