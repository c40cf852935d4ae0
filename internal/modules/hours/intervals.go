// README: Per-day opening interval parsing and validation.
package hours

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var clockPattern = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)

type Interval struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// ValidClock reports whether s is an H:MM or HH:MM 24-hour clock time.
func ValidClock(s string) bool {
	return clockPattern.MatchString(s)
}

// Minutes converts a clock string to minutes after midnight.
func Minutes(s string) (int, bool) {
	if !ValidClock(s) {
		return 0, false
	}
	hh, mm, _ := strings.Cut(s, ":")
	h, _ := strconv.Atoi(hh)
	m, _ := strconv.Atoi(mm)
	return h*60 + m, true
}

func (iv Interval) bounds() (open, close int, ok bool) {
	o, ok1 := Minutes(iv.Open)
	c, ok2 := Minutes(iv.Close)
	return o, c, ok1 && ok2
}

// Overnight reports whether the interval closes on the following day.
func (iv Interval) Overnight() bool {
	o, c, ok := iv.bounds()
	return ok && c < o
}

// ParseIntervals decodes one day's hours column. Malformed JSON or a non-array
// yields nil; individual entries with invalid times are dropped.
func ParseIntervals(raw string) []Interval {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	out := make([]Interval, 0, len(items))
	for _, item := range items {
		var iv Interval
		if err := json.Unmarshal(item, &iv); err != nil {
			continue
		}
		iv.Open = strings.TrimSpace(iv.Open)
		iv.Close = strings.TrimSpace(iv.Close)
		if !ValidClock(iv.Open) || !ValidClock(iv.Close) {
			continue
		}
		out = append(out, iv)
	}
	return out
}

// SameDay keeps only intervals with close strictly after open.
func SameDay(ivs []Interval) []Interval {
	out := make([]Interval, 0, len(ivs))
	for _, iv := range ivs {
		if o, c, ok := iv.bounds(); ok && c > o {
			out = append(out, iv)
		}
	}
	return out
}

// ValidationError points at the first offending interval of a week.
type ValidationError struct {
	Day    time.Weekday
	Index  int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s interval %d: %s", strings.ToLower(e.Day.String()), e.Index, e.Reason)
}

// Validate checks a week of intervals before they are stored: each time must
// be a valid clock, open must differ from close, and intervals of the same day
// must not overlap. Overnight intervals occupy the rest of their opening day.
func Validate(week map[time.Weekday][]Interval) error {
	days := make([]time.Weekday, 0, len(week))
	for d := range week {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	for _, day := range days {
		type span struct{ from, to, idx int }
		spans := make([]span, 0, len(week[day]))
		for i, iv := range week[day] {
			o, c, ok := iv.bounds()
			if !ok {
				return &ValidationError{Day: day, Index: i, Reason: "time must be HH:MM"}
			}
			if o == c {
				return &ValidationError{Day: day, Index: i, Reason: "open equals close"}
			}
			if c < o {
				c = 24 * 60
			}
			spans = append(spans, span{from: o, to: c, idx: i})
		}
		sort.Slice(spans, func(i, j int) bool { return spans[i].from < spans[j].from })
		for i := 1; i < len(spans); i++ {
			if spans[i].from < spans[i-1].to {
				return &ValidationError{Day: day, Index: spans[i].idx, Reason: "overlaps another interval"}
			}
		}
	}
	return nil
}

// Encode renders intervals back into the stored column format.
func Encode(ivs []Interval) string {
	if len(ivs) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(ivs)
	return string(b)
}
