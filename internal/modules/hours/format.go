package hours

import (
	"fmt"
	"strings"
)

type Style string

const (
	Style12h   Style = "12h"
	Style24h   Style = "24h"
	StyleMixed Style = "mixed"
)

// OvernightMarker follows the close time of an interval that ends the next day.
const OvernightMarker = "+1"

// FormatInterval renders an interval for display. StyleMixed is the compact
// 12-hour form that drops ":00" ("9am - 5:30pm").
func FormatInterval(open, close string, overnight bool, style Style) string {
	s := formatClock(open, style) + " - " + formatClock(close, style)
	if overnight {
		s += " " + OvernightMarker
	}
	return s
}

func formatClock(hhmm string, style Style) string {
	m, ok := Minutes(hhmm)
	if !ok {
		return hhmm
	}
	h, mm := m/60, m%60
	switch style {
	case Style24h:
		return fmt.Sprintf("%02d:%02d", h, mm)
	case StyleMixed:
		h12, suffix := to12(h)
		if mm == 0 {
			return fmt.Sprintf("%d%s", h12, strings.ToLower(suffix))
		}
		return fmt.Sprintf("%d:%02d%s", h12, mm, strings.ToLower(suffix))
	default:
		h12, suffix := to12(h)
		return fmt.Sprintf("%d:%02d %s", h12, mm, suffix)
	}
}

func to12(h int) (int, string) {
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	h %= 12
	if h == 0 {
		h = 12
	}
	return h, suffix
}

// FormatDay renders every interval of a day, or "Closed".
func FormatDay(ivs []Interval, style Style) []string {
	if len(ivs) == 0 {
		return []string{"Closed"}
	}
	out := make([]string, 0, len(ivs))
	for _, iv := range ivs {
		out = append(out, FormatInterval(iv.Open, iv.Close, iv.Overnight(), style))
	}
	return out
}
