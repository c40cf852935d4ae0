// README: Availability decision shape, reason codes and the 409 block envelope.
package availability

import "time"

type Reason string

// Reasons in cascade order; the first failing check wins.
const (
	ReasonCityNotOperational    Reason = "CITY_NOT_OPERATIONAL"
	ReasonCityInactive          Reason = "CITY_INACTIVE"
	ReasonHubInactive           Reason = "HUB_INACTIVE"
	ReasonHubClosedIndefinitely Reason = "HUB_CLOSED_INDEFINITELY"
	ReasonHubTempClosed         Reason = "HUB_TEMP_CLOSED"
	ReasonHubNoHoursSet         Reason = "HUB_NO_HOURS_SET"
	ReasonHubOutsideHours       Reason = "HUB_OUTSIDE_HOURS"
	ReasonHubClosingSoon        Reason = "HUB_CLOSING_SOON"
	ReasonAvailable             Reason = "AVAILABLE"

	ReasonHubConfigurationError Reason = "HUB_CONFIGURATION_ERROR"
)

type Source string

const (
	SourceCity  Source = "city"
	SourceHub   Source = "hub"
	SourceHours Source = "hours"
)

const SeverityHard = "hard"

// DefaultClosingSoonCutoff is the window before close in which new orders are refused.
const DefaultClosingSoonCutoff = 15 * time.Minute

// Decision is serialized with exactly these six keys.
type Decision struct {
	CanOrder bool    `json:"can_order"`
	Reason   Reason  `json:"reason"`
	Message  string  `json:"message"`
	ReopenAt *string `json:"reopen_at"`
	Source   Source  `json:"source"`
	Severity string  `json:"severity"`
}

func deny(reason Reason, source Source, msg string) Decision {
	return Decision{Reason: reason, Source: source, Message: msg, Severity: SeverityHard}
}

// BlockResponse is the HTTP 409 body returned when ordering is blocked.
type BlockResponse struct {
	Success       bool     `json:"success"`
	Error         string   `json:"error"`
	CanOrder      bool     `json:"can_order"`
	CanPlaceOrder bool     `json:"can_place_order"`
	Reason        Reason   `json:"reason"`
	Message       string   `json:"message"`
	Availability  Decision `json:"availability"`
}

const BlockError = "availability_block"

// BuildBlockResponse wraps a negative decision in the standard envelope.
func BuildBlockResponse(d Decision) BlockResponse {
	return BlockResponse{
		Error:        BlockError,
		Reason:       d.Reason,
		Message:      d.Message,
		Availability: d,
	}
}
