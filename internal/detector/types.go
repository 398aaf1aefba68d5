package detector

import (
	"time"

	"github.com/abiolaogu/voxguard-detectord/pkg/valueobj"
)

// CallRegistrationCommand is the RegisterCall request shape (§6.1).
// Unknown/extra fields are forward-compatible: only ANumber, BNumber,
// and SourceIP are required before normalization.
type CallRegistrationCommand struct {
	CallID    string
	ANumber   string
	BNumber   string
	SourceIP  string
	SwitchID  string
	RawCallID string
	Timestamp time.Time

	// Signals consumed by the rule evaluator (§4.3). All optional;
	// zero values mean "not present on this call leg".
	PAssertedIdentity  string
	FromHeader         string
	CallerIDDisplay    string
	StirShakenPresent  bool
	StirShakenVerified bool
}

// Status is the closed set of RegisterCall response statuses (§6.1).
type Status string

const (
	StatusProcessed Status = "processed"
	StatusAlert     Status = "alert"
	StatusCooldown  Status = "cooldown"
	StatusBlocked   Status = "blocked"
)

// AlertPayload mirrors §6.1's alert payload shape.
type AlertPayload struct {
	AlertID         string  `json:"alert_id"`
	BNumber         string  `json:"b_number"`
	FraudType       string  `json:"fraud_type"`
	Severity        string  `json:"severity"`
	Score           float64 `json:"score"`
	DistinctCallers int     `json:"distinct_callers"`
	Description     string  `json:"description"`
}

// Result is the RegisterCall response. Exactly one of the Status-gated
// fields is meaningful per call.
type Result struct {
	Status          Status
	CallID          string
	DistinctCallers int
	Threshold       int
	Alert           *AlertPayload

	// Scoring pipeline output (§4.6), always computed regardless of
	// whether the window threshold fired this request.
	Confidence valueobj.FraudScore
	FraudTypes []valueobj.FraudType
	Action     valueobj.Action

	LatencyUs int64
}
