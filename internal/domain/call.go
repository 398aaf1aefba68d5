// Package domain holds the Call, FraudAlert, and Gateway aggregates and
// their invariants.
package domain

import (
	"time"

	"github.com/abiolaogu/voxguard-detectord/pkg/apperror"
	"github.com/abiolaogu/voxguard-detectord/pkg/valueobj"
)

// Call is the aggregate created on call-setup ingress.
type Call struct {
	ID         valueobj.CallID
	ANumber    valueobj.MSISDN
	BNumber    valueobj.MSISDN
	SourceIP   valueobj.IPAddress
	Timestamp  time.Time
	Status     valueobj.CallStatus
	SwitchID   string
	RawCallID  string
	IsFlagged  bool
	AlertID    *valueobj.AlertID
	Score      valueobj.FraudScore
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewCall constructs a Call in the Ringing state with a fresh
// identifier and timestamp.
func NewCall(a, b valueobj.MSISDN, sourceIP valueobj.IPAddress, switchID, rawCallID string) *Call {
	now := time.Now().UTC()
	return &Call{
		ID:        valueobj.NewCallID(),
		ANumber:   a,
		BNumber:   b,
		SourceIP:  sourceIP,
		Timestamp: now,
		Status:    valueobj.CallStatusRinging,
		SwitchID:  switchID,
		RawCallID: rawCallID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// UpdateStatus transitions the call's status. Once in a terminal
// status, no further transition succeeds.
func (c *Call) UpdateStatus(next valueobj.CallStatus) error {
	if c.Status.IsTerminal() {
		return apperror.InvariantViolationf("call %s: cannot transition from terminal status %s to %s", c.ID, c.Status, next)
	}
	c.Status = next
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// FlagAsFraud attaches the call to a fraud alert. Idempotency: a call
// already flagged cannot be re-flagged, even to the same alert.
func (c *Call) FlagAsFraud(alertID valueobj.AlertID, score valueobj.FraudScore) error {
	if c.IsFlagged {
		return apperror.InvariantViolationf("call %s: already flagged as fraud", c.ID)
	}
	c.IsFlagged = true
	id := alertID
	c.AlertID = &id
	c.Score = score
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// IsActive reports whether the call is still ringing or active.
func (c *Call) IsActive() bool { return c.Status.IsActive() }

// IsPotentialCliMasking reports the combined signal: a Nigerian
// A-number arriving over a source IP classified as international.
func (c *Call) IsPotentialCliMasking() bool {
	return c.ANumber.IsNigerian() && c.SourceIP.IsLikelyInternational()
}
