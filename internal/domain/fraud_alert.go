package domain

import (
	"time"

	"github.com/abiolaogu/voxguard-detectord/pkg/apperror"
	"github.com/abiolaogu/voxguard-detectord/pkg/valueobj"
)

// FraudAlert is materialized when the window detector crosses the
// configured distinct-caller threshold for a B-number.
type FraudAlert struct {
	ID              valueobj.AlertID
	BNumber         string
	ANumbers        []string
	CallIDs         []string
	SourceIPs       []string
	FraudType       valueobj.FraudType
	Score           valueobj.FraudScore
	DistinctCallers int
	Status          valueobj.AlertStatus
	WindowStart     time.Time
	WindowEnd       time.Time
	AcknowledgedBy  string
	AcknowledgedAt  *time.Time
	Resolution      valueobj.AlertResolution
	ResolvedBy      string
	ResolvedAt      *time.Time
	Notes           string
	NCCReported     bool
	CreatedAt       time.Time
	UpdatedAt       time.Time

	aNumberSet map[string]struct{}
	callIDSet  map[string]struct{}
}

// NewFraudAlert constructs a Pending alert for a threshold crossing.
func NewFraudAlert(bNumber string, aNumbers, callIDs, sourceIPs []string, fraudType valueobj.FraudType, score valueobj.FraudScore, windowStart, windowEnd time.Time) *FraudAlert {
	now := time.Now().UTC()
	a := &FraudAlert{
		ID:              valueobj.NewAlertID(),
		BNumber:         bNumber,
		FraudType:       fraudType,
		Score:           score,
		Status:          valueobj.AlertStatusPending,
		WindowStart:     windowStart,
		WindowEnd:       windowEnd,
		CreatedAt:       now,
		UpdatedAt:       now,
		aNumberSet:      make(map[string]struct{}),
		callIDSet:       make(map[string]struct{}),
		SourceIPs:       append([]string(nil), sourceIPs...),
	}
	for _, an := range aNumbers {
		a.addANumber(an)
	}
	for _, cid := range callIDs {
		a.addCallID(cid)
	}
	a.DistinctCallers = len(a.aNumberSet)
	return a
}

func (a *FraudAlert) ensureSets() {
	if a.aNumberSet == nil {
		a.aNumberSet = make(map[string]struct{})
		for _, an := range a.ANumbers {
			a.aNumberSet[an] = struct{}{}
		}
	}
	if a.callIDSet == nil {
		a.callIDSet = make(map[string]struct{})
		for _, cid := range a.CallIDs {
			a.callIDSet[cid] = struct{}{}
		}
	}
}

func (a *FraudAlert) addANumber(an string) {
	if _, ok := a.aNumberSet[an]; ok {
		return
	}
	a.aNumberSet[an] = struct{}{}
	a.ANumbers = append(a.ANumbers, an)
}

func (a *FraudAlert) addCallID(cid string) {
	if _, ok := a.callIDSet[cid]; ok {
		return
	}
	a.callIDSet[cid] = struct{}{}
	a.CallIDs = append(a.CallIDs, cid)
}

// AddCalls merges additional (callID, aNumber) contributions into the
// alert, deduplicating by call-id and A-number. Allowed in any
// non-terminal state. distinct_callers is recomputed from the
// A-number set.
func (a *FraudAlert) AddCalls(pairs []struct {
	CallID  string
	ANumber string
}) error {
	if a.Status.IsTerminal() {
		return apperror.InvariantViolationf("alert %s: cannot add calls in terminal status %s", a.ID, a.Status)
	}
	a.ensureSets()
	for _, p := range pairs {
		a.addCallID(p.CallID)
		a.addANumber(p.ANumber)
	}
	a.DistinctCallers = len(a.aNumberSet)
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// Acknowledge transitions Pending -> Acknowledged.
func (a *FraudAlert) Acknowledge(by string) error {
	if a.Status != valueobj.AlertStatusPending {
		return apperror.InvariantViolationf("alert %s: cannot acknowledge from status %s", a.ID, a.Status)
	}
	a.Status = valueobj.AlertStatusAcknowledged
	a.AcknowledgedBy = by
	now := time.Now().UTC()
	a.AcknowledgedAt = &now
	a.UpdatedAt = now
	return nil
}

// StartInvestigation transitions Acknowledged -> Investigating.
func (a *FraudAlert) StartInvestigation() error {
	if a.Status != valueobj.AlertStatusAcknowledged {
		return apperror.InvariantViolationf("alert %s: cannot start investigation from status %s", a.ID, a.Status)
	}
	a.Status = valueobj.AlertStatusInvestigating
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// Resolve transitions Acknowledged or Investigating -> Resolved.
// Already-resolved or already-reported alerts reject further
// resolution.
func (a *FraudAlert) Resolve(by string, resolution valueobj.AlertResolution, notes string) error {
	if a.Status.IsTerminal() {
		return apperror.InvariantViolationf("alert %s: cannot resolve from terminal status %s", a.ID, a.Status)
	}
	if a.Status == valueobj.AlertStatusPending {
		return apperror.InvariantViolationf("alert %s: must acknowledge before resolving", a.ID)
	}
	a.Status = valueobj.AlertStatusResolved
	a.ResolvedBy = by
	a.Resolution = resolution
	a.Notes = notes
	now := time.Now().UTC()
	a.ResolvedAt = &now
	a.UpdatedAt = now
	return nil
}

// MarkNCCReported transitions any non-terminal state to the terminal
// ReportedNCC state.
func (a *FraudAlert) MarkNCCReported() error {
	if a.Status.IsTerminal() {
		return apperror.InvariantViolationf("alert %s: cannot mark NCC-reported from terminal status %s", a.ID, a.Status)
	}
	a.Status = valueobj.AlertStatusReportedNCC
	a.NCCReported = true
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// ShouldAutoBlock reports the auto-block condition derived from the
// alert's score.
func (a *FraudAlert) ShouldAutoBlock() bool {
	return a.Score.ExceedsBlockThreshold()
}
