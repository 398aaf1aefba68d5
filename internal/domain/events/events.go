// Package events defines the domain events emitted by aggregate
// mutations and an unbounded Collector that stages them in memory until
// they are drained.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/abiolaogu/voxguard-detectord/pkg/valueobj"
)

// Event is the common shape every domain event satisfies.
type Event interface {
	EventType() string
	OccurredAt() time.Time
	AggregateID() string
}

// CallRegistered is emitted when a call is admitted for detection.
type CallRegistered struct {
	EventID    uuid.UUID
	CallID     valueobj.CallID
	ANumber    string
	BNumber    string
	SourceIP   string
	OccurredAtVal time.Time
}

func NewCallRegistered(callID valueobj.CallID, a, b, sourceIP string) CallRegistered {
	return CallRegistered{
		EventID:       uuid.New(),
		CallID:        callID,
		ANumber:       a,
		BNumber:       b,
		SourceIP:      sourceIP,
		OccurredAtVal: time.Now().UTC(),
	}
}

func (e CallRegistered) EventType() string      { return "CallRegistered" }
func (e CallRegistered) OccurredAt() time.Time  { return e.OccurredAtVal }
func (e CallRegistered) AggregateID() string    { return string(e.CallID) }

// FraudDetected is emitted when the window detector materializes an
// alert.
type FraudDetected struct {
	EventID          uuid.UUID
	AlertID          valueobj.AlertID
	BNumber          string
	FraudType        valueobj.FraudType
	Score            float64
	Severity         valueobj.Severity
	DistinctCallers  int
	SourceIPs        []string
	CallIDs          []string
	OccurredAtVal    time.Time
}

func NewFraudDetected(alertID valueobj.AlertID, bNumber string, fraudType valueobj.FraudType, score valueobj.FraudScore, distinctCallers int, sourceIPs, callIDs []string) FraudDetected {
	return FraudDetected{
		EventID:         uuid.New(),
		AlertID:         alertID,
		BNumber:         bNumber,
		FraudType:       fraudType,
		Score:           score.Value(),
		Severity:        score.Severity(),
		DistinctCallers: distinctCallers,
		SourceIPs:       sourceIPs,
		CallIDs:         callIDs,
		OccurredAtVal:   time.Now().UTC(),
	}
}

func (e FraudDetected) EventType() string     { return "FraudDetected" }
func (e FraudDetected) OccurredAt() time.Time { return e.OccurredAtVal }
func (e FraudDetected) AggregateID() string   { return string(e.AlertID) }

// AlertAcknowledged is emitted when an operator acknowledges an alert.
type AlertAcknowledged struct {
	EventID         uuid.UUID
	AlertID         valueobj.AlertID
	AcknowledgedBy  string
	OccurredAtVal   time.Time
}

func NewAlertAcknowledged(alertID valueobj.AlertID, by string) AlertAcknowledged {
	return AlertAcknowledged{EventID: uuid.New(), AlertID: alertID, AcknowledgedBy: by, OccurredAtVal: time.Now().UTC()}
}

func (e AlertAcknowledged) EventType() string     { return "AlertAcknowledged" }
func (e AlertAcknowledged) OccurredAt() time.Time { return e.OccurredAtVal }
func (e AlertAcknowledged) AggregateID() string   { return string(e.AlertID) }

// AlertResolved is emitted when an alert reaches a terminal resolution.
type AlertResolved struct {
	EventID       uuid.UUID
	AlertID       valueobj.AlertID
	ResolvedBy    string
	Resolution    valueobj.AlertResolution
	Notes         string
	OccurredAtVal time.Time
}

func NewAlertResolved(alertID valueobj.AlertID, by string, resolution valueobj.AlertResolution, notes string) AlertResolved {
	return AlertResolved{
		EventID:       uuid.New(),
		AlertID:       alertID,
		ResolvedBy:    by,
		Resolution:    resolution,
		Notes:         notes,
		OccurredAtVal: time.Now().UTC(),
	}
}

func (e AlertResolved) EventType() string     { return "AlertResolved" }
func (e AlertResolved) OccurredAt() time.Time { return e.OccurredAtVal }
func (e AlertResolved) AggregateID() string   { return string(e.AlertID) }

// GatewayBlocked is emitted when a gateway IP is blacklisted.
type GatewayBlocked struct {
	EventID       uuid.UUID
	GatewayIP     string
	Reason        string
	BlockedUntil  *time.Time
	OccurredAtVal time.Time
}

func NewGatewayBlocked(gatewayIP, reason string, blockedUntil *time.Time) GatewayBlocked {
	return GatewayBlocked{
		EventID:       uuid.New(),
		GatewayIP:     gatewayIP,
		Reason:        reason,
		BlockedUntil:  blockedUntil,
		OccurredAtVal: time.Now().UTC(),
	}
}

func (e GatewayBlocked) EventType() string     { return "GatewayBlocked" }
func (e GatewayBlocked) OccurredAt() time.Time { return e.OccurredAtVal }
func (e GatewayBlocked) AggregateID() string   { return e.GatewayIP }

// Collector accumulates events raised by aggregate operations within a
// single use case, to be drained into the outbox after persistence
// succeeds.
type Collector struct {
	events []Event
}

func (c *Collector) Push(e Event) { c.events = append(c.events, e) }

func (c *Collector) Drain() []Event {
	out := c.events
	c.events = nil
	return out
}

func (c *Collector) IsEmpty() bool { return len(c.events) == 0 }

func (c *Collector) Len() int { return len(c.events) }
