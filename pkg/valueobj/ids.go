package valueobj

import "github.com/google/uuid"

// CallID identifies a Call aggregate.
type CallID string

// NewCallID generates a fresh identifier.
func NewCallID() CallID { return CallID(uuid.NewString()) }

// AlertID identifies a FraudAlert aggregate.
type AlertID string

// NewAlertID generates a fresh identifier.
func NewAlertID() AlertID { return AlertID(uuid.NewString()) }

// GatewayID identifies a Gateway aggregate.
type GatewayID string

// NewGatewayID generates a fresh identifier.
func NewGatewayID() GatewayID { return GatewayID(uuid.NewString()) }
