package domain

import (
	"time"

	"github.com/abiolaogu/voxguard-detectord/pkg/apperror"
	"github.com/abiolaogu/voxguard-detectord/pkg/valueobj"
)

// Gateway is an interconnect gateway profile, created and maintained
// out-of-band by operators. The detector only reads it.
type Gateway struct {
	ID                  valueobj.GatewayID
	Name                string
	IP                  valueobj.IPAddress
	Carrier             string
	Type                valueobj.GatewayType
	FraudThreshold      float64
	CPMLimit            int
	ACDThreshold        float64
	IsActive            bool
	IsBlacklisted       bool
	BlacklistExpiresAt  *time.Time
	BlacklistReason     string
}

// NewGateway constructs a Gateway with the documented defaults:
// fraud_threshold=0.8, cpm_limit=60, acd_threshold=10.0.
func NewGateway(name string, ip valueobj.IPAddress, carrier string, gwType valueobj.GatewayType) *Gateway {
	return &Gateway{
		ID:             valueobj.NewGatewayID(),
		Name:           name,
		IP:             ip,
		Carrier:        carrier,
		Type:           gwType,
		FraudThreshold: 0.8,
		CPMLimit:       60,
		ACDThreshold:   10.0,
		IsActive:       true,
	}
}

// IsCurrentlyBlacklisted reports blacklist membership, auto-clearing a
// blacklist whose expiration has passed.
func (g *Gateway) IsCurrentlyBlacklisted() bool {
	if !g.IsBlacklisted {
		return false
	}
	if g.BlacklistExpiresAt != nil && g.BlacklistExpiresAt.Before(time.Now().UTC()) {
		g.IsBlacklisted = false
		g.BlacklistExpiresAt = nil
		g.BlacklistReason = ""
		return false
	}
	return true
}

// Blacklist marks the gateway blacklisted, optionally until expiresAt.
func (g *Gateway) Blacklist(reason string, expiresAt *time.Time) {
	g.IsBlacklisted = true
	g.BlacklistReason = reason
	g.BlacklistExpiresAt = expiresAt
}

// Unblacklist clears an active blacklist. Errors if not currently
// blacklisted.
func (g *Gateway) Unblacklist() error {
	if !g.IsBlacklisted {
		return apperror.InvariantViolationf("gateway %s: not currently blacklisted", g.ID)
	}
	g.IsBlacklisted = false
	g.BlacklistExpiresAt = nil
	g.BlacklistReason = ""
	return nil
}

// UpdateThresholds clamps inputs into valid ranges:
// fraud_threshold into [0,1], cpm_limit capped at 1000, acd_threshold
// floored at 1.0.
func (g *Gateway) UpdateThresholds(fraudThreshold float64, cpmLimit int, acdThreshold float64) {
	switch {
	case fraudThreshold < 0:
		g.FraudThreshold = 0
	case fraudThreshold > 1:
		g.FraudThreshold = 1
	default:
		g.FraudThreshold = fraudThreshold
	}

	if cpmLimit > 1000 {
		cpmLimit = 1000
	}
	g.CPMLimit = cpmLimit

	if acdThreshold < 1.0 {
		acdThreshold = 1.0
	}
	g.ACDThreshold = acdThreshold
}

// ExceedsCPMLimit reports whether observedCPM exceeds the gateway's
// configured limit.
func (g *Gateway) ExceedsCPMLimit(observedCPM int) bool {
	return observedCPM > g.CPMLimit
}

// IsACDSuspicious reports whether observedACD falls at or below the
// gateway's ACD threshold (short calls are a SIM-box signal).
func (g *Gateway) IsACDSuspicious(observedACD float64) bool {
	return observedACD <= g.ACDThreshold
}
