package domain

import (
	"testing"
	"time"

	"github.com/abiolaogu/voxguard-detectord/pkg/valueobj"
)

func TestGatewayCreation(t *testing.T) {
	ip := mustIP(t, "41.58.1.1")
	g := NewGateway("MTN Lagos Gateway", ip, "MTN", valueobj.GatewayTypeLocal)

	if g.FraudThreshold != 0.8 || g.CPMLimit != 60 || g.ACDThreshold != 10.0 {
		t.Fatalf("unexpected defaults: %+v", g)
	}
	if !g.IsActive {
		t.Fatalf("expected new gateway active")
	}
}

func TestThresholdUpdates(t *testing.T) {
	g := NewGateway("gw", mustIP(t, "41.58.1.1"), "MTN", valueobj.GatewayTypeLocal)
	g.UpdateThresholds(0.5, 200, 8.0)
	if g.FraudThreshold != 0.5 || g.CPMLimit != 200 || g.ACDThreshold != 8.0 {
		t.Fatalf("unexpected thresholds: %+v", g)
	}
}

func TestThresholdClamping(t *testing.T) {
	g := NewGateway("gw", mustIP(t, "41.58.1.1"), "MTN", valueobj.GatewayTypeLocal)
	g.UpdateThresholds(5.0, 5000, 0.1)
	if g.FraudThreshold != 1.0 {
		t.Fatalf("expected fraud_threshold clamped to 1.0, got %v", g.FraudThreshold)
	}
	if g.CPMLimit != 1000 {
		t.Fatalf("expected cpm_limit capped at 1000, got %v", g.CPMLimit)
	}
	if g.ACDThreshold != 1.0 {
		t.Fatalf("expected acd_threshold floored at 1.0, got %v", g.ACDThreshold)
	}

	g.UpdateThresholds(-1.0, 10, 5.0)
	if g.FraudThreshold != 0 {
		t.Fatalf("expected fraud_threshold clamped to 0, got %v", g.FraudThreshold)
	}
}

func TestBlacklist(t *testing.T) {
	g := NewGateway("gw", mustIP(t, "41.58.1.1"), "MTN", valueobj.GatewayTypeLocal)
	g.Blacklist("fraud_confirmed", nil)
	if !g.IsCurrentlyBlacklisted() {
		t.Fatalf("expected blacklisted")
	}
	if err := g.Unblacklist(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.IsCurrentlyBlacklisted() {
		t.Fatalf("expected not blacklisted after unblacklist")
	}
	if err := g.Unblacklist(); err == nil {
		t.Fatalf("expected error unblacklisting a gateway that is not blacklisted")
	}
}

func TestTemporaryBlacklistExpiry(t *testing.T) {
	g := NewGateway("gw", mustIP(t, "41.58.1.1"), "MTN", valueobj.GatewayTypeLocal)
	past := time.Now().UTC().Add(-time.Minute)
	g.Blacklist("rate_abuse", &past)

	if g.IsCurrentlyBlacklisted() {
		t.Fatalf("expected expired blacklist to auto-clear")
	}
	if g.IsBlacklisted {
		t.Fatalf("expected IsBlacklisted cleared after read")
	}
}

func TestCPMLimitCheck(t *testing.T) {
	g := NewGateway("gw", mustIP(t, "41.58.1.1"), "MTN", valueobj.GatewayTypeLocal)
	if g.ExceedsCPMLimit(60) {
		t.Fatalf("60 should not exceed default limit of 60")
	}
	if !g.ExceedsCPMLimit(61) {
		t.Fatalf("61 should exceed default limit of 60")
	}
}

func TestACDSuspiciousCheck(t *testing.T) {
	g := NewGateway("gw", mustIP(t, "41.58.1.1"), "MTN", valueobj.GatewayTypeLocal)
	if !g.IsACDSuspicious(10.0) {
		t.Fatalf("10.0 should be suspicious at default threshold 10.0")
	}
	if g.IsACDSuspicious(10.1) {
		t.Fatalf("10.1 should not be suspicious at default threshold 10.0")
	}
}
