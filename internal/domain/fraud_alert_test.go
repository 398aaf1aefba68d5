package domain

import (
	"testing"
	"time"

	"github.com/abiolaogu/voxguard-detectord/pkg/valueobj"
)

func newTestAlert() *FraudAlert {
	now := time.Now().UTC()
	return NewFraudAlert(
		"+2348098765432",
		[]string{"+2348011111111", "+2348022222222"},
		[]string{"call-1", "call-2"},
		[]string{"203.0.113.5"},
		valueobj.FraudTypeMaskingAttack,
		valueobj.NewFraudScore(1.0),
		now.Add(-5*time.Second),
		now,
	)
}

func TestAlertCreation(t *testing.T) {
	a := newTestAlert()
	if a.Status != valueobj.AlertStatusPending {
		t.Fatalf("expected Pending, got %s", a.Status)
	}
	if a.DistinctCallers != 2 {
		t.Fatalf("expected distinct_callers=2, got %d", a.DistinctCallers)
	}
}

func TestAcknowledgeWorkflow(t *testing.T) {
	a := newTestAlert()
	if err := a.Acknowledge("ops-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != valueobj.AlertStatusAcknowledged {
		t.Fatalf("expected Acknowledged, got %s", a.Status)
	}
	if err := a.Acknowledge("ops-2"); err == nil {
		t.Fatalf("expected error acknowledging twice")
	}
}

func TestResolveWorkflow(t *testing.T) {
	a := newTestAlert()
	if err := a.Resolve("ops-1", valueobj.ResolutionConfirmedFraud, ""); err == nil {
		t.Fatalf("expected error resolving before acknowledge")
	}
	if err := a.Acknowledge("ops-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.Resolve("ops-1", valueobj.ResolutionConfirmedFraud, "confirmed via callback"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != valueobj.AlertStatusResolved {
		t.Fatalf("expected Resolved, got %s", a.Status)
	}
	if err := a.Resolve("ops-1", valueobj.ResolutionFalsePositive, ""); err == nil {
		t.Fatalf("expected error resolving an already-resolved alert")
	}
}

func TestAddEscalatingCalls(t *testing.T) {
	a := newTestAlert()
	err := a.AddCalls([]struct {
		CallID  string
		ANumber string
	}{
		{CallID: "call-1", ANumber: "+2348011111111"}, // duplicate
		{CallID: "call-3", ANumber: "+2348033333333"}, // new
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.DistinctCallers != 3 {
		t.Fatalf("expected distinct_callers=3, got %d", a.DistinctCallers)
	}
	if len(a.CallIDs) != 3 {
		t.Fatalf("expected 3 call ids, got %d", len(a.CallIDs))
	}

	// idempotent: re-adding the same pair does not change distinct_callers
	if err := a.AddCalls([]struct {
		CallID  string
		ANumber string
	}{{CallID: "call-3", ANumber: "+2348033333333"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.DistinctCallers != 3 {
		t.Fatalf("expected distinct_callers unchanged at 3, got %d", a.DistinctCallers)
	}
}

func TestAutoBlockThreshold(t *testing.T) {
	a := newTestAlert()
	a.Score = valueobj.NewFraudScore(1.0)
	if !a.ShouldAutoBlock() {
		t.Fatalf("expected auto-block for score 1.0")
	}
	a.Score = valueobj.NewFraudScore(0.5)
	if a.ShouldAutoBlock() {
		t.Fatalf("did not expect auto-block for score 0.5")
	}
}

func TestMarkNCCReported(t *testing.T) {
	a := newTestAlert()
	if err := a.MarkNCCReported(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != valueobj.AlertStatusReportedNCC {
		t.Fatalf("expected ReportedNCC, got %s", a.Status)
	}
	if err := a.MarkNCCReported(); err == nil {
		t.Fatalf("expected error reporting an already-terminal alert")
	}
}
