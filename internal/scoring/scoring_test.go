package scoring

import (
	"testing"

	"github.com/abiolaogu/voxguard-detectord/internal/behavior"
	"github.com/abiolaogu/voxguard-detectord/internal/rules"
	"github.com/abiolaogu/voxguard-detectord/pkg/valueobj"
)

func TestCombineIsMaxNotAdditive(t *testing.T) {
	hits := []rules.Hit{
		{FraudType: valueobj.FraudTypeHeaderIntegrity, Contribution: 0.8},
		{FraudType: valueobj.FraudTypeAnonymousCaller, Contribution: 0.7},
	}
	res := Combine(hits, nil, false)
	if res.Confidence.Value() != 0.8 {
		t.Fatalf("expected max contribution 0.8, got %v", res.Confidence.Value())
	}
}

func TestBlacklistAlwaysBlocks(t *testing.T) {
	hits := []rules.Hit{{FraudType: valueobj.FraudTypeBlacklistedIP, Contribution: 1.0}}
	res := Combine(hits, nil, false)
	if res.Action != valueobj.ActionBlock {
		t.Fatalf("expected Block, got %s", res.Action)
	}
}

func TestCliMaskingHighConfidencePenaltyBilling(t *testing.T) {
	hits := []rules.Hit{{FraudType: valueobj.FraudTypeCliMasking, Contribution: 0.95}}
	res := Combine(hits, nil, false)
	if res.Action != valueobj.ActionPenaltyBilling {
		t.Fatalf("expected PenaltyBilling, got %s", res.Action)
	}
}

func TestHeaderIntegrityStripsCli(t *testing.T) {
	hits := []rules.Hit{{FraudType: valueobj.FraudTypeHeaderIntegrity, Contribution: 0.8}}
	res := Combine(hits, nil, false)
	if res.Action != valueobj.ActionStripCli {
		t.Fatalf("expected StripCli, got %s", res.Action)
	}
}

func TestModerateConfidenceFlags(t *testing.T) {
	hits := []rules.Hit{{FraudType: valueobj.FraudTypeAnonymousCaller, Contribution: 0.7}}
	res := Combine(hits, nil, false)
	if res.Action != valueobj.ActionFlag {
		t.Fatalf("expected Flag, got %s", res.Action)
	}
}

func TestNoHitsAllows(t *testing.T) {
	res := Combine(nil, nil, false)
	if res.Action != valueobj.ActionAllow {
		t.Fatalf("expected Allow, got %s", res.Action)
	}
	if res.Confidence.Value() != 0 {
		t.Fatalf("expected 0 confidence, got %v", res.Confidence.Value())
	}
}

func TestMaskingAttackIsFirstClassHit(t *testing.T) {
	res := Combine(nil, nil, true)
	if res.Confidence.Value() != 1.0 {
		t.Fatalf("expected confidence 1.0 from masking attack, got %v", res.Confidence.Value())
	}
	found := false
	for _, ft := range res.FraudTypes {
		if ft == valueobj.FraudTypeMaskingAttack {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected MaskingAttack in fraud types, got %+v", res.FraudTypes)
	}
}

func TestBehavioralHitsCPMCritical(t *testing.T) {
	th := behavior.DefaultThresholds()
	hits := BehavioralHits(behavior.Snapshot{CPM: 65}, th)
	if len(hits) != 1 || hits[0].FraudType != valueobj.FraudTypeSimBox {
		t.Fatalf("expected single SimBox hit, got %+v", hits)
	}
}

func TestBehavioralHitsCPMWarning(t *testing.T) {
	th := behavior.DefaultThresholds()
	hits := BehavioralHits(behavior.Snapshot{CPM: 45}, th)
	if len(hits) != 1 || hits[0].FraudType != valueobj.FraudTypeRateLimitExceeded {
		t.Fatalf("expected single RateLimitExceeded hit, got %+v", hits)
	}
}

func TestBehavioralHitsNoneBelowWarning(t *testing.T) {
	th := behavior.DefaultThresholds()
	hits := BehavioralHits(behavior.Snapshot{CPM: 10, ACD: 30, UniqueDestinations: 5}, th)
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %+v", hits)
	}
}

func TestBehavioralHitsHighUniqueDestinations(t *testing.T) {
	th := behavior.DefaultThresholds()
	hits := BehavioralHits(behavior.Snapshot{UniqueDestinations: 250}, th)
	found := false
	for _, h := range hits {
		if h.FraudType == valueobj.FraudTypeHighUniqueDestinations {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected HighUniqueDestinations hit, got %+v", hits)
	}
}
