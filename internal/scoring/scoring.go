// Package scoring combines rule-evaluator hits and behavioral hits
// into a single confidence score, ordered fraud-type list, and action
// decision per §4.6.
package scoring

import (
	"github.com/abiolaogu/voxguard-detectord/internal/behavior"
	"github.com/abiolaogu/voxguard-detectord/internal/rules"
	"github.com/abiolaogu/voxguard-detectord/pkg/valueobj"
)

// Hit mirrors rules.Hit so behavioral checks can be folded into the
// same ordered list without importing the rules package's Input type.
type Hit = rules.Hit

// BehavioralHits derives zero or more hits from a per-A-number
// behavioral snapshot against the configured thresholds.
func BehavioralHits(snap behavior.Snapshot, th behavior.Thresholds) []Hit {
	var hits []Hit

	switch {
	case snap.CPM >= th.CPMCritical:
		hits = append(hits, Hit{FraudType: valueobj.FraudTypeSimBox, Evidence: "CPM critical", Contribution: 0.9})
	case snap.CPM >= th.CPMWarning:
		hits = append(hits, Hit{FraudType: valueobj.FraudTypeRateLimitExceeded, Evidence: "CPM warning", Contribution: 0.6})
	}

	// ACD is only meaningful once at least one call has completed
	// (snap.ACD == 0 before then, which would otherwise look
	// "suspiciously short").
	if snap.ACD > 0 {
		switch {
		case snap.ACD <= th.ACDCritical:
			hits = append(hits, Hit{FraudType: valueobj.FraudTypeLowACD, Evidence: "ACD critical", Contribution: 0.85})
		case snap.ACD <= th.ACDWarning:
			hits = append(hits, Hit{FraudType: valueobj.FraudTypeLowACD, Evidence: "ACD warning", Contribution: 0.5})
		}
	}

	if snap.UniqueDestinations >= th.UniqueDstCritical {
		hits = append(hits, Hit{FraudType: valueobj.FraudTypeHighUniqueDestinations, Evidence: "unique destination fan-out critical", Contribution: 0.8})
	}

	return hits
}

// Result is the combined scoring outcome for a single call.
type Result struct {
	Confidence valueobj.FraudScore
	FraudTypes []valueobj.FraudType
	Action     valueobj.Action
}

// Combine folds rule hits, behavioral hits, and an optional
// window-detector MaskingAttack hit into a single Result.
// confidence = max(contribution) across all active hits, never
// additive. fraud_types preserves first-seen insertion order.
func Combine(ruleHits, behavioralHits []Hit, maskingAttack bool) Result {
	var all []Hit
	all = append(all, ruleHits...)
	all = append(all, behavioralHits...)
	if maskingAttack {
		all = append(all, Hit{FraudType: valueobj.FraudTypeMaskingAttack, Evidence: "window threshold crossed", Contribution: 1.0})
	}

	if len(all) == 0 {
		return Result{Confidence: valueobj.NewFraudScore(0), Action: valueobj.ActionAllow}
	}

	var maxContribution float64
	seen := make(map[valueobj.FraudType]struct{}, len(all))
	var types []valueobj.FraudType
	for _, h := range all {
		if h.Contribution > maxContribution {
			maxContribution = h.Contribution
		}
		if _, ok := seen[h.FraudType]; !ok {
			seen[h.FraudType] = struct{}{}
			types = append(types, h.FraudType)
		}
	}

	confidence := valueobj.NewFraudScore(maxContribution)

	return Result{
		Confidence: confidence,
		FraudTypes: types,
		Action:     decideAction(types, confidence.Value()),
	}
}

func hasType(types []valueobj.FraudType, want valueobj.FraudType) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}

// decideAction applies the first-match-wins table from §4.6.
func decideAction(types []valueobj.FraudType, confidence float64) valueobj.Action {
	switch {
	case hasType(types, valueobj.FraudTypeBlacklistedIP):
		return valueobj.ActionBlock
	case hasType(types, valueobj.FraudTypeCliMasking) && confidence >= 0.9:
		return valueobj.ActionPenaltyBilling
	case hasType(types, valueobj.FraudTypeSimBox) && confidence >= 0.85:
		return valueobj.ActionBlock
	case hasType(types, valueobj.FraudTypeHeaderIntegrity):
		return valueobj.ActionStripCli
	case confidence >= 0.5:
		return valueobj.ActionFlag
	default:
		return valueobj.ActionAllow
	}
}
