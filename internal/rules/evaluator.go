// Package rules implements the per-call deterministic checks of §4.3:
// blacklist, CLI masking, header integrity, anonymity, and STIR/SHAKEN.
package rules

import (
	"strings"

	"github.com/abiolaogu/voxguard-detectord/pkg/valueobj"
)

// Hit is a single rule match: a fraud kind, human-readable evidence,
// and its contribution toward the combined confidence score.
type Hit struct {
	FraudType    valueobj.FraudType
	Evidence     string
	Contribution float64
}

// Input is everything the rule evaluator needs for a single call.
type Input struct {
	ANumber             valueobj.MSISDN
	BNumber              valueobj.MSISDN
	SourceIP             valueobj.IPAddress
	IsSourceBlacklisted  bool
	PAssertedIdentity    string // raw header value, may be empty
	FromHeader           string // raw header value, may be empty
	CallerIDDisplay      string // caller-id display string, may be empty
	StirShakenPresent    bool
	StirShakenVerified   bool // only meaningful if StirShakenPresent
}

var anonymousCallerIDs = map[string]struct{}{
	"anonymous": {}, "private": {}, "restricted": {}, "unknown": {}, "unavailable": {},
}

// Evaluate runs the five checks in document order and returns the
// zero-or-more hits that fired.
func Evaluate(in Input) []Hit {
	var hits []Hit

	if h, ok := checkBlacklist(in); ok {
		hits = append(hits, h)
	}
	if h, ok := checkCliMasking(in); ok {
		hits = append(hits, h)
	}
	if h, ok := checkHeaderIntegrity(in); ok {
		hits = append(hits, h)
	}
	if h, ok := checkAnonymousCaller(in); ok {
		hits = append(hits, h)
	}
	if h, ok := checkStirShaken(in); ok {
		hits = append(hits, h)
	}

	return hits
}

func checkBlacklist(in Input) (Hit, bool) {
	if !in.IsSourceBlacklisted {
		return Hit{}, false
	}
	return Hit{
		FraudType:    valueobj.FraudTypeBlacklistedIP,
		Evidence:     "source IP " + in.SourceIP.String() + " is blacklisted",
		Contribution: 1.0,
	}, true
}

func checkCliMasking(in Input) (Hit, bool) {
	if in.SourceIP.IsLikelyInternational() && in.ANumber.IsNigerian() {
		return Hit{
			FraudType:    valueobj.FraudTypeCliMasking,
			Evidence:     "Nigerian A-number over international source IP " + in.SourceIP.String(),
			Contribution: 0.95,
		}, true
	}
	return Hit{}, false
}

func checkHeaderIntegrity(in Input) (Hit, bool) {
	if in.PAssertedIdentity == "" || in.FromHeader == "" {
		return Hit{}, false
	}
	asserted, errA := valueobj.NewMSISDN(extractNumber(in.PAssertedIdentity))
	from, errF := valueobj.NewMSISDN(extractNumber(in.FromHeader))
	if errA != nil || errF != nil {
		return Hit{}, false
	}
	if asserted.String() == from.String() {
		return Hit{}, false
	}
	if !asserted.IsNigerian() || !from.IsNigerian() {
		return Hit{}, false
	}
	return Hit{
		FraudType:    valueobj.FraudTypeHeaderIntegrity,
		Evidence:     "P-Asserted-Identity " + asserted.String() + " does not match From " + from.String(),
		Contribution: 0.8,
	}, true
}

func checkAnonymousCaller(in Input) (Hit, bool) {
	if !in.SourceIP.IsLikelyInternational() {
		return Hit{}, false
	}
	display := strings.ToLower(strings.TrimSpace(in.CallerIDDisplay))
	if _, ok := anonymousCallerIDs[display]; !ok {
		return Hit{}, false
	}
	return Hit{
		FraudType:    valueobj.FraudTypeAnonymousCaller,
		Evidence:     "caller-id display string \"" + in.CallerIDDisplay + "\" over international source",
		Contribution: 0.7,
	}, true
}

func checkStirShaken(in Input) (Hit, bool) {
	if !in.StirShakenPresent || in.StirShakenVerified {
		return Hit{}, false
	}
	return Hit{
		FraudType:    valueobj.FraudTypeStirShakenFailed,
		Evidence:     "STIR/SHAKEN attestation verification failed",
		Contribution: 0.8,
	}, true
}

// extractNumber pulls a phone number out of a sip:/tel: URI or returns
// the input unchanged if it carries no scheme.
func extractNumber(header string) string {
	h := strings.TrimSpace(header)
	// Strip a display name like `"Alice" <sip:+234...@example.com>`.
	if i := strings.Index(h, "<"); i >= 0 {
		if j := strings.Index(h[i:], ">"); j >= 0 {
			h = h[i+1 : i+j]
		}
	}
	h = strings.TrimPrefix(h, "sip:")
	h = strings.TrimPrefix(h, "tel:")
	if i := strings.Index(h, "@"); i >= 0 {
		h = h[:i]
	}
	return h
}
