package detector_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/abiolaogu/voxguard-detectord/internal/behavior"
	"github.com/abiolaogu/voxguard-detectord/internal/detector"
	"github.com/abiolaogu/voxguard-detectord/internal/windowcache"
)

func newTestDetector() (*detector.Detector, *fakeStore, *fakePublisher) {
	store := newFakeStore()
	pub := &fakePublisher{}
	d := detector.New(detector.DefaultConfig(), windowcache.NewMemoryCache(), store, fakeSink{}, pub, behavior.NewTracker(behavior.DefaultConfig()))
	return d, store, pub
}

func TestBelowThreshold_S1(t *testing.T) {
	d, _, _ := newTestDetector()
	ctx := context.Background()

	for i, a := range []string{"+2348011111111", "+2348022222222", "+2348033333333", "+2348044444444"} {
		res, err := d.RegisterCall(ctx, detector.CallRegistrationCommand{
			ANumber:  a,
			BNumber:  "+2348098765432",
			SourceIP: "203.0.113.5",
		})
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
		if res.Status != detector.StatusProcessed {
			t.Fatalf("call %d: expected processed, got %s", i, res.Status)
		}
		if res.DistinctCallers != i+1 {
			t.Fatalf("call %d: expected distinct_callers=%d, got %d", i, i+1, res.DistinctCallers)
		}
	}
}

func TestAtThreshold_S2(t *testing.T) {
	d, store, pub := newTestDetector()
	ctx := context.Background()

	var last *detector.Result
	for _, a := range []string{"+2348011111111", "+2348022222222", "+2348033333333", "+2348044444444", "+2348055555555"} {
		res, err := d.RegisterCall(ctx, detector.CallRegistrationCommand{
			ANumber:  a,
			BNumber:  "+2348098765432",
			SourceIP: "203.0.113.5",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		last = res
	}

	if last.Status != detector.StatusAlert {
		t.Fatalf("expected alert on 5th registration, got %s", last.Status)
	}
	if last.Alert == nil || last.Alert.FraudType != "MASKING_ATTACK" {
		t.Fatalf("expected MASKING_ATTACK alert, got %+v", last.Alert)
	}
	if last.DistinctCallers != 5 {
		t.Fatalf("expected distinct_callers=5, got %d", last.DistinctCallers)
	}
	if last.Alert.Severity != "Critical" {
		t.Fatalf("expected Critical severity at score 1.0, got %s", last.Alert.Severity)
	}
	if store.alertCount() != 1 {
		t.Fatalf("expected exactly 1 persisted alert, got %d", store.alertCount())
	}
	if n := pub.countType("FraudDetected"); n != 1 {
		t.Fatalf("expected exactly 1 published FraudDetected event, got %d", n)
	}
}

func TestCooldown_S3(t *testing.T) {
	d, store, _ := newTestDetector()
	ctx := context.Background()

	for _, a := range []string{"+2348011111111", "+2348022222222", "+2348033333333", "+2348044444444", "+2348055555555"} {
		if _, err := d.RegisterCall(ctx, detector.CallRegistrationCommand{ANumber: a, BNumber: "+2348098765432", SourceIP: "203.0.113.5"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	res, err := d.RegisterCall(ctx, detector.CallRegistrationCommand{
		ANumber:  "+2348066666666",
		BNumber:  "+2348098765432",
		SourceIP: "203.0.113.5",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != detector.StatusCooldown {
		t.Fatalf("expected cooldown, got %s", res.Status)
	}
	if res.DistinctCallers != 6 {
		t.Fatalf("expected distinct_callers=6, got %d", res.DistinctCallers)
	}
	if store.alertCount() != 1 {
		t.Fatalf("expected alert count unchanged at 1, got %d", store.alertCount())
	}
}

func TestBlacklist_S4(t *testing.T) {
	d, store, _ := newTestDetector()
	cache := windowcache.NewMemoryCache()
	d = detector.New(detector.DefaultConfig(), cache, store, fakeSink{}, nil, behavior.NewTracker(behavior.DefaultConfig()))
	ctx := context.Background()

	if err := cache.AddBlacklist(ctx, "203.0.113.99", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := d.RegisterCall(ctx, detector.CallRegistrationCommand{
		ANumber:  "+2348011111111",
		BNumber:  "+2348098765432",
		SourceIP: "203.0.113.99",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != detector.StatusBlocked {
		t.Fatalf("expected blocked, got %s", res.Status)
	}

	n, _ := cache.DistinctCount(ctx, "+2348098765432")
	if n != 0 {
		t.Fatalf("expected no window update for blocked call, got distinct_count=%d", n)
	}
	if len(store.calls) != 0 {
		t.Fatalf("expected no persisted calls for blocked call, got %d", len(store.calls))
	}
}

func TestFalsePositiveSuppression_S5(t *testing.T) {
	d, _, _ := newTestDetector()
	ctx := context.Background()

	for _, a := range []string{"+2348011111111", "+2348022222222", "+2348033333333", "+2348044444444"} {
		res, err := d.RegisterCall(ctx, detector.CallRegistrationCommand{
			ANumber:  a,
			BNumber:  "+2348098765432",
			SourceIP: "10.0.0.5", // private IP: call-center scenario
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Status != detector.StatusProcessed {
			t.Fatalf("expected processed, got %s", res.Status)
		}
	}
}

func TestCliMasking_S6(t *testing.T) {
	d, _, _ := newTestDetector()
	ctx := context.Background()

	res, err := d.RegisterCall(ctx, detector.CallRegistrationCommand{
		ANumber:  "+2348011111111",
		BNumber:  "+2348098765432",
		SourceIP: "203.0.113.5", // public, non-Nigerian
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != detector.StatusProcessed {
		t.Fatalf("window not crossed: expected processed, got %s", res.Status)
	}

	found := false
	for _, ft := range res.FraudTypes {
		if ft == "CLI_MASKING" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected CliMasking rule hit, got %+v", res.FraudTypes)
	}
	if res.Action != "PENALTY_BILLING" {
		t.Fatalf("expected PenaltyBilling action at confidence>=0.9, got %s", res.Action)
	}
}

func TestInvalidInputNoSideEffects(t *testing.T) {
	d, store, _ := newTestDetector()
	ctx := context.Background()

	if _, err := d.RegisterCall(ctx, detector.CallRegistrationCommand{ANumber: "garbage", BNumber: "+2348098765432", SourceIP: "203.0.113.5"}); err == nil {
		t.Fatalf("expected validation error")
	}
	if len(store.calls) != 0 {
		t.Fatalf("expected no persisted calls after validation failure, got %d", len(store.calls))
	}
}

func TestConcurrentThresholdCrossingYieldsExactlyOneAlert(t *testing.T) {
	// Property #10: under k concurrent threads crossing the threshold
	// on the same B-number, exactly one alert is created.
	d, store, _ := newTestDetector()
	ctx := context.Background()

	// Prime the window to threshold-1 distinct callers first.
	for _, a := range []string{"+2348011111111", "+2348022222222", "+2348033333333", "+2348044444444"} {
		if _, err := d.RegisterCall(ctx, detector.CallRegistrationCommand{ANumber: a, BNumber: "+2348098765432", SourceIP: "203.0.113.5"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	const k = 20
	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = d.RegisterCall(ctx, detector.CallRegistrationCommand{
				ANumber:  fmt.Sprintf("+23481%07d", 5000000+i),
				BNumber:  "+2348098765432",
				SourceIP: "203.0.113.5",
			})
		}(i)
	}
	wg.Wait()

	if store.alertCount() != 1 {
		t.Fatalf("expected exactly 1 alert under concurrent crossing, got %d", store.alertCount())
	}
}
