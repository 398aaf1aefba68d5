// Package detector implements the window detector (C7), the core
// registration procedure: parse/validate, blacklist short-circuit,
// window update, threshold compare, cooldown gate, and alert
// materialization (C9's alert aggregate), composed with the rule
// evaluator (C6), behavioral metrics (C5), and the scoring pipeline
// (C8).
package detector

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/abiolaogu/voxguard-detectord/internal/behavior"
	"github.com/abiolaogu/voxguard-detectord/internal/domain"
	"github.com/abiolaogu/voxguard-detectord/internal/domain/events"
	"github.com/abiolaogu/voxguard-detectord/internal/ports"
	"github.com/abiolaogu/voxguard-detectord/internal/rules"
	"github.com/abiolaogu/voxguard-detectord/internal/scoring"
	"github.com/abiolaogu/voxguard-detectord/pkg/apperror"
	"github.com/abiolaogu/voxguard-detectord/pkg/valueobj"
)

// Config is the per-registration policy, covering §6.4's configuration
// table.
type Config struct {
	Window           valueobj.DetectionWindow
	Threshold        valueobj.DetectionThreshold
	CooldownSeconds  int
	AutoBlockEnabled bool

	CacheTimeout time.Duration
	StoreTimeout time.Duration
	SinkTimeout  time.Duration

	BehaviorThresholds behavior.Thresholds
}

// DefaultConfig matches the documented defaults: window=5s,
// threshold=5, cooldown=60s, auto_block_enabled=true, deadlines
// 100ms/500ms/1s.
func DefaultConfig() Config {
	return Config{
		Window:             valueobj.DefaultDetectionWindow(),
		Threshold:          valueobj.DefaultDetectionThreshold(),
		CooldownSeconds:    60,
		AutoBlockEnabled:   true,
		CacheTimeout:       100 * time.Millisecond,
		StoreTimeout:       500 * time.Millisecond,
		SinkTimeout:        1 * time.Second,
		BehaviorThresholds: behavior.DefaultThresholds(),
	}
}

// Detector is the core application service, polymorphic over its
// capability ports per the redesign note in §9: ports are capability
// sets, the service itself holds no concrete adapter types.
type Detector struct {
	cfg       Config
	cache     ports.WindowCache
	store     ports.RecordStore
	sink      ports.TimeSeriesSink
	publisher ports.EventPublisher
	behavior  *behavior.Tracker
}

func New(cfg Config, cache ports.WindowCache, store ports.RecordStore, sink ports.TimeSeriesSink, publisher ports.EventPublisher, tracker *behavior.Tracker) *Detector {
	return &Detector{cfg: cfg, cache: cache, store: store, sink: sink, publisher: publisher, behavior: tracker}
}

// RegisterCall is the procedure in §4.4.
func (d *Detector) RegisterCall(ctx context.Context, cmd CallRegistrationCommand) (*Result, error) {
	start := time.Now()

	// Step 1: parse and validate; on failure, no side effects.
	a, err := valueobj.NewMSISDN(cmd.ANumber)
	if err != nil {
		return nil, apperror.Validationf("invalid a_number: %v", err)
	}
	b, err := valueobj.NewMSISDN(cmd.BNumber)
	if err != nil {
		return nil, apperror.Validationf("invalid b_number: %v", err)
	}
	ip, err := valueobj.NewIPAddress(cmd.SourceIP)
	if err != nil {
		return nil, apperror.Validationf("invalid source_ip: %v", err)
	}

	cacheCtx, cacheCancel := context.WithTimeout(ctx, d.cfg.CacheTimeout)
	defer cacheCancel()

	// Step 2: blacklist short-circuit. No persistence, no window
	// update, no alert.
	blacklisted, err := d.cache.IsBlacklisted(cacheCtx, ip.String())
	if err != nil {
		return nil, err
	}
	if blacklisted {
		return &Result{
			Status:    StatusBlocked,
			LatencyUs: time.Since(start).Microseconds(),
		}, nil
	}

	// Step 3: construct the Call aggregate.
	call := domain.NewCall(a, b, ip, cmd.SwitchID, cmd.RawCallID)
	if cmd.CallID != "" {
		call.ID = valueobj.CallID(cmd.CallID)
	}
	if !cmd.Timestamp.IsZero() {
		call.Timestamp = cmd.Timestamp
	}

	windowDur := time.Duration(d.cfg.Window.Seconds()) * time.Second

	// Step 4: add_caller(B, A, W).
	addCtx, addCancel := context.WithTimeout(ctx, d.cfg.CacheTimeout)
	defer addCancel()
	if err := d.cache.AddCaller(addCtx, b.String(), a.String(), windowDur); err != nil {
		return nil, err
	}

	// Step 5: n <- distinct_count(B).
	countCtx, countCancel := context.WithTimeout(ctx, d.cfg.CacheTimeout)
	defer countCancel()
	n, err := d.cache.DistinctCount(countCtx, b.String())
	if err != nil {
		return nil, err
	}

	// Step 6: persist the call; fire-and-forget to the time-series sink.
	storeCtx, storeCancel := context.WithTimeout(ctx, d.cfg.StoreTimeout)
	if err := d.store.SaveCall(storeCtx, call); err != nil {
		storeCancel()
		return nil, err
	}
	storeCancel()

	if d.publisher != nil {
		evt := events.NewCallRegistered(call.ID, a.String(), b.String(), ip.String())
		if err := d.publisher.Publish(ctx, evt); err != nil {
			log.Warn().Err(err).Str("call_id", string(call.ID)).Msg("event publish failed")
		}
	}

	if d.sink != nil {
		sinkCtx, sinkCancel := context.WithTimeout(ctx, d.cfg.SinkTimeout)
		if err := d.sink.IngestCall(sinkCtx, call); err != nil {
			log.Warn().Err(err).Str("call_id", string(call.ID)).Msg("time-series ingest_call failed")
		}
		sinkCancel()
	}

	// Rule evaluation and behavioral metrics run alongside the window
	// update and feed the scoring pipeline (§4.6) regardless of
	// whether the window threshold fires on this request.
	ruleHits := rules.Evaluate(rules.Input{
		ANumber:             a,
		BNumber:             b,
		SourceIP:            ip,
		IsSourceBlacklisted: false,
		PAssertedIdentity:   cmd.PAssertedIdentity,
		FromHeader:          cmd.FromHeader,
		CallerIDDisplay:     cmd.CallerIDDisplay,
		StirShakenPresent:   cmd.StirShakenPresent,
		StirShakenVerified:  cmd.StirShakenVerified,
	})

	var behavioralHits []scoring.Hit
	if d.behavior != nil {
		d.behavior.RecordCall(a.String(), b.String())
		snap := d.behavior.Snapshot(a.String())
		behavioralHits = scoring.BehavioralHits(snap, d.cfg.BehaviorThresholds)
	}

	threshold := d.cfg.Threshold.Count()

	// Step 7: below threshold.
	if n < threshold {
		scored := scoring.Combine(ruleHits, behavioralHits, false)
		return &Result{
			Status:          StatusProcessed,
			CallID:          string(call.ID),
			DistinctCallers: n,
			Threshold:       threshold,
			Confidence:      scored.Confidence,
			FraudTypes:      scored.FraudTypes,
			Action:          scored.Action,
			LatencyUs:       time.Since(start).Microseconds(),
		}, nil
	}

	// Step 8: at/above threshold but in cooldown.
	cooldownCtx, cooldownCancel := context.WithTimeout(ctx, d.cfg.CacheTimeout)
	inCooldown, err := d.cache.InCooldown(cooldownCtx, b.String())
	cooldownCancel()
	if err != nil {
		return nil, err
	}
	if inCooldown {
		scored := scoring.Combine(ruleHits, behavioralHits, false)
		return &Result{
			Status:          StatusCooldown,
			CallID:          string(call.ID),
			DistinctCallers: n,
			Threshold:       threshold,
			Confidence:      scored.Confidence,
			FraudTypes:      scored.FraudTypes,
			Action:          scored.Action,
			LatencyUs:       time.Since(start).Microseconds(),
		}, nil
	}

	// Step 9: materialize an alert. The cooldown set-on-success below is
	// the serialization point (§4.5 tie-breaks): a concurrent loser sees
	// in_cooldown=true on its own check above and takes the cooldown
	// branch instead.
	alert, err := d.materializeAlert(ctx, b, n)
	if err != nil {
		return nil, err
	}

	setCtx, setCancel := context.WithTimeout(ctx, d.cfg.CacheTimeout)
	err = d.cache.SetCooldown(setCtx, b.String(), time.Duration(d.cfg.CooldownSeconds)*time.Second)
	setCancel()
	if err != nil {
		return nil, err
	}

	scored := scoring.Combine(ruleHits, behavioralHits, true)

	return &Result{
		Status:          StatusAlert,
		CallID:          string(call.ID),
		DistinctCallers: n,
		Threshold:       threshold,
		Alert: &AlertPayload{
			AlertID:         string(alert.ID),
			BNumber:         alert.BNumber,
			FraudType:       string(alert.FraudType),
			Severity:        alert.Score.Severity().String(),
			Score:           alert.Score.Value(),
			DistinctCallers: alert.DistinctCallers,
			Description:     "distinct-caller threshold crossed for destination",
		},
		Confidence: scored.Confidence,
		FraudTypes: scored.FraudTypes,
		Action:     scored.Action,
		LatencyUs:  time.Since(start).Microseconds(),
	}, nil
}

// materializeAlert implements §4.5.
func (d *Detector) materializeAlert(ctx context.Context, b valueobj.MSISDN, n int) (*domain.FraudAlert, error) {
	membersCtx, membersCancel := context.WithTimeout(ctx, d.cfg.CacheTimeout)
	aNumbers, err := d.cache.DistinctMembers(membersCtx, b.String())
	membersCancel()
	if err != nil {
		return nil, err
	}

	score := valueobj.NewFraudScore(float64(n) / float64(d.cfg.Threshold.Count()))

	now := time.Now().UTC()
	windowStart := now.Add(-time.Duration(d.cfg.Window.Seconds()) * time.Second)

	findCtx, findCancel := context.WithTimeout(ctx, d.cfg.StoreTimeout)
	calls, err := d.store.FindCallsInWindow(findCtx, b.String(), windowStart, now)
	findCancel()
	if err != nil {
		return nil, err
	}

	callIDs := make([]string, 0, len(calls))
	sourceIPs := make([]string, 0, len(calls))
	seenIP := make(map[string]struct{})
	for _, c := range calls {
		callIDs = append(callIDs, string(c.ID))
		ipStr := c.SourceIP.String()
		if _, ok := seenIP[ipStr]; !ok {
			seenIP[ipStr] = struct{}{}
			sourceIPs = append(sourceIPs, ipStr)
		}
	}

	alert := domain.NewFraudAlert(b.String(), aNumbers, callIDs, sourceIPs, valueobj.FraudTypeMaskingAttack, score, windowStart, now)

	saveCtx, saveCancel := context.WithTimeout(ctx, d.cfg.StoreTimeout)
	err = d.store.SaveAlert(saveCtx, alert)
	saveCancel()
	if err != nil {
		return nil, err
	}

	flagCtx, flagCancel := context.WithTimeout(ctx, d.cfg.StoreTimeout)
	_, err = d.store.FlagAsFraud(flagCtx, callIDs, string(alert.ID))
	flagCancel()
	if err != nil {
		return nil, err
	}

	if d.sink != nil {
		sinkCtx, sinkCancel := context.WithTimeout(ctx, d.cfg.SinkTimeout)
		if err := d.sink.IngestAlert(sinkCtx, alert); err != nil {
			log.Warn().Err(err).Str("alert_id", string(alert.ID)).Msg("time-series ingest_alert failed")
		}
		sinkCancel()
	}

	if d.publisher != nil {
		evt := events.NewFraudDetected(alert.ID, alert.BNumber, alert.FraudType, alert.Score, alert.DistinctCallers, sourceIPs, callIDs)
		if err := d.publisher.Publish(ctx, evt); err != nil {
			log.Warn().Err(err).Str("alert_id", string(alert.ID)).Msg("event publish failed")
		}
	}

	return alert, nil
}
