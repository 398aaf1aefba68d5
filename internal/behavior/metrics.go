// Package behavior tracks per-A-number CPM, ACD, and unique-destination
// fan-out over a rolling window. It is process-local and
// non-authoritative by design (§4.2, §5): the window cache remains the
// authoritative cross-process signal.
package behavior

import (
	"sync"
	"sync/atomic"
	"time"
)

// Thresholds holds the warning/critical pairs from §4.2.
type Thresholds struct {
	CPMWarning          int
	CPMCritical         int
	ACDWarning          float64
	ACDCritical         float64
	UniqueDstWarning    int
	UniqueDstCritical   int
	ConcurrentWarning   int
	ConcurrentCritical  int
}

// DefaultThresholds matches the documented defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CPMWarning: 40, CPMCritical: 60,
		ACDWarning: 10.0, ACDCritical: 5.0,
		UniqueDstWarning: 100, UniqueDstCritical: 200,
		ConcurrentWarning: 20, ConcurrentCritical: 50,
	}
}

// Config controls bucket granularity and eviction, mirroring the
// teacher's anomaly-detector config shape.
type Config struct {
	CPMWindowSeconds      int // call-counting window, default 60
	Buckets               int // ring buckets, default = CPMWindowSeconds
	DestinationWindow     time.Duration // unique-destination window, default 300s
	EvictEverySeconds     int
	TTLSeconds            int
}

func DefaultConfig() Config {
	return Config{
		CPMWindowSeconds:  60,
		Buckets:           60,
		DestinationWindow: 300 * time.Second,
		EvictEverySeconds: 30,
		TTLSeconds:        600,
	}
}

type cpmBucketState struct {
	counts []int64
	idx    int
	tsSec  int64
	total  int64
}

type destinationSet struct {
	members map[string]time.Time // b-number -> last-seen
}

type perANumber struct {
	sync.Mutex
	cpm         *cpmBucketState
	destSet     *destinationSet
	durationSum float64
	durationN   int64
	lastSeen    int64
}

// Tracker is the concurrent, per-A-number metrics store, adapted from
// the teacher's bucketed ring-counter + janitor eviction shape
// (originally per {route,client} HTTP request counting), repurposed to
// per-A-number call counting.
type Tracker struct {
	cfg  Config
	keys sync.Map // a-number -> *perANumber
	stop chan struct{}
}

func NewTracker(cfg Config) *Tracker {
	if cfg.Buckets <= 0 {
		cfg.Buckets = cfg.CPMWindowSeconds
	}
	if cfg.EvictEverySeconds <= 0 {
		cfg.EvictEverySeconds = 30
	}
	t := &Tracker{cfg: cfg, stop: make(chan struct{})}
	if cfg.TTLSeconds > 0 {
		go t.janitor()
	}
	return t
}

func (t *Tracker) Close() {
	if t.stop != nil {
		close(t.stop)
	}
}

func (t *Tracker) loadOrCreate(aNumber string) *perANumber {
	v, _ := t.keys.LoadOrStore(aNumber, &perANumber{})
	return v.(*perANumber)
}

// RecordCall registers a call from aNumber to bNumber at the current
// instant and returns the resulting CPM (calls in the last
// CPMWindowSeconds) and unique-destination count within
// DestinationWindow.
func (t *Tracker) RecordCall(aNumber, bNumber string) (cpm int, uniqueDestinations int) {
	pk := t.loadOrCreate(aNumber)
	nowSec := time.Now().Unix()
	atomic.StoreInt64(&pk.lastSeen, nowSec)

	pk.Lock()
	defer pk.Unlock()

	if pk.cpm == nil {
		pk.cpm = &cpmBucketState{counts: make([]int64, t.cfg.Buckets), tsSec: nowSec}
	}
	rotateBuckets(pk.cpm, nowSec)
	pk.cpm.counts[pk.cpm.idx]++
	pk.cpm.total++

	if pk.destSet == nil {
		pk.destSet = &destinationSet{members: make(map[string]time.Time)}
	}
	now := time.Now()
	pk.destSet.members[bNumber] = now
	cutoff := now.Add(-t.cfg.DestinationWindow)
	for b, seen := range pk.destSet.members {
		if seen.Before(cutoff) {
			delete(pk.destSet.members, b)
		}
	}

	return int(pk.cpm.total), len(pk.destSet.members)
}

func rotateBuckets(s *cpmBucketState, nowSec int64) {
	delta := nowSec - s.tsSec
	if delta < 0 {
		delta = 0
	}
	if delta == 0 {
		return
	}
	steps := int(delta)
	if steps >= len(s.counts) {
		for i := range s.counts {
			s.counts[i] = 0
		}
		s.total = 0
		s.idx = 0
	} else {
		for i := 0; i < steps; i++ {
			s.idx = (s.idx + 1) % len(s.counts)
			s.total -= s.counts[s.idx]
			s.counts[s.idx] = 0
		}
	}
	s.tsSec = nowSec
}

// RecordDuration folds a terminated call's duration into the running
// ACD average. Durations arrive out-of-band from call termination,
// separate from RecordCall.
func (t *Tracker) RecordDuration(aNumber string, seconds float64) {
	pk := t.loadOrCreate(aNumber)
	pk.Lock()
	defer pk.Unlock()
	pk.durationSum += seconds
	pk.durationN++
}

// ACD returns the average call duration observed for aNumber, or 0 if
// none have completed yet.
func (t *Tracker) ACD(aNumber string) float64 {
	pk := t.loadOrCreate(aNumber)
	pk.Lock()
	defer pk.Unlock()
	if pk.durationN == 0 {
		return 0
	}
	return pk.durationSum / float64(pk.durationN)
}

// Snapshot is a read of the current CPM/ACD/unique-destination state
// for an A-number, used by the scoring pipeline's behavioral checks
// (scoring.BehavioralHits).
type Snapshot struct {
	CPM                int
	ACD                float64
	UniqueDestinations int
}

func (t *Tracker) Snapshot(aNumber string) Snapshot {
	pk := t.loadOrCreate(aNumber)
	pk.Lock()
	defer pk.Unlock()

	cpm := 0
	if pk.cpm != nil {
		rotateBuckets(pk.cpm, time.Now().Unix())
		cpm = int(pk.cpm.total)
	}
	acd := 0.0
	if pk.durationN > 0 {
		acd = pk.durationSum / float64(pk.durationN)
	}
	uniqueDst := 0
	if pk.destSet != nil {
		uniqueDst = len(pk.destSet.members)
	}
	return Snapshot{CPM: cpm, ACD: acd, UniqueDestinations: uniqueDst}
}

func (t *Tracker) janitor() {
	ticker := time.NewTicker(time.Duration(t.cfg.EvictEverySeconds) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			now := time.Now().Unix()
			ttl := int64(t.cfg.TTLSeconds)
			t.keys.Range(func(k, v any) bool {
				pk := v.(*perANumber)
				last := atomic.LoadInt64(&pk.lastSeen)
				if ttl > 0 && last > 0 && now-last > ttl {
					t.keys.Delete(k)
				}
				return true
			})
		}
	}
}
