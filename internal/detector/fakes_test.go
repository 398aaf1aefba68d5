package detector_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/abiolaogu/voxguard-detectord/internal/domain"
	"github.com/abiolaogu/voxguard-detectord/internal/domain/events"
	"github.com/abiolaogu/voxguard-detectord/pkg/valueobj"
)

// fakeStore is an in-memory RecordStore, grounded on the mock
// repository shape used for the application-service test suite it was
// adapted from: a mutex-guarded map standing in for a database.
type fakeStore struct {
	mu     sync.Mutex
	calls  map[string]*domain.Call
	alerts map[string]*domain.FraudAlert
}

func newFakeStore() *fakeStore {
	return &fakeStore{calls: make(map[string]*domain.Call), alerts: make(map[string]*domain.FraudAlert)}
}

func (s *fakeStore) SaveCall(ctx context.Context, call *domain.Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *call
	s.calls[string(call.ID)] = &cp
	return nil
}

func (s *fakeStore) FindCallsInWindow(ctx context.Context, bNumber string, from, to time.Time) ([]*domain.Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Call
	for _, c := range s.calls {
		if c.BNumber.String() != bNumber {
			continue
		}
		if c.IsFlagged {
			continue
		}
		if c.Timestamp.Before(from) || c.Timestamp.After(to) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (s *fakeStore) CountDistinctCallers(ctx context.Context, bNumber string, from, to time.Time) (int, error) {
	calls, _ := s.FindCallsInWindow(ctx, bNumber, from, to)
	seen := make(map[string]struct{})
	for _, c := range calls {
		seen[c.ANumber.String()] = struct{}{}
	}
	return len(seen), nil
}

func (s *fakeStore) FlagAsFraud(ctx context.Context, callIDs []string, alertID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, id := range callIDs {
		c, ok := s.calls[id]
		if !ok || c.IsFlagged {
			continue
		}
		aid := valueobj.AlertID(alertID)
		c.IsFlagged = true
		c.AlertID = &aid
		n++
	}
	return n, nil
}

func (s *fakeStore) CleanupUnflaggedBefore(ctx context.Context, ts time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, c := range s.calls {
		if !c.IsFlagged && c.Timestamp.Before(ts) {
			delete(s.calls, id)
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) SaveAlert(ctx context.Context, alert *domain.FraudAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *alert
	s.alerts[string(alert.ID)] = &cp
	return nil
}

func (s *fakeStore) LoadAlert(ctx context.Context, id string) (*domain.FraudAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *fakeStore) PendingAlertCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.alerts {
		if a.Status == "PENDING" {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) LoadGateway(ctx context.Context, ip string) (*domain.Gateway, error) {
	return nil, nil
}

func (s *fakeStore) SaveGateway(ctx context.Context, gw *domain.Gateway) error {
	return nil
}

func (s *fakeStore) alertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

// fakeSink discards ingestion; kept minimal since sink failures never
// affect the correctness path.
type fakeSink struct{}

func (fakeSink) IngestCall(ctx context.Context, call *domain.Call) error   { return nil }
func (fakeSink) IngestAlert(ctx context.Context, alert *domain.FraudAlert) error { return nil }
func (fakeSink) IngestEngineMetric(ctx context.Context, name string, value float64, tags map[string]string) error {
	return nil
}
func (fakeSink) Close() error { return nil }

// fakePublisher records published events for assertions.
type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *fakePublisher) Publish(ctx context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func (p *fakePublisher) countType(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.EventType() == eventType {
			n++
		}
	}
	return n
}
