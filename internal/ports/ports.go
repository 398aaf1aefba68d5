// Package ports defines the capability interfaces the detector is
// polymorphic over: window cache, record store, time-series sink, and
// event publisher. Concrete adapters are wired at startup in cmd/.
package ports

import (
	"context"
	"time"

	"github.com/abiolaogu/voxguard-detectord/internal/domain"
	"github.com/abiolaogu/voxguard-detectord/internal/domain/events"
)

// WindowCache is the abstract per-destination expiring set, cooldown
// flag, and blacklist set used by the window detector's hot path.
type WindowCache interface {
	// AddCaller inserts a into the set keyed by b and resets the key's
	// TTL to window, as a single atomic operation.
	AddCaller(ctx context.Context, b, a string, window time.Duration) error
	// DistinctCount returns the cardinality of the set keyed by b (0 if
	// absent).
	DistinctCount(ctx context.Context, b string) (int, error)
	// DistinctMembers returns the set contents (possibly empty).
	DistinctMembers(ctx context.Context, b string) ([]string, error)
	// SetCooldown marks b as in cooldown with the given TTL.
	SetCooldown(ctx context.Context, b string, ttl time.Duration) error
	// InCooldown reports whether b is currently in cooldown.
	InCooldown(ctx context.Context, b string) (bool, error)
	// IsBlacklisted reports blacklist membership for a gateway IP.
	IsBlacklisted(ctx context.Context, ip string) (bool, error)
	// AddBlacklist blacklists ip, optionally with a TTL (0 = indefinite).
	AddBlacklist(ctx context.Context, ip string, ttl time.Duration) error
}

// RecordStore is the persistent contract for calls, alerts, and
// gateway profiles.
type RecordStore interface {
	SaveCall(ctx context.Context, call *domain.Call) error
	FindCallsInWindow(ctx context.Context, bNumber string, from, to time.Time) ([]*domain.Call, error)
	CountDistinctCallers(ctx context.Context, bNumber string, from, to time.Time) (int, error)
	FlagAsFraud(ctx context.Context, callIDs []string, alertID string) (int, error)
	CleanupUnflaggedBefore(ctx context.Context, ts time.Time) (int, error)

	SaveAlert(ctx context.Context, alert *domain.FraudAlert) error
	LoadAlert(ctx context.Context, id string) (*domain.FraudAlert, error)
	PendingAlertCount(ctx context.Context) (int, error)

	LoadGateway(ctx context.Context, ip string) (*domain.Gateway, error)
	SaveGateway(ctx context.Context, gw *domain.Gateway) error
}

// TimeSeriesSink is the fire-and-forget analytics ingestion contract.
// Failures are logged by the caller but never fail the registration
// path.
type TimeSeriesSink interface {
	IngestCall(ctx context.Context, call *domain.Call) error
	IngestAlert(ctx context.Context, alert *domain.FraudAlert) error
	IngestEngineMetric(ctx context.Context, name string, value float64, tags map[string]string) error
	Close() error
}

// EventPublisher delivers domain events to external subscribers,
// at-least-once, ordered per aggregate id.
type EventPublisher interface {
	Publish(ctx context.Context, evt events.Event) error
}
