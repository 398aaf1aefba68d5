// Package recordstore is the persistent RecordStore adapter (C3),
// grounded on the teacher pack's pgx/v5 + pgxpool connection pattern:
// a pool held behind a small struct, context-scoped queries, and a
// schema file applied once at startup.
package recordstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abiolaogu/voxguard-detectord/internal/domain"
	"github.com/abiolaogu/voxguard-detectord/pkg/apperror"
	"github.com/abiolaogu/voxguard-detectord/pkg/valueobj"
)

// PostgresStore implements ports.RecordStore over a pgxpool connection
// pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect opens the pool and verifies connectivity.
func Connect(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("recordstore: unable to connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("recordstore: ping failed: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema applies every migration file in migrationsDir, in
// lexical order. Each file is expected to be idempotent
// (CREATE ... IF NOT EXISTS), so this is safe to call on every boot.
func (s *PostgresStore) InitSchema(ctx context.Context, migrationsDir string) error {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("recordstore: read migrations dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".sql" {
			continue
		}
		b, err := os.ReadFile(filepath.Join(migrationsDir, e.Name()))
		if err != nil {
			return fmt.Errorf("recordstore: read migration %s: %w", e.Name(), err)
		}
		if _, err := s.pool.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("recordstore: apply migration %s: %w", e.Name(), err)
		}
	}
	return nil
}

// SaveCall upserts a single call row. Calls arrive one at a time off
// the registration hot path, so there is no batching benefit here;
// batching matters for FlagAsFraud instead, where the detector already
// holds a whole window's worth of call IDs.
func (s *PostgresStore) SaveCall(ctx context.Context, call *domain.Call) error {
	const q = `
		INSERT INTO calls (id, a_number, b_number, source_ip, ts, status, switch_id, raw_call_id, is_flagged, alert_id, score, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status, is_flagged = EXCLUDED.is_flagged,
			alert_id = EXCLUDED.alert_id, score = EXCLUDED.score, updated_at = EXCLUDED.updated_at
	`
	var alertID *string
	if call.AlertID != nil {
		v := string(*call.AlertID)
		alertID = &v
	}
	_, err := s.pool.Exec(ctx, q,
		string(call.ID), call.ANumber.String(), call.BNumber.String(), call.SourceIP.String(),
		call.Timestamp, string(call.Status), call.SwitchID, call.RawCallID,
		call.IsFlagged, alertID, call.Score.Value(), call.CreatedAt, call.UpdatedAt)
	if err != nil {
		return fmt.Errorf("recordstore: save call: %w", err)
	}
	return nil
}

// FindCallsInWindow returns the unflagged calls for bNumber within
// [from, to], most recent first.
func (s *PostgresStore) FindCallsInWindow(ctx context.Context, bNumber string, from, to time.Time) ([]*domain.Call, error) {
	const q = `
		SELECT id, a_number, b_number, source_ip, ts, status, switch_id, raw_call_id, is_flagged, alert_id, score, created_at, updated_at
		FROM calls
		WHERE b_number = $1 AND ts BETWEEN $2 AND $3 AND NOT is_flagged
		ORDER BY ts DESC
	`
	rows, err := s.pool.Query(ctx, q, bNumber, from, to)
	if err != nil {
		return nil, fmt.Errorf("recordstore: find calls in window: %w", err)
	}
	defer rows.Close()

	var out []*domain.Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountDistinctCallers is the store-backed fallback cardinality check
// (§4.2): used when the cache's authoritative count needs
// reconciliation, not on the hot path.
func (s *PostgresStore) CountDistinctCallers(ctx context.Context, bNumber string, from, to time.Time) (int, error) {
	const q = `
		SELECT COUNT(DISTINCT a_number) FROM calls
		WHERE b_number = $1 AND ts BETWEEN $2 AND $3 AND NOT is_flagged
	`
	var n int
	if err := s.pool.QueryRow(ctx, q, bNumber, from, to).Scan(&n); err != nil {
		return 0, fmt.Errorf("recordstore: count distinct callers: %w", err)
	}
	return n, nil
}

// FlagAsFraud flags every call in callIDs in a single statement,
// avoiding a per-row update loop: the window detector already has the
// full id list in hand from materializeAlert.
func (s *PostgresStore) FlagAsFraud(ctx context.Context, callIDs []string, alertID string) (int, error) {
	if len(callIDs) == 0 {
		return 0, nil
	}
	const q = `
		UPDATE calls SET is_flagged = TRUE, alert_id = $2, updated_at = now()
		WHERE id = ANY($1) AND NOT is_flagged
	`
	tag, err := s.pool.Exec(ctx, q, callIDs, alertID)
	if err != nil {
		return 0, fmt.Errorf("recordstore: flag as fraud: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// CleanupUnflaggedBefore deletes unflagged calls older than ts, the
// retention sweep described in §6.4's retention.unflagged_calls_seconds.
func (s *PostgresStore) CleanupUnflaggedBefore(ctx context.Context, ts time.Time) (int, error) {
	const q = `DELETE FROM calls WHERE NOT is_flagged AND ts < $1`
	tag, err := s.pool.Exec(ctx, q, ts)
	if err != nil {
		return 0, fmt.Errorf("recordstore: cleanup unflagged: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// SaveAlert upserts a fraud alert row, including its array columns.
func (s *PostgresStore) SaveAlert(ctx context.Context, alert *domain.FraudAlert) error {
	const q = `
		INSERT INTO fraud_alerts (id, b_number, a_numbers, call_ids, source_ips, fraud_type, score, distinct_callers, status,
			window_start, window_end, acknowledged_by, acknowledged_at, resolution, resolved_by, resolved_at, notes, ncc_reported, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		ON CONFLICT (id) DO UPDATE SET
			a_numbers = EXCLUDED.a_numbers, call_ids = EXCLUDED.call_ids, distinct_callers = EXCLUDED.distinct_callers,
			status = EXCLUDED.status, acknowledged_by = EXCLUDED.acknowledged_by, acknowledged_at = EXCLUDED.acknowledged_at,
			resolution = EXCLUDED.resolution, resolved_by = EXCLUDED.resolved_by, resolved_at = EXCLUDED.resolved_at,
			notes = EXCLUDED.notes, ncc_reported = EXCLUDED.ncc_reported, updated_at = EXCLUDED.updated_at
	`
	_, err := s.pool.Exec(ctx, q,
		string(alert.ID), alert.BNumber, alert.ANumbers, alert.CallIDs, alert.SourceIPs,
		string(alert.FraudType), alert.Score.Value(), alert.DistinctCallers, string(alert.Status),
		alert.WindowStart, alert.WindowEnd, alert.AcknowledgedBy, alert.AcknowledgedAt,
		string(alert.Resolution), alert.ResolvedBy, alert.ResolvedAt, alert.Notes, alert.NCCReported,
		alert.CreatedAt, alert.UpdatedAt)
	if err != nil {
		return fmt.Errorf("recordstore: save alert: %w", err)
	}
	return nil
}

// LoadAlert loads a single alert by id, or (nil, nil) if absent.
func (s *PostgresStore) LoadAlert(ctx context.Context, id string) (*domain.FraudAlert, error) {
	const q = `
		SELECT id, b_number, a_numbers, call_ids, source_ips, fraud_type, score, distinct_callers, status,
			window_start, window_end, acknowledged_by, acknowledged_at, resolution, resolved_by, resolved_at, notes, ncc_reported, created_at, updated_at
		FROM fraud_alerts WHERE id = $1
	`
	row := s.pool.QueryRow(ctx, q, id)
	alert, err := scanAlert(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("recordstore: load alert: %w", err)
	}
	return alert, nil
}

// PendingAlertCount reports the number of alerts awaiting acknowledgement.
func (s *PostgresStore) PendingAlertCount(ctx context.Context) (int, error) {
	const q = `SELECT COUNT(*) FROM fraud_alerts WHERE status = 'PENDING'`
	var n int
	if err := s.pool.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("recordstore: pending alert count: %w", err)
	}
	return n, nil
}

// LoadGateway loads a gateway profile by IP, or (nil, nil) if absent.
func (s *PostgresStore) LoadGateway(ctx context.Context, ip string) (*domain.Gateway, error) {
	const q = `
		SELECT id, name, ip, carrier, type, fraud_threshold, cpm_limit, acd_threshold, is_active, is_blacklisted, blacklist_expires_at, blacklist_reason
		FROM gateways WHERE ip = $1
	`
	row := s.pool.QueryRow(ctx, q, ip)
	var (
		id, name, ipStr, carrier, gwType, reason string
		fraudThreshold, acdThreshold             float64
		cpmLimit                                 int
		isActive, isBlacklisted                  bool
		expiresAt                                *time.Time
	)
	err := row.Scan(&id, &name, &ipStr, &carrier, &gwType, &fraudThreshold, &cpmLimit, &acdThreshold, &isActive, &isBlacklisted, &expiresAt, &reason)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("recordstore: load gateway: %w", err)
	}
	parsedIP, err := valueobj.NewIPAddress(ipStr)
	if err != nil {
		return nil, apperror.InvariantViolationf("recordstore: gateway %s has invalid stored ip %q: %v", id, ipStr, err)
	}
	return &domain.Gateway{
		ID: valueobj.GatewayID(id), Name: name, IP: parsedIP, Carrier: carrier,
		Type: valueobj.GatewayType(gwType), FraudThreshold: fraudThreshold, CPMLimit: cpmLimit,
		ACDThreshold: acdThreshold, IsActive: isActive, IsBlacklisted: isBlacklisted,
		BlacklistExpiresAt: expiresAt, BlacklistReason: reason,
	}, nil
}

// SaveGateway upserts a gateway profile keyed by its unique IP.
func (s *PostgresStore) SaveGateway(ctx context.Context, gw *domain.Gateway) error {
	const q = `
		INSERT INTO gateways (id, name, ip, carrier, type, fraud_threshold, cpm_limit, acd_threshold, is_active, is_blacklisted, blacklist_expires_at, blacklist_reason)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (ip) DO UPDATE SET
			name = EXCLUDED.name, carrier = EXCLUDED.carrier, type = EXCLUDED.type,
			fraud_threshold = EXCLUDED.fraud_threshold, cpm_limit = EXCLUDED.cpm_limit, acd_threshold = EXCLUDED.acd_threshold,
			is_active = EXCLUDED.is_active, is_blacklisted = EXCLUDED.is_blacklisted,
			blacklist_expires_at = EXCLUDED.blacklist_expires_at, blacklist_reason = EXCLUDED.blacklist_reason
	`
	_, err := s.pool.Exec(ctx, q,
		string(gw.ID), gw.Name, gw.IP.String(), gw.Carrier, string(gw.Type),
		gw.FraudThreshold, gw.CPMLimit, gw.ACDThreshold, gw.IsActive, gw.IsBlacklisted,
		gw.BlacklistExpiresAt, gw.BlacklistReason)
	if err != nil {
		return fmt.Errorf("recordstore: save gateway: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(r rowScanner) (*domain.Call, error) {
	var (
		id, aStr, bStr, ipStr, status, switchID, rawCallID string
		alertID                                            *string
		isFlagged                                          bool
		score                                               float64
		ts, createdAt, updatedAt                           time.Time
	)
	if err := r.Scan(&id, &aStr, &bStr, &ipStr, &ts, &status, &switchID, &rawCallID, &isFlagged, &alertID, &score, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("recordstore: scan call: %w", err)
	}
	a, err := valueobj.NewMSISDN(aStr)
	if err != nil {
		return nil, apperror.InvariantViolationf("recordstore: call %s has invalid stored a_number %q: %v", id, aStr, err)
	}
	b, err := valueobj.NewMSISDN(bStr)
	if err != nil {
		return nil, apperror.InvariantViolationf("recordstore: call %s has invalid stored b_number %q: %v", id, bStr, err)
	}
	ip, err := valueobj.NewIPAddress(ipStr)
	if err != nil {
		return nil, apperror.InvariantViolationf("recordstore: call %s has invalid stored source_ip %q: %v", id, ipStr, err)
	}
	c := &domain.Call{
		ID: valueobj.CallID(id), ANumber: a, BNumber: b, SourceIP: ip, Timestamp: ts,
		Status: valueobj.CallStatus(status), SwitchID: switchID, RawCallID: rawCallID,
		IsFlagged: isFlagged, Score: valueobj.NewFraudScore(score), CreatedAt: createdAt, UpdatedAt: updatedAt,
	}
	if alertID != nil {
		aid := valueobj.AlertID(*alertID)
		c.AlertID = &aid
	}
	return c, nil
}

func scanAlert(r rowScanner) (*domain.FraudAlert, error) {
	var (
		id, bNumber, fraudType, status, resolution, resolvedBy, acknowledgedBy, notes string
		aNumbers, callIDs, sourceIPs                                                  []string
		score                                                                          float64
		distinctCallers                                                               int
		nccReported                                                                   bool
		windowStart, windowEnd, createdAt, updatedAt                                  time.Time
		acknowledgedAt, resolvedAt                                                    *time.Time
	)
	if err := r.Scan(&id, &bNumber, &aNumbers, &callIDs, &sourceIPs, &fraudType, &score, &distinctCallers, &status,
		&windowStart, &windowEnd, &acknowledgedBy, &acknowledgedAt, &resolution, &resolvedBy, &resolvedAt, &notes, &nccReported, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	a := domain.NewFraudAlert(bNumber, aNumbers, callIDs, sourceIPs, valueobj.FraudType(fraudType), valueobj.NewFraudScore(score), windowStart, windowEnd)
	a.ID = valueobj.AlertID(id)
	a.Status = valueobj.AlertStatus(status)
	a.DistinctCallers = distinctCallers
	a.AcknowledgedBy = acknowledgedBy
	a.AcknowledgedAt = acknowledgedAt
	a.Resolution = valueobj.AlertResolution(resolution)
	a.ResolvedBy = resolvedBy
	a.ResolvedAt = resolvedAt
	a.Notes = notes
	a.NCCReported = nccReported
	a.CreatedAt = createdAt
	a.UpdatedAt = updatedAt
	return a, nil
}
