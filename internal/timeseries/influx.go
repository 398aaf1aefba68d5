// Package timeseries is the analytics ingestion adapter (C4): calls,
// alerts, and engine metrics are written as InfluxDB line-protocol
// points through influxdb-client-go's blocking write API. Each write
// holds the caller until it completes or the caller's context deadline
// passes; a failed write is returned to the caller, which logs it and
// continues per the TimeSeriesSink contract.
package timeseries

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/abiolaogu/voxguard-detectord/internal/domain"
)

// Sink writes call, alert, and metric points to an InfluxDB bucket.
type Sink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

// NewSink constructs a Sink against the given server, auth token, org,
// and bucket.
func NewSink(serverURL, token, org, bucket string) *Sink {
	client := influxdb2.NewClient(serverURL, token)
	return &Sink{client: client, writeAPI: client.WriteAPIBlocking(org, bucket)}
}

// Close flushes and releases the underlying HTTP client.
func (s *Sink) Close() error {
	s.client.Close()
	return nil
}

// IngestCall records one point per registered call: tags carry the
// B-number and call status, fields hold the A-number, source IP, flag
// state and score.
func (s *Sink) IngestCall(ctx context.Context, call *domain.Call) error {
	line := buildLine("calls", map[string]string{
		"b_number": call.BNumber.String(),
		"status":   string(call.Status),
	}, map[string]fieldValue{
		"a_number":   {str: call.ANumber.String()},
		"source_ip":  {str: call.SourceIP.String()},
		"is_flagged": {boolean: &call.IsFlagged},
		"score":      {float: floatPtr(call.Score.Value())},
	}, call.Timestamp)
	return s.writeAPI.WriteRecord(ctx, line)
}

// IngestAlert records one point per materialized fraud alert.
func (s *Sink) IngestAlert(ctx context.Context, alert *domain.FraudAlert) error {
	line := buildLine("fraud_alerts", map[string]string{
		"b_number":   alert.BNumber,
		"fraud_type": string(alert.FraudType),
		"status":     string(alert.Status),
	}, map[string]fieldValue{
		"score":            {float: floatPtr(alert.Score.Value())},
		"distinct_callers": {integer: int64Ptr(int64(alert.DistinctCallers))},
	}, alert.CreatedAt)
	return s.writeAPI.WriteRecord(ctx, line)
}

// IngestEngineMetric records an arbitrary named gauge with caller-
// supplied tags.
func (s *Sink) IngestEngineMetric(ctx context.Context, name string, value float64, tags map[string]string) error {
	line := buildLine(name, tags, map[string]fieldValue{
		"value": {float: floatPtr(value)},
	}, time.Now().UTC())
	return s.writeAPI.WriteRecord(ctx, line)
}

type fieldValue struct {
	str     string
	float   *float64
	integer *int64
	boolean *bool
}

// buildLine renders a single line-protocol record: measurement,
// comma-separated escaped tags, comma-separated typed fields, and a
// nanosecond timestamp, all independently escaped so no field or tag
// value can corrupt the record it appears in.
func buildLine(measurement string, tags map[string]string, fields map[string]fieldValue, ts time.Time) string {
	var b strings.Builder
	b.WriteString(escapeMeasurement(measurement))

	for k, v := range tags {
		if v == "" {
			continue
		}
		b.WriteByte(',')
		b.WriteString(escapeTag(k))
		b.WriteByte('=')
		b.WriteString(escapeTag(v))
	}

	b.WriteByte(' ')
	first := true
	for k, v := range fields {
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(escapeTag(k))
		b.WriteByte('=')
		switch {
		case v.float != nil:
			b.WriteString(strconv.FormatFloat(*v.float, 'f', -1, 64))
		case v.integer != nil:
			b.WriteString(strconv.FormatInt(*v.integer, 10))
			b.WriteByte('i')
		case v.boolean != nil:
			b.WriteString(strconv.FormatBool(*v.boolean))
		default:
			b.WriteByte('"')
			b.WriteString(escapeStringField(v.str))
			b.WriteByte('"')
		}
	}

	b.WriteByte(' ')
	b.WriteString(fmt.Sprintf("%d", ts.UnixNano()))
	return b.String()
}

func floatPtr(f float64) *float64 { return &f }
func int64Ptr(i int64) *int64     { return &i }
