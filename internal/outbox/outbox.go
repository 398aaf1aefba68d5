// Package outbox buffers domain events between aggregate mutation and
// publication, decoupling the registration hot path from whatever
// transport the event publisher uses. Grounded on the teacher's
// stop-channel/worker-goroutine shape (internal/anom.Detector).
package outbox

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/abiolaogu/voxguard-detectord/internal/domain/events"
	"github.com/abiolaogu/voxguard-detectord/internal/ports"
)

// isAlertEvent reports whether an event carries operator-facing signal
// that must never be dropped under back pressure.
func isAlertEvent(e events.Event) bool {
	switch e.EventType() {
	case "FraudDetected", "GatewayBlocked":
		return true
	default:
		return false
	}
}

// Outbox is a bounded, priority-aware event buffer: alert-carrying
// events (FraudDetected, GatewayBlocked) are queued on a dedicated
// channel that is never dropped from; routine events (CallRegistered,
// AlertAcknowledged, AlertResolved) share a separate channel, and a
// routine event pushed while that channel is full is dropped instead of
// queued.
type Outbox struct {
	publisher ports.EventPublisher
	alerts    chan events.Event
	routine   chan events.Event
	stop      chan struct{}
	dropped   atomic.Int64
}

// New starts a background worker draining both channels into
// publisher. alertCapacity and routineCapacity bound each channel
// independently.
func New(publisher ports.EventPublisher, alertCapacity, routineCapacity int) *Outbox {
	if alertCapacity <= 0 {
		alertCapacity = 256
	}
	if routineCapacity <= 0 {
		routineCapacity = 1024
	}
	o := &Outbox{
		publisher: publisher,
		alerts:    make(chan events.Event, alertCapacity),
		routine:   make(chan events.Event, routineCapacity),
		stop:      make(chan struct{}),
	}
	go o.run()
	return o
}

// Push enqueues e. Alert-carrying events always enqueue, blocking
// briefly if the alert channel is momentarily full; routine events are
// dropped instead of blocking the caller.
func (o *Outbox) Push(e events.Event) {
	if isAlertEvent(e) {
		o.alerts <- e
		return
	}
	select {
	case o.routine <- e:
	default:
		o.dropped.Add(1)
		log.Warn().Str("event_type", e.EventType()).Str("aggregate_id", e.AggregateID()).Msg("outbox: routine event dropped under back pressure")
	}
}

// Dropped returns the count of routine events dropped since startup.
func (o *Outbox) Dropped() int64 { return o.dropped.Load() }

// Publish satisfies ports.EventPublisher by enqueueing e for
// background delivery, letting the Outbox itself stand in as the
// detector's publisher dependency.
func (o *Outbox) Publish(ctx context.Context, e events.Event) error {
	o.Push(e)
	return nil
}

// Close stops the background worker. Already-buffered events are
// drained before returning.
func (o *Outbox) Close() {
	close(o.stop)
}

func (o *Outbox) run() {
	for {
		select {
		case e := <-o.alerts:
			o.publish(e)
		case e := <-o.routine:
			o.publish(e)
		case <-o.stop:
			o.drainRemaining()
			return
		}
	}
}

func (o *Outbox) drainRemaining() {
	for {
		select {
		case e := <-o.alerts:
			o.publish(e)
		case e := <-o.routine:
			o.publish(e)
		default:
			return
		}
	}
}

func (o *Outbox) publish(e events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.publisher.Publish(ctx, e); err != nil {
		log.Warn().Err(err).Str("event_type", e.EventType()).Str("aggregate_id", e.AggregateID()).Msg("outbox: publish failed")
	}
}
