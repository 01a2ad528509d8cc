// Package events delivers fire-and-forget notifications after successful
// mutating operations. Publication never affects operation outcome.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/Meridian-Network/marketplace_layer/pkg/logger"
)

// Type identifies a marketplace event.
type Type string

const (
	TypeInitialized       Type = "Initialized"
	TypeRoyaltyUpdated    Type = "RoyaltyUpdated"
	TypeServiceListed     Type = "ServiceListed"
	TypeServiceBought     Type = "ServiceBought"
	TypeServiceRepriced   Type = "ServiceRepriced"
	TypeServiceWithdrawn  Type = "ServiceWithdrawn"
	TypeAskPlaced         Type = "AskPlaced"
	TypeAskRepriced       Type = "AskRepriced"
	TypeAskAccepted       Type = "AskAccepted"
)

// Event carries the semantic fields of one successful mutating operation.
type Event struct {
	Type            Type      `json:"type"`
	Actor           string    `json:"actor"`
	AssetID         string    `json:"asset_id,omitempty"`
	Counterparty    string    `json:"counterparty,omitempty"`
	OriginalVendor  string    `json:"original_vendor,omitempty"`
	Price           uint64    `json:"price,omitempty"`
	OldPrice        uint64    `json:"old_price,omitempty"`
	NewPrice        uint64    `json:"new_price,omitempty"`
	RoyaltyAmount   uint64    `json:"royalty_amount,omitempty"`
	RemainingAmount uint64    `json:"remaining_amount,omitempty"`
	RoyaltyFeeBps   uint16    `json:"royalty_fee_basis_points,omitempty"`
	At              time.Time `json:"at"`
}

// Sink consumes events. Implementations must not block for long; slow sinks
// cause drops, never back-pressure on settlement.
type Sink interface {
	Publish(event Event)
}

// LogSink writes events to the structured log.
type LogSink struct {
	log *logger.Logger
}

// NewLogSink creates a sink writing to the given logger.
func NewLogSink(log *logger.Logger) *LogSink {
	if log == nil {
		log = logger.NewDefault("events")
	}
	return &LogSink{log: log}
}

func (s *LogSink) Publish(event Event) {
	s.log.WithField("event", string(event.Type)).
		WithField("actor", event.Actor).
		WithField("asset_id", event.AssetID).
		Info("marketplace event")
}

// Dispatcher fans events out to sinks on a background goroutine. Emit never
// blocks; events are dropped when the buffer is full.
type Dispatcher struct {
	sinks []Sink
	ch    chan Event
	log   *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewDispatcher creates a dispatcher with the given sinks.
func NewDispatcher(log *logger.Logger, sinks ...Sink) *Dispatcher {
	if log == nil {
		log = logger.NewDefault("events")
	}
	return &Dispatcher{
		sinks: sinks,
		ch:    make(chan Event, 256),
		log:   log,
	}
}

// Name implements system.Service.
func (d *Dispatcher) Name() string { return "event-dispatcher" }

// Start begins delivering events.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running = true

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case event := <-d.ch:
				for _, sink := range d.sinks {
					sink.Publish(event)
				}
			}
		}
	}()

	return nil
}

// Stop halts delivery. Buffered events that were not delivered are dropped.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	cancel := d.cancel
	d.running = false
	d.cancel = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Emit queues an event for delivery. Drops silently when the buffer is full.
func (d *Dispatcher) Emit(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	select {
	case d.ch <- event:
	default:
		d.log.WithField("event", string(event.Type)).Warn("event buffer full, dropping")
	}
}
