package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls one portal's relay.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull discards routine events when the queue is full instead of
	// blocking the caller. Critical events wait up to CriticalWait first.
	DropIfFull   bool
	CriticalWait time.Duration
	// Source is stamped on events that do not carry one.
	Source string
}

// Dispatcher relays a portal's session and order events to a sink on its
// own goroutine so sinks never run on the caller's request path.
type Dispatcher struct {
	cfg  Config
	sink Sink

	// mu orders sends against Close: senders hold it shared, Close holds
	// it exclusively before closing queue.
	mu     sync.RWMutex
	closed bool
	queue  chan Event
	idle   chan struct{}

	dropped atomic.Uint64
	dropsMu sync.Mutex
	drops   map[string]uint64
}

// NewDispatcher starts the relay goroutine. It returns nil when cfg is
// disabled; a nil Dispatcher accepts and discards events.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.CriticalWait < 0 {
		cfg.CriticalWait = 0
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:   cfg,
		sink:  sink,
		queue: make(chan Event, cfg.BufferSize),
		idle:  make(chan struct{}),
		drops: make(map[string]uint64),
	}
	go d.relay()
	return d
}

func (d *Dispatcher) relay() {
	defer close(d.idle)
	for event := range d.queue {
		d.sink.Emit(context.Background(), event)
	}
}

// Emit stamps event with the time and source and queues it.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Source == "" {
		event.Source = d.cfg.Source
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	select {
	case d.queue <- event:
		return
	default:
	}

	if !d.cfg.DropIfFull {
		select {
		case d.queue <- event:
		case <-ctx.Done():
			d.drop(event)
		}
		return
	}
	if !event.Critical() || d.cfg.CriticalWait == 0 {
		d.drop(event)
		return
	}

	timer := time.NewTimer(d.cfg.CriticalWait)
	defer timer.Stop()
	select {
	case d.queue <- event:
	case <-timer.C:
		d.drop(event)
	case <-ctx.Done():
		d.drop(event)
	}
}

func (d *Dispatcher) drop(event Event) {
	d.dropped.Add(1)
	d.dropsMu.Lock()
	d.drops[event.EventType]++
	d.dropsMu.Unlock()
}

// Close stops accepting events and returns once everything queued has
// reached the sink. It waits for senders blocked on a full queue.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.idle
}

// Dropped counts events lost to a full queue.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// DroppedByType breaks Dropped down by event type.
func (d *Dispatcher) DroppedByType() map[string]uint64 {
	if d == nil {
		return nil
	}
	d.dropsMu.Lock()
	defer d.dropsMu.Unlock()
	out := make(map[string]uint64, len(d.drops))
	for k, v := range d.drops {
		out[k] = v
	}
	return out
}
