package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authcore/audit"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled     bool
	BufferSize  int
	DropIfFull  bool
	EmitTimeout time.Duration
}

// ErrorHandler receives sink failures. It runs on the dispatcher goroutine.
type ErrorHandler func(event audit.Event, err error)

// Dispatcher asynchronously forwards audit events to a sink.
type Dispatcher struct {
	cfg       Config
	sink      audit.Sink
	onError   ErrorHandler
	ch        chan audit.Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	failed    atomic.Uint64
	delivered atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func NewDispatcher(cfg Config, sink audit.Sink, onError ErrorHandler) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.EmitTimeout <= 0 {
		cfg.EmitTimeout = 5 * time.Second
	}
	if sink == nil {
		sink = audit.NoOpSink{}
	}

	d := &Dispatcher{
		cfg:     cfg,
		sink:    sink,
		onError: onError,
		ch:      make(chan audit.Event, cfg.BufferSize),
		done:    make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.deliver(event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(event audit.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.EmitTimeout)
	defer cancel()

	if err := d.sink.Emit(ctx, event); err != nil {
		d.failed.Add(1)
		if d.onError != nil {
			d.onError(event, err)
		}
		return
	}
	d.delivered.Add(1)
}

// Emit queues event. It never returns a sink error to the caller.
func (d *Dispatcher) Emit(ctx context.Context, event audit.Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		case <-d.done:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.done:
	}
}

// Close stops accepting events and drains the buffer.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *Dispatcher) Failed() uint64 {
	if d == nil {
		return 0
	}
	return d.failed.Load()
}

func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
