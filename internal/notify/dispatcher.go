// Package notify fans appointment lifecycle events out to registered
// listeners. The dispatcher is built once at startup and handed to the
// scheduling service; it never reports listener failures back to the
// operation that raised the event.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"clinic-scheduler/internal/model"
	"clinic-scheduler/internal/scheduling"
)

type HandlerFunc func(ctx context.Context, a model.Appointment) error

// Listener reacts to a subset of events. Events missing from On are skipped.
type Listener struct {
	Name string
	On   map[scheduling.Event]HandlerFunc
}

// Outcome is the result of one listener for one event.
type Outcome struct {
	Listener string
	Err      error
}

type Dispatcher struct {
	mu        sync.RWMutex
	listeners []Listener
	log       zerolog.Logger
	inflight  sync.WaitGroup
}

func NewDispatcher(log zerolog.Logger) *Dispatcher {
	return &Dispatcher{log: log.With().Str("component", "notify").Logger()}
}

// Register appends l, replacing an existing listener of the same name in
// place.
func (d *Dispatcher) Register(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.listeners {
		if d.listeners[i].Name == l.Name {
			d.listeners[i] = l
			return
		}
	}
	d.listeners = append(d.listeners, l)
}

func (d *Dispatcher) Unregister(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.listeners {
		if d.listeners[i].Name == name {
			d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// Listeners returns the registered names in order.
func (d *Dispatcher) Listeners() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, len(d.listeners))
	for i, l := range d.listeners {
		out[i] = l.Name
	}
	return out
}

// Dispatch runs every matching handler concurrently and waits. A failing or
// panicking handler only affects its own Outcome. Outcomes follow
// registration order.
func (d *Dispatcher) Dispatch(ctx context.Context, ev scheduling.Event, a model.Appointment) []Outcome {
	d.mu.RLock()
	snapshot := make([]Listener, len(d.listeners))
	copy(snapshot, d.listeners)
	d.mu.RUnlock()

	var matched []Listener
	for _, l := range snapshot {
		if _, ok := l.On[ev]; ok {
			matched = append(matched, l)
		}
	}

	out := make([]Outcome, len(matched))
	p := pool.New()
	for i, l := range matched {
		p.Go(func() {
			out[i] = Outcome{Listener: l.Name, Err: invoke(ctx, l.On[ev], a)}
		})
	}
	p.Wait()
	return out
}

func invoke(ctx context.Context, h HandlerFunc, a model.Appointment) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return h(ctx, a)
}

// Notify dispatches in the background on a context detached from the
// caller's cancellation. Failed outcomes are logged.
func (d *Dispatcher) Notify(ctx context.Context, ev scheduling.Event, a model.Appointment) {
	ctx = context.WithoutCancel(ctx)
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		var errs []error
		for _, o := range d.Dispatch(ctx, ev, a) {
			if o.Err != nil {
				errs = append(errs, o.Err)
				d.log.Error().Err(o.Err).
					Str("listener", o.Listener).
					Str("event", string(ev)).
					Str("appointment_id", a.ID).
					Msg("notification listener failed")
			}
		}
		if len(errs) > 0 {
			d.log.Debug().Err(errors.Join(errs...)).Int("failed", len(errs)).Msg("dispatch finished with failures")
		}
	}()
}

// Drain blocks until background dispatches have finished.
func (d *Dispatcher) Drain() {
	d.inflight.Wait()
}
