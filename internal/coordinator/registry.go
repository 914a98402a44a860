package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// ErrNotReady is returned by Ready when no coordinator became active in time.
var ErrNotReady = errors.New("no active coordinator")

// Registry is the registration for one durable scope. It tracks the tabs that
// are open and the coordinator currently in control of them.
type Registry struct {
	logger *slog.Logger

	mu          sync.Mutex
	active      *Coordinator
	ports       []Port
	ready       chan struct{}
	readyClosed bool
}

// NewRegistry returns an empty registration with no active coordinator.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{logger: logger, ready: make(chan struct{})}
}

// Attach registers an open tab and returns a function that detaches it.
func (r *Registry) Attach(p Port) (detach func()) {
	r.mu.Lock()
	r.ports = append(r.ports, p)
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			for i, existing := range r.ports {
				if existing == p {
					r.ports = append(r.ports[:i], r.ports[i+1:]...)
					return
				}
			}
		})
	}
}

// Clients returns the attached tabs in attach order.
func (r *Registry) Clients() []Port {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Port, len(r.ports))
	copy(out, r.ports)
	return out
}

func (r *Registry) attached(p Port) bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.ports {
		if existing == p {
			return true
		}
	}
	return false
}

// Install starts c and makes it the active coordinator at once, taking control
// of every attached tab. A previously active coordinator is stopped after it
// finishes the requests already posted to it.
func (r *Registry) Install(c *Coordinator) error {
	c.bind(r)
	if err := c.Start(); err != nil {
		return err
	}

	r.mu.Lock()
	prev := r.active
	r.active = c
	if !r.readyClosed {
		close(r.ready)
		r.readyClosed = true
	}
	claimed := len(r.ports)
	r.mu.Unlock()

	r.logger.Info("coordinator activated", "clients", claimed, "replaced", prev != nil)
	if prev != nil && prev != c {
		prev.Stop()
	}
	return nil
}

// Controller returns the active coordinator, or nil when none is installed.
func (r *Registry) Controller() *Coordinator {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Ready blocks until a coordinator is active or ctx is done.
func (r *Registry) Ready(ctx context.Context) (*Coordinator, error) {
	for {
		r.mu.Lock()
		active := r.active
		ready := r.ready
		r.mu.Unlock()
		if active != nil {
			return active, nil
		}
		select {
		case <-ready:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrNotReady, ctx.Err())
		}
	}
}

// Shutdown stops the active coordinator after it drains its queue.
// Tabs posting afterwards wait for a new Install.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	active := r.active
	r.active = nil
	if r.readyClosed {
		r.ready = make(chan struct{})
		r.readyClosed = false
	}
	r.mu.Unlock()

	if active != nil {
		active.Stop()
		r.logger.Info("coordinator shut down")
	}
}
