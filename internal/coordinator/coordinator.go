// Package coordinator serves quiz persistence requests for every attached tab.
//
// A Coordinator owns the ledgers for one durable scope. Tabs post typed
// requests; the coordinator applies them in arrival order and posts the
// resulting full map back, either to the requesting tab or to every tab
// attached to its Registry.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/verte-zerg/lajit/internal/model"
)

// ErrStopped is returned when posting to a coordinator that has been stopped.
var ErrStopped = errors.New("coordinator stopped")

const defaultQueueSize = 64

// Port is an addressable tab endpoint.
type Port interface {
	ID() string
	// Deliver hands msg to the tab without blocking and reports whether it was accepted.
	Deliver(msg model.Message) bool
}

// ScoreLedger is the score persistence the coordinator dispatches to.
type ScoreLedger interface {
	RecordSession(ctx context.Context, payload json.RawMessage) (model.ScoreMap, bool, error)
	GetAll(ctx context.Context) (model.ScoreMap, error)
	Clear(ctx context.Context) (model.ScoreMap, error)
}

// ItemLedger is the item persistence the coordinator dispatches to.
type ItemLedger interface {
	RecordItem(ctx context.Context, payload json.RawMessage) (model.ItemStatsMap, bool, error)
	GetAll(ctx context.Context) (model.ItemStatsMap, error)
}

// State is the lifecycle state of a coordinator.
type State int

const (
	// StateNew means Start has not been called.
	StateNew State = iota
	// StateRunning means requests are being accepted.
	StateRunning
	// StateStopped means the coordinator no longer accepts requests.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateRunning:
		return "running"
	default:
		return "stopped"
	}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithQueueSize sets how many posted requests may wait for dispatch.
func WithQueueSize(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

type envelope struct {
	req    model.Request
	source Port
}

// Coordinator dispatches tab requests to the ledgers.
type Coordinator struct {
	scores    ScoreLedger
	items     ItemLedger
	logger    *slog.Logger
	queueSize int

	reg atomic.Pointer[Registry]

	mu    sync.RWMutex
	state State
	inbox chan envelope
	done  chan struct{}
}

// New returns a coordinator that is not yet running.
func New(scores ScoreLedger, items ItemLedger, opts ...Option) *Coordinator {
	c := &Coordinator{
		scores:    scores,
		items:     items,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		queueSize: defaultQueueSize,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State reports the lifecycle state.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Start begins dispatching. Starting a running coordinator is a no-op.
func (c *Coordinator) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateRunning:
		return nil
	case StateStopped:
		return ErrStopped
	}
	c.state = StateRunning
	c.inbox = make(chan envelope, c.queueSize)
	go c.loop(c.inbox)
	c.logger.Debug("coordinator started")
	return nil
}

// Stop refuses new requests, finishes every request already posted, then returns.
// Stop is idempotent.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	prev := c.state
	c.state = StateStopped
	if prev == StateRunning {
		close(c.inbox)
	}
	c.mu.Unlock()

	switch prev {
	case StateRunning:
		<-c.done
		c.logger.Debug("coordinator stopped")
	case StateNew:
		close(c.done)
	}
}

// Done is closed once the coordinator has stopped and drained its queue.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Post queues req for dispatch. source identifies the requesting tab and may be nil.
// Post blocks only while the queue is full.
func (c *Coordinator) Post(req model.Request, source Port) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateRunning {
		return ErrStopped
	}
	c.inbox <- envelope{req: req, source: source}
	return nil
}

func (c *Coordinator) bind(reg *Registry) {
	c.reg.Store(reg)
}

func (c *Coordinator) registry() *Registry {
	return c.reg.Load()
}

func (c *Coordinator) loop(inbox <-chan envelope) {
	defer close(c.done)
	// Requests always run to completion; there is no cancellation.
	ctx := context.Background()
	for env := range inbox {
		c.handle(ctx, env)
	}
}

func (c *Coordinator) handle(ctx context.Context, env envelope) {
	req := env.req
	logger := c.logger.With("type", req.Type)
	switch req.Type {
	case model.TypeSaveScore:
		scores, ok, err := c.scores.RecordSession(ctx, req.Payload)
		if err != nil {
			logger.Error("failed to save score", "error", err)
			return
		}
		if !ok {
			logger.Debug("dropping malformed request")
			return
		}
		c.respondScores(logger, c.broadcast(), scores)
	case model.TypeRequestScores:
		scores, err := c.scores.GetAll(ctx)
		if err != nil {
			logger.Error("failed to read scores", "error", err)
			return
		}
		c.respondScores(logger, c.replyTo(env.source), scores)
	case model.TypeClearScores:
		scores, err := c.scores.Clear(ctx)
		if err != nil {
			logger.Error("failed to clear scores", "error", err)
			return
		}
		c.respondScores(logger, c.broadcast(), scores)
	case model.TypeSaveItemStats:
		items, ok, err := c.items.RecordItem(ctx, req.Payload)
		if err != nil {
			logger.Error("failed to save item stats", "error", err)
			return
		}
		if !ok {
			logger.Debug("dropping malformed request")
			return
		}
		c.respondItems(logger, c.broadcast(), items)
	case model.TypeRequestItemStats:
		items, err := c.items.GetAll(ctx)
		if err != nil {
			logger.Error("failed to read item stats", "error", err)
			return
		}
		c.respondItems(logger, c.replyTo(env.source), items)
	default:
		logger.Debug("ignoring unknown request")
	}
}

func (c *Coordinator) respondScores(logger *slog.Logger, to responder, scores model.ScoreMap) {
	msg, err := model.ScoresUpdated(scores)
	if err != nil {
		logger.Error("failed to encode response", "error", err)
		return
	}
	n := to.respond(msg)
	logger.Debug("response posted", "strategy", to.name(), "delivered", n)
}

func (c *Coordinator) respondItems(logger *slog.Logger, to responder, items model.ItemStatsMap) {
	msg, err := model.ItemStatsUpdated(items)
	if err != nil {
		logger.Error("failed to encode response", "error", err)
		return
	}
	n := to.respond(msg)
	logger.Debug("response posted", "strategy", to.name(), "delivered", n)
}

// replyTo answers the requesting tab directly when it is still attached, and
// falls back to a broadcast otherwise.
func (c *Coordinator) replyTo(source Port) responder {
	reg := c.registry()
	if source != nil && reg.attached(source) {
		return directReply{port: source}
	}
	return broadcast{reg: reg}
}

func (c *Coordinator) broadcast() responder {
	return broadcast{reg: c.registry()}
}

type responder interface {
	name() string
	respond(msg model.Message) int
}

type directReply struct {
	port Port
}

func (directReply) name() string { return "reply" }

func (r directReply) respond(msg model.Message) int {
	if r.port.Deliver(msg) {
		return 1
	}
	return 0
}

type broadcast struct {
	reg *Registry
}

func (broadcast) name() string { return "broadcast" }

func (b broadcast) respond(msg model.Message) int {
	n := 0
	for _, port := range b.reg.Clients() {
		if port.Deliver(msg) {
			n++
		}
	}
	return n
}
