package dispatch

import (
	"go.uber.org/zap"

	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

// DefaultMaxDepth bounds how deeply event deliveries may nest
const DefaultMaxDepth = 64

// Stats summarizes the work a dispatcher has done
type Stats struct {
	Delivered int
	Dropped   int
	MaxDepth  int
}

// Dispatcher delivers model events to subscribed handlers. It implements
// metadata.Notifier and is meant to be installed on exactly one model.
type Dispatcher struct {
	registry *Registry
	logger   *zap.Logger
	maxDepth int

	depth int
	stats Stats
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithLogger sets the logger for delivery tracing
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMaxDepth sets the nesting limit. Values below 1 keep the default.
func WithMaxDepth(depth int) Option {
	return func(d *Dispatcher) {
		if depth > 0 {
			d.maxDepth = depth
		}
	}
}

// WithRegistry uses an existing registry
func WithRegistry(registry *Registry) Option {
	return func(d *Dispatcher) {
		d.registry = registry
	}
}

// New creates a dispatcher
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: NewRegistry(),
		logger:   zap.NewNop(),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Subscribe registers a handler for an event kind
func (d *Dispatcher) Subscribe(kind metadata.EventKind, name string, handler Handler) {
	d.registry.Register(kind, name, handler)
}

// Registry returns the subscription registry
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Notify delivers the event to every handler subscribed to its kind
func (d *Dispatcher) Notify(m *metadata.Model, e metadata.Event) {
	subs := d.registry.Subscriptions(e.Kind())
	if len(subs) == 0 {
		return
	}

	if d.depth >= d.maxDepth {
		d.stats.Dropped++
		d.logger.Warn("event dropped: maximum dispatch depth reached",
			zap.Stringer("event", e.Kind()),
			zap.Int("depth", d.depth))
		return
	}

	d.depth++
	defer func() { d.depth-- }()
	if d.depth > d.stats.MaxDepth {
		d.stats.MaxDepth = d.depth
	}

	// Handlers may subscribe while being notified; deliver to the current set only
	snapshot := append([]*Subscription(nil), subs...)
	for _, sub := range snapshot {
		d.logger.Debug("dispatching event",
			zap.Stringer("event", e.Kind()),
			zap.String("handler", sub.Name),
			zap.Int("depth", d.depth))
		sub.Handler(m, e)
		d.stats.Delivered++
	}
}

// Depth returns the current nesting depth; zero outside of a delivery
func (d *Dispatcher) Depth() int {
	return d.depth
}

// Stats returns delivery counters
func (d *Dispatcher) Stats() Stats {
	return d.stats
}
