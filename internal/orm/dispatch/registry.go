// Package dispatch delivers model change events to subscribed handlers. Delivery is
// synchronous and ordered: handlers for an event kind run front to back in the order
// they subscribed, and a handler's own mutations are dispatched before it returns.
package dispatch

import (
	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

// Handler reacts to a model change event
type Handler func(m *metadata.Model, e metadata.Event)

// Subscription is a registered handler for one event kind
type Subscription struct {
	Name    string
	Kind    metadata.EventKind
	Handler Handler
}

// Registry keeps subscriptions per event kind in registration order
type Registry struct {
	subscriptions map[metadata.EventKind][]*Subscription
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		subscriptions: make(map[metadata.EventKind][]*Subscription),
	}
}

// Register appends a handler for the given event kind
func (r *Registry) Register(kind metadata.EventKind, name string, handler Handler) {
	r.subscriptions[kind] = append(r.subscriptions[kind], &Subscription{
		Name:    name,
		Kind:    kind,
		Handler: handler,
	})
}

// Subscriptions returns the handlers for an event kind, in delivery order
func (r *Registry) Subscriptions(kind metadata.EventKind) []*Subscription {
	return r.subscriptions[kind]
}

// HasSubscriptions returns true if any handler listens to the event kind
func (r *Registry) HasSubscriptions(kind metadata.EventKind) bool {
	return len(r.subscriptions[kind]) > 0
}

// Names returns the subscriber names for an event kind, in delivery order
func (r *Registry) Names(kind metadata.EventKind) []string {
	subs := r.subscriptions[kind]
	names := make([]string, len(subs))
	for i, s := range subs {
		names[i] = s.Name
	}
	return names
}
