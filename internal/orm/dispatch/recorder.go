package dispatch

import (
	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

// Recorded is one event observed by a Recorder
type Recorded struct {
	Event metadata.Event
	Depth int
}

// Recorder collects the events it is subscribed to. It is used to assert
// delivery order without a live set of conventions.
type Recorder struct {
	dispatcher *Dispatcher
	events     []Recorded
}

// NewRecorder subscribes a recorder to the given kinds on d
func NewRecorder(d *Dispatcher, kinds ...metadata.EventKind) *Recorder {
	r := &Recorder{dispatcher: d}
	for _, kind := range kinds {
		d.Subscribe(kind, "recorder", r.record)
	}
	return r
}

func (r *Recorder) record(_ *metadata.Model, e metadata.Event) {
	r.events = append(r.events, Recorded{Event: e, Depth: r.dispatcher.Depth()})
}

// Events returns every recorded event in delivery order
func (r *Recorder) Events() []Recorded {
	return append([]Recorded(nil), r.events...)
}

// Kinds returns the kinds of the recorded events in delivery order
func (r *Recorder) Kinds() []metadata.EventKind {
	kinds := make([]metadata.EventKind, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Event.Kind()
	}
	return kinds
}

// Reset forgets recorded events
func (r *Recorder) Reset() {
	r.events = nil
}
