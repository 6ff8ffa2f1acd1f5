package events

import "slices"

// WorkingSet is an ordered, id-unique snapshot of events. It is never
// modified after construction: Replace and Merge return new snapshots, so a
// WorkingSet can be shared freely between goroutines.
type WorkingSet struct {
	events []Event
	ids    map[string]struct{}
}

// NewWorkingSet returns an empty working set.
func NewWorkingSet() *WorkingSet {
	return &WorkingSet{ids: make(map[string]struct{})}
}

// Replace returns a working set holding fetched in order. When fetched repeats
// an id the first occurrence wins.
func Replace(fetched []Event) *WorkingSet {
	return NewWorkingSet().appendNew(fetched)
}

// Merge returns the working set extended with every event of fetched whose id
// is not already present, in fetched order, together with the events that
// were appended. Existing events keep their position and content. Merging an
// unchanged feed twice returns an identical set and no additions.
func (w *WorkingSet) Merge(fetched []Event) (*WorkingSet, []Event) {
	next := w.appendNew(fetched)
	return next, slices.Clone(next.events[len(w.events):])
}

func (w *WorkingSet) appendNew(fetched []Event) *WorkingSet {
	next := &WorkingSet{
		events: make([]Event, len(w.events), len(w.events)+len(fetched)),
		ids:    make(map[string]struct{}, len(w.ids)+len(fetched)),
	}
	copy(next.events, w.events)
	for id := range w.ids {
		next.ids[id] = struct{}{}
	}

	for _, e := range fetched {
		if _, seen := next.ids[e.ID]; seen {
			continue
		}
		next.ids[e.ID] = struct{}{}
		next.events = append(next.events, e)
	}
	return next
}

// List returns a copy of the events in insertion order.
func (w *WorkingSet) List() []Event {
	out := make([]Event, len(w.events))
	copy(out, w.events)
	return out
}

// Len returns the number of events.
func (w *WorkingSet) Len() int {
	return len(w.events)
}

// Contains reports whether an event with id is present.
func (w *WorkingSet) Contains(id string) bool {
	_, ok := w.ids[id]
	return ok
}

// IDs returns the event ids in insertion order.
func (w *WorkingSet) IDs() []string {
	ids := make([]string, len(w.events))
	for i, e := range w.events {
		ids[i] = e.ID
	}
	return ids
}
