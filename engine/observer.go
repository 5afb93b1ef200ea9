package engine

import "sync"

// Listener receives state snapshots. Delivery is synchronous and in
// subscription order on every state change, plus once immediately upon
// subscribing.
type Listener func(State)

type subscription struct {
	id int
	fn Listener
}

// observerRegistry is an ordered set of listeners. Unsubscribing takes
// effect synchronously: once the returned cancel function has run, the
// listener receives no further deliveries.
type observerRegistry struct {
	mu     sync.Mutex
	nextID int
	subs   []subscription
}

func (r *observerRegistry) subscribe(fn Listener) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.subs = append(r.subs, subscription{id: id, fn: fn})
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, s := range r.subs {
			if s.id == id {
				r.subs = append(r.subs[:i], r.subs[i+1:]...)
				return
			}
		}
	}
}

func (r *observerRegistry) notify(state State) {
	r.mu.Lock()
	snapshot := make([]subscription, len(r.subs))
	copy(snapshot, r.subs)
	r.mu.Unlock()

	for _, s := range snapshot {
		// Re-check registration so an unsubscribe that completed between
		// the snapshot and this delivery suppresses it.
		if !r.registered(s.id) {
			continue
		}
		s.fn(state)
	}
}

func (r *observerRegistry) registered(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subs {
		if s.id == id {
			return true
		}
	}
	return false
}
