package vms

import "sync"

// registry tracks which streams the client is currently subscribed to.
// It only ever records state after the remote call has succeeded, so a
// failed remote call leaves no local trace.
type registry struct {
	mu   sync.Mutex
	subs map[LayerVersion]Subscription
}

func newRegistry() *registry {
	return &registry{
		subs: make(map[LayerVersion]Subscription),
	}
}

// record adds or updates the subscription for key. Re-recording an existing
// key updates the silent flag in place without duplicating the entry.
func (r *registry) record(key LayerVersion, silent bool) {
	r.mu.Lock()
	r.subs[key] = Subscription{Key: key, Silent: silent}
	r.mu.Unlock()
}

// remove deletes the subscription for key. Removing an absent key is a
// no-op.
func (r *registry) remove(key LayerVersion) {
	r.mu.Lock()
	delete(r.subs, key)
	r.mu.Unlock()
}

func (r *registry) get(key LayerVersion) (Subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[key]
	return sub, ok
}

// snapshot returns a copy of all current subscriptions.
func (r *registry) snapshot() []Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		out = append(out, sub)
	}
	return out
}
