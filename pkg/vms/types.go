package vms

import "fmt"

// LayerVersion identifies a single published data stream. Layer selects the
// data category, Version the schema revision of that layer. The zero value
// is a valid key. Comparable, used directly as a map key.
type LayerVersion struct {
	Layer   int32
	Version int32
}

func (k LayerVersion) String() string {
	return fmt.Sprintf("%d/%d", k.Layer, k.Version)
}

// Message is a single delivery from the remote publisher. The payload is
// opaque to this package; it is handed to the listener exactly once and
// never retained.
type Message struct {
	Key     LayerVersion
	Payload []byte
}

// Listener is the single consumer callback registered via SetListener.
// It is invoked by the delivery worker, one message at a time, in arrival
// order. A returned error is logged but does not stop delivery.
type Listener func(msg Message) error

// DeliverFunc is the handle a Manager gives to the publisher endpoint.
// The endpoint calls it from its own receive thread for every message on a
// subscribed stream; the call never blocks.
type DeliverFunc func(msg Message)

// Subscription records local interest in a stream. Silent subscriptions
// listen passively without announcing their presence to publishers.
type Subscription struct {
	Key    LayerVersion
	Silent bool
}
