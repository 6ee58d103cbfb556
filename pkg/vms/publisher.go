package vms

import "context"

// PublisherEndpoint is the contract with the remote publisher service. The
// concrete endpoint is injected at Manager construction; pkg/transport
// ships implementations over libp2p gossipsub and websocket.
type PublisherEndpoint interface {
	// AddListener registers interest in a stream. The endpoint invokes
	// deliver from its own receive thread for every message on the stream.
	// A connectivity failure is returned as an error and must leave no
	// registration behind.
	AddListener(ctx context.Context, key LayerVersion, silent bool, deliver DeliverFunc) error

	// RemoveListener withdraws interest in a stream. Absence of the key is
	// not an error; only connectivity failures are reported.
	RemoveListener(ctx context.Context, key LayerVersion) error
}

// DisconnectNotifier is implemented by endpoints that can report loss of
// the underlying connection. The Manager registers its disconnect hook at
// construction when the injected endpoint supports it.
type DisconnectNotifier interface {
	NotifyDisconnect(hook func())
}
