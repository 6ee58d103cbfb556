// Package vms implements the subscriber side of the Vehicle Map Service:
// a single local listener subscribing to typed data streams keyed by
// (layer, version), decoupled from whichever process publishes them.
//
// After creating a Manager the first step must be SetListener; Subscribe
// and Unsubscribe can then be invoked. Incoming messages are delivered to
// the listener asynchronously, one at a time, in arrival order.
package vms

import (
	"context"

	"go.uber.org/zap"

	"github.com/vehiclemap/vms/pkg/errors"
	"github.com/vehiclemap/vms/pkg/logging"
)

// Manager is the subscriber-side facade. It owns the subscription registry,
// the single listener slot and the delivery queue, and talks to the remote
// publisher through the injected PublisherEndpoint.
//
// All methods are safe for concurrent use.
type Manager struct {
	endpoint PublisherEndpoint
	slot     *listenerSlot
	registry *registry
	dispatch *dispatcher
	logger   *logging.ColoredLogger
}

// NewManager creates a subscriber manager bound to the given endpoint. If
// the endpoint also implements DisconnectNotifier, the manager's disconnect
// hook is registered so a lost connection clears the listener.
func NewManager(endpoint PublisherEndpoint, logger *logging.ColoredLogger) (*Manager, error) {
	if endpoint == nil {
		return nil, errors.NewValidationError("endpoint", "publisher endpoint cannot be nil", nil)
	}
	if logger == nil {
		var err error
		logger, err = logging.NewDefaultLogger()
		if err != nil {
			return nil, errors.Wrap(err, "failed to create logger")
		}
	}

	m := &Manager{
		endpoint: endpoint,
		slot:     &listenerSlot{},
		registry: newRegistry(),
		logger:   logger,
	}
	m.dispatch = newDispatcher(m.slot, logger)

	if notifier, ok := endpoint.(DisconnectNotifier); ok {
		notifier.NotifyDisconnect(m.OnDisconnected)
	}

	return m, nil
}

// SetListener registers the single consumer callback. It fails with an
// AlreadyConfigured error while a listener is active; callers must
// ClearListener before replacing it.
func (m *Manager) SetListener(listener Listener) error {
	m.logger.ComponentDebug(logging.ComponentSubscriber, "setting listener")
	if err := m.slot.set(listener); err != nil {
		m.logger.ComponentWarn(logging.ComponentSubscriber, "set listener rejected", zap.Error(err))
		return err
	}
	return nil
}

// ClearListener removes the consumer callback. Idempotent. Existing
// subscriptions stay registered; messages arriving with no listener set
// are dropped at delivery time.
func (m *Manager) ClearListener() {
	m.logger.ComponentDebug(logging.ComponentSubscriber, "clearing listener")
	m.slot.clear()
}

// Subscribe registers interest in the given stream. The remote call happens
// before any local bookkeeping, so a failed call leaves no local record.
// Re-subscribing to an already-subscribed key re-issues the remote call and
// updates the silent flag.
//
// Fails with a PreconditionFailed error when no listener is set and with a
// NotConnected error when the endpoint is unreachable.
func (m *Manager) Subscribe(ctx context.Context, key LayerVersion, silent bool) error {
	m.logger.ComponentDebug(logging.ComponentSubscriber, "subscribing",
		zap.String("key", key.String()),
		zap.Bool("silent", silent))

	if _, ok := m.slot.current(); !ok {
		m.logger.ComponentWarn(logging.ComponentSubscriber,
			"subscribe: listener was not set, SetListener must be called first")
		return errors.NewPreconditionError("subscribe", "")
	}

	if err := m.endpoint.AddListener(ctx, key, silent, m.OnMessageReceived); err != nil {
		m.logger.ComponentError(logging.ComponentSubscriber, "could not reach publisher",
			zap.String("key", key.String()),
			zap.Error(err))
		if errors.IsNotConnected(err) {
			return err
		}
		return errors.NewNotConnectedError("", err)
	}

	m.registry.record(key, silent)
	return nil
}

// Unsubscribe withdraws interest in the given stream. The remote side not
// knowing the key is not an error; only a connectivity failure is surfaced,
// and in that case the local record is kept so local and remote state stay
// in step.
//
// Fails with a PreconditionFailed error when no listener is set.
func (m *Manager) Unsubscribe(ctx context.Context, key LayerVersion) error {
	m.logger.ComponentDebug(logging.ComponentSubscriber, "unsubscribing",
		zap.String("key", key.String()))

	if _, ok := m.slot.current(); !ok {
		m.logger.ComponentWarn(logging.ComponentSubscriber,
			"unsubscribe: listener was not set, SetListener must be called first")
		return errors.NewPreconditionError("unsubscribe", "")
	}

	if err := m.endpoint.RemoveListener(ctx, key); err != nil {
		m.logger.ComponentError(logging.ComponentSubscriber, "failed to unregister subscriber",
			zap.String("key", key.String()),
			zap.Error(err))
		if errors.IsNotConnected(err) {
			return err
		}
		return errors.NewNotConnectedError("", err)
	}

	m.registry.remove(key)
	return nil
}

// OnMessageReceived is the producer entry point handed to the endpoint as
// its DeliverFunc. It enqueues the message for asynchronous delivery and
// returns immediately.
func (m *Manager) OnMessageReceived(msg Message) {
	m.dispatch.enqueue(msg)
}

// OnDisconnected is invoked when the connection to the publisher is lost.
// The manager clears its listener; it does not attempt to notify the
// now-gone remote side.
func (m *Manager) OnDisconnected() {
	m.logger.ComponentWarn(logging.ComponentSubscriber, "publisher disconnected, clearing listener")
	m.slot.clear()
}

// Subscription returns the recorded subscription for key, if present.
func (m *Manager) Subscription(key LayerVersion) (Subscription, bool) {
	return m.registry.get(key)
}

// Subscriptions returns a snapshot of all current subscriptions.
func (m *Manager) Subscriptions() []Subscription {
	return m.registry.snapshot()
}

// Close shuts down the delivery worker and waits for any in-flight
// delivery to finish. Queued but undelivered messages are discarded. The
// manager must not be used after Close.
func (m *Manager) Close() {
	m.logger.ComponentDebug(logging.ComponentSubscriber, "closing subscriber manager")
	m.dispatch.close()
}
