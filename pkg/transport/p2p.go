// Package transport provides concrete publisher-endpoint implementations
// for the subscriber manager: a libp2p gossipsub endpoint for peer-to-peer
// deployments and a websocket endpoint for broker-based ones.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"go.uber.org/zap"

	"github.com/vehiclemap/vms/pkg/errors"
	"github.com/vehiclemap/vms/pkg/logging"
	"github.com/vehiclemap/vms/pkg/vms"
)

// announcement is published on the announce topic when a non-silent
// subscription is added or removed. Silent subscriptions never announce;
// that is the whole meaning of the flag on this transport.
type announcement struct {
	SubscriberID string `json:"subscriber_id"`
	Layer        int32  `json:"layer"`
	Version      int32  `json:"version"`
	Action       string `json:"action"` // "subscribe" or "unsubscribe"
	Timestamp    int64  `json:"timestamp"`
}

// P2PEndpoint implements vms.PublisherEndpoint over gossipsub. Each stream
// maps to one topic named "<prefix>/<layer>/<version>"; a receive goroutine
// per subscription feeds the manager's DeliverFunc.
type P2PEndpoint struct {
	ps           *pubsub.PubSub
	prefix       string
	subscriberID string
	logger       *logging.ColoredLogger

	mu      sync.Mutex
	topics  map[string]*pubsub.Topic
	streams map[vms.LayerVersion]*p2pStream
	hooks   []func()
	closed  bool

	disconnectOnce sync.Once
}

type p2pStream struct {
	sub    *pubsub.Subscription
	cancel context.CancelFunc
	silent bool
}

// NewP2PEndpoint creates a gossipsub-backed endpoint. The prefix namespaces
// all topics so unrelated deployments can share a mesh.
func NewP2PEndpoint(ps *pubsub.PubSub, prefix string, logger *logging.ColoredLogger) (*P2PEndpoint, error) {
	if ps == nil {
		return nil, errors.NewValidationError("pubsub", "pubsub instance cannot be nil", nil)
	}
	if prefix == "" {
		return nil, errors.NewValidationError("prefix", "topic prefix cannot be empty", nil)
	}
	if logger == nil {
		var err error
		logger, err = logging.NewDefaultLogger()
		if err != nil {
			return nil, errors.Wrap(err, "failed to create logger")
		}
	}

	return &P2PEndpoint{
		ps:           ps,
		prefix:       prefix,
		subscriberID: uuid.New().String(),
		logger:       logger,
		topics:       make(map[string]*pubsub.Topic),
		streams:      make(map[vms.LayerVersion]*p2pStream),
	}, nil
}

// TopicName returns the gossipsub topic carrying the given stream.
func (e *P2PEndpoint) TopicName(key vms.LayerVersion) string {
	return fmt.Sprintf("%s/%d/%d", e.prefix, key.Layer, key.Version)
}

// AnnounceTopicName returns the topic carrying subscriber announcements.
func (e *P2PEndpoint) AnnounceTopicName() string {
	return e.prefix + "/announce"
}

// getOrCreateTopic joins a topic once and caches it. Callers must hold e.mu.
func (e *P2PEndpoint) getOrCreateTopic(name string) (*pubsub.Topic, error) {
	if topic, exists := e.topics[name]; exists {
		return topic, nil
	}

	topic, err := e.ps.Join(name)
	if err != nil {
		return nil, fmt.Errorf("failed to join topic %s: %w", name, err)
	}
	e.topics[name] = topic
	return topic, nil
}

// AddListener subscribes to the stream's topic and starts its receive
// goroutine. Adding a key that is already registered only refreshes the
// silent flag and re-announces; the existing subscription keeps running.
func (e *P2PEndpoint) AddListener(ctx context.Context, key vms.LayerVersion, silent bool, deliver vms.DeliverFunc) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return errors.NewNotConnectedError("endpoint is closed", nil)
	}

	if st, exists := e.streams[key]; exists {
		st.silent = silent
		e.mu.Unlock()
		if !silent {
			e.announce(ctx, key, "subscribe")
		}
		return nil
	}

	topic, err := e.getOrCreateTopic(e.TopicName(key))
	if err != nil {
		e.mu.Unlock()
		return errors.NewNotConnectedError("", err)
	}

	sub, err := topic.Subscribe()
	if err != nil {
		e.mu.Unlock()
		return errors.NewNotConnectedError("", err)
	}

	recvCtx, cancel := context.WithCancel(context.Background())
	e.streams[key] = &p2pStream{sub: sub, cancel: cancel, silent: silent}
	e.mu.Unlock()

	go e.receiveLoop(recvCtx, key, sub, deliver)

	if !silent {
		e.announce(ctx, key, "subscribe")
	}

	e.logger.ComponentDebug(logging.ComponentTransport, "listener added",
		zap.String("key", key.String()),
		zap.Bool("silent", silent))
	return nil
}

// RemoveListener cancels the stream's receive goroutine. An unknown key is
// not an error.
func (e *P2PEndpoint) RemoveListener(ctx context.Context, key vms.LayerVersion) error {
	e.mu.Lock()
	st, exists := e.streams[key]
	if exists {
		st.cancel()
		st.sub.Cancel()
		delete(e.streams, key)
	}
	e.mu.Unlock()

	if exists && !st.silent {
		e.announce(ctx, key, "unsubscribe")
	}

	e.logger.ComponentDebug(logging.ComponentTransport, "listener removed",
		zap.String("key", key.String()),
		zap.Bool("was_registered", exists))
	return nil
}

// receiveLoop feeds every message on the stream's topic to the manager.
func (e *P2PEndpoint) receiveLoop(ctx context.Context, key vms.LayerVersion, sub *pubsub.Subscription, deliver vms.DeliverFunc) {
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			e.logger.ComponentWarn(logging.ComponentTransport, "receive failed",
				zap.String("key", key.String()),
				zap.Error(err))
			continue
		}
		deliver(vms.Message{Key: key, Payload: msg.Data})
	}
}

// announce publishes a best-effort presence announcement. Failures are
// logged; they never fail the subscribe/unsubscribe that triggered them.
func (e *P2PEndpoint) announce(ctx context.Context, key vms.LayerVersion, action string) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	topic, err := e.getOrCreateTopic(e.AnnounceTopicName())
	e.mu.Unlock()
	if err != nil {
		e.logger.ComponentWarn(logging.ComponentTransport, "failed to join announce topic", zap.Error(err))
		return
	}

	data, err := json.Marshal(announcement{
		SubscriberID: e.subscriberID,
		Layer:        key.Layer,
		Version:      key.Version,
		Action:       action,
		Timestamp:    time.Now().UnixMilli(),
	})
	if err != nil {
		e.logger.ComponentWarn(logging.ComponentTransport, "failed to marshal announcement", zap.Error(err))
		return
	}

	if err := topic.Publish(ctx, data); err != nil {
		e.logger.ComponentWarn(logging.ComponentTransport, "failed to publish announcement",
			zap.String("key", key.String()),
			zap.Error(err))
	}
}

// NotifyDisconnect registers a hook fired when the endpoint shuts down.
func (e *P2PEndpoint) NotifyDisconnect(hook func()) {
	e.mu.Lock()
	e.hooks = append(e.hooks, hook)
	e.mu.Unlock()
}

// Close cancels all receive goroutines, closes joined topics and fires the
// disconnect hooks once.
func (e *P2PEndpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true

	for _, st := range e.streams {
		st.cancel()
		st.sub.Cancel()
	}
	e.streams = make(map[vms.LayerVersion]*p2pStream)

	for _, topic := range e.topics {
		_ = topic.Close()
	}
	e.topics = make(map[string]*pubsub.Topic)

	hooks := append([]func(){}, e.hooks...)
	e.mu.Unlock()

	e.disconnectOnce.Do(func() {
		for _, hook := range hooks {
			hook()
		}
	})
	return nil
}
