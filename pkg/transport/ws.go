package transport

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vehiclemap/vms/pkg/errors"
	"github.com/vehiclemap/vms/pkg/logging"
	"github.com/vehiclemap/vms/pkg/vms"
)

const wsWriteTimeout = 30 * time.Second

// wsControl is the frame the client sends to the broker to change its
// subscriptions.
type wsControl struct {
	Action       string `json:"action"` // "subscribe" or "unsubscribe"
	Layer        int32  `json:"layer"`
	Version      int32  `json:"version"`
	Silent       bool   `json:"silent,omitempty"`
	SubscriberID string `json:"subscriber_id"`
}

// wsEnvelope is the frame the broker sends for every published message on a
// subscribed stream. Data is base64 encoded.
type wsEnvelope struct {
	Layer     int32  `json:"layer"`
	Version   int32  `json:"version"`
	Data      string `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

// WSEndpoint implements vms.PublisherEndpoint over a single websocket
// connection to a VMS broker. One read loop routes incoming envelopes to
// the DeliverFunc registered for their stream; loss of the connection fires
// the disconnect hooks.
type WSEndpoint struct {
	conn         *websocket.Conn
	subscriberID string
	logger       *logging.ColoredLogger

	mu       sync.Mutex
	delivers map[vms.LayerVersion]vms.DeliverFunc
	hooks    []func()
	closed   bool

	disconnectOnce sync.Once
	done           chan struct{}
}

// DialWS connects to the broker and starts the read loop.
func DialWS(ctx context.Context, brokerURL string, logger *logging.ColoredLogger) (*WSEndpoint, error) {
	if logger == nil {
		var err error
		logger, err = logging.NewDefaultLogger()
		if err != nil {
			return nil, errors.Wrap(err, "failed to create logger")
		}
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, brokerURL, nil)
	if err != nil {
		return nil, errors.NewNotConnectedError("", err).WithEndpoint(brokerURL)
	}

	e := &WSEndpoint{
		conn:         conn,
		subscriberID: uuid.New().String(),
		logger:       logger,
		delivers:     make(map[vms.LayerVersion]vms.DeliverFunc),
		done:         make(chan struct{}),
	}
	go e.readLoop()

	logger.ComponentInfo(logging.ComponentTransport, "connected to broker",
		zap.String("url", brokerURL),
		zap.String("subscriber_id", e.subscriberID))
	return e, nil
}

// writeControl sends one control frame under the write lock.
func (e *WSEndpoint) writeControl(ctrl wsControl) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errors.NewNotConnectedError("endpoint is closed", nil)
	}

	e.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := e.conn.WriteJSON(ctrl); err != nil {
		return errors.NewNotConnectedError("", err)
	}
	return nil
}

// AddListener tells the broker to start forwarding the stream, then records
// the deliver function. A failed write leaves no local registration.
func (e *WSEndpoint) AddListener(ctx context.Context, key vms.LayerVersion, silent bool, deliver vms.DeliverFunc) error {
	if err := e.writeControl(wsControl{
		Action:       "subscribe",
		Layer:        key.Layer,
		Version:      key.Version,
		Silent:       silent,
		SubscriberID: e.subscriberID,
	}); err != nil {
		return err
	}

	e.mu.Lock()
	e.delivers[key] = deliver
	e.mu.Unlock()

	e.logger.ComponentDebug(logging.ComponentTransport, "listener added",
		zap.String("key", key.String()),
		zap.Bool("silent", silent))
	return nil
}

// RemoveListener tells the broker to stop forwarding the stream. An unknown
// key is not an error; only a connection failure is.
func (e *WSEndpoint) RemoveListener(ctx context.Context, key vms.LayerVersion) error {
	if err := e.writeControl(wsControl{
		Action:       "unsubscribe",
		Layer:        key.Layer,
		Version:      key.Version,
		SubscriberID: e.subscriberID,
	}); err != nil {
		return err
	}

	e.mu.Lock()
	delete(e.delivers, key)
	e.mu.Unlock()

	e.logger.ComponentDebug(logging.ComponentTransport, "listener removed",
		zap.String("key", key.String()))
	return nil
}

// readLoop routes broker envelopes to the registered deliver functions. It
// exits on any read error, which also fires the disconnect hooks.
func (e *WSEndpoint) readLoop() {
	defer close(e.done)
	defer e.fireDisconnect()

	for {
		var env wsEnvelope
		if err := e.conn.ReadJSON(&env); err != nil {
			e.mu.Lock()
			wasClosed := e.closed
			e.closed = true
			e.mu.Unlock()
			e.conn.Close()
			if !wasClosed {
				e.logger.ComponentWarn(logging.ComponentTransport, "broker connection lost", zap.Error(err))
			}
			return
		}

		payload, err := base64.StdEncoding.DecodeString(env.Data)
		if err != nil {
			e.logger.ComponentWarn(logging.ComponentTransport, "bad envelope payload",
				zap.Int32("layer", env.Layer),
				zap.Int32("version", env.Version),
				zap.Error(err))
			continue
		}

		key := vms.LayerVersion{Layer: env.Layer, Version: env.Version}
		e.mu.Lock()
		deliver, ok := e.delivers[key]
		e.mu.Unlock()
		if !ok {
			e.logger.ComponentDebug(logging.ComponentTransport, "envelope for unknown stream",
				zap.String("key", key.String()))
			continue
		}

		deliver(vms.Message{Key: key, Payload: payload})
	}
}

func (e *WSEndpoint) fireDisconnect() {
	e.mu.Lock()
	hooks := append([]func(){}, e.hooks...)
	e.mu.Unlock()

	e.disconnectOnce.Do(func() {
		for _, hook := range hooks {
			hook()
		}
	})
}

// NotifyDisconnect registers a hook fired when the broker connection is
// lost or the endpoint is closed.
func (e *WSEndpoint) NotifyDisconnect(hook func()) {
	e.mu.Lock()
	e.hooks = append(e.hooks, hook)
	e.mu.Unlock()
}

// Close tears down the broker connection and waits for the read loop to
// exit. Safe to call more than once.
func (e *WSEndpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		<-e.done
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	err := e.conn.Close()
	<-e.done
	return err
}
