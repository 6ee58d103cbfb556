package vms

import (
	"sync"

	"go.uber.org/zap"

	"github.com/vehiclemap/vms/pkg/logging"
)

// dispatcher decouples the thread delivering remote events from the thread
// invoking the consumer callback. The queue is unbounded: enqueue never
// blocks and never drops. A single worker goroutine drains it in strict
// arrival order, so the listener is never invoked for two messages
// concurrently.
type dispatcher struct {
	mu     sync.Mutex
	queue  []Message
	closed bool
	cond   *sync.Cond
	done   chan struct{}

	slot   *listenerSlot
	logger *logging.ColoredLogger
}

func newDispatcher(slot *listenerSlot, logger *logging.ColoredLogger) *dispatcher {
	d := &dispatcher{
		slot:   slot,
		logger: logger,
		done:   make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	go d.run()
	return d
}

// enqueue appends a message for asynchronous delivery and returns
// immediately. Messages enqueued after close are discarded.
func (d *dispatcher) enqueue(msg Message) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.ComponentDebug(logging.ComponentDispatch, "dispatcher closed, discarding message",
			zap.String("key", msg.Key.String()))
		return
	}
	d.queue = append(d.queue, msg)
	d.mu.Unlock()
	d.cond.Signal()
}

// run is the single delivery worker. The listener is resolved at delivery
// time; an absent listener drops the message with a log line, which is
// expected during listener churn and is never an error.
func (d *dispatcher) run() {
	defer close(d.done)

	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if d.closed {
			d.mu.Unlock()
			return
		}
		msg := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		listener, ok := d.slot.current()
		if !ok {
			d.logger.ComponentWarn(logging.ComponentDispatch, "no listener set, dropping message",
				zap.String("key", msg.Key.String()),
				zap.Int("payload_len", len(msg.Payload)))
			continue
		}

		if err := listener(msg); err != nil {
			d.logger.ComponentWarn(logging.ComponentDispatch, "listener returned error",
				zap.String("key", msg.Key.String()),
				zap.Error(err))
		}
	}
}

// close stops the worker and waits for it to finish its in-flight delivery.
// Queued but undelivered messages are discarded. Safe to call more than
// once.
func (d *dispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	d.mu.Unlock()

	d.cond.Broadcast()
	<-d.done
}
