// Package client bootstraps a connection to the VMS publisher and exposes
// the subscriber manager on top of it. It exists so applications do not
// have to wire hosts, transports and managers by hand; the core library in
// pkg/vms has no dependency on it.
package client

import (
	"context"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/security/noise"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"
	"github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	libp2ppubsub "github.com/libp2p/go-libp2p-pubsub"

	"github.com/vehiclemap/vms/pkg/config"
	"github.com/vehiclemap/vms/pkg/errors"
	"github.com/vehiclemap/vms/pkg/logging"
	"github.com/vehiclemap/vms/pkg/transport"
	"github.com/vehiclemap/vms/pkg/vms"
)

// closableEndpoint is what both transport implementations provide on top of
// the manager-facing contract.
type closableEndpoint interface {
	vms.PublisherEndpoint
	Close() error
}

// Client owns the transport connection and the subscriber manager built on
// top of it.
type Client struct {
	cfg    *config.Config
	logger *logging.ColoredLogger

	// p2p mode components; nil in websocket mode
	host host.Host
	ps   *libp2ppubsub.PubSub

	endpoint   closableEndpoint
	subscriber *vms.Manager

	connected bool
	startTime time.Time
	mu        sync.RWMutex
}

// New creates a client from the given configuration. A nil configuration
// uses the defaults.
func New(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := newClientLogger(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create logger")
	}

	return &Client{
		cfg:       cfg,
		logger:    logger,
		startTime: time.Now(),
	}, nil
}

// newClientLogger builds the logger from the logging section, honoring
// quiet mode by raising the level to warn.
func newClientLogger(cfg *config.Config) (*logging.ColoredLogger, error) {
	level := logging.ParseLevel(cfg.Logging.Level)
	if cfg.Client.QuietMode {
		level = logging.ParseLevel("warn")
	}
	if cfg.Logging.OutputFile != "" {
		return logging.NewFileLogger(level, cfg.Logging.OutputFile, cfg.Logging.Colors)
	}
	return logging.NewColoredLogger(level, cfg.Logging.Colors)
}

// Connect establishes the transport connection and creates the subscriber
// manager. Calling Connect on a connected client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	var err error
	switch c.cfg.Transport.Mode {
	case "p2p":
		err = c.connectP2P(ctx)
	case "websocket":
		err = c.connectWebsocket(ctx)
	default:
		err = errors.NewValidationError("transport.mode", "unknown transport mode", c.cfg.Transport.Mode)
	}
	if err != nil {
		return err
	}

	c.subscriber, err = vms.NewManager(c.endpoint, c.logger)
	if err != nil {
		c.teardownLocked()
		return err
	}

	c.connected = true
	c.logger.ComponentInfo(logging.ComponentClient, "connected",
		zap.String("mode", c.cfg.Transport.Mode),
		zap.String("app", c.cfg.Client.AppName))
	return nil
}

func (c *Client) connectP2P(ctx context.Context) error {
	h, err := libp2p.New(
		libp2p.ListenAddrStrings(c.cfg.Transport.ListenAddresses...),
		libp2p.Security(noise.ID, noise.New),
		libp2p.Transport(tcp.NewTCPTransport),
		libp2p.DefaultMuxers,
	)
	if err != nil {
		return errors.NewNotConnectedError("failed to create libp2p host", err)
	}

	ps, err := libp2ppubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		return errors.NewNotConnectedError("failed to create gossipsub", err)
	}

	endpoint, err := transport.NewP2PEndpoint(ps, c.cfg.Transport.TopicPrefix, c.logger)
	if err != nil {
		h.Close()
		return err
	}

	c.host = h
	c.ps = ps
	c.endpoint = endpoint

	c.connectBootstrapPeers(ctx)
	return nil
}

// connectBootstrapPeers dials the configured publisher peers. Individual
// failures are logged and skipped; gossipsub recovers once any peer is
// reachable.
func (c *Client) connectBootstrapPeers(ctx context.Context) {
	for _, addr := range c.cfg.Transport.BootstrapPeers {
		ma, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			c.logger.ComponentWarn(logging.ComponentClient, "invalid bootstrap peer",
				zap.String("addr", addr), zap.Error(err))
			continue
		}
		info, err := peer.AddrInfoFromP2pAddr(ma)
		if err != nil {
			c.logger.ComponentWarn(logging.ComponentClient, "bootstrap peer missing peer id",
				zap.String("addr", addr), zap.Error(err))
			continue
		}

		dialCtx, cancel := context.WithTimeout(ctx, c.cfg.Client.ConnectTimeout)
		if err := c.host.Connect(dialCtx, *info); err != nil {
			c.logger.ComponentWarn(logging.ComponentClient, "failed to connect bootstrap peer",
				zap.String("addr", addr), zap.Error(err))
		}
		cancel()
	}
}

func (c *Client) connectWebsocket(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.Client.ConnectTimeout)
	defer cancel()

	endpoint, err := transport.DialWS(dialCtx, c.cfg.Transport.BrokerURL, c.logger)
	if err != nil {
		return err
	}
	c.endpoint = endpoint
	return nil
}

func (c *Client) teardownLocked() {
	if c.endpoint != nil {
		_ = c.endpoint.Close()
		c.endpoint = nil
	}
	if c.host != nil {
		_ = c.host.Close()
		c.host = nil
	}
	c.ps = nil
}

// Subscriber returns the subscriber manager. It is nil until Connect
// succeeds.
func (c *Client) Subscriber() *vms.Manager {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subscriber
}

// Config returns a snapshot copy of the client's configuration.
func (c *Client) Config() *config.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cp := *c.cfg
	cp.Transport.ListenAddresses = append([]string(nil), c.cfg.Transport.ListenAddresses...)
	cp.Transport.BootstrapPeers = append([]string(nil), c.cfg.Transport.BootstrapPeers...)
	return &cp
}

// Uptime reports how long the client has existed.
func (c *Client) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// Disconnect shuts down the subscriber manager and tears down the
// transport. Idempotent.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}

	if c.subscriber != nil {
		c.subscriber.Close()
		c.subscriber = nil
	}
	c.teardownLocked()
	c.connected = false

	c.logger.ComponentInfo(logging.ComponentClient, "disconnected",
		zap.String("app", c.cfg.Client.AppName),
		zap.Duration("uptime", time.Since(c.startTime).Round(time.Second)))
	return nil
}
