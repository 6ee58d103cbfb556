package config

import (
	"net/url"

	"github.com/multiformats/go-multiaddr"

	"github.com/vehiclemap/vms/pkg/errors"
)

// Validate checks the configuration for inconsistencies. It returns a
// validation error naming the offending field.
func (c *Config) Validate() error {
	if c.Client.AppName == "" {
		return errors.NewValidationError("client.app_name", "app name is required", nil)
	}
	if c.Client.ConnectTimeout <= 0 {
		return errors.NewValidationError("client.connect_timeout", "connect timeout must be positive", c.Client.ConnectTimeout)
	}

	switch c.Transport.Mode {
	case "p2p":
		if len(c.Transport.ListenAddresses) == 0 {
			return errors.NewValidationError("transport.listen_addresses", "at least one listen address is required in p2p mode", nil)
		}
		for _, addr := range c.Transport.ListenAddresses {
			if _, err := multiaddr.NewMultiaddr(addr); err != nil {
				return errors.NewValidationError("transport.listen_addresses", "invalid multiaddr", addr)
			}
		}
		for _, addr := range c.Transport.BootstrapPeers {
			if _, err := multiaddr.NewMultiaddr(addr); err != nil {
				return errors.NewValidationError("transport.bootstrap_peers", "invalid multiaddr", addr)
			}
		}
	case "websocket":
		if c.Transport.BrokerURL == "" {
			return errors.NewValidationError("transport.broker_url", "broker URL is required in websocket mode", nil)
		}
		u, err := url.Parse(c.Transport.BrokerURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			return errors.NewValidationError("transport.broker_url", "broker URL must be a ws:// or wss:// URL", c.Transport.BrokerURL)
		}
	default:
		return errors.NewValidationError("transport.mode", "mode must be \"p2p\" or \"websocket\"", c.Transport.Mode)
	}

	if c.Transport.TopicPrefix == "" {
		return errors.NewValidationError("transport.topic_prefix", "topic prefix is required", nil)
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.NewValidationError("logging.level", "level must be one of debug, info, warn, error", c.Logging.Level)
	}

	return nil
}
