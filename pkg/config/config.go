package config

import (
	"fmt"
	"os"
	"time"
)

// Config represents the full configuration for a subscriber client
type Config struct {
	Client    ClientConfig    `yaml:"client"`
	Transport TransportConfig `yaml:"transport"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ClientConfig contains client-level configuration
type ClientConfig struct {
	AppName        string        `yaml:"app_name"`        // Identifies this subscriber in announcements
	ConnectTimeout time.Duration `yaml:"connect_timeout"` // Timeout for connecting to the publisher
	QuietMode      bool          `yaml:"quiet_mode"`      // Suppress debug/info logs
}

// TransportConfig contains publisher-endpoint transport configuration
type TransportConfig struct {
	// Mode selects the endpoint implementation: "p2p" or "websocket"
	Mode string `yaml:"mode"`

	// TopicPrefix namespaces the layer/version topics (e.g. "vms")
	TopicPrefix string `yaml:"topic_prefix"`

	// ListenAddresses are the libp2p listen multiaddrs (p2p mode)
	ListenAddresses []string `yaml:"listen_addresses"`

	// BootstrapPeers are publisher-side peer multiaddrs to connect to (p2p mode)
	BootstrapPeers []string `yaml:"bootstrap_peers"`

	// BrokerURL is the websocket broker endpoint (websocket mode)
	BrokerURL string `yaml:"broker_url"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	Colors     bool   `yaml:"colors"`      // Enable ANSI colors on console output
	OutputFile string `yaml:"output_file"` // Empty for stdout
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			AppName:        "vms-subscriber",
			ConnectTimeout: 30 * time.Second,
			QuietMode:      false,
		},
		Transport: TransportConfig{
			Mode:            "p2p",
			TopicPrefix:     "vms",
			ListenAddresses: []string{"/ip4/0.0.0.0/tcp/0"},
			BootstrapPeers:  []string{},
			BrokerURL:       "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Colors: true,
		},
	}
}

// LoadFromFile reads a YAML configuration file on top of the defaults.
// Unknown keys are rejected.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer f.Close()

	cfg := DefaultConfig()
	if err := DecodeStrict(f, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
