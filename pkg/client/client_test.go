package client

import (
	"context"
	"testing"
	"time"

	"github.com/vehiclemap/vms/pkg/config"
	"github.com/vehiclemap/vms/pkg/errors"
	"github.com/vehiclemap/vms/pkg/vms"
)

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Client.AppName = ""

	if _, err := New(cfg); !errors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestClient_ConfigSnapshot(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Transport.BootstrapPeers = []string{"/ip4/127.0.0.1/tcp/4001"}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	snap := c.Config()
	snap.Transport.BootstrapPeers[0] = "/ip4/10.0.0.1/tcp/4001"
	snap.Client.AppName = "mutated"

	if c.Config().Transport.BootstrapPeers[0] != "/ip4/127.0.0.1/tcp/4001" {
		t.Error("mutating the snapshot changed the client's bootstrap peers")
	}
	if c.Config().Client.AppName == "mutated" {
		t.Error("mutating the snapshot changed the client's app name")
	}
}

func TestClient_P2PConnectDisconnect(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Client.AppName = "client-test"
	cfg.Client.QuietMode = true
	cfg.Transport.ListenAddresses = []string{"/ip4/127.0.0.1/tcp/0"}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if c.Subscriber() != nil {
		t.Error("expected nil subscriber before Connect")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	// Connect is a no-op while connected.
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("second Connect failed: %v", err)
	}

	sub := c.Subscriber()
	if sub == nil {
		t.Fatal("expected subscriber after Connect")
	}

	// The manager enforces its listener discipline through the facade too.
	err = sub.Subscribe(ctx, vms.LayerVersion{Layer: 3, Version: 1}, false)
	if !errors.IsPreconditionFailed(err) {
		t.Fatalf("expected precondition error before SetListener, got %v", err)
	}

	if err := c.Disconnect(); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	if err := c.Disconnect(); err != nil {
		t.Fatalf("second Disconnect failed: %v", err)
	}
}
