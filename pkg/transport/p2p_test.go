package transport

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/vehiclemap/vms/pkg/errors"
	"github.com/vehiclemap/vms/pkg/logging"
	"github.com/vehiclemap/vms/pkg/vms"
)

func createTestHost(t *testing.T) (host.Host, *pubsub.PubSub) {
	t.Helper()

	h, err := libp2p.New(libp2p.ListenAddrStrings("/ip4/127.0.0.1/tcp/0"))
	if err != nil {
		t.Fatalf("failed to create libp2p host: %v", err)
	}
	t.Cleanup(func() { h.Close() })

	ps, err := pubsub.NewGossipSub(context.Background(), h)
	if err != nil {
		t.Fatalf("failed to create gossipsub: %v", err)
	}
	return h, ps
}

func createTestEndpoint(t *testing.T, prefix string) (*P2PEndpoint, host.Host) {
	t.Helper()

	h, ps := createTestHost(t)

	logger, err := logging.NewDefaultLogger()
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	endpoint, err := NewP2PEndpoint(ps, prefix, logger)
	if err != nil {
		t.Fatalf("failed to create endpoint: %v", err)
	}
	t.Cleanup(func() { endpoint.Close() })

	return endpoint, h
}

func connectHosts(t *testing.T, h1, h2 host.Host) {
	t.Helper()

	h1.Peerstore().AddAddrs(h2.ID(), h2.Addrs(), time.Hour)
	if err := h1.Connect(context.Background(), peer.AddrInfo{ID: h2.ID(), Addrs: h2.Addrs()}); err != nil {
		t.Fatalf("failed to connect hosts: %v", err)
	}
}

func TestP2PEndpoint_DeliverFromPublisher(t *testing.T) {
	ctx := context.Background()

	endpoint, subHost := createTestEndpoint(t, "vmstest")
	pubHost, pubPS := createTestHost(t)
	connectHosts(t, pubHost, subHost)

	key := vms.LayerVersion{Layer: 3, Version: 1}
	received := make(chan vms.Message, 1)

	err := endpoint.AddListener(ctx, key, true, func(msg vms.Message) {
		received <- msg
	})
	if err != nil {
		t.Fatalf("AddListener failed: %v", err)
	}

	pubTopic, err := pubPS.Join(endpoint.TopicName(key))
	if err != nil {
		t.Fatalf("publisher failed to join topic: %v", err)
	}

	// Retry publish until the gossip mesh has formed.
	timeout := time.After(5 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			t.Fatal("timed out waiting for delivery")
		case <-ticker.C:
			_ = pubTopic.Publish(ctx, []byte("map-tile"))
		case msg := <-received:
			if msg.Key != key {
				t.Errorf("expected key %v, got %v", key, msg.Key)
			}
			if string(msg.Payload) != "map-tile" {
				t.Errorf("expected payload map-tile, got %q", msg.Payload)
			}
			return
		}
	}
}

func TestP2PEndpoint_Announce(t *testing.T) {
	ctx := context.Background()

	endpoint, subHost := createTestEndpoint(t, "vmstest")
	obsHost, obsPS := createTestHost(t)
	connectHosts(t, obsHost, subHost)

	// An observer watches the announce topic the way a publisher would.
	obsTopic, err := obsPS.Join(endpoint.AnnounceTopicName())
	if err != nil {
		t.Fatalf("observer failed to join announce topic: %v", err)
	}
	obsSub, err := obsTopic.Subscribe()
	if err != nil {
		t.Fatalf("observer failed to subscribe: %v", err)
	}

	announced := make(chan announcement, 4)
	go func() {
		for {
			msg, err := obsSub.Next(ctx)
			if err != nil {
				return
			}
			var ann announcement
			if json.Unmarshal(msg.Data, &ann) == nil {
				announced <- ann
			}
		}
	}()

	key := vms.LayerVersion{Layer: 7, Version: 2}
	deliver := func(vms.Message) {}

	// Re-adding the same key re-announces, so keep adding until the mesh
	// has formed and the observer sees one.
	timeout := time.After(5 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			t.Fatal("timed out waiting for announcement")
		case <-ticker.C:
			if err := endpoint.AddListener(ctx, key, false, deliver); err != nil {
				t.Fatalf("AddListener failed: %v", err)
			}
		case ann := <-announced:
			if ann.Action != "subscribe" || ann.Layer != 7 || ann.Version != 2 {
				t.Fatalf("unexpected announcement: %+v", ann)
			}
			if ann.SubscriberID == "" {
				t.Error("expected a subscriber id in the announcement")
			}
			return
		}
	}
}

func TestP2PEndpoint_RemoveListenerUnknownKey(t *testing.T) {
	endpoint, _ := createTestEndpoint(t, "vmstest")

	if err := endpoint.RemoveListener(context.Background(), vms.LayerVersion{Layer: 1, Version: 1}); err != nil {
		t.Fatalf("RemoveListener for unknown key failed: %v", err)
	}
}

func TestP2PEndpoint_Close(t *testing.T) {
	endpoint, _ := createTestEndpoint(t, "vmstest")

	disconnected := make(chan struct{})
	endpoint.NotifyDisconnect(func() { close(disconnected) })

	if err := endpoint.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	select {
	case <-disconnected:
	default:
		t.Error("expected disconnect hook to fire on close")
	}

	err := endpoint.AddListener(context.Background(), vms.LayerVersion{Layer: 1, Version: 1}, false, func(vms.Message) {})
	if !errors.IsNotConnected(err) {
		t.Fatalf("expected not-connected error, got %v", err)
	}
}

func TestNewP2PEndpoint_Validation(t *testing.T) {
	_, ps := createTestHost(t)

	if _, err := NewP2PEndpoint(nil, "vms", nil); !errors.IsValidation(err) {
		t.Fatalf("expected validation error for nil pubsub, got %v", err)
	}
	if _, err := NewP2PEndpoint(ps, "", nil); !errors.IsValidation(err) {
		t.Fatalf("expected validation error for empty prefix, got %v", err)
	}
}
