//go:build integration

package mqtt

import (
	"testing"
	"time"
)

// These tests need a broker at 127.0.0.1:1883:
//
//	go test -tags=integration ./internal/infrastructure/mqtt/...

func TestIntegration_ConnectAndClose(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "paramsync-int-connect"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
}

func TestIntegration_RetainedStateRoundtrip(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "paramsync-int-roundtrip"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topics := client.Topics()
	received := make(chan string, 1)

	err = client.Subscribe(topics.AllParameterStates(), 1, func(topic string, payload []byte) error {
		if topic == topics.ParameterState("int_test") {
			received <- string(payload)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !client.HasSubscription(topics.AllParameterStates()) {
		t.Error("subscription not tracked")
	}

	if err := client.PublishRetained(topics.ParameterState("int_test"), []byte(`{"value":0.5}`)); err != nil {
		t.Fatalf("PublishRetained() error = %v", err)
	}

	select {
	case got := <-received:
		if got != `{"value":0.5}` {
			t.Errorf("payload = %s", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("retained state not delivered")
	}

	// Clear the retained message.
	_ = client.PublishRetained(topics.ParameterState("int_test"), nil)
}
