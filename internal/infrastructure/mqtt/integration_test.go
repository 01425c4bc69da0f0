//go:build integration

package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/sensorhub/internal/infrastructure/config"
)

// Integration tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//
//	go test -tags=integration -count=1 -v ./internal/infrastructure/mqtt/...

func integrationConfig(clientID string) config.MQTTConfig {
	cfg := testConfig()
	cfg.Broker.ClientID = clientID
	return cfg
}

func TestIntegration_Connect(t *testing.T) {
	client, err := Connect(integrationConfig("sensorhub-int-connect"))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestIntegration_ConnectRefused(t *testing.T) {
	cfg := integrationConfig("sensorhub-int-refused")
	cfg.Broker.Port = 19999

	_, err := Connect(cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestIntegration_SubscriptionTracking(t *testing.T) {
	client, err := Connect(integrationConfig("sensorhub-int-sub-track"))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topics := []string{"sensorhub/int/esp/sensor", "sensorhub/int/esp/status/+"}
	for _, topic := range topics {
		if err := client.Subscribe(topic, 1, func(string, []byte) error { return nil }); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}

	client.subMu.RLock()
	defer client.subMu.RUnlock()
	for _, topic := range topics {
		if _, ok := client.subscriptions[topic]; !ok {
			t.Errorf("subscription %s not tracked for reconnect", topic)
		}
	}
}

func TestIntegration_WildcardRoundtrip(t *testing.T) {
	pub, err := Connect(integrationConfig("sensorhub-int-pub"))
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pub.Close()

	sub, err := Connect(integrationConfig("sensorhub-int-sub"))
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer sub.Close()

	type msg struct{ topic, payload string }
	received := make(chan msg, 1)
	var once sync.Once

	err = sub.Subscribe("sensorhub/int/esp/status/+", 1, func(topic string, p []byte) error {
		once.Do(func() { received <- msg{topic, string(p)} })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	payload := `{"relay":"RELAY3","state":"ON"}`
	if err := pub.Publish("sensorhub/int/esp/status/relay3", []byte(payload), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case m := <-received:
		if m.topic != "sensorhub/int/esp/status/relay3" || m.payload != payload {
			t.Errorf("received %+v", m)
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for message")
	}
}
