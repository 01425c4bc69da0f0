package mqtt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/sensorhub/internal/infrastructure/config"
)

// mockLogger implements Logger for testing.
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	warns  []string
	errors []string
}

func (l *mockLogger) Info(msg string, _ ...any) {
	l.mu.Lock()
	l.infos = append(l.infos, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// disconnectedClient returns a Client that never reached the broker.
func disconnectedClient() *Client {
	return &Client{
		cfg:           testConfig(),
		subscriptions: make(map[string]subscription),
	}
}

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "sensorhub-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
		Topics: config.MQTTTopicsConfig{
			Telemetry: "esp/sensor",
			Status:    "esp/status/+",
			Control:   "esp/control",
		},
	}
}

func TestPublish_Validation(t *testing.T) {
	c := disconnectedClient()

	tests := []struct {
		name    string
		topic   string
		qos     byte
		payload []byte
		wantErr error
	}{
		{"empty topic", "", 1, []byte("x"), ErrInvalidTopic},
		{"invalid qos", "esp/control", 3, []byte("x"), ErrInvalidQoS},
		{"oversized payload", "esp/control", 1, make([]byte, maxPayloadSize+1), ErrPublishFailed},
		{"not connected", "esp/control", 1, []byte("LED1 ON"), ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := disconnectedClient()
	handler := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		wantErr error
	}{
		{"empty topic", "", 1, handler, ErrInvalidTopic},
		{"invalid qos", "esp/sensor", 5, handler, ErrInvalidQoS},
		{"nil handler", "esp/sensor", 1, nil, ErrSubscribeFailed},
		{"not connected", "esp/sensor", 1, handler, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Subscribe(tt.topic, tt.qos, tt.handler)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if n := len(c.subscriptions); n != 0 {
		t.Errorf("tracked subscriptions = %d, want 0 after rejected subscriptions", n)
	}
}

func TestHealthCheck(t *testing.T) {
	c := disconnectedClient()

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() cancelled error = %v, want context.Canceled", err)
	}
}

func TestClose_NeverConnected(t *testing.T) {
	c := disconnectedClient()
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestWrapHandler(t *testing.T) {
	t.Run("delivers topic and payload", func(t *testing.T) {
		c := disconnectedClient()
		var gotTopic, gotPayload string
		wrapped := c.wrapHandler(func(topic string, payload []byte) error {
			gotTopic, gotPayload = topic, string(payload)
			return nil
		})

		wrapped(nil, fakeMessage{topic: "esp/sensor", payload: []byte(`{"dust":60}`)})

		if gotTopic != "esp/sensor" || gotPayload != `{"dust":60}` {
			t.Errorf("handler got (%q, %q)", gotTopic, gotPayload)
		}
	})

	t.Run("logs handler error", func(t *testing.T) {
		c := disconnectedClient()
		logger := &mockLogger{}
		c.SetLogger(logger)

		wrapped := c.wrapHandler(func(string, []byte) error {
			return errors.New("malformed")
		})
		wrapped(nil, fakeMessage{topic: "esp/sensor"})

		if len(logger.warns) != 1 {
			t.Errorf("warns = %v, want one entry", logger.warns)
		}
	})

	t.Run("recovers panic", func(t *testing.T) {
		c := disconnectedClient()
		logger := &mockLogger{}
		c.SetLogger(logger)

		wrapped := c.wrapHandler(func(string, []byte) error {
			panic("boom")
		})
		wrapped(nil, fakeMessage{topic: "esp/status/relay1"})

		if len(logger.errors) != 1 {
			t.Errorf("errors = %v, want one entry", logger.errors)
		}
	})

	t.Run("no logger", func(t *testing.T) {
		c := disconnectedClient()
		wrapped := c.wrapHandler(func(string, []byte) error {
			panic("boom")
		})
		wrapped(nil, fakeMessage{topic: "esp/sensor"})
	})
}

func TestHandleDisconnect(t *testing.T) {
	c := disconnectedClient()
	c.connected = true
	logger := &mockLogger{}
	c.SetLogger(logger)

	var gotErr error
	c.SetOnDisconnect(func(err error) { gotErr = err })

	lost := errors.New("network down")
	c.handleDisconnect(lost)

	if c.IsConnected() {
		t.Error("IsConnected() = true after disconnect")
	}
	if !errors.Is(gotErr, lost) {
		t.Errorf("onDisconnect got %v, want %v", gotErr, lost)
	}
	if len(logger.warns) != 1 {
		t.Errorf("warns = %v, want one entry", logger.warns)
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "hub", Password: "secret"}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "sensorhub-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "hub" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect || !opts.CleanSession {
		t.Error("expected auto-reconnect and clean session")
	}
	if opts.TLSConfig != nil && opts.TLSConfig.MinVersion != 0 {
		t.Error("TLS configured without broker.tls")
	}

	cfg.Broker.TLS = true
	opts = buildClientOptions(cfg)
	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("expected TLS 1.2 minimum")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "sensorhub-test")

	if !opts.WillEnabled {
		t.Fatal("WillEnabled = false")
	}
	if opts.WillTopic != SystemStatusTopic {
		t.Errorf("WillTopic = %q, want %q", opts.WillTopic, SystemStatusTopic)
	}
	if !opts.WillRetained {
		t.Error("WillRetained = false, want true")
	}
	if !strings.Contains(string(opts.WillPayload), `"unexpected_disconnect"`) {
		t.Errorf("WillPayload = %s", opts.WillPayload)
	}
}

func TestStatusPayloads(t *testing.T) {
	online := buildOnlinePayload("hub-1")
	if !strings.Contains(online, `"status":"online"`) || !strings.Contains(online, `"client_id":"hub-1"`) {
		t.Errorf("online payload = %s", online)
	}
	offline := buildOfflinePayload("hub-1")
	if !strings.Contains(offline, `"graceful_shutdown"`) {
		t.Errorf("offline payload = %s", offline)
	}
}

func TestNewTopics(t *testing.T) {
	topics := NewTopics(testConfig().Topics)

	if topics.Telemetry != "esp/sensor" || topics.Status != "esp/status/+" || topics.Control != "esp/control" {
		t.Errorf("NewTopics() = %+v", topics)
	}
}
