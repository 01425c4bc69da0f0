package mqtt

import "github.com/nerrad567/sensorhub/internal/infrastructure/config"

// SystemStatusTopic carries the hub's own retained online/offline status
// and its Last Will.
const SystemStatusTopic = "sensorhub/system/status"

// Topics holds the device-facing topic names for one deployment.
//
//	topics := mqtt.NewTopics(cfg.MQTT.Topics)
//	client.Subscribe(topics.Telemetry, qos, ingestor.HandleMessage)
type Topics struct {
	// Telemetry is where devices publish {"<sensor key>": <number>, ...}.
	Telemetry string

	// Status is the wildcard pattern for relay confirmations.
	Status string

	// Control is where plain-text relay commands are published.
	Control string
}

// NewTopics builds Topics from the mqtt.topics config section.
func NewTopics(cfg config.MQTTTopicsConfig) Topics {
	return Topics{
		Telemetry: cfg.Telemetry,
		Status:    cfg.Status,
		Control:   cfg.Control,
	}
}
