// Package mqtt provides the SensorHub connection to the MQTT broker.
//
// This package manages:
//   - Connection with auto-reconnect and restored subscriptions
//   - Publishing with a bounded acknowledgment wait
//   - Wildcard subscriptions with panic-safe handler dispatch
//   - Last Will and Testament on sensorhub/system/status
//
// # Architecture
//
// Field devices and the hub never talk directly; the broker sits between
// them:
//
//	devices -> esp/sensor, esp/status/+ -> broker -> SensorHub
//	SensorHub -> esp/control -> broker -> devices
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.NewTopics(cfg.MQTT.Topics)
//	err = client.Subscribe(topics.Telemetry, 1, ingestor.HandleMessage)
//
//	client.Publish(topics.Control, []byte("LED1 ON"), 1, false)
//
// Tests that need a live broker at 127.0.0.1:1883 carry the integration
// build tag:
//
//	go test -tags=integration ./internal/infrastructure/mqtt/...
package mqtt
