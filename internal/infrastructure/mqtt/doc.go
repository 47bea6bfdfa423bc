// Package mqtt provides the MQTT client used to mirror parameter state onto
// a broker.
//
// The client wraps paho.mqtt.golang and adds:
//   - Auto-reconnect with subscription restoration
//   - Retained online/offline status with a Last Will for crash detection
//   - Panic-safe message handlers
//   - Topic builders rooted at a configurable prefix
//
// # Topic Layout
//
//	{prefix}/system/status               retained online/offline
//	{prefix}/parameter/{id}/state        retained parameter snapshot
//	{prefix}/device/{type}               device telemetry passthrough
//	{prefix}/command/parameter/{id}      inbound value/color commands
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix)
//	client.PublishRetained(topics.ParameterState("compressor_threshold"), payload)
package mqtt
