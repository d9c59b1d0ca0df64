// Package mqtt is the broker connection capability of the media state bridge.
//
// It wraps paho.mqtt.golang and owns everything transport-shaped:
//   - Per-instance client ID (mqtt_<random>)
//   - Last Will and Testament, so the broker itself announces "offline"
//   - Keepalive sized for TV-class sleep/wake cycles
//   - Automatic reconnect at a fixed interval measured in seconds
//   - Non-blocking publish with a completion callback
//
// The bridge above it never waits on the network. Connect returns at once and
// lifecycle changes arrive through the OnConnect / OnConnectionLost /
// OnReconnecting callbacks.
//
// # Usage
//
//	topics := mqtt.NewTopics("homeassistant", "LGTV2MQTT", "living-tv")
//	client, err := mqtt.New(cfg.MQTT, mqtt.Will{
//	    Topic:    topics.Availability(),
//	    Payload:  "offline",
//	    Retained: true,
//	})
//	if err != nil {
//	    return err
//	}
//	client.SetOnConnect(func() { /* publish state */ })
//	if err := client.Connect(); err != nil {
//	    return err
//	}
//
//	client.PublishAsync(topics.State(), payload, 0, false, func(err error) {
//	    if err != nil {
//	        log.Warn("publish failed", "topic", topics.State(), "error", err)
//	    }
//	})
//
// # Shutdown
//
// There is deliberately no Close. When the process exits the TCP connection
// drops without a DISCONNECT packet and the broker publishes the will.
package mqtt
