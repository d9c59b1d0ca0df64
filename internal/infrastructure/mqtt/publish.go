package mqtt

import (
	"fmt"
	"strings"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// PublishAsync sends a message without waiting for the broker.
//
// It returns immediately. done, if non-nil, is called exactly once from
// another goroutine with the outcome: nil once paho has handed the message to
// the network (QoS 0) or the broker has acknowledged it (QoS 1/2), otherwise
// an error wrapping ErrPublishFailed, ErrNotConnected, ErrInvalidTopic or
// ErrInvalidQoS. There is no retry; delivery is best-effort.
//
// QoS Levels:
//   - 0: At most once (fire and forget)
//   - 1: At least once (guaranteed delivery, may duplicate)
//   - 2: Exactly once (guaranteed, no duplicates, higher overhead)
//
// Retained messages are kept by the broker and handed to every new
// subscriber; use them for "current status" topics only.
func (c *Client) PublishAsync(topic string, payload []byte, qos byte, retained bool, done func(error)) {
	if err := validatePublish(topic, payload, qos); err != nil {
		complete(done, err)
		return
	}

	if !c.IsConnected() {
		complete(done, ErrNotConnected)
		return
	}

	token := c.client.Publish(topic, qos, retained, payload)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			complete(done, fmt.Errorf("%w: %w", ErrPublishFailed, err))
			return
		}
		complete(done, nil)
	}()
}

// validatePublish checks a publish request before it reaches paho.
func validatePublish(topic string, payload []byte, qos byte) error {
	if topic == "" || strings.ContainsAny(topic, "+#") {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	return nil
}

// complete delivers a publish outcome asynchronously so that done never runs
// on the caller's stack.
func complete(done func(error), err error) {
	if done == nil {
		return
	}
	go done(err)
}
