package bridge

import (
	"context"
	"fmt"
)

// event is anything the run loop processes.
type event any

type connectedEvent struct{}

type connectionLostEvent struct{ err error }

type reconnectingEvent struct{}

type foregroundEvent struct{ payload []byte }

// handle dispatches one event. Called only from the run loop.
func (b *Bridge) handle(ctx context.Context, ev event) {
	switch e := ev.(type) {
	case connectedEvent:
		b.handleConnected(ctx)
	case connectionLostEvent:
		b.warn("Broker connection lost", e.err, "error", e.err)
		b.notifyConnection(false)
	case reconnectingEvent:
		b.info("Reconnecting to broker", nil)
	case foregroundEvent:
		b.handleForeground(e.payload)
	}
}

// handleConnected runs the connect sequence.
//
// The first connect of the process publishes discovery, state and
// availability, then subscribes to the host. Later connects republish only
// state and availability.
func (b *Bridge) handleConnected(ctx context.Context) {
	b.connects++
	b.notifyConnection(true)

	if b.connects == 1 {
		b.info("Connected to broker", nil, "device_id", b.device.ID)
		b.publishDiscovery()
		b.info("Sending initial device state", nil)
	} else {
		b.info("Reconnected to broker; republishing state", nil, "connects", b.connects)
	}

	b.publishStateAndAvailability()

	// A failed subscription is retried on the next connect.
	if !b.subscribed {
		b.subscribeHost(ctx)
	}
}

// publishDiscovery sends every discovery descriptor, retained.
func (b *Bridge) publishDiscovery() {
	broker := b.currentBroker()
	if broker == nil {
		return
	}

	b.info("Sending Home Assistant discovery configs", nil, "count", len(b.discovery))
	for _, msg := range b.discovery {
		b.publish(broker, msg.Topic, msg.Payload, true)
	}
}

// subscribeHost starts the host notification subscription.
func (b *Bridge) subscribeHost(ctx context.Context) {
	if b.host == nil {
		return
	}

	name := b.host.Name()
	b.info("Subscribing to host notifications", name, "source", name)
	if err := b.host.Subscribe(ctx, b.HandleForegroundPayload); err != nil {
		b.fail(fmt.Sprintf("Subscription to %s failed", name), err, "source", name)
		return
	}

	b.subscribed = true
	b.info("Subscribed; reporting media state", name, "source", name)
}

// handleForeground normalises a host notification and publishes it.
func (b *Bridge) handleForeground(payload []byte) {
	state, err := ParseForegroundPayload(payload)
	if err != nil {
		state = IdleState()
		b.warn("Unexpected foreground app notification", rawDetail(payload), "error", err)
	} else {
		b.info("Sending foreground app state update", payload,
			"play", state.PlayState, "app", state.AppID, "type", state.MediaType)
	}

	b.setState(state)
	b.publishStateAndAvailability()
}

// rawDetail keeps an empty payload visible in the journal.
func rawDetail(payload []byte) string {
	if len(payload) == 0 {
		return `""`
	}
	return string(payload)
}

// setState replaces the device state and notifies live clients.
func (b *Bridge) setState(state DeviceState) {
	b.state.Store(&state)

	if b.notifier != nil {
		b.notifier.Broadcast(ChannelStateChanged, StateChanged{
			DeviceID: b.device.ID,
			State:    state,
		})
	}
}

// publishStateAndAvailability publishes the current state, not retained,
// then availability "online", retained, unless the broker reports itself
// disconnected.
func (b *Bridge) publishStateAndAvailability() {
	broker := b.currentBroker()
	if broker == nil {
		b.warn("No broker connection yet; state not published", nil)
		return
	}

	state := b.State()
	payload, err := encodeState(state, b.device.StateFormat)
	if err != nil {
		b.fail("Encoding device state failed", err)
		return
	}
	b.publish(broker, b.topics.State(), payload, false)

	if b.recorder != nil {
		b.recorder.WriteMediaState(b.device.ID, state.PlayState, state.AppID, state.MediaType)
	}

	if !broker.IsConnected() {
		b.warn("Broker disconnected; availability not republished", b.topics.Availability())
		return
	}
	b.publish(broker, b.topics.Availability(), []byte(PayloadOnline), true)
}

// publish sends one message and logs the outcome. There is no retry.
func (b *Bridge) publish(broker Broker, topic string, payload []byte, retained bool) {
	broker.PublishAsync(topic, payload, publishQoS, retained, func(err error) {
		if err != nil {
			b.fail(fmt.Sprintf("An error occurred during publish to %s", topic), err, "topic", topic)
			return
		}
		b.journal.Record(fmt.Sprintf("Published successfully to %s", topic), nil)
		b.logger.Debug("published", "topic", topic, "retained", retained)
	})
}

// notifyConnection tells live clients about a connection change.
func (b *Bridge) notifyConnection(connected bool) {
	if b.notifier == nil {
		return
	}
	b.notifier.Broadcast(ChannelConnectionChanged, ConnectionChanged{
		DeviceID:  b.device.ID,
		Connected: connected,
	})
}
