// Package bridge reports a TV's foreground application and media state to
// an MQTT broker for Home Assistant.
//
// The bridge owns the broker connection lifecycle, the host notification
// subscription, the device state and every outbound publish:
//
//	homeassistant/sensor/{id}/state/config   discovery, retained, once per process
//	{namespace}/{id}/state                   device state, not retained
//	{namespace}/{id}/availability            "online" retained; "offline" only via last will
//
// # Connection lifecycle
//
//	Disconnected → Connected (first) → Connected ⇄ Reconnecting
//
// The first connect publishes discovery, the current state and availability,
// then subscribes to the host. Every later connect republishes only the state
// and availability. Reconnects themselves are paho's job.
//
// # Concurrency
//
// One run loop goroutine owns the device state and issues every publish.
// Broker callbacks and host notifications are queued to it, so publishes
// always reflect the latest state. Publishing is fire-and-forget: failures
// are logged with the topic and never retried.
//
// # Audit trail
//
// Every lifecycle step, publish outcome and notification is recorded in the
// journal as well as the process log. The journal backs the getLogs query.
package bridge
