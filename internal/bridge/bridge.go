package bridge

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/media-state-bridge/internal/infrastructure/config"
	"github.com/nerrad567/media-state-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/media-state-bridge/internal/journal"
)

// Bridge operation constants.
const (
	// publishQoS is at-most-once for every publish; a later publish supersedes a lost one.
	publishQoS = 0

	// defaultStartRetryDelay is the fixed wait between start attempts.
	defaultStartRetryDelay = 10 * time.Second

	// eventQueueSize bounds pending connection and host events.
	eventQueueSize = 64

	// keepAliveTimeout bounds the keep-alive acquire on a stalled system bus.
	keepAliveTimeout = 5 * time.Second
)

// Status is the bridge service lifecycle status.
type Status string

const (
	StatusStopped       Status = "STOPPED"
	StatusStarting      Status = "STARTING"
	StatusStarted       Status = "STARTED"
	StatusFailedToStart Status = "FAILED_TO_START"
)

// Live event channels published through the Notifier.
const (
	ChannelStateChanged      = "state.changed"
	ChannelConnectionChanged = "connection.changed"
)

// Broker is the connection capability the bridge drives.
// *mqtt.Client satisfies it.
type Broker interface {
	// Connect starts connecting and returns without waiting for the broker.
	Connect() error

	// IsConnected reports the live connection state.
	IsConnected() bool

	// PublishAsync sends a message; done receives the outcome later.
	PublishAsync(topic string, payload []byte, qos byte, retained bool, done func(error))

	// HealthCheck reports ctx cancellation or a lost connection as an error.
	HealthCheck(ctx context.Context) error

	SetOnConnect(callback func())
	SetOnConnectionLost(callback func(err error))
	SetOnReconnecting(callback func())
}

// Dialer creates a broker connection registering will as its last will.
// It must not block on the network.
type Dialer func(will mqtt.Will) (Broker, error)

// HostSource delivers host foreground-app notifications.
type HostSource interface {
	// Name identifies the subscription in logs.
	Name() string

	// Subscribe starts delivering raw notification payloads to handler.
	// It must not block on the first notification.
	Subscribe(ctx context.Context, handler func(payload []byte)) error
}

// KeepAlive acquires the capability that stops the host suspending the
// process. The returned handle is held for the life of the process.
type KeepAlive interface {
	Acquire(ctx context.Context) (io.Closer, error)
}

// StateRecorder receives every published state. *influxdb.Client satisfies it.
type StateRecorder interface {
	WriteMediaState(deviceID, play, app, mediaType string)
}

// Notifier receives live events for streaming clients.
type Notifier interface {
	Broadcast(channel string, payload any)
}

// Logger is the structured logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options holds configuration for creating a bridge.
type Options struct {
	// Device is the device section of the configuration.
	Device config.DeviceConfig

	// StartRetryDelay is the fixed wait after a failed start. Default 10s.
	StartRetryDelay time.Duration

	// Dial creates the broker connection. Required.
	Dial Dialer

	// Journal records the operational audit trail. Required.
	Journal *journal.Journal

	// Host is the foreground-app notification source. Optional.
	Host HostSource

	// KeepAlive is acquired once at start. Optional.
	KeepAlive KeepAlive

	// Recorder receives published states. Optional.
	Recorder StateRecorder

	// Notifier receives live events. Optional.
	Notifier Notifier

	// Logger is an optional structured logger.
	Logger Logger
}

// Bridge reports a device's foreground-app state to an MQTT broker.
//
// A single run loop owns the device state and every publish. Broker
// callbacks and host notifications only enqueue events, so no caller ever
// blocks on the broker.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	device     config.DeviceConfig
	topics     mqtt.Topics
	will       mqtt.Will
	discovery  []discoveryMessage
	retryDelay time.Duration

	dial      Dialer
	host      HostSource
	keepAlive KeepAlive
	journal   *journal.Journal
	recorder  StateRecorder
	notifier  Notifier
	logger    Logger

	events chan event
	done   chan struct{}

	// state is written only by the run loop.
	state atomic.Pointer[DeviceState]

	mu      sync.RWMutex
	status  Status
	broker  Broker
	started bool

	// Owned by the run loop.
	connects   int
	subscribed bool

	// keepAliveHandle is set once under mu and never closed; the host
	// releases it when the process exits.
	keepAliveHandle io.Closer
}

// New creates a bridge. Topics and discovery descriptors are derived here,
// once. Call Start to connect.
func New(opts Options) (*Bridge, error) {
	if opts.Dial == nil {
		return nil, ErrNoDialer
	}
	if opts.Journal == nil {
		return nil, ErrNoJournal
	}

	topics := mqtt.NewTopics(opts.Device.DiscoveryPrefix, opts.Device.Namespace, opts.Device.ID)
	discovery, err := buildDiscovery(opts.Device, topics)
	if err != nil {
		return nil, err
	}

	retryDelay := opts.StartRetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultStartRetryDelay
	}

	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}

	b := &Bridge{
		device:     opts.Device,
		topics:     topics,
		discovery:  discovery,
		retryDelay: retryDelay,
		will: mqtt.Will{
			Topic:    topics.Availability(),
			Payload:  PayloadOffline,
			QoS:      publishQoS,
			Retained: true,
		},
		dial:      opts.Dial,
		host:      opts.Host,
		keepAlive: opts.KeepAlive,
		journal:   opts.Journal,
		recorder:  opts.Recorder,
		notifier:  opts.Notifier,
		logger:    logger,
		events:    make(chan event, eventQueueSize),
		done:      make(chan struct{}),
		status:    StatusStopped,
	}

	idle := IdleState()
	b.state.Store(&idle)

	return b, nil
}

// Start begins bridge operation and returns immediately.
//
// It acquires the keep-alive capability (best-effort), creates the broker
// connection and starts connecting. A failed start is retried after the
// start retry delay, indefinitely, until ctx is cancelled. Calling Start
// again is a no-op.
func (b *Bridge) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return nil
	}
	b.started = true
	b.status = StatusStarting
	b.mu.Unlock()

	go b.run(ctx)
	go b.startLoop(ctx)

	return nil
}

// startLoop runs start attempts until one succeeds.
func (b *Bridge) startLoop(ctx context.Context) {
	b.info("Starting media state bridge", nil, "device_id", b.device.ID)
	go b.acquireKeepAlive(ctx)

	for {
		if ctx.Err() != nil {
			return
		}
		b.setStatus(StatusStarting)

		err := b.startOnce()
		if err == nil {
			b.setStatus(StatusStarted)
			b.info("Media state bridge started", nil, "device_id", b.device.ID)
			return
		}

		if ctx.Err() != nil {
			return
		}
		b.setStatus(StatusFailedToStart)
		b.fail("Failed to start media state bridge", err)
		b.info(fmt.Sprintf("Retrying start in %s", b.retryDelay), nil)

		timer := time.NewTimer(b.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// acquireKeepAlive takes the keep-alive capability alongside the first dial.
// Failure is not fatal.
func (b *Bridge) acquireKeepAlive(ctx context.Context) {
	if b.keepAlive == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, keepAliveTimeout)
	defer cancel()

	handle, err := b.keepAlive.Acquire(ctx)
	if err != nil {
		b.fail("Could not acquire keep-alive; continuing without it", err)
		return
	}

	b.mu.Lock()
	b.keepAliveHandle = handle
	b.mu.Unlock()
	b.info("Keep-alive acquired; the bridge stays connected in the background", nil)
}

// startOnce creates the broker connection and starts connecting.
func (b *Bridge) startOnce() error {
	b.info("Connecting to broker", map[string]any{
		"device_id":  b.device.ID,
		"will_topic": b.will.Topic,
		"will":       b.will.Payload,
	})

	broker, err := b.dial(b.will)
	if err != nil {
		return fmt.Errorf("creating broker client: %w", err)
	}

	broker.SetOnConnect(func() { b.enqueue(connectedEvent{}) })
	broker.SetOnConnectionLost(func(err error) { b.enqueue(connectionLostEvent{err: err}) })
	broker.SetOnReconnecting(func() { b.enqueue(reconnectingEvent{}) })

	b.mu.Lock()
	b.broker = broker
	b.mu.Unlock()

	if err := broker.Connect(); err != nil {
		b.mu.Lock()
		b.broker = nil
		b.mu.Unlock()
		return fmt.Errorf("connecting to broker: %w", err)
	}

	return nil
}

// HandleForegroundPayload queues a raw host notification for processing.
// It never fails; a malformed payload resets the state to idle.
func (b *Bridge) HandleForegroundPayload(payload []byte) {
	raw := make([]byte, len(payload))
	copy(raw, payload)
	b.enqueue(foregroundEvent{payload: raw})
}

// enqueue hands an event to the run loop.
func (b *Bridge) enqueue(ev event) {
	select {
	case b.events <- ev:
	case <-b.done:
	}
}

// run is the single owner of the device state and all publishes.
func (b *Bridge) run(ctx context.Context) {
	defer close(b.done)

	for {
		select {
		case <-ctx.Done():
			b.setStatus(StatusStopped)
			b.logger.Info("bridge stopped", "device_id", b.device.ID)
			return
		case ev := <-b.events:
			b.handle(ctx, ev)
		}
	}
}

// Done is closed once the run loop has exited after Start's context ends.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

// Topics returns the topic builder for the device.
func (b *Bridge) Topics() mqtt.Topics {
	return b.topics
}

// Will returns the last will registered with every broker connection.
func (b *Bridge) Will() mqtt.Will {
	return b.will
}

// HealthCheck checks the broker connection of the current start attempt.
// It returns ErrNotStarted before the first dial.
func (b *Bridge) HealthCheck(ctx context.Context) error {
	broker := b.currentBroker()
	if broker == nil {
		return ErrNotStarted
	}
	return broker.HealthCheck(ctx)
}

func (b *Bridge) currentBroker() Broker {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.broker
}

func (b *Bridge) setStatus(status Status) {
	b.mu.Lock()
	b.status = status
	b.mu.Unlock()
}

// info records an audit event in the journal and the process log.
func (b *Bridge) info(msg string, detail any, attrs ...any) {
	b.journal.Record(msg, detail)
	b.logger.Info(msg, attrs...)
}

// warn records a warning. The journal line carries a WARNING prefix.
func (b *Bridge) warn(msg string, detail any, attrs ...any) {
	b.journal.Record("WARNING: "+msg, detail)
	b.logger.Warn(msg, attrs...)
}

// fail records an error. The journal line carries an ERROR prefix.
func (b *Bridge) fail(msg string, err error, attrs ...any) {
	b.journal.Record("ERROR: "+msg, err)
	b.logger.Error(msg, append(attrs, "error", err)...)
}
