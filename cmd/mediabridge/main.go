// Media State Bridge
//
// This is the main entry point for the media state bridge. It watches the
// host's foreground application and reports it to an MQTT broker, with
// Home Assistant discovery and a retained availability topic backed by the
// broker's last will.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/media-state-bridge/internal/api"
	"github.com/nerrad567/media-state-bridge/internal/bridge"
	"github.com/nerrad567/media-state-bridge/internal/host"
	"github.com/nerrad567/media-state-bridge/internal/infrastructure/config"
	"github.com/nerrad567/media-state-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/media-state-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/media-state-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/media-state-bridge/internal/journal"
	"github.com/nerrad567/media-state-bridge/internal/lifecycle"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// bridgeStopTimeout bounds the wait for the bridge run loop on shutdown.
const bridgeStopTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Only configuration and wiring failures are returned. Broker and host
// failures after start are retried by the bridge and recorded in its journal.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting media state bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// The hub is shared by the bridge, the journal and the API server.
	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	go hub.Run(ctx)

	jr := journal.New(journal.Options{
		Capacity:        cfg.Journal.Capacity,
		InlineThreshold: cfg.Journal.InlineThreshold,
	})
	jr.SetOnRecord(func(e journal.Entry) {
		hub.Broadcast(api.ChannelJournalEntry, e)
	})

	source, err := host.New(cfg.Host, log.Component("host"))
	if err != nil {
		return fmt.Errorf("creating host source: %w", err)
	}
	if luna, ok := source.(*host.LunaSource); ok {
		defer func() {
			log.Info("stopping luna-send")
			if stopErr := luna.Stop(); stopErr != nil {
				log.Error("error stopping luna-send", "error", stopErr)
			}
		}()
	}

	sink, closeInflux := connectInflux(cfg.InfluxDB, log)
	defer closeInflux()
	var recorder bridge.StateRecorder
	if sink != nil {
		recorder = sink
	}

	b, err := bridge.New(bridge.Options{
		Device:          cfg.Device,
		StartRetryDelay: cfg.MQTT.StartRetryDuration(),
		Dial:            mqttDialer(cfg.MQTT, log.Component("mqtt")),
		Journal:         jr,
		Host:            source,
		KeepAlive:       lifecycle.New(cfg.Lifecycle),
		Recorder:        recorder,
		Notifier:        hub,
		Logger:          log.Component("bridge"),
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	log.Info("bridge started",
		"device_id", cfg.Device.ID,
		"broker", cfg.MQTT.BrokerAddress(),
		"host_source", source.Name(),
		"state_topic", b.Topics().State(),
	)

	srv, err := api.New(apiDeps(cfg, log, b, jr, hub, source, sink))
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// The broker connection is never closed cleanly, so the broker publishes
	// the will and availability goes offline.
	select {
	case <-b.Done():
	case <-time.After(bridgeStopTimeout):
		log.Warn("bridge did not stop in time")
	}

	log.Info("media state bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses MEDIABRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("MEDIABRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// mqttDialer builds the broker connection the bridge dials on each start
// attempt.
func mqttDialer(cfg config.MQTTConfig, log *logging.Logger) bridge.Dialer {
	return func(will mqtt.Will) (bridge.Broker, error) {
		client, err := mqtt.New(cfg, will)
		if err != nil {
			return nil, err
		}
		client.SetLogger(log)
		log.Info("MQTT client created",
			"broker", cfg.BrokerAddress(),
			"client_id", client.ClientID(),
		)
		return client, nil
	}
}

// connectInflux connects the optional telemetry sink. Telemetry never stops
// the bridge: a failed connection is logged and the bridge runs without it.
func connectInflux(cfg config.InfluxDBConfig, log *logging.Logger) (*influxdb.Client, func()) {
	client, err := influxdb.Connect(cfg)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
		return nil, func() {}
	case err != nil:
		log.Warn("InfluxDB unavailable, continuing without telemetry", "error", err)
		return nil, func() {}
	}

	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.URL,
		"org", cfg.Org,
		"bucket", cfg.Bucket,
	)

	return client, func() {
		log.Info("closing InfluxDB connection")
		if closeErr := client.Close(); closeErr != nil {
			log.Error("error closing InfluxDB", "error", closeErr)
		}
	}
}

// apiDeps assembles the API server dependencies. The webhook endpoint and
// subprocess metrics are wired only for the sources that provide them; the
// InfluxDB health check only when the sink is connected.
func apiDeps(cfg *config.Config, log *logging.Logger, b *bridge.Bridge, jr *journal.Journal, hub *api.Hub, source host.Source, sink *influxdb.Client) api.Deps {
	deps := api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log.Component("api"),
		Bridge:  b,
		Journal: jr,
		Hub:     hub,
		Checks:  map[string]api.HealthChecker{"mqtt": b},
		Version: version,
	}
	if sink != nil {
		deps.Checks["influxdb"] = sink
	}

	switch src := source.(type) {
	case *host.WebhookSource:
		deps.Webhook = src
	case *host.LunaSource:
		deps.Process = src
	}

	return deps
}
