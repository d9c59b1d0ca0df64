package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/media-state-bridge/internal/bridge"
	"github.com/nerrad567/media-state-bridge/internal/host"
	"github.com/nerrad567/media-state-bridge/internal/infrastructure/config"
	"github.com/nerrad567/media-state-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/media-state-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/media-state-bridge/internal/journal"
)

// writeTestConfig writes a config using the webhook source and no keep-alive,
// so run needs neither D-Bus nor luna-send.
func writeTestConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

const runnableConfig = `
device:
  id: "test-tv"
mqtt:
  broker:
    host: "127.0.0.1"
    port: 1
  start_retry_delay: 1
host:
  source: "webhook"
lifecycle:
  mode: "none"
api:
  host: "127.0.0.1"
  port: 0
logging:
  level: error
  format: text
`

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("MEDIABRIDGE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("run() error = %v, want loading config failure", err)
	}
}

func TestRun_ValidationFailure(t *testing.T) {
	t.Setenv("MEDIABRIDGE_CONFIG", writeTestConfig(t, `
device:
  id: "bad/id"
`))

	err := run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "device.id") {
		t.Errorf("run() error = %v, want device.id validation failure", err)
	}
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	t.Setenv("MEDIABRIDGE_CONFIG", writeTestConfig(t, runnableConfig))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("run() error = %v, want nil on shutdown", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("MEDIABRIDGE_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("MEDIABRIDGE_CONFIG", "/etc/mediabridge/config.yaml")
	if got := getConfigPath(); got != "/etc/mediabridge/config.yaml" {
		t.Errorf("getConfigPath() = %q, want env override", got)
	}
}

func TestConnectInflux_Disabled(t *testing.T) {
	recorder, closeFn := connectInflux(config.InfluxDBConfig{Enabled: false}, logging.Discard())
	defer closeFn()

	if recorder != nil {
		t.Errorf("recorder = %v, want nil when disabled", recorder)
	}
}

func TestConnectInflux_Unreachable(t *testing.T) {
	recorder, closeFn := connectInflux(config.InfluxDBConfig{
		Enabled: true,
		URL:     "http://127.0.0.1:1",
		Bucket:  "media",
	}, logging.Discard())
	defer closeFn()

	if recorder != nil {
		t.Errorf("recorder = %v, want nil when unreachable", recorder)
	}
}

func TestMQTTDialer(t *testing.T) {
	cfg := config.MQTTConfig{}
	cfg.Broker.Host = "127.0.0.1"
	cfg.Broker.Port = 1883
	cfg.KeepAlive = 180
	cfg.ConnectTimeout = 4
	cfg.Reconnect.Interval = 10

	dial := mqttDialer(cfg, logging.Discard())
	broker, err := dial(mqtt.Will{Topic: "TV2MQTT/tv/availability", Payload: "offline", Retained: true})
	if err != nil {
		t.Fatalf("dial() error = %v", err)
	}
	if broker.IsConnected() {
		t.Error("IsConnected() = true before Connect")
	}
}

func TestAPIDeps_SourceWiring(t *testing.T) {
	cfg := &config.Config{}
	jr := journal.New(journal.Options{})
	b, err := bridge.New(bridge.Options{
		Device:  config.DeviceConfig{ID: "tv", Namespace: "TV2MQTT", DiscoveryPrefix: "homeassistant", StateFormat: config.StateFormatJSON},
		Dial:    func(mqtt.Will) (bridge.Broker, error) { return nil, nil },
		Journal: jr,
	})
	if err != nil {
		t.Fatal(err)
	}

	webhook := host.NewWebhookSource()
	deps := apiDeps(cfg, logging.Discard(), b, jr, nil, webhook, nil)
	if deps.Webhook != webhook {
		t.Error("webhook source not wired to the API")
	}
	if deps.Process != nil {
		t.Error("subprocess stats wired for the webhook source")
	}
	if deps.Checks["mqtt"] == nil {
		t.Error("broker health check not wired")
	}
	if _, ok := deps.Checks["influxdb"]; ok {
		t.Error("influxdb health check wired without a sink")
	}

	luna := host.NewLunaSource(config.LunaConfig{Binary: "luna-send", URI: "luna://x/y"}, nil)
	deps = apiDeps(cfg, logging.Discard(), b, jr, nil, luna, nil)
	if deps.Webhook != nil {
		t.Error("webhook wired for the luna source")
	}
	if deps.Process == nil {
		t.Error("subprocess stats not wired for the luna source")
	}
}

func TestAPIDeps_HealthChecks(t *testing.T) {
	influx := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer influx.Close()

	sink, closeFn := connectInflux(config.InfluxDBConfig{
		Enabled: true,
		URL:     influx.URL,
		Org:     "home",
		Bucket:  "media",
	}, logging.Discard())
	defer closeFn()
	if sink == nil {
		t.Fatal("connectInflux() = nil for a reachable server")
	}

	jr := journal.New(journal.Options{})
	b, err := bridge.New(bridge.Options{
		Device:  config.DeviceConfig{ID: "tv", Namespace: "TV2MQTT", DiscoveryPrefix: "homeassistant", StateFormat: config.StateFormatJSON},
		Dial:    func(mqtt.Will) (bridge.Broker, error) { return nil, nil },
		Journal: jr,
	})
	if err != nil {
		t.Fatal(err)
	}

	deps := apiDeps(&config.Config{}, logging.Discard(), b, jr, nil, host.NewWebhookSource(), sink)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := deps.Checks["influxdb"].HealthCheck(ctx); err != nil {
		t.Errorf("influxdb check = %v, want nil", err)
	}
	if err := deps.Checks["mqtt"].HealthCheck(ctx); !errors.Is(err, bridge.ErrNotStarted) {
		t.Errorf("mqtt check before Start = %v, want ErrNotStarted", err)
	}
}
