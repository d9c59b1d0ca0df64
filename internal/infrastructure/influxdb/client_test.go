package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/media-state-bridge/internal/infrastructure/config"
	"github.com/nerrad567/media-state-bridge/internal/infrastructure/influxdb"
)

// fakeInflux is an in-process stand-in for the InfluxDB HTTP API.
// It answers /ping and records every /api/v2/write body.
type fakeInflux struct {
	mu     sync.Mutex
	writes []string
	status int
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ping":
		w.WriteHeader(http.StatusNoContent)
	case "/api/v2/write":
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.writes = append(f.writes, string(body))
		status := f.status
		f.mu.Unlock()
		if status == 0 {
			status = http.StatusNoContent
		}
		w.WriteHeader(status)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeInflux) lines() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.writes, "\n")
}

// testConfig returns a configuration pointing at the given server URL.
func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "test-token",
		Org:           "home",
		Bucket:        "media",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func connect(t *testing.T, fake *fakeInflux) *influxdb.Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := influxdb.Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect(t *testing.T) {
	client := connect(t, &fakeInflux{})

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:8086")
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := influxdb.Connect(testConfig(url))
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	srv := httptest.NewServer(&fakeInflux{})
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.BatchSize = -5
	cfg.FlushInterval = 0

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false with defaulted batch settings")
	}
}

// =============================================================================
// Health Check Tests
// =============================================================================

func TestHealthCheck(t *testing.T) {
	client := connect(t, &fakeInflux{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestHealthCheck_AfterClose(t *testing.T) {
	client := connect(t, &fakeInflux{})
	client.Close()

	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Write Tests
// =============================================================================

func TestWriteMediaState(t *testing.T) {
	fake := &fakeInflux{}
	client := connect(t, fake)

	ts := time.Unix(1700000000, 0)
	client.WriteMediaStateAt("living-tv", "playing", "netflix", "media", ts)
	client.Flush()

	got := fake.lines()
	want := `media_state,app=netflix,device_id=living-tv,type=media play="playing" 1700000000000000000`
	if !strings.Contains(got, want) {
		t.Errorf("write body = %q, want line %q", got, want)
	}
}

func TestWriteMediaState_Sentinel(t *testing.T) {
	fake := &fakeInflux{}
	client := connect(t, fake)

	client.WriteMediaState("tv", "idle", "unknown", "unknown")
	client.Flush()

	if got := fake.lines(); !strings.Contains(got, `app=unknown`) || !strings.Contains(got, `play="idle"`) {
		t.Errorf("write body = %q, want sentinel point", got)
	}
}

func TestWriteMediaState_AfterCloseIsNoop(t *testing.T) {
	fake := &fakeInflux{}
	client := connect(t, fake)
	client.Close()

	client.WriteMediaState("tv", "playing", "netflix", "media")
	client.Flush()

	if got := fake.lines(); got != "" {
		t.Errorf("write after Close reached the server: %q", got)
	}
}

func TestSetOnError(t *testing.T) {
	fake := &fakeInflux{status: http.StatusBadRequest}
	client := connect(t, fake)

	errCh := make(chan error, 1)
	client.SetOnError(func(err error) {
		select {
		case errCh <- err:
		default:
		}
	})

	client.WriteMediaState("tv", "playing", "netflix", "media")
	client.Flush()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("error callback received nil")
		}
	case <-time.After(5 * time.Second):
		t.Error("error callback not called for rejected write")
	}
}
