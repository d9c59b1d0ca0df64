package host

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/media-state-bridge/internal/infrastructure/config"
	"github.com/nerrad567/media-state-bridge/internal/process"
)

func TestLunaArgs(t *testing.T) {
	args := lunaArgs("luna://com.webos.applicationManager/getForegroundAppInfo")
	want := []string{"-i", "luna://com.webos.applicationManager/getForegroundAppInfo", `{"subscribe":true}`}

	if len(args) != len(want) {
		t.Fatalf("lunaArgs() = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("lunaArgs()[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

func TestLunaPayload(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		want   string
		wantOK bool
	}{
		{"json response", `{"returnValue":true}`, `{"returnValue":true}`, true},
		{"surrounding whitespace", "  {\"a\":1}\r", `{"a":1}`, true},
		{"blank line", "   ", "", false},
		{"banner", "luna-send: subscribed", "", false},
		{"array", `[1,2]`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := lunaPayload(tt.line)
			if ok != tt.wantOK {
				t.Fatalf("lunaPayload() ok = %v, want %v", ok, tt.wantOK)
			}
			if string(got) != tt.want {
				t.Errorf("lunaPayload() = %q, want %q", got, tt.want)
			}
		})
	}
}

// fakeLunaSend writes a script that prints a banner, one response, and
// then waits to be stopped.
func fakeLunaSend(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "luna-send")
	script := `#!/bin/sh
echo "subscribing to $2"
echo '{"foregroundAppInfo":[{"appId":"netflix","playState":"playing","type":"media"}]}'
sleep 30
`
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestLunaSource_Subscribe(t *testing.T) {
	src := NewLunaSource(config.LunaConfig{
		Binary: fakeLunaSend(t),
		URI:    "luna://com.webos.applicationManager/getForegroundAppInfo",
	}, noopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu       sync.Mutex
		payloads []string
	)
	err := src.Subscribe(ctx, func(p []byte) {
		mu.Lock()
		payloads = append(payloads, string(p))
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer src.Stop() //nolint:errcheck

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(payloads)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(payloads) != 1 {
		t.Fatalf("payloads = %v, want exactly the JSON response", payloads)
	}
	want := `{"foregroundAppInfo":[{"appId":"netflix","playState":"playing","type":"media"}]}`
	if payloads[0] != want {
		t.Errorf("payload = %s, want %s", payloads[0], want)
	}
	if src.Stats().Status != process.StatusRunning {
		t.Errorf("Stats().Status = %q, want running", src.Stats().Status)
	}
}

func TestLunaSource_SubscribeTwice(t *testing.T) {
	src := NewLunaSource(config.LunaConfig{Binary: fakeLunaSend(t), URI: "luna://x/y"}, noopLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := src.Subscribe(ctx, func([]byte) {}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer src.Stop() //nolint:errcheck

	if err := src.Subscribe(ctx, func([]byte) {}); err == nil {
		t.Error("second Subscribe() error = nil, want already running")
	}
}

func TestLunaSource_MissingBinary(t *testing.T) {
	src := NewLunaSource(config.LunaConfig{
		Binary: filepath.Join(t.TempDir(), "missing"),
		URI:    "luna://x/y",
	}, noopLogger{})

	err := src.Subscribe(context.Background(), func([]byte) {})
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("Subscribe() error = %v, want ErrSourceUnavailable", err)
	}
	if src.Stats().Status != process.StatusStopped {
		t.Errorf("Stats().Status = %q, want stopped", src.Stats().Status)
	}
}

func TestLunaSource_StopWithoutSubscribe(t *testing.T) {
	src := NewLunaSource(config.LunaConfig{URI: "luna://x/y"}, noopLogger{})
	if err := src.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if src.Name() != "luna://x/y" {
		t.Errorf("Name() = %q", src.Name())
	}
}
