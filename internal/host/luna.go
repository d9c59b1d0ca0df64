package host

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/media-state-bridge/internal/infrastructure/config"
	"github.com/nerrad567/media-state-bridge/internal/process"
)

// lunaSubscribeParams asks the service to push every change.
const lunaSubscribeParams = `{"subscribe":true}`

// LunaSource subscribes to a webOS Luna service through luna-send.
//
// luna-send -i keeps running and prints one JSON response per line; each
// line becomes one notification. The subprocess is restarted if it exits.
type LunaSource struct {
	cfg    config.LunaConfig
	logger Logger

	mu  sync.Mutex
	mgr *process.Manager
}

// NewLunaSource creates a luna-send source. logger may be nil.
func NewLunaSource(cfg config.LunaConfig, logger Logger) *LunaSource {
	if logger == nil {
		logger = noopLogger{}
	}
	return &LunaSource{cfg: cfg, logger: logger}
}

// Name returns the Luna service URI.
func (s *LunaSource) Name() string {
	return s.cfg.URI
}

// lunaArgs builds the luna-send command line.
func lunaArgs(uri string) []string {
	return []string{"-i", uri, lunaSubscribeParams}
}

// Subscribe starts luna-send and feeds its output to handler.
func (s *LunaSource) Subscribe(ctx context.Context, handler func(payload []byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mgr != nil {
		return fmt.Errorf("luna subscription to %s already running", s.cfg.URI)
	}

	pcfg := process.DefaultConfig("luna-send", s.cfg.Binary, lunaArgs(s.cfg.URI))
	if s.cfg.RestartDelay > 0 {
		pcfg.RestartDelay = time.Duration(s.cfg.RestartDelay) * time.Second
	}
	pcfg.OnStdoutLine = func(line string) {
		if payload, ok := lunaPayload(line); ok {
			handler(payload)
		}
	}
	pcfg.OnRestart = func(attempt int) {
		s.logger.Warn("luna-send exited, resubscribing", "uri", s.cfg.URI, "attempt", attempt)
	}

	mgr := process.NewManager(pcfg)
	mgr.SetLogger(s.logger)

	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	s.mgr = mgr
	return nil
}

// lunaPayload filters luna-send output down to JSON responses. Banners and
// blank lines are dropped.
func lunaPayload(line string) ([]byte, bool) {
	trimmed := bytes.TrimSpace([]byte(line))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	return trimmed, true
}

// Stats reports the luna-send subprocess state.
func (s *LunaSource) Stats() process.Stats {
	s.mu.Lock()
	mgr := s.mgr
	s.mu.Unlock()

	if mgr == nil {
		return process.Stats{Name: "luna-send", Status: process.StatusStopped}
	}
	return mgr.Stats()
}

// Stop terminates luna-send.
func (s *LunaSource) Stop() error {
	s.mu.Lock()
	mgr := s.mgr
	s.mu.Unlock()

	if mgr == nil {
		return nil
	}
	return mgr.Stop()
}
