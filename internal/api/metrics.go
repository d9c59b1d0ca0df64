package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/media-state-bridge/internal/process"
)

// JournalStats is the part of the journal reported by /metrics.
type JournalStats interface {
	Len() int
	Capacity() int
	Dropped() uint64
}

// SubprocessStats is implemented by host sources that supervise a subprocess.
type SubprocessStats interface {
	Stats() process.Stats
}

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	WebSocket     WSMetrics       `json:"websocket"`
	Bridge        BridgeMetrics   `json:"bridge"`
	Journal       *JournalMetrics `json:"journal,omitempty"`
	Host          *process.Stats  `json:"host_process,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int    `json:"connected_clients"`
	DroppedEvents    uint64 `json:"dropped_events"`
}

// BridgeMetrics contains bridge lifecycle and broker statistics.
type BridgeMetrics struct {
	Status    string `json:"status"`
	Connected bool   `json:"connected"`
}

// JournalMetrics contains journal occupancy.
type JournalMetrics struct {
	Entries  int    `json:"entries"`
	Capacity int    `json:"capacity"`
	Dropped  uint64 `json:"dropped"`
}

// handleMetrics returns process, bridge and journal metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	snap := s.bridge.Snapshot()
	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
			DroppedEvents:    s.hub.Dropped(),
		},
		Bridge: BridgeMetrics{
			Status:    string(snap.Status),
			Connected: snap.Connected,
		},
	}

	if s.journal != nil {
		metrics.Journal = &JournalMetrics{
			Entries:  s.journal.Len(),
			Capacity: s.journal.Capacity(),
			Dropped:  s.journal.Dropped(),
		}
	}

	if s.subprocess != nil {
		stats := s.subprocess.Stats()
		metrics.Host = &stats
	}

	writeJSON(w, http.StatusOK, metrics)
}
