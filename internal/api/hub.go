package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/media-state-bridge/internal/bridge"
	"github.com/nerrad567/media-state-bridge/internal/infrastructure/config"
	"github.com/nerrad567/media-state-bridge/internal/infrastructure/logging"
)

// Message types on the /ws connection.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// Event channels clients can subscribe to.
const (
	ChannelStateChanged      = bridge.ChannelStateChanged
	ChannelConnectionChanged = bridge.ChannelConnectionChanged
	ChannelJournalEntry      = "journal.entry"
)

// retainedChannels replay their latest event to a client when it subscribes,
// the same way a retained MQTT message reaches a late subscriber.
var retainedChannels = map[string]bool{
	ChannelStateChanged:      true,
	ChannelConnectionChanged: true,
	ChannelJournalEntry:      false,
}

const subscriberQueue = 256

// WSMessage is the envelope for every frame in either direction.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe frames.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// Hub fans bridge and journal events out to WebSocket subscribers.
// It satisfies bridge.Notifier.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	latest map[string][]byte

	dropped atomic.Uint64
}

// NewHub returns an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:    cfg,
		logger: logger,
		subs:   make(map[*subscriber]struct{}),
		latest: make(map[string][]byte),
	}
}

// Run waits for ctx to end, then disconnects every subscriber.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[*subscriber]struct{})
	h.mu.Unlock()

	for s := range subs {
		s.stop()
	}
}

// Broadcast encodes one event and queues it for every subscriber of channel.
// Subscribers with a full queue miss the event.
func (h *Hub) Broadcast(channel string, payload any) {
	frame, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("encoding websocket event", "channel", channel, "error", err)
		return
	}

	h.mu.Lock()
	if retainedChannels[channel] {
		h.latest[channel] = frame
	}
	targets := make([]*subscriber, 0, len(h.subs))
	for s := range h.subs {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	for _, s := range targets {
		if s.wants(channel) && !s.enqueue(frame) {
			h.dropped.Add(1)
		}
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many events were discarded for slow subscribers.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

func (h *Hub) retained(channel string) []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest[channel]
}

func (h *Hub) add(s *subscriber) {
	h.mu.Lock()
	h.subs[s] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	delete(h.subs, s)
	n := len(h.subs)
	h.mu.Unlock()
	s.stop()
	h.logger.Debug("websocket client disconnected", "clients", n)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS middleware decides which origins reach this handler.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// handleWebSocket upgrades the request and attaches a subscriber to the hub.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	sub := newSubscriber(s.hub, conn)
	s.hub.add(sub)
	go sub.writeLoop()
	go sub.readLoop()
}
