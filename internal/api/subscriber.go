package api

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// subscriber is one WebSocket connection. readLoop handles control frames
// from the client; writeLoop is the only goroutine writing to conn.
type subscriber struct {
	hub  *Hub
	conn *websocket.Conn

	queue    chan []byte
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	channels map[string]struct{}
}

func newSubscriber(h *Hub, conn *websocket.Conn) *subscriber {
	return &subscriber{
		hub:      h,
		conn:     conn,
		queue:    make(chan []byte, subscriberQueue),
		done:     make(chan struct{}),
		channels: make(map[string]struct{}),
	}
}

func (s *subscriber) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// enqueue reports false when the frame was not queued because the
// subscriber is stopping or its queue is full.
func (s *subscriber) enqueue(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.queue <- frame:
		return true
	default:
		return false
	}
}

func (s *subscriber) wants(channel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.channels[channel]
	return ok
}

func (s *subscriber) deadlines() (ping, pong time.Duration) {
	return time.Duration(s.hub.cfg.PingInterval) * time.Second,
		time.Duration(s.hub.cfg.PongTimeout) * time.Second
}

func (s *subscriber) readLoop() {
	defer func() {
		s.hub.remove(s)
		s.conn.Close()
	}()

	ping, pong := s.deadlines()
	extend := func() error { return s.conn.SetReadDeadline(time.Now().Add(ping + pong)) }

	s.conn.SetReadLimit(int64(s.hub.cfg.MaxMessageSize))
	//nolint:errcheck // a failed deadline surfaces as a read error
	extend()
	s.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		//nolint:errcheck // a failed deadline surfaces as a read error
		extend()
		s.handle(data)
	}
}

func (s *subscriber) writeLoop() {
	ping, pong := s.deadlines()
	ticker := time.NewTicker(ping)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		//nolint:errcheck // a failed deadline surfaces as a write error
		s.conn.SetWriteDeadline(time.Now().Add(pong))
		return s.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case <-s.done:
			//nolint:errcheck // peer may already be gone
			write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case frame := <-s.queue:
			if err := write(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *subscriber) handle(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.replyError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		s.subscribe(msg)
	case WSTypeUnsubscribe:
		s.unsubscribe(msg)
	case WSTypePing:
		s.reply(msg.ID, WSTypePong, nil)
	default:
		s.replyError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// channelsFrom decodes and validates the channel list of a subscribe or
// unsubscribe frame.
func channelsFrom(msg WSMessage) ([]string, error) {
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return nil, err
	}
	var p WSSubscribePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("invalid %s payload", msg.Type)
	}
	for _, ch := range p.Channels {
		if _, known := retainedChannels[ch]; !known {
			return nil, fmt.Errorf("unknown channel: %s", ch)
		}
	}
	return p.Channels, nil
}

func (s *subscriber) subscribe(msg WSMessage) {
	channels, err := channelsFrom(msg)
	if err != nil {
		s.replyError(msg.ID, err.Error())
		return
	}

	var added []string
	s.mu.Lock()
	for _, ch := range channels {
		if _, ok := s.channels[ch]; !ok {
			s.channels[ch] = struct{}{}
			added = append(added, ch)
		}
	}
	s.mu.Unlock()

	s.reply(msg.ID, WSTypeResponse, map[string]any{"subscribed": channels})

	for _, ch := range added {
		if frame := s.hub.retained(ch); frame != nil {
			s.enqueue(frame)
		}
	}
}

func (s *subscriber) unsubscribe(msg WSMessage) {
	channels, err := channelsFrom(msg)
	if err != nil {
		s.replyError(msg.ID, err.Error())
		return
	}

	s.mu.Lock()
	for _, ch := range channels {
		delete(s.channels, ch)
	}
	s.mu.Unlock()

	s.reply(msg.ID, WSTypeResponse, map[string]any{"unsubscribed": channels})
}

func (s *subscriber) reply(id, kind string, payload any) {
	frame, err := json.Marshal(WSMessage{
		Type:      kind,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err == nil {
		s.enqueue(frame)
	}
}

func (s *subscriber) replyError(id, message string) {
	s.reply(id, WSTypeError, map[string]string{"message": message})
}
