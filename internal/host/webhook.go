package host

import (
	"context"
	"sync"
)

// WebhookSource receives notifications pushed over HTTP. The API's
// foreground endpoint calls Deliver.
type WebhookSource struct {
	mu      sync.RWMutex
	handler func([]byte)
}

// NewWebhookSource creates an HTTP push source.
func NewWebhookSource() *WebhookSource {
	return &WebhookSource{}
}

// Name identifies the source in logs.
func (s *WebhookSource) Name() string {
	return "webhook"
}

// Subscribe registers handler until ctx ends.
func (s *WebhookSource) Subscribe(ctx context.Context, handler func(payload []byte)) error {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.handler = nil
		s.mu.Unlock()
	}()

	return nil
}

// Deliver hands one notification to the subscriber. It returns
// ErrSourceUnavailable until the bridge has subscribed.
func (s *WebhookSource) Deliver(payload []byte) error {
	s.mu.RLock()
	handler := s.handler
	s.mu.RUnlock()

	if handler == nil {
		return ErrSourceUnavailable
	}
	handler(payload)
	return nil
}

// Subscribed reports whether the bridge is listening.
func (s *WebhookSource) Subscribed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handler != nil
}
