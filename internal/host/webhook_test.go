package host

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWebhookSource_DeliverBeforeSubscribe(t *testing.T) {
	src := NewWebhookSource()

	if err := src.Deliver([]byte(`{}`)); !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("Deliver() error = %v, want ErrSourceUnavailable", err)
	}
	if src.Subscribed() {
		t.Error("Subscribed() = true before Subscribe")
	}
}

func TestWebhookSource_Deliver(t *testing.T) {
	src := NewWebhookSource()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []byte
	if err := src.Subscribe(ctx, func(p []byte) { got = p }); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := src.Deliver([]byte(`{"foregroundAppInfo":[]}`)); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if string(got) != `{"foregroundAppInfo":[]}` {
		t.Errorf("handler got %q", got)
	}
	if src.Name() != "webhook" {
		t.Errorf("Name() = %q, want webhook", src.Name())
	}
}

func TestWebhookSource_UnsubscribesOnCancel(t *testing.T) {
	src := NewWebhookSource()
	ctx, cancel := context.WithCancel(context.Background())

	if err := src.Subscribe(ctx, func([]byte) {}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for src.Subscribed() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if src.Subscribed() {
		t.Fatal("still subscribed after context cancel")
	}
	if err := src.Deliver([]byte(`{}`)); !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("Deliver() error = %v, want ErrSourceUnavailable", err)
	}
}
