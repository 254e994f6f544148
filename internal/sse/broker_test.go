package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func drain(ch chan []byte) []string {
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestDocEventDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishDocEvent("created", 42)

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: doc.created") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"id":42`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestUnknownDocEventIgnored(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishDocEvent("exploded", 1)
	time.Sleep(50 * time.Millisecond)
	if got := drain(ch); len(got) != 0 {
		t.Errorf("unexpected events %q", got)
	}
}

func TestTagEventThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishTagEvent()
	b.PublishTagEvent()
	b.PublishTagEvent()
	b.PublishDocEvent("updated", 7)

	time.Sleep(50 * time.Millisecond)
	tagCount, docCount := 0, 0
	for _, s := range drain(ch) {
		if strings.Contains(s, "tags.updated") {
			tagCount++
		} else {
			docCount++
		}
	}
	if docCount != 1 {
		t.Errorf("doc events = %d, want 1", docCount)
	}
	if tagCount != 1 {
		t.Errorf("tag events = %d, want 1 (throttled)", tagCount)
	}
}

func TestTagEventTrailingEdge(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishTagEvent()
	b.PublishTagEvent()
	b.PublishTagEvent()

	time.Sleep(300 * time.Millisecond)
	got := drain(ch)
	if len(got) != 2 {
		t.Fatalf("tag events = %d, want leading and trailing: %q", len(got), got)
	}
	if !strings.HasPrefix(got[0], "id: 1\n") || !strings.HasPrefix(got[1], "id: 2\n") {
		t.Errorf("event ids not sequential: %q", got)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: "doc.updated", Data: map[string]int64{"id": 3}})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: doc.updated") {
		t.Errorf("handler output missing event: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Capacity is 64; the rest must be dropped without blocking.
	for i := 0; i < 70; i++ {
		b.PublishDocEvent("updated", int64(i))
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	b.Publish(Event{Type: "doc.updated", Data: map[string]int64{"id": 1}})
	b.PublishDocEvent("updated", 1)
	b.PublishTagEvent()
}
