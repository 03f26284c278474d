package notify

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/lysyi3m/article-index/app/network"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCenterDeliversMatchingNotifications(t *testing.T) {
	center := NewCenter(8)
	t.Cleanup(func() { _ = center.Close(context.Background()) })

	received := make(chan map[string]any, 1)
	_, err := center.Subscribe(network.NetworkRequestBegan, func(name string, payload map[string]any) {
		received <- payload
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	other := make(chan string, 1)
	_, err = center.Subscribe("SomethingElse", func(name string, payload map[string]any) {
		other <- name
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, "https://en.wikipedia.org/w/api.php", nil)
	network.PostNetworkRequestBeganNotification(center, req)

	select {
	case payload := <-received:
		if payload[network.RequestPayloadKey] != req {
			t.Error("Expected request in payload")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for notification")
	}

	select {
	case name := <-other:
		t.Errorf("Unexpected delivery of %s to unrelated subscriber", name)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCenterWildcardSubscription(t *testing.T) {
	center := NewCenter(8)
	t.Cleanup(func() { _ = center.Close(context.Background()) })

	var mu sync.Mutex
	var names []string
	done := make(chan struct{}, 2)
	_, err := center.Subscribe("", func(name string, payload map[string]any) {
		mu.Lock()
		names = append(names, name)
		mu.Unlock()
		done <- struct{}{}
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	center.Publish("A", nil)
	center.Publish("B", nil)
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Timed out waiting for notifications")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(names) != 2 || names[0] != "A" || names[1] != "B" {
		t.Errorf("Expected [A B], got %v", names)
	}
}

func TestCenterPublishNeverBlocks(t *testing.T) {
	center := NewCenter(1)
	t.Cleanup(func() { _ = center.Close(context.Background()) })

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	_, err := center.Subscribe("", func(name string, payload map[string]any) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	center.Publish("first", nil)
	<-started

	finished := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			center.Publish("flood", nil)
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
	close(release)

	// One slot buffers a notification, the rest are dropped.
	if got := center.Dropped(); got != 9 {
		t.Errorf("Expected 9 dropped notifications, got %d", got)
	}
}

func TestCenterPublishWithoutSubscribers(t *testing.T) {
	center := NewCenter(0)
	center.Publish("nobody", map[string]any{"x": 1})
	if err := center.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Publishing after close is a no-op.
	center.Publish("nobody", nil)
}

func TestCenterSubscriptionClose(t *testing.T) {
	center := NewCenter(4)
	t.Cleanup(func() { _ = center.Close(context.Background()) })

	calls := make(chan struct{}, 4)
	sub, err := center.Subscribe("", func(name string, payload map[string]any) {
		calls <- struct{}{}
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := sub.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := sub.Close(context.Background()); err != nil {
		t.Errorf("Expected second close to succeed, got %v", err)
	}

	center.Publish("ignored", nil)
	select {
	case <-calls:
		t.Error("Unexpected delivery after subscription close")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCenterSubscribeAfterClose(t *testing.T) {
	center := NewCenter(4)
	if err := center.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	_, err := center.Subscribe("", func(string, map[string]any) {})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if _, err := NewCenter(1).Subscribe("", nil); err == nil {
		t.Error("Expected error for nil handler")
	}
}

func TestCenterRecoversHandlerPanic(t *testing.T) {
	center := NewCenter(4)
	t.Cleanup(func() { _ = center.Close(context.Background()) })

	delivered := make(chan string, 2)
	_, err := center.Subscribe("", func(name string, payload map[string]any) {
		if name == "boom" {
			panic("handler failure")
		}
		delivered <- name
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	center.Publish("boom", nil)
	center.Publish("after", nil)

	select {
	case name := <-delivered:
		if name != "after" {
			t.Errorf("Expected after, got %s", name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Worker did not survive handler panic")
	}
}
