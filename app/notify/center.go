package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/lysyi3m/article-index/app/network"
)

var _ network.Publisher = (*Center)(nil)

// ErrClosed is returned when subscribing to a closed center.
var ErrClosed = errors.New("notification center closed")

const defaultBuffer = 64

// Handler receives one published notification.
type Handler func(name string, payload map[string]any)

type notification struct {
	name    string
	payload map[string]any
}

// Center is an asynchronous fire-and-forget notification center. Publish
// never blocks: notifications for a subscriber whose queue is full are
// dropped.
type Center struct {
	mu            sync.RWMutex
	nextID        int64
	closed        bool
	subscriptions map[int64]*Subscription
	buffer        int
	dropped       atomic.Int64
}

// NewCenter creates a center whose subscriber queues hold buffer
// notifications. Non-positive values use the default.
func NewCenter(buffer int) *Center {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Center{
		subscriptions: make(map[int64]*Subscription),
		buffer:        buffer,
	}
}

// Publish queues the notification for every subscriber interested in name.
func (c *Center) Publish(name string, payload map[string]any) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return
	}

	for _, sub := range c.subscriptions {
		if sub.name != "" && sub.name != name {
			continue
		}
		select {
		case sub.queue <- notification{name: name, payload: payload}:
		default:
			c.dropped.Add(1)
			slog.Debug("Notification dropped", "name", name, "subscription", sub.id)
		}
	}
}

// Subscribe registers handler for notifications called name. An empty name
// subscribes to every notification.
func (c *Center) Subscribe(name string, handler Handler) (*Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("subscribe %s: nil handler", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("subscribe %s: %w", name, ErrClosed)
	}

	c.nextID++
	sub := &Subscription{
		id:      c.nextID,
		name:    name,
		handler: handler,
		queue:   make(chan notification, c.buffer),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		center:  c,
	}
	c.subscriptions[sub.id] = sub
	go sub.run()

	return sub, nil
}

// Dropped returns the number of notifications discarded on full queues.
func (c *Center) Dropped() int64 {
	return c.dropped.Load()
}

// Close stops every subscription and waits for their workers to exit.
func (c *Center) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	subs := make([]*Subscription, 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		subs = append(subs, sub)
	}
	c.subscriptions = make(map[int64]*Subscription)
	c.mu.Unlock()

	var closeErrs []error
	for _, sub := range subs {
		if err := sub.shutdown(ctx); err != nil {
			closeErrs = append(closeErrs, err)
		}
	}

	if len(closeErrs) > 0 {
		return fmt.Errorf("close notification center: %w", errors.Join(closeErrs...))
	}
	return nil
}

func (c *Center) unsubscribe(id int64) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, ok := c.subscriptions[id]
	if !ok {
		return nil
	}
	delete(c.subscriptions, id)
	return sub
}

// Subscription is a registered handler with its own delivery goroutine.
type Subscription struct {
	id      int64
	name    string
	handler Handler
	queue   chan notification
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	center  *Center
}

// Close unregisters the subscription and waits for its worker to exit.
func (s *Subscription) Close(ctx context.Context) error {
	if sub := s.center.unsubscribe(s.id); sub == nil {
		return nil
	}
	return s.shutdown(ctx)
}

func (s *Subscription) run() {
	defer close(s.done)

	for {
		select {
		case <-s.stop:
			return
		case n := <-s.queue:
			s.deliver(n)
		}
	}
}

func (s *Subscription) deliver(n notification) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Notification handler panicked", "name", n.name, "panic", r)
		}
	}()
	s.handler(n.name, n.payload)
}

func (s *Subscription) shutdown(ctx context.Context) error {
	s.once.Do(func() { close(s.stop) })

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown subscription %d: %w", s.id, ctx.Err())
	}
}
