package local

import (
	"context"
	"fmt"
	"path"
	"sync"

	"github.com/pulsedelta/backend/internal/domain"
)

// subBuffer is the per-subscriber queue length. Deliveries to a full queue
// are dropped.
const subBuffer = 128

type subscriber struct {
	pattern string
	ch      chan domain.Message
}

// Bus implements domain.SignalBus inside one process. Subscriptions accept
// the same glob patterns as Redis PSUBSCRIBE for "*", "?" and "[...]".
type Bus struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

var _ domain.SignalBus = (*Bus)(nil)

// NewBus creates a Bus with no subscribers.
func NewBus() *Bus {
	return &Bus{subs: make(map[*subscriber]struct{})}
}

// Publish delivers payload to every subscriber whose pattern matches
// channel. It never blocks on slow subscribers.
func (b *Bus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("local: publish %s: %w", channel, err)
	}
	msg := domain.Message{Channel: channel, Payload: append([]byte(nil), payload...)}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		if ok, _ := path.Match(s.pattern, channel); !ok {
			continue
		}
		select {
		case s.ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscription for channel, which may be a pattern.
// The returned channel closes when ctx is cancelled.
func (b *Bus) Subscribe(ctx context.Context, channel string) (<-chan domain.Message, error) {
	if _, err := path.Match(channel, ""); err != nil {
		return nil, fmt.Errorf("local: subscribe %s: %w", channel, err)
	}
	s := &subscriber{pattern: channel, ch: make(chan domain.Message, subBuffer)}

	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, s)
		close(s.ch)
		b.mu.Unlock()
	}()
	return s.ch, nil
}
