package app

import (
	"sync"

	"go.uber.org/zap"

	"github.com/yourusername/mediahub-go/internal/domain"
	"github.com/yourusername/mediahub-go/internal/metrics"
)

// Subscription receives task snapshots until it is closed
type Subscription struct {
	id uint64
	ch chan *domain.DownloadTask
}

// Updates is closed when the subscription ends, either by Unsubscribe or
// because the subscriber fell behind.
func (s *Subscription) Updates() <-chan *domain.DownloadTask {
	return s.ch
}

// ProgressBroadcaster fans task snapshots out to subscribers without ever
// blocking the publisher
type ProgressBroadcaster struct {
	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	buffer int
	closed bool
	logger *zap.Logger
}

// NewProgressBroadcaster creates a broadcaster with per-subscriber queues of size buffer
func NewProgressBroadcaster(buffer int, logger *zap.Logger) *ProgressBroadcaster {
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressBroadcaster{
		subs:   make(map[uint64]*Subscription),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a new subscriber
func (b *ProgressBroadcaster) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{id: b.nextID, ch: make(chan *domain.DownloadTask, b.buffer)}
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub.id] = sub
	metrics.ProgressSubscribers.Set(float64(len(b.subs)))
	return sub
}

// Unsubscribe removes sub and closes its channel
func (b *ProgressBroadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub.id)
}

// Publish delivers a snapshot of task to every subscriber at most once.
// Subscribers whose queue is full are dropped.
func (b *ProgressBroadcaster) Publish(task *domain.DownloadTask) {
	if task == nil {
		return
	}
	snapshot := task.Clone()

	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subs {
		select {
		case sub.ch <- snapshot:
		default:
			b.removeLocked(id)
			metrics.ProgressSubscribersDropped.Inc()
			b.logger.Warn("Dropped slow progress subscriber", zap.Uint64("subscriber", id))
		}
	}
}

// SubscriberCount returns the number of live subscribers
func (b *ProgressBroadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription
func (b *ProgressBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id := range b.subs {
		b.removeLocked(id)
	}
	b.closed = true
}

func (b *ProgressBroadcaster) removeLocked(id uint64) {
	sub, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(sub.ch)
	metrics.ProgressSubscribers.Set(float64(len(b.subs)))
}
