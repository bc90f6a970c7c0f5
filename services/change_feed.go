package services

import (
	"context"
	"sync"

	"potluck/models"
)

// ChangeFeed carries table change notifications to subscribers.
type ChangeFeed interface {
	Publish(ctx context.Context, ev models.ChangeEvent) error
	Subscribe(fn func(models.ChangeEvent)) (Subscription, error)
	Close() error
}

// LocalFeed fans events out inside one process. Handlers run on the
// publisher's goroutine, outside the lock.
type LocalFeed struct {
	mu     sync.RWMutex
	subs   map[int]func(models.ChangeEvent)
	nextID int
	closed bool
}

func NewLocalFeed() *LocalFeed {
	return &LocalFeed{subs: make(map[int]func(models.ChangeEvent))}
}

func (f *LocalFeed) Publish(_ context.Context, ev models.ChangeEvent) error {
	f.mu.RLock()
	handlers := make([]func(models.ChangeEvent), 0, len(f.subs))
	for _, h := range f.subs {
		handlers = append(handlers, h)
	}
	f.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
	return nil
}

func (f *LocalFeed) Subscribe(fn func(models.ChangeEvent)) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, errFeedClosed
	}
	id := f.nextID
	f.nextID++
	f.subs[id] = fn

	var once sync.Once
	return subscriptionFunc(func() error {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
		return nil
	}), nil
}

func (f *LocalFeed) Close() error {
	f.mu.Lock()
	f.closed = true
	f.subs = make(map[int]func(models.ChangeEvent))
	f.mu.Unlock()
	return nil
}

// Subscribers is the current number of registrations.
func (f *LocalFeed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}
