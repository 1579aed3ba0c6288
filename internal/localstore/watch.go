package localstore

import (
	"context"
	"sync"
)

// feed рассылает полные снимки подписчикам. У каждого подписчика буфер на один
// снимок: непрочитанный снимок заменяется более новым.
type feed[T any] struct {
	mu     sync.Mutex
	subs   map[chan T]struct{}
	closed bool
}

func newFeed[T any]() *feed[T] {
	return &feed[T]{subs: make(map[chan T]struct{})}
}

// subscribe регистрирует канал и отдает ему initial. Канал закрывается при
// отмене ctx, при Close хранилища или если done уже закрыт.
func (f *feed[T]) subscribe(ctx context.Context, done <-chan struct{}, initial T) <-chan T {
	ch := make(chan T, 1)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(ch)
		return ch
	}
	f.subs[ch] = struct{}{}
	ch <- initial
	f.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		f.unsubscribe(ch)
	}()
	return ch
}

func (f *feed[T]) unsubscribe(ch chan T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[ch]; ok {
		delete(f.subs, ch)
		close(ch)
	}
}

func (f *feed[T]) hasSubscribers() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs) > 0
}

// publish отдает snapshot всем подписчикам, не блокируясь на медленных.
func (f *feed[T]) publish(snapshot T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}

func (f *feed[T]) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for ch := range f.subs {
		delete(f.subs, ch)
		close(ch)
	}
}
