// Package observable provides a typed subscribe/publish stream used for
// socket events and store change notifications.
package observable

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Stream fans values out to subscribers. The zero value is not usable; use
// NewStream.
type Stream[T any] struct {
	name   string
	logger *zap.Logger

	mu   sync.Mutex
	next uint64
	subs map[uint64]func(T)
}

func NewStream[T any](name string, logger *zap.Logger) *Stream[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream[T]{
		name:   name,
		logger: logger,
		subs:   make(map[uint64]func(T)),
	}
}

// Subscribe registers fn and returns a func that removes it. The returned
// func may be called more than once.
func (s *Stream[T]) Subscribe(fn func(T)) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Publish delivers v to every current subscriber in subscription order.
// Subscribers run without the stream lock held, so they may subscribe or
// unsubscribe.
func (s *Stream[T]) Publish(v T) {
	for _, fn := range s.snapshot() {
		s.deliver(fn, v)
	}
}

func (s *Stream[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Stream[T]) snapshot() []func(T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uint64, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	fns := make([]func(T), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	return fns
}

func (s *Stream[T]) deliver(fn func(T), v T) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("subscriber panicked",
				zap.String("stream", s.name),
				zap.Any("panic", r),
			)
		}
	}()
	fn(v)
}
