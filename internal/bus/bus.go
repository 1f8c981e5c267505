// Package bus реализует шину широковещательных событий одной сессии.
//
// Доставка синхронная: Publish возвращается после того, как все текущие
// подписчики темы получили событие, включая подписчиков самого издателя.
// Журнала повторной доставки нет.
package bus

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/nexoria-ledger/internal/model"
)

type subscription struct {
	fn     func(model.Event)
	active atomic.Bool
}

// Bus доставляет события подписчикам по темам.
type Bus struct {
	mu        sync.RWMutex
	listeners map[model.Topic][]*subscription
	closed    bool

	logger *zap.Logger
	now    func() time.Time
}

// New создаёт шину.
func New(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		listeners: make(map[model.Topic][]*subscription),
		logger:    logger,
		now:       time.Now,
	}
}

// Subscribe регистрирует обработчик событий темы и возвращает функцию отписки.
// Повторный вызов функции отписки ничего не делает.
func (b *Bus) Subscribe(topic model.Topic, fn func(model.Event)) func() {
	sub := &subscription{fn: fn}
	sub.active.Store(true)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	b.listeners[topic] = append(b.listeners[topic], sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			b.remove(topic, sub)
		})
	}
}

func (b *Bus) remove(topic model.Topic, sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.listeners[topic]
	for i, s := range subs {
		if s == sub {
			// Новый срез: снимки, раздаваемые Publish, остаются неизменными.
			next := make([]*subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			b.listeners[topic] = next
			return
		}
	}
}

// Publish доставляет событие всем подписчикам его темы в порядке подписки.
func (b *Bus) Publish(ev model.Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = b.now().UTC()
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	subs := b.listeners[ev.Topic]
	b.mu.RUnlock()

	for _, sub := range subs {
		if !sub.active.Load() {
			continue
		}
		b.deliver(sub, ev)
	}
}

func (b *Bus) deliver(sub *subscription, ev model.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bus listener panicked",
				zap.Any("panic", r),
				zap.String("topic", string(ev.Topic)),
				zap.String("type", string(ev.Type)),
			)
		}
	}()

	sub.fn(ev)
}

// Subscribers возвращает число подписчиков темы.
func (b *Bus) Subscribers(topic model.Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.listeners[topic])
}

// Close отписывает всех подписчиков. После закрытия Publish ничего не делает.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, subs := range b.listeners {
		for _, s := range subs {
			s.active.Store(false)
		}
	}
	b.listeners = make(map[model.Topic][]*subscription)
	b.closed = true
}
