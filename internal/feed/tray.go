package feed

import (
	"sync"
	"time"

	"github.com/mmeshcher/nexoria-ledger/internal/model"
)

const (
	// DefaultTrayCapacity ограничивает, сколько последних уведомлений показывает потребитель.
	DefaultTrayCapacity = 3
	// DefaultTrayTTL задаёт время жизни одного уведомления.
	DefaultTrayTTL = 5 * time.Second
)

// Tray хранит ограниченную очередь уведомлений одного потребителя, новые в начале.
// У каждого уведомления свой таймер истечения.
type Tray struct {
	mu       sync.Mutex
	items    []model.GlobalEvent
	timers   map[string]*time.Timer
	capacity int
	ttl      time.Duration
	closed   bool
}

// NewTray создаёт очередь уведомлений. Неположительные capacity или ttl
// заменяются значениями по умолчанию.
func NewTray(capacity int, ttl time.Duration) *Tray {
	if capacity <= 0 {
		capacity = DefaultTrayCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTrayTTL
	}
	return &Tray{
		timers:   make(map[string]*time.Timer),
		capacity: capacity,
		ttl:      ttl,
	}
}

// Push добавляет уведомление в начало очереди. Вытесненные уведомления
// удаляются вместе с их таймерами. После Close ничего не делает.
func (t *Tray) Push(ev model.GlobalEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	if old, ok := t.timers[ev.ID]; ok {
		old.Stop()
		t.removeLocked(ev.ID)
	}

	t.items = append([]model.GlobalEvent{ev}, t.items...)
	for len(t.items) > t.capacity {
		evicted := t.items[len(t.items)-1]
		t.items = t.items[:len(t.items)-1]
		if timer, ok := t.timers[evicted.ID]; ok {
			timer.Stop()
			delete(t.timers, evicted.ID)
		}
	}

	id := ev.ID
	var timer *time.Timer
	timer = time.AfterFunc(t.ttl, func() { t.expire(id, timer) })
	t.timers[id] = timer
}

// expire убирает уведомление, только если timer всё ещё его текущий таймер:
// после повторного Push старый обработчик мог уже ждать мьютекс.
func (t *Tray) expire(id string, timer *time.Timer) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.timers[id] != timer {
		return
	}
	delete(t.timers, id)
	t.removeLocked(id)
}

func (t *Tray) removeLocked(id string) bool {
	for i, it := range t.items {
		if it.ID == id {
			t.items = append(t.items[:i:i], t.items[i+1:]...)
			return true
		}
	}
	return false
}

// Dismiss убирает уведомление до истечения его таймера.
func (t *Tray) Dismiss(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.timers[id]; ok {
		timer.Stop()
		delete(t.timers, id)
	}
	return t.removeLocked(id)
}

// Items возвращает копию текущих уведомлений.
func (t *Tray) Items() []model.GlobalEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]model.GlobalEvent, len(t.items))
	copy(out, t.items)
	return out
}

// Close останавливает все таймеры и очищает очередь.
func (t *Tray) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
	t.items = nil
	t.closed = true
}
