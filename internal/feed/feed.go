// Package feed реализует живую ленту фоновых уведомлений.
//
// Лента публикует события только в тему model.TopicAmbient и никогда не
// обращается к ledger-движку или хранилищу.
package feed

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/nexoria-ledger/internal/model"
)

const (
	// DefaultInterval задаёт период тика ленты.
	DefaultInterval = 15 * time.Second
	// DefaultProbability задаёт вероятность публикации события на тике.
	DefaultProbability = 0.3
)

// Publisher описывает шину, в которую лента публикует события.
type Publisher interface {
	Publish(ev model.Event)
}

type template struct {
	kind    model.GlobalEventType
	message func() string
}

var templates = []template{
	{kind: model.GlobalEventWin, message: func() string {
		return "Operator 'Ghost_Ops' secured " + model.DisplayAmount(model.Credits(2500)) + " in Pochinki Scrims!"
	}},
	{kind: model.GlobalEventJoin, message: func() string {
		return "New Squad 'Hyper_recoil' just registered for Pro Invitational."
	}},
	{kind: model.GlobalEventBan, message: func() string {
		return "Sentinel detected and terminated 4 suspicious nodes in ASIA-1."
	}},
	{kind: model.GlobalEventSystem, message: func() string {
		return "Prize Pool for Cyber Duo escalated by 15%."
	}},
}

// Feed периодически публикует случайные уведомления из набора шаблонов.
type Feed struct {
	publisher   Publisher
	logger      *zap.Logger
	interval    time.Duration
	probability float64

	mu  sync.Mutex
	rnd *rand.Rand

	now func() time.Time
}

// Option настраивает Feed.
type Option func(*Feed)

// WithInterval задаёт период тика.
func WithInterval(d time.Duration) Option {
	return func(f *Feed) { f.interval = d }
}

// WithProbability задаёт вероятность публикации на тике, от 0 до 1.
func WithProbability(p float64) Option {
	return func(f *Feed) { f.probability = p }
}

// WithRand подменяет источник случайных чисел.
func WithRand(r *rand.Rand) Option {
	return func(f *Feed) { f.rnd = r }
}

// New создаёт ленту, публикующую события в publisher.
func New(publisher Publisher, logger *zap.Logger, opts ...Option) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}

	f := &Feed{
		publisher:   publisher,
		logger:      logger,
		interval:    DefaultInterval,
		probability: DefaultProbability,
		rnd:         rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x6e65786f726961)),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run запускает тики ленты и блокируется до отмены ctx.
func (f *Feed) Run(ctx context.Context) {
	if f.interval <= 0 {
		f.logger.Warn("live feed disabled", zap.Duration("interval", f.interval))
		return
	}

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.tick()
		}
	}
}

// tick публикует событие с заданной вероятностью и сообщает, было ли оно опубликовано.
func (f *Feed) tick() bool {
	f.mu.Lock()
	roll := f.rnd.Float64()
	idx := f.rnd.IntN(len(templates))
	f.mu.Unlock()

	if roll >= f.probability {
		return false
	}

	tpl := templates[idx]
	f.Broadcast(tpl.kind, tpl.message())
	return true
}

// Broadcast публикует фоновое уведомление и возвращает его.
func (f *Feed) Broadcast(kind model.GlobalEventType, message string) model.GlobalEvent {
	ev := model.GlobalEvent{
		ID:        uuid.NewString(),
		Type:      kind,
		Message:   message,
		Timestamp: f.now().UTC(),
	}

	f.logger.Debug("live feed event", zap.String("type", string(kind)), zap.String("message", message))

	f.publisher.Publish(model.Event{
		Topic:      model.TopicAmbient,
		Type:       model.EventGlobalBroadcast,
		Payload:    ev,
		OccurredAt: ev.Timestamp,
	})
	return ev
}
