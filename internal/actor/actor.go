// Package actor содержит потребителя состояния сессии: он подписан на шину,
// перечитывает состояние при событиях ledger-движка и держит очередь
// фоновых уведомлений.
package actor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/nexoria-ledger/internal/feed"
	"github.com/mmeshcher/nexoria-ledger/internal/model"
)

const refreshTimeout = 5 * time.Second

// Ledger описывает операции чтения ledger-движка, нужные для обновления представления.
type Ledger interface {
	CurrentUser(ctx context.Context) (*model.User, error)
	GetTransactions(ctx context.Context, userID string) ([]model.Transaction, error)
	GetTournaments(ctx context.Context) ([]model.Tournament, error)
}

// Subscriber описывает шину событий.
type Subscriber interface {
	Subscribe(topic model.Topic, fn func(model.Event)) func()
}

// View описывает производное представление состояния сессии.
type View struct {
	User          *model.User         `json:"user"`
	Transactions  []model.Transaction `json:"transactions"`
	Tournaments   []model.Tournament  `json:"tournaments"`
	Notifications []model.GlobalEvent `json:"notifications"`
	RefreshedAt   time.Time           `json:"refreshed_at"`
}

// Actor поддерживает представление в актуальном состоянии.
type Actor struct {
	ledger Ledger
	tray   *feed.Tray
	logger *zap.Logger

	// refreshMu упорядочивает перечитывания: снимок, прочитанный позже,
	// применяется позже.
	refreshMu sync.Mutex

	mu   sync.Mutex
	view View

	unsubscribe []func()
	closeOnce   sync.Once
}

// New создаёт актора, подписывает его на обе темы шины и загружает начальное представление.
func New(ctx context.Context, ledger Ledger, sub Subscriber, tray *feed.Tray, logger *zap.Logger) *Actor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tray == nil {
		tray = feed.NewTray(feed.DefaultTrayCapacity, feed.DefaultTrayTTL)
	}

	a := &Actor{
		ledger: ledger,
		tray:   tray,
		logger: logger,
	}

	a.unsubscribe = append(a.unsubscribe,
		sub.Subscribe(model.TopicLedger, a.handleLedger),
		sub.Subscribe(model.TopicAmbient, a.handleAmbient),
	)

	a.init(ctx)
	return a
}

func (a *Actor) init(ctx context.Context) {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	u, err := a.ledger.CurrentUser(ctx)
	if err != nil {
		a.logger.Error("load session user", zap.Error(err))
		return
	}

	if u == nil {
		ts, err := a.ledger.GetTournaments(ctx)
		if err != nil {
			a.logger.Error("load tournaments", zap.Error(err))
			return
		}
		a.mu.Lock()
		a.view.Tournaments = ts
		a.view.RefreshedAt = time.Now().UTC()
		a.mu.Unlock()
		return
	}

	a.setUser(u)
	a.refresh(ctx)
}

func (a *Actor) handleLedger(ev model.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	switch ev.Type {
	case model.EventUserLogout:
		a.mu.Lock()
		a.view.User = nil
		a.view.Transactions = nil
		a.view.RefreshedAt = time.Now().UTC()
		a.mu.Unlock()

	case model.EventUserLogin:
		if u, ok := ev.Payload.(model.User); ok {
			a.setUser(&u)
		}
		a.refresh(ctx)

	case model.EventTransactionCreated, model.EventTransactionUpdated,
		model.EventTournamentJoin, model.EventTournamentCreated:
		if a.hasUser() {
			a.refresh(ctx)
		}
	}
}

func (a *Actor) handleAmbient(ev model.Event) {
	if ev.Type != model.EventGlobalBroadcast {
		return
	}
	if ge, ok := ev.Payload.(model.GlobalEvent); ok {
		a.tray.Push(ge)
	}
}

func (a *Actor) setUser(u *model.User) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.view.User = u
}

func (a *Actor) hasUser() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.view.User != nil
}

// refresh перечитывает пользователя, каталог и операции. Администратор видит
// все операции, пользователь видит только свои. Вызывается под refreshMu.
func (a *Actor) refresh(ctx context.Context) {
	u, err := a.ledger.CurrentUser(ctx)
	if err != nil {
		a.logger.Error("refresh session user", zap.Error(err))
		return
	}

	ts, err := a.ledger.GetTournaments(ctx)
	if err != nil {
		a.logger.Error("refresh tournaments", zap.Error(err))
		return
	}

	var txs []model.Transaction
	if u != nil {
		filter := u.ID
		if u.IsAdmin() {
			filter = ""
		}
		txs, err = a.ledger.GetTransactions(ctx, filter)
		if err != nil {
			a.logger.Error("refresh transactions", zap.Error(err), zap.String("userID", u.ID))
			return
		}
	}

	a.mu.Lock()
	a.view.User = u
	a.view.Tournaments = ts
	a.view.Transactions = txs
	a.view.RefreshedAt = time.Now().UTC()
	a.mu.Unlock()
}

// View возвращает копию текущего представления вместе с уведомлениями.
func (a *Actor) View() View {
	a.mu.Lock()
	v := a.view
	if v.User != nil {
		u := *v.User
		v.User = &u
	}
	v.Transactions = append([]model.Transaction(nil), a.view.Transactions...)
	v.Tournaments = append([]model.Tournament(nil), a.view.Tournaments...)
	a.mu.Unlock()

	v.Notifications = a.tray.Items()
	return v
}

// Dismiss убирает уведомление до истечения его таймера.
func (a *Actor) Dismiss(id string) bool {
	return a.tray.Dismiss(id)
}

// Close отписывает актора от шины и останавливает таймеры уведомлений.
func (a *Actor) Close() {
	a.closeOnce.Do(func() {
		for _, unsubscribe := range a.unsubscribe {
			unsubscribe()
		}
		a.tray.Close()
	})
}
