// Package service реализует ledger-движок кошелька Nexoria: создание операций,
// смену их статусов и изменение баланса владельца операции.
//
// Все изменяющие операции сериализуются одним мьютексом, поэтому параллельные
// запросы не теряют обновления баланса. Событие шины публикуется ровно один раз
// на успешную изменяющую операцию и только после снятия блокировки, чтобы
// синхронные подписчики могли сразу перечитать состояние.
package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/nexoria-ledger/internal/model"
)

// DefaultSeedBalance задаёт стартовый баланс нового пользователя (1000 кредитов).
var DefaultSeedBalance = model.Credits(1000)

// Store описывает контракт общего хранилища состояния, используемый сервисом.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// Publisher описывает шину, в которую сервис публикует события синхронизации.
type Publisher interface {
	Publish(ev model.Event)
}

// Service содержит правила ledger-движка.
type Service struct {
	mu sync.Mutex

	store     Store
	publisher Publisher
	logger    *zap.Logger

	seedBalance int64
	now         func() time.Time
	newID       func() string
}

// Option настраивает Service.
type Option func(*Service)

// WithSeedBalance задаёт стартовый баланс новых пользователей в минорных единицах.
func WithSeedBalance(amount int64) Option {
	return func(s *Service) { s.seedBalance = amount }
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator подменяет генератор идентификаторов.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService создаёт сервис поверх хранилища и шины событий.
func NewService(store Store, publisher Publisher, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		store:       store,
		publisher:   publisher,
		logger:      logger,
		seedBalance: DefaultSeedBalance,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

func (s *Service) publish(t model.EventType, payload any) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(model.Event{
		Topic:      model.TopicLedger,
		Type:       t,
		Payload:    payload,
		OccurredAt: s.now().UTC(),
	})
}

// Login загружает пользователя сессии. Без сессии восстанавливает учётную запись
// по адресу или создаёт новую со стартовым балансом.
func (s *Service) Login(ctx context.Context, email string) (model.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return model.User{}, ErrInvalidEmail
	}

	s.mu.Lock()
	u, err := s.loadUser(ctx)
	if err != nil {
		s.mu.Unlock()
		return model.User{}, err
	}

	if u != nil {
		s.mu.Unlock()
		if u.Email != email {
			return model.User{}, ErrSessionActive
		}
		s.publish(model.EventUserLogin, *u)
		return *u, nil
	}

	accounts, accountsExisted, err := s.loadAccounts(ctx)
	if err != nil {
		s.mu.Unlock()
		return model.User{}, err
	}

	if known, ok := findAccount(accounts, email); ok {
		if err := s.commit(ctx, write{key: keyUser, next: known}); err != nil {
			s.mu.Unlock()
			return model.User{}, err
		}
		s.mu.Unlock()

		s.logger.Info("user restored",
			zap.String("userID", known.ID),
			zap.Int64("balance", known.Balance),
		)

		s.publish(model.EventUserLogin, known)
		return known, nil
	}

	user := model.User{
		ID:       s.newID(),
		Username: usernameFromEmail(email),
		Email:    email,
		Role:     roleForEmail(email),
		Balance:  s.seedBalance,
		Version:  1,
	}

	err = s.commit(ctx,
		write{key: keyUser, next: user},
		accountWrite(accounts, accountsExisted, user),
	)
	if err != nil {
		s.mu.Unlock()
		return model.User{}, err
	}
	s.mu.Unlock()

	s.logger.Info("user created",
		zap.String("userID", user.ID),
		zap.String("role", string(user.Role)),
		zap.Int64("balance", user.Balance),
	)

	s.publish(model.EventUserLogin, user)
	return user, nil
}

func findAccount(accounts map[string]model.User, email string) (model.User, bool) {
	for _, u := range accounts {
		if u.Email == email {
			return u, true
		}
	}
	return model.User{}, false
}

func usernameFromEmail(email string) string {
	name, _, _ := strings.Cut(email, "@")
	return name
}

func roleForEmail(email string) model.Role {
	if strings.Contains(email, "admin") {
		return model.RoleAdmin
	}
	return model.RoleUser
}

// Logout очищает пользователя сессии. Без активной сессии ничего не делает.
func (s *Service) Logout(ctx context.Context) error {
	s.mu.Lock()
	u, err := s.loadUser(ctx)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if u == nil {
		s.mu.Unlock()
		return nil
	}

	if err := s.store.Remove(ctx, keyUser); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.logger.Info("user logged out", zap.String("userID", u.ID))

	s.publish(model.EventUserLogout, nil)
	return nil
}

// CurrentUser возвращает пользователя сессии или nil, если вход не выполнен.
func (s *Service) CurrentUser(ctx context.Context) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadUser(ctx)
}

// GetTransactions возвращает журнал операций от новых к старым.
// Непустой userID оставляет только операции этого пользователя.
func (s *Service) GetTransactions(ctx context.Context, userID string) ([]model.Transaction, error) {
	s.mu.Lock()
	txs, _, err := s.loadTransactions(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if userID == "" {
		return txs, nil
	}

	res := make([]model.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.UserID == userID {
			res = append(res, tx)
		}
	}
	return res, nil
}

// GetTournaments возвращает каталог турниров.
func (s *Service) GetTournaments(ctx context.Context) ([]model.Tournament, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts, _, err := s.loadTournaments(ctx)
	return ts, err
}
