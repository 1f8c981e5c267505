package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"

	"go.uber.org/zap"

	"github.com/mmeshcher/nexoria-ledger/internal/model"
	"github.com/mmeshcher/nexoria-ledger/internal/repository"
)

const (
	keyUser         = repository.KeyUser
	keyTransactions = repository.KeyTransactions
	keyTournaments  = repository.KeyTournaments
	keyAccounts     = repository.KeyAccounts
)

// load читает JSON-документ по ключу. Отсутствие ключа не ошибка: found = false.
func load[T any](ctx context.Context, store Store, key string) (value T, found bool, err error) {
	raw, err := store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrKeyNotFound) {
			return value, false, nil
		}
		return value, false, fmt.Errorf("load %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, &value); err != nil {
		return value, false, fmt.Errorf("decode %s: %w", key, err)
	}

	return value, true, nil
}

func (s *Service) save(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	if err := s.store.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}

	return nil
}

func (s *Service) loadUser(ctx context.Context) (*model.User, error) {
	u, found, err := load[model.User](ctx, s.store, keyUser)
	if err != nil || !found {
		return nil, err
	}
	return &u, nil
}

// loadAccounts читает учётные записи пользователей. Возвращаемая карта не nil.
func (s *Service) loadAccounts(ctx context.Context) (map[string]model.User, bool, error) {
	accounts, found, err := load[map[string]model.User](ctx, s.store, keyAccounts)
	if err != nil {
		return nil, false, err
	}
	if accounts == nil {
		accounts = make(map[string]model.User)
	}
	return accounts, found, nil
}

func accountWrite(accounts map[string]model.User, existed bool, u model.User) write {
	next := maps.Clone(accounts)
	next[u.ID] = u
	return write{key: keyAccounts, next: next, prev: accounts, existed: existed}
}

// sessionUserWrites возвращает записи пользователя сессии и его учётной записи.
func (s *Service) sessionUserWrites(ctx context.Context, prev, next model.User) ([]write, error) {
	accounts, existed, err := s.loadAccounts(ctx)
	if err != nil {
		return nil, err
	}
	return []write{
		{key: keyUser, next: next, prev: prev, existed: true},
		accountWrite(accounts, existed, next),
	}, nil
}

// applyEffect возвращает баланс после изменения на effect.
func applyEffect(balance, effect int64) (int64, error) {
	if effect > 0 && balance > math.MaxInt64-effect {
		return 0, fmt.Errorf("%w: balance %d, credit %d", ErrBalanceOverflow, balance, effect)
	}
	next := balance + effect
	if next < 0 {
		return 0, fmt.Errorf("%w: balance %d, requested %d", ErrInsufficientFunds, balance, -effect)
	}
	return next, nil
}

func (s *Service) loadTransactions(ctx context.Context) ([]model.Transaction, bool, error) {
	return load[[]model.Transaction](ctx, s.store, keyTransactions)
}

func (s *Service) loadTournaments(ctx context.Context) ([]model.Tournament, bool, error) {
	ts, found, err := load[[]model.Tournament](ctx, s.store, keyTournaments)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return defaultCatalog(), false, nil
	}
	return ts, true, nil
}

// write описывает запись ключа и значение для отката. Если existed == false,
// откат удаляет ключ.
type write struct {
	key     string
	next    any
	prev    any
	existed bool
}

// commit записывает ключи по порядку. Хранилище не поддерживает атомарную
// запись нескольких ключей, поэтому при ошибке уже записанные ключи
// восстанавливаются в обратном порядке.
func (s *Service) commit(ctx context.Context, writes ...write) error {
	for i, w := range writes {
		if err := s.save(ctx, w.key, w.next); err != nil {
			s.rollback(context.WithoutCancel(ctx), writes[:i])
			return err
		}
	}
	return nil
}

func (s *Service) rollback(ctx context.Context, done []write) {
	for i := len(done) - 1; i >= 0; i-- {
		w := done[i]

		var err error
		if w.existed {
			err = s.save(ctx, w.key, w.prev)
		} else {
			err = s.store.Remove(ctx, w.key)
		}

		if err != nil {
			s.logger.Error("rollback failed, state may be inconsistent",
				zap.String("key", w.key),
				zap.Error(err),
			)
		}
	}
}
