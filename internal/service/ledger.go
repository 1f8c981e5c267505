package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/nexoria-ledger/internal/model"
	"github.com/mmeshcher/nexoria-ledger/internal/validation"
)

// TransactionDraft описывает операцию, которую просит создать вызывающая сторона.
// Пустые ID, UserID и Timestamp заполняются сервисом.
type TransactionDraft struct {
	ID            string
	UserID        string
	Amount        int64
	Type          model.TransactionType
	PaymentMethod string
	Timestamp     time.Time
}

// effectOnCreate возвращает изменение баланса в момент создания операции.
// Вывод списывается сразу (средства блокируются), пополнение зачисляется только после подтверждения.
func effectOnCreate(t model.TransactionType, amount int64) int64 {
	switch t {
	case model.TransactionEntryFee, model.TransactionPrize, model.TransactionWithdrawal:
		return amount
	default:
		return 0
	}
}

// effectOnSettle возвращает изменение баланса при переходе из PENDING в терминальный статус.
func effectOnSettle(tx model.Transaction, status model.TransactionStatus) int64 {
	switch {
	case status == model.TransactionCompleted && tx.Type == model.TransactionDeposit:
		return tx.Amount
	case status == model.TransactionRejected && tx.Type == model.TransactionWithdrawal:
		if tx.Amount < 0 {
			return -tx.Amount
		}
		return tx.Amount
	default:
		return 0
	}
}

func initialStatus(t model.TransactionType) model.TransactionStatus {
	if t == model.TransactionEntryFee || t == model.TransactionPrize {
		return model.TransactionCompleted
	}
	return model.TransactionPending
}

// CreateTransaction создаёт операцию для пользователя сессии и применяет её
// эффект на баланс согласно виду операции.
func (s *Service) CreateTransaction(ctx context.Context, draft TransactionDraft) (model.Transaction, error) {
	s.mu.Lock()
	tx, err := s.createTransactionLocked(ctx, draft)
	s.mu.Unlock()
	if err != nil {
		return model.Transaction{}, err
	}

	s.logger.Info("transaction created",
		zap.String("id", tx.ID),
		zap.String("userID", tx.UserID),
		zap.String("type", string(tx.Type)),
		zap.String("status", string(tx.Status)),
		zap.Int64("amount", tx.Amount),
	)

	s.publish(model.EventTransactionCreated, tx)
	return tx, nil
}

func (s *Service) createTransactionLocked(ctx context.Context, draft TransactionDraft) (model.Transaction, error) {
	if err := validation.CheckDraftAmount(draft.Type, draft.Amount); err != nil {
		return model.Transaction{}, fmt.Errorf("%w: %w", ErrInvalidAmount, err)
	}

	user, err := s.loadUser(ctx)
	if err != nil {
		return model.Transaction{}, err
	}
	if user == nil {
		return model.Transaction{}, ErrNoSession
	}
	if draft.UserID != "" && draft.UserID != user.ID {
		return model.Transaction{}, ErrUserMismatch
	}

	effect := effectOnCreate(draft.Type, draft.Amount)
	nextBalance, err := applyEffect(user.Balance, effect)
	if err != nil {
		return model.Transaction{}, err
	}

	txs, existed, err := s.loadTransactions(ctx)
	if err != nil {
		return model.Transaction{}, err
	}

	tx := model.Transaction{
		ID:            draft.ID,
		UserID:        user.ID,
		Amount:        draft.Amount,
		Type:          draft.Type,
		Status:        initialStatus(draft.Type),
		Timestamp:     draft.Timestamp,
		PaymentMethod: draft.PaymentMethod,
	}
	if tx.ID == "" {
		tx.ID = s.newID()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = s.now().UTC()
	}

	if slices.ContainsFunc(txs, func(t model.Transaction) bool { return t.ID == tx.ID }) {
		return model.Transaction{}, fmt.Errorf("%w: %s", ErrDuplicateTransaction, tx.ID)
	}

	nextTxs := make([]model.Transaction, 0, len(txs)+1)
	nextTxs = append(nextTxs, tx)
	nextTxs = append(nextTxs, txs...)

	var writes []write
	if effect != 0 {
		next := *user
		next.Balance = nextBalance
		next.Version++

		userWrites, err := s.sessionUserWrites(ctx, *user, next)
		if err != nil {
			return model.Transaction{}, err
		}
		writes = append(writes, userWrites...)
	}
	writes = append(writes, write{key: keyTransactions, next: nextTxs, prev: txs, existed: existed})

	if err := s.commit(ctx, writes...); err != nil {
		return model.Transaction{}, err
	}

	return tx, nil
}

// UpdateTransactionStatus переводит операцию из PENDING в терминальный статус.
// Для уже завершённой операции вызов ничего не меняет, не публикует событие
// и возвращает сохранённую запись: повтор команды безопасен.
func (s *Service) UpdateTransactionStatus(ctx context.Context, id string, status model.TransactionStatus) (model.Transaction, error) {
	if !status.IsTerminal() {
		return model.Transaction{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	s.mu.Lock()
	tx, changed, err := s.updateTransactionStatusLocked(ctx, id, status)
	s.mu.Unlock()
	if err != nil {
		return model.Transaction{}, err
	}

	if !changed {
		s.logger.Debug("status update ignored for settled transaction",
			zap.String("id", tx.ID),
			zap.String("status", string(tx.Status)),
		)
		return tx, nil
	}

	s.logger.Info("transaction settled",
		zap.String("id", tx.ID),
		zap.String("userID", tx.UserID),
		zap.String("type", string(tx.Type)),
		zap.String("status", string(tx.Status)),
	)

	s.publish(model.EventTransactionUpdated, tx)
	return tx, nil
}

func (s *Service) updateTransactionStatusLocked(ctx context.Context, id string, status model.TransactionStatus) (model.Transaction, bool, error) {
	txs, _, err := s.loadTransactions(ctx)
	if err != nil {
		return model.Transaction{}, false, err
	}

	idx := slices.IndexFunc(txs, func(t model.Transaction) bool { return t.ID == id })
	if idx == -1 {
		return model.Transaction{}, false, fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
	}

	tx := txs[idx]
	if tx.Status != model.TransactionPending {
		return tx, false, nil
	}

	var writes []write

	if effect := effectOnSettle(tx, status); effect != 0 {
		ownerWrites, err := s.settleOwnerWrites(ctx, tx.UserID, effect)
		if err != nil {
			return model.Transaction{}, false, err
		}
		writes = append(writes, ownerWrites...)
	}

	prev := slices.Clone(txs)
	tx.Status = status
	txs[idx] = tx
	writes = append(writes, write{key: keyTransactions, next: txs, prev: prev, existed: true})

	if err := s.commit(ctx, writes...); err != nil {
		return model.Transaction{}, false, err
	}

	return tx, true, nil
}

// settleOwnerWrites применяет эффект к учётной записи владельца операции.
// Если владелец сейчас в сессии, обновляется и запись сессии.
func (s *Service) settleOwnerWrites(ctx context.Context, ownerID string, effect int64) ([]write, error) {
	accounts, accountsExisted, err := s.loadAccounts(ctx)
	if err != nil {
		return nil, err
	}
	session, err := s.loadUser(ctx)
	if err != nil {
		return nil, err
	}

	owner, known := accounts[ownerID]
	inSession := session != nil && session.ID == ownerID
	if inSession {
		owner, known = *session, true
	}
	if !known {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, ownerID)
	}

	next := owner
	next.Balance, err = applyEffect(owner.Balance, effect)
	if err != nil {
		return nil, err
	}
	next.Version++

	var writes []write
	if inSession {
		writes = append(writes, write{key: keyUser, next: next, prev: owner, existed: true})
	}
	return append(writes, accountWrite(accounts, accountsExisted, next)), nil
}
