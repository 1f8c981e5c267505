package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/nexoria-ledger/internal/model"
)

const defaultMaxParticipants = 100

// TournamentDraft описывает турнир, создаваемый администратором.
type TournamentDraft struct {
	Title           string
	Game            string
	Type            model.TournamentType
	PrizePool       int64
	EntryFee        int64
	StartTime       time.Time
	MaxParticipants int
	Description     string
}

// JoinTournament записывает пользователя сессии на турнир: списывает вступительный
// взнос операцией ENTRY_FEE и увеличивает число участников. Публикует одно
// событие TOURNAMENT_JOIN.
func (s *Service) JoinTournament(ctx context.Context, tournamentID string) (model.Tournament, model.Transaction, error) {
	s.mu.Lock()
	t, tx, err := s.joinTournamentLocked(ctx, tournamentID)
	s.mu.Unlock()
	if err != nil {
		return model.Tournament{}, model.Transaction{}, err
	}

	s.logger.Info("tournament joined",
		zap.String("tournamentID", t.ID),
		zap.String("userID", tx.UserID),
		zap.String("transactionID", tx.ID),
		zap.Int("participants", t.Participants),
	)

	s.publish(model.EventTournamentJoin, model.TournamentJoin{Tournament: t, Transaction: tx})
	return t, tx, nil
}

func (s *Service) joinTournamentLocked(ctx context.Context, tournamentID string) (model.Tournament, model.Transaction, error) {
	user, err := s.loadUser(ctx)
	if err != nil {
		return model.Tournament{}, model.Transaction{}, err
	}
	if user == nil {
		return model.Tournament{}, model.Transaction{}, ErrNoSession
	}

	catalog, catalogExisted, err := s.loadTournaments(ctx)
	if err != nil {
		return model.Tournament{}, model.Transaction{}, err
	}

	idx := slices.IndexFunc(catalog, func(t model.Tournament) bool { return t.ID == tournamentID })
	if idx == -1 {
		return model.Tournament{}, model.Transaction{}, fmt.Errorf("%w: %s", ErrTournamentNotFound, tournamentID)
	}

	t := catalog[idx]
	if !t.IsOpen() {
		return model.Tournament{}, model.Transaction{}, fmt.Errorf("%w: %s", ErrTournamentClosed, t.ID)
	}
	if t.EntryFee <= 0 {
		return model.Tournament{}, model.Transaction{}, fmt.Errorf("%w: entry fee of %s", ErrInvalidAmount, t.ID)
	}
	if user.Balance < t.EntryFee {
		return model.Tournament{}, model.Transaction{}, fmt.Errorf("%w: balance %d, entry fee %d", ErrInsufficientFunds, user.Balance, t.EntryFee)
	}

	txs, txsExisted, err := s.loadTransactions(ctx)
	if err != nil {
		return model.Tournament{}, model.Transaction{}, err
	}

	tx := model.Transaction{
		ID:            s.newID(),
		UserID:        user.ID,
		Amount:        -t.EntryFee,
		Type:          model.TransactionEntryFee,
		Status:        model.TransactionCompleted,
		Timestamp:     s.now().UTC(),
		PaymentMethod: "WALLET",
	}

	nextUser := *user
	nextUser.Balance -= t.EntryFee
	nextUser.Version++

	nextTxs := make([]model.Transaction, 0, len(txs)+1)
	nextTxs = append(nextTxs, tx)
	nextTxs = append(nextTxs, txs...)

	prevCatalog := slices.Clone(catalog)
	t.Participants++
	catalog[idx] = t

	writes, err := s.sessionUserWrites(ctx, *user, nextUser)
	if err != nil {
		return model.Tournament{}, model.Transaction{}, err
	}
	writes = append(writes,
		write{key: keyTransactions, next: nextTxs, prev: txs, existed: txsExisted},
		write{key: keyTournaments, next: catalog, prev: prevCatalog, existed: catalogExisted},
	)

	if err := s.commit(ctx, writes...); err != nil {
		return model.Tournament{}, model.Transaction{}, err
	}

	return t, tx, nil
}

// CreateTournament добавляет турнир в начало каталога.
func (s *Service) CreateTournament(ctx context.Context, draft TournamentDraft) (model.Tournament, error) {
	if strings.TrimSpace(draft.Title) == "" {
		return model.Tournament{}, fmt.Errorf("%w: empty title", ErrInvalidTournament)
	}
	if draft.EntryFee <= 0 || draft.PrizePool < 0 || draft.MaxParticipants < 0 {
		return model.Tournament{}, fmt.Errorf("%w: negative or zero amounts", ErrInvalidTournament)
	}

	t := model.Tournament{
		ID:              s.newID(),
		Title:           draft.Title,
		Game:            draft.Game,
		Type:            draft.Type,
		PrizePool:       draft.PrizePool,
		EntryFee:        draft.EntryFee,
		StartTime:       draft.StartTime.UTC(),
		Status:          model.TournamentUpcoming,
		MaxParticipants: draft.MaxParticipants,
		Description:     draft.Description,
	}
	if t.Game == "" {
		t.Game = "BGMI"
	}
	if t.Type == "" {
		t.Type = model.TournamentSquad
	}
	if t.MaxParticipants == 0 {
		t.MaxParticipants = defaultMaxParticipants
	}

	s.mu.Lock()
	catalog, existed, err := s.loadTournaments(ctx)
	if err != nil {
		s.mu.Unlock()
		return model.Tournament{}, err
	}

	next := make([]model.Tournament, 0, len(catalog)+1)
	next = append(next, t)
	next = append(next, catalog...)

	if err := s.commit(ctx, write{key: keyTournaments, next: next, prev: catalog, existed: existed}); err != nil {
		s.mu.Unlock()
		return model.Tournament{}, err
	}
	s.mu.Unlock()

	s.logger.Info("tournament created", zap.String("tournamentID", t.ID), zap.String("title", t.Title))

	s.publish(model.EventTournamentCreated, t)
	return t, nil
}
