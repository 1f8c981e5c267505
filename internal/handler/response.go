package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/nexoria-ledger/internal/actor"
	"github.com/mmeshcher/nexoria-ledger/internal/model"
)

// Суммы на проводе передаются десятичными строками в основных единицах, поля *_display нужны для показа.

type userResponse struct {
	ID             string          `json:"id"`
	Username       string          `json:"username"`
	Email          string          `json:"email"`
	Role           model.Role      `json:"role"`
	Balance        decimal.Decimal `json:"balance"`
	BalanceDisplay string          `json:"balance_display"`
	BGMIID         string          `json:"bgmi_id,omitempty"`
}

func newUserResponse(u *model.User) *userResponse {
	if u == nil {
		return nil
	}
	return &userResponse{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		Role:           u.Role,
		Balance:        model.DecimalFromMinor(u.Balance),
		BalanceDisplay: model.DisplayAmount(u.Balance),
		BGMIID:         u.BGMIID,
	}
}

type transactionResponse struct {
	ID            string                  `json:"id"`
	UserID        string                  `json:"user_id"`
	Amount        decimal.Decimal         `json:"amount"`
	AmountDisplay string                  `json:"amount_display"`
	Type          model.TransactionType   `json:"type"`
	Status        model.TransactionStatus `json:"status"`
	Timestamp     string                  `json:"timestamp"`
	PaymentMethod string                  `json:"payment_method,omitempty"`
}

func newTransactionResponse(tx model.Transaction) transactionResponse {
	return transactionResponse{
		ID:            tx.ID,
		UserID:        tx.UserID,
		Amount:        model.DecimalFromMinor(tx.Amount),
		AmountDisplay: model.DisplayAmount(tx.Amount),
		Type:          tx.Type,
		Status:        tx.Status,
		Timestamp:     tx.Timestamp.Format(time.RFC3339),
		PaymentMethod: tx.PaymentMethod,
	}
}

func newTransactionsResponse(txs []model.Transaction) []transactionResponse {
	resp := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		resp = append(resp, newTransactionResponse(tx))
	}
	return resp
}

type tournamentResponse struct {
	ID              string                 `json:"id"`
	Title           string                 `json:"title"`
	Game            string                 `json:"game"`
	Type            model.TournamentType   `json:"type"`
	PrizePool       decimal.Decimal        `json:"prize_pool"`
	EntryFee        decimal.Decimal        `json:"entry_fee"`
	EntryFeeDisplay string                 `json:"entry_fee_display"`
	StartTime       string                 `json:"start_time"`
	Status          model.TournamentStatus `json:"status"`
	Participants    int                    `json:"participants"`
	MaxParticipants int                    `json:"max_participants"`
	Description     string                 `json:"description,omitempty"`
}

func newTournamentResponse(t model.Tournament) tournamentResponse {
	return tournamentResponse{
		ID:              t.ID,
		Title:           t.Title,
		Game:            t.Game,
		Type:            t.Type,
		PrizePool:       model.DecimalFromMinor(t.PrizePool),
		EntryFee:        model.DecimalFromMinor(t.EntryFee),
		EntryFeeDisplay: model.DisplayAmount(t.EntryFee),
		StartTime:       t.StartTime.Format(time.RFC3339),
		Status:          t.Status,
		Participants:    t.Participants,
		MaxParticipants: t.MaxParticipants,
		Description:     t.Description,
	}
}

func newTournamentsResponse(ts []model.Tournament) []tournamentResponse {
	resp := make([]tournamentResponse, 0, len(ts))
	for _, t := range ts {
		resp = append(resp, newTournamentResponse(t))
	}
	return resp
}

type joinResponse struct {
	Tournament  tournamentResponse  `json:"tournament"`
	Transaction transactionResponse `json:"transaction"`
}

type viewResponse struct {
	User          *userResponse         `json:"user"`
	Transactions  []transactionResponse `json:"transactions"`
	Tournaments   []tournamentResponse  `json:"tournaments"`
	Notifications []model.GlobalEvent   `json:"notifications"`
	RefreshedAt   string                `json:"refreshed_at"`
}

func newViewResponse(v actor.View) viewResponse {
	notifications := v.Notifications
	if notifications == nil {
		notifications = []model.GlobalEvent{}
	}
	return viewResponse{
		User:          newUserResponse(v.User),
		Transactions:  newTransactionsResponse(v.Transactions),
		Tournaments:   newTournamentsResponse(v.Tournaments),
		Notifications: notifications,
		RefreshedAt:   v.RefreshedAt.Format(time.RFC3339),
	}
}

// eventResponse описывает кадр, который получает клиент WebSocket.
type eventResponse struct {
	Topic      model.Topic     `json:"topic"`
	Type       model.EventType `json:"type"`
	Payload    any             `json:"payload,omitempty"`
	OccurredAt string          `json:"occurred_at"`
}

func newEventResponse(ev model.Event) eventResponse {
	var payload any
	switch p := ev.Payload.(type) {
	case model.User:
		payload = newUserResponse(&p)
	case model.Transaction:
		payload = newTransactionResponse(p)
	case model.Tournament:
		payload = newTournamentResponse(p)
	case model.TournamentJoin:
		payload = joinResponse{
			Tournament:  newTournamentResponse(p.Tournament),
			Transaction: newTransactionResponse(p.Transaction),
		}
	default:
		payload = p
	}

	return eventResponse{
		Topic:      ev.Topic,
		Type:       ev.Type,
		Payload:    payload,
		OccurredAt: ev.OccurredAt.Format(time.RFC3339Nano),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
