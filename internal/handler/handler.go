// Package handler содержит HTTP-обработчики API сервиса Nexoria.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/nexoria-ledger/internal/actor"
	"github.com/mmeshcher/nexoria-ledger/internal/middleware"
	"github.com/mmeshcher/nexoria-ledger/internal/model"
	"github.com/mmeshcher/nexoria-ledger/internal/service"
	"github.com/mmeshcher/nexoria-ledger/internal/validation"
)

// Service определяет контракт ledger-движка, используемый HTTP-обработчиками.
type Service interface {
	Login(ctx context.Context, email string) (model.User, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (*model.User, error)
	CreateTransaction(ctx context.Context, draft service.TransactionDraft) (model.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, id string, status model.TransactionStatus) (model.Transaction, error)
	GetTransactions(ctx context.Context, userID string) ([]model.Transaction, error)
	GetTournaments(ctx context.Context) ([]model.Tournament, error)
	JoinTournament(ctx context.Context, tournamentID string) (model.Tournament, model.Transaction, error)
	CreateTournament(ctx context.Context, draft service.TournamentDraft) (model.Tournament, error)
}

// Broadcaster публикует фоновые уведомления живой ленты.
type Broadcaster interface {
	Broadcast(kind model.GlobalEventType, message string) model.GlobalEvent
}

// ViewProvider отдаёт представление серверного потребителя состояния.
type ViewProvider interface {
	View() actor.View
	Dismiss(id string) bool
}

// Subscriber описывает шину событий для WebSocket-моста.
type Subscriber interface {
	Subscribe(topic model.Topic, fn func(model.Event)) func()
}

// Handler реализует HTTP-обработчики API сервиса Nexoria.
type Handler struct {
	service        Service
	feed           Broadcaster
	view           ViewProvider
	bus            Subscriber
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, feed Broadcaster, view ViewProvider, bus Subscriber, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		feed:           feed,
		view:           view,
		bus:            bus,
		logger:         logger,
		authMiddleware: auth,
	}
}

// writeError переводит ошибку движка в HTTP-статус. Неизвестные ошибки пишутся в лог.
func (h *Handler) writeError(w http.ResponseWriter, err error, msg string, fields ...zap.Field) {
	var status int
	switch {
	case errors.Is(err, service.ErrTransactionNotFound), errors.Is(err, service.ErrTournamentNotFound),
		errors.Is(err, service.ErrAccountNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, service.ErrInvalidAmount), errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidEmail), errors.Is(err, service.ErrInvalidTournament),
		errors.Is(err, service.ErrBalanceOverflow):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNoSession):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrUserMismatch):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrSessionActive), errors.Is(err, service.ErrTournamentClosed),
		errors.Is(err, service.ErrDuplicateTransaction):
		status = http.StatusConflict
	default:
		h.logger.Error(msg, append(fields, zap.Error(err))...)
		status = http.StatusInternalServerError
	}

	http.Error(w, http.StatusText(status), status)
}

type sessionUserKey struct{}

// RequireSession пропускает запрос, только если cookie принадлежит пользователю текущей сессии.
func (h *Handler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		u, err := h.service.CurrentUser(r.Context())
		if err != nil {
			h.writeError(w, err, "load session user error")
			return
		}
		if u == nil || u.ID != userID {
			h.authMiddleware.ClearAuthCookie(w)
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), sessionUserKey{}, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin пропускает только администратора. Должен стоять после RequireSession.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := sessionUser(r.Context())
		if u == nil || !u.IsAdmin() {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sessionUser(ctx context.Context) *model.User {
	u, _ := ctx.Value(sessionUserKey{}).(*model.User)
	return u
}

type loginRequest struct {
	Email string `json:"email"`
}

// Login открывает сессию и устанавливает cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	u, err := h.service.Login(r.Context(), req.Email)
	if err != nil {
		h.writeError(w, err, "login error")
		return
	}

	h.authMiddleware.SetAuthCookie(w, u.ID)
	writeJSON(w, http.StatusOK, newUserResponse(&u))
}

// Logout закрывает сессию и удаляет cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context()); err != nil {
		h.writeError(w, err, "logout error")
		return
	}

	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusOK)
}

// CurrentUser возвращает пользователя сессии.
func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newUserResponse(sessionUser(r.Context())))
}

// View возвращает представление серверного потребителя состояния вместе с уведомлениями.
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newViewResponse(h.view.View()))
}

// DismissNotification убирает уведомление из очереди серверного потребителя.
func (h *Handler) DismissNotification(w http.ResponseWriter, r *http.Request) {
	if !h.view.Dismiss(chi.URLParam(r, "id")) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetTransactions возвращает журнал операций. Пользователь видит только свои
// операции, администратор может запросить любые или все.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	u := sessionUser(r.Context())
	if u == nil {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	filter := r.URL.Query().Get("user_id")
	if !u.IsAdmin() {
		if filter != "" && filter != u.ID {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		filter = u.ID
	}

	txs, err := h.service.GetTransactions(r.Context(), filter)
	if err != nil {
		h.writeError(w, err, "get transactions error", zap.String("userID", u.ID))
		return
	}

	if len(txs) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, newTransactionsResponse(txs))
}

type createTransactionRequest struct {
	Type          model.TransactionType `json:"type"`
	Amount        decimal.Decimal       `json:"amount"`
	PaymentMethod string                `json:"payment_method"`
}

// CreateTransaction создаёт операцию пользователя сессии.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !validation.IsValidPaymentMethod(req.PaymentMethod) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	txType := model.TransactionType(strings.ToUpper(string(req.Type)))
	amount, err := model.MinorFromDecimal(req.Amount)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if txType == model.TransactionDeposit || txType == model.TransactionWithdrawal {
		if err := validation.CheckTransferAmount(amount); err != nil {
			http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
			return
		}
	}

	tx, err := h.service.CreateTransaction(r.Context(), service.TransactionDraft{
		Type:          txType,
		Amount:        amount,
		PaymentMethod: strings.ToUpper(req.PaymentMethod),
	})
	if err != nil {
		h.writeError(w, err, "create transaction error", zap.String("type", string(req.Type)))
		return
	}

	writeJSON(w, http.StatusCreated, newTransactionResponse(tx))
}

type updateStatusRequest struct {
	Status model.TransactionStatus `json:"status"`
}

// UpdateTransactionStatus переводит операцию в терминальный статус.
func (h *Handler) UpdateTransactionStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	id := chi.URLParam(r, "id")
	status := model.TransactionStatus(strings.ToUpper(string(req.Status)))

	tx, err := h.service.UpdateTransactionStatus(r.Context(), id, status)
	if err != nil {
		h.writeError(w, err, "update transaction status error", zap.String("transactionID", id))
		return
	}

	writeJSON(w, http.StatusOK, newTransactionResponse(tx))
}

// GetTournaments возвращает каталог турниров.
func (h *Handler) GetTournaments(w http.ResponseWriter, r *http.Request) {
	ts, err := h.service.GetTournaments(r.Context())
	if err != nil {
		h.writeError(w, err, "get tournaments error")
		return
	}

	writeJSON(w, http.StatusOK, newTournamentsResponse(ts))
}

// JoinTournament записывает пользователя сессии на турнир.
func (h *Handler) JoinTournament(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, tx, err := h.service.JoinTournament(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "join tournament error", zap.String("tournamentID", id))
		return
	}

	writeJSON(w, http.StatusOK, joinResponse{
		Tournament:  newTournamentResponse(t),
		Transaction: newTransactionResponse(tx),
	})
}

type createTournamentRequest struct {
	Title           string               `json:"title"`
	Game            string               `json:"game"`
	Type            model.TournamentType `json:"type"`
	PrizePool       decimal.Decimal      `json:"prize_pool"`
	EntryFee        decimal.Decimal      `json:"entry_fee"`
	StartTime       time.Time            `json:"start_time"`
	MaxParticipants int                  `json:"max_participants"`
	Description     string               `json:"description"`
}

// CreateTournament добавляет турнир в каталог.
func (h *Handler) CreateTournament(w http.ResponseWriter, r *http.Request) {
	var req createTournamentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	prizePool, err := model.MinorFromDecimal(req.PrizePool)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	entryFee, err := model.MinorFromDecimal(req.EntryFee)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	t, err := h.service.CreateTournament(r.Context(), service.TournamentDraft{
		Title:           req.Title,
		Game:            req.Game,
		Type:            model.TournamentType(strings.ToUpper(string(req.Type))),
		PrizePool:       prizePool,
		EntryFee:        entryFee,
		StartTime:       req.StartTime,
		MaxParticipants: req.MaxParticipants,
		Description:     req.Description,
	})
	if err != nil {
		h.writeError(w, err, "create tournament error", zap.String("title", req.Title))
		return
	}

	writeJSON(w, http.StatusCreated, newTournamentResponse(t))
}

type broadcastRequest struct {
	Type    model.GlobalEventType `json:"type"`
	Message string                `json:"message"`
}

func isValidGlobalEventType(t model.GlobalEventType) bool {
	switch t {
	case model.GlobalEventWin, model.GlobalEventJoin, model.GlobalEventBan, model.GlobalEventSystem:
		return true
	default:
		return false
	}
}

// Broadcast публикует фоновое уведомление от имени администратора.
func (h *Handler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	kind := model.GlobalEventType(strings.ToUpper(string(req.Type)))
	if kind == "" {
		kind = model.GlobalEventSystem
	}
	if !isValidGlobalEventType(kind) || strings.TrimSpace(req.Message) == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusAccepted, h.feed.Broadcast(kind, req.Message))
}
