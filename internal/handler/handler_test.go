package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/nexoria-ledger/internal/actor"
	"github.com/mmeshcher/nexoria-ledger/internal/bus"
	"github.com/mmeshcher/nexoria-ledger/internal/middleware"
	"github.com/mmeshcher/nexoria-ledger/internal/model"
	"github.com/mmeshcher/nexoria-ledger/internal/service"
)

type stubService struct {
	user *model.User

	loginErr error

	createDraft service.TransactionDraft
	createResp  model.Transaction
	createErr   error

	updateResp model.Transaction
	updateErr  error

	txsFilter string
	txsResp   []model.Transaction

	tournamentsResp []model.Tournament

	joinErr error

	tournamentDraft service.TournamentDraft
}

func (s *stubService) Login(ctx context.Context, email string) (model.User, error) {
	if s.loginErr != nil {
		return model.User{}, s.loginErr
	}
	u := model.User{ID: "u-1", Email: email, Username: "user", Role: model.RoleUser, Balance: model.Credits(1000)}
	s.user = &u
	return u, nil
}

func (s *stubService) Logout(ctx context.Context) error {
	s.user = nil
	return nil
}

func (s *stubService) CurrentUser(ctx context.Context) (*model.User, error) {
	return s.user, nil
}

func (s *stubService) CreateTransaction(ctx context.Context, draft service.TransactionDraft) (model.Transaction, error) {
	s.createDraft = draft
	return s.createResp, s.createErr
}

func (s *stubService) UpdateTransactionStatus(ctx context.Context, id string, status model.TransactionStatus) (model.Transaction, error) {
	return s.updateResp, s.updateErr
}

func (s *stubService) GetTransactions(ctx context.Context, userID string) ([]model.Transaction, error) {
	s.txsFilter = userID
	return s.txsResp, nil
}

func (s *stubService) GetTournaments(ctx context.Context) ([]model.Tournament, error) {
	return s.tournamentsResp, nil
}

func (s *stubService) JoinTournament(ctx context.Context, tournamentID string) (model.Tournament, model.Transaction, error) {
	return model.Tournament{ID: tournamentID}, model.Transaction{}, s.joinErr
}

func (s *stubService) CreateTournament(ctx context.Context, draft service.TournamentDraft) (model.Tournament, error) {
	s.tournamentDraft = draft
	return model.Tournament{ID: "t-new", Title: draft.Title, EntryFee: draft.EntryFee}, nil
}

type stubFeed struct {
	broadcasts []model.GlobalEvent
}

func (f *stubFeed) Broadcast(kind model.GlobalEventType, message string) model.GlobalEvent {
	ev := model.GlobalEvent{ID: fmt.Sprintf("g-%d", len(f.broadcasts)+1), Type: kind, Message: message}
	f.broadcasts = append(f.broadcasts, ev)
	return ev
}

type stubView struct {
	view actor.View
}

func (v *stubView) View() actor.View { return v.view }

func (v *stubView) Dismiss(id string) bool { return id == "known" }

type testEnv struct {
	svc    *stubService
	feed   *stubFeed
	bus    *bus.Bus
	auth   *middleware.AuthMiddleware
	router http.Handler
}

func newTestEnv(t *testing.T, svc *stubService) *testEnv {
	t.Helper()

	b := bus.New(zap.NewNop())
	t.Cleanup(b.Close)

	auth := middleware.NewAuthMiddleware("test-secret")
	f := &stubFeed{}
	h := NewHandler(svc, f, &stubView{}, b, zap.NewNop(), auth)

	return &testEnv{svc: svc, feed: f, bus: b, auth: auth, router: h.SetupRouter()}
}

func (e *testEnv) sessionCookie(t *testing.T, userID string) *http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	e.auth.SetAuthCookie(rec, userID)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies[0]
}

func (e *testEnv) do(t *testing.T, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func loggedInService(role model.Role) *stubService {
	return &stubService{
		user: &model.User{ID: "u-1", Username: "user", Role: role, Balance: model.Credits(1000)},
	}
}

func TestLogin_SetsCookie(t *testing.T) {
	env := newTestEnv(t, &stubService{})

	rec := env.do(t, http.MethodPost, "/api/session/login", `{"email":"user@nexoria.gg"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Result().Cookies())

	var resp userResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "u-1", resp.ID)
	assert.Equal(t, "1000", resp.Balance.String())
	assert.NotEmpty(t, resp.BalanceDisplay)
}

func TestLogin_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{name: "bad json", body: `{`, want: http.StatusBadRequest},
		{name: "empty email", body: `{"email":""}`, err: service.ErrInvalidEmail, want: http.StatusBadRequest},
		{name: "another session", body: `{"email":"b@x.io"}`, err: service.ErrSessionActive, want: http.StatusConflict},
		{name: "store failure", body: `{"email":"b@x.io"}`, err: errors.New("disk full"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &stubService{loginErr: tt.err})
			rec := env.do(t, http.MethodPost, "/api/session/login", tt.body, nil)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireSession(t *testing.T) {
	env := newTestEnv(t, loggedInService(model.RoleUser))

	rec := env.do(t, http.MethodGet, "/api/session/user", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/session/user", "", env.sessionCookie(t, "someone-else"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "cookie of a previous session must not act on the current one")

	rec = env.do(t, http.MethodGet, "/api/session/user", "", env.sessionCookie(t, "u-1"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t, loggedInService(model.RoleUser))

	rec := env.do(t, http.MethodPost, "/api/session/logout", "", env.sessionCookie(t, "u-1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, env.svc.user)
}

func TestCreateTransaction(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{name: "created", body: `{"type":"withdrawal","amount":-300.5,"payment_method":"upi"}`, want: http.StatusCreated},
		{name: "insufficient funds", body: `{"type":"WITHDRAWAL","amount":-5000}`, err: service.ErrInsufficientFunds, want: http.StatusPaymentRequired},
		{name: "invalid amount", body: `{"type":"DEPOSIT","amount":-100}`, err: service.ErrInvalidAmount, want: http.StatusBadRequest},
		{name: "duplicate", body: `{"type":"DEPOSIT","amount":100}`, err: service.ErrDuplicateTransaction, want: http.StatusConflict},
		{name: "below minimum transfer", body: `{"type":"DEPOSIT","amount":"49.99"}`, want: http.StatusUnprocessableEntity},
		{name: "prize skips transfer minimum", body: `{"type":"PRIZE","amount":1}`, want: http.StatusCreated},
		{name: "unknown payment method", body: `{"type":"DEPOSIT","amount":100,"payment_method":"CHEQUE"}`, want: http.StatusBadRequest},
		{name: "bad json", body: `{"amount":`, want: http.StatusBadRequest},
		{name: "amount beyond int64", body: `{"type":"DEPOSIT","amount":"184467440737095566.16"}`, want: http.StatusBadRequest},
		{name: "negative amount beyond int64", body: `{"type":"WITHDRAWAL","amount":"-92233720368547758.09"}`, want: http.StatusBadRequest},
		{name: "balance overflow", body: `{"type":"PRIZE","amount":100}`, err: service.ErrBalanceOverflow, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := loggedInService(model.RoleUser)
			svc.createErr = tt.err
			svc.createResp = model.Transaction{ID: "tx-1", Amount: -30050, Type: model.TransactionWithdrawal, Status: model.TransactionPending}
			env := newTestEnv(t, svc)

			rec := env.do(t, http.MethodPost, "/api/transactions", tt.body, env.sessionCookie(t, "u-1"))
			require.Equal(t, tt.want, rec.Code)

			if tt.name == "amount beyond int64" {
				assert.Empty(t, svc.createDraft.Type, "out of range amount must not reach the ledger")
			}

			if tt.name == "created" {
				assert.Equal(t, int64(-30050), svc.createDraft.Amount)
				assert.Equal(t, model.TransactionWithdrawal, svc.createDraft.Type)
				assert.Equal(t, "UPI", svc.createDraft.PaymentMethod)

				var resp transactionResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, "-300.5", resp.Amount.String())
			}
		})
	}
}

func TestGetTransactions_Filtering(t *testing.T) {
	tx := model.Transaction{ID: "tx-1", UserID: "u-1", Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	t.Run("user sees own", func(t *testing.T) {
		svc := loggedInService(model.RoleUser)
		svc.txsResp = []model.Transaction{tx}
		env := newTestEnv(t, svc)

		rec := env.do(t, http.MethodGet, "/api/transactions", "", env.sessionCookie(t, "u-1"))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u-1", svc.txsFilter)
	})

	t.Run("user cannot read others", func(t *testing.T) {
		env := newTestEnv(t, loggedInService(model.RoleUser))

		rec := env.do(t, http.MethodGet, "/api/transactions?user_id=u-2", "", env.sessionCookie(t, "u-1"))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin reads all", func(t *testing.T) {
		svc := loggedInService(model.RoleAdmin)
		svc.txsResp = []model.Transaction{tx}
		env := newTestEnv(t, svc)

		rec := env.do(t, http.MethodGet, "/api/transactions", "", env.sessionCookie(t, "u-1"))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "", svc.txsFilter)
	})

	t.Run("empty journal", func(t *testing.T) {
		env := newTestEnv(t, loggedInService(model.RoleUser))

		rec := env.do(t, http.MethodGet, "/api/transactions", "", env.sessionCookie(t, "u-1"))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestAdminRoutes(t *testing.T) {
	t.Run("forbidden for user", func(t *testing.T) {
		env := newTestEnv(t, loggedInService(model.RoleUser))

		for _, path := range []string{"/api/admin/transactions/tx-1/status", "/api/admin/tournaments", "/api/admin/broadcast"} {
			rec := env.do(t, http.MethodPost, path, `{}`, env.sessionCookie(t, "u-1"))
			assert.Equal(t, http.StatusForbidden, rec.Code, path)
		}
	})

	t.Run("update status errors", func(t *testing.T) {
		tests := []struct {
			err  error
			want int
		}{
			{err: nil, want: http.StatusOK},
			{err: service.ErrTransactionNotFound, want: http.StatusNotFound},
			{err: service.ErrInvalidStatus, want: http.StatusBadRequest},
			{err: service.ErrUserMismatch, want: http.StatusForbidden},
			{err: service.ErrAccountNotFound, want: http.StatusNotFound},
			{err: service.ErrBalanceOverflow, want: http.StatusBadRequest},
			{err: fmt.Errorf("save: %w", errors.New("io")), want: http.StatusInternalServerError},
		}
		for _, tt := range tests {
			svc := loggedInService(model.RoleAdmin)
			svc.updateErr = tt.err
			env := newTestEnv(t, svc)

			rec := env.do(t, http.MethodPost, "/api/admin/transactions/tx-1/status", `{"status":"completed"}`, env.sessionCookie(t, "u-1"))
			assert.Equal(t, tt.want, rec.Code, "%v", tt.err)
		}
	})

	t.Run("create tournament", func(t *testing.T) {
		svc := loggedInService(model.RoleAdmin)
		env := newTestEnv(t, svc)

		body := `{"title":"Night Ops","entry_fee":"25.50","prize_pool":5000,"start_time":"2024-07-01T18:00:00Z"}`
		rec := env.do(t, http.MethodPost, "/api/admin/tournaments", body, env.sessionCookie(t, "u-1"))

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, int64(2550), svc.tournamentDraft.EntryFee)
		assert.Equal(t, model.Credits(5000), svc.tournamentDraft.PrizePool)

		body = `{"title":"Whale Cup","entry_fee":"92233720368547758.08"}`
		rec = env.do(t, http.MethodPost, "/api/admin/tournaments", body, env.sessionCookie(t, "u-1"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("broadcast", func(t *testing.T) {
		env := newTestEnv(t, loggedInService(model.RoleAdmin))
		cookie := env.sessionCookie(t, "u-1")

		rec := env.do(t, http.MethodPost, "/api/admin/broadcast", `{"type":"ban","message":"cheater removed"}`, cookie)
		require.Equal(t, http.StatusAccepted, rec.Code)
		require.Len(t, env.feed.broadcasts, 1)
		assert.Equal(t, model.GlobalEventBan, env.feed.broadcasts[0].Type)

		rec = env.do(t, http.MethodPost, "/api/admin/broadcast", `{"type":"PARTY","message":"x"}`, cookie)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = env.do(t, http.MethodPost, "/api/admin/broadcast", `{"type":"SYSTEM","message":"  "}`, cookie)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestJoinTournament_Errors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: nil, want: http.StatusOK},
		{err: service.ErrTournamentNotFound, want: http.StatusNotFound},
		{err: service.ErrTournamentClosed, want: http.StatusConflict},
		{err: service.ErrInsufficientFunds, want: http.StatusPaymentRequired},
	}

	for _, tt := range tests {
		svc := loggedInService(model.RoleUser)
		svc.joinErr = tt.err
		env := newTestEnv(t, svc)

		rec := env.do(t, http.MethodPost, "/api/tournaments/t1/join", "", env.sessionCookie(t, "u-1"))
		assert.Equal(t, tt.want, rec.Code, "%v", tt.err)
	}
}

func TestPublicRoutes(t *testing.T) {
	svc := &stubService{tournamentsResp: []model.Tournament{{ID: "t1", EntryFee: model.Credits(100)}}}
	env := newTestEnv(t, svc)

	rec := env.do(t, http.MethodGet, "/api/tournaments", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var ts []tournamentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ts))
	require.Len(t, ts, 1)
	assert.Equal(t, "100", ts[0].EntryFee.String())

	rec = env.do(t, http.MethodGet, "/api/session/view", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/session/notifications/known", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/session/notifications/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNexus_StreamsBusEvents(t *testing.T) {
	env := newTestEnv(t, &stubService{})

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/nexus/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return env.bus.Subscribers(model.TopicLedger) == 1 && env.bus.Subscribers(model.TopicAmbient) == 1
	}, time.Second, 10*time.Millisecond)

	env.bus.Publish(model.Event{
		Topic:   model.TopicLedger,
		Type:    model.EventTransactionCreated,
		Payload: model.Transaction{ID: "tx-1", Amount: model.Credits(-300)},
	})
	env.bus.Publish(model.Event{
		Topic:   model.TopicAmbient,
		Type:    model.EventGlobalBroadcast,
		Payload: model.GlobalEvent{ID: "g-1", Type: model.GlobalEventWin, Message: "gg"},
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first struct {
		Topic   model.Topic         `json:"topic"`
		Type    model.EventType     `json:"type"`
		Payload transactionResponse `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, model.TopicLedger, first.Topic)
	assert.Equal(t, model.EventTransactionCreated, first.Type)
	assert.Equal(t, "-300", first.Payload.Amount.String())

	var second struct {
		Topic   model.Topic       `json:"topic"`
		Payload model.GlobalEvent `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, model.TopicAmbient, second.Topic)
	assert.Equal(t, "g-1", second.Payload.ID)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool {
		return env.bus.Subscribers(model.TopicLedger) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusTeapot, map[string]string{"k": "v"})

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"k":"v"}`, rec.Body.String())
}
