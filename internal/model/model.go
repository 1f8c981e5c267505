// Package model содержит доменные сущности кошелька Nexoria.
package model

import "time"

// Currency задаёт валюту всех денежных сумм. Суммы хранятся в минорных единицах (пайсах).
const Currency = "INR"

// Role описывает роль пользователя.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User представляет пользователя текущей сессии.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	// Balance хранится в минорных единицах.
	Balance int64  `json:"balance"`
	BGMIID  string `json:"bgmi_id,omitempty"`
	// Version увеличивается при каждой записи баланса.
	Version int64 `json:"version"`
}

// IsAdmin сообщает, обладает ли пользователь правами администратора.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// TransactionType описывает вид финансовой операции.
type TransactionType string

const (
	TransactionDeposit    TransactionType = "DEPOSIT"
	TransactionWithdrawal TransactionType = "WITHDRAWAL"
	TransactionPrize      TransactionType = "PRIZE"
	TransactionEntryFee   TransactionType = "ENTRY_FEE"
)

// IsDebit сообщает, списывает ли операция средства со счёта.
func (t TransactionType) IsDebit() bool {
	return t == TransactionWithdrawal || t == TransactionEntryFee
}

// TransactionStatus описывает статус финансовой операции.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "PENDING"
	TransactionCompleted TransactionStatus = "COMPLETED"
	TransactionRejected  TransactionStatus = "REJECTED"
)

// IsTerminal сообщает, что статус больше не может измениться.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionCompleted || s == TransactionRejected
}

// Transaction описывает операцию по счёту пользователя.
type Transaction struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	// Amount хранит знаковую сумму в минорных единицах, отрицательную для списаний.
	Amount        int64             `json:"amount"`
	Type          TransactionType   `json:"type"`
	Status        TransactionStatus `json:"status"`
	Timestamp     time.Time         `json:"timestamp"`
	PaymentMethod string            `json:"payment_method,omitempty"`
}

// TournamentType описывает формат турнира.
type TournamentType string

const (
	TournamentSolo  TournamentType = "SOLO"
	TournamentDuo   TournamentType = "DUO"
	TournamentSquad TournamentType = "SQUAD"
)

// TournamentStatus описывает стадию турнира.
type TournamentStatus string

const (
	TournamentUpcoming  TournamentStatus = "UPCOMING"
	TournamentLive      TournamentStatus = "LIVE"
	TournamentCompleted TournamentStatus = "COMPLETED"
)

// Tournament описывает турнир из каталога.
type Tournament struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Game            string           `json:"game"`
	Type            TournamentType   `json:"type"`
	PrizePool       int64            `json:"prize_pool"`
	EntryFee        int64            `json:"entry_fee"`
	StartTime       time.Time        `json:"start_time"`
	Status          TournamentStatus `json:"status"`
	Participants    int              `json:"participants"`
	MaxParticipants int              `json:"max_participants"`
	Description     string           `json:"description"`
}

// IsOpen сообщает, можно ли ещё записаться на турнир.
func (t Tournament) IsOpen() bool {
	return t.Status != TournamentCompleted && t.Participants < t.MaxParticipants
}

// GlobalEventType описывает категорию фонового уведомления.
type GlobalEventType string

const (
	GlobalEventWin    GlobalEventType = "WIN"
	GlobalEventJoin   GlobalEventType = "JOIN"
	GlobalEventBan    GlobalEventType = "BAN"
	GlobalEventSystem GlobalEventType = "SYSTEM"
)

// GlobalEvent описывает эфемерное уведомление живой ленты. Никогда не сохраняется.
type GlobalEvent struct {
	ID        string          `json:"id"`
	Type      GlobalEventType `json:"type"`
	Message   string          `json:"message"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   any             `json:"payload,omitempty"`
}
