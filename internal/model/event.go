package model

import "time"

// Topic разделяет события шины на авторитетные и косметические.
type Topic string

const (
	// TopicLedger несёт события синхронизации состояния кошелька.
	TopicLedger Topic = "ledger"
	// TopicAmbient несёт фоновые уведомления живой ленты.
	TopicAmbient Topic = "ambient"
)

// EventType описывает тип события шины.
type EventType string

const (
	EventUserLogin          EventType = "USER_LOGIN"
	EventUserLogout         EventType = "USER_LOGOUT"
	EventTransactionCreated EventType = "TRANSACTION_CREATED"
	EventTransactionUpdated EventType = "TRANSACTION_UPDATED"
	EventTournamentJoin     EventType = "TOURNAMENT_JOIN"
	EventTournamentCreated  EventType = "TOURNAMENT_CREATED"
	EventGlobalBroadcast    EventType = "GLOBAL_BROADCAST"
)

// Event описывает конверт, который шина доставляет подписчикам.
type Event struct {
	Topic      Topic     `json:"topic"`
	Type       EventType `json:"type"`
	Payload    any       `json:"payload,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// TournamentJoin содержит полезную нагрузку события TOURNAMENT_JOIN.
type TournamentJoin struct {
	Tournament  Tournament  `json:"tournament"`
	Transaction Transaction `json:"transaction"`
}
