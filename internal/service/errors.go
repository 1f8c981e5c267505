package service

import "errors"

var (
	// ErrTransactionNotFound возвращается при смене статуса неизвестной операции.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrDuplicateTransaction возвращается, если операция с таким идентификатором уже есть в журнале.
	ErrDuplicateTransaction = errors.New("duplicate transaction")
	// ErrInsufficientFunds возвращается, если списание сделало бы баланс отрицательным.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidAmount возвращается, если сумма не соответствует виду операции.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrBalanceOverflow возвращается, если зачисление не помещается в баланс.
	ErrBalanceOverflow = errors.New("balance overflow")
	// ErrAccountNotFound возвращается, если владелец операции неизвестен.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidStatus возвращается при попытке перевести операцию в нетерминальный статус.
	ErrInvalidStatus = errors.New("invalid target status")
	// ErrNoSession возвращается, если в сессии нет пользователя.
	ErrNoSession = errors.New("no active session")
	// ErrUserMismatch возвращается, если операция принадлежит другому пользователю.
	ErrUserMismatch = errors.New("transaction belongs to another user")
	// ErrSessionActive возвращается при входе под другим адресом без выхода из сессии.
	ErrSessionActive = errors.New("another user is logged in")
	// ErrInvalidEmail возвращается для пустого адреса при входе.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrTournamentNotFound возвращается для неизвестного турнира.
	ErrTournamentNotFound = errors.New("tournament not found")
	// ErrTournamentClosed возвращается, если запись на турнир закрыта.
	ErrTournamentClosed = errors.New("tournament is closed for registration")
	// ErrInvalidTournament возвращается для некорректного описания турнира.
	ErrInvalidTournament = errors.New("invalid tournament")
)
