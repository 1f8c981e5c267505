// Package repository содержит реализации общего хранилища состояния сессии.
//
// Хранилище работает по принципу «ключ / JSON-документ» и не даёт гарантий
// атомарности при изменении нескольких ключей.
package repository

import "errors"

// Ключи общего состояния сессии.
const (
	KeyUser         = "nexoria_user"
	KeyTransactions = "nexoria_transactions"
	KeyTournaments  = "nexoria_tournaments"
	KeyAccounts     = "nexoria_accounts"
)

// ErrKeyNotFound возвращается при чтении отсутствующего ключа.
var ErrKeyNotFound = errors.New("key not found")
