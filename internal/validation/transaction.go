// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mmeshcher/nexoria-ledger/internal/model"
)

// MinTransferAmount задаёт минимальную сумму пополнения или вывода в минорных единицах (₹50).
const MinTransferAmount int64 = 5000

var (
	// ErrUnknownType возвращается для неизвестного вида операции.
	ErrUnknownType = errors.New("unknown transaction type")
	// ErrAmountSign возвращается, если знак суммы не соответствует виду операции.
	ErrAmountSign = errors.New("amount sign does not match transaction type")
	// ErrBelowMinimum возвращается, если сумма перевода меньше минимальной.
	ErrBelowMinimum = errors.New("amount below minimum transfer")
)

var paymentMethods = map[string]struct{}{
	"UPI":    {},
	"CARD":   {},
	"BANK":   {},
	"WALLET": {},
}

// CheckDraftAmount проверяет, что знак суммы соответствует виду операции:
// списания отрицательны, начисления положительны.
func CheckDraftAmount(t model.TransactionType, amount int64) error {
	switch t {
	case model.TransactionWithdrawal, model.TransactionEntryFee:
		if amount >= 0 {
			return fmt.Errorf("%w: %s requires a negative amount", ErrAmountSign, t)
		}
	case model.TransactionDeposit, model.TransactionPrize:
		if amount <= 0 {
			return fmt.Errorf("%w: %s requires a positive amount", ErrAmountSign, t)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	return nil
}

// CheckTransferAmount проверяет минимальную сумму пополнения или вывода.
func CheckTransferAmount(amount int64) error {
	if amount < 0 {
		amount = -amount
	}
	if amount < MinTransferAmount {
		return fmt.Errorf("%w: %s", ErrBelowMinimum, model.DisplayAmount(MinTransferAmount))
	}
	return nil
}

// IsValidPaymentMethod проверяет метку способа оплаты. Пустая метка допустима.
func IsValidPaymentMethod(method string) bool {
	if method == "" {
		return true
	}
	_, ok := paymentMethods[strings.ToUpper(method)]
	return ok
}
