package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// ErrAmountOutOfRange возвращается, если сумма не помещается в int64 минорных единиц.
var ErrAmountOutOfRange = errors.New("amount out of range")

var (
	minMinor = decimal.NewFromInt(math.MinInt64)
	maxMinor = decimal.NewFromInt(math.MaxInt64)
)

func fraction() int32 {
	cur := money.GetCurrency(Currency)
	if cur == nil {
		return 2
	}
	return int32(cur.Fraction)
}

// MinorFromDecimal переводит сумму в основных единицах (рупиях) в минорные единицы.
// Дробная часть сверх точности валюты округляется.
func MinorFromDecimal(amount decimal.Decimal) (int64, error) {
	minor := amount.Shift(fraction()).Round(0)
	if minor.LessThan(minMinor) || minor.GreaterThan(maxMinor) {
		return 0, fmt.Errorf("%w: %s", ErrAmountOutOfRange, amount.String())
	}
	return minor.IntPart(), nil
}

// DecimalFromMinor переводит сумму в минорных единицах в основные.
func DecimalFromMinor(amount int64) decimal.Decimal {
	return decimal.New(amount, -fraction())
}

// Credits возвращает сумму в минорных единицах для целого числа кредитов.
// Паникует, если сумма не помещается в int64.
func Credits(n int64) int64 {
	minor, err := MinorFromDecimal(decimal.NewFromInt(n))
	if err != nil {
		panic(err)
	}
	return minor
}

// DisplayAmount форматирует сумму для показа пользователю, например "₹1,000.00".
func DisplayAmount(amount int64) string {
	return money.New(amount, Currency).Display()
}
