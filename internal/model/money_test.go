package model

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinorFromDecimal(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		want    int64
		wantErr error
	}{
		{name: "whole credits", amount: "1000", want: 100000},
		{name: "with paise", amount: "10.55", want: 1055},
		{name: "negative", amount: "-300", want: -30000},
		{name: "rounds extra precision", amount: "0.015", want: 2},
		{name: "max int64", amount: "92233720368547758.07", want: math.MaxInt64},
		{name: "min int64", amount: "-92233720368547758.08", want: math.MinInt64},
		{name: "just above max", amount: "92233720368547758.08", wantErr: ErrAmountOutOfRange},
		{name: "wraps to small deposit", amount: "184467440737095566.16", wantErr: ErrAmountOutOfRange},
		{name: "just below min", amount: "-92233720368547758.09", wantErr: ErrAmountOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MinorFromDecimal(decimal.RequireFromString(tt.amount))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecimalFromMinor(t *testing.T) {
	assert.Equal(t, "10.55", DecimalFromMinor(1055).StringFixed(2))
	assert.Equal(t, "-300.00", DecimalFromMinor(-30000).StringFixed(2))
}

func TestCredits(t *testing.T) {
	assert.Equal(t, int64(100000), Credits(1000))
	assert.Panics(t, func() { Credits(math.MaxInt64) })
}

func TestStatusAndTypeHelpers(t *testing.T) {
	assert.True(t, TransactionCompleted.IsTerminal())
	assert.True(t, TransactionRejected.IsTerminal())
	assert.False(t, TransactionPending.IsTerminal())

	assert.True(t, TransactionWithdrawal.IsDebit())
	assert.True(t, TransactionEntryFee.IsDebit())
	assert.False(t, TransactionDeposit.IsDebit())
	assert.False(t, TransactionPrize.IsDebit())
}

func TestTournamentIsOpen(t *testing.T) {
	assert.True(t, Tournament{Status: TournamentUpcoming, Participants: 1, MaxParticipants: 2}.IsOpen())
	assert.False(t, Tournament{Status: TournamentUpcoming, Participants: 2, MaxParticipants: 2}.IsOpen())
	assert.False(t, Tournament{Status: TournamentCompleted, Participants: 0, MaxParticipants: 2}.IsOpen())
}
