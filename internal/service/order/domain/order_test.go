package domain

import (
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderLine_ExactTotals(t *testing.T) {
	tests := []struct {
		price string
		qty   int
		want  string
	}{
		{"1299.99", 1, "1299.99"},
		{"0.10", 3, "0.30"},
		{"29.99", 7, "209.93"},
		{"0.01", 100, "1.00"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_x_%d", tt.price, tt.qty), func(t *testing.T) {
			line, err := NewOrderLine(1, "p", tt.qty, decimal.RequireFromString(tt.price))
			require.NoError(t, err)
			assert.True(t, line.LineTotal.Equal(decimal.RequireFromString(tt.want)), line.LineTotal.String())
		})
	}
}

func TestNewOrderLine_Invalid(t *testing.T) {
	_, err := NewOrderLine(0, "p", 1, decimal.NewFromInt(1))
	assert.Error(t, err)
	_, err = NewOrderLine(1, "p", 0, decimal.NewFromInt(1))
	assert.Error(t, err)
	_, err = NewOrderLine(1, "p", 1, decimal.NewFromInt(-1))
	assert.Error(t, err)
}

func TestNewOrder_TotalIsSumOfLines(t *testing.T) {
	a, _ := NewOrderLine(1, "a", 3, decimal.RequireFromString("0.10"))
	b, _ := NewOrderLine(2, "b", 1, decimal.RequireFromString("0.20"))

	o, err := NewOrder("ORD-ABCDEF12", []OrderLine{a, b})
	require.NoError(t, err)
	assert.True(t, o.TotalAmount.Equal(decimal.RequireFromString("0.50")))
	assert.Equal(t, StatusConfirmed, o.Status)

	_, err = NewOrder("", []OrderLine{a})
	assert.Error(t, err)
	_, err = NewOrder("ORD-1", nil)
	assert.Error(t, err)
}

func TestGenerateOrderNumber(t *testing.T) {
	re := regexp.MustCompile(`^ORD-[0-9A-F]{8}$`)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		n := GenerateOrderNumber()
		assert.Regexp(t, re, n)
		seen[n] = true
	}
	assert.Greater(t, len(seen), 95)
}

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewError(KindInsufficientStock, "Available: 1, Requested: 2", nil))
	assert.Equal(t, KindInsufficientStock, KindOf(err))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))

	cause := errors.New("db down")
	de := NewError(KindPersistence, "save order", cause)
	assert.ErrorIs(t, de, cause)
	assert.Contains(t, de.Error(), "PersistenceError")
}
