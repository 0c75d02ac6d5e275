package folio

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/go-cmp/cmp"
)

func TestNewBasket_Invalid(t *testing.T) {
	testCases := []struct {
		name    string
		tokens  []common.Address
		weights []Amount
	}{
		{name: "empty"},
		{name: "length mismatch", tokens: []common.Address{WETH, WBTC}, weights: []Amount{W(1)}},
		{name: "zero address", tokens: []common.Address{{}}, weights: []Amount{W(1)}},
		{name: "duplicate", tokens: []common.Address{WETH, WETH}, weights: []Amount{W(1), W(1)}},
		{name: "zero weight", tokens: []common.Address{WETH}, weights: []Amount{{}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewBasket(tc.tokens, tc.weights)
			if !errors.Is(err, ErrInvalidBasket) {
				t.Errorf("NewBasket() error = %v, want %v", err, ErrInvalidBasket)
			}
		})
	}
}

func TestBasket_Allocate(t *testing.T) {
	testCases := []struct {
		name     string
		weights  []Amount
		amount   Amount
		wantLegs []Amount
		wantDust Amount
	}{
		{
			name:     "even split",
			weights:  []Amount{MustParseAmount("0.5"), MustParseAmount("0.5")},
			amount:   W(1),
			wantLegs: []Amount{MustParseAmount("0.5"), MustParseAmount("0.5")},
			wantDust: Amount{},
		},
		{
			name:     "weights need not sum to one",
			weights:  []Amount{W(3), W(1)},
			amount:   W(8),
			wantLegs: []Amount{W(6), W(2)},
			wantDust: Amount{},
		},
		{
			name:     "rounding leaves dust",
			weights:  []Amount{W(1), W(1), W(1)},
			amount:   U(100),
			wantLegs: []Amount{U(33), U(33), U(33)},
			wantDust: U(1),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tokens := []common.Address{WETH, WBTC, DAI}[:len(tc.weights)]
			b, err := NewBasket(tokens, tc.weights)
			if err != nil {
				t.Fatalf("NewBasket() unexpected error: %v", err)
			}
			legs, dust := b.Allocate(tc.amount)
			if diff := cmp.Diff(tc.wantLegs, legs); diff != "" {
				t.Errorf("Allocate() legs mismatch (-want +got):\n%s", diff)
			}
			if !dust.Equal(tc.wantDust) {
				t.Errorf("Allocate() dust = %s, want %s", dust.Units(), tc.wantDust.Units())
			}
		})
	}
}
