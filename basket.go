package folio

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Asset is a basket constituent: a token and its target weight.
type Asset struct {
	Token  common.Address `json:"token"`
	Weight Amount         `json:"weight"`
}

// Basket is the immutable list of assets a vault holds per unit of base currency.
//
// Weights do not need to sum to one: their sum is the denominator used to
// split a deposit between assets.
type Basket struct {
	assets []Asset
	total  Amount
}

// NewBasket validates tokens and weights and returns the corresponding basket.
// All problems are reported at once.
func NewBasket(tokens []common.Address, weights []Amount) (Basket, error) {
	var errs error
	if len(tokens) == 0 {
		errs = errors.Join(errs, errors.New("basket has no asset"))
	}
	if len(tokens) != len(weights) {
		errs = errors.Join(errs, fmt.Errorf("basket has %d assets but %d weights", len(tokens), len(weights)))
	}
	seen := make(map[common.Address]bool, len(tokens))
	var b Basket
	for i, token := range tokens {
		if token == (common.Address{}) {
			errs = errors.Join(errs, fmt.Errorf("asset #%d has a zero address", i))
		}
		if seen[token] {
			errs = errors.Join(errs, fmt.Errorf("asset %s is listed twice", token.Hex()))
		}
		seen[token] = true
		if i >= len(weights) {
			continue
		}
		if !weights[i].IsPositive() {
			errs = errors.Join(errs, fmt.Errorf("asset %s weight must be positive, got %v", token.Hex(), weights[i]))
		}
		b.assets = append(b.assets, Asset{Token: token, Weight: weights[i]})
		b.total = b.total.Add(weights[i])
	}
	if errs != nil {
		return Basket{}, fmt.Errorf("%w: %w", ErrInvalidBasket, errs)
	}
	return b, nil
}

// Len returns the number of assets in the basket.
func (b Basket) Len() int { return len(b.assets) }

// IsZero reports whether the basket is the zero value (not configured).
func (b Basket) IsZero() bool { return len(b.assets) == 0 }

// Asset returns the i-th asset.
func (b Basket) Asset(i int) Asset { return b.assets[i] }

// Assets returns a copy of the basket assets, in configuration order.
func (b Basket) Assets() []Asset { return append([]Asset(nil), b.assets...) }

// TotalWeight returns the allocation denominator.
func (b Basket) TotalWeight() Amount { return b.total }

// Tokens returns the asset tokens in configuration order.
func (b Basket) Tokens() []common.Address {
	tokens := make([]common.Address, len(b.assets))
	for i, a := range b.assets {
		tokens[i] = a.Token
	}
	return tokens
}

// Weights returns the asset weights in configuration order.
func (b Basket) Weights() []Amount {
	weights := make([]Amount, len(b.assets))
	for i, a := range b.assets {
		weights[i] = a.Weight
	}
	return weights
}

// Allocate splits 'amount' between the basket assets by weight.
// Each share is floored, what is left by rounding is returned as dust.
func (b Basket) Allocate(amount Amount) (legs []Amount, dust Amount) {
	legs = make([]Amount, len(b.assets))
	dust = amount
	for i, a := range b.assets {
		legs[i] = amount.MulDiv(a.Weight, b.total)
		dust = dust.Sub(legs[i])
	}
	return legs, dust
}

// Equal reports whether both baskets list the same assets with the same weights in the same order.
func (b Basket) Equal(o Basket) bool {
	if len(b.assets) != len(o.assets) {
		return false
	}
	for i := range b.assets {
		if b.assets[i].Token != o.assets[i].Token || !b.assets[i].Weight.Equal(o.assets[i].Weight) {
			return false
		}
	}
	return true
}

// MarshalJSON writes the basket as the list of its assets.
func (b Basket) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.assets)
}
