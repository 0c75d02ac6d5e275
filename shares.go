package folio

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ShareLedger tracks depositors' share balances and the base currency value
// they represent.
//
// The base value is tracked from recorded deposits and withdrawals only, it is
// never marked to market. The zero value is an empty ledger ready to use.
type ShareLedger struct {
	shares    map[common.Address]Amount
	total     Amount
	baseValue Amount
}

// Shares returns the share balance of a depositor. Unknown depositors have none.
func (l *ShareLedger) Shares(depositor common.Address) Amount { return l.shares[depositor] }

// Known reports whether the depositor ever received shares.
func (l *ShareLedger) Known(depositor common.Address) bool {
	_, ok := l.shares[depositor]
	return ok
}

// TotalShares returns the number of shares outstanding.
func (l *ShareLedger) TotalShares() Amount { return l.total }

// BaseValue returns the base currency value represented by all outstanding shares.
func (l *ShareLedger) BaseValue() Amount { return l.baseValue }

// PreviewMint returns the shares a deposit of 'amount' would issue, without minting them.
//
// The first deposit (or any deposit into an empty ledger) mints one share per
// unit of base currency.
func (l *ShareLedger) PreviewMint(amount Amount) (Amount, error) {
	if !amount.IsPositive() {
		return Amount{}, fmt.Errorf("cannot mint shares for %v: %w", amount, ErrInvalidAmount)
	}
	if l.total.IsZero() || l.baseValue.IsZero() {
		return amount, nil
	}
	shares := amount.MulDiv(l.total, l.baseValue)
	if shares.IsZero() {
		return Amount{}, fmt.Errorf("deposit of %v is worth less than one share unit: %w", amount, ErrInvalidAmount)
	}
	return shares, nil
}

// Mint issues shares to the depositor for a deposit worth 'amount'.
func (l *ShareLedger) Mint(depositor common.Address, amount Amount) (Amount, error) {
	shares, err := l.PreviewMint(amount)
	if err != nil {
		return Amount{}, err
	}
	l.credit(depositor, shares, amount)
	return shares, nil
}

// PreviewBurn returns the base value owed for burning 'shares' of the depositor, without burning them.
//
// Burning every outstanding share returns the whole base value, so rounding
// never leaves value behind an empty ledger.
func (l *ShareLedger) PreviewBurn(depositor common.Address, shares Amount) (Amount, error) {
	if !shares.IsPositive() {
		return Amount{}, fmt.Errorf("cannot burn %v shares: %w", shares, ErrInvalidAmount)
	}
	balance := l.shares[depositor]
	if balance.LessThan(shares) {
		return Amount{}, fmt.Errorf("cannot burn %v shares of %s, balance is only %v: %w", shares, depositor.Hex(), balance, ErrInsufficientShares)
	}
	if shares.Equal(l.total) {
		return l.baseValue, nil
	}
	return shares.MulDiv(l.baseValue, l.total), nil
}

// Burn destroys the depositor's shares and returns the base value they represented.
func (l *ShareLedger) Burn(depositor common.Address, shares Amount) (Amount, error) {
	owed, err := l.PreviewBurn(depositor, shares)
	if err != nil {
		return Amount{}, err
	}
	l.debit(depositor, shares, owed)
	return owed, nil
}

func (l *ShareLedger) credit(depositor common.Address, shares, value Amount) {
	if l.shares == nil {
		l.shares = make(map[common.Address]Amount)
	}
	l.shares[depositor] = l.shares[depositor].Add(shares)
	l.total = l.total.Add(shares)
	l.baseValue = l.baseValue.Add(value)
}

// debit keeps the depositor entry even when its balance drops to zero.
func (l *ShareLedger) debit(depositor common.Address, shares, value Amount) {
	l.shares[depositor] = l.shares[depositor].Sub(shares)
	l.total = l.total.Sub(shares)
	l.baseValue = l.baseValue.SubFloor(value)
}
