package folio

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// SecondsPerYear is the year length used to convert rates to and from yearly percentages.
const SecondsPerYear = 365 * 24 * 60 * 60

// feeScale is the fee formula divisor: rates are percent per second, scaled by 1e18.
var feeScale = W(100)

// FeeOwed returns the fee accrued by 'principal' over 'elapsed' seconds at 'rate':
//
//	principal * rate * elapsed / (100 * 1e18)
//
// floored to the unit.
func FeeOwed(principal, rate Amount, elapsed uint64) Amount {
	if elapsed == 0 || principal.IsZero() || rate.IsZero() {
		return Amount{}
	}
	return principal.MulDiv(Amount{value: rate.value.Mul(decimal.NewFromUint64(elapsed))}, feeScale)
}

// RateFromAnnualPercent converts a yearly percentage (6 for 6%) into a per second rate.
func RateFromAnnualPercent(percent decimal.Decimal) Amount {
	return Amount{value: percent.Shift(Decimals).Div(decimal.NewFromInt(SecondsPerYear)).Truncate(0)}
}

// AnnualPercent converts a per second rate into a yearly percentage.
func AnnualPercent(rate Amount) decimal.Decimal {
	return rate.Decimal().Mul(decimal.NewFromInt(SecondsPerYear))
}

type feeAccount struct {
	principal Amount // base currency backing the depositor's shares
	last      uint64 // accrual clock, unix seconds
	owed      Amount // settled, not yet withheld
}

// FeeEngine accrues a management fee on each depositor's principal, linearly in time.
//
// Fees are computed lazily: every change of principal first settles what was
// accrued on the previous principal, so time at the old principal is never
// charged at the new one.
type FeeEngine struct {
	rate         Amount
	accounts     map[common.Address]*feeAccount
	totalAccrued Amount // settled fees, claimable by the operator
	reserve      Amount // base currency actually withheld and not claimed yet
}

// NewFeeEngine returns an engine charging 'rate' (percent per second, 1e18 scaled).
func NewFeeEngine(rate Amount) *FeeEngine {
	return &FeeEngine{
		rate:     rate,
		accounts: make(map[common.Address]*feeAccount),
	}
}

func (e *FeeEngine) Rate() Amount         { return e.rate }
func (e *FeeEngine) TotalAccrued() Amount { return e.totalAccrued }
func (e *FeeEngine) Reserve() Amount      { return e.reserve }

func (e *FeeEngine) account(depositor common.Address) *feeAccount {
	acc, ok := e.accounts[depositor]
	if !ok {
		acc = new(feeAccount)
		e.accounts[depositor] = acc
	}
	return acc
}

// Settle crystallizes the fee accrued by the depositor up to 'now' and restarts its clock.
// Settling twice at the same time yields zero the second time, and the clock never goes back.
func (e *FeeEngine) Settle(depositor common.Address, now uint64) Amount {
	acc := e.account(depositor)
	if now <= acc.last {
		return Amount{}
	}
	fee := FeeOwed(acc.principal, e.rate, now-acc.last)
	acc.owed = acc.owed.Add(fee)
	acc.last = now
	e.totalAccrued = e.totalAccrued.Add(fee)
	return fee
}

// OnDeposit settles the depositor up to 'now' and adds 'added' to its principal.
//
// A fresh depositor (no shares) has no principal, settling only restarts its
// stale clock. In both cases the new principal starts accruing at 'now'.
func (e *FeeEngine) OnDeposit(depositor common.Address, added Amount, now uint64) Amount {
	fee := e.Settle(depositor, now)
	acc := e.account(depositor)
	acc.principal = acc.principal.Add(added)
	return fee
}

// OnWithdraw settles the depositor up to 'now', withholds the fee it owes from
// 'gross' proceeds and reduces its principal by 'reduced' (floored at zero).
//
// It returns the fee withheld. A fee larger than the proceeds stays owed.
func (e *FeeEngine) OnWithdraw(depositor common.Address, reduced, gross Amount, now uint64) Amount {
	e.Settle(depositor, now)
	acc := e.account(depositor)
	fee := acc.owed.Min(gross)
	acc.owed = acc.owed.Sub(fee)
	acc.principal = acc.principal.SubFloor(reduced)
	e.reserve = e.reserve.Add(fee)
	return fee
}

// FeeAccrued returns what the depositor owes at 'now', settled or not, without mutating anything.
func (e *FeeEngine) FeeAccrued(depositor common.Address, now uint64) Amount {
	acc, ok := e.accounts[depositor]
	if !ok {
		return Amount{}
	}
	if now <= acc.last {
		return acc.owed
	}
	return acc.owed.Add(FeeOwed(acc.principal, e.rate, now-acc.last))
}

// Principal returns the depositor's principal basis.
func (e *FeeEngine) Principal(depositor common.Address) Amount {
	if acc, ok := e.accounts[depositor]; ok {
		return acc.principal
	}
	return Amount{}
}

// LastAccrual returns the depositor's accrual clock in unix seconds.
func (e *FeeEngine) LastAccrual(depositor common.Address) uint64 {
	if acc, ok := e.accounts[depositor]; ok {
		return acc.last
	}
	return 0
}

// Claim releases 'amount' of the withheld fees to the operator.
func (e *FeeEngine) Claim(amount Amount) error {
	if amount.GreaterThan(e.reserve) {
		return fmt.Errorf("cannot claim %v, fee reserve is only %v: %w", amount, e.reserve, ErrInvalidAmount)
	}
	e.reserve = e.reserve.Sub(amount)
	e.totalAccrued = e.totalAccrued.SubFloor(amount)
	return nil
}
