package folio

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Module is the vault business logic: the basket, the share ledger, the fee
// engine and the assets held on behalf of depositors.
//
// Deposits and withdrawals are all or nothing: every check runs before the
// first swap, a failing swap leg reverts the router to its checkpoint, and the
// vault state only changes once every leg succeeded. Calls are serialized.
type Module struct {
	mu      sync.Mutex
	address common.Address
	clock   Clock
	router  Router

	initialized bool
	instance    common.Address // instance bound to this module, if any
	basket      Basket
	factory     common.Address
	base        common.Address // pinned by the first deposit
	ledger      ShareLedger
	fees        *FeeEngine
	holdings    []Amount // per basket asset, in basket order
	idle        Amount   // unallocated base currency
	journal     Journal
}

// NewModule returns an uninitialized module living at 'address'.
// A nil clock means the system clock.
func NewModule(address common.Address, clock Clock) *Module {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Module{address: address, clock: clock}
}

// Replay rebuilds a module from its journal. The router is only used by later
// operations: recorded swap legs are applied as they are.
func Replay(address common.Address, router Router, clock Clock, events []Event) (*Module, error) {
	m := NewModule(address, clock)
	m.router = router
	for i, ev := range events {
		if err := m.apply(ev); err != nil {
			return nil, fmt.Errorf("replay event #%d (%s %s): %w", i, ev.What(), ev.Ref(), err)
		}
		m.journal.Append(ev)
	}
	return m, nil
}

// Address returns the module address.
func (m *Module) Address() common.Address { return m.address }

// Initialize configures the basket, the factory, the router and the fee rate
// (percent per second, 1e18 scaled). It can only be called once.
func (m *Module) Initialize(tokens []common.Address, weights []Amount, factory common.Address, router Router, feeRate Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return fmt.Errorf("module %s: %w", m.address.Hex(), ErrAlreadyInitialized)
	}
	if router == nil {
		return fmt.Errorf("module %s: router is missing", m.address.Hex())
	}
	if feeRate.IsNegative() {
		return fmt.Errorf("module %s: fee rate %v: %w", m.address.Hex(), feeRate, ErrInvalidAmount)
	}
	basket, err := NewBasket(tokens, weights)
	if err != nil {
		return fmt.Errorf("module %s: %w", m.address.Hex(), err)
	}
	ev := Initialized{
		baseEvent: newBaseEvent(EvtInitialize, timestamp(m.clock)),
		Assets:    basket.Assets(),
		Factory:   factory,
		FeeRate:   feeRate,
	}
	m.router = router
	return m.commit(ev)
}

// Deposit takes 'amount' of base currency from the depositor, buys the basket
// along 'buyPaths' (one path per asset, in basket order, from the base asset to
// the asset) and issues shares. It returns the committed deposit.
func (m *Module) Deposit(ctx context.Context, depositor, baseAsset common.Address, buyPaths [][]common.Address, amount Amount, opts ...SwapOption) (Deposited, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fail := func(err error) (Deposited, error) {
		return Deposited{}, fmt.Errorf("deposit of %v by %s: %w", amount, depositor.Hex(), err)
	}
	if err := m.ready(); err != nil {
		return fail(err)
	}
	if depositor == (common.Address{}) {
		return fail(fmt.Errorf("depositor is the zero address: %w", ErrNotAuthorized))
	}
	shares, err := m.ledger.PreviewMint(amount)
	if err != nil {
		return fail(err)
	}
	if err := m.checkPaths(baseAsset, buyPaths, false); err != nil {
		return fail(err)
	}
	now := m.clock.Now()
	o, err := newSwapOptions(now, m.basket.Len(), opts)
	if err != nil {
		return fail(err)
	}
	allocation, dust := m.basket.Allocate(amount)

	legs, err := m.swapAll(ctx, buyPaths, allocation, o)
	if err != nil {
		return fail(err)
	}
	ev := Deposited{
		baseEvent: newBaseEvent(EvtDeposit, timestamp(m.clock)),
		Depositor: depositor,
		BaseAsset: baseAsset,
		Amount:    amount,
		Shares:    shares,
		Legs:      legs,
		Dust:      dust,
	}
	if err := m.commit(ev); err != nil {
		return fail(err)
	}
	return ev, nil
}

// Withdraw burns 'shares' of the depositor, sells its part of every asset
// along 'sellPaths' (one path per asset, in basket order, from the asset to the
// base asset) and pays out the proceeds minus the fee owed. It returns the
// committed withdrawal, whose Net field is the amount paid out.
func (m *Module) Withdraw(ctx context.Context, depositor, baseAsset common.Address, sellPaths [][]common.Address, shares Amount, opts ...SwapOption) (Withdrawn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fail := func(err error) (Withdrawn, error) {
		return Withdrawn{}, fmt.Errorf("withdrawal of %v shares by %s: %w", shares, depositor.Hex(), err)
	}
	if err := m.ready(); err != nil {
		return fail(err)
	}
	value, err := m.ledger.PreviewBurn(depositor, shares)
	if err != nil {
		return fail(err)
	}
	if err := m.checkPaths(baseAsset, sellPaths, true); err != nil {
		return fail(err)
	}
	now := m.clock.Now()
	o, err := newSwapOptions(now, m.basket.Len(), opts)
	if err != nil {
		return fail(err)
	}
	total := m.ledger.TotalShares()
	claims := make([]Amount, len(m.holdings))
	for i, h := range m.holdings {
		claims[i] = h.MulDiv(shares, total)
	}
	idle := m.idle.MulDiv(shares, total)

	legs, err := m.swapAll(ctx, sellPaths, claims, o)
	if err != nil {
		return fail(err)
	}
	gross := idle
	for _, leg := range legs {
		gross = gross.Add(leg.AmountOut)
	}
	at := timestamp(m.clock)
	fee := m.fees.FeeAccrued(depositor, at).Min(gross)
	ev := Withdrawn{
		baseEvent: newBaseEvent(EvtWithdraw, at),
		Depositor: depositor,
		BaseAsset: baseAsset,
		Shares:    shares,
		BaseValue: value,
		Legs:      legs,
		Idle:      idle,
		Gross:     gross,
		Fee:       fee,
		Net:       gross.Sub(fee),
	}
	if err := m.commit(ev); err != nil {
		return fail(err)
	}
	return ev, nil
}

// claimFees releases every withheld fee to 'to'. Instances restrict it to their manager.
func (m *Module) claimFees(to common.Address) (FeesClaimed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ready(); err != nil {
		return FeesClaimed{}, err
	}
	amount := m.fees.Reserve()
	if amount.IsZero() {
		return FeesClaimed{}, fmt.Errorf("no fee to claim: %w", ErrInvalidAmount)
	}
	ev := FeesClaimed{
		baseEvent: newBaseEvent(EvtClaim, timestamp(m.clock)),
		To:        to,
		Amount:    amount,
	}
	if err := m.commit(ev); err != nil {
		return FeesClaimed{}, err
	}
	return ev, nil
}

// bind attaches the module to a single vault instance.
func (m *Module) bind(instance common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(); err != nil {
		return err
	}
	if m.instance != (common.Address{}) && m.instance != instance {
		return fmt.Errorf("module %s already serves instance %s: %w", m.address.Hex(), m.instance.Hex(), ErrAlreadyInitialized)
	}
	m.instance = instance
	return nil
}

func (m *Module) ready() error {
	if !m.initialized {
		return fmt.Errorf("module %s: %w", m.address.Hex(), ErrNotInitialized)
	}
	return nil
}

// checkPaths verifies there is one path per asset, each linking the base asset and the asset.
func (m *Module) checkPaths(baseAsset common.Address, paths [][]common.Address, selling bool) error {
	if baseAsset == (common.Address{}) {
		return fmt.Errorf("base asset is the zero address: %w", ErrPathMismatch)
	}
	if m.base != (common.Address{}) && baseAsset != m.base {
		return fmt.Errorf("base asset %s differs from the vault base asset %s: %w", baseAsset.Hex(), m.base.Hex(), ErrPathMismatch)
	}
	if len(paths) != m.basket.Len() {
		return fmt.Errorf("got %d paths for %d assets: %w", len(paths), m.basket.Len(), ErrPathMismatch)
	}
	var errs error
	for i, asset := range m.basket.assets {
		from, to := baseAsset, asset.Token
		if selling {
			from, to = to, from
		}
		if err := checkPath(paths[i], from, to); err != nil {
			errs = errors.Join(errs, fmt.Errorf("asset #%d: %w", i, err))
		}
	}
	return errs
}

// swapAll swaps amounts[i] along paths[i] for every non-zero amount. If any leg
// fails, the router is reverted to its state before the first leg.
func (m *Module) swapAll(ctx context.Context, paths [][]common.Address, amounts []Amount, o swapOptions) (legs []Leg, err error) {
	adapter := NewSwapAdapter(m.router, m.clock)
	ctx, revert := adapter.checkpoint(ctx)
	defer func() {
		if err != nil {
			revert()
		}
	}()

	legs = make([]Leg, len(amounts))
	for i, in := range amounts {
		if in.IsZero() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		minOut, err := o.minimum(ctx, adapter, i, paths[i], in)
		if err != nil {
			return nil, fmt.Errorf("leg #%d: %w", i, err)
		}
		out, err := adapter.SwapExactIn(ctx, paths[i], in, minOut, o.deadline)
		if err != nil {
			return nil, fmt.Errorf("leg #%d: %w", i, err)
		}
		legs[i] = Leg{Path: slices.Clone(paths[i]), AmountIn: in, AmountOut: out}
	}
	return legs, nil
}

// commit applies the event, appends it to the journal and logs it.
func (m *Module) commit(ev Event) error {
	if err := m.apply(ev); err != nil {
		return err
	}
	m.journal.Append(ev)
	log.Printf("%s: %s %v", m.address.Hex(), ev.What(), ev)
	return nil
}

// apply changes the module state according to the event. Every check is made
// before the first change, so a rejected event leaves the module untouched.
func (m *Module) apply(ev Event) error {
	if _, ok := ev.(Initialized); !ok {
		if err := m.ready(); err != nil {
			return err
		}
	}
	switch e := ev.(type) {
	case Initialized:
		return m.applyInitialized(e)
	case Deposited:
		return m.applyDeposited(e)
	case Withdrawn:
		return m.applyWithdrawn(e)
	case FeesClaimed:
		return m.fees.Claim(e.Amount)
	default:
		return fmt.Errorf("unknown event %T", ev)
	}
}

func (m *Module) applyInitialized(e Initialized) error {
	if m.initialized {
		return fmt.Errorf("module %s: %w", m.address.Hex(), ErrAlreadyInitialized)
	}
	tokens := make([]common.Address, len(e.Assets))
	weights := make([]Amount, len(e.Assets))
	for i, a := range e.Assets {
		tokens[i], weights[i] = a.Token, a.Weight
	}
	basket, err := NewBasket(tokens, weights)
	if err != nil {
		return err
	}
	m.basket = basket
	m.factory = e.Factory
	m.fees = NewFeeEngine(e.FeeRate)
	m.holdings = make([]Amount, basket.Len())
	m.initialized = true
	return nil
}

func (m *Module) applyDeposited(e Deposited) error {
	if len(e.Legs) != m.basket.Len() {
		return fmt.Errorf("deposit has %d legs for %d assets: %w", len(e.Legs), m.basket.Len(), ErrPathMismatch)
	}
	if m.base != (common.Address{}) && e.BaseAsset != m.base {
		return fmt.Errorf("deposit base asset %s differs from %s: %w", e.BaseAsset.Hex(), m.base.Hex(), ErrPathMismatch)
	}
	shares, err := m.ledger.PreviewMint(e.Amount)
	if err != nil {
		return err
	}
	if !shares.Equal(e.Shares) {
		return fmt.Errorf("deposit of %v mints %v shares, journal says %v", e.Amount, shares, e.Shares)
	}

	m.base = e.BaseAsset
	m.ledger.credit(e.Depositor, shares, e.Amount)
	for i, leg := range e.Legs {
		m.holdings[i] = m.holdings[i].Add(leg.AmountOut)
	}
	m.idle = m.idle.Add(e.Dust)
	m.fees.OnDeposit(e.Depositor, e.Amount, e.Time)
	return nil
}

func (m *Module) applyWithdrawn(e Withdrawn) error {
	if len(e.Legs) != m.basket.Len() {
		return fmt.Errorf("withdrawal has %d legs for %d assets: %w", len(e.Legs), m.basket.Len(), ErrPathMismatch)
	}
	value, err := m.ledger.PreviewBurn(e.Depositor, e.Shares)
	if err != nil {
		return err
	}
	if !value.Equal(e.BaseValue) {
		return fmt.Errorf("burning %v shares is worth %v, journal says %v", e.Shares, value, e.BaseValue)
	}
	for i, leg := range e.Legs {
		if m.holdings[i].LessThan(leg.AmountIn) {
			return fmt.Errorf("asset #%d: selling %v out of %v held: %w", i, leg.AmountIn, m.holdings[i], ErrInvalidAmount)
		}
	}
	if m.idle.LessThan(e.Idle) {
		return fmt.Errorf("paying %v idle base currency out of %v: %w", e.Idle, m.idle, ErrInvalidAmount)
	}
	if fee := m.fees.FeeAccrued(e.Depositor, e.Time).Min(e.Gross); !fee.Equal(e.Fee) {
		return fmt.Errorf("withdrawal owes a %v fee, journal says %v", fee, e.Fee)
	}

	// The principal shrinks in proportion to the shares burnt.
	held := m.ledger.Shares(e.Depositor)
	principal := m.fees.Principal(e.Depositor)
	reduced := principal
	if !e.Shares.Equal(held) {
		reduced = principal.MulDiv(e.Shares, held)
	}

	m.ledger.debit(e.Depositor, e.Shares, value)
	for i, leg := range e.Legs {
		m.holdings[i] = m.holdings[i].Sub(leg.AmountIn)
	}
	m.idle = m.idle.Sub(e.Idle)
	m.fees.OnWithdraw(e.Depositor, reduced, e.Gross, e.Time)
	return nil
}
