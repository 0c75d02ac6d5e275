package folio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	USDT = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	WETH = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	WBTC = common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599")
	DAI  = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")

	Alice   = common.HexToAddress("0xee5B5B923fFcE93A870B3104b7CA09c3db80047A")
	Bob     = common.HexToAddress("0x1a706EB4F22FDc03EE4624cF195cD9dABED2C264")
	Carol   = common.HexToAddress("0x06959153B974D0D5fDfd87D561db6d8d4FA0bb0B")
	Manager = common.HexToAddress("0x00000000000000000000000000000000000000f1")

	ModuleAddress   = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	FactoryAddress  = common.HexToAddress("0x0000000000000000000000000000000000000fac")
	InstanceAddress = common.HexToAddress("0x0000000000000000000000000000000000000b01")
)

// SixPercent is the fee rate of about 6% a year.
var SixPercent = U(190258751903)

// epoch is the start time of every test clock.
var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

var errPoolDrained = errors.New("pool drained")

// fakeRouter swaps at fixed prices (in base units per token unit, one by
// default) and can be told to fail on a token. It records the swaps it made.
type fakeRouter struct {
	mu      sync.Mutex
	prices  map[common.Address]Amount
	fail    map[common.Address]error
	swaps   []Leg
	reverts int
}

func newFakeRouter() *fakeRouter {
	return &fakeRouter{
		prices: make(map[common.Address]Amount),
		fail:   make(map[common.Address]error),
	}
}

func (r *fakeRouter) price(token common.Address) Amount {
	if p, ok := r.prices[token]; ok {
		return p
	}
	return W(1)
}

func (r *fakeRouter) quote(in Amount, path []common.Address) []Amount {
	amounts := []Amount{in}
	for i := 0; i < len(path)-1; i++ {
		in = in.MulDiv(r.price(path[i]), r.price(path[i+1]))
		amounts = append(amounts, in)
	}
	return amounts
}

func (r *fakeRouter) SwapExactIn(ctx context.Context, path []common.Address, in, minOut Amount, deadline time.Time) (Amount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range path {
		if err := r.fail[token]; err != nil {
			return Amount{}, err
		}
	}
	amounts := r.quote(in, path)
	out := amounts[len(amounts)-1]
	r.swaps = append(r.swaps, Leg{Path: path, AmountIn: in, AmountOut: out})
	return out, nil
}

func (r *fakeRouter) AmountsOut(ctx context.Context, in Amount, path []common.Address) ([]Amount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.quote(in, path), nil
}

func (r *fakeRouter) Checkpoint(ctx context.Context) (context.Context, func()) {
	r.mu.Lock()
	n := len(r.swaps)
	r.mu.Unlock()
	return ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.swaps = r.swaps[:n]
		r.reverts++
	}
}

func (r *fakeRouter) Swaps() []Leg {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Leg(nil), r.swaps...)
}

// fakeApprover approves the modules it lists.
type fakeApprover map[common.Address]bool

func (a fakeApprover) IsApproved(module common.Address) bool { return a[module] }

// buyPaths returns direct paths from base to every token.
func buyPaths(base common.Address, tokens ...common.Address) [][]common.Address {
	paths := make([][]common.Address, len(tokens))
	for i, token := range tokens {
		paths[i] = []common.Address{base, token}
	}
	return paths
}

// sellPaths returns direct paths from every token to base.
func sellPaths(base common.Address, tokens ...common.Address) [][]common.Address {
	paths := make([][]common.Address, len(tokens))
	for i, token := range tokens {
		paths[i] = []common.Address{token, base}
	}
	return paths
}

// newTestModule returns a module holding WETH and WBTC half and half, charging about 6% a year.
func newTestModule(t *testing.T) (*Module, *fakeRouter, *ManualClock) {
	t.Helper()
	clock := NewManualClock(epoch)
	router := newFakeRouter()
	m := NewModule(ModuleAddress, clock)
	if err := m.Initialize([]common.Address{WETH, WBTC}, []Amount{MustParseAmount("0.5"), MustParseAmount("0.5")}, FactoryAddress, router, SixPercent); err != nil {
		t.Fatalf("Initialize() unexpected error: %v", err)
	}
	return m, router, clock
}

// deposit is a helper depositing 'amount' of USDT into the test module.
func deposit(t *testing.T, m *Module, depositor common.Address, amount string) Deposited {
	t.Helper()
	ev, err := m.Deposit(context.Background(), depositor, USDT, buyPaths(USDT, WETH, WBTC), MustParseAmount(amount))
	if err != nil {
		t.Fatalf("Deposit(%s) unexpected error: %v", amount, err)
	}
	return ev
}

// withdraw is a helper withdrawing 'shares' from the test module.
func withdraw(t *testing.T, m *Module, depositor common.Address, shares string) Withdrawn {
	t.Helper()
	ev, err := m.Withdraw(context.Background(), depositor, USDT, sellPaths(USDT, WETH, WBTC), MustParseAmount(shares))
	if err != nil {
		t.Fatalf("Withdraw(%s) unexpected error: %v", shares, err)
	}
	return ev
}
