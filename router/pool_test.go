package router

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/etnz/folio"
	"github.com/google/go-cmp/cmp"
)

var (
	USDT = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	WETH = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	WBTC = common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599")
	DAI  = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestPools(t *testing.T) (*Pools, *folio.ManualClock) {
	t.Helper()
	clock := folio.NewManualClock(epoch)
	p := NewPools(clock)
	for _, l := range []struct {
		a, b    common.Address
		amountA string
		amountB string
	}{
		{USDT, WETH, "1000", "1000"},
		{WETH, WBTC, "1000", "1000"},
		{USDT, DAI, "1000", "1000"},
	} {
		if err := p.AddLiquidity(l.a, l.b, folio.MustParseAmount(l.amountA), folio.MustParseAmount(l.amountB)); err != nil {
			t.Fatalf("AddLiquidity() unexpected error: %v", err)
		}
	}
	return p, clock
}

func TestGetAmountOut(t *testing.T) {
	testCases := []struct {
		name       string
		in         folio.Amount
		reserveIn  folio.Amount
		reserveOut folio.Amount
		want       folio.Amount
		wantErr    bool
	}{
		{name: "fee is 0.3%", in: folio.U(1000), reserveIn: folio.U(1_000_000_000), reserveOut: folio.U(1_000_000_000), want: folio.U(996)},
		{name: "price impact", in: folio.U(100), reserveIn: folio.U(100), reserveOut: folio.U(100), want: folio.U(49)},
		{name: "empty pool", in: folio.U(100), reserveIn: folio.Amount{}, reserveOut: folio.U(100), wantErr: true},
		{name: "zero input", in: folio.Amount{}, reserveIn: folio.U(100), reserveOut: folio.U(100), wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := GetAmountOut(tc.in, tc.reserveIn, tc.reserveOut)
			if (err != nil) != tc.wantErr {
				t.Fatalf("GetAmountOut() error = %v, wantErr %v", err, tc.wantErr)
			}
			if err == nil && !got.Equal(tc.want) {
				t.Errorf("GetAmountOut() = %s, want %s", got.Units(), tc.want.Units())
			}
		})
	}
}

func TestPools_SwapExactIn(t *testing.T) {
	p, _ := newTestPools(t)
	ctx := context.Background()
	path := []common.Address{USDT, WETH, WBTC}

	quote, err := p.AmountsOut(ctx, folio.W(10), path)
	if err != nil {
		t.Fatalf("AmountsOut() unexpected error: %v", err)
	}
	if len(quote) != 3 {
		t.Fatalf("AmountsOut() returned %d amounts, want 3", len(quote))
	}
	out, err := p.SwapExactIn(ctx, path, folio.W(10), quote[2], epoch.Add(time.Minute))
	if err != nil {
		t.Fatalf("SwapExactIn() unexpected error: %v", err)
	}
	if !out.Equal(quote[2]) {
		t.Errorf("SwapExactIn() = %v, want the quote %v", out, quote[2])
	}

	pair, ok := p.Pair(WETH, USDT)
	if !ok {
		t.Fatal("Pair(WETH, USDT) not found")
	}
	in, outReserve := pair.reserves(USDT)
	if want := folio.W(1010); !in.Equal(want) {
		t.Errorf("USDT reserve = %v, want %v", in, want)
	}
	if want := folio.W(1000).Sub(quote[1]); !outReserve.Equal(want) {
		t.Errorf("WETH reserve = %v, want %v", outReserve, want)
	}
}

func TestPools_Failures(t *testing.T) {
	ctx := context.Background()
	testCases := []struct {
		name     string
		path     []common.Address
		minOut   folio.Amount
		deadline time.Time
		wantErr  error
	}{
		{name: "expired", path: []common.Address{USDT, WETH}, deadline: epoch.Add(-time.Second), wantErr: folio.ErrDeadlineExpired},
		{name: "insufficient output", path: []common.Address{USDT, WETH}, minOut: folio.W(1), deadline: epoch, wantErr: folio.ErrSlippageExceeded},
		{name: "no pair", path: []common.Address{DAI, WBTC}, deadline: epoch, wantErr: ErrNoPair},
		{name: "same token", path: []common.Address{USDT, USDT}, deadline: epoch, wantErr: ErrIdenticalTokens},
		{name: "short path", path: []common.Address{USDT}, deadline: epoch, wantErr: folio.ErrPathMismatch},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, _ := newTestPools(t)
			before := p.Pairs()
			_, err := p.SwapExactIn(ctx, tc.path, folio.MustParseAmount("0.5"), tc.minOut, tc.deadline)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("SwapExactIn() error = %v, want %v", err, tc.wantErr)
			}
			if diff := cmp.Diff(before, p.Pairs()); diff != "" {
				t.Errorf("failed swap changed the pools (-before +after):\n%s", diff)
			}
		})
	}
}

func TestPools_Checkpoint(t *testing.T) {
	p, _ := newTestPools(t)
	before := p.Pairs()

	ctx, revert := p.Checkpoint(context.Background())
	if _, err := p.SwapExactIn(ctx, []common.Address{USDT, WETH, WBTC}, folio.W(1), folio.U(1), epoch); err != nil {
		t.Fatalf("SwapExactIn() unexpected error: %v", err)
	}
	revert()

	if diff := cmp.Diff(before, p.Pairs()); diff != "" {
		t.Errorf("revert did not restore the pools (-want +got):\n%s", diff)
	}
}

func TestPools_CheckpointKeepsOtherSwaps(t *testing.T) {
	p, _ := newTestPools(t)
	ctx, revert := p.Checkpoint(context.Background())
	if _, err := p.SwapExactIn(ctx, []common.Address{USDT, WETH}, folio.W(1), folio.U(1), epoch); err != nil {
		t.Fatalf("SwapExactIn() unexpected error: %v", err)
	}
	// Not made under the checkpoint.
	out, err := p.SwapExactIn(context.Background(), []common.Address{USDT, WETH}, folio.W(2), folio.U(1), epoch)
	if err != nil {
		t.Fatalf("SwapExactIn() unexpected error: %v", err)
	}
	revert()

	pair, _ := p.Pair(USDT, WETH)
	want := Pair{
		Token0:   WETH,
		Token1:   USDT,
		Reserve0: folio.W(1000).Sub(out),
		Reserve1: folio.W(1002),
	}
	if diff := cmp.Diff(want, pair); diff != "" {
		t.Errorf("revert touched another caller's swap (-want +got):\n%s", diff)
	}
}

// hookedPools runs 'before' ahead of every swap, and fails the swap if it returns an error.
type hookedPools struct {
	*Pools
	before func(path []common.Address) error
}

func (h hookedPools) SwapExactIn(ctx context.Context, path []common.Address, in, minOut folio.Amount, deadline time.Time) (folio.Amount, error) {
	if err := h.before(path); err != nil {
		return folio.Amount{}, err
	}
	return h.Pools.SwapExactIn(ctx, path, in, minOut, deadline)
}

func TestPools_SharedByTwoVaults(t *testing.T) {
	p, clock := newTestPools(t)
	tokens := []common.Address{WETH, DAI}
	weights := []folio.Amount{folio.MustParseAmount("0.5"), folio.MustParseAmount("0.5")}
	paths := [][]common.Address{{USDT, WETH}, {USDT, DAI}}
	alice := common.HexToAddress("0xee5B5B923fFcE93A870B3104b7CA09c3db80047A")
	errRefused := errors.New("leg refused")

	newModule := func(address string, r folio.Router) *folio.Module {
		m := folio.NewModule(common.HexToAddress(address), clock)
		if err := m.Initialize(tokens, weights, common.HexToAddress("0xfac"), r, folio.Amount{}); err != nil {
			t.Fatalf("Initialize() unexpected error: %v", err)
		}
		return m
	}
	b := newModule("0xb", p)
	// a's second leg lets b deposit, then fails.
	a := newModule("0xa", hookedPools{Pools: p, before: func(path []common.Address) error {
		if path[len(path)-1] != DAI {
			return nil
		}
		if _, err := b.Deposit(context.Background(), alice, USDT, paths, folio.W(1)); err != nil {
			t.Fatalf("Deposit() on b unexpected error: %v", err)
		}
		return errRefused
	}})
	before := a.Summary()

	if _, err := a.Deposit(context.Background(), alice, USDT, paths, folio.W(1)); !errors.Is(err, errRefused) {
		t.Fatalf("Deposit() on a error = %v, want %v", err, errRefused)
	}
	if diff := cmp.Diff(before, a.Summary()); diff != "" {
		t.Errorf("failed deposit changed a (-before +after):\n%s", diff)
	}

	// The pools hold exactly what b bought.
	holdings := b.Holdings()
	for i, token := range tokens {
		pair, _ := p.Pair(USDT, token)
		in, out := pair.reserves(USDT)
		if want := folio.MustParseAmount("1000.5"); !in.Equal(want) {
			t.Errorf("USDT reserve of the %s pair = %v, want %v", token.Hex(), in, want)
		}
		if want := folio.W(1000).Sub(holdings[i]); !out.Equal(want) {
			t.Errorf("%s reserve = %v, want %v", token.Hex(), out, want)
		}
	}
}

func TestPools_SaveLoad(t *testing.T) {
	p, clock := newTestPools(t)
	filename := filepath.Join(t.TempDir(), "pools.json")
	if err := p.Save(filename); err != nil {
		t.Fatalf("Save() unexpected error: %v", err)
	}
	loaded, err := LoadPools(filename, clock)
	if err != nil {
		t.Fatalf("LoadPools() unexpected error: %v", err)
	}
	if diff := cmp.Diff(p.Pairs(), loaded.Pairs()); diff != "" {
		t.Errorf("LoadPools() mismatch (-want +got):\n%s", diff)
	}

	empty, err := LoadPools(filepath.Join(t.TempDir(), "missing.json"), clock)
	if err != nil || len(empty.Pairs()) != 0 {
		t.Errorf("LoadPools() of a missing file = %v, %v, want no pair", empty.Pairs(), err)
	}
}

func TestDecodePools_SortsTokens(t *testing.T) {
	// WETH sorts before USDT.
	input := `[{"token0":"` + USDT.Hex() + `","token1":"` + WETH.Hex() + `","reserve0":1,"reserve1":2}]`
	p, err := DecodePools(bytes.NewBufferString(input), nil)
	if err != nil {
		t.Fatalf("DecodePools() unexpected error: %v", err)
	}
	pair, ok := p.Pair(USDT, WETH)
	if !ok {
		t.Fatal("Pair(USDT, WETH) not found")
	}
	if pair.Token0 != WETH {
		t.Errorf("Token0 = %s, want %s", pair.Token0.Hex(), WETH.Hex())
	}
	in, out := pair.reserves(USDT)
	if !in.Equal(folio.W(1)) || !out.Equal(folio.W(2)) {
		t.Errorf("reserves from USDT = %v, %v, want 1, 2", in, out)
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{PoolKind, RemoteKind} {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseKind("uniswap"); err == nil {
		t.Error("ParseKind(uniswap) expected an error")
	}
}
