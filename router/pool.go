package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/etnz/folio"
)

// Pool failures, named after the revert reasons of constant-product exchanges.
var (
	ErrIdenticalTokens       = errors.New("IDENTICAL_ADDRESSES")
	ErrNoPair                = errors.New("PAIR_NOT_FOUND")
	ErrInsufficientLiquidity = errors.New("INSUFFICIENT_LIQUIDITY")
)

// Pair is a constant-product pool between two tokens. Token0 sorts before Token1.
type Pair struct {
	Token0   common.Address `json:"token0"`
	Token1   common.Address `json:"token1"`
	Reserve0 folio.Amount   `json:"reserve0"`
	Reserve1 folio.Amount   `json:"reserve1"`
}

// reserves returns the reserves of the pair seen from tokenIn.
func (p *Pair) reserves(tokenIn common.Address) (in, out folio.Amount) {
	if tokenIn == p.Token0 {
		return p.Reserve0, p.Reserve1
	}
	return p.Reserve1, p.Reserve0
}

// move adds 'in' to the tokenIn reserve and takes 'out' from the other one.
func (p *Pair) move(tokenIn common.Address, in, out folio.Amount) {
	if tokenIn == p.Token0 {
		p.Reserve0, p.Reserve1 = p.Reserve0.Add(in), p.Reserve1.Sub(out)
		return
	}
	p.Reserve1, p.Reserve0 = p.Reserve1.Add(in), p.Reserve0.Sub(out)
}

type pairKey [2]common.Address

func sortTokens(a, b common.Address) (pairKey, error) {
	switch bytes.Compare(a[:], b[:]) {
	case 0:
		return pairKey{}, fmt.Errorf("pair %s/%s: %w", a.Hex(), b.Hex(), ErrIdenticalTokens)
	case 1:
		a, b = b, a
	}
	return pairKey{a, b}, nil
}

// GetAmountOut returns the output of selling 'in' into a pool holding
// 'reserveIn' and 'reserveOut', net of the 0.3% pool fee.
func GetAmountOut(in, reserveIn, reserveOut folio.Amount) (folio.Amount, error) {
	if !in.IsPositive() {
		return folio.Amount{}, fmt.Errorf("INSUFFICIENT_INPUT_AMOUNT: %w", folio.ErrInvalidAmount)
	}
	if !reserveIn.IsPositive() || !reserveOut.IsPositive() {
		return folio.Amount{}, ErrInsufficientLiquidity
	}
	inWithFee := in.MulDiv(folio.U(997), folio.U(1))
	den := reserveIn.MulDiv(folio.U(1000), folio.U(1)).Add(inWithFee)
	return inWithFee.MulDiv(reserveOut, den), nil
}

// Pools is an in-process exchange made of constant-product pairs. Swaps along
// a path go through one pair per hop.
//
// It implements folio.Router, folio.Quoter and folio.Checkpointer and is safe
// for concurrent use.
type Pools struct {
	clock folio.Clock

	mu    sync.Mutex
	pairs map[pairKey]*Pair
}

// NewPools returns an exchange without any pair. A nil clock means the system clock.
func NewPools(clock folio.Clock) *Pools {
	if clock == nil {
		clock = folio.SystemClock{}
	}
	return &Pools{clock: clock, pairs: make(map[pairKey]*Pair)}
}

// AddLiquidity adds 'amountA' of tokenA and 'amountB' of tokenB to their pair, creating it if needed.
func (p *Pools) AddLiquidity(tokenA, tokenB common.Address, amountA, amountB folio.Amount) error {
	key, err := sortTokens(tokenA, tokenB)
	if err != nil {
		return err
	}
	if !amountA.IsPositive() || !amountB.IsPositive() {
		return fmt.Errorf("liquidity must be positive, got %v and %v: %w", amountA, amountB, folio.ErrInvalidAmount)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	pair, ok := p.pairs[key]
	if !ok {
		pair = &Pair{Token0: key[0], Token1: key[1]}
		p.pairs[key] = pair
	}
	pair.move(tokenA, amountA, folio.Amount{})
	pair.move(tokenB, amountB, folio.Amount{})
	return nil
}

// Pair returns a copy of the pair between tokenA and tokenB.
func (p *Pools) Pair(tokenA, tokenB common.Address) (Pair, bool) {
	key, err := sortTokens(tokenA, tokenB)
	if err != nil {
		return Pair{}, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	pair, ok := p.pairs[key]
	if !ok {
		return Pair{}, false
	}
	return *pair, true
}

// Pairs returns a copy of every pair, sorted by tokens.
func (p *Pools) Pairs() []Pair {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot()
}

func (p *Pools) snapshot() []Pair {
	list := make([]Pair, 0, len(p.pairs))
	for _, pair := range p.pairs {
		list = append(list, *pair)
	}
	slices.SortFunc(list, func(a, b Pair) int {
		if c := bytes.Compare(a.Token0[:], b.Token0[:]); c != 0 {
			return c
		}
		return bytes.Compare(a.Token1[:], b.Token1[:])
	})
	return list
}

func (p *Pools) pair(a, b common.Address) (*Pair, error) {
	key, err := sortTokens(a, b)
	if err != nil {
		return nil, err
	}
	pair, ok := p.pairs[key]
	if !ok {
		return nil, fmt.Errorf("pair %s/%s: %w", a.Hex(), b.Hex(), ErrNoPair)
	}
	return pair, nil
}

// AmountsOut quotes a swap of 'in' along path: the result holds the amount at every hop.
func (p *Pools) AmountsOut(ctx context.Context, in folio.Amount, path []common.Address) ([]folio.Amount, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.amountsOut(in, path)
}

func (p *Pools) amountsOut(in folio.Amount, path []common.Address) ([]folio.Amount, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("INVALID_PATH: %w", folio.ErrPathMismatch)
	}
	amounts := make([]folio.Amount, len(path))
	amounts[0] = in
	for i := 0; i < len(path)-1; i++ {
		pair, err := p.pair(path[i], path[i+1])
		if err != nil {
			return nil, err
		}
		reserveIn, reserveOut := pair.reserves(path[i])
		out, err := GetAmountOut(amounts[i], reserveIn, reserveOut)
		if err != nil {
			return nil, fmt.Errorf("hop %s>%s: %w", path[i].Hex(), path[i+1].Hex(), err)
		}
		amounts[i+1] = out
	}
	return amounts, nil
}

// SwapExactIn sells 'in' of path[0] for path[len(path)-1], failing if the
// output is below 'minOut' or if the deadline passed.
func (p *Pools) SwapExactIn(ctx context.Context, path []common.Address, in, minOut folio.Amount, deadline time.Time) (folio.Amount, error) {
	if err := ctx.Err(); err != nil {
		return folio.Amount{}, err
	}
	if p.clock.Now().After(deadline) {
		return folio.Amount{}, fmt.Errorf("EXPIRED: %w", folio.ErrDeadlineExpired)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	amounts, err := p.amountsOut(in, path)
	if err != nil {
		return folio.Amount{}, err
	}
	out := amounts[len(amounts)-1]
	if out.LessThan(minOut) {
		return folio.Amount{}, fmt.Errorf("INSUFFICIENT_OUTPUT_AMOUNT %v < %v: %w", out, minOut, folio.ErrSlippageExceeded)
	}
	if out.IsZero() {
		return folio.Amount{}, ErrInsufficientLiquidity
	}
	undo, _ := ctx.Value(undoKey{}).(*undoLog)
	for i := 0; i < len(path)-1; i++ {
		pair, _ := p.pair(path[i], path[i+1])
		pair.move(path[i], amounts[i], amounts[i+1])
		if undo != nil {
			key, _ := sortTokens(path[i], path[i+1])
			undo.moves = append(undo.moves, reserveMove{key: key, tokenOut: path[i+1], in: amounts[i], out: amounts[i+1]})
		}
	}
	return out, nil
}

type undoKey struct{}

// undoLog holds the reserve moves of the swaps made under one checkpoint.
// It is guarded by the Pools mutex.
type undoLog struct {
	moves []reserveMove
}

type reserveMove struct {
	key      pairKey
	tokenOut common.Address
	in, out  folio.Amount
}

// Checkpoint returns a context recording the swaps made with it, and a function
// undoing exactly those swaps. Swaps of other callers are left untouched.
func (p *Pools) Checkpoint(ctx context.Context) (context.Context, func()) {
	undo := &undoLog{}
	return context.WithValue(ctx, undoKey{}, undo), func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i := len(undo.moves) - 1; i >= 0; i-- {
			m := undo.moves[i]
			// Selling 'out' back for 'in' is the reverse move.
			if pair, ok := p.pairs[m.key]; ok {
				pair.move(m.tokenOut, m.out, m.in)
			}
		}
		undo.moves = nil
	}
}

// Encode writes the pairs as a JSON array.
func (p *Pools) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p.Pairs()); err != nil {
		return fmt.Errorf("could not encode pools: %w", err)
	}
	return nil
}

// DecodePools reads pairs written by Encode.
func DecodePools(r io.Reader, clock folio.Clock) (*Pools, error) {
	var pairs []Pair
	if err := json.NewDecoder(r).Decode(&pairs); err != nil {
		return nil, fmt.Errorf("could not decode pools: %w", err)
	}
	p := NewPools(clock)
	for _, pair := range pairs {
		key, err := sortTokens(pair.Token0, pair.Token1)
		if err != nil {
			return nil, err
		}
		if key[0] != pair.Token0 {
			pair.Token0, pair.Token1 = pair.Token1, pair.Token0
			pair.Reserve0, pair.Reserve1 = pair.Reserve1, pair.Reserve0
		}
		if _, dup := p.pairs[key]; dup {
			return nil, fmt.Errorf("pair %s/%s is listed twice", key[0].Hex(), key[1].Hex())
		}
		pair := pair
		p.pairs[key] = &pair
	}
	return p, nil
}

// LoadPools reads the pool state file. A missing file is an exchange without pairs.
func LoadPools(filename string, clock folio.Clock) (*Pools, error) {
	f, err := os.Open(filename)
	if errors.Is(err, os.ErrNotExist) {
		return NewPools(clock), nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not open pools %q: %w", filename, err)
	}
	defer f.Close()
	return DecodePools(f, clock)
}

// Save writes the pool state file. The file is replaced at once, a failed save leaves the previous state.
func (p *Pools) Save(filename string) error {
	var buf bytes.Buffer
	if err := p.Encode(&buf); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".*")
	if err != nil {
		return fmt.Errorf("could not save pools %q: %w", filename, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("could not save pools %q: %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not save pools %q: %w", filename, err)
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("could not save pools %q: %w", filename, err)
	}
	return nil
}
