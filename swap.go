package folio

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Router is the external exchange executing a swap of an exact input along a path.
//
// path[0] is the token sold, path[len(path)-1] the token bought, intermediate
// tokens are hops. Implementations may fail for insufficient liquidity,
// slippage or expiry.
type Router interface {
	SwapExactIn(ctx context.Context, path []common.Address, amountIn, minAmountOut Amount, deadline time.Time) (Amount, error)
}

// Quoter is implemented by routers able to price a path without executing it.
// The result holds the amount at every hop, the last one being the output.
type Quoter interface {
	AmountsOut(ctx context.Context, amountIn Amount, path []common.Address) ([]Amount, error)
}

// Checkpointer is implemented by routers whose state can be rolled back.
// Swaps made with the returned context are recorded, and revert undoes them
// and only them. The vault reverts when a later swap leg of the same call fails.
type Checkpointer interface {
	Checkpoint(ctx context.Context) (context.Context, func())
}

// DefaultDeadline is the swap deadline used when none is given.
const DefaultDeadline = 20 * time.Minute

// BasisPoints is the denominator of a slippage tolerance.
const BasisPoints = 10_000

// SwapAdapter executes single swap legs through a Router, enforcing the
// minimum output and the deadline itself rather than trusting the router to.
// It holds no state of its own.
type SwapAdapter struct {
	router Router
	clock  Clock
}

// NewSwapAdapter returns an adapter on top of router.
func NewSwapAdapter(router Router, clock Clock) SwapAdapter {
	return SwapAdapter{router: router, clock: clock}
}

// SwapExactIn sells 'amountIn' of path[0] for path[len(path)-1].
func (s SwapAdapter) SwapExactIn(ctx context.Context, path []common.Address, amountIn, minAmountOut Amount, deadline time.Time) (Amount, error) {
	if len(path) < 2 {
		return Amount{}, fmt.Errorf("swap path needs at least two tokens, got %d: %w", len(path), ErrPathMismatch)
	}
	if !amountIn.IsPositive() {
		return Amount{}, fmt.Errorf("swap input must be positive, got %v: %w", amountIn, ErrInvalidAmount)
	}
	if now := s.clock.Now(); now.After(deadline) {
		return Amount{}, fmt.Errorf("swap %s: now %v is past deadline %v: %w", pathString(path), now.UTC(), deadline.UTC(), ErrDeadlineExpired)
	}
	out, err := s.router.SwapExactIn(ctx, path, amountIn, minAmountOut, deadline)
	if err != nil {
		return Amount{}, fmt.Errorf("swap %s: %w", pathString(path), err)
	}
	if out.LessThan(minAmountOut) {
		return Amount{}, fmt.Errorf("swap %s returned %v, want at least %v: %w", pathString(path), out, minAmountOut, ErrSlippageExceeded)
	}
	return out, nil
}

// MinAmountOut quotes the path and returns the quoted output reduced by 'bps' basis points.
// It needs a router implementing Quoter.
func (s SwapAdapter) MinAmountOut(ctx context.Context, path []common.Address, amountIn Amount, bps uint32) (Amount, error) {
	q, ok := s.router.(Quoter)
	if !ok {
		return Amount{}, fmt.Errorf("router %T cannot quote a slippage tolerance", s.router)
	}
	if bps > BasisPoints {
		return Amount{}, fmt.Errorf("slippage tolerance %d bps exceeds %d: %w", bps, BasisPoints, ErrInvalidAmount)
	}
	amounts, err := q.AmountsOut(ctx, amountIn, path)
	if err != nil {
		return Amount{}, fmt.Errorf("quote %s: %w", pathString(path), err)
	}
	if len(amounts) == 0 {
		return Amount{}, fmt.Errorf("quote %s: empty quote", pathString(path))
	}
	return amounts[len(amounts)-1].MulDiv(U(BasisPoints-bps), U(BasisPoints)), nil
}

// checkpoint returns the context to swap with and the router's revert function,
// or a no-op when the router cannot roll back.
func (s SwapAdapter) checkpoint(ctx context.Context) (context.Context, func()) {
	if c, ok := s.router.(Checkpointer); ok {
		return c.Checkpoint(ctx)
	}
	return ctx, func() {}
}

// checkPath verifies that path goes from 'from' to 'to' through at least one hop.
func checkPath(path []common.Address, from, to common.Address) error {
	if len(path) < 2 {
		return fmt.Errorf("path %s is too short: %w", pathString(path), ErrPathMismatch)
	}
	if path[0] != from || path[len(path)-1] != to {
		return fmt.Errorf("path %s does not go from %s to %s: %w", pathString(path), from.Hex(), to.Hex(), ErrPathMismatch)
	}
	return nil
}

func pathString(path []common.Address) string {
	s := ""
	for i, p := range path {
		if i > 0 {
			s += ">"
		}
		s += p.Hex()
	}
	return s
}

// SwapOption configures the safety bounds of the swap legs of a deposit or withdrawal.
type SwapOption func(*swapOptions)

type swapOptions struct {
	deadline  time.Time
	minOut    []Amount
	tolerance uint32
	quoted    bool
}

// WithDeadline sets the deadline of every swap leg.
func WithDeadline(deadline time.Time) SwapOption {
	return func(o *swapOptions) { o.deadline = deadline }
}

// WithMinAmountsOut sets the minimum output of each leg, one per basket asset, in basket order.
func WithMinAmountsOut(amounts ...Amount) SwapOption {
	return func(o *swapOptions) { o.minOut = amounts }
}

// WithSlippageTolerance derives each leg minimum from a router quote minus 'bps' basis points.
// Explicit minimums given by WithMinAmountsOut take precedence.
func WithSlippageTolerance(bps uint32) SwapOption {
	return func(o *swapOptions) { o.tolerance, o.quoted = bps, true }
}

func newSwapOptions(now time.Time, legs int, opts []SwapOption) (swapOptions, error) {
	o := swapOptions{deadline: now.Add(DefaultDeadline)}
	for _, opt := range opts {
		opt(&o)
	}
	if o.minOut != nil && len(o.minOut) != legs {
		return o, fmt.Errorf("got %d minimum outputs for %d swap legs: %w", len(o.minOut), legs, ErrPathMismatch)
	}
	return o, nil
}

// minimum returns the minimum output of leg i.
func (o swapOptions) minimum(ctx context.Context, s SwapAdapter, i int, path []common.Address, amountIn Amount) (Amount, error) {
	switch {
	case o.minOut != nil:
		return o.minOut[i], nil
	case o.quoted:
		return s.MinAmountOut(ctx, path, amountIn, o.tolerance)
	default:
		return U(1), nil
	}
}
