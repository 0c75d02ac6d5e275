package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/etnz/folio"
	"github.com/etnz/folio/renderer"
	"github.com/google/subcommands"
)

type initCmd struct{}

func (*initCmd) Name() string     { return "init" }
func (*initCmd) Synopsis() string { return "initialize the vault module from the configuration" }
func (*initCmd) Usage() string {
	return `vaultctl init

  Configures the vault module with the basket, factory and fee rate of the
  configuration file, and deploys the vault instance. It can only be done once.
`
}

func (c *initCmd) SetFlags(f *flag.FlagSet) {}

func (c *initCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	v, err := openVault()
	if err != nil {
		return fail("Error opening vault", err)
	}
	basket, err := v.cfg.Basket()
	if err != nil {
		return fail("Error reading basket", err)
	}
	rate, err := v.cfg.FeeRate()
	if err != nil {
		return fail("Error reading fee rate", err)
	}
	if err := v.module.Initialize(basket.Tokens(), basket.Weights(), v.cfg.FactoryAddress(), v.router, rate); err != nil {
		return fail("Error initializing vault", err)
	}
	if err := v.createInstance(); err != nil {
		return fail("Error creating vault instance", err)
	}
	if err := v.save(); err != nil {
		return fail("Error saving vault", err)
	}
	printMarkdown(renderer.RenderSummary(v.instance.Summary(), v.options()))
	return subcommands.ExitSuccess
}

// swapFlags are the flags shared by deposits and withdrawals.
type swapFlags struct {
	from     string
	via      string
	deadline time.Duration
	slippage uint
}

func (s *swapFlags) SetFlags(f *flag.FlagSet) {
	f.StringVar(&s.from, "from", "", "Depositor address")
	f.StringVar(&s.via, "via", "", "Comma separated tokens every swap goes through")
	f.DurationVar(&s.deadline, "deadline", folio.DefaultDeadline, "Time given to every swap")
	f.UintVar(&s.slippage, "slippage", 0, "Slippage tolerance in basis points, the router quote is then the reference")
}

func (s *swapFlags) options(now time.Time) []folio.SwapOption {
	opts := []folio.SwapOption{folio.WithDeadline(now.Add(s.deadline))}
	if s.slippage > 0 {
		opts = append(opts, folio.WithSlippageTolerance(uint32(s.slippage)))
	}
	return opts
}

type depositCmd struct {
	swapFlags
	amount string
}

func (*depositCmd) Name() string     { return "deposit" }
func (*depositCmd) Synopsis() string { return "deposit base currency and receive shares" }
func (*depositCmd) Usage() string {
	return `vaultctl deposit -from <address> -amount <amount> [-via <tokens>] [-deadline <duration>] [-slippage <bps>]

  Splits the amount of base currency between the basket tokens, buys them and
  issues shares to the depositor.
`
}

func (c *depositCmd) SetFlags(f *flag.FlagSet) {
	c.swapFlags.SetFlags(f)
	f.StringVar(&c.amount, "amount", "", "Amount of base currency, in whole units")
}

func (c *depositCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	from, err := parseAddress("from", c.from)
	if err != nil {
		return fail("Error parsing flags", err)
	}
	amount, err := parseAmount("amount", c.amount)
	if err != nil {
		return fail("Error parsing flags", err)
	}
	v, err := openVault()
	if err != nil {
		return fail("Error opening vault", err)
	}
	instance, err := v.ready()
	if err != nil {
		return fail("Error opening vault", err)
	}
	base := v.cfg.BaseAddress()
	buyPaths, err := paths(v.module.Basket(), c.via, true, base)
	if err != nil {
		return fail("Error parsing flags", err)
	}

	ev, err := instance.Deposit(ctx, from, base, buyPaths, amount, c.options(v.clock.Now())...)
	if err != nil {
		return fail("Error depositing", err)
	}
	if err := v.save(); err != nil {
		return fail("Error saving vault", err)
	}
	printMarkdown(renderer.RenderDeposit(ev, v.options()))
	return subcommands.ExitSuccess
}

type withdrawCmd struct {
	swapFlags
	shares string
	all    bool
}

func (*withdrawCmd) Name() string     { return "withdraw" }
func (*withdrawCmd) Synopsis() string { return "burn shares and receive base currency" }
func (*withdrawCmd) Usage() string {
	return `vaultctl withdraw -from <address> (-shares <amount> | -all) [-via <tokens>] [-deadline <duration>] [-slippage <bps>]

  Burns the shares, sells the depositor's part of the basket and pays the
  proceeds back, net of the management fee owed.
`
}

func (c *withdrawCmd) SetFlags(f *flag.FlagSet) {
	c.swapFlags.SetFlags(f)
	f.StringVar(&c.shares, "shares", "", "Shares to burn, in whole units")
	f.BoolVar(&c.all, "all", false, "Burn every share of the depositor")
}

func (c *withdrawCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	from, err := parseAddress("from", c.from)
	if err != nil {
		return fail("Error parsing flags", err)
	}
	if c.all == (c.shares != "") {
		fmt.Fprintln(os.Stderr, "Error parsing flags: use either -shares or -all")
		return subcommands.ExitUsageError
	}
	v, err := openVault()
	if err != nil {
		return fail("Error opening vault", err)
	}
	instance, err := v.ready()
	if err != nil {
		return fail("Error opening vault", err)
	}
	shares := instance.Shares(from)
	if !c.all {
		if shares, err = parseAmount("shares", c.shares); err != nil {
			return fail("Error parsing flags", err)
		}
	}
	base := v.cfg.BaseAddress()
	sellPaths, err := paths(v.module.Basket(), c.via, false, base)
	if err != nil {
		return fail("Error parsing flags", err)
	}

	ev, err := instance.Withdraw(ctx, from, base, sellPaths, shares, c.options(v.clock.Now())...)
	if err != nil {
		return fail("Error withdrawing", err)
	}
	if err := v.save(); err != nil {
		return fail("Error saving vault", err)
	}
	printMarkdown(renderer.RenderWithdrawal(ev, v.options()))
	return subcommands.ExitSuccess
}

type claimCmd struct {
	caller string
	to     string
}

func (*claimCmd) Name() string     { return "claim" }
func (*claimCmd) Synopsis() string { return "release the withheld fees to the manager" }
func (*claimCmd) Usage() string {
	return `vaultctl claim -caller <address> [-to <address>]

  Releases every fee withheld from withdrawals. Only the vault manager can
  claim, fees are paid to the manager unless -to is given.
`
}

func (c *claimCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.caller, "caller", "", "Address claiming the fees, must be the manager")
	f.StringVar(&c.to, "to", "", "Address receiving the fees, the manager by default")
}

func (c *claimCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	caller, err := parseAddress("caller", c.caller)
	if err != nil {
		return fail("Error parsing flags", err)
	}
	var to common.Address
	if c.to != "" {
		if to, err = parseAddress("to", c.to); err != nil {
			return fail("Error parsing flags", err)
		}
	}
	v, err := openVault()
	if err != nil {
		return fail("Error opening vault", err)
	}
	instance, err := v.ready()
	if err != nil {
		return fail("Error opening vault", err)
	}
	ev, err := instance.ClaimFees(caller, to)
	if err != nil {
		return fail("Error claiming fees", err)
	}
	if err := v.save(); err != nil {
		return fail("Error saving vault", err)
	}
	printMarkdown(renderer.RenderClaim(ev, v.options()))
	return subcommands.ExitSuccess
}
