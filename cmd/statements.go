package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/etnz/folio/renderer"
	"github.com/google/subcommands"
)

type sharesCmd struct {
	of string
}

func (*sharesCmd) Name() string     { return "shares" }
func (*sharesCmd) Synopsis() string { return "print the shares of a depositor, or all shares" }
func (*sharesCmd) Usage() string {
	return `vaultctl shares [-of <address>]

  Prints the share balance of the depositor, or the total shares outstanding.
`
}

func (c *sharesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.of, "of", "", "Depositor address")
}

func (c *sharesCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	v, err := openVault()
	if err != nil {
		return fail("Error opening vault", err)
	}
	if c.of == "" {
		fmt.Fprintln(stdout, v.module.TotalShares())
		return subcommands.ExitSuccess
	}
	of, err := parseAddress("of", c.of)
	if err != nil {
		return fail("Error parsing flags", err)
	}
	fmt.Fprintln(stdout, v.module.Shares(of))
	return subcommands.ExitSuccess
}

type feeCmd struct {
	of string
}

func (*feeCmd) Name() string     { return "fee" }
func (*feeCmd) Synopsis() string { return "print the fee owed by a depositor, or by all" }
func (*feeCmd) Usage() string {
	return `vaultctl fee [-of <address>]

  Prints the management fee the depositor owes at the operation time, or the
  fees settled across all depositors and not claimed yet.
`
}

func (c *feeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.of, "of", "", "Depositor address")
}

func (c *feeCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	v, err := openVault()
	if err != nil {
		return fail("Error opening vault", err)
	}
	if c.of == "" {
		fmt.Fprintln(stdout, v.module.TotalFeeAccrued())
		return subcommands.ExitSuccess
	}
	of, err := parseAddress("of", c.of)
	if err != nil {
		return fail("Error parsing flags", err)
	}
	fmt.Fprintln(stdout, v.module.FeeAccrued(of))
	return subcommands.ExitSuccess
}

type accountCmd struct {
	of string
}

func (*accountCmd) Name() string     { return "account" }
func (*accountCmd) Synopsis() string { return "display the statement of a depositor" }
func (*accountCmd) Usage() string {
	return `vaultctl account -of <address>

  Displays the shares, principal and fee owed of the depositor.
`
}

func (c *accountCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.of, "of", "", "Depositor address")
}

func (c *accountCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	of, err := parseAddress("of", c.of)
	if err != nil {
		return fail("Error parsing flags", err)
	}
	v, err := openVault()
	if err != nil {
		return fail("Error opening vault", err)
	}
	a, ok := v.module.Account(of)
	if !ok {
		return fail("Error reading account", fmt.Errorf("%s never deposited", of.Hex()))
	}
	printMarkdown(renderer.RenderAccount(a, v.options()))
	return subcommands.ExitSuccess
}

type summaryCmd struct{}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "display the vault summary" }
func (*summaryCmd) Usage() string {
	return `vaultctl summary

  Displays the vault holdings, shares, fees and depositor accounts.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {}

func (c *summaryCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	v, err := openVault()
	if err != nil {
		return fail("Error opening vault", err)
	}
	printMarkdown(renderer.RenderSummary(v.module.Summary(), v.options()))
	return subcommands.ExitSuccess
}

type logCmd struct{}

func (*logCmd) Name() string     { return "log" }
func (*logCmd) Synopsis() string { return "display the vault journal" }
func (*logCmd) Usage() string {
	return `vaultctl log

  Displays every operation committed by the vault, oldest first.
`
}

func (c *logCmd) SetFlags(f *flag.FlagSet) {}

func (c *logCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	v, err := openVault()
	if err != nil {
		return fail("Error opening vault", err)
	}
	printMarkdown(renderer.RenderJournal(v.module.Events(), v.options()))
	return subcommands.ExitSuccess
}
