package cmd

import (
	"bytes"
	"context"
	"errors"
	"flag"

	"github.com/etnz/folio"
	"github.com/etnz/folio/router"
	"github.com/google/subcommands"
	md "github.com/nao1215/markdown"
)

type poolsCmd struct {
	add     bool
	a, b    string
	amountA string
	amountB string
}

func (*poolsCmd) Name() string     { return "pools" }
func (*poolsCmd) Synopsis() string { return "list or fund the constant-product pools" }
func (*poolsCmd) Usage() string {
	return `vaultctl pools [-add -a <token> -b <token> -amount-a <amount> -amount-b <amount>]

  Lists the pairs of the pool router, or adds liquidity to a pair, creating
  it if needed.
`
}

func (c *poolsCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.add, "add", false, "Add liquidity to the pair of -a and -b")
	f.StringVar(&c.a, "a", "", "First token of the pair")
	f.StringVar(&c.b, "b", "", "Second token of the pair")
	f.StringVar(&c.amountA, "amount-a", "", "Amount of the first token, in whole units")
	f.StringVar(&c.amountB, "amount-b", "", "Amount of the second token, in whole units")
}

func (c *poolsCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	path, err := poolsFileName()
	if err != nil {
		return fail("Error locating pools", err)
	}
	pools, err := router.LoadPools(path, nil)
	if err != nil {
		return fail("Error loading pools", err)
	}

	if c.add {
		if err := c.addLiquidity(pools); err != nil {
			return fail("Error adding liquidity", err)
		}
		if err := pools.Save(path); err != nil {
			return fail("Error saving pools", err)
		}
	}
	printMarkdown(renderPairs(pools.Pairs()))
	return subcommands.ExitSuccess
}

func (c *poolsCmd) addLiquidity(pools *router.Pools) error {
	a, err := parseAddress("a", c.a)
	if err != nil {
		return err
	}
	b, err := parseAddress("b", c.b)
	if err != nil {
		return err
	}
	amountA, err := parseAmount("amount-a", c.amountA)
	if err != nil {
		return err
	}
	amountB, err := parseAmount("amount-b", c.amountB)
	if err != nil {
		return err
	}
	return pools.AddLiquidity(a, b, amountA, amountB)
}

// poolsFileName returns the pool state file: -pools or the one of the configuration.
func poolsFileName() (string, error) {
	if *poolsFile != "" {
		return *poolsFile, nil
	}
	cfg, err := folio.LoadConfig(*configFile)
	if err != nil {
		return "", err
	}
	if cfg.Router.Pools == "" {
		return "", errors.New("the configuration has no pool state file, use -pools")
	}
	return cfg.Router.Pools, nil
}

func renderPairs(pairs []router.Pair) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)
	doc.H1("Pools")
	doc.PlainText("")
	if len(pairs) == 0 {
		doc.PlainText("No pair.")
		return doc.String()
	}
	table := md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignLeft, md.AlignRight, md.AlignRight},
		Header:    []string{"Token0", "Token1", "Reserve0", "Reserve1"},
		Rows:      [][]string{},
	}
	for _, p := range pairs {
		table.Rows = append(table.Rows, []string{p.Token0.Hex(), p.Token1.Hex(), p.Reserve0.String(), p.Reserve1.String()})
	}
	doc.Table(table)
	return doc.String()
}
