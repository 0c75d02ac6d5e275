package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/etnz/folio"
	"github.com/etnz/folio/factory"
	"github.com/google/subcommands"
)

type predictCmd struct {
	salt string
}

func (*predictCmd) Name() string     { return "predict" }
func (*predictCmd) Synopsis() string { return "print the address of the vault instance" }
func (*predictCmd) Usage() string {
	return `vaultctl predict [-salt <hex>]

  Prints the address the factory deploys the vault instance at. It only
  depends on the factory, the implementation and the salt of the configuration.
`
}

func (c *predictCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.salt, "salt", "", "Deployment salt in hex, overrides the configuration")
}

func (c *predictCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := folio.LoadConfig(*configFile)
	if err != nil {
		return fail("Error loading configuration", err)
	}
	salt, err := cfg.SaltBytes()
	if err != nil {
		return fail("Error reading salt", err)
	}
	if c.salt != "" {
		b, err := hexutil.Decode(c.salt)
		if err != nil || len(b) > 32 {
			return fail("Error parsing flags", fmt.Errorf("-salt %q is not up to 32 hex bytes", c.salt))
		}
		salt = [32]byte(common.BytesToHash(b))
	}
	addr := factory.PredictAddress(cfg.FactoryAddress(), cfg.ImplementationAddress(), salt)
	fmt.Fprintln(stdout, addr.Hex())
	return subcommands.ExitSuccess
}
