// Package cmd implements the CLI application to operate a vault.
package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/ethereum/go-ethereum/common"
	"github.com/etnz/folio"
	"github.com/etnz/folio/factory"
	"github.com/etnz/folio/renderer"
	"github.com/etnz/folio/router"
	"github.com/google/subcommands"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&initCmd{}, "vault")
	c.Register(&depositCmd{}, "vault")
	c.Register(&withdrawCmd{}, "vault")
	c.Register(&claimCmd{}, "vault")

	c.Register(&sharesCmd{}, "statements")
	c.Register(&feeCmd{}, "statements")
	c.Register(&accountCmd{}, "statements")
	c.Register(&summaryCmd{}, "statements")
	c.Register(&logCmd{}, "statements")

	c.Register(&predictCmd{}, "factory")
	c.Register(&poolsCmd{}, "router")

	c.Register(&topicCmd{}, "help")
	c.Register(&assistCmd{}, "help")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var (
	configFile  = flag.String("config", "folio.yaml", "Path to the vault configuration file (YAML)")
	journalFile = flag.String("journal", "vault.jsonl", "Path to the vault journal (JSONL format)")
	poolsFile   = flag.String("pools", "", "Path to the pool state file, overrides the configuration")
	at          = flag.String("at", "", "Time of the operation (RFC 3339), now by default")
	plain       = flag.Bool("plain", false, "Print raw markdown instead of rendering it")
)

// stdout is where commands print their result.
var stdout io.Writer = os.Stdout

// vault is the state of a vault rebuilt from the configuration, the router state and the journal.
type vault struct {
	cfg      *folio.Config
	clock    folio.Clock
	router   folio.Router
	pools    *router.Pools // nil unless the router is a pool router
	factory  *factory.Factory
	module   *folio.Module
	instance *folio.Instance // nil until the module is initialized
	saved    int             // number of events already in the journal file
}

// openVault loads the configuration, opens the router and replays the journal.
func openVault() (*vault, error) {
	cfg, err := folio.LoadConfig(*configFile)
	if err != nil {
		return nil, err
	}
	events, err := folio.LoadJournal(*journalFile)
	if err != nil {
		return nil, err
	}
	clock, err := newClock(events)
	if err != nil {
		return nil, err
	}
	r, pools, err := openRouter(cfg, clock)
	if err != nil {
		return nil, err
	}
	m, err := folio.Replay(cfg.ModuleAddress(), r, clock, events)
	if err != nil {
		return nil, fmt.Errorf("could not replay journal %q: %w", *journalFile, err)
	}

	// The configured factory approves the configured module.
	f := factory.New(cfg.FactoryAddress(), cfg.ManagerAddress(), cfg.ImplementationAddress())
	if err := f.ApproveModule(cfg.ManagerAddress(), m.Address()); err != nil {
		return nil, err
	}
	v := &vault{cfg: cfg, clock: clock, router: r, pools: pools, factory: f, module: m, saved: len(events)}
	if m.Initialized() {
		if err := v.createInstance(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (v *vault) createInstance() error {
	salt, err := v.cfg.SaltBytes()
	if err != nil {
		return err
	}
	basket, err := v.cfg.Basket()
	if err != nil {
		return err
	}
	if !basket.Equal(v.module.Basket()) {
		return fmt.Errorf("journal %q basket does not match the configuration: %w", *journalFile, folio.ErrInvalidBasket)
	}
	v.instance, err = v.factory.CreateInstance(salt, v.cfg.ManagerAddress(), basket, v.module)
	return err
}

// ready returns the vault instance, or an error if the vault is not initialized.
func (v *vault) ready() (*folio.Instance, error) {
	if v.instance == nil {
		return nil, fmt.Errorf("vault %q is not initialized, run init first: %w", v.cfg.Name, folio.ErrNotInitialized)
	}
	return v.instance, nil
}

// save writes the pool state, then appends the new events to the journal.
// The journal is only written once the pools it relies on are.
func (v *vault) save() error {
	if v.pools != nil {
		if err := v.pools.Save(v.poolsPath()); err != nil {
			return err
		}
	}
	events := v.module.EventsSince(v.saved)
	if err := folio.AppendJournal(*journalFile, events...); err != nil {
		return err
	}
	v.saved += len(events)
	return nil
}

func (v *vault) poolsPath() string { return poolsPath(v.cfg) }

func poolsPath(cfg *folio.Config) string {
	if *poolsFile != "" {
		return *poolsFile
	}
	return cfg.Router.Pools
}

// options returns the rendering options of the vault.
func (v *vault) options() renderer.Options {
	symbols := v.cfg.Symbols()
	symbols[v.cfg.ManagerAddress()] = "manager"
	if v.instance != nil && v.cfg.Name != "" {
		symbols[v.instance.Address()] = v.cfg.Name
	}
	return renderer.Options{Currency: v.cfg.Currency, Symbols: symbols}
}

func openRouter(cfg *folio.Config, clock folio.Clock) (folio.Router, *router.Pools, error) {
	kind, err := router.ParseKind(cfg.Router.Kind)
	if err != nil {
		return nil, nil, err
	}
	r, err := router.Open(kind, poolsPath(cfg), cfg.Router.URL, clock)
	if err != nil {
		return nil, nil, err
	}
	pools, _ := r.(*router.Pools)
	return r, pools, nil
}

// newClock returns the clock of the operation: fixed at -at when it is set.
// Time cannot go back before the last event of the journal.
func newClock(events []folio.Event) (folio.Clock, error) {
	if *at == "" {
		return folio.SystemClock{}, nil
	}
	t, err := time.Parse(time.RFC3339, *at)
	if err != nil {
		return nil, fmt.Errorf("invalid -at %q: %w", *at, err)
	}
	if n := len(events); n > 0 && t.Unix() < int64(events[n-1].When()) {
		return nil, fmt.Errorf("-at %s is before the last journal event", t.UTC().Format(time.RFC3339))
	}
	return folio.NewManualClock(t), nil
}

// printMarkdown renders markdown for the terminal, or prints it as is with -plain.
func printMarkdown(md string) {
	if !strings.HasSuffix(md, "\n") {
		md += "\n"
	}
	if !*plain {
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
		if err == nil {
			if out, err := r.Render(md); err == nil {
				fmt.Fprint(stdout, out)
				return
			}
		}
	}
	fmt.Fprint(stdout, md)
}

// parseAddress parses a hex address flag.
func parseAddress(name, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("-%s %q is not a hex address", name, s)
	}
	return common.HexToAddress(s), nil
}

// parseAmount parses an amount flag in whole units.
func parseAmount(name, s string) (folio.Amount, error) {
	if s == "" {
		return folio.Amount{}, fmt.Errorf("-%s is required", name)
	}
	a, err := folio.ParseAmount(s)
	if err != nil {
		return folio.Amount{}, fmt.Errorf("-%s: %w", name, err)
	}
	return a, nil
}

// paths returns one path per basket asset between base and the asset, through
// the comma separated 'via' tokens. Buy paths start from base, sell paths end there.
func paths(b folio.Basket, via string, buy bool, base common.Address) ([][]common.Address, error) {
	var hops []common.Address
	if via != "" {
		for _, s := range strings.Split(via, ",") {
			a, err := parseAddress("via", strings.TrimSpace(s))
			if err != nil {
				return nil, err
			}
			hops = append(hops, a)
		}
	}
	list := make([][]common.Address, 0, b.Len())
	for _, token := range b.Tokens() {
		path := []common.Address{base}
		path = append(path, hops...)
		path = append(path, token)
		if !buy {
			slices.Reverse(path)
		}
		list = append(list, path)
	}
	return list, nil
}

// fail prints the error and returns the failure status.
func fail(format string, err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, format+": %v\n", err)
	return subcommands.ExitFailure
}
