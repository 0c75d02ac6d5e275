package cmd

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/etnz/folio"
	"github.com/etnz/folio/factory"
	"github.com/google/subcommands"
)

const (
	usdt    = "0xdAC17F958D2ee523a2206206994597C13D831ec7"
	weth    = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	wbtc    = "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"
	alice   = "0xee5B5B923fFcE93A870B3104b7CA09c3db80047A"
	manager = "0x00000000000000000000000000000000000000f1"
)

const testConfig = `
name: balanced
currency: USD
module: 0x0000000000000000000000000000000000000a01
manager: 0x00000000000000000000000000000000000000f1
factory: 0x0000000000000000000000000000000000000fac
base_asset: 0xdAC17F958D2ee523a2206206994597C13D831ec7
base_symbol: USDT
assets:
  - token: 0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2
    symbol: WETH
    weight: "0.5"
  - token: 0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599
    symbol: WBTC
    weight: "0.5"
fee:
  annual_percent: "6"
router:
  kind: pool
  pools: pools.json
`

// setup writes the configuration in a temporary directory and points the global flags to it.
func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	config := strings.Replace(testConfig, "pools.json", filepath.Join(dir, "pools.json"), 1)
	if err := os.WriteFile(filepath.Join(dir, "folio.yaml"), []byte(config), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv(folio.EnvRouterURL, "")

	oldConfig, oldJournal, oldPools, oldAt, oldPlain := *configFile, *journalFile, *poolsFile, *at, *plain
	t.Cleanup(func() {
		*configFile, *journalFile, *poolsFile, *at, *plain = oldConfig, oldJournal, oldPools, oldAt, oldPlain
	})
	*configFile = filepath.Join(dir, "folio.yaml")
	*journalFile = filepath.Join(dir, "vault.jsonl")
	*poolsFile = ""
	*at = "2024-01-01T00:00:00Z"
	*plain = true
	return dir
}

// run executes the command with args and returns its status and output.
func run(t *testing.T, c subcommands.Command, args ...string) (subcommands.ExitStatus, string) {
	t.Helper()
	f := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	c.SetFlags(f)
	if err := f.Parse(args); err != nil {
		t.Fatalf("%s: invalid args %v: %v", c.Name(), args, err)
	}
	var b bytes.Buffer
	old := stdout
	stdout = &b
	defer func() { stdout = old }()
	return c.Execute(context.Background(), f), b.String()
}

// mustRun executes the command and fails the test unless it succeeds.
func mustRun(t *testing.T, c subcommands.Command, args ...string) string {
	t.Helper()
	status, out := run(t, c, args...)
	if status != subcommands.ExitSuccess {
		t.Fatalf("%s %v = %v, want success. Output:\n%s", c.Name(), args, status, out)
	}
	return out
}

func fund(t *testing.T) {
	t.Helper()
	for _, token := range []string{weth, wbtc} {
		mustRun(t, &poolsCmd{}, "-add", "-a", usdt, "-b", token, "-amount-a", "1000000", "-amount-b", "1000000")
	}
}

func TestVaultLifecycle(t *testing.T) {
	setup(t)

	if out := mustRun(t, &poolsCmd{}); !strings.Contains(out, "No pair.") {
		t.Errorf("pools = %q, want no pair", out)
	}
	fund(t)
	if out := mustRun(t, &poolsCmd{}); strings.Count(out, "| 1000000 | 1000000 |") != 2 {
		t.Errorf("pools does not list both pairs:\n%s", out)
	}

	out := mustRun(t, &initCmd{})
	if !strings.Contains(out, "# Vault balanced") || !strings.Contains(out, "| WETH | 0.5 | 0 |") {
		t.Errorf("init output:\n%s", out)
	}
	if status, _ := run(t, &initCmd{}); status != subcommands.ExitFailure {
		t.Errorf("second init = %v, want failure", status)
	}

	out = mustRun(t, &depositCmd{}, "-from", alice, "-amount", "100")
	for _, want := range []string{"* Amount: $100.00 (USDT)", "* Shares issued: 100", "| USDT > WETH | 50 |"} {
		if !strings.Contains(out, want) {
			t.Errorf("deposit output does not contain %q:\n%s", want, out)
		}
	}
	if got := mustRun(t, &sharesCmd{}, "-of", alice); got != "100\n" {
		t.Errorf("shares -of alice = %q, want 100", got)
	}
	if got := mustRun(t, &sharesCmd{}); got != "100\n" {
		t.Errorf("shares = %q, want 100", got)
	}

	// A year later.
	*at = "2024-12-31T00:00:00Z"
	if got := mustRun(t, &feeCmd{}, "-of", alice); got != "5.999999999981472\n" {
		t.Errorf("fee -of alice = %q, want 5.999999999981472", got)
	}
	if got := mustRun(t, &accountCmd{}, "-of", alice); !strings.Contains(got, "* Fee owed: $5.99") {
		t.Errorf("account output:\n%s", got)
	}

	out = mustRun(t, &withdrawCmd{}, "-from", alice, "-all")
	if !strings.Contains(out, "* Shares burnt: 100") || !strings.Contains(out, "* Fee withheld: $5.99") {
		t.Errorf("withdraw output:\n%s", out)
	}
	if got := mustRun(t, &sharesCmd{}, "-of", alice); got != "0\n" {
		t.Errorf("shares -of alice = %q after a full withdrawal, want 0", got)
	}

	if status, _ := run(t, &claimCmd{}, "-caller", alice); status != subcommands.ExitFailure {
		t.Errorf("claim by a depositor = %v, want failure", status)
	}
	out = mustRun(t, &claimCmd{}, "-caller", manager)
	if !strings.Contains(out, "* Paid to: manager") {
		t.Errorf("claim output:\n%s", out)
	}

	out = mustRun(t, &logCmd{})
	for _, want := range []string{"| initialize |", "| deposit |", "| withdraw |", "| claim |"} {
		if !strings.Contains(out, want) {
			t.Errorf("log does not contain %q:\n%s", want, out)
		}
	}

	events, err := folio.LoadJournal(*journalFile)
	if err != nil {
		t.Fatalf("LoadJournal() unexpected error: %v", err)
	}
	if len(events) != 4 {
		t.Errorf("journal has %d events, want 4", len(events))
	}

	// Time cannot go back.
	*at = "2024-06-01T00:00:00Z"
	if status, _ := run(t, &summaryCmd{}); status != subcommands.ExitFailure {
		t.Errorf("summary before the last event = %v, want failure", status)
	}
}

func TestSave_WritesPoolsFirst(t *testing.T) {
	dir := setup(t)
	fund(t)
	mustRun(t, &initCmd{})

	v, err := openVault()
	if err != nil {
		t.Fatalf("openVault() unexpected error: %v", err)
	}
	base := v.cfg.BaseAddress()
	buy, err := paths(v.module.Basket(), "", true, base)
	if err != nil {
		t.Fatalf("paths() unexpected error: %v", err)
	}
	if _, err := v.instance.Deposit(context.Background(), common.HexToAddress(alice), base, buy, folio.W(1)); err != nil {
		t.Fatalf("Deposit() unexpected error: %v", err)
	}

	*poolsFile = filepath.Join(dir, "missing", "pools.json")
	if err := v.save(); err == nil {
		t.Fatalf("save() to a missing directory expected an error")
	}
	events, err := folio.LoadJournal(*journalFile)
	if err != nil {
		t.Fatalf("LoadJournal() unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("journal has %d events after a failed save, want only the initialization", len(events))
	}
}

func TestDeposit_Errors(t *testing.T) {
	testCases := []struct {
		name string
		init bool
		args []string
	}{
		{"not initialized", false, []string{"-from", alice, "-amount", "1"}},
		{"missing depositor", true, []string{"-amount", "1"}},
		{"missing amount", true, []string{"-from", alice}},
		{"zero amount", true, []string{"-from", alice, "-amount", "0"}},
		{"no pair", true, []string{"-from", alice, "-amount", "1", "-via", "0x6B175474E89094C44Da98b954EedeAC495271d0F"}},
		{"expired", true, []string{"-from", alice, "-amount", "1", "-deadline", "-1s"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			setup(t)
			fund(t)
			if tc.init {
				mustRun(t, &initCmd{})
			}
			if status, out := run(t, &depositCmd{}, tc.args...); status != subcommands.ExitFailure {
				t.Errorf("deposit %v = %v, want failure. Output:\n%s", tc.args, status, out)
			}
			events, _ := folio.LoadJournal(*journalFile)
			if want := map[bool]int{true: 1, false: 0}[tc.init]; len(events) != want {
				t.Errorf("journal has %d events, want %d", len(events), want)
			}
		})
	}
}

func TestWithdraw_Flags(t *testing.T) {
	setup(t)
	if status, _ := run(t, &withdrawCmd{}, "-from", alice); status != subcommands.ExitUsageError {
		t.Errorf("withdraw without -shares nor -all = %v, want usage error", status)
	}
	if status, _ := run(t, &withdrawCmd{}, "-from", alice, "-all", "-shares", "1"); status != subcommands.ExitUsageError {
		t.Errorf("withdraw with -shares and -all = %v, want usage error", status)
	}
}

func TestPredict(t *testing.T) {
	setup(t)
	want := factory.PredictAddress(
		common.HexToAddress("0x0000000000000000000000000000000000000fac"),
		common.HexToAddress("0x0000000000000000000000000000000000000a01"),
		folio.SaltFromString("balanced"),
	).Hex() + "\n"
	if got := mustRun(t, &predictCmd{}); got != want {
		t.Errorf("predict = %q, want %q", got, want)
	}
	if got := mustRun(t, &predictCmd{}, "-salt", "0x01"); got == want {
		t.Errorf("predict -salt 0x01 = %q, want another address", got)
	}
	if status, _ := run(t, &predictCmd{}, "-salt", "zz"); status != subcommands.ExitFailure {
		t.Errorf("predict -salt zz = %v, want failure", status)
	}
}

func TestPaths(t *testing.T) {
	tokens := []common.Address{common.HexToAddress(weth), common.HexToAddress(wbtc)}
	b, err := folio.NewBasket(tokens, []folio.Amount{folio.W(1), folio.W(1)})
	if err != nil {
		t.Fatalf("NewBasket() unexpected error: %v", err)
	}
	base := common.HexToAddress(usdt)
	dai := common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")

	sell, err := paths(b, dai.Hex(), false, base)
	if err != nil {
		t.Fatalf("paths() unexpected error: %v", err)
	}
	want := [][]common.Address{{tokens[0], dai, base}, {tokens[1], dai, base}}
	for i := range want {
		if len(sell[i]) != 3 || sell[i][0] != want[i][0] || sell[i][1] != want[i][1] || sell[i][2] != want[i][2] {
			t.Errorf("sell path #%d = %v, want %v", i, sell[i], want[i])
		}
	}
	if _, err := paths(b, "dai", true, base); err == nil {
		t.Errorf("paths(via=dai) expected an error")
	}
}

func TestTopic(t *testing.T) {
	setup(t)
	out := mustRun(t, &topicCmd{}, "-list")
	if !strings.Contains(out, "fees: Fees\n") {
		t.Errorf("topic -list = %q", out)
	}
	if out := mustRun(t, &topicCmd{}, "deposit"); !strings.HasPrefix(out, "# Deposit") {
		t.Errorf("topic deposit = %q", out)
	}
	if status, _ := run(t, &topicCmd{}, "nope"); status != subcommands.ExitFailure {
		t.Errorf("topic nope = %v, want failure", status)
	}
}
