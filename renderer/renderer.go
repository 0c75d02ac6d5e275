package renderer

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"text/template"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/ethereum/go-ethereum/common"
	"github.com/etnz/folio"
)

//go:embed *.md
var templates embed.FS

// Options holds configuration for rendering vault reports.
type Options struct {
	// Currency is the ISO code used to display base currency values (e.g. "USD").
	// Empty means plain amounts.
	Currency string
	// Symbols names known tokens and accounts. Unknown addresses are printed in hex.
	Symbols map[common.Address]string
}

// RenderSummary renders a vault snapshot to a markdown string.
func RenderSummary(s folio.Summary, opts Options) string {
	partials := map[string]string{
		"summary_title":    "summary_title.md",
		"summary_holdings": "summary_holdings.md",
		"summary_fees":     "summary_fees.md",
		"summary_accounts": "summary_accounts.md",
	}
	if !s.TotalShares.IsPositive() {
		// Nothing to list.
		partials["summary_accounts"] = ""
	}
	return renderTemplate("summary", "summary.md", partials, s, opts)
}

// RenderAccount renders a depositor position.
func RenderAccount(a folio.Account, opts Options) string {
	return renderTemplate("account", "account.md", nil, a, opts)
}

// RenderDeposit renders the receipt of a deposit.
func RenderDeposit(e folio.Deposited, opts Options) string {
	partials := map[string]string{"legs": "legs.md"}
	return renderTemplate("deposit", "deposit.md", partials, e, opts)
}

// RenderWithdrawal renders the receipt of a withdrawal.
func RenderWithdrawal(e folio.Withdrawn, opts Options) string {
	partials := map[string]string{"legs": "legs.md"}
	return renderTemplate("withdrawal", "withdrawal.md", partials, e, opts)
}

// RenderClaim renders the receipt of a fee claim.
func RenderClaim(e folio.FeesClaimed, opts Options) string {
	return renderTemplate("claim", "claim.md", nil, e, opts)
}

// Money formats a base currency amount in 'currency'. The amount is floored
// to the currency minor unit. An empty currency prints the plain amount.
func Money(a folio.Amount, currency string) string {
	if currency == "" {
		return a.String()
	}
	// to get a never nil currency I need to call the Money constructor
	cur := *money.New(0, currency).Currency()
	dec := a.Decimal().Shift(int32(cur.Fraction))
	return cur.Formatter().Format(dec.IntPart())
}

func (o Options) funcs() template.FuncMap {
	return template.FuncMap{
		"name":    o.name,
		"base":    func(a folio.Amount) string { return Money(a, o.Currency) },
		"amount":  func(a folio.Amount) string { return a.String() },
		"percent": func(rate folio.Amount) string { return folio.AnnualPercent(rate).StringFixed(2) + "%" },
		"date":    dateTime,
		"unix":    func(sec uint64) string { return dateTime(time.Unix(int64(sec), 0)) },
		"set":     func(a common.Address) bool { return a != (common.Address{}) },
		"path":    o.path,
	}
}

func dateTime(t time.Time) string { return t.UTC().Format(time.DateTime) }

// name returns the symbol of an address, or its hex form.
func (o Options) name(a common.Address) string {
	if s, ok := o.Symbols[a]; ok {
		return s
	}
	return a.Hex()
}

func (o Options) path(p []common.Address) string {
	if len(p) == 0 {
		return "skipped"
	}
	names := make([]string, len(p))
	for i, a := range p {
		names[i] = o.name(a)
	}
	return strings.Join(names, " > ")
}

// renderTemplate is a generic utility to render a main template that depends on several partials.
func renderTemplate(templateName, mainFile string, partials map[string]string, data any, opts Options) string {
	mainContent, err := fs.ReadFile(templates, mainFile)
	if err != nil {
		return fmt.Sprintf("error reading main template %q: %v", mainFile, err)
	}

	tmpl, err := template.New(templateName).Funcs(opts.funcs()).Parse(string(mainContent))
	if err != nil {
		return fmt.Sprintf("error parsing main template %q: %v", mainFile, err)
	}

	for name, file := range partials {
		var content []byte
		// An empty file name is a valid case, resulting in an empty template.
		if file != "" {
			var readErr error
			content, readErr = fs.ReadFile(templates, file)
			if readErr != nil {
				return fmt.Sprintf("error reading partial template %q: %v", file, readErr)
			}
		}
		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Sprintf("error parsing partial template %q for %q: %v", file, name, err)
		}
	}

	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, templateName, data); err != nil {
		return fmt.Sprintf("error executing template %q: %v", templateName, err)
	}
	return b.String()
}
