package renderer

import (
	"bytes"
	"fmt"
	"time"

	"github.com/etnz/folio"
	md "github.com/nao1215/markdown"
)

// RenderJournal renders the journal of a vault as a markdown table, oldest event first.
func RenderJournal(events []folio.Event, opts Options) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1("Journal")
	doc.PlainText("")
	if len(events) == 0 {
		doc.PlainText("No events.")
		return doc.String()
	}

	table := md.TableSet{
		Alignment: []md.TableAlignment{
			md.AlignLeft,
			md.AlignLeft,
			md.AlignLeft,
		},
		Header: []string{"Date", "Event", "Details"},
		Rows:   [][]string{},
	}
	for _, ev := range events {
		table.Rows = append(table.Rows, []string{
			dateTime(time.Unix(int64(ev.When()), 0)),
			string(ev.What()),
			opts.details(ev),
		})
	}
	doc.Table(table)

	return doc.String()
}

func (o Options) details(ev folio.Event) string {
	switch e := ev.(type) {
	case folio.Initialized:
		return fmt.Sprintf("%d assets, fee %s%% a year", len(e.Assets), folio.AnnualPercent(e.FeeRate).StringFixed(2))
	case folio.Deposited:
		return fmt.Sprintf("%s deposited %s for %v shares", o.name(e.Depositor), Money(e.Amount, o.Currency), e.Shares)
	case folio.Withdrawn:
		return fmt.Sprintf("%s burnt %v shares for %s, fee %s", o.name(e.Depositor), e.Shares, Money(e.Net, o.Currency), Money(e.Fee, o.Currency))
	case folio.FeesClaimed:
		return fmt.Sprintf("%s claimed to %s", Money(e.Amount, o.Currency), o.name(e.To))
	default:
		return ev.Ref().String()
	}
}
