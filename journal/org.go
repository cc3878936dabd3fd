package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/positions/fifo"
	"github.com/rustyeddy/positions/tags"
	"github.com/shopspring/decimal"
)

// FormatClosedOrg renders a closed trade as an Org-mode block. Structured
// facts go into the PROPERTIES drawer; the narrative headings are left for
// the journal author.
func FormatClosedOrg(c fifo.ClosedTrade) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** %s %s %s%s\n", c.Symbol, c.Direction, c.Quantity, orgTags(c.Tags))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":ACCOUNT: %s\n", c.AccountID)
	fmt.Fprintf(&b, ":POSITION_KEY: %s\n", c.PositionKey)
	fmt.Fprintf(&b, ":ASSET_TYPE: %s\n", c.AssetType)
	fmt.Fprintf(&b, ":QUANTITY: %s\n", c.Quantity)
	fmt.Fprintf(&b, ":ENTRY_PRICE: %s\n", c.EntryPrice.StringFixed(4))
	fmt.Fprintf(&b, ":EXIT_PRICE: %s\n", c.ExitPrice.StringFixed(4))
	fmt.Fprintf(&b, ":OPEN_TIME: %s\n", c.OpenedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":CLOSE_TIME: %s\n", c.ClosedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":REALIZED_PL: %s\n", c.PnL.StringFixed(2))
	if c.Expired {
		b.WriteString(":EXPIRED: t\n")
	}
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Thesis\n- \n\n")
	b.WriteString("*** Review\n- \n")
	return b.String()
}

// FormatClosedTradesOrg renders closed trades separated by blank lines,
// followed by a realized total.
func FormatClosedTradesOrg(closed []fifo.ClosedTrade) string {
	var b strings.Builder
	total := decimal.Zero
	for i, c := range closed {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatClosedOrg(c))
		total = total.Add(c.PnL)
	}
	if len(closed) > 0 {
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "# realized: %s over %d closed trades\n", total.StringFixed(2), len(closed))
	return b.String()
}

// FormatOpenOrg renders open positions as an Org table.
func FormatOpenOrg(open []fifo.OpenPosition, unrealizedCost decimal.Decimal) string {
	var b strings.Builder
	b.WriteString("| account | symbol | qty | entry | opened | notional | tags |\n")
	b.WriteString("|-\n")
	for _, p := range open {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
			p.AccountID,
			p.Symbol,
			p.Quantity,
			p.EntryPrice.StringFixed(4),
			p.OpenedAt.UTC().Format("2006-01-02"),
			p.Notional.StringFixed(2),
			strings.TrimSpace(orgTags(p.Tags)),
		)
	}
	fmt.Fprintf(&b, "# unrealized cost: %s\n", unrealizedCost.StringFixed(2))
	return b.String()
}

func orgTags(ts []tags.Tag) string {
	if len(ts) == 0 {
		return ""
	}
	names := make([]string, 0, len(ts))
	for _, t := range ts {
		names = append(names, strings.ReplaceAll(t.Name, " ", "_"))
	}
	return " :" + strings.Join(names, ":") + ":"
}
