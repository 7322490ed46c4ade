package bot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"coinbot/internal/domain"
	"coinbot/internal/infra"
	"coinbot/internal/service"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

const quotesPerPage = 99

// renderError maps ledger errors to the user-facing reply text.
func renderError(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnknownSymbol):
		return fmt.Sprintf("Couldn't find %s", errSymbol(err))
	case errors.Is(err, domain.ErrNoHoldings):
		return "You haven't invested."
	case errors.Is(err, domain.ErrInsufficientHoldings):
		if sym := errSymbol(err); sym != "" {
			return fmt.Sprintf("You don't have enough %s", sym)
		}
		return "You don't have enough of that crypto"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "You don't have enough cash"
	case errors.Is(err, domain.ErrInvalidAmount):
		return "You can't buy or sell a negative amount of crypto"
	case errors.Is(err, domain.ErrNoCostBasis):
		return "Couldn't compute the cost basis for that holding"
	default:
		return "Something went wrong, try again later"
	}
}

// errSymbol extracts the "SYM: ..." prefix ledger errors carry.
func errSymbol(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ":"); i > 0 && i <= 10 {
		return msg[:i]
	}
	return ""
}

func money(d decimal.Decimal) string {
	f, _ := d.Float64()
	return humanize.CommafWithDigits(f, 2)
}

func supply(d decimal.Decimal) string {
	f, _ := d.Float64()
	return humanize.CommafWithDigits(f, 0)
}

func signedPct(d decimal.Decimal) string {
	if d.IsNegative() {
		return d.StringFixed(2) + "%"
	}
	return "+" + d.StringFixed(2) + "%"
}

func renderQuote(q *domain.Quote) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s]\n\n", q.Name, q.Symbol)
	fmt.Fprintf(&sb, "Price:\n$%s\n\n", money(q.Price))
	fmt.Fprintf(&sb, "Circulating/Max Supply:\n%s/%s\n\n", supply(q.CirculatingSupply), supply(q.MaxSupply))
	fmt.Fprintf(&sb, "Market Cap:\n$%s\n\n", money(q.MarketCap))
	fmt.Fprintf(&sb, "24h Change:\n%s\n\n", signedPct(q.Change24h))
	fmt.Fprintf(&sb, "24h Volume:\n%s\n\n", money(q.Volume24h))
	fmt.Fprintf(&sb, "Chart: %s", q.SparklineURL())
	return sb.String()
}

func renderBuy(r *service.BuyReceipt) string {
	return fmt.Sprintf("You bought %s %s\nBalance: $%s", r.Quantity.StringFixed(2), r.Name, money(r.NewBalance))
}

func renderSell(r *service.SellReceipt) string {
	return fmt.Sprintf(
		"Sold %s %s for $%s\nBalance: $%s",
		r.Amount.StringFixed(2), r.Symbol, r.Proceeds.StringFixed(2), money(r.NewBalance),
	)
}

func renderPositionView(v *service.PositionView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s]\n\n", v.Quote.Name, v.Quote.Symbol)
	fmt.Fprintf(&sb, "Bal: %s\n\n", v.Total.String())
	fmt.Fprintf(&sb, "Percent Gain/Loss:\n%s\n\n", signedPct(v.PctGain))
	fmt.Fprintf(&sb, "Price:\n$%s\n\n", money(v.Quote.Price))
	fmt.Fprintf(&sb, "24h Change:\n%s", signedPct(v.Quote.Change24h))
	return sb.String()
}

func renderProfile(p *service.Profile) string {
	var sb strings.Builder
	sb.WriteString(" Name:                 Price:             Percent Gain:\n")

	for _, pos := range p.Positions {
		sign := "+"
		if pos.PctGain.IsNegative() {
			sign = "-"
		}
		fmt.Fprintf(&sb, "%s %4s: %-14s Price: $%-10s %s%%\n",
			sign, pos.Symbol, pos.Total.StringFixed(2), pos.Price.StringFixed(2), pos.PctGain.StringFixed(2))
	}

	fmt.Fprintf(&sb, "\nNet Value: $%s\nCash: $%s", p.NetValue.StringFixed(2), money(p.Balance))
	return sb.String()
}

func renderHistory(entries []service.HistoryEntry) string {
	var sb strings.Builder
	last := ""
	for _, e := range entries {
		if e.Symbol != last {
			if last != "" {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "%s:\n", e.Symbol)
			last = e.Symbol
		}
		kind := "Bought"
		if !e.Trade.IsBuy() {
			kind = "Sold"
		}
		fmt.Fprintf(&sb, "%s %s for $%s\n", kind, e.Trade.Quantity.Abs().StringFixed(2), e.Trade.Cash.StringFixed(2))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderQuotePage(pages [][]*domain.Quote, page int) string {
	if len(pages) == 0 {
		return "No quotes cached yet"
	}
	if page < 1 {
		page = 1
	}
	if page > len(pages) {
		page = len(pages)
	}

	var sb strings.Builder
	for i, q := range pages[page-1] {
		fmt.Fprintf(&sb, "%s: $%s", q.Symbol, q.Price.StringFixed(2))
		if (i+1)%3 == 0 {
			sb.WriteString("\n")
		} else {
			sb.WriteString("\t")
		}
	}
	fmt.Fprintf(&sb, "\nPage %d/%d", page, len(pages))
	return sb.String()
}

func renderStats(s infra.StatsSnapshot) string {
	stream := "down"
	if s.StreamConnected {
		stream = "up"
	}
	return fmt.Sprintf(
		"Uptime: %s\nCommands: %d (%d errors)\nSnapshots: %d\nTicks: %d\nStream: %s",
		s.Uptime.Round(time.Second), s.CommandsHandled, s.CommandErrors, s.SnapshotsFetched, s.TicksApplied, stream,
	)
}

func renderBootTimes(times []float64) string {
	if len(times) == 0 {
		return "No boot times found"
	}

	sum, slowest, fastest := 0.0, times[0], times[0]
	for _, t := range times {
		sum += t
		if t > slowest {
			slowest = t
		}
		if t < fastest {
			fastest = t
		}
	}

	return fmt.Sprintf(
		"Average: %.5fs\nSlowest: %.5fs\nFastest: %.5fs",
		sum/float64(len(times)), slowest, fastest,
	)
}
