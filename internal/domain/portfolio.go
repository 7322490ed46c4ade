package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Trade is a single fill applied to a holding.
// Quantity is signed: positive for buys, negative for sells.
// Cash is always the positive magnitude exchanged.
type Trade struct {
	ID       string          `json:"id"`
	Quantity decimal.Decimal `json:"quantity"`
	Cash     decimal.Decimal `json:"cash"`
	At       time.Time       `json:"at"`
}

// NewBuyTrade records the acquisition of quantity units for cash.
func NewBuyTrade(quantity, cash decimal.Decimal) Trade {
	return Trade{
		ID:       uuid.NewString(),
		Quantity: quantity,
		Cash:     cash,
		At:       time.Now().UTC(),
	}
}

// NewSellTrade records the liquidation of quantity units for cash proceeds.
func NewSellTrade(quantity, cash decimal.Decimal) Trade {
	return Trade{
		ID:       uuid.NewString(),
		Quantity: quantity.Neg(),
		Cash:     cash,
		At:       time.Now().UTC(),
	}
}

// IsBuy reports whether the trade is buy-side.
func (t Trade) IsBuy() bool {
	return t.Quantity.IsPositive()
}

// UnitCost returns the effective price per unit paid or received.
func (t Trade) UnitCost() decimal.Decimal {
	return t.Cash.Div(t.Quantity.Abs())
}

// Holding is a position in a single symbol: the total quantity held and the
// ordered trade history behind it (insertion order is chronological order).
type Holding struct {
	Total   decimal.Decimal `json:"total"`
	History []Trade         `json:"history"`
}

// AverageCost is the mean unit cost over buy-side trades only. Sells do not
// move the average.
func (h *Holding) AverageCost() (decimal.Decimal, error) {
	sum := decimal.Zero
	n := 0
	for _, t := range h.History {
		if !t.IsBuy() {
			continue
		}
		sum = sum.Add(t.UnitCost())
		n++
	}
	if n == 0 {
		return decimal.Zero, ErrNoCostBasis
	}
	return sum.Div(decimal.NewFromInt(int64(n))), nil
}

// PercentGain returns (price / averageCost - 1) * 100.
func (h *Holding) PercentGain(price decimal.Decimal) (decimal.Decimal, error) {
	avg, err := h.AverageCost()
	if err != nil {
		return decimal.Zero, err
	}
	if avg.IsZero() {
		return decimal.Zero, ErrNoCostBasis
	}
	return price.Div(avg).Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100)), nil
}

// Value returns the position value at the given price.
func (h *Holding) Value(price decimal.Decimal) decimal.Decimal {
	return h.Total.Mul(price)
}

// Portfolio is one account's ledger view: the cash balance plus the holdings
// keyed by symbol. Mutations validate first and commit second, so a returned
// error means nothing changed.
//
// Portfolio itself is not safe for concurrent use; the ledger service
// serializes access per account.
type Portfolio struct {
	Balance  decimal.Decimal
	Holdings map[string]*Holding
}

// NewPortfolio builds a portfolio from stored state. A nil holdings map is
// replaced with an empty one.
func NewPortfolio(balance decimal.Decimal, holdings map[string]*Holding) *Portfolio {
	if holdings == nil {
		holdings = make(map[string]*Holding)
	}
	return &Portfolio{Balance: balance, Holdings: holdings}
}

// Buy spends cash on the symbol at the given price and returns the quantity
// acquired. The holding is created lazily on first buy.
func (p *Portfolio) Buy(symbol string, price, cash decimal.Decimal) (decimal.Decimal, error) {
	if cash.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	if price.IsZero() || price.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	if cash.GreaterThan(p.Balance) {
		return decimal.Zero, ErrInsufficientFunds
	}

	quantity := cash.Div(price)

	h, ok := p.Holdings[symbol]
	if !ok {
		h = &Holding{Total: decimal.Zero}
		p.Holdings[symbol] = h
	}
	h.History = append(h.History, NewBuyTrade(quantity, cash))
	h.Total = h.Total.Add(quantity)
	p.Balance = p.Balance.Sub(cash)

	return quantity, nil
}

// Sell liquidates amount units of the symbol at the given price and returns
// the cash proceeds. Selling the entire position removes the holding along
// with its trade history; a later re-buy starts analytics from scratch.
func (p *Portfolio) Sell(symbol string, price, amount decimal.Decimal) (decimal.Decimal, error) {
	if len(p.Holdings) == 0 {
		return decimal.Zero, ErrNoHoldings
	}
	h, ok := p.Holdings[symbol]
	if !ok {
		return decimal.Zero, ErrInsufficientHoldings
	}
	if amount.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	if amount.GreaterThan(h.Total) {
		return decimal.Zero, ErrInsufficientHoldings
	}

	proceeds := amount.Mul(price)

	if h.Total.Sub(amount).IsZero() {
		delete(p.Holdings, symbol)
	} else {
		h.History = append(h.History, NewSellTrade(amount, proceeds))
		h.Total = h.Total.Sub(amount)
	}
	p.Balance = p.Balance.Add(proceeds)

	return proceeds, nil
}

// Symbols returns the held symbols in lexical order for stable iteration.
func (p *Portfolio) Symbols() []string {
	out := make([]string, 0, len(p.Holdings))
	for s := range p.Holdings {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
