package service

import (
	"fmt"
	"strings"
	"sync"

	"coinbot/internal/domain"

	"github.com/shopspring/decimal"
)

// Ledger executes the economy commands: each operation is an isolated
// read-modify-write against the store, serialized per account so concurrent
// commands for the same user can never interleave and lose updates.
// Distinct accounts proceed in parallel.
type Ledger struct {
	store  domain.LedgerStore
	quotes domain.QuoteSource

	mu       sync.Mutex
	accounts map[string]*sync.Mutex
}

// NewLedger creates a new Ledger instance
func NewLedger(store domain.LedgerStore, quotes domain.QuoteSource) *Ledger {
	return &Ledger{
		store:    store,
		quotes:   quotes,
		accounts: make(map[string]*sync.Mutex),
	}
}

// accountLock returns the mutex guarding one account, creating it lazily.
func (l *Ledger) accountLock(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.accounts[userID]
	if !ok {
		m = &sync.Mutex{}
		l.accounts[userID] = m
	}
	return m
}

// BuyReceipt confirms a completed buy.
type BuyReceipt struct {
	Symbol     string
	Name       string
	Quantity   decimal.Decimal
	NewBalance decimal.Decimal
}

// SellReceipt confirms a completed sell.
type SellReceipt struct {
	Symbol     string
	Amount     decimal.Decimal
	Proceeds   decimal.Decimal
	NewBalance decimal.Decimal
}

// Position is one row of a profile.
type Position struct {
	Symbol  string
	Total   decimal.Decimal
	AvgCost decimal.Decimal
	PctGain decimal.Decimal
	Price   decimal.Decimal
	Value   decimal.Decimal
}

// Profile is the full analytics view of an account.
type Profile struct {
	Positions []Position
	NetValue  decimal.Decimal
	Balance   decimal.Decimal
}

// PositionView is the single-symbol balance view.
type PositionView struct {
	Quote   *domain.Quote
	Total   decimal.Decimal
	PctGain decimal.Decimal
}

// HistoryEntry is one trade attributed to its symbol.
type HistoryEntry struct {
	Symbol string
	Trade  domain.Trade
}

// Buy spends cash on a symbol at the current quote price.
func (l *Ledger) Buy(userID, symbol string, cash decimal.Decimal) (*BuyReceipt, error) {
	if cash.IsNegative() {
		return nil, domain.ErrInvalidAmount
	}

	symbol = strings.ToUpper(symbol)
	quote := l.quotes.Quote(symbol)
	if quote == nil {
		return nil, fmt.Errorf("%s: %w", symbol, domain.ErrUnknownSymbol)
	}

	lock := l.accountLock(userID)
	lock.Lock()
	defer lock.Unlock()

	p, err := l.loadPortfolio(userID)
	if err != nil {
		return nil, err
	}

	quantity, err := p.Buy(symbol, quote.Price, cash)
	if err != nil {
		return nil, err
	}

	if err := l.persist(userID, p); err != nil {
		return nil, err
	}

	return &BuyReceipt{
		Symbol:     symbol,
		Name:       quote.Name,
		Quantity:   quantity,
		NewBalance: p.Balance,
	}, nil
}

// Sell liquidates part of a holding. amount is either a literal quantity or
// a percentage of the held total with a trailing '%'.
func (l *Ledger) Sell(userID, symbol, amount string) (*SellReceipt, error) {
	symbol = strings.ToUpper(symbol)
	quote := l.quotes.Quote(symbol)
	if quote == nil {
		return nil, fmt.Errorf("%s: %w", symbol, domain.ErrUnknownSymbol)
	}

	lock := l.accountLock(userID)
	lock.Lock()
	defer lock.Unlock()

	p, err := l.loadPortfolio(userID)
	if err != nil {
		return nil, err
	}

	if len(p.Holdings) == 0 {
		return nil, domain.ErrNoHoldings
	}
	h, ok := p.Holdings[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, domain.ErrInsufficientHoldings)
	}

	resolved, err := ResolveAmount(amount, h.Total)
	if err != nil {
		return nil, err
	}

	proceeds, err := p.Sell(symbol, quote.Price, resolved)
	if err != nil {
		return nil, err
	}

	if err := l.persist(userID, p); err != nil {
		return nil, err
	}

	return &SellReceipt{
		Symbol:     symbol,
		Amount:     resolved,
		Proceeds:   proceeds,
		NewBalance: p.Balance,
	}, nil
}

// ResolveAmount parses a literal quantity or a trailing-'%' expression
// resolved against the held total.
func ResolveAmount(amount string, total decimal.Decimal) (decimal.Decimal, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return decimal.Zero, domain.ErrInvalidAmount
	}

	if strings.HasSuffix(amount, "%") {
		pct, err := decimal.NewFromString(strings.TrimSuffix(amount, "%"))
		if err != nil {
			return decimal.Zero, fmt.Errorf("%q: %w", amount, domain.ErrInvalidAmount)
		}
		return total.Mul(pct.Div(decimal.NewFromInt(100))), nil
	}

	qty, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q: %w", amount, domain.ErrInvalidAmount)
	}
	return qty, nil
}

// Profile computes per-symbol analytics and the net account value.
func (l *Ledger) Profile(userID string) (*Profile, error) {
	lock := l.accountLock(userID)
	lock.Lock()
	defer lock.Unlock()

	p, err := l.loadPortfolio(userID)
	if err != nil {
		return nil, err
	}
	if len(p.Holdings) == 0 {
		return nil, domain.ErrNoHoldings
	}

	profile := &Profile{Balance: p.Balance, NetValue: decimal.Zero}

	for _, symbol := range p.Symbols() {
		h := p.Holdings[symbol]

		quote := l.quotes.Quote(symbol)
		if quote == nil {
			return nil, fmt.Errorf("%s: %w", symbol, domain.ErrUnknownSymbol)
		}

		avg, err := h.AverageCost()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", symbol, err)
		}
		gain, err := h.PercentGain(quote.Price)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", symbol, err)
		}

		value := h.Value(quote.Price)
		profile.Positions = append(profile.Positions, Position{
			Symbol:  symbol,
			Total:   h.Total,
			AvgCost: avg,
			PctGain: gain,
			Price:   quote.Price,
			Value:   value,
		})
		profile.NetValue = profile.NetValue.Add(value)
	}

	return profile, nil
}

// BalanceOf returns the held total and percent gain for one symbol.
func (l *Ledger) BalanceOf(userID, symbol string) (*PositionView, error) {
	symbol = strings.ToUpper(symbol)
	quote := l.quotes.Quote(symbol)
	if quote == nil {
		return nil, fmt.Errorf("%s: %w", symbol, domain.ErrUnknownSymbol)
	}

	lock := l.accountLock(userID)
	lock.Lock()
	defer lock.Unlock()

	holdings, err := l.store.GetHoldings(userID)
	if err != nil {
		return nil, err
	}
	if len(holdings) == 0 {
		return nil, domain.ErrNoHoldings
	}
	h, ok := holdings[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, domain.ErrInsufficientHoldings)
	}

	gain, err := h.PercentGain(quote.Price)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", symbol, err)
	}

	return &PositionView{Quote: quote, Total: h.Total, PctGain: gain}, nil
}

// History returns every recorded trade grouped per symbol in insertion order.
func (l *Ledger) History(userID string) ([]HistoryEntry, error) {
	lock := l.accountLock(userID)
	lock.Lock()
	defer lock.Unlock()

	holdings, err := l.store.GetHoldings(userID)
	if err != nil {
		return nil, err
	}
	if len(holdings) == 0 {
		return nil, domain.ErrNoHoldings
	}

	p := domain.NewPortfolio(decimal.Zero, holdings)
	var entries []HistoryEntry
	for _, symbol := range p.Symbols() {
		for _, t := range holdings[symbol].History {
			entries = append(entries, HistoryEntry{Symbol: symbol, Trade: t})
		}
	}
	return entries, nil
}

// Balance returns the cash balance of an account (zero if unknown).
func (l *Ledger) Balance(userID string) (decimal.Decimal, error) {
	return l.store.GetBalance(userID)
}

// Deposit credits cash to an account and returns the new balance.
func (l *Ledger) Deposit(userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() || amount.IsZero() {
		return decimal.Zero, domain.ErrInvalidAmount
	}

	lock := l.accountLock(userID)
	lock.Lock()
	defer lock.Unlock()

	bal, err := l.store.GetBalance(userID)
	if err != nil {
		return decimal.Zero, err
	}
	bal = bal.Add(amount)
	if err := l.store.PutBalance(userID, bal); err != nil {
		return decimal.Zero, err
	}
	return bal, nil
}

func (l *Ledger) loadPortfolio(userID string) (*domain.Portfolio, error) {
	bal, err := l.store.GetBalance(userID)
	if err != nil {
		return nil, err
	}
	holdings, err := l.store.GetHoldings(userID)
	if err != nil {
		return nil, err
	}
	return domain.NewPortfolio(bal, holdings), nil
}

// persist writes both records of a command. Validation has already passed
// by the time this runs, so an error here is a storage fault, not a rejection.
func (l *Ledger) persist(userID string, p *domain.Portfolio) error {
	if err := l.store.PutHoldings(userID, p.Holdings); err != nil {
		return err
	}
	return l.store.PutBalance(userID, p.Balance)
}
