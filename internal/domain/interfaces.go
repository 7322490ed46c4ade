package domain

import "github.com/shopspring/decimal"

// LedgerStore is the flat key-value persistence the ledger runs against.
// Balances and holdings are separate records per account; holdings are
// written back wholesale, never partially.
type LedgerStore interface {
	GetBalance(userID string) (decimal.Decimal, error)
	PutBalance(userID string, balance decimal.Decimal) error
	GetHoldings(userID string) (map[string]*Holding, error)
	PutHoldings(userID string, holdings map[string]*Holding) error
}

// QuoteSource is the read side of the quote cache.
type QuoteSource interface {
	Quote(symbol string) *Quote
	All() []*Quote
}
