package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a network-related error that may be retriable
type NetworkError struct {
	Op        string // Operation that failed (e.g., "connect", "read", "fetch")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Ledger errors. All of them are detected before any mutation is applied,
// so a rejected buy or sell never leaves partial state behind.
var (
	// ErrUnknownSymbol is returned when no quote exists for a symbol.
	ErrUnknownSymbol = errors.New("unknown symbol")

	// ErrNoHoldings is returned when the account has never invested.
	ErrNoHoldings = errors.New("no holdings")

	// ErrInsufficientFunds is returned when a buy exceeds the cash balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientHoldings is returned when a sell exceeds the held total
	// or the symbol was never bought.
	ErrInsufficientHoldings = errors.New("insufficient holdings")

	// ErrInvalidAmount is returned for negative or unparsable amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNoCostBasis is returned when a holding has no buy-side trades to
	// average over. The creation invariant should make this unreachable,
	// but the computation refuses to divide by zero regardless.
	ErrNoCostBasis = errors.New("no cost basis")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
