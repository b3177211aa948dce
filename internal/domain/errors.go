package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrAccountAlreadyExists = errors.New("account_already_exists")
	ErrAccountNotFound      = errors.New("account_not_found")
	ErrOrderNotFound        = errors.New("order_not_found")
	ErrOrderNotPending      = errors.New("order_not_pending")
	ErrSessionClosed        = errors.New("session_closed")
	ErrSymbolSuspended      = errors.New("symbol_suspended")
	ErrInvalidSymbol        = errors.New("invalid_symbol")
	ErrInvalidQuantity      = errors.New("invalid_quantity")
	ErrOrderValueTooSmall   = errors.New("order_value_too_small")
	ErrPriceOutOfBand       = errors.New("price_out_of_band")
	ErrPriceLimitBlocked    = errors.New("price_limit_blocked")
	ErrInsufficientFunds    = errors.New("insufficient_funds")
	ErrInsufficientShares   = errors.New("insufficient_shares")
	ErrWebhookNotFound      = errors.New("webhook_not_found")

	// Transient infrastructure failures. Callers retry with bounded
	// backoff; ledger state is never mutated on these paths.
	ErrQuoteFetchTimeout  = errors.New("quote_fetch_timeout")
	ErrPersistenceTimeout = errors.New("persistence_timeout")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
