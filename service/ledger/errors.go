package ledger

import "errors"

// Error kinds returned by the ledger. Callers match them with errors.Is.
var (
	ErrAlreadyInitialized = errors.New("access controller already initialized")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidAmount      = errors.New("amount must be greater than zero")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInvalidRecipient   = errors.New("invalid recipient")
	ErrInvalidAccount     = errors.New("account id is required")

	// ErrBalanceOverflow is returned when provisioning would overflow an account balance.
	ErrBalanceOverflow = errors.New("balance overflow")
)

// Reason maps an error to a stable label suitable for metrics and logs.
// Errors that are not ledger error kinds map to "error".
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAlreadyInitialized):
		return "already_initialized"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrInvalidRecipient):
		return "invalid_recipient"
	case errors.Is(err, ErrInvalidAccount):
		return "invalid_account"
	case errors.Is(err, ErrBalanceOverflow):
		return "balance_overflow"
	default:
		return "error"
	}
}

// IsRejection reports whether err is a ledger rejection rather than an
// infrastructure failure.
func IsRejection(err error) bool {
	r := Reason(err)
	return r != "ok" && r != "error"
}
