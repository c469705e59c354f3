package ledger

import "errors"

var (
	// ErrNotFound means no account exists for the given identifier.
	ErrNotFound = errors.New("account not found")

	// ErrDuplicateIdentifier means an account with the identifier already exists.
	ErrDuplicateIdentifier = errors.New("identifier already in use")

	// ErrInvalidAmount means the amount is not a positive multiple of the share unit.
	ErrInvalidAmount = errors.New("amount must be a positive multiple of the share unit")

	// ErrInvalidTransfer means sender and recipient are the same account.
	ErrInvalidTransfer = errors.New("cannot transfer to the same account")

	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidField means the field is not on the administrative edit allow-list.
	ErrInvalidField = errors.New("field is not editable")

	ErrInvalidEmail = errors.New("invalid email format")

	// ErrMissingField means a required registration field was absent.
	ErrMissingField = errors.New("required field missing")

	// ErrAllocationExhausted means the allocator ran out of retry attempts.
	ErrAllocationExhausted = errors.New("identifier space exhausted")
)
