package ledger

import "errors"

var (
	ErrInvalidAddress      = errors.New("invalid ledger address")
	ErrLedgerUnreachable   = errors.New("ledger unreachable")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrSigningDeclined     = errors.New("signing declined")
	ErrSubmissionRejected  = errors.New("submission rejected")
	ErrConfirmationTimeout = errors.New("confirmation timeout")
	ErrTxNotFound          = errors.New("transaction not found")
)
