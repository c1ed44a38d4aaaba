package stake

import "errors"

var (
	ErrInsufficientStake       = errors.New("stake below minimum")
	ErrDuplicateStake          = errors.New("duplicate stake")
	ErrClaimNotAcceptingStakes = errors.New("claim not accepting stakes")
	ErrAuthorStake             = errors.New("author may not stake on own claim")
	// ErrConfirmationPending: a submission is in flight but unconfirmed. The
	// journal entry survives, so a retry re-queries instead of resubmitting.
	ErrConfirmationPending = errors.New("escrow confirmation pending")
	// ErrEscrowMismatch: a retry asked for a different side or amount than
	// the in-flight submission. The original must settle first.
	ErrEscrowMismatch = errors.New("retry does not match in-flight escrow")
)
