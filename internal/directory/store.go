package directory

import "context"

// Store describes persistence operations required by the directory. The
// store enforces user-id and roll-number uniqueness and owns the only state
// needing cross-request coordination: the session-token field.
type Store interface {
	// Create persists a new account. Uniqueness collisions surface as
	// ErrDuplicateUserID or ErrDuplicateRollNumber.
	Create(ctx context.Context, acc *Account) error

	Find(ctx context.Context, id string) (*Account, error)
	FindByUserID(ctx context.Context, userID string) (*Account, error)

	// FindExisting returns an account matching either key, or ErrNotFound
	// when both are free. Used for duplicate detection before commit.
	FindExisting(ctx context.Context, userID, rollNumber string) (*Account, error)

	List(ctx context.Context) ([]*Account, error)
	Update(ctx context.Context, id string, upd Update) (*Account, error)
	Delete(ctx context.Context, id string) error

	// ClaimSession stores a fresh session token. With exclusive set the
	// update is conditional on no token being held (compare-and-set): a
	// held session yields ErrSessionHeld and leaves the stored token
	// untouched. Without exclusive the token is rotated unconditionally.
	ClaimSession(ctx context.Context, id, token string, exclusive bool) error

	// ClearSession drops the stored session token. Clearing an account
	// with no session succeeds silently.
	ClearSession(ctx context.Context, id string) error
}
