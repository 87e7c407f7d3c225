// Package session implements the exclusive-session login protocol: opaque
// session tokens claimed against the directory store and handed out inside
// signed envelopes. Students hold at most one live session; a second login
// is refused until the first is released.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rosterd.org/internal/audit"
	"rosterd.org/internal/auth"
	"rosterd.org/internal/directory"
	"rosterd.org/internal/obs"
)

var (
	// ErrInvalidCredentials covers both unknown user ids and wrong
	// passwords; callers must not reveal which one failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSessionHeld means the account already holds a live session.
	ErrSessionHeld = errors.New("session already held")

	// ErrStaleSession means the envelope is well signed but its session
	// token no longer matches the stored one.
	ErrStaleSession = errors.New("stale session")
)

// Origin describes where a login request came from. Both fields are
// best-effort and recorded in the action log only.
type Origin struct {
	IP       string
	SystemID string
}

// Grant is a successful login: the account view, the signed envelope and
// its expiry.
type Grant struct {
	Account   directory.Summary
	Token     string
	ExpiresAt time.Time
}

// Authority runs logins and logouts against the directory store and keeps
// the action log current.
type Authority struct {
	store directory.Store
	sink  audit.Logger
	creds auth.Comparator
	ttl   time.Duration
	now   func() time.Time
}

// AuthorityOption customizes an Authority.
type AuthorityOption func(*Authority)

// WithTTL overrides the envelope lifetime.
func WithTTL(ttl time.Duration) AuthorityOption {
	return func(a *Authority) { a.ttl = ttl }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) AuthorityOption {
	return func(a *Authority) { a.now = now }
}

// NewAuthority wires an Authority over the given store, action-log sink and
// password comparator.
func NewAuthority(store directory.Store, sink audit.Logger, creds auth.Comparator, opts ...AuthorityOption) *Authority {
	a := &Authority{
		store: store,
		sink:  sink,
		creds: creds,
		ttl:   auth.DefaultTTL,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Login verifies the credential pair and, when it holds, claims a fresh
// session token and signs an envelope around it. Student claims are
// exclusive: a live session rejects the attempt and the caller is told so.
func (a *Authority) Login(ctx context.Context, userID, password string, origin Origin) (*Grant, error) {
	acc, err := a.store.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			a.append(ctx, &audit.Entry{
				ActorID: userID,
				Action:  "login_attempt",
				Details: "Failed login: unknown user id",
			}, origin)
			obs.ObserveLogin("invalid_credentials")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find account: %w", err)
	}

	if err := a.creds.Verify(acc.PasswordHash, password); err != nil {
		a.append(ctx, &audit.Entry{
			ActorID: acc.UserID,
			Action:  "login_attempt",
			Details: "Failed login: wrong password",
		}, origin)
		obs.ObserveLogin("invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	token := uuid.NewString()
	exclusive := acc.Role == directory.RoleStudent
	if err := a.store.ClaimSession(ctx, acc.ID, token, exclusive); err != nil {
		if errors.Is(err, directory.ErrSessionHeld) {
			a.append(ctx, &audit.Entry{
				ActorID: acc.UserID,
				Action:  "login_attempt",
				Details: "ALERT: student already logged in elsewhere",
			}, origin)
			obs.ObserveLogin("concurrent_session")
			return nil, ErrSessionHeld
		}
		return nil, fmt.Errorf("claim session: %w", err)
	}

	expiresAt := a.now().Add(a.ttl)
	signed, err := auth.GenerateToken(acc.ID, acc.UserID, string(acc.Role), token, a.ttl)
	if err != nil {
		// The claim must not outlive a login that never produced an
		// envelope, or the account would be locked out.
		if clearErr := a.store.ClearSession(ctx, acc.ID); clearErr != nil {
			obs.Warn("failed to release session claim", map[string]any{
				"account_id": acc.ID,
				"error":      clearErr.Error(),
			})
		}
		return nil, fmt.Errorf("sign envelope: %w", err)
	}

	a.append(ctx, &audit.Entry{
		ActorID: acc.UserID,
		Action:  "login",
		Details: fmt.Sprintf("User logged in from IP: %s, System: %s", origin.IP, origin.SystemID),
	}, origin)
	obs.ObserveLogin("success")

	summary := acc.Summary()
	return &Grant{Account: summary, Token: signed, ExpiresAt: expiresAt}, nil
}

// Logout releases the principal's session claim. Logging out twice is not
// an error; the second call is a no-op on the stored token.
func (a *Authority) Logout(ctx context.Context, p auth.Principal) error {
	acc, err := a.store.Find(ctx, p.AccountID)
	if err != nil {
		return err
	}
	if err := a.store.ClearSession(ctx, acc.ID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	a.append(ctx, &audit.Entry{
		ActorID: acc.UserID,
		Action:  "logout",
		Details: "User logged out and session token cleared",
	}, Origin{})
	return nil
}

// Validate checks a raw envelope and, for students, that its session token
// is still the stored one. A well-signed envelope whose token was displaced
// by a newer login or cleared by logout yields ErrStaleSession.
func (a *Authority) Validate(ctx context.Context, raw string) (auth.Principal, error) {
	claims, err := auth.ParseAndValidate(raw)
	if err != nil {
		return auth.Principal{}, err
	}
	p := auth.Principal{
		AccountID:    claims.Subject,
		UserID:       claims.UserID,
		Role:         claims.Role,
		SessionToken: claims.SessionToken,
	}
	if p.Role == string(directory.RoleStudent) {
		acc, err := a.store.Find(ctx, p.AccountID)
		if err != nil {
			if errors.Is(err, directory.ErrNotFound) {
				return auth.Principal{}, ErrStaleSession
			}
			return auth.Principal{}, fmt.Errorf("find account: %w", err)
		}
		if acc.SessionToken != p.SessionToken {
			return auth.Principal{}, ErrStaleSession
		}
	}
	return p, nil
}

func (a *Authority) append(ctx context.Context, entry *audit.Entry, origin Origin) {
	if a.sink == nil {
		return
	}
	entry.IP = origin.IP
	entry.SystemID = origin.SystemID
	entry.OccurredAt = a.now()
	_ = a.sink.Append(ctx, entry)
}
