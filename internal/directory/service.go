package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rosterd.org/internal/audit"
	"rosterd.org/internal/auth"
	"rosterd.org/internal/ids"
	"rosterd.org/internal/ingest"
	"rosterd.org/internal/obs"
)

// Service is the directory commit engine: it validates creation requests,
// enforces uniqueness, persists accounts and reports per-record outcomes.
type Service struct {
	store Store
	sink  audit.Logger
	creds auth.Comparator
	now   func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the commit engine.
func NewService(store Store, sink audit.Logger, creds auth.Comparator, opts ...ServiceOption) *Service {
	s := &Service{
		store: store,
		sink:  sink,
		creds: creds,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the underlying account store for collaborators that need
// read access (the session authority, admin bootstrap).
func (s *Service) Store() Store { return s.store }

// Register provisions a single account atomically: any validation or
// uniqueness failure rejects the whole request.
func (s *Service) Register(ctx context.Context, actor string, req CreateRequest) (Summary, error) {
	if err := normalizeRequest(&req); err != nil {
		return Summary{}, err
	}
	acc, err := s.commit(ctx, req)
	if err != nil {
		return Summary{}, err
	}
	s.logCreation(ctx, actor, acc, false)
	obs.ObserveProvisioned("individual")
	return acc.Summary(), nil
}

// BulkProvision processes normalized requests strictly in input order.
// Each record is its own transactional unit: a rejection or persistence
// failure never aborts the remaining records. Duplicate checks consider
// records committed earlier in the same batch as well as the pre-batch
// store state. Cancellation mid-batch leaves committed records committed.
func (s *Service) BulkProvision(ctx context.Context, actor string, records []ingest.RawRecord) Outcome {
	outcome := Outcome{Created: []Summary{}, Errors: []Rejection{}}
	committedUsers := make(map[string]struct{})
	committedRolls := make(map[string]struct{})

	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		req, err := Normalize(rec)
		if err != nil {
			outcome.reject(rec.Text("user_id"), err)
			continue
		}
		if _, dup := committedUsers[req.UserID]; dup {
			outcome.reject(req.UserID, ErrDuplicateUserID)
			continue
		}
		if _, dup := committedRolls[req.RollNumber]; dup {
			outcome.reject(req.UserID, ErrDuplicateRollNumber)
			continue
		}

		acc, err := s.commit(ctx, req)
		if err != nil {
			outcome.reject(req.UserID, err)
			continue
		}
		committedUsers[acc.UserID] = struct{}{}
		committedRolls[acc.RollNumber] = struct{}{}
		s.logCreation(ctx, actor, acc, true)
		obs.ObserveProvisioned("bulk")
		outcome.Created = append(outcome.Created, acc.Summary())
	}
	return outcome
}

// commit checks uniqueness and persists one account.
func (s *Service) commit(ctx context.Context, req CreateRequest) (*Account, error) {
	existing, err := s.store.FindExisting(ctx, req.UserID, req.RollNumber)
	if err == nil {
		if existing.UserID == req.UserID {
			return nil, ErrDuplicateUserID
		}
		return nil, ErrDuplicateRollNumber
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := s.creds.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash credential: %w", err)
	}
	now := s.now().UTC()
	acc := &Account{
		ID:           ids.New(),
		Name:         req.Name,
		UserID:       req.UserID,
		RollNumber:   req.RollNumber,
		Role:         req.Role,
		PasswordHash: hash,
		Batch:        req.Batch,
		Semester:     req.Semester,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// The store may still observe a collision here under a concurrent
	// registration; it surfaces as the matching duplicate error.
	if err := s.store.Create(ctx, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// List returns credential-free summaries of every account.
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	accounts, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]Summary, 0, len(accounts))
	for _, acc := range accounts {
		summaries = append(summaries, acc.Summary())
	}
	return summaries, nil
}

// UpdateAccount applies allow-listed field changes. Role and batch values
// are validated against their allowed sets before touching the store.
func (s *Service) UpdateAccount(ctx context.Context, actor, id string, upd Update) (Summary, error) {
	if upd.Role != nil {
		switch *upd.Role {
		case RoleAdmin, RoleFaculty, RoleStudent:
		default:
			return Summary{}, ErrInvalidRole
		}
	}
	if upd.Batch != nil && *upd.Batch != "" && !ValidBatch(*upd.Batch) {
		return Summary{}, ErrInvalidBatch
	}
	acc, err := s.store.Update(ctx, id, upd)
	if err != nil {
		return Summary{}, err
	}
	s.append(ctx, &audit.Entry{
		ActorID: actor,
		Action:  "update_user",
		Details: fmt.Sprintf("Updated user %s (%s)", acc.UserID, acc.Role),
	})
	return acc.Summary(), nil
}

// DeleteAccount removes an account by id.
func (s *Service) DeleteAccount(ctx context.Context, actor, id string) error {
	acc, err := s.store.Find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.append(ctx, &audit.Entry{
		ActorID: actor,
		Action:  "delete_user",
		Details: fmt.Sprintf("Deleted user %s", acc.UserID),
	})
	return nil
}

func (s *Service) logCreation(ctx context.Context, actor string, acc *Account, bulk bool) {
	details := fmt.Sprintf("Created user %s (%s)", acc.UserID, acc.Role)
	if bulk {
		details = "Bulk created user " + acc.UserID + " (" + string(acc.Role) + ")"
	}
	if acc.Role == RoleStudent && acc.Batch != "" {
		details += fmt.Sprintf(" assigned to batch %s, semester %d", acc.Batch, acc.Semester)
	}
	s.append(ctx, &audit.Entry{
		ActorID: actor,
		Action:  "create_user",
		Details: details,
	})
}

// append writes to the action log without letting sink failures affect the
// caller's outcome.
func (s *Service) append(ctx context.Context, entry *audit.Entry) {
	if s.sink == nil {
		return
	}
	if entry.ActorID == "" {
		entry.ActorID = "system"
	}
	_ = s.sink.Append(ctx, entry)
}

// normalizeRequest applies the creation rules to an already structured
// request (the individual registration path).
func normalizeRequest(req *CreateRequest) error {
	if req.Name == "" || req.UserID == "" || req.RollNumber == "" || req.Password == "" || req.Role == "" {
		return ErrMissingFields
	}
	role, err := ParseProvisionRole(string(req.Role))
	if err != nil {
		return err
	}
	req.Role = role
	if role == RoleStudent {
		if req.Batch != "" && !ValidBatch(req.Batch) {
			return ErrInvalidBatch
		}
		if req.Semester == 0 {
			req.Semester = 1
		}
	} else {
		req.Batch = ""
		req.Semester = 0
	}
	return nil
}

func (o *Outcome) reject(userID string, err error) {
	reason, metric := rejectionReason(err)
	obs.ObserveRejected(metric)
	o.Errors = append(o.Errors, Rejection{UserID: userID, Reason: reason})
}

func rejectionReason(err error) (reason, metric string) {
	switch {
	case errors.Is(err, ErrMissingFields):
		return "invalid or missing fields", "missing_fields"
	case errors.Is(err, ErrInvalidRole):
		return "invalid role", "invalid_role"
	case errors.Is(err, ErrInvalidBatch):
		return "invalid batch", "invalid_batch"
	case errors.Is(err, ErrDuplicateUserID):
		return "user id already exists", "duplicate_user_id"
	case errors.Is(err, ErrDuplicateRollNumber):
		return "roll number already exists", "duplicate_roll_number"
	default:
		return "could not persist account", "persistence"
	}
}
