package directory

import (
	"context"
	"sync"
)

// InMemory implements Store with in-process concurrency safety. It backs
// tests and DSN-less deployments; durable storage lives in store/pg.
type InMemory struct {
	mu     sync.RWMutex
	byID   map[string]*Account
	byUser map[string]string // user_id -> account id
	byRoll map[string]string // roll_number -> account id
	order  []string
}

// NewInMemory creates an empty directory store.
func NewInMemory() *InMemory {
	return &InMemory{
		byID:   make(map[string]*Account),
		byUser: make(map[string]string),
		byRoll: make(map[string]string),
	}
}

var _ Store = (*InMemory)(nil)

func (s *InMemory) Create(ctx context.Context, acc *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUser[acc.UserID]; exists {
		return ErrDuplicateUserID
	}
	if _, exists := s.byRoll[acc.RollNumber]; exists {
		return ErrDuplicateRollNumber
	}
	cp := *acc
	s.byID[cp.ID] = &cp
	s.byUser[cp.UserID] = cp.ID
	s.byRoll[cp.RollNumber] = cp.ID
	s.order = append(s.order, cp.ID)
	return nil
}

func (s *InMemory) Find(ctx context.Context, id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *acc
	return &out, nil
}

func (s *InMemory) FindByUserID(ctx context.Context, userID string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUser[userID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *s.byID[id]
	return &out, nil
}

func (s *InMemory) FindExisting(ctx context.Context, userID, rollNumber string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.byUser[userID]; ok {
		out := *s.byID[id]
		return &out, nil
	}
	if id, ok := s.byRoll[rollNumber]; ok {
		out := *s.byID[id]
		return &out, nil
	}
	return nil, ErrNotFound
}

func (s *InMemory) List(ctx context.Context) ([]*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Account, 0, len(s.order))
	for _, id := range s.order {
		if acc, ok := s.byID[id]; ok {
			cp := *acc
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemory) Update(ctx context.Context, id string, upd Update) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.UserID != nil && *upd.UserID != acc.UserID {
		if _, taken := s.byUser[*upd.UserID]; taken {
			return nil, ErrDuplicateUserID
		}
		delete(s.byUser, acc.UserID)
		acc.UserID = *upd.UserID
		s.byUser[acc.UserID] = id
	}
	if upd.RollNumber != nil && *upd.RollNumber != acc.RollNumber {
		if _, taken := s.byRoll[*upd.RollNumber]; taken {
			return nil, ErrDuplicateRollNumber
		}
		delete(s.byRoll, acc.RollNumber)
		acc.RollNumber = *upd.RollNumber
		s.byRoll[acc.RollNumber] = id
	}
	if upd.Name != nil {
		acc.Name = *upd.Name
	}
	if upd.Role != nil {
		acc.Role = *upd.Role
	}
	if upd.Batch != nil {
		acc.Batch = *upd.Batch
	}
	if upd.Semester != nil {
		acc.Semester = *upd.Semester
	}
	out := *acc
	return &out, nil
}

func (s *InMemory) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	delete(s.byUser, acc.UserID)
	delete(s.byRoll, acc.RollNumber)
	for i, ordered := range s.order {
		if ordered == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// ClaimSession performs the check-and-set under one lock so two concurrent
// logins cannot both observe a free session.
func (s *InMemory) ClaimSession(ctx context.Context, id, token string, exclusive bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	if exclusive && acc.SessionToken != "" {
		return ErrSessionHeld
	}
	acc.SessionToken = token
	return nil
}

func (s *InMemory) ClearSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	acc.SessionToken = ""
	return nil
}
