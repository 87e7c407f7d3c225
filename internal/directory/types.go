// Package directory owns the institutional account registry: the account
// model, the normalization rules for bulk records, and the commit engine
// that turns normalized requests into stored accounts.
package directory

import (
	"strings"
	"time"
)

// Role classifies an account.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleFaculty Role = "faculty"
	RoleStudent Role = "student"
)

// ParseProvisionRole normalizes a raw role value for registration. Only
// faculty and student accounts may be provisioned through registration;
// admin accounts are bootstrapped out of band.
func ParseProvisionRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleStudent:
		return RoleStudent, nil
	case RoleFaculty:
		return RoleFaculty, nil
	default:
		return "", ErrInvalidRole
	}
}

// allowedBatches is the closed set of student batches.
var allowedBatches = []string{"N", "P", "Q"}

// ValidBatch reports whether b is a member of the allowed batch set.
func ValidBatch(b string) bool {
	for _, allowed := range allowedBatches {
		if b == allowed {
			return true
		}
	}
	return false
}

// Account is the directory entity. UserID and RollNumber are globally
// unique. SessionToken is non-empty only between a successful login and the
// matching logout.
type Account struct {
	ID           string
	Name         string
	UserID       string
	RollNumber   string
	Role         Role
	PasswordHash string
	Batch        string
	Semester     int
	SessionToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Summary is the externally visible account shape; the credential never
// leaves the package.
type Summary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	UserID     string `json:"user_id"`
	RollNumber string `json:"roll_number"`
	Role       Role   `json:"role"`
	Batch      string `json:"batch,omitempty"`
	Semester   int    `json:"semester,omitempty"`
}

// Summary returns the credential-free view of the account.
func (a *Account) Summary() Summary {
	s := Summary{
		ID:         a.ID,
		Name:       a.Name,
		UserID:     a.UserID,
		RollNumber: a.RollNumber,
		Role:       a.Role,
	}
	if a.Role == RoleStudent {
		s.Batch = a.Batch
		s.Semester = a.Semester
	}
	return s
}

// CreateRequest is a normalized account-creation request.
type CreateRequest struct {
	Name       string
	UserID     string
	RollNumber string
	Password   string
	Role       Role
	Batch      string
	Semester   int
}

// Rejection explains why one record of a batch was not committed.
type Rejection struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

// Outcome is the per-batch provisioning result: committed accounts and
// per-record rejections, both in input order.
type Outcome struct {
	Created []Summary   `json:"created"`
	Errors  []Rejection `json:"errors"`
}

// Update carries the allow-listed mutable fields; nil means unchanged.
type Update struct {
	Name       *string
	UserID     *string
	RollNumber *string
	Role       *Role
	Batch      *string
	Semester   *int
}

// Empty reports whether the update touches nothing.
func (u Update) Empty() bool {
	return u.Name == nil && u.UserID == nil && u.RollNumber == nil &&
		u.Role == nil && u.Batch == nil && u.Semester == nil
}
