// Package pg is the Postgres persistence layer: the account store and the
// action-log sink, both over database/sql with the pgx driver.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"rosterd.org/internal/directory"
)

const (
	pgErrUniqueViolation = "23505"

	constraintUserID     = "accounts_user_id_key"
	constraintRollNumber = "accounts_roll_number_key"
)

type Store struct {
	db *sql.DB
}

var _ directory.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing connection, used by tests.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

const accountColumns = `id, name, user_id, roll_number, role, password_hash,
	coalesce(batch,''), coalesce(semester,0), coalesce(session_token,''),
	created_at, updated_at`

func (s *Store) Create(ctx context.Context, acc *directory.Account) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	err := s.db.QueryRowContext(ctx, `
		insert into accounts (id, name, user_id, roll_number, role, password_hash, batch, semester)
		values ($1, $2, $3, $4, $5, $6, nullif($7,''), nullif($8,0))
		returning created_at, updated_at
	`, acc.ID, acc.Name, acc.UserID, acc.RollNumber, string(acc.Role), acc.PasswordHash,
		acc.Batch, acc.Semester).Scan(&acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return uniqueViolation(pgErr)
		}
		return err
	}
	return nil
}

func (s *Store) Find(ctx context.Context, id string) (*directory.Account, error) {
	return s.findBy(ctx, "id", id)
}

func (s *Store) FindByUserID(ctx context.Context, userID string) (*directory.Account, error) {
	return s.findBy(ctx, "user_id", userID)
}

func (s *Store) findBy(ctx context.Context, column, value string) (*directory.Account, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`select %s from accounts where %s = $1`, accountColumns, column), value)
	return scanAccount(row)
}

func (s *Store) FindExisting(ctx context.Context, userID, rollNumber string) (*directory.Account, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		select `+accountColumns+`
		from accounts
		where user_id = $1 or roll_number = $2
		limit 1
	`, userID, rollNumber)
	return scanAccount(row)
}

func (s *Store) List(ctx context.Context) ([]*directory.Account, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx,
		`select `+accountColumns+` from accounts order by created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*directory.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) Update(ctx context.Context, id string, upd directory.Update) (*directory.Account, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	var (
		sets []string
		args []any
		idx  = 1
	)
	set := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, value)
		idx++
	}
	if upd.Name != nil {
		set("name", *upd.Name)
	}
	if upd.UserID != nil {
		set("user_id", *upd.UserID)
	}
	if upd.RollNumber != nil {
		set("roll_number", *upd.RollNumber)
	}
	if upd.Role != nil {
		set("role", string(*upd.Role))
	}
	if upd.Batch != nil {
		set("batch", nullIfEmpty(*upd.Batch))
	}
	if upd.Semester != nil {
		set("semester", *upd.Semester)
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update accounts set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return nil, uniqueViolation(pgErr)
			}
			return nil, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if aff == 0 {
			return nil, directory.ErrNotFound
		}
	}
	return s.Find(ctx, id)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `delete from accounts where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return directory.ErrNotFound
	}
	return nil
}

// ClaimSession stores a fresh session token. The exclusive path is a single
// compare-and-set statement so concurrent logins against one account race on
// the row, not on the process.
func (s *Store) ClaimSession(ctx context.Context, id, token string, exclusive bool) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	query := `update accounts set session_token = $2, updated_at = now() where id = $1`
	if exclusive {
		query += ` and (session_token is null or session_token = '')`
	}
	res, err := s.db.ExecContext(ctx, query, id, token)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff > 0 {
		return nil
	}
	if !exclusive {
		return directory.ErrNotFound
	}
	// Zero rows on the conditional update: either the account is gone or
	// the token slot is held.
	var exists int
	err = s.db.QueryRowContext(ctx, `select 1 from accounts where id = $1`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.ErrNotFound
	}
	if err != nil {
		return err
	}
	return directory.ErrSessionHeld
}

func (s *Store) ClearSession(ctx context.Context, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx,
		`update accounts set session_token = '', updated_at = now() where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return directory.ErrNotFound
	}
	return nil
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*directory.Account, error) {
	var (
		acc  directory.Account
		role string
	)
	err := row.Scan(&acc.ID, &acc.Name, &acc.UserID, &acc.RollNumber, &role,
		&acc.PasswordHash, &acc.Batch, &acc.Semester, &acc.SessionToken,
		&acc.CreatedAt, &acc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, directory.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	acc.Role = directory.Role(role)
	return &acc, nil
}

func uniqueViolation(pgErr *pgconn.PgError) error {
	switch pgErr.ConstraintName {
	case constraintRollNumber:
		return directory.ErrDuplicateRollNumber
	case constraintUserID:
		return directory.ErrDuplicateUserID
	default:
		return directory.ErrDuplicateUserID
	}
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func nullIfEmpty(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
