package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"rosterd.org/internal/audit"
	"rosterd.org/internal/directory"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db), mock
}

func accountRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "user_id", "roll_number", "role", "password_hash",
		"batch", "semester", "session_token", "created_at", "updated_at",
	})
}

func TestCreateMapsUniqueViolations(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into accounts").
		WithArgs("a1", "Jane Doe", "jdoe01", "R001", "student", "hash", "N", 1).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: constraintUserID})

	acc := &directory.Account{
		ID: "a1", Name: "Jane Doe", UserID: "jdoe01", RollNumber: "R001",
		Role: directory.RoleStudent, PasswordHash: "hash", Batch: "N", Semester: 1,
	}
	if err := store.Create(context.Background(), acc); !errors.Is(err, directory.ErrDuplicateUserID) {
		t.Fatalf("expected ErrDuplicateUserID, got %v", err)
	}

	mock.ExpectQuery("insert into accounts").
		WithArgs("a1", "Jane Doe", "jdoe01", "R001", "student", "hash", "N", 1).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: constraintRollNumber})
	if err := store.Create(context.Background(), acc); !errors.Is(err, directory.ErrDuplicateRollNumber) {
		t.Fatalf("expected ErrDuplicateRollNumber, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFindByUserID(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery("select (.+) from accounts where user_id").
		WithArgs("jdoe01").
		WillReturnRows(accountRows().
			AddRow("a1", "Jane Doe", "jdoe01", "R001", "student", "hash", "N", 1, "", now, now))

	acc, err := store.FindByUserID(context.Background(), "jdoe01")
	if err != nil {
		t.Fatalf("FindByUserID: %v", err)
	}
	if acc.ID != "a1" || acc.Role != directory.RoleStudent || acc.Batch != "N" {
		t.Fatalf("unexpected account: %+v", acc)
	}

	mock.ExpectQuery("select (.+) from accounts where user_id").
		WithArgs("nobody").
		WillReturnRows(accountRows())
	if _, err := store.FindByUserID(context.Background(), "nobody"); !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateBuildsPartialSet(t *testing.T) {
	store, mock := newMockStore(t)

	name := "New Name"
	batch := "P"
	mock.ExpectExec("update accounts set name = (.+), batch = (.+), updated_at = now").
		WithArgs(name, sqlmock.AnyArg(), "a1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	now := time.Now().UTC()
	mock.ExpectQuery("select (.+) from accounts where id").
		WithArgs("a1").
		WillReturnRows(accountRows().
			AddRow("a1", name, "jdoe01", "R001", "student", "hash", batch, 1, "", now, now))

	acc, err := store.Update(context.Background(), "a1", directory.Update{Name: &name, Batch: &batch})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if acc.Name != name || acc.Batch != batch {
		t.Fatalf("unexpected account: %+v", acc)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateMissingAccount(t *testing.T) {
	store, mock := newMockStore(t)

	name := "x"
	mock.ExpectExec("update accounts set").
		WithArgs(name, "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if _, err := store.Update(context.Background(), "ghost", directory.Update{Name: &name}); !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClaimSessionExclusive(t *testing.T) {
	store, mock := newMockStore(t)

	// Free slot: the conditional update wins.
	mock.ExpectExec("update accounts set session_token").
		WithArgs("a1", "tok").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := store.ClaimSession(context.Background(), "a1", "tok", true); err != nil {
		t.Fatalf("ClaimSession: %v", err)
	}

	// Held slot: zero rows, account exists.
	mock.ExpectExec("update accounts set session_token").
		WithArgs("a1", "tok2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select 1 from accounts").
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	if err := store.ClaimSession(context.Background(), "a1", "tok2", true); !errors.Is(err, directory.ErrSessionHeld) {
		t.Fatalf("expected ErrSessionHeld, got %v", err)
	}

	// Missing account: zero rows, no row on the existence probe.
	mock.ExpectExec("update accounts set session_token").
		WithArgs("ghost", "tok").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select 1 from accounts").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	if err := store.ClaimSession(context.Background(), "ghost", "tok", true); !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestClearSession(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("update accounts set session_token = ''").
		WithArgs("a1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := store.ClearSession(context.Background(), "a1"); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}

	mock.ExpectExec("update accounts set session_token = ''").
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := store.ClearSession(context.Background(), "ghost"); !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAuditSinkAppend(t *testing.T) {
	store, mock := newMockStore(t)
	sink := NewAuditSink(store)

	mock.ExpectExec("insert into action_log").
		WithArgs(sqlmock.AnyArg(), "jdoe01", "login", "User logged in from IP: 10.0.0.7, System: lab-pc-4",
			"10.0.0.7", "lab-pc-4", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &audit.Entry{
		ActorID:  "jdoe01",
		Action:   "login",
		Details:  "User logged in from IP: 10.0.0.7, System: lab-pc-4",
		IP:       "10.0.0.7",
		SystemID: "lab-pc-4",
	}
	if err := sink.Append(context.Background(), entry); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if entry.ID == "" || entry.OccurredAt.IsZero() {
		t.Fatalf("entry not stamped: %+v", entry)
	}

	if err := sink.Append(context.Background(), &audit.Entry{ActorID: "x"}); err == nil {
		t.Fatal("expected error for missing action")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAuditSinkRecent(t *testing.T) {
	store, mock := newMockStore(t)
	sink := NewAuditSink(store)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "actor_id", "action", "details", "ip", "system_id", "occurred_at"}).
		AddRow("log-2", "admin01", "login", "User logged in", "10.0.0.7", "lab-pc-4", now).
		AddRow("log-1", "admin01", "create_user", "Created user jdoe01", "", "", now.Add(-time.Minute))
	mock.ExpectQuery("select id, actor_id, action, details").
		WithArgs(25).
		WillReturnRows(rows)

	entries, err := sink.Recent(context.Background(), 25)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != "log-2" || entries[1].Action != "create_user" {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	// Out-of-range limits fall back to the default page size.
	mock.ExpectQuery("select id, actor_id, action, details").
		WithArgs(100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "actor_id", "action", "details", "ip", "system_id", "occurred_at"}))
	if _, err := sink.Recent(context.Background(), -5); err != nil {
		t.Fatalf("Recent with bad limit: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
