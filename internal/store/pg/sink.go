package pg

import (
	"context"
	"errors"
	"time"

	"rosterd.org/internal/audit"
	"rosterd.org/internal/ids"
)

var (
	_ audit.Logger = (*AuditSink)(nil)
	_ audit.Reader = (*AuditSink)(nil)
)

// AuditSink appends action-log entries to the action_log table through the
// store's pool. The table is append-only; there is no update or delete path.
type AuditSink struct {
	store *Store
}

// NewAuditSink returns a sink backed by the store's connection pool.
func NewAuditSink(store *Store) *AuditSink { return &AuditSink{store: store} }

func (s *AuditSink) Append(ctx context.Context, entry *audit.Entry) error {
	if s.store == nil || s.store.db == nil {
		return errors.New("database connection unavailable")
	}
	if entry.Action == "" {
		return errors.New("action is required")
	}
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	_, err := s.store.db.ExecContext(ctx, `
		insert into action_log (id, actor_id, action, details, ip, system_id, occurred_at)
		values ($1, $2, $3, $4, nullif($5,''), nullif($6,''), $7)
	`, entry.ID, entry.ActorID, entry.Action, entry.Details, entry.IP, entry.SystemID, entry.OccurredAt)
	return err
}

// Recent returns the newest entries, capped at limit.
func (s *AuditSink) Recent(ctx context.Context, limit int) ([]audit.Entry, error) {
	if s.store == nil || s.store.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.store.db.QueryContext(ctx, `
		select id, actor_id, action, details, coalesce(ip,''), coalesce(system_id,''), occurred_at
		from action_log
		order by occurred_at desc, id desc
		limit $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Details, &e.IP, &e.SystemID, &e.OccurredAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
