package syncqueue

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const itemColumns = "id, type, scope, trip_id, payload, status, retry_count, needs_attention, last_error, created_at, updated_at"

// New creates a new SQLite-backed Queue.
func New(db *sql.DB) Queue {
	return &store{
		db:  db,
		now: time.Now,
	}
}

func (s *store) Enqueue(item Item) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(s.db, item)
}

func (s *store) EnqueueTx(tx *sql.Tx, item Item) (Item, error) {
	return s.insert(tx, item)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (s *store) insert(e execer, item Item) (Item, error) {
	if item.ID == "" {
		return Item{}, fmt.Errorf("sync item without id")
	}
	if !item.Type.Valid() {
		return Item{}, fmt.Errorf("unknown sync item type %q", item.Type)
	}
	now := s.now().UTC()
	item.Status = StatusPending
	item.RetryCount = 0
	item.NeedsAttention = false
	item.LastError = ""
	item.CreatedAt = now
	item.UpdatedAt = now

	_, err := e.Exec(`
		INSERT INTO sync_queue (id, type, scope, trip_id, payload, status, retry_count, needs_attention, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0, '', ?, ?)
	`, item.ID, item.Type, item.Scope, item.TripID, item.Payload, item.Status, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return Item{}, fmt.Errorf("failed to enqueue sync item %s: %w", item.ID, err)
	}
	log.Debug("Enqueued sync item", "id", item.ID, "type", item.Type, "scope", item.Scope)
	return item, nil
}

// Claim marks up to limit deliverable items as syncing and returns them in creation
// order. Deliverable means pending, or failed with automatic attempts left.
func (s *store) Claim(limit int) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(`
		SELECT `+itemColumns+` FROM sync_queue
		WHERE status = ? OR (status = ? AND needs_attention = 0)
		ORDER BY seq
		LIMIT ?
	`, StatusPending, StatusFailed, limit)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to select sync items: %w", err)
	}
	items, err := scanItems(rows)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	now := s.now().UTC()
	for i := range items {
		if _, err := tx.Exec("UPDATE sync_queue SET status = ?, updated_at = ? WHERE id = ?", StatusSyncing, now.UnixMilli(), items[i].ID); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to claim sync item %s: %w", items[i].ID, err)
		}
		items[i].Status = StatusSyncing
		items[i].UpdatedAt = now
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return items, nil
}

// Complete prunes delivered items.
func (s *store) Complete(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM sync_queue WHERE id IN ("+placeholders(len(ids))+")", toAnySlice(ids)...)
	if err != nil {
		return fmt.Errorf("failed to complete sync items: %w", err)
	}
	return nil
}

// MarkFailed records a failed submission. With surface set the item stops being
// retried automatically and waits for a user to retry or discard it.
func (s *store) MarkFailed(id, lastError string, surface bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE sync_queue
		SET status = ?, retry_count = retry_count + 1, needs_attention = ?, last_error = ?, updated_at = ?
		WHERE id = ?
	`, StatusFailed, surface, lastError, s.now().UTC().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to mark sync item %s failed: %w", id, err)
	}
	return requireRow(res, id)
}

// Release returns claimed items to pending without counting an attempt.
func (s *store) Release(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	args := append([]any{StatusPending, s.now().UTC().UnixMilli(), StatusSyncing}, toAnySlice(ids)...)
	_, err := s.db.Exec(`
		UPDATE sync_queue SET status = ?, updated_at = ?
		WHERE status = ? AND id IN (`+placeholders(len(ids))+`)
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to release sync items: %w", err)
	}
	return nil
}

// RetryAllFailed moves every failed item back to pending. The retry count is kept.
func (s *store) RetryAllFailed() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE sync_queue SET status = ?, needs_attention = 0, updated_at = ?
		WHERE status = ?
	`, StatusPending, s.now().UTC().UnixMilli(), StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("failed to retry failed sync items: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *store) Retry(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, err := s.statusLocked(id)
	if err != nil {
		return err
	}
	switch status {
	case StatusSyncing:
		return fmt.Errorf("%w: %s", ErrItemInFlight, id)
	case StatusPending:
		return nil
	}
	_, err = s.db.Exec("UPDATE sync_queue SET status = ?, needs_attention = 0, updated_at = ? WHERE id = ?",
		StatusPending, s.now().UTC().UnixMilli(), id)
	return err
}

// Discard permanently removes one item. Items being submitted cannot be discarded.
func (s *store) Discard(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, err := s.statusLocked(id)
	if err != nil {
		return err
	}
	if status == StatusSyncing {
		return fmt.Errorf("%w: %s", ErrItemInFlight, id)
	}
	if _, err := s.db.Exec("DELETE FROM sync_queue WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to discard sync item %s: %w", id, err)
	}
	log.Warn("Discarded sync item", "id", id, "status", status)
	return nil
}

// DiscardAll permanently removes every item that is not in flight.
func (s *store) DiscardAll() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM sync_queue WHERE status != ?", StatusSyncing)
	if err != nil {
		return 0, fmt.Errorf("failed to discard sync items: %w", err)
	}
	n, _ := res.RowsAffected()
	log.Warn("Discarded all sync items", "count", n)
	return int(n), nil
}

func (s *store) Get(id string) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT "+itemColumns+" FROM sync_queue WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	items, err := scanItems(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	return &items[0], nil
}

// List returns items in creation order, optionally filtered by status.
func (s *store) List(status Status) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := "SELECT " + itemColumns + " FROM sync_queue"
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	rows, err := s.db.Query(query+" ORDER BY seq", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync items: %w", err)
	}
	return scanItems(rows)
}

func (s *store) Stats() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st Stats
	rows, err := s.db.Query("SELECT status, needs_attention, COUNT(*) FROM sync_queue GROUP BY status, needs_attention")
	if err != nil {
		return st, fmt.Errorf("failed to count sync items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status         Status
			needsAttention bool
			count          int
		)
		if err := rows.Scan(&status, &needsAttention, &count); err != nil {
			return st, err
		}
		switch status {
		case StatusPending:
			st.Pending += count
		case StatusSyncing:
			st.Syncing += count
		case StatusFailed:
			st.Failed += count
			if needsAttention {
				st.NeedsAttention += count
			}
		}
		st.Total += count
	}
	if err := rows.Err(); err != nil {
		return st, err
	}

	var oldest sql.NullInt64
	if err := s.db.QueryRow("SELECT MIN(created_at) FROM sync_queue WHERE status = ?", StatusPending).Scan(&oldest); err != nil {
		return st, err
	}
	if oldest.Valid {
		t := time.UnixMilli(oldest.Int64).UTC()
		st.OldestPending = &t
	}
	return st, nil
}

// RecoverInFlight returns items left in syncing by an interrupted process to pending.
func (s *store) RecoverInFlight() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("UPDATE sync_queue SET status = ?, updated_at = ? WHERE status = ?",
		StatusPending, s.now().UTC().UnixMilli(), StatusSyncing)
	if err != nil {
		return 0, fmt.Errorf("failed to recover in-flight sync items: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		log.Warn("Recovered in-flight sync items", "count", n)
	}
	return int(n), nil
}

func (s *store) statusLocked(id string) (Status, error) {
	var status Status
	err := s.db.QueryRow("SELECT status FROM sync_queue WHERE id = ?", id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	return status, err
}

func scanItems(rows *sql.Rows) ([]Item, error) {
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			item                 Item
			createdAt, updatedAt int64
		)
		err := rows.Scan(&item.ID, &item.Type, &item.Scope, &item.TripID, &item.Payload, &item.Status,
			&item.RetryCount, &item.NeedsAttention, &item.LastError, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync item: %w", err)
		}
		item.CreatedAt = time.UnixMilli(createdAt).UTC()
		item.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		items = append(items, item)
	}
	return items, rows.Err()
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toAnySlice[T any](s []T) []any {
	a := make([]any, len(s))
	for i, v := range s {
		a[i] = v
	}
	return a
}
