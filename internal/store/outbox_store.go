package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/mail-client/internal/model"
)

// PutOutboxItem inserts or replaces a queued outgoing message.
func (s *SQLiteStore) PutOutboxItem(ctx context.Context, item model.OutboxItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO outbox (
			id, account_id, created_at, to_addrs, cc_addrs, bcc_addrs,
			subject, body_text, body_html, sent_folder_id, status, last_error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.AccountID, item.CreatedAt.UTC(), item.To, item.Cc, item.Bcc,
		item.Subject, item.BodyText, item.BodyHTML, item.SentFolderID,
		string(item.Status), item.LastError,
	)
	if err != nil {
		return fmt.Errorf("putting outbox item %s: %w", item.ID, err)
	}
	return nil
}

// GetOutboxItem retrieves a single outbox item, or nil if absent.
func (s *SQLiteStore) GetOutboxItem(ctx context.Context, id string) (*model.OutboxItem, error) {
	row := s.db.QueryRowxContext(ctx,
		outboxSelect+" WHERE id = ?", id,
	)

	item, err := scanOutboxRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting outbox item %s: %w", id, err)
	}

	return &item, nil
}

// GetOutboxItems retrieves outbox items, optionally filtered to the given
// statuses, ordered by creation time.
func (s *SQLiteStore) GetOutboxItems(ctx context.Context, statuses ...model.OutboxStatus) ([]model.OutboxItem, error) {
	query := outboxSelect
	var args []interface{}

	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, st := range statuses {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		query += " WHERE status IN (" + strings.Join(placeholders, ", ") + ")"
	}

	query += " ORDER BY created_at"

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying outbox items: %w", err)
	}
	defer rows.Close()

	var items []model.OutboxItem
	for rows.Next() {
		item, err := scanOutboxRows(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// ClaimOutboxItem transitions an item from queued or failed to sending and
// clears its last error. The conditional UPDATE is the sole admission gate
// for delivery attempts, so two concurrent flushes can never both claim the
// same item.
func (s *SQLiteStore) ClaimOutboxItem(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE outbox SET status = ?, last_error = ''
		WHERE id = ? AND status IN (?, ?)`,
		string(model.OutboxSending), id,
		string(model.OutboxQueued), string(model.OutboxFailed),
	)
	if err != nil {
		return false, fmt.Errorf("claiming outbox item %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading claim result for %s: %w", id, err)
	}

	return n == 1, nil
}

// MarkOutboxFailed reverts an item to failed with the failure detail.
func (s *SQLiteStore) MarkOutboxFailed(ctx context.Context, id, lastError string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE outbox SET status = ?, last_error = ? WHERE id = ?",
		string(model.OutboxFailed), lastError, id,
	)
	if err != nil {
		return fmt.Errorf("marking outbox item %s failed: %w", id, err)
	}
	return nil
}

// DeleteOutboxItem removes an item after successful delivery.
func (s *SQLiteStore) DeleteOutboxItem(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM outbox WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting outbox item %s: %w", id, err)
	}
	return nil
}

const outboxSelect = `
	SELECT id, account_id, created_at, to_addrs, cc_addrs, bcc_addrs,
	       subject, body_text, body_html, sent_folder_id, status, last_error
	FROM outbox`

// scanOutboxRows scans an outbox row from a sqlx.Rows result set.
func scanOutboxRows(rows *sqlx.Rows) (model.OutboxItem, error) {
	var (
		item   model.OutboxItem
		status string
	)

	err := rows.Scan(
		&item.ID, &item.AccountID, &item.CreatedAt, &item.To, &item.Cc, &item.Bcc,
		&item.Subject, &item.BodyText, &item.BodyHTML, &item.SentFolderID,
		&status, &item.LastError,
	)
	if err != nil {
		return model.OutboxItem{}, fmt.Errorf("scanning outbox row: %w", err)
	}

	item.Status = model.OutboxStatus(status)
	return item, nil
}

// scanOutboxRow scans a single outbox row from a sqlx.Row.
func scanOutboxRow(row *sqlx.Row) (model.OutboxItem, error) {
	var (
		item   model.OutboxItem
		status string
	)

	err := row.Scan(
		&item.ID, &item.AccountID, &item.CreatedAt, &item.To, &item.Cc, &item.Bcc,
		&item.Subject, &item.BodyText, &item.BodyHTML, &item.SentFolderID,
		&status, &item.LastError,
	)
	if err != nil {
		return model.OutboxItem{}, err
	}

	item.Status = model.OutboxStatus(status)
	return item, nil
}
