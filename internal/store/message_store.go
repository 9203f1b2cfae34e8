package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/mail-client/internal/model"
)

// GetHeaders retrieves the cached headers for one folder, sorted by message
// date descending (the display order).
func (s *SQLiteStore) GetHeaders(ctx context.Context, accountID, folderID string) ([]model.MessageHeader, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT account_id, id, folder_id, subject, from_name, from_email,
		       date, is_unread, has_attachments, size, cached_at
		FROM headers
		WHERE account_id = ? AND folder_id = ?
		ORDER BY date DESC`,
		accountID, folderID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying headers for folder %s: %w", folderID, err)
	}
	defer rows.Close()

	var headers []model.MessageHeader
	for rows.Next() {
		h, err := scanHeader(rows)
		if err != nil {
			return nil, err
		}
		headers = append(headers, h)
	}

	return headers, rows.Err()
}

// UpsertHeaders inserts or replaces a batch of message headers.
func (s *SQLiteStore) UpsertHeaders(ctx context.Context, headers []model.MessageHeader) error {
	if len(headers) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertHeadersTx(ctx, tx, headers); err != nil {
		return err
	}

	return tx.Commit()
}

// ReplaceFolderHeaders atomically replaces the cached headers of one folder
// with the given page. Headers cached for other folders of the account are
// left untouched; the delete and the inserts share a transaction.
func (s *SQLiteStore) ReplaceFolderHeaders(ctx context.Context, accountID, folderID string, headers []model.MessageHeader) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"DELETE FROM headers WHERE account_id = ? AND folder_id = ?",
		accountID, folderID,
	)
	if err != nil {
		return fmt.Errorf("clearing headers for folder %s: %w", folderID, err)
	}

	if err := upsertHeadersTx(ctx, tx, headers); err != nil {
		return err
	}

	return tx.Commit()
}

// upsertHeadersTx writes a batch of headers inside an open transaction.
func upsertHeadersTx(ctx context.Context, tx *sqlx.Tx, headers []model.MessageHeader) error {
	const query = `
		INSERT OR REPLACE INTO headers (
			account_id, id, folder_id, subject, from_name, from_email,
			date, is_unread, has_attachments, size, cached_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing header upsert: %w", err)
	}
	defer stmt.Close()

	for _, h := range headers {
		_, err := stmt.ExecContext(ctx,
			h.AccountID, h.ID, h.FolderID, h.Subject, h.FromName, h.FromEmail,
			h.Date.UTC(), boolToInt(h.IsUnread), boolToInt(h.HasAttachments),
			h.Size, h.CachedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("upserting header %s: %w", h.ID, err)
		}
	}

	return nil
}

// SetHeaderUnread rewrites the unread flag of a single cached header.
func (s *SQLiteStore) SetHeaderUnread(ctx context.Context, accountID, id string, unread bool) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE headers SET is_unread = ? WHERE account_id = ? AND id = ?",
		boolToInt(unread), accountID, id,
	)
	if err != nil {
		return fmt.Errorf("updating unread flag for header %s: %w", id, err)
	}
	return nil
}

// DeleteHeader removes a single cached header.
func (s *SQLiteStore) DeleteHeader(ctx context.Context, accountID, id string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM headers WHERE account_id = ? AND id = ?",
		accountID, id,
	)
	if err != nil {
		return fmt.Errorf("deleting header %s: %w", id, err)
	}
	return nil
}

// GetBody retrieves a cached message body, or nil if none is cached.
func (s *SQLiteStore) GetBody(ctx context.Context, accountID, id string) (*model.MessageBody, error) {
	row := s.db.QueryRowxContext(ctx, `
		SELECT account_id, id, folder_id, body_html, body_text, attachments, cached_at
		FROM bodies WHERE account_id = ? AND id = ?`,
		accountID, id,
	)

	var (
		b           model.MessageBody
		attachments string
	)
	err := row.Scan(&b.AccountID, &b.ID, &b.FolderID, &b.BodyHTML, &b.BodyText, &attachments, &b.CachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting body %s: %w", id, err)
	}

	if attachments != "" {
		if err := json.Unmarshal([]byte(attachments), &b.Attachments); err != nil {
			return nil, fmt.Errorf("unmarshaling attachments for body %s: %w", id, err)
		}
	}

	return &b, nil
}

// PutBody inserts or replaces a cached message body.
func (s *SQLiteStore) PutBody(ctx context.Context, body model.MessageBody) error {
	attachments, err := json.Marshal(body.Attachments)
	if err != nil {
		return fmt.Errorf("marshaling attachments for body %s: %w", body.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO bodies (
			account_id, id, folder_id, body_html, body_text, attachments, cached_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		body.AccountID, body.ID, body.FolderID, body.BodyHTML, body.BodyText,
		string(attachments), body.CachedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("putting body %s: %w", body.ID, err)
	}

	return nil
}

// scanHeader scans a header row from a sqlx.Rows result set.
func scanHeader(rows *sqlx.Rows) (model.MessageHeader, error) {
	var (
		h      model.MessageHeader
		unread int
		hasAtt int
	)

	err := rows.Scan(
		&h.AccountID, &h.ID, &h.FolderID, &h.Subject, &h.FromName, &h.FromEmail,
		&h.Date, &unread, &hasAtt, &h.Size, &h.CachedAt,
	)
	if err != nil {
		return model.MessageHeader{}, fmt.Errorf("scanning header row: %w", err)
	}

	h.IsUnread = unread != 0
	h.HasAttachments = hasAtt != 0

	return h, nil
}
