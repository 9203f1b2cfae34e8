package store

import (
	"context"
	"fmt"

	"github.com/nhle/mail-client/internal/model"
)

// ReplaceFolders swaps the entire folder set for an account with the given
// snapshot. The delete and the inserts run in one transaction, so a reader
// never observes a half-replaced listing.
func (s *SQLiteStore) ReplaceFolders(ctx context.Context, accountID string, folders []model.Folder) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM folders WHERE account_id = ?", accountID); err != nil {
		return fmt.Errorf("clearing folders for account %s: %w", accountID, err)
	}

	const query = `
		INSERT INTO folders (account_id, id, name, role, unread, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing folder insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range folders {
		_, err := stmt.ExecContext(ctx,
			accountID, f.ID, f.Name, string(f.Role), f.Unread, f.UpdatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("inserting folder %s: %w", f.ID, err)
		}
	}

	return tx.Commit()
}

// GetFolders retrieves the cached folders for an account in cache order.
func (s *SQLiteStore) GetFolders(ctx context.Context, accountID string) ([]model.Folder, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT account_id, id, name, role, unread, updated_at
		FROM folders WHERE account_id = ? ORDER BY rowid`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying folders for account %s: %w", accountID, err)
	}
	defer rows.Close()

	var folders []model.Folder
	for rows.Next() {
		var (
			f    model.Folder
			role string
		)
		if err := rows.Scan(&f.AccountID, &f.ID, &f.Name, &role, &f.Unread, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning folder row: %w", err)
		}
		f.Role = model.ParseFolderRole(role)
		folders = append(folders, f)
	}

	return folders, rows.Err()
}
