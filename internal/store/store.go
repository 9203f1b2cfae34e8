package store

import (
	"context"

	"github.com/nhle/mail-client/internal/model"
)

// Store defines the persistence interface for the five locally cached
// record kinds: accounts, folders, message headers, message bodies, and
// outbox items, plus user-visible notifications.
//
// All bulk operations are transactional: a concurrent reader never sees a
// partially applied bulk write for the same record kind.
type Store interface {
	// === Accounts ===

	UpsertAccounts(ctx context.Context, accounts []model.Account) error
	GetAccounts(ctx context.Context) ([]model.Account, error)

	// DeleteAccount removes the account and cascades to its folders,
	// headers, bodies, and outbox items in a single transaction.
	DeleteAccount(ctx context.Context, id string) error

	// === Folders ===

	// ReplaceFolders swaps the entire folder set for an account with the
	// given snapshot atomically.
	ReplaceFolders(ctx context.Context, accountID string, folders []model.Folder) error
	GetFolders(ctx context.Context, accountID string) ([]model.Folder, error)

	// === Message headers ===

	// GetHeaders returns the cached headers for a folder, newest first.
	GetHeaders(ctx context.Context, accountID, folderID string) ([]model.MessageHeader, error)
	UpsertHeaders(ctx context.Context, headers []model.MessageHeader) error

	// ReplaceFolderHeaders atomically replaces the cached headers of one
	// folder with the given page, leaving other folders untouched.
	ReplaceFolderHeaders(ctx context.Context, accountID, folderID string, headers []model.MessageHeader) error
	SetHeaderUnread(ctx context.Context, accountID, id string, unread bool) error
	DeleteHeader(ctx context.Context, accountID, id string) error

	// === Message bodies ===

	// GetBody returns the cached body, or nil if it has not been fetched.
	GetBody(ctx context.Context, accountID, id string) (*model.MessageBody, error)
	PutBody(ctx context.Context, body model.MessageBody) error

	// === Outbox ===

	PutOutboxItem(ctx context.Context, item model.OutboxItem) error
	GetOutboxItem(ctx context.Context, id string) (*model.OutboxItem, error)
	GetOutboxItems(ctx context.Context, statuses ...model.OutboxStatus) ([]model.OutboxItem, error)

	// ClaimOutboxItem transitions an item from queued or failed to
	// sending and clears its last error. It reports whether the claim
	// succeeded; a false result means another flush already owns the
	// item. This is the sole admission gate for delivery attempts.
	ClaimOutboxItem(ctx context.Context, id string) (bool, error)
	MarkOutboxFailed(ctx context.Context, id, lastError string) error
	DeleteOutboxItem(ctx context.Context, id string) error

	// === Notifications ===

	CreateNotification(ctx context.Context, n model.Notification) error
	GetUnreadNotifications(ctx context.Context) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}
