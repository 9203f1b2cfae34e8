// Package sync orchestrates cache-first reads and remote refresh for
// accounts, folders, headers, and message bodies. Every view is served from
// the local store immediately; the remote mailbox is consulted only when
// the connectivity monitor reports online.
package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/mail-client/internal/connectivity"
	"github.com/nhle/mail-client/internal/gateway"
	"github.com/nhle/mail-client/internal/model"
	"github.com/nhle/mail-client/internal/store"
)

// fallbackInboxName is selected when an account has no cached or listed
// folders at all.
const fallbackInboxName = "INBOX"

// Coordinator owns the selection state (account, folder, message), the
// pagination cursor, and the merged cache/remote view.
type Coordinator struct {
	store    store.Store
	gw       gateway.Gateway
	monitor  *connectivity.Monitor
	logger   *zap.Logger
	pageSize int

	mu                gosync.Mutex
	accounts          []model.Account
	folders           []model.Folder
	headers           []model.MessageHeader
	message           *model.MessageBody
	selectedAccountID string
	selectedFolderID  string
	selectedMessageID string
	cursor            string

	// Epochs supersede in-flight fetches: a response whose epoch no
	// longer matches is discarded instead of applied.
	folderEpoch  uint64
	messageEpoch uint64
}

// New creates a coordinator with the given collaborators.
func New(s store.Store, gw gateway.Gateway, monitor *connectivity.Monitor, logger *zap.Logger, pageSize int) *Coordinator {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Coordinator{
		store:    s,
		gw:       gw,
		monitor:  monitor,
		logger:   logger,
		pageSize: pageSize,
	}
}

// Initialize hydrates accounts from the cache, selects the first account
// if one exists, and then refreshes the account snapshot from the gateway
// when online. Accounts present locally but absent remotely are left in
// place.
func (c *Coordinator) Initialize(ctx context.Context) error {
	accounts, err := c.store.GetAccounts(ctx)
	if err != nil {
		return fmt.Errorf("loading cached accounts: %w", err)
	}

	c.mu.Lock()
	c.accounts = accounts
	c.mu.Unlock()

	if len(accounts) > 0 {
		if err := c.SelectAccount(ctx, accounts[0].ID); err != nil {
			return err
		}
	}

	if !c.monitor.Online() {
		return nil
	}

	configs, err := c.gw.ListAccounts(ctx)
	if err != nil {
		if gateway.IsUnreachable(err) {
			c.logger.Debug("account refresh skipped, gateway unreachable", zap.Error(err))
			return nil
		}
		return fmt.Errorf("refreshing accounts: %w", err)
	}

	mapped := make([]model.Account, 0, len(configs))
	for _, cfg := range configs {
		mapped = append(mapped, cfg.Account)
	}

	if err := c.store.UpsertAccounts(ctx, mapped); err != nil {
		return fmt.Errorf("caching accounts: %w", err)
	}

	c.mu.Lock()
	c.accounts = mapped
	c.mu.Unlock()

	return nil
}

// AddAccount creates an account through the gateway, caches it, and
// selects it.
func (c *Coordinator) AddAccount(ctx context.Context, in gateway.CreateAccountInput) (*model.Account, error) {
	cfg, err := c.gw.CreateAccount(ctx, in)
	if err != nil {
		return nil, err
	}

	if err := c.store.UpsertAccounts(ctx, []model.Account{cfg.Account}); err != nil {
		return nil, fmt.Errorf("caching new account: %w", err)
	}

	c.mu.Lock()
	c.accounts = append(c.accounts, cfg.Account)
	c.mu.Unlock()

	c.notify(ctx, cfg.ID, "account added")

	if err := c.SelectAccount(ctx, cfg.ID); err != nil {
		return &cfg.Account, err
	}

	return &cfg.Account, nil
}

// RemoveAccount deletes the account from the gateway and purges every
// locally cached record scoped to it, including queued outbox items.
func (c *Coordinator) RemoveAccount(ctx context.Context, id string) error {
	if err := c.gw.DeleteAccount(ctx, id); err != nil {
		return fmt.Errorf("deleting account %s: %w", id, err)
	}

	if err := c.store.DeleteAccount(ctx, id); err != nil {
		return fmt.Errorf("purging account %s: %w", id, err)
	}

	c.mu.Lock()
	kept := c.accounts[:0]
	for _, a := range c.accounts {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	c.accounts = kept

	if c.selectedAccountID == id {
		c.selectedAccountID = ""
		c.selectedFolderID = ""
		c.selectedMessageID = ""
		c.folders = nil
		c.headers = nil
		c.message = nil
		c.cursor = ""
		c.folderEpoch++
		c.messageEpoch++
	}
	c.mu.Unlock()

	c.notify(ctx, id, "account removed")
	return nil
}

// SelectAccount makes the account current, shows its cached folders, then
// replaces the folder snapshot from the gateway when online, and finally
// selects the resolved default folder.
func (c *Coordinator) SelectAccount(ctx context.Context, id string) error {
	c.mu.Lock()
	c.selectedAccountID = id
	c.selectedFolderID = ""
	c.selectedMessageID = ""
	c.headers = nil
	c.message = nil
	c.cursor = ""
	c.folderEpoch++
	c.messageEpoch++
	c.mu.Unlock()

	localFolders, err := c.store.GetFolders(ctx, id)
	if err != nil {
		return fmt.Errorf("loading cached folders: %w", err)
	}

	c.mu.Lock()
	c.folders = localFolders
	c.mu.Unlock()

	defaultFolderID := defaultFolder(localFolders)

	if c.monitor.Online() {
		infos, err := c.gw.ListFolders(ctx, id)
		switch {
		case err == nil:
			now := time.Now()
			mapped := make([]model.Folder, 0, len(infos))
			for _, info := range infos {
				mapped = append(mapped, model.Folder{
					AccountID: id,
					ID:        info.ID,
					Name:      info.Name,
					Role:      info.Role,
					Unread:    info.Unread,
					UpdatedAt: now,
				})
			}

			// The full folder set is a snapshot, not a merge.
			if err := c.store.ReplaceFolders(ctx, id, mapped); err != nil {
				return fmt.Errorf("caching folders: %w", err)
			}

			c.mu.Lock()
			c.folders = mapped
			c.mu.Unlock()

		case gateway.IsUnreachable(err):
			c.logger.Debug("folder refresh skipped, gateway unreachable", zap.Error(err))

		default:
			return fmt.Errorf("listing folders: %w", err)
		}
	}

	finalFolders, err := c.store.GetFolders(ctx, id)
	if err != nil {
		return fmt.Errorf("reloading folders: %w", err)
	}

	folderID := ""
	for _, f := range finalFolders {
		if f.Role == model.RoleInbox {
			folderID = f.ID
			break
		}
	}
	if folderID == "" {
		folderID = defaultFolderID
	}
	if folderID == "" {
		folderID = fallbackInboxName
	}

	return c.SelectFolder(ctx, folderID)
}

// SelectFolder makes the folder current, shows its cached headers sorted
// newest first, and, when online, fetches the first page and atomically
// replaces that folder's cached headers with it. Older pages fetched via
// LoadMore are discarded on re-entry.
func (c *Coordinator) SelectFolder(ctx context.Context, folderID string) error {
	c.mu.Lock()
	accountID := c.selectedAccountID
	if accountID == "" {
		c.mu.Unlock()
		return nil
	}
	c.selectedFolderID = folderID
	c.selectedMessageID = ""
	c.headers = nil
	c.message = nil
	c.cursor = ""
	c.folderEpoch++
	epoch := c.folderEpoch
	c.mu.Unlock()

	cached, err := c.store.GetHeaders(ctx, accountID, folderID)
	if err != nil {
		return fmt.Errorf("loading cached headers: %w", err)
	}

	c.mu.Lock()
	if epoch == c.folderEpoch {
		c.headers = cached
	}
	c.mu.Unlock()

	if !c.monitor.Online() {
		return nil
	}

	page, err := c.gw.ListHeaders(ctx, accountID, folderID, "", c.pageSize)
	if err != nil {
		if gateway.IsUnreachable(err) {
			c.logger.Debug("header refresh skipped, gateway unreachable", zap.Error(err))
			return nil
		}
		return fmt.Errorf("listing headers: %w", err)
	}

	mapped := mapHeaders(accountID, page.Items)

	c.mu.Lock()
	superseded := epoch != c.folderEpoch
	c.mu.Unlock()
	if superseded {
		return nil
	}

	if err := c.store.ReplaceFolderHeaders(ctx, accountID, folderID, mapped); err != nil {
		return fmt.Errorf("caching headers: %w", err)
	}

	c.mu.Lock()
	if epoch == c.folderEpoch {
		c.headers = mapped
		c.cursor = page.NextCursor
	}
	c.mu.Unlock()

	return nil
}

// LoadMore fetches the next header page using the stored cursor and
// appends it to the view and the cache. It is a no-op when offline, when
// no folder is selected, or when paging is exhausted.
func (c *Coordinator) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	accountID := c.selectedAccountID
	folderID := c.selectedFolderID
	cursor := c.cursor
	epoch := c.folderEpoch
	c.mu.Unlock()

	if accountID == "" || folderID == "" || cursor == "" || !c.monitor.Online() {
		return nil
	}

	page, err := c.gw.ListHeaders(ctx, accountID, folderID, cursor, c.pageSize)
	if err != nil {
		if gateway.IsUnreachable(err) {
			return nil
		}
		return fmt.Errorf("listing more headers: %w", err)
	}

	mapped := mapHeaders(accountID, page.Items)

	if err := c.store.UpsertHeaders(ctx, mapped); err != nil {
		return fmt.Errorf("caching headers: %w", err)
	}

	c.mu.Lock()
	if epoch == c.folderEpoch {
		c.headers = append(c.headers, mapped...)
		c.cursor = page.NextCursor
	}
	c.mu.Unlock()

	return nil
}

// SelectMessage shows the cached body immediately when present, then, when
// online, fetches the full message, re-caches it, and fires an
// asynchronous mark-read if the server copy is still unread.
func (c *Coordinator) SelectMessage(ctx context.Context, id string) error {
	c.mu.Lock()
	accountID := c.selectedAccountID
	if accountID == "" {
		c.mu.Unlock()
		return nil
	}
	c.selectedMessageID = id
	c.messageEpoch++
	epoch := c.messageEpoch
	c.mu.Unlock()

	cached, err := c.store.GetBody(ctx, accountID, id)
	if err != nil {
		return fmt.Errorf("loading cached body: %w", err)
	}
	if cached != nil {
		c.mu.Lock()
		if epoch == c.messageEpoch {
			c.message = cached
		}
		c.mu.Unlock()
	}

	if !c.monitor.Online() {
		return nil
	}

	m, err := c.gw.GetMessage(ctx, accountID, id)
	if err != nil {
		if gateway.IsUnreachable(err) {
			return nil
		}
		return fmt.Errorf("fetching message: %w", err)
	}

	body := model.MessageBody{
		AccountID:   accountID,
		ID:          m.ID,
		FolderID:    m.FolderID,
		BodyHTML:    m.BodyHTML,
		BodyText:    m.BodyText,
		Attachments: m.Attachments,
		CachedAt:    time.Now(),
	}

	if err := c.store.PutBody(ctx, body); err != nil {
		return fmt.Errorf("caching body: %w", err)
	}

	c.mu.Lock()
	superseded := epoch != c.messageEpoch
	if !superseded {
		c.message = &body
	}
	c.mu.Unlock()

	// Opening an unread message marks it read, optimistically and without
	// awaiting the result.
	if m.IsUnread && !superseded {
		go func() {
			if err := c.MarkRead(context.Background(), id, true); err != nil {
				c.logger.Warn("auto mark-read failed", zap.String("message_id", id), zap.Error(err))
			}
		}()
	}

	return nil
}

// notify records a user-visible notification, best-effort.
func (c *Coordinator) notify(ctx context.Context, accountID, message string) {
	n := model.Notification{
		AccountID: accountID,
		Message:   message,
		CreatedAt: time.Now(),
	}
	if err := c.store.CreateNotification(ctx, n); err != nil {
		c.logger.Warn("recording notification failed", zap.Error(err))
	}
}

// defaultFolder computes the default folder id from a cached listing:
// the inbox if present, else the first folder in cache order.
func defaultFolder(folders []model.Folder) string {
	for _, f := range folders {
		if f.Role == model.RoleInbox {
			return f.ID
		}
	}
	if len(folders) > 0 {
		return folders[0].ID
	}
	return ""
}

// mapHeaders translates gateway headers into cache records.
func mapHeaders(accountID string, items []gateway.Header) []model.MessageHeader {
	now := time.Now()
	mapped := make([]model.MessageHeader, 0, len(items))
	for _, item := range items {
		mapped = append(mapped, model.MessageHeader{
			AccountID:      accountID,
			ID:             item.ID,
			FolderID:       item.FolderID,
			Subject:        item.Subject,
			FromName:       item.FromName,
			FromEmail:      item.FromEmail,
			Date:           item.Date,
			IsUnread:       item.IsUnread,
			HasAttachments: item.HasAttachments,
			Size:           item.Size,
			CachedAt:       now,
		})
	}
	return mapped
}

// Accounts returns the current account view.
func (c *Coordinator) Accounts() []model.Account {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Account(nil), c.accounts...)
}

// Folders returns the current folder view.
func (c *Coordinator) Folders() []model.Folder {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Folder(nil), c.folders...)
}

// Headers returns the current header view, newest first.
func (c *Coordinator) Headers() []model.MessageHeader {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.MessageHeader(nil), c.headers...)
}

// Message returns the currently shown message body, or nil.
func (c *Coordinator) Message() *model.MessageBody {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message
}

// SelectedAccount returns the selected account id and whether one is set.
func (c *Coordinator) SelectedAccount() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedAccountID, c.selectedAccountID != ""
}

// SelectedFolder returns the selected folder id and whether one is set.
func (c *Coordinator) SelectedFolder() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedFolderID, c.selectedFolderID != ""
}

// Cursor returns the current pagination cursor; empty means exhausted or
// not yet fetched.
func (c *Coordinator) Cursor() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}
