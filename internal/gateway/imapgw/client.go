// Package imapgw implements the remote mailbox gateway over IMAP and SMTP.
package imapgw

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"

	"github.com/nhle/mail-client/internal/gateway"
	"github.com/nhle/mail-client/internal/model"
)

// Gateway talks to IMAP/SMTP servers using the configurations held in an
// AccountRegistry. It implements the gateway.Gateway interface.
type Gateway struct {
	registry *AccountRegistry
	logger   *zap.Logger
}

// New creates a gateway backed by the given account registry.
func New(registry *AccountRegistry, logger *zap.Logger) *Gateway {
	return &Gateway{registry: registry, logger: logger}
}

// connect opens an authenticated IMAP session for an account. The caller
// is responsible for calling Logout on the returned client.
func (g *Gateway) connect(_ context.Context, cfg *model.AccountConfig) (*imapclient.Client, error) {
	addr := cfg.IMAP.Addr()

	var client *imapclient.Client
	var err error

	if cfg.IMAP.UseSSL {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	password, err := g.registry.Password(cfg.ID)
	if err != nil {
		_ = client.Logout().Wait()
		return nil, &gateway.AuthError{
			AccountID: cfg.ID,
			Message:   fmt.Sprintf("no stored password for %s: %v", cfg.Email, err),
		}
	}

	if err := client.Login(cfg.Email, password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &gateway.AuthError{
			AccountID: cfg.ID,
			Message:   fmt.Sprintf("authentication failed for %s: %v", cfg.Email, err),
		}
	}

	return client, nil
}

// ListAccounts returns all registered account configurations.
func (g *Gateway) ListAccounts(_ context.Context) ([]model.AccountConfig, error) {
	return g.registry.List()
}

// CreateAccount registers a new account and verifies its credentials by
// opening an IMAP session. A failed verification removes the registration.
func (g *Gateway) CreateAccount(ctx context.Context, in gateway.CreateAccountInput) (*model.AccountConfig, error) {
	cfg, err := g.registry.Create(in)
	if err != nil {
		return nil, err
	}

	client, err := g.connect(ctx, cfg)
	if err != nil {
		_ = g.registry.Delete(cfg.ID)
		return nil, fmt.Errorf("verifying account %s: %w", cfg.Email, err)
	}
	_ = client.Logout().Wait()

	g.logger.Info("account created",
		zap.String("account_id", cfg.ID),
		zap.String("email", cfg.Email),
	)

	return cfg, nil
}

// DeleteAccount removes an account registration.
func (g *Gateway) DeleteAccount(_ context.Context, accountID string) error {
	return g.registry.Delete(accountID)
}

// ListFolders lists the account's mailboxes with unread counts and
// normalized roles.
func (g *Gateway) ListFolders(ctx context.Context, accountID string) ([]gateway.FolderInfo, error) {
	cfg, err := g.registry.Get(accountID)
	if err != nil {
		return nil, err
	}

	client, err := g.connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	listCmd := client.List("", "*", &imap.ListOptions{
		ReturnStatus: &imap.StatusOptions{NumUnseen: true},
	})

	mailboxes, err := listCmd.Collect()
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}

	folders := make([]gateway.FolderInfo, 0, len(mailboxes))
	for _, mbox := range mailboxes {
		unread := 0
		if mbox.Status != nil && mbox.Status.NumUnseen != nil {
			unread = int(*mbox.Status.NumUnseen)
		}

		folders = append(folders, gateway.FolderInfo{
			ID:     mbox.Mailbox,
			Name:   mbox.Mailbox,
			Unread: unread,
			Role:   folderRole(mbox.Mailbox, mbox.Attrs),
		})
	}

	// Inbox first, then by name, matching the listing order users expect.
	sort.SliceStable(folders, func(i, j int) bool {
		if (folders[i].Role == model.RoleInbox) != (folders[j].Role == model.RoleInbox) {
			return folders[i].Role == model.RoleInbox
		}
		return folders[i].Name < folders[j].Name
	})

	return folders, nil
}

// ListHeaders fetches one page of message headers, newest first, paged by
// descending UID below the cursor's exclusive bound.
func (g *Gateway) ListHeaders(ctx context.Context, accountID, folderID, cursor string, pageSize int) (*gateway.HeaderPage, error) {
	if pageSize < 1 {
		pageSize = 50
	}

	upperExclusive, err := decodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	cfg, err := g.registry.Get(accountID)
	if err != nil {
		return nil, err
	}

	client, err := g.connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(folderID, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, fmt.Errorf("selecting folder %s: %w", folderID, err)
	}

	searchData, err := client.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching folder %s: %w", folderID, err)
	}

	uids := searchData.AllUIDs()
	page := make([]imap.UID, 0, pageSize)

	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
	for _, uid := range uids {
		if uint32(uid) >= upperExclusive {
			continue
		}
		page = append(page, uid)
		if len(page) == pageSize {
			break
		}
	}

	if len(page) == 0 {
		return &gateway.HeaderPage{}, nil
	}

	fetchOpts := &imap.FetchOptions{
		Envelope:      true,
		Flags:         true,
		UID:           true,
		RFC822Size:    true,
		BodyStructure: &imap.FetchItemBodyStructure{},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(page...), fetchOpts)
	defer fetchCmd.Close()

	items := make([]gateway.Header, 0, len(page))
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		items = append(items, headerFromBuffer(folderID, buf))
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("fetching headers: %w", err)
	}

	// Fetch responses arrive in mailbox order; restore newest-first.
	sort.SliceStable(items, func(i, j int) bool { return items[i].Date.After(items[j].Date) })

	resp := &gateway.HeaderPage{Items: items}
	if len(page) == pageSize {
		resp.NextCursor = encodeCursor(page[len(page)-1])
	}

	return resp, nil
}

// GetMessage fetches the full content of a single message.
func (g *Gateway) GetMessage(ctx context.Context, accountID, messageID string) (*gateway.Message, error) {
	folderID, uid, err := decodeMessageID(messageID)
	if err != nil {
		return nil, err
	}

	cfg, err := g.registry.Get(accountID)
	if err != nil {
		return nil, err
	}

	client, err := g.connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(folderID, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, fmt.Errorf("selecting folder %s: %w", folderID, err)
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		Flags:       true,
		UID:         true,
		RFC822Size:  true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uid), fetchOpts)
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return nil, fmt.Errorf("message %s not found", messageID)
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, fmt.Errorf("collecting message data: %w", err)
	}

	result := &gateway.Message{Header: headerFromBuffer(folderID, buf)}

	if buf.Envelope != nil {
		for _, to := range buf.Envelope.To {
			result.To = append(result.To, to.Addr())
		}
		for _, cc := range buf.Envelope.Cc {
			result.Cc = append(result.Cc, cc.Addr())
		}
	}

	if raw := buf.FindBodySection(bodySection); raw != nil {
		text, html, attachments := parseMIMEBody(messageID, raw)
		result.BodyText = text
		result.BodyHTML = html
		result.Attachments = attachments
		result.HasAttachments = len(attachments) > 0
	}

	if err := fetchCmd.Close(); err != nil {
		return result, fmt.Errorf("closing fetch: %w", err)
	}

	return result, nil
}

// UpdateMessage applies flag, move, and delete mutations to a message.
func (g *Gateway) UpdateMessage(ctx context.Context, accountID, messageID string, patch gateway.UpdatePatch) error {
	folderID, uid, err := decodeMessageID(messageID)
	if err != nil {
		return err
	}

	cfg, err := g.registry.Get(accountID)
	if err != nil {
		return err
	}

	client, err := g.connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(folderID, nil).Wait(); err != nil {
		return fmt.Errorf("selecting folder %s: %w", folderID, err)
	}

	uidSet := imap.UIDSetNum(uid)

	if patch.MarkRead {
		if err := storeFlags(client, uidSet, imap.StoreFlagsAdd, imap.FlagSeen); err != nil {
			return fmt.Errorf("marking %s read: %w", messageID, err)
		}
	}

	if patch.MarkUnread {
		if err := storeFlags(client, uidSet, imap.StoreFlagsDel, imap.FlagSeen); err != nil {
			return fmt.Errorf("marking %s unread: %w", messageID, err)
		}
	}

	if patch.MoveToFolderID != "" {
		if _, err := client.Move(uidSet, patch.MoveToFolderID).Wait(); err != nil {
			return fmt.Errorf("moving %s to %s: %w", messageID, patch.MoveToFolderID, err)
		}
	}

	if patch.Delete {
		if err := storeFlags(client, uidSet, imap.StoreFlagsAdd, imap.FlagDeleted); err != nil {
			return fmt.Errorf("flagging %s deleted: %w", messageID, err)
		}
		if err := client.Expunge().Close(); err != nil {
			return fmt.Errorf("expunging %s: %w", folderID, err)
		}
	}

	return nil
}

// storeFlags applies a silent flag change to a UID set.
func storeFlags(client *imapclient.Client, uidSet imap.UIDSet, op imap.StoreFlagsOp, flags ...imap.Flag) error {
	return client.Store(uidSet, &imap.StoreFlags{
		Op:     op,
		Silent: true,
		Flags:  flags,
	}, nil).Close()
}

// headerFromBuffer maps a fetched message onto the listing header shape.
func headerFromBuffer(folderID string, buf *imapclient.FetchMessageBuffer) gateway.Header {
	h := gateway.Header{
		ID:       encodeMessageID(folderID, buf.UID),
		FolderID: folderID,
		Date:     time.Now(),
		IsUnread: true,
		Size:     buf.RFC822Size,
	}

	if buf.Envelope != nil {
		h.Subject = buf.Envelope.Subject
		if !buf.Envelope.Date.IsZero() {
			h.Date = buf.Envelope.Date
		}
		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			h.FromName = from.Name
			h.FromEmail = from.Addr()
		}
	}

	for _, flag := range buf.Flags {
		if flag == imap.FlagSeen {
			h.IsUnread = false
		}
	}

	if buf.BodyStructure != nil {
		h.HasAttachments = hasAttachments(buf.BodyStructure)
	}

	return h
}

// hasAttachments walks a body structure looking for a part with an
// attachment disposition.
func hasAttachments(bs imap.BodyStructure) bool {
	found := false
	bs.Walk(func(path []int, part imap.BodyStructure) bool {
		if disp := part.Disposition(); disp != nil && disp.Value == "attachment" {
			found = true
		}
		return !found
	})
	return found
}
