package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/nhle/mail-client/internal/model"
	"github.com/nhle/mail-client/tests/testutil"
)

func testAccount(id, email string) model.Account {
	return model.Account{ID: id, Email: email, DisplayName: "Test User", ProviderHint: "generic"}
}

func testHeader(accountID, folderID, id string, date time.Time) model.MessageHeader {
	return model.MessageHeader{
		AccountID: accountID,
		ID:        id,
		FolderID:  folderID,
		Subject:   "subject " + id,
		FromEmail: "sender@example.com",
		Date:      date,
		IsUnread:  true,
		CachedAt:  time.Now(),
	}
}

func TestAccountRoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	accounts := []model.Account{
		testAccount("a1", "one@example.com"),
		testAccount("a2", "two@example.com"),
	}
	if err := s.UpsertAccounts(ctx, accounts); err != nil {
		t.Fatalf("UpsertAccounts: %v", err)
	}

	got, err := s.GetAccounts(ctx)
	if err != nil {
		t.Fatalf("GetAccounts: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(got))
	}
	if got[0].Email != "one@example.com" {
		t.Errorf("expected first account in insertion order, got %q", got[0].Email)
	}

	// Upserting the same id updates in place instead of duplicating.
	accounts[0].DisplayName = "Renamed"
	if err := s.UpsertAccounts(ctx, accounts[:1]); err != nil {
		t.Fatalf("UpsertAccounts: %v", err)
	}
	got, err = s.GetAccounts(ctx)
	if err != nil {
		t.Fatalf("GetAccounts: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 accounts after upsert, got %d", len(got))
	}
	if got[0].DisplayName != "Renamed" {
		t.Errorf("expected updated display name, got %q", got[0].DisplayName)
	}
}

func TestDeleteAccountCascades(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	if err := s.UpsertAccounts(ctx, []model.Account{testAccount("a1", "one@example.com")}); err != nil {
		t.Fatalf("UpsertAccounts: %v", err)
	}
	if err := s.ReplaceFolders(ctx, "a1", []model.Folder{
		{AccountID: "a1", ID: "INBOX", Name: "Inbox", Role: model.RoleInbox},
	}); err != nil {
		t.Fatalf("ReplaceFolders: %v", err)
	}
	if err := s.UpsertHeaders(ctx, []model.MessageHeader{
		testHeader("a1", "INBOX", "m1", time.Now()),
	}); err != nil {
		t.Fatalf("UpsertHeaders: %v", err)
	}
	if err := s.PutBody(ctx, model.MessageBody{AccountID: "a1", ID: "m1", FolderID: "INBOX", BodyText: "hi"}); err != nil {
		t.Fatalf("PutBody: %v", err)
	}
	if err := s.PutOutboxItem(ctx, model.OutboxItem{
		ID: "o1", AccountID: "a1", To: "x@example.com", Status: model.OutboxQueued, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("PutOutboxItem: %v", err)
	}

	if err := s.DeleteAccount(ctx, "a1"); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}

	accounts, err := s.GetAccounts(ctx)
	if err != nil {
		t.Fatalf("GetAccounts: %v", err)
	}
	if len(accounts) != 0 {
		t.Errorf("expected no accounts, got %d", len(accounts))
	}

	folders, err := s.GetFolders(ctx, "a1")
	if err != nil {
		t.Fatalf("GetFolders: %v", err)
	}
	if len(folders) != 0 {
		t.Errorf("expected no folders, got %d", len(folders))
	}

	headers, err := s.GetHeaders(ctx, "a1", "INBOX")
	if err != nil {
		t.Fatalf("GetHeaders: %v", err)
	}
	if len(headers) != 0 {
		t.Errorf("expected no headers, got %d", len(headers))
	}

	body, err := s.GetBody(ctx, "a1", "m1")
	if err != nil {
		t.Fatalf("GetBody: %v", err)
	}
	if body != nil {
		t.Error("expected cached body to be purged")
	}

	items, err := s.GetOutboxItems(ctx, model.OutboxQueued, model.OutboxSending, model.OutboxFailed)
	if err != nil {
		t.Fatalf("GetOutboxItems: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected queued outbox items to be purged, got %d", len(items))
	}
}

func TestReplaceFoldersIsSnapshot(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	if err := s.ReplaceFolders(ctx, "a1", []model.Folder{
		{AccountID: "a1", ID: "INBOX", Name: "Inbox", Role: model.RoleInbox},
		{AccountID: "a1", ID: "Old", Name: "Old", Role: model.RoleFolder},
	}); err != nil {
		t.Fatalf("ReplaceFolders: %v", err)
	}

	if err := s.ReplaceFolders(ctx, "a1", []model.Folder{
		{AccountID: "a1", ID: "INBOX", Name: "Inbox", Role: model.RoleInbox, Unread: 3},
		{AccountID: "a1", ID: "Archive", Name: "Archive", Role: model.RoleFolder},
	}); err != nil {
		t.Fatalf("ReplaceFolders: %v", err)
	}

	folders, err := s.GetFolders(ctx, "a1")
	if err != nil {
		t.Fatalf("GetFolders: %v", err)
	}
	if len(folders) != 2 {
		t.Fatalf("expected 2 folders, got %d", len(folders))
	}
	if folders[0].ID != "INBOX" || folders[1].ID != "Archive" {
		t.Errorf("expected snapshot order [INBOX Archive], got [%s %s]", folders[0].ID, folders[1].ID)
	}
	if folders[0].Unread != 3 {
		t.Errorf("expected refreshed unread count 3, got %d", folders[0].Unread)
	}
}

func TestGetHeadersNewestFirst(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := s.UpsertHeaders(ctx, []model.MessageHeader{
		testHeader("a1", "INBOX", "old", base.Add(-2*time.Hour)),
		testHeader("a1", "INBOX", "new", base),
		testHeader("a1", "INBOX", "mid", base.Add(-time.Hour)),
	}); err != nil {
		t.Fatalf("UpsertHeaders: %v", err)
	}

	headers, err := s.GetHeaders(ctx, "a1", "INBOX")
	if err != nil {
		t.Fatalf("GetHeaders: %v", err)
	}
	if len(headers) != 3 {
		t.Fatalf("expected 3 headers, got %d", len(headers))
	}
	if headers[0].ID != "new" || headers[1].ID != "mid" || headers[2].ID != "old" {
		t.Errorf("expected newest-first order [new mid old], got [%s %s %s]",
			headers[0].ID, headers[1].ID, headers[2].ID)
	}
}

func TestReplaceFolderHeadersLeavesOtherFoldersIntact(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	now := time.Now()
	if err := s.UpsertHeaders(ctx, []model.MessageHeader{
		testHeader("a1", "INBOX", "stale", now),
		testHeader("a1", "Sent", "keep", now),
	}); err != nil {
		t.Fatalf("UpsertHeaders: %v", err)
	}

	if err := s.ReplaceFolderHeaders(ctx, "a1", "INBOX", []model.MessageHeader{
		testHeader("a1", "INBOX", "fresh", now),
	}); err != nil {
		t.Fatalf("ReplaceFolderHeaders: %v", err)
	}

	inbox, err := s.GetHeaders(ctx, "a1", "INBOX")
	if err != nil {
		t.Fatalf("GetHeaders: %v", err)
	}
	if len(inbox) != 1 || inbox[0].ID != "fresh" {
		t.Fatalf("expected inbox to hold only the fresh page, got %+v", inbox)
	}

	sent, err := s.GetHeaders(ctx, "a1", "Sent")
	if err != nil {
		t.Fatalf("GetHeaders: %v", err)
	}
	if len(sent) != 1 || sent[0].ID != "keep" {
		t.Fatalf("expected sent folder untouched, got %+v", sent)
	}
}

func TestSetHeaderUnread(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	if err := s.UpsertHeaders(ctx, []model.MessageHeader{
		testHeader("a1", "INBOX", "m1", time.Now()),
	}); err != nil {
		t.Fatalf("UpsertHeaders: %v", err)
	}

	if err := s.SetHeaderUnread(ctx, "a1", "m1", false); err != nil {
		t.Fatalf("SetHeaderUnread: %v", err)
	}

	headers, err := s.GetHeaders(ctx, "a1", "INBOX")
	if err != nil {
		t.Fatalf("GetHeaders: %v", err)
	}
	if headers[0].IsUnread {
		t.Error("expected header to be marked read")
	}
}

func TestBodyRoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	missing, err := s.GetBody(ctx, "a1", "m1")
	if err != nil {
		t.Fatalf("GetBody: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil body before caching")
	}

	body := model.MessageBody{
		AccountID: "a1",
		ID:        "m1",
		FolderID:  "INBOX",
		BodyHTML:  "<p>hello</p>",
		BodyText:  "hello",
		Attachments: []model.Attachment{
			{ID: "m1::att::0", FileName: "report.pdf", ContentType: "application/pdf", Size: 2048},
		},
		CachedAt: time.Now(),
	}
	if err := s.PutBody(ctx, body); err != nil {
		t.Fatalf("PutBody: %v", err)
	}

	got, err := s.GetBody(ctx, "a1", "m1")
	if err != nil {
		t.Fatalf("GetBody: %v", err)
	}
	if got == nil {
		t.Fatal("expected cached body")
	}
	if got.BodyText != "hello" || got.BodyHTML != "<p>hello</p>" {
		t.Errorf("body content mismatch: %+v", got)
	}
	if len(got.Attachments) != 1 || got.Attachments[0].FileName != "report.pdf" {
		t.Errorf("attachment metadata mismatch: %+v", got.Attachments)
	}
}

func TestOutboxLifecycle(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	item := model.OutboxItem{
		ID:        "o1",
		AccountID: "a1",
		To:        "rcpt@example.com",
		Subject:   "hello",
		BodyText:  "body",
		Status:    model.OutboxQueued,
		CreatedAt: time.Now(),
	}
	if err := s.PutOutboxItem(ctx, item); err != nil {
		t.Fatalf("PutOutboxItem: %v", err)
	}

	claimed, err := s.ClaimOutboxItem(ctx, "o1")
	if err != nil {
		t.Fatalf("ClaimOutboxItem: %v", err)
	}
	if !claimed {
		t.Fatal("expected first claim to succeed")
	}

	// The item is now sending, so a concurrent flush must be refused.
	claimed, err = s.ClaimOutboxItem(ctx, "o1")
	if err != nil {
		t.Fatalf("ClaimOutboxItem: %v", err)
	}
	if claimed {
		t.Fatal("expected second claim to be refused")
	}

	if err := s.MarkOutboxFailed(ctx, "o1", "connection reset"); err != nil {
		t.Fatalf("MarkOutboxFailed: %v", err)
	}
	got, err := s.GetOutboxItem(ctx, "o1")
	if err != nil {
		t.Fatalf("GetOutboxItem: %v", err)
	}
	if got.Status != model.OutboxFailed {
		t.Errorf("expected failed status, got %q", got.Status)
	}
	if got.LastError != "connection reset" {
		t.Errorf("expected last error recorded, got %q", got.LastError)
	}

	// A failed item is claimable again and the claim clears the error.
	claimed, err = s.ClaimOutboxItem(ctx, "o1")
	if err != nil {
		t.Fatalf("ClaimOutboxItem: %v", err)
	}
	if !claimed {
		t.Fatal("expected failed item to be claimable")
	}
	got, err = s.GetOutboxItem(ctx, "o1")
	if err != nil {
		t.Fatalf("GetOutboxItem: %v", err)
	}
	if got.Status != model.OutboxSending {
		t.Errorf("expected sending status, got %q", got.Status)
	}
	if got.LastError != "" {
		t.Errorf("expected last error cleared, got %q", got.LastError)
	}

	if err := s.DeleteOutboxItem(ctx, "o1"); err != nil {
		t.Fatalf("DeleteOutboxItem: %v", err)
	}
	gone, err := s.GetOutboxItem(ctx, "o1")
	if err != nil {
		t.Fatalf("GetOutboxItem: %v", err)
	}
	if gone != nil {
		t.Error("expected delivered item to be removed")
	}
}

func TestGetOutboxItemsFiltersByStatus(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, status := range []model.OutboxStatus{model.OutboxQueued, model.OutboxSending, model.OutboxFailed} {
		item := model.OutboxItem{
			ID:        string(status),
			AccountID: "a1",
			To:        "rcpt@example.com",
			Status:    status,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.PutOutboxItem(ctx, item); err != nil {
			t.Fatalf("PutOutboxItem: %v", err)
		}
	}

	items, err := s.GetOutboxItems(ctx, model.OutboxQueued, model.OutboxFailed)
	if err != nil {
		t.Fatalf("GetOutboxItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ID != "queued" || items[1].ID != "failed" {
		t.Errorf("expected [queued failed] in creation order, got [%s %s]", items[0].ID, items[1].ID)
	}
}

func TestNotifications(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	if err := s.CreateNotification(ctx, model.Notification{
		AccountID: "a1", Message: "sent", CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}

	unread, err := s.GetUnreadNotifications(ctx)
	if err != nil {
		t.Fatalf("GetUnreadNotifications: %v", err)
	}
	if len(unread) != 1 {
		t.Fatalf("expected 1 unread notification, got %d", len(unread))
	}
	if unread[0].Message != "sent" {
		t.Errorf("unexpected message %q", unread[0].Message)
	}

	if err := s.MarkNotificationRead(ctx, unread[0].ID); err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}
	unread, err = s.GetUnreadNotifications(ctx)
	if err != nil {
		t.Fatalf("GetUnreadNotifications: %v", err)
	}
	if len(unread) != 0 {
		t.Errorf("expected no unread notifications, got %d", len(unread))
	}
}
