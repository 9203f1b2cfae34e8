package testutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nhle/mail-client/internal/gateway"
	"github.com/nhle/mail-client/internal/model"
)

// UpdateCall records one UpdateMessage invocation against the fake.
type UpdateCall struct {
	AccountID string
	MessageID string
	Patch     gateway.UpdatePatch
}

// FakeGateway is an in-memory gateway.Gateway for tests. Header listings
// are served from fixed pages keyed by account/folder; the fake mints its
// own cursors. Setting Unreachable makes every operation fail with a
// network error, and SendErr forces Send to fail with a rejection.
type FakeGateway struct {
	mu sync.Mutex

	AccountConfigs []model.AccountConfig
	FolderInfos    map[string][]gateway.FolderInfo // keyed by account id
	HeaderPages    map[string][][]gateway.Header   // keyed by account id + "/" + folder id
	FullMessages   map[string]*gateway.Message     // keyed by account id + "/" + message id

	Unreachable bool
	SendErr     error

	Sent    []gateway.Outgoing
	Updates []UpdateCall
	calls   map[string]int
}

// NewFakeGateway creates an empty fake gateway.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		FolderInfos:  make(map[string][]gateway.FolderInfo),
		HeaderPages:  make(map[string][][]gateway.Header),
		FullMessages: make(map[string]*gateway.Message),
		calls:        make(map[string]int),
	}
}

// Calls returns how many times the named operation was invoked.
func (f *FakeGateway) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// TotalCalls returns the number of invocations across all operations.
func (f *FakeGateway) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *FakeGateway) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if f.Unreachable {
		return &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	}
	return nil
}

func pageKey(accountID, folderID string) string {
	return accountID + "/" + folderID
}

func messageKey(accountID, messageID string) string {
	return accountID + "/" + messageID
}

func (f *FakeGateway) ListAccounts(ctx context.Context) ([]model.AccountConfig, error) {
	if err := f.record("ListAccounts"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.AccountConfig(nil), f.AccountConfigs...), nil
}

func (f *FakeGateway) CreateAccount(ctx context.Context, in gateway.CreateAccountInput) (*model.AccountConfig, error) {
	if err := f.record("CreateAccount"); err != nil {
		return nil, err
	}
	cfg := model.AccountConfig{
		Account: model.Account{
			ID:           uuid.New().String(),
			Email:        in.Email,
			DisplayName:  in.DisplayName,
			ProviderHint: in.ProviderHint,
		},
		IMAP: in.IMAP,
		SMTP: in.SMTP,
	}
	f.mu.Lock()
	f.AccountConfigs = append(f.AccountConfigs, cfg)
	f.mu.Unlock()
	return &cfg, nil
}

func (f *FakeGateway) DeleteAccount(ctx context.Context, accountID string) error {
	if err := f.record("DeleteAccount"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.AccountConfigs[:0]
	for _, cfg := range f.AccountConfigs {
		if cfg.ID != accountID {
			kept = append(kept, cfg)
		}
	}
	f.AccountConfigs = kept
	return nil
}

func (f *FakeGateway) ListFolders(ctx context.Context, accountID string) ([]gateway.FolderInfo, error) {
	if err := f.record("ListFolders"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.FolderInfo(nil), f.FolderInfos[accountID]...), nil
}

// ListHeaders serves the configured pages in order. The minted cursors are
// opaque to callers; an empty cursor selects the first page and the cursor
// returned with the final page is empty.
func (f *FakeGateway) ListHeaders(ctx context.Context, accountID, folderID, cursor string, pageSize int) (*gateway.HeaderPage, error) {
	if err := f.record("ListHeaders"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	pages := f.HeaderPages[pageKey(accountID, folderID)]

	idx := 0
	if cursor != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(cursor, "page:"))
		if err != nil {
			return nil, fmt.Errorf("invalid cursor %q", cursor)
		}
		idx = n
	}
	if idx >= len(pages) {
		return &gateway.HeaderPage{}, nil
	}

	page := &gateway.HeaderPage{
		Items: append([]gateway.Header(nil), pages[idx]...),
	}
	if idx+1 < len(pages) {
		page.NextCursor = "page:" + strconv.Itoa(idx+1)
	}
	return page, nil
}

func (f *FakeGateway) GetMessage(ctx context.Context, accountID, messageID string) (*gateway.Message, error) {
	if err := f.record("GetMessage"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.FullMessages[messageKey(accountID, messageID)]
	if !ok {
		return nil, fmt.Errorf("message %s not found", messageID)
	}
	copied := *m
	return &copied, nil
}

func (f *FakeGateway) UpdateMessage(ctx context.Context, accountID, messageID string, patch gateway.UpdatePatch) error {
	if err := f.record("UpdateMessage"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Updates = append(f.Updates, UpdateCall{AccountID: accountID, MessageID: messageID, Patch: patch})
	return nil
}

func (f *FakeGateway) Send(ctx context.Context, accountID string, msg gateway.Outgoing) error {
	if err := f.record("Send"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return f.SendErr
	}
	f.Sent = append(f.Sent, msg)
	return nil
}

// SentCount returns how many messages were delivered.
func (f *FakeGateway) SentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sent)
}

// SetUnreachable toggles the network failure switch.
func (f *FakeGateway) SetUnreachable(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Unreachable = v
}

// SetSendErr configures the forced Send failure.
func (f *FakeGateway) SetSendErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SendErr = err
}

// UpdateCalls returns a copy of the recorded UpdateMessage calls.
func (f *FakeGateway) UpdateCalls() []UpdateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]UpdateCall(nil), f.Updates...)
}

var _ gateway.Gateway = (*FakeGateway)(nil)
