// Package gateway defines the contract with the remote mailbox. The sync
// coordinator and outbox engine only ever talk to a remote mailbox through
// this interface; cached records are translated from its responses.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/nhle/mail-client/internal/model"
)

// AuthError indicates that authentication failed or expired for an account.
type AuthError struct {
	AccountID string
	Message   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.AccountID, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsUnreachable reports whether err looks like the gateway being
// unreachable (network down, DNS failure, timeout) rather than a rejection
// by an authenticated server. Unreachable errors degrade operations to
// cache-only; rejections propagate or are recorded per the caller's policy.
func IsUnreachable(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "network is unreachable")
}

// CreateAccountInput carries everything needed to register a new account.
type CreateAccountInput struct {
	Email        string
	DisplayName  string
	Password     string
	ProviderHint string

	// IMAP and SMTP may be zero values when ProviderHint carries known
	// endpoint defaults.
	IMAP model.ServerEndpoint
	SMTP model.ServerEndpoint
}

// FolderInfo describes one remote folder in a listing response.
type FolderInfo struct {
	ID     string
	Name   string
	Unread int
	Role   model.FolderRole
}

// Header describes one message in a header listing response. The ID is
// opaque to callers, stable across repeated listings of the same folder,
// and resolvable back to the owning folder by the gateway alone.
type Header struct {
	ID             string
	FolderID       string
	Subject        string
	FromName       string
	FromEmail      string
	Date           time.Time
	IsUnread       bool
	HasAttachments bool
	Size           int64
}

// HeaderPage is one page of a cursor-paginated header listing. An empty
// NextCursor means no further pages. The cursor is minted by the gateway
// and must never be parsed or constructed by callers.
type HeaderPage struct {
	Items      []Header
	NextCursor string
}

// Message is the full content of a single fetched message.
type Message struct {
	Header

	To []string
	Cc []string

	BodyHTML string
	BodyText string

	Attachments []model.Attachment
}

// UpdatePatch describes a message mutation. Zero-valued fields are ignored.
type UpdatePatch struct {
	MarkRead       bool
	MarkUnread     bool
	MoveToFolderID string
	Delete         bool
}

// Outgoing is a message submitted for delivery.
type Outgoing struct {
	To      string
	Cc      string
	Bcc     string
	Subject string

	BodyText string
	BodyHTML string

	// SentFolderID is where a copy is appended after delivery.
	SentFolderID string
}

// Gateway exposes the remote mailbox operations, all scoped to one account
// per call. Every operation may fail with a connection error (IsUnreachable)
// or an authentication error (IsAuthError).
type Gateway interface {
	ListAccounts(ctx context.Context) ([]model.AccountConfig, error)
	CreateAccount(ctx context.Context, in CreateAccountInput) (*model.AccountConfig, error)
	DeleteAccount(ctx context.Context, accountID string) error

	ListFolders(ctx context.Context, accountID string) ([]FolderInfo, error)

	// ListHeaders fetches one page of headers, newest first. An empty
	// cursor requests the first page.
	ListHeaders(ctx context.Context, accountID, folderID, cursor string, pageSize int) (*HeaderPage, error)

	GetMessage(ctx context.Context, accountID, messageID string) (*Message, error)
	UpdateMessage(ctx context.Context, accountID, messageID string, patch UpdatePatch) error

	Send(ctx context.Context, accountID string, msg Outgoing) error
}
