package model

import "time"

// MessageHeader is the lightweight per-message metadata cached for list
// views. Identity is the (AccountID, ID) pair; ID is minted by the gateway,
// is stable across repeated listings, and encodes the owning folder.
type MessageHeader struct {
	AccountID string `json:"account_id"`
	ID        string `json:"id"`

	// FolderID is the folder the message was listed in.
	FolderID string `json:"folder_id"`

	Subject   string `json:"subject"`
	FromName  string `json:"from_name"`
	FromEmail string `json:"from_email"`

	// Date is the message date used for display ordering (descending).
	Date time.Time `json:"date"`

	IsUnread       bool  `json:"is_unread"`
	HasAttachments bool  `json:"has_attachments"`
	Size           int64 `json:"size"`

	// CachedAt is when this header was last written to the local store.
	CachedAt time.Time `json:"cached_at"`
}

// Attachment holds metadata about a single message attachment. Content is
// never cached, only described.
type Attachment struct {
	ID          string `json:"id"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// MessageBody is the full cached content of a message, fetched lazily when
// the message is opened. It shares its identity with its header and may be
// absent even though the header exists.
type MessageBody struct {
	AccountID string `json:"account_id"`
	ID        string `json:"id"`
	FolderID  string `json:"folder_id"`

	BodyHTML string `json:"body_html"`
	BodyText string `json:"body_text"`

	Attachments []Attachment `json:"attachments"`

	CachedAt time.Time `json:"cached_at"`
}
