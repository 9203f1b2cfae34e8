package model

import "time"

// OutboxStatus is the delivery state of a queued outgoing message.
// There is no terminal "sent" state: successful delivery removes the item.
type OutboxStatus string

const (
	OutboxQueued  OutboxStatus = "queued"
	OutboxSending OutboxStatus = "sending"
	OutboxFailed  OutboxStatus = "failed"
)

// OutboxItem is a durably queued outgoing message awaiting delivery.
// The item carries its own origin account so that it can be delivered
// even when a different account is currently selected.
type OutboxItem struct {
	// ID is a locally minted unique identifier.
	ID string `json:"id"`

	// AccountID is the account the message will be sent from.
	AccountID string `json:"account_id"`

	CreatedAt time.Time `json:"created_at"`

	To      string `json:"to"`
	Cc      string `json:"cc,omitempty"`
	Bcc     string `json:"bcc,omitempty"`
	Subject string `json:"subject"`

	BodyText string `json:"body_text"`
	BodyHTML string `json:"body_html,omitempty"`

	// SentFolderID is the folder a copy is appended to after delivery.
	SentFolderID string `json:"sent_folder_id"`

	Status OutboxStatus `json:"status"`

	// LastError holds the failure detail from the most recent attempt.
	LastError string `json:"last_error,omitempty"`
}
