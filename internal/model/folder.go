package model

import "time"

// FolderRole is the normalized category of a mail folder, derived from
// provider-specific folder attributes by the gateway.
type FolderRole string

const (
	RoleInbox  FolderRole = "inbox"
	RoleSent   FolderRole = "sent"
	RoleDrafts FolderRole = "drafts"
	RoleTrash  FolderRole = "trash"
	RoleJunk   FolderRole = "junk"
	RoleFolder FolderRole = "folder"
)

// ParseFolderRole maps a role string onto the closed set of folder roles.
// Unknown values fall back to the generic RoleFolder so that a misbehaving
// gateway cannot introduce new variants into the cache.
func ParseFolderRole(s string) FolderRole {
	switch FolderRole(s) {
	case RoleInbox, RoleSent, RoleDrafts, RoleTrash, RoleJunk, RoleFolder:
		return FolderRole(s)
	default:
		return RoleFolder
	}
}

// Folder is the locally cached view of a remote mail folder. Identity is
// the (AccountID, ID) pair; the full folder set for an account is replaced
// wholesale on every successful listing.
type Folder struct {
	// AccountID scopes the folder to its owning account.
	AccountID string `json:"account_id"`

	// ID is the gateway's folder identifier (the full folder path).
	ID string `json:"id"`

	// Name is the display name of the folder.
	Name string `json:"name"`

	// Role is the normalized folder category.
	Role FolderRole `json:"role"`

	// Unread is the unread message count reported by the gateway.
	Unread int `json:"unread"`

	// UpdatedAt is when this snapshot of the folder was taken.
	UpdatedAt time.Time `json:"updated_at"`
}
