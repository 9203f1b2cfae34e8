package imapgw

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/emersion/go-imap/v2"

	"github.com/nhle/mail-client/internal/model"
)

// Message ids are minted as "<folderId>::uid::<uid>" so that a message can
// be resolved back to its owning folder without an extra lookup. IMAP UIDs
// are stable for a mailbox as long as UIDVALIDITY holds, which gives the
// stability the listing contract requires.
const messageIDSep = "::uid::"

// encodeMessageID builds the opaque message id for a folder/UID pair.
func encodeMessageID(folderID string, uid imap.UID) string {
	return fmt.Sprintf("%s%s%d", folderID, messageIDSep, uid)
}

// decodeMessageID splits a message id back into its folder and UID.
func decodeMessageID(messageID string) (folderID string, uid imap.UID, err error) {
	idx := strings.LastIndex(messageID, messageIDSep)
	if idx < 0 {
		return "", 0, fmt.Errorf("invalid message id %q", messageID)
	}

	folderID = messageID[:idx]
	raw := messageID[idx+len(messageIDSep):]

	parsed, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return "", 0, fmt.Errorf("invalid uid in message id %q: %w", messageID, err)
	}

	return folderID, imap.UID(parsed), nil
}

// Cursors are minted as "uid:<n>": the next page contains messages whose
// UID is strictly below n. Paging walks newest-first, so cursors are
// monotonically decreasing.
const cursorPrefix = "uid:"

// encodeCursor builds the cursor for the page below the given UID.
func encodeCursor(minUID imap.UID) string {
	return cursorPrefix + strconv.FormatUint(uint64(minUID), 10)
}

// decodeCursor returns the exclusive upper UID bound for a page request.
// An empty cursor means "start from the newest message".
func decodeCursor(cursor string) (uint32, error) {
	if cursor == "" {
		return ^uint32(0), nil
	}
	if !strings.HasPrefix(cursor, cursorPrefix) {
		return 0, fmt.Errorf("invalid cursor %q", cursor)
	}

	parsed, err := strconv.ParseUint(cursor[len(cursorPrefix):], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid cursor %q: %w", cursor, err)
	}

	return uint32(parsed), nil
}

// folderRole derives the normalized role for a listed mailbox from its
// name and attributes.
func folderRole(mailbox string, attrs []imap.MailboxAttr) model.FolderRole {
	if strings.EqualFold(mailbox, "INBOX") {
		return model.RoleInbox
	}

	for _, attr := range attrs {
		switch attr {
		case imap.MailboxAttrSent:
			return model.RoleSent
		case imap.MailboxAttrDrafts:
			return model.RoleDrafts
		case imap.MailboxAttrTrash:
			return model.RoleTrash
		case imap.MailboxAttrJunk:
			return model.RoleJunk
		}
	}

	return model.RoleFolder
}

// splitAddressList splits a comma-separated address list into trimmed,
// non-empty entries.
func splitAddressList(s string) []string {
	parts := strings.Split(s, ",")
	addrs := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			addrs = append(addrs, trimmed)
		}
	}
	return addrs
}
