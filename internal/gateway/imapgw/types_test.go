package imapgw

import (
	"testing"

	"github.com/emersion/go-imap/v2"

	"github.com/nhle/mail-client/internal/model"
)

func TestMessageIDRoundTrip(t *testing.T) {
	cases := []struct {
		folderID string
		uid      imap.UID
	}{
		{"INBOX", 1},
		{"Sent Items", 42},
		{"Parent/Child", 123456},
		{"weird::name", 7},
	}

	for _, tc := range cases {
		id := encodeMessageID(tc.folderID, tc.uid)
		folderID, uid, err := decodeMessageID(id)
		if err != nil {
			t.Errorf("decodeMessageID(%q): %v", id, err)
			continue
		}
		if folderID != tc.folderID || uid != tc.uid {
			t.Errorf("round trip of (%q, %d) gave (%q, %d)", tc.folderID, tc.uid, folderID, uid)
		}
	}
}

func TestDecodeMessageIDRejectsMalformed(t *testing.T) {
	for _, id := range []string{"", "INBOX", "INBOX::uid::", "INBOX::uid::abc"} {
		if _, _, err := decodeMessageID(id); err == nil {
			t.Errorf("expected error for %q", id)
		}
	}
}

func TestCursorRoundTrip(t *testing.T) {
	cursor := encodeCursor(900)
	bound, err := decodeCursor(cursor)
	if err != nil {
		t.Fatalf("decodeCursor(%q): %v", cursor, err)
	}
	if bound != 900 {
		t.Errorf("expected bound 900, got %d", bound)
	}
}

func TestEmptyCursorMeansNewest(t *testing.T) {
	bound, err := decodeCursor("")
	if err != nil {
		t.Fatalf("decodeCursor: %v", err)
	}
	if bound != ^uint32(0) {
		t.Errorf("expected max uint32 bound, got %d", bound)
	}
}

func TestDecodeCursorRejectsForeignValues(t *testing.T) {
	for _, cursor := range []string{"900", "page:2", "uid:", "uid:x"} {
		if _, err := decodeCursor(cursor); err == nil {
			t.Errorf("expected error for %q", cursor)
		}
	}
}

func TestFolderRoleMapping(t *testing.T) {
	cases := []struct {
		mailbox string
		attrs   []imap.MailboxAttr
		want    model.FolderRole
	}{
		{"INBOX", nil, model.RoleInbox},
		{"inbox", nil, model.RoleInbox},
		{"Sent", []imap.MailboxAttr{imap.MailboxAttrSent}, model.RoleSent},
		{"Drafts", []imap.MailboxAttr{imap.MailboxAttrDrafts}, model.RoleDrafts},
		{"Deleted", []imap.MailboxAttr{imap.MailboxAttrTrash}, model.RoleTrash},
		{"Spam", []imap.MailboxAttr{imap.MailboxAttrJunk}, model.RoleJunk},
		{"Projects", nil, model.RoleFolder},
		{"Sent", nil, model.RoleFolder},
	}

	for _, tc := range cases {
		if got := folderRole(tc.mailbox, tc.attrs); got != tc.want {
			t.Errorf("folderRole(%q, %v) = %q, want %q", tc.mailbox, tc.attrs, got, tc.want)
		}
	}
}

func TestSplitAddressList(t *testing.T) {
	got := splitAddressList(" a@example.com, ,b@example.com ,")
	if len(got) != 2 || got[0] != "a@example.com" || got[1] != "b@example.com" {
		t.Errorf("unexpected split result %v", got)
	}
	if got := splitAddressList(""); len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}
