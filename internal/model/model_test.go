package model

import "testing"

func TestParseFolderRole(t *testing.T) {
	cases := []struct {
		in   string
		want FolderRole
	}{
		{"inbox", RoleInbox},
		{"sent", RoleSent},
		{"drafts", RoleDrafts},
		{"trash", RoleTrash},
		{"junk", RoleJunk},
		{"folder", RoleFolder},
		{"archive", RoleFolder},
		{"", RoleFolder},
		{"INBOX", RoleFolder},
	}

	for _, tc := range cases {
		if got := ParseFolderRole(tc.in); got != tc.want {
			t.Errorf("ParseFolderRole(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestServerEndpointValidate(t *testing.T) {
	valid := ServerEndpoint{Host: "imap.example.com", Port: 993, UseSSL: true}
	if err := valid.Validate(); err != nil {
		t.Errorf("expected valid endpoint, got %v", err)
	}

	for _, e := range []ServerEndpoint{
		{Host: "", Port: 993},
		{Host: "  ", Port: 993},
		{Host: "imap.example.com", Port: 0},
		{Host: "imap.example.com", Port: 70000},
	} {
		if err := e.Validate(); err == nil {
			t.Errorf("expected error for %+v", e)
		}
	}
}

func TestAccountConfigValidate(t *testing.T) {
	cfg := AccountConfig{
		Account: Account{ID: "a1", Email: "user@example.com"},
		IMAP:    ServerEndpoint{Host: "imap.example.com", Port: 993},
		SMTP:    ServerEndpoint{Host: "smtp.example.com", Port: 587},
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}

	bad := cfg
	bad.Email = "not-an-address"
	if err := bad.Validate(); err == nil {
		t.Error("expected error for invalid email")
	}

	bad = cfg
	bad.SMTP.Host = ""
	if err := bad.Validate(); err == nil {
		t.Error("expected error for missing smtp host")
	}
}

func TestServerEndpointAddr(t *testing.T) {
	e := ServerEndpoint{Host: "imap.example.com", Port: 993}
	if got := e.Addr(); got != "imap.example.com:993" {
		t.Errorf("Addr() = %q", got)
	}
}
