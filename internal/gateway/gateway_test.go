package gateway

import (
	"errors"
	"fmt"
	"net"
	"os"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsUnreachable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"net.Error", timeoutErr{}, true},
		{"op error", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"wrapped op error", fmt.Errorf("connecting: %w", &net.OpError{Op: "dial", Err: errors.New("refused")}), true},
		{"refused text", errors.New("connection refused"), true},
		{"dns text", errors.New("lookup imap.example.com: no such host"), true},
		{"server rejection", errors.New("NO [AUTHENTICATIONFAILED] invalid credentials"), false},
		{"plain error", os.ErrPermission, false},
	}

	for _, tc := range cases {
		if got := IsUnreachable(tc.err); got != tc.want {
			t.Errorf("%s: IsUnreachable = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsAuthError(t *testing.T) {
	authErr := &AuthError{AccountID: "a1", Message: "invalid credentials"}

	if !IsAuthError(authErr) {
		t.Error("expected direct AuthError to match")
	}
	if !IsAuthError(fmt.Errorf("logging in: %w", authErr)) {
		t.Error("expected wrapped AuthError to match")
	}
	if IsAuthError(errors.New("connection refused")) {
		t.Error("expected network error not to match")
	}
}
