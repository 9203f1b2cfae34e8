package model

import (
	"errors"
	"fmt"
	"strings"
)

// Account is the locally cached view of a mail account. The id is opaque
// and minted by the gateway when the account is created.
type Account struct {
	// ID is the server-assigned unique identifier for this account.
	ID string `json:"id"`

	// Email is the primary address of the account.
	Email string `json:"email"`

	// DisplayName is the name shown as the sender on outgoing mail.
	DisplayName string `json:"display_name"`

	// ProviderHint identifies the mail provider (e.g., "gmail", "generic")
	// and is used to pre-fill server endpoints.
	ProviderHint string `json:"provider_hint"`
}

// ServerEndpoint describes how to reach one mail protocol endpoint.
type ServerEndpoint struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	UseSSL      bool   `json:"use_ssl"`
	UseStartTLS bool   `json:"use_start_tls"`
}

// Addr returns the host:port dial address for the endpoint.
func (e ServerEndpoint) Addr() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// Validate rejects endpoints that could never be dialed.
func (e ServerEndpoint) Validate() error {
	if strings.TrimSpace(e.Host) == "" {
		return errors.New("missing host")
	}
	if e.Port <= 0 || e.Port > 65535 {
		return fmt.Errorf("invalid port %d", e.Port)
	}
	return nil
}

// AccountConfig is the full gateway-side configuration for an account,
// including the server endpoints needed to open sessions. The cached
// Account record is a projection of this.
type AccountConfig struct {
	Account

	IMAP ServerEndpoint `json:"imap"`
	SMTP ServerEndpoint `json:"smtp"`
}

// Validate checks an account configuration before it is persisted or used
// to open a connection.
func (c AccountConfig) Validate() error {
	if !strings.Contains(c.Email, "@") {
		return fmt.Errorf("invalid email %q", c.Email)
	}
	if err := c.IMAP.Validate(); err != nil {
		return fmt.Errorf("imap endpoint: %w", err)
	}
	if err := c.SMTP.Validate(); err != nil {
		return fmt.Errorf("smtp endpoint: %w", err)
	}
	return nil
}
