package imapgw

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/nhle/mail-client/internal/credential"
	"github.com/nhle/mail-client/internal/gateway"
	"github.com/nhle/mail-client/internal/model"
)

// providerDefaults maps a provider hint to well-known server endpoints,
// used when an account is created without explicit endpoints.
var providerDefaults = map[string]struct {
	imap model.ServerEndpoint
	smtp model.ServerEndpoint
}{
	"gmail": {
		imap: model.ServerEndpoint{Host: "imap.gmail.com", Port: 993, UseSSL: true},
		smtp: model.ServerEndpoint{Host: "smtp.gmail.com", Port: 587, UseStartTLS: true},
	},
	"outlook": {
		imap: model.ServerEndpoint{Host: "outlook.office365.com", Port: 993, UseSSL: true},
		smtp: model.ServerEndpoint{Host: "smtp.office365.com", Port: 587, UseStartTLS: true},
	},
	"yahoo": {
		imap: model.ServerEndpoint{Host: "imap.mail.yahoo.com", Port: 993, UseSSL: true},
		smtp: model.ServerEndpoint{Host: "smtp.mail.yahoo.com", Port: 587, UseStartTLS: true},
	},
}

// AccountRegistry persists account configurations in a JSON file and keeps
// passwords in the OS keyring, keyed by account id.
type AccountRegistry struct {
	path string
	mu   sync.Mutex
}

// NewAccountRegistry creates a registry backed by the given file path.
func NewAccountRegistry(path string) *AccountRegistry {
	return &AccountRegistry{path: path}
}

// List returns all registered account configurations.
func (r *AccountRegistry) List() ([]model.AccountConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// Get returns the configuration for one account.
func (r *AccountRegistry) Get(accountID string) (*model.AccountConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	configs, err := r.load()
	if err != nil {
		return nil, err
	}

	for i := range configs {
		if configs[i].ID == accountID {
			return &configs[i], nil
		}
	}

	return nil, fmt.Errorf("account %s not found", accountID)
}

// Create validates the input, fills endpoint defaults from the provider
// hint, mints an account id, stores the password in the keyring, and
// persists the configuration.
func (r *AccountRegistry) Create(in gateway.CreateAccountInput) (*model.AccountConfig, error) {
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

	if cfg.IMAP.Host == "" || cfg.SMTP.Host == "" {
		defaults, ok := providerDefaults[in.ProviderHint]
		if !ok {
			return nil, fmt.Errorf("no server endpoints given and no defaults for provider %q", in.ProviderHint)
		}
		if cfg.IMAP.Host == "" {
			cfg.IMAP = defaults.imap
		}
		if cfg.SMTP.Host == "" {
			cfg.SMTP = defaults.smtp
		}
	}
	if cfg.ProviderHint == "" {
		cfg.ProviderHint = "generic"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating account: %w", err)
	}

	if in.Password != "" {
		if err := credential.Set(credentialKey(cfg.ID), in.Password); err != nil {
			return nil, fmt.Errorf("storing password: %w", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	configs, err := r.load()
	if err != nil {
		return nil, err
	}

	configs = append(configs, cfg)
	if err := r.save(configs); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Delete removes an account configuration and its stored password.
func (r *AccountRegistry) Delete(accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	configs, err := r.load()
	if err != nil {
		return err
	}

	kept := configs[:0]
	found := false
	for _, cfg := range configs {
		if cfg.ID == accountID {
			found = true
			continue
		}
		kept = append(kept, cfg)
	}
	if !found {
		return fmt.Errorf("account %s not found", accountID)
	}

	if err := r.save(kept); err != nil {
		return err
	}

	// Best-effort: a missing keyring entry is not an error here.
	_ = credential.Delete(credentialKey(accountID))

	return nil
}

// Password retrieves the stored password for an account.
func (r *AccountRegistry) Password(accountID string) (string, error) {
	return credential.Get(credentialKey(accountID))
}

func credentialKey(accountID string) string {
	return "account:" + accountID
}

// load reads the registry file. A missing file is an empty registry.
func (r *AccountRegistry) load() ([]model.AccountConfig, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading accounts file %s: %w", r.path, err)
	}

	var configs []model.AccountConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("parsing accounts file %s: %w", r.path, err)
	}

	return configs, nil
}

// save writes the registry file, creating parent directories if needed.
func (r *AccountRegistry) save(configs []model.AccountConfig) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("creating accounts directory: %w", err)
	}

	data, err := json.MarshalIndent(configs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding accounts: %w", err)
	}

	if err := os.WriteFile(r.path, data, 0o600); err != nil {
		return fmt.Errorf("writing accounts file %s: %w", r.path, err)
	}

	return nil
}
