package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"tagfinder/pkg/tumblr"
)

// DefaultAccount names credentials stored without an explicit account name
const DefaultAccount = "default"

// Account is a named set of Tumblr OAuth 1.0a credentials
type Account struct {
	Name           string    `json:"name"`
	ConsumerKey    string    `json:"consumer_key"`
	ConsumerSecret string    `json:"consumer_secret"`
	Token          string    `json:"oauth_token"`
	TokenSecret    string    `json:"oauth_token_secret"`
	LastModified   time.Time `json:"last_modified"`
}

// Validate reports every missing field at once
func (a *Account) Validate() error {
	var errs []error
	if a.Name == "" {
		errs = append(errs, errors.New("account name is required"))
	}
	if a.ConsumerKey == "" {
		errs = append(errs, errors.New("consumer key is required"))
	}
	if a.ConsumerSecret == "" {
		errs = append(errs, errors.New("consumer secret is required"))
	}
	if a.Token == "" {
		errs = append(errs, errors.New("OAuth token is required"))
	}
	if a.TokenSecret == "" {
		errs = append(errs, errors.New("OAuth token secret is required"))
	}
	return errors.Join(errs...)
}

// Credentials converts the account for the API client
func (a *Account) Credentials() tumblr.Credentials {
	return tumblr.Credentials{
		ConsumerKey:    a.ConsumerKey,
		ConsumerSecret: a.ConsumerSecret,
		Token:          a.Token,
		TokenSecret:    a.TokenSecret,
	}
}

// CredentialStore is one place credentials can live
type CredentialStore interface {
	Store(account *Account) error
	Retrieve(name string) (*Account, error)
	List() ([]*Account, error)
	Delete(name string) error
	Exists(name string) bool
}

// Manager tries several stores in order: system keyring, encrypted file,
// then environment variables
type Manager struct {
	stores []CredentialStore
}

// NewManager wires the default store chain. The keyring is skipped when the
// platform has none.
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores builds a manager over an explicit store chain
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves the account in the first store that accepts it
func (m *Manager) Store(account *Account) error {
	if account.Name == "" {
		account.Name = DefaultAccount
	}
	if err := account.Validate(); err != nil {
		return err
	}
	account.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(account); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve returns the account from the first store that has it
func (m *Manager) Retrieve(name string) (*Account, error) {
	for _, store := range m.stores {
		if account, err := store.Retrieve(name); err == nil && account != nil {
			return account, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCredentialsNotFound, name)
}

// RetrieveDefault prefers credentials from the environment, then the most
// recently modified stored account
func (m *Manager) RetrieveDefault() (*Account, error) {
	for _, store := range m.stores {
		if env, ok := store.(*EnvironmentStore); ok {
			if account, err := env.Retrieve(""); err == nil {
				return account, nil
			}
		}
	}

	accounts, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, ErrCredentialsNotFound
	}
	latest := accounts[0]
	for _, a := range accounts[1:] {
		if a.LastModified.After(latest.LastModified) {
			latest = a
		}
	}
	return latest, nil
}

// List merges every store, keeping the newest copy of each account, sorted by name
func (m *Manager) List() ([]*Account, error) {
	byName := make(map[string]*Account)
	for _, store := range m.stores {
		accounts, err := store.List()
		if err != nil {
			continue
		}
		for _, account := range accounts {
			if existing, ok := byName[account.Name]; !ok || account.LastModified.After(existing.LastModified) {
				byName[account.Name] = account
			}
		}
	}

	result := make([]*Account, 0, len(byName))
	for _, account := range byName {
		result = append(result, account)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Delete removes the account from every store that has it
func (m *Manager) Delete(name string) error {
	var deleted bool
	var lastErr error
	for _, store := range m.stores {
		if err := store.Delete(name); err != nil {
			lastErr = err
			continue
		}
		deleted = true
	}

	switch {
	case deleted:
		return nil
	case lastErr != nil && !errors.Is(lastErr, ErrCredentialsNotFound) && !errors.Is(lastErr, ErrStoreUnavailable):
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	default:
		return fmt.Errorf("%w: %s", ErrCredentialsNotFound, name)
	}
}

func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "tagfinder")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "tagfinder")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "tagfinder")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "tagfinder")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// SanitizeAccount returns a copy safe to print
func SanitizeAccount(account *Account) *Account {
	if account == nil {
		return nil
	}
	return &Account{
		Name:           account.Name,
		ConsumerKey:    maskString(account.ConsumerKey),
		ConsumerSecret: maskString(account.ConsumerSecret),
		Token:          maskString(account.Token),
		TokenSecret:    maskString(account.TokenSecret),
		LastModified:   account.LastModified,
	}
}

// maskString keeps the first and last four characters
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
