package auth

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables holding Tumblr credentials
const (
	EnvConsumerKey    = "TUMBLR_CONSUMER_KEY"
	EnvConsumerSecret = "TUMBLR_CONSUMER_SECRET"
	EnvOAuthToken     = "TUMBLR_OAUTH_TOKEN"
	EnvOAuthSecret    = "TUMBLR_OAUTH_SECRET"
)

// EnvironmentStore reads the TUMBLR_* variables. It is read-only.
type EnvironmentStore struct{}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve ignores name; the environment holds a single account
func (e *EnvironmentStore) Retrieve(name string) (*Account, error) {
	account := &Account{
		Name:           name,
		ConsumerKey:    os.Getenv(EnvConsumerKey),
		ConsumerSecret: os.Getenv(EnvConsumerSecret),
		Token:          os.Getenv(EnvOAuthToken),
		TokenSecret:    os.Getenv(EnvOAuthSecret),
	}
	if account.ConsumerKey == "" || account.ConsumerSecret == "" || account.Token == "" || account.TokenSecret == "" {
		return nil, ErrCredentialsNotFound
	}
	if account.Name == "" {
		account.Name = "environment"
	}
	account.LastModified = time.Now()
	return account, nil
}

func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(name string) bool {
	_, err := e.Retrieve(name)
	return err == nil
}

// WriteEnvFile saves the account as TUMBLR_* lines, e.g. to .env, so later
// runs pick it up through the config loader
func WriteEnvFile(account *Account, path string) error {
	return godotenv.Write(map[string]string{
		EnvConsumerKey:    account.ConsumerKey,
		EnvConsumerSecret: account.ConsumerSecret,
		EnvOAuthToken:     account.Token,
		EnvOAuthSecret:    account.TokenSecret,
	}, path)
}
