package credential

import (
	"fmt"

	"github.com/99designs/keyring"

	"github.com/nvhoang/maildeck/internal/model"
)

const serviceName = "maildeck"

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/maildeck/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("maildeck-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring.
func Delete(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// PasswordKey is the keyring key for an account's mailbox password.
func PasswordKey(accountID string) string {
	return "password-" + accountID
}

// APIKeyKey is the keyring key for an account's API key.
func APIKeyKey(accountID string) string {
	return "apikey-" + accountID
}

// Resolve fills in the account's secrets from the system keyring when
// the accounts file stores them blank. Accounts that carry inline
// secrets are returned untouched, so plain-file setups keep working.
func Resolve(account model.Account) model.Account {
	switch account.Provider {
	case model.ProviderIMAP:
		if account.Password == "" {
			if v, err := Get(PasswordKey(account.ID)); err == nil {
				account.Password = v
			}
		}
		if account.SMTPPassword == "" {
			account.SMTPPassword = account.Password
		}
	case model.ProviderNylas:
		if account.APIKey == "" {
			if v, err := Get(APIKeyKey(account.ID)); err == nil {
				account.APIKey = v
			}
		}
	}
	return account
}

// Forget removes all keyring entries belonging to an account.
// Missing entries are not an error.
func Forget(accountID string) {
	_ = Delete(PasswordKey(accountID))
	_ = Delete(APIKeyKey(accountID))
}
