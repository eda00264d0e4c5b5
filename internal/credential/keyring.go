package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "changeadapter"

// ErrNotFound is returned when no credential is stored under a key.
var ErrNotFound = keyring.ErrKeyNotFound

// Store is the subset of keyring.Keyring used by this package.
type Store interface {
	Get(key string) (keyring.Item, error)
	Set(item keyring.Item) error
	Remove(key string) error
}

// opener returns the keyring to use; tests replace it.
var opener = openKeyring

// UseStore makes the package use s instead of the system keyring until
// the returned restore function is called.
func UseStore(s Store) (restore func()) {
	prev := opener
	opener = func() (Store, error) { return s, nil }
	return func() { opener = prev }
}

// openKeyring returns a configured keyring instance.
func openKeyring() (Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/changeadapter/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("changeadapter-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// PasswordKey returns the keyring key holding an instance's password.
func PasswordKey(instanceID string) string {
	return "servicenow-" + instanceID
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := opener()
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
	ring, err := opener()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: "ServiceNow adapter " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring.
func Delete(key string) error {
	ring, err := opener()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// ResolvePassword returns configured when it is non-empty and otherwise
// looks the password up in the keyring under PasswordKey(instanceID).
func ResolvePassword(instanceID, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}

	pw, err := Get(PasswordKey(instanceID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf(
				"no password configured for instance %s and none in keyring: %w",
				instanceID, err,
			)
		}
		return "", err
	}
	return pw, nil
}
