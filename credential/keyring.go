// Package credential keeps the IMAP password in the operating system
// keyring so it does not have to live in flags, env files or shell history.
package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "application-tracker"

var ErrNotFound = errors.New("credential not found")

type Store struct {
	ring keyring.Keyring
}

// Open returns a store backed by the platform keyring, falling back to an
// encrypted file under ~/.config.
func Open() (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/application-tracker/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("application-tracker-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Store{ring: ring}, nil
}

func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// IMAPKey is the keyring entry for an IMAP account.
func IMAPKey(user string) string {
	return "imap:" + user
}

func (s *Store) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

func (s *Store) Set(key, value string) error {
	err := s.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: "application-tracker " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(key string) error {
	err := s.ring.Remove(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}

// IMAPPassword looks up the stored password for user.
func IMAPPassword(user string) (string, error) {
	store, err := Open()
	if err != nil {
		return "", err
	}
	return store.Get(IMAPKey(user))
}
