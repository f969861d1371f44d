package session

import (
	"errors"
	"sync"

	"github.com/zalando/go-keyring"
)

const trustFlagValue = "trusted"

// KeyringTrustStore persists the remember-me flag in the OS keychain, so it
// survives process restarts and stays scoped to the local device.
type KeyringTrustStore struct {
	service string
	account string
	logger  Logger
}

var _ DeviceTrustStore = (*KeyringTrustStore)(nil)

// NewKeyringTrustStore creates a keychain-backed trust store. The service
// name namespaces the entry per application.
func NewKeyringTrustStore(service, account string, logger Logger) *KeyringTrustStore {
	if logger == nil {
		logger = defLogger{}
	}
	if account == "" {
		account = "remember-me"
	}
	return &KeyringTrustStore{
		service: service,
		account: account,
		logger:  logger,
	}
}

// Read reports the stored flag. A missing entry or an unreadable keychain
// both read as untrusted; we never fabricate a positive answer.
func (s *KeyringTrustStore) Read() bool {
	value, err := keyring.Get(s.service, s.account)
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			s.logger.Warn("keyring read failed: %v", err)
		}
		return false
	}
	return value == trustFlagValue
}

func (s *KeyringTrustStore) Write(trusted bool) error {
	if !trusted {
		return s.Clear()
	}
	return keyring.Set(s.service, s.account, trustFlagValue)
}

func (s *KeyringTrustStore) Clear() error {
	err := keyring.Delete(s.service, s.account)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// MemoryTrustStore is an in-process DeviceTrustStore for tests and demo
// wiring. Starts untrusted, like a fresh device.
type MemoryTrustStore struct {
	mu      sync.Mutex
	trusted bool
}

var _ DeviceTrustStore = (*MemoryTrustStore)(nil)

func NewMemoryTrustStore() *MemoryTrustStore {
	return &MemoryTrustStore{}
}

func (s *MemoryTrustStore) Read() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trusted
}

func (s *MemoryTrustStore) Write(trusted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trusted = trusted
	return nil
}

func (s *MemoryTrustStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trusted = false
	return nil
}
