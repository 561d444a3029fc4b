package credential

import (
	"sync"

	apperrors "photovault/internal/errors"
	"photovault/internal/gallery"
)

// MemoryStore keeps the credential in memory, for tests.
type MemoryStore struct {
	mu         sync.Mutex
	credential string
}

var _ gallery.CredentialStore = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore, optionally already locked.
func NewMemoryStore(credential string) *MemoryStore {
	return &MemoryStore{credential: credential}
}

func (s *MemoryStore) Set(credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = credential
	return nil
}

func (s *MemoryStore) HasDeviceLock() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credential != ""
}

func (s *MemoryStore) DeviceCredential() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.credential == "" {
		return "", apperrors.ErrNoDeviceLock
	}
	return s.credential, nil
}

func (s *MemoryStore) Verify(candidate string) (bool, error) {
	c, err := s.DeviceCredential()
	if err != nil {
		return false, err
	}
	return c == candidate, nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = ""
	return nil
}
