package credential

import (
	"bytes"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"

	apperrors "photovault/internal/errors"
	"photovault/internal/gallery"
)

// AgeStore implements gallery.CredentialStore using filippo.io/age.
// The device secret is an X25519 identity kept in identityPath (0600); the
// credential itself is encrypted to that identity's recipient and stored in
// path. The credential never leaves the device through an archive.
type AgeStore struct {
	path         string
	identityPath string
}

var _ gallery.CredentialStore = (*AgeStore)(nil)

// NewAgeStore creates an AgeStore.
func NewAgeStore(path, identityPath string) *AgeStore {
	return &AgeStore{path: path, identityPath: identityPath}
}

// Set stores credential as the device lock, generating the device identity on
// first use.
func (s *AgeStore) Set(credential string) error {
	if credential == "" {
		return fmt.Errorf("credential must not be empty")
	}

	identity, err := s.loadOrCreateIdentity()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("creating credential directory: %w", err)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, identity.Recipient())
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.WriteString(w, credential); err != nil {
		return fmt.Errorf("writing encrypted credential: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing encrypted credential: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("writing credential file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming credential file: %w", err)
	}
	return nil
}

// HasDeviceLock reports whether a credential has been stored.
func (s *AgeStore) HasDeviceLock() bool {
	if _, err := os.Stat(s.path); err != nil {
		return false
	}
	if _, err := os.Stat(s.identityPath); err != nil {
		return false
	}
	return true
}

// DeviceCredential decrypts and returns the stored credential.
func (s *AgeStore) DeviceCredential() (string, error) {
	if !s.HasDeviceLock() {
		return "", apperrors.ErrNoDeviceLock
	}

	identity, err := s.loadIdentity()
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("reading credential file: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(data), identity)
	if err != nil {
		return "", fmt.Errorf("decrypting credential: %w", err)
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading decrypted credential: %w", err)
	}
	return string(plain), nil
}

// Verify reports whether candidate matches the stored credential.
func (s *AgeStore) Verify(candidate string) (bool, error) {
	stored, err := s.DeviceCredential()
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1, nil
}

// Clear removes the stored credential. The device identity is kept.
func (s *AgeStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing credential file: %w", err)
	}
	return nil
}

func (s *AgeStore) loadOrCreateIdentity() (*age.X25519Identity, error) {
	identity, err := s.loadIdentity()
	if err == nil {
		return identity, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	identity, err = age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating device identity: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.identityPath), 0700); err != nil {
		return nil, fmt.Errorf("creating identity directory: %w", err)
	}
	if err := os.WriteFile(s.identityPath, []byte(identity.String()+"\n"), 0600); err != nil {
		return nil, fmt.Errorf("writing device identity: %w", err)
	}
	return identity, nil
}

func (s *AgeStore) loadIdentity() (*age.X25519Identity, error) {
	data, err := os.ReadFile(s.identityPath)
	if err != nil {
		return nil, fmt.Errorf("reading device identity: %w", err)
	}
	identity, err := age.ParseX25519Identity(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("parsing device identity: %w", err)
	}
	return identity, nil
}
