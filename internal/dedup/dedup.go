// Package dedup recognises content that was already ingested.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
)

// Hash returns the hex SHA-256 of everything read from r.
func Hash(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hashing content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes returns the hex SHA-256 of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Detector is a session-scoped set of processed content hashes.
// It is safe for concurrent use.
type Detector struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDetector creates an empty detector.
func NewDetector() *Detector {
	return &Detector{seen: make(map[string]struct{})}
}

// IsDuplicate reports whether hash was marked processed in this session.
func (d *Detector) IsDuplicate(hash string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[hash]
	return ok
}

// MarkProcessed records hash. Callers mark content only once it has been
// ingested, so a failed item can be retried.
func (d *Detector) MarkProcessed(hash string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[hash] = struct{}{}
}

// Seen returns the number of distinct hashes recorded.
func (d *Detector) Seen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// Reset clears the session.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = make(map[string]struct{})
}
