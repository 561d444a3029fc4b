package dedup

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

func TestHash(t *testing.T) {
	const want = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

	got, err := Hash(strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if got != want {
		t.Errorf("Hash() = %s, want %s", got, want)
	}
	if HashBytes([]byte("hello")) != want {
		t.Errorf("HashBytes() disagrees with Hash()")
	}
}

func TestDetector(t *testing.T) {
	d := NewDetector()
	h := HashBytes([]byte("photo"))

	if d.IsDuplicate(h) {
		t.Fatal("fresh detector reports duplicate")
	}
	d.MarkProcessed(h)
	if !d.IsDuplicate(h) {
		t.Fatal("marked hash not reported as duplicate")
	}
	if d.Seen() != 1 {
		t.Errorf("Seen() = %d, want 1", d.Seen())
	}

	d.Reset()
	if d.Seen() != 0 || d.IsDuplicate(h) {
		t.Error("Reset() did not clear the session")
	}
}

func TestDetector_Concurrent(t *testing.T) {
	d := NewDetector()

	var marked atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h := HashBytes([]byte{byte(i % 8)})
			d.MarkProcessed(h)
			if d.IsDuplicate(h) {
				marked.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if got := marked.Load(); got != 32 {
		t.Errorf("%d workers saw their own mark, want 32", got)
	}
	if d.Seen() != 8 {
		t.Errorf("Seen() = %d, want 8", d.Seen())
	}
}
