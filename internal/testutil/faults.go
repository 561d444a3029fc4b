package testutil

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"photovault/internal/gallery"
	"photovault/internal/model"
)

// ErrInjected is the error returned by injected faults.
var ErrInjected = errors.New("injected fault")

type fault struct {
	after int
	calls int
	err   error
	fired bool
}

// FaultyDatabase wraps a Database and fails chosen calls once.
type FaultyDatabase struct {
	gallery.Database

	mu     sync.Mutex
	faults map[string]*fault
}

// NewFaultyDatabase wraps db with no faults armed.
func NewFaultyDatabase(db gallery.Database) *FaultyDatabase {
	return &FaultyDatabase{Database: db, faults: make(map[string]*fault)}
}

// FailOnce lets after calls of method through, fails the next one with err
// (ErrInjected when nil), and lets every later call through again. Supported
// methods: CreateCategory, UpdateCategory, CreatePhoto, DeletePhoto,
// ClearLibrary, SaveSettings.
func (f *FaultyDatabase) FailOnce(method string, after int, err error) {
	if err == nil {
		err = ErrInjected
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults[method] = &fault{after: after, err: err}
}

// Fired reports whether the fault armed for method has triggered.
func (f *FaultyDatabase) Fired(method string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	ft, ok := f.faults[method]
	return ok && ft.fired
}

func (f *FaultyDatabase) trip(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ft, ok := f.faults[method]
	if !ok || ft.fired {
		return nil
	}
	ft.calls++
	if ft.calls <= ft.after {
		return nil
	}
	ft.fired = true
	return ft.err
}

func (f *FaultyDatabase) CreateCategory(ctx context.Context, c *model.Category) error {
	if err := f.trip("CreateCategory"); err != nil {
		return err
	}
	return f.Database.CreateCategory(ctx, c)
}

func (f *FaultyDatabase) UpdateCategory(ctx context.Context, c *model.Category) error {
	if err := f.trip("UpdateCategory"); err != nil {
		return err
	}
	return f.Database.UpdateCategory(ctx, c)
}

func (f *FaultyDatabase) CreatePhoto(ctx context.Context, p *model.Photo) error {
	if err := f.trip("CreatePhoto"); err != nil {
		return err
	}
	return f.Database.CreatePhoto(ctx, p)
}

func (f *FaultyDatabase) DeletePhoto(ctx context.Context, id string) error {
	if err := f.trip("DeletePhoto"); err != nil {
		return err
	}
	return f.Database.DeletePhoto(ctx, id)
}

func (f *FaultyDatabase) ClearLibrary(ctx context.Context) error {
	if err := f.trip("ClearLibrary"); err != nil {
		return err
	}
	return f.Database.ClearLibrary(ctx)
}

func (f *FaultyDatabase) SaveSettings(ctx context.Context, s *model.Settings) error {
	if err := f.trip("SaveSettings"); err != nil {
		return err
	}
	return f.Database.SaveSettings(ctx, s)
}

// FaultyMediaStore wraps a MediaStore and fails every Put while a put error
// is set, the way a full disk would.
type FaultyMediaStore struct {
	gallery.MediaStore

	mu      sync.Mutex
	putErr  error
	nextErr error
	puts    atomic.Int64
}

// NewFaultyMediaStore wraps store with no fault armed.
func NewFaultyMediaStore(store gallery.MediaStore) *FaultyMediaStore {
	return &FaultyMediaStore{MediaStore: store}
}

// FailPuts makes every Put fail with err; nil heals the store.
func (f *FaultyMediaStore) FailPuts(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putErr = err
}

// FailNextPut makes only the next Put fail with err.
func (f *FaultyMediaStore) FailNextPut(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextErr = err
}

// Puts returns how many Put calls were made, failed ones included.
func (f *FaultyMediaStore) Puts() int {
	return int(f.puts.Load())
}

func (f *FaultyMediaStore) Put(rel string, r io.Reader) (string, int64, error) {
	f.puts.Add(1)
	f.mu.Lock()
	err := f.putErr
	if err == nil {
		err, f.nextErr = f.nextErr, nil
	}
	f.mu.Unlock()
	if err != nil {
		return "", 0, err
	}
	return f.MediaStore.Put(rel, r)
}
