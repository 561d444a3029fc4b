package gallery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"photovault/internal/archive"
	"photovault/internal/encryption"
	apperrors "photovault/internal/errors"
	"photovault/internal/model"
)

// RestoreStrategy decides what happens to the live library.
type RestoreStrategy int

const (
	// StrategyMerge adds the archive's content to the live library.
	StrategyMerge RestoreStrategy = iota
	// StrategyReplace clears the live library first and restores it if
	// anything goes wrong.
	StrategyReplace
)

func (s RestoreStrategy) String() string {
	switch s {
	case StrategyMerge:
		return "merge"
	case StrategyReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// ParseRestoreStrategy parses "merge" or "replace".
func ParseRestoreStrategy(s string) (RestoreStrategy, error) {
	switch strings.ToLower(s) {
	case "merge", "":
		return StrategyMerge, nil
	case "replace":
		return StrategyReplace, nil
	default:
		return 0, fmt.Errorf("unknown restore strategy %q", s)
	}
}

// DuplicateResolution decides what happens when a restored item collides
// with a live one: categories by name, photos by path.
type DuplicateResolution int

const (
	ResolveSkip DuplicateResolution = iota
	ResolveReplace
	ResolveRename
	// ResolveAskCaller has no interactive round trip; it behaves as
	// ResolveSkip and adds a warning for every collision.
	ResolveAskCaller
)

func (d DuplicateResolution) String() string {
	switch d {
	case ResolveSkip:
		return "skip"
	case ResolveReplace:
		return "replace"
	case ResolveRename:
		return "rename"
	case ResolveAskCaller:
		return "ask"
	default:
		return "unknown"
	}
}

// ParseDuplicateResolution parses "skip", "replace", "rename" or "ask".
func ParseDuplicateResolution(s string) (DuplicateResolution, error) {
	switch strings.ToLower(s) {
	case "skip", "":
		return ResolveSkip, nil
	case "replace":
		return ResolveReplace, nil
	case "rename":
		return ResolveRename, nil
	case "ask":
		return ResolveAskCaller, nil
	default:
		return 0, fmt.Errorf("unknown duplicate resolution %q", s)
	}
}

// RestorePhase is where a restore is, or where it ended.
type RestorePhase int

const (
	PhaseValidating RestorePhase = iota
	PhaseSnapshotCreated
	PhaseApplying
	PhaseCompleted
	PhaseRolledBack
)

func (p RestorePhase) String() string {
	switch p {
	case PhaseValidating:
		return "validating"
	case PhaseSnapshotCreated:
		return "snapshot-created"
	case PhaseApplying:
		return "applying"
	case PhaseCompleted:
		return "completed"
	case PhaseRolledBack:
		return "rolled-back"
	default:
		return "unknown"
	}
}

// RestoreOptions controls a restore.
type RestoreOptions struct {
	Strategy    RestoreStrategy
	OnDuplicate DuplicateResolution
	// ValidateIntegrity re-hashes every media entry before anything is
	// changed and again after it is copied into the library.
	ValidateIntegrity bool
	RestoreThumbnails bool
	RestoreSettings   bool
	DryRun            bool
	// Credential opens an encrypted archive.
	Credential string
}

// Progress is a snapshot of a running restore.
type Progress struct {
	Phase          RestorePhase
	ItemsTotal     int
	ItemsProcessed int
	Operation      string
	Errors         []string
}

// RestoreResult is the outcome of a restore.
type RestoreResult struct {
	Phase              RestorePhase
	Encrypted          bool
	CategoriesRestored int
	PhotosRestored     int
	Skipped            int
	Renamed            int
	Replaced           int
	DeletionsApplied   int
	SettingsRestored   bool
	Warnings           []string
	// Errors are per-item failures. The items were left out and the rest of
	// the restore went ahead.
	Errors        []string
	RolledBack    bool
	RollbackError string
	DryRun        bool
	Plan          *RestorePlan
}

func (r *RestoreResult) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *RestoreResult) fail(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// DeviceLock reports whether a device unlock credential is configured.
// Restore never sees the credential itself.
type DeviceLock interface {
	HasDeviceLock() bool
}

// RestoreOrchestrator validates archives and applies them to the library.
type RestoreOrchestrator struct {
	database Database
	media    MediaStore
	ops      FileOps
	staging  StagingArea
	lock     DeviceLock
	logger   Logger
	idgen    IDGenerator
	limits   archive.Limits
}

// NewRestoreOrchestrator creates a RestoreOrchestrator. lock may be nil.
func NewRestoreOrchestrator(database Database, media MediaStore, ops FileOps, staging StagingArea, lock DeviceLock, logger Logger, idgen IDGenerator, limits archive.Limits) *RestoreOrchestrator {
	return &RestoreOrchestrator{
		database: database,
		media:    media,
		ops:      ops,
		staging:  staging,
		lock:     lock,
		logger:   logger,
		idgen:    idgen,
		limits:   limits,
	}
}

// RestoreJob is a running restore.
type RestoreJob struct {
	progress chan Progress
	done     chan struct{}
	result   *RestoreResult
	err      error
}

// Progress streams progress snapshots. Snapshots are dropped rather than
// block the restore when the reader falls behind. The channel is closed
// when the restore ends.
func (j *RestoreJob) Progress() <-chan Progress {
	return j.progress
}

// Wait blocks until the restore ends. The result is never nil.
func (j *RestoreJob) Wait() (*RestoreResult, error) {
	<-j.done
	return j.result, j.err
}

// Start restores archivePath in the background. Cancelling ctx stops the
// restore between items; a Replace restore is then rolled back.
func (r *RestoreOrchestrator) Start(ctx context.Context, archivePath string, opts RestoreOptions) *RestoreJob {
	job := &RestoreJob{
		progress: make(chan Progress, 32),
		done:     make(chan struct{}),
	}
	go func() {
		defer close(job.done)
		defer close(job.progress)
		report := func(p Progress) {
			select {
			case job.progress <- p:
			default:
			}
		}
		job.result, job.err = r.restore(ctx, archivePath, opts, report)
	}()
	return job
}

// Restore restores archivePath and waits for the result.
func (r *RestoreOrchestrator) Restore(ctx context.Context, archivePath string, opts RestoreOptions) (*RestoreResult, error) {
	return r.Start(ctx, archivePath, opts).Wait()
}

func (r *RestoreOrchestrator) restore(ctx context.Context, archivePath string, opts RestoreOptions, report func(Progress)) (*RestoreResult, error) {
	res := &RestoreResult{Phase: PhaseValidating, DryRun: opts.DryRun}
	report(Progress{Phase: PhaseValidating, Operation: "validating archive"})

	r.logger.Info("restore started",
		"archive", archivePath,
		"strategy", opts.Strategy,
		"on_duplicate", opts.OnDuplicate,
		"dry_run", opts.DryRun)

	rd, err := archive.Open(archivePath, r.limits)
	if err != nil {
		return res, err
	}
	defer rd.Close()

	m, missing, err := r.validate(rd, opts, res)
	if err != nil {
		r.logger.Error("archive rejected", "archive", archivePath, "error", err)
		return res, err
	}

	if opts.DryRun {
		plan, err := r.plan(ctx, m, missing, opts)
		if err != nil {
			return res, err
		}
		res.Plan = plan
		res.Phase = PhaseCompleted
		r.logger.Info("dry run completed", "archive", archivePath)
		return res, nil
	}

	ws, err := r.staging.NewWorkspace(r.idgen.New())
	if err != nil {
		return res, fmt.Errorf("creating restore workspace: %w", err)
	}
	defer func() {
		if err := ws.Cleanup(); err != nil {
			r.logger.Warn("removing restore workspace", "dir", ws.Dir(), "error", err)
		}
	}()

	report(Progress{Phase: PhaseValidating, Operation: "extracting archive"})
	if _, err := rd.Extract(ctx, ws.Dir()); err != nil {
		r.logger.Error("archive rejected", "archive", archivePath, "error", err)
		return res, err
	}

	a := &applier{
		RestoreOrchestrator: r,
		ctx:                 ctx,
		ws:                  ws,
		manifest:            m,
		missing:             missing,
		opts:                opts,
		res:                 res,
		report:              report,
	}
	return a.run()
}

// validate runs every check that must pass before anything is changed. It
// returns the manifest and the photos whose media entry is absent.
func (r *RestoreOrchestrator) validate(rd *archive.Reader, opts RestoreOptions, res *RestoreResult) (*model.Manifest, map[string]bool, error) {
	if err := rd.Check(); err != nil {
		return nil, nil, err
	}
	data, err := rd.ReadMetadata()
	if err != nil {
		return nil, nil, err
	}

	if encryption.IsEnvelope(data) {
		res.Encrypted = true
		if data, err = r.open(data, opts.Credential); err != nil {
			return nil, nil, err
		}
	}

	var m model.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, nil, &apperrors.ValidationError{Reason: "metadata is not valid JSON", Err: err}
	}
	if err := m.Check(); err != nil {
		return nil, nil, &apperrors.ValidationError{Reason: "manifest", Err: err}
	}

	missing := make(map[string]bool)
	if !m.HasMedia() {
		return &m, missing, nil
	}
	for _, p := range m.Photos {
		if p.IsBundled() {
			continue
		}
		fe, _ := m.FileFor(p.ID)
		entry := model.PhotoEntryName(fe.FileName)
		if !rd.Has(entry) {
			missing[p.ID] = true
			res.fail("photo %s: %v", p.ID, &apperrors.IntegrityError{File: entry, Missing: true})
			continue
		}
		if !opts.ValidateIntegrity || fe.Checksum == "" {
			continue
		}
		sum, err := rd.HashEntry(entry)
		if err != nil {
			return nil, nil, err
		}
		if sum != fe.Checksum {
			res.warn("photo %s: %v", p.ID, &apperrors.IntegrityError{File: entry, Expected: fe.Checksum, Actual: sum})
		}
	}
	return &m, missing, nil
}

func (r *RestoreOrchestrator) open(data []byte, credential string) ([]byte, error) {
	if credential == "" {
		if r.lock != nil && r.lock.HasDeviceLock() {
			return nil, fmt.Errorf("archive is encrypted; the device lock credential may open it: %w", apperrors.ErrCredentialRequired)
		}
		return nil, fmt.Errorf("archive is encrypted: %w", apperrors.ErrCredentialRequired)
	}
	env, err := encryption.ParseEnvelope(data)
	if err != nil {
		return nil, &apperrors.ValidationError{Reason: "encryption envelope", Err: err}
	}
	plain, err := encryption.Open(env, credential)
	if err != nil {
		return nil, fmt.Errorf("decrypting metadata: %w", err)
	}
	return plain, nil
}
