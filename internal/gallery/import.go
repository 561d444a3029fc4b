package gallery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"photovault/internal/breaker"
	"photovault/internal/dedup"
	apperrors "photovault/internal/errors"
	"photovault/internal/media"
	"photovault/internal/model"
)

// ImportOptions controls a batch import. Zero fields take the pipeline's
// configured defaults.
type ImportOptions struct {
	// CategoryID is the category new photos are filed under. Empty means the
	// "general" category, or the first category when that is gone.
	CategoryID    string
	MaxBatchSize  int
	Workers       int
	MaxDimension  int
	Quality       int
	ThumbnailSize int
	// MaxPixels refuses pictures whose header declares more pixels.
	MaxPixels int
}

// DefaultImportOptions returns the built-in import settings.
func DefaultImportOptions() ImportOptions {
	return ImportOptions{
		MaxBatchSize:  50,
		Workers:       4,
		MaxDimension:  1920,
		Quality:       85,
		ThumbnailSize: 300,
		MaxPixels:     media.DefaultMaxPixels,
	}
}

func (o ImportOptions) withDefaults(d ImportOptions) ImportOptions {
	if o.CategoryID == "" {
		o.CategoryID = d.CategoryID
	}
	if o.MaxBatchSize <= 0 {
		o.MaxBatchSize = d.MaxBatchSize
	}
	if o.Workers <= 0 {
		o.Workers = d.Workers
	}
	if o.MaxDimension <= 0 {
		o.MaxDimension = d.MaxDimension
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = d.Quality
	}
	if o.ThumbnailSize <= 0 {
		o.ThumbnailSize = d.ThumbnailSize
	}
	if o.MaxPixels <= 0 {
		o.MaxPixels = d.MaxPixels
	}
	return o
}

// ResultKind tells which variant an ImportResult is.
type ResultKind int

const (
	ResultSuccess ResultKind = iota
	ResultDuplicate
	ResultError
)

func (k ResultKind) String() string {
	switch k {
	case ResultSuccess:
		return "success"
	case ResultDuplicate:
		return "duplicate"
	case ResultError:
		return "error"
	default:
		return "unknown"
	}
}

// ImportResult is the outcome of one import source.
//
// Success sets PhotoID, Path, ThumbnailPath, Checksum and Metadata.
// Duplicate sets Checksum, and PhotoID when the earlier copy is in the
// library. Error sets Message and Err.
type ImportResult struct {
	Index         int
	Source        string
	Kind          ResultKind
	PhotoID       string
	Path          string
	ThumbnailPath string // empty when no thumbnail could be made
	Checksum      string // SHA-256 of the source content
	Metadata      *model.PhotoMetadata
	Message       string
	Err           error
}

// ImportSummary counts the outcomes of a batch.
type ImportSummary struct {
	Attempted    int
	Imported     int
	Duplicates   int
	Failed       int
	NotAttempted int
}

// ImportStatistics are the pipeline's counters since it was created.
type ImportStatistics struct {
	TotalImported      int
	DuplicatesDetected int
	CircuitState       breaker.State
	FailureCount       int
}

// ImportPipeline validates, deduplicates, optimizes and stores photos.
// One pipeline is shared by every import of a session; its duplicate
// detector and breaker span batches.
type ImportPipeline struct {
	db       Database
	media    MediaStore
	breaker  *breaker.Breaker
	detector *dedup.Detector
	ops      FileOps
	logger   Logger
	ids      IDGenerator
	defaults ImportOptions

	imported   atomic.Int64
	duplicates atomic.Int64
}

// NewImportPipeline creates an ImportPipeline. brk guards every item; pass a
// breaker dedicated to imports.
func NewImportPipeline(db Database, store MediaStore, ops FileOps, brk *breaker.Breaker, logger Logger, ids IDGenerator, defaults ImportOptions) *ImportPipeline {
	return &ImportPipeline{
		db:       db,
		media:    store,
		breaker:  brk,
		detector: dedup.NewDetector(),
		ops:      ops,
		logger:   logger,
		ids:      ids,
		defaults: defaults.withDefaults(DefaultImportOptions()),
	}
}

// ImportJob is a running batch import.
type ImportJob struct {
	results chan ImportResult
	done    chan struct{}
	summary ImportSummary
	err     error
}

// Results streams one result per attempted source, in input order. The
// channel is closed when the batch ends.
func (j *ImportJob) Results() <-chan ImportResult {
	return j.results
}

// Wait blocks until the batch ends. The error is a CircuitOpenError when the
// breaker stopped the batch, or the context's error when it was cancelled.
// Results need not be drained before calling Wait.
func (j *ImportJob) Wait() (ImportSummary, error) {
	<-j.done
	return j.summary, j.err
}

// ImportBatch starts importing sources in the background.
func (p *ImportPipeline) ImportBatch(ctx context.Context, sources []string, opts ImportOptions) *ImportJob {
	job := &ImportJob{
		results: make(chan ImportResult, len(sources)),
		done:    make(chan struct{}),
	}
	go p.run(ctx, job, sources, opts.withDefaults(p.defaults))
	return job
}

// ImportAll imports sources and returns every result.
func (p *ImportPipeline) ImportAll(ctx context.Context, sources []string, opts ImportOptions) ([]ImportResult, ImportSummary, error) {
	job := p.ImportBatch(ctx, sources, opts)
	var results []ImportResult
	for r := range job.Results() {
		results = append(results, r)
	}
	summary, err := job.Wait()
	return results, summary, err
}

// Statistics returns the pipeline's counters and the breaker state.
func (p *ImportPipeline) Statistics() ImportStatistics {
	snap := p.breaker.Snapshot()
	return ImportStatistics{
		TotalImported:      int(p.imported.Load()),
		DuplicatesDetected: int(p.duplicates.Load()),
		CircuitState:       p.breaker.State(),
		FailureCount:       snap.TotalFailures,
	}
}

// ResetSession forgets the content seen so far. Duplicates already in the
// library are still found through the database.
func (p *ImportPipeline) ResetSession() {
	p.detector.Reset()
}

// slot holds the outcome of one item. result stays nil for an item that was
// not attempted.
type slot struct {
	done   chan struct{}
	result *ImportResult
	reject error
}

func (p *ImportPipeline) run(ctx context.Context, job *ImportJob, sources []string, opts ImportOptions) {
	defer close(job.done)
	defer close(job.results)

	category, err := p.resolveCategory(ctx, opts.CategoryID)
	if err != nil {
		job.summary.NotAttempted = len(sources)
		job.err = err
		return
	}

	p.logger.Info("import started", "sources", len(sources), "category", category.Name, "workers", opts.Workers)

	for start := 0; start < len(sources); start += opts.MaxBatchSize {
		end := min(start+opts.MaxBatchSize, len(sources))
		slots := p.dispatch(ctx, category, sources[start:end], start, opts)

		var skipped int
		var reject error
		for _, s := range slots {
			<-s.done
			if s.result == nil {
				skipped++
				if reject == nil {
					reject = s.reject
				}
				continue
			}
			job.summary.tally(s.result)
			job.results <- *s.result
		}

		if skipped > 0 {
			job.summary.NotAttempted = skipped + len(sources) - end
			job.err = p.stopError(ctx, reject, job.summary.NotAttempted)
			p.logger.Warn("import stopped", "not_attempted", job.summary.NotAttempted, "error", job.err)
			return
		}
	}

	p.logger.Info("import finished",
		"imported", job.summary.Imported,
		"duplicates", job.summary.Duplicates,
		"failed", job.summary.Failed)
}

// dispatch starts up to opts.Workers items at a time. While the breaker is
// half-open items run one at a time, each a trial that decides whether the
// breaker closes again. Dispatch stops once the context is done or the
// breaker is open; the remaining slots are closed empty.
func (p *ImportPipeline) dispatch(ctx context.Context, category *model.Category, chunk []string, offset int, opts ImportOptions) []*slot {
	slots := make([]*slot, len(chunk))
	for i := range slots {
		slots[i] = &slot{done: make(chan struct{})}
	}

	go func() {
		var g errgroup.Group
		g.SetLimit(opts.Workers)
		for i, src := range chunk {
			state := p.breaker.State()
			if state == breaker.HalfOpen {
				g.Wait()
				state = p.breaker.State()
			}
			if ctx.Err() != nil || state == breaker.Open {
				for _, s := range slots[i:] {
					close(s.done)
				}
				break
			}
			s := slots[i]
			index := offset + i
			work := func() error {
				defer close(s.done)
				s.result, s.reject = p.attempt(ctx, index, src, category, opts)
				return nil
			}
			if state == breaker.HalfOpen {
				work()
				continue
			}
			g.Go(work)
		}
		g.Wait()
	}()
	return slots
}

// halfOpenRetry is how long an item refused by a busy half-open breaker
// waits before asking again.
const halfOpenRetry = 10 * time.Millisecond

// attempt runs one item through the breaker. It returns a nil result when
// the item was refused by an open breaker or the context. An item refused
// only because the half-open trial slots are taken waits and asks again.
func (p *ImportPipeline) attempt(ctx context.Context, index int, src string, category *model.Category, opts ImportOptions) (*ImportResult, error) {
	for {
		res, err := breaker.Do(ctx, p.breaker, func(ctx context.Context) (*ImportResult, error) {
			return p.importOne(ctx, src, category, opts)
		})
		if apperrors.IsCircuitOpen(err) && p.breaker.State() == breaker.HalfOpen {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(halfOpenRetry):
			}
			continue
		}
		if err != nil {
			if apperrors.IsCircuitOpen(err) || (ctx.Err() != nil && errors.Is(err, ctx.Err())) {
				return nil, err
			}
			p.logger.Warn("import failed", "source", src, "error", err)
			res = &ImportResult{Kind: ResultError, Message: err.Error(), Err: err}
		}
		res.Index = index
		res.Source = src
		return res, nil
	}
}

func (p *ImportPipeline) stopError(ctx context.Context, reject error, remaining int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	open := &apperrors.CircuitOpenError{Name: p.breaker.Name(), Remaining: remaining}
	var coe *apperrors.CircuitOpenError
	if errors.As(reject, &coe) {
		open.RetryAfter = coe.RetryAfter
	}
	return open
}

func (s *ImportSummary) tally(r *ImportResult) {
	s.Attempted++
	switch r.Kind {
	case ResultSuccess:
		s.Imported++
	case ResultDuplicate:
		s.Duplicates++
	case ResultError:
		s.Failed++
	}
}

func (p *ImportPipeline) resolveCategory(ctx context.Context, id string) (*model.Category, error) {
	if id != "" {
		c, err := p.db.FindCategoryByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("finding category: %w", err)
		}
		if c == nil {
			return nil, fmt.Errorf("category %s: %w", id, apperrors.ErrNotFound)
		}
		return c, nil
	}

	c, err := p.db.FindCategoryByName(ctx, "general")
	if err != nil {
		return nil, fmt.Errorf("finding category: %w", err)
	}
	if c != nil {
		return c, nil
	}
	all, err := p.db.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("no category to import into: %w", apperrors.ErrNotFound)
	}
	return all[0], nil
}

// importOne ingests a single source. A duplicate is a result, not an error,
// so it does not count against the breaker.
func (p *ImportPipeline) importOne(ctx context.Context, src string, category *model.Category, opts ImportOptions) (*ImportResult, error) {
	data, err := readStable(src)
	if err != nil {
		return nil, err
	}

	format, err := media.DetectFormat(src, data)
	if err != nil {
		return nil, err
	}

	sum := dedup.HashBytes(data)

	// Stored files are named after the source content, so identical sources
	// share a destination lock and a photo imported in an earlier session is
	// found by its path.
	fileName := sum[:32] + format.Extension()
	rel := p.media.PhotoPath(fileName)
	abs, err := p.media.Abs(rel)
	if err != nil {
		return nil, err
	}
	unlock := p.ops.LockPath(abs)
	defer unlock()

	if p.detector.IsDuplicate(sum) {
		p.duplicates.Add(1)
		p.logger.Debug("duplicate in session", "source", src, "checksum", sum)
		return &ImportResult{Kind: ResultDuplicate, Checksum: sum}, nil
	}
	if existing, err := p.findExisting(ctx, rel, sum); err != nil {
		return nil, err
	} else if existing != nil {
		p.detector.MarkProcessed(sum)
		p.duplicates.Add(1)
		p.logger.Debug("duplicate in library", "source", src, "photo", existing.ID)
		return &ImportResult{Kind: ResultDuplicate, Checksum: sum, PhotoID: existing.ID, Path: existing.Path}, nil
	}

	meta := media.ExtractMetadata(data)

	opt, err := media.Optimize(data, format, opts.MaxDimension, opts.Quality, opts.MaxPixels)
	if err != nil {
		return nil, fmt.Errorf("optimizing %s: %w", filepath.Base(src), err)
	}
	var thumb []byte
	if opt.Image != nil {
		if thumb, err = media.Thumbnail(opt.Image, opts.ThumbnailSize, opts.Quality); err != nil {
			return nil, fmt.Errorf("creating thumbnail: %w", err)
		}
	}

	committed := false
	thumbRel := ""
	written := []string{}
	defer func() {
		if committed {
			return
		}
		for _, w := range written {
			if err := p.media.Delete(w); err != nil {
				p.logger.Warn("removing partial import", "path", w, "error", err)
			}
		}
	}()

	storedSum, size, err := p.media.Put(rel, bytes.NewReader(opt.Data))
	if err != nil {
		return nil, fmt.Errorf("storing photo: %w", err)
	}
	written = append(written, rel)

	if thumb != nil {
		thumbRel = p.media.ThumbnailPath(fileName)
		if _, _, err := p.media.Put(thumbRel, bytes.NewReader(thumb)); err != nil {
			return nil, fmt.Errorf("storing thumbnail: %w", err)
		}
		written = append(written, thumbRel)
	}

	photo := &model.Photo{
		ID:         p.ids.New(),
		Name:       filepath.Base(src),
		Path:       rel,
		CategoryID: category.ID,
		Width:      opt.Width,
		Height:     opt.Height,
		Size:       size,
		Checksum:   storedSum,
		Source:     model.SourceImported,
	}
	if !isEmptyMetadata(meta) {
		photo.Metadata = meta
	}
	if err := p.db.CreatePhoto(ctx, photo); err != nil {
		return nil, fmt.Errorf("saving photo: %w", err)
	}

	committed = true
	p.detector.MarkProcessed(sum)
	p.imported.Add(1)
	p.logger.Info("photo imported", "source", src, "photo", photo.ID, "path", rel)
	return &ImportResult{
		Kind:          ResultSuccess,
		PhotoID:       photo.ID,
		Path:          rel,
		ThumbnailPath: thumbRel,
		Checksum:      sum,
		Metadata:      meta,
	}, nil
}

// findExisting looks for a live photo stored from the same content, either
// under the content-derived path or with an identical stored file.
func (p *ImportPipeline) findExisting(ctx context.Context, rel, sum string) (*model.Photo, error) {
	existing, err := p.db.FindPhotoByPath(ctx, rel)
	if err != nil {
		return nil, fmt.Errorf("checking library: %w", err)
	}
	if existing != nil {
		return existing, nil
	}
	existing, err = p.db.FindPhotoByChecksum(ctx, sum)
	if err != nil {
		return nil, fmt.Errorf("checking library: %w", err)
	}
	return existing, nil
}

// readStable reads src and fails if its size or modification time changed
// while it was being read.
func readStable(src string) ([]byte, error) {
	before, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("reading source: %w", err)
	}
	if !before.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", src)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, &apperrors.IOError{Op: "read", Path: src, Err: err}
	}
	after, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("reading source: %w", err)
	}
	if after.Size() != before.Size() || !after.ModTime().Equal(before.ModTime()) || int64(len(data)) != after.Size() {
		return nil, fmt.Errorf("source changed while reading: %s", src)
	}
	return data, nil
}

func isEmptyMetadata(m *model.PhotoMetadata) bool {
	return m == nil || (m.CaptureTime == nil && !m.HasLocation && m.CameraMake == "" && m.CameraModel == "" && m.Orientation == 0)
}
