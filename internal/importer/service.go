// Package importer runs import sessions on behalf of the HTTP API and CLI.
//
// The Service owns session storage, saved mapping presets, per-session
// locking, the commit limiter and the ingestion sink. All workflow rules live in core.Session; this
// package only loads a session, applies one transition, and saves it.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/fieldmap/internal/core"
	"github.com/JonMunkholm/fieldmap/internal/logging"
)

const (
	// DefaultMaxFileSize is the largest accepted upload (10 MB).
	DefaultMaxFileSize = 10 << 20

	// DefaultCommitTimeout bounds one call into the sink.
	DefaultCommitTimeout = 5 * time.Minute

	// DefaultIdleTimeout is how long an untouched session is kept.
	DefaultIdleTimeout = 2 * time.Hour

	// suggestionLimit is the number of ranked candidates shown per column.
	suggestionLimit = 3
)

// Options configures a Service. Zero values select defaults.
type Options struct {
	Store         Store
	Presets       PresetStore
	Ingest        core.IngestFunc
	Matcher       core.Matcher
	Limiter       *CommitLimiter
	MaxFileSize   int64
	CommitTimeout time.Duration
}

// Service coordinates import sessions.
type Service struct {
	store         Store
	presets       PresetStore
	ingest        core.IngestFunc
	matcher       core.Matcher
	limiter       *CommitLimiter
	maxFileSize   int64
	commitTimeout time.Duration
	locks         *keyedMutex
}

// NewService creates a Service. A nil Ingest makes every commit a no-op;
// nil stores default to memory.
func NewService(opts Options) *Service {
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.Presets == nil {
		opts.Presets = NewMemoryPresets()
	}
	if opts.Matcher.Threshold <= 0 {
		opts.Matcher = core.DefaultMatcher()
	}
	if opts.Limiter == nil {
		opts.Limiter = NewCommitLimiter(DefaultMaxConcurrentCommits, DefaultMaxWaitTime)
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.CommitTimeout <= 0 {
		opts.CommitTimeout = DefaultCommitTimeout
	}

	return &Service{
		store:         opts.Store,
		presets:       opts.Presets,
		ingest:        opts.Ingest,
		matcher:       opts.Matcher,
		limiter:       opts.Limiter,
		maxFileSize:   opts.MaxFileSize,
		commitTimeout: opts.CommitTimeout,
		locks:         newKeyedMutex(),
	}
}

// Limiter returns the commit limiter, for status reporting and shutdown.
func (s *Service) Limiter() *CommitLimiter {
	return s.limiter
}

// Create starts a new session for entity.
func (s *Service) Create(ctx context.Context, entity string) (View, error) {
	schema, err := core.Lookup(entity)
	if err != nil {
		return View{}, err
	}

	sess := core.NewSession(schema, core.WithMatcher(s.matcher))
	if err := s.store.Put(ctx, sess); err != nil {
		return View{}, err
	}

	logging.WithFields(ctx, "session_id", sess.ID(), "entity", entity).Info("session created")
	return s.view(ctx, sess), nil
}

// Get returns the current state of a session.
func (s *Service) Get(ctx context.Context, id string) (View, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, sess), nil
}

// Upload parses a file into the session and proposes a mapping.
func (s *Service) Upload(ctx context.Context, id, name string, data []byte) (View, error) {
	if int64(len(data)) > s.maxFileSize {
		return View{}, fmt.Errorf("%w: %d bytes (max %d)", core.ErrFileTooLarge, len(data), s.maxFileSize)
	}

	return s.update(ctx, id, func(sess *core.Session) error {
		if err := sess.Load(name, data); err != nil {
			return err
		}
		logger(ctx, sess).Info("file loaded",
			"file", name,
			"columns", len(sess.Table().Headers),
			"rows", sess.RowCount(),
		)
		return nil
	})
}

// SetMapping applies header -> field assignments.
func (s *Service) SetMapping(ctx context.Context, id string, targets map[string]string) (View, error) {
	return s.update(ctx, id, func(sess *core.Session) error {
		return sess.SetMapping(targets)
	})
}

// SetOptions replaces the import options.
func (s *Service) SetOptions(ctx context.Context, id string, opts core.ImportOptions) (View, error) {
	return s.update(ctx, id, func(sess *core.Session) error {
		return sess.SetOptions(opts)
	})
}

// Validate runs the mapping gate and row validation. Row errors are part
// of the returned view, not the error.
func (s *Service) Validate(ctx context.Context, id string) (View, error) {
	return s.update(ctx, id, func(sess *core.Session) error {
		errs, err := sess.Validate()
		if err != nil {
			return err
		}
		logger(ctx, sess).Info("session validated", "rows", sess.RowCount(), "errors", len(errs))
		return nil
	})
}

// BackToMapping returns a validated session to the mapping stage.
func (s *Service) BackToMapping(ctx context.Context, id string) (View, error) {
	return s.update(ctx, id, func(sess *core.Session) error {
		return sess.BackToMapping()
	})
}

// Preview materializes up to limit rows of a validated session.
func (s *Service) Preview(ctx context.Context, id string, limit int) ([]core.Record, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return sess.Preview(limit)
}

// Commit sends the validated records to the sink. Commits that will reach
// the sink wait for a limiter slot and run under the commit timeout.
func (s *Service) Commit(ctx context.Context, id string) (core.CommitResult, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return core.CommitResult{}, err
	}

	if !sess.Options().ValidateOnly && s.ingest != nil {
		if err := s.limiter.Acquire(ctx); err != nil {
			return core.CommitResult{}, err
		}
		defer s.limiter.Release()
	}

	commitCtx, cancel := context.WithTimeout(ctx, s.commitTimeout)
	defer cancel()

	start := time.Now()
	result, err := sess.Commit(commitCtx, s.ingest)
	if err != nil {
		if !errors.Is(err, core.ErrInvalidTransition) && !errors.Is(err, core.ErrValidationFailed) {
			logger(ctx, sess).Error("commit failed", "error", err)
		}
		return core.CommitResult{}, err
	}

	if err := s.store.Put(ctx, sess); err != nil {
		return core.CommitResult{}, err
	}

	logger(ctx, sess).Info("session committed",
		"rows", result.Rows,
		"validate_only", result.ValidateOnly,
		"inserted", result.Stats.Inserted,
		"updated", result.Stats.Updated,
		"skipped", result.Stats.Skipped,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// Cancel resets a session to a fresh upload stage.
func (s *Service) Cancel(ctx context.Context, id string) (View, error) {
	return s.update(ctx, id, func(sess *core.Session) error {
		sess.Cancel()
		logger(ctx, sess).Info("session cancelled")
		return nil
	})
}

// Discard removes a session from the store.
func (s *Service) Discard(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if _, err := s.store.Get(ctx, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// update loads a session, applies fn and saves the session when fn succeeds.
func (s *Service) update(ctx context.Context, id string, fn func(*core.Session) error) (View, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	if err := fn(sess); err != nil {
		return View{}, err
	}
	if err := s.store.Put(ctx, sess); err != nil {
		return View{}, err
	}
	return s.view(ctx, sess), nil
}

// Sweep removes sessions idle since cutoff from stores that need sweeping.
// Each removal holds the session's lock, so a session is never dropped in
// the middle of an update. Stores that expire sessions themselves report 0.
func (s *Service) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	idle, ok := s.store.(idleStore)
	if !ok {
		return 0, nil
	}

	removed := 0
	for _, id := range idle.IdleSince(cutoff) {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		unlock := s.locks.Lock(id)
		if idle.RemoveIdle(id, cutoff) {
			removed++
		}
		unlock()
	}
	return removed, nil
}

func logger(ctx context.Context, sess *core.Session) *slog.Logger {
	return logging.WithFields(ctx, "session_id", sess.ID(), "entity", sess.Entity())
}
