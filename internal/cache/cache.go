package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"demoforge/internal/fileutil"
	"demoforge/internal/logging"
	"demoforge/internal/services"
)

// DefaultTTL applies when neither the caller nor the configuration supplies one.
const DefaultTTL = 72 * time.Hour

const entryExt = ".json"

// Entry is the on-disk envelope around a cached stage output.
type Entry struct {
	Fingerprint string          `json:"fingerprint"`
	Stage       string          `json:"stage"`
	CreatedAt   time.Time       `json:"created_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
	Payload     json.RawMessage `json:"payload"`
}

// Stats summarizes cache usage. Hits, Misses and Expired count lookups since
// the store was opened; the remaining fields reflect what is on disk.
type Stats struct {
	Enabled bool                  `json:"enabled"`
	Dir     string                `json:"dir"`
	Entries int                   `json:"entries"`
	Bytes   int64                 `json:"bytes"`
	Hits    int64                 `json:"hits"`
	Misses  int64                 `json:"misses"`
	Expired int64                 `json:"expired"`
	ByStage map[string]StageStats `json:"by_stage,omitempty"`
}

// StageStats is the per-stage breakdown of Stats.
type StageStats struct {
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
}

// HitRate returns hits over lookups, or zero before the first lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Store is a filesystem-backed, stage-namespaced artifact cache.
type Store struct {
	dir        string
	enabled    bool
	defaultTTL time.Duration
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.RWMutex
	hits    int64
	misses  int64
	expired int64
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a store rooted at dir. A disabled store, or one without a
// directory, always misses and never writes.
func New(dir string, enabled bool, defaultTTL time.Duration, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	s := &Store{
		dir:        strings.TrimSpace(dir),
		enabled:    enabled && strings.TrimSpace(dir) != "",
		defaultTTL: defaultTTL,
		logger:     logging.NewComponentLogger(logger, "cache"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether lookups can ever hit.
func (s *Store) Enabled() bool {
	return s != nil && s.enabled
}

// Dir returns the cache root.
func (s *Store) Dir() string {
	if s == nil {
		return ""
	}
	return s.dir
}

// Get decodes the entry for (stage, fingerprint) into dst. Absent, expired and
// corrupt entries all report a miss without error; the latter two are removed.
func (s *Store) Get(ctx context.Context, stage, fingerprint string, dst any) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	path, err := s.entryPath(stage, fingerprint)
	if err != nil {
		return false, err
	}
	logger := logging.WithContext(ctx, s.logger)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.recordMiss(false)
			return false, nil
		}
		return false, fmt.Errorf("read cache entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil || entry.Fingerprint != fingerprint || len(entry.Payload) == 0 {
		s.evictCorrupt(logger, path, stage, fingerprint, err)
		return false, nil
	}
	if !entry.ExpiresAt.IsZero() && !s.now().Before(entry.ExpiresAt) {
		_ = os.Remove(path)
		s.recordMiss(true)
		logger.Debug("cache entry expired",
			logging.String("cache_stage", stage),
			logging.String("fingerprint", short(fingerprint)),
			logging.String("expired_at", entry.ExpiresAt.Format(time.RFC3339)))
		return false, nil
	}
	if err := json.Unmarshal(entry.Payload, dst); err != nil {
		s.evictCorrupt(logger, path, stage, fingerprint, err)
		return false, nil
	}

	s.mu.Lock()
	s.hits++
	s.mu.Unlock()
	logger.Debug("cache hit",
		logging.String(logging.FieldDecisionType, "cache_lookup"),
		logging.String("cache_stage", stage),
		logging.String("fingerprint", short(fingerprint)))
	return true, nil
}

// Set stores value under (stage, fingerprint). A non-positive ttl uses the
// store default.
func (s *Store) Set(ctx context.Context, stage, fingerprint string, value any, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	path, err := s.entryPath(stage, fingerprint)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s cache payload: %w", stage, err)
	}
	now := s.now().UTC()
	entry := Entry{
		Fingerprint: fingerprint,
		Stage:       stage,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
		Payload:     payload,
	}
	if err := fileutil.WriteJSONAtomic(path, entry); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	logging.WithContext(ctx, s.logger).Debug("cache entry stored",
		logging.String("cache_stage", stage),
		logging.String("fingerprint", short(fingerprint)),
		logging.Duration("ttl", ttl),
		logging.Int("payload_bytes", len(payload)))
	return nil
}

// Invalidate removes one entry. Removing an absent entry is not an error.
func (s *Store) Invalidate(stage, fingerprint string) error {
	if !s.Enabled() {
		return nil
	}
	path, err := s.entryPath(stage, fingerprint)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("invalidate cache entry: %w", err)
	}
	return nil
}

// Prune deletes expired and unreadable entries across all stages.
func (s *Store) Prune(ctx context.Context) (int, error) {
	if !s.Enabled() {
		return 0, nil
	}
	removed := 0
	now := s.now()
	err := s.walk(func(stage, path string, _ fs.FileInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err == nil && (entry.ExpiresAt.IsZero() || now.Before(entry.ExpiresAt)) {
			return nil
		}
		if err := os.Remove(path); err == nil {
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, err
	}
	if removed > 0 {
		logging.WithContext(ctx, s.logger).Info("pruned cache entries",
			logging.String(logging.FieldEventType, "cache_prune"),
			logging.Int("removed", removed))
	}
	return removed, nil
}

// Clear removes every entry, or only those of one stage when stage is set.
func (s *Store) Clear(stage string) (int, error) {
	if !s.Enabled() {
		return 0, nil
	}
	stage = strings.TrimSpace(stage)
	removed := 0
	err := s.walk(func(entryStage, path string, _ fs.FileInfo) error {
		if stage != "" && entryStage != stage {
			return nil
		}
		if err := os.Remove(path); err == nil {
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, err
	}
	s.logger.Info("cleared cache",
		logging.String(logging.FieldEventType, "cache_clear"),
		logging.String("cache_stage", stage),
		logging.Int("removed", removed))
	return removed, nil
}

// Stats reports counters and on-disk usage.
func (s *Store) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	s.mu.RLock()
	stats := Stats{
		Enabled: s.enabled,
		Dir:     s.dir,
		Hits:    s.hits,
		Misses:  s.misses,
		Expired: s.expired,
	}
	s.mu.RUnlock()
	if !s.enabled {
		return stats
	}
	stats.ByStage = make(map[string]StageStats)
	_ = s.walk(func(stage, _ string, info fs.FileInfo) error {
		st := stats.ByStage[stage]
		st.Entries++
		st.Bytes += info.Size()
		stats.ByStage[stage] = st
		stats.Entries++
		stats.Bytes += info.Size()
		return nil
	})
	return stats
}

func (s *Store) walk(fn func(stage, path string, info fs.FileInfo) error) error {
	stages, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read cache dir: %w", err)
	}
	for _, stageDir := range stages {
		if !stageDir.IsDir() {
			continue
		}
		stage := stageDir.Name()
		entries, err := os.ReadDir(filepath.Join(s.dir, stage))
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), entryExt) || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			if err := fn(stage, filepath.Join(s.dir, stage, e.Name()), info); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) entryPath(stage, fingerprint string) (string, error) {
	stage = strings.TrimSpace(stage)
	fingerprint = strings.TrimSpace(fingerprint)
	if stage == "" || fingerprint == "" {
		return "", services.Wrap(services.ErrValidation, "cache", "resolve entry", "stage and fingerprint are required", nil)
	}
	if strings.ContainsAny(stage+fingerprint, `/\.`) {
		return "", services.Wrap(services.ErrValidation, "cache", "resolve entry", fmt.Sprintf("invalid cache key %s/%s", stage, fingerprint), nil)
	}
	return filepath.Join(s.dir, stage, fingerprint+entryExt), nil
}

func (s *Store) recordMiss(expired bool) {
	s.mu.Lock()
	s.misses++
	if expired {
		s.expired++
	}
	s.mu.Unlock()
}

func (s *Store) evictCorrupt(logger *slog.Logger, path, stage, fingerprint string, cause error) {
	if cause == nil {
		cause = errors.New("envelope does not match its key")
	}
	err := services.Wrap(services.ErrCacheCorrupt, stage, "decode cache entry", short(fingerprint), cause)
	logging.WarnWithContext(logger, "discarding corrupt cache entry", "cache_corrupt",
		logging.String("cache_stage", stage),
		logging.String("fingerprint", short(fingerprint)),
		logging.Error(err),
		logging.String(logging.FieldErrorKind, services.Details(err).Kind),
		logging.String(logging.FieldErrorHint, "entry was removed; the stage will run again"),
		logging.String(logging.FieldImpact, "stage output is recomputed instead of restored"))
	_ = os.Remove(path)
	s.recordMiss(false)
}

func short(fingerprint string) string {
	if len(fingerprint) > 12 {
		return fingerprint[:12]
	}
	return fingerprint
}
