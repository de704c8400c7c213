// Package store persists fall detection samples: a sqlite event log plus
// JPEG copies of the frame and its thumbnail on disk.
//
// Saves are throttled on two independent timers: a sample carrying a verdict
// is stored when at least PositiveInterval has passed since the previous
// positive save, and a sample without one only every IdleInterval, so an
// idle camera still leaves a heartbeat.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/fallwatch/internal/fall"
	"github.com/banshee-data/fallwatch/internal/monitoring"
	"github.com/banshee-data/fallwatch/internal/timeutil"
)

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("detection not found")

const (
	timestampLayout = "20060102-150405.000000"
	dirLayout       = "20060102"
	jpegQuality     = 90

	// Fixed width so captured_at sorts lexically.
	dbTimeLayout = "2006-01-02T15:04:05.000000000Z"
)

// Config controls where and how often samples are written.
type Config struct {
	DataDir          string
	PositiveInterval time.Duration
	IdleInterval     time.Duration
}

// DefaultConfig returns a 2s positive and 10m idle interval under dataDir.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:          dataDir,
		PositiveInterval: 2 * time.Second,
		IdleInterval:     10 * time.Minute,
	}
}

// Event is one stored sample.
type Event struct {
	ID            string         `json:"id"`
	CapturedAt    time.Time      `json:"datetime"`
	Label         string         `json:"label,omitempty"`
	Confidence    float64        `json:"confidence,omitempty"`
	LeaningAngle  float64        `json:"leaning_angle,omitempty"`
	RelDir        string         `json:"rel_dir"`
	ImageFile     string         `json:"image_file"`
	ThumbnailFile string         `json:"thumbnail_file,omitempty"`
	Verdicts      []fall.Verdict `json:"inference_result"`
	Notified      bool           `json:"notified"`
}

// Positive reports whether the event recorded a fall.
func (e *Event) Positive() bool {
	return len(e.Verdicts) > 0
}

// Notification is sent for every stored fall verdict.
type Notification struct {
	ID         string    `json:"id"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Datetime   time.Time `json:"datetime"`
}

// Notifier delivers Notifications, e.g. to a push service.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// Store is safe for concurrent use.
type Store struct {
	db       *sql.DB
	cfg      Config
	clock    timeutil.Clock
	notifier Notifier

	mu sync.Mutex
	// Positive and idle samples are throttled independently; each is
	// advanced only once its sample is on disk and in the table.
	lastPositive time.Time
	lastIdle     time.Time
}

// Open opens (creating if needed) the sqlite database at path and applies
// pending migrations.
func Open(path string, cfg Config) (*Store, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("store data dir must be set")
	}
	if cfg.PositiveInterval < 0 || cfg.IdleInterval < 0 {
		return nil, fmt.Errorf("store intervals must be non-negative")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	s := &Store{db: db, cfg: cfg, clock: timeutil.RealClock{}}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetClock replaces the clock used for throttling.
func (s *Store) SetClock(c timeutil.Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = c
}

// SetNotifier attaches n; nil disables notifications.
func (s *Store) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

// Process stores sample when due and hands it back unchanged. Failures
// are logged and never interrupt the pipeline.
func (s *Store) Process(ctx context.Context, sample *fall.Sample) *fall.Sample {
	if _, err := s.Save(ctx, sample); err != nil {
		monitoring.Logf("store: failed to save sample: %v", err)
	}
	return sample
}

// Save writes sample if its interval has elapsed. It returns nil, nil when
// the sample is empty or throttled.
func (s *Store) Save(ctx context.Context, sample *fall.Sample) (*Event, error) {
	if sample.Empty() {
		return nil, nil
	}

	positive := len(sample.Verdicts) > 0

	s.mu.Lock()
	now := s.clock.Now()
	if !s.due(now, positive) {
		s.mu.Unlock()
		return nil, nil
	}
	notifier := s.notifier
	s.mu.Unlock()

	captured := sample.CapturedAt
	if captured.IsZero() {
		captured = now
	}
	ev := &Event{
		ID:         uuid.NewString(),
		CapturedAt: captured.UTC(),
		RelDir:     captured.UTC().Format(dirLayout),
		Verdicts:   sample.Verdicts,
	}
	if v, ok := sample.Verdict(); ok {
		ev.Label = v.Label
		ev.Confidence = v.Confidence
		ev.LeaningAngle = v.LeaningAngle
	}
	if ev.Verdicts == nil {
		ev.Verdicts = []fall.Verdict{}
	}

	if err := s.writeImages(ev, sample); err != nil {
		return nil, err
	}
	if err := s.insert(ctx, ev); err != nil {
		return nil, err
	}
	s.markSaved(now, positive)

	if notifier != nil && ev.Positive() {
		s.notify(ctx, notifier, ev)
	}
	return ev, nil
}

func (s *Store) due(now time.Time, positive bool) bool {
	last, interval := s.lastIdle, s.cfg.IdleInterval
	if positive {
		last, interval = s.lastPositive, s.cfg.PositiveInterval
	}
	if last.IsZero() {
		return true
	}
	return now.Sub(last) >= interval
}

func (s *Store) markSaved(now time.Time, positive bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	last := &s.lastIdle
	if positive {
		last = &s.lastPositive
	}
	if now.After(*last) {
		*last = now
	}
}

func (s *Store) writeImages(ev *Event, sample *fall.Sample) error {
	dir := filepath.Join(s.cfg.DataDir, ev.RelDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create sample dir: %w", err)
	}
	stamp := ev.CapturedAt.Format(timestampLayout)

	ev.ImageFile = stamp + "-image.jpg"
	if err := writeJPEG(filepath.Join(dir, ev.ImageFile), sample.Image); err != nil {
		return err
	}
	if sample.Thumbnail != nil {
		ev.ThumbnailFile = stamp + "-thumbnail.jpg"
		if err := writeJPEG(filepath.Join(dir, ev.ThumbnailFile), sample.Thumbnail); err != nil {
			return err
		}
	}
	return nil
}

func writeJPEG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}

func (s *Store) insert(ctx context.Context, ev *Event) error {
	verdicts, err := json.Marshal(ev.Verdicts)
	if err != nil {
		return fmt.Errorf("failed to encode verdicts: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO detections
			(id, captured_at, label, confidence, leaning_angle, rel_dir, image_file, thumbnail_file, verdicts_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.CapturedAt.UTC().Format(dbTimeLayout), ev.Label, ev.Confidence, ev.LeaningAngle,
		ev.RelDir, ev.ImageFile, ev.ThumbnailFile, string(verdicts))
	if err != nil {
		return fmt.Errorf("failed to insert detection: %w", err)
	}
	return nil
}

func (s *Store) notify(ctx context.Context, n Notifier, ev *Event) {
	err := n.Notify(ctx, Notification{
		ID:         ev.ID,
		Label:      ev.Label,
		Confidence: ev.Confidence,
		Datetime:   ev.CapturedAt,
	})
	if err != nil {
		monitoring.Logf("store: notification for %s failed: %v", ev.ID, err)
		return
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE detections SET notified = 1 WHERE id = ?`, ev.ID); err != nil {
		monitoring.Logf("store: failed to mark %s notified: %v", ev.ID, err)
		return
	}
	ev.Notified = true
}

const selectColumns = `id, captured_at, label, confidence, leaning_angle, rel_dir, image_file, thumbnail_file, verdicts_json, notified`

// Get returns the event with the given id.
func (s *Store) Get(ctx context.Context, id string) (*Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM detections WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ev, err
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM detections ORDER BY captured_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, rows.Err()
}

// ImagePath returns the absolute path of an event's full frame.
func (s *Store) ImagePath(ev *Event) string {
	return filepath.Join(s.cfg.DataDir, ev.RelDir, ev.ImageFile)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(sc scanner) (*Event, error) {
	var (
		ev       Event
		captured string
		verdicts string
		notified int
	)
	if err := sc.Scan(&ev.ID, &captured, &ev.Label, &ev.Confidence, &ev.LeaningAngle,
		&ev.RelDir, &ev.ImageFile, &ev.ThumbnailFile, &verdicts, &notified); err != nil {
		return nil, err
	}
	t, err := time.Parse(dbTimeLayout, captured)
	if err != nil {
		return nil, fmt.Errorf("bad captured_at %q: %w", captured, err)
	}
	ev.CapturedAt = t
	ev.Notified = notified != 0
	if err := json.Unmarshal([]byte(verdicts), &ev.Verdicts); err != nil {
		return nil, fmt.Errorf("bad verdicts for %s: %w", ev.ID, err)
	}
	return &ev, nil
}
