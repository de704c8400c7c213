package store

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/fallwatch/internal/fall"
	"github.com/banshee-data/fallwatch/internal/pose"
	"github.com/banshee-data/fallwatch/internal/timeutil"
)

var start = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func openTestStore(t *testing.T) (*Store, *timeutil.MockClock) {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "fallwatch.db"), DefaultConfig(filepath.Join(dir, "samples")))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := timeutil.NewMockClock(start)
	s.SetClock(clock)
	return s, clock
}

func sample(at time.Time, verdicts ...fall.Verdict) *fall.Sample {
	return &fall.Sample{
		Image:      image.NewRGBA(image.Rect(0, 0, 64, 48)),
		Thumbnail:  image.NewRGBA(image.Rect(0, 0, 32, 24)),
		CapturedAt: at,
		Verdicts:   verdicts,
	}
}

func fallVerdict() fall.Verdict {
	return fall.Verdict{
		Label:        fall.LabelFall,
		Confidence:   0.82,
		LeaningAngle: 74.5,
		KeypointCorr: fall.KeypointCorr{
			Side: pose.SideLeft,
			Current: fall.KeypointPair{
				Shoulder: pose.Keypoint{Name: pose.LeftShoulder, X: 10, Y: 20, Confidence: 0.8},
				Hip:      pose.Keypoint{Name: pose.LeftHip, X: 40, Y: 24, Confidence: 0.84},
			},
		},
		FramesBack: 1,
		Elapsed:    3 * time.Second,
	}
}

func TestOpen_Migrates(t *testing.T) {
	s, _ := openTestStore(t)
	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// Re-running is a no-op.
	require.NoError(t, s.MigrateUp())
}

func TestOpen_Validation(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(filepath.Join(dir, "a.db"), Config{})
	assert.Error(t, err)

	cfg := DefaultConfig(dir)
	cfg.IdleInterval = -time.Second
	_, err = Open(filepath.Join(dir, "b.db"), cfg)
	assert.Error(t, err)
}

func TestSave_Throttling(t *testing.T) {
	s, clock := openTestStore(t)
	ctx := context.Background()

	steps := []struct {
		name     string
		advance  time.Duration
		positive bool
		saved    bool
	}{
		{"first idle sample always saved", 0, false, true},
		{"fall 1s after idle save is stored", time.Second, true, true},
		{"positive too soon", time.Second, true, false},
		{"positive after positive interval", time.Second, true, true},
		{"idle within idle interval", time.Minute, false, false},
		{"idle before interval", 8 * time.Minute, false, false},
		{"idle after interval", time.Minute, false, true},
	}
	for _, st := range steps {
		clock.Advance(st.advance)
		var vs []fall.Verdict
		if st.positive {
			vs = []fall.Verdict{fallVerdict()}
		}
		ev, err := s.Save(ctx, sample(clock.Now(), vs...))
		require.NoError(t, err, st.name)
		assert.Equal(t, st.saved, ev != nil, st.name)
	}

	events, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.True(t, events[0].CapturedAt.After(events[1].CapturedAt), "newest first")
	assert.False(t, events[0].Positive())
	assert.True(t, events[1].Positive())
}

func TestSave_FailedWriteDoesNotThrottle(t *testing.T) {
	s, clock := openTestStore(t)
	ctx := context.Background()

	// A file where the day directory belongs makes the image write fail.
	blocker := filepath.Join(s.cfg.DataDir, start.Format(dirLayout))
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	ev, err := s.Save(ctx, sample(clock.Now(), fallVerdict()))
	require.Error(t, err)
	assert.Nil(t, ev)

	require.NoError(t, os.Remove(blocker))
	clock.Advance(time.Second)
	ev, err = s.Save(ctx, sample(clock.Now(), fallVerdict()))
	require.NoError(t, err)
	assert.NotNil(t, ev, "retry within the positive interval must not be throttled by the failed attempt")
}

func TestSave_RoundTrip(t *testing.T) {
	s, clock := openTestStore(t)
	ctx := context.Background()

	at := clock.Now().Add(250 * time.Millisecond)
	ev, err := s.Save(ctx, sample(at, fallVerdict()))
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Len(t, ev.ID, 36)
	assert.Equal(t, "20240506", ev.RelDir)
	assert.Equal(t, "20240506-070809.250000-image.jpg", ev.ImageFile)
	assert.Equal(t, "20240506-070809.250000-thumbnail.jpg", ev.ThumbnailFile)

	_, err = os.Stat(s.ImagePath(ev))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(filepath.Dir(s.ImagePath(ev)), ev.ThumbnailFile))
	require.NoError(t, err)

	got, err := s.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.True(t, got.CapturedAt.Equal(at))
	assert.Equal(t, fall.LabelFall, got.Label)
	assert.InDelta(t, 0.82, got.Confidence, 1e-9)
	assert.InDelta(t, 74.5, got.LeaningAngle, 1e-9)
	require.Len(t, got.Verdicts, 1)
	assert.Equal(t, fallVerdict(), got.Verdicts[0])
	assert.False(t, got.Notified)
}

func TestSave_EmptySample(t *testing.T) {
	s, _ := openTestStore(t)
	ev, err := s.Save(context.Background(), &fall.Sample{})
	assert.NoError(t, err)
	assert.Nil(t, ev)

	events, err := s.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestGet_NotFound(t *testing.T) {
	s, _ := openTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNotifier(t *testing.T) {
	s, clock := openTestStore(t)
	ctx := context.Background()

	var got []Notification
	s.SetNotifier(NotifierFunc(func(_ context.Context, n Notification) error {
		got = append(got, n)
		return nil
	}))

	// Idle samples do not notify.
	_, err := s.Save(ctx, sample(clock.Now()))
	require.NoError(t, err)
	assert.Empty(t, got)

	clock.Advance(5 * time.Second)
	ev, err := s.Save(ctx, sample(clock.Now(), fallVerdict()))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ev.ID, got[0].ID)
	assert.Equal(t, fall.LabelFall, got[0].Label)
	assert.InDelta(t, 0.82, got[0].Confidence, 1e-9)
	assert.True(t, ev.Notified)

	stored, err := s.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.True(t, stored.Notified)
}

func TestNotifierFailureKeepsEvent(t *testing.T) {
	s, clock := openTestStore(t)
	ctx := context.Background()
	s.SetNotifier(NotifierFunc(func(context.Context, Notification) error {
		return errors.New("push service down")
	}))

	ev, err := s.Save(ctx, sample(clock.Now(), fallVerdict()))
	require.NoError(t, err)
	assert.False(t, ev.Notified)

	stored, err := s.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.False(t, stored.Notified)
}

func TestProcess_PassThrough(t *testing.T) {
	s, clock := openTestStore(t)
	in := sample(clock.Now(), fallVerdict())
	out := s.Process(context.Background(), in)
	assert.Same(t, in, out)

	// A failing save still passes the sample through.
	require.NoError(t, s.Close())
	clock.Advance(time.Hour)
	in2 := sample(clock.Now())
	assert.Same(t, in2, s.Process(context.Background(), in2))
}
