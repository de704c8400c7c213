package fall

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/fallwatch/internal/pose"
)

func record(sec int, angle float64) *FrameRecord {
	return &FrameRecord{
		Lean:       pose.SpinalVector{Side: pose.SideLeft, Angle: angle, Confidence: 0.9},
		Valid:      true,
		CapturedAt: time.Unix(int64(sec), 0),
	}
}

func TestWindow_PushAndEvict(t *testing.T) {
	w := NewWindow()
	assert.Equal(t, StateEmpty, w.State())
	assert.Nil(t, w.Candidates())
	assert.Nil(t, w.Previous(1))

	a, b, c := record(1, 5), record(2, 10), record(3, 15)

	w.Push(a)
	assert.Equal(t, StateOne, w.State())
	assert.Same(t, a, w.Previous(1))
	assert.Nil(t, w.Previous(2))

	w.Push(b)
	assert.Equal(t, StateTwo, w.State())
	assert.Equal(t, []*FrameRecord{b, a}, w.Candidates())

	w.Push(c)
	assert.Equal(t, 2, w.Len())
	assert.Equal(t, []*FrameRecord{c, b}, w.Candidates(), "oldest evicted")
	assert.Nil(t, w.Previous(3))
	assert.Nil(t, w.Previous(0))
}

func TestWindow_DegenerateClears(t *testing.T) {
	w := NewWindow()
	w.Push(record(1, 5))
	w.Push(record(2, 5))
	require.Equal(t, StateTwo, w.State())

	w.Push(&FrameRecord{CapturedAt: time.Unix(3, 0)})
	assert.Equal(t, StateEmpty, w.State())
	assert.Equal(t, 0, w.Len())

	// Chain restarts cleanly after a clear.
	d := record(4, 5)
	w.Push(d)
	assert.Equal(t, []*FrameRecord{d}, w.Candidates())
}

func TestWindow_Clear(t *testing.T) {
	w := NewWindow()
	w.Push(record(1, 5))
	w.Clear()
	assert.Equal(t, StateEmpty, w.State())
	assert.Nil(t, w.Previous(1))
}

func TestWindowState_String(t *testing.T) {
	assert.Equal(t, "empty", StateEmpty.String())
	assert.Equal(t, "one", StateOne.String())
	assert.Equal(t, "two", StateTwo.String())
	assert.Equal(t, "unknown", WindowState(7).String())
}

func TestFrameRecord_Degenerate(t *testing.T) {
	var nilRec *FrameRecord
	assert.True(t, nilRec.Degenerate())
	assert.True(t, (&FrameRecord{}).Degenerate())
	assert.False(t, record(1, 0).Degenerate())
}
