package fall

import (
	"image"
	"time"

	"github.com/banshee-data/fallwatch/internal/pose"
)

// WindowCapacity is the number of prior frames kept for comparison: the
// immediate predecessor and the one before it.
const WindowCapacity = 2

// FrameRecord is one analysed frame held in the Window.
type FrameRecord struct {
	Pose pose.Pose

	// Lean is the representative spinal vector; meaningful only when Valid.
	Lean  pose.SpinalVector
	Valid bool

	CapturedAt time.Time
	Image      image.Image
	Thumbnail  *image.RGBA
}

// Degenerate reports whether no body side qualified in this frame.
func (r *FrameRecord) Degenerate() bool {
	return r == nil || !r.Valid
}

// WindowState names how many comparison anchors are available.
type WindowState int

const (
	StateEmpty WindowState = iota
	StateOne
	StateTwo
)

func (s WindowState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateOne:
		return "one"
	case StateTwo:
		return "two"
	default:
		return "unknown"
	}
}

// Window is a fixed ring of the most recent non-degenerate frames.
type Window struct {
	frames [WindowCapacity]*FrameRecord
	head   int // next write position
	size   int
}

// NewWindow returns an empty window.
func NewWindow() *Window {
	return &Window{}
}

// Push stores rec, evicting the oldest frame when full. A degenerate
// record is never stored; it clears the window instead, breaking the
// comparison chain.
func (w *Window) Push(rec *FrameRecord) {
	if rec.Degenerate() {
		w.Clear()
		return
	}
	w.frames[w.head] = rec
	w.head = (w.head + 1) % WindowCapacity
	if w.size < WindowCapacity {
		w.size++
	}
}

// Previous returns the frame n steps back: Previous(1) is the most recent.
// Returns nil if no such frame is held.
func (w *Window) Previous(n int) *FrameRecord {
	if n < 1 || n > w.size {
		return nil
	}
	idx := (w.head - n + WindowCapacity) % WindowCapacity
	return w.frames[idx]
}

// Candidates returns the stored frames newest first.
func (w *Window) Candidates() []*FrameRecord {
	if w.size == 0 {
		return nil
	}
	out := make([]*FrameRecord, 0, w.size)
	for n := 1; n <= w.size; n++ {
		out = append(out, w.Previous(n))
	}
	return out
}

// Len returns the number of stored frames.
func (w *Window) Len() int {
	return w.size
}

// State maps Len onto the classifier states.
func (w *Window) State() WindowState {
	return WindowState(w.size)
}

// Clear drops all stored frames.
func (w *Window) Clear() {
	for i := range w.frames {
		w.frames[i] = nil
	}
	w.head = 0
	w.size = 0
}
