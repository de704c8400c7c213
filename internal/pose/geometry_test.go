package pose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func poseWith(points map[KeypointName]Keypoint) Pose {
	p := ZeroPose()
	for name, kp := range points {
		kp.Name = name
		p.Keypoints[name] = kp
	}
	return p
}

func TestSideVector_Angles(t *testing.T) {
	tests := []struct {
		name     string
		shoulder Keypoint
		hip      Keypoint
		want     float64
	}{
		{"upright", Keypoint{X: 50, Y: 20, Confidence: 0.9}, Keypoint{X: 50, Y: 60, Confidence: 0.9}, 0},
		{"horizontal", Keypoint{X: 10, Y: 50, Confidence: 0.9}, Keypoint{X: 60, Y: 50, Confidence: 0.9}, 90},
		{"diagonal", Keypoint{X: 10, Y: 10, Confidence: 0.9}, Keypoint{X: 40, Y: 40, Confidence: 0.9}, 45},
		{"inverted is still measured from vertical", Keypoint{X: 50, Y: 60, Confidence: 0.9}, Keypoint{X: 50, Y: 20, Confidence: 0.9}, 0},
		{"mirror lean", Keypoint{X: 40, Y: 10, Confidence: 0.9}, Keypoint{X: 10, Y: 40, Confidence: 0.9}, 45},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := poseWith(map[KeypointName]Keypoint{LeftShoulder: tt.shoulder, LeftHip: tt.hip})
			v, ok := SideVector(p, SideLeft, 0.6)
			require.True(t, ok)
			assert.InDelta(t, tt.want, v.Angle, 1e-9)
			assert.InDelta(t, 0.9, v.Confidence, 1e-9)
			assert.Equal(t, SideLeft, v.Side)
		})
	}
}

func TestSideVector_Rejects(t *testing.T) {
	low := poseWith(map[KeypointName]Keypoint{
		RightShoulder: {X: 50, Y: 20, Confidence: 0.9},
		RightHip:      {X: 50, Y: 60, Confidence: 0.6}, // not strictly above
	})
	_, ok := SideVector(low, SideRight, 0.6)
	assert.False(t, ok)

	coincident := poseWith(map[KeypointName]Keypoint{
		RightShoulder: {X: 50, Y: 50, Confidence: 0.9},
		RightHip:      {X: 50, Y: 50, Confidence: 0.9},
	})
	_, ok = SideVector(coincident, SideRight, 0.6)
	assert.False(t, ok)
}

func TestLeanAngle_SideSelection(t *testing.T) {
	both := poseWith(map[KeypointName]Keypoint{
		LeftShoulder:  {X: 50, Y: 20, Confidence: 0.7},
		LeftHip:       {X: 50, Y: 60, Confidence: 0.7},
		RightShoulder: {X: 40, Y: 20, Confidence: 0.95},
		RightHip:      {X: 80, Y: 60, Confidence: 0.85},
	})
	v, ok := LeanAngle(both, 0.6)
	require.True(t, ok)
	assert.Equal(t, SideRight, v.Side)
	assert.InDelta(t, 45, v.Angle, 1e-9)
	assert.InDelta(t, 0.9, v.Confidence, 1e-9)
	assert.Equal(t, RightShoulder, v.Shoulder.Name)
	assert.Equal(t, RightHip, v.Hip.Name)

	onlyLeft := poseWith(map[KeypointName]Keypoint{
		LeftShoulder:  {X: 50, Y: 20, Confidence: 0.7},
		LeftHip:       {X: 50, Y: 60, Confidence: 0.7},
		RightShoulder: {X: 40, Y: 20, Confidence: 0.95},
	})
	v, ok = LeanAngle(onlyLeft, 0.6)
	require.True(t, ok)
	assert.Equal(t, SideLeft, v.Side)

	tie := poseWith(map[KeypointName]Keypoint{
		LeftShoulder:  {X: 50, Y: 20, Confidence: 0.8},
		LeftHip:       {X: 50, Y: 60, Confidence: 0.8},
		RightShoulder: {X: 40, Y: 20, Confidence: 0.8},
		RightHip:      {X: 40, Y: 60, Confidence: 0.8},
	})
	v, ok = LeanAngle(tie, 0.6)
	require.True(t, ok)
	assert.Equal(t, SideLeft, v.Side)
}

func TestLeanAngle_Degenerate(t *testing.T) {
	_, ok := LeanAngle(ZeroPose(), 0.6)
	assert.False(t, ok)

	headOnly := poseWith(map[KeypointName]Keypoint{
		Nose:         {X: 50, Y: 10, Confidence: 0.99},
		LeftShoulder: {X: 50, Y: 20, Confidence: 0.99},
		RightHip:     {X: 50, Y: 60, Confidence: 0.99},
	})
	_, ok = LeanAngle(headOnly, 0.6)
	assert.False(t, ok, "shoulder and hip from opposite sides must not pair")
}

func TestSide_String(t *testing.T) {
	assert.Equal(t, "left", SideLeft.String())
	assert.Equal(t, "right", SideRight.String())
	b, err := SideRight.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "right", string(b))
}

func TestSide_UnmarshalText(t *testing.T) {
	var s Side
	require.NoError(t, s.UnmarshalText([]byte("right")))
	assert.Equal(t, SideRight, s)
	require.NoError(t, s.UnmarshalText([]byte("left")))
	assert.Equal(t, SideLeft, s)
	assert.Error(t, s.UnmarshalText([]byte("middle")))
}
