package pose

import (
	"fmt"
	"math"
)

// Side names one half of the body.
type Side int

const (
	SideLeft Side = iota
	SideRight
)

// String returns "left" or "right".
func (s Side) String() string {
	if s == SideRight {
		return "right"
	}
	return "left"
}

// MarshalText encodes the side by name.
func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes "left" or "right".
func (s *Side) UnmarshalText(text []byte) error {
	switch string(text) {
	case "left":
		*s = SideLeft
	case "right":
		*s = SideRight
	default:
		return fmt.Errorf("unknown body side %q", text)
	}
	return nil
}

func (s Side) joints() (shoulder, hip KeypointName) {
	if s == SideRight {
		return RightShoulder, RightHip
	}
	return LeftShoulder, LeftHip
}

// SpinalVector is the shoulder→hip segment of one body side together with
// its lean from vertical.
type SpinalVector struct {
	Side     Side     `json:"side"`
	Shoulder Keypoint `json:"shoulder"`
	Hip      Keypoint `json:"hip"`

	// Angle between shoulder→hip and the image vertical, in degrees.
	// 0 is upright, 90 is horizontal.
	Angle float64 `json:"angle"`

	// Confidence is the mean of the shoulder and hip confidences.
	Confidence float64 `json:"confidence"`
}

// SideVector evaluates one body side. It reports false when either joint is
// at or below threshold, or the two joints coincide.
func SideVector(p Pose, side Side, threshold float64) (SpinalVector, bool) {
	sj, hj := side.joints()
	shoulder, hip := p.Keypoint(sj), p.Keypoint(hj)
	if shoulder.Confidence <= threshold || hip.Confidence <= threshold {
		return SpinalVector{}, false
	}
	dx := hip.X - shoulder.X
	dy := hip.Y - shoulder.Y
	if dx == 0 && dy == 0 {
		return SpinalVector{}, false
	}
	return SpinalVector{
		Side:       side,
		Shoulder:   shoulder,
		Hip:        hip,
		Angle:      math.Atan2(math.Abs(dx), math.Abs(dy)) * 180 / math.Pi,
		Confidence: (shoulder.Confidence + hip.Confidence) / 2,
	}, true
}

// LeanAngle picks the representative body side of a pose: the qualifying
// side with the higher combined confidence, left on ties. It reports false
// for a degenerate pose where neither side qualifies.
func LeanAngle(p Pose, threshold float64) (SpinalVector, bool) {
	left, okL := SideVector(p, SideLeft, threshold)
	right, okR := SideVector(p, SideRight, threshold)
	switch {
	case okL && okR:
		if right.Confidence > left.Confidence {
			return right, true
		}
		return left, true
	case okL:
		return left, true
	case okR:
		return right, true
	default:
		return SpinalVector{}, false
	}
}
