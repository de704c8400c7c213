package pose

import (
	"fmt"
)

// KeypointName identifies one of the 17 canonical body landmarks, in model
// channel order.
type KeypointName int

const (
	Nose KeypointName = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle

	// NumKeypoints is the number of canonical keypoints.
	NumKeypoints = 17
)

var keypointLabels = [NumKeypoints]string{
	"nose",
	"left_eye",
	"right_eye",
	"left_ear",
	"right_ear",
	"left_shoulder",
	"right_shoulder",
	"left_elbow",
	"right_elbow",
	"left_wrist",
	"right_wrist",
	"left_hip",
	"right_hip",
	"left_knee",
	"right_knee",
	"left_ankle",
	"right_ankle",
}

// String returns the snake_case label of the keypoint.
func (k KeypointName) String() string {
	if k < 0 || int(k) >= NumKeypoints {
		return fmt.Sprintf("keypoint(%d)", int(k))
	}
	return keypointLabels[k]
}

// MarshalText encodes the keypoint by label so JSON and YAML stay readable.
func (k KeypointName) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= NumKeypoints {
		return nil, fmt.Errorf("invalid keypoint %d", int(k))
	}
	return []byte(keypointLabels[k]), nil
}

// UnmarshalText decodes a keypoint label.
func (k *KeypointName) UnmarshalText(text []byte) error {
	name, err := ParseKeypointName(string(text))
	if err != nil {
		return err
	}
	*k = name
	return nil
}

// ParseKeypointName resolves a label such as "left_hip".
func ParseKeypointName(label string) (KeypointName, error) {
	for i, l := range keypointLabels {
		if l == label {
			return KeypointName(i), nil
		}
	}
	return 0, fmt.Errorf("unknown keypoint %q", label)
}

// Keypoint is a decoded landmark in template-image pixel coordinates.
type Keypoint struct {
	Name       KeypointName `json:"name" yaml:"name"`
	X          float64      `json:"x" yaml:"x"`
	Y          float64      `json:"y" yaml:"y"`
	Confidence float64      `json:"confidence" yaml:"confidence"`
}

// Pose is the full set of keypoints for one detected body.
// Score is the fraction of keypoints that were both confident and inside
// the template bounds.
type Pose struct {
	Keypoints [NumKeypoints]Keypoint `json:"keypoints"`
	Score     float64                `json:"score"`
}

// Keypoint returns the keypoint with the given name.
func (p Pose) Keypoint(name KeypointName) Keypoint {
	return p.Keypoints[name]
}

// ZeroPose returns a pose with every keypoint named, at the origin, with
// zero confidence. It is the result of decoding a frame with no body.
func ZeroPose() Pose {
	var p Pose
	for i := range p.Keypoints {
		p.Keypoints[i].Name = KeypointName(i)
	}
	return p
}

// scorePose builds a Pose from raw decoded keypoints. Keypoints at or below
// threshold, or outside the open template bounds, keep their position but
// have their confidence cleared so they can never qualify a body side.
func scorePose(raw [NumKeypoints]Keypoint, width, height int, threshold float64) Pose {
	p := Pose{Keypoints: raw}
	count := 0
	for i := range p.Keypoints {
		kp := &p.Keypoints[i]
		kp.Name = KeypointName(i)
		inBounds := kp.X > 0 && kp.X < float64(width) && kp.Y > 0 && kp.Y < float64(height)
		if kp.Confidence > threshold && inBounds {
			count++
			continue
		}
		kp.Confidence = 0
	}
	p.Score = float64(count) / float64(NumKeypoints)
	return p
}
