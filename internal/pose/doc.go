// Package pose turns raw pose-model output tensors into anatomically
// labelled keypoints and derives the body-lean geometry the fall classifier
// works from.
//
// Two decoding strategies share the Decoder interface:
//
//   - HeatmapDecoder: per-keypoint heatmap plus offset field (PoseNet style).
//   - RegressionDecoder: normalized (y, x, score) triples (MoveNet style).
//
// Detector wires a caller-owned inference.Engine, the image preprocessing
// steps and a Decoder into a single Detect call per frame.
//
// No persistence and no cross-frame state live here; see package fall.
package pose
