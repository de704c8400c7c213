// Package fall owns the multi-frame fall decision.
//
// Responsibilities: a two-deep Window of recent non-degenerate poses, and a
// Classifier that compares each new pose against the immediately preceding
// frame and, when that is inconclusive, against the frame before it.
// Key types: Classifier, Window, FrameRecord, Verdict, Sample.
//
// A Classifier is stateful and not safe for concurrent use; run one per
// camera stream. Degenerate frames and inconclusive comparisons are normal
// outcomes, reported only through the absence of a Verdict (and through
// Observation.Reason for an attached Observer).
package fall
