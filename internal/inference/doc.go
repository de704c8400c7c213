// Package inference defines the tensor contract between the pose decoder and
// whatever executes the neural network.
//
// An Engine accepts one input tensor shaped [1, height, width, channels] and
// returns the raw output tensors of the model. The engine handle is built by
// the caller and injected into pose.Detector; nothing in this module keeps a
// global interpreter or accelerator handle.
//
// Implementations live in sub-packages: remote (gRPC) and tflite (build tag
// "tflite", requires libtensorflowlite_c).
package inference
