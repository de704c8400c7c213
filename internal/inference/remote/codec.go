package remote

import (
	"encoding/json"

	"github.com/banshee-data/fallwatch/internal/inference"
)

// jsonCodec carries inference messages as JSON over gRPC. Tensors are
// plain structs, so no generated protobuf code is needed on either side.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return "json" }

const (
	// grpcDefaultMaxMsg is grpc-go's default receive limit.
	grpcDefaultMaxMsg = 4 << 20

	// float32 values encode as up to ~15 characters plus a separator;
	// uint8 slices encode as base64.
	jsonBytesPerFloat = 16
	jsonBytesPerUint8 = 2

	envelopeOverhead = 64 << 10
)

// MaxMessageSize returns a gRPC message limit that fits one JSON-encoded
// input tensor of spec, never below grpc-go's 4 MiB default.
func MaxMessageSize(spec inference.TensorSpec) int {
	per := jsonBytesPerFloat
	if spec.Type == inference.Uint8 {
		per = jsonBytesPerUint8
	}
	return max(inference.NumElements(spec.Shape)*per+envelopeOverhead, grpcDefaultMaxMsg)
}
