package conn

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
)

// codec marshals proto messages natively and falls back to JSON for the
// plain api structs. Registered per call via grpc.ForceCodec.
type codec struct{}

func (codec) Name() string {
	return "keyspan"
}

func (codec) Marshal(v interface{}) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return proto.Marshal(m)
	}

	return json.Marshal(v)
}

func (codec) Unmarshal(data []byte, v interface{}) error {
	if m, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, m)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("keyspan codec: %w", err)
	}

	return nil
}
