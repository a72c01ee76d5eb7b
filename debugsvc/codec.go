package debugsvc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodecName is registered with grpc-go's encoding package and forced
// on both client and server via grpc.ForceServerCodec/grpc.ForceCodec
// (SPEC_FULL.md 6.1) so this service can ship plain Go structs instead of
// checking in generated .proto code — a documented, public extension
// point of google.golang.org/grpc, not a private hack.
const jsonCodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return jsonCodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
