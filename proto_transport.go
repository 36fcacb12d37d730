package forestlog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const protobufContentType = "application/x-protobuf"

// protoWire encodes bodies as protobuf well-known wrapper messages.
// This is more compact than gob and language-agnostic.
type protoWire struct{}

func (protoWire) contentType() string { return protobufContentType }

func (protoWire) encodeBytes(b []byte) ([]byte, error) {
	data, err := proto.Marshal(wrapperspb.Bytes(b))
	if err != nil {
		return nil, fmt.Errorf("marshal bytes: %w", err)
	}
	return data, nil
}

func (protoWire) decodeBytes(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	var msg wrapperspb.BytesValue
	if err := proto.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal protobuf: %w", err)
	}
	return msg.GetValue(), nil
}

func (protoWire) encodeBool(v bool) ([]byte, error) {
	data, err := proto.Marshal(wrapperspb.Bool(v))
	if err != nil {
		return nil, fmt.Errorf("marshal bool: %w", err)
	}
	return data, nil
}

func (protoWire) decodeBool(r io.Reader) (bool, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return false, fmt.Errorf("read body: %w", err)
	}
	var msg wrapperspb.BoolValue
	if err := proto.Unmarshal(body, &msg); err != nil {
		return false, fmt.Errorf("unmarshal protobuf: %w", err)
	}
	return msg.GetValue(), nil
}

// ProtoHTTPKVStore is a KVStore talking to the ledger service using
// Protocol Buffers over HTTP/HTTPS.
type ProtoHTTPKVStore struct {
	BaseURL string       // Base URL of the ledger service
	Client  *http.Client // HTTP client (can customize timeouts, TLS, etc.)
}

// NewProtoHTTPKVStore creates a new Protocol Buffer HTTP client.
func NewProtoHTTPKVStore(baseURL string) *ProtoHTTPKVStore {
	return &ProtoHTTPKVStore{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{},
	}
}

func (t *ProtoHTTPKVStore) core() *httpKV {
	return &httpKV{baseURL: t.BaseURL, client: t.Client, wire: protoWire{}}
}

// IsAvailable asks the service whether it accepts traffic.
func (t *ProtoHTTPKVStore) IsAvailable(ctx context.Context) (bool, error) {
	return t.core().isAvailable(ctx)
}

// Get fetches the value under key.
func (t *ProtoHTTPKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	return t.core().get(ctx, key)
}

// Set stores value under key.
func (t *ProtoHTTPKVStore) Set(ctx context.Context, key string, value []byte) error {
	return t.core().set(ctx, key, value)
}
