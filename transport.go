package forestlog

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// API paths served by Server and used by the HTTP clients.
const (
	availablePath = "/api/v1/available"
	kvPathPrefix  = "/api/v1/kv/"
)

// wireFormat encodes the bodies exchanged with the ledger service.
type wireFormat interface {
	contentType() string
	encodeBytes(b []byte) ([]byte, error)
	decodeBytes(r io.Reader) ([]byte, error)
	encodeBool(v bool) ([]byte, error)
	decodeBool(r io.Reader) (bool, error)
}

// gobWire is the default body format.
type gobWire struct{}

func (gobWire) contentType() string { return "application/octet-stream" }

func (gobWire) encodeBytes(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	if b == nil {
		b = []byte{}
	}
	if err := gob.NewEncoder(&buf).Encode(b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobWire) decodeBytes(r io.Reader) ([]byte, error) {
	var b []byte
	if err := gob.NewDecoder(r).Decode(&b); err != nil {
		return nil, err
	}
	return b, nil
}

func (gobWire) encodeBool(v bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobWire) decodeBool(r io.Reader) (bool, error) {
	var v bool
	if err := gob.NewDecoder(r).Decode(&v); err != nil {
		return false, err
	}
	return v, nil
}

// httpKV is the client side of the ledger KV API, parameterized by body format.
type httpKV struct {
	baseURL string
	client  *http.Client
	wire    wireFormat
}

func (t *httpKV) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", t.wire.contentType())
	if body != nil {
		req.Header.Set("Content-Type", t.wire.contentType())
	}
	return t.client.Do(req)
}

func (t *httpKV) isAvailable(ctx context.Context) (bool, error) {
	resp, err := t.do(ctx, http.MethodGet, availablePath, nil)
	if err != nil {
		return false, fmt.Errorf("get availability: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, statusError(resp)
	}
	ok, err := t.wire.decodeBool(resp.Body)
	if err != nil {
		return false, fmt.Errorf("decode availability: %w", err)
	}
	return ok, nil
}

func (t *httpKV) get(ctx context.Context, key string) ([]byte, error) {
	resp, err := t.do(ctx, http.MethodGet, kvPathPrefix+url.PathEscape(key), nil)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	value, err := t.wire.decodeBytes(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return value, nil
}

func (t *httpKV) set(ctx context.Context, key string, value []byte) error {
	body, err := t.wire.encodeBytes(value)
	if err != nil {
		return fmt.Errorf("encode value: %w", err)
	}
	resp, err := t.do(ctx, http.MethodPut, kvPathPrefix+url.PathEscape(key), body)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

// statusError maps a non-200 response to an error, restoring the
// sentinel errors the server signals through status codes.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))
	base := fmt.Errorf("server returned %d: %s", resp.StatusCode, msg)
	switch resp.StatusCode {
	case http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrUserDeclined, base)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", ErrNoSigner, base)
	case http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %w", ErrUnavailable, base)
	}
	return base
}

// HTTPKVStore is a KVStore talking to a remote ledger service over HTTP
// with gob-encoded bodies.
type HTTPKVStore struct {
	BaseURL string       // Base URL of the ledger service (e.g., "https://ledger.example.com")
	Client  *http.Client // HTTP client (can customize timeouts, TLS, etc.)
}

// NewHTTPKVStore creates a gob HTTP client for the ledger service.
func NewHTTPKVStore(baseURL string) *HTTPKVStore {
	return &HTTPKVStore{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{},
	}
}

func (t *HTTPKVStore) core() *httpKV {
	return &httpKV{baseURL: t.BaseURL, client: t.Client, wire: gobWire{}}
}

// IsAvailable asks the service whether it accepts traffic.
func (t *HTTPKVStore) IsAvailable(ctx context.Context) (bool, error) {
	return t.core().isAvailable(ctx)
}

// Get fetches the value under key.
func (t *HTTPKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	return t.core().get(ctx, key)
}

// Set stores value under key.
func (t *HTTPKVStore) Set(ctx context.Context, key string, value []byte) error {
	return t.core().set(ctx, key, value)
}
