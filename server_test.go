package forestlog

//revive:disable:cyclomatic High complexity acceptable in tests
//revive:disable:function-length Long test functions are acceptable

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/gob"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gobBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		t.Fatal(err)
	}
	return &buf
}

func TestNewServer(t *testing.T) {
	srv := NewServer(NewMemoryKVStore(), nil)

	if srv == nil {
		t.Fatal("NewServer returned nil")
	}
	if srv.KV == nil {
		t.Error("Server's KV not set correctly")
	}
	if srv.Log == nil {
		t.Error("Server's Log should default to a discard logger")
	}
}

func TestServer_HandleAvailable(t *testing.T) {
	mem := NewMemoryKVStore()
	srv := NewServer(mem, nil)

	req := httptest.NewRequest("GET", "/api/v1/available", nil)
	w := httptest.NewRecorder()
	srv.HandleAvailable(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var ok bool
	if err := gob.NewDecoder(w.Body).Decode(&ok); err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("Expected available=true")
	}

	mem.SetAvailable(false)
	w = httptest.NewRecorder()
	srv.HandleAvailable(w, httptest.NewRequest("GET", "/api/v1/available", nil))
	if err := gob.NewDecoder(w.Body).Decode(&ok); err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("Expected available=false")
	}
}

func TestServer_HandleAvailable_MethodNotAllowed(t *testing.T) {
	srv := NewServer(NewMemoryKVStore(), nil)

	w := httptest.NewRecorder()
	srv.HandleAvailable(w, httptest.NewRequest("POST", "/api/v1/available", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestServer_HandleKV_PutGet(t *testing.T) {
	mem := NewMemoryKVStore()
	srv := NewServer(mem, nil)

	req := httptest.NewRequest("PUT", "/api/v1/kv/forest_keys", gobBody(t, []byte(`["a"]`)))
	w := httptest.NewRecorder()
	srv.HandleKV(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	stored, _ := mem.Get(context.Background(), IndexKey)
	if string(stored) != `["a"]` {
		t.Errorf("Expected stored value, got %q", stored)
	}

	w = httptest.NewRecorder()
	srv.HandleKV(w, httptest.NewRequest("GET", "/api/v1/kv/forest_keys", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var got []byte
	if err := gob.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if string(got) != `["a"]` {
		t.Errorf("Expected %q, got %q", `["a"]`, got)
	}
}

func TestServer_HandleKV_EscapedKey(t *testing.T) {
	mem := NewMemoryKVStore()
	srv := NewServer(mem, nil)

	req := httptest.NewRequest("PUT", "/api/v1/kv/forest_a%2Fb", gobBody(t, []byte("v")))
	w := httptest.NewRecorder()
	srv.HandleKV(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if v, _ := mem.Get(context.Background(), "forest_a/b"); string(v) != "v" {
		t.Errorf("Expected key forest_a/b to hold v, got %q", v)
	}
}

func TestServer_HandleKV_Errors(t *testing.T) {
	srv := NewServer(NewMemoryKVStore(), nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"missing key", "GET", "/api/v1/kv/", "", http.StatusBadRequest},
		{"bad method", "DELETE", "/api/v1/kv/forest_keys", "", http.StatusMethodNotAllowed},
		{"invalid gob", "PUT", "/api/v1/kv/forest_keys", "invalid gob data", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.HandleKV(w, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))
			if w.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestServer_HandleKV_SignerStatus(t *testing.T) {
	signed := NewSignedKVStore(NewMemoryKVStore())
	srv := NewServer(signed, nil)

	put := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		srv.HandleKV(w, httptest.NewRequest("PUT", "/api/v1/kv/forest_x", gobBody(t, []byte("v"))))
		return w
	}

	if w := put(); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without signer, got %d", w.Code)
	}

	signed.Connect(SignerFunc(func(context.Context, string, []byte) error { return ErrUserDeclined }))
	w := put()
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 on decline, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "user rejected transaction") {
		t.Errorf("Expected decline message in body, got %q", w.Body.String())
	}

	signed.Connect(SignerFunc(func(context.Context, string, []byte) error { return errInjected }))
	if w := put(); w.Code != http.StatusBadGateway {
		t.Errorf("Expected status 502 on other failure, got %d", w.Code)
	}
}

func TestServer_SetupRoutes(t *testing.T) {
	srv := NewServer(NewMemoryKVStore(), nil)
	reg := prometheus.NewRegistry()
	m := NewMetrics()
	if err := m.Register(reg); err != nil {
		t.Fatal(err)
	}
	m.listed(3)
	srv.Gatherer = reg

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	// Test that routes are registered
	tests := []struct {
		path   string
		method string
	}{
		{"/api/v1/available", "GET"},
		{"/api/v1/kv/forest_keys", "GET"},
		{"/metrics", "GET"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)

		if w.Code == http.StatusNotFound {
			t.Errorf("Route %s not registered", tt.path)
		}
	}

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(w.Body.String(), "forestlog_store_records_listed_total 3") {
		t.Errorf("Expected listed counter in /metrics output")
	}
}

func TestServer_TLSConfig(t *testing.T) {
	srv := NewServer(NewMemoryKVStore(), nil)

	if cfg := srv.tlsConfigWithDefaults(); cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("Expected default MinVersion TLS 1.2, got %x", cfg.MinVersion)
	}

	custom := &tls.Config{MinVersion: tls.VersionTLS13}
	srv.SetTLSConfig(custom)
	custom.MinVersion = tls.VersionTLS10
	if cfg := srv.tlsConfigWithDefaults(); cfg.MinVersion != tls.VersionTLS13 {
		t.Errorf("Expected cloned config with TLS 1.3, got %x", cfg.MinVersion)
	}

	srv.SetTLSConfig(nil)
	if cfg := srv.tlsConfigWithDefaults(); cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("Expected defaults after reset, got %x", cfg.MinVersion)
	}
}

func TestServer_HandleKV_BodyLimit(t *testing.T) {
	mem := NewMemoryKVStore()
	srv := NewServer(mem, nil)
	srv.MaxBodyBytes = 64

	req := httptest.NewRequest("PUT", "/api/v1/kv/forest_keys", gobBody(t, bytes.Repeat([]byte("x"), 256)))
	w := httptest.NewRecorder()
	srv.HandleKV(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", w.Code)
	}
	if mem.Len() != 0 {
		t.Errorf("Expected nothing stored, got %d keys", mem.Len())
	}

	req = httptest.NewRequest("PUT", "/api/v1/kv/forest_keys", gobBody(t, []byte(`["a"]`)))
	w = httptest.NewRecorder()
	srv.HandleKV(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 under the limit, got %d: %s", w.Code, w.Body.String())
	}
}
