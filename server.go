package forestlog

import (
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes a KVStore over HTTP so that remote clients (HTTPKVStore,
// ProtoHTTPKVStore) can use it as their ledger. It stands in for the
// hosted ledger service during development and tests.
type Server struct {
	KV           KVStore
	Log          Logger
	Gatherer     prometheus.Gatherer // optional; mounts /metrics when set
	MaxBodyBytes int64               // PUT body limit; <=0 means DefaultMaxBodyBytes
	tlsConfig    *tls.Config
}

// DefaultMaxBodyBytes caps a PUT body when Server.MaxBodyBytes is unset.
const DefaultMaxBodyBytes = 1 << 20

// NewServer creates a server backed by kv.
func NewServer(kv KVStore, log Logger) *Server {
	return &Server{KV: kv, Log: orDiscard(log), MaxBodyBytes: DefaultMaxBodyBytes}
}

// SetTLSConfig clones cfg and stores it for use when serving HTTPS requests.
// If cfg is nil a default configuration will be used.
func (s *Server) SetTLSConfig(cfg *tls.Config) {
	if cfg == nil {
		s.tlsConfig = nil
		return
	}
	s.tlsConfig = cfg.Clone()
}

// isProtobuf checks if the request asks for protobuf bodies.
func isProtobuf(r *http.Request) bool {
	for _, h := range []string{r.Header.Get("Content-Type"), r.Header.Get("Accept")} {
		if strings.HasPrefix(h, protobufContentType) || strings.HasPrefix(h, "application/protobuf") {
			return true
		}
	}
	return false
}

func wireFor(r *http.Request) wireFormat {
	if isProtobuf(r) {
		return protoWire{}
	}
	return gobWire{}
}

func (s *Server) write(w http.ResponseWriter, wire wireFormat, body []byte) {
	w.Header().Set("Content-Type", wire.contentType())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.Log.Debug("write response", "err", err)
	}
}

// HandleAvailable handles GET /api/v1/available.
func (s *Server) HandleAvailable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	wire := wireFor(r)

	ok, err := s.KV.IsAvailable(r.Context())
	if err != nil {
		s.Log.Warn("availability check failed", "err", err)
		ok = false
	}
	body, err := wire.encodeBool(ok)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode response: %v", err), http.StatusInternalServerError)
		return
	}
	s.write(w, wire, body)
}

// HandleKV handles GET and PUT /api/v1/kv/{key}.
func (s *Server) HandleKV(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(strings.TrimPrefix(r.URL.EscapedPath(), kvPathPrefix))
	if err != nil || key == "" {
		http.Error(w, "Missing or invalid key", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGet(w, r, key)
	case http.MethodPut:
		s.handlePut(w, r, key)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, key string) {
	wire := wireFor(r)

	value, err := s.KV.Get(r.Context(), key)
	if err != nil {
		s.Log.Error("get failed", "key", key, "err", err)
		http.Error(w, fmt.Sprintf("Get failed: %v", err), http.StatusBadGateway)
		return
	}
	body, err := wire.encodeBytes(value)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode response: %v", err), http.StatusInternalServerError)
		return
	}
	s.write(w, wire, body)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request, key string) {
	wire := wireFor(r)

	limit := s.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("Value exceeds %d bytes", limit), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, fmt.Sprintf("Read body: %v", err), http.StatusBadRequest)
		return
	}

	value, err := wire.decodeBytes(bytes.NewReader(body))
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid value: %v", err), http.StatusBadRequest)
		return
	}

	if err := s.KV.Set(r.Context(), key, value); err != nil {
		s.Log.Warn("set refused", "key", key, "err", err)
		http.Error(w, err.Error(), setStatus(err))
		return
	}
	w.WriteHeader(http.StatusOK)
}

// setStatus picks the status code a client maps back to the same sentinel.
func setStatus(err error) int {
	switch {
	case IsUserDeclined(err):
		return http.StatusForbidden
	case errors.Is(err, ErrNoSigner):
		return http.StatusUnauthorized
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

// SetupRoutes configures HTTP routes for the ledger API.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc(availablePath, s.HandleAvailable)
	mux.HandleFunc(kvPathPrefix, s.HandleKV)
	if s.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

func (s *Server) tlsConfigWithDefaults() *tls.Config {
	if s.tlsConfig == nil {
		return &tls.Config{MinVersion: tls.VersionTLS12}
	}
	cfg := s.tlsConfig.Clone()
	if cfg.MinVersion == 0 {
		cfg.MinVersion = tls.VersionTLS12
	}
	return cfg
}

// ListenAndServe starts a plain HTTP server.
func (s *Server) ListenAndServe(addr string) error {
	server := &http.Server{Addr: addr, Handler: s.Handler()}
	return server.ListenAndServe()
}

// ListenAndServeTLS starts the HTTPS server.
func (s *Server) ListenAndServeTLS(addr, certFile, keyFile string) error {
	server := &http.Server{
		Addr:      addr,
		Handler:   s.Handler(),
		TLSConfig: s.tlsConfigWithDefaults(),
	}
	return server.ListenAndServeTLS(certFile, keyFile)
}
