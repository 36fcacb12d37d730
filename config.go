package forestlog

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all settings for the forestlog CLI and server.
type Config struct {
	Storage    StorageConfig    `toml:"storage"`
	Codec      CodecConfig      `toml:"codec"`
	Protect    ProtectConfig    `toml:"protect"`
	Submission SubmissionConfig `toml:"submission"`
	Cache      CacheConfig      `toml:"cache"`
	Logging    LoggingConfig    `toml:"logging"`
	Server     ServerConfig     `toml:"server"`
}

// StorageConfig selects the ledger backend.
type StorageConfig struct {
	Type   string `toml:"type"`   // "memory", "sqlite", "file", "pebble", "leveldb", "http", "proto"
	Path   string `toml:"path"`   // database file or directory for local backends
	URL    string `toml:"url"`    // ledger service base URL for http/proto
	Signed bool   `toml:"signed"` // require a connected signer for writes; client commands only
}

// CodecConfig selects the byte encoding of index and records.
type CodecConfig struct {
	Name string `toml:"name"` // "json", "proto", "msgpack"
}

// ProtectConfig selects the payload protector.
type ProtectConfig struct {
	Type string `toml:"type"` // "placeholder", "sealed"
	Key  string `toml:"key"`  // hex-encoded 32-byte key for "sealed"
}

// SubmissionConfig holds the submitter reset delays.
type SubmissionConfig struct {
	SuccessDelay Duration `toml:"success_delay"`
	ErrorDelay   Duration `toml:"error_delay"`
}

// CacheConfig sizes the decoded-record cache.
type CacheConfig struct {
	Records int `toml:"records"` // 0 disables the cache
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `toml:"level"` // "debug", "info", "warn", "error"
}

// ServerConfig holds the ledger stand-in server settings.
type ServerConfig struct {
	Addr string `toml:"addr"`
	Cert string `toml:"cert"`
	Key  string `toml:"key"`
}

// Duration is a time.Duration that can be unmarshaled from TOML strings.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// DefaultConfig returns a Config with all default values.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Type: "memory",
			Path: "forestlog.db",
		},
		Codec:   CodecConfig{Name: "json"},
		Protect: ProtectConfig{Type: "placeholder"},
		Submission: SubmissionConfig{
			SuccessDelay: Duration(DefaultSuccessDelay),
			ErrorDelay:   Duration(DefaultErrorDelay),
		},
		Cache:   CacheConfig{Records: 256},
		Logging: LoggingConfig{Level: "info"},
		Server:  ServerConfig{Addr: "127.0.0.1:8545"},
	}
}

// LoadConfig reads defaults, then the TOML file at path (if it exists),
// then FORESTLOG_* environment overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv applies environment variable overrides.
func (c *Config) applyEnv() {
	if v := os.Getenv("FORESTLOG_STORAGE"); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv("FORESTLOG_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("FORESTLOG_STORAGE_URL"); v != "" {
		c.Storage.URL = v
	}
	if v := os.Getenv("FORESTLOG_SIGNED"); v != "" {
		c.Storage.Signed = v == "true" || v == "1"
	}
	if v := os.Getenv("FORESTLOG_CODEC"); v != "" {
		c.Codec.Name = v
	}
	if v := os.Getenv("FORESTLOG_PROTECT"); v != "" {
		c.Protect.Type = v
	}
	if v := os.Getenv("FORESTLOG_PROTECT_KEY"); v != "" {
		c.Protect.Key = v
	}
	if v := os.Getenv("FORESTLOG_SUCCESS_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Submission.SuccessDelay = Duration(d)
		}
	}
	if v := os.Getenv("FORESTLOG_ERROR_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Submission.ErrorDelay = Duration(d)
		}
	}
	if v := os.Getenv("FORESTLOG_CACHE_RECORDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Cache.Records = n
		}
	}
	if v := os.Getenv("FORESTLOG_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("FORESTLOG_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

// OpenKVStore opens the backend described by cfg. The returned closer
// releases it; for backends without resources it is a no-op.
func OpenKVStore(cfg StorageConfig) (KVStore, io.Closer, error) {
	var (
		kv     KVStore
		closer io.Closer = nopCloser{}
	)
	switch strings.ToLower(cfg.Type) {
	case "", "memory":
		m := NewMemoryKVStore()
		kv, closer = m, m
	case "sqlite":
		s, err := OpenSQLiteKVStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		kv, closer = s, s
	case "file":
		s, err := OpenFileKVStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		kv, closer = s, s
	case "pebble":
		s, err := OpenPebbleKVStore(cfg.Path, nil)
		if err != nil {
			return nil, nil, err
		}
		kv, closer = s, s
	case "leveldb":
		s, err := OpenLevelDBKVStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		kv, closer = s, s
	case "http":
		if cfg.URL == "" {
			return nil, nil, errors.New("storage type http requires url")
		}
		kv = NewHTTPKVStore(cfg.URL)
	case "proto":
		if cfg.URL == "" {
			return nil, nil, errors.New("storage type proto requires url")
		}
		kv = NewProtoHTTPKVStore(cfg.URL)
	default:
		return nil, nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
	if cfg.Signed {
		kv = NewSignedKVStore(kv)
	}
	return kv, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewCodec returns the codec registered under name.
func NewCodec(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return JSONCodec{}, nil
	case "proto", "protobuf":
		return ProtoCodec{}, nil
	case "msgpack":
		return NewMsgpackCodec(), nil
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}

// NewProtector builds the protector described by cfg.
func NewProtector(cfg ProtectConfig) (Protector, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "placeholder":
		return PlaceholderProtector{}, nil
	case "sealed":
		key, err := hex.DecodeString(cfg.Key)
		if err != nil {
			return nil, fmt.Errorf("decode protect key: %w", err)
		}
		return NewSealedProtector(key)
	}
	return nil, fmt.Errorf("unknown protector %q", cfg.Type)
}

// StoreConfig builds the RecordStore settings described by c.
func (c *Config) StoreConfig(log Logger, metrics *Metrics) (StoreConfig, error) {
	codec, err := NewCodec(c.Codec.Name)
	if err != nil {
		return StoreConfig{}, err
	}
	protector, err := NewProtector(c.Protect)
	if err != nil {
		return StoreConfig{}, err
	}
	return StoreConfig{
		Codec:     codec,
		Protector: protector,
		CacheSize: c.Cache.Records,
		Logger:    log,
		Metrics:   metrics,
	}, nil
}

// SubmitterConfig builds the Submitter settings described by c.
func (c *Config) SubmitterConfig(log Logger) SubmitterConfig {
	return SubmitterConfig{
		SuccessDelay: c.Submission.SuccessDelay.Duration(),
		ErrorDelay:   c.Submission.ErrorDelay.Duration(),
		Logger:       log,
	}
}
