package forestlog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

//revive:disable:cyclomatic High complexity acceptable in tests
//revive:disable:function-length Long test functions are acceptable

func TestFileKVStore_Contract(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "forestlog-file-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	store, err := OpenFileKVStore(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	testKVStoreContract(t, store)
}

func TestFileKVStore_RecordStore(t *testing.T) {
	store, err := OpenFileKVStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	testRecordStoreOn(t, store)
}

func TestFileKVStore_Reopen(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()

	store, err := OpenFileKVStore(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Set(ctx, "forest_a", []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(ctx, IndexKey, []byte(`["a"]`)); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	store, err = OpenFileKVStore(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	v, err := store.Get(ctx, "forest_a")
	if err != nil {
		t.Fatal(err)
	}
	if string(v) != "one" {
		t.Errorf("Expected value to survive reopen, got %q", v)
	}

	keys, err := store.Keys()
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "forest_a" || keys[1] != IndexKey {
		t.Errorf("Expected [forest_a forest_keys], got %v", keys)
	}
}

func TestFileKVStore_NoTempFilesLeft(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()

	store, err := OpenFileKVStore(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	for i := 0; i < 5; i++ {
		if err := store.Set(ctx, IndexKey, []byte(strings.Repeat("x", i))); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), tempPrefix) {
			t.Errorf("Leftover temp file %s", e.Name())
		}
	}
}

func TestFileKVStore_Unavailable(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "ledger")

	store, err := OpenFileKVStore(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := os.RemoveAll(tmpDir); err != nil {
		t.Fatal(err)
	}
	ok, err := store.IsAvailable(context.Background())
	if err == nil && ok {
		t.Error("Expected removed directory to be unavailable")
	}

	// RecordStore degrades to an empty list
	rs, err := NewRecordStore(store, StoreConfig{})
	if err != nil {
		t.Fatal(err)
	}
	records, err := rs.List(context.Background())
	if err != nil {
		t.Fatalf("Expected no error from List, got %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected 0 records, got %d", len(records))
	}
}
