package forestlog

// Storage Backend Comparison
//
// Every backend implements KVStore; RecordStore works the same on all of them.
//
// 1. MemoryKVStore (kvstore.go) - DEFAULT
//    - Process-local map, lost on exit
//    - SetAvailable toggles the availability signal
//    - Best for: tests, demos
//
// 2. SQLite (sqlite_store.go)
//    - One kv table, WAL mode, pure-Go driver
//    - Best for: a single-file local ledger
//
// 3. POSIX files (file_store.go)
//    - One file per key, atomic replace by rename
//    - flock serializes writers across processes
//    - Best for: inspecting the ledger with ordinary tools
//
// 4. Pebble (pebble_store.go) and LevelDB (leveldb_store.go)
//    - Embedded LSM engines with synced writes
//    - Best for: large ledgers
//
// 5. HTTP (transport.go, proto_transport.go)
//    - Remote ledger service, gob or protobuf bodies
//    - Signals refusals with 403 (ErrUserDeclined) and 401 (ErrNoSigner)
//
// Any backend can be wrapped in SignedKVStore so that writes need an
// approving Signer.
//
// Usage Examples:
//
// === SQLite ===
//
//   kv, err := forestlog.OpenSQLiteKVStore("file:forest.db")
//   if err != nil {
//       log.Fatal(err)
//   }
//   defer kv.Close()
//
//   store, _ := forestlog.NewRecordStore(kv, forestlog.StoreConfig{})
//   rec, err := store.Create(ctx, forestlog.Draft{
//       Location:   "Amazon Basin",
//       Year:       2024,
//       ForestType: forestlog.Tropical,
//       ChangeType: forestlog.Deforestation,
//   })
//
// === Remote ledger with a signer ===
//
//   signed := forestlog.NewSignedKVStore(forestlog.NewHTTPKVStore("http://127.0.0.1:8545"))
//   signed.Connect(forestlog.SignerFunc(func(ctx context.Context, key string, value []byte) error {
//       return nil // approve everything
//   }))
//   store, _ := forestlog.NewRecordStore(signed, forestlog.StoreConfig{})
//
// Key layout (all backends):
//
//   forest_keys   index: encoded list of record ids, append order
//   forest_<id>   one encoded record
//
// The index is updated with a read-modify-write that is not atomic.
// Two writers appending at the same time can lose one id; the record
// itself survives under its key.
