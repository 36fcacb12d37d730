package forestlog

// Example: Wire Formats
//
// Two layers carry bytes, and each has its own format choice.
//
// 1. Stored values (Codec) - what sits under forest_keys and forest_<id>
//
//    JSONCodec (default)
//      index:  ["1718000000000-k3j9a0q","1718000000500-0zz81mq"]
//      record: {"data":"FHE-...","timestamp":1718000000,"location":"Amazon Basin",
//               "year":2024,"forestType":"Tropical","changeType":"deforestation"}
//
//    ProtoCodec
//      index:  google.protobuf.ListValue of string values
//      record: google.protobuf.Struct with the same field names as JSON
//
//    MsgpackCodec
//      index:  msgpack array of strings
//      record: msgpack map with the same field names as JSON
//
//    The record id is never stored inside the value; it comes from the key.
//    All decoders treat empty input as "nothing stored" and report
//    malformed input as ErrDecodeFault.
//
// 2. Ledger transport (HTTPKVStore, ProtoHTTPKVStore, Server)
//
//   ┌─────────────────┐                        ┌─────────────────┐
//   │  RecordStore    │                        │  Ledger Server  │
//   ├─────────────────┤                        ├─────────────────┤
//   │ HTTPKVStore     │   HTTP + gob           │ GET /api/v1/available
//   │ ProtoHTTPKVStore├───────────────────────>│ GET /api/v1/kv/{key}
//   │                 │   HTTP + protobuf      │ PUT /api/v1/kv/{key}
//   └─────────────────┘                        └─────────────────┘
//
//    Bodies are gob by default. With Content-Type or Accept set to
//    application/x-protobuf the server answers with
//    google.protobuf.BytesValue (values) and google.protobuf.BoolValue
//    (availability).
//
//    Status codes:
//      200  ok
//      401  no signer connected        -> ErrNoSigner
//      403  user rejected transaction  -> ErrUserDeclined
//      503  store unavailable          -> ErrUnavailable
//      502  any other backend failure
//
// Usage Example:
//
//   // ===== Ledger host =====
//   kv, _ := forestlog.OpenPebbleKVStore("/var/lib/forestlog", nil)
//   srv := forestlog.NewServer(kv, forestlog.NewLogger("info", os.Stderr))
//   log.Fatal(srv.ListenAndServe(":8545"))
//
//   // ===== Client =====
//   store, _ := forestlog.NewRecordStore(
//       forestlog.NewProtoHTTPKVStore("http://ledger.example.com:8545"),
//       forestlog.StoreConfig{Codec: forestlog.ProtoCodec{}},
//   )
//   records, _ := store.List(ctx)
