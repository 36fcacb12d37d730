package forestlog

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Codec turns records and the key index into stored bytes and back.
//
// Decoders are defensive: empty input decodes to an empty result with no
// error, malformed input decodes to an empty result and an error wrapping
// ErrDecodeFault. They never panic on foreign bytes.
type Codec interface {
	EncodeIndex(ids []string) ([]byte, error)
	DecodeIndex(b []byte) ([]string, error)
	EncodeRecord(r Record) ([]byte, error)
	DecodeRecord(b []byte) (Record, error)
}

// recordWire is the stored JSON layout of a record.
// The id is not stored; it is recovered from the record key.
type recordWire struct {
	Data       string     `json:"data"`
	Timestamp  int64      `json:"timestamp"`
	Location   string     `json:"location"`
	Year       int        `json:"year"`
	ForestType ForestType `json:"forestType"`
	ChangeType ChangeType `json:"changeType"`
}

// recordWireIn is recordWire as read back. Timestamp and location must be
// present for a value to count as a record.
type recordWireIn struct {
	Data       string     `json:"data"`
	Timestamp  *int64     `json:"timestamp"`
	Location   *string    `json:"location"`
	Year       int        `json:"year"`
	ForestType ForestType `json:"forestType"`
	ChangeType ChangeType `json:"changeType"`
}

func toWire(r Record) recordWire {
	return recordWire{
		Data:       r.ProtectedPayload,
		Timestamp:  r.CreatedAt,
		Location:   r.Location,
		Year:       r.Year,
		ForestType: r.ForestType,
		ChangeType: r.ChangeType,
	}
}

// JSONCodec stores the index as a JSON array of strings and each record as
// a UTF-8 JSON object. It is the default codec.
type JSONCodec struct{}

// EncodeIndex encodes ids as a JSON array. A nil slice encodes as [].
func (JSONCodec) EncodeIndex(ids []string) ([]byte, error) {
	if ids == nil {
		ids = []string{}
	}
	return json.Marshal(ids)
}

// DecodeIndex decodes a JSON array of strings.
func (JSONCodec) DecodeIndex(b []byte) ([]string, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return []string{}, nil
	}
	var ids []string
	if err := json.Unmarshal(b, &ids); err != nil {
		return []string{}, fmt.Errorf("%w: index: %v", ErrDecodeFault, err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// EncodeRecord encodes r as a JSON object.
func (JSONCodec) EncodeRecord(r Record) ([]byte, error) {
	return json.Marshal(toWire(r))
}

// DecodeRecord decodes a JSON record object. Only zero-length input is
// absence; whitespace or an object without timestamp and location is a
// fault.
func (JSONCodec) DecodeRecord(b []byte) (Record, error) {
	if len(b) == 0 {
		return Record{}, nil
	}
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Record{}, fmt.Errorf("%w: record: not a JSON object", ErrDecodeFault)
	}
	var w recordWireIn
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return Record{}, fmt.Errorf("%w: record: %v", ErrDecodeFault, err)
	}
	if w.Timestamp == nil || w.Location == nil {
		return Record{}, fmt.Errorf("%w: record: missing timestamp or location", ErrDecodeFault)
	}
	return Record{
		ProtectedPayload: w.Data,
		CreatedAt:        *w.Timestamp,
		Location:         *w.Location,
		Year:             w.Year,
		ForestType:       w.ForestType,
		ChangeType:       w.ChangeType,
	}, nil
}
