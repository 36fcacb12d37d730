package forestlog

import (
	"fmt"

	"github.com/ugorji/go/codec"
)

// msgpackRecord mirrors recordWire with msgpack map keys.
type msgpackRecord struct {
	Data       string `codec:"data"`
	Timestamp  int64  `codec:"timestamp"`
	Location   string `codec:"location"`
	Year       int    `codec:"year"`
	ForestType string `codec:"forestType"`
	ChangeType string `codec:"changeType"`
}

// msgpackRecordIn is msgpackRecord as read back; timestamp and location
// are required.
type msgpackRecordIn struct {
	Data       string  `codec:"data"`
	Timestamp  *int64  `codec:"timestamp"`
	Location   *string `codec:"location"`
	Year       int     `codec:"year"`
	ForestType string  `codec:"forestType"`
	ChangeType string  `codec:"changeType"`
}

// MsgpackCodec stores the index as a msgpack string array and records as
// msgpack maps keyed like the JSON layout.
type MsgpackCodec struct {
	mh codec.MsgpackHandle
}

// NewMsgpackCodec returns a MsgpackCodec with string-typed raw values.
func NewMsgpackCodec() *MsgpackCodec {
	c := &MsgpackCodec{}
	c.mh.RawToString = true
	return c
}

func (c *MsgpackCodec) encode(v any) ([]byte, error) {
	var out []byte
	if err := codec.NewEncoderBytes(&out, &c.mh).Encode(v); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MsgpackCodec) decode(b []byte, v any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("msgpack: %v", r)
		}
	}()
	return codec.NewDecoderBytes(b, &c.mh).Decode(v)
}

// EncodeIndex encodes ids as a msgpack array.
func (c *MsgpackCodec) EncodeIndex(ids []string) ([]byte, error) {
	if ids == nil {
		ids = []string{}
	}
	data, err := c.encode(ids)
	if err != nil {
		return nil, fmt.Errorf("encode index: %w", err)
	}
	return data, nil
}

// DecodeIndex decodes a msgpack string array.
func (c *MsgpackCodec) DecodeIndex(b []byte) ([]string, error) {
	if len(b) == 0 {
		return []string{}, nil
	}
	var ids []string
	if err := c.decode(b, &ids); err != nil {
		return []string{}, fmt.Errorf("%w: index: %v", ErrDecodeFault, err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// EncodeRecord encodes r as a msgpack map.
func (c *MsgpackCodec) EncodeRecord(r Record) ([]byte, error) {
	data, err := c.encode(msgpackRecord{
		Data:       r.ProtectedPayload,
		Timestamp:  r.CreatedAt,
		Location:   r.Location,
		Year:       r.Year,
		ForestType: string(r.ForestType),
		ChangeType: string(r.ChangeType),
	})
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return data, nil
}

// DecodeRecord decodes a msgpack record map.
func (c *MsgpackCodec) DecodeRecord(b []byte) (Record, error) {
	if len(b) == 0 {
		return Record{}, nil
	}
	var m msgpackRecordIn
	if err := c.decode(b, &m); err != nil {
		return Record{}, fmt.Errorf("%w: record: %v", ErrDecodeFault, err)
	}
	if m.Timestamp == nil || m.Location == nil {
		return Record{}, fmt.Errorf("%w: record: missing timestamp or location", ErrDecodeFault)
	}
	return Record{
		ProtectedPayload: m.Data,
		CreatedAt:        *m.Timestamp,
		Location:         *m.Location,
		Year:             m.Year,
		ForestType:       ForestType(m.ForestType),
		ChangeType:       ChangeType(m.ChangeType),
	}, nil
}
