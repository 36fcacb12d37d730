package forestlog

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ToProtoRecord converts Record to a protobuf Struct using the same field
// names as the JSON layout.
func ToProtoRecord(r Record) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"data":       structpb.NewStringValue(r.ProtectedPayload),
		"timestamp":  structpb.NewNumberValue(float64(r.CreatedAt)),
		"location":   structpb.NewStringValue(r.Location),
		"year":       structpb.NewNumberValue(float64(r.Year)),
		"forestType": structpb.NewStringValue(string(r.ForestType)),
		"changeType": structpb.NewStringValue(string(r.ChangeType)),
	}}
}

// FromProtoRecord converts a protobuf Struct to Record
func FromProtoRecord(p *structpb.Struct) (Record, error) {
	var r Record
	f := p.GetFields()

	var err error
	if r.ProtectedPayload, err = stringField(f, "data"); err != nil {
		return Record{}, err
	}
	ts, err := integerField(f, "timestamp")
	if err != nil {
		return Record{}, err
	}
	r.CreatedAt = ts
	if r.Location, err = stringField(f, "location"); err != nil {
		return Record{}, err
	}
	year, err := integerField(f, "year")
	if err != nil {
		return Record{}, err
	}
	r.Year = int(year)
	ft, err := stringField(f, "forestType")
	if err != nil {
		return Record{}, err
	}
	r.ForestType = ForestType(ft)
	ct, err := stringField(f, "changeType")
	if err != nil {
		return Record{}, err
	}
	r.ChangeType = ChangeType(ct)
	return r, nil
}

// ToProtoIndex converts an id list to a protobuf ListValue of strings.
func ToProtoIndex(ids []string) *structpb.ListValue {
	values := make([]*structpb.Value, len(ids))
	for i, id := range ids {
		values[i] = structpb.NewStringValue(id)
	}
	return &structpb.ListValue{Values: values}
}

// FromProtoIndex converts a protobuf ListValue back to an id list.
func FromProtoIndex(p *structpb.ListValue) ([]string, error) {
	ids := make([]string, 0, len(p.GetValues()))
	for i, v := range p.GetValues() {
		s, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, fmt.Errorf("index entry %d: expected string", i)
		}
		ids = append(ids, s.StringValue)
	}
	return ids, nil
}

func stringField(f map[string]*structpb.Value, name string) (string, error) {
	v, ok := f[name]
	if !ok {
		return "", fmt.Errorf("missing field %s", name)
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("invalid field %s: expected string", name)
	}
	return s.StringValue, nil
}

func integerField(f map[string]*structpb.Value, name string) (int64, error) {
	v, ok := f[name]
	if !ok {
		return 0, fmt.Errorf("missing field %s", name)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("invalid field %s: expected number", name)
	}
	if n.NumberValue != math.Trunc(n.NumberValue) || math.Abs(n.NumberValue) > 1<<53 {
		return 0, fmt.Errorf("invalid field %s: %v is not an integer", name, n.NumberValue)
	}
	return int64(n.NumberValue), nil
}

// ProtoCodec stores values as protobuf wire bytes of structpb messages.
type ProtoCodec struct{}

// EncodeIndex marshals ids as a structpb.ListValue.
func (ProtoCodec) EncodeIndex(ids []string) ([]byte, error) {
	data, err := proto.Marshal(ToProtoIndex(ids))
	if err != nil {
		return nil, fmt.Errorf("marshal index: %w", err)
	}
	return data, nil
}

// DecodeIndex unmarshals a structpb.ListValue of strings.
func (ProtoCodec) DecodeIndex(b []byte) ([]string, error) {
	if len(b) == 0 {
		return []string{}, nil
	}
	var lv structpb.ListValue
	if err := proto.Unmarshal(b, &lv); err != nil {
		return []string{}, fmt.Errorf("%w: index: %v", ErrDecodeFault, err)
	}
	ids, err := FromProtoIndex(&lv)
	if err != nil {
		return []string{}, fmt.Errorf("%w: %v", ErrDecodeFault, err)
	}
	return ids, nil
}

// EncodeRecord marshals r as a structpb.Struct.
func (ProtoCodec) EncodeRecord(r Record) ([]byte, error) {
	data, err := proto.Marshal(ToProtoRecord(r))
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return data, nil
}

// DecodeRecord unmarshals a structpb.Struct record.
func (ProtoCodec) DecodeRecord(b []byte) (Record, error) {
	if len(b) == 0 {
		return Record{}, nil
	}
	var st structpb.Struct
	if err := proto.Unmarshal(b, &st); err != nil {
		return Record{}, fmt.Errorf("%w: record: %v", ErrDecodeFault, err)
	}
	r, err := FromProtoRecord(&st)
	if err != nil {
		return Record{}, fmt.Errorf("%w: record: %v", ErrDecodeFault, err)
	}
	return r, nil
}
