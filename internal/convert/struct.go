// Package convert maps typed API messages to and from google.protobuf.Struct.
package convert

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrBadMessage reports a Struct that does not decode into the target type.
var ErrBadMessage = errors.New("bad message")

// ToStruct encodes v through its JSON form.
func ToStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return s, nil
}

// FromStruct decodes s into v. Unknown fields are rejected; a nil Struct
// decodes as an empty object.
func FromStruct(s *structpb.Struct, v any) error {
	raw := []byte("{}")
	if s != nil {
		var err error
		raw, err = protojson.Marshal(s)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadMessage, err)
		}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	return nil
}

// MustStruct is ToStruct for values known to encode, such as literals in tests
// and CLI requests.
func MustStruct(v any) *structpb.Struct {
	s, err := ToStruct(v)
	if err != nil {
		panic(err)
	}
	return s
}
