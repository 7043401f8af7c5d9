package tlv

import (
	"context"
	"fmt"
	"reflect"
)

// Codec provides content-type aware marshaling.
type Codec interface {
	// ContentType returns the MIME type for this codec (e.g., "application/vnd.tlv.ber").
	ContentType() string

	// Marshal encodes v into bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal decodes data into v.
	Unmarshal(data []byte, v any) error
}

// BER returns a Codec for BER-TLV records. v must be a pointer to a struct
// with `ber` struct tags.
func BER() Codec {
	return formatCodec{format: FormatBER}
}

// Compact returns a Codec for Compact-TLV records. v must be a pointer to
// a struct with `compact` struct tags.
func Compact() Codec {
	return formatCodec{format: FormatCompact}
}

// formatCodec resolves the record plan for the dynamic type of v on each
// call. Plans are cached, so only the first call per type pays for the scan.
type formatCodec struct {
	format Format
}

func (c formatCodec) ContentType() string {
	return c.format.ContentType()
}

func (c formatCodec) Marshal(v any) ([]byte, error) {
	rv, err := recordPointer(v)
	if err != nil {
		return nil, newCodecError(ErrMarshal, err)
	}
	plan, err := planFor(rv.Type().Elem(), c.format)
	if err != nil {
		return nil, newCodecError(ErrMarshal, err)
	}
	data, err := plan.marshal(context.Background(), rv)
	if err != nil {
		return nil, newCodecError(ErrMarshal, err)
	}
	return data, nil
}

func (c formatCodec) Unmarshal(data []byte, v any) error {
	rv, err := recordPointer(v)
	if err != nil {
		return newCodecError(ErrUnmarshal, err)
	}
	plan, err := planFor(rv.Type().Elem(), c.format)
	if err != nil {
		return newCodecError(ErrUnmarshal, err)
	}
	if _, err := plan.unmarshal(context.Background(), data, rv.Elem(), nil); err != nil {
		return newCodecError(ErrUnmarshal, err)
	}
	return nil
}

// recordPointer checks that v is a non-nil pointer to a struct.
func recordPointer(v any) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%w: expected a non-nil pointer to a struct, got %T", ErrInvalidArgument, v)
	}
	return rv, nil
}
