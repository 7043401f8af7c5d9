package tlv

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic error handling.
// Use errors.Is() to check for these error types.
var (
	// ErrCorruptedStream indicates the input ended in the middle of an item
	// (inside a tag, a length field, or a value).
	ErrCorruptedStream = errors.New("corrupted stream")

	// ErrInvalidObject indicates a long-form length descriptor that claims
	// more than 126 length bytes.
	ErrInvalidObject = errors.New("invalid object")

	// ErrInvalidArgument indicates an encode or decode entry point was called
	// with arguments it cannot serve. Nothing is written.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidTag indicates a struct tag has an invalid format or value.
	ErrInvalidTag = errors.New("invalid tag")

	// ErrDuplicateTag indicates two fields of one record share a TLV tag.
	ErrDuplicateTag = errors.New("duplicate tag")

	// ErrMissingConverter indicates a field names a converter that was not registered.
	ErrMissingConverter = errors.New("missing converter")

	// ErrUnsupportedType indicates a field type has no converter and is not a record.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrConvert indicates a value could not be converted to or from its field type.
	ErrConvert = errors.New("convert failed")

	// ErrUnmarshal indicates a record could not be decoded.
	ErrUnmarshal = errors.New("unmarshal failed")

	// ErrMarshal indicates a record could not be encoded.
	ErrMarshal = errors.New("marshal failed")
)

// Stage names the field of a TLV item being read when a decode error occurred.
type Stage string

// Decode stages.
const (
	StageTag    Stage = "tag"
	StageLength Stage = "length"
	StageValue  Stage = "value"
)

// DecodeError provides detailed information about a decoding failure.
type DecodeError struct {
	Offset int64 // Byte offset where the failing field started, -1 if unknown
	Stage  Stage // Field being read
	Err    error // Underlying sentinel error (ErrCorruptedStream, ErrInvalidObject) or I/O error
	Cause  error // Original error from the reader, if any
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("decode %s", e.Stage)
	if e.Offset >= 0 {
		msg = fmt.Sprintf("%s at offset %d", msg, e.Offset)
	}
	if e.Cause != nil && e.Cause != e.Err {
		return fmt.Sprintf("%s: %v: %v", msg, e.Err, e.Cause)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// SchemaError represents a record schema build error.
// It wraps a sentinel error with the type and field that triggered it.
type SchemaError struct {
	Err    error  // Underlying sentinel error (ErrInvalidTag, ErrDuplicateTag, etc.)
	Type   string // Record type name
	Field  string // Field name, empty for type-level errors
	Detail string // Offending tag value or explanation
}

func (e *SchemaError) Error() string {
	msg := e.Err.Error()
	if e.Detail != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Detail)
	}
	switch {
	case e.Type != "" && e.Field != "":
		return fmt.Sprintf("%s (field %s.%s)", msg, e.Type, e.Field)
	case e.Type != "":
		return fmt.Sprintf("%s (type %s)", msg, e.Type)
	case e.Field != "":
		return fmt.Sprintf("%s (field %s)", msg, e.Field)
	}
	return msg
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// FieldError represents an error converting a single field.
type FieldError struct {
	Err   error  // Underlying sentinel error (ErrConvert)
	Field string // Field name that failed
	Tag   string // Tag of the item being converted
	Cause error  // Original error from the converter
}

func (e *FieldError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s field %s (tag %s): %v", e.Err, e.Field, e.Tag, e.Cause)
	}
	return fmt.Sprintf("%s field %s (tag %s)", e.Err, e.Field, e.Tag)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// CodecError represents a marshal/unmarshal error.
// Both the boundary sentinel and the original cause are visible to errors.Is.
type CodecError struct {
	Err   error // Underlying sentinel error (ErrMarshal, ErrUnmarshal)
	Cause error // Original error from the codec
}

func (e *CodecError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Err.Error(), e.Cause)
	}
	return e.Err.Error()
}

func (e *CodecError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// newDecodeError creates a DecodeError for a failure while reading stage.
func newDecodeError(offset int64, stage Stage, sentinel, cause error) error {
	return &DecodeError{
		Offset: offset,
		Stage:  stage,
		Err:    sentinel,
		Cause:  cause,
	}
}

// newSchemaError creates a SchemaError for schema build failures.
func newSchemaError(sentinel error, typeName, field, detail string) error {
	return &SchemaError{
		Err:    sentinel,
		Type:   typeName,
		Field:  field,
		Detail: detail,
	}
}

// newFieldError creates a FieldError for field conversion failures.
func newFieldError(field string, tag Tag, cause error) error {
	return &FieldError{
		Err:   ErrConvert,
		Field: field,
		Tag:   tag.String(),
		Cause: cause,
	}
}

// newCodecError creates a CodecError for marshal/unmarshal failures.
func newCodecError(sentinel error, cause error) error {
	return &CodecError{
		Err:   sentinel,
		Cause: cause,
	}
}
