package tlv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// ConverterName identifies a converter.
// Use these constants in struct tags: `tlv.convert:"uint"`
type ConverterName string

const (
	// ConvertBytes passes the value through unchanged.
	ConvertBytes ConverterName = "bytes"

	// ConvertByte maps a single byte. Decoding takes the first value byte.
	ConvertByte ConverterName = "byte"

	// ConvertBool maps 0x00 to false and any other first byte to true.
	// Encodes true as 0xFF.
	ConvertBool ConverterName = "bool"

	// ConvertString maps UTF-8 text.
	ConvertString ConverterName = "string"

	// ConvertUint maps an unsigned big-endian integer of at most 8 bytes.
	// Encodes the minimal number of bytes, at least one.
	ConvertUint ConverterName = "uint"

	// ConvertInt maps a two's complement big-endian integer of at most
	// 8 bytes. Encodes the minimal number of bytes, at least one.
	ConvertInt ConverterName = "int"
)

// Converter maps an item value to and from a Go value.
//
// FromBytes returns a value assignable or convertible to the field type
// (the element type for pointer fields). ToBytes receives the field value,
// dereferenced for pointer fields, and must return a non-nil slice.
type Converter interface {
	FromBytes(data []byte) (any, error)
	ToBytes(v any) ([]byte, error)
}

// ConverterFuncs adapts a pair of functions to Converter.
type ConverterFuncs struct {
	From func(data []byte) (any, error)
	To   func(v any) ([]byte, error)
}

// FromBytes implements Converter.
func (c ConverterFuncs) FromBytes(data []byte) (any, error) {
	return c.From(data)
}

// ToBytes implements Converter.
func (c ConverterFuncs) ToBytes(v any) ([]byte, error) {
	return c.To(v)
}

var (
	convertersMu sync.RWMutex
	converters   = builtinConverters()
)

func builtinConverters() map[ConverterName]Converter {
	return map[ConverterName]Converter{
		ConvertBytes:  bytesConverter{},
		ConvertByte:   byteConverter{},
		ConvertBool:   boolConverter{},
		ConvertString: stringConverter{},
		ConvertUint:   uintConverter{},
		ConvertInt:    intConverter{},
	}
}

// IsBuiltinConverter returns true if name is one of the builtin converters.
func IsBuiltinConverter(name ConverterName) bool {
	switch name {
	case ConvertBytes, ConvertByte, ConvertBool, ConvertString, ConvertUint, ConvertInt:
		return true
	}
	return false
}

// RegisterConverter makes c available to `tlv.convert:"name"` struct tags.
// Builtin names cannot be replaced. Safe for concurrent use; schemas built
// before registration are not affected.
func RegisterConverter(name ConverterName, c Converter) error {
	if name == "" || c == nil {
		return fmt.Errorf("%w: converter name and implementation are required", ErrInvalidArgument)
	}
	if IsBuiltinConverter(name) {
		return fmt.Errorf("%w: converter %q is builtin", ErrInvalidArgument, name)
	}
	convertersMu.Lock()
	defer convertersMu.Unlock()
	converters[name] = c
	return nil
}

// lookupConverter returns the converter registered under name.
func lookupConverter(name ConverterName) (Converter, bool) {
	convertersMu.RLock()
	defer convertersMu.RUnlock()
	c, ok := converters[name]
	return c, ok
}

// resetConverters drops every registered converter except the builtins.
func resetConverters() {
	convertersMu.Lock()
	defer convertersMu.Unlock()
	converters = builtinConverters()
}

// defaultConverter infers the builtin converter for a field type.
func defaultConverter(rt reflect.Type) (ConverterName, bool) {
	switch rt.Kind() {
	case reflect.Slice:
		if rt.Elem().Kind() == reflect.Uint8 {
			return ConvertBytes, true
		}
	case reflect.Uint8:
		return ConvertByte, true
	case reflect.Bool:
		return ConvertBool, true
	case reflect.String:
		return ConvertString, true
	case reflect.Uint, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return ConvertUint, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return ConvertInt, true
	}
	return "", false
}

var errEmptyValue = errors.New("value is empty")

type bytesConverter struct{}

func (bytesConverter) FromBytes(data []byte) (any, error) {
	return data, nil
}

func (bytesConverter) ToBytes(v any) ([]byte, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() != reflect.Uint8 {
		return nil, fmt.Errorf("bytes converter cannot encode %T", v)
	}
	if rv.IsNil() {
		return []byte{}, nil
	}
	return rv.Bytes(), nil
}

type byteConverter struct{}

func (byteConverter) FromBytes(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, errEmptyValue
	}
	return data[0], nil
}

func (byteConverter) ToBytes(v any) ([]byte, error) {
	n, err := unsignedOf(v)
	if err != nil {
		return nil, err
	}
	if n > 0xFF {
		return nil, fmt.Errorf("byte converter cannot encode %d", n)
	}
	return []byte{byte(n)}, nil
}

type boolConverter struct{}

func (boolConverter) FromBytes(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, errEmptyValue
	}
	return data[0] != 0x00, nil
}

func (boolConverter) ToBytes(v any) ([]byte, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Bool {
		return nil, fmt.Errorf("bool converter cannot encode %T", v)
	}
	if rv.Bool() {
		return []byte{0xFF}, nil
	}
	return []byte{0x00}, nil
}

type stringConverter struct{}

func (stringConverter) FromBytes(data []byte) (any, error) {
	return string(data), nil
}

func (stringConverter) ToBytes(v any) ([]byte, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.String {
		return nil, fmt.Errorf("string converter cannot encode %T", v)
	}
	return []byte(rv.String()), nil
}

type uintConverter struct{}

func (uintConverter) FromBytes(data []byte) (any, error) {
	return decodeUint(data)
}

func (uintConverter) ToBytes(v any) ([]byte, error) {
	n, err := unsignedOf(v)
	if err != nil {
		return nil, err
	}
	return encodeUint(n), nil
}

type intConverter struct{}

func (intConverter) FromBytes(data []byte) (any, error) {
	return decodeInt(data)
}

func (intConverter) ToBytes(v any) ([]byte, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return encodeInt(rv.Int()), nil
	}
	return nil, fmt.Errorf("int converter cannot encode %T", v)
}

// unsignedOf extracts an unsigned integer from any unsigned kind.
func unsignedOf(v any) (uint64, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), nil
	}
	return 0, fmt.Errorf("cannot encode %T as an unsigned integer", v)
}

// encodeUint encodes n big-endian with leading zero bytes removed.
func encodeUint(n uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	i := 0
	for i < 7 && buf[i] == 0x00 {
		i++
	}
	return append([]byte(nil), buf[i:]...)
}

// decodeUint decodes an unsigned big-endian integer. Leading zero bytes
// do not count toward the 8 byte limit; an empty value is zero.
func decodeUint(data []byte) (uint64, error) {
	for len(data) > 0 && data[0] == 0x00 {
		data = data[1:]
	}
	if len(data) > 8 {
		return 0, fmt.Errorf("unsigned integer of %d bytes overflows 64 bits", len(data))
	}
	var n uint64
	for _, b := range data {
		n = n<<8 | uint64(b)
	}
	return n, nil
}

// encodeInt encodes v as minimal two's complement: a leading 0x00 or 0xFF
// is dropped while the next byte still carries the same sign.
func encodeInt(v int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	i := 0
	for i < 7 {
		redundant := (buf[i] == 0x00 && buf[i+1]&0x80 == 0) ||
			(buf[i] == 0xFF && buf[i+1]&0x80 != 0)
		if !redundant {
			break
		}
		i++
	}
	return append([]byte(nil), buf[i:]...)
}

// decodeInt decodes a two's complement big-endian integer. An empty value
// is zero.
func decodeInt(data []byte) (int64, error) {
	if len(data) == 0 {
		return 0, nil
	}
	if len(data) > 8 {
		return 0, fmt.Errorf("integer of %d bytes overflows 64 bits", len(data))
	}
	var v int64
	if data[0]&0x80 != 0 {
		v = -1
	}
	for _, b := range data {
		v = v<<8 | int64(b)
	}
	return v, nil
}

// assignConverted stores a converter result in dst, converting between
// named types of the same kind and between integer widths with an overflow
// check.
func assignConverted(dst reflect.Value, out any) error {
	if out == nil {
		return errors.New("converter returned nil")
	}
	v := reflect.ValueOf(out)
	t := dst.Type()

	if v.Type().AssignableTo(t) {
		dst.Set(v)
		return nil
	}

	switch {
	case isIntKind(v.Kind()) && isIntKind(t.Kind()):
		n := v.Int()
		if dst.OverflowInt(n) {
			return fmt.Errorf("%d overflows %s", n, t)
		}
		dst.SetInt(n)
	case isUintKind(v.Kind()) && isUintKind(t.Kind()):
		n := v.Uint()
		if dst.OverflowUint(n) {
			return fmt.Errorf("%d overflows %s", n, t)
		}
		dst.SetUint(n)
	case v.Kind() == t.Kind() && v.Type().ConvertibleTo(t):
		dst.Set(v.Convert(t))
	default:
		return fmt.Errorf("cannot assign %s to %s", v.Type(), t)
	}
	return nil
}

func isIntKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUintKind(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
