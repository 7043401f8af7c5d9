package tlv

import (
	"fmt"
	"io"
	"math/big"
)

// EncodeBerLength returns the BER length field for size.
//
// Sizes up to 127 use the one-byte short form and ignore minLongFormBytes.
// Larger sizes use the long form with the minimal big-endian byte count, or
// minLongFormBytes if that is larger (capped at MaxLengthFieldBytes), padded
// with leading zeros. Negative sizes and sizes needing more than
// MaxLengthFieldBytes bytes are ErrInvalidArgument.
func EncodeBerLength(size *big.Int, minLongFormBytes int) ([]byte, error) {
	if size == nil || size.Sign() < 0 {
		return nil, fmt.Errorf("%w: size must not be negative, got %v", ErrInvalidArgument, size)
	}
	if size.BitLen() > MaxLengthFieldBytes*8 {
		return nil, fmt.Errorf("%w: size needs more than %d length bytes", ErrInvalidArgument, MaxLengthFieldBytes)
	}

	if size.BitLen() <= 7 {
		return []byte{byte(size.Uint64())}, nil
	}

	natural := size.Bytes()
	width := min(max(len(natural), minLongFormBytes), MaxLengthFieldBytes)

	field := make([]byte, 1+width)
	field[0] = lengthLongFormBit | byte(width)
	copy(field[1+width-len(natural):], natural)
	return field, nil
}

// BerLength is EncodeBerLength for sizes that fit in an int.
func BerLength(size int, minLongFormBytes int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: size must not be negative, got %d", ErrInvalidArgument, size)
	}
	if size <= maxShortFormLength {
		return []byte{byte(size)}, nil
	}
	return EncodeBerLength(big.NewInt(int64(size)), minLongFormBytes)
}

// WriteBer writes tag, the length of value and value to w as one item.
//
// A nil value writes nothing and returns nil: absent fields are omitted
// from the wire. A non-nil empty value writes a zero-length item.
// minLongFormBytes pads long-form lengths, see EncodeBerLength.
func WriteBer(w io.Writer, tag Tag, value []byte, minLongFormBytes int) error {
	if value == nil {
		return nil
	}
	if len(tag) == 0 {
		return fmt.Errorf("%w: tag must not be empty", ErrInvalidArgument)
	}

	length, err := BerLength(len(value), minLongFormBytes)
	if err != nil {
		return err
	}
	return WriteBerRaw(w, tag, length, value)
}

// WriteBerRaw writes an item whose length field has already been encoded.
// No validation is done; the caller owns consistency between length and value.
func WriteBerRaw(w io.Writer, tag Tag, length, value []byte) error {
	item := make([]byte, 0, len(tag)+len(length)+len(value))
	item = append(item, tag...)
	item = append(item, length...)
	item = append(item, value...)
	_, err := w.Write(item)
	return err
}
