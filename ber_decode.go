package tlv

import (
	"errors"
	"fmt"
	"io"
	"math/big"
)

const (
	// MaxLengthFieldBytes is the largest byte count a long-form length
	// descriptor may announce.
	MaxLengthFieldBytes = 126

	lengthLongFormBit   = 0x80
	lengthIndefinite    = 0x80
	maxShortFormLength  = 127
	largeItemBitLength  = 31 // one less than the width of a signed 32-bit int
	lengthByteCountMask = 0x7F
)

// ReadBerTag reads one tag field from r.
//
// It returns io.EOF, unwrapped, when r is exhausted before the first byte.
// Running out of data inside a multi-byte tag is ErrCorruptedStream.
func ReadBerTag(r io.Reader) (Tag, error) {
	start := offsetOf(r)

	first, err := readByte(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, streamError(start, StageTag, err)
	}

	if first&tagNumberMask != tagNumberMask {
		return Tag{first}, nil
	}

	tag := Tag{first}
	for {
		b, err := readByte(r)
		if err != nil {
			return nil, streamError(start, StageTag, err)
		}
		tag = append(tag, b)
		if b&continuationBit == 0 {
			return tag, nil
		}
	}
}

// ReadBerLength reads one length field from r.
//
// A nil length with a nil error means the field was the unknown-length
// sentinel 0x80; no further bytes were consumed. A descriptor announcing
// more than MaxLengthFieldBytes bytes is ErrInvalidObject.
func ReadBerLength(r io.Reader) (*big.Int, error) {
	start := offsetOf(r)

	b, err := readByte(r)
	if err != nil {
		return nil, streamError(start, StageLength, err)
	}

	if b&lengthLongFormBit == 0 {
		return big.NewInt(int64(b)), nil
	}
	if b == lengthIndefinite {
		return nil, nil
	}

	count := int(b & lengthByteCountMask)
	if count > MaxLengthFieldBytes {
		return nil, newDecodeError(start, StageLength, ErrInvalidObject,
			fmt.Errorf("long form length announces %d bytes, at most %d allowed", count, MaxLengthFieldBytes))
	}

	raw, err := readFull(r, count)
	if err != nil {
		return nil, streamError(start, StageLength, err)
	}
	return new(big.Int).SetBytes(raw), nil
}

// ReadBerValue reads exactly length value bytes from r, retrying short
// reads. length must not be a large item.
func ReadBerValue(r io.Reader, length *big.Int) ([]byte, error) {
	if length == nil || length.Sign() < 0 || isLargeItem(length) {
		return nil, fmt.Errorf("%w: value length %v cannot be buffered", ErrInvalidArgument, length)
	}
	start := offsetOf(r)
	value, err := readFull(r, int(length.Int64()))
	if err != nil {
		return nil, streamError(start, StageValue, err)
	}
	return value, nil
}

// isLargeItem reports whether length is too wide to be used as an
// in-memory buffer index.
func isLargeItem(length *big.Int) bool {
	return length.BitLen() > largeItemBitLength
}

// DecodeBer reads BER-TLV items from r until it is exhausted or the
// end-of-contents pair (tag 0x00, length 0) is read, dispatching each item
// to h.
//
// Items with the unknown-length sentinel go to UnknownLengthItemDetected and
// large items to LargeItemDetected; both receive the remaining stream. All
// other items are read in full and passed to ItemDetected.
//
// Parse failures abort decoding with a *DecodeError wrapping
// ErrCorruptedStream or ErrInvalidObject. Errors returned by h abort
// decoding and are returned as is.
func DecodeBer(r io.Reader, h BerHandler) error {
	if r == nil {
		return fmt.Errorf("%w: reader must not be nil", ErrInvalidArgument)
	}
	if h == nil {
		return fmt.Errorf("%w: handler must not be nil", ErrInvalidArgument)
	}

	src := trackOffset(r)
	for {
		tag, err := ReadBerTag(src)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		length, err := ReadBerLength(src)
		if err != nil {
			return err
		}

		if length == nil {
			if err := h.UnknownLengthItemDetected(tag, src); err != nil {
				return err
			}
			continue
		}

		if tag.isEndOfContents() && length.Sign() == 0 {
			return nil
		}

		if isLargeItem(length) {
			if err := h.LargeItemDetected(tag, length, src); err != nil {
				return err
			}
			continue
		}

		value, err := ReadBerValue(src, length)
		if err != nil {
			return err
		}
		if err := h.ItemDetected(tag, value); err != nil {
			return err
		}
	}
}
