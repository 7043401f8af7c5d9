package tlv

import (
	"fmt"
	"io"
)

// MaxCompactNibble is the largest tag or length a Compact-TLV header holds.
const MaxCompactNibble = 0x0F

// PackCompactHeader packs tag into the high nibble and length into the low
// nibble of one header byte. ok is false if either is outside 0-15.
func PackCompactHeader(tag byte, length int) (header byte, ok bool) {
	if tag > MaxCompactNibble || length < 0 || length > MaxCompactNibble {
		return 0, false
	}
	return tag<<4 | byte(length), true
}

// UnpackCompactHeader splits a Compact-TLV header byte into tag and length.
func UnpackCompactHeader(header byte) (tag byte, length int) {
	return header >> 4, int(header & MaxCompactNibble)
}

// DecodeCompact reads Compact-TLV items from r until it is exhausted,
// dispatching each item to h.
//
// Items with a zero length nibble are skipped without calling h. Running
// out of data inside a value is ErrCorruptedStream. Errors returned by h
// abort decoding and are returned as is.
func DecodeCompact(r io.Reader, h CompactHandler) error {
	if r == nil {
		return fmt.Errorf("%w: reader must not be nil", ErrInvalidArgument)
	}
	if h == nil {
		return fmt.Errorf("%w: handler must not be nil", ErrInvalidArgument)
	}

	src := trackOffset(r)
	for {
		start := src.offset
		header, err := readByte(src)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return streamError(start, StageTag, err)
		}

		tag, length := UnpackCompactHeader(header)
		if length == 0 {
			continue
		}

		value, err := readFull(src, length)
		if err != nil {
			return streamError(start+1, StageValue, err)
		}
		if err := h.ItemDetected(tag, value); err != nil {
			return err
		}
	}
}

// WriteCompactItem writes the header for tag and length followed by value.
//
// If tag or length is outside 0-15 nothing is written and nil is returned.
// value is written as given; keeping it consistent with length is the
// caller's job.
func WriteCompactItem(w io.Writer, tag byte, length int, value []byte) error {
	header, ok := PackCompactHeader(tag, length)
	if !ok {
		return nil
	}
	item := make([]byte, 0, 1+len(value))
	item = append(item, header)
	item = append(item, value...)
	_, err := w.Write(item)
	return err
}

// WriteCompact writes value under tag, deriving the length from value.
// A nil value writes nothing; so does a value longer than 15 bytes.
func WriteCompact(w io.Writer, tag byte, value []byte) error {
	if value == nil {
		return nil
	}
	return WriteCompactItem(w, tag, len(value), value)
}
