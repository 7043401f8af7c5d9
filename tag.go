package tlv

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Class is the class of a BER tag (bits 7-8 of the first tag byte).
type Class byte

// Tag class constants.
const (
	ClassUniversal       Class = 0x00 // 00xxxxxx
	ClassApplication     Class = 0x40 // 01xxxxxx
	ClassContextSpecific Class = 0x80 // 10xxxxxx
	ClassPrivate         Class = 0xC0 // 11xxxxxx
)

func (c Class) String() string {
	switch c {
	case ClassUniversal:
		return "universal"
	case ClassApplication:
		return "application"
	case ClassContextSpecific:
		return "context"
	default:
		return "private"
	}
}

const (
	tagClassMask       = 0xC0
	tagConstructedBit  = 0x20
	tagNumberMask      = 0x1F
	continuationBit    = 0x80
	maxTagNumberShifts = 9 // base-128 digits that fit in a uint64
)

// Tag is the identifier of a BER-TLV item, exactly as it appears on the wire.
// Tags compare by byte content.
type Tag []byte

// Equal reports whether t and other hold the same bytes.
func (t Tag) Equal(other Tag) bool {
	return bytes.Equal(t, other)
}

// Class returns the tag class encoded in the first byte.
func (t Tag) Class() Class {
	if len(t) == 0 {
		return ClassUniversal
	}
	return Class(t[0] & tagClassMask)
}

// Constructed reports whether the primitive/constructed bit is set, i.e.
// the value is itself a TLV sequence.
func (t Tag) Constructed() bool {
	return len(t) > 0 && t[0]&tagConstructedBit != 0
}

// Number returns the tag number. Multi-byte tags carry it base-128 in the
// subsequent bytes. ok is false for empty tags and numbers that overflow.
func (t Tag) Number() (number uint64, ok bool) {
	if len(t) == 0 {
		return 0, false
	}
	if t[0]&tagNumberMask != tagNumberMask {
		return uint64(t[0] & tagNumberMask), true
	}
	if len(t) < 2 || len(t)-1 > maxTagNumberShifts {
		return 0, false
	}
	for _, b := range t[1:] {
		number = number<<7 | uint64(b&^continuationBit)
	}
	return number, true
}

// String returns the tag as upper-case hex, e.g. "5F20".
func (t Tag) String() string {
	return strings.ToUpper(hex.EncodeToString(t))
}

// isEndOfContents reports whether t is the single null tag byte that,
// paired with a zero length, terminates decoding.
func (t Tag) isEndOfContents() bool {
	return len(t) == 1 && t[0] == 0x00
}

// Validate checks that t is a well-formed BER tag: a single byte whose low
// five bits are not all set, or a first byte with all five bits set followed
// by continuation bytes with the MSB set and a final byte with it clear.
func (t Tag) Validate() error {
	if len(t) == 0 {
		return errors.New("tag is empty")
	}
	multiByte := t[0]&tagNumberMask == tagNumberMask
	if !multiByte && len(t) > 1 {
		return fmt.Errorf("tag %s has a single-byte first byte but %d bytes", t, len(t))
	}
	if multiByte && len(t) < 2 {
		return fmt.Errorf("tag %s announces subsequent bytes but has none", t)
	}
	for i := 1; i < len(t); i++ {
		last := i == len(t)-1
		if last && t[i]&continuationBit != 0 {
			return fmt.Errorf("tag %s last byte %02X has the continuation bit set", t, t[i])
		}
		if !last && t[i]&continuationBit == 0 {
			return fmt.Errorf("tag %s byte %d (%02X) must have the continuation bit set", t, i, t[i])
		}
	}
	return nil
}

// ParseTag parses a hex tag such as "5F20", "0x5F20", "5f:20" or "5F 20"
// and validates it.
func ParseTag(s string) (Tag, error) {
	cleaned := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	cleaned = strings.NewReplacer(":", "", " ", "", "0x", "", "0X", "").Replace(cleaned)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty tag", ErrInvalidTag)
	}
	raw, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidTag, s, err)
	}
	tag := Tag(raw)
	if err := tag.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTag, err)
	}
	return tag, nil
}
