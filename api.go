// Package tlv provides streaming BER-TLV and Compact-TLV codecs and a
// struct-tag driven record layer on top of them.
//
// BER-TLV (ISO/IEC 7816-4, ASN.1 BER framing) and Compact-TLV (one header
// byte holding a 4-bit tag and a 4-bit length) are the self-describing
// record formats used by smart cards and payment terminals. Values may
// themselves be TLV sequences, so records nest.
//
// # Streaming Core
//
// The core reads and writes one item at a time over an io.Reader or
// io.Writer and never buffers more than a single value:
//
//	err := tlv.DecodeBer(r, tlv.BerItemFunc(func(tag tlv.Tag, value []byte) error {
//	    fmt.Printf("%s: % X\n", tag, value)
//	    return nil
//	}))
//
//	err = tlv.WriteBer(w, tlv.Tag{0x5F, 0x20}, []byte("CARDHOLDER"), 0)
//
// Readers that deliver data in small fragments (sockets, card readers) are
// handled transparently: every length and value field is read until it is
// complete or the stream ends.
//
// # Length Forms
//
// BER lengths use the short form for 0-127, the long form (descriptor byte
// 0x80|k followed by k big-endian bytes, k at most 126) above that, and 0x80
// alone for an item of unknown length. Lengths are arbitrary precision; an
// item whose length does not fit a signed 32-bit integer is a "large item"
// and is handed to the caller unread, as is an unknown-length item.
//
// A null tag with zero length (0x00 0x00) ends BER decoding even when more
// bytes follow; it marks trailing padding.
//
// # Records
//
// Struct fields are mapped to tags with struct tags:
//
//	type Card struct {
//	    Name   string  `ber:"5F20" tlv.order:"1"`
//	    Expiry []byte  `ber:"5F24" tlv.order:"2"`
//	    PIN    *uint16 `ber:"9F17" tlv.order:"3"`
//	    Issuer *Issuer `ber:"BF0C" tlv.order:"4"`
//	}
//
//	schema, _ := tlv.NewSchema[Card](tlv.FormatBER)
//	data, _ := schema.Marshal(ctx, &card)
//	decoded, _ := schema.Unmarshal(ctx, data)
//
// Nil pointers and nil slices are absent and produce no bytes. Nested
// structs are encoded as the value of their tag. Compact-TLV records use
// `compact:"N"` with N in 0-15.
//
// # Converters
//
// Field values are converted with the builtin converters (bytes, byte,
// bool, string, uint, int) chosen from the field type, or with a converter
// registered through RegisterConverter and named in `tlv.convert:"name"`.
//
// # Override Interfaces
//
// Types implementing BerMarshaler/BerUnmarshaler (or the Compact
// equivalents) bypass reflection entirely, at the top level and when
// nested.
package tlv

import (
	"io"
	"math/big"
)

// BerHandler receives the items found by DecodeBer.
//
// Returning a non-nil error from any method stops decoding; DecodeBer
// returns that error unchanged.
type BerHandler interface {
	// ItemDetected is called for every item with a definite length that fits
	// in memory. Ownership of value passes to the handler.
	ItemDetected(tag Tag, value []byte) error

	// UnknownLengthItemDetected is called for an item whose length field is
	// the 0x80 sentinel. The handler decides how much of r belongs to the
	// item and consumes it; decoding resumes at whatever r yields next.
	UnknownLengthItemDetected(tag Tag, r io.Reader) error

	// LargeItemDetected is called for an item whose length needs more than
	// 31 bits. The value has not been read; the handler may stream length
	// bytes from r.
	LargeItemDetected(tag Tag, length *big.Int, r io.Reader) error
}

// BerCallbacks adapts a set of optional functions to BerHandler.
// Nil functions are no-ops.
type BerCallbacks struct {
	Item          func(tag Tag, value []byte) error
	UnknownLength func(tag Tag, r io.Reader) error
	LargeItem     func(tag Tag, length *big.Int, r io.Reader) error
}

// ItemDetected implements BerHandler.
func (c BerCallbacks) ItemDetected(tag Tag, value []byte) error {
	if c.Item == nil {
		return nil
	}
	return c.Item(tag, value)
}

// UnknownLengthItemDetected implements BerHandler.
func (c BerCallbacks) UnknownLengthItemDetected(tag Tag, r io.Reader) error {
	if c.UnknownLength == nil {
		return nil
	}
	return c.UnknownLength(tag, r)
}

// LargeItemDetected implements BerHandler.
func (c BerCallbacks) LargeItemDetected(tag Tag, length *big.Int, r io.Reader) error {
	if c.LargeItem == nil {
		return nil
	}
	return c.LargeItem(tag, length, r)
}

// BerItemFunc is a BerHandler that only handles definite-length items.
type BerItemFunc func(tag Tag, value []byte) error

// ItemDetected implements BerHandler.
func (f BerItemFunc) ItemDetected(tag Tag, value []byte) error {
	return f(tag, value)
}

// UnknownLengthItemDetected implements BerHandler as a no-op.
func (f BerItemFunc) UnknownLengthItemDetected(Tag, io.Reader) error {
	return nil
}

// LargeItemDetected implements BerHandler as a no-op.
func (f BerItemFunc) LargeItemDetected(Tag, *big.Int, io.Reader) error {
	return nil
}

// CompactHandler receives the items found by DecodeCompact.
type CompactHandler interface {
	// ItemDetected is called for every item with a non-zero length.
	ItemDetected(tag byte, value []byte) error
}

// CompactItemFunc adapts a function to CompactHandler.
type CompactItemFunc func(tag byte, value []byte) error

// ItemDetected implements CompactHandler.
func (f CompactItemFunc) ItemDetected(tag byte, value []byte) error {
	return f(tag, value)
}
