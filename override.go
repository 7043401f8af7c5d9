package tlv

import "io"

// Override interfaces allow record types to bypass reflection-based
// encoding. When a type implements one of these interfaces, the Schema calls
// the interface method instead of walking its field plan, both for the
// top-level type and wherever the type appears as a nested field.
//
// These interfaces suit hand-written or generated codecs for hot paths and
// for layouts struct tags cannot express.

// BerMarshaler writes the receiver's BER-TLV items to w.
type BerMarshaler interface {
	MarshalBer(w io.Writer) error
}

// BerUnmarshaler populates the receiver from BER-TLV encoded data.
// data is the complete record, or the value of the enclosing item when the
// type is nested.
type BerUnmarshaler interface {
	UnmarshalBer(data []byte) error
}

// CompactMarshaler writes the receiver's Compact-TLV items to w.
type CompactMarshaler interface {
	MarshalCompact(w io.Writer) error
}

// CompactUnmarshaler populates the receiver from Compact-TLV encoded data.
type CompactUnmarshaler interface {
	UnmarshalCompact(data []byte) error
}
