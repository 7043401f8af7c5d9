// Package testing provides test utilities for tlv.
package testing

import (
	"bytes"
	"encoding/hex"
	"io"
	"math/big"
	"strings"
	"testing"

	"github.com/zoobzio/tlv"
)

// Hex decodes a hex string, ignoring whitespace, and fails the test on
// malformed input.
func Hex(tb testing.TB, s string) []byte {
	tb.Helper()
	b, err := hex.DecodeString(strings.Join(strings.Fields(s), ""))
	if err != nil {
		tb.Fatalf("invalid hex %q: %v", s, err)
	}
	return b
}

// ChunkReader returns a reader that yields at most chunk bytes per Read,
// the way sockets and card readers deliver data.
func ChunkReader(data []byte, chunk int) io.Reader {
	return &chunkReader{r: bytes.NewReader(data), chunk: chunk}
}

type chunkReader struct {
	r     *bytes.Reader
	chunk int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(p) > c.chunk {
		p = p[:c.chunk]
	}
	return c.r.Read(p)
}

// FailingReader returns a reader that yields data and then err.
func FailingReader(data []byte, err error) io.Reader {
	return io.MultiReader(bytes.NewReader(data), errReader{err: err})
}

type errReader struct {
	err error
}

func (e errReader) Read([]byte) (int, error) {
	return 0, e.err
}

// Item is one recorded definite-length item.
type Item struct {
	Tag   tlv.Tag
	Value []byte
}

// LargeItem is one recorded large item.
type LargeItem struct {
	Tag    tlv.Tag
	Length *big.Int
}

// BerRecorder is a tlv.BerHandler that records every callback.
//
// Unknown-length and large items are recorded without consuming the
// stream unless Drain is set, in which case the remainder of the stream
// (unknown length) or the announced length (large) is read and discarded.
type BerRecorder struct {
	Items         []Item
	UnknownLength []tlv.Tag
	Large         []LargeItem
	Drain         bool
	Err           error // returned from ItemDetected when set
}

// ItemDetected implements tlv.BerHandler.
func (r *BerRecorder) ItemDetected(tag tlv.Tag, value []byte) error {
	r.Items = append(r.Items, Item{Tag: tag, Value: value})
	return r.Err
}

// UnknownLengthItemDetected implements tlv.BerHandler.
func (r *BerRecorder) UnknownLengthItemDetected(tag tlv.Tag, src io.Reader) error {
	r.UnknownLength = append(r.UnknownLength, tag)
	if r.Drain {
		_, err := io.Copy(io.Discard, src)
		return err
	}
	return nil
}

// LargeItemDetected implements tlv.BerHandler.
func (r *BerRecorder) LargeItemDetected(tag tlv.Tag, length *big.Int, src io.Reader) error {
	r.Large = append(r.Large, LargeItem{Tag: tag, Length: new(big.Int).Set(length)})
	if r.Drain && length.IsInt64() {
		_, err := io.CopyN(io.Discard, src, length.Int64())
		return err
	}
	return nil
}

// CompactItem is one recorded Compact-TLV item.
type CompactItem struct {
	Tag   byte
	Value []byte
}

// CompactRecorder is a tlv.CompactHandler that records every item.
type CompactRecorder struct {
	Items []CompactItem
}

// ItemDetected implements tlv.CompactHandler.
func (r *CompactRecorder) ItemDetected(tag byte, value []byte) error {
	r.Items = append(r.Items, CompactItem{Tag: tag, Value: value})
	return nil
}

// Issuer is a nested BER record.
type Issuer struct {
	Country uint16 `ber:"5F28"`
	Name    string `ber:"5F2D"`
}

// Card is a BER record covering every builtin converter, nesting and
// optional fields.
type Card struct {
	PAN      []byte  `ber:"5A" tlv.order:"1"`
	Name     string  `ber:"5F20" tlv.order:"2"`
	Expiry   []byte  `ber:"5F24" tlv.order:"3"`
	Counter  uint32  `ber:"9F36" tlv.order:"4"`
	Balance  int64   `ber:"9F79" tlv.order:"5"`
	Active   bool    `ber:"DF01" tlv.order:"6"`
	Version  byte    `ber:"DF02" tlv.order:"7"`
	PIN      *uint16 `ber:"9F17" tlv.order:"8"`
	Issuer   *Issuer `ber:"BF0C" tlv.order:"9"`
	Internal string
}

// Status is a Compact-TLV record.
type Status struct {
	Code    byte   `compact:"1"`
	Label   string `compact:"2"`
	Retries *uint8 `compact:"0x0F"`
}

// Node is a recursive BER record.
type Node struct {
	Label string `ber:"80"`
	Next  *Node  `ber:"A1"`
}

// SampleCard returns a fully populated Card.
func SampleCard() Card {
	pin := uint16(0x1234)
	return Card{
		PAN:     []byte{0x41, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11},
		Name:    "DOE/JANE",
		Expiry:  []byte{0x29, 0x12, 0x31},
		Counter: 513,
		Balance: -1500,
		Active:  true,
		Version: 2,
		PIN:     &pin,
		Issuer:  &Issuer{Country: 840, Name: "ACME BANK"},
	}
}
