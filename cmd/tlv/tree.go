package main

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	"github.com/zoobzio/tlv"
)

// Node is one decoded item. Constructed BER items carry their decoded
// contents in Children; every other item carries its value as hex.
type Node struct {
	Tag         string  `json:"tag" yaml:"tag" msgpack:"tag"`
	Class       string  `json:"class,omitempty" yaml:"class,omitempty" msgpack:"class,omitempty"`
	Constructed bool    `json:"constructed,omitempty" yaml:"constructed,omitempty" msgpack:"constructed,omitempty"`
	Length      string  `json:"length" yaml:"length" msgpack:"length"`
	Value       string  `json:"value,omitempty" yaml:"value,omitempty" msgpack:"value,omitempty"`
	Indefinite  bool    `json:"indefinite,omitempty" yaml:"indefinite,omitempty" msgpack:"indefinite,omitempty"`
	Large       bool    `json:"large,omitempty" yaml:"large,omitempty" msgpack:"large,omitempty"`
	Children    []*Node `json:"children,omitempty" yaml:"children,omitempty" msgpack:"children,omitempty"`
}

var errLargeItem = errors.New("large items cannot be re-encoded")

func hexValue(value []byte) string {
	return strings.ToUpper(hex.EncodeToString(value))
}

// decodeBerTree decodes data into nodes. Constructed items are decoded
// recursively unless flat is set; a constructed item whose value is not
// itself valid TLV keeps its raw value.
//
// An unknown-length item has no declared extent, so it takes the rest of
// data as its value. Large items cannot be held in memory and are
// reported with their length only.
func decodeBerTree(data []byte, flat bool) ([]*Node, error) {
	nodes := []*Node{}
	handler := tlv.BerCallbacks{
		Item: func(tag tlv.Tag, value []byte) error {
			node := &Node{
				Tag:         tag.String(),
				Class:       tag.Class().String(),
				Constructed: tag.Constructed(),
				Length:      strconv.Itoa(len(value)),
			}
			if tag.Constructed() && !flat && len(value) > 0 {
				if children, ok := reversibleChildren(value); ok {
					node.Children = children
				}
			}
			if node.Children == nil {
				node.Value = hexValue(value)
			}
			nodes = append(nodes, node)
			return nil
		},
		UnknownLength: func(tag tlv.Tag, r io.Reader) error {
			rest, err := io.ReadAll(r)
			if err != nil {
				return err
			}
			nodes = append(nodes, &Node{
				Tag:         tag.String(),
				Class:       tag.Class().String(),
				Constructed: tag.Constructed(),
				Length:      strconv.Itoa(len(rest)),
				Value:       hexValue(rest),
				Indefinite:  true,
			})
			return nil
		},
		LargeItem: func(tag tlv.Tag, length *big.Int, r io.Reader) error {
			nodes = append(nodes, &Node{
				Tag:         tag.String(),
				Class:       tag.Class().String(),
				Constructed: tag.Constructed(),
				Length:      length.String(),
				Large:       true,
			})
			if !length.IsInt64() {
				return fmt.Errorf("tag %s: %w: length %s", tag, tlv.ErrCorruptedStream, length)
			}
			if _, err := io.CopyN(io.Discard, r, length.Int64()); err != nil {
				return fmt.Errorf("tag %s: %w: %v", tag, tlv.ErrCorruptedStream, err)
			}
			return nil
		},
	}

	if err := tlv.DecodeBer(bytes.NewReader(data), handler); err != nil {
		return nil, err
	}
	return nodes, nil
}

// reversibleChildren decodes a constructed value and keeps the result only
// if encoding it again yields the same bytes. Padded lengths, end markers
// and values that merely look constructed stay raw.
func reversibleChildren(value []byte) ([]*Node, bool) {
	children, err := decodeBerTree(value, false)
	if err != nil || len(children) == 0 {
		return nil, false
	}
	var buf bytes.Buffer
	if err := encodeBerTree(&buf, children, 0); err != nil {
		return nil, false
	}
	return children, bytes.Equal(buf.Bytes(), value)
}

// decodeCompactTree decodes Compact-TLV data into nodes. Tags are printed
// as a single hex digit.
func decodeCompactTree(data []byte) ([]*Node, error) {
	nodes := []*Node{}
	handler := tlv.CompactItemFunc(func(tag byte, value []byte) error {
		nodes = append(nodes, &Node{
			Tag:    strconv.FormatUint(uint64(tag), 16),
			Length: strconv.Itoa(len(value)),
			Value:  hexValue(value),
		})
		return nil
	})

	if err := tlv.DecodeCompact(bytes.NewReader(data), handler); err != nil {
		return nil, err
	}
	return nodes, nil
}

// nodeValue returns the raw value of a leaf node, never nil.
func nodeValue(n *Node) ([]byte, error) {
	value, err := hex.DecodeString(n.Value)
	if err != nil {
		return nil, fmt.Errorf("tag %s: value: %w", n.Tag, err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

// encodeBerTree writes nodes as BER-TLV. Lengths are recomputed from the
// values, so edited trees need not keep Length in sync. Indefinite nodes
// are written with the 0x80 length marker followed by their value.
func encodeBerTree(w io.Writer, nodes []*Node, minLongFormBytes int) error {
	for _, n := range nodes {
		if n.Large {
			return fmt.Errorf("tag %s: %w", n.Tag, errLargeItem)
		}
		tag, err := tlv.ParseTag(n.Tag)
		if err != nil {
			return err
		}

		var value []byte
		if len(n.Children) > 0 {
			var buf bytes.Buffer
			if err := encodeBerTree(&buf, n.Children, minLongFormBytes); err != nil {
				return fmt.Errorf("tag %s: %w", n.Tag, err)
			}
			value = buf.Bytes()
		} else if value, err = nodeValue(n); err != nil {
			return err
		}

		if n.Indefinite {
			err = tlv.WriteBerRaw(w, tag, []byte{0x80}, value)
		} else {
			err = tlv.WriteBer(w, tag, value, minLongFormBytes)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// encodeCompactTree writes nodes as Compact-TLV. Unlike tlv.WriteCompact,
// tags and values that do not fit a header are reported instead of
// dropped.
func encodeCompactTree(w io.Writer, nodes []*Node) error {
	for _, n := range nodes {
		tag, err := strconv.ParseUint(n.Tag, 16, 8)
		if err != nil || tag > tlv.MaxCompactNibble {
			return fmt.Errorf("%w: compact tag %q must be a hex digit", tlv.ErrInvalidTag, n.Tag)
		}
		value, err := nodeValue(n)
		if err != nil {
			return err
		}
		if len(value) > tlv.MaxCompactNibble {
			return fmt.Errorf("tag %s: value of %d bytes does not fit a compact item", n.Tag, len(value))
		}
		if err := tlv.WriteCompact(w, byte(tag), value); err != nil {
			return err
		}
	}
	return nil
}
