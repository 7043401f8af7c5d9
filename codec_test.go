package tlv_test

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/zoobzio/tlv"
	tlvtest "github.com/zoobzio/tlv/testing"
)

func TestCodec_ContentType(t *testing.T) {
	if got := tlv.BER().ContentType(); got != "application/vnd.tlv.ber" {
		t.Errorf("BER().ContentType() = %q", got)
	}
	if got := tlv.Compact().ContentType(); got != "application/vnd.tlv.compact" {
		t.Errorf("Compact().ContentType() = %q", got)
	}
}

func TestCodec_BERRoundTrip(t *testing.T) {
	var c tlv.Codec = tlv.BER()

	card := tlvtest.SampleCard()
	data, err := c.Marshal(&card)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var got tlvtest.Card
	if err := c.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if !reflect.DeepEqual(got, card) {
		t.Errorf("round trip mismatch: got %+v", got)
	}
}

func TestCodec_CompactRoundTrip(t *testing.T) {
	c := tlv.Compact()

	data, err := c.Marshal(&tlvtest.Status{Code: 9})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	// Label is empty, which compact cannot carry, so it is omitted.
	if !bytes.Equal(data, []byte{0x11, 0x09}) {
		t.Errorf("Marshal() = % X", data)
	}

	var got tlvtest.Status
	if err := c.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if got.Code != 9 || got.Retries != nil {
		t.Errorf("Unmarshal() = %+v", got)
	}
}

func TestCodec_InvalidTarget(t *testing.T) {
	c := tlv.BER()

	if _, err := c.Marshal(tlvtest.Card{}); !errors.Is(err, tlv.ErrMarshal) || !errors.Is(err, tlv.ErrInvalidArgument) {
		t.Errorf("Marshal(value) error = %v", err)
	}
	var n int
	if err := c.Unmarshal(nil, &n); !errors.Is(err, tlv.ErrUnmarshal) || !errors.Is(err, tlv.ErrInvalidArgument) {
		t.Errorf("Unmarshal(*int) error = %v", err)
	}
	if err := c.Unmarshal([]byte{0x5A, 0x05}, &tlvtest.Card{}); !errors.Is(err, tlv.ErrCorruptedStream) {
		t.Errorf("Unmarshal(truncated) error = %v", err)
	}
}
