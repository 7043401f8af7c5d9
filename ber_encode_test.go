package tlv

import (
	"bytes"
	"errors"
	"math/big"
	"testing"
)

func TestBerLength(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		minimum int
		want    []byte
	}{
		{"zero", 0, 0, []byte{0x00}},
		{"short form max", 126, 0, []byte{0x7E}},
		{"127 is short", 127, 0, []byte{0x7F}},
		{"first long form", 128, 0, []byte{0x81, 0x80}},
		{"two bytes", 259, 0, []byte{0x82, 0x01, 0x03}},
		{"padded", 128, 2, []byte{0x82, 0x00, 0x80}},
		{"minimum below natural", 259, 1, []byte{0x82, 0x01, 0x03}},
		{"minimum ignored for short form", 5, 4, []byte{0x05}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BerLength(tt.size, tt.minimum)
			if err != nil {
				t.Fatalf("BerLength() error: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("BerLength(%d, %d) = % X, want % X", tt.size, tt.minimum, got, tt.want)
			}
		})
	}
}

func TestEncodeBerLength_Cap(t *testing.T) {
	got, err := EncodeBerLength(big.NewInt(300), 500)
	if err != nil {
		t.Fatalf("EncodeBerLength() error: %v", err)
	}
	if got[0] != 0x80|MaxLengthFieldBytes || len(got) != 1+MaxLengthFieldBytes {
		t.Errorf("descriptor = %02X, len = %d", got[0], len(got))
	}
	if got[len(got)-2] != 0x01 || got[len(got)-1] != 0x2C {
		t.Errorf("tail = % X", got[len(got)-2:])
	}
}

func TestEncodeBerLength_RoundTrip(t *testing.T) {
	sizes := []*big.Int{
		big.NewInt(0),
		big.NewInt(127),
		big.NewInt(128),
		big.NewInt(65535),
		new(big.Int).Lsh(big.NewInt(1), 40),
	}
	for _, size := range sizes {
		field, err := EncodeBerLength(size, 0)
		if err != nil {
			t.Fatalf("EncodeBerLength(%s) error: %v", size, err)
		}
		got, err := ReadBerLength(bytes.NewReader(field))
		if err != nil {
			t.Fatalf("ReadBerLength(% X) error: %v", field, err)
		}
		if got.Cmp(size) != 0 {
			t.Errorf("round trip %s -> % X -> %s", size, field, got)
		}
	}
}

func TestEncodeBerLength_Invalid(t *testing.T) {
	if _, err := EncodeBerLength(big.NewInt(-1), 0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("negative size error = %v", err)
	}
	tooWide := new(big.Int).Lsh(big.NewInt(1), MaxLengthFieldBytes*8)
	if _, err := EncodeBerLength(tooWide, 0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("oversized length error = %v", err)
	}
	if _, err := BerLength(-5, 0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("negative int size error = %v", err)
	}
}

func TestWriteBer(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteBer(&buf, Tag{0x5F, 0x20}, []byte("AB"), 0); err != nil {
		t.Fatalf("WriteBer() error: %v", err)
	}
	want := []byte{0x5F, 0x20, 0x02, 'A', 'B'}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("WriteBer() wrote % X, want % X", buf.Bytes(), want)
	}
}

func TestWriteBer_NilValueWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteBer(&buf, Tag{0x01}, nil, 0); err != nil {
		t.Fatalf("WriteBer() error: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("WriteBer(nil) wrote % X", buf.Bytes())
	}
}

func TestWriteBer_EmptyValue(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteBer(&buf, Tag{0x01}, []byte{}, 0); err != nil {
		t.Fatalf("WriteBer() error: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), []byte{0x01, 0x00}) {
		t.Errorf("WriteBer(empty) wrote % X", buf.Bytes())
	}
}

func TestWriteBer_EmptyTag(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteBer(&buf, nil, []byte{1}, 0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("WriteBer() error = %v, want ErrInvalidArgument", err)
	}
	if buf.Len() != 0 {
		t.Error("nothing should be written on error")
	}
}

func TestWriteBer_PaddedLength(t *testing.T) {
	value := bytes.Repeat([]byte{0x11}, 200)
	var buf bytes.Buffer
	if err := WriteBer(&buf, Tag{0x04}, value, 3); err != nil {
		t.Fatalf("WriteBer() error: %v", err)
	}
	if !bytes.Equal(buf.Bytes()[:5], []byte{0x04, 0x83, 0x00, 0x00, 0xC8}) {
		t.Errorf("header = % X", buf.Bytes()[:5])
	}
	if buf.Len() != 5+len(value) {
		t.Errorf("wrote %d bytes", buf.Len())
	}
}

func TestWriteBerRaw(t *testing.T) {
	var buf bytes.Buffer
	// The raw writer trusts the caller, even for an unknown-length field.
	if err := WriteBerRaw(&buf, Tag{0x30}, []byte{0x80}, []byte{0x01, 0x00, 0x00, 0x00}); err != nil {
		t.Fatalf("WriteBerRaw() error: %v", err)
	}
	want := []byte{0x30, 0x80, 0x01, 0x00, 0x00, 0x00}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("WriteBerRaw() wrote % X, want % X", buf.Bytes(), want)
	}
}
