package tlv_test

import (
	"bytes"
	"errors"
	"io"
	"math/big"
	"testing"
	"testing/iotest"

	"github.com/zoobzio/tlv"
	tlvtest "github.com/zoobzio/tlv/testing"
)

func TestDecodeBer_SingleItem(t *testing.T) {
	rec := &tlvtest.BerRecorder{}
	if err := tlv.DecodeBer(bytes.NewReader([]byte{0x01, 0x01, 0xFF}), rec); err != nil {
		t.Fatalf("DecodeBer() error: %v", err)
	}

	if len(rec.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(rec.Items))
	}
	if !rec.Items[0].Tag.Equal(tlv.Tag{0x01}) {
		t.Errorf("tag = %s, want 01", rec.Items[0].Tag)
	}
	if !bytes.Equal(rec.Items[0].Value, []byte{0xFF}) {
		t.Errorf("value = % X, want FF", rec.Items[0].Value)
	}
}

func TestDecodeBer_EndOfContents(t *testing.T) {
	rec := &tlvtest.BerRecorder{}
	in := []byte{0x00, 0x00, 0x01, 0x01, 0xFF}
	if err := tlv.DecodeBer(bytes.NewReader(in), rec); err != nil {
		t.Fatalf("DecodeBer() error: %v", err)
	}
	if len(rec.Items) != 0 {
		t.Errorf("got %d items, want 0", len(rec.Items))
	}
}

func TestDecodeBer_NullTagWithValue(t *testing.T) {
	rec := &tlvtest.BerRecorder{}
	if err := tlv.DecodeBer(bytes.NewReader([]byte{0x00, 0x01, 0xAA}), rec); err != nil {
		t.Fatalf("DecodeBer() error: %v", err)
	}
	if len(rec.Items) != 1 {
		t.Errorf("got %d items, want 1", len(rec.Items))
	}
}

func TestDecodeBer_UnknownLength(t *testing.T) {
	rec := &tlvtest.BerRecorder{}
	if err := tlv.DecodeBer(bytes.NewReader([]byte{0x01, 0x80}), rec); err != nil {
		t.Fatalf("DecodeBer() error: %v", err)
	}
	if len(rec.UnknownLength) != 1 {
		t.Errorf("unknown-length callbacks = %d, want 1", len(rec.UnknownLength))
	}
	if len(rec.Items) != 0 {
		t.Errorf("item callbacks = %d, want 0", len(rec.Items))
	}
}

func TestDecodeBer_UnknownLengthEndMarker(t *testing.T) {
	// 00 80 is an unknown-length item, not the end marker.
	rec := &tlvtest.BerRecorder{}
	if err := tlv.DecodeBer(bytes.NewReader([]byte{0x00, 0x80, 0x01, 0x01, 0x02}), rec); err != nil {
		t.Fatalf("DecodeBer() error: %v", err)
	}
	if len(rec.UnknownLength) != 1 {
		t.Errorf("unknown-length callbacks = %d, want 1", len(rec.UnknownLength))
	}
	if len(rec.Items) != 1 {
		t.Errorf("item callbacks = %d, want 1", len(rec.Items))
	}
}

func TestDecodeBer_LargeItem(t *testing.T) {
	// Length 0x80000000 needs 32 bits.
	in := []byte{0x04, 0x84, 0x80, 0x00, 0x00, 0x00, 0x01, 0x01, 0x07}
	rec := &tlvtest.BerRecorder{}
	if err := tlv.DecodeBer(bytes.NewReader(in), rec); err != nil {
		t.Fatalf("DecodeBer() error: %v", err)
	}

	if len(rec.Large) != 1 {
		t.Fatalf("large callbacks = %d, want 1", len(rec.Large))
	}
	if rec.Large[0].Length.Cmp(big.NewInt(0x80000000)) != 0 {
		t.Errorf("length = %s", rec.Large[0].Length)
	}
	// The handler consumed nothing, so decoding resumes at the next bytes.
	if len(rec.Items) != 1 || rec.Items[0].Value[0] != 0x07 {
		t.Errorf("items = %+v", rec.Items)
	}
}

func TestDecodeBer_LargestBufferedLength(t *testing.T) {
	// 0x7FFFFFFF fits in 31 bits and is read as a normal value; the
	// truncated input is therefore corrupted rather than a large item.
	in := []byte{0x04, 0x84, 0x7F, 0xFF, 0xFF, 0xFF, 0x01}
	rec := &tlvtest.BerRecorder{}
	err := tlv.DecodeBer(bytes.NewReader(in), rec)
	if !errors.Is(err, tlv.ErrCorruptedStream) {
		t.Fatalf("DecodeBer() error = %v, want ErrCorruptedStream", err)
	}
	if len(rec.Large) != 0 {
		t.Error("0x7FFFFFFF must not be a large item")
	}
}

func TestDecodeBer_Fragmented(t *testing.T) {
	value := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	in := append([]byte{0x5F, 0x20, 0x0A}, value...)

	rec := &tlvtest.BerRecorder{}
	if err := tlv.DecodeBer(tlvtest.ChunkReader(in, 1), rec); err != nil {
		t.Fatalf("DecodeBer() error: %v", err)
	}
	if len(rec.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(rec.Items))
	}
	if !bytes.Equal(rec.Items[0].Value, value) {
		t.Errorf("value = % X, want % X", rec.Items[0].Value, value)
	}
}

func TestDecodeBer_FragmentedLongFormLength(t *testing.T) {
	value := bytes.Repeat([]byte{0x3C}, 300)
	var buf bytes.Buffer
	if err := tlv.WriteBer(&buf, tlv.Tag{0x5F, 0x20}, value, 3); err != nil {
		t.Fatalf("WriteBer() error: %v", err)
	}
	in := buf.Bytes()
	if !bytes.Equal(in[:6], []byte{0x5F, 0x20, 0x83, 0x00, 0x01, 0x2C}) {
		t.Fatalf("header = % X, want 5F 20 83 00 01 2C", in[:6])
	}

	for _, chunk := range []int{1, 2, 5} {
		rec := &tlvtest.BerRecorder{}
		if err := tlv.DecodeBer(tlvtest.ChunkReader(in, chunk), rec); err != nil {
			t.Fatalf("DecodeBer(chunk=%d) error: %v", chunk, err)
		}
		if len(rec.Items) != 1 {
			t.Fatalf("chunk=%d: got %d items, want 1", chunk, len(rec.Items))
		}
		if !bytes.Equal(rec.Items[0].Value, value) {
			t.Errorf("chunk=%d: value has %d bytes, want 300", chunk, len(rec.Items[0].Value))
		}
	}
}

func TestDecodeBer_FragmentedTruncatedLength(t *testing.T) {
	in := []byte{0x01, 0x82, 0x01}
	err := tlv.DecodeBer(iotest.OneByteReader(bytes.NewReader(in)), &tlvtest.BerRecorder{})
	if !errors.Is(err, tlv.ErrCorruptedStream) {
		t.Fatalf("DecodeBer() error = %v, want ErrCorruptedStream", err)
	}
	var decodeErr *tlv.DecodeError
	if !errors.As(err, &decodeErr) || decodeErr.Stage != tlv.StageLength {
		t.Errorf("error = %#v, want length stage", err)
	}
}

func TestDecodeBer_LongValueIncremental(t *testing.T) {
	value := bytes.Repeat([]byte{0xAB}, 100_000)
	length, err := tlv.BerLength(len(value), 0)
	if err != nil {
		t.Fatalf("BerLength() error: %v", err)
	}
	in := append(append([]byte{0x04}, length...), value...)

	rec := &tlvtest.BerRecorder{}
	if err := tlv.DecodeBer(tlvtest.ChunkReader(in, 4096), rec); err != nil {
		t.Fatalf("DecodeBer() error: %v", err)
	}
	if len(rec.Items) != 1 || !bytes.Equal(rec.Items[0].Value, value) {
		t.Error("long value not assembled")
	}
}

func TestDecodeBer_Corrupted(t *testing.T) {
	tests := []struct {
		name  string
		in    []byte
		stage tlv.Stage
	}{
		{"truncated multi-byte tag", []byte{0x1F, 0x81}, tlv.StageTag},
		{"missing length", []byte{0x01}, tlv.StageLength},
		{"truncated long-form length", []byte{0x01, 0x82, 0x01}, tlv.StageLength},
		{"truncated value", []byte{0x01, 0x03, 0xAA}, tlv.StageValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tlv.DecodeBer(bytes.NewReader(tt.in), &tlvtest.BerRecorder{})
			if !errors.Is(err, tlv.ErrCorruptedStream) {
				t.Fatalf("error = %v, want ErrCorruptedStream", err)
			}
			var decodeErr *tlv.DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("error should be *DecodeError, got %T", err)
			}
			if decodeErr.Stage != tt.stage {
				t.Errorf("Stage = %q, want %q", decodeErr.Stage, tt.stage)
			}
		})
	}
}

func TestDecodeBer_InvalidObject(t *testing.T) {
	err := tlv.DecodeBer(bytes.NewReader([]byte{0x01, 0xFF}), &tlvtest.BerRecorder{})
	if !errors.Is(err, tlv.ErrInvalidObject) {
		t.Fatalf("error = %v, want ErrInvalidObject", err)
	}

	var decodeErr *tlv.DecodeError
	if errors.As(err, &decodeErr) && decodeErr.Offset != 1 {
		t.Errorf("Offset = %d, want 1", decodeErr.Offset)
	}
}

func TestDecodeBer_MaxLengthBytes(t *testing.T) {
	// 0xFE announces 126 length bytes, which is allowed.
	in := append([]byte{0x01, 0xFE}, make([]byte, 125)...)
	in = append(in, 0x01, 0xEE)

	rec := &tlvtest.BerRecorder{}
	if err := tlv.DecodeBer(bytes.NewReader(in), rec); err != nil {
		t.Fatalf("DecodeBer() error: %v", err)
	}
	if len(rec.Items) != 1 || !bytes.Equal(rec.Items[0].Value, []byte{0xEE}) {
		t.Errorf("items = %+v", rec.Items)
	}
}

func TestDecodeBer_ReaderError(t *testing.T) {
	boom := errors.New("card removed")
	err := tlv.DecodeBer(tlvtest.FailingReader([]byte{0x01, 0x02, 0xAA}, boom), &tlvtest.BerRecorder{})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
	if errors.Is(err, tlv.ErrCorruptedStream) {
		t.Error("reader errors must not be reported as corruption")
	}
}

func TestDecodeBer_HandlerErrorStops(t *testing.T) {
	stop := errors.New("stop")
	rec := &tlvtest.BerRecorder{Err: stop}
	in := []byte{0x01, 0x01, 0xAA, 0x02, 0x01, 0xBB}

	if err := tlv.DecodeBer(bytes.NewReader(in), rec); err != stop {
		t.Fatalf("error = %v, want %v", err, stop)
	}
	if len(rec.Items) != 1 {
		t.Errorf("got %d items, want 1", len(rec.Items))
	}
}

func TestDecodeBer_EmptyInput(t *testing.T) {
	rec := &tlvtest.BerRecorder{}
	if err := tlv.DecodeBer(bytes.NewReader(nil), rec); err != nil {
		t.Fatalf("DecodeBer() error: %v", err)
	}
	if len(rec.Items) != 0 {
		t.Error("empty input should yield no items")
	}
}

func TestDecodeBer_InvalidArgument(t *testing.T) {
	if err := tlv.DecodeBer(nil, &tlvtest.BerRecorder{}); !errors.Is(err, tlv.ErrInvalidArgument) {
		t.Errorf("nil reader error = %v", err)
	}
	if err := tlv.DecodeBer(bytes.NewReader(nil), nil); !errors.Is(err, tlv.ErrInvalidArgument) {
		t.Errorf("nil handler error = %v", err)
	}
}

func TestReadBerLength(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want int64
	}{
		{"short", []byte{0x7F}, 127},
		{"one byte long", []byte{0x81, 0x80}, 128},
		{"two byte long", []byte{0x82, 0x01, 0x03}, 259},
		{"padded", []byte{0x83, 0x00, 0x00, 0x05}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tlv.ReadBerLength(bytes.NewReader(tt.in))
			if err != nil {
				t.Fatalf("ReadBerLength() error: %v", err)
			}
			if got.Int64() != tt.want {
				t.Errorf("ReadBerLength() = %s, want %d", got, tt.want)
			}
		})
	}

	got, err := tlv.ReadBerLength(bytes.NewReader([]byte{0x80, 0x01}))
	if err != nil || got != nil {
		t.Errorf("unknown length = %v, %v; want nil, nil", got, err)
	}
}

func TestReadBerTag_EOF(t *testing.T) {
	if _, err := tlv.ReadBerTag(bytes.NewReader(nil)); err != io.EOF {
		t.Errorf("ReadBerTag() error = %v, want io.EOF", err)
	}
}

func TestBer_RoundTripAllShortLengths(t *testing.T) {
	tag := tlv.Tag{0x9F, 0x81, 0x01}
	for n := 0; n <= 126; n++ {
		value := make([]byte, n)
		for i := range value {
			value[i] = byte(n + i)
		}

		var buf bytes.Buffer
		if err := tlv.WriteBer(&buf, tag, value, 0); err != nil {
			t.Fatalf("WriteBer(len=%d) error: %v", n, err)
		}
		rec := &tlvtest.BerRecorder{}
		if err := tlv.DecodeBer(&buf, rec); err != nil {
			t.Fatalf("DecodeBer(len=%d) error: %v", n, err)
		}
		if len(rec.Items) != 1 {
			t.Fatalf("len=%d: got %d items, want 1", n, len(rec.Items))
		}
		if !rec.Items[0].Tag.Equal(tag) || !bytes.Equal(rec.Items[0].Value, value) {
			t.Errorf("len=%d: got %s % X", n, rec.Items[0].Tag, rec.Items[0].Value)
		}
	}
}
