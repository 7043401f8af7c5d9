package testing

import (
	"bytes"
	"errors"
	"io"
	"math/big"
	"testing"

	"github.com/zoobzio/tlv"
)

func TestHex(t *testing.T) {
	got := Hex(t, "5F 20\n0a")
	if !bytes.Equal(got, []byte{0x5F, 0x20, 0x0A}) {
		t.Errorf("Hex() = % X", got)
	}
}

func TestChunkReader(t *testing.T) {
	r := ChunkReader([]byte{1, 2, 3, 4, 5}, 2)
	buf := make([]byte, 8)

	n, err := r.Read(buf)
	if err != nil || n != 2 {
		t.Fatalf("Read() = %d, %v; want 2, nil", n, err)
	}

	all, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if !bytes.Equal(all, []byte{3, 4, 5}) {
		t.Errorf("remaining = %v", all)
	}
}

func TestFailingReader(t *testing.T) {
	boom := errors.New("boom")
	data, err := io.ReadAll(FailingReader([]byte{1, 2}, boom))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if !bytes.Equal(data, []byte{1, 2}) {
		t.Errorf("data = %v", data)
	}
}

func TestBerRecorder_Drain(t *testing.T) {
	rec := &BerRecorder{Drain: true}
	src := bytes.NewReader([]byte{1, 2, 3})

	if err := rec.LargeItemDetected(tlv.Tag{0x04}, big.NewInt(2), src); err != nil {
		t.Fatalf("LargeItemDetected() error: %v", err)
	}
	if src.Len() != 1 {
		t.Errorf("remaining = %d, want 1", src.Len())
	}

	if err := rec.UnknownLengthItemDetected(tlv.Tag{0x30}, src); err != nil {
		t.Fatalf("UnknownLengthItemDetected() error: %v", err)
	}
	if src.Len() != 0 {
		t.Errorf("remaining = %d, want 0", src.Len())
	}
	if len(rec.Large) != 1 || len(rec.UnknownLength) != 1 {
		t.Errorf("recorded %d large, %d unknown", len(rec.Large), len(rec.UnknownLength))
	}
}

func TestSampleCard(t *testing.T) {
	card := SampleCard()
	if card.PIN == nil || card.Issuer == nil {
		t.Fatal("SampleCard() should populate optional fields")
	}
	if card.Internal != "" {
		t.Error("SampleCard() should leave untagged fields empty")
	}
}
