package tlv

import (
	"bytes"
	"errors"
	"io"
)

// directReadLimit is the largest value buffer allocated up front. Longer
// values grow as data arrives so a forged length cannot force a huge
// allocation before the bytes exist.
const directReadLimit = 64 << 10

// offsetReader counts the bytes consumed from r.
type offsetReader struct {
	r      io.Reader
	offset int64
}

func (o *offsetReader) Read(p []byte) (int, error) {
	n, err := o.r.Read(p)
	o.offset += int64(n)
	return n, err
}

// trackOffset wraps r so decode errors can report a stream position.
// Already tracked readers are returned unchanged.
func trackOffset(r io.Reader) *offsetReader {
	if o, ok := r.(*offsetReader); ok {
		return o
	}
	return &offsetReader{r: r}
}

// offsetOf returns the current position of r, or -1 when r is not tracked.
func offsetOf(r io.Reader) int64 {
	if o, ok := r.(*offsetReader); ok {
		return o.offset
	}
	return -1
}

// readByte reads exactly one byte. It returns io.EOF only when r had no
// data at all.
func readByte(r io.Reader) (byte, error) {
	if br, ok := r.(io.ByteReader); ok {
		return br.ReadByte()
	}
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// readFull reads exactly n bytes from r, looping over short reads until
// the count is met or the source reports end of data.
func readFull(r io.Reader, n int) ([]byte, error) {
	if n <= directReadLimit {
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		return buf, nil
	}

	var buf bytes.Buffer
	buf.Grow(directReadLimit)
	if _, err := io.CopyN(&buf, r, int64(n)); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf.Bytes(), nil
}

// streamError classifies a read failure inside an item. End of data is a
// corrupted stream; any other reader error is passed through.
func streamError(start int64, stage Stage, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return newDecodeError(start, stage, ErrCorruptedStream, err)
	}
	return newDecodeError(start, stage, err, nil)
}
