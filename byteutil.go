package shelf

import (
	"encoding/binary"
	"math"
)

// ensureCapacity grows buf geometrically so that a run of small appends
// costs amortized O(1) each.
func ensureCapacity(buf []byte, minCap int) []byte {
	c := cap(buf)
	if minCap > c {
		if c < 16 {
			c = 16
		}
		for minCap > c {
			c <<= 1
		}
		old := buf
		buf = make([]byte, len(old), c)
		copy(buf, old)
	}
	return buf
}

func grow(buf []byte, n int) (int, []byte) {
	off := len(buf)
	newLen := off + n
	buf = ensureCapacity(buf, newLen)
	return off, buf[:newLen]
}

func appendRaw(buf []byte, chunk []byte) []byte {
	n := len(chunk)
	off, buf := grow(buf, n)
	copy(buf[off:], chunk)
	return buf
}

// shrinkToFit returns buf in an allocation no more than twice its length.
func shrinkToFit(buf []byte) []byte {
	if cap(buf) <= 2*len(buf) {
		return buf
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	return out
}

type bytesBuilder struct {
	Buf []byte
}

func (bb *bytesBuilder) Grow(n int) (off int) {
	off, bb.Buf = grow(bb.Buf, n)
	return
}

func (bb *bytesBuilder) Write(b []byte) (int, error) {
	bb.Buf = appendRaw(bb.Buf, b)
	return len(b), nil
}

func (bb *bytesBuilder) AppendByte(v byte) {
	off := bb.Grow(1)
	bb.Buf[off] = v
}

func (bb *bytesBuilder) AppendNativeUint64(v uint64) {
	off := bb.Grow(8)
	binary.NativeEndian.PutUint64(bb.Buf[off:], v)
}

func (bb *bytesBuilder) AppendNativeFloat64(v float64) {
	bb.AppendNativeUint64(math.Float64bits(v))
}

// byteDecoder reads from a bounded slice; every read checks the remaining
// length first.
type byteDecoder struct {
	Orig []byte
	Buf  []byte
}

func makeByteDecoder(buf []byte) byteDecoder {
	return byteDecoder{buf, buf}
}

func (d *byteDecoder) Off() int {
	return len(d.Orig) - len(d.Buf)
}

func (d *byteDecoder) errf(format string, args ...any) error {
	return dataErrf(d.Orig, d.Off(), nil, format, args...)
}

func (d *byteDecoder) Peek() (byte, error) {
	if len(d.Buf) == 0 {
		return 0, d.errf("unexpected end of data")
	}
	return d.Buf[0], nil
}

func (d *byteDecoder) Byte() (byte, error) {
	v, err := d.Peek()
	if err != nil {
		return 0, err
	}
	d.Buf = d.Buf[1:]
	return v, nil
}

func (d *byteDecoder) NativeUint64() (uint64, error) {
	if len(d.Buf) < 8 {
		return 0, d.errf("not enough data: %d bytes remaining, 8 wanted", len(d.Buf))
	}
	v := binary.NativeEndian.Uint64(d.Buf)
	d.Buf = d.Buf[8:]
	return v, nil
}

func (d *byteDecoder) NativeFloat64() (float64, error) {
	v, err := d.NativeUint64()
	return math.Float64frombits(v), err
}

func (d *byteDecoder) Raw(n uint64) ([]byte, error) {
	if uint64(len(d.Buf)) < n {
		return nil, d.errf("not enough data: %d bytes remaining, %d wanted", len(d.Buf), n)
	}
	v := d.Buf[:n]
	d.Buf = d.Buf[n:]
	return v, nil
}
