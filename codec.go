package shelf

import (
	"fmt"
	"slices"
)

// Wire tags. Every encoded unit is a tag, a payload, and a trailing
// tagEnd; tables hold key and value units and close with tagEndTable
// before their own tagEnd.
//
// Numbers and string lengths are written in the machine's native byte order
// and width, so encoded data only moves between machines with the same
// float64 representation and endianness.
const (
	tagNumber   byte = 'n'
	tagString   byte = 's'
	tagTrue     byte = 'B'
	tagFalse    byte = 'b'
	tagTable    byte = 't'
	tagEndTable byte = 'T'
	tagEnd      byte = '!'
)

// maxDecodeDepth bounds table nesting on decode so hostile input cannot
// exhaust the stack.
const maxDecodeDepth = 10000

// Marshal encodes v. It fails with an *EncodeError wrapping
// ErrUnsupportedType if v is Nil or contains an Opaque value.
func Marshal(v Value) ([]byte, error) {
	buf, err := AppendMarshal(nil, v)
	if err != nil {
		return nil, err
	}
	return shrinkToFit(buf), nil
}

// AppendMarshal appends the encoding of v to dst. On error it returns dst
// with its original length, so nothing of the failed value is left behind.
func AppendMarshal(dst []byte, v Value) ([]byte, error) {
	start := len(dst)
	enc := encoder{bb: bytesBuilder{dst}}
	if err := enc.unit(v); err != nil {
		return dst[:start], err
	}
	return enc.bb.Buf, nil
}

type encoder struct {
	bb    bytesBuilder
	stack []*Table // tables being encoded, outermost first
}

func (enc *encoder) unit(v Value) error {
	bb := &enc.bb
	switch v.kind {
	case KindBool:
		if v.b {
			bb.AppendByte(tagTrue)
		} else {
			bb.AppendByte(tagFalse)
		}
	case KindNumber:
		bb.AppendByte(tagNumber)
		bb.AppendNativeFloat64(v.n)
	case KindString:
		bb.AppendByte(tagString)
		bb.AppendNativeUint64(uint64(len(v.s)))
		bb.Write(v.s)
	case KindTable:
		if slices.Contains(enc.stack, v.t) {
			return &EncodeError{Kind: v.kind, Err: fmt.Errorf("%w: table contains itself", ErrUnsupportedType)}
		}
		enc.stack = append(enc.stack, v.t)
		bb.AppendByte(tagTable)
		for _, p := range v.t.pairs {
			if err := enc.unit(p.Key); err != nil {
				return prependPath(err, "[<key>]")
			}
			if err := enc.unit(p.Value); err != nil {
				return prependPath(err, "["+p.Key.String()+"]")
			}
		}
		bb.AppendByte(tagEndTable)
		enc.stack = enc.stack[:len(enc.stack)-1]
	default:
		return &EncodeError{Kind: v.kind, Err: ErrUnsupportedType}
	}
	bb.AppendByte(tagEnd)
	return nil
}

func prependPath(err error, step string) error {
	if ee, ok := err.(*EncodeError); ok {
		ee.Path = step + ee.Path
	}
	return err
}

// Unmarshal decodes a single value that must span all of data.
func Unmarshal(data []byte) (Value, error) {
	v, n, err := UnmarshalPrefix(data)
	if err != nil {
		return Nil, err
	}
	if n != len(data) {
		return Nil, dataErrf(data, n, nil, "%d trailing bytes", len(data)-n)
	}
	return v, nil
}

// UnmarshalPrefix decodes the value at the start of data and returns it with
// the number of bytes consumed. The result never aliases data.
func UnmarshalPrefix(data []byte) (Value, int, error) {
	d := makeByteDecoder(data)
	v, err := decodeUnit(&d, 0)
	if err != nil {
		return Nil, 0, err
	}
	return v, d.Off(), nil
}

func decodeUnit(d *byteDecoder, depth int) (Value, error) {
	start := d.Off()
	tag, err := d.Byte()
	if err != nil {
		return Nil, err
	}

	var v Value
	switch tag {
	case tagFalse:
		v = Bool(false)
	case tagTrue:
		v = Bool(true)
	case tagNumber:
		n, err := d.NativeFloat64()
		if err != nil {
			return Nil, err
		}
		v = Number(n)
	case tagString:
		n, err := d.NativeUint64()
		if err != nil {
			return Nil, err
		}
		raw, err := d.Raw(n)
		if err != nil {
			return Nil, err
		}
		v = String(slices.Clone(raw))
	case tagTable:
		if depth >= maxDecodeDepth {
			return Nil, dataErrf(d.Orig, start, nil, "tables nested deeper than %d", maxDecodeDepth)
		}
		t, err := decodeTable(d, depth+1)
		if err != nil {
			return Nil, err
		}
		v = TableValue(t)
	default:
		return Nil, dataErrf(d.Orig, start, nil, "unknown tag %q", tag)
	}

	end, err := d.Byte()
	if err != nil {
		return Nil, err
	}
	if end != tagEnd {
		return Nil, dataErrf(d.Orig, d.Off()-1, nil, "expected end marker after %s, got %q", v.kind, end)
	}
	return v, nil
}

func decodeTable(d *byteDecoder, depth int) (*Table, error) {
	t := NewTable()
	for {
		c, err := d.Peek()
		if err != nil {
			return nil, err
		}
		if c == tagEndTable {
			d.Buf = d.Buf[1:]
			return t, nil
		}
		key, err := decodeUnit(d, depth)
		if err != nil {
			return nil, err
		}
		value, err := decodeUnit(d, depth)
		if err != nil {
			return nil, err
		}
		t.Set(key, value)
	}
}
