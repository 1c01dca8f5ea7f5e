package shelf

import (
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

var (
	_ msgpack.CustomEncoder = Value{}
	_ msgpack.CustomDecoder = (*Value)(nil)
)

// exportMagic opens every export stream.
const exportMagic = "shelf-export/1"

// EncodeMsgpack implements msgpack.CustomEncoder. Strings become bin, tables
// become maps. Opaque values cannot be encoded.
func (v Value) EncodeMsgpack(enc *msgpack.Encoder) error {
	switch v.kind {
	case KindNil:
		return enc.EncodeNil()
	case KindBool:
		return enc.EncodeBool(v.b)
	case KindNumber:
		return enc.EncodeFloat64(v.n)
	case KindString:
		return enc.EncodeBytes(v.s)
	case KindTable:
		if err := enc.EncodeMapLen(len(v.t.pairs)); err != nil {
			return err
		}
		for _, p := range v.t.pairs {
			if err := p.Key.EncodeMsgpack(enc); err != nil {
				return err
			}
			if err := p.Value.EncodeMsgpack(enc); err != nil {
				return err
			}
		}
		return nil
	default:
		return &EncodeError{Kind: v.kind, Err: ErrUnsupportedType}
	}
}

// DecodeMsgpack implements msgpack.CustomDecoder. Besides what EncodeMsgpack
// produces, it accepts msgpack strings, integers and arrays (as tables keyed
// 1, 2, 3...), so hand-written msgpack can be imported.
func (v *Value) DecodeMsgpack(dec *msgpack.Decoder) error {
	return v.decodeMsgpack(dec, 0)
}

func (v *Value) decodeMsgpack(dec *msgpack.Decoder, depth int) error {
	c, err := dec.PeekCode()
	if err != nil {
		return err
	}
	switch {
	case c == msgpcode.Nil:
		*v = Nil
		return dec.DecodeNil()
	case c == msgpcode.False || c == msgpcode.True:
		b, err := dec.DecodeBool()
		*v = Bool(b)
		return err
	case msgpcode.IsBin(c):
		b, err := dec.DecodeBytes()
		*v = String(b)
		return err
	case msgpcode.IsString(c):
		s, err := dec.DecodeString()
		*v = Str(s)
		return err
	case msgpcode.IsFixedMap(c) || c == msgpcode.Map16 || c == msgpcode.Map32:
		if depth >= maxDecodeDepth {
			return fmt.Errorf("%w: msgpack tables nested deeper than %d", ErrCorrupted, maxDecodeDepth)
		}
		n, err := dec.DecodeMapLen()
		if err != nil {
			return err
		}
		t := NewTable()
		for i := 0; i < n; i++ {
			var key, value Value
			if err := key.decodeMsgpack(dec, depth+1); err != nil {
				return err
			}
			if err := value.decodeMsgpack(dec, depth+1); err != nil {
				return err
			}
			t.Set(key, value)
		}
		*v = TableValue(t)
		return nil
	case msgpcode.IsFixedArray(c) || c == msgpcode.Array16 || c == msgpcode.Array32:
		if depth >= maxDecodeDepth {
			return fmt.Errorf("%w: msgpack tables nested deeper than %d", ErrCorrupted, maxDecodeDepth)
		}
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return err
		}
		t := NewTable()
		for i := 0; i < n; i++ {
			var value Value
			if err := value.decodeMsgpack(dec, depth+1); err != nil {
				return err
			}
			t.Set(Number(float64(i+1)), value)
		}
		*v = TableValue(t)
		return nil
	default:
		f, err := dec.DecodeFloat64()
		if err != nil {
			return err
		}
		*v = Number(f)
		return nil
	}
}

// Export writes every key and value of the store to w as a msgpack stream:
// a header string followed by one [key, value] array per entry.
func (s *Store) Export(w io.Writer) error {
	enc := msgpack.NewEncoder(w)
	if err := enc.EncodeString(exportMagic); err != nil {
		return err
	}
	var n int
	for key, err := range s.All() {
		if err != nil {
			return err
		}
		v, err := s.Get(key)
		if err != nil {
			return err
		}
		if v.IsNil() {
			continue // deleted since the cursor saw it
		}
		if err := enc.EncodeArrayLen(2); err != nil {
			return err
		}
		if err := enc.EncodeBytes(key); err != nil {
			return err
		}
		if err := v.EncodeMsgpack(enc); err != nil {
			return err
		}
		n++
	}
	s.logger.Debug("shelf: exported", "path", s.path, "entries", n)
	return nil
}

// Import reads a stream written by Export and stores every entry, replacing
// existing values.
func (s *Store) Import(r io.Reader) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	dec := msgpack.NewDecoder(r)
	magic, err := dec.DecodeString()
	if err != nil {
		return fmt.Errorf("shelf: import: reading header: %w", err)
	}
	if magic != exportMagic {
		return fmt.Errorf("shelf: import: %w: bad header %q", ErrCorrupted, magic)
	}
	var n int
	for {
		l, err := dec.DecodeArrayLen()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return fmt.Errorf("shelf: import: entry %d: %w", n, err)
		}
		if l != 2 {
			return fmt.Errorf("shelf: import: entry %d: %w: %d elements instead of 2", n, ErrCorrupted, l)
		}
		key, err := dec.DecodeBytes()
		if err != nil {
			return fmt.Errorf("shelf: import: entry %d: %w", n, err)
		}
		var v Value
		if err := v.DecodeMsgpack(dec); err != nil {
			return fmt.Errorf("shelf: import: entry %d: %w", n, err)
		}
		if err := s.Set(key, v); err != nil {
			return err
		}
		n++
	}
	s.logger.Debug("shelf: imported", "path", s.path, "entries", n)
	return nil
}
