package shelf

import (
	"bytes"
	"errors"
	"testing"

	"github.com/andreyvit/shelf/kv"
	"github.com/vmihailenco/msgpack/v5"
)

func TestValue_Msgpack(t *testing.T) {
	v := TableValue(TableOf(
		Str("s"), String([]byte{0, 1, 2}),
		Str("n"), Number(-3.25),
		Str("b"), Bool(true),
		Number(1), TableValue(TableOf(Str("deep"), Bool(false))),
	))
	data := must(msgpack.Marshal(v))

	var got Value
	ok(t, msgpack.Unmarshal(data, &got))
	valueEqual(t, got, v)
}

func TestValue_MsgpackForeign(t *testing.T) {
	data := must(msgpack.Marshal(map[string]any{
		"str":  "text",
		"int":  42,
		"list": []any{"a", nil, uint8(3)},
		"nil":  nil,
	}))
	var got Value
	ok(t, msgpack.Unmarshal(data, &got))

	tbl := got.Table()
	valueEqual(t, tbl.Get(Str("str")), Str("text"))
	valueEqual(t, tbl.Get(Str("int")), Number(42))
	valueEqual(t, tbl.Get(Str("nil")), Nil)
	valueEqual(t, tbl.Get(Str("list")), TableValue(TableOf(
		Number(1), Str("a"),
		Number(3), Number(3),
	)))
}

func TestValue_MsgpackOpaque(t *testing.T) {
	_, err := msgpack.Marshal(TableValue(TableOf(Str("fn"), Opaque(func() {}))))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("err = %v, wanted ErrUnsupportedType", err)
	}
}

func TestValue_MsgpackDepthLimit(t *testing.T) {
	nested := func(n int) []byte {
		data := bytes.Repeat([]byte{0x91}, n) // fixarray of one element
		return append(data, 0xC3)             // true
	}

	var v Value
	ok(t, msgpack.Unmarshal(nested(100), &v))
	depth := 0
	for v.Kind() == KindTable {
		v = v.Table().Get(Number(1))
		depth++
	}
	deepEqual(t, depth, 100)

	err := msgpack.Unmarshal(nested(maxDecodeDepth+1), &v)
	if !errors.Is(err, ErrCorrupted) {
		t.Fatalf("err = %v, wanted ErrCorrupted", err)
	}
}

func TestExportImport(t *testing.T) {
	src := setup(t, Options{})
	values := map[string]Value{
		"a":        Str("x"),
		"b":        Number(2),
		"c":        TableValue(TableOf(Str("k"), TableValue(TableOf(Number(1), Bool(true))))),
		"\x00\xff": Bool(false),
	}
	for k, v := range values {
		ok(t, src.Set([]byte(k), v))
	}

	var buf bytes.Buffer
	ok(t, src.Export(&buf))

	for _, kind := range []kv.Kind{kv.Bolt, kv.Pebble, kv.Memory} {
		t.Run(string(kind), func(t *testing.T) {
			dst := setup(t, Options{Engine: kind})
			ok(t, dst.Set([]byte("a"), Str("overwritten")))
			ok(t, dst.Import(bytes.NewReader(buf.Bytes())))

			deepEqual(t, len(allKeys(t, dst)), len(values))
			for k, v := range values {
				valueEqual(t, must(dst.Get([]byte(k))), v)
			}
		})
	}
}

func TestImport_BadHeader(t *testing.T) {
	s := setup(t, Options{})
	data := must(msgpack.Marshal("not-an-export"))
	err := s.Import(bytes.NewReader(data))
	if !errors.Is(err, ErrCorrupted) {
		t.Fatalf("err = %v, wanted ErrCorrupted", err)
	}
}

func TestImport_BadEntry(t *testing.T) {
	s := setup(t, Options{})
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	ok(t, enc.EncodeString(exportMagic))
	ok(t, enc.EncodeArrayLen(3))
	err := s.Import(&buf)
	if !errors.Is(err, ErrCorrupted) {
		t.Fatalf("err = %v, wanted ErrCorrupted", err)
	}
}
