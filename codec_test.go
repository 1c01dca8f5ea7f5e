package shelf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestMarshal_Scalars(t *testing.T) {
	deepEqual(t, must(Marshal(Bool(true))), []byte("B!"))
	deepEqual(t, must(Marshal(Bool(false))), []byte("b!"))

	num := must(Marshal(Number(1.5)))
	if len(num) != 10 || num[0] != 'n' || num[9] != '!' {
		t.Fatalf("Marshal(1.5) = %x, wanted n + 8 bytes + !", num)
	}
	if f := math.Float64frombits(binary.NativeEndian.Uint64(num[1:9])); f != 1.5 {
		t.Fatalf("payload = %v, wanted 1.5", f)
	}

	str := must(Marshal(Str("hi")))
	if len(str) != 1+8+2+1 || str[0] != 's' || string(str[9:11]) != "hi" || str[11] != '!' {
		t.Fatalf("Marshal(\"hi\") = %x", str)
	}
	if n := binary.NativeEndian.Uint64(str[1:9]); n != 2 {
		t.Fatalf("length = %d, wanted 2", n)
	}
}

func TestMarshal_TableLayout(t *testing.T) {
	data := must(Marshal(TableValue(TableOf(Bool(true), Bool(false)))))
	deepEqual(t, data, []byte("tB!b!T!"))

	data = must(Marshal(TableValue(NewTable())))
	deepEqual(t, data, []byte("tT!"))
}

func TestCodec_RoundTrip(t *testing.T) {
	deep := TableOf(
		Str("a"), TableValue(TableOf(
			Str("b"), TableValue(TableOf(
				Str("c"), TableValue(TableOf(Number(1), Str("leaf"))),
			)),
		)),
	)
	tests := []struct {
		name string
		v    Value
	}{
		{"true", Bool(true)},
		{"false", Bool(false)},
		{"zero", Number(0)},
		{"negative zero", Number(math.Copysign(0, -1))},
		{"pi", Number(math.Pi)},
		{"inf", Number(math.Inf(-1))},
		{"nan", Number(math.NaN())},
		{"empty string", Str("")},
		{"binary string", String([]byte{0, '!', 'T', 0xFF, 0})},
		{"long string", Str(strings.Repeat("x", 100000))},
		{"empty table", TableValue(NewTable())},
		{"mixed keys", TableValue(TableOf(
			Number(1), Str("one"),
			Str("two"), Number(2),
			Bool(true), Bool(false),
			TableValue(TableOf(Str("k"), Str("v"))), Str("table key"),
		))},
		{"nested", TableValue(deep)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := must(Marshal(tt.v))
			got, err := Unmarshal(data)
			if err != nil {
				t.Fatalf("Unmarshal(%x) failed: %v", data, err)
			}
			if !Equal(got, tt.v) {
				t.Fatalf("round trip = %v, wanted %v", got, tt.v)
			}
		})
	}
}

func TestCodec_KeyOrderIgnored(t *testing.T) {
	a := TableValue(TableOf(Str("x"), Number(1), Str("y"), Number(2)))
	b := TableValue(TableOf(Str("y"), Number(2), Str("x"), Number(1)))
	if !Equal(must(Unmarshal(must(Marshal(a)))), b) {
		t.Fatalf("decoded %v not equal to %v", a, b)
	}
}

func TestUnmarshal_NoAliasing(t *testing.T) {
	data := must(Marshal(Str("abc")))
	v := must(Unmarshal(data))
	for i := range data {
		data[i] = 0
	}
	if string(v.Bytes()) != "abc" {
		t.Fatalf("decoded string changed to %q after input was overwritten", v.Bytes())
	}
}

func TestUnmarshal_Corrupted(t *testing.T) {
	valid := must(Marshal(TableValue(TableOf(Str("k"), Number(1)))))

	hugeLen := []byte{'s'}
	hugeLen = binary.NativeEndian.AppendUint64(hugeLen, 1<<62)
	hugeLen = append(hugeLen, "abc!"...)

	overflowLen := []byte{'s'}
	overflowLen = binary.NativeEndian.AppendUint64(overflowLen, math.MaxUint64)

	tests := []struct {
		name string
		data []byte
		msg  string
	}{
		{"empty", nil, "unexpected end"},
		{"unknown tag", []byte("x!"), "unknown tag"},
		{"missing end", []byte("B"), "unexpected end"},
		{"wrong end", []byte("BB"), "expected end marker"},
		{"short number", []byte("n\x00\x00"), "not enough data"},
		{"short string length", []byte("s\x01"), "not enough data"},
		{"string past end", hugeLen, "not enough data"},
		{"string length overflow", overflowLen, "not enough data"},
		{"unterminated table", []byte("tB!b!"), "unexpected end"},
		{"table missing value", []byte("tB!T!"), "unknown tag"},
		{"truncated", valid[:len(valid)-1], "unexpected end"},
		{"trailing bytes", append(bytes.Clone(valid), 'B'), "trailing bytes"},
		{"bare end marker", []byte("!"), "unknown tag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Unmarshal(tt.data)
			if err == nil {
				t.Fatalf("Unmarshal(%x) = %v, wanted error", tt.data, v)
			}
			if !errors.Is(err, ErrCorrupted) {
				t.Errorf("err = %v, wanted ErrCorrupted", err)
			}
			var de *DataError
			if !errors.As(err, &de) {
				t.Fatalf("err = %T, wanted *DataError", err)
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("err = %q, wanted it to contain %q", err, tt.msg)
			}
			if !v.IsNil() {
				t.Errorf("value = %v, wanted Nil", v)
			}
		})
	}
}

func TestUnmarshal_DepthLimit(t *testing.T) {
	nest := func(n int) []byte {
		var buf []byte
		for i := 0; i < n; i++ {
			buf = append(buf, "tB!"...)
		}
		buf = append(buf, "B!"...)
		for i := 0; i < n; i++ {
			buf = append(buf, "T!"...)
		}
		return buf
	}

	v, err := Unmarshal(nest(100))
	if err != nil {
		t.Fatalf("100 levels: %v", err)
	}
	depth := 0
	for v.Kind() == KindTable {
		v = v.Table().Get(Bool(true))
		depth++
	}
	deepEqual(t, depth, 100)

	_, err = Unmarshal(nest(maxDecodeDepth + 1))
	if !errors.Is(err, ErrCorrupted) || !strings.Contains(err.Error(), "nested deeper") {
		t.Fatalf("err = %v, wanted nesting error", err)
	}
}

func TestUnmarshal_DuplicateKeysLastWins(t *testing.T) {
	v := must(Unmarshal([]byte("tB!b!B!B!T!")))
	deepEqual(t, v.Table().Len(), 1)
	deepEqual(t, v.Table().Get(Bool(true)), Bool(true))
}

func TestUnmarshalPrefix(t *testing.T) {
	data := append(must(Marshal(Number(7))), must(Marshal(Str("next")))...)
	v, n, err := UnmarshalPrefix(data)
	if err != nil {
		t.Fatal(err)
	}
	deepEqual(t, v.Number(), 7.0)
	deepEqual(t, n, 10)

	v, n, err = UnmarshalPrefix(data[n:])
	if err != nil {
		t.Fatal(err)
	}
	deepEqual(t, string(v.Bytes()), "next")
	deepEqual(t, n, len(data)-10)
}

func TestMarshal_Unsupported(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		_, err := Marshal(Nil)
		if !errors.Is(err, ErrUnsupportedType) {
			t.Fatalf("err = %v, wanted ErrUnsupportedType", err)
		}
	})

	t.Run("nested opaque leaves no bytes", func(t *testing.T) {
		v := TableValue(TableOf(
			Str("ok"), Number(1),
			Str("inner"), TableValue(TableOf(Str("fn"), Opaque(func() {}))),
		))
		prefix := []byte("prefix")
		out, err := AppendMarshal(prefix, v)
		var ee *EncodeError
		if !errors.As(err, &ee) {
			t.Fatalf("err = %T %v, wanted *EncodeError", err, err)
		}
		if !errors.Is(err, ErrUnsupportedType) {
			t.Errorf("err = %v, wanted ErrUnsupportedType", err)
		}
		deepEqual(t, ee.Kind, KindOpaque)
		deepEqual(t, ee.Path, `["inner"]["fn"]`)
		deepEqual(t, string(out), "prefix")
	})

	t.Run("opaque key", func(t *testing.T) {
		_, err := Marshal(TableValue(TableOf(Opaque(1), Number(1))))
		var ee *EncodeError
		if !errors.As(err, &ee) || ee.Path != "[<key>]" {
			t.Fatalf("err = %v, wanted EncodeError at [<key>]", err)
		}
	})

	t.Run("cycle", func(t *testing.T) {
		tbl := NewTable()
		tbl.Set(Str("self"), TableValue(tbl))
		_, err := Marshal(TableValue(tbl))
		if !errors.Is(err, ErrUnsupportedType) || !strings.Contains(err.Error(), "contains itself") {
			t.Fatalf("err = %v, wanted cycle error", err)
		}
	})

	t.Run("shared subtable is not a cycle", func(t *testing.T) {
		sub := TableValue(TableOf(Str("x"), Number(1)))
		v := TableValue(TableOf(Str("a"), sub, Str("b"), sub))
		got := must(Unmarshal(must(Marshal(v))))
		if !Equal(got, v) {
			t.Fatalf("got %v, wanted %v", got, v)
		}
	})
}

func TestAppendMarshal_Appends(t *testing.T) {
	buf := must(AppendMarshal([]byte("B!"), Bool(false)))
	deepEqual(t, string(buf), "B!b!")
}

func BenchmarkMarshal(b *testing.B) {
	tbl := NewTable()
	for i := 0; i < 100; i++ {
		tbl.Set(Number(float64(i)), Str("value"))
	}
	v := TableValue(tbl)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = Marshal(v)
	}
}

func BenchmarkUnmarshal(b *testing.B) {
	tbl := NewTable()
	for i := 0; i < 100; i++ {
		tbl.Set(Number(float64(i)), Str("value"))
	}
	data := must(Marshal(TableValue(tbl)))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = Unmarshal(data)
	}
}
