package shelf

import (
	"bytes"
	"fmt"
	"iter"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindString
	KindTable
	KindOpaque
)

var kindNames = [...]string{"nil", "bool", "number", "string", "table", "opaque"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a dynamically-typed storable item: nil, a boolean, a number,
// a byte string, or a table of Value pairs. The zero Value is Nil.
//
// An Opaque value wraps a host object that has no representation in the
// encoded form; it can sit in a tree but cannot be marshaled.
type Value struct {
	kind   Kind
	b      bool
	n      float64
	s      []byte
	t      *Table
	opaque *opaqueRef
}

type opaqueRef struct {
	x any
}

// Nil is the absent value.
var Nil = Value{}

func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

func Number(v float64) Value { return Value{kind: KindNumber, n: v} }

// String returns a string Value holding v. v is not copied.
func String(v []byte) Value {
	if v == nil {
		v = []byte{}
	}
	return Value{kind: KindString, s: v}
}

// Str returns a string Value holding the bytes of v.
func Str(v string) Value { return Value{kind: KindString, s: []byte(v)} }

// TableValue wraps t into a Value. A nil t becomes a fresh empty table.
func TableValue(t *Table) Value {
	if t == nil {
		t = NewTable()
	}
	return Value{kind: KindTable, t: t}
}

// Opaque wraps a host object that cannot be stored.
func Opaque(x any) Value { return Value{kind: KindOpaque, opaque: &opaqueRef{x}} }

func (v Value) Kind() Kind  { return v.kind }
func (v Value) IsNil() bool { return v.kind == KindNil }
func (v Value) Bool() bool  { return v.kind == KindBool && v.b }

func (v Value) Number() float64 {
	if v.kind != KindNumber {
		return 0
	}
	return v.n
}

// Bytes returns the contents of a string Value, or nil for other kinds.
func (v Value) Bytes() []byte {
	if v.kind != KindString {
		return nil
	}
	return v.s
}

// Table returns the table of a table Value, or nil for other kinds.
func (v Value) Table() *Table {
	if v.kind != KindTable {
		return nil
	}
	return v.t
}

// OpaqueValue returns the host object of an Opaque value.
func (v Value) OpaqueValue() any {
	if v.kind != KindOpaque {
		return nil
	}
	return v.opaque.x
}

// String renders v for debugging: strings are quoted, tables use {k=v, ...}.
func (v Value) String() string {
	var buf strings.Builder
	v.format(&buf, 0)
	return buf.String()
}

const maxFormatDepth = 32

func (v Value) format(buf *strings.Builder, depth int) {
	switch v.kind {
	case KindNil:
		buf.WriteString("nil")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		buf.WriteString(strconv.FormatFloat(v.n, 'g', -1, 64))
	case KindString:
		buf.WriteString(strconv.Quote(string(v.s)))
	case KindTable:
		if depth >= maxFormatDepth {
			buf.WriteString("{...}")
			return
		}
		buf.WriteByte('{')
		for i, p := range v.t.pairs {
			if i > 0 {
				buf.WriteString(", ")
			}
			p.Key.format(buf, depth+1)
			buf.WriteByte('=')
			p.Value.format(buf, depth+1)
		}
		buf.WriteByte('}')
	case KindOpaque:
		fmt.Fprintf(buf, "<opaque %T>", v.opaque.x)
	default:
		buf.WriteString(v.kind.String())
	}
}

// Equal reports whether a and b hold the same data. Tables are compared as
// sets of key/value associations, ignoring order. Numbers compare by bit
// pattern, so NaN equals itself.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNil:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return math.Float64bits(a.n) == math.Float64bits(b.n)
	case KindString:
		return bytes.Equal(a.s, b.s)
	case KindTable:
		return tablesEqual(a.t, b.t)
	case KindOpaque:
		return a.opaque == b.opaque
	default:
		return false
	}
}

func tablesEqual(a, b *Table) bool {
	if a == b {
		return true
	}
	if a.Len() != b.Len() {
		return false
	}
	used := make([]bool, b.Len())
outer:
	for _, pa := range a.pairs {
		for j, pb := range b.pairs {
			if !used[j] && Equal(pa.Key, pb.Key) && Equal(pa.Value, pb.Value) {
				used[j] = true
				continue outer
			}
		}
		return false
	}
	return true
}

// slotKey maps a table key to a comparable Go value. Scalars key by
// content, tables and opaque values by identity.
func slotKey(v Value) any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		n := v.n
		if n == 0 {
			n = 0 // -0 and +0 are the same key
		}
		return math.Float64bits(n)
	case KindString:
		return string(v.s)
	case KindTable:
		return v.t
	case KindOpaque:
		return v.opaque
	default:
		return nil
	}
}

// Pair is one key/value association of a Table.
type Pair struct {
	Key   Value
	Value Value
}

// Table is a list of key/value pairs with unique keys. Order carries no
// meaning, and removing a key may reorder the remaining pairs.
type Table struct {
	pairs []Pair
	slots map[any]int
}

func NewTable() *Table {
	return &Table{}
}

// TableOf builds a table from alternating keys and values.
func TableOf(kvs ...Value) *Table {
	if len(kvs)%2 != 0 {
		panic("TableOf: odd number of arguments")
	}
	t := &Table{
		pairs: make([]Pair, 0, len(kvs)/2),
		slots: make(map[any]int, len(kvs)/2),
	}
	for i := 0; i < len(kvs); i += 2 {
		t.Set(kvs[i], kvs[i+1])
	}
	return t
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.pairs)
}

// Get returns the value stored under key, or Nil.
func (t *Table) Get(key Value) Value {
	if t == nil {
		return Nil
	}
	if i, ok := t.slots[slotKey(key)]; ok {
		return t.pairs[i].Value
	}
	return Nil
}

// Set stores value under key, replacing an existing association. Setting Nil
// removes the key. Nil keys are ignored.
func (t *Table) Set(key, value Value) {
	if key.kind == KindNil {
		return
	}
	sk := slotKey(key)
	i, found := t.slots[sk]
	switch {
	case value.kind == KindNil:
		if found {
			last := len(t.pairs) - 1
			if i != last {
				t.pairs[i] = t.pairs[last]
				t.slots[slotKey(t.pairs[i].Key)] = i
			}
			t.pairs[last] = Pair{}
			t.pairs = t.pairs[:last]
			delete(t.slots, sk)
		}
	case found:
		t.pairs[i].Value = value
	default:
		if t.slots == nil {
			t.slots = make(map[any]int)
		}
		t.slots[sk] = len(t.pairs)
		t.pairs = append(t.pairs, Pair{key, value})
	}
}

// Pairs returns the pairs in their current order. The slice must not be
// modified.
func (t *Table) Pairs() []Pair {
	if t == nil {
		return nil
	}
	return t.pairs
}

// All yields every key/value association.
func (t *Table) All() iter.Seq2[Value, Value] {
	return func(yield func(Value, Value) bool) {
		for _, p := range t.Pairs() {
			if !yield(p.Key, p.Value) {
				return
			}
		}
	}
}
