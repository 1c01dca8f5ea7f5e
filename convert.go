package shelf

import (
	"fmt"
	"reflect"
	"slices"
)

const maxConvertDepth = 1000

var (
	valueType    = reflect.TypeOf(Value{})
	tablePtrType = reflect.TypeOf((*Table)(nil))
)

// ValueOf converts a plain Go value into a Value:
//
//   - nil and nil pointers become Nil;
//   - bool becomes Bool, every integer and float kind becomes Number;
//   - string and []byte become String;
//   - maps become tables with converted keys; entries with nil values are dropped;
//   - slices and arrays become tables keyed 1, 2, 3...;
//   - Value and *Table pass through.
//
// Functions, channels, complex numbers, structs and unsafe pointers fail with
// an *EncodeError wrapping ErrUnsupportedType. Wrap them with Opaque to carry
// them in a tree anyway.
func ValueOf(x any) (Value, error) {
	return valueOf(reflect.ValueOf(x), 0)
}

func valueOf(rv reflect.Value, depth int) (Value, error) {
	if !rv.IsValid() {
		return Nil, nil
	}
	if depth > maxConvertDepth {
		return Nil, &EncodeError{Kind: KindTable, Err: fmt.Errorf("%w: nested deeper than %d", ErrUnsupportedType, maxConvertDepth)}
	}
	switch rv.Type() {
	case valueType:
		return rv.Interface().(Value), nil
	case tablePtrType:
		if rv.IsNil() {
			return Nil, nil
		}
		return TableValue(rv.Interface().(*Table)), nil
	}

	switch rv.Kind() {
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Number(float64(rv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Number(float64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return Number(rv.Float()), nil
	case reflect.String:
		return Str(rv.String()), nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Nil, nil
		}
		return valueOf(rv.Elem(), depth+1)
	case reflect.Map:
		if rv.IsNil() {
			return Nil, nil
		}
		t := NewTable()
		iter := rv.MapRange()
		for iter.Next() {
			k, err := valueOf(iter.Key(), depth+1)
			if err != nil {
				return Nil, prependPath(err, "[<key>]")
			}
			v, err := valueOf(iter.Value(), depth+1)
			if err != nil {
				return Nil, prependPath(err, "["+k.String()+"]")
			}
			t.Set(k, v)
		}
		return TableValue(t), nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Nil, nil
		}
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return String(slices.Clone(rv.Bytes())), nil
		}
		n := rv.Len()
		t := &Table{pairs: make([]Pair, 0, n), slots: make(map[any]int, n)}
		for i := 0; i < n; i++ {
			k := Number(float64(i + 1))
			v, err := valueOf(rv.Index(i), depth+1)
			if err != nil {
				return Nil, prependPath(err, "["+k.String()+"]")
			}
			t.Set(k, v)
		}
		return TableValue(t), nil
	default:
		return Nil, &EncodeError{Kind: KindOpaque, Err: fmt.Errorf("%w: %s", ErrUnsupportedType, rv.Type())}
	}
}

// Interface converts v back into plain Go values: nil, bool, float64,
// string, or map[any]any for tables. Table keys that are themselves tables
// are represented by their *Table so that they stay usable as map keys.
// Opaque values yield the wrapped object.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return string(v.s)
	case KindTable:
		m := make(map[any]any, v.t.Len())
		for _, p := range v.t.pairs {
			m[p.Key.mapKey()] = p.Value.Interface()
		}
		return m
	case KindOpaque:
		return v.opaque.x
	default:
		return nil
	}
}

func (v Value) mapKey() any {
	switch v.kind {
	case KindTable:
		return v.t
	case KindOpaque:
		return v.opaque
	default:
		return v.Interface()
	}
}
