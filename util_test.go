package shelf

import (
	"log/slog"
	"testing"
)

func TestHexHelpers(t *testing.T) {
	if got := hexstr(nil); got != "<nil>" {
		t.Fatalf("hexstr(nil) = %q, wanted <nil>", got)
	}
	if got := hexstr([]byte{}); got != "<empty>" {
		t.Fatalf("hexstr(empty) = %q, wanted <empty>", got)
	}
	if got := hexstr([]byte{0xAA, 0xBB}); got != "aabb" {
		t.Fatalf("hexstr = %q, wanted aabb", got)
	}
	a := hexAttr("k", []byte{0xAA})
	if a.Key != "k" || a.Value.Kind() != slog.KindString {
		t.Fatalf("hexAttr returned unexpected attr: %+v", a)
	}
}

func TestKeyAttr(t *testing.T) {
	if got := keyAttr([]byte("user:1")).Value.String(); got != "user:1" {
		t.Fatalf("keyAttr(printable) = %q, wanted user:1", got)
	}
	if got := keyAttr([]byte{0, 0xFF}).Value.String(); got != "00ff" {
		t.Fatalf("keyAttr(binary) = %q, wanted 00ff", got)
	}
	if got := keyAttr(nil).Value.String(); got != "<nil>" {
		t.Fatalf("keyAttr(nil) = %q, wanted <nil>", got)
	}
}

func TestClone(t *testing.T) {
	if clone(nil) != nil {
		t.Fatalf("clone(nil) != nil")
	}
	src := []byte{1, 2}
	c := clone(src)
	src[0] = 9
	if c[0] != 1 {
		t.Fatalf("clone shares memory with its source")
	}
}
