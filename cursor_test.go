package shelf

import (
	"errors"
	"fmt"
	"testing"

	"github.com/andreyvit/shelf/kv"
)

func TestCursor(t *testing.T) {
	s := setup(t, Options{})
	for _, k := range []string{"c", "a", "b"} {
		ok(t, s.Set([]byte(k), Str(k)))
	}

	c := must(s.Keys())
	defer c.Close()
	if c.Key() != nil {
		t.Errorf("Key before Next = %q, wanted nil", c.Key())
	}
	var keys []string
	for c.Next() {
		keys = append(keys, string(c.Key()))
	}
	ok(t, c.Err())
	deepEqual(t, keys, []string{"a", "b", "c"})

	if c.Next() {
		t.Errorf("Next after end = true, wanted false")
	}
	if c.Key() != nil {
		t.Errorf("Key after end = %q, wanted nil", c.Key())
	}
}

func TestCursor_Empty(t *testing.T) {
	s := setup(t, Options{})
	c := must(s.Keys())
	if c.Next() {
		t.Fatalf("Next on empty store = true")
	}
	ok(t, c.Err())
	deepEqual(t, len(allKeys(t, s)), 0)
}

func TestCursor_DeleteCurrent(t *testing.T) {
	for _, kind := range kv.Kinds {
		t.Run(string(kind), func(t *testing.T) {
			if !kind.Available() {
				t.Skipf("%s engine not available in this build", kind)
			}
			s := setup(t, Options{Engine: kind})
			for i := 0; i < 10; i++ {
				ok(t, s.Set([]byte(fmt.Sprintf("k%d", i)), Number(float64(i))))
			}

			var seen []string
			for key, err := range s.All() {
				ok(t, err)
				seen = append(seen, string(key))
				ok(t, s.Delete(key))
			}
			deepEqual(t, len(seen), 10)
			deepEqual(t, len(allKeys(t, s)), 0)
		})
	}
}

func TestCursor_SetDuringWalk(t *testing.T) {
	s := setup(t, Options{})
	for _, k := range []string{"a", "b", "c"} {
		ok(t, s.Set([]byte(k), Number(1)))
	}
	var seen []string
	for key, err := range s.All() {
		ok(t, err)
		seen = append(seen, string(key))
		ok(t, s.Set(key, Number(2)))
	}
	deepEqual(t, seen, []string{"a", "b", "c"})
	for _, k := range seen {
		valueEqual(t, must(s.Get([]byte(k))), Number(2))
	}
}

func TestCursor_KeyIsCopy(t *testing.T) {
	s := setup(t, Options{})
	ok(t, s.Set([]byte("a"), Number(1)))
	ok(t, s.Set([]byte("b"), Number(1)))

	c := must(s.Keys())
	c.Next()
	k := c.Key()
	k[0] = 'z'
	c.Next()
	deepEqual(t, string(c.Key()), "b")
}

func TestCursor_StoreClosed(t *testing.T) {
	s := setup(t, Options{})
	ok(t, s.Set([]byte("a"), Number(1)))
	ok(t, s.Set([]byte("b"), Number(1)))

	c := must(s.Keys())
	if !c.Next() {
		t.Fatalf("Next = false, wanted true")
	}
	ok(t, s.Close())
	if c.Next() {
		t.Fatalf("Next after Close = true, wanted false")
	}
	if !errors.Is(c.Err(), ErrClosed) {
		t.Fatalf("Err = %v, wanted ErrClosed", c.Err())
	}
	ok(t, c.Close())
	ok(t, c.Close())
}

func TestCursor_ClosedBeforeFirstNext(t *testing.T) {
	s := setup(t, Options{})
	ok(t, s.Set([]byte("a"), Number(1)))
	c := must(s.Keys())
	ok(t, s.Close())
	if c.Next() {
		t.Fatalf("Next = true, wanted false")
	}
	if !errors.Is(c.Err(), ErrClosed) {
		t.Fatalf("Err = %v, wanted ErrClosed", c.Err())
	}
}

func TestCursor_CloseStopsWalk(t *testing.T) {
	s := setup(t, Options{})
	ok(t, s.Set([]byte("a"), Number(1)))
	ok(t, s.Set([]byte("b"), Number(1)))
	c := must(s.Keys())
	c.Next()
	ok(t, c.Close())
	if c.Next() {
		t.Fatalf("Next after cursor Close = true")
	}
	ok(t, c.Err())
}

func TestAll_Break(t *testing.T) {
	s := setup(t, Options{})
	for _, k := range []string{"a", "b", "c"} {
		ok(t, s.Set([]byte(k), Number(1)))
	}
	var seen []string
	for key, err := range s.All() {
		ok(t, err)
		seen = append(seen, string(key))
		if len(seen) == 2 {
			break
		}
	}
	deepEqual(t, seen, []string{"a", "b"})
}
