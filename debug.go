package shelf

import (
	"fmt"
	"strings"
)

type DumpFlags uint64

const (
	DumpHeader = DumpFlags(1 << iota)
	DumpValues
	DumpStats

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var dumpSep = strings.Repeat("=", 80)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump renders the store for debugging, one key per line. Values that fail
// to decode are reported inline instead of aborting the dump.
func (s *Store) Dump(f DumpFlags) (string, error) {
	var buf strings.Builder
	if f.Contains(DumpHeader) {
		fmt.Fprintln(&buf, dumpSep)
		fmt.Fprintln(&buf, s.String())
	}
	if f.Contains(DumpStats) {
		st, err := s.Stats()
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&buf, "stats: keys = %d, key_size = %d, value_size = %d, total_size = %d, corrupted = %d\n", st.Keys, st.KeySize, st.ValueSize, st.TotalSize(), st.Corrupted)
	}

	var pos int
	for key, err := range s.All() {
		if err != nil {
			return "", err
		}
		pos++
		if !f.Contains(DumpValues) {
			fmt.Fprintf(&buf, "%d: %q\n", pos, key)
			continue
		}
		v, err := s.Get(key)
		if err != nil {
			fmt.Fprintf(&buf, "%d: %q = ** ERROR: %v\n", pos, key, err)
			continue
		}
		fmt.Fprintf(&buf, "%d: %q = %s\n", pos, key, v)
	}
	return buf.String(), nil
}
