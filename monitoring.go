package shelf

type Stats struct {
	Keys      int
	KeySize   int
	ValueSize int

	// Corrupted counts values that fail to decode.
	Corrupted int
}

func (st *Stats) TotalSize() int {
	return st.KeySize + st.ValueSize
}

// Stats walks the whole store and tallies its contents.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	for key, err := range s.All() {
		if err != nil {
			return st, err
		}
		raw, err := s.GetRaw(key)
		if err != nil {
			return st, err
		}
		if raw == nil {
			continue
		}
		st.Keys++
		st.KeySize += len(key)
		st.ValueSize += len(raw)
		if _, err := Unmarshal(raw); err != nil {
			st.Corrupted++
		}
	}
	return st, nil
}
