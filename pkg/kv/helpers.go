package kv

// DeleteRange removes every key in [start, end).
// Keys are collected before deleting, some engines invalidate cursors on write.
func DeleteRange(s Session, start, end []byte) error {
	keys, err := Keys(s, start, end)
	if err != nil {
		return err
	}

	for _, k := range keys {
		if err := s.Delete(k); err != nil {
			return err
		}
	}

	return nil
}

// Keys returns copies of every key in [start, end).
func Keys(s Session, start, end []byte) ([][]byte, error) {
	it := s.Iterator(start, end)
	defer it.Close()

	var keys [][]byte

	for it.First(); it.Valid(); it.Next() {
		keys = append(keys, Copy(it.Key()))
	}

	return keys, it.Error()
}

func Copy(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
