package keyspan

// Key is one primary key, a value per key column.
type Key []any

// Keys builds a key set naming individual rows.
func Keys(keys ...Key) KeySet {
	ks := KeySet{Keys: make([][]any, 0, len(keys))}
	for _, k := range keys {
		ks.Keys = append(ks.Keys, k)
	}

	return ks
}

// AllKeys builds a key set covering every row of a table.
func AllKeys() KeySet {
	return KeySet{All: true}
}

// Range builds a key set covering the span between start and end.
func Range(start, end Key, startClosed, endClosed bool) KeySet {
	return KeySet{Ranges: []KeyRange{{
		Start:       start,
		End:         end,
		StartClosed: startClosed,
		EndClosed:   endClosed,
	}}}
}
