package fixcodec

// EntriesByLeadTag splits a field slice into repeating-group entries. A
// new entry starts every time leadTag is seen again; fields before the
// first occurrence of leadTag are discarded (they belong to the message
// header, not the group). This mirrors the reference FIX client's
// single-pass boundary detection, generalized to work over an already
// tag=value-decoded Message instead of scanning raw SOH-delimited bytes.
func EntriesByLeadTag(fields []Field, leadTag Tag) [][]Field {
	var entries [][]Field
	var current []Field
	for _, f := range fields {
		if f.Tag == leadTag {
			if len(current) > 0 {
				entries = append(entries, current)
			}
			current = []Field{f}
			continue
		}
		if current != nil {
			current = append(current, f)
		}
	}
	if len(current) > 0 {
		entries = append(entries, current)
	}
	return entries
}

// EntryGet returns the first value for tag within a single group entry.
func EntryGet(entry []Field, tag Tag) (string, bool) {
	for _, f := range entry {
		if f.Tag == tag {
			return f.Value, true
		}
	}
	return "", false
}
