package reloc

import "sort"

// sortEntriesByOld sorts in place by ascending Old address, matching
// libsm64.c's cmp_ptr/qsort call in sm64_compress_mio0.
func sortEntriesByOld(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Old < entries[j].Old
	})
}
