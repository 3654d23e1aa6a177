package index

import "slices"

// intersect returns the IDs present in both sorted sets.
func intersect(a, b []uint32) []uint32 {
	out := make([]uint32, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

// complement returns the IDs in [0, n) that are not in docs.
func complement(docs []uint32, n uint32) []uint32 {
	out := make([]uint32, 0, int(n)-min(len(docs), int(n)))
	j := 0
	for id := range n {
		if j < len(docs) && docs[j] == id {
			j++
			continue
		}
		out = append(out, id)
	}
	return out
}

// atLeast returns the IDs present in at least k of the sorted sets.
// With k == 1 this is their union.
func atLeast(sets [][]uint32, k int) []uint32 {
	if k > len(sets) {
		return nil
	}
	total := 0
	for _, s := range sets {
		total += len(s)
	}
	all := make([]uint32, 0, total)
	for _, s := range sets {
		all = append(all, s...)
	}
	slices.Sort(all)

	// Each set holds an ID once, so the length of a run of equal IDs is the
	// number of sets containing it.
	out := all[:0]
	for i := 0; i < len(all); {
		j := i + 1
		for j < len(all) && all[j] == all[i] {
			j++
		}
		if j-i >= k {
			out = append(out, all[i])
		}
		i = j
	}
	return out
}
