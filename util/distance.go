package util

// levenshteinRows is the working state of one Levenshtein computation: the
// previous and the current row of the edit distance matrix.
type levenshteinRows struct {
	prev, cur []int
}

// reset sizes both rows for a matrix with n+1 columns and fills the previous
// row with the distances from the empty prefix.
func (r *levenshteinRows) reset(n int) {
	if cap(r.prev) < n+1 {
		r.prev = make([]int, n+1)
		r.cur = make([]int, n+1)
	}
	r.prev = r.prev[:n+1]
	r.cur = r.cur[:n+1]
	for j := range r.prev {
		r.prev[j] = j
	}
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// Levenshtein computes the Levenshtein distance between two UMIs. The
// returned value is the number of single base insertions, deletions, and
// substitutions it takes to transform s1 into s2; every operation costs one.
// s1 and s2 may differ in length.
func Levenshtein(s1, s2 string) int {
	var rows levenshteinRows
	return rows.distance(s1, s2)
}

func (r *levenshteinRows) distance(s1, s2 string) int {
	// Keep the shorter string along the columns.
	if len(s1) < len(s2) {
		s1, s2 = s2, s1
	}
	if len(s2) == 0 {
		return len(s1)
	}
	r.reset(len(s2))
	for i := 1; i <= len(s1); i++ {
		r.cur[0] = i
		for j := 1; j <= len(s2); j++ {
			if s1[i-1] == s2[j-1] {
				r.cur[j] = r.prev[j-1]
				continue
			}
			// prev[j]: deletion, cur[j-1]: insertion, prev[j-1]: substitution.
			r.cur[j] = min3(r.prev[j], r.cur[j-1], r.prev[j-1]) + 1
		}
		r.prev, r.cur = r.cur, r.prev
	}
	return r.prev[len(s2)]
}

// LevenshteinCalculator computes Levenshtein distances while reusing its row
// buffers between calls. It is not safe for concurrent use; each goroutine
// should own one.
type LevenshteinCalculator struct {
	rows levenshteinRows
}

// Distance returns Levenshtein(s1, s2).
func (c *LevenshteinCalculator) Distance(s1, s2 string) int {
	return c.rows.distance(s1, s2)
}
