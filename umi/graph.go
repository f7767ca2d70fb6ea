// Package umi implements directional clustering of UMIs. UMIs observed in
// one (gene, cell barcode) group are linked into a directed graph when they
// are within an edit distance threshold and the source UMI is at least about
// twice as abundant as the target. Each connected component of that graph is
// taken to be one molecule, and its most abundant UMI is the corrected UMI
// for every member.
package umi

import (
	"sort"

	"github.com/grailbio/umicluster/util"
)

// Counts maps each distinct UMI of a group to the number of times it was
// observed. All counts are >= 1.
type Counts map[string]int

// NewCounts counts the occurrences of each UMI in umis.
func NewCounts(umis []string) Counts {
	counts := make(Counts, len(umis))
	for _, u := range umis {
		counts[u]++
	}
	return counts
}

// byAbundance returns the UMIs in counts ordered by descending count, with
// ties broken by ascending UMI so that the order is reproducible.
func (c Counts) byAbundance() []string {
	umis := make([]string, 0, len(c))
	for u := range c {
		umis = append(umis, u)
	}
	c.sortByAbundance(umis)
	return umis
}

// sortByAbundance sorts umis in place in the order described in byAbundance.
func (c Counts) sortByAbundance(umis []string) {
	sort.Slice(umis, func(i, j int) bool {
		ci, cj := c[umis[i]], c[umis[j]]
		if ci != cj {
			return ci > cj
		}
		return umis[i] < umis[j]
	})
}

// Graph is a directed adjacency list over the UMIs of a group. An edge u->v
// means u may absorb v as one of its errors. Every UMI of the group is a key;
// UMIs without outgoing edges map to an empty list.
type Graph map[string][]string

// absorbs reports whether a UMI seen `from` times may absorb a neighbor seen
// `to` times.
func absorbs(from, to int) bool {
	return from >= 2*to-1
}

// BuildGraph builds the directional adjacency graph for counts. For every
// pair of distinct UMIs within the edit distance threshold, an edge is added
// from u to v when count(u) >= 2*count(v)-1, and from v to u when
// count(v) >= 2*count(u)-1. Both, one, or neither edge may be added.
//
// Pairs are scanned in lexicographic UMI order, so neighbor lists are
// ordered deterministically.
func BuildGraph(counts Counts, threshold int) Graph {
	umis := make([]string, 0, len(counts))
	for u := range counts {
		umis = append(umis, u)
	}
	sort.Strings(umis)

	g := make(Graph, len(umis))
	for _, u := range umis {
		g[u] = []string{}
	}
	var calc util.LevenshteinCalculator
	for i, u := range umis {
		for _, v := range umis[i+1:] {
			// The length difference is a lower bound on the edit distance.
			if d := len(u) - len(v); d > threshold || -d > threshold {
				continue
			}
			if calc.Distance(u, v) > threshold {
				continue
			}
			cu, cv := counts[u], counts[v]
			if absorbs(cu, cv) {
				g[u] = append(g[u], v)
			}
			if absorbs(cv, cu) {
				g[v] = append(g[v], u)
			}
		}
	}
	return g
}
