package umi

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// CorrectionMap maps every UMI of a group to the canonical UMI of its
// molecule. Canonical UMIs map to themselves.
type CorrectionMap map[string]string

// NewCorrectionMap flattens groups into a CorrectionMap.
func NewCorrectionMap(groups []Group) CorrectionMap {
	m := CorrectionMap{}
	for _, group := range groups {
		for _, u := range group {
			m[u] = group[0]
		}
	}
	return m
}

// Apply returns the corrected UMI for each of umis, in order. A UMI that is
// not in the map means the map was built from a different set of UMIs than
// the one being corrected; that is reported as a precondition error.
func (m CorrectionMap) Apply(umis []string) ([]string, error) {
	corrected := make([]string, len(umis))
	for i, u := range umis {
		c, ok := m[u]
		if !ok {
			return nil, errors.E(errors.Precondition, fmt.Sprintf("umi %q is missing from its correction map", u))
		}
		corrected[i] = c
	}
	return corrected, nil
}

// Correct clusters the observed umis with the given edit distance threshold
// and returns the corrected UMI for each observation, in input order, along
// with the molecules the distinct UMIs were grouped into.
func Correct(umis []string, threshold int) ([]string, []Group, error) {
	groups := Cluster(NewCounts(umis), threshold)
	corrected, err := NewCorrectionMap(groups).Apply(umis)
	if err != nil {
		return nil, nil, err
	}
	return corrected, groups, nil
}
