package umicorrect

import (
	"fmt"
	"sort"

	"blainsmith.com/go/seahash"
)

// ReadRecord is the part of an alignment that UMI clustering looks at.
type ReadRecord struct {
	// ReadID identifies the alignment; it must be unique in a partition.
	ReadID string
	// Gene and Barcode define the scope in which UMIs are clustered.
	Gene    string
	Barcode string
	// UMI is the uncorrected UMI.
	UMI string
}

// Correction is the outcome of clustering for one read.
type Correction struct {
	UMI  string
	Gene string
}

// Result maps each read id of a partition to its Correction.
type Result map[string]Correction

// Digest returns a hash of the contents of r that does not depend on the
// order in which entries were inserted.
func (r Result) Digest() uint64 {
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	h := seahash.New()
	sep := []byte{0}
	for _, id := range ids {
		c := r[id]
		h.Write([]byte(id))
		h.Write(sep)
		h.Write([]byte(c.UMI))
		h.Write(sep)
		h.Write([]byte(c.Gene))
		h.Write(sep)
	}
	return h.Sum64()
}

// groupKey is the clustering scope of a read.
type groupKey struct {
	gene, barcode string
}

func (k groupKey) String() string {
	return fmt.Sprintf("gene=%s barcode=%s", k.gene, k.barcode)
}

// readGroup holds the reads of one (gene, barcode) group. readIDs[i] carries
// umis[i].
type readGroup struct {
	key     groupKey
	readIDs []string
	umis    []string
}

// groupRecords splits records by (gene, barcode). Groups are returned in
// order of first appearance.
func groupRecords(records []ReadRecord) []*readGroup {
	index := map[groupKey]int{}
	var groups []*readGroup
	for _, r := range records {
		key := groupKey{gene: r.Gene, barcode: r.Barcode}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, &readGroup{key: key})
		}
		g := groups[i]
		g.readIDs = append(g.readIDs, r.ReadID)
		g.umis = append(g.umis, r.UMI)
	}
	return groups
}
