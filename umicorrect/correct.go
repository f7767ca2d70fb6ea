// Package umicorrect corrects the UMIs of all reads in a partition, for
// example all reads aligned to one chromosome. Reads are grouped by (gene,
// cell barcode); the UMIs of each group are clustered independently on a
// bounded pool of goroutines, and the per-read results are merged by read id.
//
// Merging is keyed by read id, so the result does not depend on the order in
// which groups finish. Any failure aborts the whole partition: groups not yet
// started are skipped and the first error is returned.
package umicorrect

import (
	"context"
	"fmt"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/umicluster/umi"
)

// groupStarted is called with the index of each group before it is
// clustered. Tests replace it to observe dispatch.
var groupStarted = func(gi int) {}

// Correct clusters the UMIs of records within each (gene, barcode) group and
// returns the corrected UMI and gene of every read, along with summary
// metrics. The returned Result has exactly one entry per record.
//
// Errors of kind errors.Invalid report bad options; errors of kind
// errors.Precondition report a broken invariant, such as a read id that
// appears twice.
func Correct(ctx context.Context, records []ReadRecord, opts Opts) (Result, *Metrics, error) {
	if err := opts.Validate(); err != nil {
		return nil, nil, err
	}
	groups := groupRecords(records)
	log.Debug.Printf("clustering %d reads in %d groups, threshold %d, parallelism %d",
		len(records), len(groups), opts.Threshold, opts.Parallelism)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t0 := time.Now()
	results := newResultMap()
	groupMetrics := make([]Metrics, len(groups))
	var once errors.Once
	err := traverse.Limit(opts.Parallelism).Each(len(groups), func(i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		groupStarted(i)
		if err := correctGroup(groups, i, opts.Threshold, results, &groupMetrics[i]); err != nil {
			once.Set(err)
			cancel()
			return err
		}
		return nil
	})
	if e := once.Err(); e != nil {
		return nil, nil, e
	}
	if err != nil {
		return nil, nil, err
	}

	result := results.result()
	if len(result) != len(records) {
		return nil, nil, errors.E(errors.Precondition,
			fmt.Sprintf("merged %d reads, expected %d", len(result), len(records)))
	}
	metrics := &Metrics{}
	for i := range groupMetrics {
		metrics.Add(&groupMetrics[i])
	}
	log.Printf("clustered %d reads in %d groups in %v: %d raw umis, %d molecules, %d reads corrected",
		metrics.Reads, metrics.Groups, time.Since(t0), metrics.RawUMIs, metrics.Molecules, metrics.CorrectedReads)
	return result, metrics, nil
}

// correctGroup clusters groups[gi] and inserts one Correction per read into
// results.
func correctGroup(groups []*readGroup, gi int, threshold int, results *resultMap, m *Metrics) error {
	g := groups[gi]
	corrected, clusters, err := umi.Correct(g.umis, threshold)
	if err != nil {
		return errors.E(err, g.key.String())
	}
	if len(corrected) != len(g.readIDs) {
		return errors.E(errors.Precondition,
			fmt.Sprintf("%v: corrected %d of %d reads", g.key, len(corrected), len(g.readIDs)))
	}
	for i, id := range g.readIDs {
		if prev, ok := results.insert(id, Correction{UMI: corrected[i], Gene: g.key.gene}, gi); !ok {
			return errors.E(errors.Precondition,
				fmt.Sprintf("read %s appears more than once (%v, %v)", id, groups[prev].key, g.key))
		}
		if corrected[i] != g.umis[i] {
			m.CorrectedReads++
		}
	}
	rawUMIs := 0
	for _, c := range clusters {
		rawUMIs += len(c)
	}
	m.Groups = 1
	m.Reads = len(g.readIDs)
	m.RawUMIs = rawUMIs
	m.Molecules = len(clusters)
	m.MaxGroupUMIs = rawUMIs
	log.Debug.Printf("%v: %d reads, %d umis, %d molecules", g.key, len(g.readIDs), rawUMIs, len(clusters))
	return nil
}
