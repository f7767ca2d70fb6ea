package umicorrect

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

// Metrics summarizes one call to Correct.
type Metrics struct {
	// Groups is the number of (gene, barcode) groups.
	Groups int
	// Reads is the number of reads examined.
	Reads int
	// RawUMIs is the number of distinct uncorrected UMIs, summed over
	// groups.
	RawUMIs int
	// Molecules is the number of distinct corrected UMIs, summed over
	// groups.
	Molecules int
	// CorrectedReads is the number of reads whose UMI was changed.
	CorrectedReads int
	// MaxGroupUMIs is the largest number of distinct UMIs in one group.
	MaxGroupUMIs int
}

// Add adds the metrics in other to m.
func (m *Metrics) Add(other *Metrics) {
	m.Groups += other.Groups
	m.Reads += other.Reads
	m.RawUMIs += other.RawUMIs
	m.Molecules += other.Molecules
	m.CorrectedReads += other.CorrectedReads
	if other.MaxGroupUMIs > m.MaxGroupUMIs {
		m.MaxGroupUMIs = other.MaxGroupUMIs
	}
}

const metricsHeader = "GROUPS\tREADS\tRAW_UMIS\tMOLECULES\tCORRECTED_READS\tPERCENT_CORRECTED\tMAX_GROUP_UMIS\n"

// String returns m as one tab separated row, in the column order of the
// metrics file.
func (m *Metrics) String() string {
	percent := 0.0
	if m.Reads > 0 {
		percent = 100 * float64(m.CorrectedReads) / float64(m.Reads)
	}
	return fmt.Sprintf("%d\t%d\t%d\t%d\t%d\t%0.6f\t%d", m.Groups, m.Reads, m.RawUMIs,
		m.Molecules, m.CorrectedReads, percent, m.MaxGroupUMIs)
}

// WriteMetrics writes m to path as a tab separated file with a header line.
func WriteMetrics(ctx context.Context, path string, m *Metrics) (err error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "couldn't create metrics file:", path)
	}
	defer func() {
		if err2 := f.Close(ctx); err == nil && err2 != nil {
			err = errors.E(err2, "couldn't close metrics file:", path)
		}
	}()
	s := "# bio-umi-cluster\n" + metricsHeader + m.String() + "\n"
	if _, err = f.Writer(ctx).Write([]byte(s)); err != nil {
		return errors.E(err, "error writing to metrics file:", path)
	}
	return nil
}
