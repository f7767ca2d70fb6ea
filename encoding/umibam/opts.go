// Package umibam connects UMI clustering to BAM files. ReadRecords extracts
// the (read id, gene, barcode, uncorrected UMI) of each alignment, and
// WriteTags copies the alignments to a new BAM file with the corrected UMI
// and gene attached as aux tags.
package umibam

import (
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/sam"
)

// Opts configures ReadRecords and WriteTags.
type Opts struct {
	// Ref restricts processing to alignments on the reference with this
	// name. If empty, every alignment is processed.
	Ref string
	// PrimaryOnly skips secondary and supplementary alignments when reading
	// records; they share the read id of their primary alignment. WriteTags
	// tags them through that read id.
	PrimaryOnly bool
	// ValidateUMIs rejects uncorrected UMIs containing bases other than
	// ACGTN.
	ValidateUMIs bool

	// BarcodeTag holds the corrected cell barcode.
	BarcodeTag string
	// UMITag holds the uncorrected UMI.
	UMITag string
	// GeneTag holds the annotated gene name, on input and output.
	GeneTag string
	// CorrectedUMITag receives the corrected UMI.
	CorrectedUMITag string

	// Unannotated is the GeneTag value of alignments without a gene. Those
	// alignments are assigned a region name instead, see RegionName.
	Unannotated string
	// RegionInterval is the size in bp of the genomic windows used for
	// region names.
	RegionInterval int
}

// DefaultOpts are the default options.
var DefaultOpts = Opts{
	PrimaryOnly:     true,
	BarcodeTag:      "CB",
	UMITag:          "UR",
	GeneTag:         "GN",
	CorrectedUMITag: "UB",
	Unannotated:     "NA",
	RegionInterval:  1000,
}

// Validate returns an error of kind errors.Invalid if o cannot be used.
func (o *Opts) Validate() error {
	for _, tag := range []string{o.BarcodeTag, o.UMITag, o.GeneTag, o.CorrectedUMITag} {
		if len(tag) != 2 {
			return errors.E(errors.Invalid, fmt.Sprintf("aux tag must have two characters, got %q", tag))
		}
	}
	if o.RegionInterval <= 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("region interval must be > 0, got %d", o.RegionInterval))
	}
	return nil
}

// inPartition reports whether r is on the reference selected by o.Ref.
func (o *Opts) inPartition(r *sam.Record) bool {
	if o.Ref == "" {
		return true
	}
	return r.Ref != nil && r.Ref.Name() == o.Ref
}

func isSecondaryOrSupplementary(r *sam.Record) bool {
	return r.Flags&(sam.Secondary|sam.Supplementary) != 0
}
