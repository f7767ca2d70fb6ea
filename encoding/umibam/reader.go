package umibam

import (
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/umicluster/umi"
	"github.com/grailbio/umicluster/umicorrect"
)

const unmappedRegion = "*"

// RegionName names the genomic window of size interval that contains the
// midpoint of [start, end] on ref. The name has the form
// "<ref>_<windowStart>_<windowEnd>"; when the midpoint falls exactly on a
// window boundary, windowStart and windowEnd are equal.
func RegionName(ref string, start, end, interval int) string {
	mid := (start + end) / 2
	lo := floorDiv(mid, interval) * interval
	hi := lo
	if lo != mid {
		hi += interval
	}
	return fmt.Sprintf("%s_%d_%d", ref, lo, hi)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// regionName names the window of r's alignment midpoint.
func regionName(r *sam.Record, interval int) string {
	if r.Ref == nil || r.Flags&sam.Unmapped != 0 {
		return unmappedRegion
	}
	return RegionName(r.Ref.Name(), r.Pos, r.End()-1, interval)
}

// stringAux returns the string value of tag in r.
func stringAux(r *sam.Record, tag sam.Tag) (string, error) {
	aux := r.AuxFields.Get(tag)
	if aux == nil {
		return "", errors.E(errors.Invalid, fmt.Sprintf("%s tag not found in %s", tag, r.Name))
	}
	s, ok := aux.Value().(string)
	if !ok {
		return "", errors.E(errors.Invalid, fmt.Sprintf("%s tag of %s is not a string: %v", tag, r.Name, aux.Value()))
	}
	return s, nil
}

// toReadRecord extracts the clustering fields of r.
func toReadRecord(r *sam.Record, opts *Opts) (umicorrect.ReadRecord, error) {
	barcode, err := stringAux(r, sam.NewTag(opts.BarcodeTag))
	if err != nil {
		return umicorrect.ReadRecord{}, err
	}
	rawUMI, err := stringAux(r, sam.NewTag(opts.UMITag))
	if err != nil {
		return umicorrect.ReadRecord{}, err
	}
	if opts.ValidateUMIs {
		if err := umi.Validate(rawUMI); err != nil {
			return umicorrect.ReadRecord{}, errors.E(err, r.Name)
		}
	}
	gene, err := stringAux(r, sam.NewTag(opts.GeneTag))
	if err != nil {
		return umicorrect.ReadRecord{}, err
	}
	if gene == opts.Unannotated {
		gene = regionName(r, opts.RegionInterval)
	}
	return umicorrect.ReadRecord{
		ReadID:  r.Name,
		Gene:    gene,
		Barcode: barcode,
		UMI:     rawUMI,
	}, nil
}

// ReadRecords reads the BAM stream in and returns its header and the
// ReadRecords of the alignments selected by opts. Unannotated genes are
// replaced by region names before they are returned, so that records are
// grouped consistently. A missing or non-string tag is an error of kind
// errors.Invalid.
//
// With opts.PrimaryOnly, each read id yields at most one record: the primary
// alignment's, or, when the primary lies outside opts.Ref, the first
// secondary or supplementary alignment's. Repeated primary alignments are
// all returned.
func ReadRecords(in io.Reader, opts Opts) (*sam.Header, []umicorrect.ReadRecord, error) {
	if err := opts.Validate(); err != nil {
		return nil, nil, err
	}
	reader, err := bam.NewReader(in, 1)
	if err != nil {
		return nil, nil, errors.E(err, "couldn't open bam input")
	}
	defer reader.Close()

	var (
		records []umicorrect.ReadRecord
		// Index into records of the alignment standing in for a read whose
		// primary has not been seen.
		standIns = map[string]int{}
		primary  = map[string]bool{}
		skipped  int
	)
	for {
		r, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, errors.E(err, "couldn't read bam record")
		}
		if !opts.inPartition(r) {
			continue
		}
		if !opts.PrimaryOnly {
			rec, err := toReadRecord(r, &opts)
			if err != nil {
				return nil, nil, err
			}
			records = append(records, rec)
			continue
		}
		if isSecondaryOrSupplementary(r) {
			if _, ok := standIns[r.Name]; ok || primary[r.Name] {
				skipped++
				continue
			}
			rec, err := toReadRecord(r, &opts)
			if err != nil {
				return nil, nil, err
			}
			standIns[r.Name] = len(records)
			records = append(records, rec)
			continue
		}
		rec, err := toReadRecord(r, &opts)
		if err != nil {
			return nil, nil, err
		}
		if i, ok := standIns[r.Name]; ok {
			delete(standIns, r.Name)
			records[i] = rec
			skipped++
		} else {
			records = append(records, rec)
		}
		primary[r.Name] = true
	}
	log.Debug.Printf("read %d records, skipped %d secondary or supplementary, %d without a primary in the partition",
		len(records), skipped, len(standIns))
	return reader.Header(), records, nil
}
