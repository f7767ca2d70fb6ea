package umibam

import (
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/umicluster/umicorrect"
)

// setAux sets tag to value in r, replacing any existing field with that tag.
func setAux(r *sam.Record, tag sam.Tag, value string) error {
	aux, err := sam.NewAux(tag, value)
	if err != nil {
		return err
	}
	fields := r.AuxFields[:0]
	for _, a := range r.AuxFields {
		if a.Tag() != tag {
			fields = append(fields, a)
		}
	}
	r.AuxFields = append(fields, aux)
	return nil
}

// WriteTags copies the alignments of the BAM stream in that are selected by
// opts.Ref to out, setting opts.CorrectedUMITag and opts.GeneTag from result.
// Every copied alignment, including secondary and supplementary ones, must
// have its read id in result; a missing read id is an error of kind
// errors.Precondition. WriteTags returns the number of alignments written.
func WriteTags(in io.Reader, out io.Writer, result umicorrect.Result, opts Opts) (n int, err error) {
	if err = opts.Validate(); err != nil {
		return 0, err
	}
	reader, err := bam.NewReader(in, 1)
	if err != nil {
		return 0, errors.E(err, "couldn't open bam input")
	}
	defer reader.Close()

	writer, err := bam.NewWriter(out, reader.Header(), 1)
	if err != nil {
		return 0, errors.E(err, "couldn't create bam writer")
	}
	defer func() {
		if e := writer.Close(); e != nil && err == nil {
			err = errors.E(e, "couldn't close bam writer")
		}
	}()

	umiTag := sam.NewTag(opts.CorrectedUMITag)
	geneTag := sam.NewTag(opts.GeneTag)
	for {
		r, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, errors.E(err, "couldn't read bam record")
		}
		if !opts.inPartition(r) {
			continue
		}
		c, ok := result[r.Name]
		if !ok {
			return n, errors.E(errors.Precondition, fmt.Sprintf("no corrected umi for read %s", r.Name))
		}
		if err := setAux(r, umiTag, c.UMI); err != nil {
			return n, errors.E(err, r.Name)
		}
		if err := setAux(r, geneTag, c.Gene); err != nil {
			return n, errors.E(err, r.Name)
		}
		if err := writer.Write(r); err != nil {
			return n, errors.E(err, "couldn't write bam record", r.Name)
		}
		n++
	}
	return n, nil
}
