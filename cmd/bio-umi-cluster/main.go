package main

/*
  bio-umi-cluster corrects UMIs by directional clustering. It reads a BAM
  file whose alignments carry a gene (GN), a corrected cell barcode (CB)
  and an uncorrected UMI (UR), clusters the UMIs of each (gene, barcode)
  group, and writes a copy of the alignments with the corrected UMI in UB
  and the gene, or a region name for unannotated alignments, in GN.
*/

import (
	"context"
	"fmt"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/umicluster/encoding/umibam"
	"github.com/grailbio/umicluster/umicorrect"
	"v.io/x/lib/cmdline"
)

type clusterOpts struct {
	bamPath     string
	outputPath  string
	metricsPath string
	correct     umicorrect.Opts
	bam         umibam.Opts
}

func newCmdRoot() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "bio-umi-cluster",
		Short:    "Correct UMIs by directional clustering within (gene, cell barcode) groups",
		ArgsName: "bampath",
	}
	opts := clusterOpts{
		correct: umicorrect.DefaultOpts,
		bam:     umibam.DefaultOpts,
	}
	cmd.Flags.StringVar(&opts.outputPath, "output", "tagged.sorted.bam", "Output BAM file with corrected UMIs in the UB tag")
	cmd.Flags.StringVar(&opts.metricsPath, "metrics", "", "Output metrics file")
	cmd.Flags.StringVar(&opts.bam.Ref, "ref", "", "Only process alignments on this reference. By default, process every alignment")
	cmd.Flags.IntVar(&opts.bam.RegionInterval, "ref-interval", opts.bam.RegionInterval,
		"Size of genomic window (bp) to assign as gene name if no gene is annotated")
	cmd.Flags.BoolVar(&opts.bam.PrimaryOnly, "primary-only", opts.bam.PrimaryOnly,
		"Cluster primary alignments only; secondary and supplementary alignments are tagged through their read name")
	cmd.Flags.BoolVar(&opts.bam.ValidateUMIs, "validate-umis", false, "Reject UMIs with bases other than ACGTN")
	cmd.Flags.IntVar(&opts.correct.Threshold, "threshold", opts.correct.Threshold,
		"Maximum edit distance between two UMIs that may be merged")
	cmd.Flags.IntVar(&opts.correct.Parallelism, "parallelism", opts.correct.Parallelism,
		"Number of (gene, barcode) groups to cluster concurrently")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("bio-umi-cluster takes one bam path, but got %v", argv)
		}
		opts.bamPath = argv[0]
		return cluster(vcontext.Background(), opts)
	})
	return cmd
}

// cluster reads opts.bamPath, corrects its UMIs, and writes the tagged
// alignments to opts.outputPath. No output is left behind on failure.
func cluster(ctx context.Context, opts clusterOpts) error {
	if err := opts.correct.Validate(); err != nil {
		return err
	}
	if err := opts.bam.Validate(); err != nil {
		return err
	}

	in, err := file.Open(ctx, opts.bamPath)
	if err != nil {
		return errors.E(err, "couldn't open input:", opts.bamPath)
	}
	_, records, err := umibam.ReadRecords(in.Reader(ctx), opts.bam)
	if e := in.Close(ctx); e != nil && err == nil {
		err = e
	}
	if err != nil {
		return errors.E(err, opts.bamPath)
	}
	log.Printf("read %d records from %s", len(records), opts.bamPath)

	result, metrics, err := umicorrect.Correct(ctx, records, opts.correct)
	if err != nil {
		return err
	}
	log.Printf("corrected %d reads, result digest %x", len(result), result.Digest())
	if opts.metricsPath != "" {
		if err := umicorrect.WriteMetrics(ctx, opts.metricsPath, metrics); err != nil {
			return err
		}
	}

	return writeTagged(ctx, opts, result)
}

// writeTagged copies the alignments of opts.bamPath to opts.outputPath with
// their corrections from result. The output file is removed if any step after
// its creation fails.
func writeTagged(ctx context.Context, opts clusterOpts, result umicorrect.Result) (err error) {
	created := false
	defer func() {
		if err == nil || !created {
			return
		}
		if e := file.Remove(ctx, opts.outputPath); e != nil {
			log.Error.Printf("remove %s: %v", opts.outputPath, e)
		}
	}()
	in, err := file.Open(ctx, opts.bamPath)
	if err != nil {
		return errors.E(err, "couldn't reopen input:", opts.bamPath)
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = errors.E(e, "couldn't close input:", opts.bamPath)
		}
	}()
	out, err := file.Create(ctx, opts.outputPath)
	if err != nil {
		return errors.E(err, "couldn't create output:", opts.outputPath)
	}
	created = true
	n, err := umibam.WriteTags(in.Reader(ctx), out.Writer(ctx), result, opts.bam)
	if e := out.Close(ctx); e != nil && err == nil {
		err = errors.E(e, "couldn't close output:", opts.outputPath)
	}
	if err != nil {
		return err
	}
	log.Printf("wrote %d records to %s", n, opts.outputPath)
	return nil
}

func main() {
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(newCmdRoot())
}
