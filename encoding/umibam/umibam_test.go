package umibam

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/grailbio/umicluster/umicorrect"
)

var (
	chr1, _   = sam.NewReference("chr1", "", "", 100000, nil, nil)
	chr2, _   = sam.NewReference("chr2", "", "", 100000, nil, nil)
	header, _ = sam.NewHeader(nil, []*sam.Reference{chr1, chr2})
)

func newAux(name string, val interface{}) sam.Aux {
	aux, err := sam.NewAux(sam.NewTag(name), val)
	if err != nil {
		panic(fmt.Sprintf("error creating %s %v tag: %v", name, val, err))
	}
	return aux
}

// newRecord returns a 10M alignment at pos with the given tags.
func newRecord(name string, ref *sam.Reference, pos int, flags sam.Flags, aux ...sam.Aux) *sam.Record {
	r, err := sam.NewRecord(name, ref, nil, pos, -1, 0, 60,
		[]sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 10)},
		[]byte("ACGTACGTAC"), []byte("IIIIIIIIII"), aux)
	if err != nil {
		panic(err)
	}
	r.Flags = flags
	return r
}

func tagged(name string, ref *sam.Reference, pos int, flags sam.Flags, gene, barcode, umi string) *sam.Record {
	return newRecord(name, ref, pos, flags, newAux("GN", gene), newAux("CB", barcode), newAux("UR", umi))
}

func writeBAM(t *testing.T, records ...*sam.Record) []byte {
	var buf bytes.Buffer
	w, err := bam.NewWriter(&buf, header, 1)
	assert.NoError(t, err)
	for _, r := range records {
		assert.NoError(t, w.Write(r))
	}
	assert.NoError(t, w.Close())
	return buf.Bytes()
}

func readBAM(t *testing.T, data []byte) []*sam.Record {
	r, err := bam.NewReader(bytes.NewReader(data), 1)
	assert.NoError(t, err)
	defer r.Close()
	var records []*sam.Record
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		assert.NoError(t, err)
		records = append(records, rec)
	}
	return records
}

func TestRegionName(t *testing.T) {
	tests := []struct {
		ref        string
		start, end int
		interval   int
		want       string
	}{
		{"chr1", 100, 199, 1000, "chr1_0_1000"},
		{"chr1", 1500, 2600, 1000, "chr1_2000_3000"},
		// The midpoint sits on a window boundary.
		{"chr1", 900, 1100, 1000, "chr1_1000_1000"},
		{"chr1", 0, 0, 1000, "chr1_0_0"},
		{"chrX", 12345, 12355, 100, "chrX_12300_12400"},
		{"chr1", -10, -5, 100, "chr1_-100_0"},
	}
	for _, test := range tests {
		expect.EQ(t, RegionName(test.ref, test.start, test.end, test.interval), test.want)
	}
}

func TestReadRecords(t *testing.T) {
	data := writeBAM(t,
		tagged("r1", chr1, 100, 0, "GENE1", "AAAACCCC", "ACGTAC"),
		tagged("r2", chr1, 1495, 0, "NA", "AAAACCCC", "ACGTAA"),
		tagged("r2", chr1, 4996, sam.Secondary, "NA", "AAAACCCC", "ACGTAA"),
		tagged("r3", chr2, 200, 0, "GENE2", "GGGGTTTT", "TTTTTT"),
	)

	h, records, err := ReadRecords(bytes.NewReader(data), DefaultOpts)
	assert.NoError(t, err)
	expect.EQ(t, len(h.Refs()), 2)
	expect.EQ(t, records, []umicorrect.ReadRecord{
		{ReadID: "r1", Gene: "GENE1", Barcode: "AAAACCCC", UMI: "ACGTAC"},
		// Aligned to [1495, 1504], midpoint 1499.
		{ReadID: "r2", Gene: "chr1_1000_2000", Barcode: "AAAACCCC", UMI: "ACGTAA"},
		{ReadID: "r3", Gene: "GENE2", Barcode: "GGGGTTTT", UMI: "TTTTTT"},
	})

	opts := DefaultOpts
	opts.Ref = "chr2"
	_, records, err = ReadRecords(bytes.NewReader(data), opts)
	assert.NoError(t, err)
	expect.EQ(t, records, []umicorrect.ReadRecord{
		{ReadID: "r3", Gene: "GENE2", Barcode: "GGGGTTTT", UMI: "TTTTTT"},
	})

	opts = DefaultOpts
	opts.PrimaryOnly = false
	_, records, err = ReadRecords(bytes.NewReader(data), opts)
	assert.NoError(t, err)
	expect.EQ(t, len(records), 4)
	// Aligned to [4996, 5005], midpoint 5000.
	expect.EQ(t, records[2].Gene, "chr1_5000_5000")
}

func TestReadRecordsPrimaryElsewhere(t *testing.T) {
	data := writeBAM(t,
		tagged("r0", chr1, 100, 0, "GENE1", "AAAACCCC", "ACGTAC"),
		tagged("r1", chr1, 300, sam.Supplementary, "GENE1", "AAAACCCC", "ACGTAA"),
		tagged("r1", chr1, 700, sam.Secondary, "GENE1", "AAAACCCC", "ACGTAA"),
		tagged("r1", chr2, 200, 0, "GENE2", "AAAACCCC", "ACGTAA"),
		// The supplementary comes first, the primary replaces it.
		tagged("r2", chr1, 900, sam.Supplementary, "NA", "AAAACCCC", "TTTTTT"),
		tagged("r2", chr1, 1500, 0, "NA", "AAAACCCC", "TTTTTT"),
	)
	opts := DefaultOpts
	opts.Ref = "chr1"
	_, records, err := ReadRecords(bytes.NewReader(data), opts)
	assert.NoError(t, err)
	expect.EQ(t, records, []umicorrect.ReadRecord{
		{ReadID: "r0", Gene: "GENE1", Barcode: "AAAACCCC", UMI: "ACGTAC"},
		{ReadID: "r1", Gene: "GENE1", Barcode: "AAAACCCC", UMI: "ACGTAA"},
		{ReadID: "r2", Gene: "chr1_1000_2000", Barcode: "AAAACCCC", UMI: "TTTTTT"},
	})

	result, _, err := umicorrect.Correct(context.Background(), records, umicorrect.Opts{Threshold: 1, Parallelism: 2})
	assert.NoError(t, err)
	var out bytes.Buffer
	n, err := WriteTags(bytes.NewReader(data), &out, result, opts)
	assert.NoError(t, err)
	expect.EQ(t, n, 5)
	for _, r := range readBAM(t, out.Bytes()) {
		expect.EQ(t, r.AuxFields.Get(sam.NewTag("UB")).Value(), result[r.Name].UMI, r.Name)
	}
	// Equal counts break ties by the smaller UMI.
	expect.EQ(t, result["r0"], umicorrect.Correction{UMI: "ACGTAA", Gene: "GENE1"})
}

func TestReadRecordsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		record *sam.Record
		substr string
	}{
		{
			"missing umi",
			newRecord("r1", chr1, 100, 0, newAux("GN", "G"), newAux("CB", "AAAA")),
			"UR tag not found in r1",
		},
		{
			"missing barcode",
			newRecord("r1", chr1, 100, 0, newAux("GN", "G"), newAux("UR", "ACGT")),
			"CB tag not found in r1",
		},
		{
			"missing gene",
			newRecord("r1", chr1, 100, 0, newAux("CB", "AAAA"), newAux("UR", "ACGT")),
			"GN tag not found in r1",
		},
		{
			"integer umi",
			newRecord("r1", chr1, 100, 0, newAux("GN", "G"), newAux("CB", "AAAA"), newAux("UR", int32(7))),
			"UR tag of r1 is not a string",
		},
	}
	for _, test := range tests {
		_, _, err := ReadRecords(bytes.NewReader(writeBAM(t, test.record)), DefaultOpts)
		expect.True(t, errors.Is(errors.Invalid, err), test.name)
		expect.HasSubstr(t, err.Error(), test.substr, test.name)
	}

	data := writeBAM(t, tagged("r1", chr1, 100, 0, "G", "AAAA", "ACXT"))
	_, _, err := ReadRecords(bytes.NewReader(data), DefaultOpts)
	assert.NoError(t, err)
	opts := DefaultOpts
	opts.ValidateUMIs = true
	_, _, err = ReadRecords(bytes.NewReader(data), opts)
	expect.True(t, errors.Is(errors.Invalid, err), err)
}

func TestOptsValidate(t *testing.T) {
	expect.NoError(t, DefaultOpts.Validate())
	opts := DefaultOpts
	opts.RegionInterval = 0
	expect.True(t, errors.Is(errors.Invalid, opts.Validate()))
	opts = DefaultOpts
	opts.CorrectedUMITag = "UMI"
	expect.True(t, errors.Is(errors.Invalid, opts.Validate()))
}

func TestWriteTags(t *testing.T) {
	data := writeBAM(t,
		tagged("r1", chr1, 100, 0, "GENE1", "AAAACCCC", "ACGTAC"),
		tagged("r2", chr1, 1495, 0, "NA", "AAAACCCC", "ACGTAA"),
		tagged("r2", chr1, 5000, sam.Supplementary, "NA", "AAAACCCC", "ACGTAA"),
		tagged("r3", chr2, 200, 0, "GENE2", "GGGGTTTT", "TTTTTT"),
	)
	result := umicorrect.Result{
		"r1": {UMI: "ACGTAC", Gene: "GENE1"},
		"r2": {UMI: "ACGTAC", Gene: "chr1_1000_2000"},
	}
	opts := DefaultOpts
	opts.Ref = "chr1"
	var out bytes.Buffer
	n, err := WriteTags(bytes.NewReader(data), &out, result, opts)
	assert.NoError(t, err)
	expect.EQ(t, n, 3)

	records := readBAM(t, out.Bytes())
	expect.EQ(t, len(records), 3)
	rawUMIs := []string{"ACGTAC", "ACGTAA", "ACGTAA"}
	for i, r := range records {
		want := result[r.Name]
		expect.EQ(t, r.AuxFields.Get(sam.NewTag("UB")).Value(), want.UMI, r.Name)
		expect.EQ(t, r.AuxFields.Get(sam.NewTag("GN")).Value(), want.Gene, r.Name)
		// The uncorrected UMI is kept, and GN is not duplicated.
		expect.EQ(t, r.AuxFields.Get(sam.NewTag("UR")).Value(), rawUMIs[i], r.Name)
		nGN := 0
		for _, aux := range r.AuxFields {
			if aux.Tag() == sam.NewTag("GN") {
				nGN++
			}
		}
		expect.EQ(t, nGN, 1, r.Name)
	}

	// r3 is on chr2 and has no result.
	opts.Ref = ""
	_, err = WriteTags(bytes.NewReader(data), &bytes.Buffer{}, result, opts)
	expect.True(t, errors.Is(errors.Precondition, err), err)
	expect.HasSubstr(t, err.Error(), "r3")
}

func TestMain(m *testing.M) {
	shutdown := grail.Init()
	defer shutdown()
	os.Exit(m.Run())
}
