package varcall

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/grailbio/rosalind/twobit"
	"github.com/pkg/errors"
)

// vcfWriter streams spec-compliant VCFv4.2 records: CHROM, POS (1-based),
// ID=".", REF, ALT, QUAL, FILTER, INFO (DP, AF), FORMAT (GT:GQ:DP). It is a
// thin emitter; all call semantics live in the Caller.
type vcfWriter struct {
	w *bufio.Writer
}

func newVCFWriter(w io.Writer, ref *twobit.Reference, sample string) (*vcfWriter, error) {
	vw := &vcfWriter{w: bufio.NewWriter(w)}
	if err := vw.writeHeader(ref, sample); err != nil {
		return nil, err
	}
	return vw, nil
}

func (vw *vcfWriter) writeHeader(ref *twobit.Reference, sample string) error {
	fmt.Fprintf(vw.w, "##fileformat=VCFv4.2\n")
	fmt.Fprintf(vw.w, "##source=rosalind\n")
	for _, c := range ref.Contigs() {
		fmt.Fprintf(vw.w, "##contig=<ID=%s,length=%d>\n", c.Name, c.Length)
	}
	fmt.Fprintf(vw.w, "##INFO=<ID=DP,Number=1,Type=Integer,Description=\"Total depth\">\n")
	fmt.Fprintf(vw.w, "##INFO=<ID=AF,Number=A,Type=Float,Description=\"Allele fraction\">\n")
	fmt.Fprintf(vw.w, "##FORMAT=<ID=GT,Number=1,Type=String,Description=\"Genotype\">\n")
	fmt.Fprintf(vw.w, "##FORMAT=<ID=GQ,Number=1,Type=Integer,Description=\"Genotype quality\">\n")
	fmt.Fprintf(vw.w, "##FORMAT=<ID=DP,Number=1,Type=Integer,Description=\"Depth\">\n")
	_, err := fmt.Fprintf(vw.w, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\t%s\n", sample)
	return errors.Wrap(err, "varcall: write VCF header")
}

func (vw *vcfWriter) write(v *Variant) error {
	gt := "0/1"
	if v.Genotype == GenotypeAA {
		gt = "1/1"
	}
	_, err := fmt.Fprintf(vw.w, "%s\t%d\t.\t%s\t%s\t%s\tPASS\tDP=%d;AF=%s\tGT:GQ:DP\t%s:%d:%d\n",
		v.Chrom, v.Pos+1, v.Ref, v.Alt,
		strconv.FormatFloat(v.Qual, 'f', 0, 64),
		v.Depth,
		strconv.FormatFloat(v.AlleleFraction, 'f', 6, 64),
		gt, v.GenotypeQual, v.Depth)
	return errors.Wrap(err, "varcall: write VCF record")
}

func (vw *vcfWriter) Flush() error {
	return errors.Wrap(vw.w.Flush(), "varcall: flush VCF")
}
