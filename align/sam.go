package align

import (
	"io"
	"sort"

	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/rosalind/rerr"
	"github.com/grailbio/rosalind/twobit"
	"github.com/pkg/errors"
)

// Mapping qualities reported on emitted records: reads with a single
// candidate placement get MapqUnique, reads with several get MapqRepeat.
const (
	MapqUnique = 60
	MapqRepeat = 3
)

type recordWriter interface {
	Write(*sam.Record) error
}

// samEmitter converts Aligned results to SAM records, one per candidate
// (the best candidate primary, the rest flagged secondary), and streams them
// through a grailbio/hts writer. Record formatting is hts's job; the engine
// only fills in fields.
type samEmitter struct {
	contigs []twobit.Contig
	refs    []*sam.Reference
	w       recordWriter
	close   func() error
	offset  int
}

// newSAMEmitter builds the SAM/BAM header from the reference's contig table
// and returns an emitter, closed through its Close method. format is "sam"
// or "bam".
func newSAMEmitter(ref *twobit.Reference, out io.Writer, format string, offset int) (*samEmitter, error) {
	contigs := ref.Contigs()
	refs := make([]*sam.Reference, len(contigs))
	for i, c := range contigs {
		r, err := sam.NewReference(c.Name, "", "", int(c.Length), nil, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "align: contig %s", c.Name)
		}
		refs[i] = r
	}
	header, err := sam.NewHeader(nil, refs)
	if err != nil {
		return nil, errors.Wrap(err, "align: SAM header")
	}
	e := &samEmitter{contigs: contigs, refs: refs, offset: offset}
	switch format {
	case "", "sam":
		w, err := sam.NewWriter(out, header, sam.FlagDecimal)
		if err != nil {
			return nil, errors.Wrap(err, "align: SAM writer")
		}
		e.w = w
		e.close = func() error { return nil }
	case "bam":
		w, err := bam.NewWriter(out, header, 1)
		if err != nil {
			return nil, errors.Wrap(err, "align: BAM writer")
		}
		e.w = w
		e.close = w.Close
	default:
		return nil, rerr.E(rerr.InvalidInput, "align", errors.Errorf("unknown output format %q", format))
	}
	return e, nil
}

func (e *samEmitter) Close() error { return e.close() }

// contigAt maps a flattened reference position to its contig index.
func (e *samEmitter) contigAt(pos uint64) int {
	return sort.Search(len(e.contigs), func(i int) bool {
		return e.contigs[i].Offset+e.contigs[i].Length > pos
	})
}

// emit writes one record per candidate, or one unmapped record for a read
// with no candidates. Output order matches input order.
func (e *samEmitter) emit(a *Aligned) error {
	qual := a.Read.Qual
	if qual == nil {
		// hts requires a quality array matching the sequence; 0xff marks
		// "quality unavailable" per the SAM spec.
		qual = make([]byte, len(a.Read.Seq))
		for i := range qual {
			qual[i] = 0xff
		}
	}
	if len(a.Candidates) == 0 {
		rec := &sam.Record{
			Name:    a.Read.Name,
			Pos:     -1,
			MatePos: -1,
			Flags:   sam.Unmapped,
			Seq:     sam.NewSeq(a.Read.Seq),
			Qual:    qual,
		}
		return errors.Wrapf(e.w.Write(rec), "align: write %s", a.Read.Name)
	}

	mapq := byte(MapqUnique)
	if len(a.Candidates) > 1 {
		mapq = MapqRepeat
	}
	preClip := a.SeedStart
	postClip := len(a.Read.Seq) - a.SeedStart - a.SeedLen
	var cigar sam.Cigar
	if preClip > 0 {
		cigar = append(cigar, sam.NewCigarOp(sam.CigarSoftClipped, preClip))
	}
	cigar = append(cigar, sam.NewCigarOp(sam.CigarMatch, a.SeedLen))
	if postClip > 0 {
		cigar = append(cigar, sam.NewCigarOp(sam.CigarSoftClipped, postClip))
	}

	for i, c := range a.Candidates {
		ci := e.contigAt(c.Pos)
		rec := &sam.Record{
			Name:    a.Read.Name,
			Ref:     e.refs[ci],
			Pos:     int(c.Pos-e.contigs[ci].Offset) + e.offset,
			MapQ:    mapq,
			Cigar:   cigar,
			MatePos: -1,
			Seq:     sam.NewSeq(a.Read.Seq),
			Qual:    qual,
		}
		if i > 0 {
			rec.Flags |= sam.Secondary
		}
		if err := e.w.Write(rec); err != nil {
			return errors.Wrapf(err, "align: write %s", a.Read.Name)
		}
	}
	return nil
}
