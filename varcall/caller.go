package varcall

import (
	"encoding/binary"
	"io"
	"math"
	"sort"

	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/rosalind/accountant"
	"github.com/grailbio/rosalind/evaluator"
	"github.com/grailbio/rosalind/interval"
	"github.com/grailbio/rosalind/rerr"
	"github.com/grailbio/rosalind/twobit"
	"github.com/grailbio/rosalind/workspace"
	"github.com/minio/highwayhash"
	"github.com/pkg/errors"
)

// RecordReader yields coordinate-sorted *sam.Record values; it is satisfied
// by both grailbio/hts sam.Reader and bam.Reader. Read returns io.EOF at end
// of input.
type RecordReader interface {
	Read() (*sam.Record, error)
}

// tail is one in-flight read: the suffix of its CIGAR not yet applied to
// pileup columns. Reads crossing a block edge are carried to the next block
// as tails; this set is the variant caller's rolling boundary.
type tail struct {
	pos  int64 // next flattened reference position to apply
	qi   int   // read offset corresponding to pos
	ops  []sam.CigarOp
	seq  []byte
	mapq byte
	// anchored becomes true once the read has traversed at least one
	// reference position, i.e. once pos-1 is a position this read aligned
	// through. Indel evidence is only recorded when anchored, so a
	// malformed leading indel op never charges a column the read does not
	// cover.
	anchored bool
}

func (t *tail) done() bool { return len(t.ops) == 0 }

// callBoundary is the evaluator boundary between variant blocks.
type callBoundary struct {
	nextBlock int
	carry     []tail
	lastStart int64 // most recent accepted read start, for order checking
}

func (b callBoundary) Hash() uint64 {
	buf := make([]byte, 0, 24+16*len(b.carry))
	var u [8]byte
	binary.LittleEndian.PutUint64(u[:], uint64(b.nextBlock))
	buf = append(buf, u[:]...)
	binary.LittleEndian.PutUint64(u[:], uint64(b.lastStart))
	buf = append(buf, u[:]...)
	for _, t := range b.carry {
		binary.LittleEndian.PutUint64(u[:], uint64(t.pos))
		buf = append(buf, u[:]...)
		binary.LittleEndian.PutUint64(u[:], uint64(t.qi))
		buf = append(buf, u[:]...)
	}
	return farm.Hash64(buf)
}

// CallSummary aggregates per-block calling stats. Counts add and the
// fingerprint XORs, so merging is associative and the root summary is
// invariant to the block size.
type CallSummary struct {
	Columns     int64
	Variants    int64
	Fingerprint uint64
}

// Merge implements evaluator.Summary.
func (s CallSummary) Merge(sibling evaluator.Summary) (evaluator.Summary, error) {
	o, ok := sibling.(CallSummary)
	if !ok {
		return nil, errors.Errorf("varcall: cannot merge %T into CallSummary", sibling)
	}
	return CallSummary{
		Columns:     s.Columns + o.Columns,
		Variants:    s.Variants + o.Variants,
		Fingerprint: s.Fingerprint ^ o.Fingerprint,
	}, nil
}

// Caller is the streaming variant caller, exposed to the compressed
// evaluator as a block processor: one block is blockSize consecutive
// reference positions, and the block summary is the flushed calls.
type Caller struct {
	ref          *twobit.Reference
	contigs      []twobit.Contig
	contigOffset map[string]int64
	regionStart  int64
	regionEnd    int64
	blockSize    int
	opts         Opts
	in           RecordReader
	pending      *sam.Record
	eof          bool
	sink         func(*Variant) error
	columns      []column
	scanner      interval.UnionScanner
	acct         *accountant.Accountant

	digest        []byte
	releaseDigest func()
}

// PoolComponent is the workspace-pool component name the caller's scratch
// is acquired under.
const PoolComponent = "pileup"

// NewCaller validates the region against ref and prepares a caller that
// reads from in and emits through sink. pool, when non-nil, backs the
// caller's fingerprint scratch for the lifetime of the evaluation (Close
// releases it); acct may be nil.
func NewCaller(ref *twobit.Reference, regionStart, regionEnd int64, opts Opts, in RecordReader, sink func(*Variant) error, pool *workspace.Pool, acct *accountant.Accountant) (*Caller, error) {
	if regionEnd == 0 {
		regionEnd = int64(ref.Len())
	}
	if regionEnd > int64(ref.Len()) || regionEnd > interval.PosTypeMax {
		return nil, rerr.E(rerr.InvalidInput, "varcall",
			errors.Errorf("invalid region [%d, %d) over reference of length %d", regionStart, regionEnd, ref.Len()))
	}
	region, err := interval.NewRegion(PosType(regionStart), PosType(regionEnd))
	if err != nil {
		return nil, rerr.E(rerr.InvalidInput, "varcall", err)
	}
	blockSize := opts.BlockSize
	if blockSize <= 0 {
		blockSize = int(math.Ceil(math.Sqrt(float64(regionEnd - regionStart))))
	}
	contigs := ref.Contigs()
	offsets := make(map[string]int64, len(contigs))
	for _, c := range contigs {
		offsets[c.Name] = int64(c.Offset)
	}
	c := &Caller{
		ref:          ref,
		contigs:      contigs,
		contigOffset: offsets,
		regionStart:  regionStart,
		regionEnd:    regionEnd,
		blockSize:    blockSize,
		opts:         opts,
		in:           in,
		sink:         sink,
		columns:      make([]column, blockSize),
		scanner:      region.Scanner(),
		acct:         acct,
	}
	if pool != nil {
		buf, release, err := pool.Acquire(PoolComponent, digestScratchBytes)
		if err != nil {
			return nil, err
		}
		c.digest, c.releaseDigest = buf[:0], release
	}
	if acct != nil {
		acct.Observe("columns", int64(blockSize))
	}
	return c, nil
}

const digestScratchBytes = 4096

// Close releases the caller's workspace slice. Safe to call when no pool
// was supplied.
func (c *Caller) Close() {
	if c.releaseDigest != nil {
		c.releaseDigest()
		c.releaseDigest = nil
	}
}

// NumBlocks returns the evaluator block count for this region.
func (c *Caller) NumBlocks() int {
	n := int((int64(c.blockSize) - 1 + c.regionEnd - c.regionStart) / int64(c.blockSize))
	if n < 1 {
		n = 1
	}
	return n
}

// InitBoundary returns the boundary preceding the first block.
func (c *Caller) InitBoundary() evaluator.Boundary {
	return callBoundary{nextBlock: 0, lastStart: -1}
}

// Process implements evaluator.BlockProcessor: apply carried read tails,
// consume input reads starting inside this block, then flush the block's
// columns in ascending position order.
func (c *Caller) Process(boundary evaluator.Boundary, blockIndex int) (evaluator.Boundary, evaluator.Summary, error) {
	b, ok := boundary.(callBoundary)
	if !ok || b.nextBlock != blockIndex {
		rerr.Invariant(rerr.BoundaryMismatch, "variant caller boundary does not match block index")
	}
	blockStart := c.regionStart + int64(blockIndex)*int64(c.blockSize)
	blockEnd := blockStart + int64(c.blockSize)
	if blockEnd > c.regionEnd {
		blockEnd = c.regionEnd
	}
	width := int(blockEnd - blockStart)
	for i := 0; i < width; i++ {
		c.columns[i].reset()
	}

	var carry []tail
	for _, t := range b.carry {
		c.applyTail(&t, blockStart, blockEnd)
		if !t.done() {
			carry = append(carry, t)
		}
	}

	lastStart := b.lastStart
	for {
		rec, err := c.next()
		if err != nil {
			return nil, nil, err
		}
		if rec == nil {
			break
		}
		if rec.Flags&sam.Unmapped != 0 || rec.Ref == nil || rec.Pos < 0 {
			continue
		}
		off, ok := c.contigOffset[rec.Ref.Name()]
		if !ok {
			return nil, nil, rerr.E(rerr.InvalidInput, "varcall", rec.Name,
				errors.Errorf("read mapped to unknown contig %s", rec.Ref.Name()))
		}
		start := off + int64(rec.Pos)
		if start < lastStart {
			return nil, nil, rerr.E(rerr.UnsortedInput, "varcall", rec.Name,
				errors.Errorf("read at %d follows read at %d", start, lastStart))
		}
		lastStart = start
		if start >= blockEnd {
			c.pending = rec
			break
		}
		if int(rec.MapQ) < c.opts.MapqThreshold {
			continue
		}
		span, _ := rec.Cigar.Lengths()
		if start+int64(span) <= c.regionStart || start >= c.regionEnd {
			continue // outside the region: skipped, not an error
		}
		t := tail{
			pos:  start,
			ops:  append([]sam.CigarOp(nil), rec.Cigar...),
			seq:  rec.Seq.Expand(),
			mapq: rec.MapQ,
		}
		c.applyTail(&t, blockStart, blockEnd)
		if !t.done() {
			carry = append(carry, t)
		}
	}

	summary := CallSummary{Columns: int64(width)}
	var spanStart, spanEnd PosType
	for c.scanner.Scan(&spanStart, &spanEnd, PosType(blockEnd)) {
		for pos := spanStart; pos < spanEnd; pos++ {
			variants, err := c.flushColumn(int64(pos), &c.columns[int64(pos)-blockStart])
			if err != nil {
				return nil, nil, err
			}
			for _, v := range variants {
				summary.Variants++
				summary.Fingerprint ^= c.fingerprint(v)
				if err := c.sink(v); err != nil {
					return nil, nil, err
				}
			}
		}
	}

	if c.acct != nil {
		c.acct.Observe("boundary", int64(len(carry)-len(b.carry)))
	}
	return callBoundary{nextBlock: blockIndex + 1, carry: carry, lastStart: lastStart}, summary, nil
}

func (c *Caller) next() (*sam.Record, error) {
	if c.pending != nil {
		rec := c.pending
		c.pending = nil
		return rec, nil
	}
	if c.eof {
		return nil, nil
	}
	rec, err := c.in.Read()
	if err == io.EOF {
		c.eof = true
		return nil, nil
	}
	if err != nil {
		return nil, rerr.E(rerr.InvalidInput, "varcall", err)
	}
	return rec, nil
}

// applyTail advances t through [blockStart, blockEnd), adding its evidence
// to the block's columns, and stops at the block edge. Indel evidence is
// anchored at the position before the indel; an indel op whose anchor falls
// inside this block is consumed here even when the read's aligned span
// continues past blockEnd, which is what keeps the evidence independent of
// the block partition.
func (c *Caller) applyTail(t *tail, blockStart, blockEnd int64) {
	for len(t.ops) > 0 {
		op := t.ops[0]
		n := int64(op.Len())
		switch op.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			if t.pos >= blockEnd {
				return
			}
			take := blockEnd - t.pos
			if take > n {
				take = n
			}
			for k := int64(0); k < take; k++ {
				pos := t.pos + k
				if pos >= blockStart && pos >= c.regionStart && pos < c.regionEnd {
					c.columns[pos-blockStart].addBase(t.seq[t.qi+int(k)], t.mapq)
				}
			}
			t.pos += take
			t.qi += int(take)
			t.anchored = true
			if take < n {
				t.ops[0] = sam.NewCigarOp(op.Type(), int(n-take))
				return
			}
			t.ops = t.ops[1:]
		case sam.CigarInsertion:
			anchor := t.pos - 1
			if anchor >= blockEnd {
				return
			}
			if t.anchored && anchor >= blockStart && anchor >= c.regionStart && anchor < c.regionEnd {
				c.columns[anchor-blockStart].addInsertion(t.seq[t.qi : t.qi+int(n)])
			}
			t.qi += int(n)
			t.ops = t.ops[1:]
		case sam.CigarDeletion:
			anchor := t.pos - 1
			if anchor >= blockEnd {
				return
			}
			if t.anchored && anchor >= blockStart && anchor >= c.regionStart && anchor < c.regionEnd {
				c.columns[anchor-blockStart].addDeletion(uint32(n))
			}
			t.pos += n
			t.anchored = true
			t.ops = t.ops[1:]
		case sam.CigarSkipped:
			t.pos += n
			t.ops = t.ops[1:]
		case sam.CigarSoftClipped:
			t.qi += int(n)
			t.ops = t.ops[1:]
		default: // hard clip, padding
			t.ops = t.ops[1:]
		}
	}
}

// flushColumn scores one finished column and returns its calls ordered SNV,
// insertion, deletion. Columns whose
// reference base is ambiguous are skipped: no REF allele can be stated.
func (c *Caller) flushColumn(pos int64, col *column) ([]*Variant, error) {
	if c.ref.IsAmbiguous(uint64(pos)) {
		return nil, nil
	}
	refCode := c.ref.Code(uint64(pos))
	chrom, relPos := c.locate(pos)
	var out []*Variant

	if call, ok := col.score(refCode, &c.opts); ok && call.genotype != GenotypeRR && call.qual >= c.opts.MinQuality {
		out = append(out, &Variant{
			Chrom:          chrom,
			Pos:            relPos,
			Ref:            string(codeToBase[refCode]),
			Alt:            string(codeToBase[call.alt]),
			AlleleFraction: call.af,
			Qual:           call.qual,
			Genotype:       call.genotype,
			GenotypeQual:   call.gq,
			Depth:          call.depth,
			class:          classSNV,
		})
	}

	depth := col.depth()
	if seq, count := col.dominantInsertion(); count > 0 && c.indelSupported(count, depth) {
		out = append(out, c.indelVariant(chrom, relPos, string(codeToBase[refCode]),
			string(codeToBase[refCode])+seq, count, depth, classInsertion))
	}
	if delLen, count := col.dominantDeletion(); count > 0 && c.indelSupported(count, depth) {
		end := uint64(pos) + 1 + uint64(delLen)
		if end <= c.ref.Len() {
			deleted, err := c.ref.Slice(uint64(pos)+1, end)
			if err != nil {
				return nil, err
			}
			out = append(out, c.indelVariant(chrom, relPos, string(codeToBase[refCode])+deleted,
				string(codeToBase[refCode]), count, depth, classDeletion))
		}
	}
	return out, nil
}

func (c *Caller) indelSupported(count uint32, depth int) bool {
	return int(count) >= c.opts.IndelMinReads &&
		depth > 0 && float64(count) >= c.opts.IndelMinFraction*float64(depth)
}

// indelVariant builds an indel call. Indels carry no per-base likelihood
// model here; quality scales with supporting reads and the genotype is
// inferred from the allele fraction. Recorded as an open-question decision
// in DESIGN.md.
func (c *Caller) indelVariant(chrom string, pos int64, ref, alt string, count uint32, depth int, class int) *Variant {
	qual := 10 * float64(count)
	if qual > 3000 {
		qual = 3000
	}
	af := float64(count) / float64(depth)
	gt := GenotypeRA
	if af >= 0.8 {
		gt = GenotypeAA
	}
	return &Variant{
		Chrom:          chrom,
		Pos:            pos,
		Ref:            ref,
		Alt:            alt,
		AlleleFraction: af,
		Qual:           qual,
		Genotype:       gt,
		GenotypeQual:   int(qual),
		Depth:          depth,
		class:          class,
	}
}

// locate maps a flattened position to (contig name, contig-relative 0-based
// position).
func (c *Caller) locate(pos int64) (string, int64) {
	i := sort.Search(len(c.contigs), func(i int) bool {
		return int64(c.contigs[i].Offset+c.contigs[i].Length) > pos
	})
	return c.contigs[i].Name, pos - int64(c.contigs[i].Offset)
}

func (c *Caller) fingerprint(v *Variant) uint64 {
	d := c.digest[:0]
	d = append(d, v.Chrom...)
	var u [8]byte
	binary.LittleEndian.PutUint64(u[:], uint64(v.Pos))
	d = append(d, u[:]...)
	d = append(d, v.Ref...)
	d = append(d, v.Alt...)
	binary.LittleEndian.PutUint64(u[:], math.Float64bits(v.Qual))
	d = append(d, u[:]...)
	c.digest = d
	return highwayhash.Sum64(d, zeroHashKey[:])
}

var zeroHashKey [32]byte
