package align

import (
	"encoding/binary"

	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/rosalind/evaluator"
	"github.com/grailbio/rosalind/rerr"
	"github.com/grailbio/rosalind/workspace"
	"github.com/minio/highwayhash"
	"github.com/pkg/errors"
)

// PoolComponent is the workspace-pool component name the aligner acquires
// its read buffer under.
const PoolComponent = "readbuf"

var zeroHashKey [32]byte

// batchBoundary is the aligner's rolling boundary: the index of the next
// unprocessed read. Everything else the next block needs (the reads, the
// index) is immutable input, so the boundary stays O(1).
type batchBoundary struct {
	nextRead int
}

func (b batchBoundary) Hash() uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(b.nextRead))
	return farm.Hash64(buf[:])
}

// BlockSummary aggregates one batch of aligned reads: counts plus an
// order-independent fingerprint (XOR of per-read digests), so merged
// summaries are identical regardless of how the merge tree groups the
// batches. The partition-invariance tests compare root summaries across
// block sizes byte for byte.
type BlockSummary struct {
	Reads       int64
	Mapped      int64
	Candidates  int64
	Fingerprint uint64
}

// Merge combines two adjacent batch summaries. Counts add and the
// fingerprint XORs, both associative, so any grouping of the same batches
// yields the same root.
func (s BlockSummary) Merge(sibling evaluator.Summary) (evaluator.Summary, error) {
	o, ok := sibling.(BlockSummary)
	if !ok {
		return nil, errors.Errorf("align: cannot merge %T into BlockSummary", sibling)
	}
	return BlockSummary{
		Reads:       s.Reads + o.Reads,
		Mapped:      s.Mapped + o.Mapped,
		Candidates:  s.Candidates + o.Candidates,
		Fingerprint: s.Fingerprint ^ o.Fingerprint,
	}, nil
}

// Processor aligns reads batch by batch under the compressed evaluator. One
// block is a contiguous run of perBatch reads; the per-block output is
// flushed to the sink in input order before the block summary is returned.
type Processor struct {
	reads    []Read
	perBatch int
	searcher *searcher
	opts     Opts
	pool     *workspace.Pool
	// sink receives each read's alignment in input order. The *Aligned and
	// its candidate slice are only valid during the call.
	sink func(*Aligned) error

	digest []byte // scratch for fingerprinting
}

// NewProcessor builds a Processor over reads. perBatch is the block size;
// NumBatches reports the matching block count for evaluator.New.
func NewProcessor(reads []Read, perBatch int, s *searcher, opts Opts, pool *workspace.Pool, sink func(*Aligned) error) *Processor {
	if perBatch < 1 {
		perBatch = 1
	}
	return &Processor{reads: reads, perBatch: perBatch, searcher: s, opts: opts, pool: pool, sink: sink}
}

// NumBatches returns the number of blocks this processor will evaluate.
func (p *Processor) NumBatches() int {
	n := (len(p.reads) + p.perBatch - 1) / p.perBatch
	if n < 1 {
		n = 1
	}
	return n
}

// InitBoundary returns the boundary preceding the first block.
func (p *Processor) InitBoundary() evaluator.Boundary {
	return batchBoundary{nextRead: 0}
}

// Process implements evaluator.BlockProcessor.
func (p *Processor) Process(boundary evaluator.Boundary, blockIndex int) (evaluator.Boundary, evaluator.Summary, error) {
	b, ok := boundary.(batchBoundary)
	if !ok || b.nextRead != blockIndex*p.perBatch {
		rerr.Invariant(rerr.BoundaryMismatch, "aligner boundary does not match block index")
	}
	start := b.nextRead
	end := start + p.perBatch
	if end > len(p.reads) {
		end = len(p.reads)
	}

	buf, release, err := p.pool.Acquire(PoolComponent, p.opts.MaxReadLen)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	var summary BlockSummary
	for i := start; i < end; i++ {
		aligned, err := p.alignOne(&p.reads[i], buf)
		if err != nil {
			return nil, nil, err
		}
		summary.Reads++
		summary.Candidates += int64(len(aligned.Candidates))
		if len(aligned.Candidates) > 0 {
			summary.Mapped++
		}
		summary.Fingerprint ^= p.fingerprint(aligned)
		if err := p.sink(aligned); err != nil {
			return nil, nil, err
		}
	}
	return batchBoundary{nextRead: end}, summary, nil
}

func (p *Processor) alignOne(r *Read, buf []byte) (*Aligned, error) {
	if len(r.Seq) > p.opts.MaxReadLen {
		return nil, rerr.E(rerr.InputTooLarge, "align", r.Name,
			errors.Errorf("read length %d exceeds buffer %d", len(r.Seq), p.opts.MaxReadLen))
	}
	out := &Aligned{Read: *r}
	if len(r.Seq) < p.opts.MinReadLen {
		return out, nil
	}
	seedStart, seedLen := seedSpan(r.Seq)
	out.SeedStart, out.SeedLen = seedStart, seedLen
	if seedLen < p.opts.MinReadLen {
		return out, nil
	}
	// The search reads from the workspace slice, not the caller's memory,
	// keeping the active working set inside the pool's accounted budget.
	n := copy(buf, r.Seq[seedStart:seedStart+seedLen])
	out.Candidates = p.searcher.search(buf[:n], 0, n)
	return out, nil
}

// fingerprint digests one read's placement: its name and every
// (position, mismatches) candidate pair.
func (p *Processor) fingerprint(a *Aligned) uint64 {
	d := p.digest[:0]
	d = append(d, a.Read.Name...)
	var u [8]byte
	for _, c := range a.Candidates {
		binary.LittleEndian.PutUint64(u[:], c.Pos)
		d = append(d, u[:]...)
		binary.LittleEndian.PutUint64(u[:], uint64(c.Mismatches))
		d = append(d, u[:]...)
	}
	p.digest = d
	return highwayhash.Sum64(d, zeroHashKey[:])
}
