package twobit

import (
	"bufio"
	"io"
	"strings"

	"github.com/grailbio/base/unsafe"
	"github.com/grailbio/rosalind/rerr"
	"github.com/pkg/errors"
)

const mib = 1024 * 1024
const bufferInitSize = 64 * mib

// Contig identifies one named sequence within a (possibly multi-FASTA)
// Reference, and its [Offset, Offset+Length) span in the reference's
// flattened coordinate space.
type Contig struct {
	Name   string
	Offset uint64
	Length uint64
}

// Reference is an immutable, 2-bit packed nucleotide sequence over
// {A,C,G,T,N}, shared read-only by every downstream consumer. Multiple
// FASTA contigs are concatenated into one flat coordinate space, the way
// biopb.Coord addresses BAM reference positions.
type Reference struct {
	packed    []byte // 2 bits/base, ASCIITo2bit layout
	ambiguous ambiguityBitmap
	length    uint64
	contigs   []Contig
	byName    map[string]int
}

// ambiguityBitmap is a hand-rolled bit-per-position set flagging which
// flattened reference positions are 'N' (or any non-ACGT symbol). It is
// intentionally not a generic dependency: it is one bit per base, touched
// only during construction and during the O(1) Base() lookup, so there is
// no throughput-sensitive bulk-scan use case here to justify reaching for
// a SIMD-oriented bitset library (see DESIGN.md).
type ambiguityBitmap struct {
	words []uint64
}

func newAmbiguityBitmap(n uint64) ambiguityBitmap {
	return ambiguityBitmap{words: make([]uint64, (n+63)/64)}
}

func (a *ambiguityBitmap) set(pos uint64) {
	a.words[pos/64] |= 1 << (pos % 64)
}

func (a ambiguityBitmap) get(pos uint64) bool {
	return a.words[pos/64]&(1<<(pos%64)) != 0
}

// Len returns the total number of bases across all contigs.
func (r *Reference) Len() uint64 { return r.length }

// Contigs returns the contig table in FASTA appearance order.
func (r *Reference) Contigs() []Contig { return append([]Contig(nil), r.contigs...) }

// ContigLen returns the length of the named contig.
func (r *Reference) ContigLen(name string) (uint64, error) {
	idx, ok := r.byName[name]
	if !ok {
		return 0, rerr.E(rerr.InvalidInput, "ContigLen", name)
	}
	return r.contigs[idx].Length, nil
}

// Base returns the ASCII base ('A','C','G','T', or 'N') at the flattened
// reference position pos.
func (r *Reference) Base(pos uint64) byte {
	if r.ambiguous.get(pos) {
		return 'N'
	}
	return codeToASCII[unpackBase(r.packed, pos)]
}

// Code returns the 2-bit code (0..3) at pos; the caller must separately
// check IsAmbiguous if N-masking matters, since a masked position still
// carries an arbitrary (zero) code value underneath.
func (r *Reference) Code(pos uint64) byte {
	return unpackBase(r.packed, pos)
}

// IsAmbiguous reports whether the flattened reference position pos is 'N'
// (or was any other non-ACGT symbol in the source FASTA).
func (r *Reference) IsAmbiguous(pos uint64) bool {
	return r.ambiguous.get(pos)
}

// Packed exposes the raw 2-bit packed bytes, e.g. for fmindex construction.
func (r *Reference) Packed() []byte { return r.packed }

// Slice returns the ASCII bases in [start, end) of the flattened reference.
func (r *Reference) Slice(start, end uint64) (string, error) {
	if end <= start || end > r.length {
		return "", rerr.E(rerr.InvalidInput, "Slice")
	}
	buf := make([]byte, end-start)
	for i := range buf {
		buf[i] = r.Base(start + uint64(i))
	}
	return unsafe.BytesToString(buf), nil
}

// Load parses FASTA-formatted data from r into a Reference, concatenating
// all contigs into one flattened 2-bit packed coordinate space. The parsing
// loop is adapted from encoding/fasta.New's newEagerUnindexed (sequence
// names are the text after '>' up to the first space; blank lines are
// skipped); unlike that package, Load packs bases into 2 bits immediately
// rather than retaining the ASCII text, since the reference's resident
// footprint must not grow with genome size beyond the packed + ambiguity
// representation.
func Load(r io.Reader) (*Reference, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, bufferInitSize)

	type rawContig struct {
		name string
		seq  strings.Builder
	}
	var raw []*rawContig
	var cur *rawContig
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			name := strings.SplitN(line[1:], " ", 2)[0]
			if name == "" {
				return nil, rerr.E(rerr.InvalidInput, "Load", errors.New("empty contig name"))
			}
			cur = &rawContig{name: name}
			raw = append(raw, cur)
			continue
		}
		if cur == nil {
			return nil, rerr.E(rerr.InvalidInput, "Load", errors.New("sequence data before first '>' header"))
		}
		cur.seq.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, rerr.E(rerr.InvalidInput, "Load", err)
	}
	if len(raw) == 0 {
		return nil, rerr.E(rerr.InvalidInput, "Load", errors.New("no sequences found"))
	}

	ref := &Reference{byName: make(map[string]int, len(raw))}
	var offset uint64
	for _, rc := range raw {
		seq := rc.seq.String()
		if _, dup := ref.byName[rc.name]; dup {
			return nil, rerr.E(rerr.InvalidInput, "Load", rc.name, errors.New("duplicate contig name"))
		}
		ref.byName[rc.name] = len(ref.contigs)
		ref.contigs = append(ref.contigs, Contig{Name: rc.name, Offset: offset, Length: uint64(len(seq))})
		offset += uint64(len(seq))
	}
	ref.length = offset
	ref.packed = make([]byte, (offset+3)/4)
	ref.ambiguous = newAmbiguityBitmap(offset)

	var pos uint64
	for _, rc := range raw {
		seq := rc.seq.String()
		ascii := unsafe.StringToBytes(seq)
		for i, b := range ascii {
			if !isACGT[b] {
				ref.ambiguous.set(pos + uint64(i))
			}
		}
		packInto(ref.packed, pos, ascii)
		pos += uint64(len(ascii))
	}
	return ref, nil
}

// packInto packs ascii into dst starting at flattened bit-position start
// (in bases, i.e. dst's 2-bit-per-base coordinate space), handling the case
// where start is not a multiple of 4 by packing base-by-base at the
// boundary.
func packInto(dst []byte, start uint64, ascii []byte) {
	pos := start
	i := 0
	for pos%4 != 0 && i < len(ascii) {
		setBase(dst, pos, asciiToCode[ascii[i]])
		pos++
		i++
	}
	if rem := len(ascii) - i; rem > 0 {
		aligned := rem &^ 3
		if aligned > 0 {
			packASCII(dst[pos/4:pos/4+uint64(aligned)/4], ascii[i:i+aligned])
			pos += uint64(aligned)
			i += aligned
		}
		for ; i < len(ascii); i++ {
			setBase(dst, pos, asciiToCode[ascii[i]])
			pos++
		}
	}
}

func setBase(dst []byte, pos uint64, code byte) {
	shift := uint(2 * (pos & 3))
	dst[pos>>2] = (dst[pos>>2] &^ (3 << shift)) | (code << shift)
}
