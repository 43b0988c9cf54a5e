// Package varcall implements the streaming variant caller: it consumes
// coordinate-sorted aligned reads over a single region, builds pileup
// columns block by block under the compressed evaluator, scores each column
// under a biallelic Bayesian model, and emits variants in strictly ascending
// position order.
package varcall

import (
	"github.com/grailbio/rosalind/interval"
)

// PosType is the coordinate type for flattened reference positions,
// shared with the interval package.
type PosType = interval.PosType

// Genotype indexes for the biallelic model.
const (
	GenotypeRR = iota // homozygous reference
	GenotypeRA        // heterozygous
	GenotypeAA        // homozygous alternate
)

// Variant classes, in emission order at a shared position.
const (
	classSNV = iota
	classInsertion
	classDeletion
)

// Opts configures one variant-calling run. The zero value is invalid; start
// from DefaultOpts.
type Opts struct {
	// MapqThreshold: reads with MAPQ strictly below are skipped.
	MapqThreshold int
	// MinQuality: variants with QUAL below are suppressed.
	MinQuality float64
	// MinDepth: columns with fewer called bases are not scored.
	MinDepth int
	// Prior is the flat alt prior pi; the genotype prior is
	// {RR: 1-pi, RA: pi/2, AA: pi/2}.
	Prior float64
	// BlockSize is the variant-caller block size b_v; 0 picks
	// ceil(sqrt(region length)).
	BlockSize int
	// IndelMinFraction and IndelMinReads gate indel emission: the dominant
	// indel allele must reach both thresholds.
	IndelMinFraction float64
	IndelMinReads    int
}

// DefaultOpts is the default calling configuration.
var DefaultOpts = Opts{
	MapqThreshold:    0,
	MinQuality:       10,
	MinDepth:         5,
	Prior:            1e-6,
	BlockSize:        0,
	IndelMinFraction: 0.20,
	IndelMinReads:    3,
}

// Variant is one emitted call. Pos is the 0-based anchor position within
// Chrom; the VCF emitter adds 1 for its 1-based POS column.
type Variant struct {
	Chrom string
	Pos   int64
	Ref   string
	Alt   string
	// AlleleFraction is the alt-supporting share of the column's depth.
	AlleleFraction float64
	// Qual is -10*log10(P(RR | data)), Phred-scaled.
	Qual float64
	// Genotype is GenotypeRA or GenotypeAA (RR columns are never emitted).
	Genotype int
	// GenotypeQual is the Phred gap between the best and second-best
	// genotype posteriors.
	GenotypeQual int
	Depth        int

	class int
}
