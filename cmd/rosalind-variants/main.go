package main

/*
rosalind-variants calls variants from coordinate-sorted SAM/BAM alignments
against a FASTA reference and streams VCF. It is a thin smoke-test wrapper
around varcall.Run; the production front-end lives outside this repository.
*/

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/rosalind/rerr"
	"github.com/grailbio/rosalind/varcall"
)

var (
	reference   = flag.String("reference", "", "Reference FASTA path (required)")
	alignments  = flag.String("alignments", "", "Coordinate-sorted SAM/BAM path (required)")
	output      = flag.String("output", "", "Output VCF path; default stdout")
	mapq        = flag.Int("mapq-threshold", varcall.DefaultOpts.MapqThreshold, "Reads with MAPQ below this level are skipped")
	regionStart = flag.Int64("region-start", 0, "0-based start of the calling region")
	regionEnd   = flag.Int64("region-end", 0, "0-based end of the calling region; 0 = reference end")
	minQuality  = flag.Float64("min-quality", varcall.DefaultOpts.MinQuality, "Variants with QUAL below this are suppressed")
	prior       = flag.Float64("prior", varcall.DefaultOpts.Prior, "Flat alt-allele prior")
	minDepth    = flag.Int("min-depth", varcall.DefaultOpts.MinDepth, "Columns with fewer called bases are not scored")
	blockSize   = flag.Int("block-size", 0, "Variant block size; 0 = sqrt of region length")
	sample      = flag.String("sample", "sample", "VCF sample column label")
)

func usage() {
	fmt.Printf("Usage: %s -reference <path> -alignments <path> [OPTIONS]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()
	defer rerr.HandleInvariantExit()

	if *reference == "" || *alignments == "" {
		log.Fatalf("-reference and -alignments are required; run with -help for usage")
	}
	ctx := vcontext.Background()
	opts := varcall.DefaultOpts
	opts.MapqThreshold = *mapq
	opts.MinQuality = *minQuality
	opts.Prior = *prior
	opts.MinDepth = *minDepth
	opts.BlockSize = *blockSize
	cfg := varcall.Config{
		ReferencePath:  *reference,
		AlignmentsPath: *alignments,
		OutputPath:     *output,
		RegionStart:    *regionStart,
		RegionEnd:      *regionEnd,
		SampleName:     *sample,
		Opts:           opts,
	}
	if err := varcall.Run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "rosalind-variants: %v; check the input files and flags\n", err)
		os.Exit(1)
	}
	log.Debug.Printf("exiting")
}
