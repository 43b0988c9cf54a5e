package main

/*
rosalind-align aligns reads against a FASTA reference and streams SAM or BAM
records. It is a thin smoke-test wrapper around align.Run; the production
front-end lives outside this repository.
*/

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/rosalind/align"
	"github.com/grailbio/rosalind/rerr"
)

var (
	reference       = flag.String("reference", "", "Reference FASTA path (required)")
	reads           = flag.String("reads", "", "Reads path, FASTQ or one read per line (required)")
	format          = flag.String("format", "sam", "Output format; 'sam' or 'bam'")
	output          = flag.String("output", "", "Output path; default stdout")
	maxMismatches   = flag.Int("max-mismatches", align.DefaultMaxMismatches, "Per-read mismatch budget")
	maxCandidates   = flag.Int("max-candidates", align.DefaultMaxCandidates, "Candidate cap per read")
	referenceOffset = flag.Int("reference-offset", 0, "Shift applied to all reported positions")
)

func usage() {
	fmt.Printf("Usage: %s -reference <path> -reads <path> [OPTIONS]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()
	defer rerr.HandleInvariantExit()

	if *reference == "" || *reads == "" {
		log.Fatalf("-reference and -reads are required; run with -help for usage")
	}
	ctx := vcontext.Background()
	opts := align.DefaultOpts
	opts.MaxMismatches = *maxMismatches
	opts.MaxCandidates = *maxCandidates
	cfg := align.Config{
		ReferencePath:   *reference,
		ReadsPath:       *reads,
		OutputPath:      *output,
		Format:          *format,
		ReferenceOffset: *referenceOffset,
		Opts:            opts,
	}
	if err := align.Run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "rosalind-align: %v; check the input files and flags\n", err)
		os.Exit(1)
	}
	log.Debug.Printf("exiting")
}
