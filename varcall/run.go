package varcall

import (
	"context"
	"io"
	"math"
	"os"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/rosalind/accountant"
	"github.com/grailbio/rosalind/evaluator"
	"github.com/grailbio/rosalind/rerr"
	"github.com/grailbio/rosalind/twobit"
	"github.com/grailbio/rosalind/workspace"
	"github.com/pkg/errors"
)

// Config is the variants entry point's configuration, mirroring the external
// front-end's `variants` subcommand flags.
type Config struct {
	ReferencePath  string
	AlignmentsPath string
	// OutputPath receives the VCF; empty means stdout. Named outputs are
	// written to a temporary sibling and renamed on success.
	OutputPath  string
	RegionStart int64
	// RegionEnd of 0 means the end of the reference.
	RegionEnd int64
	// SampleName is the VCF sample column label; defaults to "sample".
	SampleName string
	Opts       Opts
}

// Run executes the full variant-calling pipeline: load the reference, stream
// coordinate-sorted SAM/BAM records through the pileup under the compressed
// evaluator, and emit VCF records in ascending position order.
func Run(ctx context.Context, cfg Config) error {
	opts := cfg.Opts
	if opts == (Opts{}) {
		opts = DefaultOpts
	}
	sample := cfg.SampleName
	if sample == "" {
		sample = "sample"
	}

	refFile, err := file.Open(ctx, cfg.ReferencePath)
	if err != nil {
		return errors.Wrapf(err, "varcall: open %s", cfg.ReferencePath)
	}
	defer refFile.Close(ctx) // nolint: errcheck
	ref, err := twobit.Load(refFile.Reader(ctx))
	if err != nil {
		return err
	}

	alnFile, err := file.Open(ctx, cfg.AlignmentsPath)
	if err != nil {
		return errors.Wrapf(err, "varcall: open %s", cfg.AlignmentsPath)
	}
	defer alnFile.Close(ctx) // nolint: errcheck
	in, err := openRecords(cfg.AlignmentsPath, alnFile.Reader(ctx))
	if err != nil {
		return err
	}

	out, finish, err := openOutput(cfg.OutputPath)
	if err != nil {
		return err
	}
	vw, err := newVCFWriter(out, ref, sample)
	if err != nil {
		finish(false) // nolint: errcheck
		return err
	}

	acct := accountant.New()
	regionEnd := cfg.RegionEnd
	if regionEnd == 0 {
		regionEnd = int64(ref.Len())
	}
	if cfg.RegionStart < 0 || regionEnd <= cfg.RegionStart {
		finish(false) // nolint: errcheck
		return rerr.E(rerr.InvalidInput, "varcall",
			errors.Errorf("invalid region [%d, %d)", cfg.RegionStart, regionEnd))
	}
	pool, err := newRunPool(uint64(regionEnd-cfg.RegionStart), acct)
	if err != nil {
		finish(false) // nolint: errcheck
		return err
	}
	caller, err := NewCaller(ref, cfg.RegionStart, regionEnd, opts, in,
		func(v *Variant) error { return vw.write(v) }, pool, acct)
	if err != nil {
		finish(false) // nolint: errcheck
		return err
	}
	defer caller.Close()

	ev := evaluator.New(caller.NumBlocks())
	acct.Observe("ledger", int64(ev.Ledger().Bytes()))
	root, _, err := ev.Run(caller.InitBoundary(), caller)
	if err != nil {
		finish(false) // nolint: errcheck
		return err
	}
	summary := root.(CallSummary)
	log.Debug.Printf("varcall: %d columns, %d variants, accountant %s",
		summary.Columns, summary.Variants, acct)

	if err := vw.Flush(); err != nil {
		finish(false) // nolint: errcheck
		return err
	}
	return finish(true)
}

// newRunPool sizes the workspace pool for one calling run. The multiplier
// is raised when c*sqrt(regionLen) cannot hold the caller's scratch slice.
func newRunPool(regionLen uint64, acct *accountant.Accountant) (*workspace.Pool, error) {
	c := workspace.DefaultMultiplier
	if need := float64(digestScratchBytes) / math.Sqrt(float64(regionLen)); need >= c {
		c = need + 1
		log.Debug.Printf("varcall: raising pool multiplier to %.1f for scratch", c)
	}
	return workspace.NewPool(regionLen,
		workspace.WithMultiplier(c),
		workspace.WithShare(PoolComponent, 1.0),
		workspace.WithAccountant(acct))
}

// openRecords wraps r in a SAM or BAM reader, chosen by the path suffix.
func openRecords(path string, r io.Reader) (RecordReader, error) {
	if strings.HasSuffix(path, ".bam") {
		br, err := bam.NewReader(r, 1)
		if err != nil {
			return nil, rerr.E(rerr.InvalidInput, "varcall", path, err)
		}
		return br, nil
	}
	sr, err := sam.NewReader(r)
	if err != nil {
		return nil, rerr.E(rerr.InvalidInput, "varcall", path, err)
	}
	return sr, nil
}

// openOutput mirrors align's atomic output discipline: write to a temporary
// sibling, rename on success, leave nothing behind on failure.
func openOutput(path string) (*os.File, func(bool) error, error) {
	if path == "" {
		return os.Stdout, func(bool) error { return nil }, nil
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "varcall: create %s", tmp)
	}
	finish := func(commit bool) error {
		closeErr := f.Close()
		if !commit {
			_ = os.Remove(tmp) // nolint: errcheck
			return closeErr
		}
		if closeErr != nil {
			_ = os.Remove(tmp) // nolint: errcheck
			return errors.Wrapf(closeErr, "varcall: close %s", tmp)
		}
		return errors.Wrapf(os.Rename(tmp, path), "varcall: rename %s", tmp)
	}
	return f, finish, nil
}
