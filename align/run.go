package align

import (
	"context"
	"math"
	"os"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/rosalind/accountant"
	"github.com/grailbio/rosalind/evaluator"
	"github.com/grailbio/rosalind/fmindex"
	"github.com/grailbio/rosalind/twobit"
	"github.com/grailbio/rosalind/workspace"
	"github.com/pkg/errors"
)

// Config is the align entry point's configuration, mirroring the external
// front-end's `align` subcommand flags.
type Config struct {
	ReferencePath string
	ReadsPath     string
	// OutputPath receives the SAM/BAM stream; empty means stdout. A named
	// output is written to a temporary sibling and renamed on success, so
	// no partial file survives an error path.
	OutputPath string
	// Format is "sam" (default) or "bam".
	Format string
	// ReferenceOffset shifts all reported alignment positions, for callers
	// aligning against an excised reference window.
	ReferenceOffset int
	Opts            Opts
}

// Run executes the full alignment pipeline: load the reference, build the
// FM-index, scan reads, align them under the compressed evaluator, and
// stream SAM/BAM records in input order.
func Run(ctx context.Context, cfg Config) error {
	opts := cfg.Opts
	if opts == (Opts{}) {
		opts = DefaultOpts
	}

	refFile, err := file.Open(ctx, cfg.ReferencePath)
	if err != nil {
		return errors.Wrapf(err, "align: open %s", cfg.ReferencePath)
	}
	defer refFile.Close(ctx) // nolint: errcheck
	ref, err := twobit.Load(refFile.Reader(ctx))
	if err != nil {
		return err
	}
	ix, err := fmindex.Build(ref)
	if err != nil {
		return err
	}

	readsFile, err := file.Open(ctx, cfg.ReadsPath)
	if err != nil {
		return errors.Wrapf(err, "align: open %s", cfg.ReadsPath)
	}
	defer readsFile.Close(ctx) // nolint: errcheck
	sc := NewScanner(readsFile.Reader(ctx))
	var reads []Read
	var r Read
	for sc.Scan(&r) {
		reads = append(reads, r)
	}
	if err := sc.Err(); err != nil {
		return err
	}

	out, finish, err := openOutput(cfg.OutputPath)
	if err != nil {
		return err
	}
	emitter, err := newSAMEmitter(ref, out, cfg.Format, cfg.ReferenceOffset)
	if err != nil {
		finish(false) // nolint: errcheck
		return err
	}

	acct := accountant.New()
	pool, err := newRunPool(ref.Len(), opts, acct)
	if err != nil {
		finish(false) // nolint: errcheck
		return err
	}

	perBatch := int(math.Ceil(math.Sqrt(float64(len(reads)))))
	proc := NewProcessor(reads, perBatch, newSearcher(ix, opts), opts, pool, emitter.emit)
	ev := evaluator.New(proc.NumBatches())
	acct.Observe("ledger", int64(ev.Ledger().Bytes()))

	root, _, err := ev.Run(proc.InitBoundary(), proc)
	if err != nil {
		finish(false) // nolint: errcheck
		return err
	}
	summary := root.(BlockSummary)
	log.Debug.Printf("align: %d reads, %d mapped, %d candidates, accountant %s",
		summary.Reads, summary.Mapped, summary.Candidates, acct)

	if err := emitter.Close(); err != nil {
		finish(false) // nolint: errcheck
		return err
	}
	return finish(true)
}

// newRunPool sizes the workspace pool for one alignment run. The multiplier
// is raised when c*sqrt(N) would not hold even a single read buffer; the
// raise is logged at debug level.
func newRunPool(refLen uint64, opts Opts, acct *accountant.Accountant) (*workspace.Pool, error) {
	c := workspace.DefaultMultiplier
	if need := float64(opts.MaxReadLen) / math.Sqrt(float64(refLen)); need >= c {
		c = need + 1
		log.Debug.Printf("align: raising pool multiplier to %.1f for read buffer", c)
	}
	return workspace.NewPool(refLen,
		workspace.WithMultiplier(c),
		workspace.WithShare(PoolComponent, 1.0),
		workspace.WithAccountant(acct))
}

// openOutput returns the output writer plus a finish closure. finish(true)
// commits (atomically renaming the temporary file over the target);
// finish(false) aborts and removes the temporary.
func openOutput(path string) (*os.File, func(bool) error, error) {
	if path == "" {
		return os.Stdout, func(bool) error { return nil }, nil
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "align: create %s", tmp)
	}
	finish := func(commit bool) error {
		closeErr := f.Close()
		if !commit {
			_ = os.Remove(tmp) // nolint: errcheck
			return closeErr
		}
		if closeErr != nil {
			_ = os.Remove(tmp) // nolint: errcheck
			return errors.Wrapf(closeErr, "align: close %s", tmp)
		}
		return errors.Wrapf(os.Rename(tmp, path), "align: rename %s", tmp)
	}
	return f, finish, nil
}
