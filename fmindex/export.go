package fmindex

import (
	"bufio"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// ExportCompressed writes the index's on-disk format through gzip, for cold
// archival or transfer. The result is NOT mmap-able: Open requires the
// uncompressed layout, because rank and locate need random access to the
// BWT and SA sections. Decompress before Open.
func (ix *Index) ExportCompressed(w io.Writer) error {
	zw := gzip.NewWriter(w)
	bw := bufio.NewWriter(zw)
	if err := ix.serialize(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, "fmindex.ExportCompressed: flush")
	}
	return errors.Wrap(zw.Close(), "fmindex.ExportCompressed: close gzip stream")
}
