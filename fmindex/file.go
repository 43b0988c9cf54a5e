// On-disk FM-index format: a fixed header versioned by magic number,
// followed by 8-byte-aligned sections holding the C-array, the BWT symbols,
// the rank checkpoints, and the sampled suffix array. The layout matches the
// in-memory representation exactly so Open can memory-map the file and alias
// every section in place.
package fmindex

import (
	"bufio"
	"encoding/binary"
	"os"
	"reflect"
	"unsafe"

	"github.com/grailbio/rosalind/rerr"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	// Magic identifies a Rosalind FM-index file ("ROSAFMIX").
	Magic = uint64(0x524f5341464d4958)
	// FormatVersion is bumped on any layout change; Open rejects files
	// with a different version rather than guessing.
	FormatVersion = uint32(1)

	headerSize = 64
)

type header struct {
	magic        uint64
	version      uint32
	blockSize    uint32
	samplingRate uint32
	_            uint32
	rows         uint64
	textLen      uint64
	nCheckpoints uint64
}

func pad8(n uint64) uint64 { return (n + 7) &^ 7 }

// Save writes the index to path in the mmap-ready format. The file is
// written to a temporary sibling path and renamed into place on success, so
// a failed Save never leaves a partial index behind.
func (ix *Index) Save(path string) (err error) {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "fmindex.Save")
	}
	defer func() {
		if err != nil {
			_ = f.Close()      // nolint: errcheck
			_ = os.Remove(tmp) // nolint: errcheck
		}
	}()
	w := bufio.NewWriter(f)
	if err = ix.serialize(w); err != nil {
		return err
	}
	if err = w.Flush(); err != nil {
		return errors.Wrap(err, "fmindex.Save: flush")
	}
	if err = f.Close(); err != nil {
		return errors.Wrap(err, "fmindex.Save: close")
	}
	return errors.Wrap(os.Rename(tmp, path), "fmindex.Save: rename")
}

func (ix *Index) serialize(w *bufio.Writer) error {
	var hdr [headerSize]byte
	binary.LittleEndian.PutUint64(hdr[0:], Magic)
	binary.LittleEndian.PutUint32(hdr[8:], FormatVersion)
	binary.LittleEndian.PutUint32(hdr[12:], uint32(ix.blockSize))
	binary.LittleEndian.PutUint32(hdr[16:], uint32(ix.samplingRate))
	binary.LittleEndian.PutUint64(hdr[24:], ix.n)
	binary.LittleEndian.PutUint64(hdr[32:], ix.textLen)
	binary.LittleEndian.PutUint64(hdr[40:], uint64(len(ix.checkpoints)))
	if _, err := w.Write(hdr[:]); err != nil {
		return errors.Wrap(err, "fmindex: write header")
	}
	var u64 [8]byte
	for _, c := range ix.cArray {
		binary.LittleEndian.PutUint64(u64[:], c)
		if _, err := w.Write(u64[:]); err != nil {
			return errors.Wrap(err, "fmindex: write C-array")
		}
	}
	if _, err := w.Write(ix.bwt); err != nil {
		return errors.Wrap(err, "fmindex: write BWT")
	}
	if err := writePad(w, pad8(ix.n)-ix.n); err != nil {
		return err
	}
	var u32 [4]byte
	for _, cp := range ix.checkpoints {
		for _, c := range cp {
			binary.LittleEndian.PutUint32(u32[:], c)
			if _, err := w.Write(u32[:]); err != nil {
				return errors.Wrap(err, "fmindex: write checkpoints")
			}
		}
	}
	cpBytes := uint64(len(ix.checkpoints)) * numSymbols * 4
	if err := writePad(w, pad8(cpBytes)-cpBytes); err != nil {
		return err
	}
	for _, s := range ix.sampledSA {
		binary.LittleEndian.PutUint32(u32[:], uint32(s))
		if _, err := w.Write(u32[:]); err != nil {
			return errors.Wrap(err, "fmindex: write sampled SA")
		}
	}
	saBytes := ix.n * 4
	return writePad(w, pad8(saBytes)-saBytes)
}

func writePad(w *bufio.Writer, n uint64) error {
	for i := uint64(0); i < n; i++ {
		if err := w.WriteByte(0); err != nil {
			return errors.Wrap(err, "fmindex: pad")
		}
	}
	return nil
}

// Open memory-maps the index file at path. The returned Index aliases the
// mapping directly; the caller must Close it to release the mapping. The
// format is only guaranteed readable on the architecture that wrote it
// (little-endian layout, host alignment), which is the documented contract
// for "implementation-defined" index files.
func Open(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, rerr.E(rerr.InvalidInput, "fmindex.Open", path, err)
	}
	defer f.Close() // nolint: errcheck
	st, err := f.Stat()
	if err != nil {
		return nil, rerr.E(rerr.InvalidInput, "fmindex.Open", path, err)
	}
	if st.Size() < headerSize {
		return nil, rerr.E(rerr.InvalidInput, "fmindex.Open", path, errors.New("file shorter than header"))
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, rerr.E(rerr.InvalidInput, "fmindex.Open", path, err)
	}
	ix, err := fromMapping(data)
	if err != nil {
		_ = unix.Munmap(data) // nolint: errcheck
		return nil, rerr.E(rerr.InvalidInput, "fmindex.Open", path, err)
	}
	return ix, nil
}

func fromMapping(data []byte) (*Index, error) {
	var h header
	h.magic = binary.LittleEndian.Uint64(data[0:])
	h.version = binary.LittleEndian.Uint32(data[8:])
	h.blockSize = binary.LittleEndian.Uint32(data[12:])
	h.samplingRate = binary.LittleEndian.Uint32(data[16:])
	h.rows = binary.LittleEndian.Uint64(data[24:])
	h.textLen = binary.LittleEndian.Uint64(data[32:])
	h.nCheckpoints = binary.LittleEndian.Uint64(data[40:])
	if h.magic != Magic {
		return nil, errors.Errorf("bad magic %016x", h.magic)
	}
	if h.version != FormatVersion {
		return nil, errors.Errorf("unsupported format version %d (want %d)", h.version, FormatVersion)
	}
	off := uint64(headerSize)
	cBytes := uint64(numSymbols * 8)
	bwtBytes := pad8(h.rows)
	cpBytes := pad8(h.nCheckpoints * numSymbols * 4)
	saBytes := pad8(h.rows * 4)
	if uint64(len(data)) < off+cBytes+bwtBytes+cpBytes+saBytes {
		return nil, errors.New("truncated index file")
	}
	ix := &Index{
		n:            h.rows,
		textLen:      h.textLen,
		blockSize:    int(h.blockSize),
		samplingRate: int(h.samplingRate),
		mapped:       data,
	}
	for s := 0; s < numSymbols; s++ {
		ix.cArray[s] = binary.LittleEndian.Uint64(data[off+uint64(s)*8:])
	}
	off += cBytes
	ix.bwt = data[off : off+h.rows : off+h.rows]
	off += bwtBytes
	ix.checkpoints = castCheckpoints(data[off:off+h.nCheckpoints*numSymbols*4], int(h.nCheckpoints))
	off += cpBytes
	ix.sampledSA = castInt32s(data[off : off+h.rows*4])
	return ix, nil
}

// Close releases the memory mapping backing an Open'd index. It is a no-op
// for indexes constructed by Build.
func (ix *Index) Close() error {
	if ix.mapped == nil {
		return nil
	}
	m := ix.mapped
	ix.mapped = nil
	ix.bwt = nil
	ix.checkpoints = nil
	ix.sampledSA = nil
	return errors.Wrap(unix.Munmap(m), "fmindex.Close")
}

// castCheckpoints reinterprets little-endian bytes as checkpoint entries in
// place. Safe because the serialized layout is exactly the in-memory layout
// on the architectures this engine targets.
func castCheckpoints(b []byte, n int) [][numSymbols]uint32 {
	var out [][numSymbols]uint32
	hdr := (*reflect.SliceHeader)(unsafe.Pointer(&out))
	hdr.Data = (*reflect.SliceHeader)(unsafe.Pointer(&b)).Data
	hdr.Len = n
	hdr.Cap = n
	return out
}

func castInt32s(b []byte) []int32 {
	var out []int32
	hdr := (*reflect.SliceHeader)(unsafe.Pointer(&out))
	hdr.Data = (*reflect.SliceHeader)(unsafe.Pointer(&b)).Data
	hdr.Len = len(b) / 4
	hdr.Cap = len(b) / 4
	return out
}
