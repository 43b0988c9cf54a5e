package align

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/rosalind/rerr"
)

// Scanner reads FASTQ or plain one-read-per-line input, sniffing the format
// from the first byte ('@' starts a FASTQ record). Scan returns false at EOF
// or error; Err distinguishes the two afterwards.
type Scanner struct {
	b      *bufio.Scanner
	fastq  bool
	primed bool
	err    error
	record int64
}

const maxLineBytes = 16 * 1024 * 1024

// NewScanner wraps r. Format sniffing happens lazily on the first Scan.
func NewScanner(r io.Reader) *Scanner {
	b := bufio.NewScanner(r)
	b.Buffer(nil, maxLineBytes)
	return &Scanner{b: b}
}

// Err returns the terminal error, nil after a clean EOF.
func (s *Scanner) Err() error { return s.err }

// Record returns the 1-based index of the most recently scanned read, for
// error context.
func (s *Scanner) Record() int64 { return s.record }

// Scan parses the next read into out. Sequences are validated to the
// {A,C,G,T,N} alphabet (case-insensitive); anything else is InvalidInput
// carrying the record number.
func (s *Scanner) Scan(out *Read) bool {
	if s.err != nil {
		return false
	}
	if !s.b.Scan() {
		s.err = s.b.Err()
		return false
	}
	line := s.b.Text()
	for line == "" {
		if !s.b.Scan() {
			s.err = s.b.Err()
			return false
		}
		line = s.b.Text()
	}
	if !s.primed {
		s.primed = true
		s.fastq = line[0] == '@'
	}
	s.record++
	if s.fastq {
		return s.scanFASTQ(line, out)
	}
	out.Name = fmt.Sprintf("read%d", s.record)
	out.Seq = []byte(line)
	out.Qual = nil
	return s.validate(out.Seq)
}

func (s *Scanner) scanFASTQ(idLine string, out *Read) bool {
	if idLine[0] != '@' {
		s.err = rerr.E(rerr.InvalidInput, "fastq", s.record, fmt.Errorf("ID line does not start with '@'"))
		return false
	}
	out.Name = strings.SplitN(idLine[1:], " ", 2)[0]
	seq, ok := s.nextLine("truncated FASTQ record: missing sequence")
	if !ok {
		return false
	}
	plus, ok := s.nextLine("truncated FASTQ record: missing '+' line")
	if !ok {
		return false
	}
	if len(plus) == 0 || plus[0] != '+' {
		s.err = rerr.E(rerr.InvalidInput, "fastq", s.record, fmt.Errorf("line 3 does not start with '+'"))
		return false
	}
	qual, ok := s.nextLine("truncated FASTQ record: missing quality")
	if !ok {
		return false
	}
	if len(qual) != len(seq) {
		s.err = rerr.E(rerr.InvalidInput, "fastq", s.record, fmt.Errorf("sequence and quality lengths differ"))
		return false
	}
	out.Seq = []byte(seq)
	out.Qual = make([]byte, len(qual))
	for i := 0; i < len(qual); i++ {
		if qual[i] < '!' {
			s.err = rerr.E(rerr.InvalidInput, "fastq", s.record, fmt.Errorf("quality character out of range"))
			return false
		}
		out.Qual[i] = qual[i] - '!'
	}
	return s.validate(out.Seq)
}

func (s *Scanner) nextLine(short string) (string, bool) {
	if !s.b.Scan() {
		if s.err = s.b.Err(); s.err == nil {
			s.err = rerr.E(rerr.InvalidInput, "fastq", s.record, fmt.Errorf("%s", short))
		}
		return "", false
	}
	return s.b.Text(), true
}

func (s *Scanner) validate(seq []byte) bool {
	for i, b := range seq {
		switch b {
		case 'A', 'C', 'G', 'T', 'N', 'a', 'c', 'g', 't', 'n':
		default:
			s.err = rerr.E(rerr.InvalidInput, "read", s.record,
				fmt.Errorf("symbol %q at read offset %d is outside {A,C,G,T,N}", b, i))
			return false
		}
	}
	return true
}
