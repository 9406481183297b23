package parser

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const maxLineSize = 1024 * 1024 // 1MB max line size

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// StdinName is the path that selects standard input.
const StdinName = "-"

// FileSource implements LineSource for a single log file.
// Gzip and zstd compressed files are decompressed transparently.
type FileSource struct {
	path string

	file    *os.File
	reader  *ReaderSource
	decoder io.Closer
	opened  bool
}

// NewFileSource creates a LineSource that reads the file at path.
// The file is opened lazily on the first call to Next.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name returns the file path.
func (s *FileSource) Name() string {
	return s.path
}

// Next returns the next line of the file.
// Returns io.EOF when the file has been exhausted.
func (s *FileSource) Next(ctx context.Context) (*LogLine, error) {
	if !s.opened {
		if err := s.open(); err != nil {
			return nil, err
		}
	}
	if s.reader == nil {
		return nil, io.EOF
	}

	line, err := s.reader.Next(ctx)
	if err == io.EOF {
		if cerr := s.Close(); cerr != nil {
			return nil, fmt.Errorf("closing %s: %w", s.path, cerr)
		}
	}
	return line, err
}

// Close releases the underlying file.
func (s *FileSource) Close() error {
	s.reader = nil
	if s.decoder != nil {
		_ = s.decoder.Close()
		s.decoder = nil
	}
	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		return err
	}
	return nil
}

func (s *FileSource) open() error {
	s.opened = true

	f, err := os.Open(s.path) // #nosec G304 -- user-provided paths are expected
	if err != nil {
		return fmt.Errorf("opening log file %s: %w", s.path, err)
	}
	s.file = f

	r, closer, err := decompress(f)
	if err != nil {
		_ = f.Close()
		s.file = nil
		return fmt.Errorf("opening log file %s: %w", s.path, err)
	}
	s.decoder = closer
	s.reader = NewReaderSource(s.path, r)
	return nil
}

// decompress sniffs the first bytes of r and wraps it in a gzip or zstd
// decoder when needed. The returned closer is nil for plain text.
func decompress(r io.Reader) (io.Reader, io.Closer, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(zstdMagic))
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, nil, err
	}

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("reading gzip header: %w", err)
		}
		return zr, zr, nil
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("reading zstd header: %w", err)
		}
		rc := zr.IOReadCloser()
		return rc, rc, nil
	default:
		return br, nil, nil
	}
}

// ReaderSource implements LineSource over any io.Reader.
type ReaderSource struct {
	name    string
	scanner *bufio.Scanner
	lineNum int
}

// NewReaderSource creates a LineSource reading lines from r.
func NewReaderSource(name string, r io.Reader) *ReaderSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &ReaderSource{name: name, scanner: scanner}
}

// Name returns the name given at construction.
func (s *ReaderSource) Name() string {
	return s.name
}

// Next returns the next line from the reader.
func (s *ReaderSource) Next(ctx context.Context) (*LogLine, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if s.scanner.Scan() {
		s.lineNum++
		return &LogLine{
			Content: s.scanner.Text(),
			Source:  s.name,
			LineNum: s.lineNum,
		}, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.name, err)
	}
	return nil, io.EOF
}

// Close is a no-op; the caller owns the reader.
func (s *ReaderSource) Close() error {
	return nil
}

// OpenSources builds one LineSource per path, in order.
// The path "-" reads from stdin.
func OpenSources(paths []string) []LineSource {
	sources := make([]LineSource, 0, len(paths))
	for _, p := range paths {
		if p == StdinName {
			sources = append(sources, NewReaderSource("stdin", os.Stdin))
			continue
		}
		sources = append(sources, NewFileSource(p))
	}
	return sources
}
