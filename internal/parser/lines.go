package parser

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// lineSource reads lines and supports pushing back one line, which is how an
// identifier found while reading a record body is carried over to the next
// record.
type lineSource struct {
	reader  *bufio.Reader
	line    []byte // reusable buffer for reading lines
	lineNo  int
	carried *string
	err     error

	truncatedAt int // line after which the stream ended abruptly
}

func newLineSource(r io.Reader) *lineSource {
	return &lineSource{
		reader: bufio.NewReaderSize(r, 1<<20), // 1MB buffer
		line:   make([]byte, 0, 512),
	}
}

// next returns the next line without its terminator. A truncated compressed
// stream ends like a normal file; truncatedAt records where.
func (s *lineSource) next() (string, error) {
	if s.carried != nil {
		l := *s.carried
		s.carried = nil
		s.lineNo++
		return l, nil
	}
	if s.err != nil {
		return "", s.err
	}
	line, err := s.readLine()
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			s.truncatedAt = s.lineNo
			err = io.EOF
		}
		s.err = err
		return "", err
	}
	s.lineNo++
	return string(line), nil
}

func (s *lineSource) unread(line string) {
	s.carried = &line
	s.lineNo--
}

// readLine reads a line from the input, stripping the newline.
// Reuses an internal buffer to minimize allocations.
func (s *lineSource) readLine() ([]byte, error) {
	s.line = s.line[:0]

	for {
		segment, isPrefix, err := s.reader.ReadLine()
		if err != nil {
			return nil, err
		}

		s.line = append(s.line, segment...)

		if !isPrefix {
			break
		}
	}

	// Trim any trailing CR (for Windows line endings)
	s.line = bytes.TrimSuffix(s.line, []byte{'\r'})

	return s.line, nil
}
