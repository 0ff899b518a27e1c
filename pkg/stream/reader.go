package stream

import (
	"bytes"
	"io"
	"strings"
)

const readChunkSize = 4096

// LineReader splits a byte stream into newline-delimited lines, carrying any
// incomplete trailing fragment over to the next read. Splitting happens at
// the byte level, so a multi-byte character broken across chunk boundaries
// stays intact in the carry-over until its remaining bytes arrive.
type LineReader struct {
	r     io.Reader
	carry []byte
	chunk []byte
	lines [][]byte
	err   error
}

// NewLineReader wraps r, typically an HTTP response body.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{
		r:     r,
		chunk: make([]byte, readChunkSize),
	}
}

// Next returns the next complete line with its terminator stripped. At end
// of stream any non-empty carry-over is flushed as a final line, then io.EOF
// is returned. Read errors propagate as-is; no retry is attempted here.
func (lr *LineReader) Next() (string, error) {
	for {
		if len(lr.lines) > 0 {
			line := lr.lines[0]
			lr.lines = lr.lines[1:]
			return trimLineEnding(line), nil
		}

		if lr.err != nil {
			if lr.err == io.EOF && len(lr.carry) > 0 {
				line := lr.carry
				lr.carry = nil
				return trimLineEnding(line), nil
			}
			return "", lr.err
		}

		n, err := lr.r.Read(lr.chunk)
		if n > 0 {
			lr.carry = append(lr.carry, lr.chunk[:n]...)
			lr.splitCarry()
		}
		if err != nil {
			lr.err = err
		}
	}
}

// splitCarry moves every complete line out of the carry-over buffer, leaving
// the final unterminated fragment behind.
func (lr *LineReader) splitCarry() {
	for {
		idx := bytes.IndexByte(lr.carry, '\n')
		if idx < 0 {
			return
		}
		line := make([]byte, idx)
		copy(line, lr.carry[:idx])
		lr.lines = append(lr.lines, line)
		lr.carry = lr.carry[idx+1:]
	}
}

func trimLineEnding(line []byte) string {
	return strings.TrimSuffix(string(line), "\r")
}
