// Copyright 2019 Featix Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package textio provides line-oriented access to source files, with
// transparent decompression of gzip-compressed input.
package textio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// maxLineSize bounds the length of a single input line.  Sequence files can
// carry very long lines, so the limit is generous.
const maxLineSize = 16 << 20

// Open opens path for reading.  Gzip content is detected by its magic bytes
// and decompressed transparently, regardless of file extension.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %v", path, err)
	}
	br := bufio.NewReader(f)
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("opening gzip stream in %s: %v", path, err)
		}
		return &readCloser{r: gz, close: func() error {
			gz.Close()
			return f.Close()
		}}, nil
	}
	return &readCloser{r: br, close: f.Close}, nil
}

type readCloser struct {
	r     io.Reader
	close func() error
}

func (rc *readCloser) Read(p []byte) (int, error) { return rc.r.Read(p) }
func (rc *readCloser) Close() error               { return rc.close() }

// Scanner reads a source file one line at a time, tracking the one-based
// line number for error reporting.
type Scanner struct {
	scanner *bufio.Scanner
	line    int
}

// NewScanner returns a Scanner over r.
func NewScanner(r io.Reader) *Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), maxLineSize)
	return &Scanner{scanner: s}
}

// Scan advances to the next line.
func (s *Scanner) Scan() bool {
	if !s.scanner.Scan() {
		return false
	}
	s.line++
	return true
}

// Line returns the one-based number of the current line.
func (s *Scanner) Line() int {
	return s.line
}

// Text returns the current line with the trailing carriage return, if any,
// removed.
func (s *Scanner) Text() string {
	return strings.TrimSuffix(s.scanner.Text(), "\r")
}

// Err returns the first error encountered by the scanner.
func (s *Scanner) Err() error {
	return s.scanner.Err()
}
