// Copyright 2025 Complyd Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// segmentExt is the file extension for ledger segments
	segmentExt = ".jsonl"
	// segmentDirMode restricts the ledger directory to its owner
	segmentDirMode = 0o700
	// segmentFileMode restricts segment files to their owner
	segmentFileMode = 0o600
	// maxLineSize is the longest segment line accepted on both the append
	// and the read path. Append rejects longer events; read skips longer
	// lines instead of failing the segment.
	maxLineSize = 1 << 20
	// readChunkSize is the buffer size for segment reads
	readChunkSize = 64 * 1024
)

// segmentStore manages the on-disk monthly segment files. Segments are
// append-only: the store never opens a segment for truncation or
// random-access write.
type segmentStore struct {
	baseDir string
	prefix  string
}

// newSegmentStore creates the base directory if needed. Failure here is
// fatal: without the directory the append contract cannot be honored.
func newSegmentStore(baseDir, prefix string) (*segmentStore, error) {
	if err := os.MkdirAll(baseDir, segmentDirMode); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	return &segmentStore{baseDir: baseDir, prefix: prefix}, nil
}

// segmentPath returns the segment file for the calendar month of t. Callers
// recompute this on every append so a month boundary rotates naturally.
func (s *segmentStore) segmentPath(t time.Time) string {
	t = t.UTC()
	name := fmt.Sprintf("%s-%04d-%02d%s", s.prefix, t.Year(), int(t.Month()), segmentExt)
	return filepath.Join(s.baseDir, name)
}

// appendLine appends one newline-terminated line to path and flushes it to
// disk before returning.
func (s *segmentStore) appendLine(path, line string) error {
	//nolint:gosec // path is derived from the configured base directory
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, segmentFileMode)
	if err != nil {
		return fmt.Errorf("failed to open segment for append: %w", err)
	}

	if _, err := f.WriteString(line + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write segment line: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to flush segment: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close segment: %w", err)
	}
	return nil
}

// listSegments returns all segment paths ascending by filename. Filenames
// embed the period, so lexicographic order equals chronological order.
func (s *segmentStore) listSegments() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, s.prefix+"-") || !strings.HasSuffix(name, segmentExt) {
			continue
		}
		paths = append(paths, filepath.Join(s.baseDir, name))
	}
	sort.Strings(paths)
	return paths, nil
}

// listSegmentsDesc returns segments most recent first
func (s *segmentStore) listSegmentsDesc() ([]string, error) {
	paths, err := s.listSegments()
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(paths)-1; i < j; i, j = i+1, j-1 {
		paths[i], paths[j] = paths[j], paths[i]
	}
	return paths, nil
}

// readLines returns the raw non-empty lines of a segment in file order. A
// missing segment reads as empty, and a line longer than maxLineSize is
// skipped without aborting the scan: a single damaged or foreign line must
// never make the rest of the segment unreadable. Decoding, and therefore the
// skipping of malformed lines, is the caller's concern; a reader racing an
// in-flight append may see the final line truncated mid-write.
func (s *segmentStore) readLines(path string) ([]string, error) {
	//nolint:gosec // path comes from listSegments under the base directory
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open segment: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	var lines []string
	reader := bufio.NewReaderSize(f, readChunkSize)
	var partial []byte
	oversized := false
	for {
		chunk, err := reader.ReadSlice('\n')
		partial = append(partial, chunk...)
		if len(partial) > maxLineSize {
			oversized = true
			partial = partial[:0]
		}

		if err == nil || errors.Is(err, io.EOF) {
			if !oversized {
				line := strings.TrimSpace(string(partial))
				if line != "" {
					lines = append(lines, line)
				}
			}
			partial = partial[:0]
			oversized = false
			if errors.Is(err, io.EOF) {
				return lines, nil
			}
			continue
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return nil, fmt.Errorf("failed to read segment: %w", err)
		}
	}
}
