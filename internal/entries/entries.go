package entries

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/claimroot/internal/model"
)

// DefaultBatchSize is the number of entries per review batch file
const DefaultBatchSize = 100

var batchFilePattern = regexp.MustCompile(`^batch-(\d+)\.jsonl$`)

// Read decodes JSONL entries from r. Blank lines and lines starting with
// '#' are skipped; any other malformed line is an error.
func Read(r io.Reader) ([]model.Entry, error) {
	var entries []model.Entry

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var e model.Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		entries = append(entries, e)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan entries: %w", err)
	}

	return entries, nil
}

// ReadFile reads a JSONL entries file
func ReadFile(path string) ([]model.Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open entries: %w", err)
	}
	defer func() { _ = file.Close() }()

	entries, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// Write encodes entries as JSONL, one object per line
func Write(w io.Writer, entries []model.Entry) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i, e := range entries {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return nil
}

// WriteFile writes entries to path, replacing any existing file
func WriteFile(path string, entries []model.Entry) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create entries file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close entries file: %w", closeErr)
		}
	}()

	w := bufio.NewWriter(file)
	if err := Write(w, entries); err != nil {
		return err
	}
	return w.Flush()
}

// WriteBatches splits entries into batch-1.jsonl, batch-2.jsonl, ... of at
// most size entries each and returns the paths written. Batch files left in
// dir by an earlier run are removed first so ReadDir sees only this run.
func WriteBatches(dir string, entries []model.Entry, size int) ([]string, error) {
	if size <= 0 {
		size = DefaultBatchSize
	}

	if err := RemoveBatches(dir); err != nil {
		return nil, err
	}

	var paths []string
	for start, n := 0, 1; start < len(entries); start, n = start+size, n+1 {
		end := start + size
		if end > len(entries) {
			end = len(entries)
		}
		path := filepath.Join(dir, fmt.Sprintf("batch-%d.jsonl", n))
		if err := WriteFile(path, entries[start:end]); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	return paths, nil
}

// BatchFiles lists the batch files in dir in batch-number order
func BatchFiles(dir string) ([]string, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read entries dir: %w", err)
	}

	type batch struct {
		n    int
		path string
	}
	var batches []batch
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		m := batchFilePattern.FindStringSubmatch(de.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		batches = append(batches, batch{n: n, path: filepath.Join(dir, de.Name())})
	}

	sort.Slice(batches, func(i, j int) bool { return batches[i].n < batches[j].n })

	paths := make([]string, len(batches))
	for i, b := range batches {
		paths[i] = b.path
	}
	return paths, nil
}

// RemoveBatches deletes every batch file in dir. Other files are left alone
// and a missing dir is not an error.
func RemoveBatches(dir string) error {
	paths, err := BatchFiles(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove stale batch: %w", err)
		}
	}
	return nil
}

// ReadDir concatenates every batch file in dir, in batch-number order
func ReadDir(dir string) ([]model.Entry, error) {
	paths, err := BatchFiles(dir)
	if err != nil {
		return nil, err
	}

	var all []model.Entry
	for _, path := range paths {
		entries, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	return all, nil
}
