package dataset

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sirupsen/logrus"
)

// FileSource reads records from local .jsonl or .json files matched by a doublestar
// glob. Files are read in sorted path order and the split range applies to the
// concatenation; the split name is ignored.
type FileSource struct {
	Pattern string
	Split   Split
	Fields  Fields
	Log     logrus.FieldLogger
}

func (s *FileSource) Load(ctx context.Context) ([]Row, error) {
	matches, err := doublestar.FilepathGlob(s.Pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", s.Pattern, err)
	}
	files := matches[:0]
	for _, m := range matches {
		ext := strings.ToLower(filepath.Ext(m))
		if ext == ".jsonl" || ext == ".json" {
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .json or .jsonl files match %s", s.Pattern)
	}
	sort.Strings(files)

	fields := s.Fields.withDefaults()
	var records []map[string]any
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		recs, err := readRecords(file)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}

	start, end := s.Split.Range(len(records))
	rows := make([]Row, 0, end-start)
	for i := start; i < end; i++ {
		rows = append(rows, fields.rowFromRecord(i, records[i]))
	}
	if s.Log != nil {
		s.Log.WithFields(logrus.Fields{
			"files": len(files),
			"total": len(records),
			"rows":  len(rows),
		}).Info("loaded dataset files")
	}
	return rows, nil
}

func readRecords(path string) ([]map[string]any, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var records []map[string]any
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return records, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []map[string]any
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("parse %s:%d: %w", path, line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return records, nil
}
