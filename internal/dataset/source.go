// Package dataset loads instruction/output rows from the Hugging Face datasets
// server or from local JSON files.
package dataset

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/DreamCats/vecload/internal/config"
)

// Row is one dataset record. Index is the row number within the split.
type Row struct {
	Index       int
	Instruction string
	Output      string
}

// Source produces the rows of one split.
type Source interface {
	Load(ctx context.Context) ([]Row, error)
}

// Fields names the record keys holding the instruction and output texts.
type Fields struct {
	Instruction string
	Output      string
}

func (f Fields) withDefaults() Fields {
	if f.Instruction == "" {
		f.Instruction = "instruction"
	}
	if f.Output == "" {
		f.Output = "output"
	}
	return f
}

// rowFromRecord reads the configured fields; non-string values count as missing.
func (f Fields) rowFromRecord(index int, record map[string]any) Row {
	row := Row{Index: index}
	if v, ok := record[f.Instruction].(string); ok {
		row.Instruction = v
	}
	if v, ok := record[f.Output].(string); ok {
		row.Output = v
	}
	return row
}

// NewSource picks a FileSource when cfg.Path is set, otherwise a HubSource.
func NewSource(cfg config.DatasetConfig, log logrus.FieldLogger) (Source, error) {
	split, err := ParseSplit(cfg.Split)
	if err != nil {
		return nil, err
	}
	fields := Fields{Instruction: cfg.InstructionField, Output: cfg.OutputField}
	if strings.TrimSpace(cfg.Path) != "" {
		return &FileSource{Pattern: cfg.Path, Split: split, Fields: fields, Log: log}, nil
	}
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, fmt.Errorf("dataset name or path is required")
	}
	return NewHubSource(cfg, split, log), nil
}
