package nesting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// FileSource reads nesting exports from a directory. Every .json, .yaml or
// .yml file holds a list of flat rows with the nesting column names.
type FileSource struct {
	dir      string
	contract *Contract
	logger   zerolog.Logger
}

// NewFileSource creates a source over the export directory.
func NewFileSource(dir string, contract *Contract, logger zerolog.Logger) (*FileSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat export directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	return &FileSource{
		dir:      dir,
		contract: contract,
		logger:   logger.With().Str("component", "nesting-files").Logger(),
	}, nil
}

// Dir returns the export directory.
func (s *FileSource) Dir() string {
	return s.dir
}

// ProgramNames lists programs whose PostDateTime falls within [from, to].
func (s *FileSource) ProgramNames(ctx context.Context, from, to time.Time) ([]ProgramSummary, error) {
	records, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	summaries := []ProgramSummary{}
	for _, r := range records {
		if seen[r.ProgramName] || r.PostDateTime.Before(from) || r.PostDateTime.After(to) {
			continue
		}
		seen[r.ProgramName] = true
		summaries = append(summaries, ProgramSummary{ProgramName: r.ProgramName, PostDateTime: r.PostDateTime})
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].PostDateTime.Before(summaries[j].PostDateTime)
	})
	return summaries, nil
}

// Records returns the rows of the named programs.
func (s *FileSource) Records(ctx context.Context, names []string) ([]Record, error) {
	if len(names) == 0 {
		return []Record{}, nil
	}

	records, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	result := []Record{}
	for _, r := range records {
		if wanted[r.ProgramName] {
			result = append(result, r)
		}
	}
	return result, nil
}

// load reads and validates every export file in name order.
func (s *FileSource) load(ctx context.Context) ([]Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read export directory: %w", err)
	}

	var rows []map[string]any
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !IsExportFile(entry.Name()) {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		fileRows, err := ReadExportFile(path)
		if err != nil {
			return nil, err
		}
		rows = append(rows, fileRows...)
	}

	records, err := decodeChecked(s.contract, rows)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Int("records", len(records)).Msg("Loaded nesting exports")
	return records, nil
}

// IsExportFile reports whether the file name has an export extension.
func IsExportFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// ReadExportFile reads the raw rows of one export file.
func ReadExportFile(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read export %s: %w", path, err)
	}

	var rows []map[string]any
	if strings.EqualFold(filepath.Ext(path), ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&rows); err != nil {
			return nil, fmt.Errorf("failed to parse export %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &rows); err != nil {
			return nil, fmt.Errorf("failed to parse export %s: %w", path, err)
		}
	}

	return rows, nil
}
