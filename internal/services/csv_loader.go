package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"flownetwork-platform/internal/models"
)

// File names inside a realization directory
const (
	GroupTreeFileName = "grouptree.csv"
	SummaryFileName   = "summary.csv"
)

const realizationDirPrefix = "realization-"

// RealizationDir is one realization-<n> directory of an ensemble export
type RealizationDir struct {
	Realization int
	Path        string
}

// DiscoverRealizations lists the realization-<n> directories of dataDir in realization order
func DiscoverRealizations(dataDir string) ([]RealizationDir, error) {
	matches, err := filepath.Glob(filepath.Join(dataDir, realizationDirPrefix+"*"))
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	dirs := make([]RealizationDir, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			continue
		}
		real, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(path), realizationDirPrefix))
		if err != nil || real < 0 {
			continue
		}
		dirs = append(dirs, RealizationDir{Realization: real, Path: path})
	}
	if len(dirs) == 0 {
		return nil, fmt.Errorf("no realization directories found in %s", dataDir)
	}

	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Realization < dirs[j].Realization })
	return dirs, nil
}

// ReadGroupTreeFile reads grouptree.csv of a realization directory
func ReadGroupTreeFile(dir string) (*models.GroupTreeTable, error) {
	f, err := os.Open(filepath.Join(dir, GroupTreeFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to open group tree file: %w", err)
	}
	defer f.Close()
	return ReadGroupTreeCSV(f)
}

// ReadSummaryFile reads summary.csv of a realization directory
func ReadSummaryFile(dir string) ([]models.SummarySample, error) {
	f, err := os.Open(filepath.Join(dir, SummaryFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to open summary file: %w", err)
	}
	defer f.Close()
	return ReadSummaryCSV(f)
}

// ReadGroupTreeCSV parses a group tree edge list with a DATE,CHILD,PARENT,KEYWORD header
// and an optional VFP_TABLE column. Row order is kept.
func ReadGroupTreeCSV(r io.Reader) (*models.GroupTreeTable, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read group tree header: %w", err)
	}
	columns := make([]string, len(header))
	index := make(map[string]int, len(header))
	for i, name := range header {
		columns[i] = strings.ToUpper(strings.TrimSpace(name))
		index[columns[i]] = i
	}

	var missing []string
	for _, required := range models.RequiredGroupTreeColumns {
		if _, ok := index[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, &models.SchemaError{MissingColumns: missing}
	}
	vfpIndex, hasVFP := index[models.ColumnVFPTable]

	table := &models.GroupTreeTable{Columns: columns}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read group tree line %d: %w", line, err)
		}

		date, err := parseDate(record[index[models.ColumnDate]])
		if err != nil {
			return nil, fmt.Errorf("invalid date on group tree line %d: %w", line, err)
		}
		row := models.GroupTreeRow{
			Date:    date,
			Child:   strings.TrimSpace(record[index[models.ColumnChild]]),
			Parent:  strings.TrimSpace(record[index[models.ColumnParent]]),
			Keyword: models.Keyword(strings.ToUpper(strings.TrimSpace(record[index[models.ColumnKeyword]]))),
		}
		if hasVFP {
			if v := strings.TrimSpace(record[vfpIndex]); v != "" {
				vfp, err := strconv.Atoi(v)
				if err != nil {
					return nil, fmt.Errorf("invalid VFP table on group tree line %d: %w", line, err)
				}
				row.VFPTable = &vfp
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// ReadSummaryCSV parses a wide summary table with a DATE column followed by one
// column per vector. Blank cells become samples without a value.
func ReadSummaryCSV(r io.Reader) ([]models.SummarySample, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read summary header: %w", err)
	}
	dateIndex := -1
	for i, name := range header {
		header[i] = strings.TrimSpace(name)
		if strings.EqualFold(header[i], models.ColumnDate) {
			dateIndex = i
		}
	}
	if dateIndex < 0 {
		return nil, &models.SchemaError{Message: "summary table has no DATE column"}
	}

	var samples []models.SummarySample
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read summary line %d: %w", line, err)
		}

		date, err := parseDate(record[dateIndex])
		if err != nil {
			return nil, fmt.Errorf("invalid date on summary line %d: %w", line, err)
		}
		for i, cell := range record {
			if i == dateIndex {
				continue
			}
			sample := models.SummarySample{Date: date, VectorName: header[i]}
			if cell = strings.TrimSpace(cell); cell != "" {
				v, err := strconv.ParseFloat(cell, 64)
				if err != nil {
					return nil, fmt.Errorf("invalid value for %s on summary line %d: %w", header[i], line, err)
				}
				sample.Value = &v
			}
			samples = append(samples, sample)
		}
	}
	return samples, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(models.DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
