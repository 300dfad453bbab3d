package recmap

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"chiasma/internal/model"
)

// LoadMaps reads a recombination-map CSV: one row per map (1 or 3 rows),
// each row holding loci-1 per-boundary crossover probabilities.
func LoadMaps(path string, loci int) (*Model, error) {
	rows, err := readFloatCSV(path)
	if err != nil {
		return nil, err
	}
	return New(loci, rows...)
}

// LoadAlleleFrequencies reads a single-row CSV of loci allele frequencies,
// each the frequency of the 1 allele at that locus.
func LoadAlleleFrequencies(path string, loci int) ([]float64, error) {
	rows, err := readFloatCSV(path)
	if err != nil {
		return nil, err
	}
	if len(rows) != 1 {
		return nil, fmt.Errorf("%w: allele frequency file %s has %d rows, want 1", model.ErrInvalidConfiguration, path, len(rows))
	}
	if len(rows[0]) != loci {
		return nil, fmt.Errorf("%w: allele frequency file %s has %d values, want %d", model.ErrInvalidConfiguration, path, len(rows[0]), loci)
	}
	for i, f := range rows[0] {
		if f < 0 || f > 1 {
			return nil, fmt.Errorf("%w: allele frequency out of [0,1] at locus %d: %v", model.ErrInvalidConfiguration, i, f)
		}
	}
	return rows[0], nil
}

func readFloatCSV(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	raw, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	rows := make([][]float64, 0, len(raw))
	for lineNo, fields := range raw {
		row := make([]float64, 0, len(fields))
		for col, field := range fields {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("parse %s row %d col %d: %w", path, lineNo+1, col+1, err)
			}
			row = append(row, v)
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s contains no values", model.ErrInvalidConfiguration, path)
	}
	return rows, nil
}
