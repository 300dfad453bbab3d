package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"chiasma/internal/model"
)

const (
	runIndexFile = "run_index.json"
	configFile   = "config.json"
	recordsFile  = "records.csv"
	summaryFile  = "summary.csv"
)

type RunIndexEntry struct {
	RunID               string  `json:"run_id"`
	CreatedAtUTC        string  `json:"created_at_utc"`
	Seed                int64   `json:"seed"`
	Loci                int     `json:"loci"`
	Generations         int     `json:"generations"`
	MapCount            int     `json:"map_count"`
	Outcome             string  `json:"outcome"`
	ExtinctAtGeneration int     `json:"extinct_at_generation,omitempty"`
	FinalMeanPhenotype  float64 `json:"final_mean_phenotype"`
	FinalModifierFreq   float64 `json:"final_modifier_frequency"`
}

// WriteRunArtifacts writes one run's config, records, and per-generation
// summaries under baseDir/<runID>/ and registers the run in the index.
// Returns the run directory.
func WriteRunArtifacts(baseDir string, run model.RunRecord, records []model.IndividualRecord, summaries []GenerationSummary) (string, error) {
	if run.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}
	runDir := filepath.Join(baseDir, run.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), run); err != nil {
		return "", err
	}
	if err := WriteRecordsCSV(filepath.Join(runDir, recordsFile), records); err != nil {
		return "", err
	}
	if err := writeSummaryCSV(filepath.Join(runDir, summaryFile), summaries); err != nil {
		return "", err
	}

	entry := RunIndexEntry{
		RunID:               run.RunID,
		CreatedAtUTC:        run.CreatedAtUTC,
		Seed:                run.Seed,
		Loci:                run.Loci,
		Generations:         run.Generations,
		MapCount:            run.MapCount,
		Outcome:             run.Outcome,
		ExtinctAtGeneration: run.ExtinctAtGeneration,
	}
	if len(summaries) > 0 {
		final := summaries[len(summaries)-1]
		entry.FinalMeanPhenotype = final.MeanPhenotype
		entry.FinalModifierFreq = final.ModifierFrequency
	}
	if err := AppendRunIndex(baseDir, entry); err != nil {
		return "", err
	}
	return runDir, nil
}

// AppendRunIndex upserts an entry by run ID.
func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}
	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}
	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the index sorted newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// WriteRecordsCSV writes the per-generation individual table, one row per
// individual, in record order.
func WriteRecordsCSV(path string, records []model.IndividualRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"generation", "id", "mother_id", "father_id", "sex", "phenotype", "modifier_genotype", "bred"}); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{
			strconv.Itoa(rec.Generation),
			strconv.FormatInt(rec.ID, 10),
			strconv.FormatInt(rec.MotherID, 10),
			strconv.FormatInt(rec.FatherID, 10),
			string(rec.Sex),
			strconv.Itoa(rec.Phenotype),
			strconv.Itoa(rec.ModifierGenotype),
			strconv.FormatBool(rec.Bred),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeSummaryCSV(path string, summaries []GenerationSummary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"generation", "count", "females", "males", "breeders", "mean_phenotype", "phenotype_variance", "modifier_frequency"}); err != nil {
		return err
	}
	for _, s := range summaries {
		row := []string{
			strconv.Itoa(s.Generation),
			strconv.Itoa(s.Count),
			strconv.Itoa(s.Females),
			strconv.Itoa(s.Males),
			strconv.Itoa(s.Breeders),
			strconv.FormatFloat(s.MeanPhenotype, 'f', 6, 64),
			strconv.FormatFloat(s.PhenotypeVariance, 'f', 6, 64),
			strconv.FormatFloat(s.ModifierFrequency, 'f', 6, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ExportRunArtifacts copies a run's artifact files into outDir/<runID>/.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{configFile, recordsFile, summaryFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
