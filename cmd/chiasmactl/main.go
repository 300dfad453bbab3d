package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"

	"chiasma/internal/recmap"
	"chiasma/internal/stats"
	"chiasma/internal/storage"
	chiasmaapi "chiasma/pkg/chiasma"
)

const (
	benchmarksDir = "benchmarks"
	exportsDir    = "exports"
	defaultDBPath = "chiasma.db"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "compare":
		return runCompare(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "records":
		return runRecords(ctx, args[1:])
	case "summary":
		return runSummary(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Init(ctx); err != nil {
		return err
	}
	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	loci := fs.Int("loci", 20, "trait loci per haplotype")
	freqsPath := fs.String("freqs", "", "CSV of founder 1-allele frequencies, one row of length loci (default: 0.5 everywhere)")
	founderHaplotypes := fs.Int("founder-haplotypes", 0, "founder haplotype pool size (default: females+males)")
	females := fs.Int("females", 50, "females per generation")
	males := fs.Int("males", 50, "males per generation")
	offspring := fs.Int("offspring", 4, "offspring per mated female")
	femaleThreshold := fs.Float64("female-threshold", 0.5, "fraction of females kept for breeding, in (0,1]")
	maleThreshold := fs.Float64("male-threshold", 0.5, "fraction of males kept for breeding, in (0,1]")
	modifierFreq := fs.Float64("modifier-freq", 0.5, "founder frequency of the modifier 1 allele, in [0,1]")
	generations := fs.Int("gens", 30, "bred generations")
	equalSex := fs.Bool("equal-sex", false, "balance offspring sexes within each litter")
	equalMaleSuccess := fs.Bool("equal-male-success", false, "spread paternity evenly across breeding males")
	seed := fs.Int64("seed", 1, "rng seed")
	workers := fs.Int("workers", 4, "worker count")
	mapsPath := fs.String("maps", "", "CSV of crossover probabilities: 1 row (fixed map) or 3 rows (per modifier genotype), each of length loci-1")
	uniformRate := fs.Float64("uniform-rate", 0.5, "per-boundary crossover probability when -maps is not given")
	retries := fs.Int("retries", 0, "whole-run retries after extinction")
	founderID := fs.String("founder-id", "", "reuse a stored founder population")
	saveFounders := fs.Bool("save-founders", false, "persist this run's founder population for reuse")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := chiasmaapi.RunRequest{
		Loci:                  *loci,
		FounderHaplotypes:     *founderHaplotypes,
		Females:               *females,
		Males:                 *males,
		OffspringPerFemale:    *offspring,
		FemaleThreshold:       *femaleThreshold,
		MaleThreshold:         *maleThreshold,
		ModifierFrequency:     *modifierFreq,
		Generations:           *generations,
		ForceEqualSex:         *equalSex,
		ForceEqualMaleSuccess: *equalMaleSuccess,
		Seed:                  *seed,
		Workers:               *workers,
		Retries:               *retries,
		FounderID:             *founderID,
		SaveFounders:          *saveFounders,
	}
	if *freqsPath != "" {
		freqs, err := recmap.LoadAlleleFrequencies(*freqsPath, *loci)
		if err != nil {
			return err
		}
		req.AlleleFrequencies = freqs
	}
	if *mapsPath != "" {
		maps, err := loadMapRows(*mapsPath, *loci)
		if err != nil {
			return err
		}
		req.Maps = maps
	} else {
		req.Maps = [][]float64{recmap.Uniform(*loci, *uniformRate)}
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer client.Close()

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("run %s run_id=%s loci=%d gens=%d seed=%d attempts=%d\n",
		summary.Outcome, summary.RunID, *loci, *generations, *seed, summary.Attempts)
	if summary.Outcome == "extinct" {
		fmt.Printf("extinct_at_generation=%d generations_run=%d\n", summary.ExtinctAtGeneration, summary.GenerationsRun)
	}
	if summary.FounderID != "" {
		fmt.Printf("founder_id=%s\n", summary.FounderID)
	}
	renderSummaryTable(summary.Generations)
	fmt.Printf("final_mean_phenotype=%.6f final_modifier_frequency=%.6f\n",
		summary.FinalMeanPhenotype, summary.FinalModifierFrequency)
	fmt.Printf("artifacts_dir=%s\n", filepath.Clean(summary.ArtifactsDir))
	return nil
}

func runCompare(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	loci := fs.Int("loci", 20, "trait loci per haplotype")
	females := fs.Int("females", 50, "females per generation")
	males := fs.Int("males", 50, "males per generation")
	offspring := fs.Int("offspring", 4, "offspring per mated female")
	femaleThreshold := fs.Float64("female-threshold", 0.5, "fraction of females kept for breeding, in (0,1]")
	maleThreshold := fs.Float64("male-threshold", 0.5, "fraction of males kept for breeding, in (0,1]")
	modifierFreq := fs.Float64("modifier-freq", 0.5, "founder frequency of the modifier 1 allele, in [0,1]")
	generations := fs.Int("gens", 30, "bred generations")
	seed := fs.Int64("seed", 1, "rng seed")
	workers := fs.Int("workers", 4, "worker count")
	replicates := fs.Int("replicates", 10, "replicate runs per arm")
	fixedPath := fs.String("fixed-map", "", "CSV with one row of loci-1 crossover probabilities for the fixed arm (default: uniform 0.5)")
	genotypePath := fs.String("genotype-maps", "", "CSV with three rows of loci-1 crossover probabilities, one per modifier genotype")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *genotypePath == "" {
		return usageError("compare requires -genotype-maps")
	}

	genotypeMaps, err := loadMapRows(*genotypePath, *loci)
	if err != nil {
		return err
	}
	req := chiasmaapi.CompareRequest{
		Run: chiasmaapi.RunRequest{
			Loci:               *loci,
			Females:            *females,
			Males:              *males,
			OffspringPerFemale: *offspring,
			FemaleThreshold:    *femaleThreshold,
			MaleThreshold:      *maleThreshold,
			ModifierFrequency:  *modifierFreq,
			Generations:        *generations,
			Seed:               *seed,
			Workers:            *workers,
		},
		GenotypeMaps: genotypeMaps,
		Replicates:   *replicates,
	}
	if *fixedPath != "" {
		rows, err := loadMapRows(*fixedPath, *loci)
		if err != nil {
			return err
		}
		if len(rows) != 1 {
			return fmt.Errorf("fixed map file must hold exactly one row, got %d", len(rows))
		}
		req.FixedMap = rows[0]
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer client.Close()

	summary, err := client.Compare(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("compare replicates=%d fixed_extinctions=%d variable_extinctions=%d\n",
		summary.Replicates, summary.Fixed.Extinctions, summary.Variable.Extinctions)
	renderCompareTable(summary)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to print")
	jsonOut := fs.Bool("json", false, "emit runs as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer client.Close()

	runs, err := client.Runs(ctx, *limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if *jsonOut {
		return printJSON(runs)
	}
	for _, run := range runs {
		fmt.Printf("run_id=%s created_at=%s loci=%d gens=%d seed=%d map_count=%d outcome=%s extinct_at=%d\n",
			run.RunID, run.CreatedAtUTC, run.Loci, run.Generations, run.Seed, run.MapCount, run.Outcome, run.ExtinctAtGeneration)
	}
	return nil
}

func runRecords(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("records", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show records for the most recent run")
	limit := fs.Int("limit", 50, "max records to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit records as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer client.Close()

	records, err := client.Records(ctx, chiasmaapi.RecordsRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no records")
		return nil
	}
	if *jsonOut {
		return printJSON(records)
	}
	for _, rec := range records {
		fmt.Printf("generation=%d id=%d mother=%d father=%d sex=%s phenotype=%d modifier=%d bred=%t\n",
			rec.Generation, rec.ID, rec.MotherID, rec.FatherID, rec.Sex, rec.Phenotype, rec.ModifierGenotype, rec.Bred)
	}
	return nil
}

func runSummary(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show summary for the most recent run")
	jsonOut := fs.Bool("json", false, "emit summary as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer client.Close()

	summaries, err := client.Summary(ctx, chiasmaapi.SummaryRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("no summary")
		return nil
	}
	if *jsonOut {
		return printJSON(summaries)
	}
	renderSummaryTable(summaries)
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run")
	outDir := fs.String("out", exportsDir, "output directory")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer client.Close()

	summary, err := client.Export(ctx, chiasmaapi.ExportRequest{
		RunID:  *runID,
		Latest: *latest,
		OutDir: *outDir,
	})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s dir=%s\n", summary.RunID, summary.Directory)
	return nil
}

func renderSummaryTable(summaries []stats.GenerationSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"gen", "count", "females", "males", "breeders", "mean_phenotype", "variance", "modifier_freq"})
	for _, s := range summaries {
		t.AppendRow(table.Row{
			s.Generation,
			s.Count,
			s.Females,
			s.Males,
			s.Breeders,
			fmt.Sprintf("%.4f", s.MeanPhenotype),
			fmt.Sprintf("%.4f", s.PhenotypeVariance),
			fmt.Sprintf("%.4f", s.ModifierFrequency),
		})
	}
	t.Render()
}

func renderCompareTable(summary chiasmaapi.CompareSummary) {
	variableByGen := make(map[int]int, len(summary.Variable.Trajectory))
	for i, point := range summary.Variable.Trajectory {
		variableByGen[point.Generation] = i
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"gen", "fixed_mean", "variable_mean", "fixed_variance", "variable_variance", "fixed_modifier", "variable_modifier"})
	for _, fixed := range summary.Fixed.Trajectory {
		idx, ok := variableByGen[fixed.Generation]
		if !ok {
			t.AppendRow(table.Row{
				fixed.Generation,
				fmt.Sprintf("%.4f", fixed.MeanPhenotype), "-",
				fmt.Sprintf("%.4f", fixed.PhenotypeVariance), "-",
				fmt.Sprintf("%.4f", fixed.ModifierFrequency), "-",
			})
			continue
		}
		variable := summary.Variable.Trajectory[idx]
		t.AppendRow(table.Row{
			fixed.Generation,
			fmt.Sprintf("%.4f", fixed.MeanPhenotype),
			fmt.Sprintf("%.4f", variable.MeanPhenotype),
			fmt.Sprintf("%.4f", fixed.PhenotypeVariance),
			fmt.Sprintf("%.4f", variable.PhenotypeVariance),
			fmt.Sprintf("%.4f", fixed.ModifierFrequency),
			fmt.Sprintf("%.4f", variable.ModifierFrequency),
		})
	}
	t.Render()
}

// loadMapRows reads crossover rows through the recmap loader, then hands the
// validated rows back as plain data for the API.
func loadMapRows(path string, loci int) ([][]float64, error) {
	model, err := recmap.LoadMaps(path, loci)
	if err != nil {
		return nil, err
	}
	rows := make([][]float64, 0, model.MapCount())
	if model.MapCount() == 1 {
		row, err := model.MapFor(0)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
		return rows, nil
	}
	for genotype := 0; genotype <= 2; genotype++ {
		row, err := model.MapFor(genotype)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func printJSON(value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func newClient(storeKind, dbPath string) (*chiasmaapi.Client, error) {
	return chiasmaapi.New(chiasmaapi.Options{
		StoreKind:     storeKind,
		DBPath:        dbPath,
		BenchmarksDir: benchmarksDir,
		ExportsDir:    exportsDir,
	})
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: chiasmactl <init|run|compare|runs|records|summary|export> [flags]", msg)
}
