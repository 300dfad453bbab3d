// Package chiasma is the embedding API: configure a simulation with plain
// data, run it, and query persisted runs. The CLI in cmd/chiasmactl is a
// thin shell over this package.
package chiasma

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"chiasma/internal/engine"
	"chiasma/internal/founder"
	"chiasma/internal/model"
	"chiasma/internal/recmap"
	"chiasma/internal/stats"
	"chiasma/internal/storage"
)

const (
	defaultBenchmarksDir = "benchmarks"
	defaultExportsDir    = "exports"
	defaultDBPath        = "chiasma.db"

	// replicateSeedStride separates the seed of each replicate in a
	// comparison so replicates draw independent founder populations.
	replicateSeedStride int64 = 104729
)

type Options struct {
	StoreKind     string
	DBPath        string
	BenchmarksDir string
	ExportsDir    string
}

type Client struct {
	store       storage.Store
	initialized bool

	benchmarksDir string
	exportsDir    string
}

// RunRequest configures a single simulation. Zero values take defaults; Maps
// holds one row (fixed landscape) or three rows (one per modifier genotype),
// each of length Loci-1. An empty Maps runs a single free-recombination map.
type RunRequest struct {
	Loci                  int
	AlleleFrequencies     []float64
	FounderHaplotypes     int
	Females               int
	Males                 int
	OffspringPerFemale    int
	FemaleThreshold       float64
	MaleThreshold         float64
	ModifierFrequency     float64
	Generations           int
	ForceEqualSex         bool
	ForceEqualMaleSuccess bool
	Seed                  int64
	Workers               int
	Maps                  [][]float64
	Retries               int
	// FounderID reuses a stored founder population instead of drawing one.
	FounderID string
	// SaveFounders persists the run's founder population for reuse.
	SaveFounders bool
}

type RunSummary struct {
	RunID                  string
	ArtifactsDir           string
	Outcome                string
	ExtinctAtGeneration    int
	GenerationsRun         int
	Attempts               int
	FounderID              string
	Generations            []stats.GenerationSummary
	FinalMeanPhenotype     float64
	FinalModifierFrequency float64
}

// CompareRequest runs the same population design under a fixed
// recombination landscape and under a modifier-controlled one, over several
// replicates. Within a replicate both arms share the same founder population
// and the same seed, so the arms differ only in the landscape.
type CompareRequest struct {
	Run          RunRequest
	FixedMap     []float64
	GenotypeMaps [][]float64
	Replicates   int
}

type CompareArm struct {
	Extinctions int
	Trajectory  []stats.TrajectoryPoint
}

type CompareSummary struct {
	Replicates int
	Fixed      CompareArm
	Variable   CompareArm
}

type RecordsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type SummaryRequest struct {
	RunID  string
	Latest bool
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	benchmarksDir := opts.BenchmarksDir
	if benchmarksDir == "" {
		benchmarksDir = defaultBenchmarksDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:         store,
		benchmarksDir: benchmarksDir,
		exportsDir:    exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureStore(ctx)
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	req = withRunDefaults(req)
	if err := c.ensureStore(ctx); err != nil {
		return RunSummary{}, err
	}

	maps, err := recmap.New(req.Loci, req.Maps...)
	if err != nil {
		return RunSummary{}, err
	}

	cfg := engine.Config{
		Loci:                  req.Loci,
		AlleleFrequencies:     req.AlleleFrequencies,
		FounderHaplotypes:     req.FounderHaplotypes,
		Females:               req.Females,
		Males:                 req.Males,
		OffspringPerFemale:    req.OffspringPerFemale,
		FemaleThreshold:       req.FemaleThreshold,
		MaleThreshold:         req.MaleThreshold,
		ModifierFrequency:     req.ModifierFrequency,
		Generations:           req.Generations,
		ForceEqualSex:         req.ForceEqualSex,
		ForceEqualMaleSuccess: req.ForceEqualMaleSuccess,
		Seed:                  req.Seed,
		Workers:               req.Workers,
		Maps:                  maps,
	}

	founderID := req.FounderID
	if founderID != "" {
		snapshot, ok, err := c.store.GetFounders(ctx, founderID)
		if err != nil {
			return RunSummary{}, err
		}
		if !ok {
			return RunSummary{}, fmt.Errorf("founders not found: %s", founderID)
		}
		founders, err := founder.FromSnapshot(snapshot)
		if err != nil {
			return RunSummary{}, err
		}
		cfg.Founders = founders
	}

	result, attempts, err := engine.Guard{Retries: req.Retries}.Run(ctx, cfg)
	if err != nil {
		return RunSummary{}, err
	}

	if req.SaveFounders && founderID == "" {
		founderID = uuid.NewString()
		snapshot := result.Founders.Snapshot(founderID)
		snapshot.VersionedRecord = stampVersions()
		if err := c.store.SaveFounders(ctx, snapshot); err != nil {
			return RunSummary{}, err
		}
	}

	runID := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	run := model.RunRecord{
		VersionedRecord:       stampVersions(),
		RunID:                 runID,
		CreatedAtUTC:          now,
		Loci:                  req.Loci,
		FounderHaplotypes:     req.FounderHaplotypes,
		Females:               req.Females,
		Males:                 req.Males,
		OffspringPerFemale:    req.OffspringPerFemale,
		FemaleThreshold:       req.FemaleThreshold,
		MaleThreshold:         req.MaleThreshold,
		ModifierFrequency:     req.ModifierFrequency,
		Generations:           req.Generations,
		ForceEqualSex:         req.ForceEqualSex,
		ForceEqualMaleSuccess: req.ForceEqualMaleSuccess,
		MapCount:              maps.MapCount(),
		Seed:                  req.Seed,
		Workers:               req.Workers,
		Outcome:               string(result.Outcome),
		ExtinctAtGeneration:   result.ExtinctAtGeneration,
		FounderID:             founderID,
	}

	summaries := stats.Summarize(result.Records)

	if err := c.store.SaveRun(ctx, run); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveRecords(ctx, runID, result.Records); err != nil {
		return RunSummary{}, err
	}

	runDir, err := stats.WriteRunArtifacts(c.benchmarksDir, run, result.Records, summaries)
	if err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{
		RunID:               runID,
		ArtifactsDir:        filepath.Clean(runDir),
		Outcome:             string(result.Outcome),
		ExtinctAtGeneration: result.ExtinctAtGeneration,
		GenerationsRun:      result.GenerationsRun,
		Attempts:            attempts,
		FounderID:           founderID,
		Generations:         summaries,
	}
	if len(summaries) > 0 {
		final := summaries[len(summaries)-1]
		summary.FinalMeanPhenotype = final.MeanPhenotype
		summary.FinalModifierFrequency = final.ModifierFrequency
	}
	return summary, nil
}

// Compare answers the question the simulator exists for: does a
// modifier-controlled recombination landscape change the selection response
// relative to a fixed landscape, holding founders constant within each
// replicate?
func (c *Client) Compare(ctx context.Context, req CompareRequest) (CompareSummary, error) {
	base := withRunDefaults(req.Run)
	if req.Replicates <= 0 {
		req.Replicates = 10
	}
	if len(req.FixedMap) == 0 {
		req.FixedMap = recmap.Uniform(base.Loci, 0.5)
	}
	if len(req.GenotypeMaps) != 3 {
		return CompareSummary{}, fmt.Errorf("comparison requires exactly three genotype maps, got %d", len(req.GenotypeMaps))
	}
	if err := c.ensureStore(ctx); err != nil {
		return CompareSummary{}, err
	}

	fixedMaps, err := recmap.New(base.Loci, req.FixedMap)
	if err != nil {
		return CompareSummary{}, err
	}
	variableMaps, err := recmap.New(base.Loci, req.GenotypeMaps...)
	if err != nil {
		return CompareSummary{}, err
	}

	fixedArm := CompareArm{}
	variableArm := CompareArm{}
	fixedSummaries := make([][]stats.GenerationSummary, 0, req.Replicates)
	variableSummaries := make([][]stats.GenerationSummary, 0, req.Replicates)

	for rep := 0; rep < req.Replicates; rep++ {
		seed := base.Seed + int64(rep)*replicateSeedStride

		founders, err := founder.Generate(founder.Config{
			Loci:              base.Loci,
			AlleleFrequencies: base.AlleleFrequencies,
			HaplotypePool:     base.FounderHaplotypes,
			Females:           base.Females,
			Males:             base.Males,
		}, rand.New(rand.NewSource(seed)))
		if err != nil {
			return CompareSummary{}, err
		}

		for _, arm := range []struct {
			maps      engine.MapSource
			summaries *[][]stats.GenerationSummary
			tally     *CompareArm
		}{
			{maps: fixedMaps, summaries: &fixedSummaries, tally: &fixedArm},
			{maps: variableMaps, summaries: &variableSummaries, tally: &variableArm},
		} {
			cfg := engine.Config{
				Loci:                  base.Loci,
				OffspringPerFemale:    base.OffspringPerFemale,
				FemaleThreshold:       base.FemaleThreshold,
				MaleThreshold:         base.MaleThreshold,
				ModifierFrequency:     base.ModifierFrequency,
				Generations:           base.Generations,
				ForceEqualSex:         base.ForceEqualSex,
				ForceEqualMaleSuccess: base.ForceEqualMaleSuccess,
				Seed:                  seed,
				Workers:               base.Workers,
				Maps:                  arm.maps,
				Founders:              founders,
			}
			eng, err := engine.New(cfg)
			if err != nil {
				return CompareSummary{}, err
			}
			result, err := eng.Run(ctx)
			if err != nil {
				return CompareSummary{}, err
			}
			if result.Outcome == engine.OutcomeExtinct {
				arm.tally.Extinctions++
			}
			*arm.summaries = append(*arm.summaries, stats.Summarize(result.Records))
		}
	}

	fixedTrajectory, err := stats.AggregateReplicates(fixedSummaries)
	if err != nil {
		return CompareSummary{}, err
	}
	variableTrajectory, err := stats.AggregateReplicates(variableSummaries)
	if err != nil {
		return CompareSummary{}, err
	}
	fixedArm.Trajectory = fixedTrajectory
	variableArm.Trajectory = variableTrajectory

	return CompareSummary{
		Replicates: req.Replicates,
		Fixed:      fixedArm,
		Variable:   variableArm,
	}, nil
}

func (c *Client) Runs(ctx context.Context, limit int) ([]model.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (c *Client) Records(ctx context.Context, req RecordsRequest) ([]model.IndividualRecord, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}

	records, ok, err := c.store.GetRecords(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("records not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(records) > req.Limit {
		records = records[:req.Limit]
	}
	return records, nil
}

func (c *Client) Summary(ctx context.Context, req SummaryRequest) ([]stats.GenerationSummary, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}

	records, ok, err := c.store.GetRecords(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("records not found for run id: %s", runID)
	}
	return stats.Summarize(records), nil
}

func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.benchmarksDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if err := c.ensureStore(ctx); err != nil {
		return "", err
	}
	if latest {
		runs, err := c.store.ListRuns(ctx)
		if err != nil {
			return "", err
		}
		if len(runs) == 0 {
			return "", errors.New("no runs available")
		}
		return runs[0].RunID, nil
	}
	if runID == "" {
		return "", errors.New("run id or latest is required")
	}
	return runID, nil
}

func (c *Client) ensureStore(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

func withRunDefaults(req RunRequest) RunRequest {
	if req.Loci <= 0 {
		req.Loci = 20
	}
	if req.Females <= 0 {
		req.Females = 50
	}
	if req.Males <= 0 {
		req.Males = 50
	}
	if req.FounderHaplotypes <= 0 {
		req.FounderHaplotypes = req.Females + req.Males
	}
	if len(req.AlleleFrequencies) == 0 {
		freqs := make([]float64, req.Loci)
		for i := range freqs {
			freqs[i] = 0.5
		}
		req.AlleleFrequencies = freqs
	}
	if req.OffspringPerFemale <= 0 {
		req.OffspringPerFemale = 4
	}
	if req.FemaleThreshold <= 0 {
		req.FemaleThreshold = 0.5
	}
	if req.MaleThreshold <= 0 {
		req.MaleThreshold = 0.5
	}
	if req.Generations <= 0 {
		req.Generations = 30
	}
	if req.Workers <= 0 {
		req.Workers = 4
	}
	if len(req.Maps) == 0 {
		req.Maps = [][]float64{recmap.Uniform(req.Loci, 0.5)}
	}
	return req
}

func stampVersions() model.VersionedRecord {
	return model.VersionedRecord{
		SchemaVersion: storage.CurrentSchemaVersion,
		CodecVersion:  storage.CurrentCodecVersion,
	}
}
