// Package engine advances a population generation by generation under
// truncation selection and a genotype-dependent recombination landscape.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"chiasma/internal/founder"
	"chiasma/internal/mating"
	"chiasma/internal/meiosis"
	"chiasma/internal/model"
	"chiasma/internal/selection"
)

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeExtinct   Outcome = "extinct"
)

// MapSource selects the crossover probability vector governing meiosis in a
// parent of a given modifier genotype. recmap.Model is the production
// implementation.
type MapSource interface {
	MapFor(genotype int) ([]float64, error)
}

type Config struct {
	Loci int
	// AlleleFrequencies[i] is the frequency of the 1 allele at locus i
	// among founder haplotypes. Ignored when Founders is supplied.
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
	Maps                  MapSource
	// Founders, when set, is a pre-built founder population shared across
	// comparative runs. The engine never mutates it.
	Founders *founder.Population
}

func (c Config) validate() error {
	if c.Loci <= 0 {
		return fmt.Errorf("%w: loci must be > 0, got %d", model.ErrInvalidConfiguration, c.Loci)
	}
	if c.Founders == nil {
		if len(c.AlleleFrequencies) != c.Loci {
			return fmt.Errorf("%w: allele frequency vector length %d, want %d", model.ErrInvalidConfiguration, len(c.AlleleFrequencies), c.Loci)
		}
		if c.FounderHaplotypes <= 0 {
			return fmt.Errorf("%w: founder haplotype count must be > 0, got %d", model.ErrInvalidConfiguration, c.FounderHaplotypes)
		}
		if c.Females <= 0 || c.Males <= 0 {
			return fmt.Errorf("%w: sex counts must be > 0, got %d females and %d males", model.ErrInvalidConfiguration, c.Females, c.Males)
		}
	} else if c.Founders.Loci != c.Loci {
		return fmt.Errorf("%w: founder population has %d loci, config has %d", model.ErrInvalidConfiguration, c.Founders.Loci, c.Loci)
	}
	if c.OffspringPerFemale <= 0 {
		return fmt.Errorf("%w: offspring per female must be > 0, got %d", model.ErrInvalidConfiguration, c.OffspringPerFemale)
	}
	if c.FemaleThreshold <= 0 || c.FemaleThreshold > 1 {
		return fmt.Errorf("%w: female selection threshold out of (0,1]: %v", model.ErrInvalidConfiguration, c.FemaleThreshold)
	}
	if c.MaleThreshold <= 0 || c.MaleThreshold > 1 {
		return fmt.Errorf("%w: male selection threshold out of (0,1]: %v", model.ErrInvalidConfiguration, c.MaleThreshold)
	}
	if c.ModifierFrequency < 0 || c.ModifierFrequency > 1 {
		return fmt.Errorf("%w: modifier frequency out of [0,1]: %v", model.ErrInvalidConfiguration, c.ModifierFrequency)
	}
	if c.Generations <= 0 {
		return fmt.Errorf("%w: generations must be > 0", model.ErrInvalidConfiguration)
	}
	if c.Maps == nil {
		return fmt.Errorf("%w: recombination map source is required", model.ErrInvalidConfiguration)
	}
	return nil
}

// RunResult is the ordered, append-only record sequence of one run.
// Extinction is data, not an error: an extinct run carries every fully
// recorded generation before the collapse and the generation at which
// breeding collapsed.
type RunResult struct {
	Outcome             Outcome
	ExtinctAtGeneration int
	GenerationsRun      int
	Records             []model.IndividualRecord
	Founders            *founder.Population
}

type Engine struct {
	cfg Config
	rng *rand.Rand
}

func New(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Engine{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

func (e *Engine) Run(ctx context.Context) (RunResult, error) {
	founders := e.cfg.Founders
	if founders == nil {
		var err error
		founders, err = founder.Generate(founder.Config{
			Loci:              e.cfg.Loci,
			AlleleFrequencies: e.cfg.AlleleFrequencies,
			HaplotypePool:     e.cfg.FounderHaplotypes,
			Females:           e.cfg.Females,
			Males:             e.cfg.Males,
		}, e.rng)
		if err != nil {
			return RunResult{}, err
		}
	}

	current, err := founders.Instantiate(e.cfg.ModifierFrequency, e.rng)
	if err != nil {
		return RunResult{}, err
	}
	nextID := founders.NextID()

	records := make([]model.IndividualRecord, 0, len(current)*(e.cfg.Generations+1))
	recordIndexByID := make(map[int64]int, len(current))
	appendGeneration := func(generation []model.Individual) {
		for _, ind := range generation {
			recordIndexByID[ind.ID] = len(records)
			records = append(records, ind.Record())
		}
	}
	appendGeneration(current)

	for gen := 1; gen <= e.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}

		females, males := selection.Breeders(current, e.cfg.FemaleThreshold, e.cfg.MaleThreshold)
		if len(females) == 0 || len(males) == 0 {
			return RunResult{
				Outcome:             OutcomeExtinct,
				ExtinctAtGeneration: gen,
				GenerationsRun:      gen - 1,
				Records:             records,
				Founders:            founders,
			}, nil
		}

		assignments, err := mating.Build(females, males, e.cfg.OffspringPerFemale, e.cfg.ForceEqualSex, e.cfg.ForceEqualMaleSuccess, e.rng)
		if err != nil {
			return RunResult{}, err
		}

		offspring, err := e.buildOffspring(ctx, current, assignments, nextID, gen)
		if err != nil {
			return RunResult{}, err
		}
		nextID += int64(len(assignments))

		for _, a := range assignments {
			records[recordIndexByID[a.MotherID]].Bred = true
			records[recordIndexByID[a.FatherID]].Bred = true
		}

		appendGeneration(offspring)
		current = offspring
	}

	return RunResult{
		Outcome:        OutcomeCompleted,
		GenerationsRun: e.cfg.Generations,
		Records:        records,
		Founders:       founders,
	}, nil
}

// buildOffspring constructs one individual per assignment on a worker pool.
// IDs are pre-assigned by slot and every slot draws from its own seed-derived
// stream, so the result is identical at any worker count for a fixed seed.
func (e *Engine) buildOffspring(ctx context.Context, current []model.Individual, assignments []mating.Assignment, baseID int64, generation int) ([]model.Individual, error) {
	parentByID := make(map[int64]model.Individual, len(current))
	for _, ind := range current {
		parentByID[ind.ID] = ind
	}

	seeds := make([]int64, len(assignments))
	for i := range seeds {
		seeds[i] = e.rng.Int63()
	}

	type result struct {
		idx   int
		child model.Individual
		err   error
	}

	jobs := make(chan int)
	results := make(chan result, len(assignments))

	workerCount := e.cfg.Workers
	if workerCount > len(assignments) {
		workerCount = len(assignments)
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if err := ctx.Err(); err != nil {
					results <- result{idx: idx, err: err}
					continue
				}
				child, err := e.conceive(parentByID, assignments[idx], baseID+int64(idx), generation, seeds[idx])
				results <- result{idx: idx, child: child, err: err}
			}
		}()
	}

	for i := range assignments {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	close(results)

	offspring := make([]model.Individual, len(assignments))
	for res := range results {
		if res.err != nil {
			return nil, res.err
		}
		offspring[res.idx] = res.child
	}
	return offspring, nil
}

// conceive runs two independent meioses (one per parent, each against the
// map selected by that parent's modifier genotype) plus one modifier-allele
// draw per parent.
func (e *Engine) conceive(parentByID map[int64]model.Individual, a mating.Assignment, id int64, generation int, seed int64) (model.Individual, error) {
	rng := rand.New(rand.NewSource(seed))

	mother, ok := parentByID[a.MotherID]
	if !ok {
		return model.Individual{}, fmt.Errorf("assignment references unknown mother %d", a.MotherID)
	}
	father, ok := parentByID[a.FatherID]
	if !ok {
		return model.Individual{}, fmt.Errorf("assignment references unknown father %d", a.FatherID)
	}

	maternal, _, err := e.gameteFrom(mother, rng)
	if err != nil {
		return model.Individual{}, fmt.Errorf("maternal gamete for offspring %d: %w", id, err)
	}
	paternal, _, err := e.gameteFrom(father, rng)
	if err != nil {
		return model.Individual{}, fmt.Errorf("paternal gamete for offspring %d: %w", id, err)
	}

	alleles := [2]uint8{
		meiosis.ModifierGamete(mother.ModifierAlleles, rng),
		meiosis.ModifierGamete(father.ModifierAlleles, rng),
	}

	return model.Individual{
		ID:              id,
		Generation:      generation,
		MotherID:        mother.ID,
		FatherID:        father.ID,
		Sex:             a.Sex,
		Haplotypes:      [2]model.Haplotype{maternal, paternal},
		ModifierAlleles: alleles,
		Phenotype:       model.PhenotypeOf(maternal, paternal),
	}, nil
}

func (e *Engine) gameteFrom(parent model.Individual, rng *rand.Rand) (model.Haplotype, int, error) {
	probs, err := e.cfg.Maps.MapFor(parent.ModifierGenotype())
	if err != nil {
		return nil, 0, err
	}
	return meiosis.Gamete(parent.Haplotypes, probs, rng)
}
