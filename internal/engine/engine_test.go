package engine

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"sync"
	"testing"

	"chiasma/internal/founder"
	"chiasma/internal/model"
	"chiasma/internal/recmap"
)

func uniformFrequencies(loci int, f float64) []float64 {
	freqs := make([]float64, loci)
	for i := range freqs {
		freqs[i] = f
	}
	return freqs
}

func testConfig(t *testing.T) Config {
	t.Helper()
	maps, err := recmap.New(6, recmap.Uniform(6, 0.1))
	if err != nil {
		t.Fatalf("recmap: %v", err)
	}
	return Config{
		Loci:               6,
		AlleleFrequencies:  uniformFrequencies(6, 0.5),
		FounderHaplotypes:  20,
		Females:            8,
		Males:              8,
		OffspringPerFemale: 2,
		FemaleThreshold:    1.0,
		MaleThreshold:      1.0,
		ModifierFrequency:  0.5,
		Generations:        5,
		ForceEqualSex:      true,
		Seed:               101,
		Workers:            1,
		Maps:               maps,
	}
}

// recordingMapSource counts which modifier genotypes meiosis asked maps for.
type recordingMapSource struct {
	inner MapSource

	mu        sync.Mutex
	genotypes map[int]int
}

func (s *recordingMapSource) MapFor(genotype int) ([]float64, error) {
	s.mu.Lock()
	s.genotypes[genotype]++
	s.mu.Unlock()
	return s.inner.MapFor(genotype)
}

func TestNewValidatesConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero loci", func(c *Config) { c.Loci = 0 }},
		{"zero litter", func(c *Config) { c.OffspringPerFemale = 0 }},
		{"zero female threshold", func(c *Config) { c.FemaleThreshold = 0 }},
		{"male threshold above one", func(c *Config) { c.MaleThreshold = 1.5 }},
		{"modifier frequency above one", func(c *Config) { c.ModifierFrequency = 2 }},
		{"zero generations", func(c *Config) { c.Generations = 0 }},
		{"missing maps", func(c *Config) { c.Maps = nil }},
		{"zero founder haplotypes", func(c *Config) { c.FounderHaplotypes = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t)
			tc.mutate(&cfg)
			if _, err := New(cfg); !errors.Is(err, model.ErrInvalidConfiguration) {
				t.Fatalf("expected invalid configuration, got %v", err)
			}
		})
	}
}

func TestRunIsReproducibleAcrossWorkerCounts(t *testing.T) {
	var baseline []model.IndividualRecord
	for _, workers := range []int{1, 4, 9} {
		cfg := testConfig(t)
		cfg.Workers = workers
		eng, err := New(cfg)
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		result, err := eng.Run(context.Background())
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if result.Outcome != OutcomeCompleted {
			t.Fatalf("outcome = %s, want completed", result.Outcome)
		}
		if baseline == nil {
			baseline = result.Records
			continue
		}
		if !reflect.DeepEqual(result.Records, baseline) {
			t.Fatalf("records differ at %d workers", workers)
		}
	}
}

func TestRunInvariants(t *testing.T) {
	cfg := testConfig(t)
	eng, err := New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	result, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	idsByGeneration := map[int]map[int64]bool{}
	var lastID int64
	for _, rec := range result.Records {
		if rec.Phenotype < 0 || rec.Phenotype > 2*cfg.Loci {
			t.Fatalf("phenotype %d outside [0,%d]", rec.Phenotype, 2*cfg.Loci)
		}
		if rec.ModifierGenotype < 0 || rec.ModifierGenotype > 2 {
			t.Fatalf("modifier genotype %d outside {0,1,2}", rec.ModifierGenotype)
		}
		if rec.ID <= lastID {
			t.Fatalf("IDs not strictly increasing: %d after %d", rec.ID, lastID)
		}
		lastID = rec.ID
		if idsByGeneration[rec.Generation] == nil {
			idsByGeneration[rec.Generation] = map[int64]bool{}
		}
		idsByGeneration[rec.Generation][rec.ID] = true
	}

	for _, rec := range result.Records {
		if rec.Generation == 0 {
			continue
		}
		previous := idsByGeneration[rec.Generation-1]
		if !previous[rec.MotherID] {
			t.Fatalf("offspring %d mother %d not in generation %d", rec.ID, rec.MotherID, rec.Generation-1)
		}
		if !previous[rec.FatherID] {
			t.Fatalf("offspring %d father %d not in generation %d", rec.ID, rec.FatherID, rec.Generation-1)
		}
	}
}

func TestRunMarksContributingParents(t *testing.T) {
	cfg := testConfig(t)
	cfg.Generations = 1
	eng, err := New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	result, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	parents := map[int64]bool{}
	for _, rec := range result.Records {
		if rec.Generation == 1 {
			parents[rec.MotherID] = true
			parents[rec.FatherID] = true
		}
	}
	for _, rec := range result.Records {
		if rec.Generation != 0 {
			if rec.Bred {
				t.Fatalf("final generation member %d marked bred", rec.ID)
			}
			continue
		}
		if rec.Bred != parents[rec.ID] {
			t.Fatalf("member %d bred=%t, contributed=%t", rec.ID, rec.Bred, parents[rec.ID])
		}
	}
}

func TestRunBalancedModesKeepPopulationConstant(t *testing.T) {
	// Two breeding pairs with litter size two replace the population exactly.
	maps, err := recmap.New(4, recmap.Uniform(4, 0.2))
	if err != nil {
		t.Fatalf("recmap: %v", err)
	}
	cfg := Config{
		Loci:                  4,
		AlleleFrequencies:     uniformFrequencies(4, 0.5),
		FounderHaplotypes:     8,
		Females:               2,
		Males:                 2,
		OffspringPerFemale:    2,
		FemaleThreshold:       1.0,
		MaleThreshold:         1.0,
		ModifierFrequency:     0,
		Generations:           1,
		ForceEqualSex:         true,
		ForceEqualMaleSuccess: true,
		Seed:                  55,
		Maps:                  maps,
	}
	eng, err := New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	result, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	sexes := map[model.Sex]int{}
	perFather := map[int64]int{}
	next := 0
	for _, rec := range result.Records {
		if rec.Generation != 1 {
			continue
		}
		next++
		sexes[rec.Sex]++
		perFather[rec.FatherID]++
	}
	if next != 4 {
		t.Fatalf("next generation size = %d, want 4", next)
	}
	if sexes[model.SexFemale] != 2 || sexes[model.SexMale] != 2 {
		t.Fatalf("sex split %v, want 2/2", sexes)
	}
	for father, count := range perFather {
		if count != 2 {
			t.Fatalf("father %d has %d offspring, want 2", father, count)
		}
	}
}

func TestRunSignalsExtinctionWhenMaleCutoffIsZero(t *testing.T) {
	cfg := testConfig(t)
	cfg.Males = 8
	cfg.MaleThreshold = 0.1 // floor(0.1 * 8) = 0 breeding males
	eng, err := New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	result, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Outcome != OutcomeExtinct {
		t.Fatalf("outcome = %s, want extinct", result.Outcome)
	}
	if result.ExtinctAtGeneration != 1 {
		t.Fatalf("extinct at generation %d, want 1", result.ExtinctAtGeneration)
	}
	for _, rec := range result.Records {
		if rec.Generation != 0 {
			t.Fatalf("extinct run recorded generation %d", rec.Generation)
		}
	}
}

func TestRunSelectsMapsByParentGenotype(t *testing.T) {
	inner, err := recmap.New(6, recmap.Uniform(6, 0), recmap.Uniform(6, 0.5), recmap.Uniform(6, 1))
	if err != nil {
		t.Fatalf("recmap: %v", err)
	}
	recorder := &recordingMapSource{inner: inner, genotypes: map[int]int{}}

	cfg := testConfig(t)
	cfg.Maps = recorder
	cfg.ModifierFrequency = 0
	cfg.Workers = 4
	eng, err := New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := eng.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	// A modifier frequency of zero fixes every parent at genotype 0, so no
	// other map index may ever be consulted.
	if recorder.genotypes[1] != 0 || recorder.genotypes[2] != 0 {
		t.Fatalf("maps consulted for absent genotypes: %v", recorder.genotypes)
	}
	if recorder.genotypes[0] == 0 {
		t.Fatal("homozygote map never consulted")
	}
}

func TestRunFixedModifierFrequenciesStayFixed(t *testing.T) {
	for freq, want := range map[float64]int{0: 0, 1: 2} {
		cfg := testConfig(t)
		cfg.ModifierFrequency = freq
		eng, err := New(cfg)
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		result, err := eng.Run(context.Background())
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		for _, rec := range result.Records {
			if rec.ModifierGenotype != want {
				t.Fatalf("frequency %v: modifier genotype %d, want %d", freq, rec.ModifierGenotype, want)
			}
		}
	}
}

func TestRunSharedFoundersMatchGenerationZero(t *testing.T) {
	cfg := testConfig(t)
	founders, err := founder.Generate(founder.Config{
		Loci:              cfg.Loci,
		AlleleFrequencies: cfg.AlleleFrequencies,
		HaplotypePool:     cfg.FounderHaplotypes,
		Females:           cfg.Females,
		Males:             cfg.Males,
	}, rand.New(rand.NewSource(777)))
	if err != nil {
		t.Fatalf("founders: %v", err)
	}

	genZero := func(modifierFreq float64, seed int64) []model.IndividualRecord {
		runCfg := cfg
		runCfg.Founders = founders
		runCfg.ModifierFrequency = modifierFreq
		runCfg.Seed = seed
		eng, err := New(runCfg)
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		result, err := eng.Run(context.Background())
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		var out []model.IndividualRecord
		for _, rec := range result.Records {
			if rec.Generation == 0 {
				out = append(out, rec)
			}
		}
		return out
	}

	a := genZero(0.2, 1)
	b := genZero(0.8, 2)
	if len(a) != len(b) {
		t.Fatalf("generation-0 sizes differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Sex != b[i].Sex || a[i].Phenotype != b[i].Phenotype {
			t.Fatalf("generation-0 identity differs at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestGuardRetriesUntilCompletion(t *testing.T) {
	cfg := testConfig(t)
	completed, attempts, err := Guard{Retries: 3}.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("guard run: %v", err)
	}
	if completed.Outcome != OutcomeCompleted || attempts != 1 {
		t.Fatalf("outcome=%s attempts=%d, want completed on first attempt", completed.Outcome, attempts)
	}

	cfg.MaleThreshold = 0.1 // always collapses: floor(0.1 * 8) = 0
	extinct, attempts, err := Guard{Retries: 2}.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("guard run: %v", err)
	}
	if extinct.Outcome != OutcomeExtinct {
		t.Fatalf("outcome = %s, want extinct", extinct.Outcome)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestRunHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	eng, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := eng.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}
