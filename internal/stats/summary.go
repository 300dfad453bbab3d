// Package stats aggregates the engine's per-generation records into the
// trajectories the simulation exists to compare: mean trait value, trait
// variance, and modifier-allele frequency.
package stats

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"chiasma/internal/model"
)

type GenerationSummary struct {
	Generation        int     `json:"generation"`
	Count             int     `json:"count"`
	Females           int     `json:"females"`
	Males             int     `json:"males"`
	Breeders          int     `json:"breeders"`
	MeanPhenotype     float64 `json:"mean_phenotype"`
	PhenotypeVariance float64 `json:"phenotype_variance"`
	// ModifierFrequency is the frequency of the 1 allele at the modifier
	// locus: sum of modifier genotypes over twice the population size.
	ModifierFrequency float64 `json:"modifier_frequency"`
}

// Summarize collapses a run's records into one summary per generation,
// ordered by generation.
func Summarize(records []model.IndividualRecord) []GenerationSummary {
	phenotypes := map[int][]float64{}
	byGeneration := map[int]*GenerationSummary{}
	for _, rec := range records {
		summary := byGeneration[rec.Generation]
		if summary == nil {
			summary = &GenerationSummary{Generation: rec.Generation}
			byGeneration[rec.Generation] = summary
		}
		summary.Count++
		switch rec.Sex {
		case model.SexFemale:
			summary.Females++
		case model.SexMale:
			summary.Males++
		}
		if rec.Bred {
			summary.Breeders++
		}
		summary.ModifierFrequency += float64(rec.ModifierGenotype)
		phenotypes[rec.Generation] = append(phenotypes[rec.Generation], float64(rec.Phenotype))
	}

	generations := make([]int, 0, len(byGeneration))
	for gen := range byGeneration {
		generations = append(generations, gen)
	}
	sort.Ints(generations)

	out := make([]GenerationSummary, 0, len(generations))
	for _, gen := range generations {
		summary := byGeneration[gen]
		values := phenotypes[gen]
		summary.MeanPhenotype = stat.Mean(values, nil)
		if len(values) > 1 {
			summary.PhenotypeVariance = stat.Variance(values, nil)
		}
		summary.ModifierFrequency /= 2 * float64(summary.Count)
		out = append(out, *summary)
	}
	return out
}

// TrajectoryPoint is one generation of a cross-replicate aggregate.
type TrajectoryPoint struct {
	Generation        int     `json:"generation"`
	Replicates        int     `json:"replicates"`
	MeanPhenotype     float64 `json:"mean_phenotype"`
	PhenotypeVariance float64 `json:"phenotype_variance"`
	ModifierFrequency float64 `json:"modifier_frequency"`
}

// AggregateReplicates averages per-generation summaries across replicate
// runs. Replicates that went extinct contribute only the generations they
// completed, so later points may rest on fewer replicates.
func AggregateReplicates(replicates [][]GenerationSummary) ([]TrajectoryPoint, error) {
	if len(replicates) == 0 {
		return nil, fmt.Errorf("no replicates to aggregate")
	}

	byGeneration := map[int][]GenerationSummary{}
	for _, summaries := range replicates {
		for _, summary := range summaries {
			byGeneration[summary.Generation] = append(byGeneration[summary.Generation], summary)
		}
	}

	generations := make([]int, 0, len(byGeneration))
	for gen := range byGeneration {
		generations = append(generations, gen)
	}
	sort.Ints(generations)

	out := make([]TrajectoryPoint, 0, len(generations))
	for _, gen := range generations {
		group := byGeneration[gen]
		means := make([]float64, len(group))
		variances := make([]float64, len(group))
		frequencies := make([]float64, len(group))
		for i, summary := range group {
			means[i] = summary.MeanPhenotype
			variances[i] = summary.PhenotypeVariance
			frequencies[i] = summary.ModifierFrequency
		}
		out = append(out, TrajectoryPoint{
			Generation:        gen,
			Replicates:        len(group),
			MeanPhenotype:     stat.Mean(means, nil),
			PhenotypeVariance: stat.Mean(variances, nil),
			ModifierFrequency: stat.Mean(frequencies, nil),
		})
	}
	return out, nil
}
