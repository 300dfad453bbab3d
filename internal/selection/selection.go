// Package selection implements truncation selection on the polygenic trait.
package selection

import (
	"math"
	"sort"

	"chiasma/internal/model"
)

// Breeders ranks each sex by phenotype descending and returns the top
// floor(threshold * sexSize) of each as the breeding sets. Ties at the
// cutoff break by ascending ID so runs stay reproducible. Either returned
// set may be empty; the caller treats that as an extinction event.
func Breeders(population []model.Individual, femaleThreshold, maleThreshold float64) (females, males []model.Individual) {
	var f, m []model.Individual
	for _, ind := range population {
		switch ind.Sex {
		case model.SexFemale:
			f = append(f, ind)
		case model.SexMale:
			m = append(m, ind)
		}
	}
	return truncate(f, femaleThreshold), truncate(m, maleThreshold)
}

func truncate(group []model.Individual, threshold float64) []model.Individual {
	ranked := append([]model.Individual(nil), group...)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Phenotype != ranked[j].Phenotype {
			return ranked[i].Phenotype > ranked[j].Phenotype
		}
		return ranked[i].ID < ranked[j].ID
	})
	keep := int(math.Floor(threshold * float64(len(ranked))))
	if keep > len(ranked) {
		keep = len(ranked)
	}
	if keep <= 0 {
		return nil
	}
	return ranked[:keep]
}
