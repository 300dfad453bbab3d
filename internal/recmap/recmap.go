// Package recmap owns the genotype-indexed recombination maps.
package recmap

import (
	"fmt"

	"chiasma/internal/model"
)

// Model holds 1 or exactly 3 per-boundary crossover probability vectors of
// length loci-1. With 3 maps the modifier genotype picks the map; with 1 map
// the genotype is ignored (the no-modifier-effect configuration).
type Model struct {
	loci int
	maps [][]float64
}

func New(loci int, maps ...[]float64) (*Model, error) {
	if loci <= 0 {
		return nil, fmt.Errorf("%w: loci must be > 0, got %d", model.ErrInvalidConfiguration, loci)
	}
	if len(maps) != 1 && len(maps) != 3 {
		return nil, fmt.Errorf("%w: got %d maps, want 1 or 3", model.ErrMapGenotypeMismatch, len(maps))
	}
	owned := make([][]float64, len(maps))
	for i, probs := range maps {
		if len(probs) != loci-1 {
			return nil, fmt.Errorf("%w: map %d has %d boundaries, want %d", model.ErrMapGenotypeMismatch, i, len(probs), loci-1)
		}
		for j, p := range probs {
			if p < 0 || p > 1 {
				return nil, fmt.Errorf("%w: map %d probability out of [0,1] at boundary %d: %v", model.ErrInvalidConfiguration, i, j, p)
			}
		}
		owned[i] = append([]float64(nil), probs...)
	}
	return &Model{loci: loci, maps: owned}, nil
}

// MapFor returns the crossover probability vector governing meiosis in a
// parent of the given modifier genotype.
func (m *Model) MapFor(genotype int) ([]float64, error) {
	if genotype < 0 || genotype > 2 {
		return nil, fmt.Errorf("%w: modifier genotype %d outside {0,1,2}", model.ErrMapGenotypeMismatch, genotype)
	}
	if len(m.maps) == 1 {
		return m.maps[0], nil
	}
	return m.maps[genotype], nil
}

func (m *Model) MapCount() int { return len(m.maps) }

func (m *Model) Loci() int { return m.loci }

// Uniform builds a map with the same crossover probability at every boundary.
func Uniform(loci int, p float64) []float64 {
	probs := make([]float64, loci-1)
	for i := range probs {
		probs[i] = p
	}
	return probs
}
