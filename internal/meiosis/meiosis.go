// Package meiosis builds single gametes from a parent's haplotype pair.
package meiosis

import (
	"fmt"
	"math/rand"

	"chiasma/internal/model"
)

// Gamete performs one meiosis: it samples a crossover at every boundary by an
// independent Bernoulli trial against probs, copies each locus from whichever
// parental strand is active at that position, and returns one of the two
// complementary recombinants by fair coin, plus the crossover count.
//
// Draw order is fixed for reproducibility: starting strand, then one trial
// per boundary in locus order, then the transmitting coin.
func Gamete(pair [2]model.Haplotype, probs []float64, rng *rand.Rand) (model.Haplotype, int, error) {
	if rng == nil {
		return nil, 0, fmt.Errorf("%w: random source is required", model.ErrInvalidConfiguration)
	}
	loci := len(pair[0])
	if loci == 0 || len(pair[1]) != loci {
		return nil, 0, fmt.Errorf("%w: haplotype pair lengths %d/%d", model.ErrInvalidConfiguration, loci, len(pair[1]))
	}
	if len(probs) != loci-1 {
		return nil, 0, fmt.Errorf("%w: recombination map has %d boundaries, want %d", model.ErrInvalidConfiguration, len(probs), loci-1)
	}

	recombinants := [2]model.Haplotype{
		make(model.Haplotype, loci),
		make(model.Haplotype, loci),
	}
	active := rng.Intn(2)
	crossovers := 0
	for locus := 0; locus < loci; locus++ {
		recombinants[0][locus] = pair[active][locus]
		recombinants[1][locus] = pair[1-active][locus]
		if locus < loci-1 && rng.Float64() < probs[locus] {
			active = 1 - active
			crossovers++
		}
	}

	return recombinants[rng.Intn(2)], crossovers, nil
}

// ModifierGamete transmits one of the two modifier alleles uniformly at
// random, independent of the haplotype gamete draw.
func ModifierGamete(alleles [2]uint8, rng *rand.Rand) uint8 {
	return alleles[rng.Intn(2)]
}
