// Package mating turns breeder sets into a concrete list of offspring
// assignments.
package mating

import (
	"fmt"
	"math/rand"

	"chiasma/internal/model"
)

// Assignment schedules one offspring: who its parents are and which sex it
// will be. The scheduler creates no individuals itself.
type Assignment struct {
	MotherID int64
	FatherID int64
	Sex      model.Sex
}

// Build produces one assignment per offspring slot. Every breeding female
// contributes exactly offspringPerFemale slots, in female order.
//
// Offspring sex: with forceEqualSex each litter splits as evenly as possible
// between the sexes, an odd remainder resolved by fair coin; otherwise each
// slot's sex is an independent fair coin flip.
//
// Paternity: with forceEqualMaleSuccess fathers are dealt round-robin from a
// shuffled male order onto a shuffled slot order, so per-male totals differ
// by at most one; otherwise each slot's father is drawn independently and
// uniformly with replacement.
//
// Draw order is fixed: all sex draws (per female, in order), then all
// paternity draws.
func Build(females, males []model.Individual, offspringPerFemale int, forceEqualSex, forceEqualMaleSuccess bool, rng *rand.Rand) ([]Assignment, error) {
	if rng == nil {
		return nil, fmt.Errorf("%w: random source is required", model.ErrInvalidConfiguration)
	}
	if offspringPerFemale <= 0 {
		return nil, fmt.Errorf("%w: offspring per female must be > 0, got %d", model.ErrInvalidConfiguration, offspringPerFemale)
	}
	if len(females) == 0 || len(males) == 0 {
		return nil, fmt.Errorf("%w: breeder sets must be non-empty, got %d females and %d males", model.ErrInvalidConfiguration, len(females), len(males))
	}

	assignments := make([]Assignment, 0, len(females)*offspringPerFemale)
	for _, mother := range females {
		litter := litterSexes(offspringPerFemale, forceEqualSex, rng)
		for _, sex := range litter {
			assignments = append(assignments, Assignment{MotherID: mother.ID, Sex: sex})
		}
	}

	if forceEqualMaleSuccess {
		shuffledMales := append([]model.Individual(nil), males...)
		rng.Shuffle(len(shuffledMales), func(i, j int) {
			shuffledMales[i], shuffledMales[j] = shuffledMales[j], shuffledMales[i]
		})
		for k, slot := range rng.Perm(len(assignments)) {
			assignments[slot].FatherID = shuffledMales[k%len(shuffledMales)].ID
		}
	} else {
		for i := range assignments {
			assignments[i].FatherID = males[rng.Intn(len(males))].ID
		}
	}

	return assignments, nil
}

func litterSexes(size int, forceEqualSex bool, rng *rand.Rand) []model.Sex {
	sexes := make([]model.Sex, size)
	if !forceEqualSex {
		for i := range sexes {
			if rng.Intn(2) == 0 {
				sexes[i] = model.SexFemale
			} else {
				sexes[i] = model.SexMale
			}
		}
		return sexes
	}

	half := size / 2
	femaleCount := half
	maleCount := half
	if size%2 == 1 {
		if rng.Intn(2) == 0 {
			femaleCount++
		} else {
			maleCount++
		}
	}
	for i := 0; i < femaleCount; i++ {
		sexes[i] = model.SexFemale
	}
	for i := femaleCount; i < femaleCount+maleCount; i++ {
		sexes[i] = model.SexMale
	}
	return sexes
}
