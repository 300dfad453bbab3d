package mating

import (
	"errors"
	"math/rand"
	"testing"

	"chiasma/internal/model"
)

func breeders(femaleIDs, maleIDs []int64) (females, males []model.Individual) {
	for _, id := range femaleIDs {
		females = append(females, model.Individual{ID: id, Sex: model.SexFemale})
	}
	for _, id := range maleIDs {
		males = append(males, model.Individual{ID: id, Sex: model.SexMale})
	}
	return females, males
}

func TestBuildValidates(t *testing.T) {
	females, males := breeders([]int64{1}, []int64{2})
	rng := rand.New(rand.NewSource(1))

	if _, err := Build(females, males, 0, false, false, rng); !errors.Is(err, model.ErrInvalidConfiguration) {
		t.Fatalf("zero litter: expected invalid configuration, got %v", err)
	}
	if _, err := Build(nil, males, 2, false, false, rng); !errors.Is(err, model.ErrInvalidConfiguration) {
		t.Fatalf("no females: expected invalid configuration, got %v", err)
	}
	if _, err := Build(females, nil, 2, false, false, rng); !errors.Is(err, model.ErrInvalidConfiguration) {
		t.Fatalf("no males: expected invalid configuration, got %v", err)
	}
	if _, err := Build(females, males, 2, false, false, nil); !errors.Is(err, model.ErrInvalidConfiguration) {
		t.Fatalf("nil rng: expected invalid configuration, got %v", err)
	}
}

func TestBuildLitterSizesAreFixed(t *testing.T) {
	females, males := breeders([]int64{1, 2, 3}, []int64{10, 11})
	rng := rand.New(rand.NewSource(5))

	assignments, err := Build(females, males, 4, false, false, rng)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(assignments) != 12 {
		t.Fatalf("assignment count = %d, want 12", len(assignments))
	}
	perMother := map[int64]int{}
	for _, a := range assignments {
		perMother[a.MotherID]++
	}
	for _, f := range females {
		if perMother[f.ID] != 4 {
			t.Fatalf("mother %d has %d offspring, want 4", f.ID, perMother[f.ID])
		}
	}
}

func TestBuildEqualSexSplitsEvenLitters(t *testing.T) {
	females, males := breeders([]int64{1, 2}, []int64{10})
	rng := rand.New(rand.NewSource(7))

	assignments, err := Build(females, males, 4, true, false, rng)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	perMotherSex := map[int64]map[model.Sex]int{}
	for _, a := range assignments {
		if perMotherSex[a.MotherID] == nil {
			perMotherSex[a.MotherID] = map[model.Sex]int{}
		}
		perMotherSex[a.MotherID][a.Sex]++
	}
	for motherID, counts := range perMotherSex {
		if counts[model.SexFemale] != 2 || counts[model.SexMale] != 2 {
			t.Fatalf("mother %d litter split %v, want 2/2", motherID, counts)
		}
	}
}

func TestBuildEqualSexOddLitterWithinOne(t *testing.T) {
	females, males := breeders([]int64{1}, []int64{10})

	for seed := int64(0); seed < 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		assignments, err := Build(females, males, 5, true, false, rng)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		counts := map[model.Sex]int{}
		for _, a := range assignments {
			counts[a.Sex]++
		}
		diff := counts[model.SexFemale] - counts[model.SexMale]
		if diff < -1 || diff > 1 {
			t.Fatalf("seed %d: odd litter split %v differs by more than one", seed, counts)
		}
	}
}

func TestBuildEqualMaleSuccessBalancesPaternity(t *testing.T) {
	females, males := breeders([]int64{1, 2, 3, 4, 5}, []int64{10, 11, 12})

	for seed := int64(0); seed < 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		assignments, err := Build(females, males, 2, false, true, rng)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		perFather := map[int64]int{}
		for _, a := range assignments {
			perFather[a.FatherID]++
		}
		minCount, maxCount := len(assignments), 0
		for _, m := range males {
			c := perFather[m.ID]
			if c < minCount {
				minCount = c
			}
			if c > maxCount {
				maxCount = c
			}
		}
		if maxCount-minCount > 1 {
			t.Fatalf("seed %d: paternity spread %v exceeds one", seed, perFather)
		}
	}
}

func TestBuildFreePaternityCoversAllFathers(t *testing.T) {
	females, males := breeders([]int64{1, 2, 3, 4, 5, 6, 7, 8}, []int64{10, 11, 12})
	rng := rand.New(rand.NewSource(3))

	perFather := map[int64]int{}
	for trial := 0; trial < 50; trial++ {
		assignments, err := Build(females, males, 3, false, false, rng)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		for _, a := range assignments {
			perFather[a.FatherID]++
		}
	}
	for _, m := range males {
		if perFather[m.ID] == 0 {
			t.Fatalf("father %d never drawn under uniform paternity", m.ID)
		}
	}
}

func TestBuildTwoByTwoEqualModes(t *testing.T) {
	// Two breeding females, litter 2, both balancing modes: exactly four
	// offspring, two of each sex, and each male fathers exactly two.
	females, males := breeders([]int64{1, 2}, []int64{3, 4})
	rng := rand.New(rand.NewSource(13))

	assignments, err := Build(females, males, 2, true, true, rng)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(assignments) != 4 {
		t.Fatalf("assignment count = %d, want 4", len(assignments))
	}
	sexes := map[model.Sex]int{}
	perFather := map[int64]int{}
	for _, a := range assignments {
		sexes[a.Sex]++
		perFather[a.FatherID]++
	}
	if sexes[model.SexFemale] != 2 || sexes[model.SexMale] != 2 {
		t.Fatalf("sex split %v, want 2/2", sexes)
	}
	if perFather[3] != 2 || perFather[4] != 2 {
		t.Fatalf("paternity %v, want two each", perFather)
	}
}
