package meiosis

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"chiasma/internal/model"
)

func parentPair() [2]model.Haplotype {
	return [2]model.Haplotype{
		{0, 0, 0, 0},
		{1, 1, 1, 1},
	}
}

func TestGameteValidates(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	if _, _, err := Gamete(parentPair(), []float64{0, 0, 0}, nil); !errors.Is(err, model.ErrInvalidConfiguration) {
		t.Fatalf("nil rng: expected invalid configuration, got %v", err)
	}
	if _, _, err := Gamete(parentPair(), []float64{0, 0}, rng); !errors.Is(err, model.ErrInvalidConfiguration) {
		t.Fatalf("short map: expected invalid configuration, got %v", err)
	}
	uneven := [2]model.Haplotype{{0, 0}, {1, 1, 1}}
	if _, _, err := Gamete(uneven, []float64{0}, rng); !errors.Is(err, model.ErrInvalidConfiguration) {
		t.Fatalf("uneven pair: expected invalid configuration, got %v", err)
	}
}

func TestZeroMapTransmitsParentalHaplotypeVerbatim(t *testing.T) {
	pair := parentPair()
	zero := []float64{0, 0, 0}
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 200; trial++ {
		gamete, crossovers, err := Gamete(pair, zero, rng)
		if err != nil {
			t.Fatalf("gamete: %v", err)
		}
		if crossovers != 0 {
			t.Fatalf("crossovers = %d under all-zero map", crossovers)
		}
		if !reflect.DeepEqual(gamete, pair[0]) && !reflect.DeepEqual(gamete, pair[1]) {
			t.Fatalf("gamete %v is a mixture under all-zero map", gamete)
		}
	}
}

func TestZeroMapTransmitsBothParentals(t *testing.T) {
	pair := parentPair()
	zero := []float64{0, 0, 0}
	rng := rand.New(rand.NewSource(9))

	seen := map[uint8]int{}
	for trial := 0; trial < 400; trial++ {
		gamete, _, err := Gamete(pair, zero, rng)
		if err != nil {
			t.Fatalf("gamete: %v", err)
		}
		seen[gamete[0]]++
	}
	if seen[0] == 0 || seen[1] == 0 {
		t.Fatalf("expected both parental haplotypes to transmit, got %v", seen)
	}
}

func TestCertainCrossoverAlternatesStrands(t *testing.T) {
	pair := parentPair()
	one := []float64{1, 1, 1}
	rng := rand.New(rand.NewSource(17))

	for trial := 0; trial < 100; trial++ {
		gamete, crossovers, err := Gamete(pair, one, rng)
		if err != nil {
			t.Fatalf("gamete: %v", err)
		}
		if crossovers != 3 {
			t.Fatalf("crossovers = %d under all-one map, want 3", crossovers)
		}
		for locus := 1; locus < len(gamete); locus++ {
			if gamete[locus] == gamete[locus-1] {
				t.Fatalf("gamete %v does not alternate under certain crossover", gamete)
			}
		}
	}
}

func TestGameteIsFreshCopy(t *testing.T) {
	pair := parentPair()
	rng := rand.New(rand.NewSource(3))
	gamete, _, err := Gamete(pair, []float64{0, 0, 0}, rng)
	if err != nil {
		t.Fatalf("gamete: %v", err)
	}
	gamete[0] = 1 - gamete[0]
	if pair[0][0] != 0 || pair[1][0] != 1 {
		t.Fatal("gamete aliases a parental haplotype")
	}
}

func TestModifierGameteIsMendelian(t *testing.T) {
	rng := rand.New(rand.NewSource(23))

	// Homozygotes transmit their single allele with no variance.
	for trial := 0; trial < 100; trial++ {
		if ModifierGamete([2]uint8{0, 0}, rng) != 0 {
			t.Fatal("homozygote 0 transmitted a 1 allele")
		}
		if ModifierGamete([2]uint8{1, 1}, rng) != 1 {
			t.Fatal("homozygote 2 transmitted a 0 allele")
		}
	}

	// A cross of opposite homozygotes always yields the heterozygote.
	for trial := 0; trial < 100; trial++ {
		offspring := int(ModifierGamete([2]uint8{0, 0}, rng)) + int(ModifierGamete([2]uint8{1, 1}, rng))
		if offspring != 1 {
			t.Fatalf("offspring modifier genotype = %d, want 1", offspring)
		}
	}

	// Heterozygotes transmit both alleles.
	seen := map[uint8]int{}
	for trial := 0; trial < 400; trial++ {
		seen[ModifierGamete([2]uint8{0, 1}, rng)]++
	}
	if seen[0] == 0 || seen[1] == 0 {
		t.Fatalf("heterozygote transmitted only one allele: %v", seen)
	}
}
