// Package founder builds the haplotype pool and the generation-0 population.
//
// A founder population is immutable once generated and carries no modifier
// alleles: those are drawn when the founders are instantiated for a run, so
// the same founder object can seed runs with different modifier frequencies
// while keeping generation-0 genetics identical.
package founder

import (
	"fmt"
	"math/rand"

	"chiasma/internal/model"
)

type Config struct {
	Loci int
	// AlleleFrequencies[i] is the frequency of the 1 allele at locus i.
	// Locus i of each pool haplotype is set to 1 with this probability.
	AlleleFrequencies []float64
	HaplotypePool     int
	Females           int
	Males             int
}

func (c Config) validate() error {
	if c.Loci <= 0 {
		return fmt.Errorf("%w: loci must be > 0, got %d", model.ErrInvalidConfiguration, c.Loci)
	}
	if len(c.AlleleFrequencies) != c.Loci {
		return fmt.Errorf("%w: allele frequency vector length %d, want %d", model.ErrInvalidConfiguration, len(c.AlleleFrequencies), c.Loci)
	}
	for i, f := range c.AlleleFrequencies {
		if f < 0 || f > 1 {
			return fmt.Errorf("%w: allele frequency out of [0,1] at locus %d: %v", model.ErrInvalidConfiguration, i, f)
		}
	}
	if c.HaplotypePool <= 0 {
		return fmt.Errorf("%w: founder haplotype count must be > 0, got %d", model.ErrInvalidConfiguration, c.HaplotypePool)
	}
	if c.Females <= 0 {
		return fmt.Errorf("%w: female count must be > 0, got %d", model.ErrInvalidConfiguration, c.Females)
	}
	if c.Males <= 0 {
		return fmt.Errorf("%w: male count must be > 0, got %d", model.ErrInvalidConfiguration, c.Males)
	}
	return nil
}

// Population is the immutable founder structure: the sampled haplotype pool
// and the generation-0 members with IDs 1..Females+Males. Members carry no
// modifier alleles until Instantiate.
type Population struct {
	Loci    int
	Pool    []model.Haplotype
	Members []model.Individual
}

// Generate samples the haplotype pool by independent Bernoulli trials per
// locus and assembles the generation-0 members, each drawing two pool
// haplotypes independently with replacement.
func Generate(cfg Config, rng *rand.Rand) (*Population, error) {
	if rng == nil {
		return nil, fmt.Errorf("%w: random source is required", model.ErrInvalidConfiguration)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	pool := make([]model.Haplotype, cfg.HaplotypePool)
	for i := range pool {
		hap := make(model.Haplotype, cfg.Loci)
		for locus := 0; locus < cfg.Loci; locus++ {
			if rng.Float64() < cfg.AlleleFrequencies[locus] {
				hap[locus] = 1
			}
		}
		pool[i] = hap
	}

	members := make([]model.Individual, 0, cfg.Females+cfg.Males)
	nextID := int64(1)
	for _, sex := range []model.Sex{model.SexFemale, model.SexMale} {
		count := cfg.Females
		if sex == model.SexMale {
			count = cfg.Males
		}
		for i := 0; i < count; i++ {
			a := pool[rng.Intn(len(pool))].Clone()
			b := pool[rng.Intn(len(pool))].Clone()
			members = append(members, model.Individual{
				ID:         nextID,
				Generation: 0,
				Sex:        sex,
				Haplotypes: [2]model.Haplotype{a, b},
				Phenotype:  model.PhenotypeOf(a, b),
			})
			nextID++
		}
	}

	return &Population{Loci: cfg.Loci, Pool: pool, Members: members}, nil
}

// Instantiate copies the founder members into a fresh generation-0 population
// and draws each member's two modifier alleles under Hardy-Weinberg
// proportions: two independent Bernoulli(modifierFreq) trials, unlinked to
// the haplotype pairs. The founder object itself is left untouched.
func (p *Population) Instantiate(modifierFreq float64, rng *rand.Rand) ([]model.Individual, error) {
	if rng == nil {
		return nil, fmt.Errorf("%w: random source is required", model.ErrInvalidConfiguration)
	}
	if modifierFreq < 0 || modifierFreq > 1 {
		return nil, fmt.Errorf("%w: modifier frequency out of [0,1]: %v", model.ErrInvalidConfiguration, modifierFreq)
	}

	out := make([]model.Individual, len(p.Members))
	for i, member := range p.Members {
		ind := member
		ind.Haplotypes = [2]model.Haplotype{
			member.Haplotypes[0].Clone(),
			member.Haplotypes[1].Clone(),
		}
		for a := 0; a < 2; a++ {
			if rng.Float64() < modifierFreq {
				ind.ModifierAlleles[a] = 1
			} else {
				ind.ModifierAlleles[a] = 0
			}
		}
		out[i] = ind
	}
	return out, nil
}

// NextID is the first ID available to generation 1.
func (p *Population) NextID() int64 {
	return int64(len(p.Members)) + 1
}

// Snapshot converts the founder population into its persistable form.
func (p *Population) Snapshot(id string) model.FounderSnapshot {
	pool := make([]model.Haplotype, len(p.Pool))
	for i, hap := range p.Pool {
		pool[i] = hap.Clone()
	}
	members := make([]model.Individual, len(p.Members))
	for i, member := range p.Members {
		ind := member
		ind.Haplotypes = [2]model.Haplotype{
			member.Haplotypes[0].Clone(),
			member.Haplotypes[1].Clone(),
		}
		members[i] = ind
	}
	return model.FounderSnapshot{ID: id, Loci: p.Loci, Pool: pool, Members: members}
}

// FromSnapshot rebuilds a founder population from its persisted form.
func FromSnapshot(snap model.FounderSnapshot) (*Population, error) {
	if snap.Loci <= 0 {
		return nil, fmt.Errorf("%w: founder snapshot loci must be > 0, got %d", model.ErrInvalidConfiguration, snap.Loci)
	}
	if len(snap.Members) == 0 {
		return nil, fmt.Errorf("%w: founder snapshot has no members", model.ErrInvalidConfiguration)
	}
	for _, member := range snap.Members {
		if len(member.Haplotypes[0]) != snap.Loci || len(member.Haplotypes[1]) != snap.Loci {
			return nil, fmt.Errorf("%w: founder member %d haplotype length mismatch", model.ErrInvalidConfiguration, member.ID)
		}
	}
	pool := make([]model.Haplotype, len(snap.Pool))
	for i, hap := range snap.Pool {
		pool[i] = hap.Clone()
	}
	members := make([]model.Individual, len(snap.Members))
	for i, member := range snap.Members {
		ind := member
		ind.Haplotypes = [2]model.Haplotype{
			member.Haplotypes[0].Clone(),
			member.Haplotypes[1].Clone(),
		}
		members[i] = ind
	}
	return &Population{Loci: snap.Loci, Pool: pool, Members: members}, nil
}
