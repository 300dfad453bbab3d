package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

type Sex string

const (
	SexFemale Sex = "female"
	SexMale   Sex = "male"
)

// Haplotype is one chromosome copy: an ordered sequence of 0/1 locus values.
// A haplotype is never mutated after construction; gametes are always built
// as fresh copies.
type Haplotype []uint8

func (h Haplotype) Clone() Haplotype {
	out := make(Haplotype, len(h))
	copy(out, h)
	return out
}

// Individual is one diploid member of a generation. It exclusively owns its
// two haplotypes and its two modifier alleles.
type Individual struct {
	ID              int64        `json:"id"`
	Generation      int          `json:"generation"`
	MotherID        int64        `json:"mother_id"`
	FatherID        int64        `json:"father_id"`
	Sex             Sex          `json:"sex"`
	Haplotypes      [2]Haplotype `json:"haplotypes"`
	ModifierAlleles [2]uint8     `json:"modifier_alleles"`
	Phenotype       int          `json:"phenotype"`
	Bred            bool         `json:"bred"`
}

// ModifierGenotype is the modifier-allele sum: 0 and 2 are the homozygotes,
// 1 is the heterozygote.
func (ind Individual) ModifierGenotype() int {
	return int(ind.ModifierAlleles[0]) + int(ind.ModifierAlleles[1])
}

func (ind Individual) Record() IndividualRecord {
	return IndividualRecord{
		Generation:       ind.Generation,
		ID:               ind.ID,
		MotherID:         ind.MotherID,
		FatherID:         ind.FatherID,
		Sex:              ind.Sex,
		Phenotype:        ind.Phenotype,
		ModifierGenotype: ind.ModifierGenotype(),
		Bred:             ind.Bred,
	}
}

// PhenotypeOf is the trait value of a haplotype pair: the count of 1 alleles
// across both copies, in [0, 2*loci].
func PhenotypeOf(a, b Haplotype) int {
	total := 0
	for _, v := range a {
		total += int(v)
	}
	for _, v := range b {
		total += int(v)
	}
	return total
}

// IndividualRecord is one output row of a run: the per-generation snapshot
// consumed by downstream aggregation.
type IndividualRecord struct {
	Generation       int   `json:"generation"`
	ID               int64 `json:"id"`
	MotherID         int64 `json:"mother_id"`
	FatherID         int64 `json:"father_id"`
	Sex              Sex   `json:"sex"`
	Phenotype        int   `json:"phenotype"`
	ModifierGenotype int   `json:"modifier_genotype"`
	Bred             bool  `json:"bred"`
}

// RunRecord is the persisted description of one completed or extinct run.
type RunRecord struct {
	VersionedRecord
	RunID                 string  `json:"run_id"`
	CreatedAtUTC          string  `json:"created_at_utc"`
	Loci                  int     `json:"loci"`
	FounderHaplotypes     int     `json:"founder_haplotypes"`
	Females               int     `json:"females"`
	Males                 int     `json:"males"`
	OffspringPerFemale    int     `json:"offspring_per_female"`
	FemaleThreshold       float64 `json:"female_threshold"`
	MaleThreshold         float64 `json:"male_threshold"`
	ModifierFrequency     float64 `json:"modifier_frequency"`
	Generations           int     `json:"generations"`
	ForceEqualSex         bool    `json:"force_equal_sex"`
	ForceEqualMaleSuccess bool    `json:"force_equal_male_success"`
	MapCount              int     `json:"map_count"`
	Seed                  int64   `json:"seed"`
	Workers               int     `json:"workers"`
	Outcome               string  `json:"outcome"`
	ExtinctAtGeneration   int     `json:"extinct_at_generation,omitempty"`
	FounderID             string  `json:"founder_id,omitempty"`
}

// FounderSnapshot is a persisted founder population, reloadable so that
// comparative runs share identical starting genetics.
type FounderSnapshot struct {
	VersionedRecord
	ID      string       `json:"id"`
	Loci    int          `json:"loci"`
	Pool    []Haplotype  `json:"pool"`
	Members []Individual `json:"members"`
}
