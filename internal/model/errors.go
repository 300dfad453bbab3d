package model

import "errors"

// ErrInvalidConfiguration marks any structural precondition violation:
// non-positive counts, out-of-range frequencies or thresholds, mismatched
// vector lengths. Raised before any generation executes.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// ErrMapGenotypeMismatch marks a recombination-map set whose shape cannot be
// indexed by a modifier genotype: a map count that is neither 1 nor 3, or a
// map whose length does not match the locus count.
var ErrMapGenotypeMismatch = errors.New("recombination map does not match modifier genotypes")
