package engine

import (
	"context"
)

// retrySeedStride separates the seed of each retry attempt so no attempt
// replays the random draws that produced the extinction.
const retrySeedStride int64 = 7919

// Guard re-runs a whole simulation when a generation collapses to zero
// breeders of either sex. Each attempt uses a freshly derived seed, which
// also means a fresh founder draw unless the run shares a pre-built founder
// population (in which case only the modifier draw and everything downstream
// is redrawn).
type Guard struct {
	Retries int
}

// Run returns the first completed result, or the last extinct result once
// the retry budget is spent, along with the number of attempts made.
func (g Guard) Run(ctx context.Context, cfg Config) (RunResult, int, error) {
	attempts := 0
	var last RunResult
	for attempt := 0; attempt <= g.Retries; attempt++ {
		attemptCfg := cfg
		attemptCfg.Seed = cfg.Seed + int64(attempt)*retrySeedStride

		eng, err := New(attemptCfg)
		if err != nil {
			return RunResult{}, attempts, err
		}
		attempts++
		result, err := eng.Run(ctx)
		if err != nil {
			return RunResult{}, attempts, err
		}
		last = result
		if result.Outcome == OutcomeCompleted {
			return result, attempts, nil
		}
	}
	return last, attempts, nil
}
