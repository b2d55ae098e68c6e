package action

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

const LongTaskAction = "long_task"

var (
	longTaskVerbs      = []string{"Starting up", "Booting", "Repairing", "Loading", "Checking"}
	longTaskAdjectives = []string{"master", "radiant", "silent", "harmonic", "fast"}
	longTaskNouns      = []string{"solar array", "particle reshaper", "cosmic ray", "orbiter", "bit"}
)

// LongTaskPayload tunes the simulation. Zero values pick 10 to 50 steps,
// one second apart.
type LongTaskPayload struct {
	Steps      int `json:"steps" validate:"omitempty,min=1,max=10000"`
	IntervalMS int `json:"interval_ms" validate:"omitempty,min=1,max=60000"`
}

func (p *LongTaskPayload) SetDefaults() {
	if p.Steps == 0 {
		p.Steps = 10 + rand.IntN(41)
	}
	if p.IntervalMS == 0 {
		p.IntervalMS = 1000
	}
}

type LongTaskResult struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Status  string `json:"status"`
	Result  int    `json:"result"`
}

func longTaskMessage() string {
	return fmt.Sprintf("%s %s %s...",
		longTaskVerbs[rand.IntN(len(longTaskVerbs))],
		longTaskAdjectives[rand.IntN(len(longTaskAdjectives))],
		longTaskNouns[rand.IntN(len(longTaskNouns))],
	)
}

// LongTask reports progress once per step and sleeps between steps.
func LongTask(ctx context.Context, p LongTaskPayload, progress Progress) (LongTaskResult, error) {
	interval := time.Duration(p.IntervalMS) * time.Millisecond
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for i := 0; i < p.Steps; i++ {
		progress.Report(i, p.Steps, longTaskMessage())

		timer.Reset(interval)
		select {
		case <-ctx.Done():
			return LongTaskResult{}, ctx.Err()
		case <-timer.C:
		}
	}

	return LongTaskResult{Current: 100, Total: 100, Status: "Task completed!", Result: 42}, nil
}
