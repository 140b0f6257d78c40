package playback

import (
	"math/rand/v2"
	"time"

	"github.com/capitalize-ai/agent-chat-demo/internal/model"
)

// Timing holds the fixed pauses of the playback schedule.
type Timing struct {
	// BaseDelay is the pause between the user message and the first agent
	// noticing it.
	BaseDelay time.Duration
	// InterAgentPause separates one agent's reveal from the next agent's
	// schedule.
	InterAgentPause time.Duration
	// TrailingPause follows the last reply before the scenario ends.
	TrailingPause time.Duration
	// FadeDuration is how long the ending state lasts before rollover.
	FadeDuration time.Duration
	// JitterWidth is the total relative width of the jitter window; 0.3
	// means ±15% around the nominal value.
	JitterWidth float64
}

// DefaultTiming returns the production pacing.
func DefaultTiming() Timing {
	return Timing{
		BaseDelay:       1500 * time.Millisecond,
		InterAgentPause: 800 * time.Millisecond,
		TrailingPause:   4000 * time.Millisecond,
		FadeDuration:    1500 * time.Millisecond,
		JitterWidth:     0.3,
	}
}

// Jitter perturbs nominal durations within a bounded window.
// It is not safe for concurrent use.
type Jitter struct {
	rng   *rand.Rand
	width float64
}

// NewJitter returns a jitter source drawing from rng. A nil rng is seeded
// from the runtime's random source.
func NewJitter(rng *rand.Rand, width float64) *Jitter {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Jitter{rng: rng, width: width}
}

// Apply returns base shifted by a uniform draw in [-width/2, +width/2) of
// base.
func (j *Jitter) Apply(base time.Duration) time.Duration {
	variation := float64(base) * j.width
	return base + time.Duration((j.rng.Float64()-0.5)*variation)
}

// Step is the kind of a scheduled playback event.
type Step int

const (
	StepTypingOn Step = iota + 1
	StepReveal
	StepEnd
	StepFade
)

func (s Step) String() string {
	switch s {
	case StepTypingOn:
		return "typing_on"
	case StepReveal:
		return "reveal"
	case StepEnd:
		return "end"
	case StepFade:
		return "fade"
	default:
		return "unknown"
	}
}

// PlannedEvent is one entry of a scenario's schedule. Offset is measured
// from the moment the user message was emitted.
type PlannedEvent struct {
	Step   Step
	Offset time.Duration
	// Index is the response position, or -1 for scenario-level events.
	Index int
}

// Plan lays out every timed event of a playthrough. Replies are placed
// back to back: each reply's delay counts from the previous reveal plus
// InterAgentPause, so agents never overlap.
func Plan(sc model.Scenario, j *Jitter, t Timing) []PlannedEvent {
	events := make([]PlannedEvent, 0, 2*len(sc.Responses)+1)

	cumulative := t.BaseDelay
	for i, r := range sc.Responses {
		cumulative += j.Apply(r.Delay)
		typing := j.Apply(r.TypingDuration)

		events = append(events,
			PlannedEvent{Step: StepTypingOn, Offset: cumulative, Index: i},
			PlannedEvent{Step: StepReveal, Offset: cumulative + typing, Index: i},
		)

		cumulative += typing + t.InterAgentPause
	}

	return append(events, PlannedEvent{Step: StepEnd, Offset: cumulative + t.TrailingPause, Index: -1})
}
