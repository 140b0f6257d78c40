// Package playback drives the scripted multi-agent conversation: it plays a
// scenario back with jittered pacing, typing indicators and automatic
// rollover to the next scenario.
package playback

import (
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/agent-chat-demo/internal/clock"
	"github.com/capitalize-ai/agent-chat-demo/internal/model"
	"github.com/capitalize-ai/agent-chat-demo/internal/scenario"
	"github.com/capitalize-ai/agent-chat-demo/pkg/logger"
	"github.com/capitalize-ai/agent-chat-demo/pkg/metrics"
)

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithJitter replaces the whole jitter source. It takes precedence over
// WithRand.
func WithJitter(j *Jitter) Option {
	return func(e *Engine) { e.jitter = j }
}

// WithRand makes jitter draws come from rng.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithTiming overrides the default pacing.
func WithTiming(t Timing) Option {
	return func(e *Engine) { e.timing = t }
}

// WithLogger sets the engine logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithHook registers a function called with every update while the engine
// lock is held. The hook must not call back into the engine.
func WithHook(h func(model.Update)) Option {
	return func(e *Engine) { e.hooks = append(e.hooks, h) }
}

type pending struct {
	step     Step
	deadline time.Time
	index    int
}

// Engine owns the state of one looping demo conversation. All mutations are
// serialized by mu; at most one timer is armed at a time and it always
// serves the head of the current generation's queue.
type Engine struct {
	store  *scenario.Store
	clock  clock.Clock
	rng    *rand.Rand
	jitter *Jitter
	timing Timing
	logger *logger.Logger
	hooks  []func(model.Update)

	mu       sync.Mutex
	state    model.PlaybackState
	messages []model.ConversationMessage
	typing   map[model.AgentID]bool
	current  *model.Scenario
	index    int
	gen      uint64
	queue    []pending
	timer    clock.Timer
	token    uint64
	pausedAt time.Time
	subs     map[*Subscription]struct{}
	closed   bool
}

// New creates an idle engine over store. Call Start to begin playback.
func New(store *scenario.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		clock:  clock.Real(),
		timing: DefaultTiming(),
		logger: logger.Nop(),
		state:  model.StateIdle,
		typing: make(map[model.AgentID]bool),
		subs:   make(map[*Subscription]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.jitter == nil {
		e.jitter = NewJitter(e.rng, e.timing.JitterWidth)
	}
	return e
}

// Start begins playing sc from an empty transcript. The user message is
// appended before Start returns; everything else is scheduled.
func (e *Engine) Start(sc model.Scenario) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	idx := e.index
	if _, i, err := e.store.ByID(sc.ID); err == nil {
		idx = i
	}
	e.startLocked(sc.Clone(), idx)
}

// StartRotation starts the scenario at the current rotation index.
func (e *Engine) StartRotation() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.startLocked(e.store.At(e.index), e.index)
}

// TogglePause flips between playing and paused and reports whether the
// engine is now paused. It does nothing while idle or ending.
func (e *Engine) TogglePause() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return e.state == model.StatePaused
	}

	switch e.state {
	case model.StatePlaying:
		e.disarmLocked()
		e.pausedAt = e.clock.Now()
		e.state = model.StatePaused
		e.emitLocked(model.EventTypePaused, "")
	case model.StatePaused:
		shift := e.clock.Now().Sub(e.pausedAt)
		for i := range e.queue {
			e.queue[i].deadline = e.queue[i].deadline.Add(shift)
		}
		e.state = model.StatePlaying
		e.emitLocked(model.EventTypeResumed, "")
		e.armLocked()
	}

	return e.state == model.StatePaused
}

// Reset cancels the current playthrough and starts the next scenario in
// rotation.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.resetLocked()
}

// SwitchToScenario cancels the current playthrough and starts the scenario
// with the given id. Unknown ids are ignored and false is returned.
func (e *Engine) SwitchToScenario(id string) bool {
	sc, idx, err := e.store.ByID(id)
	if err != nil {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false
	}
	e.startLocked(sc, idx)
	return true
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() model.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Scenarios exposes the catalog for scenario pickers.
func (e *Engine) Scenarios() []model.Scenario {
	return e.store.Scenarios()
}

// Close cancels every pending event and closes all subscriptions. The
// engine ignores further calls.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	e.cancelLocked()
	for sub := range e.subs {
		delete(e.subs, sub)
		close(sub.ch)
	}
}

func (e *Engine) resetLocked() {
	next := (e.index + 1) % e.store.Len()
	e.startLocked(e.store.At(next), next)
}

func (e *Engine) startLocked(sc model.Scenario, idx int) {
	e.cancelLocked()

	e.messages = nil
	e.typing = make(map[model.AgentID]bool)
	if e.current != nil {
		e.emitLocked(model.EventTypeCleared, "")
	}
	e.current = &sc
	e.index = idx
	e.state = model.StatePlaying
	e.emitLocked(model.EventTypeScenarioStarted, "")

	now := e.clock.Now()
	e.messages = append(e.messages, model.ConversationMessage{
		ID:        model.MessageID(model.SenderUser, now, 0),
		Sender:    model.SenderUser,
		Content:   sc.UserMessage,
		Timestamp: now,
	})
	e.emitLocked(model.EventTypeUserMessage, "")

	for _, ev := range Plan(sc, e.jitter, e.timing) {
		e.queue = append(e.queue, pending{step: ev.Step, deadline: now.Add(ev.Offset), index: ev.Index})
	}
	e.armLocked()

	e.logger.Debug("scenario started",
		zap.String("scenario_id", sc.ID),
		zap.Int("scenario_index", idx),
		zap.Uint64("generation", e.gen),
	)
}

// cancelLocked drops the whole generation: the armed timer is stopped, the
// queue is discarded and the generation number moves on so that a callback
// already waiting on mu finds itself stale.
func (e *Engine) cancelLocked() {
	e.disarmLocked()
	e.queue = nil
	e.gen++
}

func (e *Engine) disarmLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.token++
}

func (e *Engine) armLocked() {
	if e.closed || e.state == model.StatePaused || len(e.queue) == 0 {
		return
	}
	e.token++
	gen, token := e.gen, e.token
	d := e.queue[0].deadline.Sub(e.clock.Now())
	e.timer = e.clock.AfterFunc(d, func() { e.fire(gen, token) })
}

func (e *Engine) fire(gen, token uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || gen != e.gen || token != e.token || e.state == model.StatePaused {
		return
	}
	e.timer = nil

	now := e.clock.Now()
	for len(e.queue) > 0 && !e.queue[0].deadline.After(now) {
		ev := e.queue[0]
		e.queue = e.queue[1:]
		e.applyLocked(ev, now)
		if gen != e.gen {
			// Rollover started a new generation and armed it already.
			return
		}
	}
	e.armLocked()
}

func (e *Engine) applyLocked(ev pending, now time.Time) {
	switch ev.step {
	case StepTypingOn:
		r := e.current.Responses[ev.index]
		e.typing[r.Agent] = true
		e.emitLocked(model.EventTypeTypingStarted, r.Agent)

	case StepReveal:
		r := e.current.Responses[ev.index]
		e.typing[r.Agent] = false
		e.messages = append(e.messages, model.ConversationMessage{
			ID:            model.MessageID(r.Agent.Sender(), now, ev.index+1),
			Sender:        r.Agent.Sender(),
			Content:       r.Message,
			Timestamp:     now,
			ReactionEmoji: r.ReactionEmoji,
		})
		e.emitLocked(model.EventTypeMessageRevealed, r.Agent)

	case StepEnd:
		e.state = model.StateEnding
		e.emitLocked(model.EventTypeScenarioEnding, "")
		e.queue = append(e.queue, pending{step: StepFade, deadline: now.Add(e.timing.FadeDuration), index: -1})

	case StepFade:
		e.resetLocked()
	}
}

func (e *Engine) snapshotLocked() model.Snapshot {
	snap := model.Snapshot{
		State:         e.state,
		IsPlaying:     e.state == model.StatePlaying,
		IsPaused:      e.state == model.StatePaused,
		Messages:      append([]model.ConversationMessage{}, e.messages...),
		TypingStates:  make(map[model.AgentID]bool, len(e.typing)),
		ScenarioIndex: e.index,
		Generation:    e.gen,
	}
	for id, on := range e.typing {
		snap.TypingStates[id] = on
	}
	if e.current != nil {
		sc := e.current.Clone()
		snap.CurrentScenario = &sc
	}
	return snap
}

func (e *Engine) emitLocked(typ model.EventType, agent model.AgentID) {
	u := model.Update{
		Type:     typ,
		Agent:    agent,
		At:       e.clock.Now(),
		Snapshot: e.snapshotLocked(),
	}
	for sub := range e.subs {
		select {
		case sub.ch <- u:
		default:
			metrics.DroppedUpdates.Inc()
		}
	}
	for _, h := range e.hooks {
		h(u)
	}
}
