package playback

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/agent-chat-demo/internal/clock"
	"github.com/capitalize-ai/agent-chat-demo/internal/model"
	"github.com/capitalize-ai/agent-chat-demo/internal/scenario"
)

var epoch = time.Unix(1_700_000_000, 0)

func twoScenarioStore(t *testing.T) *scenario.Store {
	t.Helper()
	s, err := scenario.New([]model.Scenario{
		{
			ID:          "x",
			Title:       "X",
			UserMessage: "hello agents",
			Responses: []model.AgentResponse{
				{Agent: model.AgentCreative, Message: "creative reply", Delay: time.Second, TypingDuration: 500 * time.Millisecond},
			},
		},
		{
			ID:          "y",
			Title:       "Y",
			UserMessage: "second question",
			Responses: []model.AgentResponse{
				{Agent: model.AgentBusiness, Message: "business reply", Delay: 800 * time.Millisecond, TypingDuration: 400 * time.Millisecond},
			},
		},
	}, nil)
	require.NoError(t, err)
	return s
}

func newTestEngine(t *testing.T, store *scenario.Store, opts ...Option) (*Engine, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(epoch)
	base := []Option{WithClock(clk), WithRand(rand.New(rand.NewPCG(7, 11)))}
	e := New(store, append(base, opts...)...)
	t.Cleanup(e.Close)
	return e, clk
}

func drain(sub *Subscription) []model.Update {
	var out []model.Update
	for {
		select {
		case u, ok := <-sub.C:
			if !ok {
				return out
			}
			out = append(out, u)
		default:
			return out
		}
	}
}

func types(updates []model.Update) []model.EventType {
	out := make([]model.EventType, len(updates))
	for i, u := range updates {
		out[i] = u.Type
	}
	return out
}

func TestStartEmitsUserMessageImmediately(t *testing.T) {
	store := twoScenarioStore(t)
	e, _ := newTestEngine(t, store)

	require.Equal(t, model.StateIdle, e.Snapshot().State)

	e.Start(store.At(0))

	snap := e.Snapshot()
	require.Equal(t, model.StatePlaying, snap.State)
	require.True(t, snap.IsPlaying)
	require.False(t, snap.IsPaused)
	require.Len(t, snap.Messages, 1)
	require.Equal(t, model.SenderUser, snap.Messages[0].Sender)
	require.Equal(t, "hello agents", snap.Messages[0].Content)
	require.Equal(t, epoch, snap.Messages[0].Timestamp)
	require.Equal(t, "x", snap.CurrentScenario.ID)
	require.Empty(t, snap.Typing())
}

func TestScenarioPlaysOutAndAutoAdvances(t *testing.T) {
	store := twoScenarioStore(t)
	e, clk := newTestEngine(t, store)
	sub := e.Subscribe(256)

	e.Start(store.At(0))

	// Reveal lands in [1500+850+425, 1500+1150+575] ms.
	clk.Advance(2700 * time.Millisecond)
	require.Len(t, e.Snapshot().Messages, 1)

	clk.Advance(600 * time.Millisecond)
	snap := e.Snapshot()
	require.Len(t, snap.Messages, 2)
	require.Equal(t, model.SenderUser, snap.Messages[0].Sender)
	require.Equal(t, model.AgentCreative.Sender(), snap.Messages[1].Sender)
	require.Equal(t, "creative reply", snap.Messages[1].Content)
	require.False(t, snap.TypingStates[model.AgentCreative])

	// End fires in [7575, 8025] ms.
	clk.Advance(4200 * time.Millisecond)
	require.Equal(t, model.StatePlaying, e.Snapshot().State)

	clk.Advance(600 * time.Millisecond)
	snap = e.Snapshot()
	require.Equal(t, model.StateEnding, snap.State)
	require.False(t, snap.IsPlaying)
	require.Len(t, snap.Messages, 2)

	// Fade completes in [9075, 9525] ms.
	clk.Advance(1500 * time.Millisecond)
	snap = e.Snapshot()
	require.Equal(t, "y", snap.CurrentScenario.ID)
	require.Equal(t, 1, snap.ScenarioIndex)
	require.Equal(t, model.StatePlaying, snap.State)

	updates := drain(sub)
	var rollover *model.Update
	for i := range updates {
		if updates[i].Type == model.EventTypeScenarioStarted && updates[i].Snapshot.CurrentScenario.ID == "y" {
			rollover = &updates[i]
		}
	}
	require.NotNil(t, rollover)
	require.Empty(t, rollover.Snapshot.Messages)
	require.Empty(t, rollover.Snapshot.Typing())
}

func TestEventOrderingForEveryScenario(t *testing.T) {
	store := scenario.MustDefault()

	for _, sc := range store.Scenarios() {
		t.Run(sc.ID, func(t *testing.T) {
			e, clk := newTestEngine(t, store)
			sub := e.Subscribe(256)

			e.Start(sc)
			for e.Snapshot().State != model.StateEnding {
				clk.Advance(100 * time.Millisecond)
			}

			want := []model.EventType{model.EventTypeScenarioStarted, model.EventTypeUserMessage}
			for range sc.Responses {
				want = append(want, model.EventTypeTypingStarted, model.EventTypeMessageRevealed)
			}
			want = append(want, model.EventTypeScenarioEnding)

			updates := drain(sub)
			require.Equal(t, want, types(updates))

			for i, r := range sc.Responses {
				on := updates[2+2*i]
				reveal := updates[3+2*i]
				require.Equal(t, r.Agent, on.Agent)
				require.True(t, on.Snapshot.TypingStates[r.Agent])
				require.Equal(t, r.Agent, reveal.Agent)
				require.False(t, reveal.Snapshot.TypingStates[r.Agent])
				require.True(t, reveal.At.After(on.At))
				require.Equal(t, r.Message, reveal.Snapshot.Messages[i+1].Content)
				require.Equal(t, r.ReactionEmoji, reveal.Snapshot.Messages[i+1].ReactionEmoji)
			}
		})
	}
}

func TestResetClearsStateBeforeNextUserMessage(t *testing.T) {
	store := twoScenarioStore(t)
	e, clk := newTestEngine(t, store)

	e.Start(store.At(0))
	clk.Advance(2700 * time.Millisecond)
	require.True(t, e.Snapshot().TypingStates[model.AgentCreative])

	sub := e.Subscribe(16)
	e.Reset()

	updates := drain(sub)
	require.Equal(t, []model.EventType{
		model.EventTypeCleared,
		model.EventTypeScenarioStarted,
		model.EventTypeUserMessage,
	}, types(updates))
	for _, u := range updates[:2] {
		require.Empty(t, u.Snapshot.Messages)
		require.Empty(t, u.Snapshot.Typing())
	}
	require.Equal(t, "x", updates[0].Snapshot.CurrentScenario.ID)
	require.Equal(t, "y", updates[1].Snapshot.CurrentScenario.ID)

	snap := e.Snapshot()
	require.Len(t, snap.Messages, 1)
	require.Equal(t, "second question", snap.Messages[0].Content)
	require.Empty(t, snap.Typing())
}

func TestFirstStartEmitsNoCleared(t *testing.T) {
	store := twoScenarioStore(t)
	e, _ := newTestEngine(t, store)
	sub := e.Subscribe(16)

	e.Start(store.At(0))
	require.Equal(t, []model.EventType{model.EventTypeScenarioStarted, model.EventTypeUserMessage}, types(drain(sub)))

	require.True(t, e.SwitchToScenario("y"))
	require.Equal(t, model.EventTypeCleared, drain(sub)[0].Type)
}

func TestWithJitterReplacesRandomSource(t *testing.T) {
	store := twoScenarioStore(t)
	e, clk := newTestEngine(t, store, WithJitter(NewJitter(nil, 0)))

	// Zero width: typing at 1500+1000ms, reveal 500ms later.
	e.Start(store.At(0))
	clk.Advance(2499 * time.Millisecond)
	require.False(t, e.Snapshot().TypingStates[model.AgentCreative])
	clk.Advance(time.Millisecond)
	require.True(t, e.Snapshot().TypingStates[model.AgentCreative])
	clk.Advance(499 * time.Millisecond)
	require.Len(t, e.Snapshot().Messages, 1)
	clk.Advance(time.Millisecond)
	require.Len(t, e.Snapshot().Messages, 2)

	// Trailing: 800ms pause plus 4000ms before ending.
	clk.Advance(4799 * time.Millisecond)
	require.Equal(t, model.StatePlaying, e.Snapshot().State)
	clk.Advance(time.Millisecond)
	require.Equal(t, model.StateEnding, e.Snapshot().State)
}

func TestSwitchCancelsPendingEvents(t *testing.T) {
	store := twoScenarioStore(t)
	e, clk := newTestEngine(t, store)

	e.Start(store.At(0))
	clk.Advance(2700 * time.Millisecond)

	require.True(t, e.SwitchToScenario("y"))
	require.Equal(t, 1, clk.Pending())

	sub := e.Subscribe(256)
	clk.Advance(3 * time.Second)

	snap := e.Snapshot()
	require.Equal(t, "y", snap.CurrentScenario.ID)
	require.Len(t, snap.Messages, 2)
	require.False(t, snap.TypingStates[model.AgentCreative])

	for _, u := range drain(sub) {
		require.Equal(t, "y", u.Snapshot.CurrentScenario.ID)
		require.NotEqual(t, model.AgentCreative, u.Agent)
		for _, m := range u.Snapshot.Messages {
			require.NotEqual(t, "creative reply", m.Content)
		}
	}
}

// leakyClock never cancels timers, emulating callbacks that were already
// running when the engine tried to stop them.
type leakyClock struct {
	*clock.Manual
}

type noopTimer struct{}

func (noopTimer) Stop() bool { return false }

func (l leakyClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	l.Manual.AfterFunc(d, f)
	return noopTimer{}
}

func TestStaleCallbacksAreIgnored(t *testing.T) {
	store := twoScenarioStore(t)
	clk := clock.NewManual(epoch)
	e := New(store, WithClock(leakyClock{clk}), WithRand(rand.New(rand.NewPCG(3, 5))))
	t.Cleanup(e.Close)

	e.Start(store.At(0))
	clk.Advance(2700 * time.Millisecond)
	require.True(t, e.SwitchToScenario("y"))

	sub := e.Subscribe(256)
	clk.Advance(3 * time.Second)

	snap := e.Snapshot()
	require.Equal(t, "y", snap.CurrentScenario.ID)
	require.Len(t, snap.Messages, 2)
	for _, u := range drain(sub) {
		require.NotEqual(t, model.AgentCreative, u.Agent)
		require.Equal(t, "y", u.Snapshot.CurrentScenario.ID)
	}
}

func TestStaleCallbackAfterPauseResume(t *testing.T) {
	store := twoScenarioStore(t)
	clk := clock.NewManual(epoch)
	e := New(store, WithClock(leakyClock{clk}), WithRand(rand.New(rand.NewPCG(3, 5))))
	t.Cleanup(e.Close)

	e.Start(store.At(0))
	clk.Advance(time.Second)
	require.True(t, e.TogglePause())
	clk.Advance(2 * time.Second)
	require.False(t, e.TogglePause())

	// The pre-pause timer fired while paused and was discarded.
	clk.Advance(500 * time.Millisecond)
	require.False(t, e.Snapshot().TypingStates[model.AgentCreative])

	clk.Advance(5 * time.Second)
	require.Len(t, e.Snapshot().Messages, 2)
}

func TestPauseFreezesProgress(t *testing.T) {
	store := twoScenarioStore(t)
	e, clk := newTestEngine(t, store)

	e.Start(store.At(0))
	clk.Advance(time.Second)

	sub := e.Subscribe(256)
	require.True(t, e.TogglePause())
	snap := e.Snapshot()
	require.True(t, snap.IsPaused)
	require.False(t, snap.IsPlaying)
	require.Equal(t, model.StatePaused, snap.State)

	clk.Advance(time.Minute)
	require.Equal(t, []model.EventType{model.EventTypePaused}, types(drain(sub)))
	require.Len(t, e.Snapshot().Messages, 1)
	require.Empty(t, e.Snapshot().Typing())

	require.False(t, e.TogglePause())
	clk.Advance(3300 * time.Millisecond)

	snap = e.Snapshot()
	require.Len(t, snap.Messages, 2)

	// Remaining events keep their spacing, shifted by the paused minute.
	gap := snap.Messages[1].Timestamp.Sub(snap.Messages[0].Timestamp)
	require.GreaterOrEqual(t, gap, time.Minute+2775*time.Millisecond)
	require.LessOrEqual(t, gap, time.Minute+3225*time.Millisecond)

	require.Equal(t,
		[]model.EventType{model.EventTypeResumed, model.EventTypeTypingStarted, model.EventTypeMessageRevealed},
		types(drain(sub)))
}

func TestTogglePauseIsNoopWhileIdleOrEnding(t *testing.T) {
	store := twoScenarioStore(t)
	e, clk := newTestEngine(t, store)

	require.False(t, e.TogglePause())
	require.Equal(t, model.StateIdle, e.Snapshot().State)

	e.Start(store.At(0))
	clk.Advance(8100 * time.Millisecond)
	require.Equal(t, model.StateEnding, e.Snapshot().State)

	require.False(t, e.TogglePause())
	require.Equal(t, model.StateEnding, e.Snapshot().State)

	clk.Advance(1500 * time.Millisecond)
	require.Equal(t, "y", e.Snapshot().CurrentScenario.ID)
}

func TestResetRotatesThroughCatalog(t *testing.T) {
	store := scenario.MustDefault()
	e, _ := newTestEngine(t, store)

	e.Start(store.At(0))
	start := e.Snapshot().CurrentScenario.ID

	seen := map[string]int{}
	for i := 0; i < store.Len(); i++ {
		e.Reset()
		seen[e.Snapshot().CurrentScenario.ID]++
	}

	require.Equal(t, start, e.Snapshot().CurrentScenario.ID)
	require.Len(t, seen, store.Len())
	for id, n := range seen {
		require.Equal(t, 1, n, id)
	}
}

func TestResetFromPausedResumesPlayback(t *testing.T) {
	store := twoScenarioStore(t)
	e, clk := newTestEngine(t, store)

	e.Start(store.At(0))
	e.TogglePause()
	e.Reset()

	snap := e.Snapshot()
	require.Equal(t, model.StatePlaying, snap.State)
	require.False(t, snap.IsPaused)

	clk.Advance(3 * time.Second)
	require.Len(t, e.Snapshot().Messages, 2)
}

func TestSwitchToUnknownScenarioIsNoop(t *testing.T) {
	store := twoScenarioStore(t)
	e, clk := newTestEngine(t, store)

	e.Start(store.At(0))
	clk.Advance(2700 * time.Millisecond)

	before := e.Snapshot()
	pending := clk.Pending()
	sub := e.Subscribe(16)

	require.False(t, e.SwitchToScenario("does-not-exist"))

	require.Equal(t, before, e.Snapshot())
	require.Equal(t, pending, clk.Pending())
	require.Empty(t, drain(sub))
}

func TestSwitchUpdatesRotationIndex(t *testing.T) {
	store := scenario.MustDefault()
	e, _ := newTestEngine(t, store)

	e.Start(store.At(0))
	require.True(t, e.SwitchToScenario("career-advice"))
	require.Equal(t, 3, e.Snapshot().ScenarioIndex)

	e.Reset()
	require.Equal(t, "innovation-ideas", e.Snapshot().CurrentScenario.ID)
	e.Reset()
	require.Equal(t, "startup-pitch", e.Snapshot().CurrentScenario.ID)
}

func TestCloseCancelsEverything(t *testing.T) {
	store := twoScenarioStore(t)
	e, clk := newTestEngine(t, store)
	sub := e.Subscribe(16)

	e.Start(store.At(0))
	e.Close()

	require.Zero(t, clk.Pending())
	drain(sub)
	_, ok := <-sub.C
	require.False(t, ok)

	before := e.Snapshot()
	e.Reset()
	require.False(t, e.SwitchToScenario("y"))
	clk.Advance(time.Minute)
	require.Equal(t, before, e.Snapshot())

	late := e.Subscribe(1)
	_, ok = <-late.C
	require.False(t, ok)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	store := twoScenarioStore(t)
	e, clk := newTestEngine(t, store)
	sub := e.Subscribe(1)

	e.Start(store.At(0))
	clk.Advance(10 * time.Second)

	require.Len(t, drain(sub), 1)
	sub.Close()
	sub.Close()
}

func TestHooksSeeEveryUpdate(t *testing.T) {
	store := twoScenarioStore(t)
	var seen []model.EventType
	e, clk := newTestEngine(t, store, WithHook(func(u model.Update) { seen = append(seen, u.Type) }))

	e.Start(store.At(0))
	clk.Advance(3300 * time.Millisecond)

	require.Equal(t, []model.EventType{
		model.EventTypeScenarioStarted,
		model.EventTypeUserMessage,
		model.EventTypeTypingStarted,
		model.EventTypeMessageRevealed,
	}, seen)
}

func TestMessageIDsAreUnique(t *testing.T) {
	store := scenario.MustDefault()
	e, clk := newTestEngine(t, store)

	e.Start(store.At(0))
	for e.Snapshot().State != model.StateEnding {
		clk.Advance(100 * time.Millisecond)
	}

	ids := map[string]bool{}
	for _, m := range e.Snapshot().Messages {
		require.False(t, ids[m.ID], m.ID)
		ids[m.ID] = true
	}
}

func TestStartRotationUsesCurrentIndex(t *testing.T) {
	store := scenario.MustDefault()
	e, _ := newTestEngine(t, store)

	e.StartRotation()
	require.Equal(t, "startup-pitch", e.Snapshot().CurrentScenario.ID)
}
