// Package service provides session management for the chat demo.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/agent-chat-demo/internal/clock"
	"github.com/capitalize-ai/agent-chat-demo/internal/model"
	"github.com/capitalize-ai/agent-chat-demo/internal/playback"
	"github.com/capitalize-ai/agent-chat-demo/internal/scenario"
	"github.com/capitalize-ai/agent-chat-demo/pkg/logger"
	"github.com/capitalize-ai/agent-chat-demo/pkg/metrics"
)

var (
	// ErrSessionNotFound is returned for unknown or reaped session ids.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTooManySessions is returned when MaxSessions engines are live.
	ErrTooManySessions = errors.New("too many sessions")
	// ErrUnknownKey is returned for keys that map to no shortcut.
	ErrUnknownKey = errors.New("unknown key")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("demo service closed")
)

// Config tunes the demo service.
type Config struct {
	Timing      playback.Timing
	SessionTTL  time.Duration
	MaxSessions int
	// Clock drives engines and idle accounting. Defaults to the wall clock.
	Clock clock.Clock
	// Rand picks scenarios for the shuffle shortcut. Defaults to a random seed.
	Rand *rand.Rand
}

type session struct {
	id         string
	engine     *playback.Engine
	createdAt  time.Time
	lastActive time.Time
	watchers   int
}

// DemoService owns one playback engine per visitor session.
type DemoService struct {
	store  *scenario.Store
	cfg    Config
	logger *logger.Logger
	tracer trace.Tracer

	mu       sync.Mutex
	sessions map[string]*session
	rng      *rand.Rand
	closed   bool
}

// NewDemoService creates a new demo service.
func NewDemoService(store *scenario.Store, cfg Config, log *logger.Logger) *DemoService {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if cfg.Timing == (playback.Timing{}) {
		cfg.Timing = playback.DefaultTiming()
	}
	if log == nil {
		log = logger.Nop()
	}

	return &DemoService{
		store:    store,
		cfg:      cfg,
		logger:   log.Named("demo"),
		tracer:   otel.Tracer("github.com/capitalize-ai/agent-chat-demo/internal/service"),
		sessions: make(map[string]*session),
		rng:      cfg.Rand,
	}
}

// Create starts a new session. A known scenarioID is played first;
// otherwise playback starts at the head of the rotation.
func (s *DemoService) Create(ctx context.Context, scenarioID string) (string, model.Snapshot, error) {
	_, span := s.tracer.Start(ctx, "demo.create")
	defer span.End()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", model.Snapshot{}, ErrClosed
	}
	if s.cfg.MaxSessions > 0 && len(s.sessions) >= s.cfg.MaxSessions {
		s.mu.Unlock()
		return "", model.Snapshot{}, ErrTooManySessions
	}

	id := uuid.Must(uuid.NewV7()).String()
	now := s.cfg.Clock.Now()
	engine := playback.New(s.store,
		playback.WithClock(s.cfg.Clock),
		playback.WithTiming(s.cfg.Timing),
		playback.WithRand(rand.New(rand.NewPCG(s.rng.Uint64(), s.rng.Uint64()))),
		playback.WithLogger(s.logger.With(zap.String("session_id", id))),
		playback.WithHook(recordUpdate),
	)
	s.sessions[id] = &session{id: id, engine: engine, createdAt: now, lastActive: now}
	s.mu.Unlock()

	if scenarioID == "" || !engine.SwitchToScenario(scenarioID) {
		engine.StartRotation()
	}

	span.SetAttributes(attribute.String("session.id", id))
	metrics.SessionsActive.Inc()
	metrics.SessionsTotal.WithLabelValues("created").Inc()

	s.logger.Info("session created",
		zap.String("session_id", id),
		zap.String("requested_scenario", scenarioID),
	)

	return id, engine.Snapshot(), nil
}

// Snapshot returns the session's current state.
func (s *DemoService) Snapshot(ctx context.Context, id string) (model.Snapshot, error) {
	sess, err := s.touch(id)
	if err != nil {
		return model.Snapshot{}, err
	}
	return sess.engine.Snapshot(), nil
}

// TogglePause pauses or resumes the session's playback.
func (s *DemoService) TogglePause(ctx context.Context, id string) (model.Snapshot, error) {
	_, span := s.tracer.Start(ctx, "demo.toggle_pause", trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	sess, err := s.touch(id)
	if err != nil {
		return model.Snapshot{}, err
	}
	sess.engine.TogglePause()
	metrics.RecordControl("pause")
	return sess.engine.Snapshot(), nil
}

// Reset advances the session to the next scenario in rotation.
func (s *DemoService) Reset(ctx context.Context, id string) (model.Snapshot, error) {
	_, span := s.tracer.Start(ctx, "demo.reset", trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	sess, err := s.touch(id)
	if err != nil {
		return model.Snapshot{}, err
	}
	sess.engine.Reset()
	metrics.RecordControl("reset")
	return sess.engine.Snapshot(), nil
}

// Switch jumps to the given scenario. An unknown scenario id leaves the
// session untouched and reports false.
func (s *DemoService) Switch(ctx context.Context, id, scenarioID string) (bool, model.Snapshot, error) {
	_, span := s.tracer.Start(ctx, "demo.switch", trace.WithAttributes(
		attribute.String("session.id", id),
		attribute.String("scenario.id", scenarioID),
	))
	defer span.End()

	sess, err := s.touch(id)
	if err != nil {
		return false, model.Snapshot{}, err
	}
	switched := sess.engine.SwitchToScenario(scenarioID)
	if switched {
		metrics.RecordControl("switch")
	}
	return switched, sess.engine.Snapshot(), nil
}

// Shuffle switches to a randomly chosen scenario, which may be the one
// already playing.
func (s *DemoService) Shuffle(ctx context.Context, id string) (model.Snapshot, error) {
	_, span := s.tracer.Start(ctx, "demo.shuffle", trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	sess, err := s.touch(id)
	if err != nil {
		return model.Snapshot{}, err
	}

	s.mu.Lock()
	pick := s.store.Random(s.rng)
	s.mu.Unlock()

	sess.engine.SwitchToScenario(pick.ID)
	metrics.RecordControl("shuffle")
	return sess.engine.Snapshot(), nil
}

// HandleKey applies the widget's keyboard shortcuts: space toggles pause,
// "r" resets and "s" shuffles.
func (s *DemoService) HandleKey(ctx context.Context, id, key string) (model.Snapshot, error) {
	switch key {
	case " ", "space", "Space":
		return s.TogglePause(ctx, id)
	case "r", "R":
		return s.Reset(ctx, id)
	case "s", "S":
		return s.Shuffle(ctx, id)
	default:
		return model.Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
}

// Subscribe attaches an observer to the session. Sessions with observers
// are never reaped; call Unsubscribe when done.
func (s *DemoService) Subscribe(ctx context.Context, id string, buffer int) (*playback.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.watchers++
	sess.lastActive = s.cfg.Clock.Now()
	return sess.engine.Subscribe(buffer), nil
}

// Unsubscribe releases a subscription obtained from Subscribe.
func (s *DemoService) Unsubscribe(id string, sub *playback.Subscription) {
	sub.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok && sess.watchers > 0 {
		sess.watchers--
		sess.lastActive = s.cfg.Clock.Now()
	}
}

// Delete stops the session's engine and forgets it.
func (s *DemoService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	sess.engine.Close()
	metrics.SessionsActive.Dec()
	metrics.SessionsTotal.WithLabelValues("deleted").Inc()
	s.logger.Info("session deleted", zap.String("session_id", id))
	return nil
}

// Len returns the number of live sessions.
func (s *DemoService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Ready reports whether the service accepts new sessions.
func (s *DemoService) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// Scenarios returns the catalog.
func (s *DemoService) Scenarios() []model.Scenario {
	return s.store.Scenarios()
}

// Agents returns the agent personas.
func (s *DemoService) Agents() []model.Agent {
	return s.store.Agents()
}

// ReapIdle closes sessions without observers that have been inactive for
// longer than SessionTTL. It returns the number of sessions reaped.
func (s *DemoService) ReapIdle() int {
	if s.cfg.SessionTTL <= 0 {
		return 0
	}

	now := s.cfg.Clock.Now()
	var idle []*session

	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.watchers == 0 && now.Sub(sess.lastActive) > s.cfg.SessionTTL {
			idle = append(idle, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range idle {
		sess.engine.Close()
		metrics.SessionsActive.Dec()
		metrics.SessionsTotal.WithLabelValues("reaped").Inc()
		s.logger.Debug("session reaped",
			zap.String("session_id", sess.id),
			zap.Duration("age", now.Sub(sess.createdAt)),
		)
	}
	return len(idle)
}

// StartJanitor reaps idle sessions every interval until ctx is done.
func (s *DemoService) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n := s.ReapIdle(); n > 0 {
					s.logger.Info("idle sessions reaped", zap.Int("count", n))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Close stops every engine. The service rejects new sessions afterwards.
func (s *DemoService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.engine.Close()
		metrics.SessionsActive.Dec()
	}
	s.logger.Info("demo service closed", zap.Int("sessions", len(sessions)))
}

func (s *DemoService) touch(id string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.lastActive = s.cfg.Clock.Now()
	return sess, nil
}

func recordUpdate(u model.Update) {
	switch u.Type {
	case model.EventTypeScenarioStarted:
		if u.Snapshot.CurrentScenario != nil {
			metrics.ScenarioStartsTotal.WithLabelValues(u.Snapshot.CurrentScenario.ID).Inc()
		}
	case model.EventTypeUserMessage:
		metrics.MessagesRevealedTotal.WithLabelValues(string(model.SenderUser)).Inc()
	case model.EventTypeMessageRevealed:
		metrics.MessagesRevealedTotal.WithLabelValues(string(u.Agent)).Inc()
	}
}
