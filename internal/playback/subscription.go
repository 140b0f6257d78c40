package playback

import (
	"github.com/capitalize-ai/agent-chat-demo/internal/model"
)

// DefaultSubscriptionBuffer is used when Subscribe is given a non-positive size.
const DefaultSubscriptionBuffer = 64

// Subscription delivers engine updates in emission order. C is closed when
// the subscription or the engine is closed.
type Subscription struct {
	C <-chan model.Update

	ch     chan model.Update
	engine *Engine
}

// Close detaches the subscription from its engine. It is safe to call more
// than once.
func (s *Subscription) Close() {
	s.engine.unsubscribe(s)
}

// Subscribe registers an observer. Updates are written under the engine
// lock without blocking; when the buffer is full the update is dropped for
// this subscriber only.
func (e *Engine) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultSubscriptionBuffer
	}
	ch := make(chan model.Update, buffer)
	sub := &Subscription{C: ch, ch: ch, engine: e}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		close(ch)
		return sub
	}
	e.subs[sub] = struct{}{}
	return sub
}

func (e *Engine) unsubscribe(sub *Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.subs[sub]; ok {
		delete(e.subs, sub)
		close(sub.ch)
	}
}
