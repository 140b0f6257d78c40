// Package model defines data structures for the multi-agent chat demo.
package model

import (
	"encoding/json"
	"time"
)

// AgentID identifies one of the simulated chat participants.
type AgentID string

const (
	AgentCreative AgentID = "creative"
	AgentBusiness AgentID = "business"
	AgentTech     AgentID = "tech"
)

// AgentIDs lists the closed set of agents in display order.
var AgentIDs = []AgentID{AgentCreative, AgentBusiness, AgentTech}

// Valid reports whether id belongs to the closed agent set.
func (id AgentID) Valid() bool {
	switch id {
	case AgentCreative, AgentBusiness, AgentTech:
		return true
	}
	return false
}

// Sender returns the agent as a message sender.
func (id AgentID) Sender() Sender {
	return Sender(id)
}

// Agent is the persona shown next to an agent's messages.
type Agent struct {
	ID     AgentID  `json:"id" yaml:"id"`
	Name   string   `json:"name" yaml:"name"`
	Role   string   `json:"role" yaml:"role"`
	Color  string   `json:"color" yaml:"color"`
	Traits []string `json:"traits,omitempty" yaml:"traits"`
}

// AgentResponse is one scripted agent reply. Delay is relative to the
// cumulative schedule, not an absolute time. On the wire both durations are
// whole milliseconds, as in the catalog file.
type AgentResponse struct {
	Agent          AgentID
	Message        string
	Delay          time.Duration
	TypingDuration time.Duration
	ReactionEmoji  string
}

type agentResponseJSON struct {
	Agent         AgentID `json:"agent"`
	Message       string  `json:"message"`
	DelayMS       int64   `json:"delay_ms"`
	TypingMS      int64   `json:"typing_ms"`
	ReactionEmoji string  `json:"reaction_emoji,omitempty"`
}

// MarshalJSON writes the durations as delay_ms and typing_ms.
func (r AgentResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(agentResponseJSON{
		Agent:         r.Agent,
		Message:       r.Message,
		DelayMS:       r.Delay.Milliseconds(),
		TypingMS:      r.TypingDuration.Milliseconds(),
		ReactionEmoji: r.ReactionEmoji,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (r *AgentResponse) UnmarshalJSON(data []byte) error {
	var raw agentResponseJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = AgentResponse{
		Agent:          raw.Agent,
		Message:        raw.Message,
		Delay:          time.Duration(raw.DelayMS) * time.Millisecond,
		TypingDuration: time.Duration(raw.TypingMS) * time.Millisecond,
		ReactionEmoji:  raw.ReactionEmoji,
	}
	return nil
}

// Scenario is a pre-authored script: one user line followed by agent replies
// in playback order.
type Scenario struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	UserMessage string          `json:"user_message"`
	Responses   []AgentResponse `json:"responses"`
}

// Clone returns a deep copy so callers cannot mutate catalog data.
func (s Scenario) Clone() Scenario {
	out := s
	out.Responses = append([]AgentResponse(nil), s.Responses...)
	return out
}
