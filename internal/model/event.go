package model

import (
	"time"
)

// EventType represents the kind of state transition an engine emitted.
type EventType string

const (
	EventTypeScenarioStarted EventType = "scenario_started"
	EventTypeUserMessage     EventType = "user_message"
	EventTypeTypingStarted   EventType = "typing_started"
	EventTypeMessageRevealed EventType = "message_revealed"
	EventTypeScenarioEnding  EventType = "scenario_ending"
	EventTypePaused          EventType = "paused"
	EventTypeResumed         EventType = "resumed"
	EventTypeCleared         EventType = "cleared"
)

// PlaybackState is the coarse state of the playback state machine.
type PlaybackState string

const (
	StateIdle    PlaybackState = "idle"
	StatePlaying PlaybackState = "playing"
	StatePaused  PlaybackState = "paused"
	StateEnding  PlaybackState = "ending"
)

// Snapshot is a read-only copy of an engine's state.
type Snapshot struct {
	State           PlaybackState         `json:"state"`
	IsPlaying       bool                  `json:"is_playing"`
	IsPaused        bool                  `json:"is_paused"`
	Messages        []ConversationMessage `json:"messages"`
	TypingStates    map[AgentID]bool      `json:"typing_states"`
	CurrentScenario *Scenario             `json:"current_scenario,omitempty"`
	ScenarioIndex   int                   `json:"scenario_index"`
	Generation      uint64                `json:"generation"`
}

// Typing returns the agents currently marked as typing.
func (s Snapshot) Typing() []AgentID {
	var out []AgentID
	for _, id := range AgentIDs {
		if s.TypingStates[id] {
			out = append(out, id)
		}
	}
	return out
}

// Update is delivered to observers after every state change.
// When a playthrough replaces another, a cleared update with an empty
// transcript comes first. A scenario_started update always carries an
// empty transcript.
type Update struct {
	Type     EventType `json:"type"`
	Agent    AgentID   `json:"agent,omitempty"`
	At       time.Time `json:"at"`
	Snapshot Snapshot  `json:"snapshot"`
}

// ErrorEvent represents an error event.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HeartbeatEvent represents a heartbeat event.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// CreateSessionRequest is the optional body of POST /sessions.
type CreateSessionRequest struct {
	ScenarioID string `json:"scenario_id,omitempty"`
}

// CreateSessionResponse is returned when a demo session is created.
type CreateSessionResponse struct {
	SessionID string   `json:"session_id"`
	Token     string   `json:"token"`
	Snapshot  Snapshot `json:"snapshot"`
}

// SwitchRequest selects a scenario by id.
type SwitchRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// SwitchResponse reports whether the switch happened.
type SwitchResponse struct {
	Switched bool     `json:"switched"`
	Snapshot Snapshot `json:"snapshot"`
}

// KeyRequest forwards a keyboard shortcut from the widget.
type KeyRequest struct {
	Key string `json:"key"`
}
