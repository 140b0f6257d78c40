// Package scenario holds the immutable catalog of scripted conversations.
package scenario

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/capitalize-ai/agent-chat-demo/internal/model"
)

var (
	// ErrNotFound is returned when a scenario id is not in the catalog.
	ErrNotFound = errors.New("scenario not found")
	// ErrInvalidCatalog is returned when catalog data fails validation.
	ErrInvalidCatalog = errors.New("invalid scenario catalog")
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Store is a read-only, ordered catalog of scenarios. It is never empty.
type Store struct {
	scenarios []model.Scenario
	agents    []model.Agent
	index     map[string]int
}

type fileCatalog struct {
	Agents    []model.Agent  `yaml:"agents"`
	Scenarios []fileScenario `yaml:"scenarios"`
}

type fileScenario struct {
	ID          string         `yaml:"id"`
	Title       string         `yaml:"title"`
	UserMessage string         `yaml:"user_message"`
	Responses   []fileResponse `yaml:"responses"`
}

type fileResponse struct {
	Agent    string `yaml:"agent"`
	Message  string `yaml:"message"`
	DelayMS  int64  `yaml:"delay_ms"`
	TypingMS int64  `yaml:"typing_ms"`
	Reaction string `yaml:"reaction"`
}

// New validates the given catalog and returns a store over a private copy.
func New(scenarios []model.Scenario, agents []model.Agent) (*Store, error) {
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("%w: no scenarios", ErrInvalidCatalog)
	}

	s := &Store{
		scenarios: make([]model.Scenario, 0, len(scenarios)),
		agents:    append([]model.Agent(nil), agents...),
		index:     make(map[string]int, len(scenarios)),
	}

	for i, sc := range scenarios {
		if err := validate(sc); err != nil {
			return nil, fmt.Errorf("%w: scenario %d: %v", ErrInvalidCatalog, i, err)
		}
		if _, dup := s.index[sc.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate scenario id %q", ErrInvalidCatalog, sc.ID)
		}
		s.index[sc.ID] = len(s.scenarios)
		s.scenarios = append(s.scenarios, sc.Clone())
	}

	for _, a := range s.agents {
		if !a.ID.Valid() {
			return nil, fmt.Errorf("%w: unknown agent %q", ErrInvalidCatalog, a.ID)
		}
	}

	return s, nil
}

func validate(sc model.Scenario) error {
	if sc.ID == "" {
		return errors.New("empty id")
	}
	if sc.UserMessage == "" {
		return fmt.Errorf("%s: empty user message", sc.ID)
	}
	if len(sc.Responses) == 0 {
		return fmt.Errorf("%s: no responses", sc.ID)
	}
	for j, r := range sc.Responses {
		if !r.Agent.Valid() {
			return fmt.Errorf("%s: response %d: unknown agent %q", sc.ID, j, r.Agent)
		}
		if r.Delay < 0 || r.TypingDuration < 0 {
			return fmt.Errorf("%s: response %d: negative timing", sc.ID, j)
		}
	}
	return nil
}

// Load parses a YAML catalog.
func Load(r io.Reader) (*Store, error) {
	var fc fileCatalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidCatalog, err)
	}

	scenarios := make([]model.Scenario, len(fc.Scenarios))
	for i, fs := range fc.Scenarios {
		sc := model.Scenario{
			ID:          fs.ID,
			Title:       fs.Title,
			UserMessage: fs.UserMessage,
			Responses:   make([]model.AgentResponse, len(fs.Responses)),
		}
		for j, fr := range fs.Responses {
			sc.Responses[j] = model.AgentResponse{
				Agent:          model.AgentID(fr.Agent),
				Message:        fr.Message,
				Delay:          time.Duration(fr.DelayMS) * time.Millisecond,
				TypingDuration: time.Duration(fr.TypingMS) * time.Millisecond,
				ReactionEmoji:  fr.Reaction,
			}
		}
		scenarios[i] = sc
	}

	return New(scenarios, fc.Agents)
}

// LoadFile reads a YAML catalog from disk.
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Default returns the built-in catalog.
func Default() (*Store, error) {
	return Load(bytes.NewReader(defaultCatalog))
}

// MustDefault is Default for package initialisation and tests.
func MustDefault() *Store {
	s, err := Default()
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of scenarios.
func (s *Store) Len() int {
	return len(s.scenarios)
}

// At returns the scenario at position i, wrapping around the catalog.
func (s *Store) At(i int) model.Scenario {
	n := len(s.scenarios)
	i %= n
	if i < 0 {
		i += n
	}
	return s.scenarios[i].Clone()
}

// ByID looks up a scenario and its catalog position.
func (s *Store) ByID(id string) (model.Scenario, int, error) {
	i, ok := s.IndexOf(id)
	if !ok {
		return model.Scenario{}, -1, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.scenarios[i].Clone(), i, nil
}

// IndexOf returns the rotation position of the scenario with the given id.
func (s *Store) IndexOf(id string) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}

// Scenarios returns a copy of the catalog in rotation order.
func (s *Store) Scenarios() []model.Scenario {
	out := make([]model.Scenario, len(s.scenarios))
	for i, sc := range s.scenarios {
		out[i] = sc.Clone()
	}
	return out
}

// Agents returns the agent personas.
func (s *Store) Agents() []model.Agent {
	return append([]model.Agent(nil), s.agents...)
}

// Random picks a scenario uniformly at random.
func (s *Store) Random(rng *rand.Rand) model.Scenario {
	return s.At(rng.IntN(len(s.scenarios)))
}
