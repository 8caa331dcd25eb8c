package agent

import (
	"github.com/google/uuid"
	"github.com/sweetpotato0/miniagent/message"
)

// State is the position of a run in the orchestration state machine.
type State int

const (
	// StateAwaitingInput means inputs are queued and a completion call is about to be issued.
	StateAwaitingInput State = iota
	// StateStreaming means a completion call is in flight.
	StateStreaming
	// StateDone means a call completed with nothing left pending.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitingInput:
		return "AWAITING_INPUT"
	case StateStreaming:
		return "STREAMING"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// RunState is owned by exactly one Run call and never shared between runs.
type RunState struct {
	RunID              string
	PreviousResponseID string
	Turns              int
	State              State

	seen  map[string]struct{}
	items []message.Item
}

// NewRunState creates an empty state in StateAwaitingInput.
func NewRunState() *RunState {
	return &RunState{
		RunID: uuid.NewString(),
		State: StateAwaitingInput,
		seen:  make(map[string]struct{}),
	}
}

// Seen reports whether an item with the given ID was already processed.
func (s *RunState) Seen(id string) bool {
	_, ok := s.seen[id]
	return ok
}

// record marks the item as processed and appends it to the transcript.
// It returns false when the item was already processed. Items without an ID
// cannot be deduplicated and are always recorded.
func (s *RunState) record(item message.Item) bool {
	if id := item.ItemID(); id != "" {
		if _, ok := s.seen[id]; ok {
			return false
		}
		s.seen[id] = struct{}{}
	}
	s.items = append(s.items, item)
	return true
}

// Transcript returns every processed item in processing order.
func (s *RunState) Transcript() []message.Item {
	return append([]message.Item(nil), s.items...)
}

// Final returns the last processed item, or nil.
func (s *RunState) Final() message.Item {
	if len(s.items) == 0 {
		return nil
	}
	return s.items[len(s.items)-1]
}

// FinalText returns the text of the last assistant message in the transcript.
func (s *RunState) FinalText() string {
	return message.LastText(s.items)
}
