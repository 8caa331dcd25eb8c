package agent

import (
	"context"
	"iter"

	"github.com/sweetpotato0/miniagent/message"
)

// CompletionClient is the hosted model endpoint driven by the run loop.
type CompletionClient interface {
	// Stream issues one completion call. The sequence yields EventItemDone
	// events as output items finish and ends with a single EventCompleted.
	// A failure is reported as a final (nil, err) pair.
	Stream(ctx context.Context, req *CompletionRequest) iter.Seq2[*Event, error]
}

// CompletionRequest bundles everything sent on one turn.
type CompletionRequest struct {
	Model        string
	Instructions string
	Tools        []map[string]any
	Input        []message.Input
	// PreviousResponseID continues the conversation server-side; empty on the first turn.
	PreviousResponseID string
	ReasoningEffort    string
}

// EventType identifies a stream event.
type EventType string

const (
	// EventItemDone carries one finished output item.
	EventItemDone EventType = "response.output_item.done"
	// EventCompleted ends a response. It carries the continuation token and
	// the consolidated output list, which may repeat streamed items.
	EventCompleted EventType = "response.completed"
)

// Event is a single element of a completion stream.
type Event struct {
	Type       EventType
	Item       message.Item
	ResponseID string
	Output     []message.Item
}

// ItemDone builds an EventItemDone event.
func ItemDone(item message.Item) *Event {
	return &Event{Type: EventItemDone, Item: item}
}

// Completed builds an EventCompleted event.
func Completed(responseID string, output ...message.Item) *Event {
	return &Event{Type: EventCompleted, ResponseID: responseID, Output: output}
}
