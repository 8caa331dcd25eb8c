package message

import "strings"

// Role represents the role of the message sender
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// InputType distinguishes the entries of a conversation turn.
type InputType string

const (
	InputMessage            InputType = "message"
	InputFunctionCallOutput InputType = "function_call_output"
)

// Input is one entry of the input sent to the completion service: either a
// role-tagged message or the output of a previously requested function call.
type Input struct {
	Type    InputType `json:"type"`
	Role    Role      `json:"role,omitempty"`
	Content string    `json:"content,omitempty"`
	CallID  string    `json:"call_id,omitempty"`
	Output  string    `json:"output,omitempty"`
}

// NewUserInput creates the user message that opens a run.
func NewUserInput(text string) Input {
	return Input{Type: InputMessage, Role: RoleUser, Content: text}
}

// NewFunctionCallOutput creates the follow-up input answering a function call.
func NewFunctionCallOutput(callID, output string) Input {
	return Input{Type: InputFunctionCallOutput, CallID: callID, Output: output}
}

// Kind names an output item variant.
type Kind string

const (
	KindReasoning    Kind = "reasoning"
	KindMessage      Kind = "message"
	KindFunctionCall Kind = "function_call"
)

// Item is one unit of model output. The set of variants is closed:
// *Reasoning, *Message and *FunctionCall.
type Item interface {
	ItemID() string
	Kind() Kind
	isItem()
}

// Reasoning carries the model's reasoning summary.
type Reasoning struct {
	ID      string   `json:"id"`
	Summary []string `json:"summary"`
}

// ContentBlockOutputText is the only block type that contributes to Message.Text.
const ContentBlockOutputText = "output_text"

// ContentBlock is a typed piece of an assistant message.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Message is a completed assistant message.
type Message struct {
	ID      string         `json:"id"`
	Content []ContentBlock `json:"content"`
}

// FunctionCall is a model request to invoke a tool.
type FunctionCall struct {
	ID        string `json:"id"`
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

func (r *Reasoning) ItemID() string    { return r.ID }
func (m *Message) ItemID() string      { return m.ID }
func (f *FunctionCall) ItemID() string { return f.ID }

func (*Reasoning) Kind() Kind    { return KindReasoning }
func (*Message) Kind() Kind      { return KindMessage }
func (*FunctionCall) Kind() Kind { return KindFunctionCall }

func (*Reasoning) isItem()    {}
func (*Message) isItem()      {}
func (*FunctionCall) isItem() {}

// Text joins the reasoning summary parts.
func (r *Reasoning) Text() string {
	return strings.Join(r.Summary, "")
}

// Text concatenates all output_text blocks.
func (m *Message) Text() string {
	var sb strings.Builder
	for _, block := range m.Content {
		if block.Type == ContentBlockOutputText {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

// NewTextMessage builds a message with a single output_text block.
func NewTextMessage(id, text string) *Message {
	return &Message{ID: id, Content: []ContentBlock{{Type: ContentBlockOutputText, Text: text}}}
}

// LastText returns the text of the last *Message in items, or "".
func LastText(items []Item) string {
	for i := len(items) - 1; i >= 0; i-- {
		if m, ok := items[i].(*Message); ok {
			return m.Text()
		}
	}
	return ""
}
