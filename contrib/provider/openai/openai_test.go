package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/sweetpotato0/miniagent/agent"
	errorspkg "github.com/sweetpotato0/miniagent/errors"
	"github.com/sweetpotato0/miniagent/message"
	"github.com/sweetpotato0/miniagent/pkg/logging"
	"github.com/sweetpotato0/miniagent/tool"
)

const functionCallEvent = `{"type":"response.output_item.done","output_index":0,"sequence_number":1,` +
	`"item":{"type":"function_call","id":"fc_1","call_id":"call_1","name":"add","arguments":"{\"a\":\"2\",\"b\":\"2\"}","status":"completed"}}`

const webSearchEvent = `{"type":"response.output_item.done","output_index":1,"sequence_number":2,` +
	`"item":{"type":"web_search_call","id":"ws_1","status":"completed"}}`

const firstCompletedEvent = `{"type":"response.completed","sequence_number":3,"response":{"id":"resp_1","output":[` +
	`{"type":"function_call","id":"fc_1","call_id":"call_1","name":"add","arguments":"{\"a\":\"2\",\"b\":\"2\"}"}]}}`

const messageEvent = `{"type":"response.output_item.done","output_index":0,"sequence_number":1,` +
	`"item":{"type":"message","id":"msg_1","role":"assistant","status":"completed",` +
	`"content":[{"type":"output_text","text":"2 + 2 = 4","annotations":[]}]}}`

const secondCompletedEvent = `{"type":"response.completed","sequence_number":2,"response":{"id":"resp_2","output":[` +
	`{"type":"message","id":"msg_1","role":"assistant","content":[{"type":"output_text","text":"2 + 2 = 4","annotations":[]}]}]}}`

// fakeResponses serves scripted SSE bodies and records request bodies.
type fakeResponses struct {
	mu     sync.Mutex
	bodies []map[string]any
	script [][]string
	status int
}

func (f *fakeResponses) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	f.mu.Lock()
	f.bodies = append(f.bodies, body)
	idx := len(f.bodies) - 1
	f.mu.Unlock()

	if f.status != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		fmt.Fprint(w, `{"error":{"message":"slow down","type":"requests","code":"rate_limit_exceeded"}}`)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	for _, data := range f.script[idx%len(f.script)] {
		fmt.Fprintf(w, "data: %s\n\n", data)
	}
}

func newTestProvider(t *testing.T, h http.Handler) *Provider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(DefaultConfig().WithAPIKey("test").WithBaseURL(srv.URL + "/"))
}

func TestStreamConvertsEvents(t *testing.T) {
	fake := &fakeResponses{script: [][]string{{functionCallEvent, webSearchEvent, firstCompletedEvent}}}
	p := newTestProvider(t, fake)

	var events []*agent.Event
	for ev, err := range p.Stream(context.Background(), &agent.CompletionRequest{Input: []message.Input{message.NewUserInput("hi")}}) {
		if err != nil {
			t.Fatalf("stream error: %v", err)
		}
		events = append(events, ev)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events (unsupported item skipped), got %d", len(events))
	}
	call, ok := events[0].Item.(*message.FunctionCall)
	if !ok || call.ID != "fc_1" || call.CallID != "call_1" || call.Name != "add" {
		t.Fatalf("unexpected first item: %#v", events[0].Item)
	}
	if events[1].Type != agent.EventCompleted || events[1].ResponseID != "resp_1" || len(events[1].Output) != 1 {
		t.Fatalf("unexpected completion event: %+v", events[1])
	}
}

func TestStreamRequestShape(t *testing.T) {
	fake := &fakeResponses{script: [][]string{{messageEvent, secondCompletedEvent}}}
	p := newTestProvider(t, fake)

	add := tool.New("add", "Add two numbers.", func(ctx context.Context, args map[string]any) (any, error) { return nil, nil }, "a", "b")
	registry := tool.MustRegistry(add)

	req := &agent.CompletionRequest{
		Model:              "gpt-4.1",
		Instructions:       "be brief",
		Tools:              registry.ToJSONSchemas(),
		Input:              []message.Input{message.NewFunctionCallOutput("call_1", "4")},
		PreviousResponseID: "resp_1",
		ReasoningEffort:    "low",
	}
	for _, err := range p.Stream(context.Background(), req) {
		if err != nil {
			t.Fatalf("stream error: %v", err)
		}
	}

	body := fake.bodies[0]
	if body["model"] != "gpt-4.1" || body["instructions"] != "be brief" || body["previous_response_id"] != "resp_1" {
		t.Errorf("unexpected request body: %v", body)
	}
	if body["stream"] != true {
		t.Errorf("expected a streaming request")
	}
	input, _ := body["input"].([]any)
	if len(input) != 1 {
		t.Fatalf("expected one input item, got %v", body["input"])
	}
	out, _ := input[0].(map[string]any)
	if out["type"] != "function_call_output" || out["call_id"] != "call_1" || out["output"] != "4" {
		t.Errorf("unexpected function output input: %v", out)
	}
	tools, _ := body["tools"].([]any)
	if len(tools) != 1 {
		t.Fatalf("expected one tool, got %v", body["tools"])
	}
	if fn, _ := tools[0].(map[string]any); fn["name"] != "add" || fn["type"] != "function" {
		t.Errorf("unexpected tool: %v", fn)
	}
	if reasoning, _ := body["reasoning"].(map[string]any); reasoning["effort"] != "low" {
		t.Errorf("expected reasoning effort low, got %v", body["reasoning"])
	}
}

func TestStreamRateLimitIsTransient(t *testing.T) {
	p := newTestProvider(t, &fakeResponses{status: http.StatusTooManyRequests})

	var got error
	for _, err := range p.Stream(context.Background(), &agent.CompletionRequest{Input: []message.Input{message.NewUserInput("hi")}}) {
		got = err
	}
	if !errorspkg.IsTransient(got) {
		t.Fatalf("expected transient error, got %v", got)
	}
}

func TestStreamBadRequestIsPermanent(t *testing.T) {
	p := newTestProvider(t, &fakeResponses{status: http.StatusBadRequest})

	var got error
	for _, err := range p.Stream(context.Background(), &agent.CompletionRequest{}) {
		got = err
	}
	if got == nil || errorspkg.IsTransient(got) {
		t.Fatalf("expected permanent error, got %v", got)
	}
}

func TestStreamFailureEvents(t *testing.T) {
	failed := func(code string) string {
		return `{"type":"response.failed","sequence_number":1,"response":{"id":"resp_1","output":[],` +
			`"error":{"code":"` + code + `","message":"boom"}}}`
	}
	errorEvent := func(code string) string {
		return `{"type":"error","sequence_number":1,"code":"` + code + `","message":"boom","param":null}`
	}

	tests := []struct {
		name      string
		event     string
		transient bool
	}{
		{"failed server_error", failed("server_error"), true},
		{"failed rate_limit_exceeded", failed("rate_limit_exceeded"), true},
		{"failed invalid_prompt", failed("invalid_prompt"), false},
		{"error server_error", errorEvent("server_error"), true},
		{"error rate_limit_exceeded", errorEvent("rate_limit_exceeded"), true},
		{"error invalid_request", errorEvent("invalid_request"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, &fakeResponses{script: [][]string{{tt.event, messageEvent}}})

			var got error
			events := 0
			for ev, err := range p.Stream(context.Background(), &agent.CompletionRequest{Input: []message.Input{message.NewUserInput("hi")}}) {
				if err != nil {
					got = err
					continue
				}
				if ev != nil {
					events++
				}
			}
			if got == nil {
				t.Fatalf("expected an error from %s", tt.name)
			}
			if events != 0 {
				t.Errorf("stream must stop at the failure, got %d events", events)
			}
			if errorspkg.IsTransient(got) != tt.transient {
				t.Errorf("IsTransient(%v) = %v, want %v", got, !tt.transient, tt.transient)
			}
			if !strings.Contains(got.Error(), "boom") {
				t.Errorf("error must carry the server message, got %v", got)
			}
		})
	}
}

func TestAgentRunAgainstProvider(t *testing.T) {
	fake := &fakeResponses{script: [][]string{
		{functionCallEvent, firstCompletedEvent},
		{messageEvent, secondCompletedEvent},
	}}
	p := newTestProvider(t, fake)

	calls := 0
	add := tool.New("add", "Add two numbers.", func(ctx context.Context, args map[string]any) (any, error) {
		calls++
		return 4, nil
	}, "a", "b")
	ag, err := agent.New(agent.WithProvider(p), agent.WithTools(add), agent.WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}

	state, err := ag.Run(context.Background(), "What is 2 + 2?")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if calls != 1 || state.Turns != 2 {
		t.Fatalf("expected one tool call over two turns, got %d calls and %d turns", calls, state.Turns)
	}
	if state.FinalText() != "2 + 2 = 4" {
		t.Errorf("unexpected final text %q", state.FinalText())
	}
	if fake.bodies[1]["previous_response_id"] != "resp_1" {
		t.Errorf("second request must continue resp_1, got %v", fake.bodies[1]["previous_response_id"])
	}
}

func TestClassify(t *testing.T) {
	if classify(nil) != nil {
		t.Errorf("nil must stay nil")
	}
	if errorspkg.IsTransient(classify(context.DeadlineExceeded)) {
		t.Errorf("deadline must not be marked transient")
	}
	if !errorspkg.IsTransient(classify(io.ErrUnexpectedEOF)) {
		t.Errorf("unexpected EOF must be transient")
	}
	if !errorspkg.IsTransient(responseError("server_error", "boom")) {
		t.Errorf("server_error must be transient")
	}
	if errorspkg.IsTransient(responseError("invalid_prompt", "bad")) {
		t.Errorf("invalid_prompt must not be transient")
	}
}

func TestConvertInputsRoles(t *testing.T) {
	params := convertInputs([]message.Input{
		{Type: message.InputMessage, Role: message.RoleSystem, Content: "sys"},
		message.NewUserInput("hi"),
	})
	data, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"role":"system"`) || !strings.Contains(s, `"role":"user"`) {
		t.Errorf("unexpected encoded inputs: %s", s)
	}
}
