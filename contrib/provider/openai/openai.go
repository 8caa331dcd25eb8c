package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
	"github.com/sweetpotato0/miniagent/agent"
	errorspkg "github.com/sweetpotato0/miniagent/errors"
	"github.com/sweetpotato0/miniagent/message"
	"github.com/sweetpotato0/miniagent/pkg/logging"
)

// Config holds OpenAI provider configuration
type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	ReasoningEffort string
}

// WithBaseURL set BaseURL.
func (cfg *Config) WithBaseURL(url string) *Config {
	cfg.BaseURL = url
	return cfg
}

// WithAPIKey set api key.
func (cfg *Config) WithAPIKey(apiKey string) *Config {
	cfg.APIKey = apiKey
	return cfg
}

// WithModel set model.
func (cfg *Config) WithModel(model string) *Config {
	cfg.Model = model
	return cfg
}

// WithReasoningEffort set the default reasoning effort.
func (cfg *Config) WithReasoningEffort(effort string) *Config {
	cfg.ReasoningEffort = effort
	return cfg
}

// DefaultConfig returns default OpenAI configuration
func DefaultConfig() *Config {
	return &Config{
		Model: "gpt-4o-mini",
	}
}

// Provider implements agent.CompletionClient on top of the Responses API.
type Provider struct {
	config *Config
	client openai.Client
}

var _ agent.CompletionClient = (*Provider)(nil)

// New creates a new OpenAI provider using official SDK. The SDK's own retries
// are disabled; the agent loop retries transient failures itself.
func New(config *Config) *Provider {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}

	options := []option.RequestOption{option.WithMaxRetries(0)}
	if config.APIKey != "" {
		options = append(options, option.WithAPIKey(config.APIKey))
	}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}

	return &Provider{
		config: config,
		client: openai.NewClient(options...),
	}
}

// Stream implements agent.CompletionClient.
func (p *Provider) Stream(ctx context.Context, req *agent.CompletionRequest) iter.Seq2[*agent.Event, error] {
	return func(yield func(*agent.Event, error) bool) {
		if req == nil {
			yield(nil, fmt.Errorf("%w: completion request cannot be nil", errorspkg.ErrInvalidInput))
			return
		}

		stream := p.client.Responses.NewStreaming(ctx, p.buildParams(req))
		defer stream.Close()

		for stream.Next() {
			ev := stream.Current()
			switch ev.Type {
			case string(agent.EventItemDone):
				item := convertItem(ev.AsResponseOutputItemDone().Item)
				if item == nil {
					continue
				}
				if !yield(agent.ItemDone(item), nil) {
					return
				}
			case string(agent.EventCompleted):
				resp := ev.AsResponseCompleted().Response
				if !yield(agent.Completed(resp.ID, convertItems(resp.Output)...), nil) {
					return
				}
			case "response.failed":
				resp := ev.AsResponseFailed().Response
				yield(nil, responseError(string(resp.Error.Code), resp.Error.Message))
				return
			case "error":
				e := ev.AsError()
				yield(nil, responseError(e.Code, e.Message))
				return
			}
		}

		if err := stream.Err(); err != nil {
			yield(nil, classify(err))
		}
	}
}

// Respond issues a single non-streaming request and returns the output text.
func (p *Provider) Respond(ctx context.Context, instructions, input string) (string, error) {
	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(p.config.Model),
		Input: responses.ResponseNewParamsInputUnion{OfString: openai.String(input)},
	}
	if instructions != "" {
		params.Instructions = openai.String(instructions)
	}

	resp, err := p.client.Responses.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai respond: %w", classify(err))
	}
	return resp.OutputText(), nil
}

func (p *Provider) buildParams(req *agent.CompletionRequest) responses.ResponseNewParams {
	model := req.Model
	if model == "" {
		model = p.config.Model
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(model),
		Input: responses.ResponseNewParamsInputUnion{OfInputItemList: convertInputs(req.Input)},
		Tools: convertTools(req.Tools),
	}
	if req.Instructions != "" {
		params.Instructions = openai.String(req.Instructions)
	}
	if req.PreviousResponseID != "" {
		params.PreviousResponseID = openai.String(req.PreviousResponseID)
	}

	effort := req.ReasoningEffort
	if effort == "" {
		effort = p.config.ReasoningEffort
	}
	if effort != "" {
		params.Reasoning = shared.ReasoningParam{Effort: shared.ReasoningEffort(effort)}
	}
	return params
}

func convertInputs(inputs []message.Input) responses.ResponseInputParam {
	out := make(responses.ResponseInputParam, 0, len(inputs))
	for _, in := range inputs {
		switch in.Type {
		case message.InputFunctionCallOutput:
			out = append(out, responses.ResponseInputItemParamOfFunctionCallOutput(in.CallID, in.Output))
		default:
			out = append(out, responses.ResponseInputItemParamOfMessage(in.Content, easyRole(in.Role)))
		}
	}
	return out
}

func easyRole(role message.Role) responses.EasyInputMessageRole {
	switch role {
	case message.RoleAssistant:
		return responses.EasyInputMessageRoleAssistant
	case message.RoleSystem:
		return responses.EasyInputMessageRoleSystem
	default:
		return responses.EasyInputMessageRoleUser
	}
}

// convertTools maps the registry's function schemas onto SDK tool params.
func convertTools(schemas []map[string]any) []responses.ToolUnionParam {
	if len(schemas) == 0 {
		return nil
	}
	out := make([]responses.ToolUnionParam, 0, len(schemas))
	for _, schema := range schemas {
		name, _ := schema["name"].(string)
		fn := &responses.FunctionToolParam{
			Name:   name,
			Strict: openai.Bool(false),
		}
		if params, ok := schema["parameters"].(map[string]any); ok {
			fn.Parameters = params
		}
		if desc, _ := schema["description"].(string); desc != "" {
			fn.Description = openai.String(desc)
		}
		out = append(out, responses.ToolUnionParam{OfFunction: fn})
	}
	return out
}

// convertItem maps an SDK output item to a message.Item. Item types the run
// loop does not handle yield nil.
func convertItem(item responses.ResponseOutputItemUnion) message.Item {
	switch item.Type {
	case string(message.KindReasoning):
		r := item.AsReasoning()
		summary := make([]string, 0, len(r.Summary))
		for _, s := range r.Summary {
			summary = append(summary, s.Text)
		}
		return &message.Reasoning{ID: r.ID, Summary: summary}
	case string(message.KindMessage):
		m := item.AsMessage()
		blocks := make([]message.ContentBlock, 0, len(m.Content))
		for _, c := range m.Content {
			blocks = append(blocks, message.ContentBlock{Type: c.Type, Text: c.Text})
		}
		return &message.Message{ID: m.ID, Content: blocks}
	case string(message.KindFunctionCall):
		fc := item.AsFunctionCall()
		return &message.FunctionCall{ID: fc.ID, CallID: fc.CallID, Name: fc.Name, Arguments: fc.Arguments}
	default:
		logging.WithComponent("openai").Debug("skipping unsupported output item", "type", item.Type, "id", item.ID)
		return nil
	}
}

func convertItems(items []responses.ResponseOutputItemUnion) []message.Item {
	out := make([]message.Item, 0, len(items))
	for _, item := range items {
		if converted := convertItem(item); converted != nil {
			out = append(out, converted)
		}
	}
	return out
}

func responseError(code, msg string) error {
	err := fmt.Errorf("openai response error %s: %s", code, msg)
	switch code {
	case "server_error", "rate_limit_exceeded":
		return fmt.Errorf("%w: %w", errorspkg.ErrTransient, err)
	}
	return err
}

// classify marks rate limits, server errors and dropped connections as transient.
func classify(err error) error {
	if err == nil || errorspkg.IsTransient(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %w", errorspkg.ErrTransient, err)
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", errorspkg.ErrTransient, err)
	}
	return err
}
