package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sweetpotato0/miniagent/message"
	"github.com/sweetpotato0/miniagent/middleware"
	"github.com/sweetpotato0/miniagent/pkg/telemetry"
	"github.com/sweetpotato0/miniagent/tool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Dispatch processes one output item and returns the inputs it queues for the
// next turn. An item whose ID was already processed in this run yields
// nothing, so redelivered items never run a tool twice. The error is non-nil
// only when a tool fails under AbortOnToolError.
func (a *Agent) Dispatch(ctx context.Context, state *RunState, item message.Item) ([]message.Input, error) {
	if isNilItem(item) {
		return nil, nil
	}
	if !state.record(item) {
		a.logger.Debug("skipping redelivered item", "run_id", state.RunID, "item_id", item.ItemID())
		return nil, nil
	}

	switch it := item.(type) {
	case *message.Reasoning:
		a.observer.OnReasoning(it)
		return nil, nil
	case *message.Message:
		a.observer.OnMessage(it)
		return nil, nil
	case *message.FunctionCall:
		return a.callFunction(ctx, state, it)
	default:
		panic(fmt.Sprintf("agent: unhandled item type %T", item))
	}
}

// isNilItem reports whether item is nil or a typed nil of a known variant.
func isNilItem(item message.Item) bool {
	switch it := item.(type) {
	case nil:
		return true
	case *message.Reasoning:
		return it == nil
	case *message.Message:
		return it == nil
	case *message.FunctionCall:
		return it == nil
	}
	return false
}

func (a *Agent) callFunction(ctx context.Context, state *RunState, call *message.FunctionCall) ([]message.Input, error) {
	a.observer.OnFunctionCall(call)

	ctx, span := a.tracer.Start(ctx, "tool.invoke", trace.WithAttributes(
		attribute.String("tool.name", call.Name),
		attribute.String("tool.call_id", call.CallID),
	))
	output, err := a.invokeTool(ctx, state.RunID, call)
	telemetry.End(span, err)

	if err != nil {
		toolErr := &ToolError{Tool: call.Name, CallID: call.CallID, Err: err}
		if a.toolErrorPolicy == AbortOnToolError {
			return nil, &RunFailedError{Turn: state.Turns, Err: toolErr}
		}
		a.logger.Warn("tool call failed, reporting to model",
			"run_id", state.RunID, "tool", call.Name, "call_id", call.CallID, "error", err)
		output = encodeToolError(err)
	} else {
		a.logger.Debug("tool call finished", "run_id", state.RunID, "tool", call.Name, "call_id", call.CallID)
	}

	a.observer.OnFunctionOutput(call, output)
	return []message.Input{message.NewFunctionCallOutput(call.CallID, output)}, nil
}

// invokeTool decodes the arguments, runs the tool through the middleware
// chain and JSON-encodes its result.
func (a *Agent) invokeTool(ctx context.Context, runID string, call *message.FunctionCall) (output string, err error) {
	args, err := decodeArguments(call.Arguments)
	if err != nil {
		return "", err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrToolExecution, r)
		}
	}()

	mctx := middleware.NewContext(ctx, runID, call, args)
	err = a.toolChain.Execute(mctx, func(c *middleware.Context) error {
		res, err := a.tools.Invoke(c.Context(), call.Name, c.Args)
		c.Result = res
		return err
	})
	if err != nil {
		if errors.Is(err, tool.ErrToolNotFound) || errors.Is(err, tool.ErrInvalidArguments) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrToolExecution, err)
	}

	data, err := json.Marshal(mctx.Result)
	if err != nil {
		return "", fmt.Errorf("%w: encode result: %w", ErrToolExecution, err)
	}
	return string(data), nil
}

// decodeArguments parses a JSON object; an empty string means no arguments.
func decodeArguments(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchemaDecode, err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func encodeToolError(err error) string {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(data)
}
