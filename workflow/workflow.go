// Package workflow holds fixed prompt chains that need no tool calls.
package workflow

import (
	"context"
	"fmt"

	"github.com/sweetpotato0/miniagent/agent"
	"github.com/sweetpotato0/miniagent/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

const (
	summaryInstructions = "Summarize into 3-5 sentences"
	toneInstructions    = "Determine the tone of the transcript"
)

// Responder answers a single instructions/input pair.
// *openai.Provider satisfies it directly.
type Responder interface {
	Respond(ctx context.Context, instructions, input string) (string, error)
}

// ProcessTranscript summarises a transcript and then classifies its tone.
func ProcessTranscript(ctx context.Context, r Responder, transcript string) (summary, tone string, err error) {
	ctx, span := telemetry.Tracer("workflow").Start(ctx, "workflow.process_transcript")
	span.SetAttributes(attribute.Int("workflow.transcript_length", len(transcript)))
	defer func() { telemetry.End(span, err) }()

	summary, err = respond(ctx, r, summaryInstructions, transcript)
	if err != nil {
		return "", "", fmt.Errorf("summarize transcript: %w", err)
	}
	tone, err = respond(ctx, r, toneInstructions, transcript)
	if err != nil {
		return "", "", fmt.Errorf("determine tone: %w", err)
	}
	return summary, tone, nil
}

func respond(ctx context.Context, r Responder, instructions, input string) (out string, err error) {
	ctx, span := telemetry.Tracer("workflow").Start(ctx, "workflow.respond")
	span.SetAttributes(attribute.String("workflow.instructions", instructions))
	defer func() { telemetry.End(span, err) }()

	return r.Respond(ctx, instructions, input)
}

// AgentResponder answers through a tool-less agent run, one agent per call.
type AgentResponder struct {
	Client  agent.CompletionClient
	Options []agent.Option
}

// Respond implements Responder.
func (a *AgentResponder) Respond(ctx context.Context, instructions, input string) (string, error) {
	opts := append([]agent.Option{agent.WithProvider(a.Client)}, a.Options...)
	opts = append(opts, agent.WithInstructions(instructions))

	ag, err := agent.New(opts...)
	if err != nil {
		return "", err
	}
	state, err := ag.Run(ctx, input)
	if err != nil {
		return "", err
	}
	return state.FinalText(), nil
}
