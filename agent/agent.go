package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sweetpotato0/miniagent/message"
	"github.com/sweetpotato0/miniagent/middleware"
	"github.com/sweetpotato0/miniagent/pkg/logging"
	"github.com/sweetpotato0/miniagent/pkg/telemetry"
	"github.com/sweetpotato0/miniagent/tool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ToolErrorPolicy decides what happens when a function call fails.
type ToolErrorPolicy int

const (
	// ReportToModel sends the error back as the function's output so the model can recover.
	ReportToModel ToolErrorPolicy = iota
	// AbortOnToolError fails the run with a *ToolError.
	AbortOnToolError
)

const (
	defaultMaxTurns   = 10
	defaultMaxRetries = 3
)

// Agent drives the tool-call loop against a CompletionClient. Its
// configuration is fixed by New; all per-run data lives in RunState, so one
// Agent may serve concurrent runs.
type Agent struct {
	name            string
	instructions    string
	model           string
	reasoningEffort string
	maxTurns        int
	deadline        time.Duration
	maxRetries      int
	retryInterval   time.Duration
	toolErrorPolicy ToolErrorPolicy
	llm             CompletionClient
	toolList        []*tool.Tool
	tools           *tool.Registry
	toolChain       *middleware.Chain
	observer        Observer
	logger          *slog.Logger
	tracer          trace.Tracer
}

// Option is a function that configures an Agent
type Option func(*Agent)

// WithName sets the agent name
func WithName(name string) Option {
	return func(a *Agent) {
		a.name = name
	}
}

// WithInstructions sets the instruction string sent on every turn.
func WithInstructions(instructions string) Option {
	return func(a *Agent) {
		a.instructions = instructions
	}
}

// WithModel sets the model identifier.
func WithModel(model string) Option {
	return func(a *Agent) {
		a.model = model
	}
}

// WithReasoningEffort sets the reasoning effort hint (low, medium, high).
func WithReasoningEffort(effort string) Option {
	return func(a *Agent) {
		a.reasoningEffort = effort
	}
}

// WithMaxTurns bounds the number of completion calls per run.
func WithMaxTurns(n int) Option {
	return func(a *Agent) {
		a.maxTurns = n
	}
}

// WithDeadline bounds the wall-clock duration of a run.
func WithDeadline(d time.Duration) Option {
	return func(a *Agent) {
		a.deadline = d
	}
}

// WithRetry configures how often a transient completion failure is retried
// and the initial backoff interval.
func WithRetry(maxRetries int, initialInterval time.Duration) Option {
	return func(a *Agent) {
		a.maxRetries = maxRetries
		a.retryInterval = initialInterval
	}
}

// WithToolErrorPolicy selects how failed function calls are handled.
func WithToolErrorPolicy(p ToolErrorPolicy) Option {
	return func(a *Agent) {
		a.toolErrorPolicy = p
	}
}

// WithProvider sets the completion client
func WithProvider(client CompletionClient) Option {
	return func(a *Agent) {
		a.llm = client
	}
}

// WithTools adds tools to the registry built by New.
func WithTools(tools ...*tool.Tool) Option {
	return func(a *Agent) {
		a.toolList = append(a.toolList, tools...)
	}
}

// WithObserver sets the receiver of reasoning, message and function call events.
func WithObserver(o Observer) Option {
	return func(a *Agent) {
		if o != nil {
			a.observer = o
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithTracerProvider sets where run, turn and tool spans are recorded.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *Agent) {
		if tp != nil {
			a.tracer = tp.Tracer(telemetry.InstrumentationName + "/agent")
		}
	}
}

// WithToolMiddleware wraps every tool invocation. The first middleware runs
// outermost; repeated options append.
func WithToolMiddleware(mws ...middleware.Middleware) Option {
	return func(a *Agent) {
		if a.toolChain == nil {
			a.toolChain = middleware.NewChain()
		}
		for _, m := range mws {
			a.toolChain.Add(m)
		}
	}
}

// New creates an agent. It fails if the supplied tools cannot form a registry,
// for example when two tools share a name.
func New(opts ...Option) (*Agent, error) {
	a := &Agent{
		name:          "Agent",
		instructions:  "You are a helpful AI assistant.",
		model:         "gpt-4o-mini",
		maxTurns:      defaultMaxTurns,
		maxRetries:    defaultMaxRetries,
		retryInterval: 500 * time.Millisecond,
		observer:      NopObserver{},
		logger:        logging.WithComponent("agent"),
		tracer:        telemetry.Tracer("agent"),
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.maxTurns <= 0 {
		a.maxTurns = defaultMaxTurns
	}
	if a.maxRetries < 0 {
		a.maxRetries = 0
	}

	registry, err := tool.NewRegistry(a.toolList...)
	if err != nil {
		return nil, fmt.Errorf("agent %s: build tool registry: %w", a.name, err)
	}
	a.tools = registry
	a.toolList = nil

	return a, nil
}

// Name returns the agent name.
func (a *Agent) Name() string {
	return a.name
}

// Tools returns the agent's tool registry.
func (a *Agent) Tools() *tool.Registry {
	return a.tools
}

// Run drives the conversation until no function call output is pending.
// The returned state holds the transcript; it is also returned alongside an
// error so callers can inspect what happened before the failure.
func (a *Agent) Run(ctx context.Context, input string) (state *RunState, err error) {
	state = NewRunState()
	if a.llm == nil {
		return state, &RunFailedError{Err: errors.New("no completion client configured")}
	}

	if a.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.deadline)
		defer cancel()
	}

	logger := a.logger.With("run_id", state.RunID, "agent", a.name)
	ctx, span := a.tracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("agent.name", a.name),
		attribute.String("agent.model", a.model),
		attribute.String("run.id", state.RunID),
	))
	defer a.toolChain.FinishRun(state.RunID)
	defer func() {
		span.SetAttributes(
			attribute.Int("run.turns", state.Turns),
			attribute.Int("run.items", len(state.items)),
		)
		telemetry.End(span, err)
	}()

	logger.Info("run started", "tools", a.tools.Len())
	a.observer.OnInput(input)

	pending := []message.Input{message.NewUserInput(input)}
	for len(pending) > 0 {
		if state.Turns >= a.maxTurns {
			err = fmt.Errorf("%w: %d turns without a final answer", ErrRunExhausted, a.maxTurns)
			logger.Warn("run exhausted", "turns", state.Turns)
			return state, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = a.failure(ctx, state.Turns, ctxErr)
			return state, err
		}

		pending, err = a.turn(ctx, state, logger, pending)
		if err != nil {
			logger.Error("run failed", "turn", state.Turns, "error", err)
			return state, err
		}
	}

	state.State = StateDone
	logger.Info("run finished", "turns", state.Turns, "items", len(state.items))
	return state, nil
}

// turn performs one AWAITING_INPUT -> STREAMING cycle and returns the inputs
// queued for the next turn.
func (a *Agent) turn(ctx context.Context, state *RunState, logger *slog.Logger, pending []message.Input) (next []message.Input, err error) {
	state.Turns++
	state.State = StateAwaitingInput

	ctx, span := a.tracer.Start(ctx, "agent.turn", trace.WithAttributes(
		attribute.Int("turn.number", state.Turns),
		attribute.Int("turn.inputs", len(pending)),
	))
	defer func() { telemetry.End(span, err) }()

	req := &CompletionRequest{
		Model:              a.model,
		Instructions:       a.instructions,
		Tools:              a.tools.ToJSONSchemas(),
		Input:              pending,
		PreviousResponseID: state.PreviousResponseID,
		ReasoningEffort:    a.reasoningEffort,
	}

	stream, err := a.openStream(ctx, state.Turns, logger, req)
	if err != nil {
		return nil, err
	}
	defer stream.Close()
	state.State = StateStreaming

	completed := false
	for {
		ev, ok, streamErr := stream.Next()
		if streamErr != nil {
			return nil, a.failure(ctx, state.Turns, streamErr)
		}
		if !ok {
			break
		}
		if ev == nil {
			continue
		}

		switch ev.Type {
		case EventItemDone:
			followUps, dispatchErr := a.Dispatch(ctx, state, ev.Item)
			if dispatchErr != nil {
				return nil, dispatchErr
			}
			next = append(next, followUps...)
		case EventCompleted:
			completed = true
			state.PreviousResponseID = ev.ResponseID
			// Items the stream never delivered are only present here.
			for _, item := range ev.Output {
				followUps, dispatchErr := a.Dispatch(ctx, state, item)
				if dispatchErr != nil {
					return nil, dispatchErr
				}
				next = append(next, followUps...)
			}
		}
	}

	if !completed {
		return nil, &RunFailedError{Turn: state.Turns, Err: ErrIncompleteStream}
	}

	span.SetAttributes(
		attribute.String("response.id", state.PreviousResponseID),
		attribute.Int("turn.follow_ups", len(next)),
	)
	logger.Debug("turn completed", "turn", state.Turns, "response_id", state.PreviousResponseID, "follow_ups", len(next))
	return next, nil
}

// failure classifies an error that stops the run.
func (a *Agent) failure(ctx context.Context, turn int, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: deadline exceeded on turn %d: %w", ErrRunExhausted, turn, err)
	}
	var runErr *RunFailedError
	if errors.As(err, &runErr) {
		return err
	}
	return &RunFailedError{Turn: turn, Err: err}
}
