// Package eval scores an agent against a fixed list of prompts.
package eval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/sweetpotato0/miniagent/agent"
	"github.com/sweetpotato0/miniagent/pkg/logging"
	"github.com/sweetpotato0/miniagent/pkg/telemetry"
	"github.com/sweetpotato0/miniagent/runner"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// ErrJudgeOutput is returned when a judge's reply is not a boolean.
var ErrJudgeOutput = errors.New("judge did not answer True or False")

// Evaluator decides whether actual is an acceptable answer given expected.
type Evaluator func(ctx context.Context, actual, expected string) (bool, error)

// ExactMatch passes when actual equals expected.
func ExactMatch(_ context.Context, actual, expected string) (bool, error) {
	return actual == expected, nil
}

// LLMJudge returns an evaluator that asks a model whether the output meets
// criteria. Options are applied after the judge's defaults, so callers can
// override the model or provider.
func LLMJudge(client agent.CompletionClient, criteria string, opts ...agent.Option) (Evaluator, error) {
	base := []agent.Option{
		agent.WithName("Judge"),
		agent.WithModel("gpt-4o-mini"),
		agent.WithInstructions(fmt.Sprintf("Return True if the output meets: %s. Answer with True or False first.", criteria)),
		agent.WithProvider(client),
	}
	judge, err := agent.New(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("eval: build judge: %w", err)
	}

	return func(ctx context.Context, actual, expected string) (bool, error) {
		input := fmt.Sprintf("Criteria: %s\nActual: %s\nExpected: %s", criteria, actual, expected)
		state, err := judge.Run(ctx, input)
		if err != nil {
			return false, fmt.Errorf("eval: judge run: %w", err)
		}
		return ParseVerdict(state.FinalText())
	}, nil
}

// ParseVerdict reads the leading True/False (or Yes/No) word of a judge
// reply, ignoring case, markup and any explanation that follows it.
func ParseVerdict(s string) (bool, error) {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool { return !unicode.IsLetter(r) })
	if len(words) > 0 {
		switch words[0] {
		case "true", "yes":
			return true, nil
		case "false", "no":
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: %q", ErrJudgeOutput, s)
}

// Case is one prompt with its expected answer. A nil Evaluator means ExactMatch.
type Case struct {
	Prompt    string
	Expected  string
	Evaluator Evaluator
}

// CaseResult is the outcome of one case.
type CaseResult struct {
	Index  int
	Prompt string
	Output string
	Passed bool
	Err    error
}

// Report summarises a harness run.
type Report struct {
	Model    string
	Dataset  string
	Results  []CaseResult
	Total    int
	Passed   int
	PassRate float64
}

// String renders one ✅/❌ line per case followed by the totals.
func (r *Report) String() string {
	var sb strings.Builder
	for _, res := range r.Results {
		mark := "❌"
		if res.Passed {
			mark = "✅"
		}
		fmt.Fprintf(&sb, "%s %d. %q → %q\n", mark, res.Index, res.Prompt, res.Output)
	}
	fmt.Fprintf(&sb, "\nPassed %d/%d tests", r.Passed, r.Total)
	return sb.String()
}

// Harness runs every case through Agent and scores the outputs.
type Harness struct {
	Agent runner.Agent
	Cases []Case
	// Concurrency bounds parallel agent runs and evaluations; defaults to 4.
	Concurrency int
	// Model and Dataset label the report and the trace.
	Model   string
	Dataset string

	TracerProvider trace.TracerProvider
	Logger         *slog.Logger
}

// Run executes all cases. Per-case failures are recorded in the report; the
// error is non-nil only when ctx is cancelled.
func (h *Harness) Run(ctx context.Context) (*Report, error) {
	if h.Agent == nil {
		return nil, errors.New("eval: harness has no agent")
	}
	concurrency := h.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	logger := h.Logger
	if logger == nil {
		logger = logging.WithComponent("eval")
	}
	tracer := telemetry.Tracer("eval")
	if h.TracerProvider != nil {
		tracer = h.TracerProvider.Tracer(telemetry.InstrumentationName + "/eval")
	}

	ctx, span := tracer.Start(ctx, "eval.run", trace.WithAttributes(
		attribute.String("eval.model", h.Model),
		attribute.String("eval.dataset", h.Dataset),
		attribute.Int("eval.cases", len(h.Cases)),
	))
	defer span.End()

	tasks := make([]*runner.Task, len(h.Cases))
	for i, c := range h.Cases {
		tasks[i] = &runner.Task{ID: fmt.Sprintf("case-%d", i+1), Agent: h.Agent, Input: c.Prompt}
	}
	predictions := runner.NewParallelRunner(concurrency).RunParallel(ctx, tasks)

	results := make([]CaseResult, len(h.Cases))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, c := range h.Cases {
		g.Go(func() error {
			results[i] = h.score(gctx, tracer, logger, i, c, predictions[i])
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{Model: h.Model, Dataset: h.Dataset, Results: results, Total: len(results)}
	for _, res := range results {
		if res.Passed {
			report.Passed++
		}
	}
	if report.Total > 0 {
		report.PassRate = float64(report.Passed) / float64(report.Total)
	}

	span.SetAttributes(
		attribute.Int("eval.total_tests", report.Total),
		attribute.Int("eval.passed_tests", report.Passed),
		attribute.Float64("eval.pass_rate", report.PassRate),
	)
	logger.Info("evaluation finished", "model", h.Model, "dataset", h.Dataset,
		"total", report.Total, "passed", report.Passed, "pass_rate", report.PassRate)

	return report, ctx.Err()
}

func (h *Harness) score(ctx context.Context, tracer trace.Tracer, logger *slog.Logger, i int, c Case, pred *runner.Result) CaseResult {
	res := CaseResult{Index: i + 1, Prompt: c.Prompt}

	_, span := tracer.Start(ctx, "eval.case", trace.WithAttributes(
		attribute.Int("eval.case.index", res.Index),
		attribute.String("eval.case.prompt", c.Prompt),
	))
	defer func() {
		span.SetAttributes(
			attribute.String("eval.case.output", res.Output),
			attribute.Float64("correctness", boolScore(res.Passed)),
		)
		telemetry.End(span, res.Err)
	}()

	if pred == nil {
		res.Err = errors.New("eval: missing prediction")
		return res
	}
	res.Output = pred.Output
	if pred.Error != nil {
		res.Err = pred.Error
		logger.Warn("prediction failed", "case", res.Index, "error", pred.Error)
		return res
	}

	evaluate := c.Evaluator
	if evaluate == nil {
		evaluate = ExactMatch
	}
	ok, err := evaluate(ctx, res.Output, c.Expected)
	if err != nil {
		res.Err = err
		logger.Warn("evaluation failed", "case", res.Index, "error", err)
		return res
	}
	res.Passed = ok
	logger.Debug("prediction scored", "case", res.Index, "prompt", c.Prompt, "output", res.Output, "correctness", boolScore(ok))
	return res
}

func boolScore(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}
