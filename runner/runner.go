package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/sweetpotato0/miniagent/agent"
)

// Agent is anything that executes one run per input; *agent.Agent satisfies it.
type Agent interface {
	Run(ctx context.Context, input string) (*agent.RunState, error)
}

// Runner executes agents
type Runner interface {
	// Run executes an agent with the given input. Every call gets its own
	// RunState; the state is returned even when the run fails.
	Run(ctx context.Context, ag Agent, input string) (*agent.RunState, error)
}

// runner is the default implementation of Runner
type runner struct {
	semaphore chan struct{}
}

// New creates a new runner
func New(maxConcurrency int) Runner {
	if maxConcurrency <= 0 {
		maxConcurrency = 10 // Default concurrency
	}
	return &runner{
		semaphore: make(chan struct{}, maxConcurrency),
	}
}

// Run executes an agent with the given input
func (r *runner) Run(ctx context.Context, ag Agent, input string) (*agent.RunState, error) {
	if ag == nil {
		return nil, fmt.Errorf("runner: agent is nil")
	}

	select {
	case r.semaphore <- struct{}{}:
		defer func() { <-r.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return ag.Run(ctx, input)
}

// ParallelRunner executes multiple agents in parallel
type ParallelRunner struct {
	runner Runner
}

// NewParallelRunner creates a new parallel runner
func NewParallelRunner(maxConcurrency int) *ParallelRunner {
	return &ParallelRunner{
		runner: New(maxConcurrency),
	}
}

// Task represents a task to be executed
type Task struct {
	ID    string
	Agent Agent
	Input string
}

// Result represents the result of a task execution
type Result struct {
	TaskID string
	Output string
	State  *agent.RunState
	Error  error
}

func newResult(id string, state *agent.RunState, err error) *Result {
	res := &Result{TaskID: id, State: state, Error: err}
	if state != nil {
		res.Output = state.FinalText()
	}
	return res
}

// RunParallel executes multiple tasks in parallel. Results are in task order.
func (pr *ParallelRunner) RunParallel(ctx context.Context, tasks []*Task) []*Result {
	results := make([]*Result, len(tasks))
	var wg sync.WaitGroup

	for i, task := range tasks {
		wg.Add(1)
		go func(index int, t *Task) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[index] = &Result{
						TaskID: t.ID,
						Error:  fmt.Errorf("panic in task %s: %v", t.ID, r),
					}
				}
			}()

			state, err := pr.runner.Run(ctx, t.Agent, t.Input)
			results[index] = newResult(t.ID, state, err)
		}(i, task)
	}

	wg.Wait()
	return results
}

// SequentialRunner executes agents sequentially
type SequentialRunner struct {
	runner Runner
}

// NewSequentialRunner creates a new sequential runner
func NewSequentialRunner() *SequentialRunner {
	return &SequentialRunner{
		runner: New(1), // Single concurrency for sequential execution
	}
}

// RunSequential executes tasks sequentially, passing the final text of each
// run as the input of the next.
func (sr *SequentialRunner) RunSequential(ctx context.Context, tasks []*Task) (*Result, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("runner: no tasks")
	}

	var last *Result
	for _, task := range tasks {
		input := task.Input
		if last != nil && last.Output != "" {
			input = last.Output
		}

		state, err := sr.runner.Run(ctx, task.Agent, input)
		last = newResult(task.ID, state, err)
		if err != nil {
			return last, err
		}
	}

	return last, nil
}
