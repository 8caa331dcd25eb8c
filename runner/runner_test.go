package runner

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sweetpotato0/miniagent/agent"
	"github.com/sweetpotato0/miniagent/message"
	"github.com/sweetpotato0/miniagent/pkg/logging"
)

// echoClient answers every request with the user's input prefixed by "echo: ".
type echoClient struct{}

func (echoClient) Stream(ctx context.Context, req *agent.CompletionRequest) iter.Seq2[*agent.Event, error] {
	return func(yield func(*agent.Event, error) bool) {
		reply := message.NewTextMessage("msg_1", "echo: "+req.Input[0].Content)
		if !yield(agent.ItemDone(reply), nil) {
			return
		}
		yield(agent.Completed("resp_1", reply), nil)
	}
}

func newEchoAgent(t *testing.T, name string) *agent.Agent {
	t.Helper()
	ag, err := agent.New(agent.WithName(name), agent.WithProvider(echoClient{}), agent.WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}
	return ag
}

// funcAgent adapts a function to the Agent interface.
type funcAgent func(ctx context.Context, input string) (*agent.RunState, error)

func (f funcAgent) Run(ctx context.Context, input string) (*agent.RunState, error) {
	return f(ctx, input)
}

func TestRun(t *testing.T) {
	r := New(5)
	state, err := r.Run(context.Background(), newEchoAgent(t, "TestAgent"), "test input")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if state.FinalText() != "echo: test input" {
		t.Errorf("unexpected final text %q", state.FinalText())
	}
}

func TestRunNilAgent(t *testing.T) {
	if _, err := New(1).Run(context.Background(), nil, "x"); err == nil {
		t.Errorf("expected error for nil agent")
	}
}

func TestRunParallel(t *testing.T) {
	tasks := []*Task{
		{ID: "task1", Agent: newEchoAgent(t, "Agent1"), Input: "input1"},
		{ID: "task2", Agent: newEchoAgent(t, "Agent2"), Input: "input2"},
		{ID: "task3", Agent: newEchoAgent(t, "Agent3"), Input: "input3"},
	}

	pr := NewParallelRunner(10)
	results := pr.RunParallel(context.Background(), tasks)

	if len(results) != len(tasks) {
		t.Fatalf("Expected %d results, got %d", len(tasks), len(results))
	}

	for i, result := range results {
		if result.TaskID != tasks[i].ID {
			t.Errorf("Result %d: expected TaskID %s, got %s", i, tasks[i].ID, result.TaskID)
		}
		if result.Error != nil {
			t.Errorf("Result %d: unexpected error %v", i, result.Error)
		}
		if want := "echo: " + tasks[i].Input; result.Output != want {
			t.Errorf("Result %d: expected %q, got %q", i, want, result.Output)
		}
	}
}

func TestRunParallelSharedAgentSeparateStates(t *testing.T) {
	ag := newEchoAgent(t, "Shared")
	tasks := make([]*Task, 10)
	for i := range tasks {
		tasks[i] = &Task{ID: fmt.Sprintf("task%d", i), Agent: ag, Input: fmt.Sprintf("input%d", i)}
	}

	results := NewParallelRunner(4).RunParallel(context.Background(), tasks)
	seen := map[*agent.RunState]bool{}
	for i, res := range results {
		if res.State == nil || seen[res.State] {
			t.Fatalf("task %d: runs must not share state", i)
		}
		seen[res.State] = true
		if len(res.State.Transcript()) != 1 {
			t.Errorf("task %d: expected a transcript of 1 item, got %d", i, len(res.State.Transcript()))
		}
	}
}

func TestRunParallelWithEmptyTasks(t *testing.T) {
	pr := NewParallelRunner(10)
	if results := pr.RunParallel(context.Background(), nil); len(results) != 0 {
		t.Errorf("Expected 0 results for nil tasks, got %d", len(results))
	}
	if results := pr.RunParallel(context.Background(), []*Task{}); len(results) != 0 {
		t.Errorf("Expected 0 results for empty tasks, got %d", len(results))
	}
}

func TestRunParallelRecoversPanics(t *testing.T) {
	boom := funcAgent(func(ctx context.Context, input string) (*agent.RunState, error) {
		panic("boom")
	})
	tasks := []*Task{
		{ID: "ok", Agent: newEchoAgent(t, "ok"), Input: "fine"},
		{ID: "bad", Agent: boom, Input: "x"},
	}

	results := NewParallelRunner(2).RunParallel(context.Background(), tasks)
	if results[0].Error != nil {
		t.Errorf("healthy task must succeed, got %v", results[0].Error)
	}
	if results[1].Error == nil || !strings.Contains(results[1].Error.Error(), "panic in task bad") {
		t.Errorf("expected panic error, got %v", results[1].Error)
	}
}

func TestRunParallelConcurrencyLimit(t *testing.T) {
	const maxConcurrency = 2
	var running, peak int32
	slow := funcAgent(func(ctx context.Context, input string) (*agent.RunState, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return agent.NewRunState(), nil
	})

	tasks := make([]*Task, 6)
	for i := range tasks {
		tasks[i] = &Task{ID: fmt.Sprintf("task%d", i), Agent: slow}
	}

	NewParallelRunner(maxConcurrency).RunParallel(context.Background(), tasks)
	if peak > maxConcurrency {
		t.Errorf("expected at most %d concurrent runs, saw %d", maxConcurrency, peak)
	}
}

func TestRunCancelledContext(t *testing.T) {
	r := New(1)
	block := make(chan struct{})
	var started sync.WaitGroup
	started.Add(1)
	hold := funcAgent(func(ctx context.Context, input string) (*agent.RunState, error) {
		started.Done()
		<-block
		return agent.NewRunState(), nil
	})
	go r.Run(context.Background(), hold, "")
	started.Wait()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Run(ctx, hold, ""); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled while waiting for a slot, got %v", err)
	}
}

func TestRunSequential(t *testing.T) {
	tasks := []*Task{
		{ID: "first", Agent: newEchoAgent(t, "a"), Input: "start"},
		{ID: "second", Agent: newEchoAgent(t, "b"), Input: "ignored"},
	}

	result, err := NewSequentialRunner().RunSequential(context.Background(), tasks)
	if err != nil {
		t.Fatalf("RunSequential returned error: %v", err)
	}
	if result.TaskID != "second" || result.Output != "echo: echo: start" {
		t.Errorf("unexpected result %+v", result)
	}

	if _, err := NewSequentialRunner().RunSequential(context.Background(), nil); err == nil {
		t.Errorf("expected error for no tasks")
	}
}

func TestRunSequentialStopsOnError(t *testing.T) {
	failing := funcAgent(func(ctx context.Context, input string) (*agent.RunState, error) {
		return agent.NewRunState(), errors.New("nope")
	})
	tasks := []*Task{
		{ID: "fail", Agent: failing},
		{ID: "never", Agent: newEchoAgent(t, "b")},
	}

	result, err := NewSequentialRunner().RunSequential(context.Background(), tasks)
	if err == nil || result.TaskID != "fail" {
		t.Fatalf("expected failure on first task, got %+v, %v", result, err)
	}
}
