// Package middleware wraps tool invocations in a chain of interceptors.
package middleware

import (
	"context"

	"github.com/sweetpotato0/miniagent/message"
)

// Context carries one tool invocation through the chain.
type Context struct {
	// RunID identifies the agent run that issued the call.
	RunID string

	// Call is the function call being executed.
	Call *message.FunctionCall

	// Args are the decoded arguments. Middlewares may rewrite them.
	Args map[string]any

	// Result is set by the final handler and may be replaced on the way out.
	Result any

	// Metadata for passing data between middlewares
	Metadata map[string]any

	context context.Context
}

// NewContext creates a middleware context for call.
func NewContext(ctx context.Context, runID string, call *message.FunctionCall, args map[string]any) *Context {
	return &Context{
		RunID:    runID,
		Call:     call,
		Args:     args,
		Metadata: make(map[string]any),
		context:  ctx,
	}
}

// Context returns the underlying context.Context
func (c *Context) Context() context.Context {
	if c.context == nil {
		return context.Background()
	}
	return c.context
}

// ToolName returns the called tool's name, or "" without a call.
func (c *Context) ToolName() string {
	if c.Call == nil {
		return ""
	}
	return c.Call.Name
}

// Middleware intercepts a tool invocation. Returning an error without calling
// next stops the chain and the tool never runs.
type Middleware interface {
	Name() string
	Execute(ctx *Context, next Handler) error
}

// RunFinisher is implemented by middlewares that keep per-run state. The
// agent calls FinishRun once a run ends.
type RunFinisher interface {
	FinishRun(runID string)
}

// Handler is the function called to pass control to the next middleware
type Handler func(*Context) error

// Func adapts a function to Middleware.
type Func struct {
	ID string
	Fn func(ctx *Context, next Handler) error
}

// Name returns the middleware name
func (f Func) Name() string { return f.ID }

// Execute calls Fn.
func (f Func) Execute(ctx *Context, next Handler) error { return f.Fn(ctx, next) }

// Chain is an ordered list of middlewares. The first added runs outermost.
type Chain struct {
	middlewares []Middleware
}

// NewChain creates a new middleware chain
func NewChain(middlewares ...Middleware) *Chain {
	return &Chain{middlewares: middlewares}
}

// Add appends a middleware to the chain
func (c *Chain) Add(m Middleware) *Chain {
	c.middlewares = append(c.middlewares, m)
	return c
}

// Len reports the number of middlewares.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.middlewares)
}

// FinishRun notifies every RunFinisher in the chain that runID ended.
func (c *Chain) FinishRun(runID string) {
	if c == nil {
		return
	}
	for _, m := range c.middlewares {
		if f, ok := m.(RunFinisher); ok {
			f.FinishRun(runID)
		}
	}
}

// Execute runs all middlewares in the chain, then final.
func (c *Chain) Execute(ctx *Context, final Handler) error {
	if c == nil {
		return final(ctx)
	}
	return c.execute(ctx, 0, final)
}

func (c *Chain) execute(ctx *Context, index int, final Handler) error {
	if index >= len(c.middlewares) {
		return final(ctx)
	}
	next := func(ctx *Context) error {
		return c.execute(ctx, index+1, final)
	}
	return c.middlewares[index].Execute(ctx, next)
}
