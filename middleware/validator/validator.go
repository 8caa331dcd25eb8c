package validator

import (
	"fmt"

	"github.com/sweetpotato0/miniagent/middleware"
	"github.com/sweetpotato0/miniagent/tool"
)

// ValidatorFunc checks a call's arguments.
type ValidatorFunc func(toolName string, args map[string]any) error

// FilterFunc transforms a tool result.
type FilterFunc func(toolName string, result any) (any, error)

// ArgsValidator rejects calls before the tool runs. Failures wrap
// tool.ErrInvalidArguments.
type ArgsValidator struct {
	validator ValidatorFunc
}

// NewArgsValidator creates an argument validation middleware
func NewArgsValidator(validator ValidatorFunc) *ArgsValidator {
	return &ArgsValidator{validator: validator}
}

// Name returns the middleware name
func (m *ArgsValidator) Name() string {
	return "ArgsValidator"
}

// Execute validates the arguments
func (m *ArgsValidator) Execute(ctx *middleware.Context, next middleware.Handler) error {
	if m.validator != nil {
		if err := m.validator(ctx.ToolName(), ctx.Args); err != nil {
			return fmt.Errorf("%w: %s: %w", tool.ErrInvalidArguments, ctx.ToolName(), err)
		}
	}
	return next(ctx)
}

// ResultFilter rewrites successful results, for example to redact fields.
type ResultFilter struct {
	filter FilterFunc
}

// NewResultFilter creates a result filtering middleware
func NewResultFilter(filter FilterFunc) *ResultFilter {
	return &ResultFilter{filter: filter}
}

// Name returns the middleware name
func (m *ResultFilter) Name() string {
	return "ResultFilter"
}

// Execute filters the result
func (m *ResultFilter) Execute(ctx *middleware.Context, next middleware.Handler) error {
	if err := next(ctx); err != nil {
		return err
	}
	if m.filter == nil {
		return nil
	}
	out, err := m.filter(ctx.ToolName(), ctx.Result)
	if err != nil {
		return err
	}
	ctx.Result = out
	return nil
}
