package enricher

import (
	"github.com/sweetpotato0/miniagent/middleware"
)

// EnricherFunc enriches the context
type EnricherFunc func(*middleware.Context) error

// ContextEnricher runs fn before the tool, typically to fill Metadata or
// inject default arguments.
type ContextEnricher struct {
	enricher EnricherFunc
}

// NewContextEnricher creates a context enriching middleware
func NewContextEnricher(enricher EnricherFunc) *ContextEnricher {
	return &ContextEnricher{enricher: enricher}
}

// Name returns the middleware name
func (m *ContextEnricher) Name() string {
	return "ContextEnricher"
}

// Execute enriches the context
func (m *ContextEnricher) Execute(ctx *middleware.Context, next middleware.Handler) error {
	if m.enricher != nil {
		if err := m.enricher(ctx); err != nil {
			return err
		}
	}
	return next(ctx)
}

// DefaultArgs fills missing arguments for the named tool.
func DefaultArgs(toolName string, defaults map[string]any) *ContextEnricher {
	return NewContextEnricher(func(ctx *middleware.Context) error {
		if ctx.ToolName() != toolName {
			return nil
		}
		if ctx.Args == nil {
			ctx.Args = make(map[string]any, len(defaults))
		}
		for k, v := range defaults {
			if _, ok := ctx.Args[k]; !ok {
				ctx.Args[k] = v
			}
		}
		return nil
	})
}
