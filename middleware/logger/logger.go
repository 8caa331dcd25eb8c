package logger

import (
	"log/slog"
	"time"

	"github.com/sweetpotato0/miniagent/middleware"
	"github.com/sweetpotato0/miniagent/pkg/logging"
)

// ToolLogger logs every tool call and its outcome.
type ToolLogger struct {
	logger *slog.Logger
	level  slog.Level
}

// New creates a logging middleware. A nil logger uses the process logger.
func New(logger *slog.Logger, level slog.Level) *ToolLogger {
	if logger == nil {
		logger = logging.WithComponent("tool")
	}
	return &ToolLogger{logger: logger, level: level}
}

// Name returns the middleware name
func (m *ToolLogger) Name() string {
	return "ToolLogger"
}

// Execute logs the call before and after the rest of the chain.
func (m *ToolLogger) Execute(ctx *middleware.Context, next middleware.Handler) error {
	attrs := []any{"run_id", ctx.RunID, "tool", ctx.ToolName()}
	if ctx.Call != nil {
		attrs = append(attrs, "call_id", ctx.Call.CallID)
	}
	m.logger.Log(ctx.Context(), m.level, "tool call started", append(attrs, "args", ctx.Args)...)

	start := time.Now()
	err := next(ctx)
	attrs = append(attrs, "duration", time.Since(start))

	if err != nil {
		m.logger.Log(ctx.Context(), slog.LevelWarn, "tool call failed", append(attrs, "error", err)...)
		return err
	}
	m.logger.Log(ctx.Context(), m.level, "tool call finished", attrs...)
	return nil
}
