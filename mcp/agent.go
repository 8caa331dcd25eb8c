package mcp

import (
	"context"
	"fmt"

	"github.com/sweetpotato0/miniagent/agent"
)

// AgentOption loads the server's tools and returns an option that adds them
// to an agent built with agent.New.
func (c *Client) AgentOption(ctx context.Context) (agent.Option, error) {
	if c == nil {
		return nil, fmt.Errorf("mcp: client is nil")
	}

	tools, err := c.BuildTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("mcp: load tools: %w", err)
	}
	return agent.WithTools(tools...), nil
}
