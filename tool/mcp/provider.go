package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mcpclient "github.com/sweetpotato0/miniagent/mcp"
	"github.com/sweetpotato0/miniagent/tool"
)

// Transport enumerates the supported MCP transport types.
type Transport string

const (
	// TransportStreamable indicates the streamable HTTP (SSE) transport.
	TransportStreamable Transport = "streamable"
	// TransportCommand indicates the stdio/command transport.
	TransportCommand Transport = "command"
)

// Config describes how to connect to an MCP server.
type Config struct {
	// Transport selects how to connect to the MCP server. If empty, defaults to
	// command transport when Command is set, otherwise streamable HTTP.
	Transport Transport
	// Endpoint is required for streamable HTTP connections.
	Endpoint string
	// Command is required for command transport connections.
	Command string
	// Args are passed to Command.
	Args []string
}

// Provider exposes the tools of one MCP server.
type Provider struct {
	client *mcpclient.Client
}

// NewProvider connects to the server described by cfg and verifies that its
// tools can be listed.
func NewProvider(ctx context.Context, cfg Config, opts ...mcpclient.Option) (*Provider, error) {
	transport := cfg.Transport
	if transport == "" {
		if cfg.Command != "" {
			transport = TransportCommand
		} else {
			transport = TransportStreamable
		}
	}

	var (
		client *mcpclient.Client
		err    error
	)

	switch transport {
	case TransportStreamable:
		if strings.TrimSpace(cfg.Endpoint) == "" {
			return nil, errors.New("mcp: endpoint is required for streamable transport")
		}
		client, err = mcpclient.NewStreamableClient(ctx, cfg.Endpoint, opts...)
	case TransportCommand:
		if strings.TrimSpace(cfg.Command) == "" {
			return nil, errors.New("mcp: command is required for command transport")
		}
		opts = append([]mcpclient.Option{mcpclient.WithCommandArgs(cfg.Args...)}, opts...)
		client, err = mcpclient.NewStdioClient(ctx, cfg.Command, opts...)
	default:
		return nil, fmt.Errorf("mcp: unsupported transport %q", transport)
	}
	if err != nil {
		return nil, err
	}

	return newProvider(ctx, client)
}

// FromClient wraps an already connected client.
func FromClient(ctx context.Context, client *mcpclient.Client) (*Provider, error) {
	if client == nil {
		return nil, errors.New("mcp: client is nil")
	}
	return newProvider(ctx, client)
}

func newProvider(ctx context.Context, client *mcpclient.Client) (*Provider, error) {
	p := &Provider{client: client}
	// Fail fast if we cannot list tools.
	if _, err := p.Tools(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return p, nil
}

// Tools lists the server's current tools.
func (p *Provider) Tools(ctx context.Context) ([]*tool.Tool, error) {
	if p == nil || p.client == nil {
		return nil, errors.New("mcp: provider is not initialized")
	}
	return p.client.BuildTools(ctx)
}

// Close shuts down the connection.
func (p *Provider) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

// Client returns the underlying MCP client for advanced use cases.
func (p *Provider) Client() *mcpclient.Client {
	if p == nil {
		return nil
	}
	return p.client
}

// ToolsChanged reports when the server's tool list changes.
func (p *Provider) ToolsChanged() <-chan struct{} {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.ToolsChanged()
}
