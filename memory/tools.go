package memory

import (
	"context"
	"strings"

	"github.com/sweetpotato0/miniagent/tool"
)

// Tools exposes the manager to a model as save_memory and query_memory.
func Tools(m *Manager) []*tool.Tool {
	save := tool.New("save_memory", "Save a fact about the user for later.",
		func(ctx context.Context, args map[string]any) (any, error) {
			text, _ := args["memory"].(string)
			rec, err := m.Save(ctx, text)
			if err != nil {
				return nil, err
			}
			return "Memory saved: " + rec.Memory, nil
		}, "memory")

	query := tool.New("query_memory", "Find saved memories containing the query text.",
		func(ctx context.Context, args map[string]any) (any, error) {
			q, _ := args["query"].(string)
			hits, err := m.Query(ctx, q)
			if err != nil {
				return nil, err
			}
			if len(hits) == 0 {
				return "No matching memories.", nil
			}
			return strings.Join(hits, "\n"), nil
		}, "query")

	return []*tool.Tool{save, query}
}
