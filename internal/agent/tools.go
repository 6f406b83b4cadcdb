package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/josephgoksu/obbywatch/internal/semanticindex"
	"github.com/josephgoksu/obbywatch/internal/store"
)

// ToolResult is the outcome of one tool invocation, reported back to the
// model as a tool-role message and to progress listeners.
type ToolResult struct {
	Content string
	Success bool
	Error   string
}

// Tool is the orchestrator's tool registry contract. It is implemented in
// terms of Eino's tool.InvokableTool so registered tools can be bound
// directly onto the chat model's tool schema, following the teacher's own
// EinoReadFileTool/EinoGrepTool/etc. convention.
type Tool interface {
	tool.InvokableTool
	ID() string
}

// Registry holds the tools available to one orchestrator instance.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry builds a Registry from the given tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.tools[t.ID()] = t
		r.order = append(r.order, t.ID())
	}
	return r
}

// BaseTools returns the registered tools as eino BaseTool values, for
// compose.NewToolNode / model.WithTools binding.
func (r *Registry) BaseTools() []tool.BaseTool {
	out := make([]tool.BaseTool, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.tools[id])
	}
	return out
}

// Invoke dispatches argsJSON to the named tool, translating its
// InvokableRun contract into a ToolResult instead of letting a tool error
// abort the conversation — malformed calls are reported back to the model
// and the loop continues (spec's "malformed tool call" edge case).
func (r *Registry) Invoke(ctx context.Context, name, argsJSON string) ToolResult {
	t, ok := r.tools[name]
	if !ok {
		return ToolResult{Success: false, Error: fmt.Sprintf("unknown tool %q", name)}
	}
	content, err := t.InvokableRun(ctx, argsJSON)
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}
	}
	return ToolResult{Content: content, Success: true}
}

// notesSearchTool searches the SemanticIndex, giving the agent a way to
// recall prior summaries and topics without re-reading raw diffs.
type notesSearchTool struct {
	index *semanticindex.Index
}

// NewNotesSearchTool wraps idx as an agent tool named "notes_search".
func NewNotesSearchTool(idx *semanticindex.Index) Tool {
	return &notesSearchTool{index: idx}
}

func (t *notesSearchTool) ID() string { return "notes_search" }

func (t *notesSearchTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "notes_search",
		Desc: `Search prior summaries recorded in the semantic index.
Use this to recall what happened in earlier sessions before answering questions
about project history, past decisions, or recurring themes.`,
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     "string",
				Desc:     "Search terms",
				Required: true,
			},
			"type": {
				Type:     "string",
				Desc:     "Optional exact entry type filter (e.g. batch_summary)",
				Required: false,
			},
			"limit": {
				Type:     "integer",
				Desc:     "Maximum results to return (default 10)",
				Required: false,
			},
		}),
	}, nil
}

type notesSearchArgs struct {
	Query string `json:"query"`
	Type  string `json:"type,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

func (t *notesSearchTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var args notesSearchArgs
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		return "", fmt.Errorf("parse arguments: %w", err)
	}
	if args.Query == "" {
		return "", fmt.Errorf("query argument is required")
	}
	limit := args.Limit
	if limit <= 0 {
		limit = 10
	}

	results, err := t.index.Search(args.Query, limit, args.Type)
	if err != nil {
		return "", fmt.Errorf("search: %w", err)
	}
	if len(results) == 0 {
		return "no matching notes found", nil
	}

	var sb strings.Builder
	for _, r := range results {
		fmt.Fprintf(&sb, "- [%s] %s: %s\n", r.Entry.Date, r.Entry.Type, r.Entry.Summary)
	}
	return sb.String(), nil
}

var _ tool.InvokableTool = (*notesSearchTool)(nil)

// historyTool surfaces recent file changes straight from the Store, for
// questions like "what changed in the last hour".
type historyTool struct {
	store *store.Store
}

// NewHistoryTool wraps st as an agent tool named "recent_changes".
func NewHistoryTool(st *store.Store) Tool {
	return &historyTool{store: st}
}

func (t *historyTool) ID() string { return "recent_changes" }

func (t *historyTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "recent_changes",
		Desc: `List recently recorded file changes (creates/edits/deletes/moves).
Use this to answer questions about what has changed recently in the watched tree.`,
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"limit": {
				Type:     "integer",
				Desc:     "Maximum number of changes to return (default 20)",
				Required: false,
			},
		}),
	}, nil
}

type historyArgs struct {
	Limit int `json:"limit,omitempty"`
}

func (t *historyTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var args historyArgs
	if argumentsInJSON != "" {
		if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
			return "", fmt.Errorf("parse arguments: %w", err)
		}
	}
	limit := args.Limit
	if limit <= 0 {
		limit = 20
	}

	diffs, err := t.store.RecentDiffs(limit)
	if err != nil {
		return "", fmt.Errorf("recent diffs: %w", err)
	}
	if len(diffs) == 0 {
		return "no recent changes recorded", nil
	}

	var sb strings.Builder
	for _, d := range diffs {
		fmt.Fprintf(&sb, "- %s: %s (+%d/-%d) at %s\n", d.FilePath, d.ChangeType, d.LinesAdded, d.LinesRemoved, d.Timestamp.Format("2006-01-02 15:04:05"))
	}
	return sb.String(), nil
}

var _ tool.InvokableTool = (*historyTool)(nil)
