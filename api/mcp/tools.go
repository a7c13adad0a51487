package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/lamdag/pkg/env"
	"github.com/papercomputeco/lamdag/pkg/reduce"
	"github.com/papercomputeco/lamdag/pkg/session"
	"github.com/papercomputeco/lamdag/pkg/term"
)

var (
	reduceToolName    = "reduce"
	reduceDescription = `Reduce a lambda calculus term. The source is a program of definitions ("name = term", one per line) followed by a term, written with \x. for abstraction. Alternatively name a stored term. Returns the status, the step count and the best-known form of the term.`

	peekToolName    = "peek"
	peekDescription = "Report the reduction state of a node under an environment without reducing anything. Use the node and env returned by reduce."

	statsToolName    = "stats"
	statsDescription = "Report node store, environment and memo table sizes along with run totals."
)

// ReduceInput represents the input arguments for the MCP reduce tool.
type ReduceInput struct {
	Source  string `json:"source,omitempty" jsonschema:"program text to reduce"`
	Postfix bool   `json:"postfix,omitempty" jsonschema:"read source in the postfix token format"`
	Name    string `json:"name,omitempty" jsonschema:"name of a stored term to reduce instead of source"`
	Budget  int    `json:"budget,omitempty" jsonschema:"maximum number of beta steps, 0 for the server default"`
	Mode    string `json:"mode,omitempty" jsonschema:"head or deep"`
}

// PeekInput represents the input arguments for the MCP peek tool.
type PeekInput struct {
	Node int32 `json:"node" jsonschema:"node id"`
	Env  int32 `json:"env,omitempty" jsonschema:"environment id, 0 for the empty environment"`
}

// StatsInput is empty; the stats tool takes no arguments.
type StatsInput struct{}

// ReduceOutput represents the structured output of a reduction.
type ReduceOutput struct {
	RunID    string `json:"run_id"`
	Status   string `json:"status"`
	Steps    int    `json:"steps"`
	Root     int32  `json:"root"`
	Node     int32  `json:"node"`
	Env      int32  `json:"env"`
	Rendered string `json:"rendered"`
	Error    string `json:"error,omitempty"`
}

// PeekOutput represents the structured output of a peek.
type PeekOutput struct {
	Node      int32  `json:"node"`
	Env       int32  `json:"env"`
	HeadState string `json:"head_state"`
	DeepState string `json:"deep_state"`
	Rendered  string `json:"rendered"`
}

func (s *Server) handleReduce(ctx context.Context, _ *mcp.CallToolRequest, input ReduceInput) (*mcp.CallToolResult, ReduceOutput, error) {
	if input.Source == "" && input.Name == "" {
		return errorResult("source or name is required"), ReduceOutput{}, nil
	}

	resp, err := s.config.Session.Reduce(ctx, session.Request{
		Source:  input.Source,
		Postfix: input.Postfix,
		Name:    input.Name,
		Budget:  input.Budget,
		Mode:    input.Mode,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("Reduction failed: %v", err)), ReduceOutput{}, nil
	}

	s.config.Logger.Debug("mcp reduce",
		"run_id", resp.RunID,
		"status", resp.Status,
		"steps", resp.Steps,
	)

	output := ReduceOutput{
		RunID:    resp.RunID,
		Status:   resp.Status.String(),
		Steps:    resp.Steps,
		Root:     int32(resp.Term.Root),
		Node:     int32(resp.Node),
		Env:      int32(resp.Env),
		Rendered: resp.Rendered,
		Error:    resp.Error,
	}
	return jsonResult(output), output, nil
}

func (s *Server) handlePeek(_ context.Context, _ *mcp.CallToolRequest, input PeekInput) (*mcp.CallToolResult, PeekOutput, error) {
	p, err := s.config.Session.Peek(term.NodeID(input.Node), env.ID(input.Env))
	if err != nil {
		return errorResult(fmt.Sprintf("Peek failed: %v", err)), PeekOutput{}, nil
	}

	output := PeekOutput{
		Node:      int32(p.Node),
		Env:       int32(p.Env),
		HeadState: p.Head.State.String(),
		DeepState: p.Deep.State.String(),
		Rendered:  p.Rendered,
	}
	return jsonResult(output), output, nil
}

func (s *Server) handleStats(_ context.Context, _ *mcp.CallToolRequest, _ StatsInput) (*mcp.CallToolResult, reduce.Stats, error) {
	stats := s.config.Session.Engine().Stats()
	return jsonResult(stats), stats, nil
}

func jsonResult(v any) *mcp.CallToolResult {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to serialize results: %v", err))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
	}
}
