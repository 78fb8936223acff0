// Package mcpserver exposes the mining pipeline as Model Context
// Protocol tools over stdio, so agents can mine, merge and check
// grammars without shelling out to the CLI.
package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/agentic-research/grist/internal/export"
	"github.com/agentic-research/grist/internal/lint"
	"github.com/agentic-research/grist/internal/mine"
	"github.com/agentic-research/grist/internal/synth"
)

// New builds the MCP server with the mine, merge and check tools.
func New() *server.MCPServer {
	s := server.NewMCPServer("grist", "0.1.0", server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("mine",
		mcp.WithDescription("Mine a context-free grammar from samples by tracing a parser over them"),
		mcp.WithString("target", mcp.Required(), mcp.Description("tracing target name, e.g. url, inikv, json, go")),
		mcp.WithString("samples", mcp.Required(), mcp.Description("samples to mine, one per line")),
		mcp.WithString("policy", mcp.Description("tracing policy: unscoped, scoped or provenance (default provenance)")),
		mcp.WithNumber("min_len", mcp.Description("minimum length for a traced value to become a nonterminal")),
	), handleMine)

	s.AddTool(mcp.NewTool("merge",
		mcp.WithDescription("Union two grammar JSON documents into one"),
		mcp.WithString("a", mcp.Required(), mcp.Description("first grammar JSON")),
		mcp.WithString("b", mcp.Required(), mcp.Description("second grammar JSON")),
	), handleMerge)

	s.AddTool(mcp.NewTool("check",
		mcp.WithDescription("Lint a grammar JSON document and optionally prove samples derivable from it"),
		mcp.WithString("grammar", mcp.Required(), mcp.Description("grammar JSON")),
		mcp.WithString("samples", mcp.Description("samples to prove derivable, one per line")),
	), handleCheck)

	return s
}

// ServeStdio blocks serving the MCP protocol on stdin/stdout.
func ServeStdio() error {
	return server.ServeStdio(New())
}

func handleMine(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	targetName, err := req.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("samples")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	samples := splitSamples(raw)
	if len(samples) == 0 {
		return mcp.NewToolResultError("no samples given"), nil
	}

	eng, err := mine.New(mine.Config{
		Target: targetName,
		Policy: req.GetString("policy", ""),
		MinLen: int(req.GetFloat("min_len", 0)),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	results := eng.MineAll(samples)
	mined, _, failed := mine.Summarize(results)
	if mined == 0 {
		return mcp.NewToolResultError(fmt.Sprintf(
			"no grammar mined from %d samples (%d target failures)", len(samples), failed)), nil
	}
	return mcp.NewToolResultText(string(export.JSONBytes(eng.Grammar()))), nil
}

func handleMerge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawA, err := req.RequireString("a")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawB, err := req.RequireString("b")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ga, err := export.Parse([]byte(rawA))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("grammar a: %v", err)), nil
	}
	gb, err := export.Parse([]byte(rawB))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("grammar b: %v", err)), nil
	}

	return mcp.NewToolResultText(string(export.JSONBytes(synth.Merge(ga, gb)))), nil
}

func handleCheck(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("grammar")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	g, err := export.Parse([]byte(raw))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	diags := lint.Check(g)
	if samples := splitSamples(req.GetString("samples", "")); len(samples) > 0 {
		diags = append(diags, lint.CheckSamples(g, samples)...)
	}
	if len(diags) == 0 {
		return mcp.NewToolResultText("ok: no diagnostics"), nil
	}

	var sb strings.Builder
	for _, d := range diags {
		sb.WriteString(d.String())
		sb.WriteByte('\n')
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func splitSamples(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimRight(line, "\r"); line != "" {
			out = append(out, line)
		}
	}
	return out
}
