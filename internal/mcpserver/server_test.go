package mcpserver

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/grist/api"
	"github.com/agentic-research/grist/internal/export"
)

func toolRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok, "expected text content")
	return tc.Text
}

func TestMineTool(t *testing.T) {
	req := toolRequest("mine", map[string]any{
		"target":  "url",
		"samples": "https://example.org/a\nhttp://example.org/b",
	})

	res, err := handleMine(context.Background(), req)
	require.NoError(t, err)
	require.False(t, res.IsError)

	g, err := export.Parse([]byte(resultText(t, res)))
	require.NoError(t, err)
	assert.Equal(t, []string{"<url>"}, g.Rules[api.StartSymbol])
	// Both samples reduce to the same skeleton, so merging dedups the
	// <url> rule down to one alternative.
	assert.Equal(t, []string{"<scheme>://<authority><path>"}, g.Rules["<url>"])
	assert.ElementsMatch(t, []string{"https", "http"}, g.Rules["<scheme>"])
	assert.ElementsMatch(t, []string{"/a", "/b"}, g.Rules["<path>"])
}

func TestMineToolUnknownTarget(t *testing.T) {
	req := toolRequest("mine", map[string]any{
		"target":  "cobol",
		"samples": "x",
	})

	res, err := handleMine(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.IsError, "unknown target must be a tool error")
}

func TestMineToolMissingArguments(t *testing.T) {
	res, err := handleMine(context.Background(), toolRequest("mine", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestMineToolAllSamplesFail(t *testing.T) {
	req := toolRequest("mine", map[string]any{
		"target":  "url",
		"samples": "not a url at all",
	})

	res, err := handleMine(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "no grammar mined")
}

func TestMergeTool(t *testing.T) {
	ga := api.NewGrammar()
	ga.Add(api.StartSymbol, "<x>")
	ga.Add("<x>", "1")
	gb := api.NewGrammar()
	gb.Add(api.StartSymbol, "<x>")
	gb.Add("<x>", "2")

	req := toolRequest("merge", map[string]any{
		"a": string(export.JSONBytes(ga)),
		"b": string(export.JSONBytes(gb)),
	})

	res, err := handleMerge(context.Background(), req)
	require.NoError(t, err)
	require.False(t, res.IsError)

	merged, err := export.Parse([]byte(resultText(t, res)))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2"}, merged.Rules["<x>"])
}

func TestMergeToolBadJSON(t *testing.T) {
	req := toolRequest("merge", map[string]any{
		"a": "{not json",
		"b": "{}",
	})

	res, err := handleMerge(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "grammar a")
}

func TestCheckToolClean(t *testing.T) {
	g := api.NewGrammar()
	g.Add(api.StartSymbol, "hello")

	req := toolRequest("check", map[string]any{
		"grammar": string(export.JSONBytes(g)),
	})

	res, err := handleCheck(context.Background(), req)
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Equal(t, "ok: no diagnostics", resultText(t, res))
}

func TestCheckToolReportsDiagnostics(t *testing.T) {
	g := api.NewGrammar()
	g.Add(api.StartSymbol, "<missing>")

	req := toolRequest("check", map[string]any{
		"grammar": string(export.JSONBytes(g)),
		"samples": "underivable sample",
	})

	res, err := handleCheck(context.Background(), req)
	require.NoError(t, err)
	require.False(t, res.IsError, "diagnostics are output, not a tool error")

	text := resultText(t, res)
	assert.Contains(t, text, "warning")
	assert.Contains(t, text, "error")
}

func TestNewRegistersTools(t *testing.T) {
	assert.NotNil(t, New())
}
