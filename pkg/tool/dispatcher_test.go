package tool

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, tools ...Tool) *Dispatcher {
	t.Helper()
	r := NewRegistry()
	for _, tool := range tools {
		require.NoError(t, r.Register(tool))
	}
	return NewDispatcher(r, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDispatcherInvalidArguments(t *testing.T) {
	spy := &spyTool{name: "web_search"}
	d := newTestDispatcher(t, spy)
	for _, raw := range []string{"{not json", `{"query":`, "", "null", `"text"`} {
		require.Equal(t, "Invalid arguments provided.", d.Execute(context.Background(), "web_search", raw), raw)
	}
	require.Zero(t, spy.calls)
}

func TestDispatcherUnknownTool(t *testing.T) {
	d := newTestDispatcher(t, &spyTool{name: "calculator"}, &spyTool{name: "web_search"})
	require.Equal(t, "Unknown tool.", d.Execute(context.Background(), "calculator", `{}`))
	require.Equal(t, "Unknown tool.", d.Execute(context.Background(), "x_search", `{}`))
}

func TestDispatcherArgumentsCheckedBeforeName(t *testing.T) {
	d := newTestDispatcher(t)
	require.Equal(t, "Invalid arguments provided.", d.Execute(context.Background(), "nope", "{"))
}

func TestDispatcherExecutionError(t *testing.T) {
	spy := &spyTool{name: "code_execution", err: errors.New("interpreter missing")}
	d := newTestDispatcher(t, spy)
	got := d.Execute(context.Background(), "code_execution", `{"code":"print(1)"}`)
	require.Equal(t, "Tool execution error: interpreter missing", got)
	require.Equal(t, "print(1)", spy.params["code"])
}

func TestDispatcherRendersResults(t *testing.T) {
	text := &spyTool{name: "web_search", result: &ToolResult{Output: "1. Go"}}
	structured := &spyTool{name: "x_search", result: &ToolResult{Data: map[string]interface{}{"count": 2}}}
	d := newTestDispatcher(t, text, structured)

	require.Equal(t, "1. Go", d.Execute(context.Background(), "web_search", `{"query":"go"}`))
	require.JSONEq(t, `{"count":2}`, d.Execute(context.Background(), "x_search", `{"query":"go"}`))
}

func TestDispatcherSpecsOnlyKnownKinds(t *testing.T) {
	d := newTestDispatcher(t, &spyTool{name: "web_search"}, &spyTool{name: "calculator"})
	specs := d.Specs()
	require.Len(t, specs, 1)
	require.Equal(t, "web_search", specs[0].Name)
}
