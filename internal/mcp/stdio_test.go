// ABOUTME: Tests for the stdio binding.
// ABOUTME: Drives ServeStdio with in-memory readers and writers.

package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/weather-travel/internal/tools"
)

func readResponses(t *testing.T, out *bytes.Buffer) []map[string]any {
	t.Helper()
	var resps []map[string]any
	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m), scanner.Text())
		resps = append(resps, m)
	}
	return resps
}

func TestServeStdio_Session(t *testing.T) {
	inv := &fakeInvoker{result: map[string]string{"advice": "pack an umbrella"}}
	h := newTestHandler(inv)

	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18"}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"get_forecast","arguments":{"city":"Tokyo"}}}`,
		`not json`,
	}, "\n") + "\n"

	var out bytes.Buffer
	err := h.ServeStdio(context.Background(), strings.NewReader(in), &out)
	require.NoError(t, err)

	resps := readResponses(t, &out)
	require.Len(t, resps, 4, "notification and blank line produce no output")

	assert.Equal(t, 1.0, resps[0]["id"])
	assert.Equal(t, "2025-06-18", resps[0]["result"].(map[string]any)["protocolVersion"])
	assert.Equal(t, 2.0, resps[1]["id"])
	assert.Equal(t, 3.0, resps[2]["id"])
	assert.Contains(t, resps[2]["result"].(map[string]any)["content"].([]any)[0].(map[string]any)["text"], "umbrella")
	assert.Nil(t, resps[3]["id"])
	assert.Equal(t, float64(JSONRPCParseError), resps[3]["error"].(map[string]any)["code"])

	assert.Equal(t, int64(1), inv.calls.Load())
	assert.Equal(t, tools.TransportStdio, inv.lastTrans.Load())
}

func TestServeStdio_StopsOnCancel(t *testing.T) {
	h := newTestHandler(&fakeInvoker{})
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- h.ServeStdio(ctx, pr, io.Discard)
	}()

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("ServeStdio did not return after cancel")
	}
}
