package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"toolsyncd/internal/domain"
)

// ToolCaller executes one tool call against a service instance.
type ToolCaller interface {
	Call(ctx context.Context, instance domain.ServiceInstance, tool string, args json.RawMessage) (*mcp.CallToolResult, error)
}

// HTTPToolCaller posts tool arguments to the instance's tool endpoint.
// A response that decodes as a CallToolResult passes through verbatim;
// anything else is wrapped as text content.
type HTTPToolCaller struct {
	client *http.Client
}

func NewHTTPToolCaller(client *http.Client) *HTTPToolCaller {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPToolCaller{client: client}
}

func (c *HTTPToolCaller) Call(ctx context.Context, instance domain.ServiceInstance, tool string, args json.RawMessage) (*mcp.CallToolResult, error) {
	const op = "sink.HTTPToolCaller.Call"
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	endpoint := fmt.Sprintf("http://%s:%d/mcp/tools/%s", instance.Address, instance.Port, tool)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(args))
	if err != nil {
		return nil, domain.E(domain.CodeInternal, op, "", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.E(domain.CodeUnavailable, op, "call "+tool, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.E(domain.CodeUnavailable, op, "read response for "+tool, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, domain.E(domain.CodeUnavailable, op, fmt.Sprintf("%s returned status %d", tool, resp.StatusCode), nil)
	}

	var result mcp.CallToolResult
	if err := json.Unmarshal(body, &result); err == nil && len(result.Content) > 0 {
		return &result, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
	}, nil
}
