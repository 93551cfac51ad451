package sink

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"toolsyncd/internal/domain"
)

type fakeDirectory struct {
	mu        sync.Mutex
	instances map[string][]domain.ServiceInstance
	err       error
}

func (d *fakeDirectory) ListServices(ctx context.Context, group string) ([]string, error) {
	return nil, nil
}

func (d *fakeDirectory) ListInstances(ctx context.Context, service, group string) ([]domain.ServiceInstance, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	return d.instances[service], nil
}

func (d *fakeDirectory) Subscribe(ctx context.Context, service, group string, onChange func(string)) error {
	return nil
}

type fakeCaller struct {
	mu       sync.Mutex
	lastTool string
	lastArgs string
	lastInst domain.ServiceInstance
	result   *mcp.CallToolResult
	err      error
}

func (c *fakeCaller) Call(ctx context.Context, instance domain.ServiceInstance, tool string, args json.RawMessage) (*mcp.CallToolResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastTool = tool
	c.lastArgs = string(args)
	c.lastInst = instance
	if c.err != nil {
		return nil, c.err
	}
	if c.result != nil {
		return c.result, nil
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: "ok"}}}, nil
}

func newTestSink(t *testing.T, dir *fakeDirectory, caller *fakeCaller) (*ServerSink, *mcp.Server) {
	t.Helper()
	server := mcp.NewServer(&mcp.Implementation{Name: "toolsyncd-test", Version: "0.0.1"}, &mcp.ServerOptions{HasTools: true})
	s, err := NewServerSink(ServerSinkOptions{
		Server:    server,
		Caller:    caller,
		Directory: dir,
		Group:     domain.DefaultGroup,
	})
	require.NoError(t, err)
	return s, server
}

func connectClient(t *testing.T, server *mcp.Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	ct, st := mcp.NewInMemoryTransports()

	serverSession, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	clientSession, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = clientSession.Close() })
	return clientSession
}

func listToolNames(t *testing.T, session *mcp.ClientSession) []string {
	t.Helper()
	res, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)
	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	return names
}

func searchToolDef() domain.ToolDefinition {
	return domain.ToolDefinition{
		Name:    "search",
		Service: "orders",
		Spec: json.RawMessage(`{
			"name": "search",
			"description": "search orders",
			"inputSchema": {
				"type": "object",
				"properties": {"query": {"type": "string"}},
				"required": ["query"]
			}
		}`),
	}
}

func TestUpsertRegistersTool(t *testing.T) {
	dir := &fakeDirectory{instances: map[string][]domain.ServiceInstance{}}
	sink, server := newTestSink(t, dir, &fakeCaller{})

	require.NoError(t, sink.Upsert(context.Background(), searchToolDef()))

	session := connectClient(t, server)
	require.Equal(t, []string{"search"}, listToolNames(t, session))
	require.Equal(t, map[string]string{"search": "orders"}, sink.Registered())
}

func TestUpsertIsARefresh(t *testing.T) {
	dir := &fakeDirectory{instances: map[string][]domain.ServiceInstance{}}
	sink, server := newTestSink(t, dir, &fakeCaller{})

	def := searchToolDef()
	require.NoError(t, sink.Upsert(context.Background(), def))
	require.NoError(t, sink.Upsert(context.Background(), def))

	session := connectClient(t, server)
	require.Equal(t, []string{"search"}, listToolNames(t, session))
}

func TestUpsertRejectsInvalidDefinitions(t *testing.T) {
	dir := &fakeDirectory{instances: map[string][]domain.ServiceInstance{}}
	sink, _ := newTestSink(t, dir, &fakeCaller{})

	err := sink.Upsert(context.Background(), domain.ToolDefinition{Service: "orders", Spec: json.RawMessage(`{}`)})
	require.Error(t, err)

	// missing input schema
	err = sink.Upsert(context.Background(), domain.ToolDefinition{
		Name:    "bare",
		Service: "orders",
		Spec:    json.RawMessage(`{"name":"bare"}`),
	})
	require.Error(t, err)

	// non-object input schema
	err = sink.Upsert(context.Background(), domain.ToolDefinition{
		Name:    "scalar",
		Service: "orders",
		Spec:    json.RawMessage(`{"name":"scalar","inputSchema":{"type":"string"}}`),
	})
	require.Error(t, err)
}

func TestRemoveUnregistersTool(t *testing.T) {
	dir := &fakeDirectory{instances: map[string][]domain.ServiceInstance{}}
	sink, server := newTestSink(t, dir, &fakeCaller{})

	require.NoError(t, sink.Upsert(context.Background(), searchToolDef()))
	require.NoError(t, sink.Remove(context.Background(), "search"))

	session := connectClient(t, server)
	require.Empty(t, listToolNames(t, session))
	require.Empty(t, sink.Registered())
}

func TestRemoveUnknownToolIsNoop(t *testing.T) {
	dir := &fakeDirectory{instances: map[string][]domain.ServiceInstance{}}
	sink, _ := newTestSink(t, dir, &fakeCaller{})

	require.NoError(t, sink.Remove(context.Background(), "never-registered"))
}

func TestCallProxiesToHealthyInstance(t *testing.T) {
	healthy := domain.ServiceInstance{Address: "10.0.0.5", Port: 9000, Healthy: true, Enabled: true}
	dir := &fakeDirectory{instances: map[string][]domain.ServiceInstance{
		"orders": {
			{Address: "10.0.0.4", Port: 9000, Healthy: false, Enabled: true},
			healthy,
		},
	}}
	caller := &fakeCaller{}
	sink, server := newTestSink(t, dir, caller)

	require.NoError(t, sink.Upsert(context.Background(), searchToolDef()))

	session := connectClient(t, server)
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "search",
		Arguments: map[string]any{"query": "widgets"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)

	caller.mu.Lock()
	defer caller.mu.Unlock()
	require.Equal(t, "search", caller.lastTool)
	require.Equal(t, healthy, caller.lastInst)
	require.JSONEq(t, `{"query":"widgets"}`, caller.lastArgs)
}

func TestCallRejectsArgumentsFailingSchema(t *testing.T) {
	dir := &fakeDirectory{instances: map[string][]domain.ServiceInstance{
		"orders": {{Address: "10.0.0.5", Port: 9000, Healthy: true, Enabled: true}},
	}}
	caller := &fakeCaller{}
	sink, server := newTestSink(t, dir, caller)

	require.NoError(t, sink.Upsert(context.Background(), searchToolDef()))

	session := connectClient(t, server)
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "search",
		Arguments: map[string]any{"query": 42},
	})
	if err == nil {
		require.True(t, res.IsError)
	}

	caller.mu.Lock()
	defer caller.mu.Unlock()
	require.Empty(t, caller.lastTool)
}

func TestCallFailsWithoutHealthyInstance(t *testing.T) {
	dir := &fakeDirectory{instances: map[string][]domain.ServiceInstance{
		"orders": {{Address: "10.0.0.4", Port: 9000, Healthy: false, Enabled: true}},
	}}
	caller := &fakeCaller{}
	sink, server := newTestSink(t, dir, caller)

	require.NoError(t, sink.Upsert(context.Background(), searchToolDef()))

	session := connectClient(t, server)
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "search",
		Arguments: map[string]any{"query": "widgets"},
	})
	if err == nil {
		require.True(t, res.IsError)
	}

	caller.mu.Lock()
	defer caller.mu.Unlock()
	require.Empty(t, caller.lastTool)
}
