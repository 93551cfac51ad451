package sink

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"toolsyncd/internal/domain"
)

// ServerSink exposes synchronized tools on an mcp.Server. Upsert of a
// present tool re-registers it as a refresh; Remove of an absent tool
// is a no-op. Calls are proxied to a healthy instance of the owning
// service.
type ServerSink struct {
	server    *mcp.Server
	caller    ToolCaller
	directory domain.ServiceDirectory
	group     string
	logger    *zap.Logger

	mu         sync.Mutex
	registered map[string]string // tool name -> owning service
}

// ServerSinkOptions configures a ServerSink.
type ServerSinkOptions struct {
	Server    *mcp.Server
	Caller    ToolCaller
	Directory domain.ServiceDirectory
	Group     string
	Logger    *zap.Logger
}

var _ domain.ToolSink = (*ServerSink)(nil)

func NewServerSink(opts ServerSinkOptions) (*ServerSink, error) {
	const op = "sink.NewServerSink"
	if opts.Server == nil {
		return nil, domain.E(domain.CodeInvalidArgument, op, "mcp server is required", nil)
	}
	if opts.Directory == nil {
		return nil, domain.E(domain.CodeInvalidArgument, op, "service directory is required", nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	caller := opts.Caller
	if caller == nil {
		caller = NewHTTPToolCaller(nil)
	}
	return &ServerSink{
		server:     opts.Server,
		caller:     caller,
		directory:  opts.Directory,
		group:      opts.Group,
		logger:     logger.Named("sink"),
		registered: make(map[string]string),
	}, nil
}

// Upsert decodes the definition's opaque payload as an MCP tool and
// registers it with a proxying handler.
func (s *ServerSink) Upsert(ctx context.Context, def domain.ToolDefinition) error {
	const op = "sink.Upsert"
	if def.Name == "" {
		return domain.E(domain.CodeInvalidArgument, op, "tool has no name", nil)
	}

	var tool mcp.Tool
	if err := json.Unmarshal(def.Spec, &tool); err != nil {
		return domain.E(domain.CodeInvalidArgument, op, "decode tool "+def.Name, err)
	}
	tool.Name = def.Name
	if !isObjectSchema(tool.InputSchema) {
		return domain.E(domain.CodeInvalidArgument, op, "tool "+def.Name+" has no object input schema", nil)
	}
	if tool.OutputSchema != nil && !isObjectSchema(tool.OutputSchema) {
		return domain.E(domain.CodeInvalidArgument, op, "tool "+def.Name+" has a non-object output schema", nil)
	}

	resolved, err := resolveSchema(tool.InputSchema)
	if err != nil {
		return domain.E(domain.CodeInvalidArgument, op, "resolve schema for "+def.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.server.AddTool(&tool, s.handler(def.Service, def.Name, resolved))
	s.registered[def.Name] = def.Service
	return nil
}

// Remove unregisters a tool. Unknown names are ignored.
func (s *ServerSink) Remove(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.registered[name]; !ok {
		return nil
	}
	s.server.RemoveTools(name)
	delete(s.registered, name)
	return nil
}

// Registered returns the owning service per registered tool name.
func (s *ServerSink) Registered() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.registered))
	for name, service := range s.registered {
		out[name] = service
	}
	return out
}

func (s *ServerSink) handler(service, name string, schema *jsonschema.Resolved) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := json.RawMessage(req.Params.Arguments)
		if schema != nil && len(args) > 0 {
			var decoded any
			if err := json.Unmarshal(args, &decoded); err != nil {
				return nil, domain.E(domain.CodeInvalidArgument, "sink.call", "decode arguments for "+name, err)
			}
			if err := schema.Validate(decoded); err != nil {
				return nil, domain.E(domain.CodeInvalidArgument, "sink.call", "arguments for "+name, err)
			}
		}

		instance, err := s.pickInstance(ctx, service)
		if err != nil {
			return nil, err
		}
		return s.caller.Call(ctx, instance, name, args)
	}
}

// pickInstance resolves a healthy, enabled instance of the owning
// service at call time; eligibility when the tool was registered says
// nothing about now.
func (s *ServerSink) pickInstance(ctx context.Context, service string) (domain.ServiceInstance, error) {
	const op = "sink.pickInstance"
	instances, err := s.directory.ListInstances(ctx, service, s.group)
	if err != nil {
		return domain.ServiceInstance{}, domain.Wrap(domain.CodeUnavailable, op, err)
	}
	for _, inst := range instances {
		if inst.Healthy && inst.Enabled {
			return inst, nil
		}
	}
	return domain.ServiceInstance{}, domain.E(domain.CodeUnavailable, op, "no healthy instance for "+service, nil)
}

func resolveSchema(raw any) (*jsonschema.Resolved, error) {
	if raw == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(encoded, &schema); err != nil {
		return nil, err
	}
	return schema.Resolve(nil)
}

func isObjectSchema(schema any) bool {
	if schema == nil {
		return false
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return false
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return false
	}
	if typ, ok := obj["type"]; ok {
		if val, ok := typ.(string); ok {
			return strings.EqualFold(val, "object")
		}
	}
	return false
}
