package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/goleak"

	"github.com/Microck/bansho/internal/domain/audit"
	"github.com/Microck/bansho/internal/domain/auth"
	"github.com/Microck/bansho/internal/domain/ratelimit"
	"github.com/Microck/bansho/internal/port/outbound"
)

type stubResolver struct {
	keys map[string]auth.ResolvedKey
}

func (s stubResolver) Resolve(_ context.Context, presented string) (*auth.ResolvedKey, error) {
	if resolved, ok := s.keys[presented]; ok {
		return &resolved, nil
	}
	return nil, nil
}

type allowLimiter struct{}

func (allowLimiter) CheckAPIKeyLimit(context.Context, string, int, int) (ratelimit.Result, error) {
	return ratelimit.Result{Allowed: true, Remaining: 100, ResetS: 30}, nil
}

func (allowLimiter) CheckToolLimit(context.Context, string, string, int, int) (ratelimit.Result, error) {
	return ratelimit.Result{Allowed: true, Remaining: 20, ResetS: 30}, nil
}

type stubAuditStore struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *stubAuditStore) LogEvent(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// fakeUpstream is a canned outbound.Upstream.
type fakeUpstream struct {
	mu         sync.Mutex
	connectErr error
	connected  bool
	closed     bool
	init       *mcp.InitializeResult
	tools      []*mcp.Tool
	listErr    error
}

var _ outbound.Upstream = (*fakeUpstream)(nil)

func (f *fakeUpstream) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeUpstream) InitializeResult() *mcp.InitializeResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return nil
	}
	return f.init
}

func (f *fakeUpstream) ListTools(context.Context, *mcp.ListToolsParams) (*mcp.ListToolsResult, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &mcp.ListToolsResult{Tools: f.tools}, nil
}

func (f *fakeUpstream) CallTool(_ context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: "up:" + params.Name}},
	}, nil
}

func (f *fakeUpstream) ListResources(context.Context, *mcp.ListResourcesParams) (*mcp.ListResourcesResult, error) {
	return &mcp.ListResourcesResult{}, nil
}

func (f *fakeUpstream) ReadResource(context.Context, *mcp.ReadResourceParams) (*mcp.ReadResourceResult, error) {
	return &mcp.ReadResourceResult{}, nil
}

func (f *fakeUpstream) ListPrompts(context.Context, *mcp.ListPromptsParams) (*mcp.ListPromptsResult, error) {
	return &mcp.ListPromptsResult{}, nil
}

func (f *fakeUpstream) GetPrompt(context.Context, *mcp.GetPromptParams) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{}, nil
}

func (f *fakeUpstream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func upstreamWithTools(names ...string) *fakeUpstream {
	tools := make([]*mcp.Tool, 0, len(names))
	for _, name := range names {
		tools = append(tools, &mcp.Tool{
			Name:        name,
			InputSchema: &jsonschema.Schema{Type: "object"},
		})
	}
	return &fakeUpstream{
		init: &mcp.InitializeResult{
			ServerInfo:   &mcp.Implementation{Name: "files-server", Version: "2.1"},
			Instructions: "guarded upstream",
		},
		tools: tools,
	}
}

func newGateway(t *testing.T, upstream *fakeUpstream) *Gateway {
	t.Helper()
	pol := testPolicy(t)
	return NewGateway(GatewayDeps{
		Credentials: stubResolver{keys: map[string]auth.ResolvedKey{
			"msl_user":  {ID: "key-user", Role: "user"},
			"msl_admin": {ID: "key-admin", Role: "admin"},
		}},
		Policy:   pol,
		Limiter:  allowLimiter{},
		AuditLog: &stubAuditStore{},
		Upstream: upstream,
		Logger:   slog.New(slog.NewTextHandler(os.Stderr, nil)),
	})
}

// connectClient serves the assembled gateway over in-memory transports
// and returns a connected client session.
func connectClient(t *testing.T, server *mcp.Server) *mcp.ClientSession {
	t.Helper()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(context.Background(), serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	clientSession, err := client.Connect(context.Background(), clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() {
		_ = clientSession.Close()
		_ = serverSession.Wait()
	})
	return clientSession
}

func withKey(apiKey string) mcp.Meta {
	return mcp.Meta{"headers": map[string]any{"x-api-key": apiKey}}
}

func TestGatewayAssembleMirrorsUpstream(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })
	upstream := upstreamWithTools("echo", "calculator", "secret_tool")
	gateway := newGateway(t, upstream)

	server, err := gateway.Assemble(context.Background())
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if len(gateway.Tools()) != 3 {
		t.Fatalf("Tools() = %d, want 3", len(gateway.Tools()))
	}

	session := connectClient(t, server)
	init := session.InitializeResult()
	if init == nil || init.ServerInfo == nil {
		t.Fatal("client initialize result missing server info")
	}
	if init.ServerInfo.Name != "files-server" || init.ServerInfo.Version != "2.1" {
		t.Errorf("mirrored identity = %+v", init.ServerInfo)
	}
	if init.Instructions != "guarded upstream" {
		t.Errorf("mirrored instructions = %q", init.Instructions)
	}
}

func TestGatewayListToolsFilteredByRole(t *testing.T) {
	upstream := upstreamWithTools("echo", "calculator", "secret_tool")
	gateway := newGateway(t, upstream)

	server, err := gateway.Assemble(context.Background())
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	session := connectClient(t, server)

	userList, err := session.ListTools(context.Background(), &mcp.ListToolsParams{Meta: withKey("msl_user")})
	if err != nil {
		t.Fatalf("ListTools(user) error = %v", err)
	}
	userNames := map[string]bool{}
	for _, tool := range userList.Tools {
		userNames[tool.Name] = true
	}
	if !userNames["echo"] || !userNames["calculator"] || userNames["secret_tool"] {
		t.Errorf("user tool listing = %v", userNames)
	}

	adminList, err := session.ListTools(context.Background(), &mcp.ListToolsParams{Meta: withKey("msl_admin")})
	if err != nil {
		t.Fatalf("ListTools(admin) error = %v", err)
	}
	if len(adminList.Tools) != 3 {
		t.Errorf("admin sees %d tools, want 3", len(adminList.Tools))
	}
}

func TestGatewayCallToolForwardsThroughPipeline(t *testing.T) {
	upstream := upstreamWithTools("echo")
	gateway := newGateway(t, upstream)

	server, err := gateway.Assemble(context.Background())
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	session := connectClient(t, server)

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "echo",
		Arguments: map[string]any{"text": "hi"},
		Meta:      withKey("msl_user"),
	})
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok || text.Text != "up:echo" {
		t.Errorf("call result = %+v", res.Content)
	}
}

func TestGatewayAssembleErrors(t *testing.T) {
	t.Run("connect failure", func(t *testing.T) {
		upstream := upstreamWithTools("echo")
		upstream.connectErr = errors.New("spawn failed")
		gateway := newGateway(t, upstream)

		if _, err := gateway.Assemble(context.Background()); err == nil {
			t.Fatal("Assemble() should fail when the upstream cannot connect")
		}
	})

	t.Run("missing initialize result", func(t *testing.T) {
		upstream := upstreamWithTools("echo")
		upstream.init = nil
		gateway := newGateway(t, upstream)

		_, err := gateway.Assemble(context.Background())
		if err == nil || err.Error() != "upstream initialize result missing" {
			t.Fatalf("Assemble() error = %v", err)
		}
	})

	t.Run("tool listing failure", func(t *testing.T) {
		upstream := upstreamWithTools("echo")
		upstream.listErr = errors.New("listing broke")
		gateway := newGateway(t, upstream)

		if _, err := gateway.Assemble(context.Background()); err == nil {
			t.Fatal("Assemble() should fail when tools cannot be fetched")
		}
	})
}

func TestGatewayRunRequiresAssemble(t *testing.T) {
	gateway := newGateway(t, upstreamWithTools("echo"))

	err := gateway.Run(context.Background(), &mcp.StdioTransport{})
	if err == nil || err.Error() != "gateway not assembled" {
		t.Fatalf("Run() error = %v", err)
	}
}
