package kit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestChain_Order(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				order = append(order, name+"_before")
				resp, err := next(ctx, req)
				order = append(order, name+"_after")
				return resp, err
			}
		}
	}

	base := func(_ context.Context, _ any) (any, error) {
		order = append(order, "endpoint")
		return "ok", nil
	}

	chained := Chain(mw("a"), mw("b"), mw("c"))(base)
	resp, err := chained(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp != "ok" {
		t.Fatalf("response: got %v", resp)
	}

	expected := []string{"a_before", "b_before", "c_before", "endpoint", "c_after", "b_after", "a_after"}
	if len(order) != len(expected) {
		t.Fatalf("order length: got %d, want %d", len(order), len(expected))
	}
	for i, v := range expected {
		if order[i] != v {
			t.Fatalf("order[%d]: got %q, want %q", i, order[i], v)
		}
	}
}

func TestChain_ErrorPropagation(t *testing.T) {
	errFail := errors.New("fail")
	base := func(_ context.Context, _ any) (any, error) {
		return nil, errFail
	}

	noop := func(next Endpoint) Endpoint { return next }
	chained := Chain(noop)(base)

	_, err := chained(context.Background(), nil)
	if !errors.Is(err, errFail) {
		t.Fatalf("error: got %v, want %v", err, errFail)
	}
}

func TestContext_UserID(t *testing.T) {
	ctx := context.Background()
	if v := GetUserID(ctx); v != "" {
		t.Fatalf("empty context: got %q", v)
	}

	ctx = WithUserID(ctx, "usr_123")
	if v := GetUserID(ctx); v != "usr_123" {
		t.Fatalf("after set: got %q", v)
	}
}

func TestContext_Handle(t *testing.T) {
	ctx := WithHandle(context.Background(), "alice")
	if v := GetHandle(ctx); v != "alice" {
		t.Fatalf("handle: got %q", v)
	}
}

func TestContext_Transport_Default(t *testing.T) {
	ctx := context.Background()
	if v := GetTransport(ctx); v != "http" {
		t.Fatalf("default transport: got %q, want 'http'", v)
	}
}

func TestContext_Transport_Set(t *testing.T) {
	ctx := WithTransport(context.Background(), "mcp")
	if v := GetTransport(ctx); v != "mcp" {
		t.Fatalf("transport: got %q", v)
	}
}

func TestContext_RequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req_abc")
	if v := GetRequestID(ctx); v != "req_abc" {
		t.Fatalf("request_id: got %q", v)
	}
}

func TestContext_EmptyDefaults(t *testing.T) {
	ctx := context.Background()
	if v := GetHandle(ctx); v != "" {
		t.Fatalf("handle default: got %q", v)
	}
	if v := GetRequestID(ctx); v != "" {
		t.Fatalf("request_id default: got %q", v)
	}
}

func TestLogging_RecordsFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ep := Logging(logger, "resolve")(func(context.Context, any) (any, error) {
		return nil, errors.New("boom")
	})
	ctx := WithRequestID(context.Background(), "req_1")
	if _, err := ep(ctx, nil); err == nil {
		t.Fatal("want error")
	}
	out := buf.String()
	for _, want := range []string{`"op":"resolve"`, `"request_id":"req_1"`, `"error":"boom"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %s: %s", want, out)
		}
	}
}

type echoReq struct {
	Word string `json:"word"`
}

func mcpSession(t *testing.T) *mcp.ClientSession {
	t.Helper()
	impl := &mcp.Implementation{Name: "kit-test", Version: "0.1.0"}
	srv := mcp.NewServer(impl, nil)
	RegisterMCPTool(srv, &mcp.Tool{
		Name:        "echo",
		Description: "Echo a word back.",
		InputSchema: InputSchema(map[string]any{
			"word": map[string]any{"type": "string"},
		}, "word"),
	}, func(ctx context.Context, req any) (any, error) {
		r := req.(*echoReq)
		if r.Word == "" {
			return nil, errors.New("empty word")
		}
		return map[string]string{"word": r.Word, "transport": GetTransport(ctx)}, nil
	}, func(req *mcp.CallToolRequest) (*MCPDecodeResult, error) {
		var r echoReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &MCPDecodeResult{Request: &r}, nil
	})

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()
	session, err := mcp.NewClient(impl, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func TestRegisterMCPTool(t *testing.T) {
	session := mcpSession(t)
	ctx := context.Background()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "echo", Arguments: map[string]any{"word": "hi"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %+v", res.Content)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(res.Content[0].(*mcp.TextContent).Text), &got); err != nil {
		t.Fatal(err)
	}
	if got["word"] != "hi" || got["transport"] != "mcp" {
		t.Errorf("got %v", got)
	}

	res, err = session.CallTool(ctx, &mcp.CallToolParams{Name: "echo", Arguments: map[string]any{"word": ""}})
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("want tool error for empty word")
	}
	if text := res.Content[0].(*mcp.TextContent).Text; text != "empty word" {
		t.Errorf("error text: %q", text)
	}
}
