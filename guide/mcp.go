package guide

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/relocate/kit"
)

// RegisterMCP registers the resolve, guide and playback tools on srv.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerResolveTool(srv)
	s.registerGuideTools(srv)
	s.registerPlaybackTools(srv)
}

var pageSchema = map[string]any{
	"type":        "object",
	"description": "Page snapshot to search",
	"properties": map[string]any{
		"url":  map[string]any{"type": "string"},
		"html": map[string]any{"type": "string"},
	},
	"required": []string{"html"},
}

// decodeInto returns a decode func unmarshalling the tool arguments into a
// fresh *T.
func decodeInto[T any]() func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	return func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		v := new(T)
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, v); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: v}, nil
	}
}

// --- resolve ---

func (s *Service) registerResolveTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "relocate_resolve",
		Description: "Find the element described by a recorded target descriptor in an HTML page snapshot.",
		InputSchema: kit.InputSchema(map[string]any{
			"target": map[string]any{"type": "object", "description": "Recorded target descriptor (fingerprint, preferredLocators, context)"},
			"page":   pageSchema,
		}, "target", "page"),
	}
	kit.RegisterMCPTool(srv, tool, s.ResolveEndpoint(), decodeInto[ResolveRequest]())
}

// --- guides ---

func (s *Service) registerGuideTools(srv *mcp.Server) {
	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "guide_list",
		Description: "List recorded guides, most recently updated first.",
		InputSchema: kit.InputSchema(map[string]any{}),
	}, s.Endpoint(TypeListGuides), decodeInto[ListGuides]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "guide_get",
		Description: "Get a guide with all its steps.",
		InputSchema: kit.InputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Guide ID (gd_...)"},
		}, "id"),
	}, s.chain("guide_get")(func(ctx context.Context, req any) (any, error) {
		return s.Store.Get(ctx, req.(*guideIDReq).ID)
	}), decodeInto[guideIDReq]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "guide_save",
		Description: "Create or replace a guide. Steps need a target descriptor or a css selector.",
		InputSchema: kit.InputSchema(map[string]any{
			"guide": map[string]any{"type": "object", "description": "Guide with title and steps"},
		}, "guide"),
	}, s.Endpoint(TypeSaveGuide), decodeInto[SaveGuide]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "guide_delete",
		Description: "Delete a guide and its steps.",
		InputSchema: kit.InputSchema(map[string]any{
			"id": map[string]any{"type": "string"},
		}, "id"),
	}, s.deleteEndpoint(), decodeInto[guideIDReq]())
}

// --- playback ---

func (s *Service) registerPlaybackTools(srv *mcp.Server) {
	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "playback_start",
		Description: "Start playing a guide. With live=true the guide runs in a browser page opened on url (or the guide's start URL).",
		InputSchema: kit.InputSchema(map[string]any{
			"guide_id": map[string]any{"type": "string"},
			"live":     map[string]any{"type": "boolean"},
			"url":      map[string]any{"type": "string"},
		}, "guide_id"),
	}, s.Endpoint(TypeStartPlayback), decodeInto[StartPlayback]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "playback_next",
		Description: "Locate the current step of a playback session. The session advances only when the element is found.",
		InputSchema: kit.InputSchema(map[string]any{
			"session_id": map[string]any{"type": "string"},
			"page":       pageSchema,
		}, "session_id"),
	}, s.Endpoint(TypeNextStep), decodeInto[NextStep]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "playback_stop",
		Description: "Stop a playback session.",
		InputSchema: kit.InputSchema(map[string]any{
			"session_id": map[string]any{"type": "string"},
		}, "session_id"),
	}, s.Endpoint(TypeStopPlayback), decodeInto[StopPlayback]())
}
