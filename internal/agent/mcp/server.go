// Package mcp exposes the game to LLM agents as JSON-RPC tools. Each agent
// is one player; its calls are served by a bridge session.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"waterwise.ai/internal/agent/bridge"
)

type Bridge interface {
	Join(ctx context.Context, key string, args bridge.JoinArgs) (bridge.JoinResult, error)
	GetStatus(ctx context.Context, key string) (bridge.Status, error)
	GetEvents(ctx context.Context, key string, opts bridge.GetEventsOpts) (bridge.GetEventsResult, error)
	Act(ctx context.Context, key string, args bridge.ActArgs) (bridge.ActResult, error)
	EndTurn(ctx context.Context, key string) (bridge.ActResult, error)
	Disconnect(ctx context.Context, key string) error
}

type Config struct {
	Bridge     Bridge
	HMACSecret string
	Logger     zerolog.Logger
}

type Server struct {
	bridge     Bridge
	hmacSecret []byte
	replay     *replayGuard
	tools      []*tool
	byName     map[string]*tool
	log        zerolog.Logger
	now        func() time.Time
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Bridge == nil {
		return nil, fmt.Errorf("nil bridge")
	}
	tools := toolList()
	byName, err := compileTools(tools)
	if err != nil {
		return nil, fmt.Errorf("tool schemas: %w", err)
	}
	s := &Server{
		bridge: cfg.Bridge,
		tools:  tools,
		byName: byName,
		log:    cfg.Logger.With().Str("component", "mcp").Logger(),
		now:    time.Now,
	}
	if strings.TrimSpace(cfg.HMACSecret) != "" {
		s.hmacSecret = []byte(cfg.HMACSecret)
		s.replay = newReplayGuard(0)
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/mcp", s.handleMCP)
	return mux
}

func (s *Server) handleMCP(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(rw, "bad body", http.StatusBadRequest)
		return
	}
	_ = r.Body.Close()

	sessionKey := strings.TrimSpace(r.Header.Get(headerAgentID))
	if len(s.hmacSecret) > 0 {
		vr := verifyHMAC(r, body, s.hmacSecret, s.now())
		if vr.HTTPStatus != 0 {
			http.Error(rw, vr.Message, vr.HTTPStatus)
			return
		}
		if !s.replay.allow(vr.SessionKey, vr.Signature, s.now()) {
			http.Error(rw, "replayed request", http.StatusConflict)
			return
		}
		sessionKey = vr.SessionKey
	}
	if sessionKey == "" {
		sessionKey = "default"
	}

	req, err := parseRPCRequest(body)
	if err != nil {
		http.Error(rw, "bad jsonrpc request", http.StatusBadRequest)
		return
	}

	resp := s.dispatch(r.Context(), sessionKey, req)
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(resp)
}

func (s *Server) dispatch(ctx context.Context, sessionKey string, req rpcRequest) rpcResponse {
	switch req.Method {
	case "initialize":
		return rpcOK(req.ID, map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo":      map[string]any{"name": "waterwise", "version": "1.0"},
			"capabilities": map[string]any{
				"tools": map[string]any{"listChanged": false},
			},
		})

	case "tools/list", "list_tools":
		return rpcOK(req.ID, map[string]any{"tools": s.tools})

	case "tools/call", "call_tool":
		var p struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if len(req.Params) == 0 {
			return rpcErr(req.ID, codeInvalidParams, "missing params", nil)
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return rpcErr(req.ID, codeInvalidParams, "bad params", err.Error())
		}
		t := s.byName[p.Name]
		if t == nil {
			return rpcErr(req.ID, codeMethodNotFound, "tool not found", map[string]any{"name": p.Name})
		}
		if err := t.validate(p.Arguments); err != nil {
			return rpcErr(req.ID, codeInvalidParams, "invalid arguments", err.Error())
		}
		out, err := s.callTool(ctx, sessionKey, p.Name, p.Arguments)
		if err != nil {
			s.log.Debug().Err(err).Str("agent", sessionKey).Str("tool", p.Name).Msg("tool failed")
			return rpcErr(req.ID, codeToolFailed, err.Error(), nil)
		}
		return rpcOK(req.ID, out)

	default:
		return rpcErr(req.ID, codeMethodNotFound, "method not found", nil)
	}
}

func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("bad arguments: %w", err)
	}
	return nil
}

func (s *Server) callTool(ctx context.Context, key, name string, args json.RawMessage) (any, error) {
	switch name {
	case toolJoin:
		var a bridge.JoinArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return s.bridge.Join(ctx, key, a)

	case toolGetStatus:
		return s.bridge.GetStatus(ctx, key)

	case toolGetEvents:
		var o bridge.GetEventsOpts
		if err := decodeArgs(args, &o); err != nil {
			return nil, err
		}
		return s.bridge.GetEvents(ctx, key, o)

	case toolAct:
		var a bridge.ActArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return s.bridge.Act(ctx, key, a)

	case toolEndTurn:
		return s.bridge.EndTurn(ctx, key)

	case toolDisconnect:
		if err := s.bridge.Disconnect(ctx, key); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}
