package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"waterwise.ai/internal/agent/bridge"
)

type stubBridge struct {
	lastAct bridge.ActArgs
}

func (*stubBridge) Join(_ context.Context, key string, args bridge.JoinArgs) (bridge.JoinResult, error) {
	return bridge.JoinResult{PlayerID: key, Phase: "Registration"}, nil
}
func (*stubBridge) GetStatus(context.Context, string) (bridge.Status, error) {
	return bridge.Status{GameWSURL: "ws://example.invalid/v1/ws"}, nil
}
func (*stubBridge) GetEvents(context.Context, string, bridge.GetEventsOpts) (bridge.GetEventsResult, error) {
	return bridge.GetEventsResult{Events: []json.RawMessage{}}, nil
}
func (b *stubBridge) Act(_ context.Context, _ string, args bridge.ActArgs) (bridge.ActResult, error) {
	b.lastAct = args
	return bridge.ActResult{OK: true, Seq: 1}, nil
}
func (*stubBridge) EndTurn(context.Context, string) (bridge.ActResult, error) {
	return bridge.ActResult{OK: true, Seq: 2}, nil
}
func (*stubBridge) Disconnect(context.Context, string) error { return nil }

func rpcPost(t *testing.T, base string, payload any, headers http.Header) (int, rpcResponse) {
	t.Helper()
	b, _ := json.Marshal(payload)
	req, _ := http.NewRequest(http.MethodPost, base+"/mcp", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header[k] = v
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer res.Body.Close()
	var out rpcResponse
	if res.StatusCode == http.StatusOK {
		if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return res.StatusCode, out
}

func newTestServer(t *testing.T, b Bridge, secret string) *httptest.Server {
	t.Helper()
	s, err := NewServer(Config{Bridge: b, HMACSecret: secret})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func call(name string, args any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
	}
}

func TestMCP_InitializeAndListTools(t *testing.T) {
	ts := newTestServer(t, &stubBridge{}, "")

	_, initResp := rpcPost(t, ts.URL, map[string]any{"jsonrpc": "2.0", "id": 1, "method": "initialize"}, nil)
	if initResp.Error != nil {
		t.Fatalf("initialize error: %+v", initResp.Error)
	}
	rm, _ := initResp.Result.(map[string]any)
	if rm["protocolVersion"] == nil {
		t.Fatalf("missing protocolVersion in result")
	}

	_, lt := rpcPost(t, ts.URL, map[string]any{"jsonrpc": "2.0", "id": 2, "method": "tools/list"}, nil)
	if lt.Error != nil {
		t.Fatalf("tools/list error: %+v", lt.Error)
	}
	tools, _ := lt.Result.(map[string]any)["tools"].([]any)
	if len(tools) != 6 {
		t.Fatalf("expected 6 tools, got %d", len(tools))
	}
}

func TestMCP_CallToolUnknown(t *testing.T) {
	ts := newTestServer(t, &stubBridge{}, "")
	_, resp := rpcPost(t, ts.URL, call("nope", map[string]any{}), nil)
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected tool not found, got %+v", resp.Error)
	}
}

func TestMCP_ArgumentsValidated(t *testing.T) {
	b := &stubBridge{}
	ts := newTestServer(t, b, "")

	for _, args := range []map[string]any{
		{"op": "DIG"},
		{"op": "BUILD", "kind": "Castle"},
		{"op": "USE_WATER", "amount": -3},
		{"parcel_id": "bp1"},
		{"op": "BUILD", "colour": "red"},
	} {
		_, resp := rpcPost(t, ts.URL, call(toolAct, args), nil)
		if resp.Error == nil || resp.Error.Code != codeInvalidParams {
			t.Fatalf("args %v: expected invalid params, got %+v", args, resp.Error)
		}
	}

	_, resp := rpcPost(t, ts.URL, call(toolAct, map[string]any{"op": "BUILD", "kind": "Crops", "parcel_id": "bp1", "field_id": "f1"}), nil)
	if resp.Error != nil {
		t.Fatalf("valid act refused: %+v", resp.Error)
	}
	if b.lastAct.Kind != "Crops" || b.lastAct.FieldID != "f1" {
		t.Fatalf("act not forwarded: %+v", b.lastAct)
	}

	_, resp = rpcPost(t, ts.URL, call(toolJoin, map[string]any{"role": "Economy"}), nil)
	if resp.Error == nil {
		t.Fatalf("expected unplayable role to be refused")
	}
}

func TestMCP_HMAC(t *testing.T) {
	secret := "topsecret"
	ts := newTestServer(t, &stubBridge{}, secret)
	payload := map[string]any{"jsonrpc": "2.0", "id": 1, "method": "tools/list"}
	body, _ := json.Marshal(payload)

	status, _ := rpcPost(t, ts.URL, payload, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("unsigned request: expected 401, got %d", status)
	}

	h := Sign([]byte(secret), "agent_1", "n1", http.MethodPost, "/mcp", body, time.Now())
	status, resp := rpcPost(t, ts.URL, payload, h)
	if status != http.StatusOK || resp.Error != nil {
		t.Fatalf("signed request: status=%d err=%+v", status, resp.Error)
	}

	status, _ = rpcPost(t, ts.URL, payload, h)
	if status != http.StatusConflict {
		t.Fatalf("replayed request: expected 409, got %d", status)
	}
}
