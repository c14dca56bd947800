package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"waterwise.ai/internal/protocol"
	"waterwise.ai/internal/sim/model"
)

const (
	toolJoin       = "waterwise.join"
	toolGetStatus  = "waterwise.get_status"
	toolGetEvents  = "waterwise.get_events"
	toolAct        = "waterwise.act"
	toolEndTurn    = "waterwise.end_turn"
	toolDisconnect = "waterwise.disconnect"
)

type tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`

	schema *jsonschema.Schema
}

func object(props map[string]any, required ...string) map[string]any {
	s := map[string]any{"type": "object", "properties": props, "additionalProperties": false}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func roles() []string {
	out := make([]string, 0, 4)
	for _, r := range model.Roles() {
		out = append(out, r.String())
	}
	return out
}

func kinds() []string {
	out := make([]string, 0, 3)
	for _, k := range model.Kinds() {
		out = append(out, k.String())
	}
	return out
}

func ops() []string {
	return []string{
		protocol.OpBuild, protocol.OpContinueBuild, protocol.OpUpgrade, protocol.OpSellAsset,
		protocol.OpRemoveAsset, protocol.OpBuyLandRights, protocol.OpSellRights,
		protocol.OpSellWaterRights, protocol.OpUseWater, protocol.OpUndoUseWater, protocol.OpSellWater,
	}
}

func toolList() []*tool {
	str := map[string]any{"type": "string"}
	num := map[string]any{"type": "integer", "minimum": 0}
	return []*tool{
		{
			Name:        toolJoin,
			Description: "Register as a player (or reconnect) and open the backing game connection.",
			InputSchema: object(map[string]any{
				"name": str,
				"role": map[string]any{"type": "string", "enum": roles()},
			}, "role"),
		},
		{
			Name:        toolGetStatus,
			Description: "Get the connection state and the player's HUD: money, water, rights, phase and round.",
			InputSchema: object(map[string]any{}),
		},
		{
			Name:        toolGetEvents,
			Description: "Read game events newer than since_seq, optionally waiting for one to arrive.",
			InputSchema: object(map[string]any{
				"since_seq": num,
				"limit":     map[string]any{"type": "integer", "minimum": 1, "maximum": 200},
				"wait_ms":   map[string]any{"type": "integer", "minimum": 0, "maximum": 30000},
			}),
		},
		{
			Name:        toolAct,
			Description: "Perform one game operation. The reply carries the server's error code when it is refused.",
			InputSchema: object(map[string]any{
				"op":        map[string]any{"type": "string", "enum": ops()},
				"parcel_id": str,
				"field_id":  str,
				"asset_id":  str,
				"buyer_id":  str,
				"kind":      map[string]any{"type": "string", "enum": kinds()},
				"rights":    map[string]any{"type": "string", "enum": []string{"development", "water", "combined"}},
				"level":     num,
				"amount":    num,
				"price":     num,
			}, "op"),
		},
		{
			Name:        toolEndTurn,
			Description: "End this player's turn in the current Build or Water phase.",
			InputSchema: object(map[string]any{}),
		},
		{
			Name:        toolDisconnect,
			Description: "Close the backing game connection until the next tool call.",
			InputSchema: object(map[string]any{}),
		},
	}
}

// compileTools compiles every input schema so arguments are checked before
// they reach the game.
func compileTools(tools []*tool) (map[string]*tool, error) {
	c := jsonschema.NewCompiler()
	out := make(map[string]*tool, len(tools))
	for _, t := range tools {
		b, err := json.Marshal(t.InputSchema)
		if err != nil {
			return nil, err
		}
		url := "mem://tools/" + t.Name + ".json"
		if err := c.AddResource(url, bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("%s: %w", t.Name, err)
		}
		if t.schema, err = c.Compile(url); err != nil {
			return nil, fmt.Errorf("%s: %w", t.Name, err)
		}
		out[t.Name] = t
	}
	return out, nil
}

func (t *tool) validate(args json.RawMessage) error {
	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage(`{}`)
	}
	var v any
	if err := json.Unmarshal(args, &v); err != nil {
		return err
	}
	return t.schema.Validate(v)
}
