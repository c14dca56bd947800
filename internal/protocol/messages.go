package protocol

import "encoding/json"

// HELLO (client -> server). A role registers the player when the game is
// still taking registrations.
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerID        string `json:"player_id"`
	Name            string `json:"name,omitempty"`
	Role            string `json:"role,omitempty"`
	MaxQueue        int    `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerID        string `json:"player_id"`
	GameID          string `json:"game_id"`
	Phase           string `json:"phase"`
	Round           int    `json:"round"`
	TotalRounds     int    `json:"total_rounds"`
}

// EVENT (server -> client). Event is the JSON encoding of an engine notification.
type EventMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	Event           json.RawMessage `json:"event"`
}

// END_TURN / STATUS (client -> server)
type CommandMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Seq             int    `json:"seq,omitempty"`
}

// ACT (client -> server): one game operation on behalf of the connected
// player. Which fields matter depends on Op.
type ActMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Seq             int    `json:"seq,omitempty"`
	Op              string `json:"op"`

	ParcelID string `json:"parcel_id,omitempty"`
	FieldID  string `json:"field_id,omitempty"`
	AssetID  string `json:"asset_id,omitempty"`
	BuyerID  string `json:"buyer_id,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Rights   string `json:"rights,omitempty"`
	Level    int    `json:"level,omitempty"`
	Amount   int    `json:"amount,omitempty"`
	Price    int    `json:"price,omitempty"`
}

// ACT operations.
const (
	OpBuild           = "BUILD"
	OpContinueBuild   = "CONTINUE_BUILD"
	OpUpgrade         = "UPGRADE"
	OpSellAsset       = "SELL_ASSET"
	OpRemoveAsset     = "REMOVE_ASSET"
	OpBuyLandRights   = "BUY_LAND_RIGHTS"
	OpSellRights      = "SELL_RIGHTS"
	OpSellWaterRights = "SELL_WATER_RIGHTS"
	OpUseWater        = "USE_WATER"
	OpUndoUseWater    = "UNDO_USE_WATER"
	OpSellWater       = "SELL_WATER"
)

// ACK (server -> client): an ACT was applied.
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Seq             int    `json:"seq,omitempty"`
	Op              string `json:"op"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Seq             int    `json:"seq,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

// HUD (server -> client), the reply to STATUS.
type HudMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	Seq             int             `json:"seq,omitempty"`
	Status          json.RawMessage `json:"status"`
}
