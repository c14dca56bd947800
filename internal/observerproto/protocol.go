package observerproto

import "encoding/json"

// Version is the observer protocol version (separate from the player WS protocol).
const Version = "0.1"

// Client -> Server. First message on the observer WS connection, and can be
// re-sent to change the filter.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Event types to receive; empty means all.
	Types []string `json:"types,omitempty"`
	// Only events concerning this player, plus game-wide ones.
	FocusPlayerID string `json:"focus_player_id,omitempty"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string          `json:"protocol_version"`
	GameID          string          `json:"game_id"`
	Phase           string          `json:"phase"`
	Round           int             `json:"round"`
	Overview        json.RawMessage `json:"overview"`
}

// Server -> Client. One per engine notification.
type EventMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	Event           json.RawMessage `json:"event"`
}

// Server -> Client. Sent when the observer fell behind and lost events.
type LagMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Dropped         uint64 `json:"dropped"`
}
