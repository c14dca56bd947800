package bridge

import "encoding/json"

// Status is returned by waterwise.get_status.
type Status struct {
	Connected bool            `json:"connected"`
	PlayerID  string          `json:"player_id,omitempty"`
	Role      string          `json:"role,omitempty"`
	GameID    string          `json:"game_id,omitempty"`
	GameWSURL string          `json:"game_ws_url"`
	LastSeq   uint64          `json:"last_event_seq"`
	Hud       json.RawMessage `json:"hud,omitempty"`
	LastError string          `json:"last_error,omitempty"`
}

type JoinArgs struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type JoinResult struct {
	PlayerID    string `json:"player_id"`
	GameID      string `json:"game_id"`
	Phase       string `json:"phase"`
	Round       int    `json:"round"`
	TotalRounds int    `json:"total_rounds"`
}

type GetEventsOpts struct {
	SinceSeq uint64 `json:"since_seq"`
	Limit    int    `json:"limit"`
	// WaitMS blocks until an event newer than SinceSeq arrives.
	WaitMS int `json:"wait_ms"`
}

type GetEventsResult struct {
	Events  []json.RawMessage `json:"events"`
	LastSeq uint64            `json:"last_seq"`
	// Dropped counts events evicted from the buffer before they were read.
	Dropped uint64 `json:"dropped,omitempty"`
}

// ActArgs mirrors the ACT message without the envelope fields.
type ActArgs struct {
	Op       string `json:"op"`
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

// ActResult reports the server's answer to one command.
type ActResult struct {
	OK      bool   `json:"ok"`
	Seq     int    `json:"seq"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
