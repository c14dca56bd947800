package events

import (
	"time"

	"waterwise.ai/internal/sim/model"
)

type PhasePayload struct {
	Phase     string             `json:"phase"`
	Previous  string             `json:"previous,omitempty"`
	Round     int                `json:"round"`
	Date      time.Time          `json:"date"`
	Standings []model.PlayerView `json:"standings,omitempty"`
}

type RejectionPayload struct {
	Operation string `json:"operation"`
	PlayerID  string `json:"player_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

type HistoryPayload struct {
	PlayerID string       `json:"player_id"`
	Role     string       `json:"role"`
	Round    int          `json:"round"`
	Ledger   model.Ledger `json:"ledger"`
	Profit   int          `json:"profit"`
	Money    int          `json:"money"`
}

// RoundPayload closes a round. Next is zero when the game is over.
type RoundPayload struct {
	Round    int       `json:"round"`
	Date     time.Time `json:"date"`
	Rainfall int       `json:"rainfall"`
	Next     int       `json:"next"`
	Total    int       `json:"total"`
}

type ForecastPayload struct {
	Round   int                    `json:"round"`
	Water   model.Range            `json:"water"`
	Economy map[string]model.Range `json:"economy"`
}

type ResetPayload struct {
	PreviousGameID string `json:"previous_game_id"`
}
