package indexdb

import (
	"context"
	"database/sql"
)

type HistoryRow struct {
	GameID          string `json:"game_id"`
	PlayerID        string `json:"player_id"`
	Round           int    `json:"round"`
	Role            string `json:"role"`
	StartMoney      int    `json:"start_money"`
	EndMoney        int    `json:"end_money"`
	ProductRevenue  int    `json:"product_revenue"`
	BuildRevenue    int    `json:"build_revenue"`
	BuildCost       int    `json:"build_cost"`
	WaterReceived   int    `json:"water_received"`
	MaintenanceCost int    `json:"maintenance_cost"`
	CostOfLiving    int    `json:"cost_of_living"`
	Profit          int    `json:"profit"`
	Money           int    `json:"money"`
}

type RoundRow struct {
	Round    int    `json:"round"`
	Date     string `json:"date"`
	Rainfall int    `json:"rainfall"`
	Next     int    `json:"next"`
}

type RejectionRow struct {
	Seq       int64  `json:"seq"`
	PlayerID  string `json:"player_id"`
	Operation string `json:"operation"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// Reader runs read-only queries against an index file. It can be opened
// while a server is writing to the same file.
type Reader struct{ db *sql.DB }

func OpenReader(path string) (*Reader, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

func (r *Reader) Meta(ctx context.Context, key string) (string, error) {
	var v string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key=?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}

// CurrentGame is the id of the last game that started.
func (r *Reader) CurrentGame(ctx context.Context) (string, error) {
	return r.Meta(ctx, "current_game_id")
}

// History lists recorded ledgers for a game, optionally for one player,
// ordered by round then player.
func (r *Reader) History(ctx context.Context, gameID, playerID string) ([]HistoryRow, error) {
	q := `SELECT game_id,player_id,round,role,start_money,end_money,product_revenue,build_revenue,build_cost,water_received,maintenance_cost,cost_of_living,profit,money
		FROM history WHERE game_id=?`
	args := []any{gameID}
	if playerID != "" {
		q += ` AND player_id=?`
		args = append(args, playerID)
	}
	q += ` ORDER BY round, player_id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []HistoryRow
	for rows.Next() {
		var h HistoryRow
		if err := rows.Scan(&h.GameID, &h.PlayerID, &h.Round, &h.Role, &h.StartMoney, &h.EndMoney,
			&h.ProductRevenue, &h.BuildRevenue, &h.BuildCost, &h.WaterReceived,
			&h.MaintenanceCost, &h.CostOfLiving, &h.Profit, &h.Money); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *Reader) Rounds(ctx context.Context, gameID string) ([]RoundRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT round,date,rainfall,next_round FROM rounds WHERE game_id=? ORDER BY round`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RoundRow
	for rows.Next() {
		var rr RoundRow
		if err := rows.Scan(&rr.Round, &rr.Date, &rr.Rainfall, &rr.Next); err != nil {
			return nil, err
		}
		out = append(out, rr)
	}
	return out, rows.Err()
}

// EventCounts is the number of recorded events of each type in a game.
func (r *Reader) EventCounts(ctx context.Context, gameID string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM events WHERE game_id=? GROUP BY type`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var (
			typ string
			n   int
		)
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		out[typ] = n
	}
	return out, rows.Err()
}

func (r *Reader) Rejections(ctx context.Context, playerID string, limit int) ([]RejectionRow, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT seq,COALESCE(player_id,''),operation,code,message FROM rejections`
	var args []any
	if playerID != "" {
		q += ` WHERE player_id=?`
		args = append(args, playerID)
	}
	q += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RejectionRow
	for rows.Next() {
		var rr RejectionRow
		if err := rows.Scan(&rr.Seq, &rr.PlayerID, &rr.Operation, &rr.Code, &rr.Message); err != nil {
			return nil, err
		}
		out = append(out, rr)
	}
	return out, rows.Err()
}

// ConfigDigest returns the stored digest of a configuration document.
func (r *Reader) ConfigDigest(ctx context.Context, name string) (string, error) {
	var d string
	err := r.db.QueryRowContext(ctx, `SELECT digest FROM configs WHERE name=?`, name).Scan(&d)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return d, err
}
