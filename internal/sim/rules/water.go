package rules

import (
	"math/rand"
	"sort"
	"time"

	"waterwise.ai/internal/protocol"
	"waterwise.ai/internal/sim/model"
)

// SeededRainfall draws a uniform amount in [Min, Max]. The same seed and round
// always give the same amount.
type SeededRainfall struct {
	Seed int64
	Min  int
	Max  int
}

func (r SeededRainfall) Rainfall(round int, _ time.Time) int {
	if r.Max <= r.Min {
		return r.Min
	}
	rng := rand.New(rand.NewSource(r.Seed*1_000_003 + int64(round)))
	return r.Min + rng.Intn(r.Max-r.Min+1)
}

// EntitlementDistributor splits rainfall in proportion to each player's water
// entitlement. Leftover units go one at a time by descending entitlement, then
// by id.
type EntitlementDistributor struct{}

func (EntitlementDistributor) Distribute(total int, players []*model.Player, parcels []*model.Parcel) Distribution {
	weights := make(map[string]int, len(players))
	for _, p := range players {
		if p.WaterEntitlement > 0 {
			weights[p.ID] = p.WaterEntitlement
		}
	}
	d := Distribution{Players: split(total, playerIDs(players), weights), Parcels: map[string]int{}}
	shareParcels(&d, players, parcels)
	return d
}

// EqualDistributor gives every player the same share.
type EqualDistributor struct{}

func (EqualDistributor) Distribute(total int, players []*model.Player, parcels []*model.Parcel) Distribution {
	weights := make(map[string]int, len(players))
	for _, p := range players {
		weights[p.ID] = 1
	}
	d := Distribution{Players: split(total, playerIDs(players), weights), Parcels: map[string]int{}}
	shareParcels(&d, players, parcels)
	return d
}

func playerIDs(players []*model.Player) []string {
	ids := make([]string, 0, len(players))
	for _, p := range players {
		ids = append(ids, p.ID)
	}
	return ids
}

// split divides total among keys in proportion to weights. Keys without a
// weight get nothing.
func split(total int, keys []string, weights map[string]int) map[string]int {
	out := make(map[string]int, len(keys))
	for _, k := range keys {
		out[k] = 0
	}
	sum := 0
	for _, w := range weights {
		sum += w
	}
	if sum == 0 || total <= 0 {
		return out
	}
	ids := make([]string, 0, len(weights))
	given := 0
	for id, w := range weights {
		out[id] = total * w / sum
		given += out[id]
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if weights[ids[i]] != weights[ids[j]] {
			return weights[ids[i]] > weights[ids[j]]
		}
		return ids[i] < ids[j]
	})
	for i := 0; given < total; i = (i + 1) % len(ids) {
		out[ids[i]]++
		given++
	}
	return out
}

// shareParcels attributes each player's water to the parcels whose water
// rights they hold, in proportion to the parcels' initial rights.
func shareParcels(d *Distribution, players []*model.Player, parcels []*model.Parcel) {
	byOwner := map[string][]*model.Parcel{}
	for _, bp := range parcels {
		d.Parcels[bp.ID] = 0
		if o := bp.WaterRightsOwner(); o != nil {
			byOwner[o.ID] = append(byOwner[o.ID], bp)
		}
	}
	for _, p := range players {
		owned := byOwner[p.ID]
		if len(owned) == 0 {
			continue
		}
		ids := make([]string, 0, len(owned))
		weights := map[string]int{}
		for _, bp := range owned {
			ids = append(ids, bp.ID)
			weights[bp.ID] = bp.InitialWaterRights
		}
		for id, n := range split(d.Players[p.ID], ids, weights) {
			d.Parcels[id] = n
		}
	}
}

// LedgerAllocator moves water between a player's hand and an asset. Amount
// validation is left to the asset.
type LedgerAllocator struct{}

func (LedgerAllocator) Allocate(p *model.Player, a *model.Asset, amount int) error {
	delta := amount - a.WaterAllocated()
	if delta > p.Water {
		return model.Domainf(protocol.ErrNoResource, "%s has %d water but needs %d more", p.Name, p.Water, delta)
	}
	if err := a.SetWaterAllocated(amount); err != nil {
		return err
	}
	p.Water -= delta
	return nil
}

func (LedgerAllocator) Undo(p *model.Player, a *model.Asset) {
	p.Water += a.WaterAllocated()
	_ = a.SetWaterAllocated(0)
}

// RainfallForecaster reports the coming rainfall widened by Spread on either
// side.
type RainfallForecaster struct {
	Source RainfallGenerator
	Spread float64
}

func (f RainfallForecaster) Forecast(round int) model.Range {
	v := float64(f.Source.Rainfall(round, time.Time{}))
	lo := v * (1 - f.Spread)
	if lo < 0 {
		lo = 0
	}
	return model.Range{Min: lo, Max: v * (1 + f.Spread)}
}
