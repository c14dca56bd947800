package ws

import (
	"fmt"

	"waterwise.ai/internal/protocol"
	"waterwise.ai/internal/sim/lifecycle"
	"waterwise.ai/internal/sim/model"
)

// errBadAct is reported as E_PROTO_BAD_REQUEST.
type errBadAct struct{ msg string }

func (e errBadAct) Error() string { return e.msg }

func badAct(format string, args ...any) error { return errBadAct{fmt.Sprintf(format, args...)} }

// act runs one ACT as playerID. Sales name playerID as the seller.
func (s *Server) act(playerID string, a protocol.ActMsg) error {
	g := s.game
	switch a.Op {
	case protocol.OpBuild:
		kind, err := model.ParseKind(a.Kind)
		if err != nil {
			return badAct("%v", err)
		}
		level := a.Level
		if level <= 0 {
			level = 1
		}
		return g.BuildGameAsset(playerID, a.ParcelID, a.FieldID, kind, level)
	case protocol.OpContinueBuild:
		return g.ContinueBuildingGameAsset(playerID, a.AssetID)
	case protocol.OpUpgrade:
		return g.UpgradeGameAsset(playerID, a.AssetID, a.Level)
	case protocol.OpSellAsset:
		return g.SellGameAssetToEconomy(playerID, a.AssetID)
	case protocol.OpRemoveAsset:
		return g.RemoveGameAsset(playerID, a.AssetID)
	case protocol.OpBuyLandRights:
		return g.BuyLandRights(playerID, a.ParcelID)
	case protocol.OpSellRights:
		kind, err := lifecycle.ParseRightsKind(a.Rights)
		if err != nil {
			return badAct("%v", err)
		}
		return g.SellRights(playerID, a.BuyerID, a.ParcelID, kind, a.Price)
	case protocol.OpSellWaterRights:
		return g.SellWaterRights(playerID, a.BuyerID, a.Amount, a.Price)
	case protocol.OpUseWater:
		return g.UseWater(playerID, a.AssetID, a.Amount)
	case protocol.OpUndoUseWater:
		return g.UndoUseWater(playerID, a.AssetID)
	case protocol.OpSellWater:
		return g.SellWater(playerID, a.BuyerID, a.Amount, a.Price)
	default:
		return badAct("unknown op %q", a.Op)
	}
}
