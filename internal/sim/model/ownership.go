package model

// TransferDevelopmentRights moves a parcel's development rights to `to` (nil
// clears them) and keeps both owners' back-reference sets in step. It returns
// the previous owner.
func TransferDevelopmentRights(bp *Parcel, to *Player) (from *Player) {
	from = bp.devOwner
	if from == to {
		return from
	}
	if from != nil {
		delete(from.devParcels, bp.ID)
	}
	bp.devOwner = to
	if to != nil {
		to.devParcels[bp.ID] = bp
	}
	return from
}

// TransferWaterRights is TransferDevelopmentRights for water rights.
func TransferWaterRights(bp *Parcel, to *Player) (from *Player) {
	from = bp.waterOwner
	if from == to {
		return from
	}
	if from != nil {
		delete(from.waterParcels, bp.ID)
	}
	bp.waterOwner = to
	if to != nil {
		to.waterParcels[bp.ID] = bp
	}
	return from
}
