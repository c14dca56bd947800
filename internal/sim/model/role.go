package model

import "fmt"

type Role int

const (
	RoleNone Role = iota
	RoleDeveloper
	RoleFarmer
	RoleManufacturer
	RoleWaterMaster
	RoleEconomy
)

var roleNames = map[Role]string{
	RoleNone:         "None",
	RoleDeveloper:    "Developer",
	RoleFarmer:       "Farmer",
	RoleManufacturer: "Manufacturer",
	RoleWaterMaster:  "WaterMaster",
	RoleEconomy:      "Economy",
}

func (r Role) String() string {
	if s, ok := roleNames[r]; ok {
		return s
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

func ParseRole(s string) (Role, error) {
	for r, name := range roleNames {
		if name == s && r != RoleNone {
			return r, nil
		}
	}
	return RoleNone, fmt.Errorf("unknown role %q", s)
}

// Playable roles, in the order they are listed to players.
func Roles() []Role {
	return []Role{RoleDeveloper, RoleFarmer, RoleManufacturer, RoleWaterMaster}
}

// AllowedKinds lists the asset kinds a role may build.
func (r Role) AllowedKinds() []AssetKind {
	switch r {
	case RoleDeveloper:
		return []AssetKind{KindHouses}
	case RoleFarmer:
		return []AssetKind{KindCrops}
	case RoleManufacturer:
		return []AssetKind{KindFactory}
	default:
		return nil
	}
}

func (r Role) CanBuild(k AssetKind) bool {
	for _, allowed := range r.AllowedKinds() {
		if allowed == k {
			return true
		}
	}
	return false
}

// FieldKind is the kind a parcel's fields are specialised to when r holds its
// development rights.
func (r Role) FieldKind() AssetKind {
	kinds := r.AllowedKinds()
	if len(kinds) == 0 {
		return KindNone
	}
	return kinds[0]
}
