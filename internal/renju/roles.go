package renju

// Role is a seat's positional identity. Player roles double as turn
// order; the spectator role never moves.
type Role string

const (
	RoleFirst     Role = "first"
	RoleSecond    Role = "second"
	RoleThird     Role = "third"
	RoleSpectator Role = "spectator"
)

// playerOrdinals fixes the round-robin sequence first < second < third.
var playerOrdinals = []Role{RoleFirst, RoleSecond, RoleThird}

func (r Role) IsPlayer() bool {
	return r == RoleFirst || r == RoleSecond || r == RoleThird
}

// Stone maps a player role to the stone code stored on the grid.
// Role and stone code are distinct concepts; this is the only place
// they are tied together.
func (r Role) Stone() int {
	switch r {
	case RoleFirst:
		return 1
	case RoleSecond:
		return 2
	case RoleThird:
		return 3
	}
	return 0
}

// StoneRole is the inverse of Stone.
func StoneRole(value int) (Role, bool) {
	switch value {
	case 1:
		return RoleFirst, true
	case 2:
		return RoleSecond, true
	case 3:
		return RoleThird, true
	}
	return "", false
}

// PlayerRoles returns the player roles a match offers, in ordinal
// order. numPlayers 1 covers solo practice matches.
func PlayerRoles(numPlayers int) []Role {
	if numPlayers < 1 {
		numPlayers = 1
	}
	if numPlayers > len(playerOrdinals) {
		numPlayers = len(playerOrdinals)
	}
	return playerOrdinals[:numPlayers]
}

// nextRole returns the role after r in round-robin order, wrapping
// past the last player role back to first.
func nextRole(r Role, numPlayers int) Role {
	roles := PlayerRoles(numPlayers)
	for i, cand := range roles {
		if cand == r {
			return roles[(i+1)%len(roles)]
		}
	}
	return RoleFirst
}
