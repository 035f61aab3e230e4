package renju

// GameMode is one independently toggleable rule fragment, seeded by an
// administrative process. A nil modifier field means "no opinion".
type GameMode struct {
	ID           int
	Name         string
	TimeLimit    *int
	BoardSize    *int
	ClassicMode  *bool
	WithMyself   *bool
	ThreePlayers *bool
	IsActive     bool
}

// Rules is the effective ruleset resolved for one match.
type Rules struct {
	BoardSize    int
	ClassicMode  bool
	WithMyself   bool
	ThreePlayers bool
	TimeLimit    *int // nil means no limit
}

// DefaultRules are the values every resolution starts from.
func DefaultRules() Rules {
	return Rules{BoardSize: 15}
}

// NumPlayers returns how many player seats the ruleset offers.
func (r Rules) NumPlayers() int {
	if r.WithMyself {
		return 1
	}
	if r.ThreePlayers {
		return 3
	}
	return 2
}

// ResolveRules folds the chosen modes over the defaults in list order.
// A later non-nil field overrides an earlier one, except TimeLimit
// where a literal zero clears the limit entirely instead of setting a
// zero-second clock.
func ResolveRules(modes []GameMode) Rules {
	rules := DefaultRules()
	for _, mode := range modes {
		if mode.TimeLimit != nil {
			if *mode.TimeLimit == 0 {
				rules.TimeLimit = nil
			} else {
				limit := *mode.TimeLimit
				rules.TimeLimit = &limit
			}
		}
		if mode.BoardSize != nil {
			rules.BoardSize = *mode.BoardSize
		}
		if mode.ClassicMode != nil {
			rules.ClassicMode = *mode.ClassicMode
		}
		if mode.WithMyself != nil {
			rules.WithMyself = *mode.WithMyself
		}
		if mode.ThreePlayers != nil {
			rules.ThreePlayers = *mode.ThreePlayers
		}
	}
	return rules
}
