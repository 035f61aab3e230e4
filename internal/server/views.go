package server

import (
	"time"

	"github.com/google/uuid"

	"renju-server/internal/renju"
)

// ResultView is one seat's terminal result.
type ResultView struct {
	Outcome renju.Outcome `json:"outcome"`
	Reason  renju.Reason  `json:"reason"`
}

// PlayerView is the wire shape of a seat.
type PlayerView struct {
	UserID  uuid.UUID   `json:"user_id"`
	Name    string      `json:"name"`
	Role    renju.Role  `json:"role"`
	Ready   bool        `json:"ready"`
	CanMove bool        `json:"can_move"`
	Result  *ResultView `json:"result,omitempty"`
}

// MoveView is one applied placement.
type MoveView struct {
	ID   int        `json:"id"`
	Role renju.Role `json:"role"`
	X    int        `json:"x"`
	Y    int        `json:"y"`
}

// MatchView is the full wire shape of a match. Player slots are keyed
// by role ordinal so clients render a stable layout.
type MatchView struct {
	ID          uuid.UUID    `json:"id"`
	State       renju.State  `json:"state"`
	IsPrivate   bool         `json:"is_private"`
	BoardSize   int          `json:"board_size"`
	NumPlayers  int          `json:"num_players"`
	ClassicMode bool         `json:"classic_mode"`
	WithMyself  bool         `json:"with_myself"`
	TimeLimit   *int         `json:"time_limit"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	FinishedAt  *time.Time   `json:"finished_at,omitempty"`
	Player1     *PlayerView  `json:"player_1"`
	Player2     *PlayerView  `json:"player_2"`
	Player3     *PlayerView  `json:"player_3,omitempty"`
	Spectators  []PlayerView `json:"spectators"`
	Moves       []MoveView   `json:"moves"`
	Board       string       `json:"board"`
	Result      string       `json:"result,omitempty"`
}

func newPlayerView(s *renju.Seat) PlayerView {
	v := PlayerView{
		UserID:  s.UserID,
		Name:    s.Name,
		Role:    s.Role,
		Ready:   s.Ready,
		CanMove: s.CanMove,
	}
	if s.Result != nil {
		v.Result = &ResultView{Outcome: s.Result.Outcome, Reason: s.Result.Reason}
	}
	return v
}

// NewMatchView projects a match into its wire shape. The caller holds
// the match lock.
func NewMatchView(m *renju.Match) MatchView {
	view := MatchView{
		ID:          m.ID,
		State:       m.State,
		IsPrivate:   m.IsPrivate,
		BoardSize:   m.Rules.BoardSize,
		NumPlayers:  m.Rules.NumPlayers(),
		ClassicMode: m.Rules.ClassicMode,
		WithMyself:  m.Rules.WithMyself,
		TimeLimit:   m.Rules.TimeLimit,
		CreatedAt:   m.CreatedAt,
		StartedAt:   m.StartedAt,
		FinishedAt:  m.FinishedAt,
		Spectators:  []PlayerView{},
		Moves:       []MoveView{},
		Board:       m.Grid.Serialize(),
		Result:      m.ResultText(),
	}
	for _, s := range m.Seats {
		pv := newPlayerView(s)
		switch s.Role {
		case renju.RoleFirst:
			view.Player1 = &pv
		case renju.RoleSecond:
			view.Player2 = &pv
		case renju.RoleThird:
			view.Player3 = &pv
		default:
			view.Spectators = append(view.Spectators, pv)
		}
	}
	for _, mv := range m.Moves {
		view.Moves = append(view.Moves, MoveView{ID: mv.ID, Role: mv.Role, X: mv.X, Y: mv.Y})
	}
	return view
}
