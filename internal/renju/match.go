package renju

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is the match lifecycle. Transitions only move forward:
// created -> pending -> finished.
type State string

const (
	StateCreated  State = "created"
	StatePending  State = "pending"
	StateFinished State = "finished"
)

// Outcome is how one seat's participation ended.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLose Outcome = "lose"
	OutcomeDraw Outcome = "draw"
)

// Reason qualifies an outcome.
type Reason string

const (
	ReasonFair      Reason = "fair"
	ReasonConcede   Reason = "concede"
	ReasonTech      Reason = "tech"
	ReasonFullBoard Reason = "full_board"
)

// Text renders a reason for the human-readable result line.
func (r Reason) Text() string {
	switch r {
	case ReasonFair:
		return "honest victory"
	case ReasonConcede:
		return "player conceded"
	case ReasonTech:
		return "opponent surrendered"
	case ReasonFullBoard:
		return "game board is over"
	}
	return string(r)
}

// SeatResult is set once, when a seat's participation concludes.
type SeatResult struct {
	Outcome Outcome
	Reason  Reason
}

// Seat is a user's participation record in one match.
type Seat struct {
	UserID  uuid.UUID
	Name    string
	Role    Role
	Ready   bool
	CanMove bool
	Result  *SeatResult
}

// Move is one applied placement. The slice order is the chronological
// turn order; entries are immutable once appended.
type Move struct {
	ID   int
	Role Role
	X    int
	Y    int
}

// Match is the aggregate root: it exclusively owns its seats, grid and
// move log. All mutation goes through its methods; callers provide the
// per-match mutual exclusion.
type Match struct {
	ID         uuid.UUID
	State      State
	IsPrivate  bool
	Rules      Rules
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
	Seats      []*Seat
	Grid       *Grid
	Moves      []Move
}

// NewMatch builds a match in the created state with an empty grid and
// the creator seated as first.
func NewMatch(id, creatorID uuid.UUID, creatorName string, isPrivate bool, rules Rules, now time.Time) *Match {
	m := &Match{
		ID:        id,
		State:     StateCreated,
		IsPrivate: isPrivate,
		Rules:     rules,
		CreatedAt: now,
		Grid:      NewGrid(rules.BoardSize),
	}
	m.Seats = append(m.Seats, &Seat{
		UserID: creatorID,
		Name:   creatorName,
		Role:   RoleFirst,
	})
	return m
}

// Seat returns the user's seat, or nil. At most one seat exists per
// (match, user) pair.
func (m *Match) Seat(userID uuid.UUID) *Seat {
	for _, s := range m.Seats {
		if s.UserID == userID {
			return s
		}
	}
	return nil
}

func (m *Match) seatByRole(role Role) *Seat {
	for _, s := range m.Seats {
		if s.Role == role {
			return s
		}
	}
	return nil
}

// HasActiveSeat reports whether the user holds a ready seat whose
// participation has not concluded. This is the "unfinished match"
// predicate checked across matches on create and join.
func (m *Match) HasActiveSeat(userID uuid.UUID) bool {
	if m.State == StateFinished {
		return false
	}
	s := m.Seat(userID)
	return s != nil && s.Ready && s.Result == nil
}

// Join seats the user on the lowest empty player role. If the user is
// already seated this is a reopen: the existing seat comes back with
// no state change.
func (m *Match) Join(userID uuid.UUID, name string) (seat *Seat, reopened bool, err error) {
	if s := m.Seat(userID); s != nil {
		return s, true, nil
	}
	for _, role := range PlayerRoles(m.Rules.NumPlayers()) {
		if m.seatByRole(role) == nil {
			s := &Seat{UserID: userID, Name: name, Role: role}
			m.Seats = append(m.Seats, s)
			return s, false, nil
		}
	}
	return nil, false, ErrNoEmptySeats
}

// SetReady marks the user's player seat ready.
func (m *Match) SetReady(userID uuid.UUID) (*Seat, error) {
	seat := m.Seat(userID)
	if seat == nil {
		return nil, ErrNotInMatch
	}
	if m.State != StateCreated {
		return nil, ErrUnsuitableState
	}
	if !seat.Role.IsPlayer() {
		return nil, ErrNotAPlayer
	}
	seat.Ready = true
	return seat, nil
}

// AttemptStart transitions created -> pending when every player role
// is filled and ready. Unmet conditions are a no-op, not an error.
// The first turn always goes to the first role.
func (m *Match) AttemptStart(now time.Time) bool {
	if m.State != StateCreated {
		return false
	}
	for _, role := range PlayerRoles(m.Rules.NumPlayers()) {
		s := m.seatByRole(role)
		if s == nil || !s.Ready {
			return false
		}
	}
	m.State = StatePending
	started := now
	m.StartedAt = &started
	m.seatByRole(RoleFirst).CanMove = true
	return true
}

// MoveResult describes what an accepted move caused.
type MoveResult struct {
	Move         Move
	Finished     bool
	Draw         bool
	Winner       *Seat
	WinningCells []Cell
	NextMover    *Seat
}

// ApplyMove places the mover's stone at (x, y) and advances the match:
// victory, full-board draw, or turn rotation. A move out of turn or
// onto a taken cell is a false click and leaves the match untouched.
func (m *Match) ApplyMove(userID uuid.UUID, x, y int, now time.Time) (MoveResult, error) {
	var res MoveResult

	seat := m.Seat(userID)
	if seat == nil {
		return res, ErrNotInMatch
	}
	if !seat.Role.IsPlayer() || seat.Result != nil {
		return res, ErrNotAPlayer
	}
	if !seat.CanMove {
		return res, ErrFalseClick
	}

	if err := m.Grid.Place(x, y, seat.Role.Stone()); err != nil {
		if err == ErrCellOccupied {
			return res, ErrFalseClick
		}
		return res, err
	}

	res.Move = Move{ID: len(m.Moves) + 1, Role: seat.Role, X: x, Y: y}
	m.Moves = append(m.Moves, res.Move)

	if cells := m.Grid.CheckVictory(); len(cells) > 0 {
		seat.Result = &SeatResult{Outcome: OutcomeWin, Reason: ReasonFair}
		for _, s := range m.activePlayerSeats() {
			s.Result = &SeatResult{Outcome: OutcomeLose, Reason: ReasonFair}
		}
		m.finish(now)
		res.Finished = true
		res.Winner = seat
		res.WinningCells = cells
		return res, nil
	}

	if !m.Grid.HasFreeSpace() {
		seat.Result = &SeatResult{Outcome: OutcomeDraw, Reason: ReasonFullBoard}
		for _, s := range m.activePlayerSeats() {
			s.Result = &SeatResult{Outcome: OutcomeDraw, Reason: ReasonFullBoard}
		}
		m.finish(now)
		res.Finished = true
		res.Draw = true
		return res, nil
	}

	seat.CanMove = false
	res.NextMover = m.advanceTurn(seat.Role)
	return res, nil
}

// advanceTurn gives the move to the next active player role after
// from, wrapping past the last role back to first.
func (m *Match) advanceTurn(from Role) *Seat {
	np := m.Rules.NumPlayers()
	role := from
	for i := 0; i < np; i++ {
		role = nextRole(role, np)
		if s := m.seatByRole(role); s != nil && s.Result == nil {
			s.CanMove = true
			return s
		}
	}
	return nil
}

// LeaveResult describes what a leave (or disconnect) caused.
// AlreadyConcluded means the seat's participation had already ended
// and nothing changed; callers must not persist or announce it.
type LeaveResult struct {
	AlreadyConcluded bool
	Deleted          bool
	SeatRemoved      bool
	Conceded         bool
	Finished         bool
	Winner           *Seat
	NextMover        *Seat
}

// Leave removes or concedes the user's seat. A seat that never readied
// is deleted outright; a readied seat concedes, possibly handing the
// last active opponent a technical win. Deleted=true means the whole
// match should be removed.
func (m *Match) Leave(userID uuid.UUID, now time.Time) (LeaveResult, error) {
	var res LeaveResult

	seat := m.Seat(userID)
	if seat == nil {
		return res, ErrNotInMatch
	}
	if !seat.Role.IsPlayer() {
		return res, ErrNotAPlayer
	}
	if m.State == StateFinished || seat.Result != nil {
		res.AlreadyConcluded = true
		return res, nil
	}

	if !seat.Ready {
		m.removeSeat(seat)
		res.SeatRemoved = true
		res.Deleted = len(m.Seats) == 0
		return res, nil
	}

	if len(m.Seats) == 1 {
		res.Deleted = true
		return res, nil
	}

	hadTurn := seat.CanMove
	seat.CanMove = false
	seat.Result = &SeatResult{Outcome: OutcomeLose, Reason: ReasonConcede}
	res.Conceded = true

	active := m.activePlayerSeats()
	if len(active) == 1 {
		winner := active[0]
		winner.Result = &SeatResult{Outcome: OutcomeWin, Reason: ReasonTech}
		m.finish(now)
		res.Finished = true
		res.Winner = winner
		return res, nil
	}
	if hadTurn && m.State == StatePending {
		res.NextMover = m.advanceTurn(seat.Role)
	}
	return res, nil
}

func (m *Match) removeSeat(seat *Seat) {
	for i, s := range m.Seats {
		if s == seat {
			m.Seats = append(m.Seats[:i], m.Seats[i+1:]...)
			return
		}
	}
}

// activePlayerSeats returns player seats without a result.
func (m *Match) activePlayerSeats() []*Seat {
	var active []*Seat
	for _, s := range m.Seats {
		if s.Role.IsPlayer() && s.Result == nil {
			active = append(active, s)
		}
	}
	return active
}

func (m *Match) finish(now time.Time) {
	m.State = StateFinished
	finished := now
	m.FinishedAt = &finished
	for _, s := range m.Seats {
		s.CanMove = false
	}
}

// ResultText renders the terminal result line: "{winner} won!
// ({reason})" for a win, "Draw ({reason})" for a draw, empty
// otherwise.
func (m *Match) ResultText() string {
	for _, s := range m.Seats {
		if s.Result == nil {
			continue
		}
		switch s.Result.Outcome {
		case OutcomeWin:
			return fmt.Sprintf("%s won! (%s)", s.Name, s.Result.Reason.Text())
		case OutcomeDraw:
			return fmt.Sprintf("Draw (%s)", s.Result.Reason.Text())
		}
	}
	return ""
}
