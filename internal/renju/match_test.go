package renju_test

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"renju-server/internal/renju"
)

var (
	alice = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	bob   = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	carol = uuid.MustParse("00000000-0000-0000-0000-00000000000c")
	dave  = uuid.MustParse("00000000-0000-0000-0000-00000000000d")
)

func newTwoPlayerMatch(t *testing.T) *renju.Match {
	t.Helper()
	m := renju.NewMatch(uuid.New(), alice, "Alice", false, renju.DefaultRules(), time.Now())
	if _, reopened, err := m.Join(bob, "Bob"); err != nil || reopened {
		t.Fatalf("Join(bob) = reopened %v, err %v", reopened, err)
	}
	return m
}

func startMatch(t *testing.T, m *renju.Match) {
	t.Helper()
	for _, s := range m.Seats {
		if _, err := m.SetReady(s.UserID); err != nil {
			t.Fatalf("SetReady(%s): %v", s.Name, err)
		}
	}
	if !m.AttemptStart(time.Now()) {
		t.Fatal("AttemptStart should have started the match")
	}
}

func TestJoinAssignsLowestEmptyRole(t *testing.T) {
	m := newTwoPlayerMatch(t)

	if m.Seats[0].Role != renju.RoleFirst {
		t.Errorf("creator role = %s, want first", m.Seats[0].Role)
	}
	if m.Seat(bob).Role != renju.RoleSecond {
		t.Errorf("joiner role = %s, want second", m.Seat(bob).Role)
	}

	if _, _, err := m.Join(carol, "Carol"); err != renju.ErrNoEmptySeats {
		t.Errorf("third join on a 2-player match err = %v, want ErrNoEmptySeats", err)
	}
}

func TestJoinReopen(t *testing.T) {
	m := newTwoPlayerMatch(t)

	seat, reopened, err := m.Join(bob, "Bob")
	if err != nil {
		t.Fatalf("reopen join: %v", err)
	}
	if !reopened {
		t.Error("second join by the same user must be a reopen")
	}
	if seat.Role != renju.RoleSecond {
		t.Errorf("reopen returned role %s, want second", seat.Role)
	}
	if len(m.Seats) != 2 {
		t.Errorf("reopen must not add a seat, have %d", len(m.Seats))
	}
}

func TestThreePlayerRoles(t *testing.T) {
	rules := renju.ResolveRules([]renju.GameMode{{ThreePlayers: boolp(true), BoardSize: intp(30)}})
	m := renju.NewMatch(uuid.New(), alice, "Alice", false, rules, time.Now())

	if _, _, err := m.Join(bob, "Bob"); err != nil {
		t.Fatalf("Join(bob): %v", err)
	}
	seat, _, err := m.Join(carol, "Carol")
	if err != nil {
		t.Fatalf("Join(carol): %v", err)
	}
	if seat.Role != renju.RoleThird {
		t.Errorf("third joiner role = %s, want third", seat.Role)
	}
	if _, _, err := m.Join(dave, "Dave"); err != renju.ErrNoEmptySeats {
		t.Errorf("fourth join err = %v, want ErrNoEmptySeats", err)
	}
}

func TestAttemptStartNeedsAllReady(t *testing.T) {
	m := newTwoPlayerMatch(t)

	if m.AttemptStart(time.Now()) {
		t.Fatal("match must not start before anyone is ready")
	}
	if _, err := m.SetReady(alice); err != nil {
		t.Fatalf("SetReady: %v", err)
	}
	if m.AttemptStart(time.Now()) {
		t.Fatal("match must not start with one unready seat")
	}
	if _, err := m.SetReady(bob); err != nil {
		t.Fatalf("SetReady: %v", err)
	}
	if !m.AttemptStart(time.Now()) {
		t.Fatal("match should start once every player seat is ready")
	}

	if m.State != renju.StatePending {
		t.Errorf("state = %s, want pending", m.State)
	}
	if m.StartedAt == nil {
		t.Error("StartedAt not stamped")
	}

	movers := 0
	for _, s := range m.Seats {
		if s.CanMove {
			movers++
			if s.Role != renju.RoleFirst {
				t.Errorf("initial turn went to %s, want first", s.Role)
			}
		}
	}
	if movers != 1 {
		t.Errorf("exactly one seat must hold the turn, got %d", movers)
	}
}

func TestSetReadyFailures(t *testing.T) {
	m := newTwoPlayerMatch(t)

	if _, err := m.SetReady(carol); err != renju.ErrNotInMatch {
		t.Errorf("SetReady by stranger err = %v, want ErrNotInMatch", err)
	}

	startMatch(t, m)
	if _, err := m.SetReady(alice); err != renju.ErrUnsuitableState {
		t.Errorf("SetReady after start err = %v, want ErrUnsuitableState", err)
	}
}

func TestMoveOutOfTurnIsFalseClick(t *testing.T) {
	m := newTwoPlayerMatch(t)
	startMatch(t, m)

	// Bob holds the second role; the first turn is Alice's.
	_, err := m.ApplyMove(bob, 8, 8, time.Now())
	if err != renju.ErrFalseClick {
		t.Fatalf("out-of-turn move err = %v, want ErrFalseClick", err)
	}
	if len(m.Moves) != 0 {
		t.Error("false click must not append a move")
	}
	if m.Grid.Serialize() != renju.NewGrid(15).Serialize() {
		t.Error("false click must not mutate the grid")
	}
}

func TestMoveOnTakenCellIsFalseClick(t *testing.T) {
	m := newTwoPlayerMatch(t)
	startMatch(t, m)

	if _, err := m.ApplyMove(alice, 8, 8, time.Now()); err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}
	if _, err := m.ApplyMove(bob, 8, 8, time.Now()); err != renju.ErrFalseClick {
		t.Fatalf("move onto taken cell err = %v, want ErrFalseClick", err)
	}
	// Bob still holds the turn after the rejected click.
	if !m.Seat(bob).CanMove {
		t.Error("turn must not advance on a false click")
	}
}

func TestTurnRotation(t *testing.T) {
	m := newTwoPlayerMatch(t)
	startMatch(t, m)

	res, err := m.ApplyMove(alice, 8, 8, time.Now())
	if err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}
	if res.NextMover == nil || res.NextMover.Role != renju.RoleSecond {
		t.Fatalf("next mover = %+v, want second", res.NextMover)
	}
	if m.Seat(alice).CanMove {
		t.Error("mover must lose the turn")
	}

	res, err = m.ApplyMove(bob, 8, 9, time.Now())
	if err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}
	if res.NextMover == nil || res.NextMover.Role != renju.RoleFirst {
		t.Fatalf("turn must wrap back to first, got %+v", res.NextMover)
	}
}

func TestHorizontalWinScenario(t *testing.T) {
	m := newTwoPlayerMatch(t)
	startMatch(t, m)

	now := time.Now()
	plays := []struct {
		user uuid.UUID
		x, y int
	}{
		{alice, 8, 8}, {bob, 8, 9},
		{alice, 7, 8}, {bob, 7, 9},
		{alice, 6, 8}, {bob, 6, 9},
		{alice, 5, 8}, {bob, 5, 9},
	}
	for _, p := range plays {
		if _, err := m.ApplyMove(p.user, p.x, p.y, now); err != nil {
			t.Fatalf("ApplyMove(%d,%d): %v", p.x, p.y, err)
		}
	}

	res, err := m.ApplyMove(alice, 4, 8, now)
	if err != nil {
		t.Fatalf("winning move: %v", err)
	}
	if !res.Finished || res.Winner == nil || res.Winner.UserID != alice {
		t.Fatalf("expected Alice to win, got %+v", res)
	}
	if len(res.WinningCells) != 5 {
		t.Fatalf("expected 5 winning cells, got %d", len(res.WinningCells))
	}
	for i, c := range res.WinningCells {
		if c.Y != 8 || c.X != i+4 {
			t.Errorf("winning cell %d = %+v, want (%d,8)", i, c, i+4)
		}
	}

	if m.State != renju.StateFinished {
		t.Errorf("state = %s, want finished", m.State)
	}
	if m.FinishedAt == nil {
		t.Error("FinishedAt not stamped")
	}
	if r := m.Seat(alice).Result; r == nil || r.Outcome != renju.OutcomeWin || r.Reason != renju.ReasonFair {
		t.Errorf("winner result = %+v, want fair win", r)
	}
	if r := m.Seat(bob).Result; r == nil || r.Outcome != renju.OutcomeLose || r.Reason != renju.ReasonFair {
		t.Errorf("loser result = %+v, want fair loss", r)
	}
	if got := m.ResultText(); got != "Alice won! (honest victory)" {
		t.Errorf("ResultText() = %q", got)
	}

	// The board is read-only once terminal: every seat's participation
	// has concluded, so further moves are rejected.
	if _, err := m.ApplyMove(bob, 1, 1, now); err != renju.ErrNotAPlayer {
		t.Errorf("move after finish err = %v, want ErrNotAPlayer", err)
	}
}

func TestFullBoardDraw(t *testing.T) {
	rules := renju.DefaultRules()
	rules.BoardSize = 5
	m := renju.NewMatch(uuid.New(), alice, "Alice", false, rules, time.Now())
	if _, _, err := m.Join(bob, "Bob"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	startMatch(t, m)

	// Full board minus (5,5), no line of five anywhere, even after the
	// final stone lands.
	grid, err := renju.ParseGrid("11221/11221/22112/11221/11220")
	if err != nil {
		t.Fatalf("ParseGrid: %v", err)
	}
	m.Grid = grid

	res, err := m.ApplyMove(alice, 5, 5, time.Now())
	if err != nil {
		t.Fatalf("final move: %v", err)
	}
	if !res.Finished || !res.Draw {
		t.Fatalf("expected a finished draw, got %+v", res)
	}
	for _, id := range []uuid.UUID{alice, bob} {
		r := m.Seat(id).Result
		if r == nil || r.Outcome != renju.OutcomeDraw || r.Reason != renju.ReasonFullBoard {
			t.Errorf("seat result = %+v, want full-board draw", r)
		}
	}
	if got := m.ResultText(); got != "Draw (game board is over)" {
		t.Errorf("ResultText() = %q", got)
	}
}

func TestLeaveBeforeReadyDeletesSeat(t *testing.T) {
	m := newTwoPlayerMatch(t)

	res, err := m.Leave(bob, time.Now())
	if err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if !res.SeatRemoved || res.Deleted {
		t.Errorf("unexpected leave result %+v", res)
	}
	if m.Seat(bob) != nil {
		t.Error("seat must be deleted outright")
	}
}

func TestLastSeatLeaveMarksMatchDeleted(t *testing.T) {
	m := renju.NewMatch(uuid.New(), alice, "Alice", false, renju.DefaultRules(), time.Now())
	if _, err := m.SetReady(alice); err != nil {
		t.Fatalf("SetReady: %v", err)
	}

	res, err := m.Leave(alice, time.Now())
	if err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if !res.Deleted {
		t.Error("a ready creator leaving an otherwise empty match must mark it for deletion")
	}
}

func TestConcessionGivesTechnicalWin(t *testing.T) {
	m := newTwoPlayerMatch(t)
	startMatch(t, m)

	res, err := m.Leave(alice, time.Now())
	if err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if !res.Conceded || !res.Finished || res.Winner == nil || res.Winner.UserID != bob {
		t.Fatalf("expected Bob to win by concession, got %+v", res)
	}
	if r := m.Seat(alice).Result; r == nil || r.Outcome != renju.OutcomeLose || r.Reason != renju.ReasonConcede {
		t.Errorf("leaver result = %+v, want concede loss", r)
	}
	if r := m.Seat(bob).Result; r == nil || r.Outcome != renju.OutcomeWin || r.Reason != renju.ReasonTech {
		t.Errorf("winner result = %+v, want tech win", r)
	}
	if m.State != renju.StateFinished {
		t.Errorf("state = %s, want finished", m.State)
	}
	if got := m.ResultText(); got != "Bob won! (opponent surrendered)" {
		t.Errorf("ResultText() = %q", got)
	}
}

func TestLeaveAfterFinishIsNoOp(t *testing.T) {
	m := newTwoPlayerMatch(t)
	startMatch(t, m)

	if _, err := m.Leave(alice, time.Now()); err != nil {
		t.Fatalf("Leave(alice): %v", err)
	}
	if m.State != renju.StateFinished {
		t.Fatalf("state = %s, want finished", m.State)
	}
	before := *m.FinishedAt

	// Neither the winner nor the conceded seat can leave again.
	for _, user := range []uuid.UUID{bob, alice} {
		res, err := m.Leave(user, time.Now())
		if err != nil {
			t.Fatalf("Leave on finished match: %v", err)
		}
		if !res.AlreadyConcluded {
			t.Error("leave on a finished match not flagged AlreadyConcluded")
		}
		if res.Deleted || res.Conceded || res.Finished || res.SeatRemoved {
			t.Errorf("leave on a finished match caused a transition: %+v", res)
		}
	}
	if len(m.Seats) != 2 {
		t.Errorf("seats = %d, want 2", len(m.Seats))
	}
	if !m.FinishedAt.Equal(before) {
		t.Error("FinishedAt changed")
	}
}

func TestThreePlayerConcessionPassesTurn(t *testing.T) {
	rules := renju.ResolveRules([]renju.GameMode{{ThreePlayers: boolp(true)}})
	m := renju.NewMatch(uuid.New(), alice, "Alice", false, rules, time.Now())
	m.Join(bob, "Bob")
	m.Join(carol, "Carol")
	startMatch(t, m)

	// Alice holds the first turn and concedes; the match continues
	// between Bob and Carol with the turn handed to Bob.
	res, err := m.Leave(alice, time.Now())
	if err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if res.Finished {
		t.Fatal("two active seats remain, match must continue")
	}
	if res.NextMover == nil || res.NextMover.Role != renju.RoleSecond {
		t.Fatalf("turn should pass to second, got %+v", res.NextMover)
	}

	// Bob moves, rotation now skips the conceded first seat.
	mv, err := m.ApplyMove(bob, 1, 1, time.Now())
	if err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}
	if mv.NextMover == nil || mv.NextMover.Role != renju.RoleThird {
		t.Fatalf("turn should pass to third, got %+v", mv.NextMover)
	}

	// Carol concedes too: Bob takes the technical win.
	res, err = m.Leave(carol, time.Now())
	if err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if !res.Finished || res.Winner == nil || res.Winner.UserID != bob {
		t.Fatalf("expected Bob to win, got %+v", res)
	}
}

func TestSoloPracticeMatch(t *testing.T) {
	rules := renju.ResolveRules([]renju.GameMode{{WithMyself: boolp(true)}})
	m := renju.NewMatch(uuid.New(), alice, "Alice", true, rules, time.Now())

	if _, err := m.SetReady(alice); err != nil {
		t.Fatalf("SetReady: %v", err)
	}
	if !m.AttemptStart(time.Now()) {
		t.Fatal("solo match should start with the single seat ready")
	}

	// The turn never leaves the first role.
	res, err := m.ApplyMove(alice, 1, 1, time.Now())
	if err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}
	if res.NextMover == nil || res.NextMover.UserID != alice {
		t.Fatalf("solo turn should stay with the only seat, got %+v", res.NextMover)
	}
}

func TestHasActiveSeat(t *testing.T) {
	m := newTwoPlayerMatch(t)
	if m.HasActiveSeat(alice) {
		t.Error("unready seat is not active")
	}
	if _, err := m.SetReady(alice); err != nil {
		t.Fatalf("SetReady: %v", err)
	}
	if !m.HasActiveSeat(alice) {
		t.Error("ready seat without result is active")
	}
	if m.HasActiveSeat(carol) {
		t.Error("stranger has no active seat")
	}

	m2 := newTwoPlayerMatch(t)
	startMatch(t, m2)
	if _, err := m2.Leave(alice, time.Now()); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if m2.HasActiveSeat(alice) || m2.HasActiveSeat(bob) {
		t.Error("no seat stays active once the match finished")
	}
}
