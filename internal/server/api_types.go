package server

import (
	"github.com/google/uuid"

	"renju-server/internal/renju"
)

// ------------------------------------------------------------------
// Inbound payloads
// ------------------------------------------------------------------

// ModeRef references a stored game mode by id. The order of refs in a
// create request is the override order for rule resolution.
type ModeRef struct {
	ID int `json:"id"`
}

type CreateMatchRequest struct {
	IsPrivate bool      `json:"is_private"`
	Modes     []ModeRef `json:"modes"`
}

type JoinRequest struct {
	MatchID uuid.UUID `json:"match_id"`
}

type ReadyRequest struct {
	MatchID uuid.UUID `json:"match_id"`
}

type MoveRequest struct {
	MatchID uuid.UUID `json:"match_id"`
	X       int       `json:"x"`
	Y       int       `json:"y"`
}

type LeaveRequest struct {
	MatchID uuid.UUID `json:"match_id"`
}

// ------------------------------------------------------------------
// Outbound notices
// ------------------------------------------------------------------

type PongNotice struct {
	Action string `json:"action"`
}

type ErrorNotice struct {
	Action string `json:"action"`
	Detail string `json:"detail"`
	Scope  string `json:"scope,omitempty"`
}

type NotAllowedNotice struct {
	Action string `json:"action"`
	Detail string `json:"detail"`
}

type AlreadyConnectedNotice struct {
	Action string `json:"action"`
	Detail string `json:"detail"`
}

type MatchListNotice struct {
	Action  string      `json:"action"`
	Matches []MatchView `json:"matches"`
	Online  int         `json:"online"`
}

type MatchCreatedNotice struct {
	Action string     `json:"action"`
	Match  MatchView  `json:"match"`
	MyRole renju.Role `json:"my_role"`
}

type MatchAddedNotice struct {
	Action string    `json:"action"`
	Match  MatchView `json:"match"`
}

type MatchJoinedNotice struct {
	Action   string     `json:"action"`
	Match    MatchView  `json:"match"`
	MyRole   renju.Role `json:"my_role"`
	Reopened bool       `json:"reopened"`
}

type PlayerJoinedNotice struct {
	Action string    `json:"action"`
	Match  MatchView `json:"match"`
	Player PlayerView `json:"player"`
}

type MatchUpdatedNotice struct {
	Action string    `json:"action"`
	Match  MatchView `json:"match"`
}

type ReadyAcceptedNotice struct {
	Action string     `json:"action"`
	Match  MatchView  `json:"match"`
	Role   renju.Role `json:"role"`
}

type MatchStartedNotice struct {
	Action string    `json:"action"`
	Match  MatchView `json:"match"`
}

type UnblockBoardNotice struct {
	Action  string    `json:"action"`
	MatchID uuid.UUID `json:"match_id"`
}

type MatchLeftNotice struct {
	Action  string    `json:"action"`
	MatchID uuid.UUID `json:"match_id"`
}

type MatchRemovedNotice struct {
	Action  string    `json:"action"`
	MatchID uuid.UUID `json:"match_id"`
}

type MoveAppliedNotice struct {
	Action string    `json:"action"`
	Match  MatchView `json:"match"`
	Move   MoveView  `json:"move"`
}

type MatchFinishedNotice struct {
	Action       string       `json:"action"`
	Match        MatchView    `json:"match"`
	Result       string       `json:"result"`
	WinningCells []renju.Cell `json:"winning_cells,omitempty"`
}
