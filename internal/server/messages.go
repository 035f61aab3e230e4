package server

// ClientMessage is the inbound frame envelope. Action routes the
// frame; the per-action fields are decoded from the same bytes.
type ClientMessage struct {
	Action string `json:"action"`
}

// Inbound actions.
const (
	actionPing        = "ping"
	actionCreateMatch = "create_match"
	actionJoin        = "join"
	actionReady       = "ready"
	actionMove        = "move"
	actionLeave       = "leave"
)

// Outbound actions.
const (
	actionPong             = "pong"
	actionError            = "error"
	actionNotAllowed       = "not_allowed"
	actionAlreadyConnected = "already_connected"
	actionMatchList        = "match_list"
	actionMatchCreated     = "match_created"
	actionMatchAdded       = "match_added"
	actionMatchJoined      = "match_joined"
	actionPlayerJoined     = "player_joined"
	actionMatchUpdated     = "match_updated"
	actionReadyAccepted    = "ready_accepted"
	actionMatchStarted     = "match_started"
	actionUnblockBoard     = "unblock_board"
	actionMatchLeft        = "match_left"
	actionMatchRemoved     = "match_removed"
	actionMoveApplied      = "move_applied"
	actionMatchFinished    = "match_finished"
)
