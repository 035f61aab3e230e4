package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"renju-server/internal/renju"
)

// errBadPayload rejects a frame whose fields do not decode.
var errBadPayload = errors.New("BAD_PAYLOAD: malformed message fields")

// Store persists match aggregates and the mode catalogue.
type Store interface {
	SaveMatch(ctx context.Context, m *renju.Match) error
	LoadMatch(ctx context.Context, id uuid.UUID) (*renju.Match, error)
	DeleteMatch(ctx context.Context, id uuid.UUID) error
	ListGameModes(ctx context.Context, ids []int) ([]renju.GameMode, error)
	ListUnfinishedMatches(ctx context.Context) ([]*renju.Match, error)
	CleanupFinished(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Notifier delivers notices to connected users. The live registry
// implements it; tests substitute a recorder.
type Notifier interface {
	SendTo(ctx context.Context, userID uuid.UUID, payload any) error
	BroadcastTo(ctx context.Context, userIDs []uuid.UUID, payload any) error
	BroadcastAll(ctx context.Context, payload any) error
	CountOnline() int
}

// matchEntry pairs a loaded match with its lock. The lock is held
// across the whole read-modify-persist sequence so concurrent intents
// against one match serialize.
type matchEntry struct {
	mu    sync.Mutex
	match *renju.Match
}

// Coordinator owns all live matches and turns client intents into
// state transitions plus notices.
type Coordinator struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger

	mu      sync.RWMutex
	matches map[uuid.UUID]*matchEntry
}

func NewCoordinator(store Store, notifier Notifier, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:    store,
		notifier: notifier,
		logger:   logger,
		matches:  make(map[uuid.UUID]*matchEntry),
	}
}

// Dispatch routes one decoded frame. A nil return keeps the connection
// alive; a non-nil return tells the caller to drop it.
func (c *Coordinator) Dispatch(ctx context.Context, user User, action string, data []byte) error {
	var err error
	switch action {
	case actionCreateMatch:
		err = c.handleCreate(ctx, user, data)
	case actionJoin:
		err = c.handleJoin(ctx, user, data)
	case actionReady:
		err = c.handleReady(ctx, user, data)
	case actionMove:
		err = c.handleMove(ctx, user, data)
	case actionLeave:
		err = c.handleLeave(ctx, user, data)
	default:
		c.notifier.SendTo(ctx, user.ID, NotAllowedNotice{
			Action: actionNotAllowed,
			Detail: fmt.Sprintf("unknown action %q", action),
		})
		return nil
	}
	return c.concludeIntent(ctx, user, action, err)
}

// concludeIntent classifies a handler error. False clicks pass in
// silence, user-facing errors go back as a notice, anything else is
// logged and fatal to the connection.
func (c *Coordinator) concludeIntent(ctx context.Context, user User, action string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, renju.ErrFalseClick):
		return nil
	case isUserFacing(err):
		c.notifier.SendTo(ctx, user.ID, ErrorNotice{
			Action: actionError,
			Detail: err.Error(),
			Scope:  action,
		})
		return nil
	default:
		c.logger.Error("intent failed", "action", action, "user_id", user.ID, "error", err)
		return err
	}
}

func isUserFacing(err error) bool {
	for _, known := range []error{
		renju.ErrNoMatchFound,
		renju.ErrNoEmptySeats,
		renju.ErrUnfinishedMatch,
		renju.ErrNotInMatch,
		renju.ErrNotAPlayer,
		renju.ErrUnsuitableState,
		renju.ErrOutOfBounds,
		errBadPayload,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}

// ------------------------------------------------------------------
// Intent handlers
// ------------------------------------------------------------------

func (c *Coordinator) handleCreate(ctx context.Context, user User, data []byte) error {
	var req CreateMatchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errBadPayload
	}

	if err := c.checkNoUnfinished(user.ID, uuid.Nil); err != nil {
		return err
	}

	modes, err := c.resolveModes(ctx, req.Modes)
	if err != nil {
		return err
	}
	rules := renju.ResolveRules(modes)

	m := renju.NewMatch(uuid.New(), user.ID, user.Name, req.IsPrivate, rules, time.Now().UTC())
	if err := c.store.SaveMatch(ctx, m); err != nil {
		return fmt.Errorf("saving new match: %w", err)
	}

	entry := &matchEntry{match: m}
	c.mu.Lock()
	c.matches[m.ID] = entry
	c.mu.Unlock()

	entry.mu.Lock()
	view := NewMatchView(m)
	public := listed(m)
	entry.mu.Unlock()

	c.notifier.SendTo(ctx, user.ID, MatchCreatedNotice{
		Action: actionMatchCreated,
		Match:  view,
		MyRole: renju.RoleFirst,
	})
	if public {
		c.notifier.BroadcastAll(ctx, MatchAddedNotice{Action: actionMatchAdded, Match: view})
	}
	return nil
}

// resolveModes fetches active modes and reorders them to the client's
// list order. Unknown or inactive ids drop out silently.
func (c *Coordinator) resolveModes(ctx context.Context, refs []ModeRef) ([]renju.GameMode, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	ids := make([]int, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ID)
	}
	fetched, err := c.store.ListGameModes(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("listing game modes: %w", err)
	}
	byID := make(map[int]renju.GameMode, len(fetched))
	for _, mode := range fetched {
		byID[mode.ID] = mode
	}
	ordered := make([]renju.GameMode, 0, len(refs))
	for _, ref := range refs {
		if mode, ok := byID[ref.ID]; ok {
			ordered = append(ordered, mode)
		}
	}
	return ordered, nil
}

func (c *Coordinator) handleJoin(ctx context.Context, user User, data []byte) error {
	var req JoinRequest
	if err := json.Unmarshal(data, &req); err != nil || req.MatchID == uuid.Nil {
		return errBadPayload
	}

	entry, err := c.entry(ctx, req.MatchID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	if seat := entry.match.Seat(user.ID); seat != nil {
		view := NewMatchView(entry.match)
		role := seat.Role
		entry.mu.Unlock()
		c.notifier.SendTo(ctx, user.ID, MatchJoinedNotice{
			Action:   actionMatchJoined,
			Match:    view,
			MyRole:   role,
			Reopened: true,
		})
		return nil
	}
	entry.mu.Unlock()

	// The cross-match scan runs without the target lock held, then the
	// seat check repeats under the lock in case of a racing join.
	if err := c.checkNoUnfinished(user.ID, req.MatchID); err != nil {
		return err
	}

	entry.mu.Lock()
	m := entry.match
	snapshot := m.Clone()
	seat, reopened, err := m.Join(user.ID, user.Name)
	if err != nil {
		entry.mu.Unlock()
		return err
	}
	if !reopened {
		if err := c.store.SaveMatch(ctx, m); err != nil {
			entry.match = snapshot
			entry.mu.Unlock()
			return fmt.Errorf("saving join: %w", err)
		}
	}
	view := NewMatchView(m)
	role := seat.Role
	player := newPlayerView(seat)
	participants := participantIDs(m)
	public := listed(m)
	entry.mu.Unlock()

	c.notifier.SendTo(ctx, user.ID, MatchJoinedNotice{
		Action:   actionMatchJoined,
		Match:    view,
		MyRole:   role,
		Reopened: reopened,
	})
	if !reopened {
		c.notifier.BroadcastTo(ctx, participants, PlayerJoinedNotice{
			Action: actionPlayerJoined,
			Match:  view,
			Player: player,
		})
		if public {
			c.notifier.BroadcastAll(ctx, MatchUpdatedNotice{Action: actionMatchUpdated, Match: view})
		}
	}
	return nil
}

func (c *Coordinator) handleReady(ctx context.Context, user User, data []byte) error {
	var req ReadyRequest
	if err := json.Unmarshal(data, &req); err != nil || req.MatchID == uuid.Nil {
		return errBadPayload
	}

	entry, err := c.entry(ctx, req.MatchID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	m := entry.match
	snapshot := m.Clone()
	seat, err := m.SetReady(user.ID)
	if err != nil {
		entry.mu.Unlock()
		// A ready racing a start, or from a seat that cannot play, is
		// stale, not wrong. Swallow it.
		if errors.Is(err, renju.ErrUnsuitableState) || errors.Is(err, renju.ErrNotAPlayer) {
			return nil
		}
		return err
	}
	started := m.AttemptStart(time.Now().UTC())
	if err := c.store.SaveMatch(ctx, m); err != nil {
		entry.match = snapshot
		entry.mu.Unlock()
		return fmt.Errorf("saving ready: %w", err)
	}
	view := NewMatchView(m)
	role := seat.Role
	participants := participantIDs(m)
	public := listed(m)
	var firstMover uuid.UUID
	if started {
		for _, s := range m.Seats {
			if s.CanMove {
				firstMover = s.UserID
				break
			}
		}
	}
	entry.mu.Unlock()

	c.notifier.BroadcastTo(ctx, participants, ReadyAcceptedNotice{
		Action: actionReadyAccepted,
		Match:  view,
		Role:   role,
	})
	if started {
		c.notifier.BroadcastTo(ctx, participants, MatchStartedNotice{Action: actionMatchStarted, Match: view})
		if public {
			c.notifier.BroadcastAll(ctx, MatchUpdatedNotice{Action: actionMatchUpdated, Match: view})
		}
		c.notifier.SendTo(ctx, firstMover, UnblockBoardNotice{Action: actionUnblockBoard, MatchID: m.ID})
	}
	return nil
}

func (c *Coordinator) handleMove(ctx context.Context, user User, data []byte) error {
	var req MoveRequest
	if err := json.Unmarshal(data, &req); err != nil || req.MatchID == uuid.Nil {
		return errBadPayload
	}

	entry, err := c.entry(ctx, req.MatchID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	m := entry.match
	snapshot := m.Clone()
	res, err := m.ApplyMove(user.ID, req.X, req.Y, time.Now().UTC())
	if err != nil {
		entry.mu.Unlock()
		return err
	}
	if err := c.store.SaveMatch(ctx, m); err != nil {
		entry.match = snapshot
		entry.mu.Unlock()
		return fmt.Errorf("saving move: %w", err)
	}
	view := NewMatchView(m)
	participants := participantIDs(m)
	public := listed(m)
	result := m.ResultText()
	var nextMover uuid.UUID
	if res.NextMover != nil {
		nextMover = res.NextMover.UserID
	}
	entry.mu.Unlock()

	c.notifier.BroadcastTo(ctx, participants, MoveAppliedNotice{
		Action: actionMoveApplied,
		Match:  view,
		Move:   MoveView{ID: res.Move.ID, Role: res.Move.Role, X: res.Move.X, Y: res.Move.Y},
	})
	if res.Finished {
		c.evict(m.ID)
		c.notifier.BroadcastTo(ctx, participants, MatchFinishedNotice{
			Action:       actionMatchFinished,
			Match:        view,
			Result:       result,
			WinningCells: res.WinningCells,
		})
		if public {
			c.notifier.BroadcastAll(ctx, MatchUpdatedNotice{Action: actionMatchUpdated, Match: view})
		}
		return nil
	}
	if nextMover != uuid.Nil {
		c.notifier.SendTo(ctx, nextMover, UnblockBoardNotice{Action: actionUnblockBoard, MatchID: m.ID})
	}
	return nil
}

func (c *Coordinator) handleLeave(ctx context.Context, user User, data []byte) error {
	var req LeaveRequest
	if err := json.Unmarshal(data, &req); err != nil || req.MatchID == uuid.Nil {
		return errBadPayload
	}

	entry, err := c.entry(ctx, req.MatchID)
	if err != nil {
		return err
	}
	return c.leaveMatch(ctx, user, entry)
}

// leaveMatch runs the leave transition against a held entry. Shared by
// the leave intent and disconnect cleanup.
func (c *Coordinator) leaveMatch(ctx context.Context, user User, entry *matchEntry) error {
	entry.mu.Lock()
	m := entry.match
	matchID := m.ID
	snapshot := m.Clone()
	res, err := m.Leave(user.ID, time.Now().UTC())
	if err != nil {
		entry.mu.Unlock()
		return err
	}
	if res.AlreadyConcluded {
		entry.mu.Unlock()
		return nil
	}

	if res.Deleted {
		if err := c.store.DeleteMatch(ctx, matchID); err != nil {
			entry.match = snapshot
			entry.mu.Unlock()
			return fmt.Errorf("deleting match: %w", err)
		}
		public := listed(m)
		entry.mu.Unlock()

		c.evict(matchID)

		c.notifier.SendTo(ctx, user.ID, MatchLeftNotice{Action: actionMatchLeft, MatchID: matchID})
		if public {
			c.notifier.BroadcastAll(ctx, MatchRemovedNotice{Action: actionMatchRemoved, MatchID: matchID})
		}
		return nil
	}

	if err := c.store.SaveMatch(ctx, m); err != nil {
		entry.match = snapshot
		entry.mu.Unlock()
		return fmt.Errorf("saving leave: %w", err)
	}
	view := NewMatchView(m)
	participants := participantIDs(m)
	public := listed(m)
	result := m.ResultText()
	var nextMover uuid.UUID
	if res.NextMover != nil {
		nextMover = res.NextMover.UserID
	}
	entry.mu.Unlock()

	if res.Finished {
		c.evict(matchID)
	}

	c.notifier.SendTo(ctx, user.ID, MatchLeftNotice{Action: actionMatchLeft, MatchID: matchID})
	c.notifier.BroadcastTo(ctx, participants, MatchUpdatedNotice{Action: actionMatchUpdated, Match: view})
	if public {
		c.notifier.BroadcastAll(ctx, MatchUpdatedNotice{Action: actionMatchUpdated, Match: view})
	}
	if res.Finished {
		c.notifier.BroadcastTo(ctx, participants, MatchFinishedNotice{
			Action: actionMatchFinished,
			Match:  view,
			Result: result,
		})
	} else if nextMover != uuid.Nil {
		c.notifier.SendTo(ctx, nextMover, UnblockBoardNotice{Action: actionUnblockBoard, MatchID: matchID})
	}
	return nil
}

// DisconnectCleanup runs the leave transition for every match the user
// participates in. Called when the user's last connection drops.
func (c *Coordinator) DisconnectCleanup(ctx context.Context, user User) {
	c.mu.RLock()
	entries := make([]*matchEntry, 0, len(c.matches))
	for _, entry := range c.matches {
		entries = append(entries, entry)
	}
	c.mu.RUnlock()

	for _, entry := range entries {
		entry.mu.Lock()
		seated := entry.match.Seat(user.ID) != nil
		entry.mu.Unlock()
		if !seated {
			continue
		}
		err := c.leaveMatch(ctx, user, entry)
		if err != nil && !errors.Is(err, renju.ErrNotInMatch) && !errors.Is(err, renju.ErrNotAPlayer) {
			c.logger.Error("disconnect cleanup failed", "user_id", user.ID, "error", err)
		}
	}
}

// Greet sends the open match list plus the online count to a freshly
// connected user.
func (c *Coordinator) Greet(ctx context.Context, user User) {
	c.mu.RLock()
	entries := make([]*matchEntry, 0, len(c.matches))
	for _, entry := range c.matches {
		entries = append(entries, entry)
	}
	c.mu.RUnlock()

	views := []MatchView{}
	for _, entry := range entries {
		entry.mu.Lock()
		if entry.match.State == renju.StateCreated && listed(entry.match) {
			views = append(views, NewMatchView(entry.match))
		}
		entry.mu.Unlock()
	}

	c.notifier.SendTo(ctx, user.ID, MatchListNotice{
		Action:  actionMatchList,
		Matches: views,
		Online:  c.notifier.CountOnline(),
	})
}

// Restore loads unfinished matches into memory at startup.
func (c *Coordinator) Restore(ctx context.Context) error {
	matches, err := c.store.ListUnfinishedMatches(ctx)
	if err != nil {
		return fmt.Errorf("listing unfinished matches: %w", err)
	}
	c.mu.Lock()
	for _, m := range matches {
		c.matches[m.ID] = &matchEntry{match: m}
	}
	c.mu.Unlock()
	c.logger.Info("restored matches", "count", len(matches))
	return nil
}

// Cleanup purges old finished matches from the store and sweeps any
// finished entries still held in memory.
func (c *Coordinator) Cleanup(ctx context.Context, olderThan time.Duration) {
	removed, err := c.store.CleanupFinished(ctx, olderThan)
	if err != nil {
		c.logger.Error("cleanup failed", "error", err)
		return
	}
	if removed > 0 {
		c.logger.Info("purged finished matches", "count", removed)
	}

	c.mu.RLock()
	entries := make(map[uuid.UUID]*matchEntry, len(c.matches))
	for id, entry := range c.matches {
		entries[id] = entry
	}
	c.mu.RUnlock()

	for id, entry := range entries {
		entry.mu.Lock()
		finished := entry.match.State == renju.StateFinished
		entry.mu.Unlock()
		if finished {
			c.evict(id)
		}
	}
}

// ------------------------------------------------------------------
// Internals
// ------------------------------------------------------------------

// entry returns the live entry for a match, loading it from the store
// on a miss.
func (c *Coordinator) entry(ctx context.Context, id uuid.UUID) (*matchEntry, error) {
	c.mu.RLock()
	entry, ok := c.matches[id]
	c.mu.RUnlock()
	if ok {
		return entry, nil
	}

	m, err := c.store.LoadMatch(ctx, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.matches[id]; ok {
		return entry, nil
	}
	entry = &matchEntry{match: m}
	c.matches[id] = entry
	return entry, nil
}

// evict drops a match from the live map. Finished matches stay in the
// store until retention cleanup; a later join reloads them read-mostly.
func (c *Coordinator) evict(id uuid.UUID) {
	c.mu.Lock()
	delete(c.matches, id)
	c.mu.Unlock()
}

// checkNoUnfinished scans all live matches for an active seat held by
// the user, excluding the match they are acting on. Callers must not
// hold any entry lock.
func (c *Coordinator) checkNoUnfinished(userID uuid.UUID, exclude uuid.UUID) error {
	c.mu.RLock()
	entries := make([]*matchEntry, 0, len(c.matches))
	for id, entry := range c.matches {
		if id != exclude {
			entries = append(entries, entry)
		}
	}
	c.mu.RUnlock()

	for _, entry := range entries {
		entry.mu.Lock()
		active := entry.match.HasActiveSeat(userID)
		entry.mu.Unlock()
		if active {
			return renju.ErrUnfinishedMatch
		}
	}
	return nil
}

// listed reports whether a match appears in public fan-out. Private
// and solo practice matches never do.
func listed(m *renju.Match) bool {
	return !m.IsPrivate && !m.Rules.WithMyself
}

func participantIDs(m *renju.Match) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(m.Seats))
	for _, s := range m.Seats {
		ids = append(ids, s.UserID)
	}
	return ids
}
