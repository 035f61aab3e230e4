package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// ErrAlreadyConnected rejects a second live connection for a user when
// duplicates are disallowed.
var ErrAlreadyConnected = errors.New("ALREADY_CONNECTED: user has a live connection")

const writeTimeout = 5 * time.Second

// Registry tracks live websocket connections by user. It only moves
// bytes; it has no knowledge of matches.
type Registry struct {
	logger          *slog.Logger
	allowDuplicates bool

	mu    sync.RWMutex
	conns map[uuid.UUID][]*websocket.Conn
}

func NewRegistry(logger *slog.Logger, allowDuplicates bool) *Registry {
	return &Registry{
		logger:          logger,
		allowDuplicates: allowDuplicates,
		conns:           make(map[uuid.UUID][]*websocket.Conn),
	}
}

// Register adds a connection for the user. With duplicates disallowed,
// a user who already holds a connection is rejected and the existing
// connection stays untouched.
func (r *Registry) Register(userID uuid.UUID, conn *websocket.Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.allowDuplicates && len(r.conns[userID]) > 0 {
		return ErrAlreadyConnected
	}
	r.conns[userID] = append(r.conns[userID], conn)
	return nil
}

// Unregister removes exactly the given connection. Other connections of
// the same user (duplicates allowed) survive.
func (r *Registry) Unregister(userID uuid.UUID, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	live := r.conns[userID][:0]
	for _, c := range r.conns[userID] {
		if c != conn {
			live = append(live, c)
		}
	}
	if len(live) == 0 {
		delete(r.conns, userID)
	} else {
		r.conns[userID] = live
	}
}

// Connected reports whether the user holds at least one live connection.
func (r *Registry) Connected(userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

// CountOnline returns the number of distinct connected users.
func (r *Registry) CountOnline() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// SendTo delivers the payload to every connection of one user. A user
// with no connection is a no-op.
func (r *Registry) SendTo(ctx context.Context, userID uuid.UUID, payload any) error {
	return r.BroadcastTo(ctx, []uuid.UUID{userID}, payload)
}

// BroadcastTo delivers the payload once per connection of each listed
// user. The payload is marshalled once; sends happen outside the lock.
func (r *Registry) BroadcastTo(ctx context.Context, userIDs []uuid.UUID, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	r.mu.RLock()
	targets := make(map[uuid.UUID][]*websocket.Conn, len(userIDs))
	for _, id := range userIDs {
		if conns := r.conns[id]; len(conns) > 0 {
			targets[id] = append([]*websocket.Conn(nil), conns...)
		}
	}
	r.mu.RUnlock()

	for id, conns := range targets {
		for _, conn := range conns {
			r.write(ctx, id, conn, data)
		}
	}
	return nil
}

// BroadcastAll delivers the payload to every connected user.
func (r *Registry) BroadcastAll(ctx context.Context, payload any) error {
	r.mu.RLock()
	ids := make([]uuid.UUID, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	return r.BroadcastTo(ctx, ids, payload)
}

// write sends one frame. A failed write drops and closes the
// connection; the user's other connections are unaffected.
func (r *Registry) write(ctx context.Context, userID uuid.UUID, conn *websocket.Conn, data []byte) {
	if conn == nil {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := conn.Write(wctx, websocket.MessageText, data); err != nil {
		r.logger.Warn("dropping dead connection", "user_id", userID, "error", err)
		r.Unregister(userID, conn)
		conn.Close(websocket.StatusInternalError, "write failed")
	}
}

// CloseAll closes every live connection. Used on shutdown.
func (r *Registry) CloseAll(code websocket.StatusCode, reason string) {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[uuid.UUID][]*websocket.Conn)
	r.mu.Unlock()

	for _, list := range conns {
		for _, conn := range list {
			if conn != nil {
				conn.Close(code, reason)
			}
		}
	}
}
