package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
)

func (s *Server) RegisterRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.indexHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/ws", s.websocketHandler)

	return s.corsMiddleware(mux)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "renju server"})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.pool.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "down"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "up"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// websocketHandler authenticates, upgrades, registers and then pumps
// frames into the coordinator until the connection dies.
func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	user, err := s.identity.Resolve(r.Context(), token)
	if err != nil {
		if errors.Is(err, ErrUnknownToken) {
			http.Error(w, "unknown token", http.StatusUnauthorized)
			return
		}
		s.logger.Error("resolving identity", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Error("websocket accept failed", "error", err)
		return
	}

	if err := s.registry.Register(user.ID, conn); err != nil {
		data, _ := json.Marshal(AlreadyConnectedNotice{
			Action: actionAlreadyConnected,
			Detail: err.Error(),
		})
		conn.Write(r.Context(), websocket.MessageText, data)
		conn.Close(websocket.StatusPolicyViolation, "already connected")
		return
	}

	s.logger.Info("user connected", "user_id", user.ID, "name", user.Name)
	defer func() {
		s.registry.Unregister(user.ID, conn)
		if !s.registry.Connected(user.ID) {
			s.coordinator.DisconnectCleanup(context.Background(), user)
		}
		s.logger.Info("user disconnected", "user_id", user.ID)
	}()

	s.coordinator.Greet(r.Context(), user)

	s.readLoop(r.Context(), user, conn)
}

func (s *Server) readLoop(ctx context.Context, user User, conn *websocket.Conn) {
	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				s.logger.Debug("read ended", "user_id", user.ID, "error", err)
			}
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.registry.SendTo(ctx, user.ID, ErrorNotice{
				Action: actionError,
				Detail: "BAD_PAYLOAD: invalid JSON",
			})
			continue
		}

		if msg.Action == actionPing {
			s.registry.SendTo(ctx, user.ID, PongNotice{Action: actionPong})
			continue
		}

		if err := s.coordinator.Dispatch(ctx, user, msg.Action, data); err != nil {
			conn.Close(websocket.StatusInternalError, "internal error")
			return
		}
	}
}
