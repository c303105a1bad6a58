// Package handlers exposes the lobby over HTTP: a small JSON API for rooms
// and archived games, and the WebSocket endpoint that carries play.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/jason-s-yu/rifts/service/internal/database"
	"github.com/jason-s-yu/rifts/service/internal/game"
	"github.com/jason-s-yu/rifts/service/internal/lobby"
	"github.com/jason-s-yu/rifts/service/internal/models"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	maxJSONBodyBytes int64 = 1 << 16
	defaultGameLimit       = 20
	maxGameLimit           = 100
)

var errSessionClosed = errors.New("session closed by server")

// Server holds the HTTP handlers.
type Server struct {
	lobby   *lobby.Lobby
	archive database.Archive // nil when archiving is off

	WriteTimeout   time.Duration // per WebSocket message
	OriginPatterns []string      // allowed cross-origin hosts for WebSocket upgrades
}

// New creates the handlers. archive may be nil.
func New(l *lobby.Lobby, archive database.Archive) *Server {
	return &Server{lobby: l, archive: archive, WriteTimeout: 5 * time.Second}
}

// Routes returns the request multiplexer.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /api/rooms", s.withJSON(s.handleCreateRoom))
	mux.HandleFunc("GET /api/rooms/{code}", s.withJSON(s.handleRoomInfo))
	mux.HandleFunc("GET /api/games", s.withJSON(s.handleRecentGames))
	mux.HandleFunc("GET /api/games/{id}", s.withJSON(s.handleGetGame))
	mux.HandleFunc("GET /ws/{code}", s.handleWebSocket)
	return mux
}

// ---- JSON helpers ----

func (s *Server) withJSON(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if r.Body != nil && r.Body != http.NoBody {
			r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
		}
		h(w, r)
		log.WithFields(log.Fields{"method": r.Method, "path": r.URL.Path, "took": time.Since(start)}).Debug("API request.")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---- API ----

type createRoomRequest struct {
	Passcode string `json:"passcode"`
}

type createRoomResponse struct {
	Code    string `json:"code"`
	Private bool   `json:"private"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	room, err := s.lobby.CreateRoom(req.Passcode)
	if err != nil {
		log.Errorf("Creating room: %v", err)
		writeError(w, http.StatusInternalServerError, "could not create room")
		return
	}
	writeJSON(w, http.StatusCreated, createRoomResponse{Code: room.Code, Private: req.Passcode != ""})
}

func (s *Server) handleRoomInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.lobby.Info(r.PathValue("code"))
	switch {
	case errors.Is(err, lobby.ErrBadCode):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, lobby.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, "room not found")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, info)
	}
}

func (s *Server) handleRecentGames(w http.ResponseWriter, r *http.Request) {
	limit := defaultGameLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxGameLimit)
	}
	games := []database.GameRecord{}
	if s.archive != nil {
		recs, err := s.archive.RecentGames(r.Context(), limit)
		if err != nil {
			log.Errorf("Listing archived games: %v", err)
			writeError(w, http.StatusInternalServerError, "archive unavailable")
			return
		}
		games = append(games, recs...)
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": games})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid game id")
		return
	}
	if s.archive == nil {
		writeError(w, http.StatusNotFound, "archiving is disabled")
		return
	}
	rec, err := s.archive.GetGame(r.Context(), id)
	switch {
	case errors.Is(err, database.ErrGameNotFound):
		writeError(w, http.StatusNotFound, "game not found")
	case err != nil:
		log.Errorf("Loading archived game %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "archive unavailable")
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}

// ---- WebSocket ----

// handleWebSocket joins the room named in the path and relays until either
// side closes. Query parameters: name, passcode, token.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.OriginPatterns})
	if err != nil {
		log.Warnf("WebSocket accept: %v", err)
		return
	}
	defer conn.CloseNow()

	q := r.URL.Query()
	sess, err := s.lobby.Join(r.Context(), r.PathValue("code"), lobby.JoinRequest{
		Name:     q.Get("name"),
		Passcode: q.Get("passcode"),
		Token:    q.Get("token"),
		Conn:     conn,
	})
	if err != nil {
		log.WithField("room", r.PathValue("code")).Infof("Join refused: %v", err)
		conn.Close(websocket.StatusPolicyViolation, err.Error())
		return
	}
	defer s.lobby.Leave(sess)
	entry := log.WithFields(log.Fields{"room": sess.Room.Code, "player": sess.Player.ID})

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error { return s.writeLoop(ctx, conn, sess.Events()) })
	g.Go(func() error { return s.readLoop(ctx, conn, sess) })
	err = g.Wait()

	switch status := websocket.CloseStatus(err); {
	case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
		entry.Debug("Connection closed by client.")
	case errors.Is(err, errSessionClosed):
		conn.Close(websocket.StatusGoingAway, "server shutting down")
	case err != nil && !errors.Is(err, context.Canceled):
		entry.Warnf("Connection ended: %v", err)
	}
}

// readLoop decodes client actions and hands them to the lobby.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, sess *lobby.Session) error {
	for {
		var action models.GameAction
		if err := wsjson.Read(ctx, conn, &action); err != nil {
			return err
		}
		s.lobby.Dispatch(sess, action)
	}
}

// writeLoop sends queued events, each bounded by WriteTimeout.
func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, events <-chan game.GameEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return errSessionClosed
			}
			wctx, cancel := context.WithTimeout(ctx, s.WriteTimeout)
			err := wsjson.Write(wctx, conn, ev)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
