// Package lobby keeps the registry of rooms. A room holds one game, up to two
// players and up to two spectators, and fans the game's events out to the
// sessions of its occupants.
package lobby

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	mrand "math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	engine "github.com/jason-s-yu/rifts/engine"
	"github.com/jason-s-yu/rifts/service/internal/auth"
	"github.com/jason-s-yu/rifts/service/internal/cache"
	"github.com/jason-s-yu/rifts/service/internal/database"
	"github.com/jason-s-yu/rifts/service/internal/game"
	"github.com/jason-s-yu/rifts/service/internal/models"
	log "github.com/sirupsen/logrus"
)

const (
	CodeLength    = 6
	MaxPlayers    = 2
	MaxSpectators = 2

	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	outboxSize   = 64
)

var (
	ErrBadCode      = errors.New("room codes are 6 letters or digits")
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")
	ErrBadPasscode  = errors.New("wrong passcode")
	ErrSeatInUse    = errors.New("seat is already connected")
)

// Store is the room snapshot cache. *cache.Store implements it.
type Store interface {
	game.Recorder
	LoadSnapshot(ctx context.Context, code string) (*cache.RoomSnapshot, error)
	DeleteSnapshot(ctx context.Context, code string) error
}

// Options configures a Lobby. Store and Archive may be nil.
type Options struct {
	Issuer  *auth.Issuer
	Store   Store
	Archive database.Archive
	Rules   engine.HouseRules
}

// Lobby is the room registry.
type Lobby struct {
	mu      sync.Mutex
	rooms   map[string]*Room
	issuer  *auth.Issuer
	store   Store
	archive database.Archive
	rules   engine.HouseRules

	flip func() bool // coin flip; true gives the first player white
}

// New creates an empty lobby.
func New(opts Options) *Lobby {
	return &Lobby{
		rooms:   make(map[string]*Room),
		issuer:  opts.Issuer,
		store:   opts.Store,
		archive: opts.Archive,
		rules:   opts.Rules,
		flip:    func() bool { return mrand.IntN(2) == 0 },
	}
}

// Room is one game and its occupants. Everything but Code is protected by
// Game.Mu.
type Room struct {
	Code      string
	Game      *game.RiftGame
	CreatedAt time.Time

	sessions map[uuid.UUID]*Session
	waiting  *models.Player // first player, seated by the coin flip
	closed   bool
}

// Session is one connected occupant.
type Session struct {
	Player *models.Player
	Room   *Room
	Token  string // seat token; empty for spectators and the waiting player

	out chan game.GameEvent
}

// Events delivers the events addressed to this occupant. It is closed when
// the session leaves.
func (s *Session) Events() <-chan game.GameEvent { return s.out }

// JoinRequest carries the parameters of a join.
type JoinRequest struct {
	Name     string
	Passcode string
	Token    string // seat token from an earlier join; reclaims the seat
	Conn     *websocket.Conn
}

// RoomInfo is the public summary of a room.
type RoomInfo struct {
	Code       string         `json:"code"`
	Private    bool           `json:"private"`
	Players    int            `json:"players"`
	Spectators int            `json:"spectators"`
	Waiting    bool           `json:"waiting"` // one player is waiting for an opponent
	State      game.SyncState `json:"state"`
}

// NormalizeCode upper-cases a room code and checks its format.
func NormalizeCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != CodeLength {
		return "", fmt.Errorf("%q: %w", code, ErrBadCode)
	}
	for _, r := range code {
		if !strings.ContainsRune(codeAlphabet, r) {
			return "", fmt.Errorf("%q: %w", code, ErrBadCode)
		}
	}
	return code, nil
}

func newCode() (string, error) {
	b := make([]byte, CodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b), nil
}

// CreateRoom registers a new room under a fresh code. A non-empty passcode
// makes the room private.
func (l *Lobby) CreateRoom(passcode string) (*Room, error) {
	var hash []byte
	if passcode != "" {
		var err error
		if hash, err = auth.HashPasscode(passcode); err != nil {
			return nil, fmt.Errorf("hash passcode: %w", err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for attempt := 0; attempt < 16; attempt++ {
		code, err := newCode()
		if err != nil {
			return nil, fmt.Errorf("room code: %w", err)
		}
		if _, taken := l.rooms[code]; taken {
			continue
		}
		r := l.newRoomLocked(game.NewRiftGame(code, l.rules))
		r.Game.PassHash = hash
		log.WithFields(log.Fields{"room": code, "private": hash != nil}).Info("Room created.")
		return r, nil
	}
	return nil, errors.New("no free room code")
}

// newRoomLocked registers a room around g.
// Assumes l.mu is held by caller.
func (l *Lobby) newRoomLocked(g *game.RiftGame) *Room {
	r := &Room{
		Code:      g.RoomCode,
		Game:      g,
		CreatedAt: time.Now(),
		sessions:  make(map[uuid.UUID]*Session),
	}
	if l.store != nil {
		g.Cache = l.store
	}
	if l.archive != nil {
		g.Archive = l.archive
	}
	g.BroadcastFn = r.broadcast
	g.BroadcastToPlayerFn = r.sendTo
	g.OnGameEnd = func(code string, winner engine.Color, reason string) {
		log.WithFields(log.Fields{"room": code, "winner": winner.String(), "reason": reason}).Info("Room game finished.")
	}
	l.rooms[g.RoomCode] = r
	return r
}

// Room returns a registered room.
func (l *Lobby) Room(code string) (*Room, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rooms[code]
	return r, ok
}

// RoomCount returns the number of open rooms.
func (l *Lobby) RoomCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rooms)
}

// Info summarizes a room for the HTTP API.
func (l *Lobby) Info(code string) (RoomInfo, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return RoomInfo{}, err
	}
	r, ok := l.Room(code)
	if !ok {
		return RoomInfo{}, fmt.Errorf("%s: %w", code, ErrRoomNotFound)
	}
	r.Game.Mu.Lock()
	defer r.Game.Mu.Unlock()
	return r.infoLocked(), nil
}

// infoLocked builds the room summary.
// Assumes Game.Mu is held by caller.
func (r *Room) infoLocked() RoomInfo {
	players, spectators := r.countsLocked()
	return RoomInfo{
		Code:       r.Code,
		Private:    r.Game.PassHash != nil,
		Players:    players,
		Spectators: spectators,
		Waiting:    r.waiting != nil,
		State:      r.Game.GetCurrentSyncState(uuid.Nil),
	}
}

// countsLocked counts seated or waiting players, including disconnected
// seat holders, and connected spectators.
// Assumes Game.Mu is held by caller.
func (r *Room) countsLocked() (players, spectators int) {
	for _, p := range r.Game.Seats {
		if p != nil {
			players++
		}
	}
	if r.waiting != nil {
		players++
	}
	for _, s := range r.sessions {
		if s.Player.Role == models.RoleSpectator {
			spectators++
		}
	}
	return players, spectators
}

// lookup returns the room for code, rebuilding it from the snapshot cache
// after a restart, or creating a public room when nothing is known.
func (l *Lobby) lookup(ctx context.Context, code string) *Room {
	if r, ok := l.Room(code); ok {
		return r
	}
	var snap *cache.RoomSnapshot
	if l.store != nil {
		var err error
		snap, err = l.store.LoadSnapshot(ctx, code)
		if err != nil && !errors.Is(err, cache.ErrSnapshotNotFound) {
			log.WithField("room", code).Warnf("Loading room snapshot: %v", err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.rooms[code]; ok {
		return r
	}
	if snap != nil {
		log.WithFields(log.Fields{"room": code, "game": snap.GameID}).Info("Room restored from snapshot.")
		return l.newRoomLocked(game.RestoreRiftGame(snap))
	}
	log.WithField("room", code).Info("Room created on join.")
	return l.newRoomLocked(game.NewRiftGame(code, l.rules))
}

// Join adds an occupant to the room with the given code. A valid seat token
// reclaims its seat; otherwise the newcomer takes a free player slot, then a
// spectator slot.
func (l *Lobby) Join(ctx context.Context, code string, req JoinRequest) (*Session, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}
	for {
		r := l.lookup(ctx, code)
		r.Game.Mu.Lock()
		if r.closed {
			// Lost a race with the last occupant leaving; look again.
			r.Game.Mu.Unlock()
			continue
		}
		s, err := l.joinLocked(r, req)
		r.Game.Mu.Unlock()
		return s, err
	}
}

// joinLocked places the newcomer.
// Assumes Game.Mu is held by caller.
func (l *Lobby) joinLocked(r *Room, req JoinRequest) (*Session, error) {
	g := r.Game
	if req.Token != "" {
		if s, err := l.reclaimLocked(r, req); s != nil || err != nil {
			return s, err
		}
	}
	if g.PassHash != nil && !auth.CheckPasscode(g.PassHash, req.Passcode) {
		return nil, ErrBadPasscode
	}

	p := &models.Player{
		ID:        uuid.New(),
		User:      &models.User{ID: uuid.New(), Username: strings.TrimSpace(req.Name)},
		Conn:      req.Conn,
		Connected: true,
	}
	players, spectators := r.countsLocked()
	s := &Session{Player: p, Room: r, out: make(chan game.GameEvent, outboxSize)}
	entry := log.WithFields(log.Fields{"room": r.Code, "player": p.ID, "name": p.Name()})

	switch {
	case players < MaxPlayers:
		p.Role = models.RolePlayer
		r.sessions[p.ID] = s
		l.seatLocked(r, s)
		entry.Infof("Joined as player (%d/%d).", players+1, MaxPlayers)
	case spectators < MaxSpectators:
		p.Role = models.RoleSpectator
		r.sessions[p.ID] = s
		entry.Infof("Joined as spectator (%d/%d).", spectators+1, MaxSpectators)
	default:
		return nil, ErrRoomFull
	}

	g.AnnounceRoom(r.roomPayloadLocked(p, "joined"))
	g.HandlePlayerAction(p.ID, models.GameAction{ActionType: models.ActionSync})
	return s, nil
}

// seatLocked gives a new player a seat. A player joining an empty room
// waits; the second one triggers the coin flip. A player filling a seat that
// was freed keeps the color of that seat.
// Assumes Game.Mu is held by caller.
func (l *Lobby) seatLocked(r *Room, s *Session) {
	g := r.Game
	p := s.Player
	white, black := g.Seats[engine.White], g.Seats[engine.Black]
	switch {
	case white == nil && black == nil && r.waiting == nil:
		r.waiting = p
	case white == nil && black == nil:
		first := r.waiting
		r.waiting = nil
		firstColor := engine.Black
		if l.flip() {
			firstColor = engine.White
		}
		g.Seat(first, firstColor)
		g.Seat(p, firstColor.Opponent())
		log.WithFields(log.Fields{"room": r.Code, "white": g.Seats[engine.White].Name(), "black": g.Seats[engine.Black].Name()}).
			Info("Coin flip assigned colors.")
		l.assignSeatLocked(r, first, firstColor)
		l.assignSeatLocked(r, p, firstColor.Opponent())
	case white == nil:
		g.Seat(p, engine.White)
		l.assignSeatLocked(r, p, engine.White)
	default:
		g.Seat(p, engine.Black)
		l.assignSeatLocked(r, p, engine.Black)
	}
}

// assignSeatLocked issues a seat token and tells the player their color.
// Assumes Game.Mu is held by caller.
func (l *Lobby) assignSeatLocked(r *Room, p *models.Player, c engine.Color) {
	s := r.sessions[p.ID]
	if s == nil || l.issuer == nil {
		return
	}
	token, err := l.issuer.Issue(p.ID, r.Code, c, p.Name())
	if err != nil {
		log.WithField("room", r.Code).Errorf("Issuing seat token: %v", err)
		return
	}
	s.Token = token
	s.deliver(game.GameEvent{
		Type:    game.EventRoomUpdated,
		Color:   c.String(),
		Payload: map[string]interface{}{"seat": c.String(), "token": token},
	})
}

// reclaimLocked handles a join carrying a seat token. It returns nil, nil
// when the token does not apply to this room so the join proceeds normally.
// Assumes Game.Mu is held by caller.
func (l *Lobby) reclaimLocked(r *Room, req JoinRequest) (*Session, error) {
	if l.issuer == nil {
		return nil, nil
	}
	claims, err := l.issuer.Parse(req.Token)
	if err != nil {
		log.WithField("room", r.Code).Debugf("Ignoring seat token: %v", err)
		return nil, nil
	}
	if claims.Room != r.Code {
		return nil, nil
	}
	id, _ := claims.PlayerID()
	c, err := claims.SeatColor()
	if err != nil {
		return nil, nil
	}

	g := r.Game
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = claims.Name
	}
	p := &models.Player{
		ID:        id,
		User:      &models.User{ID: uuid.New(), Username: name},
		Role:      models.RolePlayer,
		Conn:      req.Conn,
		Connected: true,
	}
	holder := g.Seats[c]
	switch {
	case holder == nil:
		// Restored room, or a seat freed during setup.
		g.Seat(p, c)
		if w := r.waiting; w != nil {
			r.waiting = nil
			g.Seat(w, c.Opponent())
			l.assignSeatLocked(r, w, c.Opponent())
		}
	case holder.ID != id:
		return nil, nil
	case holder.Connected:
		return nil, ErrSeatInUse
	}

	s := &Session{Player: p, Room: r, Token: req.Token, out: make(chan game.GameEvent, outboxSize)}
	r.sessions[id] = s
	g.HandleReconnect(p)
	log.WithFields(log.Fields{"room": r.Code, "player": id, "color": c.String()}).Info("Seat reclaimed.")
	g.AnnounceRoom(r.roomPayloadLocked(g.Seats[c], "reconnected"))
	return s, nil
}

// Dispatch applies an action sent by the session's occupant.
func (l *Lobby) Dispatch(s *Session, action models.GameAction) {
	g := s.Room.Game
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if _, ok := s.Room.sessions[s.Player.ID]; !ok {
		return
	}
	g.HandlePlayerAction(s.Player.ID, action)
}

// Leave removes the session. A seat held in a game being played stays
// reserved for its token; in setup or after the game it is freed. The room
// closes once nobody is connected, abandoning a game in progress.
func (l *Lobby) Leave(s *Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := s.Room
	g := r.Game
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if cur, ok := r.sessions[s.Player.ID]; !ok || cur != s {
		return
	}
	delete(r.sessions, s.Player.ID)
	close(s.out)

	p := s.Player
	entry := log.WithFields(log.Fields{"room": r.Code, "player": p.ID, "name": p.Name()})
	switch {
	case r.waiting != nil && r.waiting.ID == p.ID:
		r.waiting = nil
	case p.Role == models.RolePlayer && g.Engine.Phase == engine.PhasePlaying:
		g.HandleDisconnect(p.ID)
	case p.Role == models.RolePlayer:
		g.Unseat(p.ID)
	}
	entry.Info("Left room.")

	if len(r.sessions) > 0 {
		g.AnnounceRoom(r.roomPayloadLocked(p, "left"))
		return
	}
	r.closed = true
	delete(l.rooms, r.Code)
	g.Abandon()
	if l.store != nil {
		code := r.Code
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			g.Wait()
			if err := l.store.DeleteSnapshot(ctx, code); err != nil {
				log.WithField("room", code).Warnf("Deleting room snapshot: %v", err)
			}
		}()
	}
	entry.Info("Room closed.")
}

// Close abandons every open room, for server shutdown.
func (l *Lobby) Close() {
	l.mu.Lock()
	rooms := make([]*Room, 0, len(l.rooms))
	for code, r := range l.rooms {
		rooms = append(rooms, r)
		delete(l.rooms, code)
	}
	l.mu.Unlock()
	for _, r := range rooms {
		r.Game.Mu.Lock()
		r.closed = true
		r.Game.Abandon()
		for id, s := range r.sessions {
			delete(r.sessions, id)
			close(s.out)
		}
		r.Game.Mu.Unlock()
		r.Game.Wait()
	}
}

// roomPayloadLocked describes an occupancy change.
// Assumes Game.Mu is held by caller.
func (r *Room) roomPayloadLocked(p *models.Player, change string) map[string]interface{} {
	players, spectators := r.countsLocked()
	return map[string]interface{}{
		"change":     change,
		"player":     p.Name(),
		"role":       string(p.Role),
		"players":    players,
		"spectators": spectators,
		"waiting":    r.waiting != nil,
		"phase":      r.Game.Engine.Phase.String(),
	}
}

// broadcast is the game's BroadcastFn.
// Assumes Game.Mu is held by caller.
func (r *Room) broadcast(ev game.GameEvent) {
	for _, s := range r.sessions {
		s.deliver(ev)
	}
}

// sendTo is the game's BroadcastToPlayerFn.
// Assumes Game.Mu is held by caller.
func (r *Room) sendTo(playerID uuid.UUID, ev game.GameEvent) {
	if s, ok := r.sessions[playerID]; ok {
		s.deliver(ev)
	}
}

// deliver queues an event without blocking. A client that stops reading
// loses events rather than stalling the room.
func (s *Session) deliver(ev game.GameEvent) {
	select {
	case s.out <- ev:
	default:
		log.WithFields(log.Fields{"room": s.Room.Code, "player": s.Player.ID, "event": ev.Type}).
			Warn("Outbox full, dropping event.")
	}
}
