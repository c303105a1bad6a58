// Package game runs one authoritative Rifts of Chaos game per room. Clients
// send commands; the server applies them to its own engine state and
// broadcasts what happened.
package game

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	engine "github.com/jason-s-yu/rifts/engine"
	"github.com/jason-s-yu/rifts/service/internal/cache"
	"github.com/jason-s-yu/rifts/service/internal/database"
	"github.com/jason-s-yu/rifts/service/internal/models"
	log "github.com/sirupsen/logrus"
)

// OnGameEndFunc is called once when a game finishes, with the room code, the
// winning color and the reason (king_captured, resign or abandoned).
type OnGameEndFunc func(roomCode string, winner engine.Color, reason string)

// GameEventType represents the type of a game-related event broadcast via WebSockets.
type GameEventType string

const (
	EventRoomUpdated       GameEventType = "room_updated"        // Public: occupants or seats changed.
	EventGameStarted       GameEventType = "game_started"        // Public: setup finished, play begins.
	EventMoveMade          GameEventType = "move_made"           // Public: a move was committed.
	EventRiftTriggered     GameEventType = "rift_triggered"      // Public: a rift was entered; a roll is pending.
	EventRiftEffectApplied GameEventType = "rift_effect_applied" // Public: an effect resolved (or suspended on a choice).
	EventChoiceRequired    GameEventType = "choice_required"     // Public: the activator must pick an option.
	EventTurnChanged       GameEventType = "turn_changed"        // Public: the side to move changed.
	EventGameEnd           GameEventType = "game_end"            // Public: the game is over.
	EventSyncState         GameEventType = "sync_state"          // Full state for one client, or all on change.
	EventError             GameEventType = "error"               // Private: a command was rejected.
)

// Game end reasons.
const (
	ReasonKingCaptured = "king_captured"
	ReasonResign       = "resign"
	ReasonAbandoned    = "abandoned"
)

// EventUser identifies a user within a GameEvent payload.
type EventUser struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username,omitempty"`
}

// EventMove describes a committed move.
type EventMove struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Piece    string `json:"piece"`
	Captured string `json:"captured,omitempty"`
	Rift     bool   `json:"rift,omitempty"` // the move entered a rift
}

// GameEvent is the standard structure for broadcasting game state changes and actions.
type GameEvent struct {
	Type    GameEventType       `json:"type"`
	User    *EventUser          `json:"user,omitempty"`  // The user initiating the event.
	Color   string              `json:"color,omitempty"` // The color the event concerns.
	Move    *EventMove          `json:"move,omitempty"`
	Effect  *engine.EffectView  `json:"effect,omitempty"`
	Pending *engine.PendingView `json:"pending,omitempty"`

	Payload map[string]interface{} `json:"payload,omitempty"` // Additional arbitrary data.

	State *SyncState `json:"state,omitempty"` // Full state for sync events.
}

// Recorder receives the action stream and room snapshots. *cache.Store
// implements it.
type Recorder interface {
	PublishGameAction(ctx context.Context, rec cache.GameActionRecord) error
	SaveSnapshot(ctx context.Context, snap cache.RoomSnapshot) error
}

var (
	ErrNotSeated     = errors.New("you do not hold a seat in this game")
	ErrSeatsOpen     = errors.New("waiting for an opponent")
	ErrUnknownAction = errors.New("unknown action type")
	ErrBadPayload    = errors.New("malformed action payload")
)

// RiftGame is the authoritative state of one room's game.
type RiftGame struct {
	ID       uuid.UUID // Changes with every new game in the room.
	RoomCode string
	Rules    engine.HouseRules
	PassHash []byte // bcrypt hash of the room passcode; nil for public rooms

	Engine engine.GameState // The authoritative game state.
	Seats  [2]*models.Player // Indexed by engine.Color.

	StartedAt   time.Time
	actionIndex int  // Sequential index for the action stream.
	ended       bool // finishGame ran for the current game.

	Mu sync.Mutex // Protects everything above. Callers hold it around every method.

	// Communication Callbacks
	BroadcastFn         func(ev GameEvent)                     // Sends an event to every room occupant.
	BroadcastToPlayerFn func(playerID uuid.UUID, ev GameEvent) // Sends an event to one occupant.
	OnGameEnd           OnGameEndFunc

	Cache   Recorder         // nil disables the action stream and snapshots.
	Archive database.Archive // nil disables archiving.

	pending sync.WaitGroup // background cache and archive writes
}

// NewRiftGame creates a game in the setup phase.
func NewRiftGame(roomCode string, rules engine.HouseRules) *RiftGame {
	id, _ := uuid.NewRandom()
	return &RiftGame{
		ID:       id,
		RoomCode: roomCode,
		Rules:    rules,
		Engine:   engine.NewGame(uint64(time.Now().UnixNano()), rules),
	}
}

// RestoreRiftGame rebuilds a game from a cached snapshot. Seats are empty
// until their holders reconnect.
func RestoreRiftGame(snap *cache.RoomSnapshot) *RiftGame {
	return &RiftGame{
		ID:       snap.GameID,
		RoomCode: snap.Code,
		Rules:    snap.Engine.Rules,
		PassHash: snap.PassHash,
		Engine:   snap.Engine,
		ended:    snap.Engine.IsTerminal(),
	}
}

func (g *RiftGame) logger() *log.Entry {
	return log.WithFields(log.Fields{"game": g.ID, "room": g.RoomCode})
}

// Seat puts p in the seat of color c. A seat already held by someone else is
// not taken over.
// Assumes lock is held by caller.
func (g *RiftGame) Seat(p *models.Player, c engine.Color) bool {
	if c != engine.White && c != engine.Black {
		return false
	}
	if cur := g.Seats[c]; cur != nil && cur.ID != p.ID {
		return false
	}
	p.Role = models.RolePlayer
	g.Seats[c] = p
	g.logAction(p.ID, "player_seated", map[string]interface{}{"color": c.String(), "username": p.Name()})
	return true
}

// Unseat frees the seat held by playerID.
// Assumes lock is held by caller.
func (g *RiftGame) Unseat(playerID uuid.UUID) {
	for c, p := range g.Seats {
		if p != nil && p.ID == playerID {
			g.Seats[c] = nil
			g.logAction(playerID, "player_unseated", map[string]interface{}{"color": engine.Color(c).String()})
		}
	}
}

// ColorOf returns the seat color of a player.
// Assumes lock is held by caller.
func (g *RiftGame) ColorOf(playerID uuid.UUID) (engine.Color, bool) {
	for c, p := range g.Seats {
		if p != nil && p.ID == playerID {
			return engine.Color(c), true
		}
	}
	return engine.NoColor, false
}

// SeatsFilled reports whether both colors are held.
// Assumes lock is held by caller.
func (g *RiftGame) SeatsFilled() bool {
	return g.Seats[engine.White] != nil && g.Seats[engine.Black] != nil
}

// HandlePlayerAction validates and applies a client command. Rejections are
// reported privately to the sender and never broadcast.
// Assumes lock is held by the caller.
func (g *RiftGame) HandlePlayerAction(playerID uuid.UUID, action models.GameAction) {
	if action.ActionType == models.ActionSync {
		g.sendSyncState(playerID)
		return
	}
	color, seated := g.ColorOf(playerID)
	if !seated {
		g.rejectAction(playerID, action, ErrNotSeated)
		return
	}

	var err error
	switch action.ActionType {
	case models.ActionPlaceRift, models.ActionRandomRifts, models.ActionClearRifts, models.ActionStartGame:
		err = g.handleSetupAction(playerID, action)
	case models.ActionMove:
		err = g.handleMove(playerID, color, action)
	case models.ActionRoll:
		err = g.handleRoll(playerID, color)
	case models.ActionChoice:
		err = g.ProcessChoice(playerID, color, action)
	case models.ActionPass:
		err = g.handlePass(playerID, color)
	case models.ActionResign:
		err = g.handleResign(playerID, color)
	case models.ActionNewGame:
		err = g.handleNewGame(playerID)
	default:
		err = ErrUnknownAction
	}
	if err != nil {
		g.rejectAction(playerID, action, err)
	}
}

// rejectAction reports a failed command to its sender.
// Assumes lock is held by caller.
func (g *RiftGame) rejectAction(playerID uuid.UUID, action models.GameAction, err error) {
	g.logger().WithFields(log.Fields{"player": playerID, "action": action.ActionType}).
		Debugf("Action rejected: %v", err)
	g.fireEventToPlayer(playerID, GameEvent{
		Type: EventError,
		Payload: map[string]interface{}{
			"action":  action.ActionType,
			"code":    errorCode(err),
			"message": err.Error(),
		},
	})
}

// HandleDisconnect marks a seated player as disconnected. The seat stays
// reserved for a reconnect.
// Assumes lock is held by caller.
func (g *RiftGame) HandleDisconnect(playerID uuid.UUID) {
	c, ok := g.ColorOf(playerID)
	if !ok {
		return
	}
	p := g.Seats[c]
	if !p.Connected {
		return
	}
	p.Connected = false
	p.Conn = nil
	g.logger().WithField("player", playerID).Infof("%s disconnected.", c)
	g.logAction(playerID, "player_disconnect", nil)
	g.broadcastSyncStateToAll()
}

// HandleReconnect restores a seated player's connection and sends them the
// current state.
// Assumes lock is held by caller.
func (g *RiftGame) HandleReconnect(p *models.Player) {
	c, ok := g.ColorOf(p.ID)
	if !ok {
		return
	}
	seat := g.Seats[c]
	seat.Conn = p.Conn
	seat.Connected = true
	if p.User != nil {
		seat.User = p.User
	}
	g.logger().WithField("player", p.ID).Infof("%s reconnected.", c)
	g.logAction(p.ID, "player_reconnect", map[string]interface{}{"username": seat.Name()})
	g.sendSyncState(p.ID)
}

// Abandon ends an unfinished game when its room closes. A game still in
// setup is dropped without a result.
// Assumes lock is held by caller.
func (g *RiftGame) Abandon() {
	if g.ended || g.Engine.Phase != engine.PhasePlaying {
		return
	}
	g.logger().Info("Room closed with the game in progress.")
	g.finishGame(engine.NoColor, ReasonAbandoned)
}

// AnnounceRoom broadcasts a room change, such as an occupant joining or a
// seat being assigned, followed by the public state.
// Assumes lock is held by caller.
func (g *RiftGame) AnnounceRoom(payload map[string]interface{}) {
	g.fireEvent(GameEvent{Type: EventRoomUpdated, Payload: payload})
	g.broadcastSyncStateToAll()
}

// Wait blocks until background cache and archive writes have finished.
func (g *RiftGame) Wait() {
	g.pending.Wait()
}

// fireEvent broadcasts an event to all connected occupants via the BroadcastFn callback.
// Assumes lock is held by caller.
func (g *RiftGame) fireEvent(ev GameEvent) {
	if g.BroadcastFn != nil {
		g.BroadcastFn(ev)
	} else {
		g.logger().Warnf("BroadcastFn is nil, cannot broadcast event type %s.", ev.Type)
	}
}

// fireEventToPlayer sends an event to a single occupant via the BroadcastToPlayerFn callback.
// Assumes lock is held by caller.
func (g *RiftGame) fireEventToPlayer(playerID uuid.UUID, ev GameEvent) {
	if g.BroadcastToPlayerFn != nil {
		g.BroadcastToPlayerFn(playerID, ev)
	} else {
		g.logger().Warnf("BroadcastToPlayerFn is nil, cannot send event type %s to %s.", ev.Type, playerID)
	}
}

// finishGame archives the result, announces it and runs OnGameEnd. winner
// is NoColor for an abandoned game.
// Assumes lock is held by caller.
func (g *RiftGame) finishGame(winner engine.Color, reason string) {
	if g.ended {
		return
	}
	g.ended = true

	fen := PositionFEN(&g.Engine)
	entry := g.logger().WithFields(log.Fields{"winner": winner.String(), "reason": reason, "turns": g.Engine.TurnNumber})
	entry.Info("Game over.")
	if log.IsLevelEnabled(log.DebugLevel) {
		entry.Debugf("Final position %s\n%s", fen, DrawBoard(&g.Engine))
	}

	payload := map[string]interface{}{"winner": winner.String(), "reason": reason, "fen": fen}
	g.logAction(uuid.Nil, string(EventGameEnd), payload)
	g.persistFinalGameState(winner, reason, fen)

	g.fireEvent(GameEvent{Type: EventGameEnd, Color: winner.String(), Payload: payload})

	if g.OnGameEnd != nil {
		g.OnGameEnd(g.RoomCode, winner, reason)
	}
}

// persistFinalGameState writes the archive record in the background.
// Assumes lock is held by caller.
func (g *RiftGame) persistFinalGameState(winner engine.Color, reason, fen string) {
	if g.Archive == nil {
		return
	}
	state, err := json.Marshal(g.Engine.State())
	if err != nil {
		g.logger().Errorf("Encoding final state: %v", err)
		return
	}
	rec := database.GameRecord{
		ID:         g.ID,
		RoomCode:   g.RoomCode,
		White:      g.Seats[engine.White].Name(),
		Black:      g.Seats[engine.Black].Name(),
		Winner:     winner.String(),
		Reason:     reason,
		Turns:      int(g.Engine.TurnNumber),
		Actions:    g.actionIndex,
		FinalFEN:   fen,
		FinalState: state,
		StartedAt:  g.StartedAt,
		EndedAt:    time.Now().UTC(),
	}
	archive := g.Archive
	entry := g.logger()
	g.pending.Add(1)
	go func() {
		defer g.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := archive.StoreGame(ctx, rec); err != nil {
			entry.Errorf("Archiving game: %v", err)
		}
	}()
}

// logAction appends an entry to the game's action stream.
// Increments the internal action index for ordering.
// Assumes lock is held by caller.
func (g *RiftGame) logAction(actorID uuid.UUID, actionType string, payload map[string]interface{}) {
	g.actionIndex++
	if g.Cache == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	record := cache.GameActionRecord{
		GameID:        g.ID,
		RoomCode:      g.RoomCode,
		ActionIndex:   g.actionIndex,
		ActorUserID:   actorID,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	}
	rec := g.Cache
	entry := g.logger()
	g.pending.Add(1)
	go func() {
		defer g.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rec.PublishGameAction(ctx, record); err != nil {
			entry.Errorf("Failed publishing action %d ('%s'): %v", record.ActionIndex, record.ActionType, err)
		}
	}()
}

// saveSnapshot caches the room state so it survives a restart.
// Assumes lock is held by caller.
func (g *RiftGame) saveSnapshot() {
	if g.Cache == nil {
		return
	}
	snap := cache.RoomSnapshot{
		Code:     g.RoomCode,
		GameID:   g.ID,
		Seats:    [2]string{g.Seats[engine.White].Name(), g.Seats[engine.Black].Name()},
		PassHash: g.PassHash,
		Engine:   g.Engine,
		SavedAt:  time.Now().UnixMilli(),
	}
	rec := g.Cache
	entry := g.logger()
	g.pending.Add(1)
	go func() {
		defer g.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rec.SaveSnapshot(ctx, snap); err != nil {
			entry.Warnf("Saving room snapshot: %v", err)
		}
	}()
}
