package game

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	engine "github.com/jason-s-yu/rifts/engine"
	"github.com/jason-s-yu/rifts/service/internal/models"
	log "github.com/sirupsen/logrus"
)

// turnMark is the part of the engine state that decides which follow-up
// events a command produces.
type turnMark struct {
	turn    uint16
	current engine.Color
	pending engine.PendingType
	phase   engine.Phase
}

func (g *RiftGame) mark() turnMark {
	return turnMark{
		turn:    g.Engine.TurnNumber,
		current: g.Engine.CurrentPlayer(),
		pending: g.Engine.Pending.Type,
		phase:   g.Engine.Phase,
	}
}

// requireActor rejects a command from a color other than the one the engine
// is waiting on.
func requireActor(color, expected engine.Color) error {
	if color != expected {
		return fmt.Errorf("%s cannot act for %s: %w", color, expected, engine.ErrNotYourTurn)
	}
	return nil
}

// actingColor is the color the engine is waiting on: the pending player while
// an effect awaits its activator, otherwise the side to move.
func (g *RiftGame) actingColor() engine.Color {
	if g.Engine.Pending.Type != engine.PendingNone {
		return g.Engine.Pending.Player
	}
	return g.Engine.CurrentPlayer()
}

// handleSetupAction applies rift placement and the start command. Either
// seated player may arrange the rifts once both seats are filled.
// Assumes lock is held by caller.
func (g *RiftGame) handleSetupAction(playerID uuid.UUID, action models.GameAction) error {
	if !g.SeatsFilled() {
		return ErrSeatsOpen
	}
	switch action.ActionType {
	case models.ActionPlaceRift:
		sq, err := parseSquare(action, "square")
		if err != nil {
			return err
		}
		if err := g.Engine.PlaceRift(sq.Row(), sq.Col()); err != nil {
			return err
		}
		g.logAction(playerID, models.ActionPlaceRift, map[string]interface{}{"square": sq.Name(), "rifts": g.Engine.RiftCount})
	case models.ActionRandomRifts:
		if err := g.Engine.GenerateRifts(); err != nil {
			return err
		}
		g.logAction(playerID, models.ActionRandomRifts, map[string]interface{}{"rifts": riftNames(&g.Engine)})
	case models.ActionClearRifts:
		if err := g.Engine.ClearRifts(); err != nil {
			return err
		}
		g.logAction(playerID, models.ActionClearRifts, nil)
	case models.ActionStartGame:
		if err := g.Engine.StartGame(); err != nil {
			return err
		}
		g.StartedAt = time.Now().UTC()
		g.logger().WithField("rifts", riftNames(&g.Engine)).Info("Game started.")
		g.logAction(playerID, string(EventGameStarted), map[string]interface{}{
			"rifts": riftNames(&g.Engine), "first": g.Engine.CurrentPlayer().String(),
		})
		g.fireEvent(GameEvent{
			Type:  EventGameStarted,
			Color: g.Engine.CurrentPlayer().String(),
			State: g.syncStatePtr(uuid.Nil),
		})
	}
	g.broadcastSyncStateToAll()
	g.saveSnapshot()
	return nil
}

// handleMove commits a move for the side to move.
// Assumes lock is held by caller.
func (g *RiftGame) handleMove(playerID uuid.UUID, color engine.Color, action models.GameAction) error {
	if g.Engine.Phase == engine.PhasePlaying {
		if err := requireActor(color, g.Engine.CurrentPlayer()); err != nil {
			return err
		}
	}
	from, err := parseSquare(action, "from")
	if err != nil {
		return err
	}
	to, err := parseSquare(action, "to")
	if err != nil {
		return err
	}
	before := g.mark()
	if err := g.Engine.RequestMove(from, to); err != nil {
		return err
	}

	lm := g.Engine.LastMove
	ev := &EventMove{
		From:  from.Name(),
		To:    to.Name(),
		Piece: g.Engine.Pieces[lm.Piece].Type.String(),
		Rift:  lm.Rift,
	}
	if lm.Captured != engine.NoPiece {
		ev.Captured = g.Engine.Pieces[lm.Captured].Type.String()
	}
	g.logAction(playerID, string(EventMoveMade), map[string]interface{}{
		"from": ev.From, "to": ev.To, "piece": ev.Piece, "captured": ev.Captured,
	})
	g.fireEvent(GameEvent{
		Type:  EventMoveMade,
		User:  g.eventUser(playerID),
		Color: color.String(),
		Move:  ev,
	})
	if g.Engine.Pending.Type == engine.PendingRoll {
		g.logger().WithFields(log.Fields{"color": color.String(), "rift": to.Name()}).Debug("Rift entered.")
		g.fireEvent(GameEvent{
			Type:    EventRiftTriggered,
			Color:   color.String(),
			Pending: g.Engine.State().Pending,
			Payload: map[string]interface{}{"rift": to.Name()},
		})
	}
	g.afterCommand(before, ReasonKingCaptured)
	return nil
}

// handleRoll draws the rift die for the activator.
// Assumes lock is held by caller.
func (g *RiftGame) handleRoll(playerID uuid.UUID, color engine.Color) error {
	if g.Engine.Pending.Type == engine.PendingRoll {
		if err := requireActor(color, g.Engine.Pending.Player); err != nil {
			return err
		}
	}
	before := g.mark()
	roll, err := g.Engine.RollRiftDie()
	if err != nil {
		return err
	}
	g.announceEffect(playerID, color, map[string]interface{}{"roll": roll})
	g.afterCommand(before, ReasonKingCaptured)
	return nil
}

// handlePass ends a turn that has nothing left to do.
// Assumes lock is held by caller.
func (g *RiftGame) handlePass(playerID uuid.UUID, color engine.Color) error {
	if g.Engine.Phase == engine.PhasePlaying {
		if err := requireActor(color, g.Engine.CurrentPlayer()); err != nil {
			return err
		}
	}
	before := g.mark()
	if err := g.Engine.PassTurn(); err != nil {
		return err
	}
	g.logAction(playerID, models.ActionPass, nil)
	g.afterCommand(before, ReasonKingCaptured)
	return nil
}

// handleResign concedes for the sender's color, whoever is to move.
// Assumes lock is held by caller.
func (g *RiftGame) handleResign(playerID uuid.UUID, color engine.Color) error {
	before := g.mark()
	if err := g.Engine.Resign(color); err != nil {
		return err
	}
	g.logAction(playerID, models.ActionResign, map[string]interface{}{"color": color.String()})
	if before.phase != engine.PhasePlaying {
		// A resignation during setup ends the room's game without a record.
		g.ended = true
		g.fireEvent(GameEvent{Type: EventGameEnd, Color: color.Opponent().String(),
			Payload: map[string]interface{}{"winner": color.Opponent().String(), "reason": ReasonResign}})
		g.broadcastSyncStateToAll()
		g.saveSnapshot()
		return nil
	}
	g.afterCommand(before, ReasonResign)
	return nil
}

// handleNewGame replaces a finished game with a fresh one in setup. Seats
// are kept.
// Assumes lock is held by caller.
func (g *RiftGame) handleNewGame(playerID uuid.UUID) error {
	if !g.Engine.IsTerminal() {
		return fmt.Errorf("new game: %w", engine.ErrWrongPhase)
	}
	g.Engine.Reset()
	g.ID = uuid.New()
	g.actionIndex = 0
	g.ended = false
	g.StartedAt = time.Time{}
	g.logger().Info("New game in room.")
	g.logAction(playerID, models.ActionNewGame, nil)
	g.fireEvent(GameEvent{Type: EventRoomUpdated, Payload: map[string]interface{}{"phase": g.Engine.Phase.String()}})
	g.broadcastSyncStateToAll()
	g.saveSnapshot()
	return nil
}

// announceEffect broadcasts the last effect resolution and logs it by outcome.
// Assumes lock is held by caller.
func (g *RiftGame) announceEffect(playerID uuid.UUID, color engine.Color, extra map[string]interface{}) {
	state := g.Engine.State()
	eff := state.LastEffect
	if eff == nil {
		return
	}
	entry := g.logger().WithFields(log.Fields{
		"color": color.String(), "roll": eff.Roll, "effect": eff.Name, "outcome": eff.Outcome,
	})
	switch g.Engine.LastEffect.Outcome {
	case engine.OutcomeFailed:
		entry.Warnf("Rift effect failed and was rolled back: %s", eff.Detail)
	case engine.OutcomeNoOp:
		entry.Debugf("Rift effect had no target: %s", eff.Detail)
	default:
		entry.Info("Rift effect resolved.")
	}

	payload := map[string]interface{}{"effect": eff.Name, "outcome": eff.Outcome, "rift": eff.Rift}
	for k, v := range extra {
		payload[k] = v
	}
	g.logAction(playerID, string(EventRiftEffectApplied), payload)
	g.fireEvent(GameEvent{
		Type:    EventRiftEffectApplied,
		User:    g.eventUser(playerID),
		Color:   color.String(),
		Effect:  eff,
		Pending: state.Pending,
		Payload: extra,
	})
	if g.Engine.Pending.Type.IsChoice() {
		g.fireEvent(GameEvent{
			Type:    EventChoiceRequired,
			Color:   g.Engine.Pending.Player.String(),
			Effect:  eff,
			Pending: state.Pending,
		})
	}
}

// afterCommand emits the follow-up events of a successful command: the game
// end, or the turn change, then a fresh state for every occupant.
// Assumes lock is held by caller.
func (g *RiftGame) afterCommand(before turnMark, endReason string) {
	if g.Engine.IsTerminal() {
		if winner, ok := g.Engine.WinnerOf(); ok {
			g.finishGame(winner, endReason)
		}
	} else if after := g.mark(); after.turn != before.turn {
		payload := map[string]interface{}{"turn": after.turn}
		if skipped := g.Engine.Turn.LastSkipped; skipped != engine.NoColor {
			payload["skipped"] = skipped.String()
		}
		g.logAction(uuid.Nil, string(EventTurnChanged), payload)
		g.fireEvent(GameEvent{Type: EventTurnChanged, Color: after.current.String(), Payload: payload})
	}
	g.broadcastSyncStateToAll()
	g.saveSnapshot()
}

func (g *RiftGame) eventUser(playerID uuid.UUID) *EventUser {
	u := &EventUser{ID: playerID}
	if c, ok := g.ColorOf(playerID); ok {
		u.Username = g.Seats[c].Name()
	}
	return u
}

func riftNames(g *engine.GameState) []string {
	var out []string
	for _, sq := range g.RiftSquares() {
		out = append(out, sq.Name())
	}
	return out
}

// parseSquare reads a square from the payload, either as an algebraic name
// under key or as key+"Row"/key+"Col" numbers.
func parseSquare(action models.GameAction, key string) (engine.Square, error) {
	if name, ok := action.Text(key); ok {
		sq, ok := engine.ParseSquare(name)
		if !ok {
			return engine.NoSquare, fmt.Errorf("%s %q: %w", key, name, ErrBadPayload)
		}
		return sq, nil
	}
	row, okRow := action.Int(key + "Row")
	col, okCol := action.Int(key + "Col")
	if !okRow || !okCol {
		return engine.NoSquare, fmt.Errorf("missing %s: %w", key, ErrBadPayload)
	}
	sq, ok := engine.SquareAt(row, col)
	if !ok {
		return engine.NoSquare, fmt.Errorf("%s (%d,%d): %w", key, row, col, engine.ErrOffBoard)
	}
	return sq, nil
}

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrNotSeated, "not_seated"},
	{ErrSeatsOpen, "seats_open"},
	{ErrUnknownAction, "unknown_action"},
	{ErrBadPayload, "bad_payload"},
	{engine.ErrWrongPhase, "wrong_phase"},
	{engine.ErrGameOver, "game_over"},
	{engine.ErrRiftRowOutOfRange, "rift_row_out_of_range"},
	{engine.ErrRiftConflict, "rift_conflict"},
	{engine.ErrRiftsFull, "rifts_full"},
	{engine.ErrRiftsIncomplete, "rifts_incomplete"},
	{engine.ErrRiftGeneration, "rift_generation"},
	{engine.ErrOffBoard, "off_board"},
	{engine.ErrNoPiece, "no_piece"},
	{engine.ErrNotYourTurn, "not_your_turn"},
	{engine.ErrPieceFrozen, "piece_frozen"},
	{engine.ErrOwnPiece, "own_piece"},
	{engine.ErrIllegalMove, "illegal_move"},
	{engine.ErrPending, "pending"},
	{engine.ErrExtraMoveRequired, "extra_move_required"},
	{engine.ErrKingMustMove, "king_must_move"},
	{engine.ErrNoRollPending, "no_roll_pending"},
	{engine.ErrAlreadyRolled, "already_rolled"},
	{engine.ErrNoChoicePending, "no_choice_pending"},
	{engine.ErrInvalidChoice, "invalid_choice"},
	{engine.ErrCannotPass, "cannot_pass"},
}

// errorCode maps a rejection to a stable code clients can switch on.
func errorCode(err error) string {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return "internal"
}
