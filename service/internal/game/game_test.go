package game

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	engine "github.com/jason-s-yu/rifts/engine"
	"github.com/jason-s-yu/rifts/service/internal/cache"
	"github.com/jason-s-yu/rifts/service/internal/database"
	"github.com/jason-s-yu/rifts/service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBroadcaster captures game events for testing assertions.
type mockBroadcaster struct {
	mu           sync.Mutex
	allEvents    []GameEvent
	playerEvents map[uuid.UUID][]GameEvent
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{playerEvents: make(map[uuid.UUID][]GameEvent)}
}

func (mb *mockBroadcaster) broadcastFn(ev GameEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = append(mb.allEvents, ev)
}

func (mb *mockBroadcaster) broadcastToPlayerFn(playerID uuid.UUID, ev GameEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.playerEvents[playerID] = append(mb.playerEvents[playerID], ev)
}

func (mb *mockBroadcaster) clear() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = nil
	mb.playerEvents = make(map[uuid.UUID][]GameEvent)
}

func (mb *mockBroadcaster) types() []GameEventType {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	var out []GameEventType
	for _, ev := range mb.allEvents {
		out = append(out, ev.Type)
	}
	return out
}

func (mb *mockBroadcaster) findEventByType(eventType GameEventType) *GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	for i := len(mb.allEvents) - 1; i >= 0; i-- {
		if mb.allEvents[i].Type == eventType {
			return &mb.allEvents[i]
		}
	}
	return nil
}

func (mb *mockBroadcaster) getLastPlayerEvent(playerID uuid.UUID) *GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	events := mb.playerEvents[playerID]
	if len(events) == 0 {
		return nil
	}
	return &events[len(events)-1]
}

// fakeRecorder stands in for the Redis cache.
type fakeRecorder struct {
	mu        sync.Mutex
	actions   []cache.GameActionRecord
	snapshots []cache.RoomSnapshot
}

func (f *fakeRecorder) PublishGameAction(_ context.Context, rec cache.GameActionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, rec)
	return nil
}

func (f *fakeRecorder) SaveSnapshot(_ context.Context, snap cache.RoomSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, snap)
	return nil
}

// fakeArchive stands in for the game archive.
type fakeArchive struct {
	mu   sync.Mutex
	recs []database.GameRecord
}

func (f *fakeArchive) StoreGame(_ context.Context, rec database.GameRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, rec)
	return nil
}

func (f *fakeArchive) GetGame(context.Context, uuid.UUID) (*database.GameRecord, error) {
	return nil, database.ErrGameNotFound
}

func (f *fakeArchive) RecentGames(context.Context, int) ([]database.GameRecord, error) {
	return nil, nil
}

func (f *fakeArchive) Close() error { return nil }

func act(actionType string, payload map[string]interface{}) models.GameAction {
	return models.GameAction{ActionType: actionType, Payload: payload}
}

// setupTestGame seats two players, white first, in a game still in setup.
func setupTestGame(t *testing.T) (*RiftGame, [2]*models.Player, *mockBroadcaster) {
	t.Helper()
	g := NewRiftGame("TESTAB", engine.DefaultHouseRules())
	mb := newMockBroadcaster()
	g.BroadcastFn = mb.broadcastFn
	g.BroadcastToPlayerFn = mb.broadcastToPlayerFn

	var players [2]*models.Player
	for i, c := range []engine.Color{engine.White, engine.Black} {
		p := &models.Player{
			ID:        uuid.New(),
			Connected: true,
			User:      &models.User{ID: uuid.New(), Username: "Player" + string(rune('A'+i))},
		}
		require.True(t, g.Seat(p, c))
		players[c] = p
	}
	return g, players, mb
}

// testRifts avoid the e-file and the f2-f4 double step lands on f4.
var testRifts = []string{"b6", "d5", "f4", "h3"}

// startTestGame places testRifts and starts play.
func startTestGame(t *testing.T, g *RiftGame, players [2]*models.Player, mb *mockBroadcaster) {
	t.Helper()
	white := players[engine.White].ID
	for _, name := range testRifts {
		g.HandlePlayerAction(white, act(models.ActionPlaceRift, map[string]interface{}{"square": name}))
	}
	require.Equal(t, uint8(engine.MaxRifts), g.Engine.RiftCount)
	g.HandlePlayerAction(players[engine.Black].ID, act(models.ActionStartGame, nil))
	require.Equal(t, engine.PhasePlaying, g.Engine.Phase)
	require.Equal(t, engine.White, g.Engine.CurrentPlayer())
	mb.clear()
}

// seedForRoll returns an RNG state whose next d20 draw is want.
func seedForRoll(t *testing.T, want int) uint64 {
	t.Helper()
	for s := uint64(1); s < 1_000_000; s++ {
		x := s
		x ^= x << 13
		x ^= x >> 7
		x ^= x << 17
		if int(x%20)+1 == want {
			return s
		}
	}
	t.Fatalf("no seed rolls %d", want)
	return 0
}

func TestSetupRequiresBothSeats(t *testing.T) {
	g := NewRiftGame("SOLO01", engine.DefaultHouseRules())
	mb := newMockBroadcaster()
	g.BroadcastFn = mb.broadcastFn
	g.BroadcastToPlayerFn = mb.broadcastToPlayerFn
	p := &models.Player{ID: uuid.New(), Connected: true}
	require.True(t, g.Seat(p, engine.White))

	g.HandlePlayerAction(p.ID, act(models.ActionRandomRifts, nil))

	ev := mb.getLastPlayerEvent(p.ID)
	require.NotNil(t, ev)
	assert.Equal(t, EventError, ev.Type)
	assert.Equal(t, "seats_open", ev.Payload["code"])
	assert.Zero(t, g.Engine.RiftCount)
}

func TestSeatCannotBeTaken(t *testing.T) {
	g, players, _ := setupTestGame(t)
	intruder := &models.Player{ID: uuid.New()}
	assert.False(t, g.Seat(intruder, engine.White))
	assert.Equal(t, players[engine.White].ID, g.Seats[engine.White].ID)
	assert.True(t, g.Seat(players[engine.White], engine.White), "re-seating the holder is allowed")
}

func TestSetupAndStart(t *testing.T) {
	g, players, mb := setupTestGame(t)
	black := players[engine.Black].ID

	g.HandlePlayerAction(black, act(models.ActionRandomRifts, nil))
	assert.Equal(t, uint8(engine.MaxRifts), g.Engine.RiftCount)
	require.NotNil(t, mb.findEventByType(EventSyncState))

	// Out-of-range rows are rejected with a stable code.
	g.HandlePlayerAction(black, act(models.ActionClearRifts, nil))
	g.HandlePlayerAction(black, act(models.ActionPlaceRift, map[string]interface{}{"squareRow": 0, "squareCol": 3}))
	ev := mb.getLastPlayerEvent(black)
	require.NotNil(t, ev)
	assert.Equal(t, "rift_row_out_of_range", ev.Payload["code"])

	g.HandlePlayerAction(black, act(models.ActionStartGame, nil))
	ev = mb.getLastPlayerEvent(black)
	assert.Equal(t, "rifts_incomplete", ev.Payload["code"])

	startTestGame(t, g, players, mb)
	assert.False(t, g.StartedAt.IsZero())
}

func TestGameStartedEvent(t *testing.T) {
	g, players, mb := setupTestGame(t)
	white := players[engine.White].ID
	for _, name := range testRifts {
		g.HandlePlayerAction(white, act(models.ActionPlaceRift, map[string]interface{}{"square": name}))
	}
	g.HandlePlayerAction(white, act(models.ActionStartGame, nil))

	ev := mb.findEventByType(EventGameStarted)
	require.NotNil(t, ev)
	assert.Equal(t, "white", ev.Color)
	require.NotNil(t, ev.State)
	assert.Len(t, ev.State.Board.Rifts, engine.MaxRifts)
	assert.Len(t, ev.State.LegalMoves, 10, "8 pawns and 2 knights can move")
}

func TestWrongColorMoveRejected(t *testing.T) {
	g, players, mb := setupTestGame(t)
	startTestGame(t, g, players, mb)
	black := players[engine.Black].ID
	hash := g.Engine.StateHash()

	g.HandlePlayerAction(black, act(models.ActionMove, map[string]interface{}{"from": "e7", "to": "e5"}))

	ev := mb.getLastPlayerEvent(black)
	require.NotNil(t, ev)
	assert.Equal(t, EventError, ev.Type)
	assert.Equal(t, "not_your_turn", ev.Payload["code"])
	assert.Empty(t, mb.types(), "rejections are never broadcast")
	assert.Equal(t, hash, g.Engine.StateHash())
}

func TestNotSeatedRejected(t *testing.T) {
	g, players, mb := setupTestGame(t)
	startTestGame(t, g, players, mb)
	spectator := uuid.New()

	g.HandlePlayerAction(spectator, act(models.ActionMove, map[string]interface{}{"from": "e2", "to": "e4"}))

	ev := mb.getLastPlayerEvent(spectator)
	require.NotNil(t, ev)
	assert.Equal(t, "not_seated", ev.Payload["code"])
	assert.Equal(t, engine.White, g.Engine.CurrentPlayer())
}

func TestSyncAllowedForSpectators(t *testing.T) {
	g, players, mb := setupTestGame(t)
	startTestGame(t, g, players, mb)
	spectator := uuid.New()

	g.HandlePlayerAction(spectator, act(models.ActionSync, nil))

	ev := mb.getLastPlayerEvent(spectator)
	require.NotNil(t, ev)
	assert.Equal(t, EventSyncState, ev.Type)
	assert.Empty(t, ev.State.YourColor)
}

func TestMoveBroadcasts(t *testing.T) {
	g, players, mb := setupTestGame(t)
	startTestGame(t, g, players, mb)
	white := players[engine.White].ID

	g.HandlePlayerAction(white, act(models.ActionMove, map[string]interface{}{"from": "e2", "to": "e4"}))

	assert.Equal(t, []GameEventType{EventMoveMade, EventTurnChanged, EventSyncState}, mb.types())
	ev := mb.findEventByType(EventMoveMade)
	require.NotNil(t, ev.Move)
	assert.Equal(t, "e2", ev.Move.From)
	assert.Equal(t, "e4", ev.Move.To)
	assert.Equal(t, "pawn", ev.Move.Piece)
	assert.Equal(t, "PlayerA", ev.User.Username)

	turn := mb.findEventByType(EventTurnChanged)
	assert.Equal(t, "black", turn.Color)

	st := mb.findEventByType(EventSyncState)
	assert.Equal(t, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b - - 0 1", st.State.FEN)
}

func TestMoveByCoordinates(t *testing.T) {
	g, players, mb := setupTestGame(t)
	startTestGame(t, g, players, mb)
	white := players[engine.White].ID

	// g1 knight to f3.
	g.HandlePlayerAction(white, act(models.ActionMove, map[string]interface{}{
		"fromRow": 7, "fromCol": 6, "toRow": 5, "toCol": 5,
	}))
	require.NotNil(t, mb.findEventByType(EventMoveMade))
	assert.Equal(t, engine.Knight, g.Engine.PieceAt(engine.MustSquare(5, 5)).Type)

	g.HandlePlayerAction(players[engine.Black].ID, act(models.ActionMove, map[string]interface{}{"from": "e7"}))
	ev := mb.getLastPlayerEvent(players[engine.Black].ID)
	assert.Equal(t, "bad_payload", ev.Payload["code"])
}

func TestRiftDemonDealDeclined(t *testing.T) {
	g, players, mb := setupTestGame(t)
	startTestGame(t, g, players, mb)
	white, black := players[engine.White].ID, players[engine.Black].ID

	g.HandlePlayerAction(white, act(models.ActionMove, map[string]interface{}{"from": "f2", "to": "f4"}))
	trig := mb.findEventByType(EventRiftTriggered)
	require.NotNil(t, trig)
	assert.Equal(t, "f4", trig.Payload["rift"])
	assert.Nil(t, mb.findEventByType(EventTurnChanged), "turn waits for the roll")

	g.HandlePlayerAction(black, act(models.ActionRoll, nil))
	assert.Equal(t, "not_your_turn", mb.getLastPlayerEvent(black).Payload["code"])

	g.Engine.RNG = seedForRoll(t, int(engine.EffectCrossroadDemonDeal))
	mb.clear()
	g.HandlePlayerAction(white, act(models.ActionRoll, nil))

	applied := mb.findEventByType(EventRiftEffectApplied)
	require.NotNil(t, applied)
	assert.Equal(t, "Crossroad Demon's Deal", applied.Effect.Name)
	choice := mb.findEventByType(EventChoiceRequired)
	require.NotNil(t, choice)
	assert.Equal(t, "demon_deal", choice.Pending.Type)
	assert.Len(t, choice.Pending.Choices, 2)

	g.HandlePlayerAction(black, act(models.ActionChoice, map[string]interface{}{"accept": false}))
	assert.Equal(t, "not_your_turn", mb.getLastPlayerEvent(black).Payload["code"])

	g.HandlePlayerAction(white, act(models.ActionChoice, map[string]interface{}{}))
	assert.Equal(t, "bad_payload", mb.getLastPlayerEvent(white).Payload["code"])

	mb.clear()
	g.HandlePlayerAction(white, act(models.ActionChoice, map[string]interface{}{"accept": false}))
	applied = mb.findEventByType(EventRiftEffectApplied)
	require.NotNil(t, applied)
	assert.Equal(t, "declined", applied.Effect.Outcome)
	turn := mb.findEventByType(EventTurnChanged)
	require.NotNil(t, turn)
	assert.Equal(t, "black", turn.Color)
	assert.Equal(t, engine.Pawn, g.Engine.PieceAt(engine.MustSquare(4, 5)).Type, "declining keeps the pawn")
}

func TestResignArchivesAndNotifies(t *testing.T) {
	g, players, mb := setupTestGame(t)
	archive := &fakeArchive{}
	g.Archive = archive
	var endWinner engine.Color
	var endReason string
	g.OnGameEnd = func(code string, winner engine.Color, reason string) {
		assert.Equal(t, "TESTAB", code)
		endWinner, endReason = winner, reason
	}
	startTestGame(t, g, players, mb)

	// Resigning does not need the turn.
	g.HandlePlayerAction(players[engine.Black].ID, act(models.ActionResign, nil))
	g.Wait()

	end := mb.findEventByType(EventGameEnd)
	require.NotNil(t, end)
	assert.Equal(t, "white", end.Color)
	assert.Equal(t, ReasonResign, end.Payload["reason"])
	assert.Equal(t, engine.White, endWinner)
	assert.Equal(t, ReasonResign, endReason)

	require.Len(t, archive.recs, 1)
	rec := archive.recs[0]
	assert.Equal(t, g.ID, rec.ID)
	assert.Equal(t, "white", rec.Winner)
	assert.Equal(t, "PlayerA", rec.White)
	assert.Equal(t, "PlayerB", rec.Black)
	assert.Contains(t, rec.FinalFEN, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR")

	g.HandlePlayerAction(players[engine.White].ID, act(models.ActionMove, map[string]interface{}{"from": "e2", "to": "e4"}))
	assert.Equal(t, "game_over", mb.getLastPlayerEvent(players[engine.White].ID).Payload["code"])
}

func TestNewGameAfterEnd(t *testing.T) {
	g, players, mb := setupTestGame(t)
	startTestGame(t, g, players, mb)
	white := players[engine.White].ID

	g.HandlePlayerAction(white, act(models.ActionNewGame, nil))
	assert.Equal(t, "wrong_phase", mb.getLastPlayerEvent(white).Payload["code"])

	g.HandlePlayerAction(white, act(models.ActionResign, nil))
	oldID := g.ID
	g.HandlePlayerAction(white, act(models.ActionNewGame, nil))

	assert.NotEqual(t, oldID, g.ID)
	assert.Equal(t, engine.PhaseSetup, g.Engine.Phase)
	assert.Zero(t, g.Engine.RiftCount)
	assert.Equal(t, players[engine.White].ID, g.Seats[engine.White].ID, "seats are kept")
	startTestGame(t, g, players, mb)
}

func TestRecorderReceivesActionsAndSnapshots(t *testing.T) {
	g, players, mb := setupTestGame(t)
	rec := &fakeRecorder{}
	g.Cache = rec
	startTestGame(t, g, players, mb)
	g.HandlePlayerAction(players[engine.White].ID, act(models.ActionMove, map[string]interface{}{"from": "d2", "to": "d4"}))
	g.Wait()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.NotEmpty(t, rec.actions)
	indexes := make(map[int]bool)
	var sawMove bool
	for _, a := range rec.actions {
		assert.Equal(t, g.ID, a.GameID)
		assert.False(t, indexes[a.ActionIndex], "action index %d repeated", a.ActionIndex)
		indexes[a.ActionIndex] = true
		if a.ActionType == string(EventMoveMade) {
			sawMove = true
			assert.Equal(t, "d4", a.ActionPayload["to"])
		}
	}
	assert.True(t, sawMove)

	// Writes finish in any order; one snapshot holds the current position.
	require.NotEmpty(t, rec.snapshots)
	var current *cache.RoomSnapshot
	for i := range rec.snapshots {
		if rec.snapshots[i].Engine.StateHash() == g.Engine.StateHash() {
			current = &rec.snapshots[i]
		}
	}
	require.NotNil(t, current)
	assert.Equal(t, "TESTAB", current.Code)
	assert.Equal(t, [2]string{"PlayerA", "PlayerB"}, current.Seats)
}

func TestRestoreFromSnapshot(t *testing.T) {
	g, players, mb := setupTestGame(t)
	startTestGame(t, g, players, mb)
	g.HandlePlayerAction(players[engine.White].ID, act(models.ActionMove, map[string]interface{}{"from": "e2", "to": "e4"}))

	restored := RestoreRiftGame(&cache.RoomSnapshot{Code: g.RoomCode, GameID: g.ID, Engine: g.Engine})
	assert.Equal(t, g.ID, restored.ID)
	assert.Equal(t, g.Engine.StateHash(), restored.Engine.StateHash())
	assert.False(t, restored.SeatsFilled())
}

func TestDisconnectAndReconnect(t *testing.T) {
	g, players, mb := setupTestGame(t)
	startTestGame(t, g, players, mb)
	black := players[engine.Black]

	g.HandleDisconnect(black.ID)
	st := mb.findEventByType(EventSyncState)
	require.NotNil(t, st)
	assert.False(t, st.State.Seats[engine.Black].Connected)
	assert.False(t, st.State.Seats[engine.Black].Open, "seat stays reserved")

	g.HandleReconnect(&models.Player{ID: black.ID, User: &models.User{Username: "PlayerB2"}})
	ev := mb.getLastPlayerEvent(black.ID)
	require.NotNil(t, ev)
	assert.Equal(t, EventSyncState, ev.Type)
	assert.Equal(t, "black", ev.State.YourColor)
	assert.True(t, g.Seats[engine.Black].Connected)
	assert.Equal(t, "PlayerB2", g.Seats[engine.Black].Name())
}

func TestAbandon(t *testing.T) {
	g, players, mb := setupTestGame(t)
	archive := &fakeArchive{}
	g.Archive = archive

	g.Abandon()
	g.Wait()
	assert.Empty(t, archive.recs, "a game in setup leaves no record")

	startTestGame(t, g, players, mb)
	g.Abandon()
	g.Wait()
	require.Len(t, archive.recs, 1)
	assert.Equal(t, ReasonAbandoned, archive.recs[0].Reason)
	assert.Equal(t, "none", archive.recs[0].Winner)

	g.Abandon()
	g.Wait()
	assert.Len(t, archive.recs, 1, "a game is archived once")
}

func TestPassRules(t *testing.T) {
	g, players, mb := setupTestGame(t)
	startTestGame(t, g, players, mb)
	white := players[engine.White].ID

	g.HandlePlayerAction(white, act(models.ActionPass, nil))
	assert.Equal(t, "cannot_pass", mb.getLastPlayerEvent(white).Payload["code"])

	g.HandlePlayerAction(white, act("castle", nil))
	assert.Equal(t, "unknown_action", mb.getLastPlayerEvent(white).Payload["code"])
}

func TestParseChoice(t *testing.T) {
	cases := []struct {
		name    string
		pending engine.PendingType
		payload map[string]interface{}
		want    engine.Choice
		wantErr bool
	}{
		{"necromancer", engine.PendingNecromancer, map[string]interface{}{"index": float64(1)},
			engine.Choice{Type: engine.PendingNecromancer, Index: 1, Square: engine.NoSquare}, false},
		{"archer", engine.PendingArcherTarget, map[string]interface{}{"square": "c6"},
			engine.Choice{Type: engine.PendingArcherTarget, Square: engine.MustSquare(2, 2)}, false},
		{"dragon", engine.PendingDragonDirection, map[string]interface{}{"direction": "east"},
			engine.Choice{Type: engine.PendingDragonDirection, Direction: engine.DirEast, Square: engine.NoSquare}, false},
		{"dragon diagonal", engine.PendingDragonDirection, map[string]interface{}{"direction": "ne"}, engine.Choice{}, true},
		{"demon", engine.PendingDemonDeal, map[string]interface{}{"accept": true},
			engine.Choice{Type: engine.PendingDemonDeal, Accept: true, Square: engine.NoSquare}, false},
		{"revival", engine.PendingRevival, map[string]interface{}{"index": float64(0), "squareRow": float64(6), "squareCol": float64(3)},
			engine.Choice{Type: engine.PendingRevival, Index: 0, Square: engine.MustSquare(6, 3)}, false},
		{"revival without square", engine.PendingRevival, map[string]interface{}{"index": float64(0)}, engine.Choice{}, true},
		{"no choice", engine.PendingRoll, nil, engine.Choice{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseChoice(tc.pending, act(models.ActionChoice, tc.payload))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPositionFEN(t *testing.T) {
	g := engine.NewGame(7, engine.DefaultHouseRules())
	assert.Equal(t, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w - - 0 1", PositionFEN(&g))
	assert.NotEmpty(t, DrawBoard(&g))
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "piece_frozen", errorCode(engine.ErrPieceFrozen))
	assert.Equal(t, "not_your_turn", errorCode(requireActor(engine.Black, engine.White)))
	assert.Equal(t, "internal", errorCode(assert.AnError))
}
