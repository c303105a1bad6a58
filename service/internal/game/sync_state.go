package game

import (
	"github.com/google/uuid"
	engine "github.com/jason-s-yu/rifts/engine"
)

// SeatView describes one seat for clients.
type SeatView struct {
	Color     string    `json:"color"`
	PlayerID  uuid.UUID `json:"playerId"`
	Username  string    `json:"username,omitempty"`
	Connected bool      `json:"connected"`
	Open      bool      `json:"open"` // nobody holds the seat
}

// SyncState is the full state sent to clients on join, reconnect and after
// every accepted command. Chess has no hidden information, so only YourColor
// differs between viewers.
type SyncState struct {
	GameID     uuid.UUID           `json:"gameId"`
	RoomCode   string              `json:"roomCode"`
	YourColor  string              `json:"yourColor,omitempty"`
	Seats      []SeatView          `json:"seats"`
	FEN        string              `json:"fen"`
	Board      engine.BoardState   `json:"board"`
	LegalMoves map[string][]string `json:"legalMoves,omitempty"` // for the side to move, from -> destinations
	CanPass    bool                `json:"canPass"`
}

// GetCurrentSyncState builds the state as seen by viewer. uuid.Nil yields the
// public view.
// Assumes lock is held by caller.
func (g *RiftGame) GetCurrentSyncState(viewer uuid.UUID) SyncState {
	s := SyncState{
		GameID:   g.ID,
		RoomCode: g.RoomCode,
		FEN:      PositionFEN(&g.Engine),
		Board:    g.Engine.State(),
		CanPass:  g.Engine.CanPass(),
	}
	if c, ok := g.ColorOf(viewer); ok {
		s.YourColor = c.String()
	}
	for _, c := range [2]engine.Color{engine.White, engine.Black} {
		sv := SeatView{Color: c.String(), Open: true}
		if p := g.Seats[c]; p != nil {
			sv.PlayerID = p.ID
			sv.Username = p.Name()
			sv.Connected = p.Connected
			sv.Open = false
		}
		s.Seats = append(s.Seats, sv)
	}
	if moves := g.Engine.LegalActions(); len(moves) > 0 {
		s.LegalMoves = make(map[string][]string)
		for _, m := range moves {
			from := m.From.Name()
			s.LegalMoves[from] = append(s.LegalMoves[from], m.To.Name())
		}
	}
	return s
}

func (g *RiftGame) syncStatePtr(viewer uuid.UUID) *SyncState {
	s := g.GetCurrentSyncState(viewer)
	return &s
}

// sendSyncState sends the state to a single occupant.
// Assumes lock is held by caller.
func (g *RiftGame) sendSyncState(playerID uuid.UUID) {
	g.fireEventToPlayer(playerID, GameEvent{Type: EventSyncState, State: g.syncStatePtr(playerID)})
}

// broadcastSyncStateToAll sends the public state to every occupant.
// Assumes lock is held by caller.
func (g *RiftGame) broadcastSyncStateToAll() {
	g.fireEvent(GameEvent{Type: EventSyncState, State: g.syncStatePtr(uuid.Nil)})
}
