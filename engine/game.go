// Package engine implements the Rifts of Chaos rules: chess movement overlaid
// with four rift squares that fire randomized effects when entered.
//
// GameState is a self-contained value. Every command is a method on
// *GameState that either applies completely or returns an error and leaves
// the state untouched, so the service can re-derive a room's state from the
// commands alone and tests can copy a state to probe what comes next.
package engine

const (
	NumSquares   = 64
	NumPieces    = 32
	MaxRifts     = 4
	PoolCapacity = 16
	RiftMinRow   = 2
	RiftMaxRow   = 5
)

// Rift is one rift square. A rift fires at most once per game.
type Rift struct {
	Square    Square
	Activated bool
}

// CapturedPool is the ordered list of one color's captured pieces.
type CapturedPool struct {
	IDs [PoolCapacity]PieceID
	Len uint8
}

// KingAbility records Conqueror's Tale for one color.
type KingAbility struct {
	DoubleMove  bool
	GrantedTurn uint16 // turn number of the grant; active from the next turn on
}

// TurnState is the per-turn bookkeeping of the playing phase.
type TurnState struct {
	Current               Color
	RiftActivatedThisTurn bool
	DiceRolledThisTurn    bool
	KingMovedThisTurn     [2]uint8
	KingMovedFirst        bool
	MovesThisTurn         uint8
	PlayerHasMoved        [2]bool
	PendingEerieFogSkip   Color
	LastSkipped           Color
}

// EffectSnapshot is the rule state restored when an effect handler fails.
type EffectSnapshot struct {
	Valid         bool
	Pieces        [NumPieces]Piece
	Board         [NumSquares]PieceID
	Captured      [2]CapturedPool
	Field         FieldEffect
	KingAbilities [2]KingAbility
	EerieFogSkip  Color
}

// GameState holds the complete state of one game.
type GameState struct {
	Phase         Phase
	Pieces        [NumPieces]Piece
	Board         [NumSquares]PieceID
	Captured      [2]CapturedPool
	Rifts         [MaxRifts]Rift
	RiftCount     uint8
	Field         FieldEffect
	KingAbilities [2]KingAbility
	Turn          TurnState
	TurnNumber    uint16
	Pending       PendingAction
	LastMove      LastMoveInfo
	LastEffect    EffectRecord
	Winner        Color
	Rollback      EffectSnapshot
	RNG           uint64
	Rules         HouseRules
}

// ---------------------------------------------------------------------------
// xorshift64 RNG
// ---------------------------------------------------------------------------

func (g *GameState) nextRand() uint64 {
	x := g.RNG
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	g.RNG = x
	return x
}

// randN returns a random number in [0, n).
func (g *GameState) randN(n uint64) uint64 {
	return g.nextRand() % n
}

// rollD20 draws a uniform integer in [1, 20].
func (g *GameState) rollD20() int {
	return int(g.randN(20)) + 1
}

// ---------------------------------------------------------------------------
// NewGame
// ---------------------------------------------------------------------------

var backRank = [8]PieceType{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}

// NewGame returns a game in the setup phase with the standard layout.
func NewGame(seed uint64, rules HouseRules) GameState {
	var g GameState
	g.RNG = seed
	if g.RNG == 0 {
		g.RNG = 1 // xorshift can't start at 0
	}
	g.Rules = rules
	g.Phase = PhaseSetup
	g.Winner = NoColor
	g.Pending = PendingAction{Piece: NoPiece, Rift: NoSquare}
	g.LastMove = LastMoveInfo{Piece: NoPiece, From: NoSquare, To: NoSquare, Captured: NoPiece}
	g.Turn = TurnState{
		Current:             White,
		PendingEerieFogSkip: NoColor,
		LastSkipped:         NoColor,
	}
	for i := range g.Board {
		g.Board[i] = NoPiece
	}

	id := PieceID(0)
	place := func(t PieceType, c Color, row, col int) {
		g.Pieces[id] = Piece{ID: id, Type: t, Color: c}
		g.Board[MustSquare(row, col)] = id
		id++
	}
	for col := 0; col < 8; col++ {
		place(backRank[col], Black, 0, col)
		place(Pawn, Black, 1, col)
		place(Pawn, White, 6, col)
		place(backRank[col], White, 7, col)
	}

	if !rules.ForceWhiteFirst && g.randN(2) == 1 {
		g.Turn.Current = Black
	}
	return g
}

// Reset starts a new game in place, keeping rules and the RNG stream.
func (g *GameState) Reset() {
	seed := g.nextRand()
	*g = NewGame(seed, g.Rules)
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// IsTerminal returns true when the game has ended.
func (g *GameState) IsTerminal() bool { return g.Phase == PhaseEnded }

// CurrentPlayer returns the side to act.
func (g *GameState) CurrentPlayer() Color { return g.Turn.Current }

// PieceAt returns the piece on sq, or nil.
func (g *GameState) PieceAt(sq Square) *Piece {
	if !sq.Valid() {
		return nil
	}
	id := g.Board[sq]
	if id == NoPiece {
		return nil
	}
	return &g.Pieces[id]
}

// SquareOf returns where a piece stands, or NoSquare when it is not on the board.
func (g *GameState) SquareOf(id PieceID) Square {
	for sq, occupant := range g.Board {
		if occupant == id {
			return Square(sq)
		}
	}
	return NoSquare
}

// IsRift reports whether sq is one of the placed rifts.
func (g *GameState) IsRift(sq Square) bool {
	return g.riftIndex(sq) >= 0
}

func (g *GameState) riftIndex(sq Square) int {
	for i := 0; i < int(g.RiftCount); i++ {
		if g.Rifts[i].Square == sq {
			return i
		}
	}
	return -1
}

// FrozenPieces returns the IDs of every frozen piece on the board.
func (g *GameState) FrozenPieces() []PieceID {
	var out []PieceID
	for _, id := range g.Board {
		if id != NoPiece && g.Pieces[id].IsFrozen() {
			out = append(out, id)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Snapshot Undo (Save / Restore)
// ---------------------------------------------------------------------------

// Snapshot is a complete value-copy of GameState.
type Snapshot GameState

// Save returns a snapshot of the current game state.
func (g *GameState) Save() Snapshot { return Snapshot(*g) }

// Restore replaces the game state with the given snapshot.
func (g *GameState) Restore(s Snapshot) { *g = GameState(s) }

// saveRollback records the rule state an effect handler may mutate.
func (g *GameState) saveRollback() {
	g.Rollback = EffectSnapshot{
		Valid:         true,
		Pieces:        g.Pieces,
		Board:         g.Board,
		Captured:      g.Captured,
		Field:         g.Field,
		KingAbilities: g.KingAbilities,
		EerieFogSkip:  g.Turn.PendingEerieFogSkip,
	}
}

// restoreRollback undoes a failed resolution. RNG and turn bookkeeping are
// left as they are: rolls already drawn are never drawn again.
func (g *GameState) restoreRollback() {
	if !g.Rollback.Valid {
		return
	}
	s := g.Rollback
	g.Pieces = s.Pieces
	g.Board = s.Board
	g.Captured = s.Captured
	g.Field = s.Field
	g.KingAbilities = s.KingAbilities
	g.Turn.PendingEerieFogSkip = s.EerieFogSkip
	g.Rollback = EffectSnapshot{}
}
