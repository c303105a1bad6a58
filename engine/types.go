package engine

import "fmt"

// Color identifies a side. White moves first and starts on rows 6-7.
type Color uint8

const (
	White Color = 0
	Black Color = 1
)

// NoColor is used where a color slot is empty (no pending skip, no winner).
const NoColor Color = 0xFF

// Opponent returns the other side.
func (c Color) Opponent() Color { return 1 - c }

// Forward returns the row delta a pawn of this color advances by.
func (c Color) Forward() int {
	if c == White {
		return -1
	}
	return 1
}

func (c Color) String() string {
	switch c {
	case White:
		return "white"
	case Black:
		return "black"
	default:
		return "none"
	}
}

// ParseColor converts "white"/"black" into a Color.
func ParseColor(s string) (Color, bool) {
	switch s {
	case "white", "w":
		return White, true
	case "black", "b":
		return Black, true
	}
	return NoColor, false
}

// PieceType is the chess role of a piece.
type PieceType uint8

const (
	Pawn PieceType = iota
	Knight
	Bishop
	Rook
	Queen
	King
)

func (t PieceType) String() string {
	switch t {
	case Pawn:
		return "pawn"
	case Knight:
		return "knight"
	case Bishop:
		return "bishop"
	case Rook:
		return "rook"
	case Queen:
		return "queen"
	case King:
		return "king"
	}
	return "?"
}

// IsSlider reports whether the piece moves along rays.
func (t PieceType) IsSlider() bool {
	return t == Bishop || t == Rook || t == Queen
}

// PieceID indexes the piece arena. It is stable for the whole game, so it is
// the key for freezes and other per-piece state while pieces relocate.
type PieceID uint8

// NoPiece marks an empty board square or an unset pending piece.
const NoPiece PieceID = 0xFF

// Piece is one entry of the arena. A piece is owned either by exactly one
// board square or by exactly one captured pool.
type Piece struct {
	ID                  PieceID
	Type                PieceType
	Color               Color
	HasMoved            bool
	Frozen              bool // Medusa's Gaze; survives field-effect changes
	FrozenByFieldEffect bool // lifted whenever the field effect changes
	FairyFountain       bool
}

// IsFrozen reports whether the piece is excluded from moving.
func (p *Piece) IsFrozen() bool { return p.Frozen || p.FrozenByFieldEffect }

// Square is a board index, row*8+col. Row 0 is Black's back rank.
type Square int8

// NoSquare marks an unset square.
const NoSquare Square = -1

// SquareAt builds a Square from row/col. ok is false when off the board.
func SquareAt(row, col int) (Square, bool) {
	if !inBounds(row, col) {
		return NoSquare, false
	}
	return Square(row*8 + col), true
}

// MustSquare is SquareAt for coordinates known to be on the board.
func MustSquare(row, col int) Square {
	sq, ok := SquareAt(row, col)
	if !ok {
		panic("engine: square off board")
	}
	return sq
}

func (s Square) Row() int { return int(s) / 8 }
func (s Square) Col() int { return int(s) % 8 }

// Valid reports whether the square lies on the board.
func (s Square) Valid() bool { return s >= 0 && s < 64 }

// Name returns the algebraic name of the square, with row 7 as rank 1.
func (s Square) Name() string {
	if !s.Valid() {
		return "-"
	}
	return string([]byte{byte('a' + s.Col()), byte('8' - s.Row())})
}

// ParseSquare is the inverse of Name.
func ParseSquare(name string) (Square, bool) {
	if len(name) != 2 {
		return NoSquare, false
	}
	return SquareAt(int('8'-name[1]), int(name[0]-'a'))
}

func inBounds(row, col int) bool {
	return row >= 0 && row < 8 && col >= 0 && col < 8
}

// chebyshev returns the king-move distance between two squares.
func chebyshev(a, b Square) int {
	dr := abs(a.Row() - b.Row())
	dc := abs(a.Col() - b.Col())
	if dr > dc {
		return dr
	}
	return dc
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func sign(x int) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

// Phase is the top-level game phase.
type Phase uint8

const (
	PhaseSetup Phase = iota
	PhasePlaying
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseSetup:
		return "setup"
	case PhasePlaying:
		return "playing"
	case PhaseEnded:
		return "ended"
	}
	return "?"
}

// FieldEffect is the single global movement modifier in force.
type FieldEffect uint8

const (
	FieldNone FieldEffect = iota
	FieldFamine
	FieldHolidayRejuvenation
	FieldSandstorm
	FieldJackFrostMischief
	FieldBlank
)

func (f FieldEffect) String() string {
	switch f {
	case FieldNone:
		return ""
	case FieldFamine:
		return "famine"
	case FieldHolidayRejuvenation:
		return "holiday_rejuvenation"
	case FieldSandstorm:
		return "sandstorm"
	case FieldJackFrostMischief:
		return "jack_frost_mischief"
	case FieldBlank:
		return "blank"
	}
	return "?"
}

// Direction is a cardinal direction used by Dragon's Breath.
type Direction uint8

const (
	DirNone Direction = iota
	DirNorth
	DirSouth
	DirEast
	DirWest
)

// Delta returns the row/col step for the direction. North is toward row 0.
func (d Direction) Delta() (int, int) {
	switch d {
	case DirNorth:
		return -1, 0
	case DirSouth:
		return 1, 0
	case DirEast:
		return 0, 1
	case DirWest:
		return 0, -1
	}
	return 0, 0
}

func (d Direction) String() string {
	switch d {
	case DirNorth:
		return "north"
	case DirSouth:
		return "south"
	case DirEast:
		return "east"
	case DirWest:
		return "west"
	}
	return ""
}

// MarshalText encodes the direction by name.
func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText accepts any name ParseDirection does; empty is DirNone.
func (d *Direction) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = DirNone
		return nil
	}
	v, ok := ParseDirection(string(b))
	if !ok {
		return fmt.Errorf("unknown direction %q", b)
	}
	*d = v
	return nil
}

// ParseDirection converts a direction name.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "north", "n", "up":
		return DirNorth, true
	case "south", "s", "down":
		return DirSouth, true
	case "east", "e", "right":
		return DirEast, true
	case "west", "w", "left":
		return DirWest, true
	}
	return DirNone, false
}

var cardinalDirections = [4]Direction{DirNorth, DirSouth, DirEast, DirWest}

// ---------------------------------------------------------------------------
// Pending actions
// ---------------------------------------------------------------------------

// PendingType describes what the engine is waiting for before play can continue.
type PendingType uint8

const (
	PendingNone        PendingType = iota // 0
	PendingRoll                           // 1: a rift was entered; waiting for RollRiftDie
	PendingExtraMove                      // 2: Foot Soldier's Gambit; Piece must move again
	PendingNecromancer                    // 3: pick an opponent captured piece
	PendingArcherTarget                   // 4: pick a square to shoot
	PendingDragonDirection                // 5: pick a cardinal direction
	PendingPortalRift                     // 6: pick a destination rift
	PendingDemonDeal                      // 7: accept or decline
	PendingRevival                        // 8: pick an own captured piece and a home square
)

func (p PendingType) String() string {
	switch p {
	case PendingNone:
		return "none"
	case PendingRoll:
		return "roll"
	case PendingExtraMove:
		return "extra_move"
	case PendingNecromancer:
		return "necromancer"
	case PendingArcherTarget:
		return "archer_target"
	case PendingDragonDirection:
		return "dragon_direction"
	case PendingPortalRift:
		return "portal_rift"
	case PendingDemonDeal:
		return "demon_deal"
	case PendingRevival:
		return "revival"
	}
	return "?"
}

// IsChoice reports whether the pending action is resolved by SubmitChoice.
func (p PendingType) IsChoice() bool {
	return p >= PendingNecromancer && p <= PendingRevival
}

// PendingAction holds a suspended step waiting for player input.
type PendingAction struct {
	Type   PendingType
	Player Color
	Piece  PieceID // activator, or the piece owed an extra move
	Rift   Square  // rift square the effect resolves around
	Kind   EffectKind
}

// Choice is the payload for SubmitChoice. Only the fields relevant to the
// pending type are read.
type Choice struct {
	Type      PendingType `json:"type"`
	Index     int         `json:"index"`
	Square    Square      `json:"square"`
	Direction Direction   `json:"direction"`
	Accept    bool        `json:"accept"`
}

// DecisionContext describes what kind of input the acting player must give.
type DecisionContext uint8

const (
	CtxSetup      DecisionContext = iota // 0
	CtxMove                              // 1
	CtxRoll                              // 2
	CtxChoice                            // 3
	CtxExtraMove                         // 4
	CtxKingSecond                        // 5: optional second king move
	CtxTerminal                          // 6
)

// ---------------------------------------------------------------------------
// Last move / last effect observations
// ---------------------------------------------------------------------------

// LastMoveInfo is a public summary of the most recent committed move.
type LastMoveInfo struct {
	Piece    PieceID
	From     Square
	To       Square
	Captured PieceID
	Rift     bool // destination fired a rift
}

// EffectOutcome tells an applied effect apart from a no-op or a failure.
type EffectOutcome uint8

const (
	OutcomeNone EffectOutcome = iota
	OutcomeApplied
	OutcomeNoOp
	OutcomeDeclined
	OutcomeFailed
)

func (o EffectOutcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeNoOp:
		return "noop"
	case OutcomeDeclined:
		return "declined"
	case OutcomeFailed:
		return "failed"
	}
	return ""
}

// EffectRecord describes the most recent rift resolution.
type EffectRecord struct {
	Roll    uint8
	Kind    EffectKind
	Player  Color
	Rift    Square
	Outcome EffectOutcome
	Detail  string
	// Secondary holds any follow-up roll (Jack Frost, Time Distortion,
	// Eerie Fog, Demon's Deal parity); Catapult uses both slots.
	Secondary [2]uint8
	Removed   []PieceID
}
