package engine

import "fmt"

var (
	kingOffsets    = [8][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
	knightOffsets  = [8][2]int{{-2, -1}, {-2, 1}, {-1, -2}, {-1, 2}, {1, -2}, {1, 2}, {2, -1}, {2, 1}}
	longKnight     = [8][2]int{{-3, -1}, {-3, 1}, {-1, -3}, {-1, 3}, {1, -3}, {1, 3}, {3, -1}, {3, 1}}
	rookRays       = [4][2]int{{0, 1}, {0, -1}, {1, 0}, {-1, 0}}
	bishopRays     = [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
	sandstormReach = 3
)

func slidingRays(t PieceType) [][2]int {
	switch t {
	case Rook:
		return rookRays[:]
	case Bishop:
		return bishopRays[:]
	case Queen:
		return append(rookRays[:len(rookRays):len(rookRays)], bishopRays[:]...)
	}
	return nil
}

// LegalMoves returns the pseudo-legal destinations of the piece on sq under
// the active field effect. Squares held by the piece's own side are never
// returned. Check is not considered.
func (g *GameState) LegalMoves(sq Square) []Square {
	p := g.PieceAt(sq)
	if p == nil {
		return nil
	}
	var moves []Square
	switch {
	case g.Field == FieldFamine && p.Type == Pawn:
		// pawns starve
	case g.Field == FieldSandstorm:
		moves = g.sandstormMoves(sq, p)
	case g.Field == FieldHolidayRejuvenation:
		moves = g.holidayMoves(sq, p)
	case p.Type == Pawn && p.FairyFountain:
		moves = g.fairyPawnMoves(sq, p)
	default:
		moves = g.defaultMoves(sq, p)
	}
	if g.Field == FieldBlank && p.Type == Pawn {
		moves = g.appendSidewaysCaptures(moves, sq, p)
	}
	return moves
}

// ValidateMove checks a move for the current player and reports why it is
// rejected. It does not consider pending actions.
func (g *GameState) ValidateMove(from, to Square) error {
	if !from.Valid() || !to.Valid() {
		return fmt.Errorf("move %d->%d: %w", from, to, ErrOffBoard)
	}
	p := g.PieceAt(from)
	if p == nil {
		return fmt.Errorf("move from %s: %w", from.Name(), ErrNoPiece)
	}
	if p.Color != g.Turn.Current {
		return fmt.Errorf("move %s %s: %w", p.Color, p.Type, ErrNotYourTurn)
	}
	if p.IsFrozen() {
		return fmt.Errorf("move %s on %s: %w", p.Type, from.Name(), ErrPieceFrozen)
	}
	if t := g.PieceAt(to); t != nil && t.Color == p.Color {
		return fmt.Errorf("move %s->%s: %w", from.Name(), to.Name(), ErrOwnPiece)
	}
	for _, m := range g.LegalMoves(from) {
		if m == to {
			return nil
		}
	}
	return fmt.Errorf("%s %s->%s: %w", p.Type, from.Name(), to.Name(), ErrIllegalMove)
}

// IsValidMove reports whether the current player may move from -> to.
func (g *GameState) IsValidMove(from, to Square) bool {
	return g.ValidateMove(from, to) == nil
}

// hasAnyMove reports whether the piece on sq can move at all.
func (g *GameState) hasAnyMove(sq Square) bool {
	p := g.PieceAt(sq)
	if p == nil || p.IsFrozen() {
		return false
	}
	return len(g.LegalMoves(sq)) > 0
}

// sideHasMove reports whether c has any movable piece.
func (g *GameState) sideHasMove(c Color) bool {
	for _, sq := range g.ownPieceSquares(c, true) {
		if g.hasAnyMove(sq) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Default movement
// ---------------------------------------------------------------------------

func (g *GameState) defaultMoves(sq Square, p *Piece) []Square {
	switch p.Type {
	case Pawn:
		return g.pawnMoves(sq, p)
	case Knight:
		return g.offsetMoves(sq, p, knightOffsets[:])
	case King:
		return g.offsetMoves(sq, p, kingOffsets[:])
	default:
		return g.rayMoves(sq, p, slidingRays(p.Type), 7, false)
	}
}

// open reports whether p may land on (row, col): on the board and not held by its own side.
func (g *GameState) open(p *Piece, row, col int) (Square, bool) {
	sq, ok := SquareAt(row, col)
	if !ok {
		return NoSquare, false
	}
	if t := g.PieceAt(sq); t != nil && t.Color == p.Color {
		return NoSquare, false
	}
	return sq, true
}

func (g *GameState) empty(row, col int) (Square, bool) {
	sq, ok := SquareAt(row, col)
	if !ok || g.Board[sq] != NoPiece {
		return NoSquare, false
	}
	return sq, true
}

func (g *GameState) enemyAt(p *Piece, row, col int) (Square, bool) {
	sq, ok := SquareAt(row, col)
	if !ok {
		return NoSquare, false
	}
	t := g.PieceAt(sq)
	if t == nil || t.Color == p.Color {
		return NoSquare, false
	}
	return sq, true
}

func (g *GameState) offsetMoves(sq Square, p *Piece, offsets [][2]int) []Square {
	var out []Square
	for _, o := range offsets {
		if to, ok := g.open(p, sq.Row()+o[0], sq.Col()+o[1]); ok {
			out = append(out, to)
		}
	}
	return out
}

// rayMoves walks each ray up to reach squares. With hop set, the first
// friendly blocker on a ray is skipped over once; the blocker's own square is
// never a destination.
func (g *GameState) rayMoves(sq Square, p *Piece, rays [][2]int, reach int, hop bool) []Square {
	var out []Square
	for _, d := range rays {
		hopped := false
		for i := 1; i <= reach; i++ {
			to, ok := SquareAt(sq.Row()+d[0]*i, sq.Col()+d[1]*i)
			if !ok {
				break
			}
			t := g.PieceAt(to)
			if t == nil {
				out = append(out, to)
				continue
			}
			if t.Color != p.Color {
				out = append(out, to)
				break
			}
			if hop && !hopped {
				hopped = true
				continue
			}
			break
		}
	}
	return out
}

func pawnStartRow(c Color) int {
	if c == White {
		return 6
	}
	return 1
}

func (g *GameState) pawnMoves(sq Square, p *Piece) []Square {
	var out []Square
	fwd := p.Color.Forward()
	row, col := sq.Row(), sq.Col()
	if one, ok := g.empty(row+fwd, col); ok {
		out = append(out, one)
		if row == pawnStartRow(p.Color) {
			if two, ok := g.empty(row+2*fwd, col); ok {
				out = append(out, two)
			}
		}
	}
	for _, dc := range [2]int{-1, 1} {
		if to, ok := g.enemyAt(p, row+fwd, col+dc); ok {
			out = append(out, to)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Field effects
// ---------------------------------------------------------------------------

func (g *GameState) sandstormMoves(sq Square, p *Piece) []Square {
	switch p.Type {
	case Pawn, King:
		return nil
	case Knight:
		return g.offsetMoves(sq, p, kingOffsets[:])
	default:
		return g.rayMoves(sq, p, slidingRays(p.Type), sandstormReach, false)
	}
}

func (g *GameState) holidayMoves(sq Square, p *Piece) []Square {
	switch p.Type {
	case Pawn:
		moves := g.pawnMoves(sq, p)
		fwd := p.Color.Forward()
		if _, ok := g.empty(sq.Row()+fwd, sq.Col()); ok {
			if two, ok := g.empty(sq.Row()+2*fwd, sq.Col()); ok && !containsSquare(moves, two) {
				moves = append(moves, two)
			}
		}
		return moves
	case Knight:
		return g.offsetMoves(sq, p, longKnight[:])
	case King:
		return g.offsetMoves(sq, p, kingOffsets[:])
	default:
		return g.rayMoves(sq, p, slidingRays(p.Type), 7, g.Rules.HolidaySliderJump)
	}
}

// fairyPawnMoves replaces the pawn pattern: a forward-2 leap onto an empty
// square, or two forward and one sideways onto an empty or enemy square.
func (g *GameState) fairyPawnMoves(sq Square, p *Piece) []Square {
	var moves []Square
	fwd := p.Color.Forward()
	row, col := sq.Row(), sq.Col()
	if two, ok := g.empty(row+2*fwd, col); ok {
		moves = append(moves, two)
	}
	for _, dc := range [2]int{-1, 1} {
		if to, ok := g.open(p, row+2*fwd, col+dc); ok {
			moves = append(moves, to)
		}
	}
	return moves
}

func (g *GameState) appendSidewaysCaptures(moves []Square, sq Square, p *Piece) []Square {
	for _, dc := range [2]int{-1, 1} {
		if to, ok := g.enemyAt(p, sq.Row(), sq.Col()+dc); ok {
			moves = append(moves, to)
		}
	}
	return moves
}

// setFieldEffect replaces the field effect. Any change lifts every
// field-attributed freeze.
func (g *GameState) setFieldEffect(f FieldEffect) {
	for i := range g.Pieces {
		g.Pieces[i].FrozenByFieldEffect = false
	}
	g.Field = f
}

func containsSquare(s []Square, sq Square) bool {
	for _, x := range s {
		if x == sq {
			return true
		}
	}
	return false
}
