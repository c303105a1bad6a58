package engine

import "fmt"

// push appends a piece to the pool.
func (p *CapturedPool) push(id PieceID) error {
	if int(p.Len) >= PoolCapacity {
		return fmt.Errorf("captured pool full")
	}
	p.IDs[p.Len] = id
	p.Len++
	return nil
}

// removeAt splices out the entry at i, preserving the order of the rest.
func (p *CapturedPool) removeAt(i int) (PieceID, error) {
	if i < 0 || i >= int(p.Len) {
		return NoPiece, fmt.Errorf("captured index %d out of range (%d pieces)", i, p.Len)
	}
	id := p.IDs[i]
	copy(p.IDs[i:p.Len], p.IDs[i+1:p.Len])
	p.Len--
	p.IDs[p.Len] = 0
	return id, nil
}

// Slice returns the pool contents in capture order.
func (p *CapturedPool) Slice() []PieceID {
	out := make([]PieceID, p.Len)
	copy(out, p.IDs[:p.Len])
	return out
}

// capturePiece moves whatever stands on sq into its owner's captured pool.
// Freezes are lifted; the fairy flag stays.
func (g *GameState) capturePiece(sq Square) (PieceID, error) {
	id := g.Board[sq]
	if id == NoPiece {
		return NoPiece, fmt.Errorf("no piece on %s", sq.Name())
	}
	p := &g.Pieces[id]
	if err := g.Captured[p.Color].push(id); err != nil {
		return NoPiece, err
	}
	g.Board[sq] = NoPiece
	p.Frozen = false
	p.FrozenByFieldEffect = false
	return id, nil
}

// effectRemove captures the piece on sq on behalf of the resolving effect.
func (g *GameState) effectRemove(sq Square) error {
	id, err := g.capturePiece(sq)
	if err != nil {
		return err
	}
	g.LastEffect.Removed = append(g.LastEffect.Removed, id)
	return nil
}

// reviveFromPool takes the piece at index i of color c's pool and places it on sq.
func (g *GameState) reviveFromPool(c Color, i int, sq Square) (PieceID, error) {
	if g.Board[sq] != NoPiece {
		return NoPiece, fmt.Errorf("cannot revive onto occupied %s", sq.Name())
	}
	id, err := g.Captured[c].removeAt(i)
	if err != nil {
		return NoPiece, err
	}
	g.Board[sq] = id
	return id, nil
}

// relocate moves a piece between squares. The destination must be empty.
func (g *GameState) relocate(from, to Square) error {
	if g.Board[to] != NoPiece {
		return fmt.Errorf("cannot move onto occupied %s", to.Name())
	}
	g.Board[to] = g.Board[from]
	g.Board[from] = NoPiece
	return nil
}

// kingOnBoard reports whether c still has its king on the board.
func (g *GameState) kingOnBoard(c Color) bool {
	return g.kingSquare(c) != NoSquare
}

func (g *GameState) kingSquare(c Color) Square {
	for sq, id := range g.Board {
		if id == NoPiece {
			continue
		}
		if p := &g.Pieces[id]; p.Type == King && p.Color == c {
			return Square(sq)
		}
	}
	return NoSquare
}

// ownPieceSquares returns the squares holding c's pieces in row-major order.
func (g *GameState) ownPieceSquares(c Color, includeKing bool) []Square {
	var out []Square
	for sq, id := range g.Board {
		if id == NoPiece {
			continue
		}
		p := &g.Pieces[id]
		if p.Color != c || (!includeKing && p.Type == King) {
			continue
		}
		out = append(out, Square(sq))
	}
	return out
}

// homeRows returns the two starting rows of c.
func homeRows(c Color) (int, int) {
	if c == White {
		return 6, 7
	}
	return 0, 1
}
