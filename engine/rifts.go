package engine

import "fmt"

// PlaceRift toggles a rift at (row, col) during setup. Placing on an existing
// rift removes it.
func (g *GameState) PlaceRift(row, col int) error {
	if g.Phase != PhaseSetup {
		return fmt.Errorf("place rift: %w", ErrWrongPhase)
	}
	sq, ok := SquareAt(row, col)
	if !ok {
		return fmt.Errorf("place rift (%d,%d): %w", row, col, ErrOffBoard)
	}
	if i := g.riftIndex(sq); i >= 0 {
		g.removeRift(i)
		return nil
	}
	if row < RiftMinRow || row > RiftMaxRow {
		return fmt.Errorf("place rift %s: %w", sq.Name(), ErrRiftRowOutOfRange)
	}
	if g.RiftCount >= MaxRifts {
		return fmt.Errorf("place rift %s: %w", sq.Name(), ErrRiftsFull)
	}
	for i := 0; i < int(g.RiftCount); i++ {
		r := g.Rifts[i].Square
		if r.Row() == row || r.Col() == col {
			return fmt.Errorf("place rift %s conflicts with %s: %w", sq.Name(), r.Name(), ErrRiftConflict)
		}
	}
	g.Rifts[g.RiftCount] = Rift{Square: sq}
	g.RiftCount++
	return nil
}

func (g *GameState) removeRift(i int) {
	copy(g.Rifts[i:g.RiftCount], g.Rifts[i+1:g.RiftCount])
	g.RiftCount--
	g.Rifts[g.RiftCount] = Rift{}
}

// ClearRifts removes every placed rift during setup.
func (g *GameState) ClearRifts() error {
	if g.Phase != PhaseSetup {
		return fmt.Errorf("clear rifts: %w", ErrWrongPhase)
	}
	g.Rifts = [MaxRifts]Rift{}
	g.RiftCount = 0
	return nil
}

// GenerateRifts replaces the rift set with a random valid layout. It draws
// candidate squares from rows 2..5 and keeps each one that does not share a
// row or column with a kept rift.
func (g *GameState) GenerateRifts() error {
	if g.Phase != PhaseSetup {
		return fmt.Errorf("generate rifts: %w", ErrWrongPhase)
	}
	var rifts [MaxRifts]Rift
	n := 0
	span := uint64(RiftMaxRow - RiftMinRow + 1)
	for attempt := 0; attempt < g.Rules.riftAttempts() && n < MaxRifts; attempt++ {
		row := RiftMinRow + int(g.randN(span))
		col := int(g.randN(8))
		conflict := false
		for i := 0; i < n; i++ {
			if rifts[i].Square.Row() == row || rifts[i].Square.Col() == col {
				conflict = true
				break
			}
		}
		if !conflict {
			rifts[n] = Rift{Square: MustSquare(row, col)}
			n++
		}
	}
	if n < MaxRifts {
		return fmt.Errorf("generate rifts: placed %d of %d: %w", n, MaxRifts, ErrRiftGeneration)
	}
	g.Rifts = rifts
	g.RiftCount = MaxRifts
	return nil
}

// StartGame moves from setup to playing. Exactly four rifts are required.
func (g *GameState) StartGame() error {
	if g.Phase != PhaseSetup {
		return fmt.Errorf("start game: %w", ErrWrongPhase)
	}
	if g.RiftCount != MaxRifts {
		return fmt.Errorf("start game with %d rifts: %w", g.RiftCount, ErrRiftsIncomplete)
	}
	g.Phase = PhasePlaying
	g.TurnNumber = 1
	return nil
}

// RiftSquares returns the placed rift squares in placement order.
func (g *GameState) RiftSquares() []Square {
	out := make([]Square, g.RiftCount)
	for i := range out {
		out[i] = g.Rifts[i].Square
	}
	return out
}
