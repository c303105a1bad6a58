package engine

import "fmt"

// endGame stops play and records the winner.
func (g *GameState) endGame(winner Color) {
	g.Phase = PhaseEnded
	g.Winner = winner
	g.Pending = PendingAction{Piece: NoPiece, Rift: NoSquare}
	g.Rollback = EffectSnapshot{}
}

// Resign concedes the game for c. Allowed in setup and play.
func (g *GameState) Resign(c Color) error {
	if g.Phase == PhaseEnded {
		return fmt.Errorf("resign: %w", ErrGameOver)
	}
	if c != White && c != Black {
		return fmt.Errorf("resign: unknown color %d", c)
	}
	g.endGame(c.Opponent())
	return nil
}

// WinnerOf returns the winner and whether the game has ended.
func (g *GameState) WinnerOf() (Color, bool) {
	if g.Phase != PhaseEnded {
		return NoColor, false
	}
	return g.Winner, true
}

// StateHash returns a 64-bit FNV-1a hash of the position and turn state.
// Equal states hash equally, which lets the service detect a stale snapshot.
func (g *GameState) StateHash() uint64 {
	h := uint64(14695981039346656037) // FNV-1a offset basis
	const prime = uint64(1099511628211)
	mix := func(v uint64) {
		h ^= v
		h *= prime
	}
	for sq, id := range g.Board {
		if id == NoPiece {
			continue
		}
		p := g.Pieces[id]
		v := uint64(sq) | uint64(p.Type)<<8 | uint64(p.Color)<<12
		if p.Frozen {
			v |= 1 << 16
		}
		if p.FrozenByFieldEffect {
			v |= 1 << 17
		}
		if p.FairyFountain {
			v |= 1 << 18
		}
		mix(v)
	}
	for c := range g.Captured {
		mix(uint64(g.Captured[c].Len) << 24)
	}
	for i := 0; i < int(g.RiftCount); i++ {
		v := uint64(g.Rifts[i].Square)
		if g.Rifts[i].Activated {
			v |= 1 << 8
		}
		mix(v << 32)
	}
	mix(uint64(g.Field)<<40 | uint64(g.Phase)<<44 | uint64(g.Turn.Current)<<48)
	mix(uint64(g.Pending.Type) | uint64(g.TurnNumber)<<16)
	return h
}
