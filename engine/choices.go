package engine

import "fmt"

// LegalChoices enumerates every payload SubmitChoice accepts for the pending
// choice. It returns nil when no choice is pending.
func (g *GameState) LegalChoices() []Choice {
	t := g.Pending.Type
	if !t.IsChoice() || g.Phase != PhasePlaying {
		return nil
	}
	ctx := g.pendingCtx()
	var out []Choice
	switch t {
	case PendingNecromancer:
		for i := 0; i < int(g.Captured[ctx.player.Opponent()].Len); i++ {
			out = append(out, Choice{Type: t, Index: i, Square: NoSquare})
		}
	case PendingArcherTarget:
		for _, sq := range g.archerTargets(ctx) {
			out = append(out, Choice{Type: t, Square: sq})
		}
	case PendingDragonDirection:
		for _, d := range g.dragonDirections(ctx) {
			out = append(out, Choice{Type: t, Direction: d, Square: NoSquare})
		}
	case PendingPortalRift:
		for _, sq := range g.portalTargets(ctx) {
			out = append(out, Choice{Type: t, Square: sq})
		}
	case PendingDemonDeal:
		out = append(out,
			Choice{Type: t, Accept: true, Square: NoSquare},
			Choice{Type: t, Accept: false, Square: NoSquare})
	case PendingRevival:
		squares := g.revivalSquares(ctx.player)
		for i := 0; i < int(g.Captured[ctx.player].Len); i++ {
			for _, sq := range squares {
				out = append(out, Choice{Type: t, Index: i, Square: sq})
			}
		}
	}
	return out
}

// matches compares the fields of a choice that matter for its type.
func (c Choice) matches(o Choice) bool {
	if c.Type != o.Type {
		return false
	}
	switch c.Type {
	case PendingNecromancer:
		return c.Index == o.Index
	case PendingArcherTarget, PendingPortalRift:
		return c.Square == o.Square
	case PendingDragonDirection:
		return c.Direction == o.Direction
	case PendingDemonDeal:
		return c.Accept == o.Accept
	case PendingRevival:
		return c.Index == o.Index && c.Square == o.Square
	}
	return false
}

// SubmitChoice resumes a suspended effect. An invalid payload is rejected
// and the choice stays pending.
func (g *GameState) SubmitChoice(c Choice) error {
	if g.Phase == PhaseEnded {
		return fmt.Errorf("choice: %w", ErrGameOver)
	}
	if !g.Pending.Type.IsChoice() {
		return fmt.Errorf("choice: %w", ErrNoChoicePending)
	}
	if c.Type != g.Pending.Type {
		return fmt.Errorf("choice %s, waiting for %s: %w", c.Type, g.Pending.Type, ErrInvalidChoice)
	}
	valid := false
	for _, o := range g.LegalChoices() {
		if o.matches(c) {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("choice %s %+v: %w", c.Type, c, ErrInvalidChoice)
	}

	ctx := g.pendingCtx()
	g.Pending = PendingAction{Piece: NoPiece, Rift: NoSquare}
	err := g.runHandler(func() error { return g.applyChoice(ctx, c) })
	g.afterHandler(err)
	return nil
}

func (g *GameState) applyChoice(ctx effectCtx, c Choice) error {
	switch c.Type {
	case PendingNecromancer:
		return g.resolveNecromancer(ctx, c)
	case PendingArcherTarget:
		return g.resolveArcher(ctx, c)
	case PendingDragonDirection:
		return g.resolveDragon(ctx, c)
	case PendingPortalRift:
		return g.resolvePortal(ctx, c)
	case PendingDemonDeal:
		return g.resolveDemonDeal(ctx, c)
	case PendingRevival:
		return g.resolveRevival(ctx, c)
	}
	return fmt.Errorf("unhandled choice %s", c.Type)
}
