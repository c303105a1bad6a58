package engine

import "fmt"

// ---------------------------------------------------------------------------
// Removal effects
// ---------------------------------------------------------------------------

// necromancerTrap removes the activator, then waits for the player to pick
// one of the opponent's captured pieces to raise on the rift.
func (g *GameState) necromancerTrap(ctx effectCtx) error {
	sq, err := g.activatorSquare(ctx)
	if err != nil {
		return err
	}
	if err := g.effectRemove(sq); err != nil {
		return err
	}
	if g.Captured[ctx.player.Opponent()].Len == 0 {
		g.LastEffect.Detail = "no captured piece to raise"
		return nil
	}
	g.suspend(PendingNecromancer, ctx)
	return nil
}

func (g *GameState) resolveNecromancer(ctx effectCtx, c Choice) error {
	_, err := g.reviveFromPool(ctx.player.Opponent(), c.Index, ctx.rift)
	return err
}

// archerTargets lists occupied squares on the eight lines out of the rift,
// one to three squares away. Blockers do not stop the shot.
func (g *GameState) archerTargets(ctx effectCtx) []Square {
	var out []Square
	for _, d := range kingOffsets {
		for i := 1; i <= 3; i++ {
			sq, ok := SquareAt(ctx.rift.Row()+d[0]*i, ctx.rift.Col()+d[1]*i)
			if !ok {
				break
			}
			if id := g.Board[sq]; id != NoPiece && id != ctx.piece {
				out = append(out, sq)
			}
		}
	}
	return out
}

func (g *GameState) archerTrickShot(ctx effectCtx) error {
	if len(g.archerTargets(ctx)) == 0 {
		return g.noop("no target in range")
	}
	g.suspend(PendingArcherTarget, ctx)
	return nil
}

func (g *GameState) resolveArcher(ctx effectCtx, c Choice) error {
	return g.effectRemove(c.Square)
}

// sandworm removes every piece within one square of the rift, activator included.
func (g *GameState) sandworm(ctx effectCtx) error {
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			sq, ok := SquareAt(ctx.rift.Row()+dr, ctx.rift.Col()+dc)
			if !ok || g.Board[sq] == NoPiece {
				continue
			}
			if err := g.effectRemove(sq); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *GameState) honorableSacrifice(ctx effectCtx) error {
	sq, err := g.activatorSquare(ctx)
	if err != nil {
		return err
	}
	if err := g.effectRemove(sq); err != nil {
		return err
	}
	for _, o := range kingOffsets {
		n, ok := SquareAt(sq.Row()+o[0], sq.Col()+o[1])
		if !ok {
			continue
		}
		if p := g.PieceAt(n); p != nil && p.Color != ctx.player {
			return g.effectRemove(n)
		}
	}
	g.LastEffect.Detail = "no adjacent enemy"
	return nil
}

// demotion swaps a rook, knight, bishop or queen activator for the earliest
// captured own pawn. Pawns and kings are left alone.
func (g *GameState) demotion(ctx effectCtx) error {
	sq, err := g.activatorSquare(ctx)
	if err != nil {
		return err
	}
	switch g.Pieces[ctx.piece].Type {
	case Pawn:
		return g.noop("activator is a pawn")
	case King:
		return g.noop("activator is a king")
	}
	pool := &g.Captured[ctx.player]
	idx := -1
	for i := 0; i < int(pool.Len); i++ {
		if g.Pieces[pool.IDs[i]].Type == Pawn {
			idx = i
			break
		}
	}
	if idx < 0 {
		return g.noop("no captured pawn")
	}
	if err := g.effectRemove(sq); err != nil {
		return err
	}
	_, err = g.reviveFromPool(ctx.player, idx, sq)
	return err
}

// dragonDirections returns the cardinal directions whose first piece within
// three squares of the rift is an enemy.
func (g *GameState) dragonDirections(ctx effectCtx) []Direction {
	var out []Direction
	for _, d := range cardinalDirections {
		if _, ok := g.dragonTarget(ctx, d); ok {
			out = append(out, d)
		}
	}
	return out
}

func (g *GameState) dragonTarget(ctx effectCtx, d Direction) (Square, bool) {
	dr, dc := d.Delta()
	for i := 1; i <= 3; i++ {
		sq, ok := SquareAt(ctx.rift.Row()+dr*i, ctx.rift.Col()+dc*i)
		if !ok {
			return NoSquare, false
		}
		if p := g.PieceAt(sq); p != nil {
			return sq, p.Color != ctx.player
		}
	}
	return NoSquare, false
}

func (g *GameState) dragonBreath(ctx effectCtx) error {
	if len(g.dragonDirections(ctx)) == 0 {
		return g.noop("no enemy in reach")
	}
	g.suspend(PendingDragonDirection, ctx)
	return nil
}

func (g *GameState) resolveDragon(ctx effectCtx, c Choice) error {
	sq, ok := g.dragonTarget(ctx, c.Direction)
	if !ok {
		return fmt.Errorf("no enemy %s of %s", c.Direction, ctx.rift.Name())
	}
	return g.effectRemove(sq)
}

// catapultRoulette draws a column then a row, each 1..8, and removes whatever
// stands on that square.
func (g *GameState) catapultRoulette(ctx effectCtx) error {
	col := int(g.randN(8))
	rank := int(g.randN(8))
	g.LastEffect.Secondary = [2]uint8{uint8(col + 1), uint8(rank + 1)}
	sq := MustSquare(7-rank, col)
	if g.Board[sq] == NoPiece {
		return g.noop(fmt.Sprintf("%s is empty", sq.Name()))
	}
	g.LastEffect.Detail = sq.Name()
	return g.effectRemove(sq)
}

// crossroadDemonDeal always asks first; the player may decline.
func (g *GameState) crossroadDemonDeal(ctx effectCtx) error {
	g.suspend(PendingDemonDeal, ctx)
	return nil
}

func (g *GameState) resolveDemonDeal(ctx effectCtx, c Choice) error {
	if !c.Accept {
		g.LastEffect.Outcome = OutcomeDeclined
		return nil
	}
	sq, err := g.activatorSquare(ctx)
	if err != nil {
		return err
	}
	if err := g.effectRemove(sq); err != nil {
		return err
	}

	parity := g.rollD20()
	g.LastEffect.Secondary[0] = uint8(parity)
	toll := 1
	if parity%2 == 0 {
		toll = 2
	}
	own := g.ownPieceSquares(ctx.player, false)
	for i := 0; i < toll && i < len(own); i++ {
		if err := g.effectRemove(own[i]); err != nil {
			return err
		}
	}

	pool := &g.Captured[ctx.player]
	var candidates []int
	for i := 0; i < int(pool.Len); i++ {
		if t := g.Pieces[pool.IDs[i]].Type; t != Pawn && t != King {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		g.LastEffect.Detail = "nothing to revive"
		return nil
	}
	pick := int(g.randN(uint64(len(candidates))))
	g.LastEffect.Secondary[1] = uint8(pick + 1)
	_, err = g.reviveFromPool(ctx.player, candidates[pick], sq)
	return err
}

// ---------------------------------------------------------------------------
// Movement effects
// ---------------------------------------------------------------------------

func (g *GameState) footSoldierGambit(ctx effectCtx) error {
	sq, err := g.activatorSquare(ctx)
	if err != nil {
		return err
	}
	if !g.hasAnyMove(sq) {
		return g.noop("activator has no legal move")
	}
	// A king under Conqueror's Tale never moves more than twice in a turn.
	if g.Pieces[ctx.piece].Type == King && g.Turn.KingMovedThisTurn[ctx.player] >= 2 {
		return g.noop("king move cap reached")
	}
	g.Pending = PendingAction{Type: PendingExtraMove, Player: ctx.player, Piece: ctx.piece, Rift: ctx.rift, Kind: ctx.kind}
	return nil
}

// jackFrostMischief sets its field effect and rolls once for the activator:
// on an even roll it slides one more square along the direction it travelled.
func (g *GameState) jackFrostMischief(ctx effectCtx) error {
	g.setFieldEffect(FieldJackFrostMischief)
	roll := g.rollD20()
	g.LastEffect.Secondary[0] = uint8(roll)
	if roll%2 == 1 {
		g.LastEffect.Detail = "odd roll, no slide"
		return nil
	}
	sq, err := g.activatorSquare(ctx)
	if err != nil {
		return err
	}
	from := g.LastMove.From
	if !from.Valid() {
		return fmt.Errorf("no previous move to follow")
	}
	dr := sign(sq.Row() - from.Row())
	dc := sign(sq.Col() - from.Col())
	next, ok := SquareAt(sq.Row()+dr, sq.Col()+dc)
	switch {
	case !ok:
		g.LastEffect.Detail = "slid off the board"
		return g.effectRemove(sq)
	case g.Board[next] != NoPiece:
		g.Pieces[ctx.piece].FrozenByFieldEffect = true
		g.Pieces[g.Board[next]].FrozenByFieldEffect = true
		g.LastEffect.Detail = "collided on " + next.Name()
		return nil
	}
	g.LastEffect.Detail = "slid to " + next.Name()
	return g.relocate(sq, next)
}

// portalTargets lists the other rifts that have not fired yet.
func (g *GameState) portalTargets(ctx effectCtx) []Square {
	var out []Square
	for i := 0; i < int(g.RiftCount); i++ {
		r := g.Rifts[i]
		if !r.Activated && r.Square != ctx.rift {
			out = append(out, r.Square)
		}
	}
	return out
}

func (g *GameState) portalInTheRift(ctx effectCtx) error {
	if len(g.portalTargets(ctx)) == 0 {
		return g.noop("no unactivated rift")
	}
	g.suspend(PendingPortalRift, ctx)
	return nil
}

func (g *GameState) resolvePortal(ctx effectCtx, c Choice) error {
	sq, err := g.activatorSquare(ctx)
	if err != nil {
		return err
	}
	if g.Board[c.Square] != NoPiece {
		if err := g.effectRemove(c.Square); err != nil {
			return err
		}
	}
	g.LastEffect.Detail = "teleported to " + c.Square.Name()
	return g.relocate(sq, c.Square)
}

func (g *GameState) fairyFountain(ctx effectCtx) error {
	p := &g.Pieces[ctx.piece]
	if p.Type != Pawn {
		return g.noop("activator is not a pawn")
	}
	p.FairyFountain = true
	return nil
}

// ---------------------------------------------------------------------------
// Freezes, field effects and abilities
// ---------------------------------------------------------------------------

func (g *GameState) sandstorm(ctx effectCtx) error {
	if !g.Turn.PlayerHasMoved[White] || !g.Turn.PlayerHasMoved[Black] {
		return g.noop("both sides must have moved")
	}
	g.setFieldEffect(FieldSandstorm)
	return nil
}

func (g *GameState) medusaGaze(ctx effectCtx) error {
	if _, err := g.activatorSquare(ctx); err != nil {
		return err
	}
	g.Pieces[ctx.piece].Frozen = true
	return nil
}

// distortionRadius maps a d20 to the Time Distortion radius.
func distortionRadius(roll int) int {
	switch {
	case roll <= 8:
		return 1
	case roll <= 14:
		return 2
	case roll <= 18:
		return 3
	}
	return 4
}

func (g *GameState) timeDistortion(ctx effectCtx) error {
	roll := g.rollD20()
	g.LastEffect.Secondary[0] = uint8(roll)
	radius := distortionRadius(roll)
	for sq, id := range g.Board {
		if id != NoPiece && chebyshev(ctx.rift, Square(sq)) <= radius {
			g.Pieces[id].FrozenByFieldEffect = true
		}
	}
	g.LastEffect.Detail = fmt.Sprintf("radius %d", radius)
	return nil
}

func (g *GameState) conquerorsTale(ctx effectCtx) error {
	ka := &g.KingAbilities[ctx.player]
	if ka.DoubleMove {
		return g.noop("king already moves twice")
	}
	ka.DoubleMove = true
	ka.GrantedTurn = g.TurnNumber
	return nil
}

func (g *GameState) eerieFogTurmoil(ctx effectCtx) error {
	roll := g.rollD20()
	g.LastEffect.Secondary[0] = uint8(roll)
	if roll > 2 {
		return g.noop("the fog lifts")
	}
	g.Turn.PendingEerieFogSkip = ctx.player
	g.LastEffect.Detail = ctx.player.String() + " loses the next turn"
	return nil
}

// ---------------------------------------------------------------------------
// Spring of Revival
// ---------------------------------------------------------------------------

// revivalSquares lists the empty squares on c's two home rows.
func (g *GameState) revivalSquares(c Color) []Square {
	a, b := homeRows(c)
	var out []Square
	for _, row := range [2]int{a, b} {
		for col := 0; col < 8; col++ {
			if sq, ok := g.empty(row, col); ok {
				out = append(out, sq)
			}
		}
	}
	return out
}

func (g *GameState) springOfRevival(ctx effectCtx) error {
	if g.Captured[ctx.player].Len == 0 {
		return g.noop("no captured piece")
	}
	if len(g.revivalSquares(ctx.player)) == 0 {
		return g.noop("no open home square")
	}
	g.suspend(PendingRevival, ctx)
	return nil
}

func (g *GameState) resolveRevival(ctx effectCtx, c Choice) error {
	_, err := g.reviveFromPool(ctx.player, c.Index, c.Square)
	return err
}
